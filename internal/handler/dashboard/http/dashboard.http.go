package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/dashboard-sync/internal/config"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/krobus00/dashboard-sync/internal/service/dashboard"
	"github.com/sirupsen/logrus"
)

var (
	errAPIKeyMissing  = errors.New("api key is required")
	errAPIKeyInvalid  = errors.New("invalid api key")
	errAPIKeyInactive = errors.New("api key is inactive")
	errAPIKeyExpired  = errors.New("api key is expired")
)

type SyncService interface {
	State() dashboard.State
	Health() entity.Health
	Refresh(ctx context.Context) error
}

type RefreshResponse struct {
	Refreshed bool          `json:"refreshed"`
	Error     string        `json:"error,omitempty"`
	Health    entity.Health `json:"health"`
}

type Handler struct {
	syncService SyncService
}

func NewDashboardHTTPHandler(syncService SyncService) *Handler {
	return &Handler{syncService: syncService}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /dashboard/v1/state", h.GetState)
	mux.HandleFunc("GET /dashboard/v1/health", h.GetHealth)
	mux.HandleFunc("GET /dashboard/v1/logs", h.GetLogs)
	mux.HandleFunc("GET /dashboard/v1/council", h.GetCouncilMessages)
	mux.HandleFunc("POST /dashboard/v1/refresh", h.Refresh)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.syncService.State())
}

// GetHealth answers 503 while the snapshot channel is offline so load balancers can act on
// the status code alone.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	health := h.syncService.Health()

	code := http.StatusOK
	if health.Status == entity.HealthOffline {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, health)
}

func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	logs := h.syncService.State().Logs
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs[:resolveLimit(r, len(logs))]})
}

func (h *Handler) GetCouncilMessages(w http.ResponseWriter, r *http.Request) {
	state := h.syncService.State()
	messages := state.CouncilMessages

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   state.CouncilStatus,
		"messages": messages[:resolveLimit(r, len(messages))],
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := validateAPIKey(strings.TrimSpace(r.Header.Get("X-API-Key"))); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return
	}

	err := h.syncService.Refresh(r.Context())
	resp := RefreshResponse{
		Refreshed: err == nil,
		Health:    h.syncService.Health(),
	}
	if err != nil {
		logrus.WithError(err).Warn("manual refresh failed")
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func resolveLimit(r *http.Request, size int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return size
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 || limit > size {
		return size
	}

	return limit
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// validateAPIKey accepts any request when no keys are configured.
func validateAPIKey(rawAPIKey string) error {
	if config.Env == nil || len(config.Env.APIKeys) == 0 {
		return nil
	}

	apiKey := strings.TrimSpace(rawAPIKey)
	if apiKey == "" {
		return errAPIKeyMissing
	}

	now := time.Now().UTC()
	for _, candidate := range config.Env.APIKeys {
		storedKey := strings.TrimSpace(candidate.Key)
		if storedKey == "" {
			continue
		}

		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(storedKey)) != 1 {
			continue
		}

		if !candidate.Active {
			return errAPIKeyInactive
		}

		expiredAt, hasExpiry, err := parseExpiry(candidate.ExpiredAt)
		if err != nil {
			return errAPIKeyInvalid
		}
		if hasExpiry && !now.Before(expiredAt) {
			return errAPIKeyExpired
		}

		return nil
	}

	return errAPIKeyInvalid
}

func parseExpiry(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), true, nil
	}

	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false, err
	}

	return parsed.UTC().Add(24 * time.Hour), true, nil
}
