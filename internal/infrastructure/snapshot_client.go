package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/krobus00/dashboard-sync/internal/config"
	"github.com/krobus00/dashboard-sync/internal/constant"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/krobus00/dashboard-sync/internal/normalizer"
)

const maxSnapshotBytes = 8 << 20

// SnapshotClient fetches the raw dashboard document over HTTP. Failures are returned as
// *entity.FetchError so the poller can tell transport failures from protocol ones.
type SnapshotClient struct {
	url        string
	headers    map[string]string
	httpClient *http.Client
}

func NewSnapshotClient(cfg config.DashboardConfig) *SnapshotClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = constant.DefaultRequestTimeout
	}

	return &SnapshotClient{
		url:        strings.TrimSpace(cfg.SnapshotURL),
		headers:    cfg.Headers,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *SnapshotClient) FetchSnapshot(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, entity.NewProtocolError("invalid snapshot request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", fmt.Sprintf("%s/%s", config.ServiceName, config.ServiceVersion))
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, entity.NewNetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, entity.NewNetworkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, entity.NewServerError(resp.StatusCode, fmt.Sprintf("snapshot endpoint returned %s", strings.TrimSpace(snippet(body))))
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, entity.NewProtocolError("snapshot body is not valid json", err)
	}
	if !normalizer.HasSnapshotFields(raw) {
		return nil, entity.NewProtocolError("snapshot has no recognizable fields", nil)
	}

	return raw, nil
}

func snippet(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	if len(body) == 0 {
		return "an empty body"
	}

	return string(body)
}
