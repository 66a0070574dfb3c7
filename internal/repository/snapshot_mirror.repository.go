package repository

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/redis/go-redis/v9"
)

// SnapshotMirrorRepository writes the latest applied snapshot to redis for sidecar readers.
// The sync service never reads it back.
type SnapshotMirrorRepository struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewSnapshotMirrorRepository(client *redis.Client, key string, ttl time.Duration) *SnapshotMirrorRepository {
	if key == "" {
		key = "dashboard:snapshot:latest"
	}

	return &SnapshotMirrorRepository{client: client, key: key, ttl: ttl}
}

func (r *SnapshotMirrorRepository) Save(ctx context.Context, snapshot entity.DashboardSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.key, payload, r.ttl).Err()
}

// Load returns the mirrored snapshot; ok is false when nothing is stored or it expired.
func (r *SnapshotMirrorRepository) Load(ctx context.Context) (snapshot entity.DashboardSnapshot, ok bool, err error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entity.DashboardSnapshot{}, false, nil
		}
		return entity.DashboardSnapshot{}, false, err
	}

	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return entity.DashboardSnapshot{}, false, err
	}

	return snapshot, true, nil
}

func (r *SnapshotMirrorRepository) Close() error {
	return r.client.Close()
}
