package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/krobus00/dashboard-sync/internal/config"
	"github.com/krobus00/dashboard-sync/internal/entity"
	"github.com/krobus00/dashboard-sync/internal/infrastructure"
	"github.com/krobus00/dashboard-sync/internal/normalizer"
	"github.com/krobus00/dashboard-sync/internal/repository"
	"github.com/krobus00/dashboard-sync/internal/service/poller"
	"github.com/krobus00/dashboard-sync/internal/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errNoCachedSnapshot = errors.New("no mirrored snapshot found")

type snapshotLoader interface {
	Load(ctx context.Context) (entity.DashboardSnapshot, bool, error)
}

type snapshotOutput struct {
	Source          string                   `json:"source"`
	Snapshot        entity.DashboardSnapshot `json:"snapshot"`
	CouncilMessages []entity.CouncilMessage  `json:"councilMessages,omitempty"`
}

// StartSnapshot prints one normalized snapshot, either fetched from the backend or read
// from the redis mirror, optionally followed by the archived council messages.
func StartSnapshot(cmd *cobra.Command, args []string) {
	cached, _ := cmd.Flags().GetBool("cached")
	councilLimit, _ := cmd.Flags().GetUint64("council")

	ctx, cancel := context.WithTimeout(context.Background(), config.Env.Dashboard.RequestTimeout+config.Env.GracefulShutdownTimeout)
	defer cancel()

	output := snapshotOutput{Source: "backend"}

	if cached {
		redisConfig := config.Env.Redis[snapshotRedis]
		client, err := infrastructure.NewRedisClient(ctx, redisConfig)
		util.ContinueOrFatal(err)
		mirror := repository.NewSnapshotMirrorRepository(client, redisConfig.Key, redisConfig.TTL)
		defer mirror.Close()

		output.Source = "cache"
		output.Snapshot, err = loadCachedSnapshot(ctx, mirror)
		util.ContinueOrFatal(err)
	} else {
		util.ContinueOrFatal(config.Env.Dashboard.Validate())

		snapshot, err := fetchSnapshotOnce(ctx, infrastructure.NewSnapshotClient(config.Env.Dashboard))
		util.ContinueOrFatal(err)
		output.Snapshot = snapshot
	}

	if councilLimit > 0 {
		db, err := infrastructure.NewPostgresConnection(ctx, councilDatabase, config.Env.Database[councilDatabase])
		util.ContinueOrFatal(err)
		defer db.Close()

		output.CouncilMessages, err = repository.NewCouncilMessageRepository(db).FindRecent(ctx, councilLimit)
		util.ContinueOrFatal(err)
	}

	util.ContinueOrFatal(writeSnapshotOutput(os.Stdout, output))
}

func fetchSnapshotOnce(ctx context.Context, fetcher poller.Fetcher) (entity.DashboardSnapshot, error) {
	raw, err := fetcher.FetchSnapshot(ctx)
	if err != nil {
		return entity.DashboardSnapshot{}, err
	}

	return normalizer.NormalizeSnapshot(raw), nil
}

func loadCachedSnapshot(ctx context.Context, loader snapshotLoader) (entity.DashboardSnapshot, error) {
	snapshot, ok, err := loader.Load(ctx)
	if err != nil {
		return entity.DashboardSnapshot{}, fmt.Errorf("load mirrored snapshot: %w", err)
	}
	if !ok {
		return entity.DashboardSnapshot{}, errNoCachedSnapshot
	}

	logrus.WithField("timestamp", snapshot.Timestamp).Debug("loaded mirrored snapshot")

	return snapshot, nil
}

func writeSnapshotOutput(w io.Writer, output snapshotOutput) error {
	encoded, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(encoded))
	return err
}
