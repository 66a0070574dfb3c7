package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRunShutdownStages_Ordered(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(name string) operation {
		return func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	runShutdownStages(context.Background(),
		shutdownStage{"sync": record("sync")},
		shutdownStage{"http": record("http"), "grpc": record("grpc")},
		shutdownStage{"nats": func(ctx context.Context) error {
			mu.Lock()
			order = append(order, "nats")
			mu.Unlock()
			return errors.New("drain failed")
		}, "skipped": nil},
	)

	if len(order) != 4 {
		t.Fatalf("expected 4 operations, got %v", order)
	}
	if order[0] != "sync" {
		t.Errorf("expected sync to stop first, got %v", order)
	}
	if order[3] != "nats" {
		t.Errorf("expected nats to stop last, got %v", order)
	}
}

func TestGracefulShutdown_ContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	called := make(chan struct{})
	wait := gracefulShutdown(ctx, time.Second, shutdownStage{
		"op": func(ctx context.Context) error {
			if ctx.Err() != nil {
				t.Errorf("clean up context must outlive the parent: %v", ctx.Err())
			}
			close(called)
			return nil
		},
	})

	cancel()

	select {
	case <-wait:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}

	select {
	case <-called:
	default:
		t.Error("expected clean up operation to run")
	}
}
