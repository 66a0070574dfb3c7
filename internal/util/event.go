package util

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// ProcessWithTimeout runs callback with a context bounded by timeout and gives up waiting
// once it expires. The callback keeps running in the background until it observes ctx.
func ProcessWithTimeout[T any](ctx context.Context, timeout time.Duration, item T, callback func(ctx context.Context, item T) error) error {
	if timeout <= 0 {
		return callback(ctx, item)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- callback(ctx, item)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("processing timeout after %s: %w", timeout, ctx.Err())
	case err := <-done:
		return err
	}
}

func PublishEvent(js nats.JetStreamContext, subject string, data any, opts ...nats.PubOpt) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = js.Publish(subject, payload, opts...)
	if err != nil {
		return err
	}

	return nil
}
