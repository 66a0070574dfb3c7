package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

type operation func(ctx context.Context) error

// shutdownStage is a set of clean up operations that may run concurrently. Stages run in
// order so producers are stopped before the connections they write to.
type shutdownStage map[string]operation

// gracefulShutdown waits for a termination signal and then runs the clean up stages.
func gracefulShutdown(ctx context.Context, timeout time.Duration, stages ...shutdownStage) <-chan struct{} {
	wait := make(chan struct{})
	go func() {
		s := make(chan os.Signal, 1)
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(s)

		select {
		case sig := <-s:
			logrus.WithField("signal", sig.String()).Info("shutting down")
		case <-ctx.Done():
			logrus.Info("shutting down")
		}

		// force exit if the clean up hangs
		timeoutFunc := time.AfterFunc(timeout, func() {
			logrus.Error(fmt.Sprintf("timeout %d ms has been elapsed, force exit", timeout.Milliseconds()))
			os.Exit(0)
		})
		defer timeoutFunc.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		runShutdownStages(shutdownCtx, stages...)

		close(wait)
	}()

	return wait
}

func runShutdownStages(ctx context.Context, stages ...shutdownStage) {
	for _, stage := range stages {
		var wg sync.WaitGroup
		for key, op := range stage {
			if op == nil {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()

				logrus.Info(fmt.Sprintf("cleaning up: %s", key))
				if err := op(ctx); err != nil {
					logrus.Error(fmt.Sprintf("%s: clean up failed: %s", key, err.Error()))
					return
				}

				logrus.Info(fmt.Sprintf("%s was shutdown gracefully", key))
			}()
		}
		wg.Wait()
	}
}
