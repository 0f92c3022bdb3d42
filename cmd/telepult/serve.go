package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/telepult-io/telepult/internal/bot"
	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/eventlog"
	"github.com/telepult-io/telepult/internal/guard"
	"github.com/telepult-io/telepult/internal/helper"
	"github.com/telepult-io/telepult/internal/mailbox"
	"github.com/telepult-io/telepult/internal/producer"
	"github.com/telepult-io/telepult/internal/screenshot"
	"github.com/telepult-io/telepult/internal/status"
	"github.com/telepult-io/telepult/internal/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and its background loops",
		RunE:  runServe,
	}
	config.SetupFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.BotToken == "" {
		return fmt.Errorf("bot-token is required")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.OpenBadger(cfg.DatabaseDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	events := eventlog.New(st)
	mbox := mailbox.New(st)
	issuanceGuard := guard.New(config.CooldownWindow)
	prod := producer.New(mbox, issuanceGuard, events)
	reader := status.NewReader(st)

	if err := prod.Rehydrate(ctx); err != nil {
		return err
	}

	front, err := bot.New(cfg, prod, reader, events)
	if err != nil {
		return err
	}
	consumer := screenshot.NewConsumer(st, front, fmt.Sprint(cfg.OperatorChat))

	wg := sync.WaitGroup{}

	runLoop := func(name string, interval time.Duration, cycle func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runEvery(ctx, name, interval, cycle)
		}()
	}

	runLoop("screenshot-poll", cfg.ScreenshotPoll(), func(ctx context.Context) error {
		_, err := consumer.Poll(ctx)
		return err
	})
	runLoop("retention", cfg.Retention(), func(ctx context.Context) error {
		removed, err := mbox.Cleanup(ctx, time.Now())
		if err != nil {
			return err
		}
		if removed > 0 {
			slog.Info("retention removed old commands", "count", removed)
		}
		issuanceGuard.Sweep(config.CooldownSweepHorizon)
		// keep the executed cache in step with what the agent completed
		return prod.Rehydrate(ctx)
	})
	runLoop("log-flush", cfg.LogFlush(), events.Flush)

	wg.Add(1)
	go func() {
		defer wg.Done()
		st.RunGC(ctx, config.DatabaseGCInterval, config.DBGCThreshold)
	}()

	err = front.Run(ctx)
	cancel()
	wg.Wait()

	// last chance for buffered audit events to reach the store
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if ferr := events.Flush(flushCtx); ferr != nil {
		slog.Warn("final log flush failed", "error", ferr)
	}

	slog.Warn("shutting down")
	return err
}

// runEvery runs cycle on a jittered interval until the context closes. An
// error in one cycle is logged and the loop sleeps through to the next tick;
// loops never take each other down.
func runEvery(ctx context.Context, name string, interval time.Duration, cycle func(context.Context) error) {
	timer := time.NewTimer(helper.Jitter(interval, config.IntervalJitter))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := cycle(ctx); err != nil {
				slog.Warn("background cycle failed", "loop", name, "error", err)
			}
			timer.Reset(helper.Jitter(interval, config.IntervalJitter))
		}
	}
}
