package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kapu/gemini-telegram-bot-go/internal/config"
	"github.com/kapu/gemini-telegram-bot-go/internal/di"
)

func main() {
	app, err := di.InitializeApp()
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}

	config.LogEnvStatus(app.Config, app.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 웹훅이 남아 있으면 getUpdates 가 409로 거절되므로 먼저 제거한다.
	webhookCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := app.Telegram.DeleteWebhook(webhookCtx, true); err != nil {
		app.Logger.Warn("delete_webhook_failed", "err", err)
	}
	cancel()

	app.Logger.Info(
		"bot_start",
		"model", app.Config.Gemini.Model,
		"daily_limit", app.Config.Quota.DailyMessageLimit,
		"http_port", app.Config.HTTP.Port,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		app.Logger.Info("poller_start")
		return app.Poller.Run(groupCtx, app.Dispatcher)
	})

	group.Go(func() error {
		return app.Reporter.Run(groupCtx)
	})

	group.Go(func() error {
		app.Logger.Info("http_server_start", "host", app.Config.HTTP.Host, "port", app.Config.HTTP.Port)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("http_server_shutdown_failed", "err", err)
			_ = app.Server.Close()
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error("bot_exit_with_error", "err", err)
		return
	}
	app.Logger.Info("bot_stopped")
}
