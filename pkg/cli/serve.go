package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/ghrelay/pkg/cli/config"
	controller "github.com/m-mizutani/ghrelay/pkg/controller/http"
	"github.com/m-mizutani/ghrelay/pkg/usecase"
)

func cmdServe() *cli.Command {
	var (
		fileCfg      config.File
		serverCfg    config.Server
		githubCfg    config.GitHub
		slackCfg     config.Slack
		shortenerCfg config.Shortener
		sentryCfg    config.Sentry
	)

	var flags []cli.Flag
	flags = append(flags, fileCfg.Flags()...)
	flags = append(flags, serverCfg.Flags()...)
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, shortenerCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Connect to Slack and start the webhook server",
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := fileCfg.Apply(c); err != nil {
				return nil, err
			}
			if err := githubCfg.Validate(); err != nil {
				return nil, err
			}
			if err := slackCfg.Validate(); err != nil {
				return nil, err
			}
			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting ghrelay",
				slog.Any("server", serverCfg),
				slog.Any("slack", slackCfg),
				slog.Any("shortener", shortenerCfg),
			)

			flush, err := sentryCfg.Configure()
			if err != nil {
				return err
			}
			defer flush()

			prefixes, err := serverCfg.Prefixes()
			if err != nil {
				return err
			}

			// The relay cannot run without a destination: login and channel lookup are fatal
			slackClient := slackCfg.NewClient()
			defer slackClient.Close()

			session := usecase.NewSession(slackClient, slackCfg.Channel)
			if err := session.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start chat session")
			}
			defer session.Close()

			sender := usecase.NewChannelSender(slackClient, session, slackCfg.SenderOptions()...)
			renderer := usecase.NewRenderer(shortenerCfg.New())
			dispatcher := usecase.NewDispatcher(renderer, sender)

			server, err := controller.NewServer(
				ctx,
				dispatcher,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(githubCfg.WebhookSecret),
				controller.WithWebhookPath(serverCfg.WebhookPath),
				controller.WithAllowedCIDRs(prefixes),
				controller.WithTrustProxy(serverCfg.TrustProxy),
				controller.WithSessionStatus(func() string {
					return session.State().String()
				}),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Info("HTTP server starting",
					slog.String("addr", serverCfg.Addr),
					slog.String("webhook_path", serverCfg.WebhookPath),
				)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					serverErr <- goerr.Wrap(err, "HTTP server failed")
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			case err := <-serverErr:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
