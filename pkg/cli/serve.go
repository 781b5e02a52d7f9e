package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/himeno-lab/kotori/pkg/cli/config"
	httpctrl "github.com/himeno-lab/kotori/pkg/controller/http"
	"github.com/himeno-lab/kotori/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var scheduleCfg config.Schedule
	var speechCfg config.Speech
	var visionCfg config.Vision
	var whatsappCfg config.WhatsApp

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("KOTORI_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, scheduleCfg.Flags()...)
	flags = append(flags, speechCfg.Flags()...)
	flags = append(flags, visionCfg.Flags()...)
	flags = append(flags, whatsappCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the webhook HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			rt, err := buildRuntime(ctx, &geminiCfg, &repoCfg, &scheduleCfg, &speechCfg, &visionCfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			var opts []httpctrl.Options
			if whatsappCfg.IsConfigured() {
				waClient, err := whatsappCfg.Configure()
				if err != nil {
					return goerr.Wrap(err, "failed to configure WhatsApp client")
				}
				handler, err := httpctrl.NewWebhookHandler(
					whatsappCfg.VerifyToken(),
					rt.graph,
					waClient,
					rt.transcriber,
					rt.describer,
				)
				if err != nil {
					return goerr.Wrap(err, "failed to create webhook handler")
				}
				opts = append(opts, httpctrl.WithWebhook(handler))
				logging.Default().Info("WhatsApp webhook enabled")
			} else {
				logging.Default().Warn("WhatsApp not configured, serving health check only")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(opts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eg, ctx := errgroup.WithContext(ctx)
			eg.Go(func() error {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return goerr.Wrap(err, "HTTP server failed")
				}
				return nil
			})
			eg.Go(func() error {
				<-ctx.Done()
				logging.Default().Info("Shutting down HTTP server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown HTTP server")
				}
				return nil
			})

			return eg.Wait()
		},
	}
}
