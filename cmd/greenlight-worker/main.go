package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/verdantlabs/greenlight/pkg/cmd"
	"github.com/verdantlabs/greenlight/pkg/log"
	"github.com/verdantlabs/greenlight/pkg/otelhelper"
)

func main() {
	logger := log.WithModule("worker")

	command := &cli.Command{
		Name:                  "greenlight-worker",
		Usage:                 "Execute approved workflows from lifecycle events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "oracle-url",
				Usage:    "Base URL of the decision oracle service",
				Required: true,
				Sources:  cli.EnvVars("ORACLE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing executor plugins",
				Value:   "",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.IntFlag{
				Name:    "retention-days",
				Usage:   "Days to keep execution records; 0 disables the sweeper",
				Value:   0,
				Sources: cli.EnvVars("RETENTION_DAYS"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron schedule for the retention sweep",
				Value:   "",
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export for workflow execution",
				Value:   false,
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Greenlight worker")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var tracer trace.Tracer

			if command.Bool("tracing") {
				t, err := otelhelper.NewTracer(ctx, "greenlight-worker")
				if err != nil {
					return err
				}

				tracer = t
			}

			registry, err := cmd.NewRegistry(logger, command.String("plugins-path"))
			if err != nil {
				return err
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "greenlight-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			worker := NewWorker(
				logger,
				persistence,
				registry,
				eventBus,
				command.String("oracle-url"),
				tracer,
				time.Duration(command.Int("retention-days"))*24*time.Hour,
				command.String("retention-schedule"),
			)

			return worker.Run(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
