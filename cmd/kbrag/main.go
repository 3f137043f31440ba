package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/atenda/kb-rag/cmd/kbrag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "path to the environment file",
		Value: ".env",
	}

	app := &cli.Command{
		Name:  "kbrag",
		Usage: "knowledge base chatbot backend",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the HTTP server",
				Flags: []cli.Flag{
					envFlag,
					&cli.IntFlag{
						Name:  "port",
						Usage: "HTTP port (overrides HTTP_PORT)",
					},
				},
				Action: commands.ServeAction,
			},
			{
				Name:   "migrate",
				Usage:  "apply the database schema",
				Flags:  []cli.Flag{envFlag},
				Action: commands.MigrateAction,
			},
			{
				Name:  "index",
				Usage: "retrieval index maintenance",
				Commands: []*cli.Command{
					{
						Name:   "rebuild",
						Usage:  "re-chunk and re-embed every approved document",
						Flags:  []cli.Flag{envFlag},
						Action: commands.IndexRebuildAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
