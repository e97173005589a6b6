// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "imgfeat",
		Usage: "Concurrent image loading and feature extraction",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML or TOML config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file loaded before reading IMGFEAT_* variables",
				Value: ".env",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Featurize image references read line by line from stdin",
				Action: runCommand,
				Flags:  append(pipelineFlags(), sinkFlags()...),
			},
			{
				Name:      "batch",
				Usage:     "Featurize references listed in files, in chunks",
				ArgsUsage: "[FILE...]",
				Action:    batchCommand,
				Flags:     append(pipelineFlags(), sinkFlags()...),
			},
			{
				Name:   "refeaturize",
				Usage:  "Re-run a backend over every image stored in a database",
				Action: refeaturizeCommand,
				Flags:  append(pipelineFlags(), dbFlag(true)),
			},
			{
				Name:   "similar",
				Usage:  "List stored images that look like an image",
				Action: similarCommand,
				Flags: append(featurizeFlags(),
					dbFlag(true),
					&cli.StringFlag{
						Name:     "image",
						Aliases:  []string{"i"},
						Usage:    "Reference of the query image",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Minimum similarity score (-1 to 1)",
						Value: 0.5,
					},
				),
			},
			{
				Name:   "labels",
				Usage:  "List stored images with detected objects matching a query",
				Action: labelsCommand,
				Flags: []cli.Flag{
					dbFlag(true),
					&cli.StringFlag{
						Name:    "backend",
						Aliases: []string{"b"},
						Usage:   "Backend whose detections are searched",
						Value:   "objects",
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Words to match against object labels",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				},
			},
		},
	}
}

func dbFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: required,
	}
}

func featurizeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Featurizer backend (dense, crow, objects, faces)",
			Value:   "dense",
		},
		&cli.IntFlag{
			Name:  "target-dim",
			Usage: "Side length images are resized to",
			Value: 224,
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "Vision service host URL (objects backend)",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "Vision model name (objects backend)",
			Value: "llava:7b",
		},
		&cli.StringFlag{
			Name:  "cascade",
			Usage: "Path to a pigo face cascade (faces backend)",
		},
		&cli.Float64Flag{
			Name:  "min-confidence",
			Usage: "Drop detections below this confidence",
			Value: 0.25,
		},
	}
}

func pipelineFlags() []cli.Flag {
	return append(featurizeFlags(),
		&cli.IntFlag{
			Name:  "io-threads",
			Usage: "Number of concurrent image loaders",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Idle time after which the input is treated as exhausted",
			Value: defaultTimeout,
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "Number of references loaded together in batch mode",
			Value: 10000,
		},
		&cli.IntFlag{
			Name:  "print-interval",
			Usage: "Print progress every N images",
			Value: 100,
		},
	)
}

func sinkFlags() []cli.Flag {
	return []cli.Flag{
		dbFlag(false),
		&cli.StringFlag{
			Name:  "redis-addr",
			Usage: "Store artifacts in Redis at this address",
		},
		&cli.BoolFlag{
			Name:  "stdout",
			Usage: "Also write artifacts as JSON lines to stdout when another sink is set",
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
