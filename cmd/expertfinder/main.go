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
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/expertfinder"
	"github.com/poiesic/expertfinder/config"
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/ingestion"
	"github.com/poiesic/expertfinder/reembed"
	"github.com/poiesic/expertfinder/retrieval"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "expertfinder",
		Usage: "Find and rank subject matter experts from harvested profiles",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				EnvVars: []string{"EXPERTFINDER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
			&cli.BoolFlag{
				Name:  "in-memory",
				Usage: "Use a throwaway in-memory store",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Normalize, embed and store harvested records",
				Action:    ingestCommand,
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Record source (scholar, linkedin)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "JSON array of raw records, or - for stdin",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "checkpoint",
						Usage: "Create a checkpoint after storing",
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Text appended to the checkpoint message",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank experts for a query",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max-results",
						Aliases: []string{"n"},
						Usage:   "Maximum number of experts to return (defaults to retrieval.max_results)",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Restrict results to one source",
					},
					&cli.BoolFlag{
						Name:  "summarize",
						Usage: "Summarize each candidate before ranking",
					},
					&cli.BoolFlag{
						Name:  "hybrid",
						Usage: "Combine keyword and vector retrieval",
					},
				},
			},
			{
				Name:      "checkpoint",
				Usage:     "Snapshot the current document set",
				ArgsUsage: "<message>",
				Action:    checkpointCommand,
			},
			{
				Name:   "history",
				Usage:  "List checkpoints, newest first",
				Action: historyCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of versions to list",
						Value: 10,
					},
				},
			},
			{
				Name:      "restore",
				Usage:     "Roll the document set back to a checkpoint",
				ArgsUsage: "<commit-id>",
				Action:    restoreCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show collection counts and credibility statistics",
				Action: statsCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "update",
						Usage: "Recompute credibility statistics when profiles changed",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Recompute credibility statistics unconditionally",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Replace every stored embedding using the configured embedder",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to process in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only reembed one source",
					},
				},
			},
		},
	}
}

// loadConfig reads the configuration file and applies global overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Storage.Path = db
	}
	if c.Bool("in-memory") {
		cfg.Storage.InMemory = true
	}
	return cfg, nil
}

// openFinder is replaced in tests.
var openFinder = func(ctx context.Context, cfg *config.Config) (*expertfinder.Finder, error) {
	return expertfinder.Open(ctx, cfg)
}

func withFinder(c *cli.Context, fn func(ctx context.Context, f *expertfinder.Finder) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	f, err := openFinder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open finder: %w", err)
	}
	defer f.Close()
	return fn(ctx, f)
}

func parseSource(name string) (core.Source, error) {
	if name == "" {
		return "", nil
	}
	src, ok := core.ParseSource(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ingestion.ErrUnknownSource, name)
	}
	return src, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ingestCommand(c *cli.Context) error {
	src, err := parseSource(c.String("source"))
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if path := c.String("file"); path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer file.Close()
		in = file
	}
	raws, err := ingestion.DecodeRecords(in)
	if err != nil {
		return err
	}

	return withFinder(c, func(ctx context.Context, f *expertfinder.Finder) error {
		res, err := f.Ingest(ctx, src, raws, &ingestion.IngestOptions{
			Checkpoint:  c.Bool("checkpoint"),
			Description: c.String("description"),
		})
		if res != nil {
			if werr := writeJSON(c.App.Writer, res); werr != nil {
				return werr
			}
		}
		if err != nil {
			return fmt.Errorf("ingest finished with errors: %w", err)
		}
		return nil
	})
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}
	src, err := parseSource(c.String("source"))
	if err != nil {
		return err
	}

	return withFinder(c, func(ctx context.Context, f *expertfinder.Finder) error {
		resp, err := f.Search(ctx, retrieval.Request{
			Query:      query,
			MaxResults: c.Int("max-results"),
			Source:     src,
		}, expertfinder.SearchOptions{
			Summarize: c.Bool("summarize"),
			Hybrid:    c.Bool("hybrid"),
		})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return writeJSON(c.App.Writer, resp)
	})
}

func checkpointCommand(c *cli.Context) error {
	message := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if message == "" {
		return fmt.Errorf("a checkpoint message is required")
	}
	return withFinder(c, func(ctx context.Context, f *expertfinder.Finder) error {
		version, err := f.Checkpoint(ctx, message)
		if err != nil {
			return fmt.Errorf("checkpoint failed: %w", err)
		}
		return writeJSON(c.App.Writer, version)
	})
}

func historyCommand(c *cli.Context) error {
	return withFinder(c, func(ctx context.Context, f *expertfinder.Finder) error {
		versions, err := f.History(ctx, c.Int("limit"))
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, versions)
	})
}

func restoreCommand(c *cli.Context) error {
	commitID := c.Args().First()
	if commitID == "" {
		return fmt.Errorf("a commit id is required")
	}
	return withFinder(c, func(ctx context.Context, f *expertfinder.Finder) error {
		if err := f.Restore(ctx, commitID); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Fprintf(c.App.ErrWriter, "Restored %s\n", commitID)
		return nil
	})
}

func statsCommand(c *cli.Context) error {
	return withFinder(c, func(ctx context.Context, f *expertfinder.Finder) error {
		if c.Bool("update") || c.Bool("force") {
			_, updated, err := f.UpdateCredibilityStats(ctx, c.Bool("force"))
			if err != nil {
				return fmt.Errorf("failed to update statistics: %w", err)
			}
			if !updated {
				fmt.Fprintln(c.App.ErrWriter, "Credibility statistics already current")
			}
		}
		overview, err := f.Stats(ctx)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, overview)
	})
}

func reembedCommand(c *cli.Context) error {
	src, err := parseSource(c.String("source"))
	if err != nil {
		return err
	}
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		Source:         src,
	}
	if err := reembedConfig.Validate(); err != nil {
		return err
	}

	return withFinder(c, func(ctx context.Context, f *expertfinder.Finder) error {
		summary, err := f.Reembed(ctx, reembedConfig, c.App.ErrWriter)
		if err != nil {
			return fmt.Errorf("reembedding failed: %w", err)
		}
		return writeJSON(c.App.Writer, summary)
	})
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
