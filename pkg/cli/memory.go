package cli

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/memory"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/urfave/cli/v3"
)

func cmdMemory(rt *runtimeConfig) *cli.Command {
	return &cli.Command{
		Name:    "memory",
		Aliases: []string{"m"},
		Usage:   "Inspect and maintain agent memories",
		Commands: []*cli.Command{
			cmdMemoryPut(rt),
			cmdMemoryList(rt),
			cmdMemoryClear(rt),
			cmdMemorySweep(rt),
			cmdMemoryConsolidate(rt),
		},
	}
}

func scopeFlags(scope *memory.Scope) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "campaign-id",
			Usage:       "Campaign part of the memory scope",
			Destination: &scope.CampaignID,
		},
		&cli.StringFlag{
			Name:        "artist-name",
			Usage:       "Artist part of the memory scope",
			Destination: &scope.ArtistName,
		},
	}
}

func cmdMemoryPut(rt *runtimeConfig) *cli.Command {
	var (
		req   memory.UpsertRequest
		value string
	)

	return &cli.Command{
		Name:  "put",
		Usage: "Insert or replace one memory",
		Flags: append([]cli.Flag{
			agentFlag(&req.AgentID),
			&cli.StringFlag{
				Name:        "type",
				Usage:       "Memory type",
				Required:    true,
				Destination: &req.MemoryType,
			},
			&cli.StringFlag{
				Name:        "key",
				Required:    true,
				Destination: &req.Key,
			},
			&cli.StringFlag{
				Name:        "value",
				Usage:       "Value as JSON",
				Required:    true,
				Destination: &value,
			},
			&cli.FloatFlag{
				Name:        "importance",
				Value:       0.5,
				Destination: &req.Importance,
			},
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "Lifetime of the memory (0: never expires)",
				Destination: &req.TTL,
			},
		}, scopeFlags(&req.Scope)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := json.Unmarshal([]byte(value), &req.Value); err != nil {
				return goerr.Wrap(err, "value is not valid JSON", goerr.T(apperr.ErrTagInvalidInput))
			}

			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			rec, err := svc.memories.Upsert(ctx, &req)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, rec)
		},
	}
}

func cmdMemoryList(rt *runtimeConfig) *cli.Command {
	var (
		q       memory.Query
		scope   memory.Scope
		allScopes bool
	)

	return &cli.Command{
		Name:  "list",
		Usage: "Recall memories ordered by importance and recency",
		Flags: append([]cli.Flag{
			agentFlag(&q.AgentID),
			&cli.StringSliceFlag{
				Name:        "type",
				Usage:       "Memory type filter, repeatable",
				Destination: &q.MemoryTypes,
			},
			&cli.StringSliceFlag{
				Name:        "key",
				Usage:       "Key filter, repeatable",
				Destination: &q.Keys,
			},
			&cli.FloatFlag{
				Name:        "min-importance",
				Destination: &q.MinImportance,
			},
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Value:       20,
				Destination: &q.Limit,
			},
			&cli.BoolFlag{
				Name:        "all-scopes",
				Usage:       "Ignore the scope flags and list every scope",
				Destination: &allScopes,
			},
		}, scopeFlags(&scope)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if !allScopes {
				q.Scope = &scope
			}

			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			records, err := svc.memories.Query(ctx, &q)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, records)
		},
	}
}

func cmdMemoryClear(rt *runtimeConfig) *cli.Command {
	var (
		agentID   string
		scope     memory.Scope
		key       string
		allScopes bool
	)

	return &cli.Command{
		Name:  "clear",
		Usage: "Delete one memory by key, or every memory of a scope",
		Flags: append([]cli.Flag{
			agentFlag(&agentID),
			&cli.StringFlag{
				Name:        "key",
				Usage:       "Delete only this key",
				Destination: &key,
			},
			&cli.BoolFlag{
				Name:        "all-scopes",
				Usage:       "Delete memories of every scope",
				Destination: &allScopes,
			},
		}, scopeFlags(&scope)...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			if key != "" {
				if err := svc.memories.Delete(ctx, agentID, scope, key); err != nil {
					return err
				}
				return printJSON(cmd.Root().Writer, map[string]any{"deleted": 1})
			}

			target := &scope
			if allScopes {
				target = nil
			}
			n, err := svc.memories.ClearAll(ctx, agentID, target)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, map[string]any{"deleted": n})
		},
	}
}

func cmdMemorySweep(rt *runtimeConfig) *cli.Command {
	var (
		watch    bool
		interval time.Duration
	)

	return &cli.Command{
		Name:  "sweep",
		Usage: "Purge expired memories",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "watch",
				Aliases:     []string{"w"},
				Usage:       "Keep sweeping every --interval until interrupted",
				Destination: &watch,
			},
			&cli.DurationFlag{
				Name:        "interval",
				Sources:     cli.EnvVars("SHIKIGAMI_MEMORY_SWEEP_INTERVAL"),
				Value:       time.Hour,
				Destination: &interval,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			n, err := svc.memories.Sweep(ctx)
			if err != nil {
				return err
			}
			if !watch {
				return printJSON(cmd.Root().Writer, map[string]any{"deleted": n})
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctxlog.From(ctx).Info("memory sweep worker started", "interval", interval)
			svc.memories.StartSweepWorker(ctx, interval)
			<-ctx.Done()
			ctxlog.From(ctx).Info("memory sweep worker stopped")
			return nil
		},
	}
}

func cmdMemoryConsolidate(rt *runtimeConfig) *cli.Command {
	var (
		agentID    string
		memoryType string
		maxRecords int
	)

	return &cli.Command{
		Name:  "consolidate",
		Usage: "Evict the least valuable memories of one type down to --max",
		Flags: []cli.Flag{
			agentFlag(&agentID),
			&cli.StringFlag{
				Name:        "type",
				Usage:       "Memory type",
				Required:    true,
				Destination: &memoryType,
			},
			&cli.IntFlag{
				Name:        "max",
				Usage:       "Number of records to keep",
				Value:       100,
				Destination: &maxRecords,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			n, err := svc.memories.Consolidate(ctx, agentID, memoryType, maxRecords)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, map[string]any{"deleted": n})
		},
	}
}
