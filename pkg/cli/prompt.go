package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/urfave/cli/v3"
)

func cmdPrompt(rt *runtimeConfig) *cli.Command {
	return &cli.Command{
		Name:    "prompt",
		Aliases: []string{"p"},
		Usage:   "Manage versioned prompt configs",
		Commands: []*cli.Command{
			cmdPromptSeed(rt),
			cmdPromptList(rt),
			cmdPromptShow(rt),
			cmdPromptHistory(rt),
			cmdPromptUpdate(rt),
			cmdPromptRollback(rt),
		},
	}
}

func operatorFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "by",
		Usage:       "Operator recorded as the author of the change",
		Sources:     cli.EnvVars("SHIKIGAMI_OPERATOR", "USER"),
		Value:       "cli",
		Destination: dst,
	}
}

func cmdPromptSeed(rt *runtimeConfig) *cli.Command {
	var (
		agentIDs []string
		who      string
	)

	return &cli.Command{
		Name:  "seed",
		Usage: "Create version 1 of the prompt config from the catalog defaults",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "agent",
				Aliases:     []string{"a"},
				Usage:       "Agent ID to seed, repeatable (default: every catalog agent)",
				Destination: &agentIDs,
			},
			operatorFlag(&who),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			defs := svc.catalog.List()
			if len(agentIDs) > 0 {
				defs = make([]*agent.Definition, 0, len(agentIDs))
				for _, id := range agentIDs {
					def, err := svc.catalog.Get(id)
					if err != nil {
						return err
					}
					defs = append(defs, def)
				}
			}

			var created []*agent.PromptConfig
			for _, def := range defs {
				cfg := &agent.PromptConfig{
					AgentID:      def.ID,
					SystemPrompt: def.SystemPrompt,
					Templates:    agent.CloneTemplates(def.Templates),
					ModelOptions: def.Model.Clone(),
					ChangeNotes:  "seeded from catalog",
				}

				c, err := svc.prompts.Create(ctx, cfg, who)
				if goerr.HasTag(err, apperr.ErrTagConflict) {
					ctxlog.From(ctx).Info("prompt config already exists, skipped", "agent_id", def.ID)
					continue
				}
				if err != nil {
					return err
				}
				created = append(created, c)
			}

			return printJSON(cmd.Root().Writer, created)
		},
	}
}

func cmdPromptList(rt *runtimeConfig) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print every live prompt config",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			configs, err := svc.prompts.List(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, configs)
		},
	}
}

func cmdPromptShow(rt *runtimeConfig) *cli.Command {
	var (
		agentID string
		version int
	)

	return &cli.Command{
		Name:  "show",
		Usage: "Print the live prompt config, or one version of it",
		Flags: []cli.Flag{
			agentFlag(&agentID),
			&cli.IntFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "Version to print (default: live config)",
				Destination: &version,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			if version > 0 {
				v, err := svc.prompts.GetVersion(ctx, agentID, version)
				if err != nil {
					return err
				}
				return printJSON(cmd.Root().Writer, v)
			}

			cfg, err := svc.prompts.GetActive(ctx, agentID)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, cfg)
		},
	}
}

func cmdPromptHistory(rt *runtimeConfig) *cli.Command {
	var (
		agentID string
		limit   int
	)

	return &cli.Command{
		Name:  "history",
		Usage: "List former versions, newest first",
		Flags: []cli.Flag{
			agentFlag(&agentID),
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "Maximum number of versions (0: all)",
				Value:       10,
				Destination: &limit,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			versions, err := svc.prompts.GetHistory(ctx, agentID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, versions)
		},
	}
}

func cmdPromptUpdate(rt *runtimeConfig) *cli.Command {
	var (
		agentID          string
		systemPrompt     string
		systemPromptFile string
		templates        []string
		provider         string
		model            string
		temperature      float64
		maxTokens        int
		active           bool
		notes            string
		who              string
	)

	return &cli.Command{
		Name:  "update",
		Usage: "Apply a partial change and archive the current version",
		Flags: []cli.Flag{
			agentFlag(&agentID),
			&cli.StringFlag{
				Name:        "system-prompt",
				Usage:       "New system prompt",
				Destination: &systemPrompt,
			},
			&cli.StringFlag{
				Name:        "system-prompt-file",
				Usage:       "File holding the new system prompt",
				Destination: &systemPromptFile,
			},
			&cli.StringSliceFlag{
				Name:        "template",
				Aliases:     []string{"t"},
				Usage:       "Template as name=body, repeatable. An empty body removes the template",
				Destination: &templates,
			},
			&cli.StringFlag{
				Name:        "provider",
				Destination: &provider,
			},
			&cli.StringFlag{
				Name:        "model",
				Destination: &model,
			},
			&cli.FloatFlag{
				Name:        "temperature",
				Destination: &temperature,
			},
			&cli.IntFlag{
				Name:        "max-tokens",
				Destination: &maxTokens,
			},
			&cli.BoolFlag{
				Name:        "active",
				Usage:       "Activate or deactivate the live config (--active=false)",
				Destination: &active,
			},
			&cli.StringFlag{
				Name:        "notes",
				Aliases:     []string{"m"},
				Usage:       "Change notes",
				Destination: &notes,
			},
			operatorFlag(&who),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			delta := &agent.PromptDelta{}

			switch {
			case systemPromptFile != "":
				data, err := os.ReadFile(filepath.Clean(systemPromptFile))
				if err != nil {
					return goerr.Wrap(err, "failed to read system prompt file", goerr.V("path", systemPromptFile))
				}
				s := string(data)
				delta.SystemPrompt = &s
			case cmd.IsSet("system-prompt"):
				delta.SystemPrompt = &systemPrompt
			}

			if len(templates) > 0 {
				parsed, err := parseTemplates(templates)
				if err != nil {
					return err
				}
				delta.Templates = parsed
			}

			opts := agent.ModelOptions{Provider: provider, Model: model}
			if cmd.IsSet("temperature") {
				opts.Temperature = &temperature
			}
			if cmd.IsSet("max-tokens") {
				opts.MaxTokens = &maxTokens
			}
			if !opts.IsZero() {
				delta.ModelOptions = &opts
			}

			if cmd.IsSet("active") {
				delta.IsActive = &active
			}

			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			cfg, err := svc.prompts.UpdateWithHistory(ctx, agentID, delta, who, notes)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, cfg)
		},
	}
}

func cmdPromptRollback(rt *runtimeConfig) *cli.Command {
	var (
		agentID string
		target  int
		notes   string
		who     string
	)

	return &cli.Command{
		Name:  "rollback",
		Usage: "Make a former version live again under a new version number",
		Flags: []cli.Flag{
			agentFlag(&agentID),
			&cli.IntFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "Version to restore",
				Required:    true,
				Destination: &target,
			},
			&cli.StringFlag{
				Name:        "notes",
				Aliases:     []string{"m"},
				Usage:       "Change notes",
				Destination: &notes,
			},
			operatorFlag(&who),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			cfg, err := svc.prompts.RollbackToVersion(ctx, agentID, target, who, notes)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, cfg)
		},
	}
}

func agentFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "agent",
		Aliases:     []string{"a"},
		Usage:       "Agent ID",
		Required:    true,
		Destination: dst,
	}
}

// parseTemplates splits name=body pairs. The body may itself contain '='.
func parseTemplates(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, body, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, goerr.New("template must be name=body",
				goerr.T(apperr.ErrTagInvalidInput), goerr.V("template", p))
		}
		out[name] = body
	}
	return out, nil
}
