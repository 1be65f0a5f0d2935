package cli

import (
	"context"
	"io"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/cli/config"
	"github.com/m-mizutani/shikigami/pkg/cli/tools"
	"github.com/m-mizutani/shikigami/pkg/utils/errors"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string) error {
	app := newApp(nil)

	if err := app.Run(ctx, args); err != nil {
		errors.Handle(ctx, goerr.Wrap(err, "failed to run app"))
		return err
	}

	return nil
}

// newApp builds the command tree. Command output goes to w, or stdout when nil.
func newApp(w io.Writer) *cli.Command {
	var (
		loggerCfg   config.Logger
		runtimeCfg  runtimeConfig
		closeLogger = func() {}
	)

	flags := append(loggerCfg.Flags(), runtimeCfg.Flags()...)

	return &cli.Command{
		Name:   "shikigami",
		Usage:  "Agent runtime, prompt store, memory store and evaluation harness",
		Flags:  flags,
		Writer: w,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closeLogger = closer

			ctx = ctxlog.With(ctx, logger)
			ctxlog.From(ctx).Debug("base options", "logger", loggerCfg)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			closeLogger()
			return nil
		},
		Commands: []*cli.Command{
			cmdRun(&runtimeCfg),
			cmdPrompt(&runtimeCfg),
			cmdMemory(&runtimeCfg),
			cmdEval(&runtimeCfg),
			{
				Name:     "tool",
				Aliases:  []string{"t"},
				Usage:    "Utility tools",
				Commands: []*cli.Command{tools.CmdGenerateConfig()},
			},
		},
	}
}
