package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/cli/config"
	"github.com/urfave/cli/v3"
)

// CmdGenerateConfig returns the generate-config command
func CmdGenerateConfig() *cli.Command {
	return &cli.Command{
		Name:    "generate-config",
		Aliases: []string{"g"},
		Usage:   "Generate configuration file templates",
		Commands: []*cli.Command{
			cmdGenerateLLMProviders(),
		},
	}
}

func cmdGenerateLLMProviders() *cli.Command {
	var (
		outputPath string
		force      bool
	)

	return &cli.Command{
		Name:    "llm-providers",
		Aliases: []string{"llm"},
		Usage:   "Generate LLM providers configuration template",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "output",
				Usage:       "Output file path",
				Value:       "providers.yaml",
				Destination: &outputPath,
			},
			&cli.BoolFlag{
				Name:        "force",
				Usage:       "Overwrite existing file",
				Destination: &force,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := os.Stat(outputPath); err == nil && !force {
				return goerr.New("file already exists, use --force to overwrite", goerr.V("path", outputPath))
			}

			if err := config.GenerateConfigFile(outputPath); err != nil {
				return err
			}

			ctxlog.From(ctx).Info("LLM providers configuration template generated", "path", outputPath)

			w := cmd.Root().Writer
			fmt.Fprintf(w, "LLM providers configuration template generated: %s\n", outputPath)
			fmt.Fprintln(w, "Edit the providers, defaults, fallback and judge sections, then pass the file")
			fmt.Fprintln(w, "with --llm-config or SHIKIGAMI_LLM_CONFIG. API keys go in flags or env vars.")

			return nil
		},
	}
}
