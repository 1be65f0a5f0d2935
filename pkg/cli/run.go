package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/agent"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/m-mizutani/shikigami/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdRun(rt *runtimeConfig) *cli.Command {
	var (
		agentID    string
		input      string
		inputFile  string
		template   string
		criteria   string
		noEval     bool
		images     []string
		invocation agent.InvocationContext
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Execute an agent once and print its result",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "agent",
				Aliases:     []string{"a"},
				Usage:       "Agent ID",
				Required:    true,
				Destination: &agentID,
			},
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "Agent input as JSON",
				Destination: &input,
			},
			&cli.StringFlag{
				Name:        "input-file",
				Usage:       "File holding the agent input as JSON",
				Destination: &inputFile,
			},
			&cli.StringFlag{
				Name:        "template",
				Usage:       "Prompt template name (default: the agent's default template)",
				Destination: &template,
			},
			&cli.StringFlag{
				Name:        "criteria",
				Usage:       "Extra criteria for the automatic evaluation",
				Destination: &criteria,
			},
			&cli.BoolFlag{
				Name:        "no-eval",
				Usage:       "Skip the automatic evaluation",
				Destination: &noEval,
			},
			&cli.StringSliceFlag{
				Name:        "image",
				Usage:       "Image attachment path, repeatable",
				Destination: &images,
			},
			&cli.StringFlag{
				Name:        "session-id",
				Destination: &invocation.SessionID,
			},
			&cli.StringFlag{
				Name:        "campaign-id",
				Usage:       "Campaign scope for memory recall",
				Destination: &invocation.CampaignID,
			},
			&cli.StringFlag{
				Name:        "artist-name",
				Usage:       "Artist scope for memory recall",
				Destination: &invocation.ArtistName,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			payload, err := readInput(input, inputFile)
			if err != nil {
				return err
			}

			attachments, err := readImages(images)
			if err != nil {
				return err
			}

			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			m, err := rt.openModels(ctx, svc)
			if err != nil {
				return err
			}

			a, err := svc.newAgent(agentID, m)
			if err != nil {
				return err
			}

			var opts []usecase.ExecuteOption
			if template != "" {
				opts = append(opts, usecase.WithTemplate(template))
			}
			if criteria != "" {
				opts = append(opts, usecase.WithEvaluationCriteria(criteria))
			}
			if noEval {
				opts = append(opts, usecase.WithoutEvaluation())
			}

			var result *agent.Result
			if len(attachments) > 0 {
				result = a.ExecuteWithImages(ctx, payload, attachments, invocation, opts...)
			} else {
				result = a.Execute(ctx, payload, invocation, opts...)
			}

			return printJSON(cmd.Root().Writer, result)
		},
	}
}

// readInput decodes the agent input from the inline flag or a file
func readInput(inline, path string) (any, error) {
	if inline != "" && path != "" {
		return nil, goerr.New("use either --input or --input-file", goerr.T(apperr.ErrTagInvalidInput))
	}

	raw := []byte(inline)
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read input file", goerr.V("path", path))
		}
		raw = data
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, goerr.Wrap(err, "input is not valid JSON", goerr.T(apperr.ErrTagInvalidInput))
	}
	return v, nil
}

func readImages(paths []string) ([]llm.Image, error) {
	images := make([]llm.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(filepath.Clean(p))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read image", goerr.V("path", p))
		}
		images = append(images, llm.Image{
			MimeType: http.DetectContentType(data),
			Data:     data,
		})
	}
	return images, nil
}
