package config

import (
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"github.com/m-mizutani/shikigami/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Judge overrides the model that scores agent output
type Judge struct {
	Provider string
	Model    string
}

// Flags returns CLI flags for judge configuration
func (j *Judge) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "judge-provider",
			Category:    "evaluation",
			Usage:       "LLM provider of the evaluation judge (overrides config file)",
			Sources:     cli.EnvVars("SHIKIGAMI_JUDGE_PROVIDER"),
			Destination: &j.Provider,
		},
		&cli.StringFlag{
			Name:        "judge-model",
			Category:    "evaluation",
			Usage:       "LLM model of the evaluation judge (overrides config file)",
			Sources:     cli.EnvVars("SHIKIGAMI_JUDGE_MODEL"),
			Destination: &j.Model,
		},
	}
}

// HarnessOptions resolves the judge model from flags first, then the
// providers config. An unresolved judge falls back to the factory default.
func (j *Judge) HarnessOptions(providers *llm.ProvidersConfig) []usecase.HarnessOption {
	provider, model := j.Provider, j.Model
	if providers != nil {
		if provider == "" {
			provider = providers.Judge.Provider
		}
		if model == "" {
			model = providers.Judge.Model
		}
	}
	if provider == "" && model == "" {
		return nil
	}
	return []usecase.HarnessOption{
		usecase.WithJudgeModel(llm.ProviderFromString(provider), model),
	}
}
