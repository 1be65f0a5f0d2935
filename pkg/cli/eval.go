package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/eval"
	"github.com/m-mizutani/shikigami/pkg/domain/types"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	"github.com/m-mizutani/shikigami/pkg/usecase"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

func cmdEval(rt *runtimeConfig) *cli.Command {
	return &cli.Command{
		Name:    "eval",
		Aliases: []string{"e"},
		Usage:   "Regression tests, feedback and metrics",
		Commands: []*cli.Command{
			cmdEvalImport(rt),
			cmdEvalRegression(rt),
			cmdEvalFeedback(rt),
			cmdEvalMetrics(rt),
			cmdEvalTranscript(rt),
		},
	}
}

type testCaseFile struct {
	TestCases []*eval.TestCase `yaml:"test_cases"`
}

// loadTestCases reads regression scenarios from YAML. Cases without an agent
// ID get agentID. Every case gets a fresh ID unless it names one.
func loadTestCases(ctx context.Context, path, agentID string, active bool) ([]*eval.TestCase, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read test case file", goerr.V("path", path))
	}

	var file testCaseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse test case file", goerr.V("path", path))
	}

	cases := make([]*eval.TestCase, 0, len(file.TestCases))
	for i, tc := range file.TestCases {
		if tc == nil {
			continue
		}
		if tc.AgentID == "" {
			tc.AgentID = agentID
		}
		if tc.AgentID == "" {
			return nil, goerr.New("test case has no agent ID",
				goerr.T(apperr.ErrTagInvalidInput), goerr.V("index", i), goerr.V("name", tc.Name))
		}
		if tc.ID == "" {
			tc.ID = types.NewTestCaseID(ctx)
		}
		tc.Active = active
		cases = append(cases, tc)
	}
	return cases, nil
}

func cmdEvalImport(rt *runtimeConfig) *cli.Command {
	var (
		agentID  string
		path     string
		inactive bool
	)

	return &cli.Command{
		Name:  "import",
		Usage: "Store regression test cases from a YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "file",
				Required:    true,
				Destination: &path,
			},
			&cli.StringFlag{
				Name:        "agent",
				Aliases:     []string{"a"},
				Usage:       "Agent ID for cases that do not name one",
				Destination: &agentID,
			},
			&cli.BoolFlag{
				Name:        "inactive",
				Usage:       "Store the cases as inactive",
				Destination: &inactive,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cases, err := loadTestCases(ctx, path, agentID, !inactive)
			if err != nil {
				return err
			}

			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			for _, tc := range cases {
				if _, err := svc.catalog.Get(tc.AgentID); err != nil {
					return err
				}
				if err := svc.repo.PutTestCase(ctx, tc); err != nil {
					return goerr.Wrap(err, "failed to store test case", goerr.TV(apperr.TestCaseIDKey, tc.ID))
				}
			}

			ctxlog.From(ctx).Info("test cases imported", "count", len(cases), "file", path)
			return printJSON(cmd.Root().Writer, cases)
		},
	}
}

func cmdEvalRegression(rt *runtimeConfig) *cli.Command {
	var agentID string

	return &cli.Command{
		Name:  "regression",
		Usage: "Run active test cases against the live prompt version",
		Flags: []cli.Flag{
			agentFlag(&agentID),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
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

			report, err := m.harness.RunRegressionTests(ctx, agentID, a.PromptVersion(ctx), usecase.ExecuteFunc(a))
			if err != nil {
				return err
			}
			if err := printJSON(cmd.Root().Writer, report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return goerr.New("regression test failed",
					goerr.TV(apperr.AgentIDKey, agentID),
					goerr.V("passed", report.Passed), goerr.V("failed", report.Failed))
			}
			return nil
		},
	}
}

func cmdEvalFeedback(rt *runtimeConfig) *cli.Command {
	var (
		agentID     string
		executionID string
		input       eval.UserFeedback
	)

	return &cli.Command{
		Name:  "feedback",
		Usage: "Record a human rating of an execution",
		Flags: []cli.Flag{
			agentFlag(&agentID),
			&cli.StringFlag{
				Name:        "execution",
				Aliases:     []string{"x"},
				Usage:       "Execution ID",
				Required:    true,
				Destination: &executionID,
			},
			&cli.IntFlag{
				Name:        "score",
				Usage:       "Overall score from 1 to 5",
				Required:    true,
				Destination: &input.OverallScore,
			},
			&cli.StringFlag{
				Name:        "comment",
				Destination: &input.FeedbackText,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			// Recording a rating needs no judge model
			h := usecase.NewHarness(nil, svc.repo)
			fb, err := h.SaveUserFeedback(ctx, types.ExecutionID(executionID), agentID, input)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, fb)
		},
	}
}

func cmdEvalMetrics(rt *runtimeConfig) *cli.Command {
	var (
		agentID string
		since   time.Duration
		start   string
		end     string
	)

	return &cli.Command{
		Name:  "metrics",
		Usage: "Aggregate executions and feedback of an agent",
		Flags: []cli.Flag{
			agentFlag(&agentID),
			&cli.DurationFlag{
				Name:        "since",
				Usage:       "Window length ending now, ignored when --start is set",
				Value:       24 * time.Hour,
				Destination: &since,
			},
			&cli.StringFlag{
				Name:        "start",
				Usage:       "Window start (RFC3339)",
				Destination: &start,
			},
			&cli.StringFlag{
				Name:        "end",
				Usage:       "Window end (RFC3339, default: now)",
				Destination: &end,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			from, to, err := metricsWindow(time.Now(), since, start, end)
			if err != nil {
				return err
			}

			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			h := usecase.NewHarness(nil, svc.repo)
			metrics, err := h.GetAgentMetrics(ctx, agentID, from, to)
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, metrics)
		},
	}
}

// metricsWindow resolves [start, end) from flags relative to now
func metricsWindow(now time.Time, since time.Duration, start, end string) (time.Time, time.Time, error) {
	to := now
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, time.Time{}, goerr.Wrap(err, "invalid --end", goerr.T(apperr.ErrTagInvalidInput))
		}
		to = t
	}

	from := to.Add(-since)
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return time.Time{}, time.Time{}, goerr.Wrap(err, "invalid --start", goerr.T(apperr.ErrTagInvalidInput))
		}
		from = t
	}
	return from, to, nil
}

func cmdEvalTranscript(rt *runtimeConfig) *cli.Command {
	var (
		agentID     string
		executionID string
	)

	return &cli.Command{
		Name:  "transcript",
		Usage: "Print an archived model exchange, or list archived executions",
		Flags: []cli.Flag{
			agentFlag(&agentID),
			&cli.StringFlag{
				Name:        "execution",
				Aliases:     []string{"x"},
				Usage:       "Execution ID (default: list every archived execution)",
				Destination: &executionID,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			svc, err := rt.open(ctx)
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			if svc.transcripts == nil {
				return goerr.New("transcript storage is not configured: use --cloud-storage-bucket or --file-storage-path")
			}

			if executionID == "" {
				ids, err := svc.transcripts.ListTranscripts(ctx, agentID)
				if err != nil {
					return err
				}
				return printJSON(cmd.Root().Writer, ids)
			}

			transcript, err := svc.transcripts.LoadTranscript(ctx, agentID, types.ExecutionID(executionID))
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, transcript)
		},
	}
}
