package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/todmy/logic-refine/internal/evaluation"
	"github.com/todmy/logic-refine/internal/refinement"
	"github.com/todmy/logic-refine/pkg/models"
)

func newRunCmd() *cobra.Command {
	var (
		problemsPath string
		outPath      string
		workers      int
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a refinement session for every problem in a file",
		Long: `Run reads a YAML or JSON list of problems (id, statement, label), runs one
refinement session per problem and writes the traces as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			problems, err := loadProblems(problemsPath)
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(problems) {
				problems = problems[:limit]
			}
			if workers <= 0 {
				workers = cfg.Workers
			}

			solve, closeCache, err := cfg.NewSolver(logger)
			if err != nil {
				return err
			}
			defer closeCache()

			gen, err := cfg.NewGenerator(logger)
			if err != nil {
				return err
			}

			controller := refinement.NewController(gen, solve, cfg.Refinement, refinement.WithLogger(logger))
			out := cmd.OutOrStdout()
			batch := refinement.NewBatch(controller, workers,
				refinement.WithBatchLogger(logger),
				refinement.WithSink(func(t models.Trace) { printTraceLine(out, t) }),
			)

			logger.WithField("problems", len(problems)).WithField("workers", workers).Info("Starting batch")
			traces := batch.Run(cmd.Context(), problems)

			if outPath != "" {
				if err := writeTraces(outPath, traces); err != nil {
					return err
				}
				logger.WithField("path", outPath).Info("Traces written")
			}

			printReport(out, evaluation.Evaluate(traces))
			return nil
		},
	}

	cmd.Flags().StringVar(&problemsPath, "problems", "", "YAML or JSON file of problems")
	cmd.Flags().StringVarP(&outPath, "out", "o", "traces.json", "output file for traces (empty to skip)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent sessions (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "only run the first N problems")
	cmd.MarkFlagRequired("problems")

	return cmd
}

// loadProblems reads a problem list. JSON is accepted as YAML.
func loadProblems(path string) ([]models.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problems: %w", err)
	}

	var problems []models.Problem
	if err := yaml.Unmarshal(data, &problems); err != nil {
		return nil, fmt.Errorf("failed to parse problems %s: %w", path, err)
	}
	for i := range problems {
		if problems[i].Statement == "" {
			return nil, fmt.Errorf("problem %d has no statement", i)
		}
		if problems[i].ID == "" {
			problems[i].ID = fmt.Sprintf("problem-%d", i+1)
		}
	}
	return problems, nil
}

func writeTraces(path string, traces []models.Trace) error {
	data, err := json.MarshalIndent(traces, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write traces: %w", err)
	}
	return nil
}

func readTraces(path string) ([]models.Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read traces: %w", err)
	}
	var traces []models.Trace
	if err := json.Unmarshal(data, &traces); err != nil {
		return nil, fmt.Errorf("failed to parse traces %s: %w", path, err)
	}
	return traces, nil
}
