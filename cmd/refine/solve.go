package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/todmy/logic-refine/pkg/models"
)

func newSolveCmd() *cobra.Command {
	var (
		premises   []string
		conclusion string
		backend    string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Check whether premises entail, refute or leave open a conclusion",
		Example: `  refine solve --premise "∀x (Man(x) → Mortal(x))" --premise "Man(socrates)" --conclusion "Mortal(socrates)"
  refine solve --premise "P(a)" --conclusion "Q(a)" --backend gophersat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			solve, closeCache, err := cfg.NewSolver(logger)
			if err != nil {
				return err
			}
			defer closeCache()

			b := models.Backend(backend)
			if b == "" {
				b = cfg.Refinement.Backend
			}
			if timeout <= 0 {
				timeout = cfg.Refinement.SolverTimeout
			}

			result := solve.Solve(cmd.Context(), premises, conclusion, b, timeout)
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&premises, "premise", "p", nil, "premise formula (repeatable)")
	cmd.Flags().StringVarP(&conclusion, "conclusion", "c", "", "conclusion formula")
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "solver backend (gini, gophersat, prover9, z3)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "solver timeout")
	cmd.MarkFlagRequired("conclusion")

	return cmd
}
