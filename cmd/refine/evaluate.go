package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/todmy/logic-refine/internal/evaluation"
	"github.com/todmy/logic-refine/internal/similarity"
)

func newEvaluateCmd() *cobra.Command {
	var (
		tracesPath string
		threshold  float64
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Report execution rate, accuracy and backtracking over saved traces",
		RunE: func(cmd *cobra.Command, args []string) error {
			traces, err := readTraces(tracesPath)
			if err != nil {
				return err
			}

			report := evaluation.New(similarity.NewService(threshold)).Evaluate(traces)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&tracesPath, "traces", "t", "traces.json", "traces file written by run")
	cmd.Flags().Float64Var(&threshold, "similarity", similarity.DefaultThreshold, "threshold for near-duplicate candidates")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}
