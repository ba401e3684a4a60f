package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/todmy/logic-refine/internal/evaluation"
	"github.com/todmy/logic-refine/pkg/models"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
)

func answerColor(a models.Answer) func(a ...interface{}) string {
	switch a {
	case models.AnswerProved:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	case models.AnswerDisproved:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case models.AnswerUnknown:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgMagenta).SprintFunc()
	}
}

func printResult(w io.Writer, r models.SolverResult) {
	fmt.Fprintf(w, "%s  %s %s\n", answerColor(r.Answer)(r.Answer), faint(r.Backend), faint(r.Duration.Round(time.Microsecond)))
	if r.Timeout {
		fmt.Fprintln(w, color.YellowString("timed out"))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "%s %s\n", bold("error:"), r.Error)
	}
}

func printTraceLine(w io.Writer, t models.Trace) {
	fmt.Fprintf(w, "%-24s %-12s %-26s iterations=%d llm_calls=%d\n",
		t.ProblemID,
		answerColor(t.FinalResult.Answer)(t.FinalResult.Answer),
		t.Termination,
		t.Iterations,
		t.LLMCalls,
	)
}

func printReport(w io.Writer, r evaluation.Report) {
	fmt.Fprintln(w, bold("Sessions"))
	fmt.Fprintf(w, "  total               %d\n", r.Total)
	fmt.Fprintf(w, "  execution rate      %.3f (%d/%d)\n", r.ExecutionRate, r.Executed, r.Total)
	fmt.Fprintf(w, "  execution accuracy  %.3f (%d/%d)\n", r.ExecutionAccuracy, r.Correct, r.ExecutedLabeled)
	fmt.Fprintf(w, "  accuracy            %.3f (%d/%d)\n", r.Accuracy, r.Correct, r.Labeled)
	fmt.Fprintf(w, "  mean iterations     %.2f\n", r.MeanIterations)
	fmt.Fprintf(w, "  mean llm calls      %.2f\n", r.MeanLLMCalls)
	fmt.Fprintf(w, "  mean solver time    %.2fms\n", r.MeanSolverTimeMs)
	fmt.Fprintf(w, "  mean drift          %.3f\n", r.MeanDrift)
	fmt.Fprintf(w, "  duplicate candidates %d\n", r.DuplicateCandidates)

	if len(r.Backtracking) > 0 {
		fmt.Fprintln(w, bold("Backtracking"))
		fmt.Fprintf(w, "  %-9s %-9s %-7s %s\n", "iteration", "decisions", "reverts", "rate")
		for _, row := range r.Backtracking {
			fmt.Fprintf(w, "  %-9d %-9d %-7d %.3f\n", row.Iteration, row.Decisions, row.Reverts, row.RevertRate)
		}
	}

	if len(r.Terminations) > 0 {
		fmt.Fprintln(w, bold("Terminations"))
		reasons := make([]string, 0, len(r.Terminations))
		for reason := range r.Terminations {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Fprintf(w, "  %-26s %d\n", reason, r.Terminations[models.TerminationReason(reason)])
		}
	}
}
