package generator

import (
	"fmt"
	"strings"

	"github.com/todmy/logic-refine/internal/formalization"
	"github.com/todmy/logic-refine/pkg/models"
)

const systemPrompt = `You translate natural-language reasoning problems into first-order logic.
Use predicates written as Name(arg1, arg2), lower-case constants, and the connectives
¬ ∧ ∨ ⊕ → ↔ with quantifiers ∀x and ∃x. The functional forms And(...), Or(...), Not(φ),
Implies(φ, ψ), ForAll(x, φ) and Exists(x, φ) are also accepted.`

const formalizationSchema = `Respond ONLY with valid JSON of the form:
{
  "predicates": {"Name(x)": "meaning of Name"},
  "premises": ["formula", "..."],
  "conclusion": "formula"
}`

func buildFormalizePrompt(statement string) string {
	return fmt.Sprintf(`Formalize the following problem. The premises must capture every stated fact
and rule; the conclusion is the claim whose truth is being asked about.

Problem:
%s

%s`, statement, formalizationSchema)
}

func buildProposePrompt(statement string, best models.Formalization, feedback string, index, n int) string {
	var fb string
	if strings.TrimSpace(feedback) != "" {
		fb = fmt.Sprintf("\nThe previous attempt was rejected for this reason:\n%s\n", feedback)
	}
	return fmt.Sprintf(`Improve the formalization of the problem below. Preserve the meaning of the
original text exactly; fix syntax the solver cannot parse and add any implicit
premise the text states but the formalization misses.

Problem:
%s

Current formalization:
%s
%s
Produce alternative %d of %d. Alternatives should differ from each other.

%s`, statement, formalization.Render(best), fb, index+1, n, formalizationSchema)
}

func buildComparePrompt(statement string, a, b models.Formalization) string {
	return fmt.Sprintf(`Two formalizations of the same problem are given. Decide which one more
faithfully represents the meaning of the original text. Judge semantic fidelity,
not syntactic tidiness: a formalization that drops, adds, or distorts a premise is
worse even if it is well-formed.

Problem:
%s

Formalization A:
%s

Formalization B:
%s

Respond ONLY with valid JSON:
{"preferred": "A" or "B", "reasoning": "brief explanation"}`, statement, formalization.Render(a), formalization.Render(b))
}
