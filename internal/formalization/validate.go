package formalization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/todmy/logic-refine/internal/logic"
	"github.com/todmy/logic-refine/pkg/models"
)

// Validate runs the structural checks a candidate must pass before solving.
// Conclusion predicates absent from the premises are allowed.
func Validate(premises []string, conclusion string) models.Validation {
	v := models.Validation{Issues: []string{}}
	var parsed []*logic.Formula

	if len(premises) == 0 {
		v.Issues = append(v.Issues, "premises are empty")
	}
	for i, p := range premises {
		if strings.TrimSpace(p) == "" {
			v.Issues = append(v.Issues, fmt.Sprintf("premise %d is empty", i+1))
			continue
		}
		f, err := logic.Parse(p)
		if err != nil {
			v.Issues = append(v.Issues, fmt.Sprintf("premise %d %q: %v", i+1, p, err))
			continue
		}
		parsed = append(parsed, f)
	}

	if strings.TrimSpace(conclusion) == "" {
		v.Issues = append(v.Issues, "conclusion is empty")
	} else if f, err := logic.Parse(conclusion); err != nil {
		v.Issues = append(v.Issues, fmt.Sprintf("conclusion %q: %v", conclusion, err))
	} else {
		parsed = append(parsed, f)
	}

	v.NumPredicates = len(logic.Predicates(parsed...))
	v.Valid = len(v.Issues) == 0
	return v
}

// IsWellFormed reports whether a formalization may be sent to a solver
func IsWellFormed(f models.Formalization) bool {
	if f.Failed() {
		return false
	}
	return Validate(f.Premises, f.Conclusion).Valid
}

// Issues returns the reasons a formalization is not well-formed
func Issues(f models.Formalization) []string {
	if f.Failed() {
		return []string{"formalization error: " + f.Error}
	}
	return Validate(f.Premises, f.Conclusion).Issues
}

// Normalize returns a canonical rendering of the formulas of f. Two
// formalizations with equal normal forms pose the same entailment query.
func Normalize(f models.Formalization) string {
	var b strings.Builder
	for _, p := range f.Premises {
		b.WriteString(canonical(p))
		b.WriteString("\n")
	}
	b.WriteString("⊢ ")
	b.WriteString(canonical(f.Conclusion))
	return b.String()
}

func canonical(s string) string {
	if f, err := logic.Parse(s); err == nil {
		return f.String()
	}
	return strings.Join(strings.Fields(s), " ")
}

// Symbols counts predicate occurrences across the formulas of f, keyed by
// name/arity. Unparseable formulas contribute nothing.
func Symbols(f models.Formalization) map[string]int {
	counts := make(map[string]int)
	formulas := append(append([]string{}, f.Premises...), f.Conclusion)
	for _, s := range formulas {
		parsed, err := logic.Parse(s)
		if err != nil {
			continue
		}
		countAtoms(parsed, counts)
	}
	return counts
}

func countAtoms(f *logic.Formula, counts map[string]int) {
	if f.Kind == logic.KindAtom {
		counts[fmt.Sprintf("%s/%d", f.Pred, len(f.Terms))]++
		return
	}
	for _, s := range f.Subs {
		countAtoms(s, counts)
	}
}

// Render formats f for inclusion in a prompt
func Render(f models.Formalization) string {
	if f.Failed() {
		return "(no valid formalization: " + f.Error + ")"
	}
	var b strings.Builder
	if len(f.Predicates) > 0 {
		b.WriteString("Predicates:\n")
		for _, k := range sortedKeys(f.Predicates) {
			fmt.Fprintf(&b, "  %s: %s\n", k, f.Predicates[k])
		}
	}
	b.WriteString("Premises:\n")
	for i, p := range f.Premises {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, p)
	}
	fmt.Fprintf(&b, "Conclusion: %s", f.Conclusion)
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
