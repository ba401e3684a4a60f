package logic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Syntaxes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"atom", "Mortal(socrates)", "Mortal(socrates)"},
		{"propositional", "Rain", "Rain"},
		{"functional implies", "Implies(P(a), Q(a))", "(P(a) → Q(a))"},
		{"unicode implies", "P(a) → Q(a)", "(P(a) → Q(a))"},
		{"ascii implies", "P(a) -> Q(a)", "(P(a) → Q(a))"},
		{"implies is right associative", "A -> B -> C", "(A → (B → C))"},
		{"and binds tighter than or", "A ∨ B ∧ C", "(A ∨ (B ∧ C))"},
		{"n-ary and", "A & B & C", "(A ∧ B ∧ C)"},
		{"negation", "¬P(a) ∧ ~Q(a)", "(¬P(a) ∧ ¬Q(a))"},
		{"universal with dot", "∀x. Man(x) → Mortal(x)", "∀x (Man(x) → Mortal(x))"},
		{"universal without dot binds tightly", "∀x Man(x) → Mortal(x)", "(∀x Man(x) → Mortal(x))"},
		{"universal parenthesised", "∀x (Man(x) → Mortal(x))", "∀x (Man(x) → Mortal(x))"},
		{"keyword quantifier", "forall x. P(x)", "∀x P(x)"},
		{"variable list", "∀x, y. R(x, y)", "∀x ∀y R(x,y)"},
		{"functional quantifier", "ForAll(x, Implies(P(x), Q(x)))", "∀x (P(x) → Q(x))"},
		{"functional quantifier list", "Exists([x, y], R(x, y))", "∃x ∃y R(x,y)"},
		{"iff", "A <-> B", "(A ↔ B)"},
		{"xor", "A ⊕ B", "(A ⊕ B)"},
		{"equality", "a = b", "a = b"},
		{"inequality", "a ≠ b", "¬a = b"},
		{"nested terms", "Loves(father(a), b)", "Loves(father(a),b)"},
		{"constants", "True ∧ False", "(True ∧ False)"},
		{"functional and", "And(A, B, C)", "(A ∧ B ∧ C)"},
		{"functional not", "Not(A)", "¬A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestParse_Errors(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"P(a) ∧",
		"∧ P(a)",
		"(P(a)",
		"P(a))",
		"P(a,)",
		"P()",
		"∀. P(a)",
		"Implies(P(a))",
		"Not(A, B)",
		"P(a) $ Q(a)",
		"P(a) Q(a)",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			f, err := Parse(in)
			assert.Nil(t, f)
			require.Error(t, err)
			var se *SyntaxError
			assert.True(t, errors.As(err, &se), "expected *SyntaxError, got %T", err)
		})
	}
}

func TestParseAll_ReportsFailingIndex(t *testing.T) {
	_, err := ParseAll([]string{"P(a)", "Q(a) ->"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "formula 2")
}

func TestPredicates(t *testing.T) {
	fs, err := ParseAll([]string{"∀x. Man(x) → Mortal(x)", "Man(socrates)", "Loves(a, b) ∧ a = b", "Rain"})
	require.NoError(t, err)

	sigs := Predicates(fs...)
	assert.Equal(t, []Signature{
		{Name: "Loves", Arity: 2},
		{Name: "Man", Arity: 1},
		{Name: "Mortal", Arity: 1},
		{Name: "Rain", Arity: 0},
	}, sigs)
}

func TestSyntaxError_Position(t *testing.T) {
	_, err := Parse("P(a) ∧ )")
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, len("P(a) ∧ "), se.Pos)
	assert.Contains(t, se.Error(), "syntax error")
}
