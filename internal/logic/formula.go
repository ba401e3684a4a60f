package logic

import (
	"sort"
	"strings"
)

// Kind is the node type of a Formula
type Kind int

const (
	KindAtom Kind = iota
	KindConst
	KindEq
	KindNot
	KindAnd
	KindOr
	KindXor
	KindImplies
	KindIff
	KindForAll
	KindExists
)

// Term is a constant, variable or function application
type Term struct {
	Name string
	Args []Term
}

func (t Term) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "(" + strings.Join(parts, ",") + ")"
}

// Formula is a node of a parsed first-order formula.
//
// Atoms carry Pred and Terms, KindEq carries exactly two Terms, KindConst
// carries Value, quantifiers carry Var and a single sub-formula, and
// connectives carry their operands in Subs.
type Formula struct {
	Kind  Kind
	Pred  string
	Terms []Term
	Value bool
	Var   string
	Subs  []*Formula
}

// Atom builds an atomic formula
func Atom(pred string, terms ...Term) *Formula {
	return &Formula{Kind: KindAtom, Pred: pred, Terms: terms}
}

// Const builds True or False
func Const(v bool) *Formula {
	return &Formula{Kind: KindConst, Value: v}
}

// Not builds a negation
func Not(f *Formula) *Formula {
	return &Formula{Kind: KindNot, Subs: []*Formula{f}}
}

func nary(kind Kind, fs []*Formula) *Formula {
	return &Formula{Kind: kind, Subs: fs}
}

// String renders the formula in canonical Unicode syntax
func (f *Formula) String() string {
	var b strings.Builder
	f.write(&b)
	return b.String()
}

var infix = map[Kind]string{
	KindAnd:     " ∧ ",
	KindOr:      " ∨ ",
	KindXor:     " ⊕ ",
	KindImplies: " → ",
	KindIff:     " ↔ ",
}

func (f *Formula) write(b *strings.Builder) {
	switch f.Kind {
	case KindAtom:
		b.WriteString(f.AtomKey())
	case KindConst:
		if f.Value {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case KindEq:
		b.WriteString(f.Terms[0].String())
		b.WriteString(" = ")
		b.WriteString(f.Terms[1].String())
	case KindNot:
		b.WriteString("¬")
		f.Subs[0].write(b)
	case KindForAll, KindExists:
		if f.Kind == KindForAll {
			b.WriteString("∀")
		} else {
			b.WriteString("∃")
		}
		b.WriteString(f.Var)
		b.WriteString(" ")
		f.Subs[0].write(b)
	default:
		b.WriteString("(")
		for i, s := range f.Subs {
			if i > 0 {
				b.WriteString(infix[f.Kind])
			}
			s.write(b)
		}
		b.WriteString(")")
	}
}

// AtomKey identifies a ground atom, e.g. "Mortal(socrates)"
func (f *Formula) AtomKey() string {
	if len(f.Terms) == 0 {
		return f.Pred
	}
	parts := make([]string, len(f.Terms))
	for i, t := range f.Terms {
		parts[i] = t.String()
	}
	return f.Pred + "(" + strings.Join(parts, ",") + ")"
}

// Signature is a predicate name with its arity
type Signature struct {
	Name  string
	Arity int
}

// Predicates returns the distinct predicate signatures used in the formulas, sorted
func Predicates(formulas ...*Formula) []Signature {
	seen := make(map[Signature]bool)
	for _, f := range formulas {
		walk(f, func(n *Formula) {
			if n.Kind == KindAtom {
				seen[Signature{Name: n.Pred, Arity: len(n.Terms)}] = true
			}
		})
	}
	sigs := make([]Signature, 0, len(seen))
	for s := range seen {
		sigs = append(sigs, s)
	}
	sort.Slice(sigs, func(i, j int) bool {
		if sigs[i].Name != sigs[j].Name {
			return sigs[i].Name < sigs[j].Name
		}
		return sigs[i].Arity < sigs[j].Arity
	})
	return sigs
}

// QuantifierCount returns the number of quantifier nodes in the formulas
func QuantifierCount(formulas ...*Formula) int {
	n := 0
	for _, f := range formulas {
		walk(f, func(node *Formula) {
			if node.Kind == KindForAll || node.Kind == KindExists {
				n++
			}
		})
	}
	return n
}

func walk(f *Formula, visit func(*Formula)) {
	if f == nil {
		return
	}
	visit(f)
	for _, s := range f.Subs {
		walk(s, visit)
	}
}
