package logic

import (
	"errors"
	"fmt"
	"sort"
)

// ErrGroundingLimit is returned when a problem is too large to ground
var ErrGroundingLimit = errors.New("grounding limit exceeded")

// Grounder expands quantified formulas over a finite domain.
//
// The domain is the set of named constants of the problem plus fresh witness
// elements, one per quantifier occurrence up to MaxWitnesses. Universal
// quantifiers become conjunctions and existential quantifiers disjunctions
// over that domain. Equality is decided under the unique names assumption.
type Grounder struct {
	MaxDomain    int
	MaxWitnesses int
	MaxNodes     int
}

// DefaultGrounder returns the limits used by the solver backends
func DefaultGrounder() Grounder {
	return Grounder{
		MaxDomain:    16,
		MaxWitnesses: 2,
		MaxNodes:     200000,
	}
}

// Domain returns the grounding domain for a set of formulas
func (g Grounder) Domain(formulas ...*Formula) []string {
	seen := make(map[string]bool)
	for _, f := range formulas {
		collectConstants(f, map[string]bool{}, seen)
	}
	domain := make([]string, 0, len(seen))
	for c := range seen {
		domain = append(domain, c)
	}
	sort.Strings(domain)

	witnesses := QuantifierCount(formulas...)
	if witnesses > g.MaxWitnesses {
		witnesses = g.MaxWitnesses
	}
	if witnesses < 1 && len(domain) == 0 {
		witnesses = 1
	}
	for i := 1; i <= witnesses; i++ {
		domain = append(domain, fmt.Sprintf("#w%d", i))
	}
	return domain
}

// Ground returns quantifier-free versions of the formulas over a shared domain
func (g Grounder) Ground(formulas ...*Formula) ([]*Formula, error) {
	if g.MaxWitnesses <= 0 {
		g.MaxWitnesses = 1
	}
	domain := g.Domain(formulas...)
	if g.MaxDomain > 0 && len(domain) > g.MaxDomain {
		return nil, fmt.Errorf("%w: domain of %d elements exceeds %d", ErrGroundingLimit, len(domain), g.MaxDomain)
	}

	st := &groundState{domain: domain, limit: g.MaxNodes}
	out := make([]*Formula, len(formulas))
	for i, f := range formulas {
		gf, err := st.ground(f, nil)
		if err != nil {
			return nil, err
		}
		out[i] = gf
	}
	return out, nil
}

type groundState struct {
	domain []string
	nodes  int
	limit  int
}

// binding is a persistent variable environment
type binding struct {
	name  string
	value string
	next  *binding
}

func (b *binding) lookup(name string) (string, bool) {
	for e := b; e != nil; e = e.next {
		if e.name == name {
			return e.value, true
		}
	}
	return "", false
}

func (s *groundState) count() error {
	s.nodes++
	if s.limit > 0 && s.nodes > s.limit {
		return fmt.Errorf("%w: more than %d ground nodes", ErrGroundingLimit, s.limit)
	}
	return nil
}

func (s *groundState) ground(f *Formula, env *binding) (*Formula, error) {
	if err := s.count(); err != nil {
		return nil, err
	}

	switch f.Kind {
	case KindConst:
		return Const(f.Value), nil
	case KindAtom:
		return Atom(f.Pred, substituteAll(f.Terms, env)...), nil
	case KindEq:
		lhs := substitute(f.Terms[0], env)
		rhs := substitute(f.Terms[1], env)
		return Const(lhs.String() == rhs.String()), nil
	case KindForAll, KindExists:
		subs := make([]*Formula, 0, len(s.domain))
		for _, e := range s.domain {
			sub, err := s.ground(f.Subs[0], &binding{name: f.Var, value: e, next: env})
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
		}
		kind := KindAnd
		if f.Kind == KindExists {
			kind = KindOr
		}
		return nary(kind, subs), nil
	default:
		subs := make([]*Formula, len(f.Subs))
		for i, sub := range f.Subs {
			gs, err := s.ground(sub, env)
			if err != nil {
				return nil, err
			}
			subs[i] = gs
		}
		return &Formula{Kind: f.Kind, Subs: subs}, nil
	}
}

func substituteAll(terms []Term, env *binding) []Term {
	if len(terms) == 0 {
		return nil
	}
	out := make([]Term, len(terms))
	for i, t := range terms {
		out[i] = substitute(t, env)
	}
	return out
}

func substitute(t Term, env *binding) Term {
	if len(t.Args) == 0 {
		if v, ok := env.lookup(t.Name); ok {
			return Term{Name: v}
		}
		return t
	}
	return Term{Name: t.Name, Args: substituteAll(t.Args, env)}
}

// collectConstants records nullary terms that are not bound by an enclosing quantifier
func collectConstants(f *Formula, bound map[string]bool, out map[string]bool) {
	if f == nil {
		return
	}
	switch f.Kind {
	case KindAtom, KindEq:
		for _, t := range f.Terms {
			termConstants(t, bound, out)
		}
	case KindForAll, KindExists:
		inner := make(map[string]bool, len(bound)+1)
		for k := range bound {
			inner[k] = true
		}
		inner[f.Var] = true
		collectConstants(f.Subs[0], inner, out)
	default:
		for _, s := range f.Subs {
			collectConstants(s, bound, out)
		}
	}
}

func termConstants(t Term, bound map[string]bool, out map[string]bool) {
	if len(t.Args) == 0 {
		if !bound[t.Name] {
			out[t.Name] = true
		}
		return
	}
	for _, a := range t.Args {
		termConstants(a, bound, out)
	}
}
