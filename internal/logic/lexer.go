package logic

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokDot
	tokNot
	tokAnd
	tokOr
	tokXor
	tokImplies
	tokIff
	tokForAll
	tokExists
	tokEq
	tokNeq
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of formula",
	tokIdent:    "identifier",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokComma:    "','",
	tokDot:      "'.'",
	tokNot:      "negation",
	tokAnd:      "conjunction",
	tokOr:       "disjunction",
	tokXor:      "exclusive or",
	tokImplies:  "implication",
	tokIff:      "biconditional",
	tokForAll:   "universal quantifier",
	tokExists:   "existential quantifier",
	tokEq:       "'='",
	tokNeq:      "'≠'",
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// SyntaxError reports a formula that could not be tokenized or parsed
type SyntaxError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// symbol table for single-rune operators
var runeTokens = map[rune]tokenKind{
	'(': tokLParen,
	')': tokRParen,
	'[': tokLBracket,
	']': tokRBracket,
	',': tokComma,
	'.': tokDot,
	'¬': tokNot,
	'~': tokNot,
	'∧': tokAnd,
	'∨': tokOr,
	'⊕': tokXor,
	'^': tokXor,
	'→': tokImplies,
	'⇒': tokImplies,
	'⟹': tokImplies,
	'↔': tokIff,
	'⇔': tokIff,
	'⟺': tokIff,
	'∀': tokForAll,
	'∃': tokExists,
	'≠': tokNeq,
}

// multi-character ASCII operators, longest first
var asciiTokens = []struct {
	text string
	kind tokenKind
}{
	{"<->", tokIff},
	{"<=>", tokIff},
	{"->", tokImplies},
	{"=>", tokImplies},
	{"&&", tokAnd},
	{"||", tokOr},
	{"!=", tokNeq},
	{"&", tokAnd},
	{"|", tokOr},
	{"!", tokNot},
	{"=", tokEq},
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\''
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		if r == utf8.RuneError && size == 1 {
			return nil, &SyntaxError{Input: input, Pos: i, Msg: "invalid UTF-8 encoding"}
		}
		if unicode.IsSpace(r) {
			i += size
			continue
		}

		if isIdentRune(r) {
			start := i
			for i < len(input) {
				r, size = utf8.DecodeRuneInString(input[i:])
				if !isIdentRune(r) {
					break
				}
				i += size
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:i], pos: start})
			continue
		}

		matched := false
		for _, at := range asciiTokens {
			if strings.HasPrefix(input[i:], at.text) {
				tokens = append(tokens, token{kind: at.kind, text: at.text, pos: i})
				i += len(at.text)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		if kind, ok := runeTokens[r]; ok {
			tokens = append(tokens, token{kind: kind, text: string(r), pos: i})
			i += size
			continue
		}

		return nil, &SyntaxError{Input: input, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}
