// Package de9im evaluates Dimensionally Extended 9-Intersection Model
// matrices against named topological patterns.
package de9im

import (
	"strings"

	"github.com/rotisserie/eris"
)

// symbolSet is a bitmask over the matrix alphabet {F,0,1,2}.
type symbolSet uint8

const (
	symF symbolSet = 1 << iota
	sym0
	sym1
	sym2

	symT   = sym0 | sym1 | sym2
	symAny = symF | symT
)

// Matrix is a parsed DE-9IM matrix in row-major order (interior, boundary,
// exterior of the first geometry against those of the second).
type Matrix [9]symbolSet

// ParseMatrix parses a 9-character matrix string over {F,0,1,2}.
func ParseMatrix(s string) (Matrix, error) {
	var m Matrix
	if len(s) != 9 {
		return m, eris.Errorf("de9im: matrix %q must have 9 characters", s)
	}
	for i := 0; i < 9; i++ {
		switch s[i] {
		case 'F', 'f':
			m[i] = symF
		case '0':
			m[i] = sym0
		case '1':
			m[i] = sym1
		case '2':
			m[i] = sym2
		default:
			return m, eris.Errorf("de9im: invalid matrix symbol %q at position %d", s[i], i)
		}
	}
	return m, nil
}

// String renders the matrix back to its 9-character form.
func (m Matrix) String() string {
	var b strings.Builder
	for _, s := range m {
		switch s {
		case symF:
			b.WriteByte('F')
		case sym0:
			b.WriteByte('0')
		case sym1:
			b.WriteByte('1')
		case sym2:
			b.WriteByte('2')
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}

// mask is one exact pattern: each position lists the accepted symbols.
type mask [9]symbolSet

func parseMask(s string) (mask, error) {
	var p mask
	if len(s) != 9 {
		return p, eris.Errorf("de9im: pattern %q must have 9 characters", s)
	}
	for i := 0; i < 9; i++ {
		switch s[i] {
		case 'F', 'f':
			p[i] = symF
		case 'T', 't':
			p[i] = symT
		case '*':
			p[i] = symAny
		case '0':
			p[i] = sym0
		case '1':
			p[i] = sym1
		case '2':
			p[i] = sym2
		default:
			return p, eris.Errorf("de9im: invalid pattern symbol %q at position %d", s[i], i)
		}
	}
	return p, nil
}

func (p mask) matches(m Matrix) bool {
	for i := 0; i < 9; i++ {
		if p[i]&m[i] == 0 {
			return false
		}
	}
	return true
}

// Kind tags the variant of a Pattern.
type Kind uint8

const (
	// Exact matches when every position is satisfied.
	Exact Kind = iota
	// Negated matches when the underlying exact pattern does not.
	Negated
	// Or matches when any of its exact sub-patterns does.
	Or
)

// Pattern is a topological predicate over a DE-9IM matrix.
type Pattern struct {
	kind  Kind
	masks []mask
	text  []string
}

// Parse builds an exact pattern from a 9-character string over
// {F,T,*,0,1,2}.
func Parse(s string) (Pattern, error) {
	m, err := parseMask(s)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{kind: Exact, masks: []mask{m}, text: []string{s}}, nil
}

// ParseNegated builds a pattern matching exactly when s does not.
func ParseNegated(s string) (Pattern, error) {
	p, err := Parse(s)
	if err != nil {
		return Pattern{}, err
	}
	p.kind = Negated
	return p, nil
}

// ParseOr builds a pattern matching when any of patterns does.
func ParseOr(patterns ...string) (Pattern, error) {
	if len(patterns) == 0 {
		return Pattern{}, eris.New("de9im: or-pattern needs at least one sub-pattern")
	}
	p := Pattern{kind: Or}
	for _, s := range patterns {
		m, err := parseMask(s)
		if err != nil {
			return Pattern{}, err
		}
		p.masks = append(p.masks, m)
		p.text = append(p.text, s)
	}
	return p, nil
}

// MustParse is Parse that panics on error.
func MustParse(s string) Pattern { return must(Parse(s)) }

// MustParseNegated is ParseNegated that panics on error.
func MustParseNegated(s string) Pattern { return must(ParseNegated(s)) }

// MustParseOr is ParseOr that panics on error.
func MustParseOr(patterns ...string) Pattern { return must(ParseOr(patterns...)) }

func must(p Pattern, err error) Pattern {
	if err != nil {
		panic(err)
	}
	return p
}

// Kind returns the variant tag.
func (p Pattern) Kind() Kind { return p.kind }

// Matches evaluates the pattern against m.
func (p Pattern) Matches(m Matrix) bool {
	switch p.kind {
	case Exact:
		return p.masks[0].matches(m)
	case Negated:
		return !p.masks[0].matches(m)
	case Or:
		for _, sub := range p.masks {
			if sub.matches(m) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MatchesString parses s and evaluates the pattern against it. Unparseable
// matrices never match.
func (p Pattern) MatchesString(s string) bool {
	m, err := ParseMatrix(s)
	if err != nil {
		return false
	}
	return p.Matches(m)
}

// String renders the pattern: "!" prefixes a negated pattern and "||" joins
// the alternatives of an or-pattern.
func (p Pattern) String() string {
	s := strings.Join(p.text, "||")
	if p.kind == Negated {
		return "!" + s
	}
	return s
}
