package search

import (
	"strings"
	"unicode"

	"github.com/starford/laguz/internal/apperr"
)

type tokenKind int

const (
	tkWord tokenKind = iota
	tkQuoted
	tkLabel
	tkRelation
	tkOperator
	tkLParen
	tkRParen
	tkComma
)

type token struct {
	kind    tokenKind
	text    string
	negated bool
}

// operators in longest-match-first order.
var operators = []string{
	OpContains, OpGreaterEq, OpLessEq, OpNotEqual, OpStartsWith, OpEndsWith,
	OpFuzzyEqual, OpFuzzyContains, OpRegex, OpEqual, OpGreater, OpLess,
}

// tokenize turns a query string into tokens. Malformed input (unterminated
// quote, unknown operator) produces a structured query error, never a
// silent empty token stream.
func tokenize(query string) ([]token, error) {
	rs := []rune(query)
	var toks []token
	i := 0
	for i < len(rs) {
		c := rs[i]
		switch {
		case unicode.IsSpace(c):
			i++

		case c == '(':
			toks = append(toks, token{kind: tkLParen})
			i++
		case c == ')':
			toks = append(toks, token{kind: tkRParen})
			i++
		case c == ',':
			toks = append(toks, token{kind: tkComma})
			i++

		case c == '"' || c == '\'' || c == '`':
			end := i + 1
			for end < len(rs) && rs[end] != c {
				end++
			}
			if end >= len(rs) {
				return nil, apperr.New(apperr.KindQuery, "unterminated quoted string")
			}
			toks = append(toks, token{kind: tkQuoted, text: string(rs[i+1 : end])})
			i = end + 1

		case c == '#' || (c == '~' && !nextIsOperatorTail(rs, i)):
			kind := tkLabel
			if c == '~' {
				kind = tkRelation
			}
			i++
			negated := false
			if i < len(rs) && rs[i] == '!' {
				negated = true
				i++
			}
			start := i
			for i < len(rs) && isNameRune(rs[i]) {
				i++
			}
			if i == start {
				return nil, apperr.Newf(apperr.KindQuery, "expected attribute name after %q", string(c))
			}
			toks = append(toks, token{kind: kind, text: string(rs[start:i]), negated: negated})

		case isOperatorRune(c):
			op, ok := matchOperator(rs[i:])
			if !ok {
				return nil, apperr.Newf(apperr.KindQuery, "unknown operator at %q", clipRunes(rs[i:], 8))
			}
			toks = append(toks, token{kind: tkOperator, text: op})
			i += len([]rune(op))

		default:
			start := i
			for i < len(rs) && !isWordBoundary(rs, i) {
				i++
			}
			toks = append(toks, token{kind: tkWord, text: string(rs[start:i])})
		}
	}
	return toks, nil
}

func matchOperator(rs []rune) (string, bool) {
	s := string(rs)
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op, true
		}
	}
	return "", false
}

// nextIsOperatorTail distinguishes the ~= and ~* operators from the ~name
// relation sigil.
func nextIsOperatorTail(rs []rune, i int) bool {
	return i+1 < len(rs) && (rs[i+1] == '=' || rs[i+1] == '*')
}

func isOperatorRune(c rune) bool {
	switch c {
	case '=', '!', '<', '>', '*', '%', '~':
		return true
	}
	return false
}

func isNameRune(c rune) bool {
	return c == '_' || c == ':' || c == '-' || c == '.' ||
		unicode.IsLetter(c) || unicode.IsDigit(c)
}

// isWordBoundary decides where a bare word stops. The characters %, * and ~
// only end a word when they begin an operator, so literal tokens like
// "100%" survive intact.
func isWordBoundary(rs []rune, i int) bool {
	c := rs[i]
	if unicode.IsSpace(c) || c == '(' || c == ')' || c == ',' ||
		c == '"' || c == '\'' || c == '`' {
		return true
	}
	switch c {
	case '=', '!', '<', '>':
		return true
	case '%', '*':
		return i+1 < len(rs) && rs[i+1] == '='
	case '~':
		return nextIsOperatorTail(rs, i)
	}
	return false
}

func clipRunes(rs []rune, n int) string {
	if len(rs) > n {
		rs = rs[:n]
	}
	return string(rs)
}
