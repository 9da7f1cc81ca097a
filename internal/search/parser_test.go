package search

import (
	"errors"
	"strings"
	"testing"

	"github.com/starford/laguz/internal/apperr"
)

func mustParse(t *testing.T, query string) *Query {
	t.Helper()
	q, err := Parse(query)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", query, err)
	}
	return q
}

func TestParseFulltext(t *testing.T) {
	// A single bare word is the most common query form; the gathering loop
	// must stop at end of input.
	q := mustParse(t, "hello")
	ft, ok := q.Expr.(*FulltextExpr)
	if !ok {
		t.Fatalf("expected FulltextExpr, got %T", q.Expr)
	}
	if len(ft.Tokens) != 1 || ft.Tokens[0] != "hello" {
		t.Errorf("tokens = %v", ft.Tokens)
	}

	q = mustParse(t, "towers tolkien")
	ft, ok = q.Expr.(*FulltextExpr)
	if !ok {
		t.Fatalf("expected FulltextExpr, got %T", q.Expr)
	}
	if len(ft.Tokens) != 2 || ft.Tokens[0] != "towers" || ft.Tokens[1] != "tolkien" {
		t.Errorf("tokens = %v", ft.Tokens)
	}
	if ft.Op != OpContains {
		t.Errorf("op = %q, want %q", ft.Op, OpContains)
	}
}

func TestParseQuotedPhrase(t *testing.T) {
	q := mustParse(t, `"hello world"`)
	ft, ok := q.Expr.(*FulltextExpr)
	if !ok {
		t.Fatalf("expected FulltextExpr, got %T", q.Expr)
	}
	if len(ft.Tokens) != 1 || ft.Tokens[0] != "hello world" {
		t.Errorf("tokens = %v", ft.Tokens)
	}
}

func TestParseLabel(t *testing.T) {
	q := mustParse(t, "#book")
	l, ok := q.Expr.(*LabelExpr)
	if !ok {
		t.Fatalf("expected LabelExpr, got %T", q.Expr)
	}
	if l.Name != "book" || l.Op != "" || l.Negated {
		t.Errorf("got %+v", l)
	}
}

func TestParseLabelComparison(t *testing.T) {
	cases := []struct {
		query string
		op    string
		value string
	}{
		{"#author = Tolkien", OpEqual, "Tolkien"},
		{"#author != Tolkien", OpNotEqual, "Tolkien"},
		{"#author *=* olki", OpContains, "olki"},
		{"#author =* Tol", OpStartsWith, "Tol"},
		{"#author *= ien", OpEndsWith, "ien"},
		{"#author ~= Tolkein", OpFuzzyEqual, "Tolkein"},
		{"#author %= T.*n", OpRegex, "T.*n"},
		{"#pages > 100", OpGreater, "100"},
		{"#pages >= 100", OpGreaterEq, "100"},
		{"#pages < 100", OpLess, "100"},
		{"#pages <= 100", OpLessEq, "100"},
	}
	for _, tc := range cases {
		q := mustParse(t, tc.query)
		l, ok := q.Expr.(*LabelExpr)
		if !ok {
			t.Fatalf("%q: expected LabelExpr, got %T", tc.query, q.Expr)
		}
		if l.Op != tc.op || l.Value != tc.value {
			t.Errorf("%q: got op=%q value=%q, want op=%q value=%q",
				tc.query, l.Op, l.Value, tc.op, tc.value)
		}
	}
}

func TestParseNegatedSigils(t *testing.T) {
	q := mustParse(t, "#!draft")
	l := q.Expr.(*LabelExpr)
	if !l.Negated || l.Name != "draft" {
		t.Errorf("got %+v", l)
	}

	q = mustParse(t, "~!author")
	r := q.Expr.(*RelationExpr)
	if !r.Negated || r.Name != "author" {
		t.Errorf("got %+v", r)
	}
}

func TestParseRelationChain(t *testing.T) {
	q := mustParse(t, "~author.title *=* tolk")
	r, ok := q.Expr.(*RelationExpr)
	if !ok {
		t.Fatalf("expected RelationExpr, got %T", q.Expr)
	}
	if r.Name != "author" {
		t.Errorf("name = %q", r.Name)
	}
	if len(r.Chain) != 1 || r.Chain[0] != "title" {
		t.Errorf("chain = %v", r.Chain)
	}
	if r.Op != OpContains || r.Value != "tolk" {
		t.Errorf("op=%q value=%q", r.Op, r.Value)
	}
}

func TestParseProperty(t *testing.T) {
	q := mustParse(t, "note.labelCount > 2")
	p, ok := q.Expr.(*PropertyExpr)
	if !ok {
		t.Fatalf("expected PropertyExpr, got %T", q.Expr)
	}
	if len(p.Path) != 1 || p.Path[0] != "labelCount" {
		t.Errorf("path = %v", p.Path)
	}
	if p.Op != OpGreater || p.Value != "2" {
		t.Errorf("op=%q value=%q", p.Op, p.Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	// AND binds tighter than OR.
	q := mustParse(t, "#a or #b and #c")
	or, ok := q.Expr.(*OrExpr)
	if !ok {
		t.Fatalf("expected OrExpr at top, got %T", q.Expr)
	}
	if len(or.Children) != 2 {
		t.Fatalf("or children = %d", len(or.Children))
	}
	if _, ok := or.Children[0].(*LabelExpr); !ok {
		t.Errorf("left = %T, want LabelExpr", or.Children[0])
	}
	if _, ok := or.Children[1].(*AndExpr); !ok {
		t.Errorf("right = %T, want AndExpr", or.Children[1])
	}

	// Parentheses override.
	q = mustParse(t, "(#a or #b) and #c")
	and, ok := q.Expr.(*AndExpr)
	if !ok {
		t.Fatalf("expected AndExpr at top, got %T", q.Expr)
	}
	if _, ok := and.Children[0].(*OrExpr); !ok {
		t.Errorf("left = %T, want OrExpr", and.Children[0])
	}
}

func TestParseImplicitAnd(t *testing.T) {
	q := mustParse(t, "#a #b")
	and, ok := q.Expr.(*AndExpr)
	if !ok {
		t.Fatalf("expected AndExpr, got %T", q.Expr)
	}
	if len(and.Children) != 2 {
		t.Errorf("children = %d", len(and.Children))
	}
}

func TestParseNot(t *testing.T) {
	q := mustParse(t, "not(#a or #b)")
	not, ok := q.Expr.(*NotExpr)
	if !ok {
		t.Fatalf("expected NotExpr, got %T", q.Expr)
	}
	if _, ok := not.Child.(*OrExpr); !ok {
		t.Errorf("child = %T, want OrExpr", not.Child)
	}
}

func TestParseOrderByAndLimit(t *testing.T) {
	q := mustParse(t, "#book orderBy note.title desc, #priority limit 5")
	if len(q.OrderBy) != 2 {
		t.Fatalf("orderBy fields = %d", len(q.OrderBy))
	}
	if q.OrderBy[0].Field != "note.title" || !q.OrderBy[0].Desc {
		t.Errorf("field[0] = %+v", q.OrderBy[0])
	}
	if q.OrderBy[1].Field != "#priority" || q.OrderBy[1].Desc {
		t.Errorf("field[1] = %+v", q.OrderBy[1])
	}
	if q.Limit != 5 {
		t.Errorf("limit = %d", q.Limit)
	}
}

func TestParseClausesOnly(t *testing.T) {
	q := mustParse(t, "limit 10")
	if q.Expr != nil {
		t.Errorf("expr = %v, want nil", q.Expr)
	}
	if q.Limit != 10 {
		t.Errorf("limit = %d", q.Limit)
	}
}

func TestParseLiteralPercentWord(t *testing.T) {
	// % and * only begin operators before '='; "100%" is a plain token.
	q := mustParse(t, "100%")
	ft, ok := q.Expr.(*FulltextExpr)
	if !ok {
		t.Fatalf("expected FulltextExpr, got %T", q.Expr)
	}
	if ft.Tokens[0] != "100%" {
		t.Errorf("token = %q", ft.Tokens[0])
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"#a and",
		"and #a",
		"#a or",
		"not #a",
		"(#a",
		"#a)",
		"note.title",
		"note. = x",
		"#a =",
		`"unterminated`,
		"limit abc",
		"#a orderBy",
		"#",
		"~",
		"= value",
	}
	for _, query := range cases {
		_, err := Parse(query)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error", query)
			continue
		}
		var ae *apperr.Error
		if !errors.As(err, &ae) || ae.Kind != apperr.KindQuery {
			t.Errorf("Parse(%q) error = %v, want KindQuery", query, err)
		}
	}
}

func TestParseDepthLimit(t *testing.T) {
	query := strings.Repeat("(", 200) + "#a" + strings.Repeat(")", 200)
	_, err := Parse(query)
	if err == nil {
		t.Fatal("deeply nested query parsed, want error")
	}
	if !apperr.IsKind(err, apperr.KindQuery) {
		t.Errorf("error = %v, want KindQuery", err)
	}
}
