package search

import (
	"strconv"
	"strings"

	"github.com/starford/laguz/internal/apperr"
)

// maxParseDepth bounds expression nesting; pathological inputs (50+ levels
// of parentheses) fail with a structured error instead of exhausting the
// call stack.
const maxParseDepth = 128

// Parse turns a query string into a Query AST.
//
// Precedence: NOT (and the #!/~! sigils) binds tightest, AND binds tighter
// than OR, parentheses always override. Juxtaposed operands combine with an
// implicit AND. All malformed inputs produce a *apperr.Error of KindQuery.
func Parse(query string) (*Query, error) {
	toks, err := tokenize(query)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}

	q := &Query{}
	if !p.eof() && !p.atClause() {
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		q.Expr = expr
	}

	if p.isKeyword("orderby") {
		p.next()
		fields, err := p.parseOrderFields()
		if err != nil {
			return nil, err
		}
		q.OrderBy = fields
	}
	if p.isKeyword("limit") {
		p.next()
		n, err := p.parseLimit()
		if err != nil {
			return nil, err
		}
		q.Limit = n
	}

	if !p.eof() {
		return nil, apperr.Newf(apperr.KindQuery, "unexpected %q after end of query", p.peek().text)
	}
	return q, nil
}

type parser struct {
	toks  []token
	pos   int
	depth int
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.eof() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

// isKeyword matches a bare (unquoted) word case-insensitively.
func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tkWord && strings.EqualFold(t.text, kw)
}

// atClause reports whether the parser sits at a trailing clause keyword.
func (p *parser) atClause() bool {
	return p.isKeyword("orderby") || p.isKeyword("limit")
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxParseDepth {
		return apperr.Newf(apperr.KindQuery, "query nesting exceeds %d levels", maxParseDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseOr() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{left}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return &OrExpr{Children: children}, nil
}

func (p *parser) parseAnd() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	var children []Node
	for {
		if p.eof() || p.peek().kind == tkRParen || p.isKeyword("or") || p.atClause() {
			break
		}
		if p.isKeyword("and") {
			if len(children) == 0 {
				return nil, apperr.New(apperr.KindQuery, "AND without left operand")
			}
			p.next()
			if p.eof() || p.peek().kind == tkRParen || p.isKeyword("or") || p.atClause() {
				return nil, apperr.New(apperr.KindQuery, "AND without right operand")
			}
			continue
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	switch len(children) {
	case 0:
		return nil, apperr.New(apperr.KindQuery, "expected expression")
	case 1:
		return children[0], nil
	}
	return &AndExpr{Children: children}, nil
}

func (p *parser) parseUnary() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	t := p.peek()
	switch {
	case t.kind == tkWord && strings.EqualFold(t.text, "not"):
		p.next()
		if p.peek().kind != tkLParen {
			return nil, apperr.New(apperr.KindQuery, "expected ( after not")
		}
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tkRParen {
			return nil, apperr.New(apperr.KindQuery, "unmatched parenthesis in not(...)")
		}
		p.next()
		return &NotExpr{Child: inner}, nil

	case t.kind == tkLParen:
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tkRParen {
			return nil, apperr.New(apperr.KindQuery, "unmatched parenthesis")
		}
		p.next()
		return inner, nil

	case t.kind == tkLabel:
		p.next()
		expr := &LabelExpr{Name: t.text, Negated: t.negated}
		op, val, ok, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if ok {
			expr.Op, expr.Value = op, val
		}
		return expr, nil

	case t.kind == tkRelation:
		p.next()
		parts := strings.Split(t.text, ".")
		expr := &RelationExpr{Name: parts[0], Negated: t.negated, Chain: parts[1:]}
		op, val, ok, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if ok {
			expr.Op, expr.Value = op, val
		}
		return expr, nil

	case t.kind == tkWord && strings.HasPrefix(strings.ToLower(t.text), "note."):
		p.next()
		path := strings.Split(t.text, ".")[1:]
		if len(path) == 0 || path[0] == "" {
			return nil, apperr.New(apperr.KindQuery, "expected property name after note.")
		}
		op, val, ok, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Newf(apperr.KindQuery, "expected operator after note.%s", strings.Join(path, "."))
		}
		return &PropertyExpr{Path: path, Op: op, Value: val}, nil

	case t.kind == tkWord || t.kind == tkQuoted:
		return p.parseFulltext()

	case t.kind == tkOperator:
		return nil, apperr.Newf(apperr.KindQuery, "operator %q without left operand", t.text)

	default:
		return nil, apperr.Newf(apperr.KindQuery, "unexpected token %q", t.text)
	}
}

// parseFulltext gathers consecutive bare words and quoted strings into one
// full-text predicate with the implicit contains operator.
func (p *parser) parseFulltext() (Node, error) {
	expr := &FulltextExpr{Op: OpContains}
	for {
		if p.eof() {
			break
		}
		t := p.peek()
		if t.kind == tkQuoted {
			p.next()
			expr.Tokens = append(expr.Tokens, t.text)
			continue
		}
		if t.kind == tkWord && !p.atClause() &&
			!strings.EqualFold(t.text, "and") && !strings.EqualFold(t.text, "or") &&
			!strings.EqualFold(t.text, "not") &&
			!strings.HasPrefix(strings.ToLower(t.text), "note.") {
			p.next()
			expr.Tokens = append(expr.Tokens, t.text)
			continue
		}
		break
	}
	if len(expr.Tokens) == 0 {
		return nil, apperr.New(apperr.KindQuery, "expected search term")
	}
	return expr, nil
}

// parseComparison consumes an optional operator + value pair.
func (p *parser) parseComparison() (op, value string, ok bool, err error) {
	if p.peek().kind != tkOperator {
		return "", "", false, nil
	}
	op = p.next().text
	v := p.peek()
	if p.eof() || (v.kind != tkWord && v.kind != tkQuoted) {
		return "", "", false, apperr.Newf(apperr.KindQuery, "expected value after %q", op)
	}
	p.next()
	return op, v.text, true, nil
}

func (p *parser) parseOrderFields() ([]OrderField, error) {
	var fields []OrderField
	for {
		t := p.peek()
		var name string
		switch t.kind {
		case tkWord:
			if p.eof() || p.atClause() {
				return nil, apperr.New(apperr.KindQuery, "expected orderBy field")
			}
			name = t.text
		case tkLabel:
			name = "#" + t.text
		default:
			return nil, apperr.New(apperr.KindQuery, "expected orderBy field")
		}
		p.next()

		field := OrderField{Field: name}
		if p.isKeyword("desc") {
			p.next()
			field.Desc = true
		} else if p.isKeyword("asc") {
			p.next()
		}
		fields = append(fields, field)

		if p.peek().kind == tkComma {
			p.next()
			continue
		}
		break
	}
	return fields, nil
}

func (p *parser) parseLimit() (int, error) {
	t := p.peek()
	if t.kind != tkWord {
		return 0, apperr.New(apperr.KindQuery, "expected number after limit")
	}
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 0 {
		return 0, apperr.Newf(apperr.KindQuery, "invalid limit %q", t.text)
	}
	p.next()
	return n, nil
}
