// Package search implements the note query language: tokenizer, parser,
// predicate evaluation over the note graph, full-text matching through the
// trigram index, and ranking/ordering/pagination.
package search

// Operator spellings of the query language.
const (
	OpEqual         = "="
	OpNotEqual      = "!="
	OpContains      = "*=*"
	OpStartsWith    = "=*"
	OpEndsWith      = "*="
	OpFuzzyEqual    = "~="
	OpFuzzyContains = "~*"
	OpRegex         = "%="
	OpGreater       = ">"
	OpGreaterEq     = ">="
	OpLess          = "<"
	OpLessEq        = "<="
)

// Node is a query AST node. The evaluator switches exhaustively over the
// concrete variants.
type Node interface{ node() }

// AndExpr requires all children to match. Evaluation short-circuits once
// the running candidate set is empty.
type AndExpr struct {
	Children []Node
}

// OrExpr requires any child to match. Evaluation short-circuits once every
// candidate is already covered.
type OrExpr struct {
	Children []Node
}

// NotExpr inverts its child within the candidate set.
type NotExpr struct {
	Child Node
}

// LabelExpr matches notes carrying a label, optionally constrained by an
// operator on the label value. Negated inverts the whole predicate.
type LabelExpr struct {
	Name    string
	Negated bool
	Op      string // empty for bare existence
	Value   string
}

// RelationExpr matches notes carrying a relation. A chain like
// ~author.title resolves hops iteratively: intermediate parts are relation
// names on the target note, the final part is a note property compared with
// Op/Value. Any unresolved hop short-circuits to false.
type RelationExpr struct {
	Name    string
	Negated bool
	Chain   []string
	Op      string
	Value   string
}

// PropertyExpr matches a note.<property> comparison, e.g. note.title,
// note.type, note.dateCreated, note.parents.title, note.ancestors.title.
type PropertyExpr struct {
	Path  []string
	Op    string
	Value string
}

// FulltextExpr matches tokens against title+content (or title+attributes
// in fast search). Bare words in a query become one FulltextExpr with the
// implicit contains operator.
type FulltextExpr struct {
	Tokens []string
	Op     string
}

func (*AndExpr) node()      {}
func (*OrExpr) node()       {}
func (*NotExpr) node()      {}
func (*LabelExpr) node()    {}
func (*RelationExpr) node() {}
func (*PropertyExpr) node() {}
func (*FulltextExpr) node() {}

// OrderField is one orderBy entry; Desc applies to this field only.
type OrderField struct {
	Field string
	Desc  bool
}

// Query is a parsed query: the boolean expression plus trailing clauses.
type Query struct {
	Expr    Node // nil when the query is only orderBy/limit clauses
	OrderBy []OrderField
	Limit   int // 0 means no limit clause
}
