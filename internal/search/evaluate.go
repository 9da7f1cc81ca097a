package search

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/laguz/internal/apperr"
	"github.com/starford/laguz/internal/models"
)

// fuzzyFallbackMinResults triggers the fuzzy fallback when exact/substring
// matching yields fewer hits than this.
const fuzzyFallbackMinResults = 5

// evaluator walks the AST. The input set flows left to right through AND
// (short-circuiting on empty), each OR branch sees the original input, and
// NOT complements within the input.
type evaluator struct {
	e        *evalEngine
	sc       *Context
	scores   map[string]float64
	snippets map[string]string
	contents map[string]string // note id → tag-stripped content cache
}

// evalEngine is an alias to keep evaluator fields readable.
type evalEngine = Engine

func (ev *evaluator) eval(n Node, input map[string]bool) (map[string]bool, error) {
	switch x := n.(type) {
	case *AndExpr:
		cur := input
		for _, child := range x.Children {
			if len(cur) == 0 {
				break
			}
			res, err := ev.eval(child, cur)
			if err != nil {
				return nil, err
			}
			cur = res
		}
		return cur, nil

	case *OrExpr:
		union := make(map[string]bool)
		for _, child := range x.Children {
			if len(union) == len(input) {
				break
			}
			res, err := ev.eval(child, input)
			if err != nil {
				return nil, err
			}
			for id := range res {
				union[id] = true
			}
		}
		return union, nil

	case *NotExpr:
		res, err := ev.eval(x.Child, input)
		if err != nil {
			return nil, err
		}
		out := make(map[string]bool, len(input))
		for id := range input {
			if !res[id] {
				out[id] = true
			}
		}
		return out, nil

	case *LabelExpr:
		return ev.evalLabel(x, input)
	case *RelationExpr:
		return ev.evalRelation(x, input)
	case *PropertyExpr:
		return ev.evalProperty(x, input)
	case *FulltextExpr:
		return ev.evalFulltext(x, input)
	}
	return nil, apperr.New(apperr.KindQuery, "unknown expression node")
}

func (ev *evaluator) evalLabel(x *LabelExpr, input map[string]bool) (map[string]bool, error) {
	matched := make(map[string]bool)
	for _, n := range ev.e.graph.NotesWithLabel(x.Name) {
		if !input[n.ID] {
			continue
		}
		if x.Op == "" {
			matched[n.ID] = true
			continue
		}
		for _, a := range n.Labels(x.Name) {
			ok, err := ev.compareAttr(x.Op, a.Value, x.Value)
			if err != nil {
				return nil, err
			}
			if ok {
				matched[n.ID] = true
				break
			}
		}
	}
	if x.Negated {
		return complement(input, matched), nil
	}
	return matched, nil
}

func (ev *evaluator) evalRelation(x *RelationExpr, input map[string]bool) (map[string]bool, error) {
	matched := make(map[string]bool)
	for _, n := range ev.e.graph.NotesWithRelation(x.Name) {
		if !input[n.ID] {
			continue
		}
		targets := ev.resolveTargets(n.Relations(x.Name))
		if len(targets) == 0 {
			// Dangling relation: evaluates false, never throws.
			continue
		}
		ok, err := ev.relationChainMatches(targets, x.Chain, x.Op, x.Value)
		if err != nil {
			return nil, err
		}
		if ok {
			matched[n.ID] = true
		}
	}
	if x.Negated {
		return complement(input, matched), nil
	}
	return matched, nil
}

// relationChainMatches resolves the hops iteratively; any unresolved hop
// short-circuits to false.
func (ev *evaluator) relationChainMatches(targets []*models.Note, chain []string, op, value string) (bool, error) {
	cur := targets
	props := chain
	// All but the last chain part are relation hops.
	for len(props) > 1 {
		hop := props[0]
		var next []*models.Note
		for _, t := range cur {
			next = append(next, ev.resolveTargets(t.Relations(hop))...)
		}
		if len(next) == 0 {
			return false, nil
		}
		cur = next
		props = props[1:]
	}

	if op == "" {
		// Bare existence (possibly after hops).
		return len(cur) > 0, nil
	}

	prop := "title"
	if len(props) == 1 {
		prop = props[0]
	}
	for _, t := range cur {
		v, ok := ev.propertyValue(t, []string{prop})
		if !ok {
			continue
		}
		match, err := ev.compareAttr(op, v, value)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (ev *evaluator) resolveTargets(relations []models.Attribute) []*models.Note {
	var out []*models.Note
	for _, r := range relations {
		if t := ev.e.graph.Get(r.Value); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (ev *evaluator) evalProperty(x *PropertyExpr, input map[string]bool) (map[string]bool, error) {
	head := strings.ToLower(x.Path[0])

	// Content-bearing properties route through the full-text machinery.
	if head == "content" || head == "text" {
		return ev.evalFulltext(&FulltextExpr{Tokens: []string{x.Value}, Op: x.Op}, input)
	}

	matched := make(map[string]bool)
	for id := range input {
		n := ev.e.graph.Get(id)
		if n == nil {
			continue
		}
		ok, err := ev.propertyMatches(n, x)
		if err != nil {
			return nil, err
		}
		if ok {
			matched[id] = true
		}
	}
	return matched, nil
}

func (ev *evaluator) propertyMatches(n *models.Note, x *PropertyExpr) (bool, error) {
	head := strings.ToLower(x.Path[0])
	switch head {
	case "parents", "children", "ancestors":
		if len(x.Path) < 2 {
			return false, apperr.Newf(apperr.KindQuery, "note.%s requires a property, e.g. note.%s.title", head, head)
		}
		var related []*models.Note
		switch head {
		case "parents":
			related = ev.e.graph.Parents(n.ID)
		case "children":
			related = ev.e.graph.Children(n.ID)
		case "ancestors":
			for id := range ev.e.graph.Ancestors(n.ID) {
				if a := ev.e.graph.Get(id); a != nil {
					related = append(related, a)
				}
			}
		}
		for _, r := range related {
			v, ok := ev.propertyValue(r, x.Path[1:])
			if !ok {
				continue
			}
			match, err := ev.compareAttr(x.Op, v, x.Value)
			if err != nil {
				return false, err
			}
			if match {
				return true, nil
			}
		}
		return false, nil
	default:
		v, ok := ev.propertyValue(n, x.Path)
		if !ok {
			// Unknown property: evaluates false, never throws.
			return false, nil
		}
		return ev.compareAttr(x.Op, v, x.Value)
	}
}

// propertyValue extracts a scalar note property as a string.
func (ev *evaluator) propertyValue(n *models.Note, path []string) (string, bool) {
	if len(path) != 1 {
		return "", false
	}
	switch strings.ToLower(path[0]) {
	case "noteid":
		return n.ID, true
	case "title":
		return n.Title, true
	case "type":
		return string(n.Type), true
	case "isprotected":
		return strconv.FormatBool(n.IsProtected), true
	case "isarchived":
		return strconv.FormatBool(n.IsArchived), true
	case "datecreated":
		return n.DateCreated.Format(time.RFC3339), true
	case "datemodified":
		return n.DateModified.Format(time.RFC3339), true
	case "labelcount":
		return strconv.Itoa(countAttrs(n, models.AttrLabel)), true
	case "relationcount":
		return strconv.Itoa(countAttrs(n, models.AttrRelation)), true
	case "attributecount":
		return strconv.Itoa(len(n.Attributes)), true
	case "parentcount":
		return strconv.Itoa(len(n.ParentIDs)), true
	}
	return "", false
}

func countAttrs(n *models.Note, typ string) int {
	c := 0
	for _, a := range n.Attributes {
		if a.Type == typ {
			c++
		}
	}
	return c
}

// compareAttr applies an operator to an attribute/property value. Numeric
// coercion is attempted for the comparison operators; non-coercible values
// compare as strings. Type mismatches evaluate false, never throw.
func (ev *evaluator) compareAttr(op, actual, expected string) (bool, error) {
	a := strings.ToLower(actual)
	b := strings.ToLower(expected)

	af, aerr := strconv.ParseFloat(strings.TrimSpace(actual), 64)
	bf, berr := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	numeric := aerr == nil && berr == nil

	switch op {
	case OpEqual:
		if numeric {
			return af == bf, nil
		}
		return a == b, nil
	case OpNotEqual:
		if numeric {
			return af != bf, nil
		}
		return a != b, nil
	case OpGreater:
		if numeric {
			return af > bf, nil
		}
		return a > b, nil
	case OpGreaterEq:
		if numeric {
			return af >= bf, nil
		}
		return a >= b, nil
	case OpLess:
		if numeric {
			return af < bf, nil
		}
		return a < b, nil
	case OpLessEq:
		if numeric {
			return af <= bf, nil
		}
		return a <= b, nil
	case OpContains:
		if strings.Contains(a, b) {
			return true, nil
		}
		if ev.sc.FuzzyAttributeSearch {
			ok, _ := fuzzyWordInText(b, a)
			return ok, nil
		}
		return false, nil
	case OpStartsWith:
		return strings.HasPrefix(a, b), nil
	case OpEndsWith:
		return strings.HasSuffix(a, b), nil
	case OpFuzzyEqual:
		ok, _ := FuzzyMatch(b, a, MaxEditDistance)
		return ok, nil
	case OpFuzzyContains:
		ok, _ := fuzzyWordInText(b, a)
		return ok, nil
	case OpRegex:
		re, err := regexp.Compile("(?i)" + expected)
		if err != nil {
			return false, apperr.Wrap(apperr.KindQuery, "invalid regex", err)
		}
		return re.MatchString(actual), nil
	}
	return false, apperr.Newf(apperr.KindQuery, "unsupported operator %q", op)
}

func complement(input, matched map[string]bool) map[string]bool {
	out := make(map[string]bool, len(input))
	for id := range input {
		if !matched[id] {
			out[id] = true
		}
	}
	return out
}

// isIndexUnavailable unwraps the driver's availability signal.
func isIndexUnavailable(err error) bool {
	var ae *apperr.Error
	return errors.As(err, &ae) && ae.Kind == apperr.KindIndexUnavailable
}
