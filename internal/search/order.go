package search

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// order sorts results in place. Without an orderBy clause the order is
// descending relevance (exact outranks fuzzy, lower edit distance scores
// higher), with title and note id as stable tie-breakers. With orderBy,
// fields apply primary-then-secondary; each field's direction modifier
// applies to that field only.
func (e *Engine) order(results []Result, fields []OrderField) {
	if len(fields) == 0 {
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Score != results[j].Score {
				return results[i].Score > results[j].Score
			}
			ti, tj := e.noteTitle(results[i].NoteID), e.noteTitle(results[j].NoteID)
			if ti != tj {
				return ti < tj
			}
			return results[i].NoteID < results[j].NoteID
		})
		return
	}

	sort.SliceStable(results, func(i, j int) bool {
		for _, f := range fields {
			cmp := compareOrderValues(
				e.orderValue(results[i].NoteID, f.Field),
				e.orderValue(results[j].NoteID, f.Field),
			)
			if cmp == 0 {
				continue
			}
			if f.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func (e *Engine) noteTitle(noteID string) string {
	if n := e.graph.Get(noteID); n != nil {
		return strings.ToLower(n.Title)
	}
	return ""
}

// orderValue extracts the sortable value for a field: note properties
// (note.title, note.dateCreated, ...) or a label value (#priority).
func (e *Engine) orderValue(noteID, field string) string {
	n := e.graph.Get(noteID)
	if n == nil {
		return ""
	}
	if name, ok := strings.CutPrefix(field, "#"); ok {
		if labels := n.Labels(name); len(labels) > 0 {
			return labels[0].Value
		}
		return ""
	}
	prop := strings.ToLower(strings.TrimPrefix(field, "note."))
	switch prop {
	case "title":
		return strings.ToLower(n.Title)
	case "noteid":
		return n.ID
	case "type":
		return string(n.Type)
	case "datecreated":
		return n.DateCreated.Format(time.RFC3339)
	case "datemodified":
		return n.DateModified.Format(time.RFC3339)
	}
	return ""
}

// compareOrderValues is numeric-aware: two coercible values compare as
// numbers, everything else as strings.
func compareOrderValues(a, b string) int {
	af, aerr := strconv.ParseFloat(strings.TrimSpace(a), 64)
	bf, berr := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
