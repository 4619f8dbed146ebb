package database

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/lib/pq"
)

// whereClause accumulates SQL predicates and their positional arguments
type whereClause struct {
	conditions []string
	args       []any
	// tsQueryArg is the placeholder holding the full-text query, if any
	tsQueryArg string
}

func (w *whereClause) bind(value any) string {
	w.args = append(w.args, value)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereClause) add(condition string) {
	w.conditions = append(w.conditions, condition)
}

// SQL renders the clause; an empty filter yields no WHERE at all
func (w *whereClause) SQL() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// buildWhere translates a filter into Postgres predicates
func buildWhere(filter models.TodoFilter) *whereClause {
	w := &whereClause{}

	if filter.Text != "" {
		terms := textTerms(filter.Text)
		if len(terms) == 0 {
			// Nothing searchable survives tokenization, so nothing can match
			w.add("FALSE")
		} else {
			w.tsQueryArg = w.bind(strings.Join(terms, " | "))
			w.add(fmt.Sprintf("%s @@ to_tsquery('english', %s)", searchVector, w.tsQueryArg))
		}
	}

	if filter.Contains != "" {
		p := w.bind("%" + escapeLike(filter.Contains) + "%")
		w.add(fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", p, p))
	}

	if filter.Priority != nil {
		w.add("priority = " + w.bind(string(*filter.Priority)))
	}

	if filter.Status != nil {
		w.add("status = " + w.bind(string(*filter.Status)))
	}

	if filter.AssignedTo != nil {
		w.add("assigned_to = " + w.bind(*filter.AssignedTo))
	}

	if len(filter.TagsAny) > 0 {
		w.add("tags && " + w.bind(pq.Array(filter.TagsAny)))
	}

	if filter.DueFrom != nil {
		w.add("due_date >= " + w.bind(*filter.DueFrom))
	}

	if filter.DueTo != nil {
		w.add("due_date <= " + w.bind(*filter.DueTo))
	}

	return w
}

// orderBy renders ORDER BY for sort. Relevance falls back to created_at when
// the filter carries no full-text term.
func orderBy(sort models.SortSpec, w *whereClause) string {
	direction := "DESC"
	if sort.Order == models.SortAscending {
		direction = "ASC"
	}

	var expr string
	switch sort.Field {
	case models.SortByRelevance:
		if w.tsQueryArg == "" {
			return " ORDER BY created_at DESC, id ASC"
		}
		return fmt.Sprintf(" ORDER BY ts_rank(%s, to_tsquery('english', %s)) DESC, created_at DESC, id ASC",
			searchVector, w.tsQueryArg)
	case "priority":
		expr = "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 ELSE 0 END"
	case "status":
		expr = "CASE status WHEN 'todo' THEN 1 WHEN 'in_progress' THEN 2 WHEN 'review' THEN 3 " +
			"WHEN 'done' THEN 4 WHEN 'archived' THEN 5 ELSE 0 END"
	case "dueDate":
		return fmt.Sprintf(" ORDER BY due_date %s NULLS LAST, id ASC", direction)
	default:
		column, ok := models.SortableFields[sort.Field]
		if !ok {
			column = models.SortableFields[models.DefaultSortBy]
		}
		expr = column
	}

	return fmt.Sprintf(" ORDER BY %s %s, id ASC", expr, direction)
}

// textTerms splits free text into lowercase alphanumeric search terms, deduplicated in order
func textTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// isPopularTerm reports whether token is an alphabetic word of at least three letters
func isPopularTerm(token string) bool {
	if len(token) < 3 {
		return false
	}
	for _, r := range token {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
