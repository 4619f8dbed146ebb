package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SearchCriteria narrows a search; zero-valued fields leave their dimension unconstrained
type SearchCriteria struct {
	Text        string     `json:"text,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Status      Status     `json:"status,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueDateFrom *time.Time `json:"dueDateFrom,omitempty"`
	DueDateTo   *time.Time `json:"dueDateTo,omitempty"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
}

// SortOrder is the direction of a sort
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// UnmarshalJSON accepts "asc"/"desc" as well as the numeric 1/-1 form
func (o *SortOrder) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		switch n {
		case 1:
			*o = SortAscending
		case -1:
			*o = SortDescending
		default:
			*o = SortOrder(fmt.Sprint(n))
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = ParseSortOrder(s)
	return nil
}

// ParseSortOrder normalizes the accepted spellings of a sort direction.
// Unrecognized values are returned unchanged so validation can reject them.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "1":
		return SortAscending
	case "desc", "descending", "-1":
		return SortDescending
	default:
		return SortOrder(s)
	}
}

// SearchOptions controls sorting and pagination. Zero Limit means the default.
type SearchOptions struct {
	Limit     int       `json:"limit,omitempty"`
	Skip      int       `json:"skip,omitempty"`
	SortBy    string    `json:"sortBy,omitempty"`
	SortOrder SortOrder `json:"sortOrder,omitempty"`
}

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
	DefaultSortBy      = "createdAt"
	// SortByRelevance orders text search results by match score
	SortByRelevance = "relevance"
)

// SortableFields maps API sort field names to their storage columns
var SortableFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"priority":  "priority",
	"title":     "title",
	"status":    "status",
}

// TodoFilter is the structured predicate a store evaluates.
// Every populated field is ANDed; an empty filter matches every todo.
type TodoFilter struct {
	// Text is a full-text term matched with relevance scoring
	Text string
	// Contains is a case-insensitive substring over title and description
	Contains   string
	Priority   *Priority
	Status     *Status
	AssignedTo *uuid.UUID
	// TagsAny matches todos carrying at least one of the tags
	TagsAny []string
	DueFrom *time.Time
	DueTo   *time.Time
}

// IsEmpty reports whether the filter constrains nothing
func (f TodoFilter) IsEmpty() bool {
	return f.Text == "" && f.Contains == "" && f.Priority == nil && f.Status == nil &&
		f.AssignedTo == nil && len(f.TagsAny) == 0 && f.DueFrom == nil && f.DueTo == nil
}

// SortSpec orders a store query. Field is an API field name or SortByRelevance.
type SortSpec struct {
	Field string
	Order SortOrder
}

// SearchMetadata describes the page a search returned
type SearchMetadata struct {
	TotalCount      int  `json:"totalCount"`
	CurrentPage     int  `json:"currentPage"`
	TotalPages      int  `json:"totalPages"`
	Limit           int  `json:"limit"`
	Skip            int  `json:"skip"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

// SearchResult pairs a page of todos with its pagination metadata
type SearchResult struct {
	Results  []*Todo        `json:"results"`
	Metadata SearchMetadata `json:"metadata"`
}

// TermCount is one row of the popular terms aggregate
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}
