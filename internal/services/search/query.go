package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/google/uuid"
)

// Validate checks criteria and options before any query is built
func Validate(criteria models.SearchCriteria, opts models.SearchOptions) error {
	if criteria.Priority != "" && !criteria.Priority.IsValid() {
		return models.NewInvalidCriteriaError("priority", criteria.Priority, "must be one of low, medium, high")
	}
	if criteria.Status != "" && !criteria.Status.IsValid() {
		return models.NewInvalidCriteriaError("status", criteria.Status,
			"must be one of todo, in_progress, review, done, archived")
	}
	if opts.Limit != 0 && (opts.Limit < 1 || opts.Limit > models.MaxSearchLimit) {
		return models.NewInvalidCriteriaError("limit", opts.Limit, fmt.Sprintf("must be between 1 and %d", models.MaxSearchLimit))
	}
	if opts.Skip < 0 {
		return models.NewInvalidCriteriaError("skip", opts.Skip, "must be zero or greater")
	}
	if opts.SortBy != "" && opts.SortBy != models.SortByRelevance {
		if _, ok := models.SortableFields[opts.SortBy]; !ok {
			return models.NewInvalidCriteriaError("sortBy", opts.SortBy, "is not a sortable field")
		}
	}
	if opts.SortOrder != "" && opts.SortOrder != models.SortAscending && opts.SortOrder != models.SortDescending {
		return models.NewInvalidCriteriaError("sortOrder", opts.SortOrder, "must be asc or desc")
	}
	return nil
}

// BuildQuery translates criteria into a store predicate. Absent fields add no
// constraint, so empty criteria match every todo.
func BuildQuery(criteria models.SearchCriteria) models.TodoFilter {
	filter := models.TodoFilter{
		Text:       strings.TrimSpace(criteria.Text),
		AssignedTo: criteria.AssignedTo,
		DueFrom:    criteria.DueDateFrom,
		DueTo:      criteria.DueDateTo,
	}
	if criteria.Priority != "" {
		p := criteria.Priority
		filter.Priority = &p
	}
	if criteria.Status != "" {
		s := criteria.Status
		filter.Status = &s
	}
	if len(criteria.Tags) > 0 {
		filter.TagsAny = normalizeTags(criteria.Tags)
	}
	return filter
}

// resolvedOptions are SearchOptions with every default applied
type resolvedOptions struct {
	Limit int
	Skip  int
	Sort  models.SortSpec
}

// resolveOptions applies defaults. Text searches without an explicit sortBy
// are ordered by relevance.
func resolveOptions(criteria models.SearchCriteria, opts models.SearchOptions) resolvedOptions {
	r := resolvedOptions{
		Limit: opts.Limit,
		Skip:  opts.Skip,
		Sort:  models.SortSpec{Field: opts.SortBy, Order: opts.SortOrder},
	}
	if r.Limit == 0 {
		r.Limit = models.DefaultSearchLimit
	}
	if r.Sort.Field == "" {
		r.Sort.Field = models.DefaultSortBy
		if strings.TrimSpace(criteria.Text) != "" {
			r.Sort.Field = models.SortByRelevance
		}
	}
	if r.Sort.Order == "" {
		r.Sort.Order = models.SortDescending
	}
	return r
}

// cacheKey is the stable serialization of everything that shapes a result set
type cacheKey struct {
	Text        string     `json:"text"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Tags        []string   `json:"tags"`
	DueDateFrom *time.Time `json:"dueDateFrom"`
	DueDateTo   *time.Time `json:"dueDateTo"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
	Limit       int        `json:"limit"`
	Skip        int        `json:"skip"`
	SortBy      string     `json:"sortBy"`
	SortOrder   string     `json:"sortOrder"`
}

// CacheKey normalizes criteria and options so logically identical searches share a key
func CacheKey(criteria models.SearchCriteria, opts models.SearchOptions) string {
	r := resolveOptions(criteria, opts)
	key := cacheKey{
		Text:        strings.TrimSpace(criteria.Text),
		Priority:    string(criteria.Priority),
		Status:      string(criteria.Status),
		Tags:        normalizeTags(criteria.Tags),
		DueDateFrom: utc(criteria.DueDateFrom),
		DueDateTo:   utc(criteria.DueDateTo),
		AssignedTo:  criteria.AssignedTo,
		Limit:       r.Limit,
		Skip:        r.Skip,
		SortBy:      r.Sort.Field,
		SortOrder:   string(r.Sort.Order),
	}
	// Every field is a plain value, so marshalling cannot fail
	data, _ := json.Marshal(key)
	return string(data)
}

// normalizeTags sorts and deduplicates tags; order is irrelevant to match-any semantics
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
