package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cyans/todo-app-sub000/internal/models"
	"github.com/cyans/todo-app-sub000/internal/services/search"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SearchHandler serves the search endpoints
type SearchHandler struct {
	search *search.Service
	logger *zap.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService *search.Service, logger *zap.Logger) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{search: searchService, logger: logger}
}

// RegisterRoutes registers search routes on a router carrying the /search prefix
func (h *SearchHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Search).Methods(http.MethodPost)
	r.HandleFunc("/metadata", h.SearchWithMetadata).Methods(http.MethodPost)
	r.HandleFunc("/suggestions", h.Suggestions).Methods(http.MethodGet)
	r.HandleFunc("/popular", h.PopularTerms).Methods(http.MethodGet)
	r.HandleFunc("/cache", h.ClearCache).Methods(http.MethodDelete)
	r.HandleFunc("/cache/stats", h.CacheStats).Methods(http.MethodGet)
}

// SearchRequest is the flat search body: criteria fields alongside limit,
// skip, sortBy and sortOrder
type SearchRequest struct {
	models.SearchCriteria
	models.SearchOptions
}

// Search returns todos matching the body criteria
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearchRequest(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	results, err := h.search.Search(r.Context(), req.SearchCriteria, req.SearchOptions)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, results, "Todos retrieved successfully")
}

// SearchWithMetadata returns a page of matches with pagination metadata
func (h *SearchHandler) SearchWithMetadata(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSearchRequest(r)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.search.SearchWithMetadata(r.Context(), req.SearchCriteria, req.SearchOptions)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, result, "Search results with metadata retrieved successfully")
}

// Suggestions returns typeahead suggestions for the q parameter
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if !query.Has("q") {
		respondServiceError(w, r, h.logger, models.NewInvalidCriteriaError("q", nil, "is required"))
		return
	}

	limit, _, err := queryInt(r, "limit")
	if err != nil {
		respondServiceError(w, r, h.logger, models.NewInvalidCriteriaError("limit", query.Get("limit"), "must be an integer"))
		return
	}

	suggestions, err := h.search.Suggest(r.Context(), query.Get("q"), limit)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, suggestions)
}

// PopularTerms returns the most frequent words in titles and descriptions
func (h *SearchHandler) PopularTerms(w http.ResponseWriter, r *http.Request) {
	limit, _, err := queryInt(r, "limit")
	if err != nil {
		respondServiceError(w, r, h.logger, models.NewInvalidCriteriaError("limit", r.URL.Query().Get("limit"), "must be an integer"))
		return
	}

	terms, err := h.search.PopularTerms(r.Context(), limit)
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, terms)
}

// ClearCache empties the search result cache
func (h *SearchHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.search.ClearCache()
	respondMessage(w, http.StatusOK, nil, "Search cache cleared successfully")
}

// CacheStats reports search cache occupancy
func (h *SearchHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.search.CacheStats())
}

// decodeSearchRequest reads the search body. An empty body means no criteria.
// A field of the wrong JSON type is reported as invalid criteria for that field.
func decodeSearchRequest(r *http.Request) (SearchRequest, error) {
	var req SearchRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err == nil || errors.Is(err, io.EOF) {
		return req, nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return req, models.NewInvalidCriteriaError(typeErr.Field, typeErr.Value, "must be a "+typeErr.Type.String())
	}
	var timeErr *time.ParseError
	if errors.As(err, &timeErr) {
		return req, models.NewInvalidCriteriaError("dueDate", timeErr.Value, "must be an RFC 3339 timestamp")
	}
	return req, models.NewInvalidCriteriaError("body", nil, "must be a JSON object")
}

// parseSearchQuery builds criteria and options from query parameters
func parseSearchQuery(r *http.Request) (models.SearchCriteria, models.SearchOptions, error) {
	q := r.URL.Query()
	var criteria models.SearchCriteria
	var opts models.SearchOptions

	criteria.Text = q.Get("q")
	if criteria.Text == "" {
		criteria.Text = q.Get("text")
	}
	criteria.Priority = models.Priority(q.Get("priority"))
	criteria.Status = models.Status(q.Get("status"))
	if raw := q.Get("tags"); raw != "" {
		criteria.Tags = strings.Split(raw, ",")
	}

	var err error
	if criteria.DueDateFrom, err = queryDate(r, "dueDateFrom"); err != nil {
		return criteria, opts, err
	}
	if criteria.DueDateTo, err = queryDate(r, "dueDateTo"); err != nil {
		return criteria, opts, err
	}
	if raw := q.Get("assignedTo"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return criteria, opts, models.NewInvalidCriteriaError("assignedTo", raw, "must be a UUID")
		}
		criteria.AssignedTo = &id
	}

	if opts.Limit, _, err = queryInt(r, "limit"); err != nil {
		return criteria, opts, models.NewInvalidCriteriaError("limit", q.Get("limit"), "must be an integer")
	}
	if opts.Skip, _, err = queryInt(r, "skip"); err != nil {
		return criteria, opts, models.NewInvalidCriteriaError("skip", q.Get("skip"), "must be an integer")
	}
	opts.SortBy = q.Get("sortBy")
	if raw := q.Get("sortOrder"); raw != "" {
		opts.SortOrder = models.ParseSortOrder(raw)
	}

	return criteria, opts, nil
}

// queryDate parses an RFC 3339 timestamp or a plain date
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, models.NewInvalidCriteriaError(name, raw, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
}
