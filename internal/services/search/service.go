// Package search runs validated todo searches against the store and memoizes
// result sets in a bounded, time-expiring cache.
package search

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cyans/todo-app-sub000/internal/database"
	"github.com/cyans/todo-app-sub000/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName = "github.com/cyans/todo-app-sub000/internal/services/search"

	DefaultSuggestionLimit = 5
	MaxSuggestionLimit     = 20
	MinSuggestionLength    = 2
	DefaultPopularLimit    = 10
	MaxPopularLimit        = 100
)

// Service is the search and query service
type Service struct {
	store    database.TodoStore
	cache    *Cache
	logger   *zap.Logger
	tracer   trace.Tracer
	observer CacheObserver
}

// CacheObserver is told the outcome of every cache lookup
type CacheObserver interface {
	RecordCacheLookup(ctx context.Context, hit bool)
}

// Option configures a Service
type Option func(*Service)

// WithCacheObserver reports cache hits and misses to o
func WithCacheObserver(o CacheObserver) Option {
	return func(s *Service) {
		s.observer = o
	}
}

// NewService creates a search service. The cache is owned by the caller so its
// lifetime follows the hosting process; nil gets a cache with default limits.
func NewService(store database.TodoStore, cache *Cache, logger *zap.Logger, opts ...Option) *Service {
	if cache == nil {
		cache = NewCache(DefaultCacheTTL, DefaultCacheSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		cache:  cache,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns todos matching criteria. Repeated identical searches within the
// cache TTL are answered from the cache without touching the store.
func (s *Service) Search(ctx context.Context, criteria models.SearchCriteria, opts models.SearchOptions) ([]*models.Todo, error) {
	ctx, span := s.tracer.Start(ctx, "search.Search")
	defer span.End()

	results, hit, err := s.search(ctx, criteria, opts)
	span.SetAttributes(attribute.Bool("cache_hit", hit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(models.KindOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

func (s *Service) search(ctx context.Context, criteria models.SearchCriteria, opts models.SearchOptions) ([]*models.Todo, bool, error) {
	if err := Validate(criteria, opts); err != nil {
		return nil, false, err
	}

	key := CacheKey(criteria, opts)
	results, ok := s.cache.Get(key)
	if s.observer != nil {
		s.observer.RecordCacheLookup(ctx, ok)
	}
	if ok {
		s.logger.Debug("search_cache_hit", zap.Int("results", len(results)))
		return results, true, nil
	}

	resolved := resolveOptions(criteria, opts)
	start := time.Now()
	results, err := s.store.Find(ctx, BuildQuery(criteria), resolved.Sort, resolved.Skip, resolved.Limit)
	if err != nil {
		s.logger.Error("search_query_failed", zap.Error(err))
		return nil, false, models.NewQueryError("search todos", err)
	}

	s.cache.Set(key, results)
	s.logger.Debug("search_cache_miss",
		zap.Int("results", len(results)),
		zap.String("sort_by", resolved.Sort.Field),
		zap.Duration("duration", time.Since(start)))
	return results, false, nil
}

// SearchWithMetadata is Search plus pagination metadata. The total count is
// always read from the store.
func (s *Service) SearchWithMetadata(ctx context.Context, criteria models.SearchCriteria, opts models.SearchOptions) (*models.SearchResult, error) {
	results, err := s.Search(ctx, criteria, opts)
	if err != nil {
		return nil, err
	}

	total, err := s.store.Count(ctx, BuildQuery(criteria))
	if err != nil {
		s.logger.Error("search_count_failed", zap.Error(err))
		return nil, models.NewQueryError("count todos", err)
	}

	resolved := resolveOptions(criteria, opts)
	return &models.SearchResult{
		Results:  results,
		Metadata: paginate(total, resolved.Skip, resolved.Limit),
	}, nil
}

// paginate derives the page flags from the page numbers so an unaligned skip
// still reports a consistent page
func paginate(total, skip, limit int) models.SearchMetadata {
	page := skip/limit + 1
	pages := int(math.Ceil(float64(total) / float64(limit)))
	return models.SearchMetadata{
		TotalCount:      total,
		CurrentPage:     page,
		TotalPages:      pages,
		Limit:           limit,
		Skip:            skip,
		HasNextPage:     page < pages,
		HasPreviousPage: page > 1,
	}
}

// Suggest returns up to limit titles and tags containing partial, case-insensitively.
// Input shorter than two characters yields no suggestions and no query.
func (s *Service) Suggest(ctx context.Context, partial string, limit int) ([]string, error) {
	partial = strings.TrimSpace(partial)
	if utf8.RuneCountInString(partial) < MinSuggestionLength {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if limit > MaxSuggestionLimit {
		limit = MaxSuggestionLimit
	}

	todos, err := s.store.Find(ctx,
		models.TodoFilter{Contains: partial},
		models.SortSpec{Field: models.DefaultSortBy, Order: models.SortDescending},
		0, limit)
	if err != nil {
		s.logger.Error("suggest_query_failed", zap.Error(err))
		return nil, models.NewQueryError("suggest todos", err)
	}

	needle := strings.ToLower(partial)
	seen := make(map[string]bool)
	suggestions := make([]string, 0, limit)
	add := func(value string) {
		if seen[value] || !strings.Contains(strings.ToLower(value), needle) {
			return
		}
		seen[value] = true
		suggestions = append(suggestions, value)
	}
	for _, todo := range todos {
		add(todo.Title)
		for _, tag := range todo.Tags {
			add(tag)
		}
	}

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// PopularTerms returns the most frequent words across titles and descriptions.
// Equal counts are ordered alphabetically.
func (s *Service) PopularTerms(ctx context.Context, limit int) ([]models.TermCount, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	if limit > MaxPopularLimit {
		limit = MaxPopularLimit
	}

	terms, err := s.store.PopularTerms(ctx, limit)
	if err != nil {
		s.logger.Error("popular_terms_failed", zap.Error(err))
		return nil, models.NewQueryError("popular terms", err)
	}
	return terms, nil
}

// ClearCache empties the result cache
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.logger.Info("search_cache_cleared")
}

// CacheStats reports cache occupancy
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}
