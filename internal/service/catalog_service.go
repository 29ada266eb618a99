package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gestionmatricula/matricula-api/internal/models"
	appErrors "github.com/gestionmatricula/matricula-api/pkg/errors"
)

// CatalogCacheKey names the single cache entry holding the active-course
// snapshot. Invalidation is a whole-key delete.
const CatalogCacheKey = "catalog:active_courses"

// catalogSchemaVersion guards the snapshot layout. Entries written with a
// different version are rejected and reloaded from the store.
const catalogSchemaVersion = 1

type catalogSnapshot struct {
	SchemaVersion int             `json:"schema_version"`
	CachedAt      time.Time       `json:"cached_at"`
	Courses       []models.Course `json:"courses"`
}

type catalogCourseRepository interface {
	ListActive(ctx context.Context) ([]models.Course, error)
}

// CatalogService is the read-through cache over the active-course list.
// Readers may observe a snapshot up to one TTL window stale; the course
// store stays the single source of truth.
type CatalogService struct {
	repo   catalogCourseRepository
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repo catalogCourseRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ActiveCourses returns the current active-course list and whether it was
// served from cache. Cache-backend failures degrade to a store read.
func (s *CatalogService) ActiveCourses(ctx context.Context) ([]models.Course, bool, error) {
	var snapshot catalogSnapshot
	hit, err := s.cache.Get(ctx, CatalogCacheKey, &snapshot)
	if err == nil && hit && snapshot.SchemaVersion == catalogSchemaVersion {
		return snapshot.Courses, true, nil
	}
	if hit && snapshot.SchemaVersion != catalogSchemaVersion {
		s.logger.Warn("catalog snapshot schema mismatch, reloading",
			zap.Int("got", snapshot.SchemaVersion),
			zap.Int("want", catalogSchemaVersion))
	}

	courses, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "course store unavailable")
	}

	fresh := catalogSnapshot{
		SchemaVersion: catalogSchemaVersion,
		CachedAt:      time.Now().UTC(),
		Courses:       courses,
	}
	// Set failures are already logged by the cache service; the fresh
	// list is still served.
	_ = s.cache.Set(ctx, CatalogCacheKey, fresh, s.ttl)

	return courses, false, nil
}

// Invalidate deletes the catalog snapshot unconditionally.
func (s *CatalogService) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, CatalogCacheKey)
}
