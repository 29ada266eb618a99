package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gestionmatricula/matricula-api/internal/models"
	appErrors "github.com/gestionmatricula/matricula-api/pkg/errors"
)

type mockCacheRepo struct {
	entries map[string][]byte
	getErr  error
	setErr  error
	sets    int
	deletes int
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{entries: make(map[string][]byte)}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, key string) error {
	m.deletes++
	delete(m.entries, key)
	return nil
}

type mockCatalogCourseRepo struct {
	courses []models.Course
	err     error
	calls   int
}

func (m *mockCatalogCourseRepo) ListActive(ctx context.Context) ([]models.Course, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.courses, nil
}

func newCatalogFixture(courses []models.Course) (*CatalogService, *mockCatalogCourseRepo, *mockCacheRepo) {
	cacheRepo := newMockCacheRepo()
	courseRepo := &mockCatalogCourseRepo{courses: courses}
	cacheSvc := NewCacheService(cacheRepo, nil, 2*time.Minute, zap.NewNop(), true)
	svc := NewCatalogService(courseRepo, cacheSvc, 2*time.Minute, zap.NewNop())
	return svc, courseRepo, cacheRepo
}

func sampleCourses() []models.Course {
	return []models.Course{
		{ID: "c1", Code: "MAT101", Name: "Mathematics I", Credits: 4, MaxSeats: 30, StartTime: "08:00", EndTime: "10:00", Active: true},
		{ID: "c2", Code: "FIS201", Name: "Physics II", Credits: 3, MaxSeats: 25, StartTime: "10:00", EndTime: "12:00", Active: true},
	}
}

func TestCatalogServiceMissThenHit(t *testing.T) {
	svc, courseRepo, _ := newCatalogFixture(sampleCourses())

	courses, cached, err := svc.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, courses, 2)
	assert.Equal(t, 1, courseRepo.calls)

	courses, cached, err = svc.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Len(t, courses, 2)
	assert.Equal(t, 1, courseRepo.calls)
}

func TestCatalogServiceInvalidateForcesReload(t *testing.T) {
	svc, courseRepo, cacheRepo := newCatalogFixture(sampleCourses())

	_, _, err := svc.ActiveCourses(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(context.Background()))
	assert.Equal(t, 1, cacheRepo.deletes)

	_, cached, err := svc.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, courseRepo.calls)
}

func TestCatalogServiceSchemaMismatchReloads(t *testing.T) {
	svc, courseRepo, cacheRepo := newCatalogFixture(sampleCourses())

	stale, err := json.Marshal(catalogSnapshot{SchemaVersion: 99, CachedAt: time.Now(), Courses: nil})
	require.NoError(t, err)
	cacheRepo.entries[CatalogCacheKey] = stale

	courses, cached, err := svc.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, courses, 2)
	assert.Equal(t, 1, courseRepo.calls)
}

func TestCatalogServiceCacheBackendFailureDegrades(t *testing.T) {
	svc, courseRepo, cacheRepo := newCatalogFixture(sampleCourses())
	cacheRepo.getErr = errors.New("connection refused")
	cacheRepo.setErr = errors.New("connection refused")

	courses, cached, err := svc.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, courses, 2)
	assert.Equal(t, 1, courseRepo.calls)
}

func TestCatalogServiceStoreFailureOnMiss(t *testing.T) {
	svc, courseRepo, _ := newCatalogFixture(nil)
	courseRepo.err = errors.New("store down")

	_, _, err := svc.ActiveCourses(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
}

func TestCatalogServiceSetFailureStillServes(t *testing.T) {
	svc, _, cacheRepo := newCatalogFixture(sampleCourses())
	cacheRepo.setErr = errors.New("write failed")

	courses, cached, err := svc.ActiveCourses(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, courses, 2)
	assert.Equal(t, 1, cacheRepo.sets)
}

func TestCatalogServiceDisabledCacheAlwaysReadsStore(t *testing.T) {
	courseRepo := &mockCatalogCourseRepo{courses: sampleCourses()}
	cacheSvc := NewCacheService(nil, nil, 2*time.Minute, zap.NewNop(), false)
	svc := NewCatalogService(courseRepo, cacheSvc, 2*time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, cached, err := svc.ActiveCourses(context.Background())
		require.NoError(t, err)
		assert.False(t, cached)
	}
	assert.Equal(t, 3, courseRepo.calls)
}
