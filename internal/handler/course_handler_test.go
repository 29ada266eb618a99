package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gestionmatricula/matricula-api/internal/models"
	"github.com/gestionmatricula/matricula-api/internal/service"
	"github.com/gestionmatricula/matricula-api/pkg/response"
)

type courseRepoStub struct {
	courses map[string]models.Course
	codes   map[string]string
}

func newCourseRepoStub() *courseRepoStub {
	return &courseRepoStub{courses: make(map[string]models.Course), codes: make(map[string]string)}
}

func (s *courseRepoStub) List(ctx context.Context, filter models.CourseListFilter) ([]models.Course, int, error) {
	var list []models.Course
	for _, c := range s.courses {
		list = append(list, c)
	}
	return list, len(list), nil
}

func (s *courseRepoStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := s.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (s *courseRepoStub) FindDetailByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := s.courses[id]; ok {
		return &models.CourseDetail{Course: c, ConfirmedSeats: 1}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *courseRepoStub) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	id, ok := s.codes[code]
	if !ok {
		return false, nil
	}
	return id != excludeID, nil
}

func (s *courseRepoStub) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = "course-1"
	}
	s.courses[course.ID] = *course
	s.codes[course.Code] = course.ID
	return nil
}

func (s *courseRepoStub) Update(ctx context.Context, course *models.Course) error {
	s.courses[course.ID] = *course
	s.codes[course.Code] = course.ID
	return nil
}

func (s *courseRepoStub) SetActive(ctx context.Context, id string, active bool) error {
	c, ok := s.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Active = active
	s.courses[id] = c
	return nil
}

type invalidatorStub struct {
	calls int
}

func (s *invalidatorStub) Invalidate(ctx context.Context) error {
	s.calls++
	return nil
}

func newCourseHandlerFixture() (*CourseHandler, *courseRepoStub, *invalidatorStub) {
	repo := newCourseRepoStub()
	invalidator := &invalidatorStub{}
	svc := service.NewCourseService(repo, invalidator, validator.New(), zap.NewNop())
	return NewCourseHandler(svc), repo, invalidator
}

func TestCourseHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, invalidator := newCourseHandlerFixture()

	payload, _ := json.Marshal(service.CreateCourseRequest{
		Code:      "MAT101",
		Name:      "Mathematics I",
		Credits:   4,
		MaxSeats:  30,
		StartTime: "08:00",
		EndTime:   "10:00",
	})
	c, w := newGinContext(http.MethodPost, "/courses", payload)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.courses, 1)
	require.Equal(t, 1, invalidator.calls)
}

func TestCourseHandlerCreateInvalidSchedule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newCourseHandlerFixture()

	payload, _ := json.Marshal(service.CreateCourseRequest{
		Code:      "MAT101",
		Name:      "Mathematics I",
		Credits:   4,
		MaxSeats:  30,
		StartTime: "12:00",
		EndTime:   "09:00",
	})
	c, w := newGinContext(http.MethodPost, "/courses", payload)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	require.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestCourseHandlerCreateDuplicateCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newCourseHandlerFixture()

	payload, _ := json.Marshal(service.CreateCourseRequest{
		Code:      "MAT101",
		Name:      "Mathematics I",
		Credits:   4,
		MaxSeats:  30,
		StartTime: "08:00",
		EndTime:   "10:00",
	})
	c, w := newGinContext(http.MethodPost, "/courses", payload)
	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodPost, "/courses", payload)
	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCourseHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _, _ := newCourseHandlerFixture()

	c, w := newGinContext(http.MethodGet, "/courses/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCourseHandlerDeactivate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo, invalidator := newCourseHandlerFixture()
	repo.courses["c1"] = models.Course{ID: "c1", Code: "MAT101", Name: "Mathematics I", Active: true}

	c, w := newGinContext(http.MethodPost, "/courses/c1/deactivate", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}}

	handler.Deactivate(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	require.False(t, repo.courses["c1"].Active)
	require.Equal(t, 1, invalidator.calls)
}
