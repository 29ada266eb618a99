package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gestionmatricula/matricula-api/internal/middleware"
	"github.com/gestionmatricula/matricula-api/internal/models"
	"github.com/gestionmatricula/matricula-api/internal/service"
	"github.com/gestionmatricula/matricula-api/pkg/response"
)

type enrollmentRepoStub struct {
	enrollments map[string]models.Enrollment
	maxSeats    map[string]int
}

func newEnrollmentRepoStub() *enrollmentRepoStub {
	return &enrollmentRepoStub{
		enrollments: make(map[string]models.Enrollment),
		maxSeats:    map[string]int{"c1": 2},
	}
}

func (s *enrollmentRepoStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var list []models.EnrollmentDetail
	for _, e := range s.enrollments {
		list = append(list, models.EnrollmentDetail{Enrollment: e})
	}
	return list, len(list), nil
}

func (s *enrollmentRepoStub) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := s.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := s.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e, CourseCode: "MAT101", CourseName: "Mathematics I"}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	for _, e := range s.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (s *enrollmentRepoStub) CountConfirmed(ctx context.Context, courseID string) (int, error) {
	count := 0
	for _, e := range s.enrollments {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusConfirmed {
			count++
		}
	}
	return count, nil
}

func (s *enrollmentRepoStub) CreatePending(ctx context.Context, enrollment *models.Enrollment) error {
	if _, ok := s.maxSeats[enrollment.CourseID]; !ok {
		return sql.ErrNoRows
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-1"
	}
	s.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (s *enrollmentRepoStub) Confirm(ctx context.Context, id string) error {
	e, ok := s.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = models.EnrollmentStatusConfirmed
	s.enrollments[id] = e
	return nil
}

func (s *enrollmentRepoStub) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, cancelledAt *time.Time) error {
	e, ok := s.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	e.CancelledAt = cancelledAt
	s.enrollments[id] = e
	return nil
}

func (s *enrollmentRepoStub) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var list []models.EnrollmentDetail
	for _, e := range s.enrollments {
		if e.StudentID == studentID {
			list = append(list, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, nil
}

type courseReaderStub struct{}

func (s *courseReaderStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if id != "c1" {
		return nil, sql.ErrNoRows
	}
	return &models.Course{ID: "c1", Code: "MAT101", Name: "Mathematics I", Credits: 4, MaxSeats: 2, Active: true}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newEnrollmentHandlerFixture() (*EnrollmentHandler, *enrollmentRepoStub) {
	repo := newEnrollmentRepoStub()
	svc := service.NewAdmissionService(repo, &courseReaderStub{}, nil, zap.NewNop())
	return NewEnrollmentHandler(svc), repo
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, Email: id + "@example.com"}
}

func TestEnrollmentHandlerEnroll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newEnrollmentHandlerFixture()

	payload, _ := json.Marshal(map[string]string{"course_id": "c1"})
	c, w := newGinContext(http.MethodPost, "/enrollments", payload)
	c.Set(middleware.ContextUserKey, studentClaims("s1"))

	handler.Enroll(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, repo.enrollments, 1)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
}

func TestEnrollmentHandlerEnrollMissingAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newEnrollmentHandlerFixture()

	payload, _ := json.Marshal(map[string]string{"course_id": "c1"})
	c, w := newGinContext(http.MethodPost, "/enrollments", payload)

	handler.Enroll(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEnrollmentHandlerEnrollMissingCourseID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newEnrollmentHandlerFixture()

	c, w := newGinContext(http.MethodPost, "/enrollments", []byte(`{}`))
	c.Set(middleware.ContextUserKey, studentClaims("s1"))

	handler.Enroll(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerEnrollDuplicateConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newEnrollmentHandlerFixture()

	payload, _ := json.Marshal(map[string]string{"course_id": "c1"})
	c, w := newGinContext(http.MethodPost, "/enrollments", payload)
	c.Set(middleware.ContextUserKey, studentClaims("s1"))
	handler.Enroll(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newGinContext(http.MethodPost, "/enrollments", payload)
	c.Set(middleware.ContextUserKey, studentClaims("s1"))
	handler.Enroll(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	require.Equal(t, "ALREADY_ENROLLED", envelope.Error.Code)
}

func TestEnrollmentHandlerEnrollUnknownCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newEnrollmentHandlerFixture()

	payload, _ := json.Marshal(map[string]string{"course_id": "missing"})
	c, w := newGinContext(http.MethodPost, "/enrollments", payload)
	c.Set(middleware.ContextUserKey, studentClaims("s1"))

	handler.Enroll(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerMyEnrollments(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newEnrollmentHandlerFixture()
	repo.enrollments["enr-1"] = models.Enrollment{ID: "enr-1", CourseID: "c1", StudentID: "s1", Status: models.EnrollmentStatusPending}
	repo.enrollments["enr-2"] = models.Enrollment{ID: "enr-2", CourseID: "c1", StudentID: "s2", Status: models.EnrollmentStatusPending}

	c, w := newGinContext(http.MethodGet, "/enrollments/me", nil)
	c.Set(middleware.ContextUserKey, studentClaims("s1"))

	handler.MyEnrollments(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.EnrollmentDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, "s1", envelope.Data[0].StudentID)
}

func TestEnrollmentHandlerCancelOwnForeignEnrollment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newEnrollmentHandlerFixture()
	repo.enrollments["enr-1"] = models.Enrollment{ID: "enr-1", CourseID: "c1", StudentID: "s2", Status: models.EnrollmentStatusPending}

	c, w := newGinContext(http.MethodDelete, "/enrollments/enr-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	c.Set(middleware.ContextUserKey, studentClaims("s1"))

	handler.CancelOwn(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestEnrollmentHandlerConfirm(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, repo := newEnrollmentHandlerFixture()
	repo.enrollments["enr-1"] = models.Enrollment{ID: "enr-1", CourseID: "c1", StudentID: "s1", Status: models.EnrollmentStatusPending}

	c, w := newGinContext(http.MethodPost, "/admission/enrollments/enr-1/confirm", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}

	handler.Confirm(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, models.EnrollmentStatusConfirmed, repo.enrollments["enr-1"].Status)
}
