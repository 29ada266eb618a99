package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gestionmatricula/matricula-api/internal/models"
	appErrors "github.com/gestionmatricula/matricula-api/pkg/errors"
)

// DuplicatePolicy names how repeat enrollments for one (student, course)
// pair are treated.
type DuplicatePolicy string

// DuplicateRejectAnyState rejects a new enrollment whenever any row for
// the pair exists, including cancelled ones: a student cannot re-enroll
// after cancelling.
const DuplicateRejectAnyState DuplicatePolicy = "REJECT_ANY_STATE"

// ActiveDuplicatePolicy is the policy enforced by the admission engine.
const ActiveDuplicatePolicy = DuplicateRejectAnyState

type admissionEnrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
	CountConfirmed(ctx context.Context, courseID string) (int, error)
	CreatePending(ctx context.Context, enrollment *models.Enrollment) error
	Confirm(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, cancelledAt *time.Time) error
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type admissionCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// AdmissionService validates and commits enrollment requests against live
// course capacity. Admission is two-phase: Enroll reserves a PENDING row
// (pre-checked against confirmed seats), Confirm is the authoritative
// capacity gate. The count-then-write sequences are atomic per course,
// enforced by the repository's course-row locking transactions.
type AdmissionService struct {
	repo    admissionEnrollmentRepository
	courses admissionCourseReader
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAdmissionService constructs AdmissionService.
func NewAdmissionService(repo admissionEnrollmentRepository, courses admissionCourseReader, metrics *MetricsService, logger *zap.Logger) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{repo: repo, courses: courses, metrics: metrics, logger: logger}
}

// Enroll registers a student's seat request for a course as PENDING.
func (s *AdmissionService) Enroll(ctx context.Context, studentID, courseID string) (*models.EnrollmentDetail, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.record("enroll", "rejected")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load course")
	}

	exists, err := s.repo.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to validate enrollment")
	}
	if exists {
		s.record("enroll", "rejected")
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
	}

	confirmed, err := s.repo.CountConfirmed(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to count confirmed seats")
	}
	if confirmed >= course.MaxSeats {
		s.record("enroll", "rejected")
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
	}

	enrollment := &models.Enrollment{
		CourseID:     courseID,
		StudentID:    studentID,
		RegisteredAt: time.Now().UTC(),
		Status:       models.EnrollmentStatusPending,
	}
	if err := s.repo.CreatePending(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, appErrors.ErrAlreadyEnrolled):
			s.record("enroll", "rejected")
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "")
		case errors.Is(err, appErrors.ErrCapacityExceeded):
			s.record("enroll", "rejected")
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "")
		case errors.Is(err, sql.ErrNoRows):
			s.record("enroll", "rejected")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.record("enroll", "accepted")
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("course_id", courseID),
		zap.String("student_id", studentID))

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Confirm transitions a pending enrollment to CONFIRMED, re-checking
// capacity at confirmation time. Rejections leave the row PENDING.
func (s *AdmissionService) Confirm(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	if err := s.repo.Confirm(ctx, enrollmentID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			s.record("confirm", "rejected")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, appErrors.ErrInvalidTransition):
			s.record("confirm", "rejected")
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only pending enrollments can be confirmed")
		case errors.Is(err, appErrors.ErrCapacityExceeded):
			s.record("confirm", "rejected")
			return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "cannot confirm enrollment: course is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm enrollment")
	}

	s.record("confirm", "accepted")
	s.logger.Info("enrollment confirmed", zap.String("enrollment_id", enrollmentID))

	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// Cancel marks an enrollment as CANCELLED. When requestingStudentID is
// set the enrollment must belong to that student; coordinators pass an
// empty id. Cancelling an already cancelled enrollment fails.
func (s *AdmissionService) Cancel(ctx context.Context, enrollmentID, requestingStudentID string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load enrollment")
	}
	if requestingStudentID != "" && enrollment.StudentID != requestingStudentID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	if enrollment.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrollment is already cancelled")
	}

	cancelledAt := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, enrollmentID, models.EnrollmentStatusCancelled, &cancelledAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}

	s.record("cancel", "accepted")
	s.logger.Info("enrollment cancelled", zap.String("enrollment_id", enrollmentID))

	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// List returns enrollments with pagination metadata.
func (s *AdmissionService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// ListForStudent returns a student's own enrollments.
func (s *AdmissionService) ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

func (s *AdmissionService) record(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAdmission(operation, outcome)
	}
}
