package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gestionmatricula/matricula-api/internal/models"
	appErrors "github.com/gestionmatricula/matricula-api/pkg/errors"
)

// EnrollmentRepository handles persistence of enrollments. Admission
// critical sections (pending insert, confirmation) run inside a
// transaction that locks the course row, so the confirmed seat count for
// a course is checked and changed under a per-course serialization point.
type EnrollmentRepository struct {
	db      *sqlx.DB
	metrics QueryObserver
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB, metrics QueryObserver) *EnrollmentRepository {
	return &EnrollmentRepository{db: db, metrics: metrics}
}

func (r *EnrollmentRepository) observe(label string, start time.Time) {
	if r.metrics != nil {
		r.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	defer r.observe("enrollment_list", time.Now())
	base := `FROM enrollments e
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN users u ON u.id = e.student_id`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"registered_at": "e.registered_at",
		"student_name":  "u.full_name",
		"course_name":   "c.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.registered_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.course_id, e.student_id, e.registered_at, e.cancelled_at, e.status,
        c.code AS course_code, c.name AS course_name, u.full_name AS student_name, u.email AS student_email
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	defer r.observe("enrollment_find", time.Now())
	const query = `SELECT id, course_id, student_id, registered_at, cancelled_at, status FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	defer r.observe("enrollment_find_detail", time.Now())
	const query = `SELECT e.id, e.course_id, e.student_id, e.registered_at, e.cancelled_at, e.status,
        c.code AS course_code, c.name AS course_name, u.full_name AS student_name, u.email AS student_email
        FROM enrollments e
        LEFT JOIN courses c ON c.id = e.course_id
        LEFT JOIN users u ON u.id = e.student_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Exists reports whether any enrollment row exists for the student and
// course pair, regardless of state.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	defer r.observe("enrollment_exists", time.Now())
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// CountConfirmed returns the number of confirmed enrollments for a course.
func (r *EnrollmentRepository) CountConfirmed(ctx context.Context, courseID string) (int, error) {
	defer r.observe("enrollment_count_confirmed", time.Now())
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID, models.EnrollmentStatusConfirmed); err != nil {
		return 0, fmt.Errorf("count confirmed enrollments: %w", err)
	}
	return count, nil
}

// CreatePending inserts a new pending enrollment. The duplicate and
// capacity checks are re-run with the course row locked so concurrent
// admissions for the same course serialize here.
func (r *EnrollmentRepository) CreatePending(ctx context.Context, enrollment *models.Enrollment) error {
	defer r.observe("enrollment_create_pending", time.Now())
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.RegisteredAt.IsZero() {
		enrollment.RegisteredAt = time.Now().UTC()
	}
	enrollment.Status = models.EnrollmentStatusPending

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxSeats int
	if err := tx.GetContext(ctx, &maxSeats, `SELECT max_seats FROM courses WHERE id = $1 FOR UPDATE`, enrollment.CourseID); err != nil {
		return err
	}

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`,
		enrollment.StudentID, enrollment.CourseID)
	if err == nil {
		return appErrors.ErrAlreadyEnrolled
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("check duplicate enrollment: %w", err)
	}

	var confirmed int
	if err := tx.GetContext(ctx, &confirmed, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`,
		enrollment.CourseID, models.EnrollmentStatusConfirmed); err != nil {
		return fmt.Errorf("count confirmed enrollments: %w", err)
	}
	if confirmed >= maxSeats {
		return appErrors.ErrCapacityExceeded
	}

	const insert = `INSERT INTO enrollments (id, course_id, student_id, registered_at, cancelled_at, status)
        VALUES (:id, :course_id, :student_id, :registered_at, :cancelled_at, :status)`
	if _, err := tx.NamedExecContext(ctx, insert, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment tx: %w", err)
	}
	return nil
}

// Confirm transitions a pending enrollment to confirmed. This is the
// authoritative capacity gate: the course row is locked, the confirmed
// count is recomputed, and the update only happens while seats remain.
func (r *EnrollmentRepository) Confirm(ctx context.Context, id string) error {
	defer r.observe("enrollment_confirm", time.Now())
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin confirm tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var row struct {
		CourseID string                  `db:"course_id"`
		Status   models.EnrollmentStatus `db:"status"`
		MaxSeats int                     `db:"max_seats"`
	}
	const lockQuery = `SELECT e.course_id, e.status, c.max_seats
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1
        FOR UPDATE OF c`
	if err := tx.GetContext(ctx, &row, lockQuery, id); err != nil {
		return err
	}

	if row.Status != models.EnrollmentStatusPending {
		return appErrors.ErrInvalidTransition
	}

	var confirmed int
	if err := tx.GetContext(ctx, &confirmed, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`,
		row.CourseID, models.EnrollmentStatusConfirmed); err != nil {
		return fmt.Errorf("count confirmed enrollments: %w", err)
	}
	if confirmed >= row.MaxSeats {
		return appErrors.ErrCapacityExceeded
	}

	if _, err := tx.ExecContext(ctx, `UPDATE enrollments SET status = $2 WHERE id = $1`, id, models.EnrollmentStatusConfirmed); err != nil {
		return fmt.Errorf("confirm enrollment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit confirm tx: %w", err)
	}
	return nil
}

// UpdateStatus updates status and cancelled_at for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, cancelledAt *time.Time) error {
	defer r.observe("enrollment_update_status", time.Now())
	const query = `UPDATE enrollments SET status = $2, cancelled_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, cancelledAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListByStudent returns all enrollments for one student, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	defer r.observe("enrollment_list_by_student", time.Now())
	const query = `SELECT e.id, e.course_id, e.student_id, e.registered_at, e.cancelled_at, e.status,
        c.code AS course_code, c.name AS course_name, u.full_name AS student_name, u.email AS student_email
        FROM enrollments e
        LEFT JOIN courses c ON c.id = e.course_id
        LEFT JOIN users u ON u.id = e.student_id
        WHERE e.student_id = $1
        ORDER BY e.registered_at DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}
