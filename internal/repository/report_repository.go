package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gestionmatricula/matricula-api/internal/models"
)

// ReportRepository aggregates enrollment statistics for reporting.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Summary returns global course and enrollment counters.
func (r *ReportRepository) Summary(ctx context.Context) (*models.EnrollmentSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM courses) AS total_courses,
        (SELECT COUNT(*) FROM courses WHERE active = TRUE) AS active_courses,
        (SELECT COUNT(*) FROM enrollments) AS total_enrollments,
        (SELECT COUNT(*) FROM enrollments WHERE status = 'CONFIRMED') AS confirmed_count,
        (SELECT COUNT(*) FROM enrollments WHERE status = 'PENDING') AS pending_count,
        (SELECT COUNT(*) FROM enrollments WHERE status = 'CANCELLED') AS cancelled_count`
	var summary models.EnrollmentSummary
	if err := r.db.GetContext(ctx, &summary, query); err != nil {
		return nil, fmt.Errorf("enrollment summary: %w", err)
	}
	return &summary, nil
}

// TopCourses ranks active courses by non-cancelled enrollment count.
func (r *ReportRepository) TopCourses(ctx context.Context, limit int) ([]models.CourseDemand, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT c.id AS course_id, c.code AS course_code, c.name AS course_name,
        COUNT(e.id) FILTER (WHERE e.status <> 'CANCELLED') AS enrollment_count
        FROM courses c
        LEFT JOIN enrollments e ON e.course_id = c.id
        WHERE c.active = TRUE
        GROUP BY c.id, c.code, c.name
        ORDER BY enrollment_count DESC, c.name ASC
        LIMIT $1`
	var demand []models.CourseDemand
	if err := r.db.SelectContext(ctx, &demand, query, limit); err != nil {
		return nil, fmt.Errorf("top courses: %w", err)
	}
	return demand, nil
}
