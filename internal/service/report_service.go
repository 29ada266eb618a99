package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gestionmatricula/matricula-api/internal/models"
	appErrors "github.com/gestionmatricula/matricula-api/pkg/errors"
	"github.com/gestionmatricula/matricula-api/pkg/export"
)

const (
	topCoursesLimit = 5
	rosterPageSize  = 100
)

type reportRepository interface {
	Summary(ctx context.Context) (*models.EnrollmentSummary, error)
	TopCourses(ctx context.Context, limit int) ([]models.CourseDemand, error)
}

type rosterLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

// ReportService builds coordinator reports and roster exports.
type ReportService struct {
	repo        reportRepository
	enrollments rosterLister
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(repo reportRepository, enrollments rosterLister, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:        repo,
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Overview returns global enrollment counters and course demand ranking.
func (s *ReportService) Overview(ctx context.Context) (*models.EnrollmentReport, error) {
	summary, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build enrollment summary")
	}
	top, err := s.repo.TopCourses(ctx, topCoursesLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank courses")
	}
	return &models.EnrollmentReport{Summary: *summary, TopCourses: top}, nil
}

// ExportRoster renders a course's enrollment roster as CSV or PDF bytes
// and returns the payload with its content type.
func (s *ReportService) ExportRoster(ctx context.Context, courseID, format string) ([]byte, string, error) {
	var rows []models.EnrollmentDetail
	for page := 1; ; page++ {
		batch, total, err := s.enrollments.List(ctx, models.EnrollmentFilter{CourseID: courseID, Page: page, PageSize: rosterPageSize})
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		rows = append(rows, batch...)
		if len(batch) == 0 || len(rows) >= total {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Email", "Course", "Status", "Registered"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":    row.StudentName,
			"Email":      row.StudentEmail,
			"Course":     fmt.Sprintf("%s %s", row.CourseCode, row.CourseName),
			"Status":     string(row.Status),
			"Registered": row.RegisteredAt.Format("2006-01-02 15:04"),
		})
	}

	switch format {
	case "pdf":
		payload, err := s.pdf.Render(dataset, "Enrollment Roster")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	case "", "csv":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
