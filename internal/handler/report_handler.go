package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gestionmatricula/matricula-api/internal/service"
	"github.com/gestionmatricula/matricula-api/pkg/response"
)

// ReportHandler exposes coordinator reporting endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Overview godoc
// @Summary Enrollment counters and most demanded courses
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /reports/overview [get]
func (h *ReportHandler) Overview(c *gin.Context) {
	report, err := h.reports.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ExportRoster godoc
// @Summary Download a course roster as CSV or PDF
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "Export format" Enums(csv, pdf)
// @Success 200 {file} file
// @Security BearerAuth
// @Router /reports/courses/{id}/roster [get]
func (h *ReportHandler) ExportRoster(c *gin.Context) {
	courseID := c.Param("id")
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.reports.ExportRoster(c.Request.Context(), courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=roster_%s.%s", courseID, ext))
	c.Data(http.StatusOK, contentType, payload)
}
