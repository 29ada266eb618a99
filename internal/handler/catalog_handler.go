package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gestionmatricula/matricula-api/internal/middleware"
	"github.com/gestionmatricula/matricula-api/internal/models"
	"github.com/gestionmatricula/matricula-api/internal/service"
	"github.com/gestionmatricula/matricula-api/pkg/response"
)

// CatalogHandler exposes the student-facing course catalog.
type CatalogHandler struct {
	catalog *service.CatalogService
	courses *service.CourseService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService, courses *service.CourseService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, courses: courses}
}

// List godoc
// @Summary Browse the active course catalog
// @Tags Catalog
// @Produce json
// @Param search query string false "Name or code substring"
// @Param minCredits query int false "Minimum credits"
// @Param maxCredits query int false "Maximum credits"
// @Param startFrom query string false "Earliest schedule start (HH:MM)"
// @Param endUntil query string false "Latest schedule end (HH:MM)"
// @Success 200 {object} response.Envelope
// @Router /catalog/courses [get]
func (h *CatalogHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if v, err := strconv.Atoi(c.Query("minCredits")); err == nil {
		filter.MinCredits = v
	}
	if v, err := strconv.Atoi(c.Query("maxCredits")); err == nil {
		filter.MaxCredits = v
	}
	filter.StartFrom = c.Query("startFrom")
	filter.EndUntil = c.Query("endUntil")

	courses, cached, err := h.catalog.ActiveCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)

	filtered := service.FilterCourses(courses, filter)
	response.JSON(c, http.StatusOK, filtered, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Course detail with seat availability
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /catalog/courses/{id} [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
