package service

import (
	"strings"
	"time"

	"github.com/gestionmatricula/matricula-api/internal/models"
)

// FilterCourses applies the catalog filter predicates to a course list.
// All supplied predicates must match; unset or malformed fields filter
// nothing. Input order is preserved and the input slice is not modified.
func FilterCourses(courses []models.Course, filter models.CourseFilter) []models.Course {
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	startFrom := normalizeClock(filter.StartFrom)
	endUntil := normalizeClock(filter.EndUntil)

	result := make([]models.Course, 0, len(courses))
	for _, course := range courses {
		if search != "" &&
			!strings.Contains(strings.ToLower(course.Name), search) &&
			!strings.Contains(strings.ToLower(course.Code), search) {
			continue
		}
		if filter.MinCredits > 0 && course.Credits < filter.MinCredits {
			continue
		}
		if filter.MaxCredits > 0 && course.Credits > filter.MaxCredits {
			continue
		}
		if startFrom != "" && course.StartTime < startFrom {
			continue
		}
		if endUntil != "" && course.EndTime > endUntil {
			continue
		}
		result = append(result, course)
	}
	return result
}

// normalizeClock validates an "HH:MM" bound. Malformed values are dropped
// so the corresponding predicate is skipped.
func normalizeClock(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := time.Parse("15:04", raw); err != nil {
		return ""
	}
	return raw
}
