package models

// EnrollmentSummary aggregates enrollment counts for reporting.
type EnrollmentSummary struct {
	TotalCourses     int `db:"total_courses" json:"total_courses"`
	ActiveCourses    int `db:"active_courses" json:"active_courses"`
	TotalEnrollments int `db:"total_enrollments" json:"total_enrollments"`
	ConfirmedCount   int `db:"confirmed_count" json:"confirmed_count"`
	PendingCount     int `db:"pending_count" json:"pending_count"`
	CancelledCount   int `db:"cancelled_count" json:"cancelled_count"`
}

// CourseDemand ranks a course by its non-cancelled enrollment count.
type CourseDemand struct {
	CourseID        string `db:"course_id" json:"course_id"`
	CourseCode      string `db:"course_code" json:"course_code"`
	CourseName      string `db:"course_name" json:"course_name"`
	EnrollmentCount int    `db:"enrollment_count" json:"enrollment_count"`
}

// EnrollmentReport bundles the coordinator report payload.
type EnrollmentReport struct {
	Summary    EnrollmentSummary `json:"summary"`
	TopCourses []CourseDemand    `json:"top_courses"`
}
