package models

import "time"

// Course represents a course offering with capacity and schedule.
// StartTime and EndTime hold wall-clock times as "HH:MM" strings so that
// schedule comparisons stay lexicographic and stable across serialization.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Credits   int       `db:"credits" json:"credits"`
	MaxSeats  int       `db:"max_seats" json:"max_seats"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail extends Course with live seat occupancy.
type CourseDetail struct {
	Course
	ConfirmedSeats int `db:"confirmed_seats" json:"confirmed_seats"`
}

// CourseFilter captures the optional catalog filters. Zero values mean
// "no filter for that field"; malformed time bounds are ignored.
type CourseFilter struct {
	Search     string
	MinCredits int
	MaxCredits int
	StartFrom  string
	EndUntil   string
}

// CourseListFilter provides filters for the coordinator course listing.
type CourseListFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
