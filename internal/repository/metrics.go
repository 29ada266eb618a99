package repository

import "time"

// QueryObserver records database query timing. A nil observer disables
// instrumentation.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}
