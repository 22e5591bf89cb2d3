package dispute

import "time"

// Status represents the lifecycle of a dispute record.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Record mirrors the part_ride_disputes table. CorrectionHours stays nil
// until resolution; ClosedAt is set when the dispute closes.
type Record struct {
	ID              string
	PartRideID      string
	Status          Status
	CorrectionHours *float64
	OpenedByUserID  *string
	CreatedAt       time.Time
	ClosedAt        *time.Time
}

// Comment is one entry of a dispute's append-only comment thread, ordered by
// creation time.
type Comment struct {
	ID        string
	DisputeID string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}
