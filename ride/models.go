package ride

import "time"

// Status is the lifecycle state of a PartRide. Accepted and Rejected are
// terminal; Dispute can only leave through dispute resolution.
type Status string

const (
	StatusPendingAdmin Status = "pending_admin"
	StatusAccepted     Status = "accepted"
	StatusRejected     Status = "rejected"
	StatusDispute      Status = "dispute"
)

// Terminal reports whether no further transition is legal from the status.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// TransitionAction is a requested lifecycle move on a pending ride.
type TransitionAction string

const (
	ActionApprove TransitionAction = "approve"
	ActionReject  TransitionAction = "reject"
)

// PartRide is a single recorded driving assignment subject to approval.
// CorrectionHours is populated from a closed dispute when the row is read
// through a week projection; it is never stored on the ride itself.
type PartRide struct {
	ID              string
	DriverID        *string
	CompanyID       *string
	ClientID        string
	WeekApprovalID  *string
	Date            time.Time
	Year            int
	WeekNr          int
	PeriodNr        int
	Status          Status
	DecimalHours    float64
	HourlyRate      float64
	Allowance       float64
	Reimbursement   float64
	Fee             float64
	CorrectionHours *float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectiveHours returns the dispute-corrected hours when a correction
// exists, the recorded hours otherwise.
func (p PartRide) EffectiveHours() float64 {
	if p.CorrectionHours != nil {
		return *p.CorrectionHours
	}
	return p.DecimalHours
}

// Forecast is the compensation forecast for the ride.
func (p PartRide) Forecast() float64 {
	return p.EffectiveHours()*p.HourlyRate + p.Allowance + p.Reimbursement - p.Fee
}

// WeekApproval is the per-driver, per-week aggregate over PartRides. Its
// totals and summary status are derived at read time, never stored.
type WeekApproval struct {
	ID        string
	DriverID  string
	Year      int
	WeekNr    int
	PeriodNr  int
	Status    string
	CreatedAt time.Time
}
