package ride

// SummaryStatus is the derived week-level state over a set of rides.
type SummaryStatus string

const (
	SummaryUnknown             SummaryStatus = "unknown"
	SummaryHasPending          SummaryStatus = "has_pending"
	SummaryHasDisputes         SummaryStatus = "has_disputes"
	SummaryAllApprovedRejected SummaryStatus = "all_approved_or_rejected"
)

// WeekSummary is the read-side projection over a week's rides. It is
// recomputed on every read because ride statuses change independently of the
// WeekApproval record.
type WeekSummary struct {
	Status     SummaryStatus
	TotalHours float64
	Forecasted float64
	Counts     map[Status]int
}

// Summarize folds a week's rides into a summary. Precedence: any disputed
// ride marks the whole week; a week counts as settled only when every ride
// is accepted or rejected; an empty week is Unknown.
func Summarize(rides []PartRide) WeekSummary {
	summary := WeekSummary{
		Status: SummaryUnknown,
		Counts: make(map[Status]int),
	}

	settled := len(rides) > 0
	hasDispute := false
	hasPending := false

	for _, r := range rides {
		summary.Counts[r.Status]++
		summary.TotalHours += r.EffectiveHours()
		summary.Forecasted += r.Forecast()

		switch r.Status {
		case StatusDispute:
			hasDispute = true
			settled = false
		case StatusPendingAdmin:
			hasPending = true
			settled = false
		}
	}

	switch {
	case hasDispute:
		summary.Status = SummaryHasDisputes
	case settled:
		summary.Status = SummaryAllApprovedRejected
	case hasPending:
		summary.Status = SummaryHasPending
	}

	return summary
}
