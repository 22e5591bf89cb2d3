package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetflow/access"
)

var (
	// ErrNotFound signals the ride or week approval does not exist.
	ErrNotFound = errors.New("ride: not found")
	// ErrForbidden signals the actor's scope or write policy rejects the operation.
	ErrForbidden = errors.New("ride: forbidden")
	// ErrInvalidTransition signals the requested action is not legal from the
	// ride's current status.
	ErrInvalidTransition = errors.New("ride: invalid transition")
	// ErrConflict signals a concurrent mutation raced and won; the caller may
	// re-read and decide whether to reapply.
	ErrConflict = errors.New("ride: concurrent update conflict")
)

// Repository defines the data access required by the lifecycle service.
type Repository interface {
	GetByID(ctx context.Context, rideID string) (PartRide, error)
	Insert(ctx context.Context, params InsertParams) (PartRide, error)
	// ApplyStatusChange re-reads the ride status under a row lock and fails
	// with ErrConflict when it no longer matches from.
	ApplyStatusChange(ctx context.Context, rideID string, from, to Status) (PartRide, error)
	WeekApprovalByID(ctx context.Context, weekApprovalID string) (WeekApproval, error)
	ListForWeek(ctx context.Context, weekApprovalID string) ([]PartRide, error)
	ListForScope(ctx context.Context, scope access.Scope) ([]PartRide, error)
}

// InsertParams enumerates the columns written for a new ride.
type InsertParams struct {
	ID            string
	DriverID      string
	CompanyID     *string
	ClientID      string
	Date          time.Time
	Year          int
	WeekNr        int
	PeriodNr      int
	DecimalHours  float64
	HourlyRate    float64
	Allowance     float64
	Reimbursement float64
	Fee           float64
}

// SubmitParams is the caller-facing shape of a ride submission.
type SubmitParams struct {
	// DriverID is ignored for driver actors, who always submit their own
	// rides; administrative actors must set it.
	DriverID      string
	CompanyID     *string
	ClientID      string
	Date          time.Time
	Year          int
	WeekNr        int
	PeriodNr      int
	DecimalHours  float64
	HourlyRate    float64
	Allowance     float64
	Reimbursement float64
	Fee           float64
}

// Service owns the ride lifecycle state machine and the week projection.
type Service struct {
	repo   Repository
	policy access.WritePolicy
	idGen  func() string
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		policy: access.DefaultWritePolicy(),
		idGen:  func() string { return uuid.NewString() },
	}
}

// WithWritePolicy replaces the default permission grid.
func (s *Service) WithWritePolicy(policy access.WritePolicy) *Service {
	s.policy = policy
	return s
}

// Submit records a completed ride. Rides always start in PendingAdmin.
func (s *Service) Submit(ctx context.Context, scope access.Scope, params SubmitParams) (PartRide, error) {
	if !s.policy.Allows(scope.Role, access.ActionSubmitRide) {
		return PartRide{}, ErrForbidden
	}

	if scope.OwnedDriverID != "" {
		params.DriverID = scope.OwnedDriverID
	}
	if params.DriverID == "" {
		return PartRide{}, fmt.Errorf("ride: driver id required")
	}
	if params.ClientID == "" {
		return PartRide{}, fmt.Errorf("ride: client id required")
	}
	if params.DecimalHours < 0 {
		return PartRide{}, fmt.Errorf("ride: negative hours")
	}

	target := access.Target{ClientID: params.ClientID, DriverID: params.DriverID}
	if params.CompanyID != nil {
		target.CompanyID = *params.CompanyID
	}
	if decision := access.CheckAccess(scope, target); !decision.Allowed {
		return PartRide{}, ErrForbidden
	}

	return s.repo.Insert(ctx, InsertParams{
		ID:            s.idGen(),
		DriverID:      params.DriverID,
		CompanyID:     params.CompanyID,
		ClientID:      params.ClientID,
		Date:          params.Date,
		Year:          params.Year,
		WeekNr:        params.WeekNr,
		PeriodNr:      params.PeriodNr,
		DecimalHours:  params.DecimalHours,
		HourlyRate:    params.HourlyRate,
		Allowance:     params.Allowance,
		Reimbursement: params.Reimbursement,
		Fee:           params.Fee,
	})
}

// Transition applies an approval decision to a pending ride.
//
// Legality is validated against the status the caller observed; the write
// itself re-reads the status under lock and reports ErrConflict when a
// concurrent mutation got there first, so two racing approvals cannot both
// succeed.
func (s *Service) Transition(ctx context.Context, rideID string, action TransitionAction, scope access.Scope) (PartRide, error) {
	var (
		to           Status
		policyAction access.Action
	)
	switch action {
	case ActionApprove:
		to, policyAction = StatusAccepted, access.ActionApproveRide
	case ActionReject:
		to, policyAction = StatusRejected, access.ActionRejectRide
	default:
		return PartRide{}, fmt.Errorf("ride: unknown action %q", action)
	}

	rec, err := s.repo.GetByID(ctx, rideID)
	if err != nil {
		return PartRide{}, err
	}

	if !s.policy.Allows(scope.Role, policyAction) {
		return PartRide{}, ErrForbidden
	}
	// Approval is an administrative decision over the ride's company, so the
	// driver self-access shortcut does not apply here.
	target := access.Target{ClientID: rec.ClientID}
	if rec.CompanyID != nil {
		target.CompanyID = *rec.CompanyID
	}
	if decision := access.CheckAccess(scope, target); !decision.Allowed {
		return PartRide{}, ErrForbidden
	}

	if rec.Status != StatusPendingAdmin {
		return PartRide{}, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, rec.Status)
	}

	return s.repo.ApplyStatusChange(ctx, rideID, StatusPendingAdmin, to)
}

// GetByID returns a single ride.
func (s *Service) GetByID(ctx context.Context, rideID string) (PartRide, error) {
	return s.repo.GetByID(ctx, rideID)
}

// List returns the rides visible to the scope.
func (s *Service) List(ctx context.Context, scope access.Scope) ([]PartRide, error) {
	return s.repo.ListForScope(ctx, scope)
}

// WeekApprovalByID returns the week-approval record, e.g. so callers can
// guard against its driver and company before reading the summary.
func (s *Service) WeekApprovalByID(ctx context.Context, weekApprovalID string) (WeekApproval, error) {
	return s.repo.WeekApprovalByID(ctx, weekApprovalID)
}

// ComputeWeekSummary derives the week projection from the current ride
// statuses. Nothing is cached: the underlying rides change independently of
// the week-approval record.
func (s *Service) ComputeWeekSummary(ctx context.Context, weekApprovalID string) (WeekSummary, error) {
	if _, err := s.repo.WeekApprovalByID(ctx, weekApprovalID); err != nil {
		return WeekSummary{}, err
	}
	rides, err := s.repo.ListForWeek(ctx, weekApprovalID)
	if err != nil {
		return WeekSummary{}, err
	}
	return Summarize(rides), nil
}
