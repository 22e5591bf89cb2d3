package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fleetflow/access"
	"fleetflow/ride"
)

// ErrForbidden signals the actor's scope or write policy rejects the operation.
var ErrForbidden = errors.New("dispute: forbidden")

// ErrInvalidOutcome signals a resolution outcome that is not a terminal ride
// status. The outcome is the resolver's explicit business judgment, never
// derived from the correction hours.
var ErrInvalidOutcome = errors.New("dispute: outcome must be accepted or rejected")

// RideReader is the slice of the ride repository the dispute service needs
// to load tenancy attributes for guard checks.
type RideReader interface {
	GetByID(ctx context.Context, rideID string) (ride.PartRide, error)
}

// Service owns the dispute sub-workflow: open, comment, resolve.
type Service struct {
	repo   Repository
	rides  RideReader
	policy access.WritePolicy
	idGen  func() string
}

func NewService(repo Repository, rides RideReader) *Service {
	return &Service{
		repo:   repo,
		rides:  rides,
		policy: access.DefaultWritePolicy(),
		idGen:  func() string { return uuid.NewString() },
	}
}

// WithWritePolicy replaces the default permission grid.
func (s *Service) WithWritePolicy(policy access.WritePolicy) *Service {
	s.policy = policy
	return s
}

// Open raises a dispute on a pending ride. Permitted for the ride's driver
// or for scoped administrative actors; a ride holds at most one open dispute.
func (s *Service) Open(ctx context.Context, rideID string, scope access.Scope, openedByUserID string) (Record, error) {
	rec, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return Record{}, err
	}

	if !s.policy.Allows(scope.Role, access.ActionRaiseDispute) {
		return Record{}, ErrForbidden
	}
	if decision := access.CheckAccess(scope, rideTarget(rec)); !decision.Allowed {
		return Record{}, ErrForbidden
	}

	return s.repo.Open(ctx, OpenParams{
		ID:             s.idGen(),
		PartRideID:     rideID,
		OpenedByUserID: openedByUserID,
	})
}

// AddComment appends to an open dispute's thread. Any actor with read access
// to the disputed ride may comment.
func (s *Service) AddComment(ctx context.Context, disputeID, authorID, body string, scope access.Scope) (Comment, error) {
	if body == "" {
		return Comment{}, fmt.Errorf("dispute: comment body required")
	}
	if !s.policy.Allows(scope.Role, access.ActionComment) {
		return Comment{}, ErrForbidden
	}

	rec, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return Comment{}, err
	}
	partRide, err := s.rides.GetByID(ctx, rec.PartRideID)
	if err != nil {
		return Comment{}, err
	}
	if decision := access.CheckAccess(scope, rideTarget(partRide)); !decision.Allowed {
		return Comment{}, ErrForbidden
	}
	if rec.Status == StatusClosed {
		return Comment{}, ErrDisputeClosed
	}

	return s.repo.InsertComment(ctx, CommentParams{
		ID:        s.idGen(),
		DisputeID: disputeID,
		AuthorID:  authorID,
		Body:      body,
	})
}

// Resolve closes an open dispute with the agreed correction hours and moves
// the ride to the resolver's explicit outcome. Administrative scope only:
// the driver self-access shortcut does not apply.
func (s *Service) Resolve(ctx context.Context, disputeID string, correctionHours float64, outcome ride.Status, scope access.Scope) (Record, error) {
	if outcome != ride.StatusAccepted && outcome != ride.StatusRejected {
		return Record{}, ErrInvalidOutcome
	}
	if !s.policy.Allows(scope.Role, access.ActionResolveDispute) {
		return Record{}, ErrForbidden
	}

	rec, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return Record{}, err
	}
	partRide, err := s.rides.GetByID(ctx, rec.PartRideID)
	if err != nil {
		return Record{}, err
	}
	target := access.Target{ClientID: partRide.ClientID}
	if partRide.CompanyID != nil {
		target.CompanyID = *partRide.CompanyID
	}
	if decision := access.CheckAccess(scope, target); !decision.Allowed {
		return Record{}, ErrForbidden
	}

	return s.repo.Resolve(ctx, ResolveParams{
		DisputeID:       disputeID,
		CorrectionHours: correctionHours,
		Outcome:         outcome,
	})
}

// Comments returns the dispute's thread for any actor with read access to
// the disputed ride.
func (s *Service) Comments(ctx context.Context, disputeID string, scope access.Scope) ([]Comment, error) {
	rec, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	partRide, err := s.rides.GetByID(ctx, rec.PartRideID)
	if err != nil {
		return nil, err
	}
	if decision := access.CheckAccess(scope, rideTarget(partRide)); !decision.Allowed {
		return nil, ErrForbidden
	}
	return s.repo.ListComments(ctx, disputeID)
}

func rideTarget(rec ride.PartRide) access.Target {
	target := access.Target{ClientID: rec.ClientID}
	if rec.CompanyID != nil {
		target.CompanyID = *rec.CompanyID
	}
	if rec.DriverID != nil {
		target.DriverID = *rec.DriverID
	}
	return target
}
