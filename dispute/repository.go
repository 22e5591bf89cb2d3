package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetflow/ride"
)

var (
	// ErrNotFound signals the dispute does not exist.
	ErrNotFound = errors.New("dispute: not found")
	// ErrAlreadyOpen signals the ride already has an open dispute.
	ErrAlreadyOpen = errors.New("dispute: already open for ride")
	// ErrDisputeClosed signals a comment on a closed dispute.
	ErrDisputeClosed = errors.New("dispute: closed")
	// ErrNotOpen signals a resolution attempt on a dispute that is not open.
	ErrNotOpen = errors.New("dispute: not open")
)

// Repository defines the data access required by the dispute service.
type Repository interface {
	GetByID(ctx context.Context, disputeID string) (Record, error)
	Open(ctx context.Context, params OpenParams) (Record, error)
	InsertComment(ctx context.Context, params CommentParams) (Comment, error)
	Resolve(ctx context.Context, params ResolveParams) (Record, error)
	ListComments(ctx context.Context, disputeID string) ([]Comment, error)
}

// OpenParams enumerates the writes performed when a dispute opens.
type OpenParams struct {
	ID             string
	PartRideID     string
	OpenedByUserID string
}

// CommentParams enumerates the columns of a new comment.
type CommentParams struct {
	ID        string
	DisputeID string
	AuthorID  string
	Body      string
}

// ResolveParams enumerates the writes performed at resolution.
type ResolveParams struct {
	DisputeID       string
	CorrectionHours float64
	Outcome         ride.Status
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed dispute repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByID fetches a dispute by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, disputeID string) (Record, error) {
	const query = `
		SELECT id, part_ride_id, status::text, correction_hours, opened_by_user_id, created_at, closed_at
		FROM part_ride_disputes
		WHERE id = $1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, disputeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: query by id: %w", err)
	}
	return rec, nil
}

// Open creates the dispute and flips the ride to Dispute in one transaction.
// The ride status is re-read under a row lock: a terminal ride rejects the
// move, a concurrent winner surfaces as ride.ErrConflict, and a second open
// dispute is blocked by the partial unique index.
func (r *PGRepository) Open(ctx context.Context, params OpenParams) (Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current ride.Status
	if err := tx.QueryRow(ctx, `SELECT status::text FROM part_rides WHERE id = $1 FOR UPDATE`, params.PartRideID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ride.ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: fetch ride status: %w", err)
	}
	switch current {
	case ride.StatusPendingAdmin:
		// the only status a dispute can be raised from
	case ride.StatusDispute:
		return Record{}, ErrAlreadyOpen
	default:
		return Record{}, fmt.Errorf("%w: raise dispute from %s", ride.ErrInvalidTransition, current)
	}

	const insertSQL = `
		INSERT INTO part_ride_disputes (id, part_ride_id, opened_by_user_id, status)
		VALUES ($1, $2, $3, 'open')
		RETURNING id, part_ride_id, status::text, correction_hours, opened_by_user_id, created_at, closed_at
	`

	rec, err := scanRecord(tx.QueryRow(ctx, insertSQL, params.ID, params.PartRideID, params.OpenedByUserID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrAlreadyOpen
		}
		return Record{}, fmt.Errorf("dispute: insert: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE part_rides SET status = 'dispute', updated_at = NOW() WHERE id = $1 AND status = 'pending_admin'`, params.PartRideID)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: flip ride status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Record{}, fmt.Errorf("%w: ride left pending_admin during dispute open", ride.ErrConflict)
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit open: %w", err)
	}
	return rec, nil
}

// InsertComment appends to the thread only while the dispute is open. The
// open check lives inside the INSERT so a concurrent close cannot slip a
// comment into a closed thread.
func (r *PGRepository) InsertComment(ctx context.Context, params CommentParams) (Comment, error) {
	const query = `
		INSERT INTO dispute_comments (id, dispute_id, author_id, body)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (
			SELECT 1 FROM part_ride_disputes WHERE id = $2 AND status = 'open'
		)
		RETURNING id, dispute_id, author_id, body, created_at
	`

	var c Comment
	err := r.pool.QueryRow(ctx, query, params.ID, params.DisputeID, params.AuthorID, params.Body).
		Scan(&c.ID, &c.DisputeID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrDisputeClosed
		}
		return Comment{}, fmt.Errorf("dispute: insert comment: %w", err)
	}
	return c, nil
}

// Resolve closes the dispute, records the agreed correction hours and moves
// the ride to the resolver's explicit outcome, all in one transaction.
func (r *PGRepository) Resolve(ctx context.Context, params ResolveParams) (Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		current    Status
		partRideID string
	)
	if err := tx.QueryRow(ctx, `SELECT status::text, part_ride_id FROM part_ride_disputes WHERE id = $1 FOR UPDATE`, params.DisputeID).Scan(&current, &partRideID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: fetch for resolve: %w", err)
	}
	if current != StatusOpen {
		return Record{}, ErrNotOpen
	}

	const updateSQL = `
		UPDATE part_ride_disputes
		SET status = 'closed', correction_hours = $2, closed_at = NOW()
		WHERE id = $1
		RETURNING id, part_ride_id, status::text, correction_hours, opened_by_user_id, created_at, closed_at
	`

	rec, err := scanRecord(tx.QueryRow(ctx, updateSQL, params.DisputeID, params.CorrectionHours))
	if err != nil {
		return Record{}, fmt.Errorf("dispute: close: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE part_rides SET status = $2::part_ride_status, updated_at = NOW() WHERE id = $1 AND status = 'dispute'`, partRideID, params.Outcome)
	if err != nil {
		return Record{}, fmt.Errorf("dispute: apply outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Record{}, fmt.Errorf("%w: ride left dispute status during resolve", ride.ErrConflict)
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("dispute: commit resolve: %w", err)
	}
	return rec, nil
}

// ListComments returns the thread in creation order.
func (r *PGRepository) ListComments(ctx context.Context, disputeID string) ([]Comment, error) {
	const query = `
		SELECT id, dispute_id, author_id, body, created_at
		FROM dispute_comments
		WHERE dispute_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list comments: %w", err)
	}
	defer rows.Close()

	out := make([]Comment, 0, 8)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.DisputeID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate comments: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.PartRideID,
		&rec.Status,
		&rec.CorrectionHours,
		&rec.OpenedByUserID,
		&rec.CreatedAt,
		&rec.ClosedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
