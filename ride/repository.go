package ride

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetflow/access"
)

// rideColumns joins each ride with the correction hours of its closed
// dispute, so week projections see effective hours without a second query.
const rideColumns = `
	p.id, p.driver_id, p.company_id, p.client_id, p.week_approval_id,
	p.ride_date, p.year, p.week_nr, p.period_nr, p.status::text,
	p.decimal_hours, p.hourly_rate, p.allowance, p.reimbursement, p.fee,
	d.correction_hours, p.created_at, p.updated_at
`

const rideFrom = `
	FROM part_rides p
	LEFT JOIN part_ride_disputes d ON d.part_ride_id = p.id AND d.status = 'closed'
`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed ride repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByID fetches a ride by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, rideID string) (PartRide, error) {
	query := `SELECT ` + rideColumns + rideFrom + ` WHERE p.id = $1`

	rec, err := scanPartRide(r.pool.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PartRide{}, ErrNotFound
		}
		return PartRide{}, fmt.Errorf("ride: query by id: %w", err)
	}
	return rec, nil
}

// Insert creates the ride and attaches it to the driver's week approval for
// that year/week, creating the week approval when absent. Both writes share
// one transaction so every ride of a week approval carries the same driver,
// year and week number.
func (r *PGRepository) Insert(ctx context.Context, params InsertParams) (PartRide, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return PartRide{}, fmt.Errorf("ride: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const weekSQL = `
		INSERT INTO week_approvals (driver_id, year, week_nr, period_nr)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (driver_id, year, week_nr) DO UPDATE SET period_nr = week_approvals.period_nr
		RETURNING id
	`

	var weekApprovalID string
	if err := tx.QueryRow(ctx, weekSQL, params.DriverID, params.Year, params.WeekNr, params.PeriodNr).Scan(&weekApprovalID); err != nil {
		return PartRide{}, fmt.Errorf("ride: upsert week approval: %w", err)
	}

	const insertSQL = `
		INSERT INTO part_rides (
			id, driver_id, company_id, client_id, week_approval_id,
			ride_date, year, week_nr, period_nr, status,
			decimal_hours, hourly_rate, allowance, reimbursement, fee
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending_admin', $10, $11, $12, $13, $14)
		RETURNING id, driver_id, company_id, client_id, week_approval_id,
		          ride_date, year, week_nr, period_nr, status::text,
		          decimal_hours, hourly_rate, allowance, reimbursement, fee,
		          NULL::double precision, created_at, updated_at
	`

	rec, err := scanPartRide(tx.QueryRow(ctx, insertSQL,
		params.ID,
		params.DriverID,
		params.CompanyID,
		params.ClientID,
		weekApprovalID,
		params.Date,
		params.Year,
		params.WeekNr,
		params.PeriodNr,
		params.DecimalHours,
		params.HourlyRate,
		params.Allowance,
		params.Reimbursement,
		params.Fee,
	))
	if err != nil {
		return PartRide{}, fmt.Errorf("ride: insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return PartRide{}, fmt.Errorf("ride: commit insert: %w", err)
	}
	return rec, nil
}

// ApplyStatusChange re-reads the ride status under a row lock immediately
// before mutating. When the observed status no longer matches from, a
// concurrent mutation won the race and the caller gets ErrConflict.
func (r *PGRepository) ApplyStatusChange(ctx context.Context, rideID string, from, to Status) (PartRide, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return PartRide{}, fmt.Errorf("ride: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current Status
	if err := tx.QueryRow(ctx, `SELECT status::text FROM part_rides WHERE id = $1 FOR UPDATE`, rideID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PartRide{}, ErrNotFound
		}
		return PartRide{}, fmt.Errorf("ride: fetch current status: %w", err)
	}
	if current != from {
		return PartRide{}, fmt.Errorf("%w: status is %s, expected %s", ErrConflict, current, from)
	}

	updateSQL := `
		UPDATE part_rides p
		SET status = $2::part_ride_status, updated_at = NOW()
		WHERE p.id = $1
		RETURNING p.id, p.driver_id, p.company_id, p.client_id, p.week_approval_id,
		          p.ride_date, p.year, p.week_nr, p.period_nr, p.status::text,
		          p.decimal_hours, p.hourly_rate, p.allowance, p.reimbursement, p.fee,
		          NULL::double precision, p.created_at, p.updated_at
	`

	rec, err := scanPartRide(tx.QueryRow(ctx, updateSQL, rideID, to))
	if err != nil {
		return PartRide{}, fmt.Errorf("ride: update status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return PartRide{}, fmt.Errorf("ride: commit status change: %w", err)
	}
	return rec, nil
}

// WeekApprovalByID fetches a week-approval record.
func (r *PGRepository) WeekApprovalByID(ctx context.Context, weekApprovalID string) (WeekApproval, error) {
	const query = `
		SELECT id, driver_id, year, week_nr, period_nr, status, created_at
		FROM week_approvals
		WHERE id = $1
	`

	var wa WeekApproval
	err := r.pool.QueryRow(ctx, query, weekApprovalID).
		Scan(&wa.ID, &wa.DriverID, &wa.Year, &wa.WeekNr, &wa.PeriodNr, &wa.Status, &wa.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WeekApproval{}, ErrNotFound
		}
		return WeekApproval{}, fmt.Errorf("ride: query week approval: %w", err)
	}
	return wa, nil
}

// ListForWeek returns the rides referenced by a week approval in creation order.
func (r *PGRepository) ListForWeek(ctx context.Context, weekApprovalID string) ([]PartRide, error) {
	query := `SELECT ` + rideColumns + rideFrom + ` WHERE p.week_approval_id = $1 ORDER BY p.ride_date ASC, p.created_at ASC`

	rows, err := r.pool.Query(ctx, query, weekApprovalID)
	if err != nil {
		return nil, fmt.Errorf("ride: list for week: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// ListForScope returns the rides visible to the scope: the actor's own rides
// plus rides of scoped companies and clients. Non-driver scopes carry an
// empty OwnedDriverID; NULLIF keeps the uuid comparison well-typed instead of
// failing to bind an empty string.
func (r *PGRepository) ListForScope(ctx context.Context, scope access.Scope) ([]PartRide, error) {
	query := `SELECT ` + rideColumns + rideFrom + ` ORDER BY p.ride_date DESC, p.created_at DESC`
	args := []any{}
	if !scope.Unrestricted {
		query = `SELECT ` + rideColumns + rideFrom + `
			WHERE (p.driver_id = NULLIF($1, '')::uuid OR p.company_id = ANY($2) OR p.client_id = ANY($3))
			ORDER BY p.ride_date DESC, p.created_at DESC`
		args = append(args, scope.OwnedDriverID, scope.CompanyIDList(), scope.ClientIDList())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ride: list for scope: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

func collectRides(rows pgx.Rows) ([]PartRide, error) {
	out := make([]PartRide, 0, 8)
	for rows.Next() {
		rec, err := scanPartRide(rows)
		if err != nil {
			return nil, fmt.Errorf("ride: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ride: iterate: %w", err)
	}
	return out, nil
}

func scanPartRide(row pgx.Row) (PartRide, error) {
	var rec PartRide
	err := row.Scan(
		&rec.ID,
		&rec.DriverID,
		&rec.CompanyID,
		&rec.ClientID,
		&rec.WeekApprovalID,
		&rec.Date,
		&rec.Year,
		&rec.WeekNr,
		&rec.PeriodNr,
		&rec.Status,
		&rec.DecimalHours,
		&rec.HourlyRate,
		&rec.Allowance,
		&rec.Reimbursement,
		&rec.Fee,
		&rec.CorrectionHours,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return PartRide{}, err
	}
	return rec, nil
}
