package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetflow/access"
)

// Graph is the read side of the tenancy graph consumed by the scope
// resolver. Every query applies the soft-delete predicate so scoping logic
// never re-implements the filter.
type Graph struct {
	pool *pgxpool.Pool
}

// NewGraph wires a pgxpool-backed graph reader.
func NewGraph(pool *pgxpool.Pool) *Graph {
	return &Graph{pool: pool}
}

// ContactAssociations returns the association records of the actor's active
// ContactPerson, or access.ErrProfileNotFound when none exists.
func (g *Graph) ContactAssociations(ctx context.Context, userID string) ([]access.Association, error) {
	const personSQL = `
		SELECT id
		FROM contact_persons
		WHERE user_id = $1 AND is_deleted = FALSE
	`

	var personID string
	if err := g.pool.QueryRow(ctx, personSQL, userID).Scan(&personID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, access.ErrProfileNotFound
		}
		return nil, fmt.Errorf("tenancy: find contact person: %w", err)
	}

	const assocSQL = `
		SELECT company_id, client_id
		FROM contact_person_client_companies
		WHERE contact_person_id = $1
	`

	rows, err := g.pool.Query(ctx, assocSQL, personID)
	if err != nil {
		return nil, fmt.Errorf("tenancy: list associations: %w", err)
	}
	defer rows.Close()

	assocs := make([]access.Association, 0, 4)
	for rows.Next() {
		var a access.Association
		if err := rows.Scan(&a.CompanyID, &a.ClientID); err != nil {
			return nil, fmt.Errorf("tenancy: scan association: %w", err)
		}
		assocs = append(assocs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenancy: iterate associations: %w", err)
	}
	return assocs, nil
}

// DriverByUser returns the actor's active driver profile, or
// access.ErrProfileNotFound when none exists.
func (g *Graph) DriverByUser(ctx context.Context, userID string) (access.DriverProfile, error) {
	const query = `
		SELECT id, company_id
		FROM drivers
		WHERE user_id = $1 AND is_deleted = FALSE
	`

	var profile access.DriverProfile
	if err := g.pool.QueryRow(ctx, query, userID).Scan(&profile.ID, &profile.CompanyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return access.DriverProfile{}, access.ErrProfileNotFound
		}
		return access.DriverProfile{}, fmt.Errorf("tenancy: find driver: %w", err)
	}
	return profile, nil
}
