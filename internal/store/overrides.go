package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/applytrack/internal/types"
)

// Lookup returns the manual override address for a normalized employer
// name, or (nil, nil) when none exists. The override table is an append-only
// event log; the newest event per employer is the current value.
func (s *Store) Lookup(ctx context.Context, employer string) (*types.AddressRecord, error) {
	var rec types.AddressRecord
	err := s.pool.QueryRow(ctx,
		`SELECT employer, street, postal_code, city, country
		 FROM override_events
		 WHERE employer = $1
		 ORDER BY id DESC
		 LIMIT 1`,
		employer,
	).Scan(&rec.Employer, &rec.Street, &rec.PostalCode, &rec.City, &rec.Country)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up override for %s: %w", employer, err)
	}
	rec.Provenance = types.ProvenanceManual
	rec.Confidence = 1
	return &rec, nil
}

// Append records a new override event. Earlier events for the same employer
// stay in the log for auditability; last write wins on lookup.
func (s *Store) Append(ctx context.Context, rec types.AddressRecord) error {
	source := string(rec.Provenance)
	if source == "" {
		source = string(types.ProvenanceManual)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO override_events (employer, street, postal_code, city, country, source)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Employer, rec.Street, rec.PostalCode, rec.City, rec.Country, source,
	)
	if err != nil {
		return fmt.Errorf("failed to append override for %s: %w", rec.Employer, err)
	}
	return nil
}
