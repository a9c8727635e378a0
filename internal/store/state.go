package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonathan/applytrack/internal/pipeline"
	"github.com/jonathan/applytrack/internal/types"
)

// LoadState loads the whole persisted state at run start. A row whose JSON
// payload no longer unmarshals is reported as an error, not skipped: the
// orchestrator treats that as corruption and aborts before writing.
func (s *Store) LoadState(ctx context.Context) (*pipeline.State, error) {
	state := &pipeline.State{}

	rows, err := s.pool.Query(ctx, `SELECT id, data FROM applications ORDER BY employer, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		var app types.Application
		if err := json.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("application %s payload unreadable: %w", id, err)
		}
		state.Applications = append(state.Applications, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	addresses, err := s.listAddresses(ctx)
	if err != nil {
		return nil, err
	}
	state.Addresses = addresses

	unresolved, err := s.listUnresolved(ctx)
	if err != nil {
		return nil, err
	}
	state.Unresolved = unresolved

	return state, nil
}

// SaveState writes the whole state back at run end in one transaction.
// Applications are never deleted, so upserts cover the whole diff.
func (s *Store) SaveState(ctx context.Context, state *pipeline.State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin save: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i := range state.Applications {
		app := &state.Applications[i]
		data, err := json.Marshal(app)
		if err != nil {
			return fmt.Errorf("failed to marshal application %s: %w", app.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO applications (id, employer, role, data, updated_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (id) DO UPDATE SET employer = $2, role = $3, data = $4, updated_at = NOW()`,
			app.ID, app.Employer, app.Role, data,
		)
		if err != nil {
			return fmt.Errorf("failed to save application %s: %w", app.ID, err)
		}
	}

	for _, rec := range state.Addresses {
		_, err = tx.Exec(ctx,
			`INSERT INTO address_records (employer, street, postal_code, city, country, provenance, confidence, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			 ON CONFLICT (employer) DO UPDATE
			 SET street = $2, postal_code = $3, city = $4, country = $5, provenance = $6, confidence = $7, updated_at = NOW()`,
			rec.Employer, rec.Street, rec.PostalCode, rec.City, rec.Country, string(rec.Provenance), rec.Confidence,
		)
		if err != nil {
			return fmt.Errorf("failed to save address for %s: %w", rec.Employer, err)
		}
	}

	for i := range state.Unresolved {
		item := &state.Unresolved[i]
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal unresolved item %s: %w", item.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO unresolved_items (id, data, resolved, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET data = $2, resolved = $3`,
			item.ID, data, item.Resolved, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save unresolved item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit save: %w", err)
	}
	return nil
}

func (s *Store) listAddresses(ctx context.Context) ([]types.AddressRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT employer, street, postal_code, city, country, provenance, confidence
		 FROM address_records ORDER BY employer`)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var out []types.AddressRecord
	for rows.Next() {
		var rec types.AddressRecord
		var provenance string
		if err := rows.Scan(&rec.Employer, &rec.Street, &rec.PostalCode, &rec.City, &rec.Country, &provenance, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		rec.Provenance = types.Provenance(provenance)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) listUnresolved(ctx context.Context) ([]types.UnresolvedItem, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, data FROM unresolved_items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list unresolved items: %w", err)
	}
	defer rows.Close()

	var out []types.UnresolvedItem
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved item: %w", err)
		}
		var item types.UnresolvedItem
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("unresolved item %s payload unreadable: %w", id, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
