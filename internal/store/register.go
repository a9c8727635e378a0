package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/applytrack/internal/address"
	"github.com/jonathan/applytrack/internal/match"
	"github.com/jonathan/applytrack/internal/types"
)

// registerCandidateLimit caps how many register rows are scored per query.
const registerCandidateLimit = 25

// Candidates queries the open-register dataset by normalized company name.
// An exact normalized match is preferred; otherwise rows sharing the first
// name token are fetched and scored by name similarity in Go. The dataset
// is read-only to the core; it is loaded externally.
func (s *Store) Candidates(ctx context.Context, employer string) ([]address.RegisterCandidate, error) {
	if strings.TrimSpace(employer) == "" {
		return nil, nil
	}

	token := strings.SplitN(employer, " ", 2)[0]
	rows, err := s.pool.Query(ctx,
		`SELECT name, name_norm, street, postal_code, city, country
		 FROM register_companies
		 WHERE name_norm = $1 OR name_norm LIKE $2
		 LIMIT $3`,
		employer, token+"%", registerCandidateLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query register: %w", err)
	}
	defer rows.Close()

	var out []address.RegisterCandidate
	for rows.Next() {
		var name, norm string
		var rec types.AddressRecord
		if err := rows.Scan(&name, &norm, &rec.Street, &rec.PostalCode, &rec.City, &rec.Country); err != nil {
			return nil, fmt.Errorf("failed to scan register row: %w", err)
		}
		out = append(out, address.RegisterCandidate{
			Name:       name,
			Record:     rec,
			Similarity: match.Similarity(employer, norm),
		})
	}
	return out, rows.Err()
}
