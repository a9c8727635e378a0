package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/applytrack/internal/address"
	"github.com/jonathan/applytrack/internal/match"
	"github.com/jonathan/applytrack/internal/types"
)

// memStore keeps the state in memory, round-tripping through JSON the way
// the real store does, so reruns see an independent snapshot.
type memStore struct {
	data    []byte
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) LoadState(_ context.Context) (*State, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return &State{}, nil
	}
	var state State
	if err := json.Unmarshal(m.data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *memStore) SaveState(_ context.Context, state *State) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.saves++
	m.data = data
	return nil
}

func raw(emailID, employer, role, status string, day int) types.RawExtraction {
	return types.RawExtraction{
		EmailID:      emailID,
		IngestedAt:   time.Date(2026, 4, day, 9, 0, 0, 0, time.UTC),
		EmployerName: employer,
		RoleTitle:    role,
		StatusPhrase: status,
		EventDate:    fmt.Sprintf("2026-04-%02d", day),
	}
}

func testOptions(store Store) Options {
	return Options{
		Matcher:     match.New(match.DefaultConfig()),
		Store:       store,
		Parallelism: 2,
		Out:         &bytes.Buffer{},
	}
}

func TestRunConsolidatesAcrossSpellings(t *testing.T) {
	store := &memStore{}
	raws := []types.RawExtraction{
		raw("msg-1", "Acme GmbH", "Software Engineer (m/w/d)", "applied", 1),
		raw("msg-2", "Acme", "Software Engineer", "Zwischenstand", 3),
		raw("msg-3", "Acme GmbH", "Software Engineer", "Einladung", 7),
		raw("msg-4", "Beta Inc.", "Data Analyst", "applied", 2),
	}

	res, err := Run(context.Background(), raws, testOptions(store))
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, res.Final)

	require.Len(t, res.State.Applications, 2)
	acme := res.State.Applications[0]
	assert.Equal(t, "acme", acme.Employer)
	assert.Equal(t, types.StatusInvited, acme.CurrentStatus)
	assert.Len(t, acme.History, 3)
	assert.Len(t, acme.EmailIDs, 3)

	beta := res.State.Applications[1]
	assert.Equal(t, "beta", beta.Employer)
	assert.Equal(t, 2, res.NewApps)
	assert.Equal(t, 2, res.MergedIn)
	assert.Equal(t, 1, store.saves)
}

func TestRunIsIdempotent(t *testing.T) {
	store := &memStore{}
	raws := []types.RawExtraction{
		raw("msg-1", "Acme GmbH", "Software Engineer", "applied", 1),
		raw("msg-2", "Acme GmbH", "Software Engineer", "Absage", 9),
	}

	_, err := Run(context.Background(), raws, testOptions(store))
	require.NoError(t, err)

	res2, err := Run(context.Background(), raws, testOptions(store))
	require.NoError(t, err)

	require.Len(t, res2.State.Applications, 1)
	app := res2.State.Applications[0]
	assert.Len(t, app.History, 2)
	assert.Len(t, app.EmailIDs, 2)
	assert.Equal(t, 2, res2.Skipped)
	assert.Zero(t, res2.NewApps)
	assert.Zero(t, res2.MergedIn)
}

func TestRunOrderIndependent(t *testing.T) {
	raws := []types.RawExtraction{
		raw("msg-1", "Acme GmbH", "Software Engineer", "applied", 1),
		raw("msg-2", "Acme", "Software Engineer", "Zwischenstand", 3),
		raw("msg-3", "Beta Inc.", "Data Analyst", "applied", 2),
		raw("msg-4", "Beta Incorporated", "Data Analyst", "Absage", 6),
		raw("msg-5", "Gamma AG", "Backend Engineer", "applied", 4),
	}

	reference, err := Run(context.Background(), raws, testOptions(&memStore{}))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5; i++ {
		shuffled := append([]types.RawExtraction(nil), raws...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		res, err := Run(context.Background(), shuffled, testOptions(&memStore{}))
		require.NoError(t, err)
		require.Len(t, res.State.Applications, len(reference.State.Applications))
		for j := range reference.State.Applications {
			want := reference.State.Applications[j]
			got := res.State.Applications[j]
			assert.Equal(t, want.Employer, got.Employer)
			assert.Equal(t, want.CurrentStatus, got.CurrentStatus)
			assert.Equal(t, want.EmailIDs, got.EmailIDs)
			assert.Len(t, got.History, len(want.History))
		}
	}
}

func TestRunNeverLosesEmailIDs(t *testing.T) {
	store := &memStore{}
	first := []types.RawExtraction{
		raw("msg-1", "Acme GmbH", "Software Engineer", "applied", 1),
		raw("msg-2", "Beta Inc.", "Data Analyst", "applied", 2),
	}
	res1, err := Run(context.Background(), first, testOptions(store))
	require.NoError(t, err)
	before := collectEmailIDs(res1.State.Applications)

	second := []types.RawExtraction{
		raw("msg-3", "Beta Incorporated", "Data Analyst", "Absage", 6),
	}
	res2, err := Run(context.Background(), second, testOptions(store))
	require.NoError(t, err)
	after := collectEmailIDs(res2.State.Applications)

	// Every previously contributing email is still present, and each
	// processed email appears exactly once across the whole set.
	for id := range before {
		assert.Contains(t, after, id)
	}
	assert.Equal(t, map[string]int{"msg-1": 1, "msg-2": 1, "msg-3": 1}, after)

	// The two Beta spellings merged; the non-canonical one survives as an
	// alias.
	var beta *types.Application
	for i := range res2.State.Applications {
		if res2.State.Applications[i].Employer == "beta" {
			beta = &res2.State.Applications[i]
		}
	}
	require.NotNil(t, beta)
	assert.Len(t, beta.EmailIDs, 2)
	assert.ElementsMatch(t,
		append([]string{beta.EmployerDisplay()}, beta.EmployerAliases()...),
		[]string{"Beta Inc.", "Beta Incorporated"})
}

func collectEmailIDs(apps []types.Application) map[string]int {
	out := make(map[string]int)
	for _, app := range apps {
		for _, id := range app.EmailIDs {
			out[id]++
		}
	}
	return out
}

func TestRunDropsMalformedRecords(t *testing.T) {
	store := &memStore{}
	raws := []types.RawExtraction{
		raw("msg-1", "Acme GmbH", "Software Engineer", "applied", 1),
		raw("msg-2", "", "", "", 2),
	}

	res, err := Run(context.Background(), raws, testOptions(store))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Len(t, res.State.Applications, 1)
}

func TestRunCorruptStateAborts(t *testing.T) {
	store := &memStore{loadErr: fmt.Errorf("payload unreadable")}

	res, err := Run(context.Background(), nil, testOptions(store))
	require.Error(t, err)
	var corrupt *CorruptStateError
	assert.ErrorAs(t, err, &corrupt)
	assert.Equal(t, StateError, res.Final)
	assert.Zero(t, store.saves, "nothing may be written after corruption")
}

func TestRunSaveFailure(t *testing.T) {
	store := &memStore{saveErr: fmt.Errorf("disk full")}
	raws := []types.RawExtraction{raw("msg-1", "Acme", "Engineer", "applied", 1)}

	res, err := Run(context.Background(), raws, testOptions(store))
	require.Error(t, err)
	assert.Equal(t, StateError, res.Final)
}

func TestRunAmbiguousLeftPending(t *testing.T) {
	store := &memStore{}
	seed := []types.RawExtraction{
		raw("msg-1", "Acme", "Software Engineer", "applied", 1),
		raw("msg-2", "Acme", "Accountant", "applied", 1),
	}
	_, err := Run(context.Background(), seed, testOptions(store))
	require.NoError(t, err)

	// A record matching both signatures equally well cannot be assigned.
	ambiguous := []types.RawExtraction{raw("msg-3", "Acme", "", "Absage", 2)}
	res, err := Run(context.Background(), ambiguous, testOptions(store))
	require.NoError(t, err)

	require.Len(t, res.State.Applications, 2)
	for _, app := range res.State.Applications {
		assert.False(t, app.HasEmail("msg-3"))
	}
	require.Len(t, res.State.Unresolved, 1)
	item := res.State.Unresolved[0]
	assert.Equal(t, types.UnresolvedAmbiguousMatch, item.Kind)
	assert.Equal(t, "msg-3", item.EmailID)
	require.NotNil(t, item.Record)
	assert.Len(t, item.Candidates, 2)

	// Re-running does not duplicate the pending item.
	res2, err := Run(context.Background(), ambiguous, testOptions(store))
	require.NoError(t, err)
	assert.Len(t, res2.State.Unresolved, 1)
}

func TestRunResolvesAddresses(t *testing.T) {
	overrides := &staticOverrides{records: map[string]types.AddressRecord{
		"acme": {Employer: "acme", Street: "Handweg 3", PostalCode: "10115", City: "Berlin"},
	}}
	store := &memStore{}
	opts := testOptions(store)
	opts.Chain = address.NewChain(overrides, nil, nil, address.DefaultChainConfig(), &bytes.Buffer{})

	raws := []types.RawExtraction{
		raw("msg-1", "Acme GmbH", "Software Engineer", "applied", 1),
		raw("msg-2", "Beta Inc.", "Data Analyst", "applied", 2),
	}
	res, err := Run(context.Background(), raws, opts)
	require.NoError(t, err)

	require.Len(t, res.State.Applications, 2)
	acme := res.State.Applications[0]
	require.NotNil(t, acme.Address)
	assert.Equal(t, "Handweg 3", acme.Address.Street)
	assert.Equal(t, types.ProvenanceManual, acme.Address.Provenance)

	beta := res.State.Applications[1]
	assert.Nil(t, beta.Address)

	// Beta has no resolvable address: one pending item, persisted addresses
	// carry the resolved one.
	require.Len(t, res.State.Unresolved, 1)
	assert.Equal(t, types.UnresolvedMissingAddress, res.State.Unresolved[0].Kind)
	require.Len(t, res.State.Addresses, 1)
	assert.Equal(t, "acme", res.State.Addresses[0].Employer)
}

func TestSeedInlineAddresses(t *testing.T) {
	chain := address.NewChain(nil, nil, nil, address.DefaultChainConfig(), nil)
	raws := []types.RawExtraction{
		{EmailID: "msg-1", EmployerName: "Acme GmbH", PostalAddress: "Inline Allee 5, 10115 Berlin"},
		{EmailID: "msg-2", EmployerName: "Beta", PostalAddress: "not an address"},
	}

	SeedInlineAddresses(chain, raws)

	rec, ok := chain.Cache().Get("acme")
	require.True(t, ok)
	assert.Equal(t, "Inline Allee 5", rec.Street)
	assert.Equal(t, types.ProvenanceInteractiveUnconfirmed, rec.Provenance)
	_, ok = chain.Cache().Get("beta")
	assert.False(t, ok)
}

func TestParseOneLineAddress(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"valid", "Musterstr. 12, 10115 Berlin", true},
		{"city with spaces", "Hauptstr. 1, 60311 Frankfurt am Main", true},
		{"missing comma", "Musterstr. 12 10115 Berlin", false},
		{"missing city", "Musterstr. 12, 10115", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, ok := ParseOneLineAddress(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.NotEmpty(t, rec.Street)
				assert.NotEmpty(t, rec.PostalCode)
				assert.NotEmpty(t, rec.City)
			}
		})
	}
}

type staticOverrides struct {
	records map[string]types.AddressRecord
}

func (s *staticOverrides) Lookup(_ context.Context, employer string) (*types.AddressRecord, error) {
	if rec, ok := s.records[employer]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (s *staticOverrides) Append(_ context.Context, rec types.AddressRecord) error {
	s.records[rec.Employer] = rec
	return nil
}
