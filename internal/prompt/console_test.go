package prompt

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/applytrack/internal/types"
)

func item(employer string, candidates ...types.Candidate) types.UnresolvedItem {
	return types.UnresolvedItem{
		ID:         uuid.New(),
		Kind:       types.UnresolvedMissingAddress,
		Employer:   employer,
		Candidates: candidates,
	}
}

func TestResolveAddressTyped(t *testing.T) {
	var out bytes.Buffer
	console := NewConsole(strings.NewReader("Musterstr. 12, 10115 Berlin\n"), &out)

	rec, err := console.ResolveAddress(context.Background(), item("Acme GmbH"))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Musterstr. 12", rec.Street)
	assert.Equal(t, "10115", rec.PostalCode)
	assert.Equal(t, "Berlin", rec.City)
	assert.Contains(t, out.String(), "Acme GmbH")
}

func TestResolveAddressSkip(t *testing.T) {
	console := NewConsole(strings.NewReader("\n"), &bytes.Buffer{})

	rec, err := console.ResolveAddress(context.Background(), item("Acme GmbH"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestResolveAddressPickCandidate(t *testing.T) {
	candidate := types.Candidate{
		Label: "acme gmbh",
		Score: 0.91,
		Address: &types.AddressRecord{
			Street: "Registerweg 1", PostalCode: "10115", City: "Berlin",
		},
	}
	var out bytes.Buffer
	console := NewConsole(strings.NewReader("1\n"), &out)

	rec, err := console.ResolveAddress(context.Background(), item("Acme GmbH", candidate))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Registerweg 1", rec.Street)
	assert.Contains(t, out.String(), "Registerweg 1")
}

func TestResolveAddressBadInput(t *testing.T) {
	console := NewConsole(strings.NewReader("somewhere downtown\n"), &bytes.Buffer{})

	_, err := console.ResolveAddress(context.Background(), item("Acme GmbH"))
	assert.Error(t, err)
}

func TestResolveAddressEOFSkips(t *testing.T) {
	console := NewConsole(strings.NewReader(""), &bytes.Buffer{})

	rec, err := console.ResolveAddress(context.Background(), item("Acme GmbH"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPickApplication(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	ambiguous := types.UnresolvedItem{
		Kind:     types.UnresolvedAmbiguousMatch,
		Employer: "Acme",
		Candidates: []types.Candidate{
			{ApplicationID: first, Label: "Acme / Software Engineer", Score: 0.88},
			{ApplicationID: second, Label: "Acme / Accountant", Score: 0.86},
		},
	}

	t.Run("valid pick", func(t *testing.T) {
		console := NewConsole(strings.NewReader("2\n"), &bytes.Buffer{})
		id, picked, err := console.PickApplication(context.Background(), ambiguous)
		require.NoError(t, err)
		assert.True(t, picked)
		assert.Equal(t, second, id)
	})

	t.Run("skip", func(t *testing.T) {
		console := NewConsole(strings.NewReader("\n"), &bytes.Buffer{})
		_, picked, err := console.PickApplication(context.Background(), ambiguous)
		require.NoError(t, err)
		assert.False(t, picked)
	})

	t.Run("out of range", func(t *testing.T) {
		console := NewConsole(strings.NewReader("7\n"), &bytes.Buffer{})
		_, picked, err := console.PickApplication(context.Background(), ambiguous)
		require.NoError(t, err)
		assert.False(t, picked)
	})
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	console := NewConsole(strings.NewReader("1\n"), &bytes.Buffer{})

	_, err := console.ResolveAddress(ctx, item("Acme GmbH"))
	assert.Error(t, err)
}
