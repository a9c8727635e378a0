package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jonathan/applytrack/internal/types"
)

func TestWriteWorkbook(t *testing.T) {
	apps := []types.Application{
		{
			ID:       uuid.New(),
			Employer: "acme",
			Role:     "software engineer",
			EmployerVariants: []types.NameVariant{
				{Value: "Acme GmbH", Count: 2, Seen: 0},
				{Value: "ACME", Count: 1, Seen: 1},
			},
			RoleVariants:  []types.NameVariant{{Value: "Software Engineer", Count: 3}},
			CurrentStatus: types.StatusInvited,
			History: []types.StatusEvent{
				{Status: types.StatusApplied, EmailID: "msg-1"},
				{Status: types.StatusInvited, EmailID: "msg-2"},
			},
			ContactPersons: []string{"Jane Doe"},
			Address: &types.AddressRecord{
				Street: "Musterstr. 12", PostalCode: "10115", City: "Berlin",
				Provenance: types.ProvenanceManual,
			},
			EmailIDs:     []string{"msg-1", "msg-2"},
			FirstContact: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			LastUpdated:  time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC),
		},
	}
	unresolved := []types.UnresolvedItem{
		{
			ID:        uuid.New(),
			Kind:      types.UnresolvedMissingAddress,
			Employer:  "Beta Inc.",
			CreatedAt: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		},
		{ID: uuid.New(), Kind: types.UnresolvedAmbiguousMatch, Employer: "Gamma", Resolved: true},
	}

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteWorkbook(path, apps, unresolved))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Applications")
	assert.Contains(t, sheets, "Needs Review")
	assert.NotContains(t, sheets, "Sheet1")

	employer, err := f.GetCellValue("Applications", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Acme GmbH", employer)

	status, err := f.GetCellValue("Applications", "C2")
	require.NoError(t, err)
	assert.Equal(t, "invited", status)

	firstContact, err := f.GetCellValue("Applications", "D2")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", firstContact)

	address, err := f.GetCellValue("Applications", "G2")
	require.NoError(t, err)
	assert.Equal(t, "Musterstr. 12, 10115 Berlin", address)

	aliases, err := f.GetCellValue("Applications", "J2")
	require.NoError(t, err)
	assert.Equal(t, "ACME", aliases)

	kind, err := f.GetCellValue("Needs Review", "A2")
	require.NoError(t, err)
	assert.Equal(t, "missing-address", kind)

	// Resolved items are not exported.
	empty, err := f.GetCellValue("Needs Review", "A3")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestWriteWorkbookEmptyState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteWorkbook(path, nil, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Applications", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Employer", header)
}
