// Package export writes the consolidated application state to an Excel
// workbook for review outside the tool.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jonathan/applytrack/internal/types"
)

const (
	applicationsSheet = "Applications"
	reviewSheet       = "Needs Review"
)

var applicationHeader = []string{
	"Employer", "Role", "Status", "First Contact", "Last Updated",
	"Contact Person", "Address", "Emails", "Events", "Aliases", "Notes",
}

var reviewHeader = []string{
	"Kind", "Employer", "Role", "Email ID", "Candidates", "Created",
}

// WriteWorkbook writes applications and pending review items to an xlsx
// file at path, overwriting any existing file.
func WriteWorkbook(path string, apps []types.Application, unresolved []types.UnresolvedItem) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeApplications(f, apps); err != nil {
		return err
	}
	if err := writeReview(f, unresolved); err != nil {
		return err
	}

	// excelize starts every workbook with "Sheet1"; drop it once the real
	// sheets exist.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(applicationsSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}

func writeApplications(f *excelize.File, apps []types.Application) error {
	if _, err := f.NewSheet(applicationsSheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", applicationsSheet, err)
	}
	if err := writeRow(f, applicationsSheet, 1, toAny(applicationHeader)); err != nil {
		return err
	}

	for i, app := range apps {
		address := ""
		if app.Address != nil {
			address = app.Address.OneLine()
		}
		notes := strings.Join(app.SignatureNotes, "; ")

		row := []any{
			app.EmployerDisplay(),
			app.RoleDisplay(),
			string(app.CurrentStatus),
			dateCell(app.FirstContact),
			dateCell(app.LastUpdated),
			strings.Join(app.ContactPersons, ", "),
			address,
			len(app.EmailIDs),
			len(app.History),
			strings.Join(app.EmployerAliases(), ", "),
			notes,
		}
		if err := writeRow(f, applicationsSheet, i+2, row); err != nil {
			return err
		}
	}

	return f.SetColWidth(applicationsSheet, "A", "K", 22)
}

func writeReview(f *excelize.File, unresolved []types.UnresolvedItem) error {
	if _, err := f.NewSheet(reviewSheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", reviewSheet, err)
	}
	if err := writeRow(f, reviewSheet, 1, toAny(reviewHeader)); err != nil {
		return err
	}

	rowNum := 2
	for _, item := range unresolved {
		if item.Resolved {
			continue
		}
		candidates := make([]string, 0, len(item.Candidates))
		for _, c := range item.Candidates {
			candidates = append(candidates, c.Label)
		}
		row := []any{
			string(item.Kind),
			item.Employer,
			item.Role,
			item.EmailID,
			strings.Join(candidates, "; "),
			dateCell(item.CreatedAt),
		}
		if err := writeRow(f, reviewSheet, rowNum, row); err != nil {
			return err
		}
		rowNum++
	}

	return f.SetColWidth(reviewSheet, "A", "F", 25)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func dateCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
