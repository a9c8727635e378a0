// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/applytrack/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintApplications outputs a human-readable summary of the consolidated
// applications, most recently updated first.
func (p *Printer) PrintApplications(apps []types.Application) {
	if len(apps) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total applications: %d\n\n", len(apps)))

	count := min(len(apps), maxItemsToShow)
	for i := 0; i < count; i++ {
		app := apps[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, app.EmployerDisplay()))
		if role := app.RoleDisplay(); role != "" {
			sb.WriteString(fmt.Sprintf("    Role:   %s\n", role))
		}
		sb.WriteString(fmt.Sprintf("    Status: %s", app.CurrentStatus))
		if !app.LastUpdated.IsZero() {
			sb.WriteString(fmt.Sprintf(" (updated %s)", app.LastUpdated.Format("2006-01-02")))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("    Emails: %d, events: %d\n", len(app.EmailIDs), len(app.History)))
		if app.Address != nil {
			addr := app.Address.OneLine()
			if len(addr) > 44 {
				addr = addr[:41] + "..."
			}
			sb.WriteString(fmt.Sprintf("    Addr:   %s\n", addr))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(apps) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more applications", len(apps)-maxItemsToShow))
	}

	p.printBox("CONSOLIDATED APPLICATIONS", sb.String())
}

// PrintUnresolved outputs the pending review queue: ambiguous matches and
// applications still missing an address.
func (p *Printer) PrintUnresolved(items []types.UnresolvedItem) {
	pending := make([]types.UnresolvedItem, 0, len(items))
	for _, item := range items {
		if !item.Resolved {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Items needing review: %d\n\n", len(pending)))

	count := min(len(pending), maxItemsToShow)
	for i := 0; i < count; i++ {
		item := pending[i]
		sb.WriteString(fmt.Sprintf("• [%s] %s\n", item.Kind, item.Employer))
		if item.Role != "" {
			sb.WriteString(fmt.Sprintf("  Role: %s\n", item.Role))
		}
		if len(item.Candidates) > 0 {
			sb.WriteString(fmt.Sprintf("  Candidates: %d\n", len(item.Candidates)))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(pending) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more items", len(pending)-maxItemsToShow))
	}

	p.printBox("NEEDS REVIEW", sb.String())
}

// PrintRunSummary outputs counters for one pipeline run.
func (p *Printer) PrintRunSummary(total, dropped, skipped, newApps, mergedIn, unresolved int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Extractions processed: %d\n", total))
	sb.WriteString(fmt.Sprintf("  new applications:    %d\n", newApps))
	sb.WriteString(fmt.Sprintf("  merged into existing: %d\n", mergedIn))
	sb.WriteString(fmt.Sprintf("  already known:       %d\n", skipped))
	sb.WriteString(fmt.Sprintf("  dropped (malformed): %d\n", dropped))
	sb.WriteString(fmt.Sprintf("Pending review items:  %d", unresolved))
	p.printBox("RUN SUMMARY", sb.String())
}
