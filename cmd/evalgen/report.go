package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"evalgen/internal/validate"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	statStyle   = lipgloss.NewStyle().Faint(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// renderReport prints the validation report in check order: stats, then
// warnings, then errors, then the verdict.
func renderReport(r *validate.Report) {
	fmt.Println()
	fmt.Println(headerStyle.Render("=== Validation Report ==="))

	if len(r.Stats) > 0 {
		fmt.Println("\nStats:")
		for _, s := range r.Stats {
			fmt.Println(statStyle.Render(fmt.Sprintf("  %s: %s", s.Name, s.Value)))
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Println(warnStyle.Render("  ! " + w))
		}
	}

	if len(r.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Println(errorStyle.Render("  x " + e))
		}
	}

	fmt.Println()
	if r.OK() {
		fmt.Println(passStyle.Render("  Validation passed"))
	} else {
		fmt.Println(failStyle.Render(fmt.Sprintf("  Validation failed with %d error(s)", len(r.Errors))))
	}
}
