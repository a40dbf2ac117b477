package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mark3labs/spec2client/internal/generator"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#27ca3f"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#bababa"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f9ca24"))
)

// resultField is a label-value pair for printResult.
type resultField struct {
	Label string
	Value string
}

// printResult prints a styled summary with green checkmarks and gray labels.
func printResult(w io.Writer, fields []resultField, successMsg string) {
	check := successStyle.Render("✓")

	fmt.Fprintln(w)
	for _, f := range fields {
		fmt.Fprintf(w, "%s %s %s\n", check, labelStyle.Render(f.Label+":"), f.Value)
	}

	if successMsg != "" {
		fmt.Fprintln(w, successStyle.Render("\n"+successMsg))
	}
}

func printSummary(w io.Writer, outDir string, res *generator.Result) {
	packages := make([]string, 0, len(res.Modules))
	for _, m := range res.Modules {
		packages = append(packages, m.Package)
	}
	fields := []resultField{
		{Label: "Output", Value: outDir},
		{Label: "Functions", Value: fmt.Sprint(res.Functions)},
		{Label: "Packages", Value: strings.Join(packages, ", ")},
		{Label: "Schemas", Value: fmt.Sprint(res.Schemas)},
	}
	printResult(w, fields, fmt.Sprintf("Generated %d files", len(res.Planned)))

	warn := warnStyle.Render("!")
	for _, s := range res.Skipped {
		fmt.Fprintf(w, "%s %s %s\n", warn, labelStyle.Render("Skipped duplicate:"), s)
	}
	for _, err := range res.Invalid {
		fmt.Fprintf(w, "%s %s %v\n", warn, labelStyle.Render("Skipped invalid:"), err)
	}
}
