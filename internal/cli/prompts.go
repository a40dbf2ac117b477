package cli

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// InitAnswers are the values collected by `init --interactive`.
type InitAnswers struct {
	Input       string   `yaml:"input"`
	Out         string   `yaml:"out"`
	IncludeTags []string `yaml:"includeTags,omitempty"`
	ExcludeTags []string `yaml:"excludeTags,omitempty"`
	SkipInvalid bool     `yaml:"skipInvalid"`
	FixImports  bool     `yaml:"fixImports"`
}

// formTheme returns the huh theme used by interactive forms.
func formTheme() *huh.Theme {
	theme := huh.ThemeBase16()
	theme.FieldSeparator = lipgloss.NewStyle().SetString("\n").MarginBottom(1)
	theme.Form.Base = theme.Form.Base.MarginTop(1)
	theme.Group.Base = theme.Group.Base.MarginTop(1)
	theme.Focused.Title = theme.Focused.Title.Foreground(lipgloss.Color("#f9ca24"))
	theme.Blurred.Title = theme.Blurred.Title.Foreground(lipgloss.Color("#bababa"))
	return theme
}

// initPrompter fills answers interactively. Tests replace it.
var initPrompter = runInitForm

func runInitForm(answers *InitAnswers) error {
	include := strings.Join(answers.IncludeTags, ",")
	exclude := strings.Join(answers.ExcludeTags, ",")
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OpenAPI document").
				Description("Local path or http(s) URL").
				Placeholder("./openapi.yaml").
				Validate(requiredValidator("document")).
				Value(&answers.Input),
			huh.NewInput().
				Title("Output directory").
				Placeholder(".").
				Value(&answers.Out),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Only include tags").
				Description("Comma separated, empty for all").
				Value(&include),
			huh.NewInput().
				Title("Exclude tags").
				Description("Comma separated").
				Value(&exclude),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Skip operations with unresolved references?").
				Value(&answers.SkipInvalid),
			huh.NewConfirm().
				Title("Let goimports fix imports?").
				Value(&answers.FixImports),
		),
	).WithTheme(formTheme()).Run()
	if err != nil {
		return err
	}
	answers.IncludeTags = sanitizeTags(splitAndTrim(include))
	answers.ExcludeTags = sanitizeTags(splitAndTrim(exclude))
	return nil
}

func requiredValidator(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}
