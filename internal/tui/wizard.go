// Package tui provides the interactive terminal screens: the business
// descriptor wizard and the live generation watch view.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sitewright-dev/sitewright/internal/api"
)

// ErrCancelled is returned when the user aborts a screen with Esc or Ctrl+C.
var ErrCancelled = errors.New("cancelled")

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5E7EB")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

// wizardField is one question of the descriptor form.
type wizardField struct {
	label       string
	placeholder string
	required    bool
}

var wizardFields = []wizardField{
	{label: "Business name", placeholder: "Bella's Bakery", required: true},
	{label: "Category", placeholder: "restaurant, retail, services...", required: true},
	{label: "Description", placeholder: "What does the business do?", required: true},
	{label: "Target audience", placeholder: "optional"},
	{label: "Preferred colors", placeholder: "comma separated, optional"},
	{label: "Additional requirements", placeholder: "optional"},
}

// WizardModel walks the user through the business descriptor one field at a
// time. Enter advances, Up goes back, Esc cancels.
type WizardModel struct {
	inputs    []textinput.Model
	step      int
	errMsg    string
	done      bool
	cancelled bool
}

// NewWizardModel builds the form with the first field focused.
func NewWizardModel() WizardModel {
	inputs := make([]textinput.Model, len(wizardFields))
	for i, f := range wizardFields {
		ti := textinput.New()
		ti.Placeholder = f.placeholder
		ti.CharLimit = 500
		ti.Width = 60
		inputs[i] = ti
	}
	inputs[0].Focus()
	return WizardModel{inputs: inputs}
}

func (m WizardModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		var cmd tea.Cmd
		m.inputs[m.step], cmd = m.inputs[m.step].Update(msg)
		return m, cmd
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit

	case "enter":
		value := strings.TrimSpace(m.inputs[m.step].Value())
		if wizardFields[m.step].required && value == "" {
			m.errMsg = wizardFields[m.step].label + " is required"
			return m, nil
		}
		m.errMsg = ""
		if m.step == len(m.inputs)-1 {
			m.done = true
			return m, tea.Quit
		}
		m.inputs[m.step].Blur()
		m.step++
		m.inputs[m.step].Focus()
		return m, textinput.Blink

	case "up":
		if m.step > 0 {
			m.errMsg = ""
			m.inputs[m.step].Blur()
			m.step--
			m.inputs[m.step].Focus()
		}
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.inputs[m.step], cmd = m.inputs[m.step].Update(msg)
	return m, cmd
}

func (m WizardModel) View() string {
	if m.done || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Describe your business"))
	b.WriteString("\n\n")

	for i := 0; i <= m.step; i++ {
		f := wizardFields[i]
		if i < m.step {
			value := strings.TrimSpace(m.inputs[i].Value())
			if value == "" {
				value = dimStyle.Render("(skipped)")
			} else {
				value = doneStyle.Render(value)
			}
			b.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render(f.label+":"), value))
			continue
		}
		b.WriteString("\n")
		b.WriteString(labelStyle.Render(f.label))
		if !f.required {
			b.WriteString(dimStyle.Render("  (optional)"))
		}
		b.WriteString("\n  ")
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d/%d · Enter to continue · ↑ to go back · Esc to cancel",
		m.step+1, len(wizardFields))))
	b.WriteString("\n")
	return b.String()
}

// info assembles the descriptor from the form values.
func (m WizardModel) info() api.BusinessInfo {
	value := func(i int) string { return strings.TrimSpace(m.inputs[i].Value()) }

	var colors []string
	for _, c := range strings.Split(value(4), ",") {
		if c = strings.TrimSpace(c); c != "" {
			colors = append(colors, c)
		}
	}

	return api.BusinessInfo{
		BusinessName:           value(0),
		BusinessCategory:       value(1),
		BusinessDescription:    value(2),
		TargetAudience:         value(3),
		PreferredColors:        colors,
		AdditionalRequirements: value(5),
	}
}

// RunWizard runs the form and returns the completed descriptor. Returns
// ErrCancelled when the user backs out.
func RunWizard() (api.BusinessInfo, error) {
	final, err := tea.NewProgram(NewWizardModel()).Run()
	if err != nil {
		return api.BusinessInfo{}, fmt.Errorf("running wizard: %w", err)
	}
	m, ok := final.(WizardModel)
	if !ok || m.cancelled || !m.done {
		return api.BusinessInfo{}, ErrCancelled
	}
	return m.info(), nil
}
