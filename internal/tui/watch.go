package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sitewright-dev/sitewright/internal/generation"
)

// watchInterval is how often the view pulls a fresh snapshot.
const watchInterval = 200 * time.Millisecond

type watchTickMsg time.Time

func watchTick() tea.Cmd {
	return tea.Tick(watchInterval, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

// WatchModel renders the live state of the current generation: one overall
// bar plus one bar per phase. It polls the snapshot function on a timer and
// quits on its own once the session reaches a terminal state.
type WatchModel struct {
	snapshot func() generation.Snapshot
	overall  progress.Model
	phases   []progress.Model
	snap     generation.Snapshot
	finished bool
}

// NewWatchModel builds the watch view around a snapshot source.
func NewWatchModel(snapshot func() generation.Snapshot) WatchModel {
	m := WatchModel{
		snapshot: snapshot,
		overall:  progress.New(progress.WithDefaultGradient()),
		snap:     snapshot(),
	}
	if m.snap.Current != nil {
		for range m.snap.Current.Phases {
			m.phases = append(m.phases, progress.New(progress.WithSolidFill("#7C3AED")))
		}
	}
	return m
}

func (m WatchModel) Init() tea.Cmd {
	return watchTick()
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case watchTickMsg:
		m.snap = m.snapshot()
		if sess := m.snap.Current; sess != nil && sess.Status.Terminal() {
			// One last render with final state, then exit.
			if m.finished {
				return m, tea.Quit
			}
			m.finished = true
			return m, watchTick()
		}
		return m, watchTick()

	case tea.WindowSizeMsg:
		width := msg.Width - 30
		if width < 10 {
			width = 10
		}
		if width > 60 {
			width = 60
		}
		m.overall.Width = width
		for i := range m.phases {
			m.phases[i].Width = width
		}
	}
	return m, nil
}

func (m WatchModel) View() string {
	sess := m.snap.Current
	if sess == nil {
		return dimStyle.Render("no active generation") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Generating website"))
	if sess.Business.BusinessName != "" {
		b.WriteString(dimStyle.Render("  " + sess.Business.BusinessName))
	}
	if !m.snap.Connected && !sess.Status.Terminal() {
		b.WriteString(errorStyle.Render("  (reconnecting)"))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  %-28s %s %3d%%\n\n",
		labelStyle.Render("Overall"),
		m.overall.ViewAs(float64(sess.Progress)/100),
		sess.Progress))

	for i, ph := range sess.Phases {
		if i >= len(m.phases) {
			break
		}
		b.WriteString(fmt.Sprintf("  %-28s %s %s\n",
			phaseLabel(ph),
			m.phases[i].ViewAs(float64(ph.Progress)/100),
			phaseDetail(ph)))
	}

	b.WriteString("\n")
	switch {
	case sess.Status == generation.StatusCompleted && sess.Result != nil:
		b.WriteString(doneStyle.Render(fmt.Sprintf("Completed · quality score %.1f", sess.Result.QualityScore)))
	case sess.Status == generation.StatusFailed && sess.Failure != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Failed [%s]: %s", sess.Failure.Code, sess.Failure.Message)))
	default:
		b.WriteString(dimStyle.Render("q to stop watching (generation continues server-side)"))
	}
	b.WriteString("\n")
	return b.String()
}

func phaseLabel(ph generation.Phase) string {
	switch ph.Status {
	case generation.StatusCompleted:
		return doneStyle.Render(ph.Name)
	case generation.StatusFailed:
		return errorStyle.Render(ph.Name)
	case generation.StatusInProgress:
		return labelStyle.Render(ph.Name)
	default:
		return dimStyle.Render(ph.Name)
	}
}

func phaseDetail(ph generation.Phase) string {
	switch ph.Status {
	case generation.StatusCompleted:
		return doneStyle.Render("done")
	case generation.StatusFailed:
		return errorStyle.Render("failed")
	case generation.StatusInProgress:
		return progressStyle.Render(fmt.Sprintf("%3d%%", ph.Progress))
	default:
		return dimStyle.Render("pending")
	}
}

// RunWatch runs the watch view until the session finishes or the user quits.
func RunWatch(snapshot func() generation.Snapshot) error {
	if _, err := tea.NewProgram(NewWatchModel(snapshot)).Run(); err != nil {
		return fmt.Errorf("running watch view: %w", err)
	}
	return nil
}
