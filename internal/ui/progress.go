// Package ui renders generation progress for plain terminals and pipes.
// The interactive watch view lives in internal/tui; this display is what
// non-TTY contexts (CI, redirected output) get instead.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/sitewright-dev/sitewright/internal/generation"
)

// printedState is what was last written for a phase, so plain output only
// shows transitions instead of repeating lines.
type printedState struct {
	status   generation.Status
	progress int
}

// ProgressDisplay writes line-per-transition progress output. Safe for
// concurrent use.
type ProgressDisplay struct {
	mu          sync.Mutex
	w           io.Writer
	lastOverall int
	lastPhase   map[string]printedState
	announced   bool
}

// NewProgressDisplay creates a display writing to w.
func NewProgressDisplay(w io.Writer) *ProgressDisplay {
	return &ProgressDisplay{
		w:           w,
		lastOverall: -1,
		lastPhase:   make(map[string]printedState),
	}
}

// Observe renders whatever changed since the last call. Feed it snapshots on
// a timer; identical consecutive snapshots produce no output.
func (p *ProgressDisplay) Observe(snap generation.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess := snap.Current
	if sess == nil {
		return
	}

	if !p.announced {
		fmt.Fprintf(p.w, "generation %s started", sess.ID)
		if sess.Business.BusinessName != "" {
			fmt.Fprintf(p.w, " for %q", sess.Business.BusinessName)
		}
		fmt.Fprintln(p.w)
		p.announced = true
	}

	for _, ph := range sess.Phases {
		prev, seen := p.lastPhase[ph.ID]
		if seen && prev.status == ph.Status && prev.progress == ph.Progress {
			continue
		}
		if ph.Status == generation.StatusPending {
			continue
		}
		fmt.Fprintf(p.w, "  [%s] %s%s\n", statusWord(ph.Status), ph.Name, phaseDetail(ph))
		p.lastPhase[ph.ID] = printedState{status: ph.Status, progress: ph.Progress}
	}

	if sess.Progress != p.lastOverall {
		fmt.Fprintf(p.w, "overall: %d%%\n", sess.Progress)
		p.lastOverall = sess.Progress
	}
}

// Finish prints the terminal summary line.
func (p *ProgressDisplay) Finish(snap generation.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess := snap.Current
	if sess == nil {
		return
	}
	switch sess.Status {
	case generation.StatusCompleted:
		if sess.Result != nil {
			fmt.Fprintf(p.w, "done: website ready, quality score %.1f\n", sess.Result.QualityScore)
		} else {
			fmt.Fprintln(p.w, "done: website ready")
		}
	case generation.StatusFailed:
		if sess.Failure != nil {
			fmt.Fprintf(p.w, "failed [%s]: %s\n", sess.Failure.Code, sess.Failure.Message)
		} else {
			fmt.Fprintln(p.w, "failed")
		}
	}
}

func statusWord(s generation.Status) string {
	switch s {
	case generation.StatusInProgress:
		return "RUNNING"
	case generation.StatusCompleted:
		return "DONE"
	case generation.StatusFailed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

func phaseDetail(ph generation.Phase) string {
	if ph.Status == generation.StatusInProgress && ph.Progress > 0 {
		return fmt.Sprintf(" (%d%%)", ph.Progress)
	}
	return ""
}
