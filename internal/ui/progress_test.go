package ui

import (
	"strings"
	"testing"

	"github.com/sitewright-dev/sitewright/internal/api"
	"github.com/sitewright-dev/sitewright/internal/generation"
)

func snapshotWith(status generation.Status, progress int, phases []generation.Phase) generation.Snapshot {
	return generation.Snapshot{
		Current: &generation.Session{
			ID:       "g1",
			Business: api.BusinessInfo{BusinessName: "Bella's Bakery"},
			Status:   status,
			Progress: progress,
			Phases:   phases,
		},
		Generating: !status.Terminal(),
		Connected:  true,
	}
}

func TestObservePrintsTransitionsOnce(t *testing.T) {
	var buf strings.Builder
	display := NewProgressDisplay(&buf)

	phases := []generation.Phase{
		{ID: "content", Name: "Content Generation", Status: generation.StatusInProgress, Progress: 50},
		{ID: "design", Name: "Design Generation", Status: generation.StatusPending},
	}
	snap := snapshotWith(generation.StatusInProgress, 20, phases)

	display.Observe(snap)
	display.Observe(snap)

	out := buf.String()
	if !strings.Contains(out, `generation g1 started for "Bella's Bakery"`) {
		t.Errorf("missing start line:\n%s", out)
	}
	if got := strings.Count(out, "Content Generation"); got != 1 {
		t.Errorf("expected phase line once, got %d:\n%s", got, out)
	}
	if strings.Contains(out, "Design Generation") {
		t.Errorf("pending phase should not be printed:\n%s", out)
	}
	if got := strings.Count(out, "overall: 20%"); got != 1 {
		t.Errorf("expected overall line once, got %d:\n%s", got, out)
	}
}

func TestObservePrintsProgressChanges(t *testing.T) {
	var buf strings.Builder
	display := NewProgressDisplay(&buf)

	phases := []generation.Phase{
		{ID: "content", Name: "Content Generation", Status: generation.StatusInProgress, Progress: 30},
	}
	display.Observe(snapshotWith(generation.StatusInProgress, 20, phases))

	phases[0].Status = generation.StatusCompleted
	phases[0].Progress = 100
	display.Observe(snapshotWith(generation.StatusInProgress, 40, phases))

	out := buf.String()
	if !strings.Contains(out, "[RUNNING] Content Generation (30%)") {
		t.Errorf("missing running line:\n%s", out)
	}
	if !strings.Contains(out, "[DONE] Content Generation") {
		t.Errorf("missing done line:\n%s", out)
	}
	if !strings.Contains(out, "overall: 40%") {
		t.Errorf("missing updated overall line:\n%s", out)
	}
}

func TestFinishSummaries(t *testing.T) {
	var buf strings.Builder
	display := NewProgressDisplay(&buf)

	snap := snapshotWith(generation.StatusCompleted, 100, nil)
	snap.Current.Result = &generation.Result{QualityScore: 91.5}
	display.Finish(snap)
	if !strings.Contains(buf.String(), "quality score 91.5") {
		t.Errorf("missing completion summary:\n%s", buf.String())
	}

	buf.Reset()
	failed := snapshotWith(generation.StatusFailed, 40, nil)
	failed.Current.Failure = &generation.Failure{
		Code:    generation.ErrCodeConnectionLost,
		Message: "connection lost after retries",
	}
	display.Finish(failed)
	if !strings.Contains(buf.String(), "failed [CONNECTION_LOST]") {
		t.Errorf("missing failure summary:\n%s", buf.String())
	}
}

func TestObserveNoSessionIsQuiet(t *testing.T) {
	var buf strings.Builder
	display := NewProgressDisplay(&buf)
	display.Observe(generation.Snapshot{})
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
