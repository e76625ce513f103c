// Package generation holds the client-side state of website generation
// sessions. This file defines the session and phase model.
package generation

import (
	"encoding/json"
	"time"

	"github.com/sitewright-dev/sitewright/internal/api"
)

// Status is the lifecycle state of a session or phase. Transitions only move
// forward: pending -> in_progress -> completed | failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Phase is one named sub-stage of a session. The phase set is fixed at
// session creation; phases are never added or removed afterward.
type Phase struct {
	ID       string
	Name     string
	Status   Status
	Progress int // 0-100, local to this phase
}

// Result is the artifact payload attached on completion.
type Result struct {
	Website      json.RawMessage
	QualityScore float64
}

// Failure is the structured error attached when a session fails.
type Failure struct {
	Code    string
	Message string
	Details json.RawMessage
}

// Session is one end-to-end website-generation job tracked by the client.
// Result and Failure are mutually exclusive and each set at most once.
type Session struct {
	ID          string
	Business    api.BusinessInfo
	Status      Status
	Progress    int // 0-100 overall
	StartedAt   time.Time
	CompletedAt time.Time // set exactly once, on entering a terminal state
	Phases      []Phase
	Result      *Result
	Failure     *Failure
}

// ErrCodeConnectionLost marks a session failed because the streaming channel
// gave up reconnecting.
const ErrCodeConnectionLost = "CONNECTION_LOST"

// defaultPhases returns the fixed phase set every new session starts with.
func defaultPhases() []Phase {
	return []Phase{
		{ID: "content", Name: "Content Generation", Status: StatusPending},
		{ID: "design", Name: "Design Generation", Status: StatusPending},
		{ID: "structure", Name: "Structure Generation", Status: StatusPending},
		{ID: "quality", Name: "Quality Validation", Status: StatusPending},
	}
}

// clone returns a deep copy safe to hand to readers outside the store lock.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Phases = make([]Phase, len(s.Phases))
	copy(cp.Phases, s.Phases)
	if s.Result != nil {
		r := *s.Result
		cp.Result = &r
	}
	if s.Failure != nil {
		f := *s.Failure
		cp.Failure = &f
	}
	return &cp
}
