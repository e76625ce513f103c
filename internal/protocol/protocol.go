// Package protocol decodes inbound generation-stream frames into a closed
// set of typed events.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies one of the recognized event kinds after alias
// normalization.
type Kind string

const (
	KindConnection     Kind = "connection"
	KindProgress       Kind = "progress_update"
	KindComplete       Kind = "generation_complete"
	KindError          Kind = "error"
	KindAgentProgress  Kind = "agent_progress"
	KindAgentCompleted Kind = "agent_completed"
	KindAgentFailed    Kind = "agent_failed"
	KindPong           Kind = "pong"
	KindUnknown        Kind = "unknown"
)

// Client->server frame types.
const PingFrame = `{"type":"ping"}`

// Event is a decoded server frame. Fields not present on the wire carry
// their documented defaults: Progress/StepProgress 0, Message "",
// Timestamp the receipt time.
type Event struct {
	Kind         Kind
	RawType      string // the wire type before alias normalization
	GenerationID string
	Progress     int
	Step         string // phase reference for progress/agent events
	StepProgress int
	Status       string
	Message      string
	Timestamp    time.Time
	FinalWebsite json.RawMessage
	QualityScore float64
	Code         string
	Details      json.RawMessage
}

// frame is the superset wire shape. Optional fields are pointers so the
// decoder can tell "absent" from zero values.
type frame struct {
	Type         string          `json:"type"`
	GenerationID string          `json:"generation_id"`
	Progress     *int            `json:"progress"`
	Step         string          `json:"step"`
	AgentID      string          `json:"agent_id"`
	StepProgress *int            `json:"step_progress"`
	Status       string          `json:"status"`
	Message      string          `json:"message"`
	Error        string          `json:"error"`
	Timestamp    string          `json:"timestamp"`
	FinalWebsite json.RawMessage `json:"final_website"`
	QualityScore float64         `json:"quality_score"`
	Code         string          `json:"code"`
	Details      json.RawMessage `json:"details"`
}

// kindOf maps a wire type to its normalized kind. The completion and failure
// kinds each have aliases that appeared across backend versions.
func kindOf(wireType string) Kind {
	switch wireType {
	case "connection":
		return KindConnection
	case "progress_update":
		return KindProgress
	case "generation_complete", "generation_completed":
		return KindComplete
	case "error", "generation_failed", "generation_error":
		return KindError
	case "agent_progress":
		return KindAgentProgress
	case "agent_completed":
		return KindAgentCompleted
	case "agent_failed":
		return KindAgentFailed
	case "pong":
		return KindPong
	default:
		return KindUnknown
	}
}

// Decode parses a single inbound frame. A structural parse failure or a
// missing type discriminator returns an error; the caller logs and drops the
// frame. An unrecognized type is NOT an error: the event comes back with
// Kind KindUnknown so the caller can log it and move on.
//
// receivedAt is used as the timestamp default when the frame carries none.
func Decode(data []byte, receivedAt time.Time) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, fmt.Errorf("parsing frame: %w", err)
	}
	if f.Type == "" {
		return Event{}, fmt.Errorf("frame has no type discriminator")
	}

	ev := Event{
		Kind:         kindOf(f.Type),
		RawType:      f.Type,
		GenerationID: f.GenerationID,
		Step:         f.Step,
		Status:       f.Status,
		Message:      f.Message,
		Timestamp:    receivedAt,
		FinalWebsite: f.FinalWebsite,
		QualityScore: f.QualityScore,
		Code:         f.Code,
		Details:      f.Details,
	}

	if f.Progress != nil {
		ev.Progress = *f.Progress
	}
	if f.StepProgress != nil {
		ev.StepProgress = *f.StepProgress
	}

	// Agent-scoped frames name their phase in agent_id.
	if ev.Step == "" {
		ev.Step = f.AgentID
	}

	// Failure frames from older backends put the text in "error".
	if ev.Message == "" {
		ev.Message = f.Error
	}

	if f.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, f.Timestamp); err == nil {
			ev.Timestamp = ts
		}
		// An unparseable timestamp keeps the receipt time; the frame is
		// otherwise fine.
	}

	return ev, nil
}

// Terminal reports whether the event ends the session.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || e.Kind == KindError
}

// Failed reports whether the event represents a failure outcome, including
// a generation_complete frame whose status says the run failed.
func (e Event) Failed() bool {
	if e.Kind == KindError || e.Kind == KindAgentFailed {
		return true
	}
	return e.Kind == KindComplete && e.Status == "failed"
}
