// This file implements the session store: the single writer for session
// state, fed by decoded stream events and explicit commands.
package generation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sitewright-dev/sitewright/internal/api"
	"github.com/sitewright-dev/sitewright/internal/eventlog"
	"github.com/sitewright-dev/sitewright/internal/logger"
	"github.com/sitewright-dev/sitewright/internal/protocol"
)

// Controller issues the request/response commands the store needs. Satisfied
// by *api.Client.
type Controller interface {
	CreateGeneration(ctx context.Context, info api.BusinessInfo) (*api.CreateResponse, error)
	CancelGeneration(ctx context.Context, generationID string) error
}

// Archiver persists finalized sessions. Satisfied by *history.Store.
type Archiver interface {
	Save(s *Session) error
}

// Snapshot is a point-in-time copy of the store for readers. Current is a
// deep copy; mutating it does not affect the store.
type Snapshot struct {
	Current    *Session
	Generating bool
	Connected  bool
}

// Store is the single source of truth for the current session. All mutation
// goes through its methods; the mutex gives the single-writer discipline the
// event-driven model needs on a multi-threaded runtime.
type Store struct {
	mu         sync.Mutex
	log        *logger.Logger
	events     *eventlog.Log
	controller Controller
	archive    Archiver

	current    *Session
	past       []*Session
	generating bool
	connected  bool
}

// NewStore builds a Store. archive and events may be nil (no persistence,
// no trace).
func NewStore(controller Controller, archive Archiver, events *eventlog.Log, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		log:        log,
		events:     events,
		controller: controller,
		archive:    archive,
	}
}

// StartGeneration submits the business descriptor and, on success, installs
// the new current session with the server-assigned id and the fixed phase
// set. On failure the store is left untouched: no partial session remains.
//
// The request error already carries the most specific server detail
// available (see api.Error), so it is returned as-is for display.
func (s *Store) StartGeneration(ctx context.Context, info api.BusinessInfo) (string, error) {
	resp, err := s.controller.CreateGeneration(ctx, info)
	if err != nil {
		s.log.Error("starting generation", "error", err)
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = &Session{
		ID:        resp.GenerationID,
		Business:  info,
		Status:    StatusPending,
		Progress:  0,
		StartedAt: time.Now(),
		Phases:    defaultPhases(),
	}
	s.generating = true

	s.record(eventlog.Record{Event: eventlog.EventSessionStarted, GenerationID: resp.GenerationID})
	s.log.Info("generation started", "generation_id", resp.GenerationID)
	return resp.GenerationID, nil
}

// Attach adopts an already-running server-side session so its stream can be
// watched. The phase set starts fresh; earlier per-phase progress is
// reconstructed from subsequent stream frames. Attaching to the id of the
// current session is a no-op.
func (s *Store) Attach(id string, status Status, progress int, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.ID == id {
		return
	}
	if s.current != nil && s.current.Status.Terminal() {
		s.past = append(s.past, s.current)
	}

	s.current = &Session{
		ID:        id,
		Status:    status,
		Progress:  clampProgress(progress),
		StartedAt: time.Now(),
		Phases:    defaultPhases(),
	}
	s.generating = !status.Terminal()
	if status == StatusInProgress {
		if ph := s.phaseFor(step); ph != nil {
			ph.Status = StatusInProgress
		}
	}

	s.record(eventlog.Record{Event: eventlog.EventSessionStarted, GenerationID: id, Reason: "attach"})
	s.log.Info("attached to generation", "generation_id", id, "status", string(status))
}

// Apply folds one decoded stream event into the current session. It is the
// only entry point for stream-driven mutation, so event order on the single
// channel is the mutation order.
//
// Dropped without effect: events with no current session, events for a
// different session id, any event once the session is terminal, and the
// informational connection/pong/unknown kinds.
func (s *Store) Apply(ev protocol.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return
	}
	if ev.GenerationID != "" && ev.GenerationID != s.current.ID {
		s.log.Debug("dropping event for stale session", "event_session", ev.GenerationID, "current", s.current.ID)
		return
	}
	if s.current.Status.Terminal() {
		s.log.Debug("dropping event for terminal session", "type", ev.RawType)
		return
	}

	switch ev.Kind {
	case protocol.KindProgress:
		s.applyProgress(ev)
	case protocol.KindComplete:
		if ev.Failed() {
			s.applyFailure(ev)
		} else {
			s.applyCompletion(ev)
		}
	case protocol.KindError:
		s.applyFailure(ev)
	case protocol.KindAgentProgress:
		s.applyAgentProgress(ev)
	case protocol.KindAgentCompleted:
		s.applyAgentTerminal(ev, StatusCompleted)
	case protocol.KindAgentFailed:
		s.applyAgentTerminal(ev, StatusFailed)
	case protocol.KindConnection, protocol.KindPong:
		// Informational only.
	default:
		s.log.Debug("ignoring unknown event type", "type", ev.RawType)
	}
}

// applyProgress updates overall progress and marks the referenced phase
// in_progress. An unknown phase reference still updates overall progress; no
// phase entry is created for it. Progress regression is tolerated, not
// enforced against.
func (s *Store) applyProgress(ev protocol.Event) {
	sess := s.current
	sess.Status = StatusInProgress
	sess.Progress = clampProgress(ev.Progress)

	if p := s.phaseFor(ev.Step); p != nil {
		p.Status = StatusInProgress
		p.Progress = clampProgress(ev.StepProgress)
	} else if ev.Step != "" {
		s.log.Debug("progress for unknown phase", "step", ev.Step)
	}

	s.record(eventlog.Record{
		Event:        eventlog.EventFrameReceived,
		GenerationID: sess.ID,
		FrameType:    ev.RawType,
		Step:         ev.Step,
		Progress:     sess.Progress,
	})
}

// applyAgentProgress updates a single phase without touching overall
// progress.
func (s *Store) applyAgentProgress(ev protocol.Event) {
	s.current.Status = StatusInProgress
	p := s.phaseFor(ev.Step)
	if p == nil {
		s.log.Debug("agent progress for unknown phase", "step", ev.Step)
		return
	}
	p.Status = StatusInProgress
	if ev.StepProgress > 0 {
		p.Progress = clampProgress(ev.StepProgress)
	} else {
		p.Progress = clampProgress(ev.Progress)
	}
}

// applyAgentTerminal finishes a single phase. agent_failed marks only the
// phase; the session keeps running until the server reports the overall
// outcome.
func (s *Store) applyAgentTerminal(ev protocol.Event, status Status) {
	p := s.phaseFor(ev.Step)
	if p == nil {
		s.log.Debug("agent outcome for unknown phase", "step", ev.Step, "status", status)
		return
	}
	if p.Status.Terminal() {
		return
	}
	p.Status = status
	if status == StatusCompleted {
		p.Progress = 100
	}
}

// applyCompletion finalizes the session as completed: progress 100, all
// phases completed, result attached, session archived.
func (s *Store) applyCompletion(ev protocol.Event) {
	sess := s.current
	sess.Status = StatusCompleted
	sess.Progress = 100
	sess.CompletedAt = time.Now()
	for i := range sess.Phases {
		sess.Phases[i].Status = StatusCompleted
		sess.Phases[i].Progress = 100
	}
	sess.Result = &Result{
		Website:      ev.FinalWebsite,
		QualityScore: ev.QualityScore,
	}
	s.generating = false

	s.finalize(sess)
	s.record(eventlog.Record{Event: eventlog.EventSessionCompleted, GenerationID: sess.ID})
	s.log.Info("generation completed", "generation_id", sess.ID, "quality_score", ev.QualityScore)
}

// applyFailure finalizes the session as failed. Phase states are left as
// they are so partial progress stays visible for diagnostics.
func (s *Store) applyFailure(ev protocol.Event) {
	sess := s.current
	sess.Status = StatusFailed
	sess.CompletedAt = time.Now()
	code := ev.Code
	if code == "" {
		code = failureCode(ev)
	}
	sess.Failure = &Failure{
		Code:    code,
		Message: ev.Message,
		Details: ev.Details,
	}
	s.generating = false

	s.finalize(sess)
	s.record(eventlog.Record{
		Event:        eventlog.EventSessionFailed,
		GenerationID: sess.ID,
		Error:        ev.Message,
	})
	s.log.Warn("generation failed", "generation_id", sess.ID, "code", code, "message", ev.Message)
}

// ConnectionLost converts reconnect exhaustion into a terminal failure on
// the current session.
func (s *Store) ConnectionLost(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connected = false
	if s.current == nil || s.current.Status.Terminal() {
		return
	}

	sess := s.current
	sess.Status = StatusFailed
	sess.CompletedAt = time.Now()
	sess.Failure = &Failure{
		Code:    ErrCodeConnectionLost,
		Message: message,
	}
	s.generating = false

	s.finalize(sess)
	s.record(eventlog.Record{
		Event:        eventlog.EventSessionFailed,
		GenerationID: sess.ID,
		Error:        message,
		Reason:       ErrCodeConnectionLost,
	})
	s.log.Error("connection lost, marking session failed", "generation_id", sess.ID)
}

// SetConnected updates the connectivity flag. Decoupled from session status.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
}

// Cancel fires a best-effort remote cancel and unconditionally clears the
// current session. The local clear never waits on, or is gated by, the
// remote call.
func (s *Store) Cancel(ctx context.Context) {
	s.mu.Lock()
	id := ""
	if s.current != nil {
		id = s.current.ID
	}
	s.current = nil
	s.generating = false
	s.mu.Unlock()

	if id == "" {
		return
	}

	s.record(eventlog.Record{Event: eventlog.EventSessionCancelled, GenerationID: id})
	if err := s.controller.CancelGeneration(ctx, id); err != nil {
		// Best effort: the backend stays authoritative and may finish the
		// job, but the client no longer displays it.
		s.log.Warn("remote cancel failed", "generation_id", id, "error", err)
	}
}

// Clear resets the current session locally with no network call. Used when
// navigating away.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.generating = false
}

// Snapshot returns a consistent copy of the store for readers.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Current:    s.current.clone(),
		Generating: s.generating,
		Connected:  s.connected,
	}
}

// Past returns copies of sessions finalized during this process lifetime,
// oldest first.
func (s *Store) Past() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, len(s.past))
	for i, sess := range s.past {
		out[i] = sess.clone()
	}
	return out
}

// finalize appends the terminal session to the in-memory history and hands
// it to the archiver. Caller holds the lock.
func (s *Store) finalize(sess *Session) {
	s.past = append(s.past, sess)
	if s.archive != nil {
		if err := s.archive.Save(sess.clone()); err != nil {
			s.log.Warn("archiving session", "generation_id", sess.ID, "error", err)
		}
	}
}

// phaseFor resolves a step reference to a phase. The backend sometimes sends
// the phase id ("content") and sometimes the display label ("Content
// Generation"); both resolve. Caller holds the lock.
func (s *Store) phaseFor(step string) *Phase {
	if step == "" {
		return nil
	}
	needle := strings.ToLower(step)
	for i := range s.current.Phases {
		p := &s.current.Phases[i]
		if strings.EqualFold(p.ID, step) || strings.EqualFold(p.Name, step) {
			return p
		}
		if strings.Contains(needle, p.ID) {
			return p
		}
	}
	return nil
}

// record appends to the event trace when one is configured. Caller holds the
// lock (Append has its own file-level mutex, so trace writes from other
// components interleave safely).
func (s *Store) record(rec eventlog.Record) {
	if s.events == nil {
		return
	}
	if err := s.events.Append(rec); err != nil {
		s.log.Debug("event trace append failed", "error", err)
	}
}

// failureCode picks a code for failure frames that carry none.
func failureCode(ev protocol.Event) string {
	switch ev.RawType {
	case "generation_failed", "generation_error":
		return "GENERATION_FAILED"
	case "agent_failed":
		return "AGENT_FAILED"
	default:
		return "ERROR"
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
