// Package eventlog provides structured event logging for generation
// sessions. This file appends JSON events to events.jsonl.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventSessionStarted   = "session_started"
	EventChannelConnected = "channel_connected"
	EventChannelClosed    = "channel_closed"
	EventReconnectAttempt = "reconnect_attempt"
	EventFrameReceived    = "frame_received"
	EventFrameDropped     = "frame_dropped"
	EventSessionCompleted = "session_completed"
	EventSessionFailed    = "session_failed"
	EventSessionCancelled = "session_cancelled"
)

// Record represents a single structured event written to the log.
type Record struct {
	Time         time.Time              `json:"time"`
	Event        string                 `json:"event"`
	GenerationID string                 `json:"generation_id,omitempty"`
	FrameType    string                 `json:"frame_type,omitempty"`
	Step         string                 `json:"step,omitempty"`
	Progress     int                    `json:"progress,omitempty"`
	Attempt      int                    `json:"attempt,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// Log writes append-only JSONL events to a log file.
type Log struct {
	path string
	mu   sync.Mutex
}

// New creates a Log that writes to events.jsonl inside dir.
// Creates dir if it does not already exist. Does not truncate an existing
// log file.
func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}

	return &Log{
		path: filepath.Join(dir, "events.jsonl"),
	}, nil
}

// Append writes a single Record as one JSON line to the log file.
// If rec.Time is the zero value, it is automatically set to time.Now().UTC().
// The file is opened in append mode, written to, and then closed.
// Thread-safe via mutex.
func (l *Log) Append(rec Record) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event record: %w", err)
	}

	return nil
}

// ReadAll reads and parses all records from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Log) ReadAll() ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse event log line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}

	return records, nil
}
