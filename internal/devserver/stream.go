package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// workflowStep is one stage of the canned generation script.
type workflowStep struct {
	agentID  string
	step     string
	progress int
}

var workflowScript = []workflowStep{
	{agentID: "content", step: "Content Generation", progress: 20},
	{agentID: "design", step: "Design & Structure Generation", progress: 60},
	{agentID: "quality", step: "Quality Validation", progress: 80},
}

// runWorkflow replays the generation script for one job, publishing frames
// to every subscriber as it goes.
func (s *Server) runWorkflow(id string) {
	for _, step := range workflowScript {
		time.Sleep(s.Tick)
		if s.jobCancelled(id) {
			s.failJob(id, "CANCELLED", "generation cancelled")
			return
		}

		s.mu.Lock()
		j, ok := s.jobs[id]
		if !ok {
			s.mu.Unlock()
			return
		}
		j.status = "in_progress"
		j.step = step.step
		j.progress = step.progress
		update := progressFrame(j)
		s.mu.Unlock()

		s.publish(id, update)
		half := 50
		s.publish(id, frame{
			Type:         "agent_progress",
			GenerationID: id,
			AgentID:      step.agentID,
			StepProgress: &half,
			Timestamp:    timestamp(),
		})
		s.publish(id, frame{
			Type:         "agent_completed",
			GenerationID: id,
			AgentID:      step.agentID,
			Timestamp:    timestamp(),
		})
	}

	time.Sleep(s.Tick)
	if s.jobCancelled(id) {
		s.failJob(id, "CANCELLED", "generation cancelled")
		return
	}

	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	j.status = "completed"
	j.step = "Final Assembly"
	j.progress = 100
	j.completedAt = time.Now()
	j.quality = 92.5
	j.website, _ = json.Marshal(gin.H{
		"business_name": j.business.BusinessName,
		"pages":         []string{"home", "about", "contact"},
		"theme": gin.H{
			"category": j.business.BusinessCategory,
			"colors":   j.business.PreferredColors,
		},
	})
	done := frame{
		Type:         "generation_complete",
		GenerationID: id,
		Message:      fmt.Sprintf("website for %s is ready", j.business.BusinessName),
		Timestamp:    timestamp(),
		FinalWebsite: j.website,
		QualityScore: j.quality,
	}
	s.mu.Unlock()

	s.publish(id, done)
	s.log.Info("generation completed", "generation_id", id)
}

func (s *Server) jobCancelled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	return ok && j.cancelled
}

func (s *Server) failJob(id, code, message string) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	j.status = "failed"
	j.completedAt = time.Now()
	j.errors = append(j.errors, message)
	s.mu.Unlock()

	s.publish(id, frame{
		Type:         "error",
		GenerationID: id,
		Code:         code,
		Error:        message,
		Timestamp:    timestamp(),
	})
}

// progressFrame snapshots a job as a progress_update. Callers hold s.mu.
func progressFrame(j *job) frame {
	p := j.progress
	return frame{
		Type:         "progress_update",
		GenerationID: j.id,
		Progress:     &p,
		Step:         j.step,
		Timestamp:    timestamp(),
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func (s *Server) addSub(id string, ch chan frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[chan frame]struct{})
	}
	s.subs[id][ch] = struct{}{}
}

func (s *Server) removeSub(id string, ch chan frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[id], ch)
	if len(s.subs[id]) == 0 {
		delete(s.subs, id)
	}
}

// publish fans a frame out to every subscriber of the generation. Slow
// subscribers drop frames rather than stall the workflow.
func (s *Server) publish(id string, f frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[id] {
		select {
		case ch <- f:
		default:
		}
	}
}

// subscribe upgrades the connection and streams frames for one generation.
// On connect the client gets a connection ack followed by a progress
// snapshot, then live frames as the workflow advances.
func (s *Server) subscribe(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	j, ok := s.jobs[id]
	var snapshot frame
	if ok {
		snapshot = progressFrame(j)
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "generation not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ch := make(chan frame, 32)
	s.addSub(id, ch)
	defer s.removeSub(id, ch)

	ack := frame{
		Type:         "connection",
		GenerationID: id,
		Message:      "subscribed to generation updates",
		Timestamp:    timestamp(),
	}
	if err := conn.WriteJSON(ack); err != nil {
		return
	}
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	// Reader handles client pings and detects disconnects. Pongs are routed
	// through the subscriber channel so a single goroutine does all writes.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var in frame
			if json.Unmarshal(data, &in) == nil && in.Type == "ping" {
				select {
				case ch <- frame{Type: "pong", Timestamp: timestamp()}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case f := <-ch:
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
	}
}
