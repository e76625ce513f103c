// Package devserver is a stub generation backend for local development and
// integration tests. It speaks the same HTTP and WebSocket contract as the
// real service but replays a canned workflow instead of generating anything.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sitewright-dev/sitewright/internal/api"
	"github.com/sitewright-dev/sitewright/internal/logger"
)

// devSecret signs the throwaway JWTs issued by the stub auth routes.
const devSecret = "sitewright-dev-secret"

// frame is one WebSocket message in either direction.
type frame struct {
	Type         string          `json:"type"`
	GenerationID string          `json:"generation_id,omitempty"`
	Progress     *int            `json:"progress,omitempty"`
	Step         string          `json:"step,omitempty"`
	AgentID      string          `json:"agent_id,omitempty"`
	StepProgress *int            `json:"step_progress,omitempty"`
	Message      string          `json:"message,omitempty"`
	Error        string          `json:"error,omitempty"`
	Code         string          `json:"code,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
	FinalWebsite json.RawMessage `json:"final_website,omitempty"`
	QualityScore float64         `json:"quality_score,omitempty"`
}

// job is one simulated generation.
type job struct {
	id          string
	business    api.BusinessInfo
	status      string
	progress    int
	step        string
	createdAt   time.Time
	completedAt time.Time
	cancelled   bool
	website     json.RawMessage
	quality     float64
	errors      []string
}

// Server is the stub backend. Zero value is not usable; use New.
type Server struct {
	log      *logger.Logger
	engine   *gin.Engine
	upgrader websocket.Upgrader

	// Tick is the delay between workflow steps. Tests shorten it.
	Tick time.Duration

	mu   sync.Mutex
	jobs map[string]*job
	subs map[string]map[chan frame]struct{}
}

// New builds a stub server with all routes registered.
func New(log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		log:      log,
		engine:   gin.New(),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		Tick:     700 * time.Millisecond,
		jobs:     make(map[string]*job),
		subs:     make(map[string]map[chan frame]struct{}),
	}
	s.engine.Use(gin.Recovery())

	gen := s.engine.Group("/api/v1/generate")
	gen.POST("", s.createGeneration)
	gen.POST("/", s.createGeneration)
	gen.GET("/status/:id", s.getStatus)
	gen.GET("/result/:id", s.getResult)
	gen.GET("/history", s.listHistory)
	gen.GET("/:id", s.getGeneration)
	gen.DELETE("/:id", s.cancelGeneration)

	auth := s.engine.Group("/api/v1/auth")
	auth.POST("/login", s.login)
	auth.POST("/signup", s.login)
	auth.POST("/logout", func(c *gin.Context) { c.Status(http.StatusOK) })

	s.engine.GET("/api/websocket/generation/:id", s.subscribe)

	return s
}

// Handler exposes the server for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("dev server listening", "addr", addr)
	if err := s.engine.Run(addr); err != nil {
		return fmt.Errorf("run dev server: %w", err)
	}
	return nil
}

func (s *Server) createGeneration(c *gin.Context) {
	var info api.BusinessInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body"})
		return
	}
	if info.BusinessName == "" || info.BusinessCategory == "" || info.BusinessDescription == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": "business_name, business_category and business_description are required",
		})
		return
	}

	j := &job{
		id:        uuid.New().String(),
		business:  info,
		status:    "pending",
		createdAt: time.Now(),
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.log.Info("generation created", "generation_id", j.id, "business", info.BusinessName)
	go s.runWorkflow(j.id)

	c.JSON(http.StatusOK, api.CreateResponse{
		GenerationID: j.id,
		Status:       "pending",
		Message:      "generation started",
	})
}

func (s *Server) getStatus(c *gin.Context) {
	s.mu.Lock()
	j, ok := s.jobs[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"detail": "generation not found"})
		return
	}
	resp := api.StatusResponse{
		GenerationID: j.id,
		Status:       j.status,
		Progress:     j.progress,
		CurrentStep:  j.step,
		Errors:       j.errors,
	}
	if !j.completedAt.IsZero() {
		resp.CompletedAt = j.completedAt.UTC().Format(time.RFC3339)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, resp)
}

func (s *Server) getResult(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "generation not found"})
		return
	}
	if j.status != "completed" {
		c.JSON(http.StatusConflict, gin.H{"detail": "generation not completed"})
		return
	}

	quality, _ := json.Marshal(gin.H{"overall_score": j.quality})
	metadata, _ := json.Marshal(gin.H{
		"business_name": j.business.BusinessName,
		"generated_at":  j.completedAt.UTC().Format(time.RFC3339),
	})
	c.JSON(http.StatusOK, api.ResultResponse{
		GenerationID:  j.id,
		Website:       j.website,
		Metadata:      metadata,
		QualityReport: quality,
	})
}

func (s *Server) getGeneration(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "generation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generation_id": j.id,
		"business_info": j.business,
		"status":        j.status,
		"progress":      j.progress,
		"created_at":    j.createdAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) cancelGeneration(c *gin.Context) {
	s.mu.Lock()
	j, ok := s.jobs[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"detail": "generation not found"})
		return
	}
	done := j.status == "completed" || j.status == "failed"
	if !done {
		j.cancelled = true
	}
	s.mu.Unlock()

	if done {
		c.JSON(http.StatusConflict, gin.H{"detail": "generation already finished"})
		return
	}
	s.log.Info("generation cancelled", "generation_id", c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"message": "generation cancelled"})
}

func (s *Server) listHistory(c *gin.Context) {
	s.mu.Lock()
	entries := make([]api.HistoryEntry, 0, len(s.jobs))
	for _, j := range s.jobs {
		e := api.HistoryEntry{
			GenerationID: j.id,
			BusinessName: j.business.BusinessName,
			Status:       j.status,
			Progress:     j.progress,
			CreatedAt:    j.createdAt.UTC().Format(time.RFC3339),
		}
		if !j.completedAt.IsZero() {
			e.CompletedAt = j.completedAt.UTC().Format(time.RFC3339)
		}
		entries = append(entries, e)
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"generations": entries})
}

func (s *Server) login(c *gin.Context) {
	var creds api.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "email and password are required"})
		return
	}

	claims := jwt.MapClaims{
		"sub": creds.Email,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(devSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "signing token"})
		return
	}

	c.JSON(http.StatusOK, api.AuthResponse{Token: token, Email: creds.Email})
}
