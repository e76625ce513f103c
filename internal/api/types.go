// Package api is the request/response client for the generation backend.
// This file defines the wire types shared with the server.
package api

import "encoding/json"

// BusinessInfo is the descriptor submitted to start a generation.
type BusinessInfo struct {
	BusinessName           string   `json:"business_name"`
	BusinessCategory       string   `json:"business_category"`
	BusinessDescription    string   `json:"business_description"`
	TargetAudience         string   `json:"target_audience,omitempty"`
	PreferredColors        []string `json:"preferred_colors,omitempty"`
	AdditionalRequirements string   `json:"additional_requirements,omitempty"`
}

// CreateResponse is returned by the create call.
type CreateResponse struct {
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

// StatusResponse describes the server's view of one generation.
type StatusResponse struct {
	GenerationID string   `json:"generation_id"`
	Status       string   `json:"status"`
	Progress     int      `json:"progress"`
	CurrentStep  string   `json:"current_step"`
	Errors       []string `json:"errors"`
	CompletedAt  string   `json:"completed_at,omitempty"`
}

// ResultResponse carries the final artifact for a completed generation.
type ResultResponse struct {
	GenerationID  string          `json:"generation_id"`
	Website       json.RawMessage `json:"website"`
	Metadata      json.RawMessage `json:"metadata"`
	QualityReport json.RawMessage `json:"quality_report"`
}

// HistoryEntry is one row of the server-side generation history.
type HistoryEntry struct {
	GenerationID string `json:"generation_id"`
	BusinessName string `json:"business_name"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// Credentials is the login/signup request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}
