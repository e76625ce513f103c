package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/sitewright-dev/sitewright/internal/api"
	"github.com/sitewright-dev/sitewright/internal/logger"
)

func newTestServer(t *testing.T, tick time.Duration) (*Server, *httptest.Server) {
	t.Helper()
	s := New(logger.Nop())
	s.Tick = tick
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func createGeneration(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	body, _ := json.Marshal(api.BusinessInfo{
		BusinessName:        "Bella's Bakery",
		BusinessCategory:    "restaurant",
		BusinessDescription: "Artisan sourdough and pastries",
	})
	resp, err := http.Post(srv.URL+"/api/v1/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create: got status %d", resp.StatusCode)
	}
	var created api.CreateResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	if created.GenerationID == "" {
		t.Fatal("create returned empty generation_id")
	}
	if created.Status != "pending" {
		t.Errorf("create status: got %q", created.Status)
	}
	return created.GenerationID
}

func dialStream(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/websocket/generation/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing stream: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	return f
}

func TestWorkflowRunsToCompletion(t *testing.T) {
	_, srv := newTestServer(t, 5*time.Millisecond)
	id := createGeneration(t, srv)
	conn := dialStream(t, srv, id)

	first := readFrame(t, conn)
	if first.Type != "connection" || first.GenerationID != id {
		t.Fatalf("expected connection ack, got %+v", first)
	}
	second := readFrame(t, conn)
	if second.Type != "progress_update" {
		t.Fatalf("expected initial progress snapshot, got %q", second.Type)
	}

	var final frame
	var lastProgress int
	for {
		f := readFrame(t, conn)
		if f.Type == "progress_update" && f.Progress != nil {
			if *f.Progress < lastProgress {
				t.Errorf("progress went backwards: %d -> %d", lastProgress, *f.Progress)
			}
			lastProgress = *f.Progress
		}
		if f.Type == "generation_complete" {
			final = f
			break
		}
	}
	if len(final.FinalWebsite) == 0 {
		t.Error("generation_complete missing final_website")
	}
	if final.QualityScore == 0 {
		t.Error("generation_complete missing quality_score")
	}

	// HTTP view agrees with the stream.
	resp, err := http.Get(srv.URL + "/api/v1/generate/status/" + id)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var status api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.Status != "completed" || status.Progress != 100 {
		t.Errorf("status after completion: got %q/%d", status.Status, status.Progress)
	}

	result, err := http.Get(srv.URL + "/api/v1/generate/result/" + id)
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	defer func() { _ = result.Body.Close() }()
	if result.StatusCode != http.StatusOK {
		t.Fatalf("result: got status %d", result.StatusCode)
	}
	var res api.ResultResponse
	if err := json.NewDecoder(result.Body).Decode(&res); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(res.Website) == 0 {
		t.Error("result missing website payload")
	}
}

func TestCreateRejectsIncompleteDescriptor(t *testing.T) {
	_, srv := newTestServer(t, time.Minute)

	body, _ := json.Marshal(api.BusinessInfo{BusinessName: "Nameless"})
	resp, err := http.Post(srv.URL+"/api/v1/generate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", resp.StatusCode)
	}
}

func TestResultBeforeCompletionConflicts(t *testing.T) {
	_, srv := newTestServer(t, time.Minute)
	id := createGeneration(t, srv)

	resp, err := http.Get(srv.URL + "/api/v1/generate/result/" + id)
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for incomplete generation, got %d", resp.StatusCode)
	}
}

func TestUnknownGenerationIs404(t *testing.T) {
	_, srv := newTestServer(t, time.Minute)

	for _, path := range []string{
		"/api/v1/generate/status/nope",
		"/api/v1/generate/result/nope",
		"/api/v1/generate/nope",
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("request %s failed: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestPingPong(t *testing.T) {
	_, srv := newTestServer(t, time.Minute)
	id := createGeneration(t, srv)
	conn := dialStream(t, srv, id)

	readFrame(t, conn) // connection ack
	readFrame(t, conn) // initial snapshot

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("writing ping: %v", err)
	}
	if f := readFrame(t, conn); f.Type != "pong" {
		t.Errorf("expected pong, got %q", f.Type)
	}
}

func TestCancelEmitsErrorFrame(t *testing.T) {
	_, srv := newTestServer(t, 50*time.Millisecond)
	id := createGeneration(t, srv)
	conn := dialStream(t, srv, id)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/generate/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: got status %d", resp.StatusCode)
	}

	for {
		f := readFrame(t, conn)
		if f.Type == "error" {
			if f.Code != "CANCELLED" {
				t.Errorf("error code: got %q", f.Code)
			}
			break
		}
	}

	status, err := http.Get(srv.URL + "/api/v1/generate/status/" + id)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer func() { _ = status.Body.Close() }()
	var got api.StatusResponse
	if err := json.NewDecoder(status.Body).Decode(&got); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if got.Status != "failed" {
		t.Errorf("status after cancel: got %q", got.Status)
	}
}

func TestHistoryListsGenerations(t *testing.T) {
	_, srv := newTestServer(t, time.Minute)
	id := createGeneration(t, srv)

	resp, err := http.Get(srv.URL + "/api/v1/generate/history")
	if err != nil {
		t.Fatalf("history request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	var history struct {
		Generations []api.HistoryEntry `json:"generations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(history.Generations) != 1 || history.Generations[0].GenerationID != id {
		t.Errorf("unexpected history: %+v", history.Generations)
	}
}

func TestLoginIssuesSignedToken(t *testing.T) {
	_, srv := newTestServer(t, time.Minute)

	body, _ := json.Marshal(api.Credentials{Email: "user@example.com", Password: "hunter2"})
	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: got status %d", resp.StatusCode)
	}
	var auth api.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("decoding auth response: %v", err)
	}

	token, err := jwt.Parse(auth.Token, func(*jwt.Token) (any, error) {
		return []byte(devSecret), nil
	})
	if err != nil {
		t.Fatalf("parsing issued token: %v", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub != "user@example.com" {
		t.Errorf("token subject: got %q (err %v)", sub, err)
	}

	// Missing password is rejected.
	body, _ = json.Marshal(api.Credentials{Email: "user@example.com"})
	bad, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	_ = bad.Body.Close()
	if bad.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for missing password, got %d", bad.StatusCode)
	}
}
