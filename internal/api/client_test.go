package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestCreateGenerationSendsDescriptorAndToken(t *testing.T) {
	var gotAuth string
	var gotBody BusinessInfo

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/generate" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(CreateResponse{GenerationID: "g1", Status: "started"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, staticToken("tok123"), nil, nil)
	resp, err := client.CreateGeneration(context.Background(), BusinessInfo{
		BusinessName:        "Blue Fern Cafe",
		BusinessCategory:    "restaurant",
		BusinessDescription: "Neighborhood cafe",
	})
	if err != nil {
		t.Fatalf("CreateGeneration failed: %v", err)
	}
	if resp.GenerationID != "g1" {
		t.Errorf("GenerationID: got %q, want g1", resp.GenerationID)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("Authorization: got %q, want Bearer tok123", gotAuth)
	}
	if gotBody.BusinessName != "Blue Fern Cafe" {
		t.Errorf("BusinessName: got %q", gotBody.BusinessName)
	}
}

func TestErrorDetailExtraction(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string_detail", 422, `{"detail":"Business name is required"}`, "Business name is required"},
		{"structured_detail", 422, `{"detail":{"errors":["content agent failed","timeout"],"message":"Generation failed"}}`, "content agent failed; timeout"},
		{"message_only", 400, `{"detail":{"message":"Generation not completed yet"}}`, "Generation not completed yet"},
		{"no_detail", 500, `{}`, "request failed with status 500"},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		client := NewClient(srv.URL, nil, nil, nil)
		_, err := client.GetResult(context.Background(), "g1")
		srv.Close()

		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("%s: expected *Error, got %T", tc.name, err)
		}
		if apiErr.Status != tc.status {
			t.Errorf("%s: status got %d, want %d", tc.name, apiErr.Status, tc.status)
		}
		if apiErr.Error() != tc.want {
			t.Errorf("%s: message got %q, want %q", tc.name, apiErr.Error(), tc.want)
		}
	}
}

func TestUnauthorizedTriggersLogoutCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"token expired"}`))
	}))
	defer srv.Close()

	loggedOut := false
	client := NewClient(srv.URL, staticToken("stale"), func() { loggedOut = true }, nil)

	_, err := client.GetStatus(context.Background(), "g1")
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !loggedOut {
		t.Error("expected onUnauthorized callback to fire")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Detail != "token expired" {
		t.Errorf("expected detail preserved, got %v", err)
	}
}

func TestHistoryAndCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/generate/history":
			_, _ = w.Write([]byte(`{"generations":[{"generation_id":"g1","business_name":"Blue Fern Cafe","status":"completed","progress":100}]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/generate/g1":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil, nil, nil)

	entries, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(entries) != 1 || entries[0].GenerationID != "g1" {
		t.Errorf("unexpected history: %+v", entries)
	}

	if err := client.CancelGeneration(context.Background(), "g1"); err != nil {
		t.Fatalf("CancelGeneration failed: %v", err)
	}
}
