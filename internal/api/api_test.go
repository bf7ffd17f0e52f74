package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SproutFi/sprout/internal/models"
)

// stubAgent emits a fixed event sequence for every turn.
type stubAgent struct {
	events []models.Event
}

func (a *stubAgent) ProcessMessageWithEvents(ctx context.Context, userID, message string, state *models.ProfileState) <-chan models.Event {
	out := make(chan models.Event)
	go func() {
		defer close(out)
		for _, ev := range a.events {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// stubStates is an in-memory StateService double.
type stubStates struct {
	states map[string]*models.ProfileState
	saved  int
}

func newStubStates() *stubStates {
	return &stubStates{states: make(map[string]*models.ProfileState)}
}

func (s *stubStates) GetProfileState(ctx context.Context, userID string) (*models.ProfileState, error) {
	return s.states[userID], nil
}

func (s *stubStates) SaveProfileState(ctx context.Context, state *models.ProfileState) error {
	s.saved++
	s.states[state.UserID] = state
	return nil
}

func (s *stubStates) ResetProfileState(ctx context.Context, userID string) error {
	delete(s.states, userID)
	return nil
}

// stubPatches records the last patch application.
type stubPatches struct {
	step  string
	patch map[string]any
}

func (p *stubPatches) ApplyPatch(state *models.ProfileState, step string, patch map[string]any) {
	p.step = step
	p.patch = patch
}

func newTestServer(t *testing.T) (*httptest.Server, *stubStates, *stubPatches) {
	t.Helper()
	agent := &stubAgent{events: []models.Event{
		{Event: models.EventTokenDelta, Data: map[string]any{"text": "Hello "}},
		{Event: models.EventMessageCompleted, Data: map[string]any{"text": "Hello there!"}},
	}}
	states := newStubStates()
	patches := &stubPatches{}
	srv := NewServer(agent, states, patches)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts, states, patches
}

func TestPostMessageStreamsSSE(t *testing.T) {
	ts, states, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/onboarding/user-1/messages", "application/json",
		strings.NewReader(`{"message": "hi"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading stream failed: %v", err)
	}
	text := string(body)
	if !strings.Contains(text, "event: token.delta") || !strings.Contains(text, "event: message.completed") {
		t.Errorf("stream missing expected events:\n%s", text)
	}
	if !strings.Contains(text, `"text":"Hello there!"`) {
		t.Errorf("stream missing event payload:\n%s", text)
	}

	// A fresh session is created and persisted after the turn.
	if states.saved != 1 {
		t.Errorf("expected one save after the turn, got %d", states.saved)
	}
	if states.states["user-1"] == nil {
		t.Error("expected session created for new user")
	}
}

func TestPostMessageInvalidJSON(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/onboarding/user-1/messages", "application/json",
		strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetStateNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/onboarding/nobody")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetStateReturnsSession(t *testing.T) {
	ts, states, _ := newTestServer(t)

	state, err := models.NewProfileState("user-1")
	if err != nil {
		t.Fatalf("NewProfileState failed: %v", err)
	}
	states.states["user-1"] = state

	resp, err := http.Get(ts.URL + "/onboarding/user-1")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var envelope struct {
		Status string               `json:"status"`
		Result *models.ProfileState `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding response failed: %v", err)
	}
	if envelope.Result == nil || envelope.Result.UserID != "user-1" {
		t.Errorf("expected session in response, got %+v", envelope.Result)
	}
}

func TestResetRemovesSession(t *testing.T) {
	ts, states, _ := newTestServer(t)

	state, err := models.NewProfileState("user-1")
	if err != nil {
		t.Fatalf("NewProfileState failed: %v", err)
	}
	states.states["user-1"] = state

	resp, err := http.Post(ts.URL+"/onboarding/user-1/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if states.states["user-1"] != nil {
		t.Error("expected session removed after reset")
	}
}

func TestPatchContext(t *testing.T) {
	ts, states, patches := newTestServer(t)

	state, err := models.NewProfileState("user-1")
	if err != nil {
		t.Fatalf("NewProfileState failed: %v", err)
	}
	states.states["user-1"] = state

	resp, err := http.Post(ts.URL+"/onboarding/user-1/context/identity", "application/json",
		strings.NewReader(`{"preferred_name": "Alex"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if patches.step != "identity" || patches.patch["preferred_name"] != "Alex" {
		t.Errorf("patch not forwarded: step=%q patch=%v", patches.step, patches.patch)
	}
	if states.saved != 1 {
		t.Errorf("expected state saved after patch, got %d saves", states.saved)
	}
}

func TestPatchContextUnknownUser(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/onboarding/nobody/context/identity", "application/json",
		strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
