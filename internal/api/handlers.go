// Package api provides onboarding conversation handlers for Sprout endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SproutFi/sprout/internal/models"
)

// OnboardingService is the conversation-driving surface the server needs.
type OnboardingService interface {
	ProcessMessageWithEvents(ctx context.Context, userID, message string, state *models.ProfileState) <-chan models.Event
}

// StateService loads and persists onboarding profile state.
type StateService interface {
	GetProfileState(ctx context.Context, userID string) (*models.ProfileState, error)
	SaveProfileState(ctx context.Context, state *models.ProfileState) error
	ResetProfileState(ctx context.Context, userID string) error
}

// PatchService applies flat field patches onto a profile.
type PatchService interface {
	ApplyPatch(state *models.ProfileState, step string, patch map[string]any)
}

// messageRequest is the body of POST /onboarding/{userID}/messages.
type messageRequest struct {
	Message string `json:"message"`
}

// writeJSONResponse marshals response and writes it with the given status
// code. Marshaling happens before any header is written so an encoding
// failure can still be reported as a 500.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response any) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		statusCode = http.StatusInternalServerError
		jsonData = []byte(`{"status":"error","message":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(jsonData); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", err)
	}
}

// loadOrCreateState fetches the user's session, creating a fresh one at the
// presentation step when none exists.
func (s *Server) loadOrCreateState(ctx context.Context, userID string) (*models.ProfileState, error) {
	state, err := s.states.GetProfileState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}
	slog.Debug("Server.loadOrCreateState: creating new session", "userID", userID)
	return models.NewProfileState(userID)
}

// postMessageHandler handles POST /onboarding/{userID}/messages.
// The response is a Server-Sent Events stream of agent events; the updated
// state is persisted once the stream completes.
func (s *Server) postMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	slog.Debug("postMessageHandler invoked", "userID", userID)

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("postMessageHandler invalid JSON", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	state, err := s.loadOrCreateState(r.Context(), userID)
	if err != nil {
		slog.Error("postMessageHandler load state failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load onboarding state"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("postMessageHandler streaming unsupported", "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range s.agent.ProcessMessageWithEvents(r.Context(), userID, req.Message, state) {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			slog.Error("postMessageHandler event marshal failed", "error", err, "event", ev.Event, "userID", userID)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data); err != nil {
			slog.Warn("postMessageHandler client write failed", "error", err, "userID", userID)
			break
		}
		flusher.Flush()
	}

	// Persist even if the client disconnected mid-stream; the turn has
	// already mutated the state.
	if err := s.states.SaveProfileState(context.Background(), state); err != nil {
		slog.Error("postMessageHandler save state failed", "error", err, "userID", userID)
	}
}

// getStateHandler handles GET /onboarding/{userID}.
func (s *Server) getStateHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	slog.Debug("getStateHandler invoked", "userID", userID)

	state, err := s.states.GetProfileState(r.Context(), userID)
	if err != nil {
		slog.Error("getStateHandler load failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load onboarding state"))
		return
	}
	if state == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No onboarding session for user"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// resetHandler handles POST /onboarding/{userID}/reset.
func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	slog.Debug("resetHandler invoked", "userID", userID)

	if err := s.states.ResetProfileState(r.Context(), userID); err != nil {
		slog.Error("resetHandler failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset onboarding state"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "reset"}))
}

// patchContextHandler handles POST /onboarding/{userID}/context/{step}.
// The body is a flat field-to-value mapping applied onto the user's profile.
func (s *Server) patchContextHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	step := r.PathValue("step")
	slog.Debug("patchContextHandler invoked", "userID", userID, "step", step)

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		slog.Warn("patchContextHandler invalid JSON", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	state, err := s.states.GetProfileState(r.Context(), userID)
	if err != nil {
		slog.Error("patchContextHandler load failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load onboarding state"))
		return
	}
	if state == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No onboarding session for user"))
		return
	}

	s.patches.ApplyPatch(state, step, patch)
	if err := s.states.SaveProfileState(r.Context(), state); err != nil {
		slog.Error("patchContextHandler save failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save onboarding state"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state.UserContext))
}
