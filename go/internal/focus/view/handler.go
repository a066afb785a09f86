// Package view serves the reconciled client state to local renderers over HTTP
// and forwards their commands to the backend.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus"
	"github.com/mcdev12/focusguard/go/internal/focus/command"
	"github.com/mcdev12/focusguard/go/internal/focus/gateway"
	"github.com/mcdev12/focusguard/go/internal/models"
)

// StateProvider returns the current reconciled view.
type StateProvider interface {
	View() focus.View
}

// Controller forwards user intent to the backend.
type Controller interface {
	StartSession(durationMinutes int) error
	StopSession(ctx context.Context) error
	PauseSession(ctx context.Context) error
	ResumeSession(ctx context.Context) error
	ToggleMock(enabled bool) error
	UpdatePenaltySettings(settings models.PenaltySettings) error
	UpdatePenaltyConfig(cfg models.PenaltyConfig) error
	PushManualSensors(ctx context.Context, override models.MockSensorOverride) (models.MockState, error)
	PatchMockState(ctx context.Context, patch models.MockStatePatch) (models.MockState, error)
	LockBox(ctx context.Context) error
	UnlockBox(ctx context.Context) error
	RefreshCredentials(ctx context.Context) error
}

// StatsSource reports one component's diagnostics for GET /health.
type StatsSource func() map[string]interface{}

// Handler handles renderer HTTP requests
type Handler struct {
	state    StateProvider
	control  Controller
	watchers *Broadcaster
	stats    map[string]StatsSource
}

// NewHandler creates a new handler. watchers may be nil to disable the stream endpoint.
func NewHandler(state StateProvider, control Controller, watchers *Broadcaster) *Handler {
	return &Handler{state: state, control: control, watchers: watchers, stats: make(map[string]StatsSource)}
}

// WithStats adds a component to the health report under name.
func (h *Handler) WithStats(name string, src StatsSource) *Handler {
	h.stats[name] = src
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /api/view", h.handleView)
	if h.watchers != nil {
		mux.HandleFunc("GET /ws", h.watchers.HandleWatch)
	}

	mux.HandleFunc("POST /api/session/start", h.handleStartSession)
	mux.HandleFunc("POST /api/session/stop", h.simple(h.control.StopSession))
	mux.HandleFunc("POST /api/session/pause", h.simple(h.control.PauseSession))
	mux.HandleFunc("POST /api/session/resume", h.simple(h.control.ResumeSession))

	mux.HandleFunc("POST /api/mock/toggle", h.handleToggleMock)
	mux.HandleFunc("POST /api/mock/sensors", h.handleManualSensors)
	mux.HandleFunc("POST /api/mock/state", h.handleMockState)

	mux.HandleFunc("PUT /api/penalty/settings", h.handlePenaltySettings)
	mux.HandleFunc("PUT /api/penalty/config", h.handlePenaltyConfig)

	mux.HandleFunc("POST /api/box/lock", h.simple(h.control.LockBox))
	mux.HandleFunc("POST /api/box/unlock", h.simple(h.control.UnlockBox))
	mux.HandleFunc("POST /api/credentials/refresh", h.simple(h.control.RefreshCredentials))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "ok", "connected": true}
	if !h.state.View().Connected {
		status = http.StatusServiceUnavailable
		body = map[string]interface{}{"status": "disconnected", "connected": false}
	}

	components := make(map[string]interface{}, len(h.stats))
	for name, src := range h.stats {
		components[name] = src()
	}
	body["components"] = components
	if h.watchers != nil {
		body["renderers"] = h.watchers.Count()
	}
	writeJSON(w, status, body)
}

// handleView handles GET /api/view
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.state.View())
}

type startSessionRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
		return
	}
	h.respond(w, "start session", h.control.StartSession(req.DurationMinutes), nil)
}

type toggleMockRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) handleToggleMock(w http.ResponseWriter, r *http.Request) {
	var req toggleMockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, "toggle mock", h.control.ToggleMock(req.Enabled), nil)
}

func (h *Handler) handleManualSensors(w http.ResponseWriter, r *http.Request) {
	var req models.MockSensorOverride
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.control.PushManualSensors(r.Context(), req)
	h.respond(w, "manual sensors", err, state)
}

func (h *Handler) handleMockState(w http.ResponseWriter, r *http.Request) {
	var req models.MockStatePatch
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.control.PatchMockState(r.Context(), req)
	h.respond(w, "mock state", err, state)
}

func (h *Handler) handlePenaltySettings(w http.ResponseWriter, r *http.Request) {
	var req models.PenaltySettings
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, "penalty settings", h.control.UpdatePenaltySettings(req), nil)
}

func (h *Handler) handlePenaltyConfig(w http.ResponseWriter, r *http.Request) {
	var req models.PenaltyConfig
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, "penalty config", h.control.UpdatePenaltyConfig(req), nil)
}

// simple adapts a body-less command.
func (h *Handler) simple(fn func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respond(w, r.URL.Path, fn(r.Context()), nil)
	}
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error, data interface{}) {
	if err != nil {
		status, msg := errorStatus(err)
		log.Warn().Err(err).Str("op", op).Int("status", status).Msg("renderer command failed")
		writeError(w, status, msg)
		return
	}
	body := map[string]interface{}{"success": true}
	if data != nil {
		body["data"] = data
	}
	writeJSON(w, http.StatusOK, body)
}

// errorStatus maps client errors onto the status a renderer should see.
func errorStatus(err error) (int, string) {
	if errors.Is(err, gateway.ErrNotConnected) || errors.Is(err, gateway.ErrSendBufferFull) {
		return http.StatusServiceUnavailable, err.Error()
	}
	var reqErr *command.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Message != "" {
			return http.StatusBadGateway, reqErr.Message
		}
		return http.StatusBadGateway, reqErr.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
