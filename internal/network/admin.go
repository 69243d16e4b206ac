package network

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MRamiBalles/hintserver/internal/domain/player"
	"github.com/MRamiBalles/hintserver/internal/engine"
	"github.com/MRamiBalles/hintserver/internal/hint"
	"github.com/MRamiBalles/hintserver/internal/hint/elements"
	"github.com/MRamiBalles/hintserver/internal/platform/logger"
)

// AdminAPI is the operator REST API for pushing hints.
type AdminAPI struct {
	engine *engine.Engine
	hub    *Hub
	logger *logger.Logger
}

// NewAdminAPI creates a new admin handler.
func NewAdminAPI(eng *engine.Engine, hub *Hub, log *logger.Logger) *AdminAPI {
	return &AdminAPI{engine: eng, hub: hub, logger: log}
}

// TemporaryRequest is the payload for queueing a temporary message.
// An empty PlayerID broadcasts.
type TemporaryRequest struct {
	PlayerID    string  `json:"player_id"`
	Text        string  `json:"text"`
	DurationSec float64 `json:"duration_sec"`
	Priority    bool    `json:"priority"`
}

// AnnounceRequest is the payload for an override announcement.
type AnnounceRequest struct {
	Text        string  `json:"text"`
	DurationSec float64 `json:"duration_sec"`
	Raw         bool    `json:"raw"`
}

// CountdownRequest is the payload for starting a countdown.
type CountdownRequest struct {
	Label       string  `json:"label"`
	DurationSec float64 `json:"duration_sec"`
}

// PollCreateRequest is the payload for starting a poll.
type PollCreateRequest struct {
	PollID      string   `json:"poll_id"`
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	DurationSec float64  `json:"duration_sec"`
}

// VoteRequest is the payload for a poll vote.
type VoteRequest struct {
	PollID string `json:"poll_id"`
	Option string `json:"option"`
}

// StatusResponse is the API response for the status endpoint.
type StatusResponse struct {
	engine.Status
	Connected   []player.Snapshot `json:"connected"`
	GeneratedAt string            `json:"generated_at"`
}

// HandleTemporary queues a temporary message.
// POST /api/hints/temporary
func (a *AdminAPI) HandleTemporary(w http.ResponseWriter, r *http.Request) {
	var req TemporaryRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.Text == "" || req.DurationSec <= 0 {
		jsonError(w, "text and a positive duration_sec are required", http.StatusBadRequest)
		return
	}

	n, err := a.engine.ShowTemporary(r.Context(), req.PlayerID, req.Text, seconds(req.DurationSec), req.Priority)
	if err != nil {
		a.fail(w, "temporary", err)
		return
	}
	jsonSuccess(w, map[string]interface{}{"success": true, "delivered": n})
}

// HandleAnnounce shows an override announcement to everyone.
// POST /api/hints/announce
func (a *AdminAPI) HandleAnnounce(w http.ResponseWriter, r *http.Request) {
	var req AnnounceRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.Text == "" || req.DurationSec <= 0 {
		jsonError(w, "text and a positive duration_sec are required", http.StatusBadRequest)
		return
	}

	if err := a.engine.Announce(r.Context(), req.Text, seconds(req.DurationSec), req.Raw); err != nil {
		a.fail(w, "announce", err)
		return
	}
	jsonSuccess(w, map[string]interface{}{"success": true})
}

// HandleCountdown starts a countdown.
// POST /api/hints/countdown
func (a *AdminAPI) HandleCountdown(w http.ResponseWriter, r *http.Request) {
	var req CountdownRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.DurationSec <= 0 {
		jsonError(w, "a positive duration_sec is required", http.StatusBadRequest)
		return
	}

	label := req.Label
	err := a.engine.StartCountdown(r.Context(), label, seconds(req.DurationSec), func() {
		a.logger.Info("countdown finished", "label", label)
	})
	if err != nil {
		a.fail(w, "countdown", err)
		return
	}
	jsonSuccess(w, map[string]interface{}{"success": true})
}

// HandlePollCreate starts a poll.
// POST /api/hints/poll/create
func (a *AdminAPI) HandlePollCreate(w http.ResponseWriter, r *http.Request) {
	var req PollCreateRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.Question == "" || len(req.Options) < 2 || req.DurationSec <= 0 {
		jsonError(w, "question, two options and a positive duration_sec are required", http.StatusBadRequest)
		return
	}

	id, err := a.engine.CreatePoll(r.Context(), req.PollID, req.Question, req.Options, seconds(req.DurationSec))
	if err != nil {
		a.fail(w, "poll create", err)
		return
	}
	jsonSuccess(w, map[string]interface{}{"success": true, "poll_id": id})
}

// HandleVote counts a vote.
// POST /api/hints/poll/vote
func (a *AdminAPI) HandleVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequest
	if !decodePost(w, r, &req) {
		return
	}
	if req.PollID == "" || req.Option == "" {
		jsonError(w, "poll_id and option are required", http.StatusBadRequest)
		return
	}

	if err := a.engine.Vote(r.Context(), req.PollID, req.Option); err != nil {
		a.fail(w, "vote", err)
		return
	}
	jsonSuccess(w, map[string]interface{}{"success": true})
}

// HandleForce makes the next frame run a pass.
// POST /api/hints/force
func (a *AdminAPI) HandleForce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := a.engine.ForceSend(r.Context()); err != nil {
		a.fail(w, "force", err)
		return
	}
	jsonSuccess(w, map[string]interface{}{"success": true})
}

// HandleStatus returns connected players and scheduler state.
// GET /api/hints/status
func (a *AdminAPI) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := a.engine.Status(r.Context())
	if err != nil {
		a.fail(w, "status", err)
		return
	}
	jsonSuccess(w, StatusResponse{
		Status:      st,
		Connected:   a.hub.Sessions(),
		GeneratedAt: time.Now().Format(time.RFC3339),
	})
}

// RegisterRoutes sets up the admin API routes.
func (a *AdminAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/hints/temporary", a.HandleTemporary)
	mux.HandleFunc("/api/hints/announce", a.HandleAnnounce)
	mux.HandleFunc("/api/hints/countdown", a.HandleCountdown)
	mux.HandleFunc("/api/hints/poll/create", a.HandlePollCreate)
	mux.HandleFunc("/api/hints/poll/vote", a.HandleVote)
	mux.HandleFunc("/api/hints/force", a.HandleForce)
	mux.HandleFunc("/api/hints/status", a.HandleStatus)
}

func (a *AdminAPI) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("admin request failed", "op", op, "error", err)
	}
	jsonError(w, err.Error(), status)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, hint.ErrUnknownPlayer), errors.Is(err, engine.ErrUnknownPoll):
		return http.StatusNotFound
	case errors.Is(err, hint.ErrDuplicateID), errors.Is(err, elements.ErrPollClosed):
		return http.StatusConflict
	case errors.Is(err, elements.ErrUnknownOption):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrQueueFull), errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func decodePost(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
