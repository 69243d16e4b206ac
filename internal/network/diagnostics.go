package network

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MRamiBalles/hintserver/internal/events"
	"github.com/MRamiBalles/hintserver/internal/infra/storage"
	"github.com/MRamiBalles/hintserver/internal/platform/logger"
)

// DiagnosticsHandler serves the diagnostics log to operators.
type DiagnosticsHandler struct {
	eventLog  *events.EventLog
	recapper  *storage.Recapper
	dumps     storage.DumpRepository
	sessionID string
	logger    *logger.Logger
}

// NewDiagnosticsHandler creates a new diagnostics handler. recapper and
// dumps may be nil when the server runs without storage.
func NewDiagnosticsHandler(el *events.EventLog, recapper *storage.Recapper, dumps storage.DumpRepository, sessionID string, log *logger.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		eventLog:  el,
		recapper:  recapper,
		dumps:     dumps,
		sessionID: sessionID,
		logger:    log,
	}
}

// DiagnosticsResponse is the API response for the diagnostics replay.
type DiagnosticsResponse struct {
	SessionID   string             `json:"session_id,omitempty"`
	TotalEvents int                `json:"total_events"`
	FilteredBy  string             `json:"filtered_by,omitempty"`
	GeneratedAt string             `json:"generated_at"`
	Events      []events.HintEvent `json:"events"`
}

// HandleDiagnostics replays the in-memory diagnostics log.
// GET /api/hints/diagnostics?type=OVERFLOW&player=P001
func (dh *DiagnosticsHandler) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventType := r.URL.Query().Get("type")
	playerID := r.URL.Query().Get("player")
	filterDesc := ""
	if eventType != "" {
		filterDesc = "type=" + eventType
	}
	if playerID != "" {
		if filterDesc != "" {
			filterDesc += " "
		}
		filterDesc += "player=" + playerID
	}

	found := dh.eventLog.Filter(events.EventType(eventType), playerID)
	if found == nil {
		found = []events.HintEvent{}
	}
	jsonSuccess(w, DiagnosticsResponse{
		SessionID:   dh.sessionID,
		TotalEvents: len(found),
		FilteredBy:  filterDesc,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      found,
	})
}

// HandleStats returns event counts by type.
// GET /api/hints/diagnostics/stats
func (dh *DiagnosticsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	all := dh.eventLog.Replay()
	counts := make(map[string]int)
	for _, e := range all {
		counts[string(e.Type)]++
	}
	jsonSuccess(w, map[string]interface{}{
		"generated_at":     time.Now().Format(time.RFC3339),
		"total_events":     len(all),
		"by_type":          counts,
		"persist_failures": dh.eventLog.Dropped(),
	})
}

// HandleRecap returns the stored diagnostics recap for one player.
// GET /api/hints/diagnostics/recap?player=P001&since_minutes=30
func (dh *DiagnosticsHandler) HandleRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if dh.recapper == nil {
		jsonError(w, "Storage disabled", http.StatusNotFound)
		return
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		jsonError(w, "Missing player", http.StatusBadRequest)
		return
	}

	var since time.Time
	if s := r.URL.Query().Get("since_minutes"); s != "" {
		mins, err := strconv.Atoi(s)
		if err != nil || mins < 0 {
			jsonError(w, "Invalid since_minutes", http.StatusBadRequest)
			return
		}
		since = time.Now().Add(-time.Duration(mins) * time.Minute)
	}

	recap, err := dh.recapper.GenerateRecap(r.Context(), dh.sessionID, playerID, since)
	if err != nil {
		dh.logger.Error("recap failed", "player", playerID, "error", err)
		jsonError(w, "Recap failed", http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, recap)
}

// HandleDumps returns the latest compiled payloads stored for a player.
// GET /api/hints/dumps?player=P001&limit=10
func (dh *DiagnosticsHandler) HandleDumps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if dh.dumps == nil {
		jsonError(w, "Payload dumps are not stored in the database", http.StatusNotFound)
		return
	}
	playerID := r.URL.Query().Get("player")
	if playerID == "" {
		jsonError(w, "Missing player", http.StatusBadRequest)
		return
	}
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	dumps, err := dh.dumps.Latest(r.Context(), playerID, limit)
	if err != nil {
		dh.logger.Error("dump lookup failed", "player", playerID, "error", err)
		jsonError(w, "Dump lookup failed", http.StatusInternalServerError)
		return
	}
	if dumps == nil {
		dumps = []storage.PayloadDump{}
	}
	jsonSuccess(w, map[string]interface{}{"player_id": playerID, "dumps": dumps})
}

// RegisterRoutes sets up the diagnostics routes.
func (dh *DiagnosticsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/hints/diagnostics", dh.HandleDiagnostics)
	mux.HandleFunc("/api/hints/diagnostics/stats", dh.HandleStats)
	mux.HandleFunc("/api/hints/diagnostics/recap", dh.HandleRecap)
	mux.HandleFunc("/api/hints/dumps", dh.HandleDumps)
}
