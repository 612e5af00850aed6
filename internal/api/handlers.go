package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/calvinwijaya/minigames-be/internal/auth"
	"github.com/calvinwijaya/minigames-be/internal/db"
	"github.com/calvinwijaya/minigames-be/internal/game"
	"github.com/calvinwijaya/minigames-be/internal/score"
	"github.com/calvinwijaya/minigames-be/internal/session"
	"github.com/calvinwijaya/minigames-be/internal/store"
)

// Options are the collaborators every new session is opened with
type Options struct {
	Guard    auth.Guard
	Scores   score.Service
	Recorder session.Recorder
	Clock    clk.Clock
	Logger   *zap.Logger
}

// Handlers contains all the API handlers
type Handlers struct {
	store    store.Store
	database *db.Database
	hub      *Hub
	opts     Options
	log      *zap.Logger
}

// NewHandlers creates a new instance of Handlers. database may be nil, in
// which case score history is unavailable.
func NewHandlers(store store.Store, database *db.Database, hub *Hub, opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clk.New()
	}
	return &Handlers{
		store:    store,
		database: database,
		hub:      hub,
		opts:     opts,
		log:      opts.Logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Session endpoints
	r.HandleFunc("/api/session", h.CreateSession).Methods("POST")
	r.HandleFunc("/api/session/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/api/session/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/api/session/{id}/start", h.Start).Methods("POST")
	r.HandleFunc("/api/session/{id}/direction", h.ChangeDirection).Methods("POST")
	r.HandleFunc("/api/session/{id}/flip", h.Flip).Methods("POST")
	r.HandleFunc("/api/session/{id}/reset", h.Reset).Methods("POST")

	// Player endpoints
	r.HandleFunc("/api/scores", h.GetScores).Methods("GET")

	r.HandleFunc("/health", h.Health).Methods("GET")

	// WebSocket endpoint
	r.HandleFunc("/ws", h.ServeWS)
}

// response helper function to send JSON responses
func response(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// error response helper function
func errorResponse(w http.ResponseWriter, status int, message string) {
	response(w, status, map[string]string{"error": message})
}

// unauthenticated sends the client back to its login screen
func unauthenticated(w http.ResponseWriter) {
	response(w, http.StatusUnauthorized, map[string]string{
		"error":    "Session token is not valid",
		"redirect": "login",
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// actionResponse is returned by every input endpoint. Ignored inputs are not
// errors: Accepted is false and the unchanged session is returned.
type actionResponse struct {
	Accepted bool             `json:"accepted"`
	Session  session.Snapshot `json:"session"`
}

// CreateSession validates the caller and opens a new game
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Game string `json:"game"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token := bearerToken(r)
	s, err := session.Open(r.Context(), session.Config{
		Game:     req.Game,
		Token:    token,
		Clock:    h.opts.Clock,
		Guard:    h.opts.Guard,
		Scores:   h.opts.Scores,
		Recorder: h.opts.Recorder,
		Logger:   h.log,
		OnUpdate: h.hub.BroadcastSnapshot,
	})
	switch {
	case errors.Is(err, game.ErrUnknownGame):
		errorResponse(w, http.StatusBadRequest, "Unknown game")
		return
	case errors.Is(err, session.ErrUnauthenticated):
		unauthenticated(w)
		return
	case err != nil:
		h.log.Error("error opening session", zap.Error(err))
		errorResponse(w, http.StatusInternalServerError, "Failed to open session")
		return
	}

	if err := h.store.SaveSession(s, token); err != nil {
		s.Close()
		h.log.Error("error saving session", zap.Error(err))
		errorResponse(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	response(w, http.StatusCreated, s.Snapshot())
}

// sessionFor loads the session named in the path and checks the caller owns
// it. It writes the error response itself and returns nil on failure.
func (h *Handlers) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	token := bearerToken(r)
	if token == "" {
		unauthenticated(w)
		return nil
	}

	s, err := h.store.GetSession(mux.Vars(r)["id"])
	if err != nil {
		errorResponse(w, http.StatusNotFound, "Session not found")
		return nil
	}
	if !s.Owns(token) {
		errorResponse(w, http.StatusForbidden, "Session belongs to another player")
		return nil
	}
	return s
}

// actionError maps a session error onto a response
func actionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrWrongGame):
		errorResponse(w, http.StatusBadRequest, "Input does not apply to this game")
	case errors.Is(err, session.ErrClosed):
		errorResponse(w, http.StatusGone, "Session is closed")
	default:
		errorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// GetSession returns the current state of a session
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	if s == nil {
		return
	}
	response(w, http.StatusOK, s.Snapshot())
}

// Start sets the session clock running
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	if s == nil {
		return
	}

	ok, err := s.Start()
	if err != nil {
		actionError(w, err)
		return
	}
	response(w, http.StatusOK, actionResponse{Accepted: ok, Session: s.Snapshot()})
}

// ChangeDirection turns the snake
func (h *Handlers) ChangeDirection(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	if s == nil {
		return
	}

	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	d, valid := game.ParseDirection(req.Direction)
	if !valid {
		errorResponse(w, http.StatusBadRequest, "Direction must be up, down, left or right")
		return
	}

	ok, err := s.ChangeDirection(d)
	if err != nil {
		actionError(w, err)
		return
	}
	response(w, http.StatusOK, actionResponse{Accepted: ok, Session: s.Snapshot()})
}

// Flip turns a memory card face-up
func (h *Handlers) Flip(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	if s == nil {
		return
	}

	var req struct {
		CardID *int `json:"cardId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CardID == nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ok, err := s.Flip(*req.CardID)
	if err != nil {
		actionError(w, err)
		return
	}
	response(w, http.StatusOK, actionResponse{Accepted: ok, Session: s.Snapshot()})
}

// Reset prepares a finished session for another play-through
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	if s == nil {
		return
	}

	ok, err := s.Reset()
	if err != nil {
		actionError(w, err)
		return
	}
	response(w, http.StatusOK, actionResponse{Accepted: ok, Session: s.Snapshot()})
}

// DeleteSession closes and discards a session
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessionFor(w, r)
	if s == nil {
		return
	}

	h.discard(s.ID())
	response(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handlers) discard(id string) {
	s, err := h.store.DeleteSession(id)
	if err != nil {
		return
	}
	s.Close()
	h.hub.CloseSession(id)
}

// ReapIdle discards sessions nobody has touched for maxIdle. It returns the
// number of sessions removed.
func (h *Handlers) ReapIdle(maxIdle time.Duration) int {
	sessions, err := h.store.GetAllSessions()
	if err != nil {
		h.log.Error("error listing sessions", zap.Error(err))
		return 0
	}

	now := h.opts.Clock.Now()
	reaped := 0
	for _, s := range sessions {
		if now.Sub(s.LastActive()) < maxIdle {
			continue
		}
		h.discard(s.ID())
		reaped++
	}
	if reaped > 0 {
		h.log.Info("reaped idle sessions", zap.Int("count", reaped))
	}
	return reaped
}

// GetScores lists the caller's high scores and per-game history
func (h *Handlers) GetScores(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		unauthenticated(w)
		return
	}
	if h.database == nil {
		errorResponse(w, http.StatusNotFound, "Score history is not available")
		return
	}

	scores, err := h.database.HighScores(r.Context(), token)
	if err != nil {
		h.log.Error("error listing high scores", zap.Error(err))
		errorResponse(w, http.StatusInternalServerError, "Failed to load scores")
		return
	}

	stats := make([]*db.PlayerStats, 0, 2)
	for _, id := range []string{game.SnakeGame, game.MemoryGame} {
		st, err := h.database.GetPlayerStats(r.Context(), token, id)
		if err != nil {
			h.log.Error("error loading player stats", zap.String("game", id), zap.Error(err))
			errorResponse(w, http.StatusInternalServerError, "Failed to load scores")
			return
		}
		stats = append(stats, st)
	}

	response(w, http.StatusOK, map[string]interface{}{
		"scores": scores,
		"stats":  stats,
	})
}

// Health reports liveness and the number of open sessions
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	sessions, _ := h.store.GetAllSessions()
	response(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": len(sessions),
	})
}

// ServeWS attaches a snapshot feed to a session the caller owns. Browsers
// cannot set headers on a WebSocket handshake, so the token may also come
// from the "token" query parameter.
func (h *Handlers) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	token := bearerToken(r)
	if token == "" {
		token = q.Get("token")
	}
	if token == "" {
		unauthenticated(w)
		return
	}

	enc, ok := ParseEncoding(q.Get("encoding"))
	if !ok {
		errorResponse(w, http.StatusBadRequest, "Encoding must be json or msgpack")
		return
	}

	s, err := h.store.GetSession(q.Get("sessionId"))
	if err != nil {
		errorResponse(w, http.StatusNotFound, "Session not found")
		return
	}
	if !s.Owns(token) {
		errorResponse(w, http.StatusForbidden, "Session belongs to another player")
		return
	}

	h.hub.Attach(w, r, s.ID(), enc, s.Snapshot())
}
