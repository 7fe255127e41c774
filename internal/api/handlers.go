package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"github.com/joshuakim/propedge/internal/analysis"
	"github.com/joshuakim/propedge/internal/cache"
	"github.com/joshuakim/propedge/internal/directory"
	"github.com/joshuakim/propedge/internal/models"
	"github.com/joshuakim/propedge/internal/notifications"
	"github.com/joshuakim/propedge/internal/websocket"
)

// Handler holds HTTP handlers
type Handler struct {
	cache     *cache.Service
	directory *directory.Index
	engine    *analysis.Engine
	hub       *websocket.Hub
	notifier  *notifications.Service
	subs      *notifications.SubscriptionStore
	logger    *logrus.Logger
}

// NewHandler creates a new handler
func NewHandler(c *cache.Service, idx *directory.Index, engine *analysis.Engine, hub *websocket.Hub, notifier *notifications.Service, subs *notifications.SubscriptionStore, logger *logrus.Logger) *Handler {
	return &Handler{
		cache:     c,
		directory: idx,
		engine:    engine,
		hub:       hub,
		notifier:  notifier,
		subs:      subs,
		logger:    logger,
	}
}

// RegisterRoutes sets up the HTTP routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/injuries", h.handleInjuries)
	mux.HandleFunc("/api/games/today", h.handleGamesToday)
	mux.HandleFunc("/api/games/live", h.handleGamesLive)
	mux.HandleFunc("/api/player/", h.handlePlayer)
	mux.HandleFunc("/api/team/", h.handleTeam)
	mux.HandleFunc("/api/analyze", h.handleAnalyze)
	mux.HandleFunc("/api/notifications/vapid-key", h.handleVAPIDKey)
	mux.HandleFunc("/api/notifications/subscribe", h.handleSubscribe)
	mux.HandleFunc("/ws", h.handleWebSocket)
}

// handleHealth returns service health status
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"players_indexed":  h.directory.PlayerCount(),
		"teams_indexed":    h.directory.TeamCount(),
		"ws_clients":       h.hub.ClientCount(),
		"push_subscribers": h.subs.Count(),
	})
}

// handleInjuries returns the cached league injury report
// GET /api/injuries
func (h *Handler) handleInjuries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, meta := h.cache.InjurySnapshot()
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"updated":         formatUpdated(meta.UpdatedAt),
		"source":          meta.Source,
		"teams":           snap.ByTeam,
		"injured_players": snap.InjuredNames,
		"total":           len(snap.InjuredNames),
	})
}

// handleGamesToday returns the cached scoreboard
// GET /api/games/today
func (h *Handler) handleGamesToday(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap, meta := h.cache.GamesSnapshot()
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"date":    formatDate(meta.UpdatedAt),
		"updated": formatUpdated(meta.UpdatedAt),
		"source":  meta.Source,
		"games":   snap.Games,
		"count":   len(snap.Games),
	})
}

// handleGamesLive returns only in-progress games
// GET /api/games/live
func (h *Handler) handleGamesLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	live, meta := h.cache.LiveGames()
	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"updated": formatUpdated(meta.UpdatedAt),
		"games":   live,
		"count":   len(live),
	})
}

// handlePlayer returns season averages for a player
// GET /api/player/{name}
func (h *Handler) handlePlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	fragment := strings.TrimPrefix(r.URL.Path, "/api/player/")
	fragment = strings.TrimSuffix(fragment, "/")
	if fragment == "" {
		h.errorResponse(w, http.StatusBadRequest, "player name required")
		return
	}

	player, ok := h.directory.FindPlayer(fragment)
	if !ok {
		h.errorResponse(w, http.StatusNotFound, "player not found")
		return
	}

	games, err := h.cache.PlayerLog(r.Context(), player.ID)
	if err != nil {
		h.errorResponse(w, http.StatusBadGateway, "failed to fetch game log: "+err.Error())
		return
	}

	h.jsonResponse(w, http.StatusOK, analysis.BuildPlayerSummary(player.FullName, games))
}

// handleTeam returns record, splits and streak for a team
// GET /api/team/{abbreviation}
func (h *Handler) handleTeam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	abbr := strings.TrimPrefix(r.URL.Path, "/api/team/")
	abbr = strings.TrimSuffix(abbr, "/")
	if abbr == "" {
		h.errorResponse(w, http.StatusBadRequest, "team abbreviation required")
		return
	}

	team, ok := h.directory.FindTeam(abbr)
	if !ok {
		h.errorResponse(w, http.StatusNotFound, "team not found")
		return
	}

	games, err := h.cache.TeamLog(r.Context(), team.ID)
	if err != nil {
		h.errorResponse(w, http.StatusBadGateway, "failed to fetch game log: "+err.Error())
		return
	}

	h.jsonResponse(w, http.StatusOK, analysis.BuildTeamSummary(team.Abbreviation, games))
}

// analyzeRequest is the POST /api/analyze body
type analyzeRequest struct {
	Props []models.PropRequest `json:"props"`
}

// handleAnalyze scores a batch of prop lines
// POST /api/analyze
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Props) == 0 {
		h.errorResponse(w, http.StatusBadRequest, "props list required")
		return
	}

	injuries, _ := h.cache.InjurySnapshot()
	resp := h.engine.Analyze(r.Context(), req.Props, injuries)

	if h.notifier != nil && len(resp.Locks) > 0 {
		h.notifier.QueueLocks(resp.Locks)
	}

	h.jsonResponse(w, http.StatusOK, resp)
}

// handleVAPIDKey returns the public key browsers need to subscribe
// GET /api/notifications/vapid-key
func (h *Handler) handleVAPIDKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := h.notifier.GetVAPIDPublicKey()
	if key == "" {
		h.errorResponse(w, http.StatusNotFound, "push notifications not configured")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"public_key": key})
}

// handleSubscribe registers or removes a browser push subscription
// POST /api/notifications/subscribe, DELETE /api/notifications/subscribe
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var sub webpush.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
			h.errorResponse(w, http.StatusBadRequest, "invalid subscription")
			return
		}
		h.subs.Add(sub)
		h.jsonResponse(w, http.StatusOK, map[string]string{"message": "subscribed"})

	case http.MethodDelete:
		var body struct {
			Endpoint string `json:"endpoint"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Endpoint == "" {
			h.errorResponse(w, http.StatusBadRequest, "endpoint required")
			return
		}
		h.subs.Remove(body.Endpoint)
		h.jsonResponse(w, http.StatusOK, map[string]string{"message": "unsubscribed"})

	default:
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleWebSocket upgrades the connection and hands it to the hub
// GET /ws
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return time.Now().UTC().Format("2006-01-02")
	}
	return t.UTC().Format("2006-01-02")
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

// CORSMiddleware wraps a handler to add CORS headers for development
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
