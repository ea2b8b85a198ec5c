package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/modremote/spawn-relay/relay/service"
	"github.com/modremote/spawn-relay/transport/websocket"
)

// Server is the HTTP control plane: session lifecycle, spawn relay,
// catalog reads, and the WebSocket upgrade gate.
type Server struct {
	service service.RelayService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. staticDir is served as a fallback
// for anything the API does not claim; pass "" to disable.
func NewServer(relayService service.RelayService, hub *websocket.Hub, staticDir string) *Server {
	s := &Server{
		service: relayService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes(staticDir)
	return s
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(staticDir string) {
	// Session management
	s.router.HandleFunc("/session/start", s.handleStartSession).Methods("POST")
	s.router.HandleFunc("/session/end", s.handleEndSession).Methods("POST")

	// Catalog
	s.router.HandleFunc("/api/items", s.handleGetItems).Methods("GET")
	s.router.HandleFunc("/info.json", s.handleGetItems).Methods("GET")

	// Ops visibility
	s.router.HandleFunc("/api/sessions", s.handleListSessions).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Spawn relay (token-addressed, must come after the fixed routes)
	s.router.HandleFunc("/{token}/spawn", s.handleSpawn).Methods("GET")

	// Static files (if needed)
	if staticDir != "" {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondOutcome writes the {"success":...,"message":...} shape the web
// remote expects on session-end and spawn calls.
func respondOutcome(w http.ResponseWriter, status int, success bool, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": success,
		"message": message,
	})
}

// Session Handlers

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.StartSession(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"UUID": info.Token})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID string `json:"UUID"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondOutcome(w, http.StatusBadRequest, false, "Invalid request body")
		return
	}

	if err := s.service.EndSession(r.Context(), req.UUID); err != nil {
		respondOutcome(w, http.StatusNotFound, false, "Session not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// Spawn Handler

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := vars["token"]

	query := r.URL.Query()
	itemID := query.Get("item")

	// Absent or unparseable quantity falls back to 1.
	quantity := 1
	if qty, err := strconv.Atoi(query.Get("quantity")); err == nil && qty > 0 {
		quantity = qty
	}

	result, err := s.service.SpawnItem(r.Context(), token, itemID, quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformedCommand):
			respondOutcome(w, http.StatusBadRequest, false, "Missing item id")
		case errors.Is(err, service.ErrSessionInvalid):
			respondOutcome(w, http.StatusForbidden, false, "Invalid or expired session")
		case errors.Is(err, service.ErrNoActiveConnection), errors.Is(err, service.ErrDeliveryFailed):
			// A failed delivery unregisters the dead connection, so the
			// client-visible state is the same: no connection.
			respondOutcome(w, http.StatusNotFound, false, "No active WebSocket connection for this session.")
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	respondOutcome(w, http.StatusOK, true,
		fmt.Sprintf("Item %s (x%d) spawned.", result.ItemID, result.Quantity))
}

// Catalog Handler

func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.Catalog(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read item list.")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("UUID")
	if token == "" {
		respondOutcome(w, http.StatusForbidden, false, "Missing session token")
		return
	}

	if !s.service.SessionValid(r.Context(), token) {
		respondOutcome(w, http.StatusForbidden, false, "Invalid or expired session")
		return
	}

	s.hub.ServeWS(w, r, token)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
