package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/pair-relay/relay/dispatch"
	"github.com/wricardo/pair-relay/relay/room"
)

// WebSocketHandler upgrades relay connections and reports how many are live.
type WebSocketHandler interface {
	http.Handler
	Count() int
}

// RoomList is the response of GET /api/rooms.
type RoomList struct {
	Count int         `json:"count"`
	Total int         `json:"total"`
	Order string      `json:"order"`
	Rooms []room.Info `json:"rooms"`
}

// Stats is the response of GET /api/stats.
type Stats struct {
	dispatch.Stats
	ActiveRooms  int    `json:"active_rooms"`
	RoomsCreated uint64 `json:"rooms_created"`
	Connections  int    `json:"connections"`
}

// Server represents the HTTP API server
type Server struct {
	dispatcher *dispatch.Dispatcher
	ws         WebSocketHandler
	router     *mux.Router
	log        zerolog.Logger
}

// NewServer creates a new API server
func NewServer(d *dispatch.Dispatcher, ws WebSocketHandler, log zerolog.Logger) *Server {
	s := &Server{
		dispatcher: d,
		ws:         ws,
		router:     mux.NewRouter(),
		log:        log.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Routes live on the root router so a method mismatch answers 405.
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rooms", s.handleListRooms).Methods(http.MethodGet)
	s.router.HandleFunc("/api/rooms/{id}", s.handleGetRoom).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	// WebSocket
	s.router.Handle("/ws", s.ws)
}

// Router exposes the underlying router so callers can mount extra routes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.dispatcher.Rooms().List()

	query := r.URL.Query()
	order := query.Get("order")
	limitStr := query.Get("limit")

	switch order {
	case "":
		order = "desc"
	case "asc", "desc":
	default:
		s.respondError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	sort.Slice(rooms, func(i, j int) bool {
		ti, tj := rooms[i].CreatedAt, rooms[j].CreatedAt
		if ti.Equal(tj) {
			return rooms[i].ID < rooms[j].ID
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(rooms)
	if limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if limit < len(rooms) {
			rooms = rooms[:limit]
		}
	}

	s.respondJSON(w, http.StatusOK, RoomList{
		Count: len(rooms),
		Total: total,
		Order: order,
		Rooms: rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	info, err := s.dispatcher.Rooms().Get(id)
	if errors.Is(err, room.ErrRoomNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rooms := s.dispatcher.Rooms()
	s.respondJSON(w, http.StatusOK, Stats{
		Stats:        s.dispatcher.Stats(),
		ActiveRooms:  rooms.Count(),
		RoomsCreated: rooms.Created(),
		Connections:  s.ws.Count(),
	})
}
