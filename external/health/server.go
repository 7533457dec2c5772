package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/podiumlab/racebot/internal/race"
	"github.com/podiumlab/racebot/internal/supervisor"
)

// Controller is the slice of the supervisor layer the admin surface needs.
type Controller interface {
	Statuses() map[string]supervisor.Status
	OpenRoom(ctx context.Context, category string, cfg race.RoomConfig) (string, error)
	Rejoin(ctx context.Context, category, slug string) error
}

// Server exposes connection health and the manual open/rejoin triggers over
// HTTP for the admin and observability layer.
type Server struct {
	controller Controller
	httpServer *http.Server
}

func NewServer(addr string, controller Controller) *Server {
	s := &Server{controller: controller}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleStatuses)
	mux.HandleFunc("POST /rooms", s.handleOpenRoom)
	mux.HandleFunc("POST /rooms/rejoin", s.handleRejoin)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server failed", "addr", s.httpServer.Addr, "error", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleStatuses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Statuses())
}

type openRoomRequest struct {
	Category         string         `json:"category"`
	Goal             string         `json:"goal"`
	Info             string         `json:"info"`
	Invitational     bool           `json:"invitational"`
	TimeLimitSeconds int64          `json:"time_limit_seconds"`
	ChatFlags        race.ChatFlags `json:"chat_flags"`
	AutoStart        bool           `json:"auto_start"`
}

func (s *Server) handleOpenRoom(w http.ResponseWriter, r *http.Request) {
	var req openRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	cfg := race.RoomConfig{
		Goal:         req.Goal,
		Info:         req.Info,
		Invitational: req.Invitational,
		TimeLimit:    time.Duration(req.TimeLimitSeconds) * time.Second,
		ChatFlags:    req.ChatFlags,
		AutoStart:    req.AutoStart,
	}
	slug, err := s.controller.OpenRoom(r.Context(), req.Category, cfg)
	if err != nil {
		slog.Error("manual room open failed", "category", req.Category, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"slug": slug})
}

type rejoinRequest struct {
	Category string `json:"category"`
	Slug     string `json:"slug"`
}

func (s *Server) handleRejoin(w http.ResponseWriter, r *http.Request) {
	var req rejoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Category == "" || req.Slug == "" {
		writeError(w, http.StatusBadRequest, "category and slug are required")
		return
	}
	if err := s.controller.Rejoin(r.Context(), req.Category, req.Slug); err != nil {
		slog.Error("manual rejoin failed", "category", req.Category, "room_slug", req.Slug, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
