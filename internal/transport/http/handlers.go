package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"wordclash/internal/app"
	"wordclash/internal/domain"
	"wordclash/internal/protocol"
)

// MatchHistory lists finished matches
type MatchHistory interface {
	RecentMatches(ctx context.Context, limit int) ([]domain.MatchResult, error)
}

const maxMatchesLimit = 100

// Response is a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveRooms  int `json:"activeRooms"`
	TotalPlayers int `json:"totalPlayers"`
}

// RoomListResponse is the lobby listing
type RoomListResponse struct {
	Rooms []domain.RoomSnapshot `json:"rooms"`
}

// MatchListResponse lists recently finished matches
type MatchListResponse struct {
	Matches []domain.MatchResult `json:"matches"`
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{Status: "ok"})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &StatsResponse{
		ActiveRooms:  s.registry.RoomCount(),
		TotalPlayers: s.registry.PlayerCount(),
	})
}

// handleListRooms handles GET /api/rooms
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &RoomListResponse{Rooms: s.registry.ListRooms()})
}

// handleGetRoom handles GET /api/rooms/{roomId}
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	session, err := s.registry.Get(roomID(r))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, session.Snapshot())
}

// handleResetRoom handles POST /api/rooms/{roomId}/reset
func (s *Server) handleResetRoom(w http.ResponseWriter, r *http.Request) {
	snap, err := s.registry.ResetRoom(roomID(r))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, snap)
}

// handleRecentMatches handles GET /api/matches?limit=N
func (s *Server) handleRecentMatches(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.sendSuccess(w, &MatchListResponse{Matches: []domain.MatchResult{}})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.sendError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(n, maxMatchesLimit)
	}

	matches, err := s.history.RecentMatches(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list matches", "error", err)
		s.sendError(w, http.StatusInternalServerError, protocol.RejectInternalError, "Internal server error")
		return
	}
	if matches == nil {
		matches = []domain.MatchResult{}
	}
	s.sendSuccess(w, &MatchListResponse{Matches: matches})
}

func roomID(r *http.Request) string {
	return strings.ToUpper(r.PathValue("roomId"))
}

// sendDomainError maps a domain error to a status and rejection code
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	code := app.RejectionCode(err)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		s.sendError(w, http.StatusNotFound, code, "Room not found")
	case code == protocol.RejectInternalError:
		s.logger.Error("request failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, code, "Internal server error")
	default:
		s.sendError(w, http.StatusConflict, code, err.Error())
	}
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
