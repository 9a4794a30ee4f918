package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/estimation-server-go/internal/middleware"
	"github.com/pointdeck/estimation-server-go/internal/service"
)

type SessionHandler struct {
	sessionService  *service.SessionService
	snapshotService *service.SnapshotService
}

func NewSessionHandler(sessionService *service.SessionService, snapshotService *service.SnapshotService) *SessionHandler {
	return &SessionHandler{
		sessionService:  sessionService,
		snapshotService: snapshotService,
	}
}

type createSessionRequest struct {
	Name      string `json:"name"`
	AdminName string `json:"adminName"`
}

type joinSessionRequest struct {
	Name string `json:"name"`
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.sessionService.CreateSession(r.Context(), req.Name, req.AdminName)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetParticipantCookie(w, result.Session.ID, result.Admin.ID)
	writeJSON(w, http.StatusCreated, result)
}

// POST /v1/sessions/{sessionID}/join
func (h *SessionHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req joinSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	participant, err := h.sessionService.JoinSession(r.Context(), sessionID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.SetParticipantCookie(w, sessionID, participant.ID)
	writeJSON(w, http.StatusOK, participant)
}

// POST /v1/sessions/{sessionID}/leave
func (h *SessionHandler) LeaveSession(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())

	if err := h.sessionService.LeaveSession(r.Context(), participant); err != nil {
		log.Error().Err(err).Str("participantId", participant.ID).Msg("failed to leave session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

// GET /v1/sessions/{sessionID}/state
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	participant := middleware.GetParticipant(r.Context())

	callerID := ""
	if participant != nil {
		callerID = participant.ID
	}

	state, err := h.snapshotService.GetState(r.Context(), sessionID, callerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}
