package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pointdeck/estimation-server-go/internal/middleware"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/service"
)

type RoundHandler struct {
	roundService *service.RoundService
}

func NewRoundHandler(roundService *service.RoundService) *RoundHandler {
	return &RoundHandler{roundService: roundService}
}

type castVoteRequest struct {
	Estimate int `json:"estimate"`
}

type setEstimateRequest struct {
	Estimate int `json:"estimate"`
}

// POST /v1/sessions/{sessionID}/stories/{storyID}/start
func (h *RoundHandler) StartVoting(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	storyID := chi.URLParam(r, "storyID")

	session, err := h.roundService.StartVoting(r.Context(), participant, storyID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "voting_started",
		"storyId":         storyID,
		"votingStartedAt": session.VotingStartedAt,
		"timerSeconds":    session.VotingTimerSeconds,
	})
}

// POST /v1/sessions/{sessionID}/stories/{storyID}/revote
func (h *RoundHandler) Revote(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	storyID := chi.URLParam(r, "storyID")

	session, err := h.roundService.Revote(r.Context(), participant, storyID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "revote_started",
		"storyId":         storyID,
		"votingStartedAt": session.VotingStartedAt,
		"timerSeconds":    session.VotingTimerSeconds,
	})
}

// POST /v1/sessions/{sessionID}/tasks/{taskID}/vote
func (h *RoundHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var req castVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.roundService.CastVote(r.Context(), participant, taskID, model.Estimate(req.Estimate))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /v1/sessions/{sessionID}/end
func (h *RoundHandler) EndVoting(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())

	results, err := h.roundService.EndVoting(r.Context(), participant)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "voting_ended",
		"results": results,
	})
}

// POST /v1/sessions/{sessionID}/tasks/{taskID}/estimate
func (h *RoundHandler) SetFinalEstimate(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var req setEstimateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.roundService.SetFinalEstimate(r.Context(), participant, taskID, model.Estimate(req.Estimate))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
