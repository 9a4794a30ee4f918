package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pointdeck/estimation-server-go/internal/middleware"
	"github.com/pointdeck/estimation-server-go/internal/service"
)

type BacklogHandler struct {
	backlogService *service.BacklogService
}

func NewBacklogHandler(backlogService *service.BacklogService) *BacklogHandler {
	return &BacklogHandler{backlogService: backlogService}
}

type addStoryRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type addTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// POST /v1/sessions/{sessionID}/stories
func (h *BacklogHandler) AddUserStory(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())

	var req addStoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	story, err := h.backlogService.AddUserStory(r.Context(), participant, req.Title, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, story)
}

// POST /v1/sessions/{sessionID}/stories/{storyID}/tasks
func (h *BacklogHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	participant := middleware.GetParticipant(r.Context())
	storyID := chi.URLParam(r, "storyID")

	var req addTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	task, err := h.backlogService.AddTask(r.Context(), participant, storyID, req.Title, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}
