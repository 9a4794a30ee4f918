package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   apperrors.ErrorCode
	}{
		{"not found maps to 404", apperrors.NotFound("Session"), http.StatusNotFound, apperrors.ErrCodeNotFound},
		{"forbidden maps to 403", apperrors.Forbidden("admins only"), http.StatusForbidden, apperrors.ErrCodeForbidden},
		{"invalid state maps to 409", apperrors.InvalidState("no active round"), http.StatusConflict, apperrors.ErrCodeInvalidState},
		{"invalid input maps to 400", apperrors.InvalidInput("estimate", "not in deck"), http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"missing required maps to 400", apperrors.MissingRequired("name"), http.StatusBadRequest, apperrors.ErrCodeMissingRequired},
		{"plain error maps to 500 internal", errors.New("boom"), http.StatusInternalServerError, apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedCode, resp.Code)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"abc"}`, w.Body.String())
}
