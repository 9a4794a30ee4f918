package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/pointdeck/estimation-server-go/internal/errors"
	"github.com/pointdeck/estimation-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.InvalidInput("request body", "malformed JSON")
	}
	return nil
}
