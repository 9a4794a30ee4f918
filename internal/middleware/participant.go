package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/pointdeck/estimation-server-go/internal/config"
	"github.com/pointdeck/estimation-server-go/internal/httputil"
	"github.com/pointdeck/estimation-server-go/internal/model"
	"github.com/pointdeck/estimation-server-go/internal/service"
)

const ParticipantCookie = "participant_id"

type contextKey string

const ParticipantContextKey contextKey = "participant"

// GetParticipant returns the resolved participant for the request, or nil
// when the request carries no identity.
func GetParticipant(ctx context.Context) *model.Participant {
	if participant, ok := ctx.Value(ParticipantContextKey).(*model.Participant); ok {
		return participant
	}
	return nil
}

// ParticipantMiddleware resolves the identity cookie set on create/join to
// a participant of the session named in the URL. The services behind it
// always receive an already resolved participant.
type ParticipantMiddleware struct {
	sessionService *service.SessionService
}

func NewParticipantMiddleware(sessionService *service.SessionService) *ParticipantMiddleware {
	return &ParticipantMiddleware{sessionService: sessionService}
}

func (m *ParticipantMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		cookie, err := r.Cookie(ParticipantCookie)
		if err != nil || cookie.Value == "" {
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Not joined",
			})
			return
		}

		participant, err := m.sessionService.ResolveParticipant(r.Context(), sessionID, cookie.Value)
		if err != nil || participant == nil {
			if err != nil {
				log.Debug().Err(err).Str("sessionId", sessionID).Msg("participant resolution failed")
			}
			httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Not joined",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ParticipantContextKey, participant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetParticipantCookie scopes the identity cookie to the session's path so
// one browser can hold identities in several sessions at once.
func SetParticipantCookie(w http.ResponseWriter, sessionID, participantID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ParticipantCookie,
		Value:    participantID,
		Path:     "/v1/sessions/" + sessionID,
		MaxAge:   int(config.ParticipantCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
