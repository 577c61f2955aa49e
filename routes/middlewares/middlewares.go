package middlewares

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/mbolis/fieldsurvey/httpx"
	"github.com/mbolis/fieldsurvey/log"
)

type sessionKey struct{}

type SessionGetter interface {
	Get(ctx context.Context, email string) (database.StoredSession, error)
}

// Session middleware to check the OAuth token and load the backend session
// of the user it was issued to.
func Session(secret string, sessions SessionGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return chi.Chain(oauth.Authorize(secret, nil), session(sessions)).Handler(next)
	}
}

func session(sessions SessionGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := r.Context().Value(oauth.ClaimsContext).(map[string]string)
			email := claims["sub"]
			if email == "" {
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "session.claims")
				return
			}

			ss, err := sessions.Get(r.Context(), email)
			if errors.Is(err, database.ErrNoSession) {
				httpx.LogStatus(w, http.StatusUnauthorized, log.DebugLevel, "session.lookup")
				return
			}
			if err != nil {
				httpx.LogInternalError(w, "db.session.get", err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), ss)))
		})
	}
}

func WithSession(ctx context.Context, ss database.StoredSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, ss)
}

// SessionFrom returns the session loaded by Session.
func SessionFrom(ctx context.Context) (database.StoredSession, bool) {
	ss, ok := ctx.Value(sessionKey{}).(database.StoredSession)
	return ss, ok
}
