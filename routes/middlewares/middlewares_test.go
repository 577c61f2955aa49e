package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/oauth"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeSessions map[string]database.StoredSession

func (f fakeSessions) Get(ctx context.Context, email string) (database.StoredSession, error) {
	if email == "broken@example.com" {
		return database.StoredSession{}, errors.New("database is locked")
	}
	ss, ok := f[email]
	if !ok {
		return database.StoredSession{}, database.ErrNoSession
	}
	return ss, nil
}

func TestSession(t *testing.T) {
	sessions := fakeSessions{"ann@example.com": {Email: "ann@example.com", Token: "tok"}}

	var got database.StoredSession
	h := session(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = SessionFrom(r.Context())
	}))

	serve := func(claims map[string]string) int {
		r := httptest.NewRequest(http.MethodGet, "/api/queue", nil)
		if claims != nil {
			r = r.WithContext(context.WithValue(r.Context(), oauth.ClaimsContext, claims))
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve(map[string]string{"sub": "ann@example.com"}))
	assert.Equal(t, "tok", got.Token)

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusUnauthorized, serve(map[string]string{"sub": "bob@example.com"}))
	assert.Equal(t, http.StatusInternalServerError, serve(map[string]string{"sub": "broken@example.com"}))
}

func TestSessionFromEmptyContext(t *testing.T) {
	_, ok := SessionFrom(context.Background())
	assert.False(t, ok)
}
