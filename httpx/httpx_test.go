package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/mbolis/fieldsurvey/client"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeBackend struct {
	session model.Session
	err     error
	calls   int
}

func (f *fakeBackend) Login(ctx context.Context, email, password string) (model.Session, error) {
	f.calls++
	return f.session, f.err
}

func setup(t *testing.T) (*database.Sessions, *fakeBackend, *credentialsVerifier) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions := database.NewSessions(db)
	backend := &fakeBackend{}
	return sessions, backend, CredentialsVerifier(sessions, backend).(*credentialsVerifier)
}

func loginRequest() *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/login", nil)
}

func TestValidateUserOnline(t *testing.T) {
	sessions, backend, cv := setup(t)
	backend.session = model.Session{Success: true, Token: "tok", HighResolutionUploads: true}

	require.NoError(t, cv.ValidateUser("ann@example.com", "s3cret", "", loginRequest()))

	stored, err := sessions.Get(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "tok", stored.Token)
	assert.True(t, stored.HighResolutionUploads)
	assert.NoError(t, bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte("s3cret")))
}

func TestValidateUserRejected(t *testing.T) {
	sessions, backend, cv := setup(t)
	backend.session = model.Session{Success: true, Token: "tok"}
	require.NoError(t, cv.ValidateUser("ann@example.com", "s3cret", "", loginRequest()))

	// a rejection is final even when an older password is stored
	backend.err = errors.Wrap(client.ErrRejected, "login")
	err := cv.ValidateUser("ann@example.com", "s3cret", "", loginRequest())
	assert.ErrorIs(t, err, client.ErrRejected)

	_, err = sessions.Get(context.Background(), "ann@example.com")
	assert.NoError(t, err)
}

func TestValidateUserOffline(t *testing.T) {
	_, backend, cv := setup(t)

	backend.err = errors.New("dial tcp: no route to host")
	assert.Error(t, cv.ValidateUser("ann@example.com", "s3cret", "", loginRequest()), "never logged in")

	backend.err = nil
	backend.session = model.Session{Success: true, Token: "tok"}
	require.NoError(t, cv.ValidateUser("ann@example.com", "s3cret", "", loginRequest()))

	backend.err = errors.New("dial tcp: no route to host")
	assert.NoError(t, cv.ValidateUser("ann@example.com", "s3cret", "", loginRequest()))
	assert.Error(t, cv.ValidateUser("ann@example.com", "wrong", "", loginRequest()))
	assert.Equal(t, 4, backend.calls)
}

func TestTokenIDs(t *testing.T) {
	_, _, cv := setup(t)

	require.NoError(t, cv.StoreTokenID("", "ann@example.com", "t1", "r1"))
	assert.NoError(t, cv.ValidateTokenID("", "ann@example.com", "t1", "r1"))
	assert.Error(t, cv.ValidateTokenID("", "ann@example.com", "t1", "r1"))

	claims, err := cv.AddClaims("", "ann@example.com", "t1", "", loginRequest())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sub": "ann@example.com"}, claims)
}

func TestResponseBuffer(t *testing.T) {
	buf := NewResponseBuffer()
	assert.Equal(t, http.StatusOK, buf.Status())
	assert.Empty(t, buf.Body())

	buf.Header().Set("Content-Type", "application/json")
	buf.WriteHeader(http.StatusUnauthorized)
	buf.WriteHeader(http.StatusOK)
	_, err := buf.Write([]byte(`{"error":"nope"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, buf.Status())

	w := httptest.NewRecorder()
	require.NoError(t, buf.Flush(w))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"error":"nope"}`, w.Body.String())
}

func TestLogHelpers(t *testing.T) {
	w := httptest.NewRecorder()
	LogBadGateway(w, "surveys.remote", errors.New("secret backend detail"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	w = httptest.NewRecorder()
	LogNotFound(w, "run.get", "abc")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
