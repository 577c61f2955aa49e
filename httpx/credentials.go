package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/oauth"
	"github.com/mbolis/fieldsurvey/client"
	"github.com/mbolis/fieldsurvey/config"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/mbolis/fieldsurvey/log"
	"github.com/mbolis/fieldsurvey/model"
	"golang.org/x/crypto/bcrypt"
)

// refresh tokens outlive access tokens by far
const refreshTTL = 8760 * time.Hour

// Backend logs users in against the remote survey backend.
type Backend interface {
	Login(ctx context.Context, email, password string) (model.Session, error)
}

type SessionStore interface {
	Save(ctx context.Context, email string, passwordHash []byte, session model.Session) error
	Get(ctx context.Context, email string) (database.StoredSession, error)
	StoreTokenID(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error
	ConsumeTokenID(ctx context.Context, username, tokenID, refreshTokenID string) (bool, error)
}

type credentialsVerifier struct {
	sessions SessionStore
	backend  Backend
}

func CredentialsVerifier(sessions SessionStore, backend Backend) oauth.CredentialsVerifier {
	return &credentialsVerifier{sessions, backend}
}

func NewBearerServer(sessions SessionStore, backend Backend, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(sessions, backend), nil)
}

// ValidateUser logs in against the backend and remembers the session. When
// the backend cannot be reached, the last password that worked is accepted.
func (cv *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	ctx := r.Context()

	session, err := cv.backend.Login(ctx, username, password)
	if err == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		return cv.sessions.Save(ctx, username, hash, session)
	}
	if errors.Is(err, client.ErrRejected) {
		log.Debugf("login.remote: %s rejected", username)
		return err
	}

	log.Warnf("login.remote: %v; trying stored credentials", err)
	stored, serr := cv.sessions.Get(ctx, username)
	if serr != nil {
		return err
	}
	return bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte(password))
}
func (cv *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cv.sessions.StoreTokenID(context.Background(), credential, tokenID, refreshTokenID, time.Now().Add(refreshTTL))
}
func (cv *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	ok, err := cv.sessions.ConsumeTokenID(context.Background(), credential, tokenID, refreshTokenID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("could not refresh")
	}
	return nil
}
func (*credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{"sub": credential}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
