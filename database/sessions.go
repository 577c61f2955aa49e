package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/mbolis/fieldsurvey/model"
	"github.com/pkg/errors"
)

// ErrNoSession is returned when nobody with that email ever logged in.
var ErrNoSession = errors.New("no stored session")

// StoredSession is the backend session remembered for one user.
type StoredSession struct {
	Email                 string
	PasswordHash          []byte
	Token                 string
	HighResolutionUploads bool
	GPSFeature            bool
	UpdatedAt             time.Time
}

type Sessions struct {
	db *sql.DB
}

func NewSessions(db *sql.DB) *Sessions {
	return &Sessions{db}
}

// Save remembers the outcome of a successful login.
func (s *Sessions) Save(ctx context.Context, email string, passwordHash []byte, session model.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (email, password_hash, token, high_res, gps_feature, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			password_hash = excluded.password_hash,
			token = excluded.token,
			high_res = excluded.high_res,
			gps_feature = excluded.gps_feature,
			updated_at = excluded.updated_at`,
		email,
		passwordHash,
		session.Token,
		bool(session.HighResolutionUploads),
		bool(session.GPSFeature),
		time.Now().UTC(),
	)
	return errors.Wrap(err, "db.session.save")
}

func (s *Sessions) Get(ctx context.Context, email string) (StoredSession, error) {
	return s.scan(s.db.QueryRowContext(ctx, `
		SELECT email, password_hash, token, high_res, gps_feature, updated_at
		FROM session
		WHERE email = ?`,
		email,
	))
}

// Latest returns the session of whoever logged in last.
func (s *Sessions) Latest(ctx context.Context) (StoredSession, error) {
	return s.scan(s.db.QueryRowContext(ctx, `
		SELECT email, password_hash, token, high_res, gps_feature, updated_at
		FROM session
		ORDER BY updated_at DESC
		LIMIT 1`,
	))
}

func (s *Sessions) scan(row *sql.Row) (StoredSession, error) {
	var ss StoredSession
	err := row.Scan(&ss.Email, &ss.PasswordHash, &ss.Token, &ss.HighResolutionUploads, &ss.GPSFeature, &ss.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSession{}, ErrNoSession
	}
	if err != nil {
		return StoredSession{}, errors.Wrap(err, "db.session.scan")
	}
	return ss, nil
}

// StoreTokenID records an issued agent token pair so it can be refreshed once.
func (s *Sessions) StoreTokenID(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO token (username, token_id, refresh_token_id, expiration) VALUES (?, ?, ?, ?)",
		username,
		tokenID,
		refreshTokenID,
		expiration,
	)
	return errors.Wrap(err, "db.token.store")
}

// ConsumeTokenID deletes a token pair and reports whether it existed and had
// not expired.
func (s *Sessions) ConsumeTokenID(ctx context.Context, username, tokenID, refreshTokenID string) (bool, error) {
	var expiration time.Time
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM token
		WHERE username = ?
			AND token_id = ?
			AND refresh_token_id = ?
		RETURNING expiration`,
		username,
		tokenID,
		refreshTokenID,
	).Scan(&expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "db.token.consume")
	}
	return expiration.After(time.Now()), nil
}
