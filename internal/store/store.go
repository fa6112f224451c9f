package store

import (
	"fmt"
	"time"

	"github.com/go-sessiond/sessiond/internal/models"
	"github.com/go-sessiond/sessiond/internal/token"
	"github.com/go-sessiond/sessiond/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// secretLength is the length of the opaque session secret handed to clients
const secretLength = 40

type Store struct {
	db            *gorm.DB
	sessionMaxAge time.Duration
	now           func() time.Time
}

func New(driver, dsn string, sessionMaxAge time.Duration) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.AutoMigrate(&models.Session{}); err != nil {
		return nil, err
	}

	return &Store{
		db:            db,
		sessionMaxAge: sessionMaxAge,
		now:           time.Now,
	}, nil
}

// WithClock replaces the store's clock. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// CreateSession persists a new session for a freshly signed-in user and
// returns its id plus the one-time secret the client must present on every
// request. The secret is never stored in the clear.
func (s *Store) CreateSession(t *token.Token) (id, secret string, err error) {
	secret, err = util.CryptoRandomString(secretLength)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	salt, err := util.CryptoRandomString(16)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	session := &models.Session{
		ID:         uuid.New().String(),
		SecretSalt: salt,
		SecretHash: util.HashSecret(secret, salt),
	}
	session.SetToken(t)

	if err := s.db.Create(session).Error; err != nil {
		return "", "", err
	}
	return session.ID, secret, nil
}

// GetSession loads a session by id, verifying the presented secret and the
// maximum session age.
func (s *Store) GetSession(id, secret string) (*models.Session, error) {
	var session models.Session
	if err := s.db.First(&session, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if !util.VerifySecret(secret, session.SecretSalt, session.SecretHash) {
		return nil, ErrSecretMismatch
	}
	if session.IsStale(s.sessionMaxAge, s.now()) {
		return nil, ErrSessionStale
	}

	return &session, nil
}

// UpdateToken persists a mutated token snapshot for the session.
func (s *Store) UpdateToken(id string, t *token.Token) error {
	session := &models.Session{}
	session.SetToken(t)

	result := s.db.Model(&models.Session{}).Where("id = ?", id).Updates(map[string]any{
		"user_id":          session.UserID,
		"access_token":     session.AccessToken,
		"refresh_token":    session.RefreshToken,
		"id_token":         session.IDToken,
		"expires_at":       session.ExpiresAt,
		"token_error":      session.TokenError,
		"should_sign_out":  session.ShouldSignOut,
		"refresh_attempts": session.RefreshAttempts,
		"last_refresh_at":  session.LastRefreshAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(id string) error {
	return s.db.Delete(&models.Session{}, "id = ?", id).Error
}

// DeleteStale removes sessions older than the maximum session age. Returns
// the number of rows removed; used by the periodic cleanup job.
func (s *Store) DeleteStale() (int64, error) {
	cutoff := s.now().Add(-s.sessionMaxAge)
	result := s.db.Delete(&models.Session{}, "created_at < ?", cutoff)
	return result.RowsAffected, result.Error
}

// CountActive returns the number of stored sessions within the maximum age.
func (s *Store) CountActive() (int64, error) {
	cutoff := s.now().Add(-s.sessionMaxAge)
	var count int64
	err := s.db.Model(&models.Session{}).Where("created_at >= ?", cutoff).Count(&count).Error
	return count, err
}
