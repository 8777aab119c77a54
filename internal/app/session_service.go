package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"smartfile-qa/internal/model"
	"smartfile-qa/internal/pkg/logging"
	"smartfile-qa/internal/repository"
)

const sessionKeyBytes = 16

var sessionKeyPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

type UploadClearer interface {
	Clear(sessionID string)
}

type SessionService struct {
	sessionRepo *repository.SessionRepository
	userRepo    *repository.UserRepository
	uploads     UploadClearer
}

func NewSessionService(sessionRepo *repository.SessionRepository, userRepo *repository.UserRepository, uploads UploadClearer) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		uploads:     uploads,
	}
}

// NewSessionKey returns 16 random bytes, hex encoded.
func NewSessionKey() (string, error) {
	buf := make([]byte, sessionKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session key failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidSessionKey reports whether key has the shape NewSessionKey produces.
func ValidSessionKey(key string) bool {
	return sessionKeyPattern.MatchString(key)
}

// Ensure returns the session for key. A missing or malformed key starts a
// new session; a well-formed key with no row is recreated under the same key
// so links already handed out keep pointing at the same directory.
func (s *SessionService) Ensure(ctx context.Context, key string) (*model.Session, bool, error) {
	if ValidSessionKey(key) {
		session, err := s.sessionRepo.GetByKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if session != nil {
			return session, false, nil
		}
		session, err = s.sessionRepo.CreateOrGet(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return session, true, nil
	}

	session, err := s.create(ctx)
	if err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Reset abandons the session behind oldKey and starts a new one. Files of the
// old session stay on disk until the retention sweep removes them.
func (s *SessionService) Reset(ctx context.Context, oldKey string) (*model.Session, error) {
	if oldKey != "" && s.uploads != nil {
		s.uploads.Clear(oldKey)
	}
	session, err := s.create(ctx)
	if err != nil {
		return nil, err
	}
	logging.Info("session reset", "old", oldKey, "new", session.SessionKey)
	return session, nil
}

// AttachEmail links the session to the user owning email, creating the user
// when needed.
func (s *SessionService) AttachEmail(ctx context.Context, session *model.Session, email string) (*model.Session, error) {
	if session == nil {
		return nil, ErrSessionNotFound
	}
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.CreateOrGetByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.AttachUser(ctx, session.ID, user.ID); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.GetByKey(ctx, session.SessionKey)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrSessionNotFound
	}
	return updated, nil
}

func (s *SessionService) create(ctx context.Context) (*model.Session, error) {
	key, err := NewSessionKey()
	if err != nil {
		return nil, err
	}
	return s.sessionRepo.CreateOrGet(ctx, key)
}

// NormalizeEmail trims and lowercases an address and rejects anything that
// is not a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
