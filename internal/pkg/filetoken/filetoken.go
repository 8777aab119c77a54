// Package filetoken issues and verifies the short-lived capability tokens
// embedded in secure download and preview links.
package filetoken

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"smartfile-qa/internal/pkg/safename"
)

// PurposeFileDownload is minted for both preview and download links; the
// delivery mode is chosen per request.
const PurposeFileDownload = "file_download"

const DefaultTTL = 24 * time.Hour

// ErrInvalidToken covers every verification failure. Callers must treat it
// as access denied.
var ErrInvalidToken = errors.New("invalid or expired file token")

type Claims struct {
	SessionID string `json:"sid"`
	FileID    string `json:"fid"`
	Purpose   string `json:"purpose"`
	jwt.RegisteredClaims
}

type Service struct {
	key        []byte
	defaultTTL time.Duration
	now        func() time.Time
}

type Option func(*Service)

// WithClock replaces the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService derives the signing key from secret with HKDF-SHA256 so the
// configured secret is never used as a raw HMAC key.
func NewService(secret string, defaultTTL time.Duration, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("file token secret is empty")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("file-token")), key); err != nil {
		return nil, fmt.Errorf("derive file token key failed: %w", err)
	}

	s := &Service{
		key:        key,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for the (sessionID, fileID) pair. A non-positive ttl
// selects the service default.
func (s *Service) Issue(sessionID, fileID, purpose string, ttl time.Duration) (string, error) {
	if sessionID == "" || fileID == "" {
		return "", fmt.Errorf("issue file token: session and file id are required")
	}
	if purpose == "" {
		purpose = PurposeFileDownload
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := s.now()
	claims := Claims{
		SessionID: sessionID,
		FileID:    fileID,
		Purpose:   purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign file token failed: %w", err)
	}
	return token, nil
}

// Verify returns the claims of a valid token or ErrInvalidToken.
func (s *Service) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SessionID == "" || claims.FileID == "" || claims.Purpose != PurposeFileDownload {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// DownloadLink builds a forced-download link with a freshly minted token.
func (s *Service) DownloadLink(baseURL, sessionID, fileID, filename string) (string, error) {
	return s.link(baseURL, sessionID, fileID, filename, false)
}

// PreviewLink builds an inline-viewing link with a freshly minted token.
func (s *Service) PreviewLink(baseURL, sessionID, fileID, filename string) (string, error) {
	return s.link(baseURL, sessionID, fileID, filename, true)
}

func (s *Service) link(baseURL, sessionID, fileID, filename string, preview bool) (string, error) {
	token, err := s.Issue(sessionID, fileID, PurposeFileDownload, 0)
	if err != nil {
		return "", err
	}
	link := fmt.Sprintf("%s/secure-download/%s/%s/%s?token=%s",
		strings.TrimRight(baseURL, "/"),
		url.PathEscape(sessionID),
		url.PathEscape(fileID),
		url.PathEscape(safename.Sanitize(filename)),
		url.QueryEscape(token),
	)
	if preview {
		link += "&preview=true"
	}
	return link, nil
}
