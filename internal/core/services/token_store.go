package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"interviewroom/internal/core/domain"
	"interviewroom/internal/core/ports"

	"go.uber.org/zap"
)

const (
	defaultCredentialKeyPrefix = "interviewroom:session:"
	tokenField                 = "token"
	expiryField                = "expires_at"
)

// SessionTokenStore keeps the single admission credential of the process in a key-value store as
// two fields: the token and its RFC 3339 expiry. It degrades to "no credential" on storage errors.
type SessionTokenStore struct {
	kv     ports.KeyValueStore
	clock  ports.Clock
	prefix string
	logger *zap.SugaredLogger

	mu       sync.Mutex
	issuedAt map[string]time.Time
}

func NewSessionTokenStore(kv ports.KeyValueStore, clock ports.Clock, logger *zap.SugaredLogger) *SessionTokenStore {
	return &SessionTokenStore{
		kv:       kv,
		clock:    clock,
		prefix:   defaultCredentialKeyPrefix,
		logger:   logger,
		issuedAt: make(map[string]time.Time),
	}
}

func (s *SessionTokenStore) tokenKey() string  { return s.prefix + tokenField }
func (s *SessionTokenStore) expiryKey() string { return s.prefix + expiryField }

// Save overwrites any stored credential. ttlMinutes <= 0 means the default 60 minutes.
func (s *SessionTokenStore) Save(ctx context.Context, token string, ttlMinutes int) {
	ttl := time.Duration(ttlMinutes) * time.Minute
	if ttlMinutes <= 0 {
		ttl = domain.DefaultCredentialTTL
	}

	now := s.clock.Now()
	expiresAt := now.Add(ttl)

	if err := s.kv.Set(ctx, s.tokenKey(), token, ttl); err != nil {
		s.logger.Warnw("Failed to persist session token", "error", err)
		return
	}
	if err := s.kv.Set(ctx, s.expiryKey(), expiresAt.UTC().Format(time.RFC3339Nano), ttl); err != nil {
		s.logger.Warnw("Failed to persist session token expiry", "error", err)
		s.purge(ctx)
		return
	}

	s.mu.Lock()
	s.issuedAt = map[string]time.Time{token: now}
	s.mu.Unlock()

	s.logger.Debugw("Session token saved", "expires_at", expiresAt)
}

func (s *SessionTokenStore) Get(ctx context.Context) (string, bool) {
	cred, ok := s.Credential(ctx)
	if !ok {
		return "", false
	}
	return cred.Token, true
}

// Credential returns the stored credential if it has not expired. An expired or unreadable
// credential is purged.
func (s *SessionTokenStore) Credential(ctx context.Context) (domain.SessionCredential, bool) {
	token, err := s.kv.Get(ctx, s.tokenKey())
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warnw("Failed to read session token", "error", err)
		}
		return domain.SessionCredential{}, false
	}

	rawExpiry, err := s.kv.Get(ctx, s.expiryKey())
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warnw("Failed to read session token expiry", "error", err)
			return domain.SessionCredential{}, false
		}
		s.purge(ctx)
		return domain.SessionCredential{}, false
	}

	expiresAt, err := time.Parse(time.RFC3339Nano, rawExpiry)
	if err != nil {
		s.logger.Warnw("Discarding session token with malformed expiry", "expiry", rawExpiry, "error", err)
		s.purge(ctx)
		return domain.SessionCredential{}, false
	}

	cred := domain.SessionCredential{Token: token, ExpiresAt: expiresAt}
	if cred.ExpiredAt(s.clock.Now()) {
		s.logger.Infow("Session token expired", "expired_at", expiresAt)
		s.purge(ctx)
		return domain.SessionCredential{}, false
	}

	s.mu.Lock()
	cred.IssuedAt = s.issuedAt[token]
	s.mu.Unlock()

	return cred, true
}

func (s *SessionTokenStore) Clear(ctx context.Context) {
	s.purge(ctx)
}

func (s *SessionTokenStore) HasValid(ctx context.Context) bool {
	_, ok := s.Get(ctx)
	return ok
}

func (s *SessionTokenStore) purge(ctx context.Context) {
	if err := s.kv.Delete(ctx, s.tokenKey(), s.expiryKey()); err != nil {
		s.logger.Warnw("Failed to clear session token", "error", err)
	}
	s.mu.Lock()
	s.issuedAt = make(map[string]time.Time)
	s.mu.Unlock()
}
