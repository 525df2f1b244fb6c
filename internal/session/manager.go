package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/chart-proxy/pkg/models"
	"github.com/sirupsen/logrus"
)

// Authenticator performs the upstream credential exchange
type Authenticator interface {
	CreateSession(ctx context.Context) (*models.Session, error)
}

// Manager hands out a valid upstream session, creating one when the cached
// session is missing or expired.
//
// Concurrent callers that find no valid session each authenticate; the last
// one to finish wins the cache slot. Every caller still receives a session
// it can use.
type Manager struct {
	auth   Authenticator
	ttl    time.Duration
	logger *logrus.Entry

	current atomic.Pointer[models.Session]
	now     func() time.Time
}

// NewManager creates a new session manager
func NewManager(auth Authenticator, ttl time.Duration, logger *logrus.Logger) *Manager {
	return &Manager{
		auth:   auth,
		ttl:    ttl,
		logger: logger.WithField("component", "session-manager"),
		now:    time.Now,
	}
}

// GetValidSession returns the cached session while it is unexpired, otherwise
// authenticates and caches the result. On failure the cache is left as is.
func (m *Manager) GetValidSession(ctx context.Context) (*models.Session, error) {
	if s := m.current.Load(); s.ValidAt(m.now()) {
		return s, nil
	}

	created, err := m.auth.CreateSession(ctx)
	if err != nil {
		m.logger.WithError(err).Error("Failed to create upstream session")
		return nil, err
	}

	now := m.now()
	s := &models.Session{
		CST:           created.CST,
		SecurityToken: created.SecurityToken,
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.ttl),
	}
	m.current.Store(s)

	m.logger.WithField("expires_at", s.ExpiresAt).Info("Upstream session created")
	return s, nil
}

// Invalidate drops s from the cache if it is still the cached session
func (m *Manager) Invalidate(s *models.Session) {
	if s == nil {
		return
	}
	if m.current.CompareAndSwap(s, nil) {
		m.logger.Warn("Upstream session invalidated")
	}
}
