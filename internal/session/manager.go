package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/models"
)

const (
	keyPrefix = "session:"
	issuer    = "folio-portal"

	// DefaultTTL bounds sessions whose token carries no expiry.
	DefaultTTL = 24 * time.Hour
)

// Manager creates, persists and drops sessions. It is safe for
// concurrent use.
type Manager struct {
	auth   interfaces.AuthAPI
	kv     interfaces.KeyValueStorage
	secret []byte
	logger *common.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a Manager. secret signs the session cookie.
func NewManager(auth interfaces.AuthAPI, kv interfaces.KeyValueStorage, secret []byte, logger *common.Logger) *Manager {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Manager{
		auth:     auth,
		kv:       kv,
		secret:   secret,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Login authenticates against folio-server and opens a session.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (Session, error) {
	token, user, err := m.auth.Login(ctx, creds)
	if err != nil {
		return Session{}, fmt.Errorf("login failed: %w", err)
	}
	return m.open(ctx, token, user)
}

// Register creates an account and opens a session for it.
func (m *Manager) Register(ctx context.Context, creds models.Credentials) (Session, error) {
	token, user, err := m.auth.Register(ctx, creds)
	if err != nil {
		return Session{}, fmt.Errorf("registration failed: %w", err)
	}
	return m.open(ctx, token, user)
}

func (m *Manager) open(ctx context.Context, token string, user *models.User) (Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.New().String(),
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(DefaultTTL),
	}
	if user != nil {
		s.User = *user
	}
	if exp, ok := TokenExpiry(token); ok {
		s.ExpiresAt = exp
	}

	if err := m.save(ctx, s); err != nil {
		return Session{}, err
	}
	m.logger.Info().Str("session", s.ID).Str("user", s.User.Username).Msg("session opened")
	return *s, nil
}

// Logout revokes the token upstream (best effort) and forgets the session.
func (m *Manager) Logout(ctx context.Context, id string) error {
	s, err := m.Restore(ctx, id)
	if err != nil {
		return err
	}
	if err := m.auth.Logout(client.WithToken(ctx, s.Token)); err != nil {
		m.logger.Warn().Str("session", id).Err(err).Msg("upstream logout failed")
	}
	return m.Drop(ctx, id)
}

// Drop forgets a session locally.
func (m *Manager) Drop(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	if err := m.kv.Delete(ctx, keyPrefix+id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Prune drops persisted sessions that have expired or cannot be read and
// returns how many were removed.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	keys, err := m.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	now := m.now()
	pruned := 0
	for _, key := range keys {
		raw, err := m.kv.Get(ctx, key)
		if errors.Is(err, interfaces.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return pruned, fmt.Errorf("failed to load session: %w", err)
		}
		var s Session
		if msgpack.Unmarshal([]byte(raw), &s) == nil && !s.Expired(now) {
			continue
		}
		if err := m.Drop(ctx, strings.TrimPrefix(key, keyPrefix)); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// Restore returns the live session for id, loading it from the store when
// it is not in memory. An expired session is dropped.
func (m *Manager) Restore(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return Session{}, ErrNoSession
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		raw, err := m.kv.Get(ctx, keyPrefix+id)
		if err != nil {
			if errors.Is(err, interfaces.ErrKeyNotFound) {
				return Session{}, ErrNoSession
			}
			return Session{}, fmt.Errorf("failed to load session: %w", err)
		}
		s = &Session{}
		if err := msgpack.Unmarshal([]byte(raw), s); err != nil {
			m.logger.Warn().Str("session", id).Err(err).Msg("discarding unreadable session")
			m.discard(ctx, id)
			return Session{}, ErrNoSession
		}
		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()
	}

	m.mu.RLock()
	out := *s
	m.mu.RUnlock()

	if out.Expired(m.now()) {
		m.logger.Info().Str("session", id).Msg("session token expired")
		m.discard(ctx, id)
		return Session{}, ErrNoSession
	}
	return out, nil
}

// Select marks portfolioID as the working portfolio.
func (m *Manager) Select(ctx context.Context, id string, portfolioID models.ID) (Session, error) {
	return m.update(ctx, id, func(s *Session) { s.SelectedPortfolioID = portfolioID })
}

// ClearSelection returns the session to the "no portfolio selected" state.
func (m *Manager) ClearSelection(ctx context.Context, id string) (Session, error) {
	return m.update(ctx, id, func(s *Session) { s.SelectedPortfolioID = "" })
}

// PortfolioDeleted clears the selection when it points at portfolioID.
func (m *Manager) PortfolioDeleted(ctx context.Context, id string, portfolioID models.ID) (Session, error) {
	return m.update(ctx, id, func(s *Session) {
		if s.SelectedPortfolioID == portfolioID {
			s.SelectedPortfolioID = ""
		}
	})
}

// SetUser refreshes the cached user record.
func (m *Manager) SetUser(ctx context.Context, id string, user models.User) (Session, error) {
	return m.update(ctx, id, func(s *Session) { s.User = user })
}

func (m *Manager) update(ctx context.Context, id string, fn func(*Session)) (Session, error) {
	if _, err := m.Restore(ctx, id); err != nil {
		return Session{}, err
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrNoSession
	}
	fn(s)
	out := *s
	m.mu.Unlock()

	if err := m.persist(ctx, &out); err != nil {
		return Session{}, err
	}
	return out, nil
}

// HandleUnauthorized drops the session carried by ctx. It is installed as
// the client's unauthorized hook.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	s, ok := FromContext(ctx)
	if !ok {
		return
	}
	m.logger.Warn().Str("session", s.ID).Msg("folio-server rejected token, dropping session")
	m.discard(context.WithoutCancel(ctx), s.ID)
}

// discard drops id, logging instead of returning a failure.
func (m *Manager) discard(ctx context.Context, id string) {
	if err := m.Drop(ctx, id); err != nil {
		m.logger.Warn().Str("session", id).Err(err).Msg("failed to drop session")
	}
}

func (m *Manager) save(ctx context.Context, s *Session) error {
	if err := m.persist(ctx, s); err != nil {
		return err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return nil
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := m.kv.Set(ctx, keyPrefix+s.ID, string(data)); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SignCookie issues the signed cookie value that names session s.
func (m *Manager) SignCookie(s Session) (string, error) {
	claims := cookieClaims{
		SessionID: s.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.User.ID.String(),
			IssuedAt:  jwt.NewNumericDate(m.now()),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Authenticate verifies a cookie value and restores its session.
func (m *Manager) Authenticate(ctx context.Context, cookie string) (Session, error) {
	if cookie == "" {
		return Session{}, ErrNoSession
	}
	claims := &cookieClaims{}
	_, err := jwt.ParseWithClaims(cookie, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	return m.Restore(ctx, claims.SessionID)
}
