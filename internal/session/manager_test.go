package session

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/interfaces"
	"github.com/bobmcallan/folio-portal/internal/models"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: map[string]string{}} }

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// stuckKV refuses deletes.
type stuckKV struct{ *memKV }

func (stuckKV) Delete(context.Context, string) error { return errors.New("store is read-only") }

type fakeAuth struct {
	token    string
	loginErr error
	logouts  int
}

func (f *fakeAuth) Login(ctx context.Context, creds models.Credentials) (string, *models.User, error) {
	if f.loginErr != nil {
		return "", nil, f.loginErr
	}
	return f.token, &models.User{ID: "1", Username: creds.Username}, nil
}

func (f *fakeAuth) Register(ctx context.Context, creds models.Credentials) (string, *models.User, error) {
	return f.Login(ctx, creds)
}

func (f *fakeAuth) Logout(ctx context.Context) error {
	f.logouts++
	return nil
}

func (f *fakeAuth) Me(context.Context) (*models.User, error)                  { return nil, nil }
func (f *fakeAuth) ResendVerification(context.Context) error                  { return nil }
func (f *fakeAuth) ResetPassword(context.Context, models.PasswordReset) error { return nil }

var secret = []byte("test-secret")

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": exp.Unix()}).SignedString([]byte("server-key"))
	require.NoError(t, err)
	return tok
}

func newManager(auth *fakeAuth, kv interfaces.KeyValueStorage) *Manager {
	return NewManager(auth, kv, secret, common.NewSilentLogger())
}

func TestLogin_PersistsAndRestores(t *testing.T) {
	kv := newMemKV()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	auth := &fakeAuth{token: signedToken(t, exp)}
	ctx := context.Background()

	s, err := newManager(auth, kv).Login(ctx, models.Credentials{Username: "ann", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "ann", s.User.Username)
	assert.True(t, s.ExpiresAt.Equal(exp))
	assert.False(t, s.HasSelection())

	// A second manager over the same store sees the session.
	restored, err := newManager(auth, kv).Restore(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Token, restored.Token)
	assert.Equal(t, "ann", restored.User.Username)
}

func TestLogin_Failure(t *testing.T) {
	m := newManager(&fakeAuth{loginErr: errors.New("bad credentials")}, newMemKV())
	_, err := m.Login(context.Background(), models.Credentials{})
	assert.ErrorContains(t, err, "bad credentials")
}

func TestRestore_ExpiredTokenDiscarded(t *testing.T) {
	kv := newMemKV()
	auth := &fakeAuth{token: signedToken(t, time.Now().Add(time.Minute))}
	m := newManager(auth, kv)
	ctx := context.Background()

	s, err := m.Login(ctx, models.Credentials{Username: "ann"})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Restore(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoSession)

	keys, _ := kv.Keys(ctx, keyPrefix)
	assert.Empty(t, keys, "expired session must be removed from the store")
}

func TestRestore_LogsFailedDrop(t *testing.T) {
	kv := stuckKV{newMemKV()}
	auth := &fakeAuth{token: signedToken(t, time.Now().Add(time.Minute))}
	var buf bytes.Buffer
	m := NewManager(auth, kv, secret, common.NewLoggerWithOutput("info", &buf))
	ctx := context.Background()

	s, err := m.Login(ctx, models.Credentials{Username: "ann"})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Restore(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Contains(t, buf.String(), "failed to drop session")
	assert.Contains(t, buf.String(), "store is read-only")

	// An unreadable record takes the same path.
	buf.Reset()
	require.NoError(t, kv.Set(ctx, keyPrefix+"garbage", "not msgpack"))
	_, err = m.Restore(ctx, "garbage")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Contains(t, buf.String(), "failed to drop session")
}

func TestRestore_OpaqueTokenUsesDefaultTTL(t *testing.T) {
	m := newManager(&fakeAuth{token: "opaque"}, newMemKV())
	s, err := m.Login(context.Background(), models.Credentials{})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(DefaultTTL), s.ExpiresAt, time.Minute)
}

func TestLogout_ClearsEverything(t *testing.T) {
	kv := newMemKV()
	auth := &fakeAuth{token: "opaque"}
	m := newManager(auth, kv)
	ctx := context.Background()

	s, err := m.Login(ctx, models.Credentials{})
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, s.ID))

	assert.Equal(t, 1, auth.logouts)
	_, err = m.Restore(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, m.Logout(ctx, s.ID), ErrNoSession)
}

func TestSelection_DeleteSelectedPortfolioClears(t *testing.T) {
	m := newManager(&fakeAuth{token: "opaque"}, newMemKV())
	ctx := context.Background()

	s, err := m.Login(ctx, models.Credentials{})
	require.NoError(t, err)

	s, err = m.Select(ctx, s.ID, "7")
	require.NoError(t, err)
	assert.Equal(t, models.ID("7"), s.SelectedPortfolioID)

	s, err = m.PortfolioDeleted(ctx, s.ID, "8")
	require.NoError(t, err)
	assert.True(t, s.HasSelection(), "deleting another portfolio keeps the selection")

	s, err = m.PortfolioDeleted(ctx, s.ID, "7")
	require.NoError(t, err)
	assert.False(t, s.HasSelection())

	restored, err := m.Restore(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, restored.HasSelection())
}

func TestCookie_RoundTrip(t *testing.T) {
	m := newManager(&fakeAuth{token: "opaque"}, newMemKV())
	ctx := context.Background()

	s, err := m.Login(ctx, models.Credentials{Username: "ann"})
	require.NoError(t, err)
	cookie, err := m.SignCookie(s)
	require.NoError(t, err)

	got, err := m.Authenticate(ctx, cookie)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	other := NewManager(&fakeAuth{}, newMemKV(), []byte("other-secret"), nil)
	_, err = other.Authenticate(ctx, cookie)
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = m.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestHandleUnauthorized_DropsContextSession(t *testing.T) {
	m := newManager(&fakeAuth{token: "opaque"}, newMemKV())
	ctx := context.Background()

	s, err := m.Login(ctx, models.Credentials{})
	require.NoError(t, err)

	m.HandleUnauthorized(ctx)
	_, err = m.Restore(ctx, s.ID)
	require.NoError(t, err, "no session in context, nothing dropped")

	m.HandleUnauthorized(NewContext(ctx, &s))
	_, err = m.Restore(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}

func TestPrune_DropsExpiredSessions(t *testing.T) {
	kv := newMemKV()
	ctx := context.Background()
	m := newManager(&fakeAuth{token: signedToken(t, time.Now().Add(time.Minute))}, kv)
	short, err := m.Login(ctx, models.Credentials{Username: "ann"})
	require.NoError(t, err)

	m.auth = &fakeAuth{token: signedToken(t, time.Now().Add(time.Hour))}
	long, err := m.Login(ctx, models.Credentials{Username: "bo"})
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, keyPrefix+"garbage", "not msgpack"))
	require.NoError(t, kv.Set(ctx, "folio:cli:session", long.ID))

	m.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	pruned, err := m.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	keys, _ := kv.Keys(ctx, keyPrefix)
	assert.Equal(t, []string{keyPrefix + long.ID}, keys)
	_, err = m.Restore(ctx, short.ID)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = kv.Get(ctx, "folio:cli:session")
	assert.NoError(t, err, "keys outside the session prefix are left alone")
}
