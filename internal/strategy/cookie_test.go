// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package strategy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/memory"
	"github.com/gatekeep/gatekeep/internal/session"
	"github.com/gatekeep/gatekeep/internal/strategy"
	"github.com/gatekeep/gatekeep/pkg/errutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func requestWithCookie(name, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	if value != "" {
		r.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return r
}

func newCookieStrategy(t *testing.T, store session.Store) (*strategy.SessionCookie, *auth.User) {
	t.Helper()
	users, _, user := seedUser(t, "a@b.com", "pw1")
	s, err := strategy.NewSessionCookie("_my_session_id", store, users, nil)
	require.NoError(t, err)
	return s, user
}

func TestSessionCookie_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s, user := newCookieStrategy(t, session.NewMemoryStore())
	assert.Equal(t, "_my_session_id", s.CookieName())

	id, err := s.CreateSession(ctx, user.Identity())
	require.NoError(t, err)

	identity, err := s.ResolveIdentity(requestWithCookie("_my_session_id", id))
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, user.ID, identity.ID)

	destroyed, err := s.DestroySession(requestWithCookie("_my_session_id", id))
	require.NoError(t, err)
	assert.True(t, destroyed)

	identity, err = s.ResolveIdentity(requestWithCookie("_my_session_id", id))
	require.NoError(t, err)
	assert.Nil(t, identity)

	destroyed, err = s.DestroySession(requestWithCookie("_my_session_id", id))
	require.NoError(t, err)
	assert.False(t, destroyed)
}

func TestSessionCookie_Absent(t *testing.T) {
	s, _ := newCookieStrategy(t, session.NewMemoryStore())

	for name, r := range map[string]*http.Request{
		"no cookie":    requestWithCookie("_my_session_id", ""),
		"other cookie": requestWithCookie("session_id", "abc"),
		"unknown id":   requestWithCookie("_my_session_id", "abc"),
		"nil request":  nil,
	} {
		t.Run(name, func(t *testing.T) {
			identity, err := s.ResolveIdentity(r)
			require.NoError(t, err)
			assert.Nil(t, identity)

			destroyed, err := s.DestroySession(r)
			require.NoError(t, err)
			assert.False(t, destroyed)
		})
	}
}

func TestSessionCookie_DeletedUserIsAbsent(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	s, _ := newCookieStrategy(t, store)

	id, err := s.CreateSession(ctx, &auth.Identity{ID: ulid.Make(), Email: "gone@b.com"})
	require.NoError(t, err)

	identity, err := s.ResolveIdentity(requestWithCookie("_my_session_id", id))
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestSessionCookie_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	inner := session.NewMemoryStore()
	store := session.NewExpiringStore(inner, time.Minute, session.WithClock(clock.Now))
	s, user := newCookieStrategy(t, store)

	id, err := s.CreateSession(ctx, user.Identity())
	require.NoError(t, err)

	clock.Advance(time.Minute)
	identity, err := s.ResolveIdentity(requestWithCookie("_my_session_id", id))
	require.NoError(t, err)
	assert.NotNil(t, identity)

	clock.Advance(time.Second)
	identity, err = s.ResolveIdentity(requestWithCookie("_my_session_id", id))
	require.NoError(t, err)
	assert.Nil(t, identity)

	destroyed, err := s.DestroySession(requestWithCookie("_my_session_id", id))
	require.NoError(t, err)
	assert.False(t, destroyed, "an expired session reports false")

	_, ok, err := inner.Lookup(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "the expired session is removed anyway")
}

// slowLookupStore widens the window between Lookup and Destroy.
type slowLookupStore struct {
	session.Store
	delay time.Duration
}

func (s slowLookupStore) Lookup(ctx context.Context, sessionID string) (string, bool, error) {
	subject, ok, err := s.Store.Lookup(ctx, sessionID)
	time.Sleep(s.delay)
	return subject, ok, err
}

func TestSessionCookie_ConcurrentDestroyReportsOnce(t *testing.T) {
	ctx := context.Background()
	s, user := newCookieStrategy(t, slowLookupStore{Store: session.NewMemoryStore(), delay: 20 * time.Millisecond})

	id, err := s.CreateSession(ctx, user.Identity())
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		destroyed int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.DestroySession(requestWithCookie("_my_session_id", id))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				destroyed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, destroyed)
}

func TestSessionCookie_CreateRequiresIdentity(t *testing.T) {
	s, _ := newCookieStrategy(t, session.NewMemoryStore())
	_, err := s.CreateSession(context.Background(), nil)
	errutil.AssertErrorCode(t, err, auth.CodeInvalidSubject)
}

func TestSessionCookie_Cookies(t *testing.T) {
	s, _ := newCookieStrategy(t, session.NewMemoryStore())

	rec := httptest.NewRecorder()
	s.SetCookie(rec, "sid-1")
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "_my_session_id", cookies[0].Name)
	assert.Equal(t, "sid-1", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rec = httptest.NewRecorder()
	s.ClearCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestNewSessionCookie_DefaultName(t *testing.T) {
	s, err := strategy.NewSessionCookie("", session.NewMemoryStore(), memory.NewUserRepository(), nil)
	require.NoError(t, err)
	assert.Equal(t, strategy.DefaultCookieName, s.CookieName())

	_, err = strategy.NewSessionCookie("sid", nil, memory.NewUserRepository(), nil)
	assert.Error(t, err)
}
