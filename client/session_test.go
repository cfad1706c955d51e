package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// verifyServer serves login plus a programmable verify response.
func verifyServer(valid *atomic.Bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			json.NewEncoder(w).Encode(map[string]any{
				"token": "tok-1",
				"user":  map[string]any{"id": 1, "email": "a@x.com", "name": "Alice"},
			})
		case "/api/auth/verify":
			if valid.Load() {
				json.NewEncoder(w).Encode(map[string]any{
					"isValid": true,
					"user":    map[string]any{"id": 1, "email": "a@x.com", "name": "Alice"},
				})
			} else {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"isValid": false, "message": "Invalid token", "code": "INVALID_TOKEN",
				})
			}
		default:
			http.NotFound(w, r)
		}
	}))
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSession_BootValidToken(t *testing.T) {
	var valid atomic.Bool
	valid.Store(true)
	srv := verifyServer(&valid)
	defer srv.Close()

	storage := &MemoryTokenStorage{}
	storage.Save("stored-token")

	s := NewSession(New(srv.URL), storage)
	defer s.Close()
	s.Start(context.Background())

	// Trusted immediately.
	assert.True(t, s.State().Authenticated)

	waitFor(t, func() bool {
		st := s.State()
		return !st.Loading && st.User != nil
	}, "verification never completed")
	assert.Equal(t, "Alice", s.State().User.Name)
}

func TestSession_BootRejectedTokenLogsOut(t *testing.T) {
	var valid atomic.Bool // false: server rejects the token
	srv := verifyServer(&valid)
	defer srv.Close()

	storage := &MemoryTokenStorage{}
	storage.Save("stale-token")

	s := NewSession(New(srv.URL), storage)
	defer s.Close()
	s.Start(context.Background())

	waitFor(t, func() bool { return !s.State().Authenticated }, "rejected token did not log out")
	assert.Empty(t, storage.Load(), "stored token must be cleared")
}

func TestSession_BootNetworkErrorKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable

	storage := &MemoryTokenStorage{}
	storage.Save("stored-token")

	s := NewSession(New(srv.URL), storage)
	defer s.Close()
	s.Start(context.Background())

	waitFor(t, func() bool { return s.State().Err != nil }, "transport error never surfaced")

	st := s.State()
	assert.True(t, st.Authenticated, "network failure must not log the user out")
	assert.Equal(t, "stored-token", storage.Load())
}

func TestSession_LoginOptimistic(t *testing.T) {
	var valid atomic.Bool // verify rejects, simulating the OAuth redirect race
	srv := verifyServer(&valid)
	defer srv.Close()

	storage := &MemoryTokenStorage{}
	s := NewSession(New(srv.URL), storage)
	defer s.Close()

	require.NoError(t, s.Login(context.Background(), "a@x.com", "secret1"))

	st := s.State()
	assert.True(t, st.Authenticated, "login is trusted immediately")
	require.NotNil(t, st.User)
	assert.Equal(t, "Alice", st.User.Name)
	assert.Equal(t, "tok-1", storage.Load())

	// The post-login verification must not fight the fresh token.
	time.Sleep(100 * time.Millisecond)
	assert.True(t, s.State().Authenticated, "post-login verify must not force logout")
}

func TestSession_LoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "Invalid email or password", "code": "INVALID_CREDENTIALS",
		})
	}))
	defer srv.Close()

	storage := &MemoryTokenStorage{}
	s := NewSession(New(srv.URL), storage)
	defer s.Close()

	err := s.Login(context.Background(), "a@x.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, s.State().Authenticated)
	assert.Empty(t, storage.Load())
}

func TestSession_AcceptToken(t *testing.T) {
	var valid atomic.Bool
	valid.Store(true)
	srv := verifyServer(&valid)
	defer srv.Close()

	storage := &MemoryTokenStorage{}
	s := NewSession(New(srv.URL), storage)
	defer s.Close()

	s.AcceptToken(context.Background(), "oauth-redirect-token")

	assert.True(t, s.State().Authenticated)
	assert.Equal(t, "oauth-redirect-token", storage.Load())

	waitFor(t, func() bool { return s.State().User != nil }, "verification never filled in the account")
}

func TestSession_Logout(t *testing.T) {
	var valid atomic.Bool
	valid.Store(true)
	srv := verifyServer(&valid)
	defer srv.Close()

	storage := &MemoryTokenStorage{}
	c := New(srv.URL)
	s := NewSession(c, storage)
	defer s.Close()

	require.NoError(t, s.Login(context.Background(), "a@x.com", "secret1"))
	s.Logout()

	st := s.State()
	assert.False(t, st.Authenticated)
	assert.Nil(t, st.User)
	assert.Empty(t, storage.Load())
	assert.Empty(t, c.Token())
}

func TestSession_PeriodicRecheckCatchesRevocation(t *testing.T) {
	var valid atomic.Bool
	valid.Store(true)
	srv := verifyServer(&valid)
	defer srv.Close()

	storage := &MemoryTokenStorage{}
	storage.Save("stored-token")

	s := NewSession(New(srv.URL), storage)
	s.interval = 20 * time.Millisecond // speed the recheck up for the test
	defer s.Close()
	s.Start(context.Background())

	waitFor(t, func() bool { return s.State().User != nil }, "initial verify never completed")

	// Server-side revocation between page loads.
	valid.Store(false)
	waitFor(t, func() bool { return !s.State().Authenticated }, "recheck never caught the revocation")
}

func TestSession_CloseStopsRecheck(t *testing.T) {
	var valid atomic.Bool
	valid.Store(true)
	srv := verifyServer(&valid)
	defer srv.Close()

	s := NewSession(New(srv.URL), &MemoryTokenStorage{})
	s.Start(context.Background())
	s.Close()
	s.Close() // idempotent
}
