package client

import (
	"context"
	"sync"
	"time"
)

const recheckInterval = 5 * time.Minute

// TokenStorage persists the session token between runs. Implementations
// must be safe for concurrent use.
type TokenStorage interface {
	Load() string
	Save(token string)
	Clear()
}

// MemoryTokenStorage keeps the token in memory only.
type MemoryTokenStorage struct {
	mu    sync.Mutex
	token string
}

func (s *MemoryTokenStorage) Load() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *MemoryTokenStorage) Save(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *MemoryTokenStorage) Clear() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// State is a snapshot of the session.
type State struct {
	Authenticated bool
	Loading       bool
	User          *User
	Err           error
}

// Session tracks authentication state over a Client. It is deliberately
// optimistic: a stored or freshly issued token is trusted immediately and
// reconciled with the server asynchronously. Only an explicit unauthorized
// response forces deauthentication; a network failure never does.
//
// Construct one per app instance and pass it where needed. Close releases
// the background recheck.
type Session struct {
	client  *Client
	storage TokenStorage

	mu    sync.Mutex
	state State

	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewSession creates a session over the given client and token storage.
// Call Start to load any stored token and begin the periodic recheck.
func NewSession(c *Client, storage TokenStorage) *Session {
	return &Session{
		client:   c,
		storage:  storage,
		interval: recheckInterval,
		done:     make(chan struct{}),
	}
}

// Start restores a stored token if one exists, trusting it immediately while
// a background verification reconciles with the server, and begins the
// periodic recheck. On verification rejection the session logs out; on a
// transport failure it stays authenticated and records the error.
func (s *Session) Start(ctx context.Context) {
	if tok := s.storage.Load(); tok != "" {
		s.client.SetToken(tok)
		s.mu.Lock()
		s.state.Authenticated = true
		s.state.Loading = true
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.verify(ctx, true)
		}()
	}

	s.wg.Add(1)
	go s.recheckLoop(ctx)
}

// Login authenticates with email and password. On success the session is
// authenticated immediately; the background verification that follows never
// forces logout, leaving revocation to the periodic recheck so a
// just-completed login cannot fight its own verification.
func (s *Session) Login(ctx context.Context, email, password string) error {
	res, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.setErr(err)
		return err
	}
	s.adopt(ctx, res.Token, &res.User)
	return nil
}

// Register creates an account and authenticates the session with it.
func (s *Session) Register(ctx context.Context, email, password, name string) error {
	res, err := s.client.Register(ctx, email, password, name)
	if err != nil {
		s.setErr(err)
		return err
	}
	s.adopt(ctx, res.Token, &res.User)
	return nil
}

// AcceptToken adopts an externally issued token, e.g. from the OAuth redirect
// completion route. The token is trusted immediately and verified in the
// background without forcing logout on failure.
func (s *Session) AcceptToken(ctx context.Context, token string) {
	s.adopt(ctx, token, nil)
}

// Logout clears the stored token and all in-memory identity state.
func (s *Session) Logout() {
	s.storage.Clear()
	s.client.SetToken("")
	s.mu.Lock()
	s.state = State{}
	s.mu.Unlock()
}

// State returns a snapshot of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close stops the background recheck and waits for in-flight verifications.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
	s.wg.Wait()
}

func (s *Session) adopt(ctx context.Context, token string, user *User) {
	s.storage.Save(token)
	s.client.SetToken(token)
	s.mu.Lock()
	s.state = State{Authenticated: true, User: user}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.verify(ctx, false)
	}()
}

// verify reconciles the optimistic state with the server. forceLogout
// controls whether a rejected token deauthenticates the session; it is false
// right after login so a redirect race cannot undo a fresh token.
func (s *Session) verify(ctx context.Context, forceLogout bool) {
	res, err := s.client.Verify(ctx)
	if err != nil {
		// Transport or server failure: transient, keep the session.
		s.mu.Lock()
		s.state.Loading = false
		s.state.Err = err
		s.mu.Unlock()
		return
	}

	if !res.IsValid {
		if forceLogout {
			s.Logout()
		} else {
			s.mu.Lock()
			s.state.Loading = false
			s.mu.Unlock()
		}
		return
	}

	s.mu.Lock()
	s.state.Authenticated = true
	s.state.Loading = false
	s.state.User = res.User
	s.state.Err = nil
	s.mu.Unlock()
}

func (s *Session) recheckLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.State().Authenticated {
				s.verify(ctx, true)
			}
		}
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.state.Err = err
	s.mu.Unlock()
}
