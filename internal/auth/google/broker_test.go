package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/model"
)

type fakeTokenStore struct {
	mu sync.Mutex

	users      map[string]*model.User
	updated    []*oauth2.Token
	updateErr  error
	storedTok  *oauth2.Token
	nextUserID uint
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{users: make(map[string]*model.User)}
}

func (f *fakeTokenStore) UpsertGoogleUser(_ context.Context, email, name, googleID string, tok *oauth2.Token) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		f.nextUserID++
		u = &model.User{ID: f.nextUserID, Email: email, GoogleID: &googleID}
		f.users[email] = u
	}
	u.Name = name
	f.storedTok = tok
	return u, nil
}

func (f *fakeTokenStore) UpdateGoogleTokens(_ context.Context, _ uint, tok *oauth2.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, tok)
	return nil
}

func (f *fakeTokenStore) GoogleToken(_ context.Context, _ *model.User) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storedTok, nil
}

func (f *fakeTokenStore) updates() []*oauth2.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*oauth2.Token(nil), f.updated...)
}

type staticTokenSource struct {
	tok *oauth2.Token
	err error
}

func (s *staticTokenSource) Token() (*oauth2.Token, error) { return s.tok, s.err }

func TestPersistingTokenSource_PersistsRefreshedToken(t *testing.T) {
	store := newFakeTokenStore()
	old := &oauth2.Token{AccessToken: "old-access"}
	fresh := &oauth2.Token{AccessToken: "new-access", RefreshToken: "new-refresh"}

	src := &persistingTokenSource{
		ctx:    context.Background(),
		inner:  &staticTokenSource{tok: fresh},
		store:  store,
		userID: 1,
		last:   old,
	}

	got, err := src.Token()
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if got.AccessToken != "new-access" {
		t.Errorf("expected new-access, got %q", got.AccessToken)
	}

	updates := store.updates()
	if len(updates) != 1 {
		t.Fatalf("expected 1 persisted update, got %d", len(updates))
	}
	if updates[0].AccessToken != "new-access" {
		t.Errorf("persisted wrong token: %q", updates[0].AccessToken)
	}
}

func TestPersistingTokenSource_UnchangedTokenNotPersisted(t *testing.T) {
	store := newFakeTokenStore()
	tok := &oauth2.Token{AccessToken: "same-access"}

	src := &persistingTokenSource{
		ctx:    context.Background(),
		inner:  &staticTokenSource{tok: tok},
		store:  store,
		userID: 1,
		last:   tok,
	}

	if _, err := src.Token(); err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if len(store.updates()) != 0 {
		t.Errorf("expected no persisted update for unchanged token")
	}
}

func TestPersistingTokenSource_PersistFailureNotFatal(t *testing.T) {
	store := newFakeTokenStore()
	store.updateErr = errors.New("db down")

	src := &persistingTokenSource{
		ctx:    context.Background(),
		inner:  &staticTokenSource{tok: &oauth2.Token{AccessToken: "new-access"}},
		store:  store,
		userID: 1,
		last:   &oauth2.Token{AccessToken: "old-access"},
	}

	got, err := src.Token()
	if err != nil {
		t.Fatalf("persist failure must not fail the call: %v", err)
	}
	if got.AccessToken != "new-access" {
		t.Errorf("expected new-access, got %q", got.AccessToken)
	}
}

func TestPersistingTokenSource_RevokedGrant(t *testing.T) {
	retrieveErr := &oauth2.RetrieveError{ErrorCode: "invalid_grant"}
	src := &persistingTokenSource{
		ctx:   context.Background(),
		inner: &staticTokenSource{err: retrieveErr},
		store: newFakeTokenStore(),
	}

	_, err := src.Token()
	if err == nil {
		t.Fatal("expected error for revoked grant, got nil")
	}
	if apperr.CodeOf(err) != apperr.CodeGoogleReauthRequired {
		t.Errorf("expected %s, got %s", apperr.CodeGoogleReauthRequired, apperr.CodeOf(err))
	}
}

func TestIsPermanentAuthError(t *testing.T) {
	tests := []struct {
		err       error
		permanent bool
	}{
		{&oauth2.RetrieveError{ErrorCode: "invalid_grant"}, true},
		{&oauth2.RetrieveError{ErrorCode: "unauthorized_client"}, true},
		{&oauth2.RetrieveError{ErrorCode: "server_error"}, false},
		{errors.New("oauth2: \"invalid_grant\" token expired"), true},
		{errors.New("connection refused"), false},
	}
	for _, tc := range tests {
		if got := isPermanentAuthError(tc.err); got != tc.permanent {
			t.Errorf("isPermanentAuthError(%v) = %v, want %v", tc.err, got, tc.permanent)
		}
	}
}

func TestBroker_ClientWithoutTokens(t *testing.T) {
	b := NewBroker("id", "secret", "http://localhost/callback", newFakeTokenStore())

	_, err := b.Client(context.Background(), &model.User{ID: 1})
	if err == nil {
		t.Fatal("expected error for account without tokens, got nil")
	}
	if apperr.CodeOf(err) != apperr.CodeGoogleAuthRequired {
		t.Errorf("expected %s, got %s", apperr.CodeGoogleAuthRequired, apperr.CodeOf(err))
	}
}

func TestBroker_NilBrokerClient(t *testing.T) {
	var b *Broker

	_, err := b.Client(context.Background(), &model.User{ID: 1})
	if apperr.CodeOf(err) != apperr.CodeGoogleAuthRequired {
		t.Errorf("expected %s, got %s", apperr.CodeGoogleAuthRequired, apperr.CodeOf(err))
	}
}

func TestBroker_AuthURL(t *testing.T) {
	b := NewBroker("test-id", "test-secret", "http://localhost/callback", newFakeTokenStore())

	u := b.AuthURL("state-123")
	for _, want := range []string{"state=state-123", "access_type=offline", "prompt=consent", "client_id=test-id"} {
		if !strings.Contains(u, want) {
			t.Errorf("auth url missing %q: %s", want, u)
		}
	}
}

func TestBroker_HandleCallback(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access-1","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`)
	}))
	defer tokenSrv.Close()

	userinfoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"id":    "google-alice",
			"email": "alice@example.com",
			"name":  "Alice",
		})
	}))
	defer userinfoSrv.Close()

	store := newFakeTokenStore()
	b := NewBrokerWithConfig(&oauth2.Config{
		ClientID:     "test-id",
		ClientSecret: "test-secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenSrv.URL + "/token"},
	}, store)
	b.userinfoEndpoint = userinfoSrv.URL

	user, err := b.HandleCallback(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("HandleCallback failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("expected alice@example.com, got %q", user.Email)
	}
	if store.storedTok == nil || store.storedTok.AccessToken != "access-1" {
		t.Error("expected exchanged token to reach the store")
	}
	if store.storedTok.RefreshToken != "refresh-1" {
		t.Errorf("expected refresh token to reach the store, got %q", store.storedTok.RefreshToken)
	}
	if time.Until(store.storedTok.Expiry) <= 0 {
		t.Error("expected a future expiry")
	}
}
