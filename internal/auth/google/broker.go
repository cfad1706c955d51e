// Package google drives the Google OAuth2 authorization-code flow, keeps the
// stored token pair fresh, and hands out authenticated HTTP clients for the
// Drive API.
package google

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/model"
)

// Scopes request identity plus file-scoped Drive access. drive.file limits
// the grant to files the app itself creates or opens.
var Scopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/drive.appdata",
}

// TokenStore is the slice of the data store the broker needs.
type TokenStore interface {
	UpsertGoogleUser(ctx context.Context, email, name, googleID string, tok *oauth2.Token) (*model.User, error)
	UpdateGoogleTokens(ctx context.Context, userID uint, tok *oauth2.Token) error
	GoogleToken(ctx context.Context, u *model.User) (*oauth2.Token, error)
}

// Broker runs the OAuth2 state machine: consent redirect, code exchange,
// account upsert, and transparent token refresh with write-back.
type Broker struct {
	cfg   *oauth2.Config
	store TokenStore

	// userinfoEndpoint overrides the Google userinfo API base URL in tests.
	userinfoEndpoint string
}

// NewBroker constructs a broker for the given OAuth client.
func NewBroker(clientID, clientSecret, redirectURL string, store TokenStore) *Broker {
	return &Broker{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       Scopes,
			Endpoint:     googleauth.Endpoint,
		},
		store: store,
	}
}

// NewBrokerWithConfig constructs a broker over an explicit OAuth2 config.
// Tests use it to point the token endpoint at a fake server.
func NewBrokerWithConfig(cfg *oauth2.Config, store TokenStore) *Broker {
	return &Broker{cfg: cfg, store: store}
}

// AuthURL returns the consent screen URL. Offline access plus forced
// re-consent makes Google reliably issue a refresh token.
func (b *Broker) AuthURL(state string) string {
	return b.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges the authorization code, fetches the Google
// profile, and upserts the local account. The stored refresh token survives
// when Google omits one from the exchange.
func (b *Broker) HandleCallback(ctx context.Context, code string) (*model.User, error) {
	tok, err := b.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	opts := []option.ClientOption{option.WithTokenSource(b.cfg.TokenSource(ctx, tok))}
	if b.userinfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(b.userinfoEndpoint))
	}
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil {
		return nil, fmt.Errorf("fetch google profile: %w", err)
	}

	user, err := b.store.UpsertGoogleUser(ctx, info.Email, info.Name, info.Id, tok)
	if err != nil {
		return nil, fmt.Errorf("upsert google account: %w", err)
	}
	return user, nil
}

// Client returns an authenticated HTTP client for the user's Drive access.
// The freshest stored token is re-read on every call, so a refresh persisted
// by a concurrent request is picked up here.
func (b *Broker) Client(ctx context.Context, u *model.User) (*http.Client, error) {
	if b == nil {
		// Google integration not configured on this deployment.
		return nil, apperr.New(apperr.CodeGoogleAuthRequired, "Please connect your Google account")
	}
	if u.GoogleAccessToken == "" && u.GoogleRefreshToken == "" {
		return nil, apperr.New(apperr.CodeGoogleAuthRequired, "Please connect your Google account")
	}
	tok, err := b.store.GoogleToken(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("load stored google token: %w", err)
	}

	src := &persistingTokenSource{
		ctx:    ctx,
		inner:  b.cfg.TokenSource(ctx, tok),
		store:  b.store,
		userID: u.ID,
		last:   tok,
	}
	return oauth2.NewClient(ctx, src), nil
}

// persistingTokenSource wraps the library's refreshing token source and
// writes refreshed tokens back to the store before the triggering API call
// proceeds. Persistence failures are logged, not fatal: the in-flight call
// still gets its fresh token.
type persistingTokenSource struct {
	ctx    context.Context
	inner  oauth2.TokenSource
	store  TokenStore
	userID uint

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.inner.Token()
	if err != nil {
		if isPermanentAuthError(err) {
			return nil, apperr.Wrap(apperr.CodeGoogleReauthRequired, "Please reconnect your Google account", err)
		}
		return nil, err
	}

	s.mu.Lock()
	changed := s.last == nil || tok.AccessToken != s.last.AccessToken
	s.last = tok
	s.mu.Unlock()

	if changed {
		if err := s.store.UpdateGoogleTokens(s.ctx, s.userID, tok); err != nil {
			log.Printf("google: persisting refreshed token for user %d failed: %v", s.userID, err)
		}
	}
	return tok, nil
}

// isPermanentAuthError reports whether the provider rejected the stored
// credentials outright, e.g. a revoked grant. Transient failures retry.
func isPermanentAuthError(err error) bool {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		switch retrieve.ErrorCode {
		case "invalid_grant", "invalid_client", "unauthorized_client":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid_grant") || strings.Contains(msg, "revoked")
}
