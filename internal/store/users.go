package store

import (
	"context"
	"log"
	"time"

	"golang.org/x/oauth2"

	"github.com/ebeckert/letterwell/internal/model"
)

// CreateUser inserts a new account. The email is normalized before storage.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	return s.db.WithContext(ctx).Create(u).Error
}

// UserByEmail looks up an account by normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UserByID looks up an account by primary key.
func (s *Store) UserByID(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// SaveUser persists all fields of an existing account.
func (s *Store) SaveUser(ctx context.Context, u *model.User) error {
	return s.db.WithContext(ctx).Save(u).Error
}

// TouchLastLogin stamps the account's last successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id uint) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", now).Error
}

// UpsertGoogleUser creates or updates the account for a Google sign-in.
// First sign-in for an email creates the row; later sign-ins update the same
// row's name and token fields. The refresh token is only overwritten when the
// provider issued a new one, since Google omits it on repeat consent.
func (s *Store) UpsertGoogleUser(ctx context.Context, email, name, googleID string, tok *oauth2.Token) (*model.User, error) {
	u, err := s.UserByEmail(ctx, email)
	if err != nil {
		if err != ErrNotFound {
			return nil, err
		}
		u = &model.User{
			Email:    NormalizeEmail(email),
			Name:     name,
			GoogleID: &googleID,
		}
		if err := s.applyGoogleToken(ctx, u, tok); err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
			return nil, err
		}
		return u, nil
	}

	u.Name = name
	if u.GoogleID == nil {
		u.GoogleID = &googleID
	}
	if err := s.applyGoogleToken(ctx, u, tok); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateGoogleTokens persists a refreshed token pair for an account. The
// access token is always overwritten; the refresh token only when non-empty.
func (s *Store) UpdateGoogleTokens(ctx context.Context, id uint, tok *oauth2.Token) error {
	u, err := s.UserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.applyGoogleToken(ctx, u, tok); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(u).Error
}

// GoogleToken reconstructs the account's stored OAuth token, decrypting both
// halves. An account that never completed the consent flow yields a token
// with an empty access token.
func (s *Store) GoogleToken(ctx context.Context, u *model.User) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	if u.GoogleAccessToken != "" {
		access, err := s.enc.Decrypt(ctx, u.GoogleAccessToken)
		if err != nil {
			return nil, err
		}
		tok.AccessToken = access
	}
	if u.GoogleRefreshToken != "" {
		refresh, err := s.enc.Decrypt(ctx, u.GoogleRefreshToken)
		if err != nil {
			return nil, err
		}
		tok.RefreshToken = refresh
	}
	if u.GoogleTokenExpiry != nil {
		tok.Expiry = *u.GoogleTokenExpiry
	}
	return tok, nil
}

// applyGoogleToken encrypts and sets token fields on the user, honoring the
// refresh-token retention rule.
func (s *Store) applyGoogleToken(ctx context.Context, u *model.User, tok *oauth2.Token) error {
	if tok == nil {
		return nil
	}
	if tok.AccessToken != "" {
		enc, err := s.enc.Encrypt(ctx, tok.AccessToken)
		if err != nil {
			return err
		}
		u.GoogleAccessToken = enc
	}
	if tok.RefreshToken != "" {
		enc, err := s.enc.Encrypt(ctx, tok.RefreshToken)
		if err != nil {
			return err
		}
		u.GoogleRefreshToken = enc
	} else if u.GoogleRefreshToken != "" {
		log.Printf("store: provider omitted refresh token for user %d, keeping stored one", u.ID)
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		u.GoogleTokenExpiry = &expiry
	}
	return nil
}
