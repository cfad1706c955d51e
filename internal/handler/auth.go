package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/auth"
	"github.com/ebeckert/letterwell/internal/auth/google"
	"github.com/ebeckert/letterwell/internal/model"
	"github.com/ebeckert/letterwell/internal/ratelimit"
	"github.com/ebeckert/letterwell/internal/store"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const stateCookie = "oauth_state"

// AuthHandler serves registration, login, verification, profile updates, and
// the Google OAuth flow.
type AuthHandler struct {
	responder
	store      *store.Store
	issuer     *auth.TokenIssuer
	broker     *google.Broker
	limiter    *ratelimit.Limiter
	clientURL  string
	profileTTL time.Duration
}

// NewAuthHandler wires the auth endpoints. broker may be nil when Google
// integration is not configured; password auth still works.
func NewAuthHandler(s *store.Store, issuer *auth.TokenIssuer, broker *google.Broker, limiter *ratelimit.Limiter, clientURL string, profileTTL time.Duration, dev bool) *AuthHandler {
	return &AuthHandler{
		responder:  responder{dev: dev},
		store:      s,
		issuer:     issuer,
		broker:     broker,
		limiter:    limiter,
		clientURL:  clientURL,
		profileTTL: profileTTL,
	}
}

type authResponse struct {
	Message string           `json:"message,omitempty"`
	Token   string           `json:"token"`
	User    model.PublicUser `json:"user"`
}

// Register creates a password account.
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allow(r) {
		h.tooManyRequests(w)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, apperr.New(apperr.CodeValidation, "Invalid request body"))
		return
	}

	if req.Email == "" || req.Password == "" || req.Name == "" {
		h.validationDetails(w, map[string]string{
			"email":    requiredMsg(req.Email == "", "Email is required"),
			"password": requiredMsg(req.Password == "", "Password is required"),
			"name":     requiredMsg(req.Name == "", "Name is required"),
		})
		return
	}
	if !emailPattern.MatchString(req.Email) {
		h.error(w, apperr.New(apperr.CodeValidation, "Invalid email format"))
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		h.error(w, apperr.New(apperr.CodeValidation,
			fmt.Sprintf("Password must be at least %d characters long", auth.MinPasswordLength)))
		return
	}

	if _, err := h.store.UserByEmail(r.Context(), req.Email); err == nil {
		h.error(w, apperr.New(apperr.CodeUserExists, "User already exists"))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		h.error(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.error(w, err)
		return
	}
	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: &hash,
		IsActive:     true,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		h.error(w, err)
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusCreated, authResponse{
		Message: "User registered successfully",
		Token:   token,
		User:    user.Public(),
	})
}

// Login authenticates a password account. The failure message is identical
// for unknown email and wrong password so accounts cannot be enumerated.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.allow(r) {
		h.tooManyRequests(w)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, apperr.New(apperr.CodeValidation, "Invalid request body"))
		return
	}
	if req.Email == "" || req.Password == "" {
		h.validationDetails(w, map[string]string{
			"email":    requiredMsg(req.Email == "", "Email is required"),
			"password": requiredMsg(req.Password == "", "Password is required"),
		})
		return
	}

	user, err := h.store.UserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.error(w, apperr.New(apperr.CodeInvalidCredentials, "Invalid email or password"))
			return
		}
		h.error(w, err)
		return
	}
	if !user.HasPassword() {
		// Provider-only account: point at Google sign-in instead of implying
		// a password exists.
		h.error(w, apperr.New(apperr.CodeInvalidCredentials, "Please login with Google"))
		return
	}
	if !auth.CheckPassword(*user.PasswordHash, req.Password) {
		h.error(w, apperr.New(apperr.CodeInvalidCredentials, "Invalid email or password"))
		return
	}

	if err := h.store.TouchLastLogin(r.Context(), user.ID); err != nil {
		log.Printf("auth: update last login for user %d: %v", user.ID, err)
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, authResponse{
		Message: "Login successful",
		Token:   token,
		User:    user.Public(),
	})
}

type verifyResponse struct {
	IsValid bool              `json:"isValid"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	User    *model.PublicUser `json:"user,omitempty"`
}

// Verify checks the caller's token and confirms the account row still
// exists. Verification never mutates stored state.
// GET /api/auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		h.json(w, http.StatusUnauthorized, verifyResponse{IsValid: false, Message: "Token is missing", Code: string(apperr.CodeAuthRequired)})
		return
	}

	claims, err := h.issuer.Verify(token)
	if err != nil {
		h.json(w, http.StatusUnauthorized, verifyResponse{
			IsValid: false,
			Message: apperr.MessageOf(err),
			Code:    string(apperr.CodeOf(err)),
		})
		return
	}

	user, err := h.store.UserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.json(w, http.StatusUnauthorized, verifyResponse{IsValid: false, Message: "User not found", Code: string(apperr.CodeUserNotFound)})
			return
		}
		h.error(w, err)
		return
	}

	pub := user.Public()
	h.json(w, http.StatusOK, verifyResponse{IsValid: true, User: &pub})
}

// UpdateProfile changes the display name and/or password, then reissues a
// session credential reflecting the new identity.
// PUT /api/auth/profile (authenticated)
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())

	var req struct {
		Name            string `json:"name"`
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, apperr.New(apperr.CodeValidation, "Invalid request body"))
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.NewPassword != "" {
		if len(req.NewPassword) < auth.MinPasswordLength {
			h.error(w, apperr.New(apperr.CodeValidation,
				fmt.Sprintf("Password must be at least %d characters long", auth.MinPasswordLength)))
			return
		}
		if !user.HasPassword() || !auth.CheckPassword(*user.PasswordHash, req.CurrentPassword) {
			h.error(w, apperr.New(apperr.CodeInvalidCredentials, "Current password is incorrect"))
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			h.error(w, err)
			return
		}
		user.PasswordHash = &hash
	}

	if err := h.store.SaveUser(r.Context(), user); err != nil {
		h.error(w, err)
		return
	}

	token, err := h.issuer.IssueWithTTL(user, h.profileTTL)
	if err != nil {
		h.error(w, err)
		return
	}
	h.json(w, http.StatusOK, authResponse{Token: token, User: user.Public()})
}

// GoogleLogin redirects the browser to the Google consent screen with a
// fresh state nonce bound to a short-lived cookie.
// GET /api/auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		h.redirectLoginError(w, r, "auth_setup_failed")
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.broker.AuthURL(state), http.StatusFound)
}

// GoogleCallback finishes the OAuth flow and redirects back to the client
// app, carrying either a session token or an error code.
// GET /api/auth/google/callback
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		h.redirectLoginError(w, r, "auth_setup_failed")
		return
	}
	if errCode := r.URL.Query().Get("error"); errCode != "" {
		h.redirectLoginError(w, r, errCode)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectLoginError(w, r, "no_auth_code")
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.redirectLoginError(w, r, "invalid_state")
		return
	}
	// State is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	user, err := h.broker.HandleCallback(r.Context(), code)
	if err != nil {
		log.Printf("auth: google callback: %v", err)
		h.redirectLoginError(w, r, "callback_failed")
		return
	}

	token, err := h.issuer.Issue(user)
	if err != nil {
		log.Printf("auth: sign token after callback: %v", err)
		h.redirectLoginError(w, r, "callback_failed")
		return
	}

	http.Redirect(w, r, fmt.Sprintf("%s/auth/success?token=%s", h.clientURL, url.QueryEscape(token)), http.StatusFound)
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, fmt.Sprintf("%s/login?error=%s", h.clientURL, url.QueryEscape(code)), http.StatusFound)
}

func (h *AuthHandler) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return h.limiter.Allow(host)
}

func (h *AuthHandler) tooManyRequests(w http.ResponseWriter) {
	h.json(w, http.StatusTooManyRequests, errorBody{Message: "Too many attempts, please try again later"})
}

type validationBody struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details"`
}

func (h *AuthHandler) validationDetails(w http.ResponseWriter, fields map[string]string) {
	details := make(map[string]string, len(fields))
	for k, v := range fields {
		if v != "" {
			details[k] = v
		}
	}
	h.json(w, http.StatusBadRequest, validationBody{
		Message: "Missing required fields",
		Code:    string(apperr.CodeValidation),
		Details: details,
	})
}

func requiredMsg(missing bool, msg string) string {
	if missing {
		return msg
	}
	return ""
}
