// Package client is the Go SDK for the letterwell API. It mirrors the REST
// surface one call per endpoint and distinguishes transport failures from
// API-level errors so callers can tell "the server said no" apart from "the
// network is down".
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const defaultTimeout = 10 * time.Second

// APIError is a structured error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// TransportError means the request never produced a server response:
// connection failure, DNS, or the request timeout elapsing.
type TransportError struct {
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return "request timed out: " + e.Err.Error()
	}
	return "request failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether the server explicitly rejected the caller's
// credential. Transport failures are never unauthorized.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsTimeout reports whether the request timed out before a response arrived.
func IsTimeout(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr) && tErr.Timeout
}

// User is the public account payload.
type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Letter mirrors the server's letter resource.
type Letter struct {
	ID          uint           `json:"id"`
	UserID      uint           `json:"userId"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Status      string         `json:"status"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
	DriveFileID string         `json:"driveFileId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// DriveFile is a Drive document's metadata.
type DriveFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	WebViewLink  string    `json:"webViewLink,omitempty"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// DriveFileList is one page of Drive documents.
type DriveFileList struct {
	Files         []DriveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// StorageQuota reports Drive usage in bytes.
type StorageQuota struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

// AuthResult is returned by register, login, and profile updates.
type AuthResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    User   `json:"user"`
}

// VerifyResult reports whether the current token is accepted.
type VerifyResult struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	User    *User  `json:"user,omitempty"`
}

// Client talks to a letterwell server. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the given server base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// SetToken replaces the bearer token attached to subsequent requests.
// An empty token means unauthenticated requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the currently attached bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	res, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		timeout := errors.As(err, &urlErr) && urlErr.Timeout()
		return &TransportError{Timeout: timeout, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if res.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: res.StatusCode}
		var payload struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Message
			apiErr.Code = payload.Code
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Register creates a password account and returns its first session token.
func (c *Client) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": password, "name": name,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Verify asks the server whether the attached token is still accepted.
// A 401 comes back as a VerifyResult, not an error; only transport and
// server failures error.
func (c *Client) Verify(ctx context.Context) (*VerifyResult, error) {
	var res VerifyResult
	err := c.do(ctx, http.MethodGet, "/api/auth/verify", nil, &res)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return &VerifyResult{IsValid: false, Message: apiErr.Message, Code: apiErr.Code}, nil
		}
		return nil, err
	}
	return &res, nil
}

// UpdateProfile changes the display name and/or password. The returned token
// replaces the old one.
func (c *Client) UpdateProfile(ctx context.Context, name, currentPassword, newPassword string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPut, "/api/auth/profile", map[string]string{
		"name": name, "currentPassword": currentPassword, "newPassword": newPassword,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Letters returns all of the caller's letters.
func (c *Client) Letters(ctx context.Context) ([]Letter, error) {
	var res struct {
		Letters []Letter `json:"letters"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/letters", nil, &res); err != nil {
		return nil, err
	}
	return res.Letters, nil
}

// LetterCount returns how many letters the caller owns.
func (c *Client) LetterCount(ctx context.Context) (int64, error) {
	var res struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/letters/count", nil, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

// RecentLetters returns the caller's most recently updated letters.
func (c *Client) RecentLetters(ctx context.Context) ([]Letter, error) {
	var res struct {
		Letters []Letter `json:"letters"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/letters/recent", nil, &res); err != nil {
		return nil, err
	}
	return res.Letters, nil
}

// Letter fetches one letter by id.
func (c *Client) Letter(ctx context.Context, id uint) (*Letter, error) {
	var res struct {
		Letter Letter `json:"letter"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/letters/"+strconv.FormatUint(uint64(id), 10), nil, &res); err != nil {
		return nil, err
	}
	return &res.Letter, nil
}

// CreateLetterInput is the payload for CreateLetter.
type CreateLetterInput struct {
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Status      string         `json:"status,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DriveFileID string         `json:"driveFileId,omitempty"`
}

// CreateLetter saves a new letter.
func (c *Client) CreateLetter(ctx context.Context, in CreateLetterInput) (*Letter, error) {
	var res struct {
		Letter Letter `json:"letter"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/letters", in, &res); err != nil {
		return nil, err
	}
	return &res.Letter, nil
}

// UpdateLetterInput carries a partial update; nil fields keep prior values.
type UpdateLetterInput struct {
	Title       *string         `json:"title,omitempty"`
	Content     *string         `json:"content,omitempty"`
	Status      *string         `json:"status,omitempty"`
	Tags        *[]string       `json:"tags,omitempty"`
	Metadata    *map[string]any `json:"metadata,omitempty"`
	DriveFileID *string         `json:"driveFileId,omitempty"`
}

// UpdateLetter applies a partial update to a letter.
func (c *Client) UpdateLetter(ctx context.Context, id uint, in UpdateLetterInput) (*Letter, error) {
	var res struct {
		Letter Letter `json:"letter"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/letters/"+strconv.FormatUint(uint64(id), 10), in, &res); err != nil {
		return nil, err
	}
	return &res.Letter, nil
}

// DeleteLetter removes a letter.
func (c *Client) DeleteLetter(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, "/api/letters/"+strconv.FormatUint(uint64(id), 10), nil, nil)
}

// DriveFiles lists the caller's Google Docs, paged.
func (c *Client) DriveFiles(ctx context.Context, pageSize int64, pageToken string) (*DriveFileList, error) {
	q := url.Values{}
	if pageSize > 0 {
		q.Set("pageSize", strconv.FormatInt(pageSize, 10))
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	path := "/api/drive/files"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var res DriveFileList
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DriveFileContent fetches a document's plain-text export.
func (c *Client) DriveFileContent(ctx context.Context, fileID string) (string, error) {
	var res struct {
		Content string `json:"content"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/drive/files/"+url.PathEscape(fileID), nil, &res); err != nil {
		return "", err
	}
	return res.Content, nil
}

// UploadToDrive creates a Google Doc from a letter's title and HTML content.
func (c *Client) UploadToDrive(ctx context.Context, title, content string) (*DriveFile, error) {
	var res DriveFile
	err := c.do(ctx, http.MethodPost, "/api/drive/upload", map[string]string{
		"title": title, "content": content,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateDriveFile overwrites a document's content.
func (c *Client) UpdateDriveFile(ctx context.Context, fileID, content string) error {
	return c.do(ctx, http.MethodPut, "/api/drive/files/"+url.PathEscape(fileID), map[string]string{
		"content": content,
	}, nil)
}

// DeleteDriveFile removes a Drive file.
func (c *Client) DeleteDriveFile(ctx context.Context, fileID string) error {
	return c.do(ctx, http.MethodDelete, "/api/drive/files/"+url.PathEscape(fileID), nil, nil)
}

// DriveStorage fetches the account's Drive quota.
func (c *Client) DriveStorage(ctx context.Context) (*StorageQuota, error) {
	var res StorageQuota
	if err := c.do(ctx, http.MethodGet, "/api/drive/storage", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
