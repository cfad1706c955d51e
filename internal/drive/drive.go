// Package drive translates letters to and from Google Docs through the
// user's Drive grant.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/model"
)

const (
	docMimeType = "application/vnd.google-apps.document"

	// Google reports no limit for some account types; assume the free tier.
	defaultQuotaLimit = 15 * 1024 * 1024 * 1024
)

// ClientSource hands out authenticated HTTP clients. The OAuth broker
// implements it.
type ClientSource interface {
	Client(ctx context.Context, u *model.User) (*http.Client, error)
}

// Bridge exposes the Drive operations the API needs. A fresh service is
// built per call so every request sees the latest stored token.
type Bridge struct {
	source ClientSource

	// endpoint overrides the Drive API base URL in tests.
	endpoint string
}

// NewBridge creates a bridge over the given client source.
func NewBridge(source ClientSource) *Bridge {
	return &Bridge{source: source}
}

// File is the metadata subset returned for Drive documents.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	WebViewLink  string    `json:"webViewLink,omitempty"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// FileList is one page of documents.
type FileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// StorageQuota reports Drive usage in bytes.
type StorageQuota struct {
	Used  int64 `json:"used"`
	Limit int64 `json:"limit"`
}

func (b *Bridge) service(ctx context.Context, u *model.User) (*driveapi.Service, error) {
	client, err := b.source.Client(ctx, u)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if b.endpoint != "" {
		opts = append(opts, option.WithEndpoint(b.endpoint))
	}
	svc, err := driveapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

// ListFiles returns one page of the user's Google Docs, most recently
// modified first.
func (b *Bridge) ListFiles(ctx context.Context, u *model.User, pageSize int64, pageToken string) (*FileList, error) {
	svc, err := b.service(ctx, u)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	call := svc.Files.List().
		Q(fmt.Sprintf("mimeType='%s'", docMimeType)).
		OrderBy("modifiedTime desc").
		PageSize(pageSize).
		Spaces("drive").
		Fields("nextPageToken, files(id, name, mimeType, webViewLink, modifiedTime)")
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, mapProviderError("list files", err)
	}

	list := &FileList{Files: []File{}, NextPageToken: res.NextPageToken}
	for _, f := range res.Files {
		list.Files = append(list.Files, toFile(f))
	}
	return list, nil
}

// ExportText fetches a document's plain-text export.
func (b *Bridge) ExportText(ctx context.Context, u *model.User, fileID string) (string, error) {
	svc, err := b.service(ctx, u)
	if err != nil {
		return "", err
	}

	res, err := svc.Files.Export(fileID, "text/plain").Context(ctx).Download()
	if err != nil {
		return "", mapProviderError("export file", err)
	}
	defer res.Body.Close()

	content, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read exported content: %w", err)
	}
	return string(content), nil
}

// CreateDocument creates a Google Doc from HTML content. Drive converts the
// HTML upload because the file metadata names the Docs mime type.
func (b *Bridge) CreateDocument(ctx context.Context, u *model.User, title, htmlContent string) (*File, error) {
	svc, err := b.service(ctx, u)
	if err != nil {
		return nil, err
	}

	meta := &driveapi.File{
		Name:     title,
		MimeType: docMimeType,
	}
	res, err := svc.Files.Create(meta).
		Media(strings.NewReader(htmlContent), googleapi.ContentType("text/html")).
		Fields("id, name, mimeType, webViewLink, modifiedTime").
		Context(ctx).Do()
	if err != nil {
		return nil, mapProviderError("create document", err)
	}

	f := toFile(res)
	return &f, nil
}

// UpdateDocument overwrites a document's content with new HTML.
func (b *Bridge) UpdateDocument(ctx context.Context, u *model.User, fileID, htmlContent string) error {
	svc, err := b.service(ctx, u)
	if err != nil {
		return err
	}

	_, err = svc.Files.Update(fileID, &driveapi.File{}).
		Media(strings.NewReader(htmlContent), googleapi.ContentType("text/html")).
		Context(ctx).Do()
	if err != nil {
		return mapProviderError("update document", err)
	}
	return nil
}

// DeleteFile removes a Drive file by id.
func (b *Bridge) DeleteFile(ctx context.Context, u *model.User, fileID string) error {
	svc, err := b.service(ctx, u)
	if err != nil {
		return err
	}
	if err := svc.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return mapProviderError("delete file", err)
	}
	return nil
}

// Storage fetches the account's quota.
func (b *Bridge) Storage(ctx context.Context, u *model.User) (*StorageQuota, error) {
	svc, err := b.service(ctx, u)
	if err != nil {
		return nil, err
	}

	about, err := svc.About.Get().Fields("storageQuota").Context(ctx).Do()
	if err != nil {
		return nil, mapProviderError("get storage quota", err)
	}
	return quotaFromAbout(about.StorageQuota), nil
}

func quotaFromAbout(q *driveapi.AboutStorageQuota) *StorageQuota {
	quota := &StorageQuota{Limit: defaultQuotaLimit}
	if q == nil {
		return quota
	}
	quota.Used = q.Usage
	if q.Limit > 0 {
		quota.Limit = q.Limit
	}
	return quota
}

func toFile(f *driveapi.File) File {
	modTime, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		WebViewLink:  f.WebViewLink,
		ModifiedTime: modTime,
	}
}

// mapProviderError remaps provider failures to the broker's auth codes so a
// rejected grant never surfaces as a generic error.
func mapProviderError(op string, err error) error {
	if apperr.Is(err, apperr.CodeGoogleAuthRequired) ||
		apperr.Is(err, apperr.CodeGoogleReauthRequired) ||
		apperr.Is(err, apperr.CodeTokenRefreshFailed) {
		return err
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrap(apperr.CodeGoogleReauthRequired, "Please reconnect your Google account", err)
		case http.StatusNotFound:
			return apperr.Wrap(apperr.CodeNotFound, "File not found", err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
