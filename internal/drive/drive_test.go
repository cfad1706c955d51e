package drive

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/model"
)

func TestQuotaFromAbout(t *testing.T) {
	tests := []struct {
		name      string
		in        *driveapi.AboutStorageQuota
		wantUsed  int64
		wantLimit int64
	}{
		{"nil quota", nil, 0, defaultQuotaLimit},
		{"provider omits limit", &driveapi.AboutStorageQuota{Usage: 1234}, 1234, defaultQuotaLimit},
		{"provider reports limit", &driveapi.AboutStorageQuota{Usage: 1234, Limit: 5000}, 1234, 5000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := quotaFromAbout(tc.in)
			if got.Used != tc.wantUsed {
				t.Errorf("used = %d, want %d", got.Used, tc.wantUsed)
			}
			if got.Limit != tc.wantLimit {
				t.Errorf("limit = %d, want %d", got.Limit, tc.wantLimit)
			}
		})
	}
}

func TestToFile(t *testing.T) {
	f := toFile(&driveapi.File{
		Id:           "f1",
		Name:         "Letter",
		MimeType:     docMimeType,
		ModifiedTime: "2026-08-01T12:00:00Z",
	})
	if f.ID != "f1" || f.Name != "Letter" {
		t.Errorf("unexpected file: %+v", f)
	}
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !f.ModifiedTime.Equal(want) {
		t.Errorf("modified time = %s, want %s", f.ModifiedTime, want)
	}
}

func TestMapProviderError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apperr.Code
	}{
		{"401 remaps to reauth", &googleapi.Error{Code: http.StatusUnauthorized}, apperr.CodeGoogleReauthRequired},
		{"403 remaps to reauth", &googleapi.Error{Code: http.StatusForbidden}, apperr.CodeGoogleReauthRequired},
		{"404 remaps to not found", &googleapi.Error{Code: http.StatusNotFound}, apperr.CodeNotFound},
		{"auth-required passes through", apperr.New(apperr.CodeGoogleAuthRequired, "x"), apperr.CodeGoogleAuthRequired},
		{"reauth passes through", apperr.New(apperr.CodeGoogleReauthRequired, "x"), apperr.CodeGoogleReauthRequired},
		{"other errors stay generic", errors.New("boom"), apperr.CodeInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := mapProviderError("op", tc.err)
			if apperr.CodeOf(got) != tc.wantCode {
				t.Errorf("code = %s, want %s", apperr.CodeOf(got), tc.wantCode)
			}
		})
	}
}

type failingSource struct{ err error }

func (f *failingSource) Client(context.Context, *model.User) (*http.Client, error) {
	return nil, f.err
}

func TestBridge_SourceErrorPropagates(t *testing.T) {
	authErr := apperr.New(apperr.CodeGoogleAuthRequired, "Please connect your Google account")
	b := NewBridge(&failingSource{err: authErr})

	_, err := b.ListFiles(context.Background(), &model.User{ID: 1}, 10, "")
	if apperr.CodeOf(err) != apperr.CodeGoogleAuthRequired {
		t.Errorf("expected %s, got %v", apperr.CodeGoogleAuthRequired, err)
	}

	_, err = b.Storage(context.Background(), &model.User{ID: 1})
	if apperr.CodeOf(err) != apperr.CodeGoogleAuthRequired {
		t.Errorf("expected %s, got %v", apperr.CodeGoogleAuthRequired, err)
	}
}
