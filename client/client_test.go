package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "Title and content are required",
			"code":    "VALIDATION_ERROR",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.CreateLetter(context.Background(), CreateLetterInput{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "Title and content are required", apiErr.Message)
	assert.False(t, IsUnauthorized(err))
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	c := New(srv.URL)
	_, err := c.Letters(context.Background())
	require.Error(t, err)

	var tErr *TransportError
	require.ErrorAs(t, err, &tErr)
	assert.False(t, IsUnauthorized(err))
}

func TestClient_Timeout(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-done
	}))
	defer srv.Close()
	defer close(done)

	c := New(srv.URL)
	c.http.Timeout = 50 * time.Millisecond

	_, err := c.Letters(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout error kind, got %v", err)
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"letters": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.SetToken("tok-123")
	_, err := c.Letters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestClient_VerifyUnauthorizedIsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"isValid": false, "message": "Token has expired", "code": "TOKEN_EXPIRED",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Verify(context.Background())
	require.NoError(t, err, "a 401 verify is a result, not an error")
	assert.False(t, res.IsValid)
	assert.Equal(t, "TOKEN_EXPIRED", res.Code)
}

func TestClient_LoginAndLetters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			json.NewEncoder(w).Encode(map[string]any{
				"token": "tok-1",
				"user":  map[string]any{"id": 1, "email": "a@x.com", "name": "Alice"},
			})
		case "/api/letters/recent":
			json.NewEncoder(w).Encode(map[string]any{
				"letters": []map[string]any{{"id": 7, "title": "Hi", "content": "c"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "Alice", res.User.Name)

	letters, err := c.RecentLetters(context.Background())
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, uint(7), letters[0].ID)
}
