package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRequester_JSONRoundTrip(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/items", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("view"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		var in map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in["id"] = 1
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	r := NewHTTPRequester(srv.URL + "/")
	r.Header = http.Header{"X-Token": []string{"secret"}}
	res, err := r.Do(context.Background(), http.MethodPost, "/items?view=full", map[string]any{"name": "a"})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Status)
	assert.Equal(t, map[string]any{"name": "a", "id": 1.0}, res.Body)
}

func TestHTTPRequester_NoBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.Empty(t, data)
		assert.Empty(t, r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	res, err := NewHTTPRequester(srv.URL).Do(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", res.Body)
	assert.Equal(t, []byte("plain text"), res.Raw)
}

func TestHTTPRequester_StatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"not found"}`))
	}))
	defer srv.Close()

	res, err := NewHTTPRequester(srv.URL).Do(context.Background(), http.MethodGet, "/missing", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 404, se.Response.Status)
	assert.Equal(t, map[string]any{"detail": "not found"}, res.Body)
}

func TestHTTPRequester_CustomAccept(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewHTTPRequester(srv.URL)
	r.Accept = func(int) bool { return true }
	res, err := r.Do(context.Background(), http.MethodDelete, "/x", nil)
	require.NoError(t, err)
	assert.Nil(t, res.Body)
}

func TestBaseURLFromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	assert.Equal(t, DefaultBaseURL, BaseURLFromEnv())
	t.Setenv("API_BASE_URL", "http://example.test")
	assert.Equal(t, "http://example.test", BaseURLFromEnv())
}
