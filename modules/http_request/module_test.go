package http_request

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	// --- Arrange ---
	var gotMethod, gotBody, gotType, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotMethod, gotBody = r.Method, string(b)
		gotType, gotAuth = r.Header.Get("Content-Type"), r.Header.Get("Authorization")

		switch r.URL.Path {
		case "/missing":
			http.Error(w, "nope", http.StatusNotFound)
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		}
	}))
	defer srv.Close()
	m := &Module{Client: srv.Client()}

	t.Run("GET decodes JSON", func(t *testing.T) {
		out, err := m.Do(context.Background(), map[string]any{"url": srv.URL + "/status"})

		require.NoError(t, err)
		res := out.(Output)
		assert.Equal(t, http.MethodGet, gotMethod)
		assert.Equal(t, 200, res.StatusCode)
		assert.Equal(t, map[string]any{"ok": true}, res.JSON)
		assert.Equal(t, "application/json", res.Headers["Content-Type"])
	})

	t.Run("structured body is sent as JSON", func(t *testing.T) {
		_, err := m.Do(context.Background(), map[string]any{
			"url":     srv.URL,
			"method":  "post",
			"body":    map[string]any{"name": "x"},
			"headers": map[string]any{"Authorization": "Bearer t"},
		})

		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.JSONEq(t, `{"name":"x"}`, gotBody)
		assert.Equal(t, "application/json", gotType)
		assert.Equal(t, "Bearer t", gotAuth)
	})

	t.Run("string body is sent verbatim", func(t *testing.T) {
		_, err := m.Do(context.Background(), map[string]any{"url": srv.URL, "method": "PUT", "body": "raw"})
		require.NoError(t, err)
		assert.Equal(t, "raw", gotBody)
		assert.Empty(t, gotType)
	})

	t.Run("error status fails the step", func(t *testing.T) {
		_, err := m.Do(context.Background(), map[string]any{"url": srv.URL + "/missing"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("unreachable host", func(t *testing.T) {
		_, err := m.Do(context.Background(), map[string]any{"url": "http://127.0.0.1:1", "timeout": "1s"})
		assert.ErrorContains(t, err, "failed to execute request")
	})
}
