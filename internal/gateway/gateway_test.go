package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/shikiplay/internal/apperr"
)

func newTestGateway(t *testing.T, server *httptest.Server, grant bool) *Gateway {
	t.Helper()
	perms := NewPermissions()
	if grant {
		origin, err := OriginPattern(server.URL)
		require.NoError(t, err)
		perms.Grant(origin)
	}
	g := New(Config{
		Permissions: perms,
		Client: ClientConfig{
			Timeout:      5 * time.Second,
			MaxRetries:   2,
			RetryWait:    time.Millisecond,
			RetryMaxWait: 5 * time.Millisecond,
			UserAgent:    "shikiplay-test",
		},
	})
	t.Cleanup(g.Close)
	return g
}

func TestGateway_Request(t *testing.T) {
	t.Run("returns decoded payload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "shikiplay-test", r.Header.Get("User-Agent"))
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"data":{"id":1}}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server, true)
		payload, err := g.Request(context.Background(), server.URL+"/series/1", Options{
			Headers: map[string]string{"Authorization": "Bearer abc"},
		})

		require.NoError(t, err)
		assert.JSONEq(t, `{"data":{"id":1}}`, string(payload))
	})

	t.Run("rejects ungranted origin without calling it", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
		}))
		defer server.Close()

		g := newTestGateway(t, server, false)
		_, err := g.Request(context.Background(), server.URL+"/animes/1", Options{})

		require.Error(t, err)
		assert.Equal(t, apperr.KindPermissionDenied, apperr.KindOf(err))
		assert.Zero(t, atomic.LoadInt32(&hits))
	})

	t.Run("404 is a client error without retry", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		g := newTestGateway(t, server, true)
		_, err := g.Request(context.Background(), server.URL+"/episodes/9", Options{})

		require.Error(t, err)
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.KindClientError, appErr.Kind)
		assert.Equal(t, http.StatusNotFound, appErr.Status)
		assert.Equal(t, "Not Found", appErr.Message)
		assert.Equal(t, server.URL+"/episodes/9", appErr.Request.URL)
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	})

	t.Run("500 is retried before failing", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		g := newTestGateway(t, server, true)
		_, err := g.Request(context.Background(), server.URL, Options{})

		require.Error(t, err)
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.KindServerError, appErr.Kind)
		assert.Equal(t, http.StatusInternalServerError, appErr.Status)
		assert.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(2))
	})

	t.Run("recovers after transient server errors", func(t *testing.T) {
		var hits int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&hits, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server, true)
		payload, err := g.Request(context.Background(), server.URL, Options{})

		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(payload))
		assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	})

	t.Run("posts JSON bodies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "watching", body["user_rate"].(map[string]any)["status"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":5}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server, true)
		type rate struct {
			ID int `json:"id"`
		}
		got, err := Fetch[rate](context.Background(), g, server.URL+"/v2/user_rates", Options{
			Method: http.MethodPost,
			Body:   map[string]any{"user_rate": map[string]any{"status": "watching"}},
		})

		require.NoError(t, err)
		assert.Equal(t, 5, got.ID)
	})

	t.Run("each concurrent request gets its own reply", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `"}`))
		}))
		defer server.Close()

		g := newTestGateway(t, server, true)
		paths := []string{"/a", "/b", "/c", "/d"}
		var wg sync.WaitGroup
		for _, p := range paths {
			wg.Add(1)
			go func(p string) {
				defer wg.Done()
				got, err := Fetch[map[string]string](context.Background(), g, server.URL+p, Options{})
				assert.NoError(t, err)
				assert.Equal(t, p, got["path"])
			}(p)
		}
		wg.Wait()
	})

	t.Run("closed gateway refuses requests", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		g := newTestGateway(t, server, true)
		g.Close()

		_, err := g.Request(context.Background(), server.URL, Options{})
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestPermissions(t *testing.T) {
	p := NewPermissions("https://shikimori.one/*")

	assert.True(t, p.Allows("https://shikimori.one/api/animes/1"))
	assert.False(t, p.Allows("https://api.jikan.moe/v3/anime/1/episodes/1"))
	assert.False(t, p.Allows("not a url"))

	p.Grant("https://api.jikan.moe/*")
	assert.True(t, p.Allows("https://api.jikan.moe/v3/anime/1/episodes/1"))

	p.Revoke("https://shikimori.one/*")
	assert.False(t, p.Allows("https://shikimori.one/api/animes/1"))

	p.Replace([]string{"https://smotret-anime.online/*"})
	assert.Equal(t, []string{"https://smotret-anime.online/*"}, p.List())
}

func TestNewClient(t *testing.T) {
	t.Run("uses defaults for zero values", func(t *testing.T) {
		client := NewClient(ClientConfig{})
		assert.Equal(t, 30*time.Second, client.GetTimeout())
		assert.Equal(t, 3, client.GetMaxRetries())
	})

	t.Run("negative retries disable retrying", func(t *testing.T) {
		client := NewClient(ClientConfig{MaxRetries: -1})
		assert.Equal(t, 0, client.GetMaxRetries())
	})

	t.Run("retry policy", func(t *testing.T) {
		assert.False(t, shouldRetry(200))
		assert.False(t, shouldRetry(404))
		assert.False(t, shouldRetry(429))
		assert.True(t, shouldRetry(500))
		assert.True(t, shouldRetry(503))
		assert.True(t, shouldRetry(304))
	})
}
