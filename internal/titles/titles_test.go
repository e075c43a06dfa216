package titles

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/shikiplay/internal/apperr"
	"github.com/justchokingaround/shikiplay/internal/gateway"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	origin, err := gateway.OriginPattern(server.URL)
	require.NoError(t, err)
	g := gateway.New(gateway.Config{
		Permissions: gateway.NewPermissions(origin),
		Client:      gateway.ClientConfig{Timeout: 5 * time.Second, MaxRetries: 1, RetryWait: time.Millisecond, RetryMaxWait: time.Millisecond},
	})
	t.Cleanup(g.Close)
	return NewClient(server.URL+"/v3", g)
}

func TestClient_All(t *testing.T) {
	t.Run("stops at last page", func(t *testing.T) {
		var hits int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&hits, 1)
			assert.Equal(t, fmt.Sprintf("/v3/anime/1535/episodes/%d", n), r.URL.Path)
			_, _ = fmt.Fprintf(w, `{"episodes":[{"episode_id":%d,"title":"ep %d"}],"episodes_last_page":2}`, n, n)
		})

		all, err := client.All(context.Background(), 1535)
		require.NoError(t, err)
		assert.Equal(t, []Episode{{1, "ep 1"}, {2, "ep 2"}}, all)
		assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	})

	t.Run("stops at empty page", func(t *testing.T) {
		var hits int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&hits, 1) > 1 {
				_, _ = w.Write([]byte(`{"episodes":[],"episodes_last_page":10}`))
				return
			}
			_, _ = w.Write([]byte(`{"episodes":[{"episode_id":1,"title":"Rebirth"}],"episodes_last_page":10}`))
		})

		all, err := client.All(context.Background(), 1)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	})

	t.Run("returns partial titles with the error", func(t *testing.T) {
		var hits int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&hits, 1) > 1 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"episodes":[{"episode_id":1,"title":"Rebirth"}],"episodes_last_page":3}`))
		})

		all, err := client.All(context.Background(), 1)
		assert.True(t, apperr.Is(err, apperr.KindClientError))
		assert.Len(t, all, 1)
	})
}

func TestByNumber(t *testing.T) {
	got := ByNumber([]Episode{{1, "Rebirth"}, {2, ""}, {3, "Confrontation"}})
	assert.Equal(t, map[int]string{1: "Rebirth", 3: "Confrontation"}, got)
}
