package notice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/justchokingaround/shikiplay/internal/apperr"
	"github.com/justchokingaround/shikiplay/internal/database"
)

func newQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return NewQueue(database.NewKV(db))
}

func TestQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("push with same id replaces the queued notice", func(t *testing.T) {
		q := newQueue(t)
		require.NoError(t, q.Push(ctx, Notice{ID: "x", Text: "first"}))
		require.NoError(t, q.Push(ctx, Notice{ID: "x", Text: "second"}))

		queued, err := q.List(ctx)
		require.NoError(t, err)
		require.Len(t, queued, 1)
		assert.Equal(t, "x", queued[0].ID)
		assert.Equal(t, "second", queued[0].Text)
	})

	t.Run("notices without id are kept", func(t *testing.T) {
		q := newQueue(t)
		require.NoError(t, q.Push(ctx, Notice{Text: "anonymous"}))
		require.NoError(t, q.Push(ctx, Notice{ID: "x", Text: "first"}))
		require.NoError(t, q.Push(ctx, Notice{ID: "y", Text: "other"}))
		require.NoError(t, q.Push(ctx, Notice{ID: "x", Text: "second"}))

		queued, err := q.List(ctx)
		require.NoError(t, err)
		texts := make([]string, 0, len(queued))
		for _, n := range queued {
			texts = append(texts, n.Text)
		}
		assert.Equal(t, []string{"anonymous", "other", "second"}, texts)
	})

	t.Run("shift is fifo", func(t *testing.T) {
		q := newQueue(t)
		require.NoError(t, q.Push(ctx, Notice{Text: "a"}))
		require.NoError(t, q.Push(ctx, Notice{Text: "b"}))

		first, err := q.Shift(ctx)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, "a", first.Text)

		second, err := q.Shift(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", second.Text)

		empty, err := q.Shift(ctx)
		require.NoError(t, err)
		assert.Nil(t, empty)
	})
}

func TestLocalizer(t *testing.T) {
	assert.Equal(t, language.Russian, NewLocalizer("").Language())
	assert.Equal(t, language.English, NewLocalizer("en-US").Language())
	assert.Equal(t, language.Russian, NewLocalizer("ru").Language())

	assert.Equal(t, "Неизвестный", NewLocalizer("ru").Text(KeyUnknownAuthor))
	assert.Equal(t, "Unknown", NewLocalizer("en").Text(KeyUnknownAuthor))
}

type mockTracker struct {
	mock.Mock
}

func (m *mockTracker) Capture(ctx context.Context, err error, tags map[string]string) {
	m.Called(err, tags)
}

func TestReporter_Handle(t *testing.T) {
	ctx := context.Background()
	req := apperr.Request{Method: "GET", URL: "https://shikimori.one/api/animes/1"}

	setup := func(t *testing.T) (*Reporter, *Queue, *mockTracker) {
		q := newQueue(t)
		tracker := &mockTracker{}
		return NewReporter(q, NewLocalizer("en"), tracker, nil), q, tracker
	}

	t.Run("permission denied shows a distinct notice and is not tracked", func(t *testing.T) {
		r, q, tracker := setup(t)
		r.Handle(ctx, apperr.PermissionDenied(req, "denied"), ActionLoadAnime)

		queued, err := q.List(ctx)
		require.NoError(t, err)
		require.Len(t, queued, 1)
		assert.Equal(t, "Cannot load the anime: access to shikimori.one was denied", queued[0].Text)
		assert.Equal(t, ColorError, queued[0].Color)
		tracker.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
	})

	t.Run("server error is tracked with a generic notice", func(t *testing.T) {
		r, q, tracker := setup(t)
		err := apperr.ServerError(req, 503, "Service Unavailable", nil)
		tracker.On("Capture", err, mock.MatchedBy(func(tags map[string]string) bool {
			return tags["action"] == "save_user_rate" && tags["kind"] == "server-error"
		})).Once()

		r.Handle(ctx, err, ActionSaveUserRate)

		queued, qerr := q.List(ctx)
		require.NoError(t, qerr)
		require.Len(t, queued, 1)
		assert.Equal(t, "Cannot sync with your list. Open the console for details", queued[0].Text)
		tracker.AssertExpectations(t)
	})

	t.Run("client error without failure key is tracked silently", func(t *testing.T) {
		r, q, tracker := setup(t)
		err := apperr.ClientError(req, 404, "Not Found")
		tracker.On("Capture", err, mock.Anything).Once()

		r.Handle(ctx, err, ActionLoadAnime)

		queued, qerr := q.List(ctx)
		require.NoError(t, qerr)
		assert.Empty(t, queued)
		tracker.AssertExpectations(t)
	})

	t.Run("unknown errors are treated as server errors", func(t *testing.T) {
		r, q, tracker := setup(t)
		err := errors.New("boom")
		tracker.On("Capture", err, mock.Anything).Once()

		r.Handle(ctx, err, ActionLoadUser)

		queued, qerr := q.List(ctx)
		require.NoError(t, qerr)
		require.Len(t, queued, 1)
		assert.Equal(t, string(KeyGenericFailed), queued[0].ID)
	})

	t.Run("data unavailable is silent", func(t *testing.T) {
		r, q, tracker := setup(t)
		r.Handle(ctx, apperr.Unavailable("no sequel"), ActionLoadFranchise)
		r.Handle(ctx, nil, ActionLoadFranchise)

		queued, err := q.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, queued)
		tracker.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
	})
}

func TestRender(t *testing.T) {
	out := Render(Notice{Text: "hello", Color: ColorSuccess})
	assert.Contains(t, out, "hello")
}
