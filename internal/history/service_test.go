package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/shikiplay/internal/database"
)

func newTestService(t *testing.T, limit int) *Service {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)

	s := NewService(db, limit)
	clock := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func ids(entries []Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.AnimeID
	}
	return out
}

func TestService_Unshift(t *testing.T) {
	ctx := context.Background()

	t.Run("moves existing anime to the front", func(t *testing.T) {
		s := newTestService(t, 0)
		require.NoError(t, s.Unshift(ctx, Entry{AnimeID: 1, Name: "Death Note", Episodes: 1}))
		require.NoError(t, s.Unshift(ctx, Entry{AnimeID: 2, Name: "Monster", Episodes: 3}))
		require.NoError(t, s.Unshift(ctx, Entry{AnimeID: 1, Name: "Тетрадь смерти", Episodes: 2}))

		recent, err := s.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, ids(recent))
		assert.Equal(t, "Тетрадь смерти", recent[0].Name)
		assert.Equal(t, 2, recent[0].Episodes)
	})

	t.Run("trims past the limit", func(t *testing.T) {
		s := newTestService(t, 2)
		for id := 1; id <= 3; id++ {
			require.NoError(t, s.Unshift(ctx, Entry{AnimeID: id, Name: "x"}))
		}

		recent, err := s.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 2}, ids(recent))
	})
}

func TestService_RecentAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, 0)
	for id := 1; id <= 3; id++ {
		require.NoError(t, s.Unshift(ctx, Entry{AnimeID: id, Name: "x"}))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, ids(recent))

	require.NoError(t, s.Delete(ctx, 3))
	recent, err = s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ids(recent))

	assert.Error(t, (&Service{}).Unshift(ctx, Entry{AnimeID: 1}))
}
