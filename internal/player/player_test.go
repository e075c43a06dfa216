package player

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/shikiplay/internal/apperr"
	"github.com/justchokingaround/shikiplay/internal/catalog"
	"github.com/justchokingaround/shikiplay/internal/database"
	"github.com/justchokingaround/shikiplay/internal/preference"
	"github.com/justchokingaround/shikiplay/internal/scoring"
	"github.com/justchokingaround/shikiplay/internal/sequel"
	"github.com/justchokingaround/shikiplay/internal/titles"
	"github.com/justchokingaround/shikiplay/internal/tracker"
)

type fakeCatalog struct {
	mu       sync.Mutex
	series   map[int]*catalog.Series
	episodes map[int][]catalog.Translation
	calls    map[string]int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		series:   make(map[int]*catalog.Series),
		episodes: make(map[int][]catalog.Translation),
		calls:    make(map[string]int),
	}
}

func (f *fakeCatalog) Series(_ context.Context, id int) (*catalog.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[fmt.Sprintf("series/%d", id)]++
	s, ok := f.series[id]
	if !ok {
		return nil, apperr.Unavailable("missing series")
	}
	c := *s
	c.Episodes = make([]*catalog.Episode, len(s.Episodes))
	for i, e := range s.Episodes {
		c.Episodes[i] = e.Clone()
	}
	return &c, nil
}

func (f *fakeCatalog) Episode(_ context.Context, id int) (*catalog.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[fmt.Sprintf("episode/%d", id)]++
	ts := f.episodes[id]
	return &catalog.Episode{ID: id, Translations: append([]catalog.Translation{}, ts...)}, nil
}

func (f *fakeCatalog) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type fakeTitles struct {
	episodes []titles.Episode
	err      error
}

func (f fakeTitles) All(context.Context, int) ([]titles.Episode, error) {
	return f.episodes, f.err
}

type fakeContinuation struct {
	mu     sync.Mutex
	calls  int
	result *sequel.Candidate
}

func (f *fakeContinuation) ResolveNext(_ context.Context, animeID int) (*sequel.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.result == nil {
		return nil, apperr.Unavailable("no sequel")
	}
	c := *f.result
	return &c, nil
}

func (f *fakeContinuation) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func episodes(numbers ...string) []*catalog.Episode {
	out := make([]*catalog.Episode, len(numbers))
	for i, n := range numbers {
		out[i] = &catalog.Episode{ID: 100 + i, SeriesID: 7, EpisodeInt: n, EpisodeType: "tv", IsActive: true}
	}
	return out
}

func translation(id, episodeID int, author string, height int) catalog.Translation {
	return catalog.Translation{
		ID: id, SeriesID: 7, EpisodeID: episodeID, Type: "voiceRu", TypeKind: "voice",
		AuthorsSummary: author, Height: height, IsActive: true,
	}
}

func unkeyed(t catalog.Translation) catalog.Translation {
	t.SeriesID = 0
	return t
}

type fixture struct {
	player       *Player
	catalog      *fakeCatalog
	continuation *fakeContinuation
	prefs        *preference.Store
}

type option func(*Config)

func withProgress(watched int) option {
	return func(c *Config) {
		c.Progress = tracker.ProgressFunc(func() (int, bool) { return watched, true })
	}
}

func withTitles(t Titles) option {
	return func(c *Config) { c.Titles = t }
}

func newFixture(t *testing.T, eps []*catalog.Episode, opts ...option) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)

	store := preference.NewStore(db)
	writer := preference.NewWriter(store, nil)
	resolver := scoring.NewResolver(scoring.Config{Preferences: writer})
	t.Cleanup(resolver.Close)

	cat := newFakeCatalog()
	cat.series[7] = &catalog.Series{ID: 7, MyAnimeListID: 1535, Title: "Test", Type: "tv", Episodes: eps}
	for _, e := range eps {
		cat.episodes[e.ID] = []catalog.Translation{translation(e.ID*10, e.ID, "AniDUB", 720)}
	}

	cont := &fakeContinuation{result: &sequel.Candidate{ID: 2000, SeriesID: 8, EpisodeInt: 1, Episodes: 12}}
	cfg := Config{
		Catalog:      cat,
		Resolver:     resolver,
		Preferences:  writer,
		Continuation: cont,
	}
	for _, o := range opts {
		o(&cfg)
	}

	p := New(cfg)
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return &fixture{player: p, catalog: cat, continuation: cont, prefs: store}
}

func TestStartEpisode(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		numbers []string
		opts    []option
		want    string
	}{
		{name: "no rating starts at one", numbers: []string{"1", "2", "3"}, want: "1"},
		{name: "resumes after watched", numbers: []string{"1", "2", "3"}, opts: []option{withProgress(1)}, want: "2"},
		{name: "gap falls back to watched", numbers: []string{"1", "2", "3", "5"}, opts: []option{withProgress(3)}, want: "3"},
		{name: "gap skips ahead", numbers: []string{"1", "2", "3", "5"}, opts: []option{withProgress(4)}, want: "5"},
		{name: "missing first episode stays unselected", numbers: []string{"2", "3"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, episodes(tt.numbers...), tt.opts...)
			require.NoError(t, f.player.LoadSeries(ctx, 7))

			cur := f.player.CurrentEpisode()
			if tt.want == "" {
				assert.Nil(t, cur)
				assert.Equal(t, StateSeriesLoaded, f.player.State())
				return
			}
			require.NotNil(t, cur)
			assert.Equal(t, tt.want, cur.EpisodeInt)
			assert.Equal(t, StateTranslationSelected, f.player.State())
		})
	}
}

func TestLoadSeries(t *testing.T) {
	ctx := context.Background()

	t.Run("second load of the same series is a no-op", func(t *testing.T) {
		f := newFixture(t, episodes("1", "2"))
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		assert.Equal(t, 1, f.catalog.count("series/7"))
	})

	t.Run("empty series is unavailable", func(t *testing.T) {
		f := newFixture(t, nil)
		err := f.player.LoadSeries(ctx, 7)
		assert.True(t, apperr.Is(err, apperr.KindDataUnavailable))
		assert.Equal(t, StateNoSeries, f.player.State())
	})

	t.Run("titles are attached to regular episodes", func(t *testing.T) {
		eps := episodes("1", "2", "2.5")
		eps[1].EpisodeTitle = "Kept"
		f := newFixture(t, eps, withTitles(fakeTitles{episodes: []titles.Episode{
			{EpisodeID: 1, Title: "Start"},
			{EpisodeID: 2, Title: "Ignored"},
		}}))
		require.NoError(t, f.player.LoadSeries(ctx, 7))

		got := f.player.Episodes()
		require.Len(t, got, 3)
		assert.Equal(t, "1. Start", got[0].EpisodeFull)
		assert.Equal(t, "Kept", got[1].EpisodeTitle)
		assert.Empty(t, got[2].EpisodeTitle)
	})

	t.Run("title failure keeps the series", func(t *testing.T) {
		f := newFixture(t, episodes("1"), withTitles(fakeTitles{err: apperr.Unavailable("down")}))
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		assert.NotNil(t, f.player.Series())
	})
}

func TestSelectEpisode(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown episode", func(t *testing.T) {
		f := newFixture(t, episodes("1"))
		assert.ErrorIs(t, f.player.SelectEpisode(ctx, 1), ErrNoSeries)

		require.NoError(t, f.player.LoadSeries(ctx, 7))
		assert.ErrorIs(t, f.player.SelectEpisode(ctx, 999), ErrUnknownEpisode)
	})

	t.Run("next episode translations are preloaded once", func(t *testing.T) {
		f := newFixture(t, episodes("1", "2", "3"))
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		f.player.Wait()

		got := f.player.Episodes()
		assert.True(t, got[1].TranslationsLoaded())
		assert.False(t, got[2].TranslationsLoaded())

		require.NoError(t, f.player.NavigateNext(ctx))
		f.player.Wait()
		assert.Equal(t, 1, f.catalog.count("episode/101"))
		assert.Equal(t, "2", f.player.CurrentEpisode().EpisodeInt)
		assert.Equal(t, 1010, f.player.CurrentTranslation().ID)
	})

	t.Run("previous choice steers the next episode", func(t *testing.T) {
		f := newFixture(t, episodes("1", "2"))
		f.catalog.episodes[100] = []catalog.Translation{
			translation(1, 100, "AniDUB", 720),
			translation(2, 100, "Shiza", 1080),
		}
		f.catalog.episodes[101] = []catalog.Translation{
			translation(3, 101, "Shiza", 1080),
			translation(4, 101, "AniDUB", 720),
		}
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		assert.Equal(t, 2, f.player.CurrentTranslation().ID)

		require.NoError(t, f.player.SelectTranslation(ctx, 1))
		require.NoError(t, f.player.NavigateNext(ctx))
		assert.Equal(t, 4, f.player.CurrentTranslation().ID)
	})

	t.Run("choice steers the next episode without a series id in the payload", func(t *testing.T) {
		eps := episodes("1", "2")
		for _, e := range eps {
			e.SeriesID = 0
		}
		f := newFixture(t, eps)
		f.catalog.episodes[100] = []catalog.Translation{
			unkeyed(translation(1, 100, "AniDUB", 1080)),
			unkeyed(translation(2, 100, "AniLibria", 720)),
		}
		f.catalog.episodes[101] = []catalog.Translation{
			unkeyed(translation(3, 101, "AniDUB", 1080)),
			unkeyed(translation(4, 101, "AniLibria", 720)),
		}
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		assert.Equal(t, 7, f.player.CurrentEpisode().SeriesID)
		assert.Equal(t, 1, f.player.CurrentTranslation().ID)

		require.NoError(t, f.player.SelectTranslation(ctx, 2))
		require.NoError(t, f.player.NavigateNext(ctx))
		assert.Equal(t, 4, f.player.CurrentTranslation().ID)

		require.NoError(t, f.player.Close(ctx))
		pref, err := f.prefs.Get(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, pref)
		assert.Equal(t, 4, pref.ID)
		assert.Equal(t, 7, pref.SeriesID)

		orphan, err := f.prefs.Get(ctx, 0)
		require.NoError(t, err)
		assert.Nil(t, orphan)
	})

	t.Run("empty translation list is fetched once", func(t *testing.T) {
		eps := episodes("1", "2")
		eps[0].Translations = []catalog.Translation{}
		f := newFixture(t, eps)
		f.catalog.episodes[100] = nil
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		assert.Equal(t, 1, f.catalog.count("episode/100"))
		assert.Equal(t, StateEpisodeSelected, f.player.State())

		require.NoError(t, f.player.NavigateNext(ctx))
		require.NoError(t, f.player.NavigatePrevious(ctx))
		f.player.Wait()
		assert.Equal(t, 1, f.catalog.count("episode/100"))
		assert.Equal(t, "1", f.player.CurrentEpisode().EpisodeInt)
	})

	t.Run("resolved translation is stored as preference", func(t *testing.T) {
		f := newFixture(t, episodes("1"))
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		require.NoError(t, f.player.Close(ctx))

		pref, err := f.prefs.Get(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, pref)
		assert.Equal(t, 1000, pref.ID)
	})
}

func TestNavigation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, episodes("1", "3", "10"))

	require.NoError(t, f.player.NavigateNext(ctx))
	assert.Nil(t, f.player.CurrentEpisode())

	require.NoError(t, f.player.LoadSeries(ctx, 7))
	assert.Nil(t, f.player.PreviousEpisode())
	require.NoError(t, f.player.NavigatePrevious(ctx))
	assert.Equal(t, "1", f.player.CurrentEpisode().EpisodeInt)

	require.NoError(t, f.player.NavigateNext(ctx))
	assert.Equal(t, "3", f.player.CurrentEpisode().EpisodeInt)
	assert.Equal(t, "1", f.player.PreviousEpisode().EpisodeInt)
	assert.Equal(t, "10", f.player.NextEpisode().EpisodeInt)

	require.NoError(t, f.player.NavigateNext(ctx))
	assert.Nil(t, f.player.NextEpisode())
	require.NoError(t, f.player.NavigateNext(ctx))
	assert.Equal(t, "10", f.player.CurrentEpisode().EpisodeInt)
}

func TestSelectTranslation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, episodes("1", "2"))
	require.NoError(t, f.player.LoadSeries(ctx, 7))
	require.NoError(t, f.player.NavigateNext(ctx))
	f.player.Wait()

	// translation of the previous episode is still found
	require.NoError(t, f.player.SelectTranslation(ctx, 1000))
	assert.Equal(t, 1000, f.player.CurrentTranslation().ID)

	assert.ErrorIs(t, f.player.SelectTranslation(ctx, 999), ErrUnknownTranslation)
	assert.Equal(t, 1000, f.player.CurrentTranslation().ID)
}

func TestCurrentTranslationPrefersCurrentEpisode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, episodes("1", "2"))
	shared := func(episodeID int, embed string) catalog.Translation {
		tr := translation(55, episodeID, "AniDUB", 720)
		tr.EmbedURL = embed
		return tr
	}
	f.catalog.episodes[100] = []catalog.Translation{shared(100, "https://example.org/embed/current")}
	f.catalog.episodes[101] = []catalog.Translation{shared(101, "https://example.org/embed/next")}

	require.NoError(t, f.player.LoadSeries(ctx, 7))
	f.player.Wait()
	require.True(t, f.player.NextEpisode().TranslationsLoaded())

	require.NoError(t, f.player.SelectTranslation(ctx, 55))
	got := f.player.CurrentTranslation()
	require.NotNil(t, got)
	assert.Equal(t, "https://example.org/embed/current", got.EmbedURL)
	assert.Equal(t, 100, got.EpisodeID)
}

func TestContinuation(t *testing.T) {
	ctx := context.Background()

	t.Run("resolved once per series", func(t *testing.T) {
		f := newFixture(t, episodes("1", "2"), withProgress(1))
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		f.player.Wait()

		next := f.player.NextSeason()
		require.NotNil(t, next)
		assert.Equal(t, 8, next.SeriesID)

		require.NoError(t, f.player.NavigatePrevious(ctx))
		require.NoError(t, f.player.NavigateNext(ctx))
		f.player.Wait()
		assert.Equal(t, 1, f.continuation.count())
	})

	t.Run("not requested while a next episode exists", func(t *testing.T) {
		f := newFixture(t, episodes("1", "2"))
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		f.player.Wait()
		assert.Zero(t, f.continuation.count())
		assert.Nil(t, f.player.NextSeason())
	})

	t.Run("no sequel leaves next season empty", func(t *testing.T) {
		f := newFixture(t, episodes("1"))
		f.continuation.result = nil
		require.NoError(t, f.player.LoadSeries(ctx, 7))
		f.player.Wait()
		assert.Equal(t, 1, f.continuation.count())
		assert.Nil(t, f.player.NextSeason())
	})
}

func TestState(t *testing.T) {
	assert.Equal(t, "no-series", StateNoSeries.String())
	assert.Equal(t, "translation-selected", StateTranslationSelected.String())
}
