// Package player owns the episode and translation selection state of the
// series being watched.
package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/justchokingaround/shikiplay/internal/catalog"
	"github.com/justchokingaround/shikiplay/internal/notice"
	"github.com/justchokingaround/shikiplay/internal/sequel"
	"github.com/justchokingaround/shikiplay/internal/titles"
	"github.com/justchokingaround/shikiplay/internal/tracker"
)

var (
	// ErrNoSeries is returned by commands that need a loaded series
	ErrNoSeries = errors.New("no series loaded")
	// ErrUnknownEpisode is returned when an episode id is not in the series
	ErrUnknownEpisode = errors.New("episode not in series")
	// ErrUnknownTranslation is returned when no loaded episode has the translation
	ErrUnknownTranslation = errors.New("translation not loaded")
)

// State is the selection state of a Player
type State int

const (
	StateNoSeries State = iota
	StateSeriesLoaded
	StateEpisodeSelected
	StateTranslationSelected
)

func (s State) String() string {
	switch s {
	case StateSeriesLoaded:
		return "series-loaded"
	case StateEpisodeSelected:
		return "episode-selected"
	case StateTranslationSelected:
		return "translation-selected"
	default:
		return "no-series"
	}
}

// Catalog fetches series and episodes
type Catalog interface {
	Series(ctx context.Context, seriesID int) (*catalog.Series, error)
	Episode(ctx context.Context, episodeID int) (*catalog.Episode, error)
}

// Titles fetches episode titles by MyAnimeList id
type Titles interface {
	All(ctx context.Context, malID int) ([]titles.Episode, error)
}

// Resolver picks a translation for an episode
type Resolver interface {
	Resolve(ctx context.Context, ep *catalog.Episode) (*catalog.Translation, error)
}

// Preferences records chosen translations
type Preferences interface {
	Enqueue(seriesID int, t catalog.Translation)
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// Continuation finds the sequel of an anime
type Continuation interface {
	ResolveNext(ctx context.Context, animeID int) (*sequel.Candidate, error)
}

// Config wires a Player to its collaborators. Titles, Continuation,
// Preferences, Progress and Reporter are optional.
type Config struct {
	Catalog      Catalog
	Titles       Titles
	Resolver     Resolver
	Preferences  Preferences
	Continuation Continuation
	Progress     tracker.ViewerProgress
	Reporter     *notice.Reporter
	Logger       *slog.Logger
}

// Player is the only owner of the selection state. Views return copies.
type Player struct {
	catalog      Catalog
	titles       Titles
	resolver     Resolver
	prefs        Preferences
	continuation Continuation
	progress     tracker.ViewerProgress
	reporter     *notice.Reporter
	logger       *slog.Logger

	mu                   sync.RWMutex
	series               *catalog.Series
	currentEpisodeID     int
	currentTranslationID int
	nextSeason           *sequel.Candidate
	continuationStarted  bool
	closed               bool

	// selectMu serializes SelectEpisode and with it every resolver call
	selectMu sync.Mutex

	bg       context.Context
	cancelBg context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Player
func New(cfg Config) *Player {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Progress == nil {
		cfg.Progress = tracker.NoProgress
	}
	bg, cancel := context.WithCancel(context.Background())
	return &Player{
		catalog:      cfg.Catalog,
		titles:       cfg.Titles,
		resolver:     cfg.Resolver,
		prefs:        cfg.Preferences,
		continuation: cfg.Continuation,
		progress:     cfg.Progress,
		reporter:     cfg.Reporter,
		logger:       cfg.Logger.With("component", "player"),
		bg:           bg,
		cancelBg:     cancel,
	}
}

// State returns the current selection state
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	switch {
	case p.series == nil:
		return StateNoSeries
	case p.currentEpisodeID == 0:
		return StateSeriesLoaded
	case p.currentTranslationID == 0:
		return StateEpisodeSelected
	default:
		return StateTranslationSelected
	}
}

// Series returns the loaded series without its episodes, or nil
func (p *Player) Series() *catalog.Series {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.series == nil {
		return nil
	}
	s := *p.series
	s.Episodes = nil
	return &s
}

// Episodes returns the normalized episode list
func (p *Player) Episodes() []*catalog.Episode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.series == nil {
		return nil
	}
	out := make([]*catalog.Episode, len(p.series.Episodes))
	for i, e := range p.series.Episodes {
		out[i] = e.Clone()
	}
	return out
}

// currentIndex is the position of the current episode, or -1. Callers hold mu.
func (p *Player) currentIndex() int {
	if p.series == nil || p.currentEpisodeID == 0 {
		return -1
	}
	for i, e := range p.series.Episodes {
		if e.ID == p.currentEpisodeID {
			return i
		}
	}
	return -1
}

// at returns the episode at position i, or nil. Callers hold mu.
func (p *Player) at(i int) *catalog.Episode {
	if p.series == nil || i < 0 || i >= len(p.series.Episodes) {
		return nil
	}
	return p.series.Episodes[i]
}

func (p *Player) neighbor(offset int) *catalog.Episode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i := p.currentIndex()
	if i < 0 {
		return nil
	}
	return p.at(i + offset).Clone()
}

// CurrentEpisode returns the selected episode, or nil
func (p *Player) CurrentEpisode() *catalog.Episode {
	return p.neighbor(0)
}

// PreviousEpisode returns the episode before the current one, or nil
func (p *Player) PreviousEpisode() *catalog.Episode {
	return p.neighbor(-1)
}

// NextEpisode returns the episode after the current one, or nil
func (p *Player) NextEpisode() *catalog.Episode {
	return p.neighbor(1)
}

// findTranslation looks for id in the current, next and previous episodes,
// then in the whole list. Callers hold mu.
func (p *Player) findTranslation(id int) *catalog.Translation {
	if p.series == nil || id == 0 {
		return nil
	}

	i := p.currentIndex()
	order := make([]*catalog.Episode, 0, len(p.series.Episodes)+3)
	if i >= 0 {
		order = append(order, p.at(i), p.at(i+1), p.at(i-1))
	}
	order = append(order, p.series.Episodes...)

	for _, e := range order {
		if e == nil || len(e.Translations) == 0 {
			continue
		}
		for j := range e.Translations {
			if e.Translations[j].ID == id {
				t := e.Translations[j]
				return &t
			}
		}
	}
	return nil
}

// CurrentTranslation returns the selected translation, or nil
func (p *Player) CurrentTranslation() *catalog.Translation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.findTranslation(p.currentTranslationID)
}

// NextSeason returns the resolved continuation, or nil
func (p *Player) NextSeason() *sequel.Candidate {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.nextSeason == nil {
		return nil
	}
	c := *p.nextSeason
	return &c
}

// Wait blocks until background preloads and continuation lookups finish
func (p *Player) Wait() {
	p.wg.Wait()
}

// Close stops background work and flushes preference writes
func (p *Player) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancelBg()
	p.wg.Wait()
	if p.prefs == nil {
		return nil
	}
	return p.prefs.Close(ctx)
}

func (p *Player) handle(ctx context.Context, err error, action notice.Action) {
	if ctx.Err() != nil {
		p.logger.Debug("request abandoned", "action", action.Name, "error", err)
		return
	}
	if p.reporter == nil {
		p.logger.Error("request failed", "action", action.Name, "error", err)
		return
	}
	p.reporter.Handle(ctx, err, action)
}
