package player

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/justchokingaround/shikiplay/internal/apperr"
	"github.com/justchokingaround/shikiplay/internal/catalog"
	"github.com/justchokingaround/shikiplay/internal/notice"
	"github.com/justchokingaround/shikiplay/internal/titles"
)

// LoadSeries fetches and normalizes a series, selects the episode to start
// from and attaches episode titles. Loading the series that is already
// loaded is a no-op.
func (p *Player) LoadSeries(ctx context.Context, seriesID int) error {
	p.mu.RLock()
	loaded := p.series != nil && p.series.ID == seriesID
	p.mu.RUnlock()
	if loaded {
		return nil
	}

	s, err := p.catalog.Series(ctx, seriesID)
	if err != nil {
		p.handle(ctx, err, notice.ActionLoadSeries)
		return err
	}
	if !catalog.Normalize(s) {
		err := apperr.Unavailable(fmt.Sprintf("series %d has no playable episodes", seriesID))
		p.handle(ctx, err, notice.ActionLoadSeries)
		return err
	}
	// episode payloads do not always carry their series, and an embedded
	// empty translation list has not been fetched yet
	for _, e := range s.Episodes {
		e.SeriesID = s.ID
		if len(e.Translations) == 0 {
			e.Translations = nil
		}
	}

	p.mu.Lock()
	p.series = s
	p.currentEpisodeID = 0
	p.currentTranslationID = 0
	p.nextSeason = nil
	p.continuationStarted = false
	start := p.startEpisode()
	p.mu.Unlock()

	p.logger.Info("series loaded", "series_id", s.ID, "type", s.Type, "episodes", len(s.Episodes))

	if start != nil {
		if err := p.SelectEpisode(ctx, start.ID); err != nil {
			return err
		}
	}

	// titles are cosmetic, a failure is reported and ignored
	_ = p.LoadEpisodeTitles(ctx)
	return nil
}

// startEpisode picks where to resume from the viewer's progress. Episode
// numbers can have gaps, so when the next number is missing the last
// watched one is tried. Callers hold mu.
func (p *Player) startEpisode() *catalog.Episode {
	target := 1
	watched, ok := p.progress.WatchedEpisodes()
	if ok {
		target = watched + 1
	}
	if ep := p.episodeByNumber(target); ep != nil {
		return ep
	}
	if target != 1 {
		return p.episodeByNumber(watched)
	}
	return nil
}

func (p *Player) episodeByNumber(n int) *catalog.Episode {
	for _, e := range p.series.Episodes {
		if num, ok := e.Number(); ok && num == float64(n) {
			return e
		}
	}
	return nil
}

// SelectEpisode makes episodeID current, loads its translations and selects
// the best one. When the episode is the last of the series the sequel is
// looked up in the background, once per series.
func (p *Player) SelectEpisode(ctx context.Context, episodeID int) error {
	p.selectMu.Lock()
	defer p.selectMu.Unlock()

	p.mu.Lock()
	if p.series == nil {
		p.mu.Unlock()
		return ErrNoSeries
	}
	i := -1
	for j, e := range p.series.Episodes {
		if e.ID == episodeID {
			i = j
			break
		}
	}
	if i < 0 {
		p.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownEpisode, episodeID)
	}
	p.currentEpisodeID = episodeID
	ep := p.at(i).Clone()
	next := p.at(i + 1).Clone()
	p.mu.Unlock()

	if next != nil && !next.TranslationsLoaded() {
		p.goBackground(func(ctx context.Context) {
			_ = p.LoadTranslations(ctx, next)
		})
	}

	if err := p.LoadTranslations(ctx, ep); err != nil {
		return err
	}

	if p.prefs != nil {
		if err := p.prefs.Flush(ctx); err != nil {
			p.logger.Warn("failed to flush preferences", "error", err)
		}
	}

	t, err := p.resolver.Resolve(ctx, ep)
	if err != nil {
		return fmt.Errorf("resolve translation for episode %d: %w", episodeID, err)
	}
	if t != nil {
		p.commitTranslation(episodeID, *t)
	}

	if next == nil {
		p.startContinuation()
	}
	return nil
}

// NavigateNext selects the episode after the current one, if any
func (p *Player) NavigateNext(ctx context.Context) error {
	next := p.NextEpisode()
	if next == nil {
		return nil
	}
	return p.SelectEpisode(ctx, next.ID)
}

// NavigatePrevious selects the episode before the current one, if any
func (p *Player) NavigatePrevious(ctx context.Context) error {
	prev := p.PreviousEpisode()
	if prev == nil {
		return nil
	}
	return p.SelectEpisode(ctx, prev.ID)
}

// LoadTranslations fetches the active translations of ep and splices them
// into both ep and the loaded series. Episodes whose translations were
// already fetched are left alone, even when none were active.
func (p *Player) LoadTranslations(ctx context.Context, ep *catalog.Episode) error {
	if ep == nil || ep.TranslationsLoaded() {
		return nil
	}

	fetched, err := p.catalog.Episode(ctx, ep.ID)
	if err != nil {
		p.handle(ctx, err, notice.ActionLoadTranslations)
		return err
	}
	active := catalog.ActiveTranslations(fetched.Translations)
	ep.Translations = active

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.series == nil {
		return nil
	}
	for _, e := range p.series.Episodes {
		if e.ID == ep.ID {
			e.Translations = append(make([]catalog.Translation, 0, len(active)), active...)
			break
		}
	}
	p.logger.Debug("translations loaded", "episode_id", ep.ID, "count", len(active))
	return nil
}

// SelectTranslation overrides the selected translation and remembers it as
// the preference of its series
func (p *Player) SelectTranslation(ctx context.Context, translationID int) error {
	p.mu.RLock()
	if p.series == nil {
		p.mu.RUnlock()
		return ErrNoSeries
	}
	t := p.findTranslation(translationID)
	episodeID := p.currentEpisodeID
	p.mu.RUnlock()
	if t == nil {
		return fmt.Errorf("%w: %d", ErrUnknownTranslation, translationID)
	}

	p.logger.DebugContext(ctx, "translation selected", "translation_id", t.ID, "author", t.AuthorsSummary)
	p.commitTranslation(episodeID, *t)
	return nil
}

// commitTranslation selects t unless another episode became current
// meanwhile, and queues the preference write
func (p *Player) commitTranslation(episodeID int, t catalog.Translation) {
	p.mu.Lock()
	if p.series == nil || p.currentEpisodeID != episodeID {
		p.mu.Unlock()
		return
	}
	p.currentTranslationID = t.ID
	seriesID := p.series.ID
	p.mu.Unlock()
	if t.SeriesID == 0 {
		t.SeriesID = seriesID
	}

	if p.prefs != nil {
		p.prefs.Enqueue(seriesID, t)
	}
}

// LoadEpisodeTitles attaches titles to regular episodes that have none yet.
// Titles from pages fetched before a failure are still applied.
func (p *Player) LoadEpisodeTitles(ctx context.Context) error {
	if p.titles == nil {
		return nil
	}
	p.mu.RLock()
	if p.series == nil || p.series.MyAnimeListID == 0 {
		p.mu.RUnlock()
		return nil
	}
	seriesID, malID := p.series.ID, p.series.MyAnimeListID
	p.mu.RUnlock()

	all, err := p.titles.All(ctx, malID)
	if err != nil {
		p.handle(ctx, err, notice.ActionLoadEpisodeTitles)
	}
	byNumber := titles.ByNumber(all)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.series == nil || p.series.ID != seriesID {
		return err
	}
	applied := 0
	for _, e := range p.series.Episodes {
		if e.EpisodeType == "special" {
			continue
		}
		n, ok := e.Number()
		if !ok || n != math.Trunc(n) {
			continue
		}
		if e.SetTitle(byNumber[int(n)]) {
			applied++
		}
	}
	p.logger.Debug("episode titles applied", "series_id", seriesID, "count", applied)
	return err
}

// startContinuation looks up the sequel in the background, at most once per
// loaded series. The result is dropped if the series changed meanwhile.
func (p *Player) startContinuation() {
	if p.continuation == nil {
		return
	}
	p.mu.Lock()
	if p.series == nil || p.continuationStarted || p.series.MyAnimeListID == 0 {
		p.mu.Unlock()
		return
	}
	p.continuationStarted = true
	seriesID, malID := p.series.ID, p.series.MyAnimeListID
	p.mu.Unlock()

	p.goBackground(func(ctx context.Context) {
		c, err := p.continuation.ResolveNext(ctx, malID)
		if err != nil {
			if !apperr.Is(err, apperr.KindDataUnavailable) && !errors.Is(err, context.Canceled) {
				p.logger.Warn("continuation lookup failed", "anime_id", malID, "error", err)
			}
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.series == nil || p.series.ID != seriesID {
			return
		}
		p.nextSeason = c
		p.logger.Info("next season found", "anime_id", c.ID, "series_id", c.SeriesID, "resume_at", c.EpisodeInt)
	})
}

// goBackground runs fn on the background context unless the player is closed
func (p *Player) goBackground(fn func(ctx context.Context)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn(p.bg)
	}()
}
