// Package sequel finds the series that continues the one being watched
package sequel

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/justchokingaround/shikiplay/internal/apperr"
	"github.com/justchokingaround/shikiplay/internal/auth"
	"github.com/justchokingaround/shikiplay/internal/catalog"
	"github.com/justchokingaround/shikiplay/internal/notice"
	"github.com/justchokingaround/shikiplay/internal/tracker/shikimori"
)

// Candidate is a resolved continuation
type Candidate struct {
	// ID is the franchise node id, which is also the MyAnimeList id
	ID   int    `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	// SeriesID is the matching catalog series
	SeriesID int `json:"series"`
	// EpisodeInt is where to resume; zero when the viewer never rated it
	EpisodeInt int `json:"episodeInt,omitempty"`
	// Episodes is the number of playable episodes after normalization
	Episodes int `json:"episodes"`
}

// Rating is the rating service used to walk the franchise
type Rating interface {
	Franchise(ctx context.Context, animeID int) (*shikimori.Franchise, error)
	Anime(ctx context.Context, animeID int, cred *auth.Credential) (*shikimori.Anime, error)
}

// Catalog is the catalog lookup by MyAnimeList id
type Catalog interface {
	FirstSeriesByMyAnimeListID(ctx context.Context, malID int) (*catalog.Series, error)
}

// Resolver resolves continuations
type Resolver struct {
	rating   Rating
	catalog  Catalog
	creds    shikimori.Credentials
	reporter *notice.Reporter
	logger   *slog.Logger
}

// Config configures a Resolver
type Config struct {
	Rating      Rating
	Catalog     Catalog
	Credentials shikimori.Credentials
	Reporter    *notice.Reporter
	Logger      *slog.Logger
}

// NewResolver creates a resolver
func NewResolver(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{
		rating:   cfg.Rating,
		catalog:  cfg.Catalog,
		creds:    cfg.Credentials,
		reporter: cfg.Reporter,
		logger:   cfg.Logger.With("component", "sequel"),
	}
}

func (r *Resolver) handle(ctx context.Context, err error, action notice.Action) {
	if r.reporter == nil {
		r.logger.Warn("lookup failed", "action", action.Name, "error", err)
		return
	}
	r.reporter.Handle(ctx, err, action)
}

// ResolveNext returns the sequel of animeID with a non-empty catalog
// series. Every lookup failure is reported and degrades to "no sequel",
// which is returned as a DataUnavailable error.
func (r *Resolver) ResolveNext(ctx context.Context, animeID int) (*Candidate, error) {
	franchise, err := r.rating.Franchise(ctx, animeID)
	if err != nil {
		r.handle(ctx, err, notice.ActionLoadFranchise)
		franchise = &shikimori.Franchise{}
	}

	node, ok := franchise.Sequel(animeID)
	if !ok {
		return nil, apperr.Unavailable(fmt.Sprintf("anime %d has no sequel", animeID))
	}
	r.logger.Debug("sequel found", "anime_id", animeID, "sequel_id", node.ID)

	var (
		series *catalog.Series
		anime  *shikimori.Anime
	)
	// Branches report their own failures so one never cancels the other
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := r.catalog.FirstSeriesByMyAnimeListID(gctx, node.ID)
		if err != nil {
			r.handle(gctx, err, notice.ActionLoadSequelSeries)
			return nil
		}
		series = s
		return nil
	})
	g.Go(func() error {
		cred := r.credential(gctx)
		if cred == nil {
			return nil
		}
		a, err := r.rating.Anime(gctx, node.ID, cred)
		if err != nil {
			r.handle(gctx, err, notice.ActionLoadSequelRate)
			return nil
		}
		anime = a
		return nil
	})
	_ = g.Wait()

	if series == nil || !catalog.Normalize(series) {
		return nil, apperr.Unavailable(fmt.Sprintf("sequel %d has no playable episodes", node.ID))
	}

	c := &Candidate{
		ID:       node.ID,
		Name:     node.Name,
		Kind:     node.Kind,
		SeriesID: series.ID,
		Episodes: len(series.Episodes),
	}
	if anime != nil && anime.UserRate != nil {
		c.EpisodeInt = anime.UserRate.Episodes + 1
	}
	return c, nil
}

func (r *Resolver) credential(ctx context.Context) *auth.Credential {
	if r.creds == nil {
		return nil
	}
	cred, err := r.creds.GetValidCredential(ctx, false)
	if err != nil {
		r.logger.Error("failed to read credential", "error", err)
		return nil
	}
	return cred
}
