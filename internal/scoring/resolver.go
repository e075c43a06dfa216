package scoring

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/justchokingaround/shikiplay/internal/catalog"
)

var (
	// ErrBusy is returned when a resolution is already in flight
	ErrBusy = errors.New("translation resolver busy")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("translation resolver closed")
)

// Preferences reads the translation last picked for a series
type Preferences interface {
	Get(ctx context.Context, seriesID int) (*catalog.Translation, error)
}

// request is the only thing the worker sees; it owns every pointer in it
type request struct {
	episode   *catalog.Episode
	preferred *catalog.Translation
	reply     chan *catalog.Translation
}

// Resolver hands episodes to a scoring worker goroutine, one at a time
type Resolver struct {
	prefs         Preferences
	preferredType string
	logger        *slog.Logger

	slot      chan struct{}
	work      chan request
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Config configures a Resolver
type Config struct {
	Preferences Preferences
	// PreferredType ranks translations of this type higher, e.g. "voiceRu"
	PreferredType string
	Logger        *slog.Logger
}

// NewResolver starts the worker; call Close to stop it
func NewResolver(cfg Config) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := &Resolver{
		prefs:         cfg.Preferences,
		preferredType: cfg.PreferredType,
		logger:        cfg.Logger.With("component", "scoring"),
		slot:          make(chan struct{}, 1),
		work:          make(chan request),
		done:          make(chan struct{}),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Resolve returns the best translation for ep or nil when it has none. A
// call made while another is pending fails with ErrBusy; cancelling ctx
// frees the slot.
func (r *Resolver) Resolve(ctx context.Context, ep *catalog.Episode) (*catalog.Translation, error) {
	select {
	case r.slot <- struct{}{}:
	default:
		return nil, ErrBusy
	}
	defer func() { <-r.slot }()

	req := request{
		episode: ep.Clone(),
		reply:   make(chan *catalog.Translation, 1),
	}
	if r.prefs != nil && ep != nil {
		pref, err := r.prefs.Get(ctx, ep.SeriesID)
		if err != nil {
			r.logger.Warn("failed to read preference", "series_id", ep.SeriesID, "error", err)
		}
		req.preferred = pref
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case r.work <- req:
	case <-r.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case t := <-req.reply:
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the worker
func (r *Resolver) Close() {
	r.closeOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *Resolver) worker() {
	defer r.wg.Done()
	for {
		select {
		case req := <-r.work:
			best := Best(req.episode, req.preferred, r.preferredType)
			if best != nil {
				r.logger.Debug("translation picked", "episode_id", req.episode.ID, "translation_id", best.ID, "authors", best.AuthorsSummary)
			}
			req.reply <- best
		case <-r.done:
			return
		}
	}
}
