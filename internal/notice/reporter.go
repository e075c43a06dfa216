package notice

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/justchokingaround/shikiplay/internal/apperr"
)

// Tracker receives the technical detail users never see
type Tracker interface {
	Capture(ctx context.Context, err error, tags map[string]string)
}

// LogTracker writes captured errors to a logger
type LogTracker struct {
	logger *slog.Logger
}

// NewLogTracker creates a tracker that logs at error level
func NewLogTracker(logger *slog.Logger) *LogTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTracker{logger: logger}
}

// Capture implements Tracker
func (t *LogTracker) Capture(ctx context.Context, err error, tags map[string]string) {
	args := []any{"error", err}
	for k, v := range tags {
		args = append(args, k, v)
	}
	t.logger.ErrorContext(ctx, "captured error", args...)
}

// SentryTracker reports to Sentry
type SentryTracker struct {
	hub *sentry.Hub
}

// NewSentryTracker initializes the Sentry SDK
func NewSentryTracker(dsn, environment, release string) (*SentryTracker, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, err
	}
	return &SentryTracker{hub: sentry.CurrentHub()}, nil
}

// Capture implements Tracker
func (t *SentryTracker) Capture(_ context.Context, err error, tags map[string]string) {
	t.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		t.hub.CaptureException(err)
	})
}

// Flush waits for buffered events
func (t *SentryTracker) Flush(timeout time.Duration) bool {
	return t.hub.Flush(timeout)
}

// Action names what the user was doing when an error happened and which
// notices to show for it. A zero Failed key means client errors are only
// tracked; server errors then fall back to KeyGenericFailed.
type Action struct {
	Name   string
	Denied Key
	Failed Key
}

var (
	ActionLoadAnime         = Action{Name: "load_anime", Denied: KeyAnimeDenied}
	ActionLoadFranchise     = Action{Name: "load_franchise", Denied: KeyNextSeasonDenied}
	ActionLoadSequelSeries  = Action{Name: "load_sequel_series", Denied: KeyNextSeasonSeriesDenied}
	ActionLoadSequelRate    = Action{Name: "load_sequel_rate", Denied: KeyUserRateDenied}
	ActionLoadUser          = Action{Name: "load_user", Denied: KeyProfileDenied}
	ActionSaveUserRate      = Action{Name: "save_user_rate", Denied: KeySyncDenied, Failed: KeySyncFailed}
	ActionAuthorize         = Action{Name: "authorize", Denied: KeyAuthDenied, Failed: KeyAuthFailed}
	ActionLoadSeries        = Action{Name: "load_series", Denied: KeySeriesDenied, Failed: KeyGenericFailed}
	ActionLoadTranslations  = Action{Name: "load_translations", Denied: KeySeriesDenied}
	ActionLoadEpisodeTitles = Action{Name: "load_episode_titles", Denied: KeyTitlesDenied}
)

// Reporter turns errors into queued notices and tracker reports
type Reporter struct {
	queue   *Queue
	loc     *Localizer
	tracker Tracker
	logger  *slog.Logger
}

// NewReporter creates a reporter
func NewReporter(queue *Queue, loc *Localizer, tracker Tracker, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	if tracker == nil {
		tracker = NewLogTracker(logger)
	}
	return &Reporter{queue: queue, loc: loc, tracker: tracker, logger: logger}
}

// Localizer returns the reporter's localizer
func (r *Reporter) Localizer() *Localizer {
	return r.loc
}

// Handle routes err by kind. It is a no-op for a nil err.
func (r *Reporter) Handle(ctx context.Context, err error, action Action) {
	if err == nil {
		return
	}
	log := r.logger.With("action", action.Name)
	tags := map[string]string{"action": action.Name}

	switch kind := apperr.KindOf(err); kind {
	case apperr.KindPermissionDenied:
		log.Warn("permission denied", "error", err)
		r.push(ctx, action.Denied)
	case apperr.KindDataUnavailable:
		log.Debug("data unavailable", "error", err)
	case apperr.KindClientError:
		log.Warn("client error", "error", err)
		tags["kind"] = kind.String()
		r.tracker.Capture(ctx, err, tags)
		if action.Failed != "" {
			r.push(ctx, action.Failed)
		}
	case apperr.KindServerError, apperr.KindUnknown:
		log.Error("request failed", "error", err)
		tags["kind"] = kind.String()
		r.tracker.Capture(ctx, err, tags)
		if action.Failed != "" {
			r.push(ctx, action.Failed)
		} else {
			r.push(ctx, KeyGenericFailed)
		}
	}
}

// Notify queues a localized notice
func (r *Reporter) Notify(ctx context.Context, key Key, color Color) {
	if err := r.queue.Push(ctx, Notice{ID: string(key), Text: r.loc.Text(key), Color: color}); err != nil {
		r.logger.Error("failed to queue notice", "key", key, "error", err)
	}
}

func (r *Reporter) push(ctx context.Context, key Key) {
	if key == "" {
		return
	}
	r.Notify(ctx, key, ColorError)
}
