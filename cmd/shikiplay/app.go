package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/justchokingaround/shikiplay/internal/auth"
	"github.com/justchokingaround/shikiplay/internal/catalog"
	"github.com/justchokingaround/shikiplay/internal/config"
	"github.com/justchokingaround/shikiplay/internal/database"
	"github.com/justchokingaround/shikiplay/internal/gateway"
	"github.com/justchokingaround/shikiplay/internal/history"
	"github.com/justchokingaround/shikiplay/internal/notice"
	"github.com/justchokingaround/shikiplay/internal/player"
	"github.com/justchokingaround/shikiplay/internal/preference"
	"github.com/justchokingaround/shikiplay/internal/scoring"
	"github.com/justchokingaround/shikiplay/internal/sequel"
	"github.com/justchokingaround/shikiplay/internal/titles"
	"github.com/justchokingaround/shikiplay/internal/tracker/shikimori"
)

// app is the wired object graph shared by the commands
type app struct {
	gateway  *gateway.Gateway
	queue    *notice.Queue
	reporter *notice.Reporter
	sentry   *notice.SentryTracker
	creds    *auth.Manager
	catalog  *catalog.Client
	rating   *shikimori.Client
	session  *shikimori.Session
	history  *history.Service
	prefs    *preference.Writer
	store    *preference.Store
	resolver *scoring.Resolver
	sequels  *sequel.Resolver
	player   *player.Player
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	perms := gateway.NewPermissions(cfg.Gateway.Origins...)
	a.gateway = gateway.New(gateway.Config{
		Permissions: perms,
		Client: gateway.ClientConfig{
			Timeout:      cfg.API.Timeout,
			MaxRetries:   cfg.Gateway.MaxRetries,
			RetryWait:    cfg.Gateway.RetryWait,
			RetryMaxWait: cfg.Gateway.RetryMaxWait,
			UserAgent:    cfg.Gateway.UserAgent,
			Debug:        cfg.Gateway.Debug,
			Logger:       logger,
		},
		Logger: logger,
	})

	var tracker notice.Tracker = notice.NewLogTracker(logger)
	if cfg.Reporting.SentryDSN != "" {
		st, err := notice.NewSentryTracker(cfg.Reporting.SentryDSN, cfg.Reporting.Environment, version)
		if err != nil {
			logger.Warn("failed to initialize sentry, falling back to log tracker", "error", err)
		} else {
			a.sentry = st
			tracker = st
		}
	}

	kv := database.NewKV(database.DB)
	a.queue = notice.NewQueue(kv)
	a.reporter = notice.NewReporter(a.queue, notice.NewLocalizer(cfg.Player.Locale), tracker, logger)

	a.creds = auth.NewManager(auth.ManagerConfig{
		Store: kv,
		Authorizer: auth.NewOAuthAuthorizer(auth.OAuthConfig{
			BaseURL:      cfg.API.RatingURL,
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			RedirectURI:  cfg.Auth.RedirectURI,
			CallbackPort: cfg.Auth.CallbackPort,
			Scopes:       cfg.Auth.Scopes,
			UserAgent:    cfg.Gateway.UserAgent,
			Permissions:  perms,
			Logger:       logger,
		}),
		Reporter: a.reporter,
		Logger:   logger,
	})

	a.catalog = catalog.NewClient(catalog.Config{
		BaseURL:       cfg.API.CatalogURL,
		Fetcher:       a.gateway,
		UnknownAuthor: a.reporter.Localizer().Text(notice.KeyUnknownAuthor),
	})
	a.rating = shikimori.NewClient(cfg.API.RatingURL, a.gateway)
	a.history = history.NewService(database.DB, history.DefaultLimit)
	a.session = shikimori.NewSession(shikimori.SessionConfig{
		Client:      a.rating,
		Credentials: a.creds,
		Reporter:    a.reporter,
		History:     a.history,
		Logger:      logger,
	})

	a.store = preference.NewStore(database.DB)
	a.prefs = preference.NewWriter(a.store, logger)
	a.resolver = scoring.NewResolver(scoring.Config{
		Preferences:   a.prefs,
		PreferredType: cfg.Player.PreferredType,
		Logger:        logger,
	})
	a.sequels = sequel.NewResolver(sequel.Config{
		Rating:      a.rating,
		Catalog:     a.catalog,
		Credentials: a.creds,
		Reporter:    a.reporter,
		Logger:      logger,
	})
	a.player = player.New(player.Config{
		Catalog:      a.catalog,
		Titles:       titles.NewClient(cfg.API.TitleURL, a.gateway),
		Resolver:     a.resolver,
		Preferences:  a.prefs,
		Continuation: a.sequels,
		Progress:     a.session,
		Reporter:     a.reporter,
		Logger:       logger,
	})

	return a, nil
}

// permissions exposes the live permission set for config reloads
func (a *app) permissions() *gateway.Permissions {
	return a.gateway.Permissions()
}

// close flushes preferences and stops background goroutines
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.player.Close(ctx)
	a.resolver.Close()
	a.gateway.Close()
	if a.sentry != nil {
		a.sentry.Flush(2 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to flush preferences: %w", err)
	}
	return nil
}
