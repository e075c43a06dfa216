package shikimori

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/justchokingaround/shikiplay/internal/auth"
	"github.com/justchokingaround/shikiplay/internal/history"
	"github.com/justchokingaround/shikiplay/internal/notice"
	"github.com/justchokingaround/shikiplay/internal/tracker"
)

// Credentials is the part of auth.Manager the session needs
type Credentials interface {
	GetValidCredential(ctx context.Context, forceInteractive bool) (*auth.Credential, error)
}

// HistoryRecorder records saved rates in the watching history
type HistoryRecorder interface {
	Unshift(ctx context.Context, e history.Entry) error
}

// Session holds the anime and viewer being watched
type Session struct {
	client   *Client
	creds    Credentials
	reporter *notice.Reporter
	history  HistoryRecorder
	logger   *slog.Logger

	mu    sync.RWMutex
	anime *Anime
	user  *User
}

// SessionConfig configures a Session
type SessionConfig struct {
	Client      *Client
	Credentials Credentials
	Reporter    *notice.Reporter
	History     HistoryRecorder
	Logger      *slog.Logger
}

// NewSession creates a session
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		client:   cfg.Client,
		creds:    cfg.Credentials,
		reporter: cfg.Reporter,
		history:  cfg.History,
		logger:   cfg.Logger.With("component", "shikimori"),
	}
}

var _ tracker.ViewerProgress = (*Session)(nil)

// Anime returns a copy of the loaded anime, or nil
func (s *Session) Anime() *Anime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.anime == nil {
		return nil
	}
	a := *s.anime
	if a.UserRate != nil {
		r := *a.UserRate
		a.UserRate = &r
	}
	return &a
}

// User returns the loaded viewer, or nil
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// WatchedEpisodes implements tracker.ViewerProgress
func (s *Session) WatchedEpisodes() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.anime == nil || s.anime.UserRate == nil {
		return 0, false
	}
	return s.anime.UserRate.Episodes, true
}

func (s *Session) credential(ctx context.Context) *auth.Credential {
	if s.creds == nil {
		return nil
	}
	cred, err := s.creds.GetValidCredential(ctx, false)
	if err != nil {
		s.logger.Error("failed to read credential", "error", err)
		return nil
	}
	return cred
}

func (s *Session) handle(ctx context.Context, err error, action notice.Action) {
	if s.reporter == nil {
		s.logger.Error("request failed", "action", action.Name, "error", err)
		return
	}
	s.reporter.Handle(ctx, err, action)
}

// LoadAnime fetches the anime, including the viewer's rate when signed in.
// Request failures are reported; the previous anime is kept.
func (s *Session) LoadAnime(ctx context.Context, animeID int) error {
	if animeID <= 0 {
		return fmt.Errorf("anime id is required, got %d", animeID)
	}

	anime, err := s.client.Anime(ctx, animeID, s.credential(ctx))
	if err != nil {
		s.handle(ctx, err, notice.ActionLoadAnime)
		return nil
	}

	s.mu.Lock()
	s.anime = anime
	s.mu.Unlock()
	return nil
}

// LoadUser fetches the signed-in viewer; it does nothing when signed out
func (s *Session) LoadUser(ctx context.Context) {
	cred := s.credential(ctx)
	if cred == nil {
		return
	}

	user, err := s.client.WhoAmI(ctx, cred)
	if err != nil {
		s.handle(ctx, err, notice.ActionLoadUser)
		return
	}
	if user != nil {
		s.mu.Lock()
		s.user = user
		s.mu.Unlock()
	}
}

// RatePatch is the change a caller wants applied to the viewer's rate
type RatePatch struct {
	Episodes int
	Status   tracker.WatchStatus
	Score    int
}

func (p RatePatch) apply(r *UserRate) {
	r.Episodes = p.Episodes
	if p.Status != "" {
		r.Status = p.Status
	}
	if p.Score != 0 {
		r.Score = p.Score
	}
}

// SaveUserRate sends the viewer's rate. The local rate is updated
// optimistically and kept if the request fails; the resulting rate is
// recorded in the watching history either way. It returns nil without a
// loaded anime and user, or when signed out.
func (s *Session) SaveUserRate(ctx context.Context, patch RatePatch) (*UserRate, error) {
	s.mu.Lock()
	if s.anime == nil || s.user == nil {
		s.mu.Unlock()
		return nil, nil
	}
	anime := s.anime
	userID := s.user.ID

	var current tracker.WatchStatus
	if anime.UserRate != nil {
		current = anime.UserRate.Status
		optimistic := *anime.UserRate
		patch.apply(&optimistic)
		anime.UserRate = &optimistic
	}
	s.mu.Unlock()

	cred := s.credential(ctx)
	if cred == nil {
		return nil, nil
	}

	rate := UserRate{
		TargetType: "Anime",
		TargetID:   anime.ID,
		UserID:     userID,
		Status:     tracker.NextStatus(current, patch.Episodes, anime.Episodes),
	}
	patch.apply(&rate)
	if rate.Status == tracker.StatusWatching {
		rate.Status = tracker.NextStatus("", rate.Episodes, anime.Episodes)
	}

	saved, err := s.client.SaveUserRate(ctx, cred, rate)
	if err != nil {
		s.handle(ctx, err, notice.ActionSaveUserRate)
		saved = &rate
	}

	s.mu.Lock()
	if s.anime != nil && s.anime.ID == anime.ID {
		s.anime.UserRate = saved
	}
	s.mu.Unlock()

	if s.history != nil {
		entry := history.Entry{
			AnimeID:  anime.ID,
			Name:     anime.DisplayName(),
			Image:    anime.Image.Original,
			Episodes: saved.Episodes,
		}
		if err := s.history.Unshift(ctx, entry); err != nil {
			s.logger.Error("failed to record history", "anime_id", anime.ID, "error", err)
		}
	}
	return saved, nil
}

// MarkAsWatched saves episode as the last watched one unless the rate
// already says so
func (s *Session) MarkAsWatched(ctx context.Context, episode int) (*UserRate, error) {
	s.mu.RLock()
	if s.anime != nil && s.anime.UserRate != nil && s.anime.UserRate.Episodes == episode {
		r := *s.anime.UserRate
		s.mu.RUnlock()
		return &r, nil
	}
	s.mu.RUnlock()

	return s.SaveUserRate(ctx, RatePatch{Episodes: episode})
}
