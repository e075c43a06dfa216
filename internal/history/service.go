package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justchokingaround/shikiplay/internal/database"
)

// DefaultLimit is the number of entries kept
const DefaultLimit = 100

// Service provides watching history management
type Service struct {
	db    *gorm.DB
	limit int
	now   func() time.Time
}

// Entry is one watched anime
type Entry struct {
	AnimeID   int       `json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image"`
	Episodes  int       `json:"episodes"`
	WatchedAt time.Time `json:"watched_at"`
}

// NewService creates a new history service keeping at most limit entries;
// a non-positive limit means DefaultLimit
func NewService(db *gorm.DB, limit int) *Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Service{db: db, limit: limit, now: time.Now}
}

// Unshift moves the anime to the front of the history, inserting it if new
func (s *Service) Unshift(ctx context.Context, e Entry) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	row := database.History{
		AnimeID:   e.AnimeID,
		Name:      e.Name,
		Image:     e.Image,
		Episodes:  e.Episodes,
		WatchedAt: s.now(),
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "anime_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "image", "episodes", "watched_at"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("failed to record history: %w", err)
		}

		// Trim everything past the limit
		return tx.Exec(`
			DELETE FROM history WHERE anime_id NOT IN (
				SELECT anime_id FROM history ORDER BY watched_at DESC LIMIT ?
			)`, s.limit).Error
	})
}

// Recent returns up to limit entries, most recent first
func (s *Service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.WithContext(ctx).Model(&database.History{}).Order("watched_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []database.History
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{
			AnimeID:   r.AnimeID,
			Name:      r.Name,
			Image:     r.Image,
			Episodes:  r.Episodes,
			WatchedAt: r.WatchedAt,
		}
	}
	return entries, nil
}

// Delete removes an anime from the history
func (s *Service) Delete(ctx context.Context, animeID int) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.WithContext(ctx).Delete(&database.History{}, animeID).Error
}
