// Package preference persists the translation last picked for each series
package preference

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/justchokingaround/shikiplay/internal/catalog"
	"github.com/justchokingaround/shikiplay/internal/database"
)

// Store reads and writes preferences in the translation_preferences table
type Store struct {
	db *gorm.DB
}

// NewStore creates a store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the preferred translation of a series, or nil
func (s *Store) Get(ctx context.Context, seriesID int) (*catalog.Translation, error) {
	row, err := database.GetTranslationPreference(ctx, s.db, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preference for series %d: %w", seriesID, err)
	}
	if row == nil {
		return nil, nil
	}

	var t catalog.Translation
	if err := json.Unmarshal([]byte(row.Payload), &t); err != nil {
		return nil, fmt.Errorf("failed to decode preference for series %d: %w", seriesID, err)
	}
	return &t, nil
}

// Save records t as the preferred translation of a series
func (s *Store) Save(ctx context.Context, seriesID int, t catalog.Translation) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode preference: %w", err)
	}
	if err := database.SaveTranslationPreference(ctx, s.db, seriesID, t.ID, string(payload)); err != nil {
		return fmt.Errorf("failed to save preference for series %d: %w", seriesID, err)
	}
	return nil
}

// Recent returns up to limit preferences keyed by series, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]catalog.Translation, error) {
	rows, err := database.RecentTranslationPreferences(ctx, s.db, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}

	out := make([]catalog.Translation, 0, len(rows))
	for _, row := range rows {
		var t catalog.Translation
		if err := json.Unmarshal([]byte(row.Payload), &t); err != nil {
			continue
		}
		if t.SeriesID == 0 {
			t.SeriesID = row.SeriesID
		}
		out = append(out, t)
	}
	return out, nil
}
