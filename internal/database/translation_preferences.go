package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetTranslationPreference returns the stored preference for a series.
// A missing row is reported as (nil, nil).
func GetTranslationPreference(ctx context.Context, db *gorm.DB, seriesID int) (*TranslationPreference, error) {
	var pref TranslationPreference
	err := db.WithContext(ctx).Where("series_id = ?", seriesID).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pref, nil
}

// SaveTranslationPreference upserts the preference for a series
func SaveTranslationPreference(ctx context.Context, db *gorm.DB, seriesID, translationID int, payload string) error {
	pref := TranslationPreference{
		SeriesID:      seriesID,
		TranslationID: translationID,
		Payload:       payload,
		UpdatedAt:     time.Now(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "series_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"translation_id", "payload", "updated_at"}),
	}).Create(&pref).Error
}

// RecentTranslationPreferences returns up to limit preferences, newest first
func RecentTranslationPreferences(ctx context.Context, db *gorm.DB, limit int) ([]TranslationPreference, error) {
	var prefs []TranslationPreference
	q := db.WithContext(ctx).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&prefs).Error; err != nil {
		return nil, err
	}
	return prefs, nil
}
