package database

import (
	"time"

	"gorm.io/gorm"
)

// Setting represents a key-value store entry holding a JSON document
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}

// TranslationPreference stores the last translation picked for a series
type TranslationPreference struct {
	SeriesID      int       `gorm:"primaryKey;autoIncrement:false"`
	TranslationID int       `gorm:"not null"`
	Payload       string    `gorm:"not null"` // JSON of the translation record
	UpdatedAt     time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (TranslationPreference) TableName() string {
	return "translation_preferences"
}

// History is one row of the watching history, one per anime
type History struct {
	AnimeID   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"not null"`
	Image     string    `gorm:"default:''"`
	Episodes  int       `gorm:"default:0"`
	WatchedAt time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (History) TableName() string {
	return "history"
}

// Migrate runs the GORM schema migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Setting{},
		&TranslationPreference{},
		&History{},
	)
}
