package catalog

import (
	"bytes"
	"fmt"
	"strconv"
)

// Flag decodes the catalog's 0/1 booleans as well as true/false
type Flag bool

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	switch string(data) {
	case "1", "true":
		*f = true
	case "0", "false", "null", "":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %s", data)
	}
	return nil
}

// Series is a catalog series with its episode list
type Series struct {
	ID               int        `json:"id"`
	MyAnimeListID    int        `json:"myAnimeListId"`
	Title            string     `json:"title"`
	NumberOfEpisodes int        `json:"numberOfEpisodes"`
	Type             string     `json:"type"`
	Episodes         []*Episode `json:"episodes"`
}

// Episode is one addressable unit of a series. A nil Translations means the
// translations were never fetched; an empty non-nil slice means none exist.
type Episode struct {
	ID           int           `json:"id"`
	SeriesID     int           `json:"seriesId"`
	EpisodeInt   string        `json:"episodeInt"`
	EpisodeType  string        `json:"episodeType"`
	IsActive     Flag          `json:"isActive"`
	Translations []Translation `json:"translations,omitempty"`
	EpisodeTitle string        `json:"episodeTitle,omitempty"`
	EpisodeFull  string        `json:"episodeFull,omitempty"`
}

// Number parses EpisodeInt; ok is false for non-numeric values
func (e *Episode) Number() (float64, bool) {
	n, err := strconv.ParseFloat(e.EpisodeInt, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// TranslationsLoaded reports whether translations were fetched
func (e *Episode) TranslationsLoaded() bool {
	return e.Translations != nil
}

// SetTitle attaches a title once; later titles are ignored
func (e *Episode) SetTitle(title string) bool {
	if title == "" || e.EpisodeTitle != "" {
		return false
	}
	e.EpisodeTitle = title
	e.EpisodeFull = e.EpisodeInt + ". " + title
	return true
}

// Clone returns a deep copy safe to hand to another goroutine
func (e *Episode) Clone() *Episode {
	if e == nil {
		return nil
	}
	c := *e
	if e.Translations != nil {
		c.Translations = append(make([]Translation, 0, len(e.Translations)), e.Translations...)
	}
	return &c
}

// Translation is one subtitled or dubbed rendition of an episode
type Translation struct {
	ID             int    `json:"id"`
	SeriesID       int    `json:"seriesId"`
	EpisodeID      int    `json:"episodeId"`
	Type           string `json:"type"`     // e.g. voiceRu, subRu, subEn, raw
	TypeKind       string `json:"typeKind"` // voice, sub, raw
	TypeLang       string `json:"typeLang"`
	AuthorsSummary string `json:"authorsSummary"`
	QualityType    string `json:"qualityType"`
	Height         int    `json:"height"`
	Priority       int    `json:"priority"`
	IsActive       Flag   `json:"isActive"`
	EmbedURL       string `json:"embedUrl"`
}

type seriesEnvelope struct {
	Data Series `json:"data"`
}

type seriesListEnvelope struct {
	Data []Series `json:"data"`
}

type episodeEnvelope struct {
	Data Episode `json:"data"`
}
