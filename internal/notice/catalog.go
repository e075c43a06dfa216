package notice

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a localized text
type Key string

const (
	KeyGenericFailed          Key = "generic.failed"
	KeyUnknownAuthor          Key = "translation.unknown_author"
	KeyAnimeDenied            Key = "anime.denied"
	KeyNextSeasonDenied       Key = "next_season.denied"
	KeyNextSeasonSeriesDenied Key = "next_season.series_denied"
	KeyUserRateDenied         Key = "user_rate.denied"
	KeyProfileDenied          Key = "profile.denied"
	KeySyncDenied             Key = "sync.denied"
	KeySyncFailed             Key = "sync.failed"
	KeyAuthDenied             Key = "auth.denied"
	KeyAuthFailed             Key = "auth.failed"
	KeySeriesDenied           Key = "series.denied"
	KeyTitlesDenied           Key = "titles.denied"
)

var texts = map[language.Tag]map[Key]string{
	language.Russian: {
		KeyGenericFailed:          "Произошла ошибка. Откройте консоль для информации об ошибке",
		KeyUnknownAuthor:          "Неизвестный",
		KeyAnimeDenied:            "Невозможно загрузить информацию про аниме: вы запретили доступ к shikimori.one",
		KeyNextSeasonDenied:       "Невозможно выполнить поиск следующего сезона: вы запретили доступ к shikimori.one",
		KeyNextSeasonSeriesDenied: "Невозможно загрузить следующий сезон: вы запретили доступ к smotret-anime-365.ru",
		KeyUserRateDenied:         "Невозможно загрузить ваш список: вы запретили доступ к shikimori.one",
		KeyProfileDenied:          "Невозможно загрузить ваш профиль: вы запретили доступ к shikimori.one",
		KeySyncDenied:             "Невозможно синхронизироваться с вашим списком: вы запретили доступ к shikimori.one",
		KeySyncFailed:             "Невозможно синхронизироваться с вашим списком. Откройте консоль для информации об ошибке",
		KeyAuthDenied:             "Невозможно авторизоваться: вы запретили доступ к shikimori.one",
		KeyAuthFailed:             "Невозможно авторизоваться. Откройте консоль для информации об ошибке",
		KeySeriesDenied:           "Невозможно загрузить серии: вы запретили доступ к smotret-anime-365.ru",
		KeyTitlesDenied:           "Невозможно загрузить названия серий: вы запретили доступ к api.jikan.moe",
	},
	language.English: {
		KeyGenericFailed:          "Something went wrong. Open the console for details",
		KeyUnknownAuthor:          "Unknown",
		KeyAnimeDenied:            "Cannot load the anime: access to shikimori.one was denied",
		KeyNextSeasonDenied:       "Cannot look for the next season: access to shikimori.one was denied",
		KeyNextSeasonSeriesDenied: "Cannot load the next season: access to smotret-anime-365.ru was denied",
		KeyUserRateDenied:         "Cannot load your list: access to shikimori.one was denied",
		KeyProfileDenied:          "Cannot load your profile: access to shikimori.one was denied",
		KeySyncDenied:             "Cannot sync with your list: access to shikimori.one was denied",
		KeySyncFailed:             "Cannot sync with your list. Open the console for details",
		KeyAuthDenied:             "Cannot sign in: access to shikimori.one was denied",
		KeyAuthFailed:             "Cannot sign in. Open the console for details",
		KeySeriesDenied:           "Cannot load episodes: access to smotret-anime-365.ru was denied",
		KeyTitlesDenied:           "Cannot load episode titles: access to api.jikan.moe was denied",
	},
}

var (
	supported = []language.Tag{language.Russian, language.English}
	matcher   = language.NewMatcher(supported)
	builder   = newBuilder()
)

func newBuilder() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Russian))
	for tag, entries := range texts {
		for key, text := range entries {
			// texts are static and valid; SetString only fails on malformed tags
			_ = b.SetString(tag, string(key), text)
		}
	}
	return b
}

// Localizer renders Keys in one language
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// NewLocalizer picks the closest supported language to locale, Russian by default
func NewLocalizer(locale string) *Localizer {
	tag := language.Russian
	if parsed, err := language.Parse(locale); err == nil {
		matched, _, _ := matcher.Match(parsed)
		base, _ := matched.Base()
		for _, s := range supported {
			if sb, _ := s.Base(); sb == base {
				tag = s
				break
			}
		}
	}
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(builder))}
}

// Language returns the selected language
func (l *Localizer) Language() language.Tag {
	return l.tag
}

// Text returns the localized text for key
func (l *Localizer) Text(key Key, args ...any) string {
	return l.printer.Sprintf(string(key), args...)
}
