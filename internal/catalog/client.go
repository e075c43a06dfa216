// Package catalog talks to the anime365 API: series, episodes and their
// translations.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/justchokingaround/shikiplay/internal/apperr"
	"github.com/justchokingaround/shikiplay/internal/gateway"
)

// Client is the catalog API client
type Client struct {
	baseURL       string
	fetcher       gateway.Fetcher
	unknownAuthor string
}

// Config configures a Client
type Config struct {
	BaseURL string
	Fetcher gateway.Fetcher
	// UnknownAuthor replaces empty authorsSummary values
	UnknownAuthor string
}

// NewClient creates a catalog client
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:       cfg.BaseURL,
		fetcher:       cfg.Fetcher,
		unknownAuthor: cfg.UnknownAuthor,
	}
}

// Series fetches one series with its raw episode list
func (c *Client) Series(ctx context.Context, seriesID int) (*Series, error) {
	env, err := gateway.Fetch[seriesEnvelope](ctx, c.fetcher, fmt.Sprintf("%s/series/%d", c.baseURL, seriesID), gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("get series %d: %w", seriesID, err)
	}
	return &env.Data, nil
}

// SeriesByMyAnimeListID looks up the series mapped to a MyAnimeList id
func (c *Client) SeriesByMyAnimeListID(ctx context.Context, malID int) ([]Series, error) {
	q := url.Values{}
	q.Set("myAnimeListId", strconv.Itoa(malID))

	env, err := gateway.Fetch[seriesListEnvelope](ctx, c.fetcher, c.baseURL+"/series/?"+q.Encode(), gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("find series for %d: %w", malID, err)
	}
	return env.Data, nil
}

// FirstSeriesByMyAnimeListID returns the first matching series, or a
// DataUnavailable error when there is none
func (c *Client) FirstSeriesByMyAnimeListID(ctx context.Context, malID int) (*Series, error) {
	list, err := c.SeriesByMyAnimeListID(ctx, malID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.Unavailable(fmt.Sprintf("no series for myAnimeListId %d", malID))
	}
	return &list[0], nil
}

// Episode fetches an episode with its translations. Empty author summaries
// are replaced with the configured placeholder.
func (c *Client) Episode(ctx context.Context, episodeID int) (*Episode, error) {
	env, err := gateway.Fetch[episodeEnvelope](ctx, c.fetcher, fmt.Sprintf("%s/episodes/%d", c.baseURL, episodeID), gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("get episode %d: %w", episodeID, err)
	}

	ep := env.Data
	if ep.Translations == nil {
		ep.Translations = []Translation{}
	}
	for i := range ep.Translations {
		if ep.Translations[i].AuthorsSummary == "" {
			ep.Translations[i].AuthorsSummary = c.unknownAuthor
		}
	}
	return &ep, nil
}

// ActiveTranslations filters out inactive translations, returning a non-nil slice
func ActiveTranslations(all []Translation) []Translation {
	active := make([]Translation, 0, len(all))
	for _, t := range all {
		if t.IsActive {
			active = append(active, t)
		}
	}
	return active
}
