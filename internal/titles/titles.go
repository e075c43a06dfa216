// Package titles loads episode titles from the Jikan API
package titles

import (
	"context"
	"fmt"

	"github.com/justchokingaround/shikiplay/internal/gateway"
)

// maxPages bounds paging when the API never reports its last page
const maxPages = 50

// Episode is one titled episode
type Episode struct {
	EpisodeID int    `json:"episode_id"`
	Title     string `json:"title"`
}

// Page is one page of episode titles
type Page struct {
	Episodes         []Episode `json:"episodes"`
	EpisodesLastPage int       `json:"episodes_last_page"`
}

// Client fetches titles by MyAnimeList id
type Client struct {
	baseURL string
	fetcher gateway.Fetcher
}

// NewClient creates a title client
func NewClient(baseURL string, fetcher gateway.Fetcher) *Client {
	return &Client{baseURL: baseURL, fetcher: fetcher}
}

// Episodes fetches one page; pages start at 1
func (c *Client) Episodes(ctx context.Context, malID, page int) (*Page, error) {
	p, err := gateway.Fetch[Page](ctx, c.fetcher, fmt.Sprintf("%s/anime/%d/episodes/%d", c.baseURL, malID, page), gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("get titles page %d of %d: %w", page, malID, err)
	}
	return &p, nil
}

// All pages through every title. It stops at an empty page or once the
// current page reaches episodes_last_page. Titles gathered before a failing
// page are returned together with the error.
func (c *Client) All(ctx context.Context, malID int) ([]Episode, error) {
	var all []Episode
	for page := 1; page <= maxPages; page++ {
		p, err := c.Episodes(ctx, malID, page)
		if err != nil {
			return all, err
		}
		if len(p.Episodes) == 0 {
			break
		}
		all = append(all, p.Episodes...)
		if page >= p.EpisodesLastPage {
			break
		}
	}
	return all, nil
}

// ByNumber indexes titles by episode number, skipping empty titles
func ByNumber(episodes []Episode) map[int]string {
	out := make(map[int]string, len(episodes))
	for _, e := range episodes {
		if e.Title != "" {
			out[e.EpisodeID] = e.Title
		}
	}
	return out
}
