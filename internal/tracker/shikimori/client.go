// Package shikimori integrates the shikimori.one rating service
package shikimori

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/justchokingaround/shikiplay/internal/auth"
	"github.com/justchokingaround/shikiplay/internal/gateway"
)

// Client calls the shikimori REST API through the gateway
type Client struct {
	baseURL string
	fetcher gateway.Fetcher
}

// NewClient creates a client; baseURL is the site root, e.g. https://shikimori.one
func NewClient(baseURL string, fetcher gateway.Fetcher) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

func (c *Client) url(path string) string {
	return c.baseURL + "/api" + path
}

func withAuth(cred *auth.Credential, opts gateway.Options) gateway.Options {
	if cred == nil {
		return opts
	}
	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		headers[k] = v
	}
	headers["Authorization"] = cred.Header()
	opts.Headers = headers
	return opts
}

// Anime fetches an anime. With a credential the response carries the
// viewer's user_rate.
func (c *Client) Anime(ctx context.Context, animeID int, cred *auth.Credential) (*Anime, error) {
	a, err := gateway.Fetch[Anime](ctx, c.fetcher, c.url(fmt.Sprintf("/animes/%d", animeID)), withAuth(cred, gateway.Options{}))
	if err != nil {
		return nil, fmt.Errorf("get anime %d: %w", animeID, err)
	}
	return &a, nil
}

// Franchise fetches the franchise graph of an anime
func (c *Client) Franchise(ctx context.Context, animeID int) (*Franchise, error) {
	f, err := gateway.Fetch[Franchise](ctx, c.fetcher, c.url(fmt.Sprintf("/animes/%d/franchise", animeID)), gateway.Options{})
	if err != nil {
		return nil, fmt.Errorf("get franchise of %d: %w", animeID, err)
	}
	return &f, nil
}

// WhoAmI fetches the authenticated user
func (c *Client) WhoAmI(ctx context.Context, cred *auth.Credential) (*User, error) {
	u, err := gateway.Fetch[*User](ctx, c.fetcher, c.url("/users/whoami"), withAuth(cred, gateway.Options{}))
	if err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return u, nil
}

// SaveUserRate creates or updates a user rate
func (c *Client) SaveUserRate(ctx context.Context, cred *auth.Credential, rate UserRate) (*UserRate, error) {
	opts := withAuth(cred, gateway.Options{
		Method: http.MethodPost,
		Body:   map[string]UserRate{"user_rate": rate},
	})
	saved, err := gateway.Fetch[UserRate](ctx, c.fetcher, c.url("/v2/user_rates"), opts)
	if err != nil {
		return nil, fmt.Errorf("save user rate for %d: %w", rate.TargetID, err)
	}
	return &saved, nil
}
