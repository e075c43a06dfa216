package gateway

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
)

// Permissions is the set of origin patterns the process may reach, in the
// "scheme://host/*" form
type Permissions struct {
	mu      sync.RWMutex
	origins map[string]struct{}
}

// NewPermissions creates a permission set seeded with origins
func NewPermissions(origins ...string) *Permissions {
	p := &Permissions{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		p.origins[o] = struct{}{}
	}
	return p
}

// OriginPattern returns the pattern a request to rawURL must be granted under
func OriginPattern(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", fmt.Errorf("invalid URL %q: missing scheme or host", rawURL)
	}
	return fmt.Sprintf("%s://%s/*", u.Scheme, u.Hostname()), nil
}

// Contains reports whether the origin pattern is granted
func (p *Permissions) Contains(origin string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.origins[origin]
	return ok
}

// Allows reports whether rawURL falls under a granted origin
func (p *Permissions) Allows(rawURL string) bool {
	origin, err := OriginPattern(rawURL)
	if err != nil {
		return false
	}
	return p.Contains(origin)
}

// Grant adds origin patterns
func (p *Permissions) Grant(origins ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, o := range origins {
		p.origins[o] = struct{}{}
	}
}

// Revoke removes origin patterns
func (p *Permissions) Revoke(origins ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, o := range origins {
		delete(p.origins, o)
	}
}

// Replace swaps the whole set, used on config reload
func (p *Permissions) Replace(origins []string) {
	next := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		next[o] = struct{}{}
	}
	p.mu.Lock()
	p.origins = next
	p.mu.Unlock()
}

// List returns the granted origins sorted
func (p *Permissions) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.origins))
	for o := range p.origins {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}
