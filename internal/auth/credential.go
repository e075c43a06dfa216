// Package auth keeps the rating service OAuth credential valid
package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// CredentialKey is the store key of the persisted credential
const CredentialKey = "credentials"

// Credential is the persisted OAuth credential. CreatedAt and ExpiresIn are
// in seconds.
type Credential struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Valid reports whether c is present and not expired at now
func (c *Credential) Valid(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return (c.CreatedAt+c.ExpiresIn)*1000 > now.UnixMilli()
}

// ExpiresAt returns the expiry instant
func (c *Credential) ExpiresAt() time.Time {
	return time.Unix(c.CreatedAt+c.ExpiresIn, 0)
}

// Header returns the Authorization header value
func (c *Credential) Header() string {
	typ := c.TokenType
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + c.AccessToken
}

// fromToken converts an oauth2 token. The server's created_at and
// expires_in are used when it sends them.
func fromToken(tok *oauth2.Token, now time.Time) *Credential {
	c := &Credential{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		CreatedAt:    now.Unix(),
		RefreshToken: tok.RefreshToken,
	}
	if v, ok := numeric(tok.Extra("created_at")); ok && v > 0 {
		c.CreatedAt = v
	}
	switch v, ok := numeric(tok.Extra("expires_in")); {
	case ok:
		c.ExpiresIn = v
	case !tok.Expiry.IsZero():
		c.ExpiresIn = tok.Expiry.Unix() - c.CreatedAt
	}
	if s, ok := tok.Extra("scope").(string); ok {
		c.Scope = s
	}
	return c
}

func numeric(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
