package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"

	"github.com/justchokingaround/shikiplay/internal/apperr"
	"github.com/justchokingaround/shikiplay/internal/gateway"
)

const (
	callbackPath = "/oauth/callback"
	authTimeout  = 5 * time.Minute
)

// OAuthConfig configures an OAuthAuthorizer
type OAuthConfig struct {
	// BaseURL is the rating service root, e.g. https://shikimori.one
	BaseURL      string
	ClientID     string
	ClientSecret string
	// RedirectURI defaults to the local callback server address
	RedirectURI  string
	CallbackPort int
	Scopes       []string
	UserAgent    string

	// Permissions gates the token endpoint the same way the gateway does
	Permissions *gateway.Permissions
	// OpenURL opens the authorization page; defaults to the system browser
	OpenURL func(url string) error
	Logger  *slog.Logger
	Now     func() time.Time
}

// OAuthAuthorizer refreshes with the stored refresh token when there is
// one and falls back to the browser authorization code flow.
type OAuthAuthorizer struct {
	cfg    OAuthConfig
	client *http.Client
	logger *slog.Logger
}

// NewOAuthAuthorizer creates an authorizer
func NewOAuthAuthorizer(cfg OAuthConfig) *OAuthAuthorizer {
	if cfg.OpenURL == nil {
		cfg.OpenURL = browser.OpenURL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &OAuthAuthorizer{
		cfg: cfg,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &userAgentTransport{agent: cfg.UserAgent, base: http.DefaultTransport},
		},
		logger: cfg.Logger.With("component", "oauth"),
	}
}

func (a *OAuthAuthorizer) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       a.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.cfg.BaseURL + "/oauth/authorize",
			TokenURL:  a.cfg.BaseURL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Authorize implements Authorizer
func (a *OAuthAuthorizer) Authorize(ctx context.Context, prev *Credential) (*Credential, error) {
	tokenURL := a.cfg.BaseURL + "/oauth/token"
	req := apperr.Request{Method: http.MethodPost, URL: tokenURL}
	if a.cfg.Permissions != nil && !a.cfg.Permissions.Allows(tokenURL) {
		return nil, apperr.PermissionDenied(req, fmt.Sprintf("User not allow access to %s", tokenURL))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)

	if prev != nil && prev.RefreshToken != "" {
		cred, err := a.refresh(ctx, prev)
		if err == nil {
			return cred, nil
		}
		// A rejected refresh token means the grant was revoked; ask again.
		if !apperr.Is(err, apperr.KindClientError) {
			return nil, err
		}
		a.logger.Warn("refresh rejected, starting browser flow", "error", err)
	}
	return a.browserFlow(ctx, req)
}

func (a *OAuthAuthorizer) refresh(ctx context.Context, prev *Credential) (*Credential, error) {
	stale := &oauth2.Token{
		AccessToken:  prev.AccessToken,
		TokenType:    prev.TokenType,
		RefreshToken: prev.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}
	tok, err := a.oauthConfig(a.cfg.RedirectURI).TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, tokenError(a.cfg.BaseURL+"/oauth/token", err)
	}

	cred := fromToken(tok, a.cfg.Now())
	if cred.RefreshToken == "" {
		cred.RefreshToken = prev.RefreshToken
	}
	return cred, nil
}

func (a *OAuthAuthorizer) browserFlow(ctx context.Context, req apperr.Request) (*Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", a.cfg.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	redirectURI := a.cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)
	}
	conf := a.oauthConfig(redirectURI)
	state, err := randomState()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch {
		case q.Get("error") != "":
			w.WriteHeader(http.StatusBadRequest)
			writePage(w, "Authentication failed: "+q.Get("error"))
			trySend[error](errCh, apperr.ClientError(req, http.StatusBadRequest, q.Get("error")))
		case q.Get("state") != state:
			w.WriteHeader(http.StatusBadRequest)
			writePage(w, "Invalid state")
			trySend[error](errCh, apperr.ClientError(req, http.StatusBadRequest, "state mismatch"))
		case q.Get("code") == "":
			w.WriteHeader(http.StatusBadRequest)
			writePage(w, "No authorization code received")
			trySend[error](errCh, apperr.ClientError(req, http.StatusBadRequest, "no authorization code received"))
		default:
			writePage(w, "Authentication successful! You can close this window and return to the terminal.")
			trySend(codeCh, q.Get("code"))
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			trySend(errCh, fmt.Errorf("callback server failed: %w", err))
		}
	}()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	authURL := conf.AuthCodeURL(state)
	a.logger.Info("opening browser for authorization", "url", authURL)
	if err := a.cfg.OpenURL(authURL); err != nil {
		a.logger.Warn("failed to open browser", "error", err, "url", authURL)
	}

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("authorization timed out: %w", ctx.Err())
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, tokenError(req.URL, err)
	}
	return fromToken(tok, a.cfg.Now()), nil
}

// tokenError classifies token endpoint failures
func tokenError(tokenURL string, err error) error {
	req := apperr.Request{Method: http.MethodPost, URL: tokenURL}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		status := re.Response.StatusCode
		if status >= 400 && status < 500 {
			msg := re.ErrorCode
			if msg == "" {
				msg = http.StatusText(status)
			}
			return apperr.ClientError(req, status, msg)
		}
		return apperr.ServerError(req, status, http.StatusText(status), err)
	}
	return apperr.ServerError(req, 0, "token request failed", err)
}

// trySend drops v when a result was already delivered
func trySend[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func writePage(w http.ResponseWriter, message string) {
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>shikiplay</title>
<style>body { font-family: Arial, sans-serif; margin: 50px; text-align: center; background: #1a1a1a; color: white; }</style>
</head>
<body><p>%s</p></body>
</html>`, html.EscapeString(message))
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.agent == "" {
		return t.base.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(r)
}
