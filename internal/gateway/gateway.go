// Package gateway is the privileged side of every outbound HTTP call. Callers
// post a request message to a background loop, which checks the origin
// permission, performs the call with retries, and answers exactly once.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/justchokingaround/shikiplay/internal/apperr"
)

// ErrClosed is returned by Request after Close
var ErrClosed = errors.New("gateway closed")

// Options mirrors the fetch options a caller may pass
type Options struct {
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// Message is the request posted to the background loop
type Message struct {
	ID      string  `json:"id"`
	URL     string  `json:"url"`
	Options Options `json:"options"`
}

// Reply is the single answer to a Message: either Response or Error is set
type Reply struct {
	ID       string          `json:"id"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    *apperr.Error   `json:"error,omitempty"`
}

// Fetcher is what API clients depend on
type Fetcher interface {
	Request(ctx context.Context, url string, opts Options) (json.RawMessage, error)
}

type envelope struct {
	ctx   context.Context
	msg   Message
	reply chan Reply
}

// Gateway owns the background loop
type Gateway struct {
	perms  *Permissions
	client *Client
	logger *slog.Logger

	inbox     chan envelope
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Config configures a Gateway
type Config struct {
	Permissions *Permissions
	Client      ClientConfig
	Logger      *slog.Logger
}

// New starts a gateway loop; call Close to stop it
func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Permissions == nil {
		cfg.Permissions = NewPermissions()
	}
	if cfg.Client.Logger == nil {
		cfg.Client.Logger = cfg.Logger
	}

	g := &Gateway{
		perms:  cfg.Permissions,
		client: NewClient(cfg.Client),
		logger: cfg.Logger.With("component", "gateway"),
		inbox:  make(chan envelope),
		done:   make(chan struct{}),
	}

	g.wg.Add(1)
	go g.loop()
	return g
}

// Permissions returns the live permission set
func (g *Gateway) Permissions() *Permissions {
	return g.perms
}

// Request posts a message and waits for its reply
func (g *Gateway) Request(ctx context.Context, url string, opts Options) (json.RawMessage, error) {
	env := envelope{
		ctx: ctx,
		msg: Message{
			ID:      uuid.New().String(),
			URL:     url,
			Options: opts,
		},
		reply: make(chan Reply, 1),
	}

	select {
	case g.inbox <- env:
	case <-g.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-env.reply:
		if r.Error != nil {
			return nil, r.Error
		}
		return r.Response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting requests and waits for in-flight ones
func (g *Gateway) Close() {
	g.closeOnce.Do(func() {
		close(g.done)
	})
	g.wg.Wait()
}

func (g *Gateway) loop() {
	defer g.wg.Done()
	for {
		select {
		case env := <-g.inbox:
			g.wg.Add(1)
			go func() {
				defer g.wg.Done()
				env.reply <- g.serve(env.ctx, env.msg)
			}()
		case <-g.done:
			return
		}
	}
}

// serve builds the one Reply for msg
func (g *Gateway) serve(ctx context.Context, msg Message) Reply {
	method := msg.Options.Method
	if method == "" {
		method = http.MethodGet
	}
	req := apperr.Request{Method: method, URL: msg.URL}
	log := g.logger.With("request_id", msg.ID, "method", method, "url", msg.URL)

	origin, err := OriginPattern(msg.URL)
	if err != nil || !g.perms.Contains(origin) {
		log.Warn("origin not granted", "origin", origin)
		return Reply{ID: msg.ID, Error: apperr.PermissionDenied(req, fmt.Sprintf("User not allow access to %s", msg.URL))}
	}

	resp, err := g.client.Do(ctx, method, msg.URL, msg.Options.Headers, msg.Options.Body)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode()
		}
		log.Error("request failed", "status", status, "error", err)
		return Reply{ID: msg.ID, Error: apperr.ServerError(req, status, "request failed", err)}
	}

	status := resp.StatusCode()
	switch {
	case status >= 400 && status < 500:
		log.Debug("client error", "status", status)
		return Reply{ID: msg.ID, Error: apperr.ClientError(req, status, http.StatusText(status))}
	case !resp.IsSuccess():
		log.Error("retries exhausted", "status", status, "attempts", resp.Request.Attempt)
		return Reply{ID: msg.ID, Error: apperr.ServerError(req, status, http.StatusText(status), nil)}
	}

	body := resp.Body()
	if len(body) == 0 {
		return Reply{ID: msg.ID, Response: json.RawMessage("null")}
	}
	if !json.Valid(body) {
		return Reply{ID: msg.ID, Error: apperr.ServerError(req, status, "response is not JSON", nil)}
	}
	return Reply{ID: msg.ID, Response: json.RawMessage(body)}
}

// Fetch performs a request through f and decodes the payload into T
func Fetch[T any](ctx context.Context, f Fetcher, url string, opts Options) (T, error) {
	var out T
	payload, err := f.Request(ctx, url, opts)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, apperr.ServerError(apperr.Request{Method: opts.Method, URL: url}, 0, "failed to decode response", err)
	}
	return out, nil
}
