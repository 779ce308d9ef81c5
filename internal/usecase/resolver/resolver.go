// Package resolver picks the page that holds the user's real content among
// everything the automation engine has open.
package resolver

import (
	"context"
	"net/url"
	"strings"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

const (
	DefaultAttempts = 10
	DefaultDelay    = 500 * time.Millisecond
)

// DefaultInternalSegments are path fragments served by the host application's own UI.
var DefaultInternalSegments = []string{"/app-shell/", "/sidebar", "/topbar"}

type Options struct {
	InternalSegments []string
	Attempts         int
	Delay            time.Duration
}

type Resolver struct {
	opts   Options
	logger output.LoggerPort
}

func New(logger output.LoggerPort, opts Options) *Resolver {
	if opts.InternalSegments == nil {
		opts.InternalSegments = DefaultInternalSegments
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	return &Resolver{opts: opts, logger: logger}
}

// IsInternal reports whether rawURL belongs to the host application rather
// than to external content.
func (r *Resolver) IsInternal(rawURL string) bool {
	u := strings.TrimSpace(strings.ToLower(rawURL))
	switch {
	case u == "", u == "about:blank":
		return true
	case strings.HasPrefix(u, "file://"),
		strings.HasPrefix(u, "chrome://"),
		strings.HasPrefix(u, "devtools://"):
		return true
	}
	for _, seg := range r.opts.InternalSegments {
		if seg != "" && strings.Contains(u, strings.ToLower(seg)) {
			return true
		}
	}
	return false
}

type candidate struct {
	page output.Page
	url  string
}

// Resolve applies the matching rules in order and stops at the first hit:
// exact URL, same host, engine's active page among externals, newest external,
// engine's active page on its own. activeURL may be empty.
func (r *Resolver) Resolve(ctx context.Context, pages []output.Page, activeURL string, enginePage output.Page) (output.Page, error) {
	const op = "Resolver.Resolve"

	external := make([]candidate, 0, len(pages))
	for _, p := range pages {
		if p == nil {
			continue
		}
		u, err := p.URL(ctx)
		if err != nil {
			r.logger.Debug("Skipping page with unreadable URL", "page", p.ID(), "error", err)
			continue
		}
		if r.IsInternal(u) {
			continue
		}
		external = append(external, candidate{page: p, url: u})
	}

	if activeURL != "" {
		for _, c := range external {
			if c.url == activeURL {
				r.logger.Debug("Resolved page by exact URL", "page", c.page.ID(), "url", c.url)
				return c.page, nil
			}
		}

		if host := hostname(activeURL); host != "" {
			for _, c := range external {
				if hostname(c.url) == host {
					r.logger.Debug("Resolved page by hostname", "page", c.page.ID(), "host", host)
					return c.page, nil
				}
			}
		}
	}

	if len(external) > 0 {
		if enginePage != nil {
			for _, c := range external {
				if c.page.ID() == enginePage.ID() {
					r.logger.Debug("Resolved engine active page", "page", c.page.ID())
					return c.page, nil
				}
			}
		}
		newest := external[0]
		for _, c := range external[1:] {
			if c.page.CreatedAt().After(newest.page.CreatedAt()) {
				newest = c
			}
		}
		r.logger.Debug("Resolved most recent external page", "page", newest.page.ID(), "url", newest.url)
		return newest.page, nil
	}

	if enginePage != nil {
		if u, err := enginePage.URL(ctx); err == nil && !r.IsInternal(u) {
			r.logger.Debug("Falling back to engine active page", "page", enginePage.ID(), "url", u)
			return enginePage, nil
		}
	}

	return nil, entity.Errorf(entity.ErrorKindNoTargetPage, op, "no external page among %d open pages", len(pages))
}

// ResolveWithRetry polls the engine until Resolve succeeds or the attempts run out.
func (r *Resolver) ResolveWithRetry(ctx context.Context, engine output.Engine, activeURL string) (output.Page, error) {
	const op = "Resolver.ResolveWithRetry"

	var lastErr error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		page, err := r.resolveOnce(ctx, engine, activeURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		r.logger.Debug("Page resolution attempt failed", "attempt", attempt, "error", err)

		if attempt == r.opts.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, entity.NewError(entity.ErrorKindNoTargetPage, op, ctx.Err())
		case <-time.After(r.opts.Delay):
		}
	}

	if entity.IsKind(lastErr, entity.ErrorKindNoTargetPage) {
		return nil, lastErr
	}
	return nil, entity.NewError(entity.ErrorKindNoTargetPage, op, lastErr)
}

func (r *Resolver) resolveOnce(ctx context.Context, engine output.Engine, activeURL string) (output.Page, error) {
	pages, err := engine.Pages(ctx)
	if err != nil {
		return nil, err
	}
	active, err := engine.ActivePage(ctx)
	if err != nil {
		r.logger.Debug("Engine active page unavailable", "error", err)
		active = nil
	}
	return r.Resolve(ctx, pages, activeURL, active)
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
