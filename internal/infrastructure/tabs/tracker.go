// Package tabs keeps track of the tab the user is looking at.
package tabs

import (
	"context"
	"sync"

	"browser-pilot/internal/application/port/output"
)

var _ output.TabTracker = (*Tracker)(nil)

// Tracker reports the URL last set by the host. When the host has not said
// anything it asks the engine which page holds focus.
type Tracker struct {
	engine output.Engine
	logger output.LoggerPort

	mu  sync.RWMutex
	url string
}

func NewTracker(engine output.Engine, logger output.LoggerPort) *Tracker {
	return &Tracker{engine: engine, logger: logger}
}

func (t *Tracker) SetActive(url string) {
	t.mu.Lock()
	t.url = url
	t.mu.Unlock()
	t.logger.Debug("Active tab set", "url", url)
}

func (t *Tracker) Clear() {
	t.SetActive("")
}

func (t *Tracker) ActiveTabURL(ctx context.Context) string {
	t.mu.RLock()
	url := t.url
	t.mu.RUnlock()
	if url != "" || t.engine == nil {
		return url
	}

	page, err := t.engine.ActivePage(ctx)
	if err != nil || page == nil {
		return ""
	}
	url, err = page.URL(ctx)
	if err != nil {
		t.logger.Debug("Active page URL unavailable", "error", err)
		return ""
	}
	return url
}
