package outputtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"browser-pilot/internal/application/port/output"
)

var _ output.Engine = (*Engine)(nil)

// Engine serves a fixed page list. PagesFn, when set, is consulted on every
// Pages call so tests can make pages appear late.
type Engine struct {
	mu sync.Mutex

	PageList []output.Page
	Active   output.Page
	PagesErr error
	NewErr   error
	PagesFn  func(call int) []output.Page

	pagesCalls int
	created    []*Page
	closed     bool
}

func (e *Engine) Pages(ctx context.Context) ([]output.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pagesCalls++
	if e.PagesErr != nil {
		return nil, e.PagesErr
	}
	if e.PagesFn != nil {
		return e.PagesFn(e.pagesCalls), nil
	}
	out := make([]output.Page, len(e.PageList))
	copy(out, e.PageList)
	return out, nil
}

func (e *Engine) ActivePage(ctx context.Context) (output.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Active, nil
}

func (e *Engine) NewPage(ctx context.Context, url string) (output.Page, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.NewErr != nil {
		return nil, e.NewErr
	}
	p := NewPage(fmt.Sprintf("new-%d", len(e.created)+1), url)
	p.Created = time.Now()
	e.created = append(e.created, p)
	e.PageList = append(e.PageList, p)
	return p, nil
}

func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

func (e *Engine) PagesCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pagesCalls
}

func (e *Engine) Created() []*Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Page, len(e.created))
	copy(out, e.created)
	return out
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
