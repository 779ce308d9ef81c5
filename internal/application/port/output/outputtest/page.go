// Package outputtest provides in-memory implementations of the output ports for tests.
package outputtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"

	"github.com/ysmood/gson"
)

var _ output.Page = (*Page)(nil)

// Page records every call it receives. Errs maps a method name to the error
// it should return; PanicOn makes the named method panic.
type Page struct {
	mu sync.Mutex

	PageID   string
	Created  time.Time
	Location string
	Size     entity.Viewport
	Shot     []byte
	Elements []entity.UIElement
	DOM      string

	// JS answers RunJS; nil returns an empty object.
	JS func(js string, args []any) (gson.JSON, error)

	Errs    map[string]error
	PanicOn string

	calls []string
}

func NewPage(id, url string) *Page {
	return &Page{
		PageID:   id,
		Created:  time.Now(),
		Location: url,
		Size:     entity.Viewport{Width: 1440, Height: 900},
		Shot:     []byte("png"),
	}
}

func (p *Page) record(method string, format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, method+fmt.Sprintf(format, args...))
	if p.PanicOn == method {
		panic(method + " exploded")
	}
	if p.Errs != nil {
		return p.Errs[method]
	}
	return nil
}

// Calls returns the recorded calls in order, formatted like "MouseClick(720,450)".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *Page) ID() string           { return p.PageID }
func (p *Page) CreatedAt() time.Time { return p.Created }

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := p.record("URL", "()"); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Location, nil
}

func (p *Page) Viewport(ctx context.Context) (entity.Viewport, error) {
	if err := p.record("Viewport", "()"); err != nil {
		return entity.Viewport{}, err
	}
	return p.Size, nil
}

func (p *Page) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	if err := p.record("Screenshot", "()"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return &entity.Screenshot{
		Data:       p.Shot,
		Format:     "png",
		Width:      p.Size.Width,
		Height:     p.Size.Height,
		URL:        p.Location,
		CapturedAt: time.Now(),
	}, nil
}

func (p *Page) RunJS(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	if err := p.record("RunJS", "(%d args)", len(args)); err != nil {
		return gson.New(nil), err
	}
	if p.JS == nil {
		return gson.New(map[string]any{}), nil
	}
	return p.JS(js, args)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.record("Navigate", "(%s)", url); err != nil {
		return err
	}
	p.mu.Lock()
	p.Location = url
	p.mu.Unlock()
	return nil
}

func (p *Page) GoBack(ctx context.Context) error    { return p.record("GoBack", "()") }
func (p *Page) GoForward(ctx context.Context) error { return p.record("GoForward", "()") }

func (p *Page) MouseMove(ctx context.Context, x, y float64) error {
	return p.record("MouseMove", "(%g,%g)", x, y)
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	return p.record("MouseClick", "(%g,%g)", x, y)
}

func (p *Page) MouseDown(ctx context.Context) error { return p.record("MouseDown", "()") }
func (p *Page) MouseUp(ctx context.Context) error   { return p.record("MouseUp", "()") }

func (p *Page) MouseWheel(ctx context.Context, x, y, dx, dy float64) error {
	return p.record("MouseWheel", "(%g,%g,%g,%g)", x, y, dx, dy)
}

func (p *Page) PressKeys(ctx context.Context, keys []string) error {
	return p.record("PressKeys", "(%v)", keys)
}

func (p *Page) ClickSelector(ctx context.Context, selector string) error {
	return p.record("ClickSelector", "(%s)", selector)
}

func (p *Page) FillSelector(ctx context.Context, selector, text string) error {
	return p.record("FillSelector", "(%s,%s)", selector, text)
}

func (p *Page) HoverSelector(ctx context.Context, selector string) error {
	return p.record("HoverSelector", "(%s)", selector)
}

func (p *Page) ScrollIntoView(ctx context.Context, selector string) error {
	return p.record("ScrollIntoView", "(%s)", selector)
}

func (p *Page) UIElements(ctx context.Context) ([]entity.UIElement, error) {
	if err := p.record("UIElements", "()"); err != nil {
		return nil, err
	}
	return p.Elements, nil
}

func (p *Page) DOMSnapshot(ctx context.Context) (string, error) {
	if err := p.record("DOMSnapshot", "()"); err != nil {
		return "", err
	}
	return p.DOM, nil
}

func (p *Page) WaitIdle(ctx context.Context, timeout time.Duration) error {
	return p.record("WaitIdle", "(%s)", timeout)
}
