package output

import (
	"context"
	"time"

	"browser-pilot/internal/domain/entity"

	"github.com/ysmood/gson"
)

// Page is a handle to one open page (tab) of the automation engine.
type Page interface {
	ID() string
	CreatedAt() time.Time

	URL(ctx context.Context) (string, error)
	Viewport(ctx context.Context) (entity.Viewport, error)
	Screenshot(ctx context.Context) (*entity.Screenshot, error)
	RunJS(ctx context.Context, js string, args ...any) (gson.JSON, error)

	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	MouseMove(ctx context.Context, x, y float64) error
	MouseClick(ctx context.Context, x, y float64) error
	MouseDown(ctx context.Context) error
	MouseUp(ctx context.Context) error
	MouseWheel(ctx context.Context, x, y, deltaX, deltaY float64) error
	PressKeys(ctx context.Context, keys []string) error

	ClickSelector(ctx context.Context, selector string) error
	FillSelector(ctx context.Context, selector, text string) error
	HoverSelector(ctx context.Context, selector string) error
	ScrollIntoView(ctx context.Context, selector string) error

	UIElements(ctx context.Context) ([]entity.UIElement, error)
	DOMSnapshot(ctx context.Context) (string, error)

	WaitIdle(ctx context.Context, timeout time.Duration) error
}

// Engine owns the pool of pages.
type Engine interface {
	Pages(ctx context.Context) ([]Page, error)
	// ActivePage is the engine's own notion of the active page; nil when unknown.
	ActivePage(ctx context.Context) (Page, error)
	NewPage(ctx context.Context, url string) (Page, error)
	Close()
}

// TabTracker reports the URL of the tab the user currently sees.
type TabTracker interface {
	ActiveTabURL(ctx context.Context) string
}
