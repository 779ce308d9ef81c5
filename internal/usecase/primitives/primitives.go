// Package primitives turns normalized action requests into effects on a page.
// Every primitive reports failure through entity.ActionResult and never
// panics or returns a Go error across its boundary.
package primitives

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

const SearchHomeURL = "https://www.google.com"

// WaitDelay is how long wait_5_seconds pauses.
var WaitDelay = 5 * time.Second

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func safe(name string, fn func() (any, error)) (res entity.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			res = entity.ActionResult{Success: false, Error: fmt.Sprintf("%s: panic: %v", name, r)}
		}
	}()
	data, err := fn()
	if err != nil {
		return entity.Failed(fmt.Errorf("%s: %w", name, err))
	}
	return entity.Succeeded(data)
}

func toPixels(ctx context.Context, page output.Page, x, y float64) (point, entity.Viewport, error) {
	vp, err := page.Viewport(ctx)
	if err != nil {
		return point{}, vp, fmt.Errorf("read viewport: %w", err)
	}
	if vp.Width <= 0 || vp.Height <= 0 {
		return point{}, vp, fmt.Errorf("viewport has no size (%dx%d)", vp.Width, vp.Height)
	}
	return point{X: Denormalize(x, vp.Width), Y: Denormalize(y, vp.Height)}, vp, nil
}

// NormalizeURL adds https:// to bare hosts.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"http://", "https://", "file://", "about:", "data:", "chrome://"} {
		if strings.HasPrefix(lower, prefix) {
			return raw
		}
	}
	return "https://" + raw
}

func Navigate(ctx context.Context, page output.Page, url string) entity.ActionResult {
	return safe("navigate", func() (any, error) {
		target := NormalizeURL(url)
		if target == "" {
			return nil, errors.New("url is empty")
		}
		if err := page.Navigate(ctx, target); err != nil {
			return nil, err
		}
		return map[string]any{"url": target}, nil
	})
}

func GoBack(ctx context.Context, page output.Page) entity.ActionResult {
	return safe("go_back", func() (any, error) {
		return nil, page.GoBack(ctx)
	})
}

func GoForward(ctx context.Context, page output.Page) entity.ActionResult {
	return safe("go_forward", func() (any, error) {
		return nil, page.GoForward(ctx)
	})
}

func Search(ctx context.Context, page output.Page) entity.ActionResult {
	return Navigate(ctx, page, SearchHomeURL)
}

// OpenWebBrowser reports the page that is already open; the engine owns the browser.
func OpenWebBrowser(ctx context.Context, page output.Page) entity.ActionResult {
	return safe("open_web_browser", func() (any, error) {
		url, err := page.URL(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"url": url}, nil
	})
}

func Wait(ctx context.Context) entity.ActionResult {
	return safe("wait_5_seconds", func() (any, error) {
		timer := time.NewTimer(WaitDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		}
	})
}

func ClickAt(ctx context.Context, page output.Page, x, y float64) entity.ActionResult {
	return safe("click_at", func() (any, error) {
		p, _, err := toPixels(ctx, page, x, y)
		if err != nil {
			return nil, err
		}
		if err := page.MouseClick(ctx, float64(p.X), float64(p.Y)); err != nil {
			return nil, err
		}
		return p, nil
	})
}

func HoverAt(ctx context.Context, page output.Page, x, y float64) entity.ActionResult {
	return safe("hover_at", func() (any, error) {
		p, _, err := toPixels(ctx, page, x, y)
		if err != nil {
			return nil, err
		}
		if err := page.MouseMove(ctx, float64(p.X), float64(p.Y)); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// TypeTextAt focuses the element under (x, y), writes text into it and
// optionally submits with Enter.
func TypeTextAt(ctx context.Context, page output.Page, x, y float64, text string, pressEnter, clearFirst bool) entity.ActionResult {
	return safe("type_text_at", func() (any, error) {
		p, _, err := toPixels(ctx, page, x, y)
		if err != nil {
			return nil, err
		}
		if err := page.MouseClick(ctx, float64(p.X), float64(p.Y)); err != nil {
			return nil, fmt.Errorf("focus: %w", err)
		}

		res, err := page.RunJS(ctx, setFocusedValueJS, text, clearFirst)
		if err != nil {
			return nil, fmt.Errorf("set value: %w", err)
		}
		if !res.Get("ok").Bool() {
			return nil, errors.New(res.Get("reason").Str())
		}

		if pressEnter {
			if err := page.PressKeys(ctx, []string{"Enter"}); err != nil {
				return nil, fmt.Errorf("press enter: %w", err)
			}
		}
		return map[string]any{"x": p.X, "y": p.Y, "element": res.Get("tag").Str()}, nil
	})
}

func KeyCombination(ctx context.Context, page output.Page, keys []string) entity.ActionResult {
	return safe("key_combination", func() (any, error) {
		if len(keys) == 0 {
			return nil, errors.New("no keys given")
		}
		canon := CanonicalKeys(keys)
		if err := page.PressKeys(ctx, canon); err != nil {
			return nil, err
		}
		return map[string]any{"keys": strings.Join(canon, "+")}, nil
	})
}

// ScrollDocument scrolls the whole document by one viewport in direction.
func ScrollDocument(ctx context.Context, page output.Page, direction entity.ScrollDirection) entity.ActionResult {
	return safe("scroll_document", func() (any, error) {
		if !direction.Valid() {
			return nil, fmt.Errorf("invalid direction %q", direction)
		}
		vp, err := page.Viewport(ctx)
		if err != nil {
			return nil, fmt.Errorf("read viewport: %w", err)
		}
		dx, dy := scrollDelta(direction, vp.Width, vp.Height)
		res, err := page.RunJS(ctx, scrollByJS, dx, dy)
		if err != nil {
			return nil, err
		}
		return point{X: res.Get("x").Int(), Y: res.Get("y").Int()}, nil
	})
}

// ScrollAt scrolls the element under (x, y). magnitude is in normalized units
// along the scroll axis; zero means DefaultScrollMagnitude.
func ScrollAt(ctx context.Context, page output.Page, x, y float64, direction entity.ScrollDirection, magnitude float64) entity.ActionResult {
	return safe("scroll_at", func() (any, error) {
		if !direction.Valid() {
			return nil, fmt.Errorf("invalid direction %q", direction)
		}
		if magnitude <= 0 {
			magnitude = entity.DefaultScrollMagnitude
		}
		p, vp, err := toPixels(ctx, page, x, y)
		if err != nil {
			return nil, err
		}
		w := Denormalize(magnitude, vp.Width)
		h := Denormalize(magnitude, vp.Height)
		dx, dy := scrollDelta(direction, w, h)

		if err := page.MouseMove(ctx, float64(p.X), float64(p.Y)); err != nil {
			return nil, err
		}
		if err := page.MouseWheel(ctx, float64(p.X), float64(p.Y), float64(dx), float64(dy)); err != nil {
			return nil, err
		}
		return map[string]any{"x": p.X, "y": p.Y, "dx": dx, "dy": dy}, nil
	})
}

func DragAndDrop(ctx context.Context, page output.Page, x, y, destX, destY float64) entity.ActionResult {
	return safe("drag_and_drop", func() (any, error) {
		from, vp, err := toPixels(ctx, page, x, y)
		if err != nil {
			return nil, err
		}
		to := point{X: Denormalize(destX, vp.Width), Y: Denormalize(destY, vp.Height)}

		if err := page.MouseMove(ctx, float64(from.X), float64(from.Y)); err != nil {
			return nil, err
		}
		if err := page.MouseDown(ctx); err != nil {
			return nil, err
		}
		if err := page.MouseMove(ctx, float64(to.X), float64(to.Y)); err != nil {
			_ = page.MouseUp(ctx)
			return nil, err
		}
		if err := page.MouseUp(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"from": from, "to": to}, nil
	})
}

func scrollDelta(direction entity.ScrollDirection, width, height int) (int, int) {
	switch direction {
	case entity.ScrollUp:
		return 0, -height
	case entity.ScrollDown:
		return 0, height
	case entity.ScrollLeft:
		return -width, 0
	case entity.ScrollRight:
		return width, 0
	}
	return 0, 0
}

// Run dispatches a typed action to its primitive. act is not a primitive and
// is rejected here.
func Run(ctx context.Context, page output.Page, action entity.Action) entity.ActionResult {
	if page == nil {
		return entity.Failed(errors.New("no page"))
	}
	switch a := action.(type) {
	case entity.OpenWebBrowserAction:
		return OpenWebBrowser(ctx, page)
	case entity.NavigateAction:
		return Navigate(ctx, page, a.URL)
	case entity.GoBackAction:
		return GoBack(ctx, page)
	case entity.GoForwardAction:
		return GoForward(ctx, page)
	case entity.SearchAction:
		return Search(ctx, page)
	case entity.WaitAction:
		return Wait(ctx)
	case entity.ClickAtAction:
		return ClickAt(ctx, page, a.X, a.Y)
	case entity.HoverAtAction:
		return HoverAt(ctx, page, a.X, a.Y)
	case entity.TypeTextAtAction:
		return TypeTextAt(ctx, page, a.X, a.Y, a.Text, a.PressEnter, a.ClearBeforeTyping)
	case entity.KeyCombinationAction:
		return KeyCombination(ctx, page, a.KeyList())
	case entity.ScrollDocumentAction:
		return ScrollDocument(ctx, page, a.Direction)
	case entity.ScrollAtAction:
		return ScrollAt(ctx, page, a.X, a.Y, a.Direction, a.Magnitude)
	case entity.DragAndDropAction:
		return DragAndDrop(ctx, page, a.X, a.Y, a.DestinationX, a.DestinationY)
	case nil:
		return entity.Failed(errors.New("no action"))
	default:
		return entity.Failed(fmt.Errorf("%s is not a page primitive", action.Name()))
	}
}
