package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"strings"
	"sync"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"

	"github.com/disintegration/imaging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

var _ output.Page = (*Page)(nil)

type Page struct {
	page     *rod.Page
	created  time.Time
	timeout  time.Duration
	maxWidth int

	// Mouse position and button state persist between dispatched events.
	mouseMu sync.Mutex
	mouseX  float64
	mouseY  float64
	pressed bool
}

func newPage(p *rod.Page, created time.Time, cfg Config) *Page {
	return &Page{
		page:     p,
		created:  created,
		timeout:  cfg.Timeout,
		maxWidth: cfg.MaxScreenshotWidth,
	}
}

func (p *Page) ID() string           { return string(p.page.TargetID) }
func (p *Page) CreatedAt() time.Time { return p.created }

func (p *Page) with(ctx context.Context) *rod.Page {
	return p.page.Context(ctx)
}

func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.with(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

func (p *Page) Viewport(ctx context.Context) (entity.Viewport, error) {
	res, err := p.RunJS(ctx, `() => ({width: window.innerWidth, height: window.innerHeight})`)
	if err != nil {
		return entity.Viewport{}, err
	}
	vp := entity.Viewport{Width: res.Get("width").Int(), Height: res.Get("height").Int()}
	if vp.Width <= 0 || vp.Height <= 0 {
		return entity.Viewport{}, fmt.Errorf("invalid viewport %dx%d", vp.Width, vp.Height)
	}
	return vp, nil
}

// Screenshot captures the visible viewport as PNG, downscaled to the configured width.
func (p *Page) Screenshot(ctx context.Context) (*entity.Screenshot, error) {
	raw, err := p.with(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	if p.maxWidth > 0 && img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
		buf := new(bytes.Buffer)
		if err := imaging.Encode(buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("png encode failed: %w", err)
		}
		raw = buf.Bytes()
	}

	url, _ := p.URL(ctx)
	return &entity.Screenshot{
		Data:       raw,
		Format:     "png",
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		URL:        url,
		CapturedAt: time.Now(),
	}, nil
}

func (p *Page) RunJS(ctx context.Context, js string, args ...any) (gson.JSON, error) {
	res, err := p.with(ctx).Eval(js, args...)
	if err != nil {
		return gson.JSON{}, fmt.Errorf("eval: %w", err)
	}
	return res.Value, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.with(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.Timeout(p.timeout).WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

func (p *Page) GoBack(ctx context.Context) error {
	if err := p.with(ctx).NavigateBack(); err != nil {
		return fmt.Errorf("go back: %w", err)
	}
	return nil
}

func (p *Page) GoForward(ctx context.Context) error {
	if err := p.with(ctx).NavigateForward(); err != nil {
		return fmt.Errorf("go forward: %w", err)
	}
	return nil
}

func (p *Page) dispatchMouse(ctx context.Context, ev proto.InputDispatchMouseEvent) error {
	if err := ev.Call(p.with(ctx)); err != nil {
		return fmt.Errorf("mouse %s: %w", ev.Type, err)
	}
	return nil
}

func (p *Page) buttons() *int {
	if p.pressed {
		return gson.Int(1)
	}
	return gson.Int(0)
}

func (p *Page) MouseMove(ctx context.Context, x, y float64) error {
	p.mouseMu.Lock()
	defer p.mouseMu.Unlock()
	button := proto.InputMouseButtonNone
	if p.pressed {
		button = proto.InputMouseButtonLeft
	}
	if err := p.dispatchMouse(ctx, proto.InputDispatchMouseEvent{
		Type:    proto.InputDispatchMouseEventTypeMouseMoved,
		X:       x,
		Y:       y,
		Button:  button,
		Buttons: p.buttons(),
	}); err != nil {
		return err
	}
	p.mouseX, p.mouseY = x, y
	return nil
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	if err := p.MouseMove(ctx, x, y); err != nil {
		return err
	}
	if err := p.MouseDown(ctx); err != nil {
		return err
	}
	return p.MouseUp(ctx)
}

func (p *Page) MouseDown(ctx context.Context) error {
	p.mouseMu.Lock()
	defer p.mouseMu.Unlock()
	if err := p.dispatchMouse(ctx, proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventTypeMousePressed,
		X:          p.mouseX,
		Y:          p.mouseY,
		Button:     proto.InputMouseButtonLeft,
		Buttons:    gson.Int(1),
		ClickCount: 1,
	}); err != nil {
		return err
	}
	p.pressed = true
	return nil
}

func (p *Page) MouseUp(ctx context.Context) error {
	p.mouseMu.Lock()
	defer p.mouseMu.Unlock()
	p.pressed = false
	return p.dispatchMouse(ctx, proto.InputDispatchMouseEvent{
		Type:       proto.InputDispatchMouseEventTypeMouseReleased,
		X:          p.mouseX,
		Y:          p.mouseY,
		Button:     proto.InputMouseButtonLeft,
		Buttons:    gson.Int(0),
		ClickCount: 1,
	})
}

func (p *Page) MouseWheel(ctx context.Context, x, y, deltaX, deltaY float64) error {
	p.mouseMu.Lock()
	defer p.mouseMu.Unlock()
	if err := p.dispatchMouse(ctx, proto.InputDispatchMouseEvent{
		Type:   proto.InputDispatchMouseEventTypeMouseWheel,
		X:      x,
		Y:      y,
		DeltaX: deltaX,
		DeltaY: deltaY,
	}); err != nil {
		return err
	}
	p.mouseX, p.mouseY = x, y
	return nil
}

// PressKeys holds every key but the last as a modifier and types the last one.
func (p *Page) PressKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("no keys")
	}
	mapped, err := toRodKeys(keys)
	if err != nil {
		return err
	}
	mods, last := mapped[:len(mapped)-1], mapped[len(mapped)-1]

	actions := p.with(ctx).KeyActions()
	if len(mods) > 0 {
		actions = actions.Press(mods...)
	}
	actions = actions.Type(last)
	if len(mods) > 0 {
		actions = actions.Release(mods...)
	}
	if err := actions.Do(); err != nil {
		return fmt.Errorf("press %s: %w", strings.Join(keys, "+"), err)
	}
	return nil
}

func (p *Page) element(ctx context.Context, selector string) (*rod.Element, error) {
	page := p.with(ctx).Timeout(p.timeout)
	var (
		el  *rod.Element
		err error
	)
	if isXPathSelector(selector) {
		el, err = page.ElementX(strings.TrimPrefix(selector, "xpath="))
	} else {
		el, err = page.Element(selector)
	}
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el.CancelTimeout(), nil
}

func (p *Page) ClickSelector(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (p *Page) FillSelector(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input failed: %w", err)
	}
	return nil
}

func (p *Page) HoverSelector(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return fmt.Errorf("hover failed: %w", err)
	}
	return nil
}

func (p *Page) ScrollIntoView(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	return nil
}

func (p *Page) UIElements(ctx context.Context) ([]entity.UIElement, error) {
	res, err := p.RunJS(ctx, extractUIJS, DefaultExtractConfig.MaxElements, DefaultExtractConfig.OnlyInViewport)
	if err != nil {
		return nil, fmt.Errorf("extract ui: %w", err)
	}
	return parseUIElements(res), nil
}

func (p *Page) DOMSnapshot(ctx context.Context) (string, error) {
	raw, err := p.with(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return CleanHTML(raw, nil)
}

func (p *Page) WaitIdle(ctx context.Context, timeout time.Duration) error {
	if err := p.with(ctx).WaitIdle(timeout); err != nil {
		return fmt.Errorf("wait idle: %w", err)
	}
	return nil
}

func isXPathSelector(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(") || strings.HasPrefix(selector, "xpath=")
}
