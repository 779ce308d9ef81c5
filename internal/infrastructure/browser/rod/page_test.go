package rod

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"browser-pilot/internal/infrastructure/logger"
	"browser-pilot/internal/usecase/primitives"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("No browser binary available")
	}

	cfg := DefaultConfig()
	cfg.Headless = true
	cfg.NoSandbox = true
	cfg.MaxScreenshotWidth = 800

	engine, err := NewEngine(context.Background(), cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func serve(t *testing.T, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Headless)
	assert.False(t, cfg.NoSandbox, "sandbox stays on unless asked")
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Equal(t, defaultViewportW, cfg.ViewportWidth)
	assert.Equal(t, defaultViewportH, cfg.ViewportHeight)
}

func TestEngine_NewPageAndPages(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()
	url := serve(t, BasicHTML)

	page, err := engine.NewPage(ctx, url)
	require.NoError(t, err)

	got, err := page.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, url+"/", got)

	pages, err := engine.Pages(ctx)
	require.NoError(t, err)
	var found bool
	for _, p := range pages {
		if p.ID() == page.ID() {
			found = true
			assert.Equal(t, page.CreatedAt(), p.CreatedAt(), "handles are cached per target")
		}
	}
	assert.True(t, found)

	vp, err := page.Viewport(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultViewportW, vp.Width)
	assert.Equal(t, defaultViewportH, vp.Height)
}

func TestPage_MouseClickAndScreenshot(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	page, err := engine.NewPage(ctx, serve(t, InteractiveHTML))
	require.NoError(t, err)

	require.NoError(t, page.ClickSelector(ctx, "#btn"))
	res, err := page.RunJS(ctx, `() => document.getElementById('result').textContent`)
	require.NoError(t, err)
	assert.Equal(t, "Clicked!", res.Str())

	shot, err := page.Screenshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "png", shot.Format)
	assert.Equal(t, 800, shot.Width, "downscaled to the configured width")

	img, format, err := image.Decode(bytes.NewReader(shot.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 800, img.Bounds().Dx())
}

func TestPage_FillAndPressKeys(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	page, err := engine.NewPage(ctx, serve(t, FormHTML))
	require.NoError(t, err)

	require.NoError(t, page.FillSelector(ctx, "#username", "alice"))
	res, err := page.RunJS(ctx, `() => document.getElementById('username').value`)
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Str())

	require.NoError(t, page.ClickSelector(ctx, "#password"))
	require.NoError(t, page.PressKeys(ctx, []string{"x"}))
	res, err = page.RunJS(ctx, `() => document.getElementById('password').value`)
	require.NoError(t, err)
	assert.Equal(t, "x", res.Str())
}

func TestPage_TypeTextIntoContentEditable(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	page, err := engine.NewPage(ctx, serve(t, EditorHTML))
	require.NoError(t, err)

	res := primitives.TypeTextAt(ctx, page, 250, 250, "hello", false, false)
	require.True(t, res.Success, res.Error)

	text, err := page.RunJS(ctx, `() => document.getElementById('editor').textContent`)
	require.NoError(t, err)
	assert.Equal(t, "Draft: hello", text.Str())

	res = primitives.TypeTextAt(ctx, page, 250, 250, "fresh", false, true)
	require.True(t, res.Success, res.Error)

	text, err = page.RunJS(ctx, `() => document.getElementById('editor').textContent`)
	require.NoError(t, err)
	assert.Equal(t, "fresh", text.Str())

	inputs, err := page.RunJS(ctx, `() => document.getElementById('inputs').textContent`)
	require.NoError(t, err)
	assert.Equal(t, "2", inputs.Str())
}

func TestPage_DragAndDrop(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	page, err := engine.NewPage(ctx, serve(t, DragHTML))
	require.NoError(t, err)
	vp, err := page.Viewport(ctx)
	require.NoError(t, err)

	res := primitives.DragAndDrop(ctx, page, 100, 750, 750, 250)
	require.True(t, res.Success, res.Error)

	drop, err := page.RunJS(ctx, `() => document.getElementById('drop').textContent`)
	require.NoError(t, err)
	want := fmt.Sprintf("%d,%d", primitives.Denormalize(750, vp.Width), primitives.Denormalize(250, vp.Height))
	assert.Equal(t, want, drop.Str())
}

func TestPage_UIElementsAndDOMSnapshot(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	page, err := engine.NewPage(ctx, serve(t, RichUIHTML))
	require.NoError(t, err)

	elements, err := page.UIElements(ctx)
	require.NoError(t, err)
	selectors := make(map[string]string)
	for _, el := range elements {
		selectors[el.Selector] = el.Type
	}
	assert.Equal(t, "button", selectors["#btn1"])
	assert.Equal(t, "input", selectors["#input1"])
	assert.Equal(t, "link", selectors["#link1"])

	dom, err := page.DOMSnapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, dom, `id="btn1"`)
	assert.NotContains(t, dom, "data-tooltip")
}

func TestPage_WheelScrolls(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	page, err := engine.NewPage(ctx, serve(t, ScrollableHTML))
	require.NoError(t, err)

	require.NoError(t, page.MouseWheel(ctx, 100, 100, 0, 600))
	require.Eventually(t, func() bool {
		res, err := page.RunJS(ctx, `() => window.scrollY`)
		return err == nil && res.Int() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestPage_ElementNotFound(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	page, err := engine.NewPage(ctx, serve(t, BasicHTML))
	require.NoError(t, err)
	page.(*Page).timeout = 300 * time.Millisecond

	err = page.ClickSelector(ctx, "#missing")
	assert.ErrorContains(t, err, "element not found: #missing")
}
