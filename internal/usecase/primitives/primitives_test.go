package primitives

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"browser-pilot/internal/application/port/output/outputtest"
	"browser-pilot/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"
)

func effects(p *outputtest.Page) []string {
	var out []string
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, "Viewport") || strings.HasPrefix(c, "URL") {
			continue
		}
		out = append(out, c)
	}
	return out
}

func TestDenormalize(t *testing.T) {
	assert.Equal(t, 720, Denormalize(500, 1440))
	assert.Equal(t, 0, Denormalize(-5, 1440))
	assert.Equal(t, 1440, Denormalize(1200, 1440))
	assert.Equal(t, 0, Denormalize(0, 1440))
	assert.Equal(t, 1440, Denormalize(Range, 1440))
}

func TestDenormalize_MonotonicAndBounded(t *testing.T) {
	for _, dim := range []int{1, 320, 768, 1080, 1440, 2560} {
		prev := -1
		for x := 0; x <= Range; x++ {
			px := Denormalize(float64(x), dim)
			require.GreaterOrEqual(t, px, prev, "dim=%d x=%d", dim, x)
			require.GreaterOrEqual(t, px, 0)
			require.LessOrEqual(t, px, dim)
			prev = px
		}
	}
}

func TestNormalize(t *testing.T) {
	assert.InDelta(t, 500, Normalize(720, 1440), 0.001)
	assert.Equal(t, float64(0), Normalize(10, 0))
}

func TestClickAt(t *testing.T) {
	page := outputtest.NewPage("p1", "https://example.com")

	res := ClickAt(context.Background(), page, 500, 500)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"MouseClick(720,450)"}, effects(page))
}

func TestClickAt_PageErrorBecomesFailedResult(t *testing.T) {
	page := outputtest.NewPage("p1", "")
	page.Errs = map[string]error{"MouseClick": errors.New("target closed")}

	res := ClickAt(context.Background(), page, 10, 10)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "click_at")
	assert.Contains(t, res.Error, "target closed")
}

func TestHoverAt_PanicIsRecovered(t *testing.T) {
	page := outputtest.NewPage("p1", "")
	page.PanicOn = "MouseMove"

	var res entity.ActionResult
	require.NotPanics(t, func() {
		res = HoverAt(context.Background(), page, 10, 10)
	})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "MouseMove exploded")
}

func TestPrimitives_ZeroViewportFails(t *testing.T) {
	page := outputtest.NewPage("p1", "")
	page.Size = entity.Viewport{}

	res := ClickAt(context.Background(), page, 1, 1)
	assert.False(t, res.Success)
	assert.Empty(t, effects(page))
}

func TestTypeTextAt(t *testing.T) {
	page := outputtest.NewPage("p1", "")
	var gotArgs []any
	page.JS = func(js string, args []any) (gson.JSON, error) {
		gotArgs = args
		return gson.New(map[string]any{"ok": true, "tag": "input"}), nil
	}

	res := TypeTextAt(context.Background(), page, 250, 100, "golang", true, true)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"MouseClick(360,90)", "RunJS(2 args)", "PressKeys([Enter])"}, effects(page))
	assert.Equal(t, []any{"golang", true}, gotArgs)
}

func TestTypeTextAt_NotEditable(t *testing.T) {
	page := outputtest.NewPage("p1", "")
	page.JS = func(string, []any) (gson.JSON, error) {
		return gson.New(map[string]any{"ok": false, "reason": "focused element <div> is not editable"}), nil
	}

	res := TypeTextAt(context.Background(), page, 250, 100, "x", true, false)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not editable")
	assert.NotContains(t, effects(page), "PressKeys([Enter])")
}

func TestTypeTextAt_WithoutEnter(t *testing.T) {
	page := outputtest.NewPage("p1", "")
	page.JS = func(string, []any) (gson.JSON, error) {
		return gson.New(map[string]any{"ok": true, "tag": "textarea"}), nil
	}

	res := TypeTextAt(context.Background(), page, 0, 0, "x", false, false)

	require.True(t, res.Success)
	assert.Equal(t, []string{"MouseClick(0,0)", "RunJS(2 args)"}, effects(page))
}

func TestKeyCombination(t *testing.T) {
	page := outputtest.NewPage("p1", "")

	res := KeyCombination(context.Background(), page, []string{"ctrl", "shift", "t"})

	require.True(t, res.Success)
	assert.Equal(t, []string{"PressKeys([Control Shift t])"}, effects(page))

	res = KeyCombination(context.Background(), page, nil)
	assert.False(t, res.Success)
}

func TestCanonicalKeys(t *testing.T) {
	assert.Equal(t,
		[]string{"Meta", "Alt", "Escape", "F5", "ArrowDown", "a"},
		CanonicalKeys([]string{"cmd", "option", "Esc", "f5", "down", "a"}))
}

func TestScrollDocument(t *testing.T) {
	page := outputtest.NewPage("p1", "")
	var gotArgs []any
	page.JS = func(js string, args []any) (gson.JSON, error) {
		gotArgs = args
		return gson.New(map[string]any{"x": 0, "y": 900}), nil
	}

	res := ScrollDocument(context.Background(), page, entity.ScrollDown)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []any{0, 900}, gotArgs)

	res = ScrollDocument(context.Background(), page, entity.ScrollLeft)
	require.True(t, res.Success)
	assert.Equal(t, []any{-1440, 0}, gotArgs)

	res = ScrollDocument(context.Background(), page, "sideways")
	assert.False(t, res.Success)
}

func TestScrollAt_DefaultMagnitude(t *testing.T) {
	page := outputtest.NewPage("p1", "")

	res := ScrollAt(context.Background(), page, 500, 500, entity.ScrollDown, 0)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"MouseMove(720,450)", "MouseWheel(720,450,0,720)"}, effects(page))
}

func TestScrollAt_Up(t *testing.T) {
	page := outputtest.NewPage("p1", "")

	res := ScrollAt(context.Background(), page, 500, 500, entity.ScrollUp, 500)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"MouseMove(720,450)", "MouseWheel(720,450,0,-450)"}, effects(page))
}

func TestDragAndDrop(t *testing.T) {
	page := outputtest.NewPage("p1", "")

	res := DragAndDrop(context.Background(), page, 0, 0, 1000, 1000)

	require.True(t, res.Success, res.Error)
	assert.Equal(t,
		[]string{"MouseMove(0,0)", "MouseDown()", "MouseMove(1440,900)", "MouseUp()"},
		effects(page))
}

func TestNavigate(t *testing.T) {
	page := outputtest.NewPage("p1", "about:blank")

	res := Navigate(context.Background(), page, "example.com")

	require.True(t, res.Success)
	assert.Equal(t, []string{"Navigate(https://example.com)"}, effects(page))
	assert.Equal(t, map[string]any{"url": "https://example.com"}, res.Data)

	res = Navigate(context.Background(), page, "  ")
	assert.False(t, res.Success)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "http://a.b", NormalizeURL("http://a.b"))
	assert.Equal(t, "about:blank", NormalizeURL("about:blank"))
	assert.Equal(t, "https://a.b/c", NormalizeURL(" a.b/c "))
}

func TestWait_RespectsContext(t *testing.T) {
	old := WaitDelay
	WaitDelay = time.Hour
	defer func() { WaitDelay = old }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Wait(ctx)
	assert.False(t, res.Success)
}

func TestRun_Dispatch(t *testing.T) {
	page := outputtest.NewPage("p1", "https://example.com")

	res := Run(context.Background(), page, entity.ClickAtAction{X: 500, Y: 500})
	require.True(t, res.Success)

	res = Run(context.Background(), page, entity.GoBackAction{})
	require.True(t, res.Success)

	res = Run(context.Background(), page, entity.SearchAction{})
	require.True(t, res.Success)

	assert.Equal(t, []string{"MouseClick(720,450)", "GoBack()", "Navigate(" + SearchHomeURL + ")"}, effects(page))

	res = Run(context.Background(), page, entity.ActAction{Instruction: "click login"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not a page primitive")

	res = Run(context.Background(), nil, entity.GoBackAction{})
	assert.False(t, res.Success)
}
