package userinteraction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

var _ output.UserInteractionPort = (*Console)(nil)

type readResult struct {
	text string
	err  error
}

type Console struct {
	reader   *bufio.Reader
	out      io.Writer
	maxTurns int

	mu sync.Mutex
	// pending is a read still in flight after its caller gave up.
	pending chan readResult
}

func NewConsole(in io.Reader, out io.Writer, maxTurns int) *Console {
	return &Console{
		reader:   bufio.NewReader(in),
		out:      out,
		maxTurns: maxTurns,
	}
}

// ReadGoal prompts for the next goal. io.EOF means the user is done.
func (c *Console) ReadGoal(ctx context.Context) (string, error) {
	c.mu.Lock()
	color.New(color.FgCyan, color.Bold).Fprint(c.out, "\ngoal> ")
	ch := c.pending
	if ch == nil {
		ch = make(chan readResult, 1)
		go func() {
			text, err := c.reader.ReadString('\n')
			ch <- readResult{text: text, err: err}
		}()
	}
	c.pending = nil
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		c.pending = ch
		c.mu.Unlock()
		return "", ctx.Err()
	case l := <-ch:
		text := strings.TrimSpace(l.text)
		if l.err != nil && (l.err != io.EOF || text == "") {
			return "", l.err
		}
		return text, nil
	}
}

// Render prints one event. Bookkeeping events are not shown.
func (c *Console) Render(event entity.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch p := event.Payload.(type) {
	case entity.StartPayload:
		color.New(color.FgCyan, color.Bold).Fprintf(c.out, "\n▶ Task: %s\n", p.Goal)

	case entity.TurnPayload:
		turn := color.New(color.FgCyan, color.Bold)
		if c.maxTurns > 0 {
			turn.Fprintf(c.out, "\n━━━ Turn %d/%d ━━━\n", p.Turn, c.maxTurns)
		} else {
			turn.Fprintf(c.out, "\n━━━ Turn %d ━━━\n", p.Turn)
		}

	case entity.ScreenshotPayload:
		if p.URL != "" {
			color.New(color.Faint).Fprintf(c.out, "📸 %s\n", p.URL)
		}

	case entity.ReasoningPayload:
		if p.Text == "" {
			return
		}
		color.New(color.FgBlue).Fprint(c.out, "💭 ")
		color.New(color.Faint).Fprintln(c.out, truncate(p.Text, 500))

	case entity.ActionPayload:
		icon, name := actionDisplay(p.Name)
		color.New(color.FgYellow, color.Bold).Fprintf(c.out, "%s %s\n", icon, name)
		if summary := formatActionArgs(p.Name, p.Args); summary != "" {
			color.New(color.Faint).Fprintf(c.out, "   %s\n", summary)
		}

	case entity.ActionCompletePayload:
		if !p.Success {
			color.New(color.FgRed).Fprint(c.out, "❌ Failed: ")
			color.New(color.Faint).Fprintln(c.out, truncate(p.Result, 300))
			return
		}
		color.New(color.FgGreen).Fprintf(c.out, "✓ %s\n", truncate(p.Result, 100))

	case entity.CompletePayload:
		color.New(color.FgGreen, color.Bold).Fprintf(c.out, "\n✅ Done in %s\n", p.Duration.Round(100*time.Millisecond))
		fmt.Fprintln(c.out, p.FinalResponse)

	case entity.ErrorPayload:
		color.New(color.FgRed, color.Bold).Fprintf(c.out, "\n✖ Task failed at turn %d: %s\n", p.Turn, p.Error)

	case entity.CancelledPayload:
		color.New(color.FgYellow, color.Bold).Fprintln(c.out, "\n⏹ Task cancelled")

	case entity.PausedPayload:
		color.New(color.FgYellow).Fprintln(c.out, "⏸ Paused")

	case entity.ResumedPayload:
		color.New(color.FgYellow).Fprintln(c.out, "▶ Resumed")
	}
}

func actionDisplay(name string) (string, string) {
	displays := map[string][2]string{
		"open_web_browser": {"🌐", "Open browser"},
		"navigate":         {"🌐", "Navigate"},
		"go_back":          {"⬅️", "Back"},
		"go_forward":       {"➡️", "Forward"},
		"search":           {"🔎", "Search"},
		"wait_5_seconds":   {"⏳", "Wait"},
		"click_at":         {"🖱️", "Click"},
		"hover_at":         {"🖱️", "Hover"},
		"type_text_at":     {"✏️", "Type"},
		"key_combination":  {"⌨️", "Keys"},
		"scroll_document":  {"📜", "Scroll page"},
		"scroll_at":        {"📜", "Scroll"},
		"drag_and_drop":    {"✋", "Drag"},
		"act":              {"👁️", "Act"},
		"task_summary":     {"📋", "Summary"},
	}
	if display, ok := displays[name]; ok {
		return display[0], display[1]
	}
	return "🔧", name
}

func formatActionArgs(name string, args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	str := func(key string) string {
		s, _ := args[key].(string)
		return s
	}

	switch name {
	case "navigate":
		return "URL: " + str("url")
	case "type_text_at":
		return fmt.Sprintf("(%v, %v) → %s", args["x"], args["y"], truncate(str("text"), 40))
	case "click_at", "hover_at":
		return fmt.Sprintf("(%v, %v)", args["x"], args["y"])
	case "key_combination":
		return str("keys")
	case "scroll_document":
		return str("direction")
	case "scroll_at":
		return fmt.Sprintf("%s at (%v, %v)", str("direction"), args["x"], args["y"])
	case "drag_and_drop":
		return fmt.Sprintf("(%v, %v) → (%v, %v)", args["x"], args["y"], args["destination_x"], args["destination_y"])
	case "act":
		return truncate(str("instruction"), 80)
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return truncate(strings.Join(parts, " "), 100)
}

// truncate limits s to maxLen terminal cells before the ellipsis.
func truncate(s string, maxLen int) string {
	if runewidth.StringWidth(s) <= maxLen {
		return s
	}
	return runewidth.Truncate(s, maxLen+3, "...")
}
