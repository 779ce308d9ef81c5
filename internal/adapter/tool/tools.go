package tool

import (
	"context"
	"fmt"

	"browser-pilot/internal/application/port/input"
	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/usecase/primitives"
)

var (
	_ output.ToolPort = (*PageTool)(nil)
	_ output.ToolPort = (*ActTool)(nil)
)

// PageTool exposes one action primitive bound to a page.
type PageTool struct {
	name        entity.ActionName
	description string
	parameters  map[string]interface{}
	page        output.Page
}

func (t *PageTool) Name() entity.ActionName            { return t.name }
func (t *PageTool) Description() string                { return t.description }
func (t *PageTool) Parameters() map[string]interface{} { return t.parameters }

func (t *PageTool) Execute(ctx context.Context, action entity.Action) entity.ActionResult {
	if action == nil || action.Name() != t.name {
		return entity.Failed(fmt.Errorf("%s tool got a different action", t.name))
	}
	return primitives.Run(ctx, t.page, action)
}

type ActTool struct {
	executor input.ActExecutor
	logger   output.LoggerPort
}

func NewActTool(executor input.ActExecutor, logger output.LoggerPort) *ActTool {
	return &ActTool{executor: executor, logger: logger}
}

func (t *ActTool) Name() entity.ActionName { return entity.ActionAct }
func (t *ActTool) Description() string {
	return "Performs one action described in words, e.g. 'click the Sign in button'. " +
		"Use when the target is easier to describe than to point at."
}
func (t *ActTool) Parameters() map[string]interface{} {
	return object(map[string]interface{}{
		"instruction": str("What to do on the page, one action"),
	}, "instruction")
}

func (t *ActTool) Execute(ctx context.Context, action entity.Action) entity.ActionResult {
	a, ok := action.(entity.ActAction)
	if !ok {
		return entity.Failed(fmt.Errorf("act tool got %T", action))
	}

	res := t.executor.ActAfterObserve(ctx, a.Instruction)
	if res == nil {
		return entity.Failed(fmt.Errorf("act returned no result"))
	}
	t.logger.Debug("Act finished", "instruction", a.Instruction, "success", res.Success)
	return entity.ActionResult{Success: res.Success, Error: res.Error, Data: res}
}

// BrowserTools builds the full tool set for one page. executor may be nil,
// in which case act is left out.
func BrowserTools(page output.Page, executor input.ActExecutor, logger output.LoggerPort) []output.ToolPort {
	tools := []output.ToolPort{
		&PageTool{
			name:        entity.ActionOpenWebBrowser,
			description: "Reports the page that is already open.",
			parameters:  object(nil),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionNavigate,
			description: "Opens a URL in the current page.",
			parameters:  object(map[string]interface{}{"url": str("Absolute URL or bare host")}, "url"),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionGoBack,
			description: "Goes back in history.",
			parameters:  object(nil),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionGoForward,
			description: "Goes forward in history.",
			parameters:  object(nil),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionSearch,
			description: "Opens the search engine home page.",
			parameters:  object(nil),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionWait,
			description: "Waits five seconds for the page to change.",
			parameters:  object(nil),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionClickAt,
			description: "Clicks at a normalized point.",
			parameters:  object(point(), "x", "y"),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionHoverAt,
			description: "Moves the mouse to a normalized point.",
			parameters:  object(point(), "x", "y"),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionTypeTextAt,
			description: "Clicks a field at a normalized point and types text into it.",
			parameters: object(merge(point(), map[string]interface{}{
				"text":                str("Text to enter"),
				"press_enter":         boolean("Submit with Enter afterwards (default true)"),
				"clear_before_typing": boolean("Replace existing content (default true)"),
			}), "x", "y", "text"),
			page: page,
		},
		&PageTool{
			name:        entity.ActionKeyCombination,
			description: "Presses keys together, e.g. 'Control+A' or 'Enter'.",
			parameters:  object(map[string]interface{}{"keys": str("Keys joined with +")}, "keys"),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionScrollDocument,
			description: "Scrolls the whole page by one screen.",
			parameters:  object(map[string]interface{}{"direction": direction()}, "direction"),
			page:        page,
		},
		&PageTool{
			name:        entity.ActionScrollAt,
			description: "Scrolls the element under a normalized point.",
			parameters: object(merge(point(), map[string]interface{}{
				"direction": direction(),
				"magnitude": number(fmt.Sprintf("Distance in normalized units (default %d)", entity.DefaultScrollMagnitude)),
			}), "x", "y", "direction"),
			page: page,
		},
		&PageTool{
			name:        entity.ActionDragAndDrop,
			description: "Drags from one normalized point to another.",
			parameters: object(merge(point(), map[string]interface{}{
				"destination_x": number(fmt.Sprintf("Drop x, 0-%d", primitives.Range)),
				"destination_y": number(fmt.Sprintf("Drop y, 0-%d", primitives.Range)),
			}), "x", "y", "destination_x", "destination_y"),
			page: page,
		},
	}

	if executor != nil {
		tools = append(tools, NewActTool(executor, logger))
	}
	return tools
}

func object(props map[string]interface{}, required ...string) map[string]interface{} {
	if props == nil {
		props = map[string]interface{}{}
	}
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func str(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func number(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": desc}
}

func boolean(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc}
}

func direction() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"up", "down", "left", "right"},
		"description": "Scroll direction",
	}
}

func point() map[string]interface{} {
	return map[string]interface{}{
		"x": number(fmt.Sprintf("Horizontal position, 0-%d", primitives.Range)),
		"y": number(fmt.Sprintf("Vertical position, 0-%d", primitives.Range)),
	}
}

func merge(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
