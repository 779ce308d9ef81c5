package entity

import (
	"fmt"
	"math"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var argsJSON = jsoniter.ConfigCompatibleWithStandardLibrary

type ActionName string

const (
	ActionOpenWebBrowser ActionName = "open_web_browser"
	ActionNavigate       ActionName = "navigate"
	ActionGoBack         ActionName = "go_back"
	ActionGoForward      ActionName = "go_forward"
	ActionSearch         ActionName = "search"
	ActionWait           ActionName = "wait_5_seconds"
	ActionClickAt        ActionName = "click_at"
	ActionHoverAt        ActionName = "hover_at"
	ActionTypeTextAt     ActionName = "type_text_at"
	ActionKeyCombination ActionName = "key_combination"
	ActionScrollDocument ActionName = "scroll_document"
	ActionScrollAt       ActionName = "scroll_at"
	ActionDragAndDrop    ActionName = "drag_and_drop"
	ActionAct            ActionName = "act"
)

func (n ActionName) String() string { return string(n) }

// Action is one validated, typed action request.
type Action interface {
	Name() ActionName
	Validate() error
}

type ScrollDirection string

const (
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

func (d ScrollDirection) Valid() bool {
	switch d {
	case ScrollUp, ScrollDown, ScrollLeft, ScrollRight:
		return true
	}
	return false
}

// Vertical reports whether the direction moves along the Y axis.
func (d ScrollDirection) Vertical() bool {
	return d == ScrollUp || d == ScrollDown
}

const DefaultScrollMagnitude = 800

type OpenWebBrowserAction struct{}

type NavigateAction struct {
	URL string `json:"url"`
}

type GoBackAction struct{}

type GoForwardAction struct{}

type SearchAction struct{}

type WaitAction struct{}

type ClickAtAction struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type HoverAtAction struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type TypeTextAtAction struct {
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	Text              string  `json:"text"`
	PressEnter        bool    `json:"press_enter"`
	ClearBeforeTyping bool    `json:"clear_before_typing"`
}

type KeyCombinationAction struct {
	Keys string `json:"keys"`
}

// KeyList splits "Control+Shift+T" into its parts.
func (a KeyCombinationAction) KeyList() []string {
	parts := strings.Split(a.Keys, "+")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}

type ScrollDocumentAction struct {
	Direction ScrollDirection `json:"direction"`
}

type ScrollAtAction struct {
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Direction ScrollDirection `json:"direction"`
	Magnitude float64         `json:"magnitude"`
}

type DragAndDropAction struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	DestinationX float64 `json:"destination_x"`
	DestinationY float64 `json:"destination_y"`
}

// ActAction delegates a natural-language instruction to the act-after-observe executor.
type ActAction struct {
	Instruction string `json:"instruction"`
}

func (OpenWebBrowserAction) Name() ActionName { return ActionOpenWebBrowser }
func (NavigateAction) Name() ActionName       { return ActionNavigate }
func (GoBackAction) Name() ActionName         { return ActionGoBack }
func (GoForwardAction) Name() ActionName      { return ActionGoForward }
func (SearchAction) Name() ActionName         { return ActionSearch }
func (WaitAction) Name() ActionName           { return ActionWait }
func (ClickAtAction) Name() ActionName        { return ActionClickAt }
func (HoverAtAction) Name() ActionName        { return ActionHoverAt }
func (TypeTextAtAction) Name() ActionName     { return ActionTypeTextAt }
func (KeyCombinationAction) Name() ActionName { return ActionKeyCombination }
func (ScrollDocumentAction) Name() ActionName { return ActionScrollDocument }
func (ScrollAtAction) Name() ActionName       { return ActionScrollAt }
func (DragAndDropAction) Name() ActionName    { return ActionDragAndDrop }
func (ActAction) Name() ActionName            { return ActionAct }

func (OpenWebBrowserAction) Validate() error { return nil }
func (GoBackAction) Validate() error         { return nil }
func (GoForwardAction) Validate() error      { return nil }
func (SearchAction) Validate() error         { return nil }
func (WaitAction) Validate() error           { return nil }

func (a NavigateAction) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

func (a ClickAtAction) Validate() error { return validatePoint(a.X, a.Y) }
func (a HoverAtAction) Validate() error { return validatePoint(a.X, a.Y) }

func (a TypeTextAtAction) Validate() error { return validatePoint(a.X, a.Y) }

func (a KeyCombinationAction) Validate() error {
	if len(a.KeyList()) == 0 {
		return fmt.Errorf("keys is required")
	}
	return nil
}

func (a ScrollDocumentAction) Validate() error {
	if !a.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", a.Direction)
	}
	return nil
}

func (a ScrollAtAction) Validate() error {
	if err := validatePoint(a.X, a.Y); err != nil {
		return err
	}
	if !a.Direction.Valid() {
		return fmt.Errorf("invalid direction %q", a.Direction)
	}
	if a.Magnitude < 0 || math.IsNaN(a.Magnitude) {
		return fmt.Errorf("invalid magnitude %v", a.Magnitude)
	}
	return nil
}

func (a DragAndDropAction) Validate() error {
	if err := validatePoint(a.X, a.Y); err != nil {
		return err
	}
	return validatePoint(a.DestinationX, a.DestinationY)
}

func (a ActAction) Validate() error {
	if strings.TrimSpace(a.Instruction) == "" {
		return fmt.Errorf("instruction is required")
	}
	return nil
}

func validatePoint(x, y float64) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("invalid coordinates (%v, %v)", x, y)
	}
	return nil
}

// SafetyDecision is the lower-case safety shape attached by vision computer-use models.
type SafetyDecision struct {
	Decision    string `json:"decision"`
	Explanation string `json:"explanation,omitempty"`
}

const (
	SafetyRegular             = "regular"
	SafetyRequireConfirmation = "require_confirmation"
	SafetyBlock               = "block"
)

// PolicyVerdict is the upper-case safety shape. It is kept apart from
// SafetyDecision on purpose: nothing maps one onto the other yet.
type PolicyVerdict struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

const (
	PolicyAllowed              = "ALLOWED"
	PolicyRequiresConfirmation = "REQUIRES_CONFIRMATION"
	PolicyBlocked              = "BLOCKED"
)

const safetyArgKey = "safety_decision"

// ParsedCall is a function call decoded into its typed action.
type ParsedCall struct {
	Action Action
	Safety *SafetyDecision
	Policy *PolicyVerdict
}

// Blocked reports whether the lower-case safety shape forbids running the action.
func (p *ParsedCall) Blocked() bool {
	return p.Safety != nil && p.Safety.Decision == SafetyBlock
}

// ParseAction decodes call into its typed action. Unknown names and invalid
// arguments are rejected with an ActionFailed error.
func ParseAction(call FunctionCall) (*ParsedCall, error) {
	const op = "ParseAction"

	args := make(map[string]any, len(call.Args))
	for k, v := range call.Args {
		args[k] = v
	}

	parsed := &ParsedCall{}
	if raw, ok := args[safetyArgKey]; ok {
		delete(args, safetyArgKey)
		if err := parseSafety(raw, parsed); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
	}

	var action Action
	switch ActionName(call.Name) {
	case ActionOpenWebBrowser:
		action = OpenWebBrowserAction{}
	case ActionNavigate:
		var a NavigateAction
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	case ActionGoBack:
		action = GoBackAction{}
	case ActionGoForward:
		action = GoForwardAction{}
	case ActionSearch:
		action = SearchAction{}
	case ActionWait:
		action = WaitAction{}
	case ActionClickAt:
		var a ClickAtAction
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	case ActionHoverAt:
		var a HoverAtAction
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	case ActionTypeTextAt:
		a := TypeTextAtAction{PressEnter: true, ClearBeforeTyping: true}
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	case ActionKeyCombination:
		var a KeyCombinationAction
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	case ActionScrollDocument:
		var a ScrollDocumentAction
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	case ActionScrollAt:
		a := ScrollAtAction{Magnitude: DefaultScrollMagnitude}
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	case ActionDragAndDrop:
		var a DragAndDropAction
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	case ActionAct:
		var a ActAction
		if err := decodeArgs(args, &a); err != nil {
			return nil, NewError(ErrorKindActionFailed, op, err)
		}
		action = a
	default:
		return nil, Errorf(ErrorKindActionFailed, op, "unknown action %q", call.Name)
	}

	if err := action.Validate(); err != nil {
		return nil, Errorf(ErrorKindActionFailed, op, "%s: %v", call.Name, err)
	}
	parsed.Action = action
	return parsed, nil
}

func decodeArgs(args map[string]any, dst any) error {
	if len(args) == 0 {
		return nil
	}
	data, err := argsJSON.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := argsJSON.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

func parseSafety(raw any, parsed *ParsedCall) error {
	data, err := argsJSON.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode %s: %w", safetyArgKey, err)
	}

	var shape struct {
		Decision string `json:"decision"`
	}
	if err := argsJSON.Unmarshal(data, &shape); err != nil {
		return fmt.Errorf("decode %s: %w", safetyArgKey, err)
	}

	switch shape.Decision {
	case SafetyRegular, SafetyRequireConfirmation, SafetyBlock:
		var s SafetyDecision
		if err := argsJSON.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode %s: %w", safetyArgKey, err)
		}
		parsed.Safety = &s
	case PolicyAllowed, PolicyRequiresConfirmation, PolicyBlocked:
		var v PolicyVerdict
		if err := argsJSON.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode %s: %w", safetyArgKey, err)
		}
		parsed.Policy = &v
	default:
		return fmt.Errorf("unrecognised %s %q", safetyArgKey, shape.Decision)
	}
	return nil
}
