package primitives

import "strings"

var keyAliases = map[string]string{
	"ctrl":       "Control",
	"control":    "Control",
	"cmd":        "Meta",
	"command":    "Meta",
	"meta":       "Meta",
	"super":      "Meta",
	"win":        "Meta",
	"alt":        "Alt",
	"option":     "Alt",
	"shift":      "Shift",
	"enter":      "Enter",
	"return":     "Enter",
	"esc":        "Escape",
	"escape":     "Escape",
	"tab":        "Tab",
	"space":      " ",
	"backspace":  "Backspace",
	"delete":     "Delete",
	"del":        "Delete",
	"up":         "ArrowUp",
	"down":       "ArrowDown",
	"left":       "ArrowLeft",
	"right":      "ArrowRight",
	"arrowup":    "ArrowUp",
	"arrowdown":  "ArrowDown",
	"arrowleft":  "ArrowLeft",
	"arrowright": "ArrowRight",
	"pageup":     "PageUp",
	"pagedown":   "PageDown",
	"home":       "Home",
	"end":        "End",
	"insert":     "Insert",
}

// CanonicalKeys maps loose key names ("ctrl", "cmd", "esc") onto the DOM
// KeyboardEvent.key names the engine understands. Single characters and
// function keys pass through unchanged.
func CanonicalKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if canon, ok := keyAliases[strings.ToLower(k)]; ok {
			out = append(out, canon)
			continue
		}
		if len(k) >= 2 && (k[0] == 'f' || k[0] == 'F') && isDigits(k[1:]) {
			out = append(out, "F"+k[1:])
			continue
		}
		out = append(out, k)
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
