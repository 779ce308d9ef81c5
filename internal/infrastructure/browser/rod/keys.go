package rod

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-rod/rod/lib/input"
)

var namedKeys = map[string]input.Key{
	"Control":    input.ControlLeft,
	"Meta":       input.MetaLeft,
	"Alt":        input.AltLeft,
	"Shift":      input.ShiftLeft,
	"Enter":      input.Enter,
	"Escape":     input.Escape,
	"Tab":        input.Tab,
	" ":          input.Space,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"Insert":     input.Insert,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Home":       input.Home,
	"End":        input.End,
	"F1":         input.F1,
	"F2":         input.F2,
	"F3":         input.F3,
	"F4":         input.F4,
	"F5":         input.F5,
	"F6":         input.F6,
	"F7":         input.F7,
	"F8":         input.F8,
	"F9":         input.F9,
	"F10":        input.F10,
	"F11":        input.F11,
	"F12":        input.F12,
}

// toRodKeys maps canonical key names onto rod keys. Single printable
// characters map onto themselves.
func toRodKeys(keys []string) ([]input.Key, error) {
	out := make([]input.Key, 0, len(keys))
	for _, k := range keys {
		if key, ok := namedKeys[k]; ok {
			out = append(out, key)
			continue
		}
		if utf8.RuneCountInString(k) == 1 {
			r, _ := utf8.DecodeRuneInString(k)
			out = append(out, input.Key(r))
			continue
		}
		return nil, fmt.Errorf("unsupported key %q", k)
	}
	return out, nil
}
