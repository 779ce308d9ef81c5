package rod

import (
	"fmt"
	"strings"

	"browser-pilot/internal/domain/entity"

	"github.com/ysmood/gson"
)

type ExtractConfig struct {
	OnlyInViewport bool
	MaxElements    int
}

var DefaultExtractConfig = ExtractConfig{
	OnlyInViewport: true,
	MaxElements:    500,
}

// extractUIJS walks interactive elements in document order and returns
// plain records. Selectors prefer #id, then a test id, then a CSS path.
const extractUIJS = `(maxElements, onlyInViewport) => {
	const groups = [
		["button", "button, [role='button'], input[type='submit'], input[type='button']"],
		["input", "input:not([type='hidden']):not([type='submit']):not([type='button']), textarea, select, [contenteditable='true']"],
		["checkbox", "input[type='checkbox'], [role='checkbox']"],
		["link", "a[href]"],
		["element", "[data-testid], [data-test-id], [aria-label]:not([aria-label=''])"],
	];
	const cssPath = (el) => {
		if (el.id) return "#" + CSS.escape(el.id);
		const testId = el.getAttribute("data-testid") || el.getAttribute("data-test-id");
		if (testId) return "[data-testid='" + testId.replace(/'/g, "\\'") + "']";
		const parts = [];
		for (let n = el; n && n.nodeType === 1 && n !== document.body; n = n.parentElement) {
			if (n.id) { parts.unshift("#" + CSS.escape(n.id)); break; }
			let i = 1;
			for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
				if (s.tagName === n.tagName) i++;
			}
			parts.unshift(n.tagName.toLowerCase() + ":nth-of-type(" + i + ")");
		}
		if (parts.length === 0 || !parts[0].startsWith("#")) parts.unshift("body");
		return parts.join(" > ");
	};
	const visible = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width === 0 || r.height === 0) return false;
		const st = getComputedStyle(el);
		return st.visibility !== "hidden" && st.display !== "none";
	};
	const inViewport = (el) => {
		const r = el.getBoundingClientRect();
		return r.top < window.innerHeight && r.bottom >= 0 && r.left < window.innerWidth && r.right >= 0;
	};
	const seen = new Set();
	const out = [];
	for (const [type, query] of groups) {
		for (const el of document.querySelectorAll(query)) {
			if (out.length >= maxElements) return out;
			if (seen.has(el) || !visible(el)) continue;
			if (onlyInViewport && !inViewport(el)) continue;
			seen.add(el);
			out.push({
				type: type,
				text: (el.innerText || el.value || "").trim().slice(0, 200),
				aria: el.getAttribute("aria-label") || el.getAttribute("data-tooltip") || el.getAttribute("title") || el.getAttribute("placeholder") || "",
				role: el.getAttribute("role") || "",
				selector: cssPath(el),
			});
		}
	}
	return out;
}`

// parseUIElements converts the extractor records, dropping entries without a
// selector and assigning sequential ids.
func parseUIElements(res gson.JSON) []entity.UIElement {
	var out []entity.UIElement
	seen := make(map[string]bool)
	for _, item := range res.Arr() {
		selector := strings.TrimSpace(item.Get("selector").Str())
		if selector == "" || seen[selector] {
			continue
		}
		seen[selector] = true

		text := strings.TrimSpace(item.Get("text").Str())
		out = append(out, entity.UIElement{
			ID:        fmt.Sprintf("ui-%04d", len(out)),
			Type:      item.Get("type").Str(),
			Text:      text,
			AriaLabel: firstNonEmpty(item.Get("aria").Str(), text),
			Role:      item.Get("role").Str(),
			Selector:  selector,
		})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
