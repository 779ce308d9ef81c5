package primitives

// setFocusedValueJS writes text into the focused element. Form controls go
// through the native value setter so framework-managed inputs see the change;
// contenteditable hosts get their text content replaced or extended.
const setFocusedValueJS = `(text, clear) => {
	const el = document.activeElement;
	if (!el || el === document.body) {
		return {ok: false, reason: "no element has focus"};
	}
	const tag = el.tagName.toLowerCase();
	if (tag === "input" || tag === "textarea" || tag === "select") {
		const proto = Object.getPrototypeOf(el);
		const desc = Object.getOwnPropertyDescriptor(proto, "value");
		const next = clear ? text : (el.value || "") + text;
		if (desc && desc.set) {
			desc.set.call(el, next);
		} else {
			el.value = next;
		}
	} else if (el.isContentEditable) {
		el.textContent = clear ? text : (el.textContent || "") + text;
	} else {
		return {ok: false, reason: "focused element <" + tag + "> is not editable"};
	}
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return {ok: true, tag: tag};
}`

const scrollByJS = `(dx, dy) => {
	window.scrollBy(dx, dy);
	return {x: window.scrollX, y: window.scrollY};
}`
