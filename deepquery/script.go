// Package deepquery matches CSS selectors across open shadow roots.
//
// The browser path injects Script into the page; the static path walks an
// x/net/html tree where <template shadowrootmode="open"> marks an attached
// shadow root. Both produce the same order: matches inside a root first,
// then, for every shadow host in that root in document order, the matches
// inside its shadow root, recursively. Nothing is de-duplicated.
// Selectors are evaluated within one tree at a time, so combinators never
// reach across a shadow boundary.
package deepquery

// Script is evaluated with the selector as its only argument. When invoked
// with an element as `this` the traversal starts at that element, otherwise
// at document.
const Script = `function (selector) {
	const start = (this && this.nodeType === Node.ELEMENT_NODE) ? this : document;
	const out = [];
	const walk = (root) => {
		for (const el of root.querySelectorAll(selector)) out.push(el);
		if (root.nodeType === Node.ELEMENT_NODE && root.shadowRoot) walk(root.shadowRoot);
		for (const el of root.querySelectorAll('*')) {
			if (el.shadowRoot) walk(el.shadowRoot);
		}
	};
	walk(start);
	return out;
}`

// AncestorScript returns a zero- or one-element array holding the nearest
// proper ancestor of `this` that matches the selector. parentElement is
// null at a shadow root, so the lookup stays inside the element's tree.
const AncestorScript = `function (selector) {
	const parent = this.parentElement;
	const el = parent ? parent.closest(selector) : null;
	return el ? [el] : [];
}`

// ClickScript dispatches a synthetic click, which also reaches controls
// that are hidden or rendered inside a shadow root.
const ClickScript = `function () { this.click(); }`
