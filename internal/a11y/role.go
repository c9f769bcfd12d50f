package a11y

import (
	"strings"

	"github.com/Lemon9247/agentfox/internal/domtree"
)

// nonContentTags never contribute to the tree, regardless of visibility.
var nonContentTags = map[string]bool{
	"SCRIPT": true, "STYLE": true, "NOSCRIPT": true, "TEMPLATE": true,
	"SVG": true, "IFRAME": true,
}

// inputTypeRoles maps an <input> type attribute to its role through a
// closed table; deriveRole maps unlisted types to "textbox".
var inputTypeRoles = map[string]string{
	"text": "textbox", "email": "textbox", "tel": "textbox", "url": "textbox", "password": "textbox",
	"search": "searchbox",
	"number": "spinbutton",
	"range":  "slider",
	"checkbox": "checkbox", "radio": "radio",
	"submit": "button", "reset": "button", "button": "button", "image": "button", "file": "button",
}

// tagRoles is the closed tag-to-role map used once the earlier, more
// specific rules don't apply.
var tagRoles = map[string]string{
	"BUTTON": "button", "NAV": "navigation", "MAIN": "main", "ASIDE": "complementary",
	"FOOTER": "contentinfo", "HEADER": "banner", "FORM": "form", "TABLE": "table",
	"TR": "row", "TD": "cell", "TH": "columnheader", "UL": "list", "OL": "list",
	"LI": "listitem", "DIALOG": "dialog", "IMG": "img", "OPTION": "option",
}

// interactiveRoles is the set of explicit roles that make a node
// interactive even when its tag alone wouldn't.
var interactiveRoles = map[string]bool{
	"button": true, "link": true, "checkbox": true, "radio": true, "textbox": true,
	"combobox": true, "slider": true, "switch": true, "tab": true, "menuitem": true,
	"menuitemcheckbox": true, "menuitemradio": true, "option": true, "treeitem": true,
	"searchbox": true, "spinbutton": true,
}

// interactiveTags are standard interactive elements regardless of role.
var interactiveTags = map[string]bool{
	"A": true, "BUTTON": true, "INPUT": true, "TEXTAREA": true, "SELECT": true,
}

var headingTags = map[string]bool{"H1": true, "H2": true, "H3": true, "H4": true, "H5": true, "H6": true}

// deriveRole implements the priority-ordered role derivation rules.
func deriveRole(n *domtree.Node) string {
	if explicit, ok := n.Attr("role"); ok && strings.TrimSpace(explicit) != "" {
		return strings.TrimSpace(explicit)
	}
	if headingTags[n.Tag] {
		return "heading"
	}
	if n.Tag == "A" {
		if n.HasAttr("href") {
			return "link"
		}
		return "generic"
	}
	if n.Tag == "INPUT" {
		typ, ok := n.Attr("type")
		if !ok || typ == "" {
			typ = "text"
		}
		if role, ok := inputTypeRoles[strings.ToLower(typ)]; ok {
			return role
		}
		return "textbox"
	}
	if n.Tag == "TEXTAREA" {
		return "textbox"
	}
	if n.Tag == "SELECT" {
		if multiple, ok := n.Attr("multiple"); ok && multiple != "false" {
			return "listbox"
		}
		return "combobox"
	}
	if n.Tag == "SECTION" {
		if hasExplicitName(n) {
			return "region"
		}
		return "generic"
	}
	if n.Tag == "ARTICLE" {
		return "article"
	}
	if role, ok := tagRoles[n.Tag]; ok {
		return role
	}
	return "generic"
}

// hasExplicitName reports whether n carries an aria-label, aria-labelledby,
// or title attribute — used only to decide SECTION's role, ahead of the
// full accessible-name computation.
func hasExplicitName(n *domtree.Node) bool {
	if v, ok := n.Attr("aria-label"); ok && strings.TrimSpace(v) != "" {
		return true
	}
	if v, ok := n.Attr("aria-labelledby"); ok && strings.TrimSpace(v) != "" {
		return true
	}
	if v, ok := n.Attr("title"); ok && strings.TrimSpace(v) != "" {
		return true
	}
	return false
}

// isInteractive decides whether n earns a reference in the reference map.
func isInteractive(n *domtree.Node, role string) bool {
	if interactiveTags[n.Tag] {
		return true
	}
	if n.HasAttr("onclick") || n.HasAttr("onmousedown") {
		return true
	}
	if v, ok := n.Attr("contenteditable"); ok && strings.ToLower(v) == "true" {
		return true
	}
	if v, ok := n.Attr("tabindex"); ok {
		if idx, err := parseInt(v); err == nil && idx >= 0 {
			return true
		}
	}
	if interactiveRoles[role] {
		return true
	}
	return false
}
