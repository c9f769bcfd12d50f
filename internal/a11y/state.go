package a11y

import (
	"strconv"
	"strings"

	"github.com/Lemon9247/agentfox/internal/domtree"
)

// State holds the extracted state flags for one node. Fields are omitted
// from serialization when not applicable, so the zero value (all false,
// empty Description) is never emitted as meaningful state by callers that
// check IsZero.
type State struct {
	Checked     bool   `json:"checked,omitempty"`
	HasChecked  bool   `json:"-"`
	Disabled    bool   `json:"disabled,omitempty"`
	Expanded    bool   `json:"expanded,omitempty"`
	HasExpanded bool   `json:"-"`
	Selected    bool   `json:"selected,omitempty"`
	HasSelected bool   `json:"-"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsZero reports whether no state flags were derived, so the tree builder
// can omit the state object entirely for nodes that carry none.
func (s State) IsZero() bool {
	return !s.HasChecked && !s.Disabled && !s.HasExpanded && !s.HasSelected && !s.Required && s.Description == ""
}

var checkableInputTypes = map[string]bool{"checkbox": true, "radio": true}

func extractState(n *domtree.Node, role string, idx *nameIndex, chosenNameFromTitle bool) State {
	var st State

	if n.Tag == "INPUT" {
		if typ, _ := n.Attr("type"); checkableInputTypes[strings.ToLower(typ)] {
			st.HasChecked = true
			st.Checked = n.HasAttr("checked")
		}
	}

	if isNativeFormControl(n.Tag) {
		st.Disabled = n.HasAttr("disabled")
	}
	if v, ok := n.Attr("aria-disabled"); ok && strings.ToLower(v) == "true" {
		st.Disabled = true
	}

	if v, ok := n.Attr("aria-expanded"); ok {
		st.HasExpanded = true
		st.Expanded = strings.ToLower(v) == "true"
	}

	if n.Tag == "OPTION" {
		st.HasSelected = true
		st.Selected = n.HasAttr("selected")
	}
	if v, ok := n.Attr("aria-selected"); ok {
		st.HasSelected = true
		st.Selected = strings.ToLower(v) == "true"
	}

	if isNativeFormControl(n.Tag) {
		if n.HasAttr("required") {
			st.Required = true
		}
	}
	if v, ok := n.Attr("aria-required"); ok && strings.ToLower(v) == "true" {
		st.Required = true
	}

	if ids, ok := n.Attr("aria-describedby"); ok && strings.TrimSpace(ids) != "" {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if target, ok := idx.byID[id]; ok {
				if t := strings.TrimSpace(textContent(target, nil)); t != "" {
					parts = append(parts, t)
				}
			}
		}
		if len(parts) > 0 {
			st.Description = normalizeWhitespace(strings.Join(parts, " "))
		}
	}
	if st.Description == "" && !chosenNameFromTitle {
		if v, ok := n.Attr("title"); ok && strings.TrimSpace(v) != "" {
			st.Description = normalizeWhitespace(v)
		}
	}

	return st
}

func isNativeFormControl(tag string) bool {
	switch tag {
	case "INPUT", "TEXTAREA", "SELECT", "BUTTON":
		return true
	}
	return false
}

// parseTabIndex is a small helper kept beside state extraction since
// tabindex feeds both interactivity and, indirectly, focus order.
func parseTabIndex(n *domtree.Node) (int, bool) {
	v, ok := n.Attr("tabindex")
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}
