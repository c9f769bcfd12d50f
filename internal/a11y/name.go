package a11y

import (
	"strings"

	"github.com/Lemon9247/agentfox/internal/domtree"
)

var contentNamingTags = map[string]bool{
	"A": true, "BUTTON": true, "H1": true, "H2": true, "H3": true, "H4": true, "H5": true, "H6": true,
	"LABEL": true, "LEGEND": true, "OPTION": true, "LI": true, "TD": true, "TH": true,
}

var formControlTags = map[string]bool{"INPUT": true, "TEXTAREA": true, "SELECT": true, "BUTTON": true}

// nameIndex is document-wide lookup state the accessible-name computation
// needs: elements by id (for aria-labelledby and label[for]) and labels
// indexed by their for target.
type nameIndex struct {
	byID      map[string]*domtree.Node
	labelsFor map[string]*domtree.Node
}

func buildNameIndex(root *domtree.Node) *nameIndex {
	idx := &nameIndex{byID: map[string]*domtree.Node{}, labelsFor: map[string]*domtree.Node{}}
	var walk func(n *domtree.Node)
	walk = func(n *domtree.Node) {
		if n.IsText() {
			return
		}
		if id, ok := n.Attr("id"); ok && id != "" {
			idx.byID[id] = n
		}
		if n.Tag == "LABEL" {
			if forID, ok := n.Attr("for"); ok && forID != "" {
				idx.labelsFor[forID] = n
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return idx
}

// accessibleName computes an element's name following the priority order:
// aria-label, aria-labelledby, form label, alt, title, text content (for
// content-naming tags only), placeholder, submit-style input value.
func accessibleName(n *domtree.Node, role string, idx *nameIndex, ancestorLabel *domtree.Node) string {
	if v, ok := n.Attr("aria-label"); ok && strings.TrimSpace(v) != "" {
		return normalizeWhitespace(v)
	}

	if ids, ok := n.Attr("aria-labelledby"); ok && strings.TrimSpace(ids) != "" {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if target, ok := idx.byID[id]; ok {
				if t := textContent(target, nil); strings.TrimSpace(t) != "" {
					parts = append(parts, strings.TrimSpace(t))
				}
			}
		}
		if len(parts) > 0 {
			return normalizeWhitespace(strings.Join(parts, " "))
		}
	}

	if isFormElement(n.Tag) {
		if id, ok := n.Attr("id"); ok {
			if label, ok := idx.labelsFor[id]; ok {
				if t := textContent(label, formControlTags); strings.TrimSpace(t) != "" {
					return normalizeWhitespace(t)
				}
			}
		}
		if ancestorLabel != nil {
			if t := textContent(ancestorLabel, formControlTags); strings.TrimSpace(t) != "" {
				return normalizeWhitespace(t)
			}
		}
	}

	if n.Tag == "IMG" {
		if v, ok := n.Attr("alt"); ok && strings.TrimSpace(v) != "" {
			return normalizeWhitespace(v)
		}
	}

	if v, ok := n.Attr("title"); ok && strings.TrimSpace(v) != "" {
		return normalizeWhitespace(v)
	}

	if contentNamingTags[n.Tag] || role == "button" || role == "link" {
		if t := textContent(n, nil); strings.TrimSpace(t) != "" {
			return truncateText(t)
		}
	}

	if n.Tag == "INPUT" {
		if v, ok := n.Attr("placeholder"); ok && strings.TrimSpace(v) != "" {
			if typ, _ := n.Attr("type"); isTextualInputType(typ) {
				return normalizeWhitespace(v)
			}
		}
		if typ, ok := n.Attr("type"); ok {
			switch strings.ToLower(typ) {
			case "submit", "reset", "button":
				if v, ok := n.Attr("value"); ok {
					return normalizeWhitespace(v)
				}
			}
		}
	}

	return ""
}

func isFormElement(tag string) bool {
	switch tag {
	case "INPUT", "TEXTAREA", "SELECT":
		return true
	}
	return false
}

func isTextualInputType(typ string) bool {
	switch strings.ToLower(typ) {
	case "", "text", "email", "tel", "url", "password", "search":
		return true
	}
	return false
}

// textContent concatenates descendant text nodes in document order,
// skipping the subtree rooted at any tag present in skipTags.
func textContent(n *domtree.Node, skipTags map[string]bool) string {
	var sb strings.Builder
	var walk func(n *domtree.Node)
	walk = func(n *domtree.Node) {
		if n.IsText() {
			sb.WriteString(n.Text)
			sb.WriteString(" ")
			return
		}
		if skipTags != nil && skipTags[n.Tag] {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
