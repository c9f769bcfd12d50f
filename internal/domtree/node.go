// Package domtree is a neutral, CDP-independent DOM abstraction. It exists
// so internal/a11y's accessibility-tree algorithm is pure Go and testable
// without a live browser; internal/browser supplies the adapter that
// populates a Node tree from a real page via the DevTools protocol.
package domtree

import "strings"

// Node is either an element (Tag non-empty) or a text node (Tag empty).
// Attribute names are expected lower-case, matching HTML parsing.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*Node

	// NoOffsetParent marks an element that participates in no layout box
	// (it or an ancestor is display:none, or it's simply detached) and is
	// not the body itself. Mirrors the "no offset parent" signal the
	// original hidden-node check uses to avoid a computed-style lookup on
	// every node.
	NoOffsetParent bool

	// Backing is adapter-specific data a live-DOM source attaches to a
	// node so it can be acted on later — a CDP backend stores its nodeId
	// here, for instance. The domtree/a11y packages never read it.
	Backing interface{}

	styleFn    func() map[string]string
	styleCache map[string]string
	styleDone  bool
}

// NewElement constructs an element node.
func NewElement(tag string, attrs map[string]string, children ...*Node) *Node {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Node{Tag: strings.ToUpper(tag), Attrs: attrs, Children: children}
}

// NewText constructs a text node.
func NewText(text string) *Node {
	return &Node{Text: text}
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.Tag == "" }

// Attr returns the named attribute, lower-cased lookup, and whether it was
// present at all.
func (n *Node) Attr(name string) (string, bool) {
	if n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[strings.ToLower(name)]
	return v, ok
}

// HasAttr reports whether the named attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.Attr(name)
	return ok
}

// AttrEquals reports whether the named attribute is present and equals
// value, case-sensitively.
func (n *Node) AttrEquals(name, value string) bool {
	v, ok := n.Attr(name)
	return ok && v == value
}

// AppendChild appends a child node.
func (n *Node) AppendChild(child *Node) {
	n.Children = append(n.Children, child)
}

// SetComputedStyleFunc installs the lazy computed-style accessor. It is
// invoked at most once per node, on first ComputedStyle call.
func (n *Node) SetComputedStyleFunc(fn func() map[string]string) {
	n.styleFn = fn
}

// ComputedStyle returns the node's computed style, fetching and caching it
// on first use. Elements with no installed style function return an empty
// map rather than fetching anything — callers should avoid calling this
// unless the inline-style and offset-parent checks were inconclusive.
func (n *Node) ComputedStyle() map[string]string {
	if n.styleDone {
		return n.styleCache
	}
	n.styleDone = true
	if n.styleFn == nil {
		n.styleCache = map[string]string{}
		return n.styleCache
	}
	n.styleCache = n.styleFn()
	if n.styleCache == nil {
		n.styleCache = map[string]string{}
	}
	return n.styleCache
}

// InlineStyle parses the style attribute into a property map. Malformed
// declarations are skipped.
func (n *Node) InlineStyle() map[string]string {
	raw, ok := n.Attr("style")
	out := map[string]string{}
	if !ok {
		return out
	}
	for _, decl := range strings.Split(raw, ";") {
		parts := strings.SplitN(decl, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(parts[0]))
		val := strings.ToLower(strings.TrimSpace(parts[1]))
		if key == "" {
			continue
		}
		out[key] = val
	}
	return out
}
