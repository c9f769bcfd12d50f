package a11y

import (
	"strings"

	"github.com/Lemon9247/agentfox/internal/domtree"
)

// Build constructs the accessibility tree rooted at body, a document node
// whose role is "document" and whose name is the page title. refMap is
// reset before the first reference is assigned, invalidating every
// reference a prior snapshot handed out.
func Build(body *domtree.Node, title string, refMap *RefMap) *TreeNode {
	refMap.Reset()
	idx := buildNameIndex(body)
	b := &builder{idx: idx, refMap: refMap}

	children := b.buildChildren(body.Children, nil, 0, title)
	if b.truncated {
		children = append(children, &rawNode{role: "text", text: "[Snapshot truncated: node limit reached]"})
	}

	root := &rawNode{role: "document", name: title, children: children}
	return root.toTreeNode()
}

type builder struct {
	idx       *nameIndex
	refMap    *RefMap
	nodeCount int
	truncated bool
}

// buildChildren builds the tree-node list for one element's children,
// applying the hidden-node skip, depth cap, node cap, and the two-pass
// generic flattening. parentName is the enclosing element's accessible
// name, used to suppress a duplicate sibling text pseudo-node.
func (b *builder) buildChildren(nodes []*domtree.Node, ancestorLabel *domtree.Node, depth int, parentName string) []*rawNode {
	var out []*rawNode

	for _, n := range nodes {
		if b.truncated {
			break
		}

		if n.IsText() {
			txt := strings.TrimSpace(n.Text)
			if txt == "" || txt == strings.TrimSpace(parentName) {
				continue
			}
			out = append(out, &rawNode{role: "text", text: truncateText(txt)})
			continue
		}

		if nonContentTags[n.Tag] {
			continue
		}
		if isHidden(n) {
			continue
		}
		if depth >= maxDepth {
			continue
		}
		if b.nodeCount >= maxNodes {
			b.truncated = true
			break
		}
		b.nodeCount++

		role := deriveRole(n)
		name := accessibleName(n, role, b.idx, ancestorLabel)
		interactive := isInteractive(n, role)

		var ref string
		if interactive {
			ref = b.refMap.Assign(n)
		}

		st := extractState(n, role, b.idx, nameCameFromTitle(n, name))

		nextAncestorLabel := ancestorLabel
		if n.Tag == "LABEL" {
			nextAncestorLabel = n
		}
		children := b.buildChildren(n.Children, nextAncestorLabel, depth+1, name)

		raw := &rawNode{role: role, name: name, ref: ref, children: children}
		if !st.IsZero() {
			stCopy := st
			raw.state = &stCopy
		}

		if role == "generic" && !interactive && name == "" {
			switch len(children) {
			case 0:
				// dropped entirely
			case 1:
				out = append(out, children[0])
			default:
				raw.transient = true
				out = append(out, raw)
			}
			continue
		}

		out = append(out, raw)
	}

	return inlineTransientContainers(out)
}

// inlineTransientContainers repeatedly splices any transient generic
// container's children into its parent's list, in place, until none
// remain — the "second flattening pass".
func inlineTransientContainers(nodes []*rawNode) []*rawNode {
	for {
		changed := false
		var out []*rawNode
		for _, n := range nodes {
			if n.transient {
				out = append(out, n.children...)
				changed = true
				continue
			}
			out = append(out, n)
		}
		nodes = out
		if !changed {
			return nodes
		}
	}
}

func nameCameFromTitle(n *domtree.Node, chosenName string) bool {
	if chosenName == "" {
		return false
	}
	title, ok := n.Attr("title")
	return ok && strings.TrimSpace(title) == chosenName
}

// isHidden implements the visibility checks, avoiding a computed-style
// lookup unless the cheaper signals are inconclusive.
func isHidden(n *domtree.Node) bool {
	if n.HasAttr("hidden") {
		return true
	}
	if v, ok := n.Attr("aria-hidden"); ok && strings.ToLower(v) == "true" {
		return true
	}
	inline := n.InlineStyle()
	if inline["display"] == "none" || inline["visibility"] == "hidden" {
		return true
	}
	if n.Tag != "BODY" && n.NoOffsetParent {
		style := n.ComputedStyle()
		if style["display"] == "none" || style["visibility"] == "hidden" {
			return true
		}
	}
	return false
}
