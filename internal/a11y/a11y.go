// Package a11y builds a semantic, text-shaped accessibility tree from a
// domtree.Node document: role and accessible-name derivation, state
// extraction, generic-node flattening, and reference assignment.
package a11y

const (
	maxDepth = 100
	maxNodes = 50000
)

// TreeNode is one node of the built accessibility tree. Text pseudo-nodes
// carry Role "text" and their content in Text; every other node carries a
// Role, an optional Name, and an optional Ref when it's interactive.
type TreeNode struct {
	Role     string      `json:"role"`
	Name     string      `json:"name,omitempty"`
	Ref      string      `json:"ref,omitempty"`
	Text     string      `json:"text,omitempty"`
	State    *State      `json:"state,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// rawNode is the builder's working representation. transient marks a
// generic wrapper kept only so its parent can inline its children during
// the second flattening pass; it never appears in the final tree.
type rawNode struct {
	role      string
	name      string
	ref       string
	text      string
	state     *State
	children  []*rawNode
	transient bool
}

func (n *rawNode) toTreeNode() *TreeNode {
	tn := &TreeNode{Role: n.role, Name: n.name, Ref: n.ref, Text: n.text, State: n.state}
	for _, c := range n.children {
		tn.Children = append(tn.Children, c.toTreeNode())
	}
	return tn
}
