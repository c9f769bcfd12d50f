package a11y

import (
	"strings"
	"testing"

	"github.com/Lemon9247/agentfox/internal/domtree"
)

func el(tag string, attrs map[string]string, children ...*domtree.Node) *domtree.Node {
	return domtree.NewElement(tag, attrs, children...)
}

func text(s string) *domtree.Node { return domtree.NewText(s) }

func TestBuildEmptyBodyHasNoChildren(t *testing.T) {
	body := el("BODY", nil)
	tree := Build(body, "Empty", NewRefMap())
	if tree.Role != "document" || tree.Name != "Empty" {
		t.Fatalf("unexpected root: %+v", tree)
	}
	if len(tree.Children) != 0 {
		t.Fatalf("expected no children, got %d", len(tree.Children))
	}
}

func TestRoleDerivationPriority(t *testing.T) {
	cases := []struct {
		name string
		node *domtree.Node
		want string
	}{
		{"explicit role wins", el("DIV", map[string]string{"role": "alert"}), "alert"},
		{"heading", el("H2", nil), "heading"},
		{"link with href", el("A", map[string]string{"href": "/x"}), "link"},
		{"anchor without href", el("A", nil), "generic"},
		{"text input", el("INPUT", map[string]string{"type": "text"}), "textbox"},
		{"search input", el("INPUT", map[string]string{"type": "search"}), "searchbox"},
		{"checkbox input", el("INPUT", map[string]string{"type": "checkbox"}), "checkbox"},
		{"submit input", el("INPUT", map[string]string{"type": "submit"}), "button"},
		{"textarea", el("TEXTAREA", nil), "textbox"},
		{"select single", el("SELECT", nil), "combobox"},
		{"select multiple", el("SELECT", map[string]string{"multiple": "true"}), "listbox"},
		{"unnamed section", el("SECTION", nil), "generic"},
		{"named section", el("SECTION", map[string]string{"aria-label": "Nav"}), "region"},
		{"article", el("ARTICLE", nil), "article"},
		{"button tag", el("BUTTON", nil), "button"},
		{"table row", el("TR", nil), "row"},
		{"default generic", el("DIV", nil), "generic"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveRole(tc.node); got != tc.want {
				t.Fatalf("deriveRole() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInteractiveNodeGetsReference(t *testing.T) {
	body := el("BODY", nil,
		el("BUTTON", nil, text("Submit")),
		el("DIV", nil, text("static")),
	)
	tree := Build(body, "Form", NewRefMap())
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 children, got %d: %+v", len(tree.Children), tree.Children)
	}
	btn := tree.Children[0]
	if btn.Role != "button" || btn.Ref == "" {
		t.Fatalf("expected button with ref, got %+v", btn)
	}
	if btn.Name != "Submit" {
		t.Fatalf("expected name Submit, got %q", btn.Name)
	}
}

func TestHiddenNodesAreSkipped(t *testing.T) {
	body := el("BODY", nil,
		el("DIV", map[string]string{"hidden": ""}, text("nope")),
		el("DIV", map[string]string{"aria-hidden": "true"}, text("nope2")),
		el("DIV", map[string]string{"style": "display: none"}, text("nope3")),
		el("SPAN", nil, text("yes")),
	)
	tree := Build(body, "Doc", NewRefMap())
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 surviving child, got %d: %+v", len(tree.Children), tree.Children)
	}
}

func TestNonContentTagsAreSkipped(t *testing.T) {
	body := el("BODY", nil,
		el("SCRIPT", nil, text("var x = 1")),
		el("STYLE", nil, text("body{}")),
		el("P", nil, text("hello")),
	)
	tree := Build(body, "Doc", NewRefMap())
	if len(tree.Children) != 1 {
		t.Fatalf("expected script/style dropped, got %+v", tree.Children)
	}
}

func TestGenericFlatteningSingleChildReplaced(t *testing.T) {
	body := el("BODY", nil,
		el("DIV", nil, el("BUTTON", nil, text("Go"))),
	)
	tree := Build(body, "Doc", NewRefMap())
	if len(tree.Children) != 1 || tree.Children[0].Role != "button" {
		t.Fatalf("expected generic wrapper replaced by its button child, got %+v", tree.Children)
	}
}

func TestGenericFlatteningEmptyDropped(t *testing.T) {
	body := el("BODY", nil, el("DIV", nil))
	tree := Build(body, "Doc", NewRefMap())
	if len(tree.Children) != 0 {
		t.Fatalf("expected empty generic div to be dropped, got %+v", tree.Children)
	}
}

func TestGenericFlatteningMultipleChildrenInlined(t *testing.T) {
	body := el("BODY", nil,
		el("DIV", nil,
			el("BUTTON", nil, text("A")),
			el("BUTTON", nil, text("B")),
		),
	)
	tree := Build(body, "Doc", NewRefMap())
	if len(tree.Children) != 2 {
		t.Fatalf("expected wrapper inlined to 2 buttons, got %d: %+v", len(tree.Children), tree.Children)
	}
	for _, c := range tree.Children {
		if c.Role != "button" {
			t.Fatalf("expected inlined children to be buttons, got %+v", c)
		}
	}
}

func TestDepthCapDropsDeeplyNestedNodes(t *testing.T) {
	// Each level is a named, non-generic SECTION so it survives flattening
	// on its own, making the depth cap the only thing that can prune it.
	node := el("SECTION", map[string]string{"aria-label": "leaf"})
	for i := 0; i < 150; i++ {
		node = el("SECTION", map[string]string{"aria-label": "wrap"}, node)
	}
	body := el("BODY", nil, node)
	tree := Build(body, "Doc", NewRefMap())

	var maxFound int
	var walk func(n *TreeNode, depth int)
	walk = func(n *TreeNode, depth int) {
		if depth > maxFound {
			maxFound = depth
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(tree, 0)
	if maxFound > maxDepth+1 {
		t.Fatalf("expected depth to be capped around %d, got %d", maxDepth, maxFound)
	}
	if maxFound < maxDepth-1 {
		t.Fatalf("expected nesting to survive up to the cap, only reached depth %d", maxFound)
	}
}

func TestNodeCapTruncatesAndNotesIt(t *testing.T) {
	var children []*domtree.Node
	for i := 0; i < maxNodes+10; i++ {
		children = append(children, el("SPAN", map[string]string{"role": "note"}, text("x")))
	}
	body := el("BODY", nil, children...)
	tree := Build(body, "Doc", NewRefMap())

	last := tree.Children[len(tree.Children)-1]
	if last.Role != "text" || !strings.Contains(last.Text, "truncat") {
		t.Fatalf("expected trailing truncation marker, got %+v", last)
	}
}

func TestReferenceMapResetsAcrossSnapshots(t *testing.T) {
	refMap := NewRefMap()
	body := el("BODY", nil, el("BUTTON", nil, text("One")))
	tree1 := Build(body, "Doc", refMap)
	ref := tree1.Children[0].Ref
	if _, ok := refMap.Resolve(ref); !ok {
		t.Fatalf("expected %q to resolve after first snapshot", ref)
	}

	body2 := el("BODY", nil, el("DIV", nil, text("no buttons here")))
	Build(body2, "Doc", refMap)
	if _, ok := refMap.Resolve(ref); ok {
		t.Fatalf("expected %q to be gone after a new snapshot reset the map", ref)
	}
}

func TestAccessibleNameFromLabelFor(t *testing.T) {
	input := el("INPUT", map[string]string{"type": "text", "id": "name"})
	body := el("BODY", nil,
		el("LABEL", map[string]string{"for": "name"}, text("Full name")),
		input,
	)
	tree := Build(body, "Doc", NewRefMap())

	var found *TreeNode
	for _, c := range tree.Children {
		if c.Role == "textbox" {
			found = c
		}
	}
	if found == nil || found.Name != "Full name" {
		t.Fatalf("expected textbox named by label[for], got %+v", found)
	}
}

func TestAccessibleNameFromWrappingLabel(t *testing.T) {
	body := el("BODY", nil,
		el("LABEL", nil, text("Email"), el("INPUT", map[string]string{"type": "email"})),
	)
	tree := Build(body, "Doc", NewRefMap())

	var found *TreeNode
	var walk func(n *TreeNode)
	walk = func(n *TreeNode) {
		if n.Role == "textbox" {
			found = n
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(tree)
	if found == nil || found.Name != "Email" {
		t.Fatalf("expected textbox named by wrapping label, got %+v", found)
	}
}

func TestCheckboxStateExtraction(t *testing.T) {
	body := el("BODY", nil, el("INPUT", map[string]string{"type": "checkbox", "checked": ""}))
	tree := Build(body, "Doc", NewRefMap())
	cb := tree.Children[0]
	if cb.State == nil || !cb.State.HasChecked || !cb.State.Checked {
		t.Fatalf("expected checked state, got %+v", cb.State)
	}
}

func TestSiblingTextDuplicatingNameIsSuppressed(t *testing.T) {
	body := el("BODY", nil,
		el("BUTTON", map[string]string{"aria-label": "Go"}, text("Go")),
	)
	tree := Build(body, "Doc", NewRefMap())
	btn := tree.Children[0]
	if len(btn.Children) != 0 {
		t.Fatalf("expected duplicate text child suppressed, got %+v", btn.Children)
	}
}
