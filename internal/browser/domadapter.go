package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Lemon9247/agentfox/internal/domtree"
)

// cdpNode mirrors the relevant fields of CDP's DOM.Node, as returned by
// DOM.getDocument with depth:-1, pierce:true (the whole document in one
// round trip, including shadow-DOM and iframe-pierced subtrees — the
// latter are dropped later since IFRAME is a non-content tag).
type cdpNode struct {
	NodeID        int       `json:"nodeId"`
	BackendNodeID int       `json:"backendNodeId"`
	NodeType      int       `json:"nodeType"`
	NodeName      string    `json:"nodeName"`
	NodeValue     string    `json:"nodeValue"`
	Attributes    []string  `json:"attributes"`
	Children      []cdpNode `json:"children"`
	ContentDoc    *cdpNode  `json:"contentDocument,omitempty"`
}

const (
	nodeTypeElement  = 1
	nodeTypeText     = 3
	nodeTypeDocument = 9
)

// snapshotDocument fetches the full DOM via DOM.getDocument and converts it
// to a domtree.Node rooted at <body>. Returned alongside is the document
// title (via Runtime.evaluate, since DOM.getDocument doesn't carry it).
func snapshotDocument(ctx context.Context, c *Client) (*domtree.Node, string, error) {
	raw, err := c.Call(ctx, "DOM.getDocument", map[string]interface{}{"depth": -1, "pierce": true})
	if err != nil {
		return nil, "", fmt.Errorf("browser: DOM.getDocument: %w", err)
	}
	var doc struct {
		Root cdpNode `json:"root"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, "", fmt.Errorf("browser: decode document: %w", err)
	}

	body := findTag(&doc.Root, "BODY")
	if body == nil {
		// A body-less document (rare, e.g. a frameset) still gets an empty
		// root per the "snapshot on an empty body" boundary behavior.
		return domtree.NewElement("body", nil), titleOf(ctx, c), nil
	}

	adapter := &nodeAdapter{ctx: ctx, client: c}
	return adapter.convert(body), titleOf(ctx, c), nil
}

func titleOf(ctx context.Context, c *Client) string {
	raw, err := c.Call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":    "document.title",
		"returnByValue": true,
	})
	if err != nil {
		return ""
	}
	var resp struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	_ = json.Unmarshal(raw, &resp)
	return resp.Result.Value
}

func findTag(n *cdpNode, tag string) *cdpNode {
	if n.NodeType == nodeTypeElement && strings.EqualFold(n.NodeName, tag) {
		return n
	}
	for i := range n.Children {
		if found := findTag(&n.Children[i], tag); found != nil {
			return found
		}
	}
	if n.ContentDoc != nil {
		return findTag(n.ContentDoc, tag)
	}
	return nil
}

// nodeAdapter converts a cdpNode subtree into domtree.Node, lazily wiring
// each element's computed-style accessor to a CSS.getComputedStyleForNode
// call that only fires if internal/a11y's isHidden check actually needs it.
type nodeAdapter struct {
	ctx    context.Context
	client *Client
}

func (a *nodeAdapter) convert(n *cdpNode) *domtree.Node {
	if n.NodeType == nodeTypeText {
		return domtree.NewText(n.NodeValue)
	}

	attrs := map[string]string{}
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		attrs[strings.ToLower(n.Attributes[i])] = n.Attributes[i+1]
	}

	out := domtree.NewElement(n.NodeName, attrs)
	out.Backing = n.NodeID
	out.NoOffsetParent = !a.hasBoxModel(n.NodeID) && !strings.EqualFold(n.NodeName, "BODY")
	if out.NoOffsetParent {
		nodeID := n.NodeID
		out.SetComputedStyleFunc(func() map[string]string { return a.computedStyle(nodeID) })
	}

	for i := range n.Children {
		out.AppendChild(a.convert(&n.Children[i]))
	}
	return out
}

// hasBoxModel reports whether the node currently participates in layout —
// a cheap proxy for "has an offset parent" built on the same
// DOM.getBoxModel call the teacher's cdp.go Click uses, rather than
// injecting a Runtime.evaluate per node just to read .offsetParent.
func (a *nodeAdapter) hasBoxModel(nodeID int) bool {
	_, err := a.client.Call(a.ctx, "DOM.getBoxModel", map[string]interface{}{"nodeId": nodeID})
	return err == nil
}

func (a *nodeAdapter) computedStyle(nodeID int) map[string]string {
	raw, err := a.client.Call(a.ctx, "CSS.getComputedStyleForNode", map[string]interface{}{"nodeId": nodeID})
	if err != nil {
		return nil
	}
	var resp struct {
		ComputedStyle []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"computedStyle"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	out := make(map[string]string, len(resp.ComputedStyle))
	for _, p := range resp.ComputedStyle {
		out[strings.ToLower(p.Name)] = strings.ToLower(p.Value)
	}
	return out
}
