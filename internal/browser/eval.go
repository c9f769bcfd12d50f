package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
)

// evaluateResultLimit caps an evaluate result's serialized JSON size. A
// larger result is replaced by a "[Result truncated: serialized size N
// bytes exceeds 1MB limit]" placeholder string rather than cut short,
// since truncating valid JSON usually produces invalid JSON.
const evaluateResultLimit = 1 << 20

// handleEvaluate runs a JS function in the page's main world. With a ref,
// the function receives the referenced element as its sole argument
// (DOM.resolveNode + Runtime.callFunctionOn); without one, the function
// string is invoked as a bare IIFE via Runtime.evaluate. CDP never exposes
// an isolated-world concept the way an extension's content script does —
// both paths already execute in the same world a real page script would.
func handleEvaluate(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.EvaluateParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	var result json.RawMessage
	var exception string
	var isNodeResult bool
	var nodeTag string

	if p.Ref != "" {
		n, err := resolveRef(ctx, d, p.Ref)
		if err != nil {
			return nil, err
		}
		nodeID, _ := n.Backing.(int)
		obj, err := d.client.Call(ctx, "DOM.resolveNode", map[string]interface{}{"nodeId": nodeID})
		if err != nil {
			return nil, fmt.Errorf("agentfox: evaluate: resolve element: %w", err)
		}
		var resolved struct {
			Object struct {
				ObjectID string `json:"objectId"`
			} `json:"object"`
		}
		if err := json.Unmarshal(obj, &resolved); err != nil {
			return nil, fmt.Errorf("agentfox: evaluate: decode resolved element: %w", err)
		}
		result, exception, isNodeResult, nodeTag, err = callFunctionOn(ctx, d, resolved.Object.ObjectID, p.Function)
		if err != nil {
			return nil, err
		}
		nodeTag = strings.ToLower(nodeTag)
		if nodeTag == "" {
			nodeTag = strings.ToLower(n.Tag)
		}
	} else {
		if isRestrictedPageURL(currentPageURL(ctx, d)) {
			return nil, command.ErrContentUnavailable
		}
		var err error
		result, exception, isNodeResult, nodeTag, err = evaluateExpression(ctx, d, p.Function)
		if err != nil {
			return nil, err
		}
	}

	if exception != "" {
		return nil, fmt.Errorf("agentfox: evaluate: %s", exception)
	}

	if isNodeResult {
		placeholder, _ := json.Marshal(fmt.Sprintf("[DOM Node: <%s>]", nodeTag))
		return command.EvaluateResult{Value: placeholder}, nil
	}

	if result == nil {
		placeholder, _ := json.Marshal("[Unserializable result]")
		return command.EvaluateResult{Value: placeholder}, nil
	}
	if len(result) > evaluateResultLimit {
		placeholder, _ := json.Marshal(fmt.Sprintf("[Result truncated: serialized size %d bytes exceeds 1MB limit]", len(result)))
		return command.EvaluateResult{Value: placeholder}, nil
	}
	return command.EvaluateResult{Value: result}, nil
}

// callFunctionOn invokes fnSource with objectID as `this` and as the
// function's sole argument, covering both "(el) => ..." arrow forms and
// plain "function(el) { ... }" forms the same way.
func callFunctionOn(ctx context.Context, d *Dispatcher, objectID, fnSource string) (value json.RawMessage, exception string, isNode bool, nodeTag string, err error) {
	raw, err := d.client.Call(ctx, "Runtime.callFunctionOn", map[string]interface{}{
		"objectId":            objectID,
		"functionDeclaration": fnSource,
		"arguments":           []map[string]interface{}{{"objectId": objectID}},
		"returnByValue":       true,
		"awaitPromise":        true,
	})
	if err != nil {
		return nil, "", false, "", fmt.Errorf("agentfox: evaluate: %w", err)
	}
	return parseEvalResponse(raw)
}

func evaluateExpression(ctx context.Context, d *Dispatcher, fnSource string) (value json.RawMessage, exception string, isNode bool, nodeTag string, err error) {
	expr := "(" + fnSource + ")()"
	raw, err := d.client.Call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":    expr,
		"returnByValue": true,
		"awaitPromise":  true,
	})
	if err != nil {
		return nil, "", false, "", fmt.Errorf("agentfox: evaluate: %w", err)
	}
	return parseEvalResponse(raw)
}

func parseEvalResponse(raw json.RawMessage) (value json.RawMessage, exception string, isNode bool, nodeTag string, err error) {
	var resp struct {
		Result struct {
			Type        string          `json:"type"`
			Subtype     string          `json:"subtype"`
			ClassName   string          `json:"className"`
			Value       json.RawMessage `json:"value"`
			Description string          `json:"description"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, "", false, "", fmt.Errorf("agentfox: evaluate: decode result: %w", err)
	}
	if resp.ExceptionDetails != nil {
		msg := resp.ExceptionDetails.Text
		if resp.ExceptionDetails.Exception != nil && resp.ExceptionDetails.Exception.Description != "" {
			msg = resp.ExceptionDetails.Exception.Description
		}
		return nil, msg, false, "", nil
	}
	if resp.Result.Subtype == "node" || resp.Result.ClassName == "HTMLElement" {
		return nil, "", true, resp.Result.ClassName, nil
	}
	return resp.Result.Value, "", false, "", nil
}

// handleWaitFor polls for a text match or absence, or just sleeps, per
// spec.md §6's three wait modes. With neither Text nor TextGone set it
// sleeps for Time seconds and reports a match. Otherwise Time, when set,
// is the overall timeout (default 30s); if both Text and TextGone are set,
// only Text is waited for.
func handleWaitFor(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.WaitForParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	if p.Text == "" && p.TextGone == "" {
		time.Sleep(time.Duration(p.Time * float64(time.Second)))
		return command.WaitForResult{Matched: true}, nil
	}
	if isRestrictedPageURL(currentPageURL(ctx, d)) {
		return nil, command.ErrContentUnavailable
	}

	const pollInterval = 200 * time.Millisecond
	timeout := 30 * time.Second
	if p.Time > 0 {
		timeout = time.Duration(p.Time * float64(time.Second))
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		present, err := bodyContainsText(ctx, d, pickWaitText(p))
		if err == nil {
			if p.Text != "" && present {
				return command.WaitForResult{Matched: true}, nil
			}
			if p.TextGone != "" && !present {
				return command.WaitForResult{Matched: true}, nil
			}
		}
		if time.Now().After(deadline) {
			return command.WaitForResult{Matched: false}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func pickWaitText(p command.WaitForParams) string {
	if p.Text != "" {
		return p.Text
	}
	return p.TextGone
}

func bodyContainsText(ctx context.Context, d *Dispatcher, needle string) (bool, error) {
	needleJSON, _ := json.Marshal(needle)
	raw, err := d.client.Call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":    fmt.Sprintf("document.body && document.body.innerText.includes(%s)", needleJSON),
		"returnByValue": true,
	})
	if err != nil {
		return false, err
	}
	var resp struct {
		Result struct {
			Value bool `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return false, err
	}
	return resp.Result.Value, nil
}

// handlePageContent extracts whitespace-normalized visible text, optionally
// scoped to a CSS selector, the same innerText-based approach
// bodyContainsText uses for wait_for.
func handlePageContent(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.PageContentParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	if isRestrictedPageURL(currentPageURL(ctx, d)) {
		return nil, command.ErrContentUnavailable
	}

	var expr string
	if p.Selector != "" {
		selJSON, _ := json.Marshal(p.Selector)
		expr = fmt.Sprintf("(function() { const el = document.querySelector(%s); return el ? el.innerText : null; })()", selJSON)
	} else {
		expr = "document.body ? document.body.innerText : ''"
	}

	evalRaw, err := d.client.Call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":    expr,
		"returnByValue": true,
	})
	if err != nil {
		return nil, fmt.Errorf("agentfox: page_content: %w", err)
	}
	var resp struct {
		Result struct {
			Value *string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(evalRaw, &resp); err != nil {
		return nil, fmt.Errorf("agentfox: page_content: decode result: %w", err)
	}
	if resp.Result.Value == nil {
		return nil, fmt.Errorf("agentfox: page_content: no element matches selector %q", p.Selector)
	}

	text := normalizeWhitespace(*resp.Result.Value)
	_, url := readyStateAndURL(ctx, d)
	return command.PageContentResult{Text: text, URL: url, Title: titleOf(ctx, d.client)}, nil
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
