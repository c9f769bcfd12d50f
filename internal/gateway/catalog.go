package gateway

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Lemon9247/agentfox/internal/command"
)

func strProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

func numProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func enumProp(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}

func arrProp(description string, items map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "description": description, "items": items}
}

// catalog is the static tool catalog from spec.md §6's action table, one
// entry per Action, each carrying the tool's JSON-Schema and a formatter
// for its response payload.
func (g *Gateway) catalog() []toolSpec {
	return []toolSpec{
		{
			tool: mcp.Tool{
				Name:        "navigate",
				Description: "Navigate the active tab to a URL",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"url": strProp("destination URL")},
					Required:   []string{"url"},
				},
			},
			action: command.ActionNavigate, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "navigate_back",
				Description: "Navigate the active tab back in its history",
				InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
			},
			action: command.ActionNavigateBack, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "snapshot",
				Description: "Capture an accessibility-tree snapshot of the active tab",
				InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
			},
			action: command.ActionSnapshot, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "screenshot",
				Description: "Capture a screenshot of the active tab or one element",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"type":     enumProp("image format", "png", "jpeg"),
						"fullPage": boolProp("capture the full scrollable page"),
						"ref":      strProp("element reference to screenshot instead of the whole page"),
					},
				},
			},
			action: command.ActionScreenshot, formatter: imageFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "click",
				Description: "Click an element by reference",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"ref":         strProp("element reference from the latest snapshot"),
						"button":      enumProp("mouse button", "left", "right", "middle"),
						"modifiers":   arrProp("held modifier keys", enumProp("modifier", "Alt", "Control", "Meta", "Shift")),
						"doubleClick": boolProp("dispatch a double-click instead of a single click"),
					},
					Required: []string{"ref"},
				},
			},
			action: command.ActionClick, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "type",
				Description: "Type text into an element by reference",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"ref":    strProp("element reference from the latest snapshot"),
						"text":   strProp("text to type"),
						"submit": boolProp("press Enter and submit the enclosing form afterward"),
						"slowly": boolProp("type one character at a time instead of assigning the value"),
					},
					Required: []string{"ref", "text"},
				},
			},
			action: command.ActionType, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "press_key",
				Description: "Press a single key on the currently focused element",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"key": strProp("key name, e.g. \"Enter\", \"a\", \"Tab\"")},
					Required:   []string{"key"},
				},
			},
			action: command.ActionPressKey, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "hover",
				Description: "Hover the pointer over an element by reference",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"ref": strProp("element reference from the latest snapshot")},
					Required:   []string{"ref"},
				},
			},
			action: command.ActionHover, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "fill_form",
				Description: "Fill multiple form fields in one batch",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"fields": arrProp("fields to fill", map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"ref":   strProp("element reference"),
								"name":  strProp("field name, for error reporting"),
								"type":  enumProp("field kind", "textbox", "checkbox", "radio", "combobox", "slider"),
								"value": strProp("value to apply"),
							},
							"required": []string{"ref", "name", "type", "value"},
						}),
					},
					Required: []string{"fields"},
				},
			},
			action: command.ActionFillForm, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "select_option",
				Description: "Select one or more options on a <select> element",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"ref":    strProp("element reference for the <select>"),
						"values": arrProp("option labels or values to select", strProp("option label or value")),
					},
					Required: []string{"ref", "values"},
				},
			},
			action: command.ActionSelectOption, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "evaluate",
				Description: "Run a JavaScript function in the page, optionally against one element",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"function": strProp("JS function source, e.g. \"(el) => el.textContent\""),
						"ref":      strProp("element reference passed as the function's argument"),
					},
					Required: []string{"function"},
				},
			},
			action: command.ActionEvaluate, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "wait_for",
				Description: "Wait for text to appear, text to disappear, or a fixed delay",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"text":     strProp("wait until this text appears"),
						"textGone": strProp("wait until this text disappears"),
						"time":     numProp("seconds to wait, or the overall timeout for text/textGone"),
					},
				},
			},
			action: command.ActionWaitFor, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "tabs",
				Description: "List, open, close, or select browser tabs",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"action": enumProp("sub-action", "list", "new", "close", "select"),
						"index":  numProp("tab index, for close/select; for new, the index of the tab whose info is returned (the last tab when out of range)"),
					},
					Required: []string{"action"},
				},
			},
			action: command.ActionTabs, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "close",
				Description: "Close the active tab",
				InputSchema: mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}},
			},
			action: command.ActionClose, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "resize",
				Description: "Resize the active tab's viewport",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"width":  numProp("viewport width in pixels"),
						"height": numProp("viewport height in pixels"),
					},
					Required: []string{"width", "height"},
				},
			},
			action: command.ActionResize, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "get_cookies",
				Description: "List cookies, optionally scoped to a URL",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"url": strProp("scope the lookup to this URL")},
				},
			},
			action: command.ActionGetCookies, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "get_bookmarks",
				Description: "Search the browser's bookmarks",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"query": strProp("filter by title or URL substring")},
				},
			},
			action: command.ActionGetBookmarks, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "get_history",
				Description: "Search the browser's navigation history",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"query":      strProp("filter by title or URL substring"),
						"maxResults": numProp("maximum number of entries to return"),
						"startTime":  numProp("only entries visited at or after this Unix millis timestamp"),
						"endTime":    numProp("only entries visited at or before this Unix millis timestamp"),
					},
				},
			},
			action: command.ActionGetHistory, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "network_requests",
				Description: "Start, stop, read, or clear the network request recorder",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"action": enumProp("sub-action", "start", "stop", "get", "clear"),
						"filter": strProp("with start: only record requests whose URL contains this substring (case-insensitive); ignored by the other sub-actions"),
					},
					Required: []string{"action"},
				},
			},
			action: command.ActionNetworkRequests, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "save_pdf",
				Description: "Print the active tab to a PDF file",
				InputSchema: mcp.ToolInputSchema{
					Type: "object",
					Properties: map[string]interface{}{
						"headerTemplate":      strProp("HTML template for the page header"),
						"footerTemplate":      strProp("HTML template for the page footer"),
						"displayHeaderFooter": boolProp("show the header/footer templates"),
					},
				},
			},
			action: command.ActionSavePDF, formatter: textFormatter,
		},
		{
			tool: mcp.Tool{
				Name:        "page_content",
				Description: "Extract visible text from the page or one CSS-selector target",
				InputSchema: mcp.ToolInputSchema{
					Type:       "object",
					Properties: map[string]interface{}{"selector": strProp("CSS selector to scope extraction to")},
				},
			},
			action: command.ActionPageContent, formatter: textFormatter,
		},
	}
}
