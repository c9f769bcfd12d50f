// Package browser implements component E (spec.md §4.E): it drives a live
// Chromium-family browser over the DevTools protocol and routes each
// Command either directly against a browser API or against the active
// tab's DOM, building and acting on the accessibility tree exactly as
// internal/a11y derives it.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Lemon9247/agentfox/internal/a11y"
	"github.com/Lemon9247/agentfox/internal/command"
	"github.com/Lemon9247/agentfox/internal/domtree"
)

// Dispatcher implements relay.Dispatcher: it is the relay process's one
// command handler, driving the browser over CDP instead of forwarding to
// a real extension's background/content split. It still honors the same
// browser-API/page-interaction routing rule from spec.md §4.E.
type Dispatcher struct {
	client    *Client
	debugPort int
	refMap    *a11y.RefMap
	network   *networkRecorder
	logger    *zap.SugaredLogger
}

// NewDispatcher wires a Dispatcher around an already-connected Client.
// debugPort is the browser's --remote-debugging-port, used by the tab
// management handlers that talk to the HTTP debug endpoint rather than
// the page-scoped WebSocket (listing/creating/closing targets isn't a
// per-page CDP session operation).
func NewDispatcher(client *Client, debugPort int, logger *zap.SugaredLogger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	d := &Dispatcher{
		client:    client,
		debugPort: debugPort,
		refMap:    a11y.NewRefMap(),
		network:   newNetworkRecorder(),
		logger:    logger,
	}
	client.On("Network.requestWillBeSent", d.network.onRequestWillBeSent)
	client.On("Network.responseReceived", d.network.onResponseReceived)
	return d
}

// Dispatch executes one Command and returns its Response. Every handler
// catches its own errors; anything unhandled is wrapped here so a panic in
// one handler can never take down the relay process mid-command.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd command.Command) (resp command.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("handler panic", "action", cmd.Action, "recovered", r)
			resp = command.Fail(cmd.ID, fmt.Sprintf("agentfox: internal error handling %s: %v", cmd.Action, r))
		}
	}()

	handler, ok := handlers[cmd.Action]
	if !ok {
		return command.Fail(cmd.ID, fmt.Sprintf("agentfox: unknown action %q", cmd.Action))
	}

	result, err := handler(ctx, d, cmd.Params)
	if err != nil {
		return command.Fail(cmd.ID, err.Error())
	}
	return command.Ok(cmd.ID, result)
}

type handlerFunc func(ctx context.Context, d *Dispatcher, params json.RawMessage) (interface{}, error)

var handlers = map[command.Action]handlerFunc{
	command.ActionNavigate:        handleNavigate,
	command.ActionNavigateBack:    handleNavigateBack,
	command.ActionScreenshot:      handleScreenshot,
	command.ActionTabs:            handleTabs,
	command.ActionClose:           handleClose,
	command.ActionResize:          handleResize,
	command.ActionSavePDF:         handleSavePDF,
	command.ActionGetCookies:      handleGetCookies,
	command.ActionGetBookmarks:    handleGetBookmarks,
	command.ActionGetHistory:      handleGetHistory,
	command.ActionNetworkRequests: handleNetworkRequests,
	command.ActionSnapshot:        handleSnapshot,
	command.ActionClick:           handleClick,
	command.ActionType:            handleType,
	command.ActionPressKey:        handlePressKey,
	command.ActionHover:           handleHover,
	command.ActionFillForm:        handleFillForm,
	command.ActionSelectOption:    handleSelectOption,
	command.ActionEvaluate:        handleEvaluate,
	command.ActionWaitFor:         handleWaitFor,
	command.ActionPageContent:     handlePageContent,
}

func unmarshalParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("agentfox: malformed command parameters: %w", err)
	}
	return nil
}

// restrictedURLPrefixes are page URL schemes with no content context to act
// on: browser-internal pages, the new-tab/blank page, and extension pages
// never run a content script equivalent, matching spec.md §4.E's "no
// content context is available in that tab (e.g. internal or blank pages)".
var restrictedURLPrefixes = []string{
	"chrome://", "chrome-extension://", "edge://", "about:", "devtools://",
	"view-source:", "chrome-error://",
}

// isRestrictedPageURL reports whether url names a page with no content
// context a page-interaction command could act on. An empty url (the page
// URL could not be read) counts as restricted.
func isRestrictedPageURL(url string) bool {
	if url == "" {
		return true
	}
	for _, prefix := range restrictedURLPrefixes {
		if strings.HasPrefix(url, prefix) {
			return true
		}
	}
	return false
}

// currentPageURL returns the active tab's URL, or "" if it can't be read.
func currentPageURL(ctx context.Context, d *Dispatcher) string {
	_, url := readyStateAndURL(ctx, d)
	return url
}

// resolveRef resolves a reference to its live backing element, implementing
// the "stale reference" vs. "unknown reference" distinction from spec.md
// §3 invariant (3) and §7 kind 4: unknown means the current snapshot's
// reference map never held this ID; stale means it did, but the backing
// element is no longer live (checked here with a CDP round trip), in which
// case the entry is evicted so a later lookup reports "unknown" too. A
// restricted page (internal or blank) has no content context at all,
// which is the distinct failure §4.E and §7 kind 2 call for.
func resolveRef(ctx context.Context, d *Dispatcher, ref string) (*domtree.Node, error) {
	n, ok := d.refMap.Resolve(ref)
	if !ok {
		return nil, command.ErrUnknownReference
	}
	if isRestrictedPageURL(currentPageURL(ctx, d)) {
		return nil, command.ErrContentUnavailable
	}
	nodeID, _ := n.Backing.(int)
	if _, err := d.client.Call(ctx, "DOM.getBoxModel", map[string]interface{}{"nodeId": nodeID}); err != nil {
		d.refMap.Remove(ref)
		return nil, command.ErrStaleReference
	}
	return n, nil
}

// boxCenter returns the center point of a node's content box via
// DOM.getBoxModel, the same call the teacher's cdp.go Click uses.
func boxCenter(ctx context.Context, d *Dispatcher, nodeID int) (x, y float64, err error) {
	raw, err := d.client.Call(ctx, "DOM.getBoxModel", map[string]interface{}{"nodeId": nodeID})
	if err != nil {
		return 0, 0, fmt.Errorf("agentfox: element has no box model: %w", err)
	}
	var box struct {
		Model struct {
			Content []float64 `json:"content"`
		} `json:"model"`
	}
	if err := json.Unmarshal(raw, &box); err != nil {
		return 0, 0, fmt.Errorf("agentfox: decode box model: %w", err)
	}
	if len(box.Model.Content) < 6 {
		return 0, 0, fmt.Errorf("agentfox: invalid box model")
	}
	x = (box.Model.Content[0] + box.Model.Content[2]) / 2
	y = (box.Model.Content[1] + box.Model.Content[5]) / 2
	return x, y, nil
}

// scrollIntoCenterView scrolls nodeID into the viewport center via CDP's
// dedicated call, rather than injecting scrollIntoView script.
func scrollIntoCenterView(ctx context.Context, d *Dispatcher, nodeID int) error {
	_, err := d.client.Call(ctx, "DOM.scrollIntoViewIfNeeded", map[string]interface{}{"nodeId": nodeID})
	return err
}
