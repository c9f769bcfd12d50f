package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
)

// modifierBits maps spec.md §6 modifier names to the CDP Input domain's
// bitmask (Alt=1, Ctrl=2, Meta=4, Shift=8).
var modifierBits = map[string]int{"Alt": 1, "Control": 2, "Meta": 4, "Shift": 8}

func modifiersToBits(mods []string) int {
	bits := 0
	for _, m := range mods {
		bits |= modifierBits[m]
	}
	return bits
}

// handleClick dispatches a CDP mouse press/release pair at the element's
// box-model center. CDP's Input.dispatchMouseEvent synthesizes the full
// pointerdown/mousedown/pointerup/mouseup/click sequence spec.md §4.E
// describes — the same events a real mouse click produces, not a subset.
func handleClick(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.ClickParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	n, err := resolveRef(ctx, d, p.Ref)
	if err != nil {
		return nil, err
	}
	nodeID, _ := n.Backing.(int)
	if err := scrollIntoCenterView(ctx, d, nodeID); err != nil {
		return nil, fmt.Errorf("agentfox: click: scroll into view: %w", err)
	}
	x, y, err := boxCenter(ctx, d, nodeID)
	if err != nil {
		return nil, fmt.Errorf("agentfox: click: %w", err)
	}

	button := p.Button
	if button == "" {
		button = "left"
	}
	clickCount := 1
	if p.DoubleClick {
		clickCount = 2
	}
	modifiers := modifiersToBits(p.Modifiers)

	if _, err := d.client.Call(ctx, "DOM.focus", map[string]interface{}{"nodeId": nodeID}); err != nil {
		d.logger.Debugw("click: focus failed (node may not be focusable)", "error", err)
	}

	for _, eventType := range []string{"mousePressed", "mouseReleased"} {
		if _, err := d.client.Call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
			"type": eventType, "x": x, "y": y, "button": button,
			"clickCount": clickCount, "modifiers": modifiers,
		}); err != nil {
			return nil, fmt.Errorf("agentfox: click: dispatch %s: %w", eventType, err)
		}
	}
	return struct{}{}, nil
}

// handleType focuses the target and enters text either in one shot (fast
// mode: select-all then assign) or character-by-character with small
// delays (slow mode), matching spec.md §4.E's two typing modes.
func handleType(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.TypeParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	n, err := resolveRef(ctx, d, p.Ref)
	if err != nil {
		return nil, err
	}
	nodeID, _ := n.Backing.(int)
	if _, err := d.client.Call(ctx, "DOM.focus", map[string]interface{}{"nodeId": nodeID}); err != nil {
		return nil, fmt.Errorf("agentfox: type: focus target: %w", err)
	}

	selectAll(ctx, d)

	if p.Slowly {
		for _, r := range p.Text {
			ch := string(r)
			if _, err := d.client.Call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{"type": "keyDown", "text": ch}); err != nil {
				return nil, fmt.Errorf("agentfox: type: keydown: %w", err)
			}
			if _, err := d.client.Call(ctx, "Input.insertText", map[string]interface{}{"text": ch}); err != nil {
				return nil, fmt.Errorf("agentfox: type: insert char: %w", err)
			}
			if _, err := d.client.Call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{"type": "keyUp", "text": ch}); err != nil {
				return nil, fmt.Errorf("agentfox: type: keyup: %w", err)
			}
			time.Sleep(30 * time.Millisecond)
		}
	} else {
		if _, err := d.client.Call(ctx, "Input.insertText", map[string]interface{}{"text": p.Text}); err != nil {
			return nil, fmt.Errorf("agentfox: type: insert text: %w", err)
		}
	}
	if err := dispatchChangeEvent(ctx, d, nodeID); err != nil {
		d.logger.Debugw("type: dispatching change event failed", "error", err)
	}

	if p.Submit {
		if _, err := d.client.Call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{
			"type": "rawKeyDown", "key": "Enter", "windowsVirtualKeyCode": 13,
		}); err != nil {
			return nil, fmt.Errorf("agentfox: type: submit enter keydown: %w", err)
		}
		if _, err := d.client.Call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{
			"type": "keyUp", "key": "Enter", "windowsVirtualKeyCode": 13,
		}); err != nil {
			return nil, fmt.Errorf("agentfox: type: submit enter keyup: %w", err)
		}
		requestFormSubmission(ctx, d)
	}
	return struct{}{}, nil
}

func selectAll(ctx context.Context, d *Dispatcher) {
	_, _ = d.client.Call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{
		"type": "keyDown", "key": "a", "modifiers": modifierBits["Control"], "windowsVirtualKeyCode": 65,
	})
	_, _ = d.client.Call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{
		"type": "keyUp", "key": "a", "modifiers": modifierBits["Control"], "windowsVirtualKeyCode": 65,
	})
}

// dispatchChangeEvent fires a synthetic change event on the given node via
// the page's main-world context (see handleEvaluate's approach), since
// CDP's Input domain only synthesizes input events, not the trailing
// change event a real typed commit eventually fires on blur.
func dispatchChangeEvent(ctx context.Context, d *Dispatcher, nodeID int) error {
	obj, err := d.client.Call(ctx, "DOM.resolveNode", map[string]interface{}{"nodeId": nodeID})
	if err != nil {
		return err
	}
	var resolved struct {
		Object struct {
			ObjectID string `json:"objectId"`
		} `json:"object"`
	}
	if err := json.Unmarshal(obj, &resolved); err != nil {
		return err
	}
	_, err = d.client.Call(ctx, "Runtime.callFunctionOn", map[string]interface{}{
		"objectId":            resolved.Object.ObjectID,
		"functionDeclaration": "function() { this.dispatchEvent(new Event('change', {bubbles: true})); }",
	})
	return err
}

func requestFormSubmission(ctx context.Context, d *Dispatcher) {
	_, _ = d.client.Call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression": "document.activeElement && document.activeElement.form && document.activeElement.form.requestSubmit && document.activeElement.form.requestSubmit()",
	})
}

func handlePressKey(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.PressKeyParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	key, code, vk := keyToCDP(p.Key)
	if _, err := d.client.Call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{
		"type": "keyDown", "key": key, "code": code, "windowsVirtualKeyCode": vk,
	}); err != nil {
		return nil, fmt.Errorf("agentfox: press_key: keydown: %w", err)
	}
	if _, err := d.client.Call(ctx, "Input.dispatchKeyEvent", map[string]interface{}{
		"type": "keyUp", "key": key, "code": code, "windowsVirtualKeyCode": vk,
	}); err != nil {
		return nil, fmt.Errorf("agentfox: press_key: keyup: %w", err)
	}
	return struct{}{}, nil
}

var punctuationCodes = map[string]string{
	"-": "Minus", "=": "Equal", "[": "BracketLeft", "]": "BracketRight",
	"\\": "Backslash", ";": "Semicolon", "'": "Quote", ",": "Comma",
	".": "Period", "/": "Slash", "`": "Backquote",
}

// keyToCDP implements §4.E's key-to-code mapping: single letters become
// "Key<UPPER>", digits become "Digit<d>", a small punctuation table covers
// the rest, and anything else (named keys like "Enter", "Tab") is passed
// through unchanged as both key and code.
func keyToCDP(key string) (k, code string, vk int) {
	if len(key) == 1 {
		r := key[0]
		switch {
		case r >= 'a' && r <= 'z':
			return key, "Key" + strings.ToUpper(key), int(r) - 32
		case r >= 'A' && r <= 'Z':
			return key, "Key" + key, int(r)
		case r >= '0' && r <= '9':
			return key, "Digit" + key, int(r)
		}
		if c, ok := punctuationCodes[key]; ok {
			return key, c, int(r)
		}
	}
	return key, key, 0
}

// handleHover scrolls the target into view and dispatches the pointer/
// mouse "move" sequence at its box-model center; CDP's mouseMoved event
// synthesizes pointerenter/pointerover/pointermove and
// mouseenter/mouseover/mousemove the same way dispatchMouseEvent's press
// synthesizes the click sequence.
func handleHover(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.HoverParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	n, err := resolveRef(ctx, d, p.Ref)
	if err != nil {
		return nil, err
	}
	nodeID, _ := n.Backing.(int)
	if err := scrollIntoCenterView(ctx, d, nodeID); err != nil {
		return nil, fmt.Errorf("agentfox: hover: scroll into view: %w", err)
	}
	x, y, err := boxCenter(ctx, d, nodeID)
	if err != nil {
		return nil, fmt.Errorf("agentfox: hover: %w", err)
	}
	if _, err := d.client.Call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
		"type": "mouseMoved", "x": x, "y": y,
	}); err != nil {
		return nil, fmt.Errorf("agentfox: hover: dispatch mouseMoved: %w", err)
	}
	return struct{}{}, nil
}

// handleFillForm applies one primitive per field, collecting per-field
// errors rather than aborting the batch on the first failure.
func handleFillForm(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.FillFormParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	var errs []string
	filled := 0
	for _, f := range p.Fields {
		if err := fillOneField(ctx, d, f); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		filled++
	}
	return command.FillFormResult{FilledCount: filled, Errors: errs}, nil
}

func fillOneField(ctx context.Context, d *Dispatcher, f command.FillFormField) error {
	n, err := resolveRef(ctx, d, f.Ref)
	if err != nil {
		return err
	}
	nodeID, _ := n.Backing.(int)

	switch f.Type {
	case "textbox", "slider":
		if n.Tag != "INPUT" && n.Tag != "TEXTAREA" {
			return fmt.Errorf("agentfox: field type %s doesn't match element <%s>", f.Type, strings.ToLower(n.Tag))
		}
		if _, err := d.client.Call(ctx, "DOM.focus", map[string]interface{}{"nodeId": nodeID}); err != nil {
			return fmt.Errorf("focus: %w", err)
		}
		selectAll(ctx, d)
		if _, err := d.client.Call(ctx, "Input.insertText", map[string]interface{}{"text": f.Value}); err != nil {
			return fmt.Errorf("insert text: %w", err)
		}
		return nil

	case "checkbox":
		if n.Tag != "INPUT" {
			return fmt.Errorf("agentfox: field type checkbox doesn't match element <%s>", strings.ToLower(n.Tag))
		}
		desired := strings.EqualFold(f.Value, "true")
		current := n.HasAttr("checked")
		if desired != current {
			return clickNode(ctx, d, nodeID)
		}
		return nil

	case "radio":
		if n.Tag != "INPUT" {
			return fmt.Errorf("agentfox: field type radio doesn't match element <%s>", strings.ToLower(n.Tag))
		}
		if !n.HasAttr("checked") {
			return clickNode(ctx, d, nodeID)
		}
		return nil

	case "combobox":
		if n.Tag != "SELECT" {
			return fmt.Errorf("agentfox: field type combobox doesn't match element <%s>", strings.ToLower(n.Tag))
		}
		return selectByTextOrValue(ctx, d, nodeID, []string{f.Value})

	default:
		return fmt.Errorf("agentfox: unknown field type %q", f.Type)
	}
}

func clickNode(ctx context.Context, d *Dispatcher, nodeID int) error {
	if err := scrollIntoCenterView(ctx, d, nodeID); err != nil {
		return err
	}
	x, y, err := boxCenter(ctx, d, nodeID)
	if err != nil {
		return err
	}
	for _, eventType := range []string{"mousePressed", "mouseReleased"} {
		if _, err := d.client.Call(ctx, "Input.dispatchMouseEvent", map[string]interface{}{
			"type": eventType, "x": x, "y": y, "button": "left", "clickCount": 1,
		}); err != nil {
			return err
		}
	}
	return nil
}

// handleSelectOption selects values on a <select> reference by option text
// first, falling back to option value, deselecting everything first for a
// multi-select target.
func handleSelectOption(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.SelectOptionParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	n, err := resolveRef(ctx, d, p.Ref)
	if err != nil {
		return nil, err
	}
	if n.Tag != "SELECT" {
		return nil, fmt.Errorf("agentfox: select_option target must be <select>, got <%s>", strings.ToLower(n.Tag))
	}
	nodeID, _ := n.Backing.(int)
	if err := selectByTextOrValue(ctx, d, nodeID, p.Values); err != nil {
		return nil, err
	}
	return command.SelectOptionResult{Selected: p.Values}, nil
}

// selectByTextOrValue resolves the <select>'s options via Runtime, not
// DOM.querySelector, since matching by option text content requires
// reading each <option>'s textContent — cheaper done in one script round
// trip than one DOM call per option.
func selectByTextOrValue(ctx context.Context, d *Dispatcher, nodeID int, values []string) error {
	obj, err := d.client.Call(ctx, "DOM.resolveNode", map[string]interface{}{"nodeId": nodeID})
	if err != nil {
		return fmt.Errorf("agentfox: resolve select element: %w", err)
	}
	var resolved struct {
		Object struct {
			ObjectID string `json:"objectId"`
		} `json:"object"`
	}
	if err := json.Unmarshal(obj, &resolved); err != nil {
		return fmt.Errorf("agentfox: decode resolved select element: %w", err)
	}

	valuesJSON, _ := json.Marshal(values)
	fn := fmt.Sprintf(`function() {
		const values = %s;
		const opts = Array.from(this.options);
		if (this.multiple) { opts.forEach(o => o.selected = false); }
		let matchedAny = false;
		for (const want of values) {
			let opt = opts.find(o => o.textContent.trim() === want);
			if (!opt) opt = opts.find(o => o.value === want);
			if (!opt) { return 'no option matching ' + JSON.stringify(want); }
			opt.selected = true;
			matchedAny = true;
		}
		if (matchedAny) this.dispatchEvent(new Event('change', {bubbles: true}));
		return null;
	}`, valuesJSON)

	result, err := d.client.Call(ctx, "Runtime.callFunctionOn", map[string]interface{}{
		"objectId": resolved.Object.ObjectID, "functionDeclaration": fn, "returnByValue": true,
	})
	if err != nil {
		return fmt.Errorf("agentfox: select_option: %w", err)
	}
	var resp struct {
		Result struct {
			Value *string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("agentfox: decode select_option result: %w", err)
	}
	if resp.Result.Value != nil {
		return fmt.Errorf("agentfox: select_option: %s", *resp.Result.Value)
	}
	return nil
}
