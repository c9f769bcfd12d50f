package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
)

const navigationTimeout = 30 * time.Second

func handleNavigate(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.NavigateParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	if _, err := d.client.Call(ctx, "Page.navigate", map[string]interface{}{"url": p.URL}); err != nil {
		return nil, fmt.Errorf("agentfox: navigate: %w", err)
	}
	if err := waitForLoadComplete(ctx, d); err != nil {
		return nil, err
	}
	return currentURLAndTitle(ctx, d)
}

func handleNavigateBack(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	_, before := readyStateAndURL(ctx, d)

	if _, err := d.client.Call(ctx, "Runtime.evaluate", map[string]interface{}{"expression": "history.back()"}); err != nil {
		return nil, fmt.Errorf("agentfox: navigate_back: %w", err)
	}

	// Edge case: no history entry to go back to. Probe briefly; if the URL
	// hasn't changed and the tab is already complete, there's no
	// forthcoming navigation event to wait for.
	time.Sleep(300 * time.Millisecond)
	afterState, afterURL := readyStateAndURL(ctx, d)
	if afterState == "complete" && afterURL == before {
		return currentURLAndTitle(ctx, d)
	}

	if err := waitForLoadComplete(ctx, d); err != nil {
		return nil, err
	}
	return currentURLAndTitle(ctx, d)
}

// waitForLoadComplete polls document.readyState until "complete" or
// navigationTimeout elapses, returning a distinct error if the underlying
// debugger connection drops mid-wait (the CDP-driven stand-in for "tab
// closed during navigation").
func waitForLoadComplete(ctx context.Context, d *Dispatcher) error {
	deadline := time.Now().Add(navigationTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !d.client.IsConnected() {
			return fmt.Errorf("agentfox: tab closed during navigation")
		}
		state, _ := readyStateAndURL(ctx, d)
		if state == "complete" {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("agentfox: navigation timed out after %s", navigationTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readyStateAndURL(ctx context.Context, d *Dispatcher) (state, url string) {
	raw, err := d.client.Call(ctx, "Runtime.evaluate", map[string]interface{}{
		"expression":    "JSON.stringify({state: document.readyState, url: location.href})",
		"returnByValue": true,
	})
	if err != nil {
		return "", ""
	}
	var resp struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", ""
	}
	var parsed struct {
		State string `json:"state"`
		URL   string `json:"url"`
	}
	_ = json.Unmarshal([]byte(resp.Result.Value), &parsed)
	return parsed.State, parsed.URL
}

func currentURLAndTitle(ctx context.Context, d *Dispatcher) (command.NavigateResult, error) {
	_, url := readyStateAndURL(ctx, d)
	return command.NavigateResult{URL: url, Title: titleOf(ctx, d.client)}, nil
}

func handleClose(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	_, err := d.client.Call(ctx, "Page.close", nil)
	if err != nil {
		return nil, fmt.Errorf("agentfox: close: %w", err)
	}
	return struct{}{}, nil
}

func handleResize(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.ResizeParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	_, err := d.client.Call(ctx, "Emulation.setDeviceMetricsOverride", map[string]interface{}{
		"width":             p.Width,
		"height":            p.Height,
		"deviceScaleFactor": 0,
		"mobile":            false,
	})
	if err != nil {
		return nil, fmt.Errorf("agentfox: resize: %w", err)
	}
	return struct{}{}, nil
}
