package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
)

// debugTarget mirrors one entry from the browser's /json/list endpoint.
type debugTarget struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

func (d *Dispatcher) listTargets() ([]debugTarget, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/json/list", d.debugPort))
	if err != nil {
		return nil, fmt.Errorf("agentfox: list tabs: %w", err)
	}
	defer resp.Body.Close()
	var targets []debugTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("agentfox: decode tab list: %w", err)
	}
	var pages []debugTarget
	for _, t := range targets {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

func (d *Dispatcher) debugGet(path string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d%s", d.debugPort, path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func handleTabs(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.TabsParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	switch p.Action {
	case "list":
		targets, err := d.listTargets()
		if err != nil {
			return nil, err
		}
		currentTarget := d.client.TargetID()
		out := make([]command.TabInfo, 0, len(targets))
		for i, t := range targets {
			out = append(out, command.TabInfo{Index: i, Title: t.Title, URL: t.URL, Active: t.ID == currentTarget})
		}
		return command.TabsListResult{Tabs: out}, nil

	case "new":
		if err := d.debugGet("/json/new?about:blank"); err != nil {
			return nil, fmt.Errorf("agentfox: new tab: %w", err)
		}
		return d.tabInfoAtIndex(p.Index)

	case "close":
		targets, err := d.listTargets()
		if err != nil {
			return nil, err
		}
		if p.Index < 0 || p.Index >= len(targets) {
			return nil, fmt.Errorf("agentfox: tab index %d out of range", p.Index)
		}
		if err := d.debugGet("/json/close/" + targets[p.Index].ID); err != nil {
			return nil, fmt.Errorf("agentfox: close tab: %w", err)
		}
		return struct{}{}, nil

	case "select":
		targets, err := d.listTargets()
		if err != nil {
			return nil, err
		}
		if p.Index < 0 || p.Index >= len(targets) {
			return nil, fmt.Errorf("agentfox: tab index %d out of range", p.Index)
		}
		if err := d.debugGet("/json/activate/" + targets[p.Index].ID); err != nil {
			return nil, fmt.Errorf("agentfox: select tab: %w", err)
		}
		if err := d.client.Close(); err != nil {
			d.logger.Warnw("closing prior tab connection", "error", err)
		}
		if err := d.client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("agentfox: reconnect to selected tab: %w", err)
		}
		return d.tabInfoAtIndex(p.Index)

	default:
		return nil, fmt.Errorf("agentfox: unknown tabs sub-action %q", p.Action)
	}
}

func (d *Dispatcher) tabInfoAtIndex(index int) (command.TabInfo, error) {
	targets, err := d.listTargets()
	if err != nil {
		return command.TabInfo{}, err
	}
	if index < 0 || index >= len(targets) {
		index = len(targets) - 1
	}
	if index < 0 {
		return command.TabInfo{}, fmt.Errorf("agentfox: no tabs open")
	}
	t := targets[index]
	return command.TabInfo{Index: index, Title: t.Title, URL: t.URL, Active: t.ID == d.client.TargetID()}, nil
}
