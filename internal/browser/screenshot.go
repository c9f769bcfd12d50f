package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Lemon9247/agentfox/internal/command"
)

func handleScreenshot(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.ScreenshotParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	format := p.Type
	if format == "" {
		format = "png"
	}

	params := map[string]interface{}{"format": format}
	if format == "jpeg" {
		params["quality"] = 90
	}

	if p.Ref != "" {
		n, err := resolveRef(ctx, d, p.Ref)
		if err != nil {
			return nil, err
		}
		nodeID, _ := n.Backing.(int)
		if err := scrollIntoCenterView(ctx, d, nodeID); err != nil {
			return nil, fmt.Errorf("agentfox: screenshot: scroll into view: %w", err)
		}
		box, err := d.client.Call(ctx, "DOM.getBoxModel", map[string]interface{}{"nodeId": nodeID})
		if err != nil {
			return nil, fmt.Errorf("agentfox: screenshot: box model: %w", err)
		}
		var model struct {
			Model struct {
				Content []float64 `json:"content"`
			} `json:"model"`
		}
		if err := json.Unmarshal(box, &model); err == nil && len(model.Model.Content) >= 6 {
			x, y := model.Model.Content[0], model.Model.Content[1]
			width := model.Model.Content[2] - x
			height := model.Model.Content[5] - y
			params["clip"] = map[string]interface{}{"x": x, "y": y, "width": width, "height": height, "scale": 1}
		}
	} else if p.FullPage {
		params["captureBeyondViewport"] = true
	}

	result, err := d.client.Call(ctx, "Page.captureScreenshot", params)
	if err != nil {
		return nil, fmt.Errorf("agentfox: screenshot: %w", err)
	}
	var resp struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("agentfox: decode screenshot: %w", err)
	}

	mime := "image/png"
	if format == "jpeg" {
		mime = "image/jpeg"
	}
	return command.ScreenshotResult{Data: resp.Data, MimeType: mime}, nil
}
