package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Lemon9247/agentfox/internal/command"
)

func handleGetCookies(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.GetCookiesParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	params := map[string]interface{}{}
	if p.URL != "" {
		params["urls"] = []string{p.URL}
	}

	result, err := d.client.Call(ctx, "Network.getCookies", params)
	if err != nil {
		return nil, fmt.Errorf("agentfox: get_cookies: %w", err)
	}

	var resp struct {
		Cookies []struct {
			Name     string `json:"name"`
			Value    string `json:"value"`
			Domain   string `json:"domain"`
			Path     string `json:"path"`
			Secure   bool   `json:"secure"`
			HTTPOnly bool   `json:"httpOnly"`
		} `json:"cookies"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("agentfox: decode cookies: %w", err)
	}

	out := make([]command.Cookie, 0, len(resp.Cookies))
	for _, c := range resp.Cookies {
		out = append(out, command.Cookie{
			Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path,
			Secure: c.Secure, HTTPOnly: c.HTTPOnly,
		})
	}
	return command.GetCookiesResult{Cookies: out}, nil
}
