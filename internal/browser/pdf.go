package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Lemon9247/agentfox/internal/command"
)

func handleSavePDF(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.SavePDFParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"displayHeaderFooter": p.DisplayHeaderFooter,
		"printBackground":      true,
	}
	if p.HeaderTemplate != "" {
		params["headerTemplate"] = p.HeaderTemplate
	}
	if p.FooterTemplate != "" {
		params["footerTemplate"] = p.FooterTemplate
	}

	result, err := d.client.Call(ctx, "Page.printToPDF", params)
	if err != nil {
		return nil, fmt.Errorf("agentfox: save_pdf: unsupported on this platform or browser: %w", err)
	}
	var resp struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return nil, fmt.Errorf("agentfox: decode PDF data: %w", err)
	}
	bytes, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("agentfox: decode PDF data: %w", err)
	}

	dir := os.TempDir()
	path := filepath.Join(dir, fmt.Sprintf("agentfox-%d.pdf", time.Now().UnixNano()))
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return nil, fmt.Errorf("agentfox: write PDF file: %w", err)
	}

	return command.SavePDFResult{Saved: path, Status: "ok"}, nil
}
