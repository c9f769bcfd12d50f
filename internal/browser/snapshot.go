package browser

import (
	"context"
	"encoding/json"

	"github.com/Lemon9247/agentfox/internal/a11y"
	"github.com/Lemon9247/agentfox/internal/command"
)

// SnapshotResult is the wire shape for the snapshot action's result.
type SnapshotResult struct {
	Tree  *a11y.TreeNode `json:"tree"`
	URL   string         `json:"url"`
	Title string         `json:"title"`
}

func handleSnapshot(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	if isRestrictedPageURL(currentPageURL(ctx, d)) {
		return nil, command.ErrContentUnavailable
	}
	body, title, err := snapshotDocument(ctx, d.client)
	if err != nil {
		return nil, err
	}
	tree := a11y.Build(body, title, d.refMap)
	_, url := readyStateAndURL(ctx, d)
	return SnapshotResult{Tree: tree, URL: url, Title: title}, nil
}
