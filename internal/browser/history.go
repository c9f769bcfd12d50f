package browser

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/Lemon9247/agentfox/internal/command"
)

// profileDir resolves the Chromium profile directory: AGENTFOX_PROFILE_DIR
// if set, otherwise the platform-default "Default" profile under the
// standard Chrome/Chromium user-data directory.
func profileDir() string {
	if v := os.Getenv("AGENTFOX_PROFILE_DIR"); v != "" {
		return v
	}
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Google", "Chrome", "Default")
	case "windows":
		return filepath.Join(home, "AppData", "Local", "Google", "Chrome", "User Data", "Default")
	default:
		return filepath.Join(home, ".config", "google-chrome", "Default")
	}
}

// openHistoryReadOnly copies the live History sqlite file to a temp path
// and opens it read-only/immutable, so a long-running query never contends
// with the browser process that holds the original file open for writes.
func openHistoryReadOnly() (*sql.DB, func(), error) {
	src := filepath.Join(profileDir(), "History")
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, nil, fmt.Errorf("agentfox: read History file: %w", err)
	}

	tmp, err := os.CreateTemp("", "agentfox-history-*.sqlite")
	if err != nil {
		return nil, nil, fmt.Errorf("agentfox: stage History copy: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, nil, fmt.Errorf("agentfox: stage History copy: %w", err)
	}
	tmp.Close()

	db, err := sql.Open("sqlite", "file:"+tmp.Name()+"?mode=ro&immutable=1")
	if err != nil {
		os.Remove(tmp.Name())
		return nil, nil, fmt.Errorf("agentfox: open History db: %w", err)
	}
	cleanup := func() {
		db.Close()
		os.Remove(tmp.Name())
	}
	return db, cleanup, nil
}

func handleGetHistory(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.GetHistoryParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	limit := p.MaxResults
	if limit <= 0 {
		limit = 100
	}

	db, cleanup, err := openHistoryReadOnly()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	query := `SELECT url, title, last_visit_time, visit_count FROM urls WHERE 1=1`
	var args []interface{}
	if p.Query != "" {
		query += ` AND (url LIKE ? OR title LIKE ?)`
		needle := "%" + p.Query + "%"
		args = append(args, needle, needle)
	}
	if p.StartTime > 0 {
		query += ` AND last_visit_time >= ?`
		args = append(args, chromeTime(p.StartTime))
	}
	if p.EndTime > 0 {
		query += ` AND last_visit_time <= ?`
		args = append(args, chromeTime(p.EndTime))
	}
	query += ` ORDER BY last_visit_time DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("agentfox: query history: %w", err)
	}
	defer rows.Close()

	var items []command.HistoryItem
	for rows.Next() {
		var url, title string
		var lastVisit int64
		var visitCount int
		if err := rows.Scan(&url, &title, &lastVisit, &visitCount); err != nil {
			return nil, fmt.Errorf("agentfox: scan history row: %w", err)
		}
		items = append(items, command.HistoryItem{
			URL: url, Title: title, LastVisitTime: unixFromChromeTime(lastVisit), VisitCount: visitCount,
		})
	}
	return command.GetHistoryResult{Items: items}, nil
}

// Chromium stores timestamps as microseconds since 1601-01-01, not Unix
// epoch milliseconds. The two helpers below convert each direction.
const chromeEpochOffsetMicros = 11644473600000000

func chromeTime(unixMillis int64) int64 {
	return unixMillis*1000 + chromeEpochOffsetMicros
}

func unixFromChromeTime(chromeMicros int64) int64 {
	return (chromeMicros - chromeEpochOffsetMicros) / 1000
}

func handleGetBookmarks(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.GetBookmarksParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(profileDir(), "Bookmarks"))
	if err != nil {
		return nil, fmt.Errorf("agentfox: open Bookmarks file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("agentfox: read Bookmarks file: %w", err)
	}

	var doc struct {
		Roots map[string]bookmarkNode `json:"roots"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("agentfox: decode Bookmarks file: %w", err)
	}

	var out []command.Bookmark
	query := strings.ToLower(p.Query)
	for _, root := range doc.Roots {
		collectBookmarks(&root, query, &out)
	}
	return command.GetBookmarksResult{Bookmarks: out}, nil
}

// bookmarkNode mirrors Chromium's Bookmarks JSON node shape: folders carry
// "children", leaves carry a "url". No third-party JSON library fits this
// single well-known shape better than encoding/json, so this one corner of
// the domain stack stays on the standard library.
type bookmarkNode struct {
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	URL      string         `json:"url"`
	Children []bookmarkNode `json:"children"`
}

func collectBookmarks(n *bookmarkNode, query string, out *[]command.Bookmark) {
	if n.Type == "url" {
		if query == "" || strings.Contains(strings.ToLower(n.Name), query) || strings.Contains(strings.ToLower(n.URL), query) {
			*out = append(*out, command.Bookmark{Title: n.Name, URL: n.URL})
		}
		return
	}
	for i := range n.Children {
		collectBookmarks(&n.Children[i], query, out)
	}
}
