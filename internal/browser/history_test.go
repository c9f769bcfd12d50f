package browser

import (
	"testing"

	"github.com/Lemon9247/agentfox/internal/command"
)

func TestChromeTimeRoundTrip(t *testing.T) {
	var unixMillis int64 = 1_700_000_000_000
	chrome := chromeTime(unixMillis)
	back := unixFromChromeTime(chrome)
	if back != unixMillis {
		t.Errorf("round trip = %d, want %d", back, unixMillis)
	}
}

func TestCollectBookmarks(t *testing.T) {
	root := bookmarkNode{
		Type: "folder",
		Name: "Bar",
		Children: []bookmarkNode{
			{Type: "url", Name: "Go", URL: "https://go.dev"},
			{Type: "url", Name: "Example", URL: "https://example.com"},
			{Type: "folder", Name: "Nested", Children: []bookmarkNode{
				{Type: "url", Name: "Deep", URL: "https://deep.example.com"},
			}},
		},
	}

	var out []command.Bookmark
	collectBookmarks(&root, "", &out)
	if len(out) != 3 {
		t.Fatalf("expected 3 bookmarks, got %d: %v", len(out), out)
	}

	out = nil
	collectBookmarks(&root, "deep", &out)
	if len(out) != 1 || out[0].Title != "Deep" {
		t.Fatalf("query filter failed, got %v", out)
	}
}
