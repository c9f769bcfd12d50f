package browser

import (
	"fmt"
	"testing"

	"github.com/Lemon9247/agentfox/internal/command"
)

func TestMatchFilter(t *testing.T) {
	tests := []struct {
		url, filter string
		want        bool
	}{
		{"https://example.com/api", "", true},
		{"https://example.com/api", "example", true},
		{"https://example.com/api", "EXAMPLE", true},
		{"https://example.com/api", "other", false},
	}
	for _, tt := range tests {
		if got := matchFilter(tt.url, tt.filter); got != tt.want {
			t.Errorf("matchFilter(%q, %q) = %v, want %v", tt.url, tt.filter, got, tt.want)
		}
	}
}

func TestNetworkRecorderRingEviction(t *testing.T) {
	r := newNetworkRecorder()
	r.recording = true
	for i := 0; i < networkRequestRingSize+10; i++ {
		r.append(command.NetworkRequest{RequestID: fmt.Sprintf("id-%d", i), URL: "https://example.com"})
	}
	if len(r.buf) != networkRequestRingSize {
		t.Fatalf("buf length = %d, want %d", len(r.buf), networkRequestRingSize)
	}
	for id, idx := range r.byID {
		if r.buf[idx].RequestID != id {
			t.Fatalf("byID out of sync for %q: buf[%d].RequestID = %q", id, idx, r.buf[idx].RequestID)
		}
	}
}

func TestNetworkRecorderStartsIdle(t *testing.T) {
	r := newNetworkRecorder()
	if r.recording {
		t.Fatal("recorder should start idle")
	}
}
