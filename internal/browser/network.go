package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Lemon9247/agentfox/internal/command"
)

// networkRequestRingSize bounds the recorder's memory the same way the
// teacher's mcpConsoleBuffer ring buffer bounds console output: a fixed
// capacity that silently drops the oldest entry rather than growing
// unbounded while recording is on.
const networkRequestRingSize = 500

// networkRecorder is a bounded ring buffer of observed requests, filled
// from CDP Network.requestWillBeSent/responseReceived events. start/stop
// gate whether new entries are appended; existing entries survive a stop.
type networkRecorder struct {
	mu        sync.Mutex
	recording bool
	filter    string
	buf       []command.NetworkRequest
	byID      map[string]int
}

func newNetworkRecorder() *networkRecorder {
	return &networkRecorder{byID: map[string]int{}}
}

func (r *networkRecorder) onRequestWillBeSent(params json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	var evt struct {
		RequestID string `json:"requestId"`
		Request   struct {
			URL    string `json:"url"`
			Method string `json:"method"`
		} `json:"request"`
	}
	if err := json.Unmarshal(params, &evt); err != nil {
		return
	}
	if r.filter != "" && !matchFilter(evt.Request.URL, r.filter) {
		return
	}
	entry := command.NetworkRequest{RequestID: evt.RequestID, URL: evt.Request.URL, Method: evt.Request.Method}
	r.append(entry)
}

func (r *networkRecorder) onResponseReceived(params json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	var evt struct {
		RequestID string `json:"requestId"`
		Response  struct {
			Status   int    `json:"status"`
			MimeType string `json:"mimeType"`
		} `json:"response"`
	}
	if err := json.Unmarshal(params, &evt); err != nil {
		return
	}
	idx, ok := r.byID[evt.RequestID]
	if !ok {
		return
	}
	r.buf[idx].Status = evt.Response.Status
	r.buf[idx].MimeType = evt.Response.MimeType
}

// append must be called with mu held.
func (r *networkRecorder) append(entry command.NetworkRequest) {
	if len(r.buf) >= networkRequestRingSize {
		oldest := r.buf[0]
		r.buf = r.buf[1:]
		delete(r.byID, oldest.RequestID)
		for id, idx := range r.byID {
			r.byID[id] = idx - 1
		}
	}
	r.byID[entry.RequestID] = len(r.buf)
	r.buf = append(r.buf, entry)
}

func matchFilter(url, filter string) bool {
	return filter == "" || strings.Contains(strings.ToLower(url), strings.ToLower(filter))
}

func handleNetworkRequests(ctx context.Context, d *Dispatcher, raw json.RawMessage) (interface{}, error) {
	var p command.NetworkRequestsParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}

	r := d.network
	switch p.Action {
	case "start":
		r.mu.Lock()
		r.recording = true
		r.filter = p.Filter
		r.mu.Unlock()
		return command.NetworkRequestsResult{Recording: true}, nil
	case "stop":
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return command.NetworkRequestsResult{Recording: false}, nil
	case "get":
		r.mu.Lock()
		out := append([]command.NetworkRequest{}, r.buf...)
		r.mu.Unlock()
		return command.NetworkRequestsResult{Requests: out, Count: len(out)}, nil
	case "clear":
		r.mu.Lock()
		r.buf = nil
		r.byID = map[string]int{}
		r.mu.Unlock()
		return command.NetworkRequestsResult{Count: 0}, nil
	default:
		return nil, fmt.Errorf("agentfox: unknown network_requests sub-action %q", p.Action)
	}
}
