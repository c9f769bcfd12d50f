package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

type sample struct {
	ID   string `json:"id"`
	Data []int  `json:"data"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, d := range []Dialect{IPC, Native} {
		in := sample{ID: "c1", Data: []int{1, 2, 3}}
		buf, err := d.Encode(in)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}

		dec := NewDecoder(d)
		msgs, err := dec.Push(buf)
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		if len(msgs) != 1 {
			t.Fatalf("expected 1 message, got %d", len(msgs))
		}

		var out sample
		if err := json.Unmarshal(msgs[0], &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !reflect.DeepEqual(in, out) {
			t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
		}
	}
}

func TestDecoderResilientToChunkBoundaries(t *testing.T) {
	in1 := sample{ID: "a", Data: []int{1}}
	in2 := sample{ID: "b", Data: []int{2, 3}}

	buf1, _ := IPC.Encode(in1)
	buf2, _ := IPC.Encode(in2)
	whole := append(append([]byte{}, buf1...), buf2...)

	// Try every possible single split point and confirm the same two
	// messages come out regardless of partition.
	for split := 0; split <= len(whole); split++ {
		dec := NewDecoder(IPC)
		var got [][]byte
		for _, part := range [][]byte{whole[:split], whole[split:]} {
			msgs, err := dec.Push(part)
			if err != nil {
				t.Fatalf("split=%d push: %v", split, err)
			}
			got = append(got, msgs...)
		}
		if len(got) != 2 {
			t.Fatalf("split=%d: expected 2 messages, got %d", split, len(got))
		}
		var a, b sample
		json.Unmarshal(got[0], &a)
		json.Unmarshal(got[1], &b)
		if !reflect.DeepEqual(a, in1) || !reflect.DeepEqual(b, in2) {
			t.Fatalf("split=%d: payload mismatch: %+v %+v", split, a, b)
		}
	}
}

func TestDecoderByteAtATime(t *testing.T) {
	in := sample{ID: "x", Data: []int{9}}
	buf, _ := Native.Encode(in)

	dec := NewDecoder(Native)
	var got [][]byte
	for _, b := range buf {
		msgs, err := dec.Push([]byte{b})
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		got = append(got, msgs...)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 message from byte-at-a-time feed, got %d", len(got))
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	// Hand-build a frame whose declared length exceeds Native's 1MB cap.
	var buf bytes.Buffer
	lenBytes := make([]byte, 4)
	Native.order.PutUint32(lenBytes, Native.maxBytes+1)
	buf.Write(lenBytes)

	dec := NewDecoder(Native)
	_, err := dec.Push(buf.Bytes())
	if err == nil {
		t.Fatal("expected oversized frame error")
	}
	var tooLarge *ErrFrameTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %T: %v", err, err)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	big := make([]int, 2_000_000)
	_, err := Native.Encode(sample{ID: "big", Data: big})
	if err == nil {
		t.Fatal("expected encode to reject oversized payload")
	}
}
