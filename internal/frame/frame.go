// Package frame implements the length-prefixed message framing shared by
// the IPC broker and the native-messaging relay. Both dialects share the
// shape [4-byte length][UTF-8 JSON payload] but differ in byte order and
// maximum frame size.
package frame

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Dialect describes one length-prefix framing convention.
type Dialect struct {
	name     string
	order    binary.ByteOrder
	maxBytes uint32
}

// IPC is the big-endian, 64MB-capped dialect used on the local stream
// socket between the broker and the relay.
var IPC = Dialect{name: "ipc", order: binary.BigEndian, maxBytes: 64 * 1024 * 1024}

// Native is the little-endian, 1MB-capped dialect used on the relay's
// stdin/stdout, matching Chrome's native-messaging protocol.
var Native = Dialect{name: "native", order: binary.LittleEndian, maxBytes: 1024 * 1024}

// ErrFrameTooLarge is returned when a declared frame length exceeds the
// dialect's cap. The decoder fails fast without consuming further data.
type ErrFrameTooLarge struct {
	Dialect  string
	Declared uint32
	Max      uint32
}

func (e *ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("frame: %s frame of %d bytes exceeds %d byte cap", e.Dialect, e.Declared, e.Max)
}

// Encode marshals v to JSON and wraps it in d's length prefix.
func (d Dialect) Encode(v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("frame: marshal: %w", err)
	}
	if uint32(len(payload)) > d.maxBytes {
		return nil, &ErrFrameTooLarge{Dialect: d.name, Declared: uint32(len(payload)), Max: d.maxBytes}
	}
	buf := make([]byte, 4+len(payload))
	d.order.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	return buf, nil
}

// Decoder incrementally reassembles complete frames from arbitrary chunk
// boundaries, carrying over any trailing partial frame across Push calls.
// It is restartable via Reset, which is required on reconnection.
type Decoder struct {
	dialect Dialect
	buf     []byte
}

// NewDecoder returns a Decoder for the given dialect.
func NewDecoder(d Dialect) *Decoder {
	return &Decoder{dialect: d}
}

// Reset clears any buffered partial frame.
func (dec *Decoder) Reset() {
	dec.buf = dec.buf[:0]
}

// Push appends chunk to the internal buffer and returns every complete
// frame payload (JSON bytes, length prefix stripped) that can be extracted.
// Feeding the same total byte stream through any partition of Push calls
// yields the same sequence of returned messages.
func (dec *Decoder) Push(chunk []byte) ([][]byte, error) {
	dec.buf = append(dec.buf, chunk...)

	var messages [][]byte
	for {
		if len(dec.buf) < 4 {
			break
		}
		declared := dec.dialect.order.Uint32(dec.buf[:4])
		if declared > dec.dialect.maxBytes {
			// Fail fast without consuming further data; caller should
			// treat this connection as dead but must not crash the process.
			return messages, &ErrFrameTooLarge{Dialect: dec.dialect.name, Declared: declared, Max: dec.dialect.maxBytes}
		}
		total := 4 + int(declared)
		if len(dec.buf) < total {
			break
		}
		payload := make([]byte, declared)
		copy(payload, dec.buf[4:total])
		messages = append(messages, payload)
		dec.buf = dec.buf[total:]
	}
	return messages, nil
}
