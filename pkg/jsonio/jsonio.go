// Package jsonio wraps goccy/go-json with the decode and encode settings
// used throughout jsonshard. Decoders always run with UseNumber so that
// integer and floating point values stay distinguishable until schema
// inference classifies them.
package jsonio

import (
	"bytes"
	"errors"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// ErrTrailingData is returned when a line holds more than one JSON value.
var ErrTrailingData = errors.New("unexpected trailing data after JSON value")

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// NewDecoder creates a decoder with UseNumber enabled.
func NewDecoder(r io.Reader) *gojson.Decoder {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()
	return dec
}

// NewEncoder creates an encoder with HTML escaping disabled.
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// UnmarshalLine parses a single NDJSON line. Numbers decode as json.Number.
func UnmarshalLine(line []byte, v interface{}) error {
	dec := NewDecoder(bytes.NewReader(line))
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Reject trailing garbage after the JSON value; one value per line.
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}

// Marshal is a drop-in replacement for json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal.
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// GetBuffer gets a pooled bytes.Buffer.
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}
