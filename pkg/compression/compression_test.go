package compression

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want Algorithm
	}{
		{"data.ndjson", None},
		{"data.ndjson.gz", Gzip},
		{"data.json.GZIP", Gzip},
		{"data.zst", Zstd},
		{"data.zstd", Zstd},
		{"data.snappy", Snappy},
		{"data.lz4", LZ4},
		{"data.s2", S2},
		{"data.deflate", Deflate},
		{"/long/path/to/events.ndjson.gz", Gzip},
		{"noext", None},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.path))
		})
	}
}

func compress(t *testing.T, alg Algorithm, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	var w io.WriteCloser
	var err error

	switch alg {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Snappy:
		w = snappy.NewBufferedWriter(&buf)
	case LZ4:
		w = lz4.NewWriter(&buf)
	case Zstd:
		w, err = zstd.NewWriter(&buf)
	case S2:
		w = s2.NewWriter(&buf)
	case Deflate:
		w, err = flate.NewWriter(&buf, flate.DefaultCompression)
	default:
		t.Fatalf("no writer for %s", alg)
	}
	require.NoError(t, err)

	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestNewReaderRoundTrip(t *testing.T) {
	payload := []byte(`{"a":1}` + "\n" + `{"a":2}` + "\n")

	for _, alg := range []Algorithm{Gzip, Snappy, LZ4, Zstd, S2, Deflate} {
		t.Run(string(alg), func(t *testing.T) {
			compressed := compress(t, alg, payload)

			r, err := NewReader(bytes.NewReader(compressed), alg)
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestNewReaderNonePassesThrough(t *testing.T) {
	payload := []byte("plain text")
	r, err := NewReader(bytes.NewReader(payload), None)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestNewReaderRejectsTruncatedGzip(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0x1f}), Gzip)
	require.Error(t, err)
}
