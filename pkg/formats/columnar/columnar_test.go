package columnar

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shardline/jsonshard/pkg/record"
	"github.com/shardline/jsonshard/pkg/schema"
)

func scalarBatch() (*schema.Schema, []*record.Record) {
	records := []*record.Record{
		record.New(map[string]interface{}{
			"id":     json.Number("1"),
			"name":   "alice",
			"score":  json.Number("1.5"),
			"active": true,
		}, 0),
		record.New(map[string]interface{}{
			"id":     json.Number("2"),
			"name":   "bob",
			"score":  json.Number("2.25"),
			"active": false,
		}, 1),
	}
	return schema.Infer("people", records), records
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"parquet", Parquet, false},
		{"PARQUET", Parquet, false},
		{"arrow", Arrow, false},
		{"avro", Avro, false},
		{"csv", CSV, false},
		{"json", JSON, false},
		{"orc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatForPath(t *testing.T) {
	f, err := FormatForPath("out/events-0.parquet")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)

	f, err = FormatForPath("rows.ndjson")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)

	_, err = FormatForPath("noext")
	require.Error(t, err)
}

func TestSelfDescribingRoundTrip(t *testing.T) {
	formats := []Format{Parquet, Arrow, Avro}

	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			s, records := scalarBatch()

			var buf bytes.Buffer
			w, err := NewWriter(&buf, &WriterConfig{Format: format, Schema: s})
			require.NoError(t, err)
			require.NoError(t, w.WriteRecords(records))
			require.NoError(t, w.Close())

			assert.Equal(t, int64(len(records)), w.RecordsWritten())
			assert.Greater(t, buf.Len(), 0)
			assert.Equal(t, int64(buf.Len()), w.BytesWritten())

			r, err := NewReader(bytes.NewReader(buf.Bytes()), format)
			require.NoError(t, err)
			defer r.Close()

			got, err := r.ReadRecords()
			require.NoError(t, err)
			require.Len(t, got, len(records))

			assert.Equal(t, int64(1), got[0].Data["id"])
			assert.Equal(t, "alice", got[0].Data["name"])
			assert.Equal(t, 1.5, got[0].Data["score"])
			assert.Equal(t, true, got[0].Data["active"])
			assert.Equal(t, int64(2), got[1].Data["id"])
			assert.Equal(t, "bob", got[1].Data["name"])
		})
	}
}

func TestMissingFieldsReadBackAsNull(t *testing.T) {
	records := []*record.Record{
		record.New(map[string]interface{}{"a": json.Number("1"), "b": "x"}, 0),
		record.New(map[string]interface{}{"a": json.Number("2")}, 1),
	}
	s := schema.Infer("sparse", records)

	for _, format := range []Format{Parquet, Arrow, Avro} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, &WriterConfig{Format: format, Schema: s})
			require.NoError(t, err)
			require.NoError(t, w.WriteRecords(records))
			require.NoError(t, w.Close())

			r, err := NewReader(bytes.NewReader(buf.Bytes()), format)
			require.NoError(t, err)
			defer r.Close()

			got, err := r.ReadRecords()
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "x", got[0].Data["b"])
			assert.Nil(t, got[1].Data["b"])
		})
	}
}

func TestNestedValuesEncodeAsJSONStrings(t *testing.T) {
	records := []*record.Record{
		record.New(map[string]interface{}{
			"meta": map[string]interface{}{"k": "v"},
		}, 0),
	}
	s := schema.Infer("nested", records)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Parquet, Schema: s})
	require.NoError(t, err)
	require.NoError(t, w.WriteRecords(records))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), Parquet)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadRecords()
	require.NoError(t, err)
	require.Len(t, got, 1)

	cell, ok := got[0].Data["meta"].(string)
	require.True(t, ok, "nested object should become a string cell")
	assert.JSONEq(t, `{"k":"v"}`, cell)
}

func TestAvroFieldNameSanitization(t *testing.T) {
	// "a.b" sanitizes to "a_b", colliding with the real "a_b" column; the
	// duplicate must get a suffix instead of silently merging, and rows must
	// encode under the sanitized names.
	records := []*record.Record{
		record.New(map[string]interface{}{
			"1num": json.Number("9"),
			"a.b":  "dotted",
			"a_b":  "underscored",
		}, 0),
	}
	s := schema.Infer("weird", records)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: Avro, Schema: s})
	require.NoError(t, err)
	require.NoError(t, w.WriteRecords(records))
	require.NoError(t, w.Close())

	r, err := NewReader(bytes.NewReader(buf.Bytes()), Avro)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.ReadRecords()
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, int64(9), got[0].Data["_1num"])
	assert.Equal(t, "dotted", got[0].Data["a_b"])
	assert.Equal(t, "underscored", got[0].Data["a_b_2"])
}

func TestCSVWriter(t *testing.T) {
	s, records := scalarBatch()

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: CSV, Schema: s})
	require.NoError(t, err)
	require.NoError(t, w.WriteRecords(records))
	require.NoError(t, w.Close())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two rows")

	header := rows[0]
	require.Len(t, header, 4)

	// Locate columns by header name; order follows the inferred schema
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	assert.Equal(t, "1", rows[1][col["id"]])
	assert.Equal(t, "alice", rows[1][col["name"]])
	assert.Equal(t, "true", rows[1][col["active"]])
	assert.Equal(t, "bob", rows[2][col["name"]])
}

func TestJSONWriter(t *testing.T) {
	records := []*record.Record{
		record.New(map[string]interface{}{"a": json.Number("1"), "b": "x"}, 0),
		record.New(map[string]interface{}{"a": json.Number("2")}, 1),
	}
	s := schema.Infer("rows", records)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: JSON, Schema: s})
	require.NoError(t, err)
	require.NoError(t, w.WriteRecords(records))
	require.NoError(t, w.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var row map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &row))
	assert.Equal(t, float64(2), row["a"])

	// Second record misses "b"; the shard schema forces an explicit null
	v, present := row["b"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestJSONWriterMultipleBatches(t *testing.T) {
	// The row buffer is reused across calls; every row must still come out
	// whole and on its own line.
	records := []*record.Record{
		record.New(map[string]interface{}{"n": json.Number("0"), "payload": strings.Repeat("x", 256)}, 0),
		record.New(map[string]interface{}{"n": json.Number("1")}, 1),
		record.New(map[string]interface{}{"n": json.Number("2"), "payload": "short"}, 2),
	}
	s := schema.Infer("rows", records)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, &WriterConfig{Format: JSON, Schema: s})
	require.NoError(t, err)
	require.NoError(t, w.WriteRecords(records[:2]))
	require.NoError(t, w.WriteRecords(records[2:]))
	require.NoError(t, w.Close())
	assert.Equal(t, int64(3), w.RecordsWritten())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		var row map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &row))
		assert.Equal(t, float64(i), row["n"])
	}

	var row map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &row))
	assert.Equal(t, "short", row["payload"])
}

func TestNoReaderForTextFormats(t *testing.T) {
	for _, format := range []Format{CSV, JSON} {
		_, err := NewReader(bytes.NewReader(nil), format)
		require.Error(t, err)
	}
}

func TestWriterRequiresSchema(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewWriter(&buf, &WriterConfig{Format: Parquet})
	require.Error(t, err)
	_, err = NewWriter(&buf, nil)
	require.Error(t, err)
}

func TestUnsupportedCompressionRejected(t *testing.T) {
	s, _ := scalarBatch()
	tests := []struct {
		format      Format
		compression string
	}{
		{Parquet, "bogus"},
		{Arrow, "gzip"},
		{Avro, "zstd"},
		{CSV, "snappy"},
		{JSON, "gzip"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		_, err := NewWriter(&buf, &WriterConfig{Format: tt.format, Schema: s, Compression: tt.compression})
		require.Error(t, err, "format %s with compression %s", tt.format, tt.compression)
	}
}

func TestParquetCompressionVariants(t *testing.T) {
	s, records := scalarBatch()

	for _, codec := range []string{"", "snappy", "gzip", "zstd", "none"} {
		t.Run("codec_"+codec, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, &WriterConfig{Format: Parquet, Schema: s, Compression: codec})
			require.NoError(t, err)
			require.NoError(t, w.WriteRecords(records))
			require.NoError(t, w.Close())

			r, err := NewReader(bytes.NewReader(buf.Bytes()), Parquet)
			require.NoError(t, err)
			defer r.Close()
			got, err := r.ReadRecords()
			require.NoError(t, err)
			assert.Len(t, got, len(records))
		})
	}
}
