package columnar

import (
	"bytes"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/shardline/jsonshard/pkg/errors"
	"github.com/shardline/jsonshard/pkg/jsonio"
	"github.com/shardline/jsonshard/pkg/record"
	"github.com/shardline/jsonshard/pkg/schema"
)

// jsonWriter implements Writer for NDJSON output. Rows pass through with
// their original fields; columns missing from a record are emitted as
// explicit nulls so every row carries the shard's full field set. Rows are
// encoded into a pooled buffer before hitting the underlying writer.
type jsonWriter struct {
	cw             *countingWriter
	schema         *schema.Schema
	buf            *bytes.Buffer
	encoder        *gojson.Encoder
	recordsWritten int64
}

func newJSONWriter(cw *countingWriter, cfg *WriterConfig) (*jsonWriter, error) {
	switch strings.ToLower(cfg.Compression) {
	case "", "none":
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "json output does not support compression %q", cfg.Compression)
	}

	buf := jsonio.GetBuffer()
	return &jsonWriter{
		cw:      cw,
		schema:  cfg.Schema,
		buf:     buf,
		encoder: jsonio.NewEncoder(buf),
	}, nil
}

func (jw *jsonWriter) WriteRecords(records []*record.Record) error {
	for _, rec := range records {
		row := make(map[string]interface{}, len(jw.schema.Fields))
		for _, field := range jw.schema.Fields {
			value, ok := rec.Data[field.Name]
			if !ok {
				value = nil
			}
			row[field.Name] = value
		}
		jw.buf.Reset()
		if err := jw.encoder.Encode(row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to encode json row")
		}
		if _, err := jw.cw.Write(jw.buf.Bytes()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write json row")
		}
		jw.recordsWritten++
	}
	return nil
}

// Close returns the row buffer to the pool; the writer is unusable after.
func (jw *jsonWriter) Close() error {
	if jw.buf != nil {
		jsonio.PutBuffer(jw.buf)
		jw.buf = nil
	}
	return nil
}

func (jw *jsonWriter) Format() Format { return JSON }
func (jw *jsonWriter) RecordsWritten() int64 { return jw.recordsWritten }
func (jw *jsonWriter) BytesWritten() int64 { return jw.cw.n }
