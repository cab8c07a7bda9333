// Package columnar provides the tabular on-disk formats jsonshard can emit.
// Every shard is one self-contained file written through a Writer whose
// schema was inferred from that shard's batch alone.
package columnar

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/shardline/jsonshard/pkg/errors"
	"github.com/shardline/jsonshard/pkg/record"
	"github.com/shardline/jsonshard/pkg/schema"
)

// Format represents an output file format.
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
	// Arrow is Apache Arrow IPC file format
	Arrow Format = "arrow"
	// Avro is Apache Avro object container file format
	Avro Format = "avro"
	// CSV is comma-separated values with a header row
	CSV Format = "csv"
	// JSON is newline-delimited JSON, the round-trip debug format
	JSON Format = "json"
)

// Formats lists the supported output formats in display order.
func Formats() []Format {
	return []Format{Parquet, Arrow, Avro, CSV, JSON}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	switch f {
	case Parquet, Arrow, Avro, CSV, JSON:
		return f, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported output format: %q", s)
	}
}

// Extension returns the file extension for the format, dot included.
func (f Format) Extension() string {
	switch f {
	case Parquet:
		return ".parquet"
	case Arrow:
		return ".arrow"
	case Avro:
		return ".avro"
	case CSV:
		return ".csv"
	case JSON:
		return ".json"
	default:
		return ""
	}
}

// FormatForPath maps a file extension back to its format.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return Parquet, nil
	case ".arrow":
		return Arrow, nil
	case ".avro":
		return Avro, nil
	case ".csv":
		return CSV, nil
	case ".json", ".ndjson", ".jsonl":
		return JSON, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "cannot determine format of %q", path)
	}
}

// WriterConfig configures a shard writer.
type WriterConfig struct {
	Format Format
	// Schema is the batch-local schema the shard is encoded with; required.
	Schema *schema.Schema
	// Compression names the output codec. The empty string selects each
	// format's default; formats without codec support reject non-empty
	// values other than "none".
	Compression string
}

// Writer encodes one batch into one shard file.
type Writer interface {
	// WriteRecords appends records to the shard in order.
	WriteRecords(records []*record.Record) error
	// Close finalizes the file. The writer is unusable afterwards.
	Close() error
	// Format returns the output format.
	Format() Format
	// RecordsWritten returns the number of rows written so far.
	RecordsWritten() int64
	// BytesWritten returns the bytes emitted to the underlying writer.
	// Buffered formats report the full count only after Close.
	BytesWritten() int64
}

// Reader decodes a shard file back into records; used by the inspect
// command and by tests.
type Reader interface {
	// ReadRecords reads all rows of the shard in order.
	ReadRecords() ([]*record.Record, error)
	// Schema returns the shard's schema.
	Schema() (*schema.Schema, error)
	// Close releases any resources held by the reader.
	Close() error
	// Format returns the input format.
	Format() Format
}

// NewWriter creates a writer for the configured format.
func NewWriter(w io.Writer, cfg *WriterConfig) (Writer, error) {
	if cfg == nil || cfg.Schema == nil {
		return nil, errors.New(errors.ErrorTypeFormat, "writer config with schema is required")
	}

	cw := &countingWriter{w: w}

	switch cfg.Format {
	case Parquet:
		return newParquetWriter(cw, cfg)
	case Arrow:
		return newArrowWriter(cw, cfg)
	case Avro:
		return newAvroWriter(cw, cfg)
	case CSV:
		return newCSVWriter(cw, cfg)
	case JSON:
		return newJSONWriter(cw, cfg)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported output format: %q", cfg.Format)
	}
}

// NewReader creates a reader for the given format. Only the self-describing
// formats (parquet, arrow, avro) can be read back.
func NewReader(r io.Reader, format Format) (Reader, error) {
	switch format {
	case Parquet:
		return newParquetReader(r)
	case Arrow:
		return newArrowReader(r)
	case Avro:
		return newAvroReader(r)
	default:
		return nil, errors.Newf(errors.ErrorTypeFormat, "no reader for format %q", format)
	}
}

// countingWriter tracks bytes flowing to the underlying writer.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
