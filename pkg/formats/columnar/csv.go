package columnar

import (
	"encoding/csv"
	"strings"

	"github.com/shardline/jsonshard/pkg/errors"
	"github.com/shardline/jsonshard/pkg/record"
	"github.com/shardline/jsonshard/pkg/schema"
)

// csvWriter implements Writer for CSV with a header row. Null cells are
// written as empty strings.
type csvWriter struct {
	cw             *countingWriter
	schema         *schema.Schema
	writer         *csv.Writer
	headerWritten  bool
	recordsWritten int64
}

func newCSVWriter(cw *countingWriter, cfg *WriterConfig) (*csvWriter, error) {
	switch strings.ToLower(cfg.Compression) {
	case "", "none":
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "csv output does not support compression %q", cfg.Compression)
	}

	return &csvWriter{
		cw:     cw,
		schema: cfg.Schema,
		writer: csv.NewWriter(cw),
	}, nil
}

func (cv *csvWriter) WriteRecords(records []*record.Record) error {
	if !cv.headerWritten {
		header := make([]string, 0, len(cv.schema.Fields))
		for _, field := range cv.schema.Fields {
			header = append(header, field.Name)
		}
		if err := cv.writer.Write(header); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write csv header")
		}
		cv.headerWritten = true
	}

	row := make([]string, len(cv.schema.Fields))
	for _, rec := range records {
		for i, field := range cv.schema.Fields {
			value := rec.Data[field.Name]
			if value == nil {
				row[i] = ""
				continue
			}
			row[i] = stringValue(value)
		}
		if err := cv.writer.Write(row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write csv row")
		}
		cv.recordsWritten++
	}

	return nil
}

func (cv *csvWriter) Close() error {
	cv.writer.Flush()
	if err := cv.writer.Error(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush csv writer")
	}
	return nil
}

func (cv *csvWriter) Format() Format { return CSV }
func (cv *csvWriter) RecordsWritten() int64 { return cv.recordsWritten }
func (cv *csvWriter) BytesWritten() int64 { return cv.cw.n }
