package columnar

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/shardline/jsonshard/pkg/errors"
	"github.com/shardline/jsonshard/pkg/record"
	"github.com/shardline/jsonshard/pkg/schema"
)

// parquetWriter implements Writer for Parquet.
type parquetWriter struct {
	cw             *countingWriter
	schema         *schema.Schema
	arrowSchema    *arrow.Schema
	fileWriter     *pqarrow.FileWriter
	builder        *array.RecordBuilder
	recordsWritten int64
	closed         bool
}

func newParquetWriter(cw *countingWriter, cfg *WriterConfig) (*parquetWriter, error) {
	codec, err := parquetCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	arrowSchema := cfg.Schema.ToArrow()
	mem := memory.NewGoAllocator()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(mem),
	)

	fw, err := pqarrow.NewFileWriter(arrowSchema, cw, props, arrowProps)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to create parquet writer")
	}

	return &parquetWriter{
		cw:          cw,
		schema:      cfg.Schema,
		arrowSchema: arrowSchema,
		fileWriter:  fw,
		builder:     array.NewRecordBuilder(mem, arrowSchema),
	}, nil
}

func (pw *parquetWriter) WriteRecords(records []*record.Record) error {
	if len(records) == 0 {
		return nil
	}

	for _, rec := range records {
		for i, field := range pw.arrowSchema.Fields() {
			if err := appendValue(pw.builder.Field(i), rec.Data[field.Name]); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFormat, "failed to append value for field "+field.Name)
			}
		}
	}

	batch := pw.builder.NewRecord()
	defer batch.Release()

	if err := pw.fileWriter.Write(batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFormat, "failed to write parquet row group")
	}

	pw.recordsWritten += int64(len(records))
	return nil
}

func (pw *parquetWriter) Close() error {
	if pw.closed {
		return nil
	}
	pw.closed = true
	pw.builder.Release()
	if err := pw.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFormat, "failed to close parquet writer")
	}
	return nil
}

func (pw *parquetWriter) Format() Format { return Parquet }
func (pw *parquetWriter) RecordsWritten() int64 { return pw.recordsWritten }
func (pw *parquetWriter) BytesWritten() int64 { return pw.cw.n }

func parquetCodec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4Raw, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	default:
		return compress.Codecs.Uncompressed,
			errors.Newf(errors.ErrorTypeConfig, "unsupported parquet compression: %q", name)
	}
}

// parquetReader implements Reader for Parquet. Parquet needs a seekable
// source, so the whole file is buffered; shard files are batch-sized by
// construction.
type parquetReader struct {
	fileReader  *file.Reader
	arrowReader *pqarrow.FileReader
	schema      *schema.Schema
}

func newParquetReader(r io.Reader) (*parquetReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read parquet data")
	}

	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to open parquet file")
	}

	mem := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to create arrow reader")
	}

	arrowSchema, err := arrowReader.Schema()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to read parquet schema")
	}

	return &parquetReader{
		fileReader:  fr,
		arrowReader: arrowReader,
		schema:      schema.FromArrow("parquet", arrowSchema),
	}, nil
}

func (pr *parquetReader) ReadRecords() ([]*record.Record, error) {
	rr, err := pr.arrowReader.GetRecordReader(context.Background(), nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to create record reader")
	}
	defer rr.Release()

	records := make([]*record.Record, 0, int(pr.fileReader.NumRows()))
	for rr.Next() {
		batch := rr.Record()
		records = appendBatchRows(records, batch)
	}
	if err := rr.Err(); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to read parquet rows")
	}

	return records, nil
}

func (pr *parquetReader) Schema() (*schema.Schema, error) { return pr.schema, nil }
func (pr *parquetReader) Format() Format { return Parquet }

func (pr *parquetReader) Close() error {
	return pr.fileReader.Close()
}

// appendBatchRows converts every row of an arrow record batch.
func appendBatchRows(records []*record.Record, batch arrow.Record) []*record.Record {
	for row := 0; row < int(batch.NumRows()); row++ {
		data := make(map[string]interface{}, int(batch.NumCols()))
		for col := 0; col < int(batch.NumCols()); col++ {
			name := batch.Schema().Field(col).Name
			data[name] = columnValue(batch.Column(col), row)
		}
		records = append(records, record.New(data, len(records)))
	}
	return records
}
