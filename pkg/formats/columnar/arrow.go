package columnar

import (
	"bytes"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/shardline/jsonshard/pkg/errors"
	"github.com/shardline/jsonshard/pkg/record"
	"github.com/shardline/jsonshard/pkg/schema"
)

// arrowWriter implements Writer for the Arrow IPC file format.
type arrowWriter struct {
	cw             *countingWriter
	arrowSchema    *arrow.Schema
	fileWriter     *ipc.FileWriter
	builder        *array.RecordBuilder
	recordsWritten int64
	closed         bool
}

func newArrowWriter(cw *countingWriter, cfg *WriterConfig) (*arrowWriter, error) {
	arrowSchema := cfg.Schema.ToArrow()
	mem := memory.NewGoAllocator()

	opts := []ipc.Option{ipc.WithSchema(arrowSchema), ipc.WithAllocator(mem)}
	switch strings.ToLower(cfg.Compression) {
	case "", "none":
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unsupported arrow compression: %q", cfg.Compression)
	}

	fw, err := ipc.NewFileWriter(cw, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to create arrow writer")
	}

	return &arrowWriter{
		cw:          cw,
		arrowSchema: arrowSchema,
		fileWriter:  fw,
		builder:     array.NewRecordBuilder(mem, arrowSchema),
	}, nil
}

func (aw *arrowWriter) WriteRecords(records []*record.Record) error {
	if len(records) == 0 {
		return nil
	}

	for _, rec := range records {
		for i, field := range aw.arrowSchema.Fields() {
			if err := appendValue(aw.builder.Field(i), rec.Data[field.Name]); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFormat, "failed to append value for field "+field.Name)
			}
		}
	}

	batch := aw.builder.NewRecord()
	defer batch.Release()

	if err := aw.fileWriter.Write(batch); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFormat, "failed to write arrow record batch")
	}

	aw.recordsWritten += int64(len(records))
	return nil
}

func (aw *arrowWriter) Close() error {
	if aw.closed {
		return nil
	}
	aw.closed = true
	aw.builder.Release()
	if err := aw.fileWriter.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFormat, "failed to close arrow writer")
	}
	return nil
}

func (aw *arrowWriter) Format() Format { return Arrow }
func (aw *arrowWriter) RecordsWritten() int64 { return aw.recordsWritten }
func (aw *arrowWriter) BytesWritten() int64 { return aw.cw.n }

// arrowReader implements Reader for the Arrow IPC file format.
type arrowReader struct {
	fileReader *ipc.FileReader
	schema     *schema.Schema
}

func newArrowReader(r io.Reader) (*arrowReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read arrow data")
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to open arrow file")
	}

	return &arrowReader{
		fileReader: fr,
		schema:     schema.FromArrow("arrow", fr.Schema()),
	}, nil
}

func (ar *arrowReader) ReadRecords() ([]*record.Record, error) {
	records := make([]*record.Record, 0)
	for i := 0; i < ar.fileReader.NumRecords(); i++ {
		batch, err := ar.fileReader.Record(i)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to read arrow record batch")
		}
		records = appendBatchRows(records, batch)
	}
	return records, nil
}

func (ar *arrowReader) Schema() (*schema.Schema, error) { return ar.schema, nil }
func (ar *arrowReader) Format() Format { return Arrow }

func (ar *arrowReader) Close() error {
	return ar.fileReader.Close()
}
