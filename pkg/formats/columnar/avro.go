package columnar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/linkedin/goavro/v2"

	"github.com/shardline/jsonshard/pkg/errors"
	"github.com/shardline/jsonshard/pkg/jsonio"
	"github.com/shardline/jsonshard/pkg/record"
	"github.com/shardline/jsonshard/pkg/schema"
)

// avroWriter implements Writer for Avro object container files. fieldNames
// holds the sanitized Avro name for each schema field; native rows must be
// keyed by those, not the original JSON field names.
type avroWriter struct {
	cw             *countingWriter
	schema         *schema.Schema
	fieldNames     []string
	ocfWriter      *goavro.OCFWriter
	recordsWritten int64
}

func newAvroWriter(cw *countingWriter, cfg *WriterConfig) (*avroWriter, error) {
	compressionName, err := avroCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	avroSchema, fieldNames, err := toAvroSchema(cfg.Schema)
	if err != nil {
		return nil, err
	}

	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to create avro codec")
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               cw,
		Codec:           codec,
		CompressionName: compressionName,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to create avro writer")
	}

	return &avroWriter{
		cw:         cw,
		schema:     cfg.Schema,
		fieldNames: fieldNames,
		ocfWriter:  ocfWriter,
	}, nil
}

func (aw *avroWriter) WriteRecords(records []*record.Record) error {
	if len(records) == 0 {
		return nil
	}

	natives := make([]interface{}, 0, len(records))
	for _, rec := range records {
		native := make(map[string]interface{}, len(aw.schema.Fields))
		for i, field := range aw.schema.Fields {
			native[aw.fieldNames[i]] = avroNative(field, rec.Data[field.Name])
		}
		natives = append(natives, native)
	}

	if err := aw.ocfWriter.Append(natives); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFormat, "failed to write avro block")
	}

	aw.recordsWritten += int64(len(records))
	return nil
}

// Close is a no-op for avro; the OCF writer flushes a block per Append.
func (aw *avroWriter) Close() error {
	return nil
}

func (aw *avroWriter) Format() Format { return Avro }
func (aw *avroWriter) RecordsWritten() int64 { return aw.recordsWritten }
func (aw *avroWriter) BytesWritten() int64 { return aw.cw.n }

func avroCodec(name string) (string, error) {
	switch strings.ToLower(name) {
	case "", "none", "null":
		return goavro.CompressionNullLabel, nil
	case "deflate":
		return goavro.CompressionDeflateLabel, nil
	case "snappy":
		return goavro.CompressionSnappyLabel, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported avro compression: %q", name)
	}
}

// toAvroSchema renders the schema as Avro record schema JSON and returns the
// sanitized Avro name of each field, in field order. Nullable fields become
// a ["null", T] union with a null default. Sanitization can map distinct
// input names to the same Avro name; later duplicates get a numeric suffix
// so no column is silently merged.
func toAvroSchema(s *schema.Schema) (string, []string, error) {
	fields := make([]map[string]interface{}, 0, len(s.Fields))
	names := make([]string, 0, len(s.Fields))
	used := make(map[string]bool, len(s.Fields))

	for _, field := range s.Fields {
		avroType := avroTypeName(field.Type)

		base := avroName(field.Name)
		name := base
		for i := 2; used[name]; i++ {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		used[name] = true
		names = append(names, name)

		avroField := map[string]interface{}{
			"name": name,
			"type": avroType,
		}
		if field.Nullable {
			avroField["type"] = []interface{}{"null", avroType}
			avroField["default"] = nil
		}
		fields = append(fields, avroField)
	}

	schemaJSON, err := jsonio.Marshal(map[string]interface{}{
		"type":   "record",
		"name":   avroName(s.Name),
		"fields": fields,
	})
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to encode avro schema")
	}
	return string(schemaJSON), names, nil
}

func avroTypeName(t schema.FieldType) string {
	switch t {
	case schema.FieldTypeInt:
		return "long"
	case schema.FieldTypeFloat:
		return "double"
	case schema.FieldTypeBool:
		return "boolean"
	default:
		return "string"
	}
}

// avroName rewrites an arbitrary field name into a valid Avro name:
// [A-Za-z_][A-Za-z0-9_]*.
func avroName(name string) string {
	if name == "" {
		return "field"
	}
	var b strings.Builder
	for _, r := range name {
		valid := r == '_' || unicode.IsLetter(r) && r < 128 || r >= '0' && r <= '9'
		if !valid {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// avroNative coerces a decoded JSON value into the field's Avro native
// representation, wrapping nullable values in their union.
func avroNative(field schema.Field, value interface{}) interface{} {
	if value == nil {
		return nil
	}

	var native interface{}
	switch field.Type {
	case schema.FieldTypeInt:
		if n, ok := toInt64(value); ok {
			native = n
		}
	case schema.FieldTypeFloat:
		if f, ok := toFloat64(value); ok {
			native = f
		}
	case schema.FieldTypeBool:
		if b, ok := value.(bool); ok {
			native = b
		}
	default:
		native = stringValue(value)
	}

	if native == nil {
		return nil
	}
	if field.Nullable {
		return goavro.Union(avroTypeName(field.Type), native)
	}
	return native
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// avroReader implements Reader for Avro object container files.
type avroReader struct {
	ocfReader *goavro.OCFReader
	schema    *schema.Schema
}

func newAvroReader(r io.Reader) (*avroReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read avro data")
	}

	ocfReader, err := goavro.NewOCFReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to open avro file")
	}

	s, err := fromAvroSchema(ocfReader.Codec().Schema())
	if err != nil {
		return nil, err
	}

	return &avroReader{ocfReader: ocfReader, schema: s}, nil
}

func (ar *avroReader) ReadRecords() ([]*record.Record, error) {
	records := make([]*record.Record, 0)
	for ar.ocfReader.Scan() {
		datum, err := ar.ocfReader.Read()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to read avro datum")
		}
		m, ok := datum.(map[string]interface{})
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeFormat, "unexpected avro datum type %T", datum)
		}
		data := make(map[string]interface{}, len(m))
		for k, v := range m {
			data[k] = unwrapAvroUnion(v)
		}
		records = append(records, record.New(data, len(records)))
	}
	if err := ar.ocfReader.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to scan avro file")
	}
	return records, nil
}

func (ar *avroReader) Schema() (*schema.Schema, error) { return ar.schema, nil }
func (ar *avroReader) Format() Format { return Avro }

// Close is a no-op; the OCF reader holds no resources of its own.
func (ar *avroReader) Close() error {
	return nil
}

// unwrapAvroUnion flattens goavro's single-entry union maps back to values.
func unwrapAvroUnion(value interface{}) interface{} {
	m, ok := value.(map[string]interface{})
	if !ok || len(m) != 1 {
		return value
	}
	for _, v := range m {
		return v
	}
	return nil
}

// fromAvroSchema parses Avro record schema JSON into the logical schema.
func fromAvroSchema(avroSchema string) (*schema.Schema, error) {
	var parsed struct {
		Name   string `json:"name"`
		Fields []struct {
			Name string      `json:"name"`
			Type interface{} `json:"type"`
		} `json:"fields"`
	}
	if err := jsonio.Unmarshal([]byte(avroSchema), &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFormat, "failed to parse avro schema")
	}

	fields := make([]schema.Field, 0, len(parsed.Fields))
	for _, f := range parsed.Fields {
		typeName, nullable := avroFieldType(f.Type)
		fields = append(fields, schema.Field{
			Name:     f.Name,
			Type:     typeName,
			Nullable: nullable,
		})
	}
	return &schema.Schema{Name: parsed.Name, Fields: fields}, nil
}

func avroFieldType(t interface{}) (schema.FieldType, bool) {
	switch v := t.(type) {
	case string:
		return avroTypeToField(v), false
	case []interface{}:
		for _, member := range v {
			if name, ok := member.(string); ok && name != "null" {
				return avroTypeToField(name), true
			}
		}
	}
	return schema.FieldTypeString, true
}

func avroTypeToField(name string) schema.FieldType {
	switch name {
	case "int", "long":
		return schema.FieldTypeInt
	case "float", "double":
		return schema.FieldTypeFloat
	case "boolean":
		return schema.FieldTypeBool
	default:
		return schema.FieldTypeString
	}
}
