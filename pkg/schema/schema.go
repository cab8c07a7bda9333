// Package schema infers a columnar schema from one batch of records.
//
// Schemas are batch-local: each shard is described only by the fields seen
// in its own batch, so heterogeneous inputs produce shards with different
// column sets. Fields keep first-seen order for stable column layouts.
package schema

import (
	"encoding/json"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/shardline/jsonshard/pkg/record"
)

// FieldType is the inferred logical type of a column.
type FieldType string

const (
	// FieldTypeInt is a 64-bit signed integer column
	FieldTypeInt FieldType = "int"
	// FieldTypeFloat is a 64-bit floating point column
	FieldTypeFloat FieldType = "float"
	// FieldTypeBool is a boolean column
	FieldTypeBool FieldType = "bool"
	// FieldTypeString is a UTF-8 string column
	FieldTypeString FieldType = "string"
	// FieldTypeJSON is a nested object or array column, encoded as a JSON
	// string cell
	FieldTypeJSON FieldType = "json"
)

// Field describes one inferred column.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// Schema describes the columns of one shard.
type Schema struct {
	Name   string
	Fields []Field
}

// Infer builds a schema from the union of fields observed in the batch.
// Mixed int and float values widen to float; any other mixture widens to
// string. A field absent from some record, or carrying an explicit null,
// becomes nullable.
//
// Column order is deterministic: fields appear in the order of the record
// that first carried them, alphabetical within a record (the original key
// order is lost when JSON decodes into a map).
func Infer(name string, records []*record.Record) *Schema {
	type fieldState struct {
		typ      FieldType
		seen     int
		nulls    int
		hasValue bool
	}

	order := make([]string, 0, 16)
	states := make(map[string]*fieldState, 16)

	for _, rec := range records {
		var newKeys []string
		for key, value := range rec.Data {
			st, ok := states[key]
			if !ok {
				st = &fieldState{}
				states[key] = st
				newKeys = append(newKeys, key)
			}
			st.seen++
			if value == nil {
				st.nulls++
				continue
			}
			vt := valueType(value)
			if !st.hasValue {
				st.typ = vt
				st.hasValue = true
			} else {
				st.typ = widen(st.typ, vt)
			}
		}
		sort.Strings(newKeys)
		order = append(order, newKeys...)
	}

	fields := make([]Field, 0, len(order))
	for _, fieldName := range order {
		st := states[fieldName]
		typ := st.typ
		if !st.hasValue {
			// Only nulls observed; string is the widest representation
			typ = FieldTypeString
		}
		fields = append(fields, Field{
			Name:     fieldName,
			Type:     typ,
			Nullable: st.nulls > 0 || st.seen < len(records),
		})
	}

	return &Schema{Name: name, Fields: fields}
}

// valueType classifies a single decoded JSON value.
func valueType(value interface{}) FieldType {
	switch v := value.(type) {
	case bool:
		return FieldTypeBool
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return FieldTypeInt
		}
		return FieldTypeFloat
	case string:
		return FieldTypeString
	case map[string]interface{}, []interface{}:
		return FieldTypeJSON
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return FieldTypeInt
	case float32, float64:
		return FieldTypeFloat
	default:
		return FieldTypeString
	}
}

// widen merges two observed types into the narrowest common column type.
func widen(a, b FieldType) FieldType {
	if a == b {
		return a
	}
	if (a == FieldTypeInt && b == FieldTypeFloat) || (a == FieldTypeFloat && b == FieldTypeInt) {
		return FieldTypeFloat
	}
	return FieldTypeString
}

// ToArrow converts the schema to an arrow schema.
func (s *Schema) ToArrow() *arrow.Schema {
	fields := make([]arrow.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		fields = append(fields, arrow.Field{
			Name:     f.Name,
			Type:     arrowType(f.Type),
			Nullable: f.Nullable,
		})
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t FieldType) arrow.DataType {
	switch t {
	case FieldTypeInt:
		return arrow.PrimitiveTypes.Int64
	case FieldTypeFloat:
		return arrow.PrimitiveTypes.Float64
	case FieldTypeBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		// string and json columns are both UTF-8 on disk
		return arrow.BinaryTypes.String
	}
}

// FromArrow converts an arrow schema back to the logical schema. JSON
// columns are indistinguishable from strings at this level.
func FromArrow(name string, as *arrow.Schema) *Schema {
	fields := make([]Field, 0, as.NumFields())
	for i := 0; i < as.NumFields(); i++ {
		f := as.Field(i)
		fields = append(fields, Field{
			Name:     f.Name,
			Type:     fromArrowType(f.Type),
			Nullable: f.Nullable,
		})
	}
	return &Schema{Name: name, Fields: fields}
}

func fromArrowType(t arrow.DataType) FieldType {
	switch t.ID() {
	case arrow.BOOL:
		return FieldTypeBool
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return FieldTypeInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return FieldTypeFloat
	default:
		return FieldTypeString
	}
}
