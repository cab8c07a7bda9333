package columnar

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/shardline/jsonshard/pkg/errors"
	"github.com/shardline/jsonshard/pkg/jsonio"
)

// appendValue coerces a decoded JSON value into the builder's column type.
// Values that cannot be represented become nulls rather than failing the
// shard; schema inference already widened the column to fit the batch, so
// this only happens for pathological inputs.
func appendValue(b array.Builder, value interface{}) error {
	if value == nil {
		b.AppendNull()
		return nil
	}

	switch bb := b.(type) {
	case *array.BooleanBuilder:
		if v, ok := value.(bool); ok {
			bb.Append(v)
		} else {
			bb.AppendNull()
		}

	case *array.Int64Builder:
		switch v := value.(type) {
		case json.Number:
			if n, err := v.Int64(); err == nil {
				bb.Append(n)
			} else {
				bb.AppendNull()
			}
		case int:
			bb.Append(int64(v))
		case int32:
			bb.Append(int64(v))
		case int64:
			bb.Append(v)
		default:
			bb.AppendNull()
		}

	case *array.Float64Builder:
		switch v := value.(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				bb.Append(f)
			} else {
				bb.AppendNull()
			}
		case float32:
			bb.Append(float64(v))
		case float64:
			bb.Append(v)
		case int:
			bb.Append(float64(v))
		case int64:
			bb.Append(float64(v))
		default:
			bb.AppendNull()
		}

	case *array.StringBuilder:
		bb.Append(stringValue(value))

	default:
		return errors.Newf(errors.ErrorTypeFormat, "unsupported builder type: %T", b)
	}

	return nil
}

// stringValue renders any decoded JSON value as a string cell. Nested
// objects and arrays are re-encoded as compact JSON.
func stringValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case map[string]interface{}, []interface{}:
		if b, err := jsonio.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// columnValue extracts one cell from an arrow column, or nil for null.
func columnValue(col arrow.Array, row int) interface{} {
	if col.IsNull(row) {
		return nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(row)
	case *array.Int64:
		return c.Value(row)
	case *array.Float64:
		return c.Value(row)
	case *array.String:
		return c.Value(row)
	case *array.Binary:
		return c.Value(row)
	default:
		return nil
	}
}
