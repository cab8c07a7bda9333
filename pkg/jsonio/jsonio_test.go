package jsonio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalLineUsesNumber(t *testing.T) {
	var data map[string]interface{}
	require.NoError(t, UnmarshalLine([]byte(`{"i":7,"f":7.5}`), &data))

	i, ok := data["i"].(json.Number)
	require.True(t, ok, "integers should decode as json.Number, got %T", data["i"])
	assert.Equal(t, json.Number("7"), i)

	f, ok := data["f"].(json.Number)
	require.True(t, ok)
	assert.Equal(t, json.Number("7.5"), f)
}

func TestUnmarshalLineRejectsTrailingData(t *testing.T) {
	var data map[string]interface{}
	err := UnmarshalLine([]byte(`{"a":1} {"b":2}`), &data)
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestUnmarshalLineNull(t *testing.T) {
	var data map[string]interface{}
	require.NoError(t, UnmarshalLine([]byte(`null`), &data))
	assert.Nil(t, data)
}

func TestUnmarshalLineInvalid(t *testing.T) {
	var data map[string]interface{}
	assert.Error(t, UnmarshalLine([]byte(`{"a":`), &data))
	assert.Error(t, UnmarshalLine([]byte(``), &data))
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("payload")
	PutBuffer(buf)

	buf = GetBuffer()
	assert.Equal(t, 0, buf.Len(), "pooled buffers come back reset")
	PutBuffer(buf)
}
