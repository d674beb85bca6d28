package canon

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	input := map[string]any{
		"b": 1,
		"a": "hello",
		"c": []int{2, 1, 3},
		"d": map[string]any{
			"y": "foo",
			"x": "bar",
		},
	}

	encoded, err := Encode(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":"hello","b":1,"c":[2,1,3],"d":{"x":"bar","y":"foo"}}`, string(encoded))
}

func TestEncodeNoHTMLEscape(t *testing.T) {
	encoded, err := Encode(map[string]string{"data": "<CALL:5>K1ABC&"})
	require.NoError(t, err)
	assert.Equal(t, `{"data":"<CALL:5>K1ABC&"}`, string(encoded))
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLine(&buf, map[string]int{"b": 2, "a": 1}))
	require.NoError(t, WriteLine(&buf, []int{1}))
	assert.Equal(t, "{\"a\":1,\"b\":2}\n[1]\n", buf.String())
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(make(chan int))
	assert.Error(t, err)
}
