package pkcs12store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBER(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{
			name: "der unchanged",
			in:   []byte{0x30, 0x03, 0x02, 0x01, 0x05},
			want: []byte{0x30, 0x03, 0x02, 0x01, 0x05},
		},
		{
			name: "indefinite sequence",
			in:   []byte{0x30, 0x80, 0x02, 0x01, 0x05, 0x00, 0x00},
			want: []byte{0x30, 0x03, 0x02, 0x01, 0x05},
		},
		{
			name: "constructed octet string",
			in:   []byte{0x24, 0x80, 0x04, 0x02, 0xaa, 0xbb, 0x04, 0x01, 0xcc, 0x00, 0x00},
			want: []byte{0x04, 0x03, 0xaa, 0xbb, 0xcc},
		},
		{
			name: "definite constructed octet string",
			in:   []byte{0x24, 0x07, 0x04, 0x02, 0xaa, 0xbb, 0x04, 0x01, 0xcc},
			want: []byte{0x04, 0x03, 0xaa, 0xbb, 0xcc},
		},
		{
			name: "non-minimal length",
			in:   []byte{0x04, 0x81, 0x01, 0xaa},
			want: []byte{0x04, 0x01, 0xaa},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeBER(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeBERRejectsMalformed(t *testing.T) {
	for name, in := range map[string][]byte{
		"missing eoc":          {0x30, 0x80, 0x02, 0x01, 0x05},
		"primitive indefinite": {0x04, 0x80, 0xaa, 0x00, 0x00},
		"truncated":            {0x04, 0x05, 0xaa},
		"trailing":             {0x04, 0x01, 0xaa, 0xff},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := normalizeBER(in)
			assert.Error(t, err)
		})
	}
}
