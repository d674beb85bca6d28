// Package canon writes the deterministic JSON used on the wire: sorted map
// keys, struct fields in declaration order, no insignificant whitespace and
// no HTML escaping.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Encode returns the canonical JSON encoding of v without a trailing newline.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeTo(&buf, v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// WriteLine writes the canonical encoding of v followed by a single newline,
// as one JSON-lines record.
func WriteLine(w io.Writer, v any) error {
	var buf bytes.Buffer
	if err := encodeTo(&buf, v); err != nil {
		return err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("canonical write failed: %w", err)
	}
	return nil
}

func encodeTo(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("canonical encoding failed: %w", err)
	}
	return nil
}
