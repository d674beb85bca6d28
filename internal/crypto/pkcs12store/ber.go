package pkcs12store

import (
	"bytes"
	"errors"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// go-pkcs12 only reads DER. Containers written by older Java keytool and
// Windows builds are BER, with indefinite lengths and constructed OCTET
// STRINGs, so they are rewritten to DER before a second decode attempt.

const (
	tagConstructed         = 0x20
	tagConstructedOctets   = 0x24
	tagContextZero         = 0xa0
	tagContextZeroImplicit = 0x80
)

// normalizeBER rewrites a single BER element as DER.
func normalizeBER(input []byte) ([]byte, error) {
	der, rest, err := berElement(input)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.New("trailing data after BER conversion")
	}
	return der, nil
}

// berElement converts the element at the head of in and returns its DER form
// together with the unread input.
func berElement(in []byte) ([]byte, []byte, error) {
	tag, length, indefinite, in, err := berHeader(in)
	if err != nil {
		return nil, nil, err
	}

	if tag&tagConstructed == 0 {
		if indefinite {
			return nil, nil, errors.New("invalid BER: primitive with indefinite length")
		}
		if len(in) < length {
			return nil, nil, errors.New("invalid BER: content truncated")
		}
		return derElement(tag, in[:length]), in[length:], nil
	}

	var children [][]byte
	if indefinite {
		for {
			if len(in) < 2 {
				return nil, nil, errors.New("invalid BER: missing EOC for indefinite length")
			}
			if in[0] == 0 && in[1] == 0 {
				in = in[2:]
				break
			}
			var child []byte
			if child, in, err = berElement(in); err != nil {
				return nil, nil, err
			}
			children = append(children, child)
		}
	} else {
		if len(in) < length {
			return nil, nil, errors.New("invalid BER: content truncated")
		}
		body := in[:length]
		in = in[length:]
		for len(body) > 0 {
			var child []byte
			if child, body, err = berElement(body); err != nil {
				return nil, nil, err
			}
			children = append(children, child)
		}
	}

	der, err := joinConstructed(tag, children)
	if err != nil {
		return nil, nil, err
	}
	return der, in, nil
}

// berHeader reads identifier and length octets. Only low tag numbers occur
// in PKCS#12.
func berHeader(in []byte) (tag byte, length int, indefinite bool, rest []byte, err error) {
	if len(in) < 2 {
		return 0, 0, false, nil, errors.New("invalid BER: truncated header")
	}
	tag = in[0]
	if tag&0x1f == 0x1f {
		return 0, 0, false, nil, errors.New("invalid BER: high tag numbers are not supported")
	}
	first := in[1]
	in = in[2:]

	switch {
	case first == 0x80:
		return tag, 0, true, in, nil
	case first < 0x80:
		return tag, int(first), false, in, nil
	}

	n := int(first & 0x7f)
	if n > 4 {
		return 0, 0, false, nil, errors.New("invalid BER: length too large")
	}
	if len(in) < n {
		return 0, 0, false, nil, errors.New("invalid BER: truncated long-form length")
	}
	for _, b := range in[:n] {
		length = length<<8 | int(b)
	}
	return tag, length, false, in[n:], nil
}

// joinConstructed assembles normalized children. DER requires the primitive
// form for OCTET STRINGs and for the segmented [0] content of EncryptedData.
func joinConstructed(tag byte, children [][]byte) ([]byte, error) {
	switch {
	case tag == tagConstructedOctets:
		octets, err := octetChunks(children)
		if err != nil {
			return nil, err
		}
		return derElement(byte(cbasn1.OCTET_STRING), nestedDER(octets)), nil
	case tag == tagContextZero && len(children) > 1:
		if octets, err := octetChunks(children); err == nil {
			return derElement(tagContextZeroImplicit, octets), nil
		}
	}
	return derElement(tag, bytes.Join(children, nil)), nil
}

// octetChunks concatenates the contents of children that must all be DER
// OCTET STRINGs.
func octetChunks(children [][]byte) ([]byte, error) {
	var out []byte
	for _, c := range children {
		tag, content, err := decodeSingleDER(c)
		if err != nil {
			return nil, err
		}
		if tag != byte(cbasn1.OCTET_STRING) {
			return nil, errors.New("invalid BER: constructed OCTET STRING holds a non-OCTET STRING")
		}
		out = append(out, content...)
	}
	return out, nil
}

// nestedDER normalizes an OCTET STRING payload that is itself a SEQUENCE,
// as the AuthSafe and SafeContents payloads are.
func nestedDER(content []byte) []byte {
	if len(content) == 0 || content[0] != byte(cbasn1.SEQUENCE) {
		return content
	}
	if der, err := normalizeBER(content); err == nil {
		return der
	}
	return content
}

func derElement(tag byte, content []byte) []byte {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.Tag(tag), func(child *cryptobyte.Builder) {
		child.AddBytes(content)
	})
	return b.BytesOrPanic()
}

// decodeSingleDER splits one DER element into its identifier octet and
// content, rejecting trailing bytes.
func decodeSingleDER(der []byte) (byte, []byte, error) {
	input := cryptobyte.String(der)
	var content cryptobyte.String
	var tag cbasn1.Tag
	if !input.ReadAnyASN1(&content, &tag) {
		return 0, nil, errors.New("invalid DER: malformed element")
	}
	if !input.Empty() {
		return 0, nil, errors.New("invalid DER: trailing data")
	}
	return byte(tag), content, nil
}
