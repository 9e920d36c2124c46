package ir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical byte form of a Value, used for
// content-addressed fact identity and index join keys. CRITICAL: this is the
// ONLY serialization that may feed hashing - two structurally equal values
// must always produce identical bytes.
//
// The encoding is RFC 8785-flavored JSON with a variant tag so that distinct
// variants can never collide (e.g. Str("1") vs Int(1), Tuple vs List):
//
//	Unit       ["u"]
//	Bool       ["b",true]
//	Int        ["i",42]
//	Str        ["s","x"]      (NFC normalized, no HTML escaping)
//	Tuple      ["t",[...]]
//	List       ["l",[...]]
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalCanonicalRow canonically encodes a row of values as a JSON array of
// canonical value encodings.
func MarshalCanonicalRow(row []Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range row {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(&buf, v); err != nil {
			return nil, fmt.Errorf("row[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case Unit:
		buf.WriteString(`["u"]`)
		return nil
	case Bool:
		if val {
			buf.WriteString(`["b",true]`)
		} else {
			buf.WriteString(`["b",false]`)
		}
		return nil
	case Int:
		fmt.Fprintf(buf, `["i",%d]`, int64(val))
		return nil
	case Str:
		s, err := marshalCanonicalString(string(val))
		if err != nil {
			return err
		}
		buf.WriteString(`["s",`)
		buf.Write(s)
		buf.WriteByte(']')
		return nil
	case Tuple:
		return marshalCanonicalSeq(buf, "t", val)
	case List:
		return marshalCanonicalSeq(buf, "l", val)
	case nil:
		return fmt.Errorf("nil Value is forbidden in canonical encoding")
	default:
		return fmt.Errorf("unsupported Value variant for canonical encoding: %T", v)
	}
}

func marshalCanonicalSeq(buf *bytes.Buffer, tag string, seq []Value) error {
	fmt.Fprintf(buf, `["%s",[`, tag)
	for i, elem := range seq {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, elem); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	buf.WriteString("]]")
	return nil
}

// marshalCanonicalString produces a canonical JSON string with NFC
// normalization. RFC 8785 compliance:
//   - No HTML escaping (<, >, & are NOT escaped)
//   - U+2028 and U+2029 are NOT escaped
//   - Only control characters (U+0000-U+001F), backslash, and quote are escaped
func marshalCanonicalString(s string) ([]byte, error) {
	// NFC normalize at the serialization boundary
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // <, >, & must NOT be escaped
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// Go's json.Encoder escapes U+2028/U+2029 for JavaScript compatibility,
	// which violates RFC 8785. Unescape them, but leave \\u2028 (a literal
	// backslash followed by "u2028" text) alone.
	return unescapeLineSeparators(result), nil
}

// unescapeLineSeparators converts \\u2028 and \\u2029 escape sequences back to
// literal characters. A sequence is a real escape only when preceded by an
// even number of backslashes.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 6
				continue
			}
		}
		out = append(out, data[i])
		i++
	}
	return out
}
