// Package canonical produces the deterministic byte encoding of evidence
// payloads that signatures are computed over. The encoding is a pure function
// of the payload's value: lexicographic key order at every nesting level, no
// extraneous whitespace, and no dependence on platform locale or float
// formatting variance.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"

	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

// Marshal serializes v into its canonical byte form. Two values that are
// deeply equal always produce identical bytes. Values that cannot be
// represented (non-finite numbers, cyclic structures, unsupported types)
// fail with a Serialization error rather than being coerced.
func Marshal(v any) ([]byte, error) {
	norm, err := normalize(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, norm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SumSHA256 canonicalizes v and returns the hex SHA-256 of the canonical
// bytes alongside the bytes themselves.
func SumSHA256(v any) (string, []byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), b, nil
}

// normalize round-trips v through JSON so that structs, typed maps, and
// numeric types collapse to the plain value forms the writer understands.
// encoding/json rejects cycles and non-finite floats here. Numbers are
// decoded as json.Number so integers beyond float64's 2^53 precision keep
// their digits instead of being coerced.
func normalize(v any) (any, error) {
	if raw, ok := v.(json.RawMessage); ok {
		out, err := decodeNumeric(raw)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "payload is not valid JSON")
		}
		return out, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "payload cannot be represented")
	}

	out, err := decodeNumeric(buf.Bytes())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeSerialization, "payload cannot be decoded")
	}
	return out, nil
}

func decodeNumeric(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		// Already a validated JSON number token; emitting the source digits
		// preserves integers that float64 cannot represent.
		buf.WriteString(val.String())
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return apperrors.Serialization("non-finite number in payload")
		}
		return writeScalar(buf, val)
	case string:
		return writeScalar(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeScalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return apperrors.Serialization("unsupported value in payload")
	}
	return nil
}

// writeScalar emits a JSON scalar without HTML escaping, matching the
// separator-free convention of the canonical form.
func writeScalar(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "encode scalar")
	}
	// Encode appends a trailing newline.
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
