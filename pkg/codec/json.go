package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	kverrors "github.com/charlesng35/typedkv/pkg/errors"
)

// maxSafeInteger is the largest integer magnitude that survives a round trip
// through an IEEE-754 double, the number representation used by most JSON
// consumers.
const maxSafeInteger = int64(1) << 53

type jsonCodec struct{}

func (jsonCodec) Type() Type         { return TypeJSON }
func (jsonCodec) Affinity() Affinity { return AffinityText }

// Encode marshals the value to a JSON string. Integers whose magnitude
// exceeds 2^53 are rewritten as decimal strings first, recursively through
// objects and arrays; such values read back as strings.
func (jsonCodec) Encode(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("value is not JSON-encodable: %v", err))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var shape any
	if err := dec.Decode(&shape); err != nil {
		return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("inspect JSON value: %v", err))
	}

	out, err := json.Marshal(quoteUnsafeIntegers(shape))
	if err != nil {
		return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("encode JSON value: %v", err))
	}
	return string(out), nil
}

// Decode unmarshals the stored document into the standard dynamic shapes:
// map[string]any, []any, float64, string, bool and nil.
func (jsonCodec) Decode(wire any) (any, error) {
	if wire == nil {
		return nil, nil
	}

	text, ok := wireString(wire)
	if !ok {
		return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("unexpected wire type %T for a json value", wire))
	}

	var out any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("stored value is not valid JSON: %v", err))
	}
	return out, nil
}

func quoteUnsafeIntegers(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for key, item := range v {
			v[key] = quoteUnsafeIntegers(item)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = quoteUnsafeIntegers(item)
		}
		return v
	case json.Number:
		literal := v.String()
		if strings.ContainsAny(literal, ".eE") {
			return v
		}
		n, err := v.Int64()
		if err != nil {
			// An integer literal that does not even fit int64 is
			// certainly past the safe range.
			return literal
		}
		if n > maxSafeInteger || n < -maxSafeInteger {
			return literal
		}
		return v
	default:
		return value
	}
}
