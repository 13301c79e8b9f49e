package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	kverrors "github.com/charlesng35/typedkv/pkg/errors"
)

type textCodec struct{}

func (textCodec) Type() Type         { return TypeText }
func (textCodec) Affinity() Affinity { return AffinityText }

// Encode passes strings through unchanged and stringifies everything else.
func (textCodec) Encode(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return nil, kverrors.NewUnsupportedValue("nil is not a valid text value")
	default:
		return fmt.Sprint(v), nil
	}
}

func (textCodec) Decode(wire any) (any, error) {
	if text, ok := wireString(wire); ok {
		return text, nil
	}
	return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("unexpected wire type %T for a text value", wire))
}

type binaryCodec struct{}

func (binaryCodec) Type() Type         { return TypeBinary }
func (binaryCodec) Affinity() Affinity { return AffinityBlob }

func (binaryCodec) Encode(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("cannot store %T as binary", value))
	}
}

func (binaryCodec) Decode(wire any) (any, error) {
	switch w := wire.(type) {
	case []byte:
		return w, nil
	case string:
		return []byte(w), nil
	default:
		return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("unexpected wire type %T for a binary value", wire))
	}
}

type integerCodec struct{}

func (integerCodec) Type() Type         { return TypeInteger }
func (integerCodec) Affinity() Affinity { return AffinityInteger }

func (integerCodec) Encode(value any) (any, error) {
	return toInt64(value)
}

// Decode coerces again on the way out; drivers may hand integer columns back
// as strings or wider numeric kinds.
func (integerCodec) Decode(wire any) (any, error) {
	return toInt64(wire)
}

type realCodec struct{}

func (realCodec) Type() Type         { return TypeReal }
func (realCodec) Affinity() Affinity { return AffinityReal }

func (realCodec) Encode(value any) (any, error) {
	return toFloat64(value)
}

func (realCodec) Decode(wire any) (any, error) {
	return toFloat64(wire)
}

type booleanCodec struct{}

func (booleanCodec) Type() Type         { return TypeBoolean }
func (booleanCodec) Affinity() Affinity { return AffinityInteger }

// Encode stores booleans as 0/1; numeric and textual truthy forms are
// accepted for convenience.
func (booleanCodec) Encode(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return boolToInt64(v), nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("cannot store %q as boolean", v))
		}
		return boolToInt64(parsed), nil
	default:
		n, err := toInt64(value)
		if err != nil {
			return nil, kverrors.NewUnsupportedValue(fmt.Sprintf("cannot store %T as boolean", value))
		}
		return boolToInt64(n != 0), nil
	}
}

// Decode reads 0 as false and any nonzero value as true.
func (booleanCodec) Decode(wire any) (any, error) {
	if b, ok := wire.(bool); ok {
		return b, nil
	}

	n, err := toInt64(wire)
	if err != nil {
		return nil, err
	}
	return n != 0, nil
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return parseInt64(v)
	case []byte:
		return parseInt64(string(v))
	default:
		return 0, kverrors.NewUnsupportedValue(fmt.Sprintf("cannot coerce %T to integer", value))
	}
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, kverrors.NewUnsupportedValue(fmt.Sprintf("integer %d overflows the signed 64-bit range", v))
	}
	return int64(v), nil
}

func parseInt64(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, kverrors.NewUnsupportedValue(fmt.Sprintf("cannot coerce %q to integer", s))
	}
	return n, nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		return parseFloat64(v)
	case []byte:
		return parseFloat64(string(v))
	default:
		return 0, kverrors.NewUnsupportedValue(fmt.Sprintf("cannot coerce %T to real", value))
	}
}

func parseFloat64(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, kverrors.NewUnsupportedValue(fmt.Sprintf("cannot coerce %q to real", s))
	}
	return f, nil
}
