package codec

import (
	"fmt"
	"strings"

	kverrors "github.com/charlesng35/typedkv/pkg/errors"
)

// Type identifies the declared value type bound to a store at construction.
type Type string

const (
	TypeJSON    Type = "json"
	TypeText    Type = "text"
	TypeBinary  Type = "binary"
	TypeInteger Type = "integer"
	TypeReal    Type = "real"
	TypeBoolean Type = "boolean"
)

func (t Type) String() string {
	return string(t)
}

// Affinity is the storage class a codec's wire form is persisted as.
type Affinity string

const (
	AffinityText    Affinity = "text"
	AffinityBlob    Affinity = "blob"
	AffinityInteger Affinity = "integer"
	AffinityReal    Affinity = "real"
)

func (a Affinity) String() string {
	return string(a)
}

// Codec converts between caller values and their wire form for one value
// type. A store binds a single codec at construction and reuses it for every
// operation.
type Codec interface {
	Encode(value any) (any, error)
	Decode(wire any) (any, error)
	Affinity() Affinity
	Type() Type
}

// New returns the codec implementing the given value type.
func New(t Type) (Codec, error) {
	switch t {
	case TypeJSON:
		return jsonCodec{}, nil
	case TypeText:
		return textCodec{}, nil
	case TypeBinary:
		return binaryCodec{}, nil
	case TypeInteger:
		return integerCodec{}, nil
	case TypeReal:
		return realCodec{}, nil
	case TypeBoolean:
		return booleanCodec{}, nil
	default:
		return nil, kverrors.NewInvalidArgument(fmt.Sprintf("unknown value type %q", string(t)))
	}
}

// ParseType normalises a configuration string into a Type.
func ParseType(raw string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeJSON, TypeText, TypeBinary, TypeInteger, TypeReal, TypeBoolean:
		return t, nil
	default:
		return "", kverrors.NewInvalidArgument(fmt.Sprintf("unknown value type %q", raw))
	}
}

// Types lists every supported value type.
func Types() []Type {
	return []Type{TypeJSON, TypeText, TypeBinary, TypeInteger, TypeReal, TypeBoolean}
}

func wireString(wire any) (string, bool) {
	switch w := wire.(type) {
	case string:
		return w, true
	case []byte:
		return string(w), true
	}
	return "", false
}
