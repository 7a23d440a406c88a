// Package tensor provides the core tensor types for the Nimbus framework.
package tensor

// DType is a constraint for supported tensor element types.
type DType interface {
	~float32 | ~float64 | ~uint8
}

// DataType is runtime type information for tensors.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Uint8
)

// Size returns the element size in bytes.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	case Uint8:
		return 1
	default:
		panic("tensor: unknown data type")
	}
}

// String returns the canonical name of the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Uint8:
		return "uint8"
	default:
		return "unknown"
	}
}

func inferDataType(v any) DataType {
	switch v.(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case uint8:
		return Uint8
	default:
		panic("tensor: unsupported element type")
	}
}
