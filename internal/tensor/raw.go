package tensor

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Device identifies where a tensor's data is computed.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// tensorBuffer is a reference-counted byte buffer shared between tensor
// views. A unique reference allows backends to update data in place.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
}

func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{data: make([]byte, size)}
	buf.refCount.Store(1)
	return buf
}

func (tb *tensorBuffer) addRef() { tb.refCount.Add(1) }

func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.data = nil
	}
}

func (tb *tensorBuffer) isUnique() bool { return tb.refCount.Load() == 1 }

// RawTensor is the low-level tensor representation: a shared buffer plus
// shape, strides, dtype and device. Cloning shares the buffer; writes should
// only happen through a unique reference.
type RawTensor struct {
	buffer *tensorBuffer
	shape  Shape
	stride []int
	dtype  DataType
	device Device
}

// NewRaw allocates a zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &RawTensor{
		buffer: newTensorBuffer(shape.NumElements() * dtype.Size()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape { return r.shape }

// Strides returns the tensor's row-major strides.
func (r *RawTensor) Strides() []int { return r.stride }

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType { return r.dtype }

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device { return r.device }

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int { return r.shape.NumElements() }

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int { return r.NumElements() * r.dtype.Size() }

// Data returns the raw byte slice backing the tensor.
func (r *RawTensor) Data() []byte { return r.buffer.data }

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.buffer.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.buffer.data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	if r.dtype != Uint8 {
		panic(fmt.Sprintf("tensor dtype is %s, not uint8", r.dtype))
	}
	return r.buffer.data
}

// Clone creates a shallow copy sharing the underlying buffer. The buffer is
// reference counted so in-place optimizations stay safe.
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
	}
}

// SetDevice reassigns the tensor's device tag. Backends that compute on the
// host but present another device use this on their results.
func (r *RawTensor) SetDevice(device Device) { r.device = device }

// SetShape replaces the tensor's shape and recomputes strides. The new shape
// must describe the same number of elements; backends use this for reshape
// views over a shared buffer.
func (r *RawTensor) SetShape(shape Shape) {
	r.shape = shape.Clone()
	r.stride = shape.ComputeStrides()
}

// Release decrements the buffer reference count.
func (r *RawTensor) Release() { r.buffer.release() }

// IsUnique reports whether this tensor is the only reference to its buffer.
// Backends may update unique buffers in place.
func (r *RawTensor) IsUnique() bool { return r.buffer.isUnique() }

// ForceNonUnique temporarily bumps the reference count so IsUnique reports
// false, preventing in-place updates that would corrupt a recorded
// computation graph. The returned function must be called (defer it) to
// restore the count.
func (r *RawTensor) ForceNonUnique() func() {
	r.buffer.addRef()
	return func() { r.buffer.release() }
}
