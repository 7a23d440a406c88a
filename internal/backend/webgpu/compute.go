package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// compileShader compiles WGSL source, caching modules by name.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, ok := b.shaders[name]; ok {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()
	return shader
}

// pipeline returns the cached compute pipeline for a shader, creating it
// with an auto layout on first use.
func (b *Backend) pipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if p, ok := b.pipelines[name]; ok {
		b.mu.RUnlock()
		return p
	}
	b.mu.RUnlock()

	p := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = p
	b.mu.Unlock()
	return p
}

// createBuffer uploads data into a new GPU buffer.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := unsafe.Slice((*byte)(buffer.GetMappedRange(0, size)), size)
	copy(mapped, data)
	buffer.Unmap()
	return buffer
}

// createUniformBuffer uploads a uniform block padded to 16 bytes.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := (uint64(len(data)) + 15) &^ 15
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := unsafe.Slice((*byte)(buffer.GetMappedRange(0, size)), size)
	copy(mapped, data)
	buffer.Unmap()
	return buffer
}

// readBuffer copies a storage buffer back to host memory via a staging
// buffer, since storage buffers cannot be mapped directly.
func (b *Backend) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	mapped := unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)
	out := make([]byte, size)
	copy(out, mapped)
	staging.Unmap()
	return out, nil
}

// runBinaryOp dispatches a same-shape element-wise kernel over two inputs.
func (b *Backend) runBinaryOp(x, y *tensor.RawTensor, name, code string) (*tensor.RawTensor, error) {
	if x.DType() != tensor.Float32 {
		return nil, fmt.Errorf("webgpu: only float32 supported, got %s", x.DType())
	}
	if !x.Shape().Equal(y.Shape()) {
		return nil, fmt.Errorf("webgpu: shape mismatch %v vs %v", x.Shape(), y.Shape())
	}

	n := x.NumElements()
	p := b.pipeline(name, b.compileShader(name, code))

	bufX := b.createBuffer(x.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufX.Release()
	bufY := b.createBuffer(y.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufY.Release()

	size := uint64(x.ByteSize())
	bufOut := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer bufOut.Release()

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(n))
	bufParams := b.createUniformBuffer(params)
	defer bufParams.Release()

	bindGroup := b.device.CreateBindGroupSimple(p.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufX, 0, size),
		wgpu.BufferBindingEntry(1, bufY, 0, size),
		wgpu.BufferBindingEntry(2, bufOut, 0, size),
		wgpu.BufferBindingEntry(3, bufParams, 0, 16),
	})
	defer bindGroup.Release()

	b.dispatch(p, bindGroup, n)

	data, err := b.readBuffer(bufOut, size)
	if err != nil {
		return nil, err
	}
	out, err := tensor.NewRaw(x.Shape(), x.DType(), tensor.WebGPU)
	if err != nil {
		return nil, err
	}
	copy(out.Data(), data)
	return out, nil
}

// runUnaryOp dispatches a single-input kernel; s0 and s1 ride along in the
// uniform block for the scalar and clamp kernels.
func (b *Backend) runUnaryOp(x *tensor.RawTensor, name, code string, s0, s1 float32) (*tensor.RawTensor, error) {
	if x.DType() != tensor.Float32 {
		return nil, fmt.Errorf("webgpu: only float32 supported, got %s", x.DType())
	}

	n := x.NumElements()
	p := b.pipeline(name, b.compileShader(name, code))

	bufX := b.createBuffer(x.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufX.Release()

	size := uint64(x.ByteSize())
	bufOut := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer bufOut.Release()

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(n))
	binary.LittleEndian.PutUint32(params[4:8], math.Float32bits(s0))
	binary.LittleEndian.PutUint32(params[8:12], math.Float32bits(s1))
	bufParams := b.createUniformBuffer(params)
	defer bufParams.Release()

	bindGroup := b.device.CreateBindGroupSimple(p.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufX, 0, size),
		wgpu.BufferBindingEntry(1, bufOut, 0, size),
		wgpu.BufferBindingEntry(2, bufParams, 0, 16),
	})
	defer bindGroup.Release()

	b.dispatch(p, bindGroup, n)

	data, err := b.readBuffer(bufOut, size)
	if err != nil {
		return nil, err
	}
	out, err := tensor.NewRaw(x.Shape(), x.DType(), tensor.WebGPU)
	if err != nil {
		return nil, err
	}
	copy(out.Data(), data)
	return out, nil
}

func (b *Backend) dispatch(p *wgpu.ComputePipeline, bindGroup *wgpu.BindGroup, n int) {
	encoder := b.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((n+workgroupSize-1)/workgroupSize), 1, 1)
	pass.End()
	b.queue.Submit(encoder.Finish(nil))
}
