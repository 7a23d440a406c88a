// Package webgpu implements a GPU compute backend on top of go-webgpu's
// zero-CGO WebGPU bindings.
//
// Element-wise arithmetic and the activation functions run as WGSL compute
// shaders. Structural operations (reshape, cat, chunk, narrow) and the
// convolution kernels run on an embedded CPU backend: they are memory-bound
// copies or already fast on the host, and keeping them there avoids a round
// trip per op while every tensor lives in host memory anyway.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/nimbus-ml/nimbus/internal/backend/cpu"
	"github.com/nimbus-ml/nimbus/internal/tensor"
)

// Backend executes tensor operations through WebGPU compute pipelines.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	// Host-side fallback for operations without a shader.
	fallback *cpu.Backend
}

// New initializes the WebGPU backend. Returns an error when no adapter or
// device is available, so callers can fall back to the CPU backend.
func New() (backend *Backend, err error) {
	// The native library loads lazily and panics when missing.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instanceErr := wgpu.CreateInstance(nil)
	if instanceErr != nil {
		return nil, fmt.Errorf("webgpu: create instance: %w", instanceErr)
	}
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: no queue")
	}

	return &Backend{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		fallback:  cpu.New(),
	}, nil
}

// Name returns the backend name.
func (b *Backend) Name() string { return "WebGPU" }

// Device returns the compute device.
func (b *Backend) Device() tensor.Device { return tensor.WebGPU }

// Release frees the GPU resources. The backend must not be used afterwards.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pipelines {
		p.Release()
	}
	for _, s := range b.shaders {
		s.Release()
	}
	b.device.Release()
	b.adapter.Release()
	b.instance.Release()
}
