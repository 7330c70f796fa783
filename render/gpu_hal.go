//go:build !nogpu

package render

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/soypat/gsdf-render/ivtape/tape"
)

// gpuParams mirrors the WGSL Params struct field-for-field (gpu_shader.go);
// std140-style 16-byte alignment, hence the two trailing pads.
type gpuParams struct {
	ClauseCount uint32
	RootReg     uint32
	AxisXReg    uint32
	AxisYReg    uint32
	AxisZReg    uint32
	TileCount   uint32
	pad0, pad1  uint32
}

// gpuClause mirrors the WGSL Clause struct, one u32 per field plus padding
// to a 32-byte stride.
type gpuClause struct {
	Op, Mode, LHS, RHS, Out uint32
	pad0, pad1, pad2        uint32
}

// gpuTileBounds mirrors the WGSL TileBounds struct.
type gpuTileBounds struct {
	XLo, XHi, YLo, YHi, ZLo, ZHi float32
	pad0, pad1                   float32
}

// gpuBackend owns one compute pipeline for batch tile classification: an
// alternative to tape.Classify's per-tile CPU loop for stages where tile
// counts are largest and the per-tile work is small and uniform enough to
// amortize a device round trip. Ambiguous tiles still classify and
// specialize on the CPU, since Specialize needs the full per-MIN/MAX choice
// trail this kernel does not record.
type gpuBackend struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// newGPUBackend opens the first discrete Vulkan adapter (or, if there is
// none, the first adapter enumerated) and compiles the
// batch classifier pipeline. Callers should treat any error as "no GPU
// available" and fall back to the CPU classifier.
func newGPUBackend() (*gpuBackend, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("render: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("render: create gpu instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("render: no gpu adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = &adapters[i]
			break
		}
	}
	opened, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("render: open gpu device: %w", err)
	}
	b := &gpuBackend{instance: instance, device: opened.Device, queue: opened.Queue}
	if err := b.createPipeline(); err != nil {
		b.device.Destroy()
		b.instance.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *gpuBackend) createPipeline() error {
	shader, err := b.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "ivtape_classify",
		Source: hal.ShaderSource{WGSL: classifyShaderWGSL},
	})
	if err != nil {
		return fmt.Errorf("render: compile classify shader: %w", err)
	}
	b.shader = shader

	layout, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "ivtape_classify_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 4, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("render: create classify bind layout: %w", err)
	}
	b.bindLayout = layout

	pipeLayout, err := b.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "ivtape_classify_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{b.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("render: create classify pipeline layout: %w", err)
	}
	b.pipeLayout = pipeLayout

	pipeline, err := b.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "ivtape_classify_pipeline", Layout: b.pipeLayout,
		Compute: hal.ComputeState{Module: b.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("render: create classify pipeline: %w", err)
	}
	b.pipeline = pipeline
	return nil
}

// Close releases every GPU resource the backend holds.
func (b *gpuBackend) Close() {
	if b.pipeline != nil {
		b.device.DestroyComputePipeline(b.pipeline)
	}
	if b.pipeLayout != nil {
		b.device.DestroyPipelineLayout(b.pipeLayout)
	}
	if b.bindLayout != nil {
		b.device.DestroyBindGroupLayout(b.bindLayout)
	}
	if b.shader != nil {
		b.device.DestroyShaderModule(b.shader)
	}
	if b.device != nil {
		b.device.Destroy()
	}
	if b.instance != nil {
		b.instance.Destroy()
	}
}

// ClassifyBatch classifies every tile in bounds against t in one dispatch,
// returning tape.ClassFilled/ClassEmpty/ClassAmbiguous per tile in order.
// It returns ErrDevice if t has more live registers than the kernel's fixed
// register file supports; callers fall back to the CPU classifier in that
// case exactly as they would for any other device failure.
func (b *gpuBackend) ClassifyBatch(t *tape.Tape, bounds []gpuTileBounds) ([]tape.TileClass, error) {
	if int(t.NumSlots) > maxGPURegisters {
		return nil, fmt.Errorf("%w: tape uses %d registers, gpu kernel supports %d", ErrDevice, t.NumSlots, maxGPURegisters)
	}
	n := len(bounds)
	if n == 0 {
		return nil, nil
	}

	clauses := make([]gpuClause, len(t.Clauses))
	for i, c := range t.Clauses {
		clauses[i] = gpuClause{Op: uint32(c.Op), Mode: uint32(c.Mode), LHS: uint32(c.LHS), RHS: uint32(c.RHS), Out: uint32(c.Out)}
	}
	params := gpuParams{
		ClauseCount: uint32(len(clauses)),
		RootReg:     uint32(t.Root),
		AxisXReg:    uint32(t.AxisSlot[0]),
		AxisYReg:    uint32(t.AxisSlot[1]),
		AxisZReg:    uint32(t.AxisSlot[2]),
		TileCount:   uint32(n),
	}

	paramsBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ivtape_params", Size: uint64(unsafe.Sizeof(params)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create params buffer: %w", err)
	}
	defer b.device.DestroyBuffer(paramsBuf)

	clauseBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ivtape_clauses", Size: structSliceBytes(clauses),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create clause buffer: %w", err)
	}
	defer b.device.DestroyBuffer(clauseBuf)

	constBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ivtape_consts", Size: structSliceBytes(t.Consts),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create const buffer: %w", err)
	}
	defer b.device.DestroyBuffer(constBuf)

	tileBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ivtape_tiles", Size: structSliceBytes(bounds),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create tile buffer: %w", err)
	}
	defer b.device.DestroyBuffer(tileBuf)

	outSize := uint64(n) * 4
	outBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ivtape_classes", Size: outSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create output buffer: %w", err)
	}
	defer b.device.DestroyBuffer(outBuf)

	stagingBuf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ivtape_staging", Size: outSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("render: create staging buffer: %w", err)
	}
	defer b.device.DestroyBuffer(stagingBuf)

	b.queue.WriteBuffer(paramsBuf, 0, structBytes(&params))
	b.queue.WriteBuffer(clauseBuf, 0, structSliceToBytes(clauses))
	b.queue.WriteBuffer(constBuf, 0, structSliceToBytes(t.Consts))
	b.queue.WriteBuffer(tileBuf, 0, structSliceToBytes(bounds))

	bindGroup, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "ivtape_classify_bind", Layout: b.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: uint64(unsafe.Sizeof(params))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: clauseBuf.NativeHandle(), Offset: 0, Size: structSliceBytes(clauses)}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: constBuf.NativeHandle(), Offset: 0, Size: structSliceBytes(t.Consts)}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: tileBuf.NativeHandle(), Offset: 0, Size: structSliceBytes(bounds)}},
			{Binding: 4, Resource: gputypes.BufferBinding{Buffer: outBuf.NativeHandle(), Offset: 0, Size: outSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("render: create classify bind group: %w", err)
	}
	defer b.device.DestroyBindGroup(bindGroup)

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "ivtape_classify_encoder"})
	if err != nil {
		return nil, fmt.Errorf("render: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("ivtape_classify"); err != nil {
		return nil, fmt.Errorf("render: begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "ivtape_classify_pass"})
	pass.SetPipeline(b.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch((uint32(n)+63)/64, 1, 1)
	pass.End()
	encoder.CopyBufferToBuffer(outBuf, stagingBuf, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: outSize}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("render: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmdBuf)

	fence, err := b.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("render: create fence: %w", err)
	}
	defer b.device.DestroyFence(fence)
	if err := b.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("render: submit: %w", err)
	}
	ok, err := b.device.Wait(fence, 1, 5*time.Second)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: gpu classify wait failed (ok=%v): %v", ErrDevice, ok, err)
	}

	raw := make([]byte, outSize)
	if err := b.queue.ReadBuffer(stagingBuf, 0, raw); err != nil {
		return nil, fmt.Errorf("render: readback: %w", err)
	}
	out := make([]tape.TileClass, n)
	for i := range out {
		out[i] = tape.TileClass(le32(raw[i*4:]))
	}
	return out, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func structBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

func structSliceBytes[T any](s []T) uint64 {
	var zero T
	return uint64(len(s)) * uint64(unsafe.Sizeof(zero))
}

func structSliceToBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), int(unsafe.Sizeof(zero))*len(s))
}
