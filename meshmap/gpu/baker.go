package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/sparkle/meshmap/core"
	"github.com/gekko3d/sparkle/meshmap/shaders"
)

const (
	texelBytes  = core.Channels * 4
	paramsBytes = 16
	rowAlign    = 256
)

var ErrNotBaked = errors.New("position map has not been baked")

// Logger is the subset of the app logger the baker reports through.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

type Option func(*PositionBaker)

func WithLogger(l Logger) Option {
	return func(b *PositionBaker) {
		if l != nil {
			b.log = l
		}
	}
}

// WithLabel prefixes the labels of every device object the baker creates.
func WithLabel(label string) Option {
	return func(b *PositionBaker) { b.label = label }
}

// PositionBaker writes vertex positions into an rgba32float storage texture
// with a compute pass. It owns all of its device objects; call Release when
// the effect that uses it goes away.
type PositionBaker struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	log    Logger
	label  string

	pipeline *wgpu.ComputePipeline
	bgl      *wgpu.BindGroupLayout

	params    *wgpu.Buffer
	positions *wgpu.Buffer
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	bindGroup *wgpu.BindGroup
	readback  *wgpu.Buffer

	vertexCount int
	width       uint32
	warned      [2]int

	// beforeSubmit runs after encoding and before submission; tests use it
	// to fail a bake late.
	beforeSubmit func() error
}

func NewPositionBaker(device *wgpu.Device, opts ...Option) (*PositionBaker, error) {
	if device == nil {
		return nil, errors.New("position baker: nil device")
	}
	b := &PositionBaker{
		device: device,
		queue:  device.GetQueue(),
		log:    nopLogger{},
		label:  "PositionMap",
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := b.createPipeline(); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

func (b *PositionBaker) createPipeline() error {
	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          b.label + " Bake CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BakePositionsWGSL},
	})
	if err != nil {
		return fmt.Errorf("failed to create bake shader module: %w", err)
	}
	defer module.Release()

	b.bgl, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: b.label + " BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: paramsBytes,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type: wgpu.BufferBindingTypeReadOnlyStorage,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        wgpu.TextureFormatRGBA32Float,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bake bind group layout: %w", err)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            b.label + " Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.bgl},
	})
	if err != nil {
		return fmt.Errorf("failed to create bake pipeline layout: %w", err)
	}
	defer layout.Release()

	b.pipeline, err = b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  b.label + " Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: shaders.BakePositionsEntryPoint,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create bake pipeline: %w", err)
	}

	b.params, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label + " Params",
		Size:  paramsBytes,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create bake params buffer: %w", err)
	}
	return nil
}

// Bake uploads positions and dispatches the kernel. It does not wait for
// the GPU; call Readback to observe the result on the CPU. When Bake fails
// the texture of the last successful bake stays valid.
func (b *PositionBaker) Bake(positions []mgl32.Vec3) (err error) {
	plan, err := core.NewPlan(len(positions), true)
	if err != nil {
		return fmt.Errorf("position map: %w", err)
	}
	b.noteTruncation(plan)
	width := uint32(plan.Width)

	next := frame{positions: b.positions, texture: b.texture, view: b.view, bindGroup: b.bindGroup}
	var fresh frame
	defer func() {
		if err != nil {
			fresh.release()
		}
	}()

	if plan.VertexCount != b.vertexCount || b.positions == nil {
		if fresh.positions, err = b.createPositions(plan.VertexCount); err != nil {
			return err
		}
		next.positions = fresh.positions
	}
	if width != b.width || b.texture == nil {
		if fresh.texture, fresh.view, err = b.createTexture(width); err != nil {
			return err
		}
		next.texture, next.view = fresh.texture, fresh.view
	}
	if fresh.positions != nil || fresh.texture != nil || b.bindGroup == nil {
		if fresh.bindGroup, err = b.createBindGroup(next.positions, next.view); err != nil {
			return err
		}
		next.bindGroup = fresh.bindGroup
	}

	if err = b.queue.WriteBuffer(b.params, 0, encodeParams(uint32(plan.VertexCount), width)); err != nil {
		return fmt.Errorf("failed to upload bake params: %w", err)
	}
	if err = b.queue.WriteBuffer(next.positions, 0, packPositions(positions)); err != nil {
		return fmt.Errorf("failed to upload positions: %w", err)
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(b.pipeline)
	pass.SetBindGroup(0, next.bindGroup, nil)
	x, y := plan.Workgroups()
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()
	pass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish bake commands: %w", err)
	}
	defer cmd.Release()
	if b.beforeSubmit != nil {
		if err = b.beforeSubmit(); err != nil {
			return err
		}
	}
	b.queue.Submit(cmd)

	b.commit(next, plan.VertexCount, width)
	b.log.Debugf("position map: dispatched %dx%d workgroups for %d vertices", x, y, plan.VertexCount)
	return nil
}

// noteTruncation warns once per vertex count and width that drops vertices.
func (b *PositionBaker) noteTruncation(plan core.Plan) {
	n := plan.Truncated()
	if n == 0 {
		return
	}
	key := [2]int{plan.VertexCount, plan.Width}
	if key == b.warned {
		return
	}
	b.warned = key
	b.log.Warnf("position map: %d of %d vertices do not fit in a %dx%d map", n, plan.VertexCount, plan.Width, plan.Width)
}

// frame is the set of objects one dispatch writes through.
type frame struct {
	positions *wgpu.Buffer
	texture   *wgpu.Texture
	view      *wgpu.TextureView
	bindGroup *wgpu.BindGroup
}

func (f *frame) release() {
	if f.bindGroup != nil {
		f.bindGroup.Release()
		f.bindGroup = nil
	}
	if f.view != nil {
		f.view.Release()
		f.view = nil
	}
	if f.texture != nil {
		f.texture.Release()
		f.texture = nil
	}
	if f.positions != nil {
		f.positions.Release()
		f.positions = nil
	}
}

// commit makes next current and releases whatever it replaced.
func (b *PositionBaker) commit(next frame, count int, width uint32) {
	var old frame
	if b.bindGroup != next.bindGroup {
		old.bindGroup = b.bindGroup
	}
	if b.view != next.view {
		old.view = b.view
	}
	if b.texture != next.texture {
		old.texture = b.texture
	}
	if b.positions != next.positions {
		old.positions = b.positions
	}
	old.release()
	if width != b.width && b.readback != nil {
		b.readback.Release()
		b.readback = nil
	}

	b.positions, b.texture, b.view, b.bindGroup = next.positions, next.texture, next.view, next.bindGroup
	b.vertexCount = count
	b.width = width
}

func (b *PositionBaker) createPositions(count int) (*wgpu.Buffer, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: b.label + " Positions",
		Size:  uint64(count) * 3 * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate position buffer for %d vertices: %w", count, err)
	}
	return buf, nil
}

func (b *PositionBaker) createTexture(width uint32) (*wgpu.Texture, *wgpu.TextureView, error) {
	texture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         b.label,
		Size:          wgpu.Extent3D{Width: width, Height: width, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA32Float,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to allocate %dx%d position map: %w", width, width, err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, nil, fmt.Errorf("failed to create position map view: %w", err)
	}
	return texture, view, nil
}

func (b *PositionBaker) createBindGroup(positions *wgpu.Buffer, view *wgpu.TextureView) (*wgpu.BindGroup, error) {
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  b.label + " BG",
		Layout: b.bgl,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: b.params, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: positions, Size: wgpu.WholeSize},
			{Binding: 2, TextureView: view},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bake bind group: %w", err)
	}
	return bg, nil
}

// Readback copies the texture into host memory, blocking until the device
// is idle.
func (b *PositionBaker) Readback() (*core.Map, error) {
	if b.texture == nil || b.width == 0 {
		return nil, ErrNotBaked
	}
	w := b.width
	bytesPerRow := alignedBytesPerRow(w)
	size := uint64(bytesPerRow) * uint64(w)

	if b.readback == nil {
		var err error
		b.readback, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: b.label + " Readback",
			Size:  size,
			Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to allocate readback buffer: %w", err)
		}
	}

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  b.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
		},
		&wgpu.ImageCopyBuffer{
			Buffer: b.readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: w,
			},
		},
		&wgpu.Extent3D{Width: w, Height: w, DepthOrArrayLayers: 1},
	)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish readback commands: %w", err)
	}
	defer cmd.Release()
	b.queue.Submit(cmd)

	var status wgpu.BufferMapAsyncStatus
	err = b.readback.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return nil, fmt.Errorf("failed to map readback buffer: %w", err)
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("readback mapping failed with status %v", status)
	}

	data := b.readback.GetMappedRange(0, uint(size))
	pix := unpackRows(data, w, bytesPerRow)
	b.readback.Unmap()

	return core.NewMapFromPix(core.AttributePosition, int(w), pix)
}

// Texture is the storage texture view the kernel writes into, nil before
// the first Bake.
func (b *PositionBaker) Texture() *wgpu.TextureView { return b.view }

func (b *PositionBaker) Width() uint32 { return b.width }

func (b *PositionBaker) VertexCount() int { return b.vertexCount }

// Release frees every device object. The baker must not be used afterwards.
func (b *PositionBaker) Release() {
	current := frame{positions: b.positions, texture: b.texture, view: b.view, bindGroup: b.bindGroup}
	current.release()
	b.positions, b.texture, b.view, b.bindGroup = nil, nil, nil, nil
	if b.readback != nil {
		b.readback.Release()
		b.readback = nil
	}
	if b.params != nil {
		b.params.Release()
		b.params = nil
	}
	if b.pipeline != nil {
		b.pipeline.Release()
		b.pipeline = nil
	}
	if b.bgl != nil {
		b.bgl.Release()
		b.bgl = nil
	}
	b.width = 0
	b.vertexCount = 0
}

// SamplerDescriptor returns the only valid way to sample a baked map.
func SamplerDescriptor() *wgpu.SamplerDescriptor {
	return &wgpu.SamplerDescriptor{
		Label:         "MeshMap Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   1,
		Compare:       wgpu.CompareFunctionUndefined,
		MaxAnisotropy: 1,
	}
}

func packPositions(positions []mgl32.Vec3) []byte {
	buf := make([]byte, len(positions)*12)
	for i, p := range positions {
		o := i * 12
		binary.LittleEndian.PutUint32(buf[o:], math.Float32bits(p[0]))
		binary.LittleEndian.PutUint32(buf[o+4:], math.Float32bits(p[1]))
		binary.LittleEndian.PutUint32(buf[o+8:], math.Float32bits(p[2]))
	}
	return buf
}

func encodeParams(vertexCount, width uint32) []byte {
	buf := make([]byte, paramsBytes)
	binary.LittleEndian.PutUint32(buf[0:4], vertexCount)
	binary.LittleEndian.PutUint32(buf[4:8], width)
	return buf
}

func alignedBytesPerRow(width uint32) uint32 {
	return (width*texelBytes + rowAlign - 1) & ^uint32(rowAlign-1)
}

// unpackRows drops the row padding of a texture copy.
func unpackRows(data []byte, width, bytesPerRow uint32) []float32 {
	pix := make([]float32, int(width*width)*core.Channels)
	for y := uint32(0); y < width; y++ {
		row := y * bytesPerRow
		for x := uint32(0); x < width*core.Channels; x++ {
			o := row + x*4
			if int(o)+4 > len(data) {
				return pix
			}
			pix[y*width*core.Channels+x] = math.Float32frombits(binary.LittleEndian.Uint32(data[o : o+4]))
		}
	}
	return pix
}
