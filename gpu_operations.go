package sparkle

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// GpuState is a headless device used for compute bakes. No surface is
// created.
type GpuState struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
}

func powerPreference(name string) wgpu.PowerPreference {
	if name == "low" {
		return wgpu.PowerPreferenceLowPower
	}
	return wgpu.PowerPreferenceHighPerformance
}

func createGpuState(preference string) (*GpuState, error) {
	instance := wgpu.CreateInstance(nil)
	// finds a suitable GPU (discrete GPU preferred unless asked otherwise)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: powerPreference(preference),
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Sparkle Bake Device",
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}

	return &GpuState{
		instance: instance,
		adapter:  adapter,
		Device:   device,
		Queue:    device.GetQueue(),
	}, nil
}

func (s *GpuState) Release() {
	s.Queue = nil
	if s.Device != nil {
		s.Device.Release()
		s.Device = nil
	}
	if s.adapter != nil {
		s.adapter.Release()
		s.adapter = nil
	}
	if s.instance != nil {
		s.instance.Release()
		s.instance = nil
	}
}

// GpuModule installs a *GpuState resource. When Optional is set a missing
// adapter is logged and the module installs nothing, leaving bakes on the
// CPU path.
type GpuModule struct {
	PowerPreference string
	Optional        bool
}

func (mod GpuModule) Install(app *App, cmd *Commands) {
	state, err := createGpuState(mod.PowerPreference)
	if err != nil {
		if mod.Optional {
			cmd.Logger().Warnf("gpu unavailable, baking on the cpu: %v", err)
			return
		}
		panic(err)
	}
	cmd.Logger().Debugf("gpu device ready (power preference %q)", mod.PowerPreference)
	cmd.AddResources(state)
}
