package main

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// gpuContext bundles the WebGPU objects the simulator renders with, plus the
// hidden GLFW window that anchors adapter selection.
type gpuContext struct {
	window   *glfw.Window
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue
}

// newGPUContext initializes GLFW with a hidden window and requests a WebGPU
// device compatible with its surface. The simulator renders offscreen; the
// window only exists so the adapter matches the platform's display stack.
func newGPUContext(forceFallbackAdapter bool) (*gpuContext, error) {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %v", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	window, err := glfw.CreateWindow(64, 64, "camsim", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create GLFW window: %v", err)
	}

	ctx := &gpuContext{
		window:   window,
		instance: wgpu.CreateInstance(nil),
	}
	ctx.surface = ctx.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	ctx.adapter, err = ctx.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    ctx.surface,
	})
	if err != nil {
		ctx.release()
		return nil, fmt.Errorf("failed to request WebGPU adapter: %v", err)
	}

	limits := wgpu.DefaultLimits()
	ctx.device, err = ctx.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "camsim device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		ctx.release()
		return nil, fmt.Errorf("failed to request WebGPU device: %v", err)
	}
	ctx.queue = ctx.device.GetQueue()
	return ctx, nil
}

func (c *gpuContext) release() {
	if c.device != nil {
		c.device.Release()
	}
	if c.adapter != nil {
		c.adapter.Release()
	}
	if c.surface != nil {
		c.surface.Release()
	}
	if c.instance != nil {
		c.instance.Release()
	}
	if c.window != nil {
		c.window.Destroy()
	}
	glfw.Terminate()
}
