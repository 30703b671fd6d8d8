package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	window  *glfw.Window
	running bool
}

// newPlatformWindow creates the GLFW window, applies the size limits and registers the input callbacks.
//
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newPlatformWindow(w *viewerWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize GLFW: %w", err)
	}

	// The surface is driven by WebGPU, so no GL context.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("create GLFW window: %w", err)
	}

	maxW, maxH := glfw.DontCare, glfw.DontCare
	if w.maxWidth > 0 && w.maxHeight > 0 {
		maxW, maxH = w.maxWidth, w.maxHeight
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, maxW, maxH)

	gw := &glfwWindow{window: win, running: true}
	w.internalWindow = gw

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		if key == glfw.KeyEscape {
			gw.running = false
			win.SetShouldClose(true)
			return
		}
		if w.onKeyPress != nil {
			w.onKeyPress(uint32(key))
		}
	})

	win.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(yoff)
		}
	})

	// Framebuffer size, not window size: on high-DPI displays they differ and the surface needs pixels.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.setSize(width, height)
	})

	w.width, w.height = win.GetFramebufferSize()
	return nil
}

// platformGetSurfaceDescriptor builds a wgpu.SurfaceDescriptor through the wgpuglfw bridge.
func platformGetSurfaceDescriptor(w *viewerWindow) *wgpu.SurfaceDescriptor {
	if w.internalWindow == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.internalWindow.(*glfwWindow).window)
}

func platformSetTitle(w *viewerWindow, title string) {
	if w.internalWindow == nil {
		return
	}
	w.internalWindow.(*glfwWindow).window.SetTitle(title)
}

func platformIsRunningCheck(w *viewerWindow) bool {
	if w.internalWindow == nil {
		return false
	}
	gw := w.internalWindow.(*glfwWindow)
	return gw.running && !gw.window.ShouldClose()
}

// platformCloseWindow destroys the GLFW window and terminates the GLFW library.
func platformCloseWindow(w *viewerWindow) error {
	if w.internalWindow == nil {
		return fmt.Errorf("window is not initialized")
	}
	gw := w.internalWindow.(*glfwWindow)
	gw.running = false
	gw.window.SetShouldClose(true)
	gw.window.Destroy()
	glfw.Terminate()
	w.internalWindow = nil
	return nil
}

// platformProcessMessages polls GLFW for pending events without blocking.
func platformProcessMessages(w *viewerWindow) bool {
	glfw.PollEvents()
	return platformIsRunningCheck(w)
}
