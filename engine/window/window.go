package window

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides the viewer's platform window and its input events.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer size changes.
	// Minimizing reports a 0x0 size.
	//
	// Parameters:
	//   - callback: function receiving the new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for vertical mouse wheel offsets.
	//
	// Parameters:
	//   - callback: function receiving the wheel offset in notches, positive is away from the user
	SetScrollCallback(callback func(notches float64))

	// SetKeyPressCallback sets the callback for key presses. Held keys do not repeat.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyPressCallback(callback func(keyCode uint32))

	// SetTitle replaces the title bar text.
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still open.
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never created
	Close() error

	// ProcessMessages runs the window message loop until the window closes.
	ProcessMessages()

	// Size returns the current framebuffer size in pixels.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	Size() (int, int)
}

// viewerWindow is the implementation of the Window interface.
type viewerWindow struct {
	title string

	minWidth, minHeight int
	maxWidth, maxHeight int

	mu     sync.Mutex
	width  int
	height int

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	onUpdate   func()
	onResize   func(width, height int)
	onScroll   func(notches float64)
	onKeyPress func(keyCode uint32)
}

var _ Window = &viewerWindow{}

// NewWindow creates and shows a Window with the specified options.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: an error if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &viewerWindow{
		title:     "oxy-deferred",
		minWidth:  320,
		minHeight: 200,
		width:     1280,
		height:    720,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("create platform window: %w", err)
	}
	return w, nil
}

func (w *viewerWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *viewerWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *viewerWindow) SetScrollCallback(callback func(notches float64)) {
	w.onScroll = callback
}

func (w *viewerWindow) SetKeyPressCallback(callback func(keyCode uint32)) {
	w.onKeyPress = callback
}

func (w *viewerWindow) SetTitle(title string) {
	w.title = title
	platformSetTitle(w, title)
}

func (w *viewerWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *viewerWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *viewerWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *viewerWindow) ProcessMessages() {
	for platformProcessMessages(w) {
		if w.onUpdate != nil {
			w.onUpdate()
		}
	}
}

func (w *viewerWindow) Size() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// setSize records a framebuffer size and forwards it to the resize callback.
func (w *viewerWindow) setSize(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	if w.onResize != nil {
		w.onResize(width, height)
	}
}
