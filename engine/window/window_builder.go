package window

// WindowBuilderOption is a function that configures a window before it is created.
type WindowBuilderOption func(w *viewerWindow)

// WithTitle sets the initial title bar text.
//
// Parameters:
//   - title: the title
//
// Returns:
//   - WindowBuilderOption: a function that sets the title
func WithTitle(title string) WindowBuilderOption {
	return func(w *viewerWindow) {
		w.title = title
	}
}

// WithSize sets the requested client area size. High-DPI displays may report a larger framebuffer.
//
// Parameters:
//   - width: width in screen coordinates
//   - height: height in screen coordinates
//
// Returns:
//   - WindowBuilderOption: a function that sets the size
func WithSize(width, height int) WindowBuilderOption {
	return func(w *viewerWindow) {
		w.width = width
		w.height = height
	}
}

// WithMinSize sets the smallest size the user can drag the window to.
func WithMinSize(width, height int) WindowBuilderOption {
	return func(w *viewerWindow) {
		w.minWidth = width
		w.minHeight = height
	}
}

// WithMaxSize sets the largest size the user can drag the window to. Zero leaves it unbounded.
func WithMaxSize(width, height int) WindowBuilderOption {
	return func(w *viewerWindow) {
		w.maxWidth = width
		w.maxHeight = height
	}
}
