package capture

import xdraw "golang.org/x/image/draw"

// CaptureBuilderOption is a function that configures a capture.
type CaptureBuilderOption func(*options)

// WithSize scales the frame to width×height before encoding.
//
// Parameters:
//   - width: the output width
//   - height: the output height
//
// Returns:
//   - CaptureBuilderOption: a function that sets the size
func WithSize(width, height int) CaptureBuilderOption {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithScaler sets the interpolator used by WithSize. Defaults to CatmullRom.
//
// Parameters:
//   - s: the scaler
//
// Returns:
//   - CaptureBuilderOption: a function that sets the scaler
func WithScaler(s xdraw.Scaler) CaptureBuilderOption {
	return func(o *options) {
		o.scaler = s
	}
}

// WithFormat forces the output format regardless of the extension.
//
// Parameters:
//   - f: the format
//
// Returns:
//   - CaptureBuilderOption: a function that sets the format
func WithFormat(f Format) CaptureBuilderOption {
	return func(o *options) {
		o.format = &f
	}
}
