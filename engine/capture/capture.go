// Package capture writes presented frames to image files.
package capture

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// Format is an output image encoding.
type Format int

const (
	FormatPNG Format = iota
	FormatBMP
	FormatTIFF
)

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	}
	return "unknown"
}

// FormatFromPath picks the format matching a file extension.
//
// Parameters:
//   - path: the output path
//
// Returns:
//   - Format: the format
//   - error: an error if the extension is not supported
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, nil
	case ".bmp":
		return FormatBMP, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	}
	return 0, fmt.Errorf("capture %s: unsupported extension", path)
}

// options holds the settings of one capture.
type options struct {
	width, height int
	scaler        xdraw.Scaler
	format        *Format
}

// Scale resizes img to width×height with the given scaler.
//
// Parameters:
//   - img: the source image
//   - width: the output width
//   - height: the output height
//   - scaler: the interpolator, e.g. xdraw.CatmullRom
//
// Returns:
//   - *image.RGBA: the resized image
func Scale(img image.Image, width, height int, scaler xdraw.Scaler) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(out, out.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return out
}

// Encode writes img to w in the given format.
//
// Parameters:
//   - w: the destination
//   - img: the image
//   - f: the format
//
// Returns:
//   - error: an encoder error
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	return fmt.Errorf("encode: unknown format %d", f)
}

// WriteFile encodes img to path, choosing the format from the extension unless overridden.
//
// Parameters:
//   - path: the output path
//   - img: the image
//   - opts: a variadic list of CaptureBuilderOption functions
//
// Returns:
//   - error: an error if the format is unsupported or the file cannot be written
func WriteFile(path string, img image.Image, opts ...CaptureBuilderOption) error {
	o := options{scaler: xdraw.CatmullRom}
	for _, opt := range opts {
		opt(&o)
	}

	var f Format
	if o.format != nil {
		f = *o.format
	} else {
		var err error
		if f, err = FormatFromPath(path); err != nil {
			return err
		}
	}
	if o.width > 0 && o.height > 0 {
		img = Scale(img, o.width, o.height, o.scaler)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("capture %s: %w", path, err)
	}
	if err := Encode(file, img, f); err != nil {
		file.Close()
		return fmt.Errorf("capture %s: %w", path, err)
	}
	return file.Close()
}

// Frame writes the last presented frame of r to path.
//
// Parameters:
//   - r: the renderer
//   - path: the output path
//   - opts: a variadic list of CaptureBuilderOption functions
//
// Returns:
//   - error: renderer.ErrSnapshotUnsupported on devices without readback, or a write error
func Frame(r renderer.Renderer, path string, opts ...CaptureBuilderOption) error {
	img, err := r.Snapshot()
	if err != nil {
		return fmt.Errorf("capture %s: %w", path, err)
	}
	return WriteFile(path, img, opts...)
}
