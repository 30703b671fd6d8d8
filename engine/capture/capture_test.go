package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

func checker(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				img.SetRGBA(x, y, color.RGBA{0, 0, 255, 255})
			}
		}
	}
	return img
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"frame.png", FormatPNG, false},
		{"frame.PNG", FormatPNG, false},
		{"frame.bmp", FormatBMP, false},
		{"frame.tif", FormatTIFF, false},
		{"frame.tiff", FormatTIFF, false},
		{"frame.jpg", 0, true},
		{"frame", 0, true},
	}
	for _, tc := range tests {
		got, err := FormatFromPath(tc.path)
		if (err != nil) != tc.wantErr || (!tc.wantErr && got != tc.want) {
			t.Errorf("FormatFromPath(%q) = %v, %v", tc.path, got, err)
		}
	}
}

func TestEncodeDecodes(t *testing.T) {
	src := checker(4, 3)
	decoders := map[Format]func(*bytes.Reader) (image.Image, error){
		FormatPNG:  func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
		FormatBMP:  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
		FormatTIFF: func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) },
	}
	for f, decode := range decoders {
		t.Run(f.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, src, f); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			img, err := decode(bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Bounds() != src.Bounds() {
				t.Fatalf("bounds = %v", img.Bounds())
			}
			r, g, b, _ := img.At(1, 0).RGBA()
			if r != 0 || g != 0 || b>>8 != 255 {
				t.Errorf("pixel (1,0) = %d %d %d, want blue", r>>8, g>>8, b>>8)
			}
		})
	}
}

func TestWriteFileScales(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := WriteFile(path, checker(8, 8), WithSize(2, 2), WithScaler(xdraw.ApproxBiLinear)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Errorf("bounds = %v, want 2x2", img.Bounds())
	}
}

func TestWriteFileWithFormatOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.out")
	if err := WriteFile(path, checker(2, 2)); err == nil {
		t.Fatal("expected an error for an unknown extension")
	}
	if err := WriteFile(path, checker(2, 2), WithFormat(FormatBMP)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("BM")) {
		t.Errorf("file starts with %q, want a BMP header", data[:2])
	}
}

func TestFrameFromSoftwareRenderer(t *testing.T) {
	r := renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithSurfaceSize(3, 2))
	defer r.Release()
	path := filepath.Join(t.TempDir(), "frame.tiff")
	if err := Frame(r, path); err == nil {
		t.Fatal("capturing before any frame was presented should fail")
	}
	r.Present()
	if err := Frame(r, path); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Stat: %v", err)
	}
}
