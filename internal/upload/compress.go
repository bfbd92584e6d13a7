package upload

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Policy controls when and how images are shrunk before upload.
type Policy struct {
	// Threshold is the size above which images are compressed.
	Threshold int64
	MaxWidth  int
	Quality   int
	// MaxPixels caps width*height of images the pipeline will decode.
	// Larger images are stored as uploaded.
	MaxPixels int64
}

// DefaultPolicy compresses images over 2 MiB to at most 1920px wide.
var DefaultPolicy = Policy{Threshold: 2 << 20, MaxWidth: 1920, Quality: 80, MaxPixels: 50_000_000}

// Compress returns a downscaled JPEG copy of f when f is an image above the
// threshold. Any failure yields f unchanged.
func Compress(f File, p Policy) File {
	if !f.IsImage() || f.Size <= p.Threshold {
		return f
	}
	out, err := compress(f, p)
	if err != nil {
		log.Printf("upload: compress %s: %v, using original", f.Name, err)
		return f
	}
	return out
}

func compress(f File, p Policy) (File, error) {
	if err := checkDimensions(f, p.MaxPixels); err != nil {
		return File{}, err
	}
	rc, err := f.Open()
	if err != nil {
		return File{}, err
	}
	defer rc.Close()

	src, _, err := image.Decode(rc)
	if err != nil {
		return File{}, fmt.Errorf("decode: %w", err)
	}
	w, h := scaledSize(src.Bounds().Dx(), src.Bounds().Dy(), p.MaxWidth)
	if w <= 0 || h <= 0 {
		return File{}, fmt.Errorf("empty image")
	}
	var img image.Image = src
	if w != src.Bounds().Dx() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		img = dst
	}

	quality := p.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultPolicy.Quality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return File{}, fmt.Errorf("encode: %w", err)
	}
	if buf.Len() == 0 {
		return File{}, fmt.Errorf("encoder produced no output")
	}
	if f.Size > 0 && int64(buf.Len()) >= f.Size {
		return File{}, fmt.Errorf("re-encoded %d bytes, original %d", buf.Len(), f.Size)
	}
	return FromBytes(f.Name, "image/jpeg", buf.Bytes()), nil
}

// checkDimensions reads only the image header so a small file declaring a
// huge canvas is refused before any pixel buffer is allocated.
func checkDimensions(f File, maxPixels int64) error {
	if maxPixels <= 0 {
		maxPixels = DefaultPolicy.MaxPixels
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	cfg, _, err := image.DecodeConfig(rc)
	if err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxPixels {
		return fmt.Errorf("%dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// scaledSize fits width to maxWidth preserving aspect ratio, never upscaling.
func scaledSize(w, h, maxWidth int) (int, int) {
	if maxWidth <= 0 || w <= maxWidth {
		return w, h
	}
	nh := int(float64(h) * float64(maxWidth) / float64(w))
	if nh < 1 {
		nh = 1
	}
	return maxWidth, nh
}
