package upload

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	files := []File{
		{Name: "small.jpg", Size: 10},
		{Name: "exact.jpg", Size: 50 << 20},
		{Name: "huge.mov", Size: 50<<20 + 1},
	}
	accepted, rejected := Validate(files, 0)
	if len(accepted) != 2 || len(rejected) != 1 || rejected[0].Name != "huge.mov" {
		t.Fatalf("accepted = %+v, rejected = %+v", accepted, rejected)
	}

	msg := RejectionMessage(rejected, 0)
	if !strings.Contains(msg, "50 MiB") || !strings.Contains(msg, "huge.mov (50 MiB)") {
		t.Fatalf("message = %q", msg)
	}
	if RejectionMessage(nil, 0) != "" {
		t.Fatal("empty rejection list should have no message")
	}
}

func TestStoragePath(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	re := regexp.MustCompile(`^gallery/branding/1700000000123_[0-9a-f]{8}_logo\.png$`)
	a := StoragePath("branding", "logo.png", now)
	b := StoragePath("branding", "logo.png", now)
	if !re.MatchString(a) {
		t.Fatalf("path = %q", a)
	}
	if a == b {
		t.Fatalf("paths should differ: %q", a)
	}
	if got := StoragePath("x", `C:\Users\me\photo.jpg`, now); !strings.HasSuffix(got, "_photo.jpg") {
		t.Fatalf("windows name not reduced to base: %q", got)
	}
}

func pngFile(t *testing.T, w, h int) File {
	t.Helper()
	// Noise keeps the PNG larger than its JPEG re-encoding.
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return FromBytes("photo.png", "image/png", buf.Bytes())
}

func TestCompressScalesWideImages(t *testing.T) {
	f := pngFile(t, 3840, 20)
	out := Compress(f, Policy{Threshold: 1, MaxWidth: 1920, Quality: 80})
	if out.ContentType != "image/jpeg" {
		t.Fatalf("content type = %q", out.ContentType)
	}
	rc, _ := out.Open()
	defer rc.Close()
	cfg, err := jpeg.DecodeConfig(rc)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 1920 || cfg.Height != 10 {
		t.Fatalf("size = %dx%d, want 1920x10", cfg.Width, cfg.Height)
	}
}

func TestCompressNoUpscale(t *testing.T) {
	f := pngFile(t, 100, 50)
	out := Compress(f, Policy{Threshold: 1, MaxWidth: 1920, Quality: 80})
	rc, _ := out.Open()
	defer rc.Close()
	cfg, err := jpeg.DecodeConfig(rc)
	if err != nil || cfg.Width != 100 || cfg.Height != 50 {
		t.Fatalf("size = %dx%d, err = %v", cfg.Width, cfg.Height, err)
	}
	if out.Size > f.Size {
		t.Fatalf("stored %d bytes, original %d", out.Size, f.Size)
	}
}

func TestCompressSkipsAndFallsBack(t *testing.T) {
	small := pngFile(t, 10, 10)
	if out := Compress(small, DefaultPolicy); out.ContentType != "image/png" {
		t.Fatal("files under the threshold must not be compressed")
	}

	doc := FromBytes("doc.pdf", "application/pdf", bytes.Repeat([]byte{1}, 100))
	if out := Compress(doc, Policy{Threshold: 1, MaxWidth: 1920}); out.ContentType != "application/pdf" {
		t.Fatal("non-images must not be compressed")
	}

	broken := FromBytes("broken.jpg", "image/jpeg", []byte("not really a jpeg"))
	out := Compress(broken, Policy{Threshold: 1, MaxWidth: 1920})
	if out.Size != broken.Size || out.ContentType != "image/jpeg" {
		t.Fatalf("broken image should fall back to original, got %+v", out)
	}
}

// hugeCanvas is a tiny PNG whose header declares a w x h canvas.
func hugeCanvas(t *testing.T, w, h uint32) File {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	b := buf.Bytes()
	// Signature (8), IHDR length (4) and type (4), then width and height.
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return FromBytes("bomb.png", "image/png", b)
}

func TestCompressRefusesHugeCanvas(t *testing.T) {
	f := hugeCanvas(t, 40000, 40000)
	p := Policy{Threshold: 1, MaxWidth: 1920, Quality: 80, MaxPixels: 50_000_000}
	if _, err := compress(f, p); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("compress err = %v", err)
	}
	out := Compress(f, p)
	if out.ContentType != "image/png" || out.Size != f.Size {
		t.Fatalf("huge canvas should be stored as uploaded, got %+v", out)
	}
}
