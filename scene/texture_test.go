package scene

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"camsim/common"
	"camsim/render"
)

func TestLoadTexture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diffuse.png")
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	img.SetNRGBA(1, 1, color.NRGBA{R: 255, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	backend := render.NewNullBackend()
	tex, err := LoadTexture(backend, path)
	if err != nil {
		t.Fatal(err)
	}
	if !tex.Valid() {
		t.Fatal("loaded texture handle is invalid")
	}
	if w, h := backend.TextureSize(tex); w != 4 || h != 2 {
		t.Fatalf("texture size = %dx%d, want 4x2", w, h)
	}

	if _, err := LoadTexture(backend, filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatal("missing texture file loaded without error")
	}
}

func TestSphereAround(t *testing.T) {
	b := SphereAround(common.Vec3{X: 1}, common.Vec3{X: -1})
	if b.Center != (common.Vec3{}) {
		t.Fatalf("sphere center = %+v, want origin", b.Center)
	}
	if b.Radius != 1 {
		t.Fatalf("sphere radius = %v, want 1", b.Radius)
	}
	if empty := SphereAround(); empty.Radius != 0 {
		t.Fatalf("empty point set has radius %v", empty.Radius)
	}
}
