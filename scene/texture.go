package scene

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"camsim/render"
)

// TextureFromImage uploads a decoded image as an RGBA8 texture, for the
// material texture slots.
func TextureFromImage(backend render.Backend, img image.Image) render.Texture {
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	tex := backend.CreateTexture(bounds.Dx(), bounds.Dy(), render.FormatRGBA8, true)
	if tex.Valid() {
		backend.UploadTexture(tex, rgba.Pix)
	}
	return tex
}

// LoadTexture reads a PNG or JPEG file and uploads it as an RGBA8 texture.
func LoadTexture(backend render.Backend, path string) (render.Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return render.Texture{}, fmt.Errorf("failed to open texture file %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return render.Texture{}, fmt.Errorf("failed to decode texture file %s: %w", path, err)
	}
	return TextureFromImage(backend, img), nil
}
