package export

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/bmp"

	"camsim/sim"
)

func clampByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// toImage converts a float buffer to an 8-bit image, clamping values to
// [0,1]. Buffers with fewer than three channels map the first channel to
// grey.
func toImage(buf sim.Buffer) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			var c color.NRGBA
			c.A = 255
			if buf.Channels >= 3 {
				c.R = clampByte(buf.At(x, y, 0))
				c.G = clampByte(buf.At(x, y, 1))
				c.B = clampByte(buf.At(x, y, 2))
			} else {
				grey := clampByte(buf.At(x, y, 0))
				c.R, c.G, c.B = grey, grey, grey
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// toImage8 converts an RGBA8 buffer directly, without float conversion.
func toImage8(buf sim.Buffer) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	copy(img.Pix, buf.Data)
	return img
}

// isByteBuffer reports whether the buffer holds 8-bit pixels rather than
// floats.
func isByteBuffer(buf sim.Buffer) bool {
	return len(buf.Data) == buf.Width*buf.Height*4 && buf.Channels == 4
}

func bufferImage(buf sim.Buffer) image.Image {
	if isByteBuffer(buf) {
		return toImage8(buf)
	}
	return toImage(buf)
}

func writePNG(w *bufio.Writer, buf sim.Buffer) error {
	return png.Encode(w, bufferImage(buf))
}

func writeBMP(w *bufio.Writer, buf sim.Buffer) error {
	return bmp.Encode(w, bufferImage(buf))
}

func writeWebP(w *bufio.Writer, buf sim.Buffer) error {
	return nativewebp.Encode(w, bufferImage(buf), nil)
}

// writePNM writes a binary PPM (3+ channels) or PGM (fewer) with 8-bit
// depth.
func writePNM(w *bufio.Writer, buf sim.Buffer) error {
	if buf.Channels >= 3 {
		fmt.Fprintf(w, "P6\n%d %d\n255\n", buf.Width, buf.Height)
		for y := 0; y < buf.Height; y++ {
			for x := 0; x < buf.Width; x++ {
				w.WriteByte(clampByte(buf.At(x, y, 0)))
				w.WriteByte(clampByte(buf.At(x, y, 1)))
				w.WriteByte(clampByte(buf.At(x, y, 2)))
			}
		}
		return w.Flush()
	}
	fmt.Fprintf(w, "P5\n%d %d\n255\n", buf.Width, buf.Height)
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			w.WriteByte(clampByte(buf.At(x, y, 0)))
		}
	}
	return w.Flush()
}

// writePFM writes a little-endian PFM. Rows are stored bottom to top per
// the format definition. Three or more channels write a color "PF" map, any
// other channel count writes a greyscale "Pf" map of the first channel.
func writePFM(w *bufio.Writer, buf sim.Buffer) error {
	colorMap := buf.Channels >= 3
	if colorMap {
		fmt.Fprintf(w, "PF\n%d %d\n-1.0\n", buf.Width, buf.Height)
	} else {
		fmt.Fprintf(w, "Pf\n%d %d\n-1.0\n", buf.Width, buf.Height)
	}
	var scratch [4]byte
	writeFloat := func(v float32) {
		binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
		w.Write(scratch[:])
	}
	for y := buf.Height - 1; y >= 0; y-- {
		for x := 0; x < buf.Width; x++ {
			if colorMap {
				writeFloat(buf.At(x, y, 0))
				writeFloat(buf.At(x, y, 1))
				writeFloat(buf.At(x, y, 2))
			} else {
				writeFloat(buf.At(x, y, 0))
			}
		}
	}
	return w.Flush()
}

// writeCSV writes all channels as comma separated values, one image row per
// line, pixels flattened channel-interleaved. A header line names the
// channels.
func writeCSV(w *bufio.Writer, buf sim.Buffer) error {
	fmt.Fprintf(w, "# width=%d height=%d channels=%s\n",
		buf.Width, buf.Height, strings.Join(buf.ChannelNames, ","))
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			for c := 0; c < buf.Channels; c++ {
				if x > 0 || c > 0 {
					w.WriteByte(',')
				}
				fmt.Fprintf(w, "%g", buf.At(x, y, c))
			}
		}
		w.WriteByte('\n')
	}
	return w.Flush()
}

// WriteBuffer writes a buffer to a file, choosing the format from the file
// extension: .png, .bmp, .webp, .ppm, .pgm, .pfm or .csv.
func WriteBuffer(path string, buf sim.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = writePNG(w, buf)
	case ".bmp":
		err = writeBMP(w, buf)
	case ".webp":
		err = writeWebP(w, buf)
	case ".ppm", ".pgm", ".pnm":
		err = writePNM(w, buf)
	case ".pfm":
		err = writePFM(w, buf)
	case ".csv":
		err = writeCSV(w, buf)
	default:
		err = fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return w.Flush()
}
