package export

import (
	"bytes"
	"encoding/binary"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camsim/sim"
)

// floatBuffer builds a float32 test buffer with value (x + y*width + c) / 10
// per channel.
func floatBuffer(width, height, channels int, names []string) sim.Buffer {
	data := make([]byte, width*height*channels*4)
	for i := 0; i < width*height*channels; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(float32(i)/10))
	}
	return sim.Buffer{
		Width:        width,
		Height:       height,
		Channels:     channels,
		ChannelNames: names,
		Data:         data,
	}
}

func TestBufferAt(t *testing.T) {
	buf := floatBuffer(4, 2, 3, []string{"r", "g", "b"})
	if got := buf.At(0, 0, 0); got != 0 {
		t.Fatalf("At(0,0,0) = %v, want 0", got)
	}
	if got := buf.At(1, 0, 2); got != 0.5 {
		t.Fatalf("At(1,0,2) = %v, want 0.5", got)
	}
	if got := buf.At(0, 1, 0); got != 1.2 {
		t.Fatalf("At(0,1,0) = %v, want 1.2", got)
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := WriteBuffer(path, floatBuffer(8, 4, 4, []string{"r", "g", "b", "a"})); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("written file is not a valid png: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 8 || bounds.Dy() != 4 {
		t.Fatalf("png size = %dx%d, want 8x4", bounds.Dx(), bounds.Dy())
	}
}

func TestWritePNM(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "frame.ppm")
	if err := WriteBuffer(path, floatBuffer(4, 2, 3, []string{"r", "g", "b"})); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	header := []byte("P6\n4 2\n255\n")
	if !bytes.HasPrefix(data, header) {
		t.Fatalf("ppm header = %q", data[:min(len(data), len(header))])
	}
	if got := len(data) - len(header); got != 4*2*3 {
		t.Fatalf("ppm payload = %d bytes, want 24", got)
	}

	path = filepath.Join(dir, "depth.pgm")
	if err := WriteBuffer(path, floatBuffer(4, 2, 1, []string{"depth"})); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("P5\n4 2\n255\n")) {
		t.Fatalf("pgm header = %q", data[:min(len(data), 12)])
	}
}

func TestWritePFM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "range.pfm")
	buf := floatBuffer(2, 2, 1, []string{"range"})
	if err := WriteBuffer(path, buf); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	header := []byte("Pf\n2 2\n-1.0\n")
	if !bytes.HasPrefix(data, header) {
		t.Fatalf("pfm header = %q", data[:min(len(data), len(header))])
	}
	payload := data[len(header):]
	if len(payload) != 2*2*4 {
		t.Fatalf("pfm payload = %d bytes, want 16", len(payload))
	}
	// Rows are stored bottom to top, so the file starts with row y=1.
	first := math.Float32frombits(binary.LittleEndian.Uint32(payload))
	if first != buf.At(0, 1, 0) {
		t.Fatalf("first pfm value = %v, want bottom row value %v", first, buf.At(0, 1, 0))
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmd.csv")
	buf := floatBuffer(2, 1, 2, []string{"range", "amplitude"})
	if err := WriteBuffer(path, buf); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv has %d lines, want header and one row", len(lines))
	}
	if lines[0] != "# width=2 height=1 channels=range,amplitude" {
		t.Fatalf("csv header = %q", lines[0])
	}
	if lines[1] != "0,0.1,0.2,0.3" {
		t.Fatalf("csv row = %q", lines[1])
	}
}

func TestWriteBufferUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.tiff")
	if err := WriteBuffer(path, floatBuffer(2, 2, 3, nil)); err == nil {
		t.Fatal("unsupported extension accepted")
	}
}

func TestExporter(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(2)
	for i := 0; i < 8; i++ {
		e.Export(filepath.Join(dir, "frame"+string(rune('a'+i))+".csv"),
			floatBuffer(2, 2, 1, []string{"v"}))
	}
	if err := e.Wait(); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 8 {
		t.Fatalf("%d files exported, want 8", len(entries))
	}

	e.Export(filepath.Join(dir, "missing", "frame.csv"), floatBuffer(2, 2, 1, nil))
	if err := e.Wait(); err == nil {
		t.Fatal("write into a missing directory reported no error")
	}
}
