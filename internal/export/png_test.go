package export

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"texpaint/internal/canvas"
	"texpaint/internal/domain"
)

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return img
}

func nrgba(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func TestExportPNG_RelativePathGoesToExports(t *testing.T) {
	ws, c := sampleWorkspace(t)
	path, err := ExportPNG(ws, c, "plain.png", PNGOptions{})
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	if path != filepath.Join(ws.Root, "exports", "plain.png") {
		t.Fatalf("path = %s", path)
	}
	img := decode(t, path)
	if img.Bounds().Dx() != 8 {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
	if got := nrgba(img, 0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Fatalf("(0,0) = %+v", got)
	}
}

func TestExportPNG_PointScaleKeepsHardEdges(t *testing.T) {
	ws, c := sampleWorkspace(t)
	path, err := ExportPNG(ws, c, filepath.Join(t.TempDir(), "x4.png"), PNGOptions{Scale: 4})
	if err != nil {
		t.Fatal(err)
	}
	img := decode(t, path)
	if img.Bounds().Dx() != 32 {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
	red := color.NRGBA{R: 255, A: 255}
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	if nrgba(img, 3, 3) != red || nrgba(img, 4, 4) != white {
		t.Fatalf("texel block edge blurred: %+v %+v", nrgba(img, 3, 3), nrgba(img, 4, 4))
	}
}

func TestScale_BilinearBlends(t *testing.T) {
	c, _ := canvas.New(2, canvas.WithFilter(domain.FilterBilinear))
	c.Fill(domain.White)
	c.Set(0, 0, domain.Black)
	img := Scale(c.Image(), 8, c.Filter())
	mid := nrgba(img, 8, 4)
	if mid.R == 0 || mid.R == 255 {
		t.Fatalf("expected a blended value at the texel seam, got %+v", mid)
	}
}

func TestTile_WrapModes(t *testing.T) {
	c, _ := canvas.New(4)
	c.Fill(domain.White)
	c.Set(0, 0, domain.Red)
	c.Set(3, 0, domain.Black)
	src := c.Image()
	red := color.NRGBA{R: 255, A: 255}
	black := color.NRGBA{A: 255}

	rep := Tile(src, 2, domain.WrapRepeat)
	if rep.Bounds().Dx() != 8 || nrgba(rep, 4, 0) != red || nrgba(rep, 7, 0) != black {
		t.Fatalf("repeat tiling wrong")
	}
	mir := Tile(src, 2, domain.WrapMirror)
	if nrgba(mir, 4, 0) != black || nrgba(mir, 7, 0) != red {
		t.Fatalf("mirror tiling wrong: %+v %+v", nrgba(mir, 4, 0), nrgba(mir, 7, 0))
	}
	clamp := Tile(src, 2, domain.WrapClamp)
	for x := 3; x < 8; x++ {
		if nrgba(clamp, x, 0) != black {
			t.Fatalf("clamp did not extend edge at x=%d", x)
		}
	}
}

func TestExportPNG_RejectsHugeOutput(t *testing.T) {
	c, _ := canvas.New(512)
	if _, err := ExportPNG(nil, c, filepath.Join(t.TempDir(), "huge.png"), PNGOptions{Scale: 8, Tiles: 3}); err == nil || !strings.Contains(err.Error(), "limit") {
		t.Fatalf("err = %v", err)
	}
	if _, err := ExportPNG(nil, c, "", PNGOptions{}); err == nil {
		t.Fatalf("empty path accepted")
	}
}
