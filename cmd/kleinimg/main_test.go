package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kleinimg/internal/document"
	"kleinimg/internal/host"
)

type fixture struct {
	config   string
	images   string
	document string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		config:   filepath.Join(dir, "config.yaml"),
		images:   filepath.Join(dir, "data", "images"),
		document: filepath.Join(dir, "doc.json"),
	}

	cfg := "app_data_dir: \"" + filepath.Join(dir, "data") + "\"\nmax_workers: 2\nlog:\n  level: error\n"
	if err := os.WriteFile(f.config, []byte(cfg), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	store, err := host.NewImageStore(f.images)
	if err != nil {
		t.Fatalf("Failed to create image store: %v", err)
	}
	hash, err := store.Put(encodePNG(t, 300, 200))
	if err != nil {
		t.Fatalf("Failed to store image: %v", err)
	}

	fill := []document.Paint{{Type: document.PaintImage, ScaleMode: document.ScaleFit, ImageHash: hash}}
	doc := &document.Document{
		Nodes: []*document.Node{
			{ID: "hero", Width: 60, Height: 40, Fills: fill},
			{ID: "thumb", Width: 30, Height: 20, Fills: append([]document.Paint(nil), fill...)},
		},
		Selection: []string{"hero", "thumb"},
	}
	if err := doc.Save(f.document); err != nil {
		t.Fatalf("Failed to save document: %v", err)
	}
	return f
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := rng.Uint32()
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fillHashes(t *testing.T, path string) map[string]string {
	t.Helper()
	doc, err := document.Load(path)
	if err != nil {
		t.Fatalf("Failed to load document: %v", err)
	}
	hashes := make(map[string]string)
	for id, n := range doc.Index() {
		if len(n.Fills) > 0 {
			hashes[id] = n.Fills[0].ImageHash
		}
	}
	return hashes
}

func TestScanCommand(t *testing.T) {
	f := newFixture(t)

	out, err := run(t, "--config", f.config, "scan", f.document)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, want := range []string{"hero", "thumb", "300x200", "2 image fills"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	out, err = run(t, "--config", f.config, "scan", "--select", "thumb", f.document)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Contains(out, "hero") || !strings.Contains(out, "1 image fills") {
		t.Errorf("Expected only the selected node, got:\n%s", out)
	}
}

func TestCompressCommand(t *testing.T) {
	f := newFixture(t)
	before := fillHashes(t, f.document)

	out, err := run(t, "--config", f.config, "--wire", "compress", "--quality", "60", "--skip", "thumb", f.document)
	if err != nil {
		t.Fatalf("Expected no error, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "Saved") || !strings.Contains(out, "skipped") {
		t.Errorf("Expected savings and a skipped row, got:\n%s", out)
	}

	after := fillHashes(t, f.document)
	if after["hero"] == before["hero"] {
		t.Error("Expected hero fill to be replaced")
	}
	if after["thumb"] != before["thumb"] {
		t.Error("Expected skipped thumb fill to be unchanged")
	}

	out, err = run(t, "--config", f.config, "stats")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out, "Images compressed: 1") || !strings.Contains(out, "hero") {
		t.Errorf("Expected one recorded compression, got:\n%s", out)
	}
}

func TestCompressCommand_Output(t *testing.T) {
	f := newFixture(t)
	before := fillHashes(t, f.document)
	out := filepath.Join(t.TempDir(), "small.json")

	if _, err := run(t, "--config", f.config, "compress", "--output", out, f.document); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	copied := fillHashes(t, out)
	for id, h := range fillHashes(t, f.document) {
		if before[id] != h {
			t.Errorf("Expected input document to stay unchanged for %s", id)
		}
		if copied[id] == h {
			t.Errorf("Expected output document to replace the fill of %s", id)
		}
	}
}

func TestCompressCommand_DryRun(t *testing.T) {
	f := newFixture(t)
	before := fillHashes(t, f.document)

	out, err := run(t, "--config", f.config, "compress", "--dry-run", f.document)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(out, "Ready to compress!") {
		t.Errorf("Expected ready status, got:\n%s", out)
	}

	after := fillHashes(t, f.document)
	for id, h := range before {
		if after[id] != h {
			t.Errorf("Expected dry run to leave %s unchanged", id)
		}
	}
}

func TestCompressCommand_InvalidQuality(t *testing.T) {
	f := newFixture(t)
	if _, err := run(t, "--config", f.config, "compress", "--quality", "0", f.document); err == nil {
		t.Error("Expected invalid quality to be rejected")
	}
}

func TestImportCommand(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, encodePNG(t, 8, 8), 0644); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}

	out, err := run(t, "--config", f.config, "import", path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	hash := strings.Fields(out)[0]
	store, err := host.NewImageStore(f.images)
	if err != nil {
		t.Fatalf("Failed to open image store: %v", err)
	}
	if _, err := store.Path(hash); err != nil {
		t.Errorf("Expected imported image %s in store: %v", hash, err)
	}

	if _, err := run(t, "--config", f.config, "import", filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Expected error importing a missing file")
	}
}
