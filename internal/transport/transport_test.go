package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"kleinimg/internal/common"
	"kleinimg/internal/config"
	compressionDomain "kleinimg/internal/domain/compression"
	preferencesDomain "kleinimg/internal/domain/preferences"
	statisticsDomain "kleinimg/internal/domain/statistics"
)

type emitted struct {
	name string
	data []any
}

type fakeEmitter struct {
	events []emitted
}

func (e *fakeEmitter) Emit(name string, data ...any) {
	e.events = append(e.events, emitted{name: name, data: data})
}

type fakeStats struct {
	stats statisticsDomain.AppStats
	err   error
}

func (s *fakeStats) GetStats() (*statisticsDomain.AppStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &s.stats, nil
}

func (s *fakeStats) History(limit int) ([]statisticsDomain.Record, error) {
	return make([]statisticsDomain.Record, limit), nil
}

func (s *fakeStats) OnUpdate(fn func()) {}

type fakeDialogs struct {
	document  string
	images    []string
	save      string
	suggested string
}

func (d *fakeDialogs) OpenDocumentDialog() (string, error) { return d.document, nil }
func (d *fakeDialogs) OpenImagesDialog() ([]string, error) { return d.images, nil }

func (d *fakeDialogs) ShowSaveDialog(name string) (string, error) {
	d.suggested = name
	return d.save, nil
}

type fakeService struct {
	compressionDomain.Service
	opened []string
	copies []string
}

func (s *fakeService) SaveCopy(path string) error {
	s.copies = append(s.copies, path)
	return nil
}

func (s *fakeService) OpenDocument(ctx context.Context, path string) error {
	if path == "broken.json" {
		return common.ErrNoDocument
	}
	s.opened = append(s.opened, path)
	return nil
}

func (s *fakeService) DocumentPath() string {
	if len(s.opened) == 0 {
		return ""
	}
	return s.opened[len(s.opened)-1]
}

type fakeImporter struct {
	failOn string
}

func (i *fakeImporter) ImportImage(path string) (string, error) {
	if path == i.failOn {
		return "", errors.New("not an image")
	}
	return "hash-" + path, nil
}

type fakePrefs struct{}

func (fakePrefs) GetPreferences() (*preferencesDomain.UserPreferencesData, error) {
	return &preferencesDomain.UserPreferencesData{Quality: common.DefaultQuality}, nil
}

func (fakePrefs) UpdatePreferences(map[string]any) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(dialogs *fakeDialogs, service *fakeService, importer *fakeImporter) *WailsApp {
	cfg := &config.Config{Logger: testLogger(), ImageDir: "/images", MaxWorkers: 4}
	return NewWailsApp(context.Background(), cfg, service, fakePrefs{}, &fakeStats{}, importer, dialogs)
}

func TestEventBridge(t *testing.T) {
	emitter := &fakeEmitter{}
	stats := &fakeStats{stats: statisticsDomain.AppStats{TotalImagesCompressed: 3}}
	bridge := NewEventBridge(emitter, stats, testLogger())

	bridge.ViewChanged(compressionDomain.View{Status: "Ready to compress!"})
	bridge.NodeFocused("n1")
	bridge.CompressFailed(compressionDomain.CompressFailure{ImageHash: "h1", Error: "boom"})
	bridge.StatsChanged()

	expected := []string{
		common.EventSessionUpdate,
		common.EventImageFocus,
		common.EventCompressError,
		common.EventStatsUpdate,
	}
	if len(emitter.events) != len(expected) {
		t.Fatalf("Expected %d events, got %d", len(expected), len(emitter.events))
	}
	for i, name := range expected {
		if emitter.events[i].name != name {
			t.Errorf("Event %d: expected %s, got %s", i, name, emitter.events[i].name)
		}
	}

	if got := emitter.events[1].data[0]; got != "n1" {
		t.Errorf("Expected focus payload n1, got %v", got)
	}
	if got := emitter.events[3].data[0].(*statisticsDomain.AppStats); got.TotalImagesCompressed != 3 {
		t.Errorf("Expected stats payload with 3 images, got %+v", got)
	}
}

func TestEventBridge_StatsError(t *testing.T) {
	emitter := &fakeEmitter{}
	bridge := NewEventBridge(emitter, &fakeStats{err: errors.New("db closed")}, testLogger())

	bridge.StatsChanged()
	if len(emitter.events) != 0 {
		t.Errorf("Expected no event when stats fail, got %+v", emitter.events)
	}
}

func TestOpenDocument(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		dialog   string
		expected string
		wantErr  bool
	}{
		{"explicit path", "a.json", "ignored.json", "a.json", false},
		{"dialog", "", "picked.json", "picked.json", false},
		{"dialog cancelled", "", "", "", false},
		{"open fails", "broken.json", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeService{}
			app := newTestApp(&fakeDialogs{document: tt.dialog}, service, &fakeImporter{})

			got, err := app.OpenDocument(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.expected {
				t.Errorf("Expected opened path %q, got %q", tt.expected, got)
			}
			if tt.expected == "" && len(service.opened) != 0 {
				t.Errorf("Expected nothing opened, got %v", service.opened)
			}
		})
	}
}

func TestSaveCopy(t *testing.T) {
	tests := []struct {
		name     string
		opened   []string
		save     string
		expected string
		wantErr  error
	}{
		{"no document", nil, "copy.json", "", common.ErrNoDocument},
		{"dialog cancelled", []string{"/work/doc.json"}, "", "", nil},
		{"saved", []string{"/work/doc.json"}, "/out/copy.json", "/out/copy.json", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeService{opened: tt.opened}
			dialogs := &fakeDialogs{save: tt.save}
			app := newTestApp(dialogs, service, &fakeImporter{})

			got, err := app.SaveCopy()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.expected {
				t.Errorf("Expected saved path %q, got %q", tt.expected, got)
			}
			if tt.expected != "" {
				if dialogs.suggested != "doc-compressed.json" {
					t.Errorf("Expected suggested name doc-compressed.json, got %q", dialogs.suggested)
				}
				if len(service.copies) != 1 || service.copies[0] != tt.expected {
					t.Errorf("Expected copy at %s, got %v", tt.expected, service.copies)
				}
			} else if len(service.copies) != 0 {
				t.Errorf("Expected no copy, got %v", service.copies)
			}
		})
	}
}

func TestImportImages(t *testing.T) {
	dialogs := &fakeDialogs{images: []string{"a.png", "b.png", "c.txt", "d.png"}}
	app := newTestApp(dialogs, &fakeService{}, &fakeImporter{failOn: "c.txt"})

	hashes, err := app.ImportImages()
	if err == nil {
		t.Fatal("Expected import error for c.txt")
	}
	if len(hashes) != 2 || hashes[1] != "hash-b.png" {
		t.Errorf("Expected hashes imported before the failure, got %v", hashes)
	}
}

func TestGetAppStatus(t *testing.T) {
	service := &fakeService{opened: []string{"doc.json"}}
	app := newTestApp(&fakeDialogs{}, service, &fakeImporter{})

	status := app.GetAppStatus()
	if status.DocumentPath != "doc.json" || status.MaxWorkers != 4 || status.ImageDir != "/images" {
		t.Errorf("Unexpected status %+v", status)
	}

	history, err := app.GetHistory(0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(history) != 50 {
		t.Errorf("Expected default history limit 50, got %d", len(history))
	}
}
