package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/desertthunder/mtpsync/internal/tasks"
	tu "github.com/desertthunder/mtpsync/internal/testing"
	"github.com/desertthunder/mtpsync/internal/transcode"
)

func newTestModel(t *testing.T, files ...string) (*Model, *tu.MemoryDevice) {
	t.Helper()
	lib := t.TempDir()
	desired := models.NewDesiredSet()
	for _, f := range files {
		desired.Add(tu.MustWriteFile(t, filepath.Join(lib, filepath.FromSlash(f)), f))
	}

	d := tu.NewMemoryDevice("Pixel Watch")
	d.MkdirAll("Music")
	h, err := device.Open(context.Background(), tu.Backend{d}, "Pixel Watch")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { h.Close() })

	engine := tasks.NewDeviceEngine(tasks.EngineOpts{
		Transcoder:  transcode.NewTranscoder(transcode.TranscoderOpts{CacheDir: t.TempDir(), Encoder: &tu.FakeEncoder{}}),
		LibraryRoot: lib,
		RootFolder:  "Music",
		Workers:     2,
	})

	m := NewModel(context.Background(), ModelOpts{
		Engine:  engine,
		Device:  h,
		Desired: func(context.Context) (models.DesiredSet, error) { return desired, nil },
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, d
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// drain feeds progress messages back into the model until the run completes.
func drain(t *testing.T, m *Model) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		msg := m.waitForProgress()()
		if msg == nil {
			return
		}
		m.Update(msg)
		if m.ViewState() == ResultView {
			return
		}
	}
	t.Fatal("run did not complete")
}

func TestModel(t *testing.T) {
	t.Run("diff then sync", func(t *testing.T) {
		m, d := newTestModel(t, "A/song1.flac", "B/song2.flac")

		if !strings.Contains(m.View(), "Reading playlists") {
			t.Errorf("expected loading view, got:\n%s", m.View())
		}

		m.Update(m.computeDiff()())
		if m.ViewState() != DiffView || m.Err() != nil {
			t.Fatalf("expected diff view, got %v (%v)", m.ViewState(), m.Err())
		}
		if !strings.Contains(m.View(), "2 of 2 item(s) missing") {
			t.Errorf("expected missing count in view, got:\n%s", m.View())
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.ViewState() != ConfirmView {
			t.Fatalf("expected confirm view, got %v", m.ViewState())
		}
		if !strings.Contains(m.View(), "Sync 2 item(s) to 'Pixel Watch'?") {
			t.Errorf("unexpected confirm view:\n%s", m.View())
		}

		m.Update(keyRune('y'))
		if m.ViewState() != TransferView {
			t.Fatalf("expected transfer view, got %v", m.ViewState())
		}
		drain(t, m)

		if m.Result() == nil || m.Err() != nil {
			t.Fatalf("expected a successful result, got %v", m.Err())
		}
		if !strings.Contains(m.View(), "Sync complete") {
			t.Errorf("unexpected result view:\n%s", m.View())
		}
		if got := len(d.Files()); got != 2 {
			t.Errorf("expected 2 files on device, got %d", got)
		}

		lists := d.ListCalls()
		m.Update(keyRune('r'))
		m.Update(m.computeDiff()())
		if d.ListCalls() <= lists {
			t.Error("expected refresh to re-index the device")
		}
		if !strings.Contains(m.View(), "Device is up to date") {
			t.Errorf("expected up to date view after refresh, got:\n%s", m.View())
		}
	})

	t.Run("decline returns to diff", func(t *testing.T) {
		m, d := newTestModel(t, "A/song1.flac")
		m.Update(m.computeDiff()())
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(keyRune('n'))

		if m.ViewState() != DiffView {
			t.Errorf("expected diff view, got %v", m.ViewState())
		}
		if d.Sends.Load() != 0 {
			t.Error("expected nothing to be sent")
		}
	})

	t.Run("resolve error", func(t *testing.T) {
		m, _ := newTestModel(t)
		m.loadDesired = func(context.Context) (models.DesiredSet, error) {
			return nil, shared.ErrPlaylistNotFound
		}

		m.Update(m.computeDiff()())
		if !errors.Is(m.Err(), shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", m.Err())
		}
		if !strings.Contains(m.View(), "Error:") {
			t.Errorf("expected error view, got:\n%s", m.View())
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.ViewState() != DiffView {
			t.Errorf("enter should not confirm after an error, got %v", m.ViewState())
		}
	})

	t.Run("quit", func(t *testing.T) {
		m, _ := newTestModel(t)
		_, cmd := m.Update(keyRune('q'))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestFraction(t *testing.T) {
	tests := []struct {
		n, total int64
		want     float64
	}{
		{0, 0, 0},
		{1, 0, 0},
		{1, 4, 0.25},
		{4, 4, 1},
	}
	for _, tt := range tests {
		if got := fraction(tt.n, tt.total); got != tt.want {
			t.Errorf("fraction(%d, %d) = %v, want %v", tt.n, tt.total, got, tt.want)
		}
	}
}

func TestPalette(t *testing.T) {
	p := NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")
	tc := []struct {
		name  string
		style func() string
	}{
		{name: "title", style: func() string { return p.title.Render("Sync") }},
		{name: "ok", style: func() string { return p.ok.Render("Sync") }},
		{name: "err", style: func() string { return p.err.Render("Sync") }},
		{name: "warn", style: func() string { return p.warn.Render("Sync") }},
		{name: "help", style: func() string { return p.help.Render("Sync") }},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.style(); !strings.Contains(got, "Sync") {
				t.Errorf("%s style lost its text: %q", tt.name, got)
			}
		})
	}
}
