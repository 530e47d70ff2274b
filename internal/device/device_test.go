package device_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	tu "github.com/desertthunder/mtpsync/internal/testing"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("selects candidate by friendly name", func(t *testing.T) {
		phone := tu.NewMemoryDevice("Phone")
		watch := tu.NewMemoryDevice("Pixel Watch")

		h, err := device.Open(ctx, tu.Backend{phone, watch}, "Pixel Watch")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer h.Close()

		if h.Name() != "Pixel Watch" {
			t.Errorf("expected Pixel Watch, got %s", h.Name())
		}
		if phone.Closed.Load() != 1 {
			t.Error("non-matching session should be closed")
		}
	})

	t.Run("skips candidates that fail to open or name", func(t *testing.T) {
		broken := tu.NewMemoryDevice("Pixel Watch")
		broken.OpenErr = errors.New("usb: resource busy")
		nameless := tu.NewMemoryDevice("Pixel Watch")
		nameless.NameErr = errors.New("no friendly name")
		good := tu.NewMemoryDevice("Pixel Watch")

		h, err := device.Open(ctx, tu.Backend{broken, nameless, good}, "Pixel Watch")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer h.Close()

		if nameless.Closed.Load() != 1 {
			t.Error("nameless session should be closed")
		}

		good.AddFolder(device.Root, "Music")
		objs, err := h.List(ctx, good.Area(), device.Root)
		if err != nil || len(objs) != 1 {
			t.Errorf("expected handle to be bound to the healthy device, got %v, %v", objs, err)
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, err := device.Open(ctx, tu.Backend{tu.NewMemoryDevice("Phone")}, "Pixel Watch")
		if !errors.Is(err, shared.ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		_, err := device.Open(ctx, tu.Backend{}, "Pixel Watch")
		if !errors.Is(err, shared.ErrDeviceNotFound) {
			t.Errorf("expected ErrDeviceNotFound, got %v", err)
		}
	})
}

func TestStorageAreas(t *testing.T) {
	ctx := context.Background()

	t.Run("none reported", func(t *testing.T) {
		empty := &noAreas{MemoryDevice: tu.NewMemoryDevice("Watch")}
		h, err := device.Open(ctx, tu.Backend{empty}, "Watch")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer h.Close()

		if _, err := h.StorageAreas(ctx); !errors.Is(err, shared.ErrNoStorageArea) {
			t.Errorf("expected ErrNoStorageArea, got %v", err)
		}
		if _, err := h.SelectArea(ctx); !errors.Is(err, shared.ErrNoStorageArea) {
			t.Errorf("expected ErrNoStorageArea from SelectArea, got %v", err)
		}
	})

	t.Run("SelectArea picks most free space", func(t *testing.T) {
		d := tu.NewMemoryDevice("Watch",
			device.Area{ID: "a", FreeBytes: 100},
			device.Area{ID: "b", FreeBytes: 500},
			device.Area{ID: "c", FreeBytes: 500},
		)
		h, err := device.Open(ctx, tu.Backend{d}, "Watch")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer h.Close()

		area, err := h.SelectArea(ctx)
		if err != nil {
			t.Fatalf("SelectArea() error = %v", err)
		}
		if area.ID != "b" {
			t.Errorf("expected first area with most free space (b), got %s", area.ID)
		}
	})
}

// noAreas wraps a MemoryDevice so it reports no storage areas.
type noAreas struct {
	*tu.MemoryDevice
}

func (n *noAreas) Open(ctx context.Context) (device.Session, error) { return n, nil }

func (n *noAreas) StorageAreas(ctx context.Context) ([]device.Area, error) { return nil, nil }

func TestHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("Close is idempotent and blocks further calls", func(t *testing.T) {
		d := tu.NewMemoryDevice("Watch")
		h, err := device.Open(ctx, tu.Backend{d}, "Watch")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}

		if err := h.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := h.Close(); err != nil {
			t.Fatalf("second Close() error = %v", err)
		}
		if d.Closed.Load() != 1 {
			t.Errorf("session should be closed exactly once, got %d", d.Closed.Load())
		}

		if _, err := h.List(ctx, d.Area(), device.Root); !errors.Is(err, shared.ErrDeviceClosed) {
			t.Errorf("expected ErrDeviceClosed, got %v", err)
		}
	})

	t.Run("serialises concurrent calls", func(t *testing.T) {
		d := tu.NewMemoryDevice("Watch")
		d.ChunkSize = 1
		music := d.AddFolder(device.Root, "Music")
		h, err := device.Open(ctx, tu.Backend{d}, "Watch")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer h.Close()

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(2)
			go func() {
				defer wg.Done()
				info := device.ObjectInfo{Name: string(rune('a'+i)) + ".mp4", Size: 16}
				h.Send(ctx, d.Area(), music, info, bytes.NewReader(make([]byte, 16)), nil)
			}()
			go func() {
				defer wg.Done()
				h.List(ctx, d.Area(), music)
			}()
		}
		wg.Wait()

		if d.Overlap.Load() {
			t.Error("device saw overlapping calls")
		}
		if got := len(d.Files()); got != 8 {
			t.Errorf("expected 8 files, got %d", got)
		}
	})
}

func TestMostFree(t *testing.T) {
	areas := []device.Area{{ID: "x", FreeBytes: 7}, {ID: "y", FreeBytes: 7}}
	if got := device.MostFree(areas); got.ID != "x" {
		t.Errorf("ties should go to the first area, got %s", got.ID)
	}
}

func TestMountName(t *testing.T) {
	tc := []struct {
		dir  string
		want string
	}{
		{dir: "/run/user/1000/gvfs/mtp:host=Google_Pixel_Watch_1A2B3C", want: "Google Pixel Watch 1A2B3C"},
		{dir: "/media/me/Pixel Watch", want: "Pixel Watch"},
		{dir: "/mnt/mtp/watch/", want: "watch"},
	}
	for _, tt := range tc {
		if got := device.MountName(tt.dir); got != tt.want {
			t.Errorf("MountName(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestMountBackend(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	mount := filepath.Join(base, "mtp:host=Pixel_Watch")
	tu.MustWriteFile(t, filepath.Join(mount, "Internal shared storage", "Music", "A", "old.mp4"), "old")
	tu.MustWriteFile(t, filepath.Join(mount, "Internal shared storage", "Music.txt"), "not a folder")
	tu.MustWriteFile(t, filepath.Join(base, "stray-file"), "ignored")

	backend := device.NewMountBackend(filepath.Join(base, "*"))
	candidates, err := backend.Candidates(ctx)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 directory candidate, got %d", len(candidates))
	}

	h, err := device.Open(ctx, backend, "Pixel Watch")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer h.Close()

	areas, err := h.StorageAreas(ctx)
	if err != nil {
		t.Fatalf("StorageAreas() error = %v", err)
	}
	if len(areas) != 1 || areas[0].Description != "Internal shared storage" {
		t.Fatalf("unexpected areas: %+v", areas)
	}
	area := areas[0]

	root, err := h.List(ctx, area, device.Root)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var music device.Object
	for _, o := range root {
		if o.Name == "Music" {
			music = o
		}
	}
	if music.Kind != models.KindFolder {
		t.Fatalf("expected Music folder in %+v", root)
	}

	t.Run("Send renames into place", func(t *testing.T) {
		var calls int
		id, err := h.Send(ctx, area, music.ID, device.ObjectInfo{Name: "new.mp4", Size: 5}, bytes.NewReader([]byte("hello")),
			func(sent, total int64) error {
				calls++
				return nil
			})
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if calls == 0 {
			t.Error("expected progress callbacks")
		}
		if got := tu.MustReadFile(t, string(id)); got != "hello" {
			t.Errorf("unexpected content %q", got)
		}
	})

	t.Run("aborted Send leaves nothing behind", func(t *testing.T) {
		stop := errors.New("stop")
		_, err := h.Send(ctx, area, music.ID, device.ObjectInfo{Name: "aborted.mp4", Size: 5}, bytes.NewReader([]byte("hello")),
			func(sent, total int64) error { return stop })
		if !errors.Is(err, stop) {
			t.Fatalf("expected progress error, got %v", err)
		}

		entries, err := os.ReadDir(string(music.ID))
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if e.Name() != "A" && e.Name() != "new.mp4" {
				t.Errorf("unexpected leftover %s", e.Name())
			}
		}
	})

	t.Run("Delete refuses paths outside the area", func(t *testing.T) {
		if err := h.Delete(ctx, area, device.ObjectID(filepath.Join(base, "stray-file"))); err == nil {
			t.Error("expected error deleting outside storage area")
		}
		tu.AssertFileExists(t, filepath.Join(base, "stray-file"))
	})
}
