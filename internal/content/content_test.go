package content_test

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/mtpsync/internal/content"
	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	tu "github.com/desertthunder/mtpsync/internal/testing"
)

func TestCanonical(t *testing.T) {
	tc := []struct {
		in   string
		want string
	}{
		{in: "A/song1.flac", want: "A/song1"},
		{in: "/A/song1.mp4", want: "A/song1"},
		{in: "A//B/../song.flac", want: "A/song"},
		{in: "album.v2/track.tar.gz", want: "album.v2/track.tar"},
		{in: "A/.hidden", want: "A/.hidden"},
		{in: "noext", want: "noext"},
		{in: "", want: ""},
		{in: "/", want: ""},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := content.Canonical(tt.in); got != tt.want {
				t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIdentifier(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		if content.Identifier("A/song1.flac") != content.Identifier("A/song1.flac") {
			t.Error("identifier must be deterministic")
		}
	})

	t.Run("extension invariant", func(t *testing.T) {
		if content.Identifier("A/song1.flac") != content.Identifier("A/song1.mp4") {
			t.Error("identifier must ignore the last extension")
		}
	})

	t.Run("distinct for distinct paths", func(t *testing.T) {
		if content.Identifier("A/song1.flac") == content.Identifier("B/song1.flac") {
			t.Error("different folders must produce different identifiers")
		}
	})

	t.Run("known digest", func(t *testing.T) {
		// SHA3-256 of the empty string.
		const empty = "a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a"
		if got := content.Identifier(""); got != empty {
			t.Errorf("Identifier(\"\") = %s", got)
		}
	})

	t.Run("shape", func(t *testing.T) {
		id := content.Identifier("A/song1.flac")
		if !content.IsIdentifier(id) {
			t.Errorf("%s should be a valid identifier", id)
		}
		if content.IsIdentifier("ABC") || content.IsIdentifier(id[:63]+"Z") {
			t.Error("malformed identifiers should be rejected")
		}
	})
}

func TestFlatten(t *testing.T) {
	tree := models.NewFolder("Music", "1",
		models.NewFolder("A", "2",
			models.NewFile("song1.mp4", "3"),
			models.NewFolder("Live", "4", models.NewFile("encore.m4a", "5")),
		),
		models.NewFolder("Empty", "6"),
		models.NewFile(content.Identifier("B/song2.flac")+".mp4", "7"),
	)

	idx := content.Flatten(tree)

	if idx.Len() != 3 {
		t.Errorf("expected 3 identifiers, got %d", idx.Len())
	}
	for _, rel := range []string{"A/song1.flac", "A/Live/encore.wav", "B/song2.flac"} {
		if !idx.Exists(rel) {
			t.Errorf("expected %s to exist", rel)
		}
	}
	for _, rel := range []string{"Music/A/song1.flac", "song1.flac", "Empty"} {
		if idx.Exists(rel) {
			t.Errorf("did not expect %s to exist", rel)
		}
	}

	t.Run("pure function of the tree", func(t *testing.T) {
		again := content.Flatten(tree)
		a, b := idx.IDs(), again.IDs()
		if len(a) != len(b) {
			t.Fatalf("flattening twice produced different sizes")
		}
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("identifier %d differs: %s vs %s", i, a[i], b[i])
			}
		}
	})

	t.Run("empty tree", func(t *testing.T) {
		if content.Flatten(models.NewFolder("Music", "1")).Len() != 0 {
			t.Error("empty folder should produce an empty index")
		}
	})
}

func TestFindFolder(t *testing.T) {
	ctx := context.Background()
	d := tu.NewMemoryDevice("Watch")
	d.AddFile(device.Root, "Music.txt", "notes")
	d.AddFile(device.Root, "Music", "a file named Music")
	want := d.AddFolder(device.Root, "Music")
	d.AddFolder(device.Root, "Music")
	d.AddFolder(device.Root, "music")

	t.Run("prefers folder over file, first match wins", func(t *testing.T) {
		got, err := content.FindFolder(ctx, d, d.Area(), "Music")
		if err != nil {
			t.Fatalf("FindFolder() error = %v", err)
		}
		if got != want {
			t.Errorf("FindFolder() = %s, want %s", got, want)
		}
	})

	t.Run("case sensitive miss", func(t *testing.T) {
		_, err := content.FindFolder(ctx, d, d.Area(), "MUSIC")
		if !errors.Is(err, shared.ErrFolderNotFound) {
			t.Errorf("expected ErrFolderNotFound, got %v", err)
		}
	})

	t.Run("does not recurse", func(t *testing.T) {
		d.AddFolder(want, "Podcasts")
		_, err := content.FindFolder(ctx, d, d.Area(), "Podcasts")
		if !errors.Is(err, shared.ErrFolderNotFound) {
			t.Errorf("expected ErrFolderNotFound for nested folder, got %v", err)
		}
	})
}

func TestBuildTree(t *testing.T) {
	ctx := context.Background()
	d := tu.NewMemoryDevice("Watch")
	music := d.MkdirAll("Music")
	a := d.MkdirAll("Music/A")
	d.AddFile(a, "song1.mp4", "x")
	d.MkdirAll("Music/A/Deep/Deeper/Deepest")
	d.AddFile(music, "loose.mp4", "y")

	tree, err := content.BuildTree(ctx, d, d.Area(), music, "Music")
	if err != nil {
		t.Fatalf("BuildTree() error = %v", err)
	}

	if tree.Name != "Music" || tree.Kind != models.KindFolder {
		t.Errorf("unexpected root %+v", tree)
	}
	if tree.CountFiles() != 2 {
		t.Errorf("expected 2 files, got %d", tree.CountFiles())
	}

	var check func(n models.TreeNode)
	check = func(n models.TreeNode) {
		switch n.Kind {
		case models.KindFolder:
			if n.Children == nil {
				t.Errorf("folder %s has nil children", n.Name)
			}
			for _, c := range n.Children {
				check(c)
			}
		case models.KindFile:
			if n.Children != nil {
				t.Errorf("file %s has children", n.Name)
			}
		}
	}
	check(tree)

	if !content.Flatten(tree).Exists("A/song1.flac") {
		t.Error("expected A/song1 in flattened tree")
	}

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := content.BuildTree(cctx, d, d.Area(), music, "Music")
		if !errors.Is(err, shared.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	})

	t.Run("list failure", func(t *testing.T) {
		_, err := content.BuildTree(ctx, d, d.Area(), device.ObjectID("999"), "Missing")
		if err == nil {
			t.Error("expected error for unknown folder")
		}
	})
}
