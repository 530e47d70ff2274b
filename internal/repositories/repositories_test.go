package repositories

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if got != want {
			t.Errorf("NextSequence() = %d, want %d", got, want)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without a sequence")
	}
}

func TestRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("Pixel Watch", "Music", false)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create ValidationError", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if err := repo.Create(models.NewSyncRun("", "Music", false)); err == nil {
			t.Error("expected validation error for missing device name")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("Pixel Watch", "Music", true)
		run.SetStorageArea("Internal shared storage")
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.DeviceName() != "Pixel Watch" || got.RootFolder() != "Music" {
			t.Errorf("unexpected run: %s %s", got.DeviceName(), got.RootFolder())
		}
		if got.StorageArea() != "Internal shared storage" {
			t.Errorf("expected storage area to round trip, got %q", got.StorageArea())
		}
		if !got.DryRun() {
			t.Error("expected dry run flag to round trip")
		}
		if got.Status() != models.RunRunning {
			t.Errorf("expected running status, got %s", got.Status())
		}
		if got.CompletedAt() != nil {
			t.Error("expected no completion time")
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Get("nope"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if _, err := repo.GetBySequence(7); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("Pixel Watch", "Music", false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.SetCounts(3, 1, 2, 1, 1)
		run.Finish(nil)
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.GetBySequence(run.Sequence())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunPartial {
			t.Errorf("expected partial status, got %s", got.Status())
		}
		if got.DesiredCount() != 3 || got.MissingCount() != 2 || got.FailedCount() != 1 {
			t.Errorf("counts did not round trip: %d %d %d", got.DesiredCount(), got.MissingCount(), got.FailedCount())
		}
		if got.CompletedAt() == nil {
			t.Error("expected completion time")
		}
	})

	t.Run("Update Failed", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("Pixel Watch", "Music", false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Finish(shared.ErrFolderNotFound)
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunFailed || got.ErrorMessage() != shared.ErrFolderNotFound.Error() {
			t.Errorf("expected failed run with message, got %s %q", got.Status(), got.ErrorMessage())
		}
	})

	t.Run("Update NotFound", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("Pixel Watch", "Music", false)
		run.SetID("nope")
		if err := repo.Update(run); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("Pixel Watch", "Music", false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		items := []models.RunItem{{Source: "/music/A/song1.flac", Destination: "A/song1.flac", ContentID: "x", Stage: models.StageTransferred}}
		if err := repo.AddItems(run.ID(), items); err != nil {
			t.Fatalf("failed to add items: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(run.ID()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound after delete, got %v", err)
		}
		got, err := repo.Items(run.ID())
		if err != nil {
			t.Fatalf("failed to list items: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected items to be deleted, got %d", len(got))
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound on second delete, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for _, name := range []string{"Pixel Watch", "Galaxy Watch", "Pixel Watch"} {
			if err := repo.Create(models.NewSyncRun(name, "Music", false)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(all))
		}
		if all[0].Sequence() != 3 || all[2].Sequence() != 1 {
			t.Errorf("expected newest first, got %d..%d", all[0].Sequence(), all[2].Sequence())
		}

		pixel, err := repo.List(map[string]any{"device_name": "Pixel Watch"})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(pixel) != 2 {
			t.Errorf("expected 2 runs for device, got %d", len(pixel))
		}

		limited, err := repo.List(map[string]any{"limit": 1})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(limited) != 1 || limited[0].Sequence() != 3 {
			t.Errorf("expected only the newest run, got %d", len(limited))
		}

		running, err := repo.List(map[string]any{"status": string(models.RunCompleted)})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(running) != 0 {
			t.Errorf("expected no completed runs, got %d", len(running))
		}
	})

	t.Run("Items", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewSyncRun("Pixel Watch", "Music", false)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		items := []models.RunItem{
			{Source: "/music/B/song2.flac", Destination: "B/song2.flac", ContentID: "b", Stage: models.StageTranscode, Error: "encode failed"},
			{Source: "/music/A/song1.flac", Destination: "A/song1.flac", ContentID: "a", Artifact: "/cache/song1.mp4", Stage: models.StageTransferred, Bytes: 42},
		}
		if err := repo.AddItems(run.ID(), items); err != nil {
			t.Fatalf("failed to add items: %v", err)
		}
		if err := repo.AddItems(run.ID(), nil); err != nil {
			t.Errorf("AddItems(nil) error = %v", err)
		}

		got, err := repo.Items(run.ID())
		if err != nil {
			t.Fatalf("failed to list items: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 items, got %d", len(got))
		}
		if got[0].Destination != "A/song1.flac" || got[0].Bytes != 42 || got[0].Artifact != "/cache/song1.mp4" {
			t.Errorf("unexpected first item: %+v", got[0])
		}
		if got[1].Stage != models.StageTranscode || got[1].Error != "encode failed" || !got[1].Failed() {
			t.Errorf("unexpected second item: %+v", got[1])
		}
		if got[0].ID == "" || got[0].RunID != run.ID() {
			t.Errorf("expected generated ID and run ID, got %+v", got[0])
		}
	})
}
