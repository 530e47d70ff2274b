package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `
	id, sequence, device_name, storage_area, root_folder, status,
	desired_count, indexed_count, missing_count, transferred_count, failed_count,
	dry_run, error_message, started_at, completed_at, created_at, updated_at
`

// RunRepository implements models.Repository[*models.SyncRun] for run history.
//
// It also records per-item outcomes so that a run can be inspected after the fact.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.SyncRun] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run with a generated ID and sequence
func (r *RunRepository) Create(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.Exec(query,
		id,
		sequence,
		run.DeviceName(),
		run.StorageArea(),
		run.RootFolder(),
		string(run.Status()),
		run.DesiredCount(),
		run.IndexedCount(),
		run.MissingCount(),
		run.TransferredCount(),
		run.FailedCount(),
		run.DryRun(),
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	run.SetID(id)
	run.SetSequence(sequence)
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`
	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// GetBySequence retrieves a run by its sequence number
func (r *RunRepository) GetBySequence(sequence int) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE sequence = ?`
	run, err := scanRun(r.db.QueryRow(query, sequence))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: #%d", ErrRunNotFound, sequence)
	}
	return run, err
}

// Update writes the mutable fields of an existing run
func (r *RunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)

	query := `
		UPDATE runs
		SET storage_area = ?, status = ?, desired_count = ?, indexed_count = ?,
			missing_count = ?, transferred_count = ?, failed_count = ?,
			error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		run.StorageArea(),
		string(run.Status()),
		run.DesiredCount(),
		run.IndexedCount(),
		run.MissingCount(),
		run.TransferredCount(),
		run.FailedCount(),
		nullString(run.ErrorMessage()),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID())
	}
	return nil
}

// Delete removes a run and its items
func (r *RunRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM run_items WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run items: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	return tx.Commit()
}

// List retrieves runs newest first.
//
// Supported criteria: "device_name" (string), "status" (string), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	if device, ok := criteria["device_name"].(string); ok && device != "" {
		query += " AND device_name = ?"
		args = append(args, device)
	}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// AddItems records the outcome of each item in a run within a single transaction
func (r *RunRepository) AddItems(runID string, items []models.RunItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO run_items (
			id, run_id, source_path, destination, content_id, artifact_path,
			stage, bytes, error_message, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, item := range items {
		id := item.ID
		if id == "" {
			id = shared.GenerateID()
		}
		created := item.CreatedAt
		if created.IsZero() {
			created = now
		}

		_, err := stmt.Exec(
			id,
			runID,
			item.Source,
			item.Destination,
			item.ContentID,
			nullString(item.Artifact),
			string(item.Stage),
			item.Bytes,
			nullString(item.Error),
			created,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.Destination, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit items: %w", err)
	}
	return nil
}

// Items returns the recorded items of a run ordered by destination
func (r *RunRepository) Items(runID string) ([]models.RunItem, error) {
	query := `
		SELECT id, run_id, source_path, destination, content_id, artifact_path,
			stage, bytes, error_message, created_at
		FROM run_items
		WHERE run_id = ?
		ORDER BY destination
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run items: %w", err)
	}
	defer rows.Close()

	items := []models.RunItem{}
	for rows.Next() {
		var (
			item     models.RunItem
			artifact sql.NullString
			stage    string
			errMsg   sql.NullString
		)
		err := rows.Scan(
			&item.ID, &item.RunID, &item.Source, &item.Destination, &item.ContentID, &artifact,
			&stage, &item.Bytes, &errMsg, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run item: %w", err)
		}
		item.Stage = models.ItemStage(stage)
		item.Artifact = artifact.String
		item.Error = errMsg.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row from either [sql.Row] or [sql.Rows] into a [models.SyncRun]
func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		id               string
		sequence         int
		deviceName       string
		storageArea      string
		rootFolder       string
		status           string
		desiredCount     int
		indexedCount     int
		missingCount     int
		transferredCount int
		failedCount      int
		dryRun           bool
		errorMessage     sql.NullString
		startedAt        time.Time
		completedAt      sql.NullTime
		createdAt        time.Time
		updatedAt        time.Time
	)

	err := row.Scan(
		&id, &sequence, &deviceName, &storageArea, &rootFolder, &status,
		&desiredCount, &indexedCount, &missingCount, &transferredCount, &failedCount,
		&dryRun, &errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewSyncRun(deviceName, rootFolder, dryRun)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStorageArea(storageArea)
	run.SetCounts(desiredCount, indexedCount, missingCount, transferredCount, failedCount)
	run.SetStatus(models.RunStatus(status), errorMessage.String)
	run.SetStartedAt(startedAt)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}

	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
