package models

import (
	"errors"
	"time"
)

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial" // finished with per-item failures
	RunFailed    RunStatus = "failed"
)

// ItemStage records how far an item got through the pipeline.
type ItemStage string

const (
	StagePlanned     ItemStage = "planned"   // dry run: would be transferred
	StageTranscode   ItemStage = "transcode" // failed while transcoding
	StageTransfer    ItemStage = "transfer"  // failed while uploading
	StageSkipped     ItemStage = "skipped"   // not attempted after an earlier failure stopped the run
	StageTransferred ItemStage = "transferred"
)

// SyncRun is a persisted record of one sync run.
type SyncRun struct {
	id               string
	sequence         int
	deviceName       string
	storageArea      string
	rootFolder       string
	status           RunStatus
	desiredCount     int
	indexedCount     int
	missingCount     int
	transferredCount int
	failedCount      int
	dryRun           bool
	errorMessage     string
	startedAt        time.Time
	completedAt      *time.Time
	createdAt        time.Time
	updatedAt        time.Time
}

var _ Model = (*SyncRun)(nil)

// NewSyncRun creates a running [SyncRun] for deviceName.
func NewSyncRun(deviceName, rootFolder string, dryRun bool) *SyncRun {
	now := time.Now().UTC()
	return &SyncRun{
		deviceName: deviceName,
		rootFolder: rootFolder,
		status:     RunRunning,
		dryRun:     dryRun,
		startedAt:  now,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (r *SyncRun) ID() string              { return r.id }
func (r *SyncRun) Sequence() int           { return r.sequence }
func (r *SyncRun) DeviceName() string      { return r.deviceName }
func (r *SyncRun) StorageArea() string     { return r.storageArea }
func (r *SyncRun) RootFolder() string      { return r.rootFolder }
func (r *SyncRun) Status() RunStatus       { return r.status }
func (r *SyncRun) DesiredCount() int       { return r.desiredCount }
func (r *SyncRun) IndexedCount() int       { return r.indexedCount }
func (r *SyncRun) MissingCount() int       { return r.missingCount }
func (r *SyncRun) TransferredCount() int   { return r.transferredCount }
func (r *SyncRun) FailedCount() int        { return r.failedCount }
func (r *SyncRun) DryRun() bool            { return r.dryRun }
func (r *SyncRun) ErrorMessage() string    { return r.errorMessage }
func (r *SyncRun) StartedAt() time.Time    { return r.startedAt }
func (r *SyncRun) CompletedAt() *time.Time { return r.completedAt }
func (r *SyncRun) CreatedAt() time.Time    { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time    { return r.updatedAt }

func (r *SyncRun) SetID(id string)             { r.id = id }
func (r *SyncRun) SetSequence(seq int)         { r.sequence = seq }
func (r *SyncRun) SetStorageArea(area string)  { r.storageArea = area }
func (r *SyncRun) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *SyncRun) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *SyncRun) SetStartedAt(t time.Time)    { r.startedAt = t }
func (r *SyncRun) SetCompletedAt(t *time.Time) { r.completedAt = t }

// SetCounts records the sizes of each pipeline stage.
func (r *SyncRun) SetCounts(desired, indexed, missing, transferred, failed int) {
	r.desiredCount = desired
	r.indexedCount = indexed
	r.missingCount = missing
	r.transferredCount = transferred
	r.failedCount = failed
}

// Finish marks the run complete, deriving the status from the failure count and err.
func (r *SyncRun) Finish(err error) {
	now := time.Now().UTC()
	r.completedAt = &now
	r.updatedAt = now

	switch {
	case err != nil:
		r.status = RunFailed
		r.errorMessage = err.Error()
	case r.failedCount > 0:
		r.status = RunPartial
	default:
		r.status = RunCompleted
	}
}

// SetStatus overrides the status, used when loading from storage.
func (r *SyncRun) SetStatus(s RunStatus, msg string) {
	r.status = s
	r.errorMessage = msg
}

// Validate checks required fields.
func (r *SyncRun) Validate() error {
	if r.deviceName == "" {
		return errors.New("device name is required")
	}
	if r.rootFolder == "" {
		return errors.New("root folder is required")
	}
	switch r.status {
	case RunRunning, RunCompleted, RunPartial, RunFailed:
	default:
		return errors.New("invalid run status: " + string(r.status))
	}
	return nil
}

// RunItem is the outcome of one missing item within a run.
type RunItem struct {
	ID          string    `json:"id,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	ContentID   string    `json:"content_id"`
	Artifact    string    `json:"artifact,omitempty"`
	Stage       ItemStage `json:"stage"`
	Bytes       int64     `json:"bytes,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Failed reports whether the item ended in an error.
func (i RunItem) Failed() bool {
	return i.Stage == StageTranscode || i.Stage == StageTransfer
}

// RunReport is the serialisable summary of a run.
type RunReport struct {
	RunID       string        `json:"run_id,omitempty"`
	Device      string        `json:"device"`
	StorageArea string        `json:"storage_area"`
	RootFolder  string        `json:"root_folder"`
	DryRun      bool          `json:"dry_run"`
	Desired     int           `json:"desired"`
	Indexed     int           `json:"indexed"`
	Missing     int           `json:"missing"`
	Transferred int           `json:"transferred"`
	Failed      int           `json:"failed"`
	Bytes       int64         `json:"bytes"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration_ns"`
	Items       []RunItem     `json:"items"`
}
