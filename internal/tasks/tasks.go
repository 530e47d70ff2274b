package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtpsync/internal/content"
	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/desertthunder/mtpsync/internal/transcode"
	"github.com/desertthunder/mtpsync/internal/transfer"
)

// Transcoder produces a local device-compatible artifact for a source file.
type Transcoder interface {
	Transcode(ctx context.Context, src string) (string, error)
}

// RunRecorder persists run history. Errors are logged and never fail a run.
type RunRecorder interface {
	Create(run *models.SyncRun) error
	Update(run *models.SyncRun) error
	AddItems(runID string, items []models.RunItem) error
}

// SyncEngine defines the operations of a device sync.
type SyncEngine interface {
	// Index reads the device folder and builds the content index.
	Index(ctx context.Context, progress chan<- ProgressUpdate, h *device.Handle) (*IndexResult, error)

	// Diff indexes the device and computes which desired paths are missing.
	Diff(ctx context.Context, progress chan<- ProgressUpdate, h *device.Handle, desired models.DesiredSet) (*DiffResult, error)

	// Run performs a full sync: index, diff, transcode, transfer.
	Run(ctx context.Context, progress chan<- ProgressUpdate, h *device.Handle, desired models.DesiredSet) (*RunResult, error)
}

// IndexResult is the existence view of one device folder.
type IndexResult struct {
	Area   device.Area     // Selected storage area
	Folder device.ObjectID // Indexed root folder
	Tree   models.TreeNode // Folder hierarchy as read from the device
	Index  *content.Index  // Flattened content identifiers
}

// DiffResult contains the items a run would transfer.
type DiffResult struct {
	*IndexResult
	Desired int      // Size of the desired set
	Missing []string // Desired source paths absent from the device, sorted
	Items   []models.RunItem
}

// RunResult contains the outcome of a sync run.
type RunResult struct {
	Run   *models.SyncRun
	Items []models.RunItem
	Diff  *DiffResult
	Bytes int64
}

// Report builds the serialisable summary of r.
func (r *RunResult) Report() models.RunReport {
	rep := models.RunReport{
		RunID:       r.Run.ID(),
		Device:      r.Run.DeviceName(),
		StorageArea: r.Run.StorageArea(),
		RootFolder:  r.Run.RootFolder(),
		DryRun:      r.Run.DryRun(),
		Desired:     r.Run.DesiredCount(),
		Indexed:     r.Run.IndexedCount(),
		Missing:     r.Run.MissingCount(),
		Transferred: r.Run.TransferredCount(),
		Failed:      r.Run.FailedCount(),
		Bytes:       r.Bytes,
		StartedAt:   r.Run.StartedAt(),
		Items:       r.Items,
	}
	if c := r.Run.CompletedAt(); c != nil {
		rep.Duration = c.Sub(r.Run.StartedAt())
	}
	if rep.Items == nil {
		rep.Items = []models.RunItem{}
	}
	return rep
}

// DeviceEngine implements [SyncEngine] against a [device.Handle].
type DeviceEngine struct {
	transcoder  Transcoder
	recorder    RunRecorder
	libraryRoot string
	rootFolder  string
	workers     int
	stopOnError bool
	dryRun      bool
	logger      *log.Logger
}

// EngineOpts configures a [DeviceEngine].
type EngineOpts struct {
	Transcoder  Transcoder
	Recorder    RunRecorder // Optional run history
	LibraryRoot string      // Desired paths are made relative to this directory
	RootFolder  string      // Device folder to index and upload into
	Workers     int         // Transcode workers, runtime.NumCPU() when <= 0
	StopOnError bool        // Abort on the first failed item instead of continuing
	DryRun      bool        // Plan only, transcode and transfer nothing
	Logger      *log.Logger
}

// NewDeviceEngine creates a [DeviceEngine].
func NewDeviceEngine(opts EngineOpts) *DeviceEngine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}
	return &DeviceEngine{
		transcoder:  opts.Transcoder,
		recorder:    opts.Recorder,
		libraryRoot: opts.LibraryRoot,
		rootFolder:  opts.RootFolder,
		workers:     opts.Workers,
		stopOnError: opts.StopOnError,
		dryRun:      opts.DryRun,
		logger:      opts.Logger,
	}
}

var _ SyncEngine = (*DeviceEngine)(nil)

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *DeviceEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Index selects the storage area with the most free space, locates the root folder and flattens its tree.
func (e *DeviceEngine) Index(ctx context.Context, progress chan<- ProgressUpdate, h *device.Handle) (*IndexResult, error) {
	area, err := h.SelectArea(ctx)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, connectUpdate(area.Description))
	e.logger.Debug("selected storage area", "area", area.Description, "free", shared.FormatBytes(int64(area.FreeBytes)))

	folder, err := content.FindFolder(ctx, h, area, e.rootFolder)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, indexingUpdate(e.rootFolder))
	tree, err := content.BuildTree(ctx, h, area, folder, e.rootFolder)
	if err != nil {
		return nil, err
	}

	idx := content.Flatten(tree)
	e.sendProgress(progress, indexedUpdate(e.rootFolder, idx.Len()))
	e.logger.Info("indexed device", "folder", e.rootFolder, "items", idx.Len())

	return &IndexResult{Area: area, Folder: folder, Tree: tree, Index: idx}, nil
}

// Diff indexes the device and returns the desired paths it does not hold yet.
func (e *DeviceEngine) Diff(ctx context.Context, progress chan<- ProgressUpdate, h *device.Handle, desired models.DesiredSet) (*DiffResult, error) {
	ir, err := e.Index(ctx, progress, h)
	if err != nil {
		return nil, err
	}

	missing := Missing(desired, e.libraryRoot, ir.Index)
	e.sendProgress(progress, compareUpdate(desired.Len(), len(missing)))

	items := make([]models.RunItem, len(missing))
	for i, src := range missing {
		items[i] = e.planItem(src)
	}
	e.warnSharedArtifacts(missing)

	return &DiffResult{IndexResult: ir, Desired: desired.Len(), Missing: missing, Items: items}, nil
}

// warnSharedArtifacts logs every missing source whose transcode artifact name is already taken by an earlier one.
// Such sources reuse the first source's cached artifact.
func (e *DeviceEngine) warnSharedArtifacts(missing []string) {
	owners := make(map[string]string, len(missing))
	for _, src := range missing {
		name := transcode.OutputName(src)
		if first, ok := owners[name]; ok {
			e.logger.Warn("missing items share a transcode artifact", "artifact", name, "first", first, "source", src)
			continue
		}
		owners[name] = src
	}
}

func (e *DeviceEngine) planItem(src string) models.RunItem {
	dest := RelativePath(e.libraryRoot, src)
	return models.RunItem{
		ID:          shared.GenerateID(),
		Source:      src,
		Destination: dest,
		ContentID:   content.Identifier(dest),
		Stage:       models.StagePlanned,
		CreatedAt:   time.Now().UTC(),
	}
}

type transcodeJob struct {
	index int
	src   string
}

type transcodeResult struct {
	index    int
	artifact string
	err      error
}

// Run syncs desired onto the device.
//
// Missing items are transcoded on a worker pool; finished artifacts flow through a channel to a single writer loop
// so that only one device call is ever in flight. Per-item failures are recorded on the returned items and only
// abort the run when StopOnError is set. The returned error is reserved for failures of the run as a whole.
func (e *DeviceEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, h *device.Handle, desired models.DesiredSet) (*RunResult, error) {
	run := models.NewSyncRun(h.Name(), e.rootFolder, e.dryRun)
	result := &RunResult{Run: run}
	e.record(func(r RunRecorder) error { return r.Create(run) })

	diff, err := e.Diff(ctx, progress, h, desired)
	if err != nil {
		e.finish(run, nil, err)
		return result, err
	}
	result.Diff = diff
	run.SetStorageArea(diff.Area.Description)
	run.SetCounts(diff.Desired, diff.Index.Len(), len(diff.Missing), 0, 0)

	items := diff.Items
	if e.dryRun || len(items) == 0 {
		result.Items = items
		e.finish(run, items, nil)
		e.sendProgress(progress, completeUpdate(result.Report()))
		return result, nil
	}

	writer := transfer.NewWriter(transfer.WriterOpts{
		Device: h,
		Area:   diff.Area,
		Folder: diff.Folder,
		Logger: e.logger,
	})

	runErr := e.pipeline(ctx, progress, writer, items, &result.Bytes)

	transferred, failed := 0, 0
	for _, it := range items {
		switch {
		case it.Stage == models.StageTransferred:
			transferred++
		case it.Failed():
			failed++
		}
	}
	run.SetCounts(diff.Desired, diff.Index.Len(), len(diff.Missing), transferred, failed)
	result.Items = items

	e.finish(run, items, runErr)
	e.sendProgress(progress, completeUpdate(result.Report()))
	return result, runErr
}

// pipeline fills in the stage of every item. Items that never reach the writer are marked skipped.
func (e *DeviceEngine) pipeline(ctx context.Context, progress chan<- ProgressUpdate, writer *transfer.Writer, items []models.RunItem, bytes *int64) error {
	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := len(items)
	queue := transcodeJobs(items)
	for i := range items {
		items[i].Stage = models.StageSkipped
	}

	jobs := make(chan transcodeJob)
	results := make(chan transcodeResult, e.workers)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go e.transcodeWorker(workCtx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, job := range queue {
			select {
			case jobs <- job:
			case <-workCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var runErr error
	transcoded, written := 0, 0
	for res := range results {
		it := &items[res.index]
		it.Artifact = res.artifact
		transcoded++

		if runErr == nil && ctx.Err() != nil {
			runErr = fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
			cancel()
		}
		if runErr != nil {
			continue
		}

		if res.err != nil {
			it.Stage = models.StageTranscode
			it.Error = res.err.Error()
			e.sendProgress(progress, transcodeUpdate(transcoded, total, it.Source, res.err))
			e.logger.Warn("transcode failed", "source", it.Source, "error", res.err)

			if e.stopOnError {
				runErr = fmt.Errorf("stopping after failed item %s: %w", it.Source, res.err)
				cancel()
			}
			continue
		}
		e.sendProgress(progress, transcodeUpdate(transcoded, total, it.Source, nil))

		written++
		obj := models.TransferObject{Source: it.Source, Transcoded: res.artifact, Destination: it.Destination}
		step := written
		err := writer.PutFile(ctx, obj, func(sent, size int64) transfer.Signal {
			e.sendProgress(progress, transferringUpdate(step, total, obj.Destination, sent, size))
			if ctx.Err() != nil {
				return transfer.Stop
			}
			return transfer.Continue
		})

		if err != nil {
			it.Stage = models.StageTransfer
			it.Error = err.Error()
			e.logger.Warn("transfer failed", "destination", it.Destination, "error", err)

			if ctx.Err() != nil || errors.Is(err, shared.ErrCancelled) {
				runErr = fmt.Errorf("%w: %v", shared.ErrCancelled, err)
				cancel()
			} else if e.stopOnError {
				runErr = fmt.Errorf("stopping after failed item %s: %w", it.Source, err)
				cancel()
			}
		} else {
			it.Stage = models.StageTransferred
			if fi, statErr := os.Stat(res.artifact); statErr == nil {
				it.Bytes = fi.Size()
				*bytes += fi.Size()
			}
		}
		e.sendProgress(progress, transferredUpdate(step, total, *it))
	}

	if runErr == nil && ctx.Err() != nil {
		runErr = fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
	}
	return runErr
}

// transcodeJobs copies what the workers need out of items. Only the writer loop touches items once workers start.
func transcodeJobs(items []models.RunItem) []transcodeJob {
	jobs := make([]transcodeJob, len(items))
	for i, it := range items {
		jobs[i] = transcodeJob{index: i, src: it.Source}
	}
	return jobs
}

// transcodeWorker is a worker goroutine that transcodes sources from the jobs channel.
func (e *DeviceEngine) transcodeWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan transcodeJob, results chan<- transcodeResult) {
	defer wg.Done()

	for job := range jobs {
		artifact, err := e.transcoder.Transcode(ctx, job.src)
		results <- transcodeResult{index: job.index, artifact: artifact, err: err}
	}
}

func (e *DeviceEngine) finish(run *models.SyncRun, items []models.RunItem, err error) {
	run.Finish(err)
	if len(items) > 0 {
		for i := range items {
			items[i].RunID = run.ID()
		}
		e.record(func(r RunRecorder) error { return r.AddItems(run.ID(), items) })
	}
	e.record(func(r RunRecorder) error { return r.Update(run) })

	e.logger.Info("sync finished",
		"status", run.Status(),
		"missing", run.MissingCount(),
		"transferred", run.TransferredCount(),
		"failed", run.FailedCount(),
	)
}

// record runs fn against the recorder when one is configured, logging failures.
func (e *DeviceEngine) record(fn func(RunRecorder) error) {
	if e.recorder == nil {
		return
	}
	if err := fn(e.recorder); err != nil {
		e.logger.Warn("failed to record run history", "error", err)
	}
}
