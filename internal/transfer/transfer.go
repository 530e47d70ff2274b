// package transfer uploads transcoded artifacts to the device folder the content index is built from.
//
// Objects are named after the content identifier of their destination path, so the next index build recognises them
// regardless of how the device reports paths.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtpsync/internal/content"
	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/desertthunder/mtpsync/internal/transcode"
	"golang.org/x/time/rate"
)

// MIMEType is the object type announced for every upload.
const MIMEType = "audio/mp4"

// Signal is returned by a [ProgressFunc] to continue or abort a transfer.
type Signal int

const (
	Continue Signal = iota
	Stop
)

// ProgressFunc is called with cumulative byte counts as the device accepts data.
type ProgressFunc func(sent, total int64) Signal

// Device is the part of a device session the writer needs.
type Device interface {
	device.Lister
	device.Sender
}

// Writer uploads artifacts into one folder of one storage area.
type Writer struct {
	dev         Device
	area        device.Area
	folder      device.ObjectID
	logger      *log.Logger
	logInterval time.Duration
}

// WriterOpts configures a [Writer].
type WriterOpts struct {
	Device      Device
	Area        device.Area
	Folder      device.ObjectID // Indexed folder uploads are written into
	Logger      *log.Logger
	LogInterval time.Duration // Minimum gap between progress log lines, one second by default
}

// NewWriter creates a [Writer].
func NewWriter(opts WriterOpts) *Writer {
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}
	if opts.LogInterval <= 0 {
		opts.LogInterval = time.Second
	}
	return &Writer{
		dev:         opts.Device,
		area:        opts.Area,
		folder:      opts.Folder,
		logger:      opts.Logger,
		logInterval: opts.LogInterval,
	}
}

// ObjectName returns the device file name for a destination path: its content identifier plus [transcode.Extension].
func ObjectName(destination string) string {
	return content.Identifier(destination) + transcode.Extension
}

var errStopped = errors.New("stopped by progress callback")

// PutFile streams obj.Transcoded to the device as [ObjectName](obj.Destination).
//
// A nil progress is treated as always continuing. Returning [Stop] aborts with [shared.ErrCancelled]; device and
// local I/O errors are reported as [shared.ErrTransferFailed]. After any failure the writer makes one attempt to
// delete the partially written object.
func (w *Writer) PutFile(ctx context.Context, obj models.TransferObject, progress ProgressFunc) error {
	name := ObjectName(obj.Destination)
	logger := shared.WithLogger(w.logger, "destination", obj.Destination, "object", name)

	f, err := os.Open(obj.Transcoded)
	if err != nil {
		return fmt.Errorf("%w: failed to open artifact: %v", shared.ErrTransferFailed, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: failed to stat artifact: %v", shared.ErrTransferFailed, err)
	}

	info := device.ObjectInfo{
		Size:    fi.Size(),
		Name:    name,
		Type:    MIMEType,
		ModTime: fi.ModTime(),
	}

	sometimes := rate.Sometimes{First: 1, Interval: w.logInterval}
	onProgress := func(sent, total int64) error {
		sometimes.Do(func() {
			logger.Debug("transferring", "sent", shared.FormatBytes(sent), "total", shared.FormatBytes(total))
		})
		if progress != nil && progress(sent, total) == Stop {
			return errStopped
		}
		return nil
	}

	start := time.Now()
	if _, err := w.dev.Send(ctx, w.area, w.folder, info, f, onProgress); err != nil {
		w.cleanup(ctx, name, logger)

		switch {
		case errors.Is(err, errStopped):
			return fmt.Errorf("%w: transfer of %s stopped", shared.ErrCancelled, obj.Destination)
		case ctx.Err() != nil:
			return fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
		default:
			return fmt.Errorf("%w: %s: %v", shared.ErrTransferFailed, obj.Destination, err)
		}
	}

	logger.Info("transferred", "size", shared.FormatBytes(info.Size), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// cleanup deletes any object named name left in the upload folder.
// It runs detached from ctx cancellation so an interrupted run still tidies up.
func (w *Writer) cleanup(ctx context.Context, name string, logger *log.Logger) {
	ctx = context.WithoutCancel(ctx)

	objects, err := w.dev.List(ctx, w.area, w.folder)
	if err != nil {
		logger.Warn("could not check for partial object", "error", err)
		return
	}

	for _, o := range objects {
		if o.Kind != models.KindFile || o.Name != name {
			continue
		}
		if err := w.dev.Delete(ctx, w.area, o.ID); err != nil {
			logger.Warn("partial object left on device", "id", o.ID, "error", err)
			continue
		}
		logger.Debug("removed partial object", "id", o.ID)
	}
}
