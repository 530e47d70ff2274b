// package device opens a portable media device by friendly name and exposes its storage as a tree of objects.
//
// Protocol specifics live behind [Backend] and [Session]. A [Handle] owns one open session for the length of a sync run
// and serialises every call into it, so at most one device operation is in flight at a time.
package device

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
)

// ObjectID is an opaque, device-assigned object identifier.
type ObjectID string

// Root is the parent id of objects at the top of a storage area.
const Root ObjectID = ""

// Area is one storage area (e.g. internal storage, SD card) of a device.
type Area struct {
	ID          string // Backend-specific identifier
	Description string // Human readable label
	FreeBytes   uint64 // Free space reported by the device
	MaxBytes    uint64 // Capacity reported by the device, zero if unknown
}

// Object is one entry returned by [Lister.List].
type Object struct {
	ID     ObjectID
	Parent ObjectID
	Name   string
	Kind   models.Kind
	Size   int64
}

// ObjectInfo describes an object about to be written.
type ObjectInfo struct {
	Size    int64
	Name    string
	Type    string // MIME type
	ModTime time.Time
}

// ProgressFunc receives cumulative byte counts while an object is written.
// Returning a non-nil error aborts the write; the error is returned by Send.
type ProgressFunc func(sent, total int64) error

// Lister enumerates the direct children of a folder.
type Lister interface {
	List(ctx context.Context, area Area, parent ObjectID) ([]Object, error)
}

// Sender writes and removes objects.
type Sender interface {
	Send(ctx context.Context, area Area, parent ObjectID, info ObjectInfo, r io.Reader, progress ProgressFunc) (ObjectID, error)
	Delete(ctx context.Context, area Area, id ObjectID) error
}

// Session is one open connection to a device.
type Session interface {
	Lister
	Sender

	// Name returns the user-visible friendly name of the device.
	Name(ctx context.Context) (string, error)

	// StorageAreas lists the storage areas in device order.
	StorageAreas(ctx context.Context) ([]Area, error)

	Close() error
}

// Candidate is a device that may be opened.
type Candidate interface {
	Open(ctx context.Context) (Session, error)

	// String identifies the candidate in logs.
	String() string
}

// Backend discovers attached devices.
type Backend interface {
	Candidates(ctx context.Context) ([]Candidate, error)
}

// Handle is an open device selected by friendly name.
type Handle struct {
	mu      sync.Mutex
	session Session
	name    string
	closed  bool
	logger  *log.Logger
}

var (
	_ Lister = (*Handle)(nil)
	_ Sender = (*Handle)(nil)
)

// Option configures a [Handle].
type Option func(*Handle)

// WithLogger sets the logger used by the handle.
func WithLogger(l *log.Logger) Option {
	return func(h *Handle) {
		if l != nil {
			h.logger = l
		}
	}
}

// Open enumerates the candidates of backend and returns a handle to the first whose friendly name equals name.
//
// Candidates that fail to open or to report a name are skipped.
// Sessions that do not match are closed before moving on.
func Open(ctx context.Context, backend Backend, name string, opts ...Option) (*Handle, error) {
	h := &Handle{name: name, logger: shared.NopLogger()}
	for _, opt := range opts {
		opt(h)
	}

	candidates, err := backend.Candidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to enumerate devices: %v", shared.ErrDeviceNotFound, err)
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}

		session, err := c.Open(ctx)
		if err != nil {
			h.logger.Debug("skipping device", "candidate", c.String(), "error", err)
			continue
		}

		friendly, err := session.Name(ctx)
		if err != nil {
			h.logger.Debug("skipping device without name", "candidate", c.String(), "error", err)
			session.Close()
			continue
		}

		if friendly != name {
			h.logger.Debug("device name mismatch", "candidate", c.String(), "name", friendly)
			session.Close()
			continue
		}

		h.session = session
		h.logger.Info("opened device", "name", friendly, "candidate", c.String())
		return h, nil
	}

	return nil, fmt.Errorf("%w: no device named '%s' among %d candidate(s)", shared.ErrDeviceNotFound, name, len(candidates))
}

// Name returns the friendly name the handle was opened with.
func (h *Handle) Name() string { return h.name }

// StorageAreas returns the storage areas of the device in device order.
func (h *Handle) StorageAreas(ctx context.Context) ([]Area, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check(); err != nil {
		return nil, err
	}

	areas, err := h.session.StorageAreas(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list storage areas: %v", shared.ErrNoStorageArea, err)
	}
	if len(areas) == 0 {
		return nil, shared.ErrNoStorageArea
	}
	return areas, nil
}

// SelectArea returns the storage area with the most free space, preferring the first on ties.
func (h *Handle) SelectArea(ctx context.Context) (Area, error) {
	areas, err := h.StorageAreas(ctx)
	if err != nil {
		return Area{}, err
	}
	return MostFree(areas), nil
}

// MostFree returns the area with the most free bytes. Ties go to the earliest; areas must be non-empty.
func MostFree(areas []Area) Area {
	best := areas[0]
	for _, a := range areas[1:] {
		if a.FreeBytes > best.FreeBytes {
			best = a
		}
	}
	return best
}

// List returns the direct children of parent.
func (h *Handle) List(ctx context.Context, area Area, parent ObjectID) ([]Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check(); err != nil {
		return nil, err
	}
	return h.session.List(ctx, area, parent)
}

// Send writes r as a new object under parent.
func (h *Handle) Send(ctx context.Context, area Area, parent ObjectID, info ObjectInfo, r io.Reader, progress ProgressFunc) (ObjectID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check(); err != nil {
		return "", err
	}
	return h.session.Send(ctx, area, parent, info, r, progress)
}

// Delete removes the object id.
func (h *Handle) Delete(ctx context.Context, area Area, id ObjectID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.check(); err != nil {
		return err
	}
	return h.session.Delete(ctx, area, id)
}

// Close releases the session. Calling Close more than once is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.session == nil {
		h.closed = true
		return nil
	}
	h.closed = true
	if err := h.session.Close(); err != nil {
		return fmt.Errorf("failed to close device session: %w", err)
	}
	h.logger.Debug("closed device", "name", h.name)
	return nil
}

func (h *Handle) check() error {
	if h.closed || h.session == nil {
		return shared.ErrDeviceClosed
	}
	return nil
}
