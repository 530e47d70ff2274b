package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/mtpsync/internal/device"
	"github.com/desertthunder/mtpsync/internal/models"
)

// MemoryDevice is an in-memory [device.Session] and [device.Candidate].
//
// Objects written by Send are created before any data is copied, so an aborted Send leaves a partial object behind
// the way MTP devices do. Failures can be injected through the exported error fields.
type MemoryDevice struct {
	mu      sync.Mutex
	name    string
	areas   []device.Area
	objects map[device.ObjectID]*memObject
	next    int

	OpenErr   error // returned by Open
	NameErr   error // returned by Name
	SendErr   error // returned by Send after the object is created
	DeleteErr error // returned by Delete
	ChunkSize int   // bytes per progress callback, defaults to 4 KiB

	Closed    atomic.Int32
	Sends     atomic.Int32
	Overlap   atomic.Bool // set if two calls were ever in flight at once
	inFlight  atomic.Int32
	listCalls atomic.Int32
	partials  int
}

type memObject struct {
	id      device.ObjectID
	parent  device.ObjectID
	area    string
	name    string
	kind    models.Kind
	data    []byte
	partial bool
}

var (
	_ device.Session   = (*MemoryDevice)(nil)
	_ device.Candidate = (*MemoryDevice)(nil)
)

// NewMemoryDevice creates a device with the given friendly name and storage areas.
// With no areas it gets a single "Internal shared storage" area with 1 GiB free.
func NewMemoryDevice(name string, areas ...device.Area) *MemoryDevice {
	if len(areas) == 0 {
		areas = []device.Area{{ID: "internal", Description: "Internal shared storage", FreeBytes: 1 << 30}}
	}
	return &MemoryDevice{
		name:    name,
		areas:   areas,
		objects: make(map[device.ObjectID]*memObject),
	}
}

func (d *MemoryDevice) String() string { return "memory:" + d.name }

func (d *MemoryDevice) Open(ctx context.Context) (device.Session, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	return d, nil
}

func (d *MemoryDevice) Name(ctx context.Context) (string, error) {
	if d.NameErr != nil {
		return "", d.NameErr
	}
	return d.name, nil
}

func (d *MemoryDevice) StorageAreas(ctx context.Context) ([]device.Area, error) {
	return append([]device.Area(nil), d.areas...), nil
}

func (d *MemoryDevice) Close() error {
	d.Closed.Add(1)
	return nil
}

// Area returns the first storage area.
func (d *MemoryDevice) Area() device.Area { return d.areas[0] }

// Partials returns how many objects were left behind by failed sends and not yet deleted.
func (d *MemoryDevice) Partials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.partials
}

// ListCalls returns how many times List was called.
func (d *MemoryDevice) ListCalls() int { return int(d.listCalls.Load()) }

func (d *MemoryDevice) enter() func() {
	if d.inFlight.Add(1) > 1 {
		d.Overlap.Store(true)
	}
	return func() { d.inFlight.Add(-1) }
}

func (d *MemoryDevice) List(ctx context.Context, area device.Area, parent device.ObjectID) ([]device.Object, error) {
	defer d.enter()()
	d.listCalls.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if parent != device.Root {
		p, ok := d.objects[parent]
		if !ok || p.area != area.ID {
			return nil, fmt.Errorf("no such object %s", parent)
		}
		if p.kind != models.KindFolder {
			return nil, fmt.Errorf("object %s is not a folder", parent)
		}
	}

	var out []device.Object
	for _, o := range d.sorted() {
		if o.area != area.ID || o.parent != parent {
			continue
		}
		out = append(out, device.Object{ID: o.id, Parent: o.parent, Name: o.name, Kind: o.kind, Size: int64(len(o.data))})
	}
	return out, nil
}

func (d *MemoryDevice) Send(ctx context.Context, area device.Area, parent device.ObjectID, info device.ObjectInfo, r io.Reader, progress device.ProgressFunc) (device.ObjectID, error) {
	defer d.enter()()
	d.Sends.Add(1)

	d.mu.Lock()
	obj := d.add(area.ID, parent, info.Name, models.KindFile, nil)
	obj.partial = true
	d.mu.Unlock()

	fail := func(err error) (device.ObjectID, error) {
		d.mu.Lock()
		d.partials++
		d.mu.Unlock()
		return "", err
	}

	if d.SendErr != nil {
		return fail(d.SendErr)
	}

	chunk := d.ChunkSize
	if chunk <= 0 {
		chunk = 4096
	}
	buf := make([]byte, chunk)
	var sent int64
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			d.mu.Lock()
			obj.data = append(obj.data, buf[:n]...)
			d.mu.Unlock()
			sent += int64(n)
			if progress != nil {
				if err := progress(sent, info.Size); err != nil {
					return fail(err)
				}
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fail(rerr)
		}
	}

	d.mu.Lock()
	obj.partial = false
	d.mu.Unlock()
	return obj.id, nil
}

func (d *MemoryDevice) Delete(ctx context.Context, area device.Area, id device.ObjectID) error {
	defer d.enter()()

	if d.DeleteErr != nil {
		return d.DeleteErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	o, ok := d.objects[id]
	if !ok || o.area != area.ID {
		return fmt.Errorf("no such object %s", id)
	}
	d.remove(o)
	return nil
}

func (d *MemoryDevice) remove(o *memObject) {
	for _, c := range d.sorted() {
		if c.parent == o.id && c.area == o.area {
			d.remove(c)
		}
	}
	if o.partial {
		d.partials--
	}
	delete(d.objects, o.id)
}

func (d *MemoryDevice) add(area string, parent device.ObjectID, name string, kind models.Kind, data []byte) *memObject {
	d.next++
	o := &memObject{
		id:     device.ObjectID(strconv.Itoa(d.next)),
		parent: parent,
		area:   area,
		name:   name,
		kind:   kind,
		data:   data,
	}
	d.objects[o.id] = o
	return o
}

func (d *MemoryDevice) sorted() []*memObject {
	out := make([]*memObject, 0, len(d.objects))
	for _, o := range d.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(string(out[i].id))
		b, _ := strconv.Atoi(string(out[j].id))
		return a < b
	})
	return out
}

// AddFolder creates a folder under parent in the first storage area.
func (d *MemoryDevice) AddFolder(parent device.ObjectID, name string) device.ObjectID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.add(d.areas[0].ID, parent, name, models.KindFolder, nil).id
}

// AddFile creates a file under parent in the first storage area.
func (d *MemoryDevice) AddFile(parent device.ObjectID, name, content string) device.ObjectID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.add(d.areas[0].ID, parent, name, models.KindFile, []byte(content)).id
}

// MkdirAll creates every folder of the slash-separated rel under the storage root and returns the last one.
func (d *MemoryDevice) MkdirAll(rel string) device.ObjectID {
	parent := device.Root
	for _, part := range strings.Split(strings.Trim(rel, "/"), "/") {
		if part == "" {
			continue
		}
		if id, ok := d.find(parent, part); ok {
			parent = id
			continue
		}
		parent = d.AddFolder(parent, part)
	}
	return parent
}

func (d *MemoryDevice) find(parent device.ObjectID, name string) (device.ObjectID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, o := range d.sorted() {
		if o.parent == parent && o.name == name && o.area == d.areas[0].ID {
			return o.id, true
		}
	}
	return "", false
}

// Files returns the complete files of the first storage area keyed by slash-separated path from the storage root.
func (d *MemoryDevice) Files() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]string)
	for _, o := range d.objects {
		if o.kind != models.KindFile || o.partial || o.area != d.areas[0].ID {
			continue
		}
		out[d.pathOf(o)] = string(o.data)
	}
	return out
}

func (d *MemoryDevice) pathOf(o *memObject) string {
	if o.parent == device.Root {
		return o.name
	}
	p, ok := d.objects[o.parent]
	if !ok {
		return o.name
	}
	return path.Join(d.pathOf(p), o.name)
}

// Backend is a [device.Backend] over a fixed candidate list.
type Backend []device.Candidate

func (b Backend) Candidates(ctx context.Context) ([]device.Candidate, error) {
	return b, nil
}
