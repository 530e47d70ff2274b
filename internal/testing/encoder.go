package testing

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// FakeEncoder writes "encoded:<src>" to the destination instead of running an encoder.
type FakeEncoder struct {
	Calls atomic.Int32
	Delay time.Duration // optional per-call latency, honours context cancellation

	mu   sync.Mutex
	fail map[string]error
	srcs []string
}

// FailOn makes Encode return err for src.
func (e *FakeEncoder) FailOn(src string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail == nil {
		e.fail = make(map[string]error)
	}
	e.fail[src] = err
}

// Sources returns every source passed to Encode, in call order.
func (e *FakeEncoder) Sources() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.srcs...)
}

func (e *FakeEncoder) Encode(ctx context.Context, src, dst string) error {
	e.Calls.Add(1)

	e.mu.Lock()
	e.srcs = append(e.srcs, src)
	err := e.fail[src]
	e.mu.Unlock()

	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(src); statErr != nil {
		return errors.New("source does not exist: " + src)
	}
	return os.WriteFile(dst, []byte("encoded:"+src), 0644)
}
