package idgen

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Bit layout of an ID, most significant first: 41 bits of unix milliseconds,
// 10 bits of worker id, 12 bits of per-millisecond sequence.
const (
	WorkerBits   = 10
	SequenceBits = 12

	MaxWorkerID = 1<<WorkerBits - 1
	MaxSequence = 1<<SequenceBits - 1

	workerShift    = SequenceBits
	timestampShift = SequenceBits + WorkerBits
	timestampMask  = 1<<41 - 1
)

// ErrInvalidWorkerID is returned when a worker id falls outside 0..MaxWorkerID.
var ErrInvalidWorkerID = fmt.Errorf("worker id must be between 0 and %d", MaxWorkerID)

// ErrInvalidID is returned by ParseID for malformed input.
var ErrInvalidID = errors.New("invalid id")

// ID is a 64-bit time-ordered identifier.
type ID uint64

// Compose packs the three fields into an ID. Values wider than their field
// are truncated to the field width.
func Compose(ms int64, workerID, seq uint16) ID {
	return ID(uint64(ms)&timestampMask<<timestampShift |
		uint64(workerID)&MaxWorkerID<<workerShift |
		uint64(seq)&MaxSequence)
}

// Decompose splits an ID into its timestamp, worker id and sequence.
func Decompose(id ID) (ms int64, workerID, seq uint16) {
	ms = int64(uint64(id) >> timestampShift & timestampMask)
	workerID = uint16(uint64(id) >> workerShift & MaxWorkerID)
	seq = uint16(uint64(id) & MaxSequence)
	return ms, workerID, seq
}

// Time returns the wall-clock millisecond the ID was allocated in.
func (id ID) Time() time.Time {
	ms, _, _ := Decompose(id)
	return time.UnixMilli(ms).UTC()
}

// Int64 returns the ID as a signed integer for BIGINT columns.
func (id ID) Int64() int64 {
	return int64(id)
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses the decimal form produced by String.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return ID(v), nil
}

// Clock returns the current wall-clock time in unix milliseconds.
type Clock func() int64

// SystemClock reads time.Now.
func SystemClock() int64 {
	return time.Now().UnixMilli()
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithClock replaces the system clock. Used by tests to drive the
// same-millisecond and regression paths deterministically.
func WithClock(c Clock) Option {
	return func(a *Allocator) {
		a.clock = c
	}
}

// WithRegressionHook registers a callback invoked, outside of the lock, every
// time the clock is observed behind the last issued timestamp.
func WithRegressionHook(fn func(lastMS, nowMS int64)) Option {
	return func(a *Allocator) {
		a.onRegression = fn
	}
}

// WithStallHook registers a callback invoked, outside of the lock, after the
// allocator had to wait for the next millisecond because the sequence space
// was exhausted.
func WithStallHook(fn func()) Option {
	return func(a *Allocator) {
		a.onStall = fn
	}
}

// Allocator hands out IDs for a single worker. It is safe for concurrent use;
// all allocations serialize through one mutex that is never held across I/O.
type Allocator struct {
	mu       sync.Mutex
	workerID uint16
	lastMS   int64
	seq      uint16

	clock        Clock
	onRegression func(lastMS, nowMS int64)
	onStall      func()
}

// New returns an Allocator for workerID.
func New(workerID int, opts ...Option) (*Allocator, error) {
	if workerID < 0 || workerID > MaxWorkerID {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerID, workerID)
	}

	a := &Allocator{
		workerID: uint16(workerID),
		clock:    SystemClock,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// WorkerID returns the worker id embedded in every ID from this allocator.
func (a *Allocator) WorkerID() int {
	return int(a.workerID)
}

// Next allocates a new ID. It never fails; when 4096 IDs have already been
// issued in the current millisecond it spins until the clock advances.
//
// A clock that moves backwards does not lower the timestamp field: the last
// issued millisecond is kept as a logical clock and the sequence keeps
// counting from it, so IDs stay strictly increasing. While the wall clock is
// behind, sequence exhaustion advances the logical millisecond instead of
// spinning.
func (a *Allocator) Next() ID {
	var (
		regressed bool
		stalled   bool
		highMS    int64
		wallMS    int64
	)

	a.mu.Lock()
	ms := a.clock()
	if ms < a.lastMS {
		regressed = true
		highMS, wallMS = a.lastMS, ms
		ms = a.lastMS
	}

	if ms == a.lastMS {
		a.seq = (a.seq + 1) & MaxSequence
		if a.seq == 0 {
			if regressed {
				a.lastMS++
			} else {
				stalled = true
				for ms <= a.lastMS {
					ms = a.clock()
				}
				a.lastMS = ms
			}
		}
	} else {
		a.seq = 0
		a.lastMS = ms
	}
	id := Compose(a.lastMS, a.workerID, a.seq)
	a.mu.Unlock()

	if regressed && a.onRegression != nil {
		a.onRegression(highMS, wallMS)
	}
	if stalled && a.onStall != nil {
		a.onStall()
	}
	return id
}
