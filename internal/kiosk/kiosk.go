// Package kiosk ties a recognition session to the attendance ledger: frames
// update the session, and Time In / Time Out record the identity the session
// currently confirms.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var (
	// ErrNoIdentity is returned when attendance is requested while no
	// identity is recognized.
	ErrNoIdentity = errors.New("no recognized face to record")

	// ErrSessionNotFound is returned for unknown kiosk session IDs.
	ErrSessionNotFound = errors.New("kiosk session not found")

	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = errors.New("too many open kiosk sessions")
)

// Kiosk is one attendance terminal.
type Kiosk struct {
	id         string
	session    *session.Session
	recognizer *session.Recognizer
	ledger     ledger.Store
	clock      func() time.Time

	mu         sync.Mutex
	lastActive time.Time

	workerOnce sync.Once
	worker     *session.Processor
	workerCtx  context.Context
	stopWorker context.CancelFunc
}

// Option configures a Kiosk.
type Option func(*options)

type options struct {
	clock        func() time.Time
	stableFrames int
	maxSessions  int
}

// WithClock sets the time source used for event timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithStableFrames is passed to the underlying session.
func WithStableFrames(n int) Option {
	return func(o *options) {
		o.stableFrames = n
	}
}

// WithMaxSessions limits how many kiosks a Manager keeps open. Values below
// one keep the default.
func WithMaxSessions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSessions = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now, stableFrames: 1, maxSessions: constants.MaxKioskSessions}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a kiosk in the NoFace state.
func New(id string, r *session.Recognizer, store ledger.Store, opts ...Option) *Kiosk {
	o := buildOptions(opts)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	k := &Kiosk{
		id:         id,
		session:    session.New(session.WithStableFrames(o.stableFrames)),
		recognizer: r,
		ledger:     store,
		clock:      o.clock,
		lastActive: o.clock(),
		workerCtx:  workerCtx,
		stopWorker: stopWorker,
	}
	k.worker = session.NewProcessor(k.session, r, nil)
	return k
}

// ID returns the kiosk identifier.
func (k *Kiosk) ID() string {
	return k.id
}

// Session returns the underlying recognition session.
func (k *Kiosk) Session() *session.Session {
	return k.session
}

// State returns the current recognition state.
func (k *Kiosk) State() session.State {
	return k.session.State()
}

// Frame recognizes one camera frame and returns the resulting state.
func (k *Kiosk) Frame(ctx context.Context, image []byte) (session.State, error) {
	k.touch()
	return k.session.Process(ctx, k.recognizer, image)
}

// Submit hands a frame to the kiosk's background worker and returns without
// waiting for recognition. A frame still waiting when the next one arrives is
// dropped. Poll State for the outcome.
func (k *Kiosk) Submit(image []byte) {
	k.touch()
	k.workerOnce.Do(func() {
		go func() {
			if err := k.worker.Run(k.workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("kiosk %s: worker stopped: %v", k.id, err)
			}
		}()
	})
	k.worker.Submit(image)
}

// Stats returns how many submitted frames were processed and dropped.
func (k *Kiosk) Stats() (processed, dropped uint64) {
	return k.worker.Stats()
}

// Close stops the background worker. The kiosk must not be used afterwards.
func (k *Kiosk) Close() {
	k.stopWorker()
}

// Reset is the operator's "Again" action.
func (k *Kiosk) Reset() session.State {
	k.touch()
	return k.session.Reset()
}

// Record appends an event of type typ for the currently recognized identity.
func (k *Kiosk) Record(ctx context.Context, typ ledger.EventType) (ledger.Event, error) {
	k.touch()
	id, ok := k.session.State().Current()
	if !ok {
		return ledger.Event{}, ErrNoIdentity
	}

	// Whole seconds, the resolution of the ledger file and of day ranges.
	event := ledger.Event{Name: id.Name, Timestamp: k.clock().Truncate(time.Second), Type: typ}
	if err := k.ledger.Append(ctx, event); err != nil {
		return ledger.Event{}, fmt.Errorf("record %s for %s: %w", typ.Label(), id.Name, err)
	}
	log.Printf("kiosk %s: recorded %s for %s", k.id, typ.Label(), id.Name)
	return event, nil
}

// LastActive returns when the kiosk last handled a request.
func (k *Kiosk) LastActive() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lastActive
}

func (k *Kiosk) touch() {
	k.mu.Lock()
	k.lastActive = k.clock()
	k.mu.Unlock()
}
