package session

import (
	"context"
	"sync"
)

// Processor recognizes frames on a single background worker. Frames are not
// queued: a frame submitted while another is waiting replaces it.
type Processor struct {
	session    *Session
	recognizer *Recognizer
	onState    func(State)

	mu        sync.Mutex
	pending   []byte
	hasFrame  bool
	dropped   uint64
	processed uint64
	wake      chan struct{}
}

// NewProcessor creates a processor. onState, if not nil, is called from the
// worker after every processed frame.
func NewProcessor(s *Session, r *Recognizer, onState func(State)) *Processor {
	return &Processor{
		session:    s,
		recognizer: r,
		onState:    onState,
		wake:       make(chan struct{}, 1),
	}
}

// Session returns the session updated by the processor.
func (p *Processor) Session() *Session {
	return p.session
}

// Submit hands a frame to the worker without blocking.
func (p *Processor) Submit(frame []byte) {
	p.mu.Lock()
	if p.hasFrame {
		p.dropped++
	}
	p.pending, p.hasFrame = frame, true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stats returns how many frames were processed and how many were replaced
// before the worker got to them.
func (p *Processor) Stats() (processed, dropped uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed, p.dropped
}

func (p *Processor) take() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasFrame {
		return nil, false
	}
	frame := p.pending
	p.pending, p.hasFrame = nil, false
	return frame, true
}

// Run processes submitted frames until ctx is canceled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		}

		for {
			frame, ok := p.take()
			if !ok {
				break
			}
			// Errors are logged by Process and reflected in the state.
			state, _ := p.session.Process(ctx, p.recognizer, frame)

			p.mu.Lock()
			p.processed++
			p.mu.Unlock()

			if p.onState != nil {
				p.onState(state)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}
