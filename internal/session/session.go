// Package session tracks what the camera currently shows: no face, a face
// that could not be aligned, an unknown face or a recognized identity.
package session

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/matcher"
)

// Gallery provides the current gallery snapshot.
type Gallery interface {
	Snapshot() *gallery.Index
}

// Recognizer runs the extractor and the matcher on one frame.
type Recognizer struct {
	extractor extractor.Extractor
	matcher   matcher.Matcher
	gallery   Gallery
}

// NewRecognizer creates a recognizer over the given gallery.
func NewRecognizer(ext extractor.Extractor, m matcher.Matcher, g Gallery) *Recognizer {
	return &Recognizer{extractor: ext, matcher: m, gallery: g}
}

// Recognize extracts the probe from frame and matches it against the current
// gallery snapshot. The match result is zero unless the detection is aligned.
func (r *Recognizer) Recognize(ctx context.Context, frame []byte) (extractor.Detection, matcher.Result, error) {
	det, err := r.extractor.DetectAndEmbed(ctx, frame)
	if err != nil {
		return extractor.Detection{}, matcher.Result{}, fmt.Errorf("extract probe: %w", err)
	}
	if !det.Aligned() {
		return det, matcher.Result{Distance: math.Inf(1)}, nil
	}
	return det, r.matcher.Match(det.Embedding, r.gallery.Snapshot()), nil
}

// Session is the recognition state machine for one camera.
type Session struct {
	mu           sync.Mutex
	state        State
	stableFrames int
	candidate    string
	streak       int
	generation   uint64
}

// Option configures a Session.
type Option func(*Session)

// WithStableFrames requires the same identity on n consecutive frames before
// it is reported as recognized. Values below 1 are treated as 1.
func WithStableFrames(n int) Option {
	return func(s *Session) {
		s.stableFrames = max(n, 1)
	}
}

// New creates a session in the NoFace state.
func New(opts ...Option) *Session {
	s := &Session{
		state:        State{Kind: NoFace, Distance: math.Inf(1)},
		stableFrames: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Generation returns the reset counter. Results computed for an older
// generation are discarded.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Reset returns the session to NoFace and invalidates in-flight frames.
func (s *Session) Reset() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.candidate, s.streak = "", 0
	s.state = State{Kind: NoFace, Distance: math.Inf(1)}
	return s.state
}

// Observe applies the outcome of one frame.
func (s *Session) Observe(det extractor.Detection, res matcher.Result) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeLocked(det, res)
	return s.state
}

// ObserveAt applies a frame outcome only if no reset happened since gen was
// read. The second return value reports whether it was applied.
func (s *Session) ObserveAt(gen uint64, det extractor.Detection, res matcher.Result) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return s.state, false
	}
	s.observeLocked(det, res)
	return s.state, true
}

func (s *Session) observeLocked(det extractor.Detection, res matcher.Result) {
	switch {
	case det.Faces == 0 && !det.Aligned():
		s.candidate, s.streak = "", 0
		s.state = State{Kind: NoFace, Distance: math.Inf(1)}
	case !det.Aligned():
		s.candidate, s.streak = "", 0
		s.state = State{Kind: NotAligned, Distance: math.Inf(1)}
	case !res.Known():
		s.candidate, s.streak = "", 0
		s.state = State{Kind: UnknownFace, Distance: res.Distance}
	default:
		if res.Identity.Name == s.candidate {
			s.streak++
		} else {
			s.candidate, s.streak = res.Identity.Name, 1
		}
		if s.streak < s.stableFrames {
			s.state = State{Kind: UnknownFace, Distance: res.Distance}
			return
		}
		id := *res.Identity
		s.state = State{Kind: Recognized, Identity: &id, Distance: res.Distance}
	}
}

// Process recognizes one frame synchronously. An extraction failure leaves
// the session in NotAligned and is returned.
func (s *Session) Process(ctx context.Context, r *Recognizer, frame []byte) (State, error) {
	gen := s.Generation()
	det, res, err := r.Recognize(ctx, frame)
	if err != nil {
		log.Printf("session: %v", err)
		state, _ := s.ObserveAt(gen, extractor.Detection{Faces: 1}, matcher.Result{})
		return state, err
	}
	state, _ := s.ObserveAt(gen, det, res)
	return state, nil
}
