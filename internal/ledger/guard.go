package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Policy controls which events a Guard lets through.
type Policy int

const (
	// PolicyAllow records every event.
	PolicyAllow Policy = iota
	// PolicyRejectRepeat rejects an event whose type equals the last type
	// recorded for the same name (IN after IN, OUT after OUT).
	PolicyRejectRepeat
)

// ParsePolicy parses "allow" or "reject-repeat".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "allow":
		return PolicyAllow, nil
	case "reject-repeat":
		return PolicyRejectRepeat, nil
	default:
		return PolicyAllow, fmt.Errorf("unknown duplicate policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PolicyRejectRepeat {
		return "reject-repeat"
	}
	return "allow"
}

// Guard applies a duplicate-event policy in front of a Store.
type Guard struct {
	Store
	policy Policy

	mu     sync.Mutex
	last   map[string]EventType
	loaded bool
}

// NewGuard wraps store with policy.
func NewGuard(store Store, policy Policy) *Guard {
	return &Guard{Store: store, policy: policy, last: make(map[string]EventType)}
}

// Policy returns the active policy.
func (g *Guard) Policy() Policy {
	return g.policy
}

// Append records e unless the policy rejects it.
func (g *Guard) Append(ctx context.Context, e Event) error {
	if g.policy == PolicyAllow {
		return g.Store.Append(ctx, e)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.loaded {
		result, err := g.Store.LoadAll(ctx)
		if err != nil {
			return err
		}
		for _, ev := range result.Events {
			g.last[ev.Name] = ev.Type
		}
		g.loaded = true
	}

	name := strings.TrimSpace(e.Name)
	if prev, ok := g.last[name]; ok && prev == e.Type {
		return fmt.Errorf("%w: %s already has %s recorded", ErrRepeatedEvent, name, e.Type.Label())
	}
	if err := g.Store.Append(ctx, e); err != nil {
		return err
	}
	g.last[name] = e.Type
	return nil
}

// Unwrap returns the guarded store.
func (g *Guard) Unwrap() Store {
	return g.Store
}
