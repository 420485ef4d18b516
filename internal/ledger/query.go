package ledger

import (
	"context"
	"time"
)

// Ranger is implemented by stores that can answer a time-window query
// without loading the whole ledger.
type Ranger interface {
	Between(ctx context.Context, start, end time.Time) ([]Event, error)
}

// Query returns the events with start <= timestamp <= end in storage order.
// Stores that implement Ranger filter themselves; the rest are loaded in
// full and passed through Filter.
func Query(ctx context.Context, s Store, start, end time.Time) ([]Event, error) {
	for {
		if r, ok := s.(Ranger); ok {
			return r.Between(ctx, start, end)
		}
		u, ok := s.(interface{ Unwrap() Store })
		if !ok {
			break
		}
		s = u.Unwrap()
	}

	result, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(result.Events, start, end), nil
}
