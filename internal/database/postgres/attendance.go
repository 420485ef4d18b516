package postgres

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceRepository stores the attendance ledger in the attendance_events table.
type AttendanceRepository struct {
	pool *Pool
	loc  *time.Location
}

var _ ledger.Store = (*AttendanceRepository)(nil)

// NewAttendanceRepository creates a new PostgreSQL attendance ledger.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool, loc: time.Local}
}

// WithLocation sets the time zone loaded events are converted to.
func (r *AttendanceRepository) WithLocation(loc *time.Location) *AttendanceRepository {
	r.loc = loc
	return r
}

// Append stores one event.
func (r *AttendanceRepository) Append(ctx context.Context, e ledger.Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		"INSERT INTO attendance_events (name, occurred_at, event_type) VALUES ($1, $2, $3)",
		e.Name, e.Timestamp.Truncate(time.Second), string(e.Type),
	)
	if err != nil {
		return fmt.Errorf("%w: insert attendance event: %w", ledger.ErrIO, err)
	}
	return nil
}

// LoadAll returns all events in insertion order.
func (r *AttendanceRepository) LoadAll(ctx context.Context) (*ledger.LoadResult, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, name, occurred_at, event_type FROM attendance_events ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrIO, err)
	}
	defer rows.Close()

	result := &ledger.LoadResult{}
	for rows.Next() {
		var (
			id   int64
			name string
			ts   time.Time
			typ  string
		)
		if err := rows.Scan(&id, &name, &ts, &typ); err != nil {
			return nil, fmt.Errorf("%w: scan attendance event: %w", ledger.ErrIO, err)
		}
		e, bad := ledger.DecodeRow(id, name, ts, typ, r.loc)
		if bad != nil {
			log.Printf("ledger: skipping attendance_events row %v", bad)
			result.Skipped = append(result.Skipped, bad)
			continue
		}
		result.Events = append(result.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate attendance events: %w", ledger.ErrIO, err)
	}
	return result, nil
}

// Between returns the events with start <= occurred_at <= end, using the
// occurred_at index instead of loading the whole ledger.
func (r *AttendanceRepository) Between(ctx context.Context, start, end time.Time) ([]ledger.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, occurred_at, event_type
		FROM attendance_events
		WHERE occurred_at >= $1 AND occurred_at <= $2
		ORDER BY id
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrIO, err)
	}
	defer rows.Close()

	var events []ledger.Event
	for rows.Next() {
		var (
			id   int64
			name string
			ts   time.Time
			typ  string
		)
		if err := rows.Scan(&id, &name, &ts, &typ); err != nil {
			return nil, fmt.Errorf("%w: scan attendance event: %w", ledger.ErrIO, err)
		}
		e, bad := ledger.DecodeRow(id, name, ts, typ, r.loc)
		if bad != nil {
			log.Printf("ledger: skipping attendance_events row %v", bad)
			continue
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate attendance events: %w", ledger.ErrIO, err)
	}
	return events, nil
}
