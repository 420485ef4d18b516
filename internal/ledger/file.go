package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// FileStore is a CSV ledger without a header: name,YYYY-MM-DD HH:MM:SS,type.
// Each record is written with a single append so concurrent writers never
// interleave within a record.
type FileStore struct {
	path string
	loc  *time.Location
	mu   sync.Mutex
}

// NewFileStore creates a file-backed ledger. The file is created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, loc: time.Local}
}

// WithLocation sets the time zone timestamps are written and read in.
func (s *FileStore) WithLocation(loc *time.Location) *FileStore {
	s.loc = loc
	return s
}

// Path returns the ledger file path.
func (s *FileStore) Path() string {
	return s.path
}

func encodeRecord(fields []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Append implements Store.
func (s *FileStore) Append(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	record, err := encodeRecord([]string{
		strings.TrimSpace(e.Name),
		e.Timestamp.In(s.loc).Format(TimestampLayout),
		e.Type.Label(),
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, s.path, err)
	}

	// A torn final line must not swallow the new record.
	if needsNewline(f) {
		record = append([]byte{'\n'}, record...)
	}

	if _, err := f.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("%w: append to %s: %w", ErrIO, s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrIO, s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, s.path, err)
	}
	return nil
}

// needsNewline reports whether the file is non-empty and lacks a trailing newline.
func needsNewline(f *os.File) bool {
	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return false
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false
	}
	return last[0] != '\n'
}

// LoadAll implements Store. A missing file is an empty ledger.
func (s *FileStore) LoadAll(ctx context.Context) (*LoadResult, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &LoadResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, s.path, err)
	}
	defer f.Close()

	result, err := Parse(f, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, s.path, err)
	}
	for _, skipped := range result.Skipped {
		log.Printf("ledger: skipping %s record %v", s.path, skipped)
	}
	return result, nil
}

// Parse reads ledger records line by line. Blank lines are ignored; any
// other line that is not a valid record is reported in Skipped.
func Parse(r io.Reader, loc *time.Location) (*LoadResult, error) {
	result := &LoadResult{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		event, reason := parseRecord(raw, loc)
		if reason != "" {
			result.Skipped = append(result.Skipped, &MalformedRecordError{Line: line, Raw: raw, Reason: reason})
			continue
		}
		result.Events = append(result.Events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseRecord(raw string, loc *time.Location) (Event, string) {
	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil {
		return Event{}, err.Error()
	}
	if len(fields) != 3 {
		return Event{}, fmt.Sprintf("expected 3 fields, got %d", len(fields))
	}

	name := strings.TrimSpace(fields[0])
	if name == "" {
		return Event{}, "empty name"
	}
	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(fields[1]), loc)
	if err != nil {
		return Event{}, fmt.Sprintf("bad timestamp %q", fields[1])
	}
	typ, err := ParseEventType(fields[2])
	if err != nil {
		return Event{}, err.Error()
	}
	return Event{Name: name, Timestamp: ts, Type: typ}, ""
}
