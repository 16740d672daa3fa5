package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"car-offers-bot/models"
)

var csvHeader = []string{"date", "title", "price", "url", "source", "publication_time"}

// CSVStore is an append-mostly log of sent offers in a single CSV file.
// Every field is quoted. The file is rewritten only on eviction.
// It is safe for concurrent use.
type CSVStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewCSVStore opens (or creates) the log at path and makes sure it starts with
// the header row. Intermediate directories are created automatically.
func NewCSVStore(path string) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create data dir: %w", err)
	}

	s := &CSVStore{path: path, now: time.Now}
	if err := s.ensureHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

// WithClock replaces the clock used to compute today's partition.
func (s *CSVStore) WithClock(now func() time.Time) *CSVStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Path returns the location of the log file.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) ensureHeader() error {
	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("csv: stat %q: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, []byte(formatRow(csvHeader)), 0644); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	return nil
}

// Load returns the keys recorded for day.
func (s *CSVStore) Load(ctx context.Context, day string) (map[models.Key]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords()
	if err != nil {
		return nil, err
	}

	keys := make(map[models.Key]struct{})
	for _, r := range records {
		if r.Day == day {
			keys[r.Key()] = struct{}{}
		}
	}
	return keys, nil
}

// Records returns every persisted record in file order.
func (s *CSVStore) Records(ctx context.Context) ([]models.DedupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRecords()
}

// Append writes one row per listing under today's partition in a single write.
func (s *CSVStore) Append(ctx context.Context, listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	day := models.DayOf(s.now())
	var buf bytes.Buffer
	for _, l := range listings {
		buf.WriteString(formatRecord(models.NewDedupRecord(day, l)))
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("csv: open for append: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("csv: stat: %w", err)
	}
	data := buf.Bytes()
	if info.Size() == 0 {
		data = append([]byte(formatRow(csvHeader)), data...)
	}

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("csv: append rows: %w", err)
	}
	return f.Sync()
}

// Evict rewrites the log keeping only records from the last daysToKeep days.
// The rewrite goes through a temporary file so a crash leaves either the old
// or the new log in place.
func (s *CSVStore) Evict(ctx context.Context, daysToKeep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords()
	if err != nil {
		return err
	}

	cutoff := models.CutoffDay(s.now(), daysToKeep)
	var buf bytes.Buffer
	buf.WriteString(formatRow(csvHeader))
	for _, r := range records {
		if r.Day >= cutoff {
			buf.WriteString(formatRecord(r))
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".offers-*.csv")
	if err != nil {
		return fmt.Errorf("csv: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	// CreateTemp opens with 0600; the rewritten log keeps the old mode.
	mode := os.FileMode(0644)
	if fi, err := os.Stat(s.path); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("csv: replace log: %w", err)
	}
	return nil
}

func (s *CSVStore) Close() error {
	return nil
}

// readRecords parses the whole log. Callers must hold s.mu.
func (s *CSVStore) readRecords() ([]models.DedupRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	field := func(row []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []models.DedupRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: read row: %w", err)
		}
		if len(row) == 1 && row[0] == "" {
			continue
		}
		records = append(records, models.DedupRecord{
			Day:             field(row, "date"),
			Title:           field(row, "title"),
			Price:           field(row, "price"),
			URL:             field(row, "url"),
			Source:          field(row, "source"),
			PublicationTime: field(row, "publication_time"),
		})
	}
	return records, nil
}

func formatRecord(r models.DedupRecord) string {
	return formatRow([]string{r.Day, r.Title, r.Price, r.URL, r.Source, r.PublicationTime})
}

// formatRow quotes every field, doubling embedded quotes.
func formatRow(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",") + "\n"
}
