package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"car-offers-bot/models"
)

func newTestStore(t *testing.T, now time.Time) (*CSVStore, *time.Time) {
	t.Helper()
	clock := now
	s, err := NewCSVStore(filepath.Join(t.TempDir(), "data", "offers.csv"))
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	s.WithClock(func() time.Time { return clock })
	return s, &clock
}

func listing(title, price string) models.Listing {
	return models.NewListing(title, price, "https://example.com/"+title, "").WithSource("Otomoto")
}

func TestCSVStoreWritesHeader(t *testing.T) {
	s, _ := newTestStore(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	want := `"date","title","price","url","source","publication_time"` + "\n"
	if string(data) != want {
		t.Errorf("file content: got %q, want %q", data, want)
	}
}

func TestCSVStoreLoadEmpty(t *testing.T) {
	s, _ := newTestStore(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))

	keys, err := s.Load(context.Background(), "2024-03-18")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("keys: got %d, want 0", len(keys))
	}
}

func TestCSVStoreAppendAndLoadByDay(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))

	if err := s.Append(ctx, []models.Listing{listing("Golf", "10000 PLN"), listing("Polo", "8000 PLN")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	*clock = clock.AddDate(0, 0, 1)
	if err := s.Append(ctx, []models.Listing{listing("Passat", "15000 PLN")}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	day1, err := s.Load(ctx, "2024-03-18")
	if err != nil {
		t.Fatal(err)
	}
	if len(day1) != 2 {
		t.Errorf("day 1 keys: got %d, want 2", len(day1))
	}
	if _, ok := day1[models.Key{Title: "Golf", Price: "10000 PLN"}]; !ok {
		t.Error("Golf missing from day 1")
	}

	day2, err := s.Load(ctx, "2024-03-19")
	if err != nil {
		t.Fatal(err)
	}
	if len(day2) != 1 {
		t.Errorf("day 2 keys: got %d, want 1", len(day2))
	}
	if _, ok := day2[models.Key{Title: "Golf", Price: "10000 PLN"}]; ok {
		t.Error("day 1 record visible in day 2")
	}
}

func TestCSVStoreAppendEmptyIsNoop(t *testing.T) {
	s, _ := newTestStore(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))
	before, _ := os.ReadFile(s.Path())

	if err := s.Append(context.Background(), nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	after, _ := os.ReadFile(s.Path())
	if string(before) != string(after) {
		t.Error("empty append modified the file")
	}
}

func TestCSVStoreQuotesEveryField(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))

	l := models.NewListing(`Audi A4 "Avant", 1.9`, "9 000 zł", "https://example.com/a4", "dziś 10:00").WithSource("Lento")
	if err := s.Append(ctx, []models.Listing{l}); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(s.Path())
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := `"2024-03-18","Audi A4 ""Avant"", 1.9","9 000 zł","https://example.com/a4","Lento","dziś 10:00"`
	if lines[1] != want {
		t.Errorf("row: got %s, want %s", lines[1], want)
	}

	keys, _ := s.Load(ctx, "2024-03-18")
	if _, ok := keys[l.Key()]; !ok {
		t.Error("quoted title did not round-trip")
	}
}

func TestCSVStoreEvictKeepsWindow(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s, clock := newTestStore(t, start)

	// One record per day from 2024-03-01 to 2024-03-18.
	for d := 0; d < 18; d++ {
		*clock = start.AddDate(0, 0, d)
		l := models.NewListing(fmt.Sprintf("Car %02d", d+1), `1 "000"`, "https://example.com/x", "").WithSource("Autoplac")
		if err := s.Append(ctx, []models.Listing{l}); err != nil {
			t.Fatal(err)
		}
	}

	before, err := s.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Evict(ctx, 7); err != nil {
		t.Fatalf("Evict: %v", err)
	}

	after, err := s.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}

	cutoff := "2024-03-11"
	var want []models.DedupRecord
	for _, r := range before {
		if r.Day >= cutoff {
			want = append(want, r)
		}
	}
	if len(after) != len(want) {
		t.Fatalf("records after evict: got %d, want %d", len(after), len(want))
	}
	for i := range want {
		if after[i] != want[i] {
			t.Errorf("record %d changed: got %+v, want %+v", i, after[i], want[i])
		}
	}
	for _, r := range after {
		if r.Day < cutoff {
			t.Errorf("record older than cutoff survived: %+v", r)
		}
	}

	// The log stays appendable after a rewrite.
	if err := s.Append(ctx, []models.Listing{listing("Golf", "10000 PLN")}); err != nil {
		t.Fatal(err)
	}
	keys, _ := s.Load(ctx, "2024-03-18")
	if len(keys) != 2 {
		t.Errorf("keys for last day: got %d, want 2", len(keys))
	}
}

func TestCSVStoreEvictKeepsFileMode(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))
	if err := s.Append(ctx, []models.Listing{listing("Golf", "10000 PLN")}); err != nil {
		t.Fatal(err)
	}

	for _, mode := range []os.FileMode{0644, 0640} {
		if err := os.Chmod(s.Path(), mode); err != nil {
			t.Fatal(err)
		}
		if err := s.Evict(ctx, 7); err != nil {
			t.Fatalf("Evict: %v", err)
		}
		fi, err := os.Stat(s.Path())
		if err != nil {
			t.Fatal(err)
		}
		if got := fi.Mode().Perm(); got != mode {
			t.Errorf("mode after evict: got %v, want %v", got, mode)
		}
	}
}

func TestCSVStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			batch := []models.Listing{
				listing(fmt.Sprintf("A%d", i), "1"),
				listing(fmt.Sprintf("B%d", i), "2"),
			}
			if err := s.Append(ctx, batch); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Evict(ctx, 7); err != nil {
			t.Errorf("Evict: %v", err)
		}
	}()
	wg.Wait()

	records, err := s.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 20 {
		t.Errorf("records: got %d, want 20", len(records))
	}
	// Rows of one batch are written together.
	for i := 0; i+1 < len(records); i += 2 {
		a, b := records[i].Title, records[i+1].Title
		if a[0] != 'A' || b[0] != 'B' || a[1:] != b[1:] {
			t.Errorf("interleaved batch rows at %d: %q, %q", i, a, b)
		}
	}
}

func TestCSVStoreMissingFileLoadsEmpty(t *testing.T) {
	s, _ := newTestStore(t, time.Date(2024, 3, 18, 9, 0, 0, 0, time.UTC))
	if err := os.Remove(s.Path()); err != nil {
		t.Fatal(err)
	}

	keys, err := s.Load(context.Background(), "2024-03-18")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("keys: got %d, want 0", len(keys))
	}

	if err := s.Append(context.Background(), []models.Listing{listing("Golf", "1")}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(s.Path())
	if !strings.HasPrefix(string(data), `"date",`) {
		t.Errorf("header not restored: %q", data)
	}
}
