package services

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SourceStats counts what happened to one source during a cycle.
type SourceStats struct {
	Name           string
	Fetched        int
	New            int
	Delivered      int
	DeliveryFailed int
	Err            error
}

// CycleReport summarises one poll cycle.
type CycleReport struct {
	CycleID  string
	Day      string
	Rollover bool
	Duration time.Duration
	Sources  map[string]*SourceStats
	StoreErr error
}

func newCycleReport(id, day string) *CycleReport {
	return &CycleReport{
		CycleID: id,
		Day:     day,
		Sources: make(map[string]*SourceStats),
	}
}

func (r *CycleReport) source(key, name string) *SourceStats {
	s, ok := r.Sources[key]
	if !ok {
		s = &SourceStats{Name: name}
		r.Sources[key] = s
	}
	return s
}

// Totals sums the per-source counters.
func (r *CycleReport) Totals() (fetched, fresh, delivered, failed int) {
	for _, s := range r.Sources {
		fetched += s.Fetched
		fresh += s.New
		delivered += s.Delivered
		failed += s.DeliveryFailed
	}
	return
}

// FailedSources returns the keys of sources that could not be fetched, sorted.
func (r *CycleReport) FailedSources() []string {
	var keys []string
	for k, s := range r.Sources {
		if s.Err != nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (r *CycleReport) String() string {
	thin := strings.Repeat("─", 54)
	var b strings.Builder

	fmt.Fprintf(&b, "cycle %s | day %s | %v\n", shortID(r.CycleID), r.Day, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  %s\n", thin)
	fmt.Fprintf(&b, "  %-14s %8s %6s %10s %8s\n", "source", "fetched", "new", "delivered", "failed")

	keys := make([]string, 0, len(r.Sources))
	for k := range r.Sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s := r.Sources[k]
		if s.Err != nil {
			fmt.Fprintf(&b, "  %-14s error: %s\n", truncate(s.Name, 14), truncate(s.Err.Error(), 60))
			continue
		}
		fmt.Fprintf(&b, "  %-14s %8d %6d %10d %8d\n", truncate(s.Name, 14), s.Fetched, s.New, s.Delivered, s.DeliveryFailed)
	}

	fetched, fresh, delivered, failed := r.Totals()
	fmt.Fprintf(&b, "  %s\n", thin)
	fmt.Fprintf(&b, "  %-14s %8d %6d %10d %8d", "total", fetched, fresh, delivered, failed)
	if r.StoreErr != nil {
		fmt.Fprintf(&b, "\n  store: %v", r.StoreErr)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
