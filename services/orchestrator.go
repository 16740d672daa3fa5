package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"car-offers-bot/models"
	"car-offers-bot/monitoring"
	"car-offers-bot/notifier"
	"car-offers-bot/storage"
	"car-offers-bot/utils"
)

// OrchestratorConfig controls the polling loop.
type OrchestratorConfig struct {
	// SourceURLs maps a source key to its search results URL.
	SourceURLs     map[string]string
	PollInterval   time.Duration
	RetentionDays  int
	AnnounceStatus bool
	// CycleRetry wraps each cycle. A zero value means 3 attempts, 2s base, x2.
	CycleRetry utils.RetryConfig
}

// CycleError is logged when a cycle fails after all attempts.
type CycleError struct {
	CycleID string
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %s failed: %v", shortID(e.CycleID), e.Err)
}

func (e *CycleError) Unwrap() error { return e.Err }

// Orchestrator drives the fetch, filter, deliver and mark cycle on a timer.
// The sent-offer cache is touched only from the goroutine running cycles.
type Orchestrator struct {
	cfg      OrchestratorConfig
	scraper  SourceScraper
	store    storage.DedupStore
	sink     notifier.Sink
	filter   *Filter
	cache    *OfferCache
	pending  []models.Listing
	metrics  *monitoring.Metrics
	logger   *utils.Logger
	now      func() time.Time
	running  atomic.Bool
	stopped  atomic.Bool
	wake     chan struct{}
	statusMu sync.Mutex
	status   healthStatus
}

type healthStatus struct {
	lastSuccess time.Time
	lastErr     string
	cacheDay    string
	cacheKeys   int
}

func NewOrchestrator(cfg OrchestratorConfig, src SourceScraper, store storage.DedupStore, sink notifier.Sink, metrics *monitoring.Metrics, logger *utils.Logger) *Orchestrator {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.CycleRetry.MaxAttempts == 0 {
		cfg.CycleRetry = utils.RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2}
	}
	return &Orchestrator{
		cfg:     cfg,
		scraper: src,
		store:   store,
		sink:    sink,
		filter:  NewFilter(logger),
		cache:   NewOfferCache(),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
	}
}

// WithClock replaces the time source used for day partitions.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run polls until ctx is done or Stop is called. Cycle failures are logged
// and never end the loop. A cycle already in progress is not cancelled by
// ctx; it finishes or times out on its own. Run returns at once if Stop was
// already called.
func (o *Orchestrator) Run(ctx context.Context) {
	if o.stopped.Load() {
		o.logger.Info("[orchestrator] Stopped before start")
		return
	}
	o.running.Store(true)
	o.logger.Info("[orchestrator] Polling %d sources every %v", len(o.cfg.SourceURLs), o.cfg.PollInterval)
	o.announce(ctx, botStartedMsg)

	for !o.stopped.Load() && ctx.Err() == nil {
		o.RunCycle(ctx)

		if o.stopped.Load() {
			break
		}
		t := time.NewTimer(o.cfg.PollInterval)
		select {
		case <-ctx.Done():
		case <-o.wake:
		case <-t.C:
		}
		t.Stop()
	}
	o.running.Store(false)
	o.logger.Info("[orchestrator] Stopped")
}

// Stop ends Run after the current cycle. It is final: a Run started later
// returns without polling.
func (o *Orchestrator) Stop() {
	o.stopped.Store(true)
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Running reports whether Run is active.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// RunCycle performs one cycle with the cycle retry policy. ctx only bounds
// the waits between attempts.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	id := uuid.NewString()
	log := o.logger.With("cycle", shortID(id))
	start := time.Now()

	retry := o.cfg.CycleRetry
	retry.Logger = log

	var report *CycleReport
	err := retry.Do(ctx, "cycle", func() error {
		report = newCycleReport(id, models.DayOf(o.now()))
		return o.safeCycle(context.WithoutCancel(ctx), report, log)
	})
	report.Duration = time.Since(start)
	o.metrics.ObserveCycle(report.Duration, err)
	log.Info("[orchestrator] Cycle summary\n%s", report)

	if err != nil {
		cerr := &CycleError{CycleID: id, Err: err}
		log.Error("[orchestrator] %v", cerr)
		o.setStatus(func(s *healthStatus) { s.lastErr = cerr.Error() })
		return cerr
	}
	o.setStatus(func(s *healthStatus) {
		s.lastSuccess = time.Now()
		s.lastErr = ""
	})
	return nil
}

func (o *Orchestrator) safeCycle(ctx context.Context, report *CycleReport, log *utils.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("[orchestrator] panic in cycle: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.cycle(ctx, report, log)
}

func (o *Orchestrator) cycle(ctx context.Context, report *CycleReport, log *utils.Logger) error {
	if err := o.checkRollover(ctx, report, log); err != nil {
		return err
	}
	if err := o.flushPending(ctx); err != nil {
		report.StoreErr = err
		return err
	}

	keys := make([]string, 0, len(o.cfg.SourceURLs))
	for k := range o.cfg.SourceURLs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		o.announce(ctx, fmt.Sprintf(checkingSourceMsg, o.scraper.SourceName(k)))
	}

	results, errs := o.scraper.ScrapeAll(ctx, o.cfg.SourceURLs)

	var storeErr error
	for _, k := range keys {
		name := o.scraper.SourceName(k)
		stats := report.source(k, name)

		if err := errs[k]; err != nil {
			stats.Err = err
			log.Error("[orchestrator] %s: %v", name, err)
			o.announce(ctx, fmt.Sprintf(sourceErrorMsg, name, err))
			continue
		}

		if err := o.processSource(ctx, results[k], stats, log); err != nil {
			log.Error("[orchestrator] %s: %v", name, err)
			o.announce(ctx, fmt.Sprintf(sourceErrorMsg, name, err))
			if storeErr == nil {
				storeErr = err
			}
			continue
		}
		o.announce(ctx, fmt.Sprintf(offersSentMsg, stats.New, name))
	}

	report.StoreErr = storeErr
	return storeErr
}

// checkRollover loads today's keys when the cache belongs to another day.
// On a Monday rollover the store is also trimmed to the retention window.
func (o *Orchestrator) checkRollover(ctx context.Context, report *CycleReport, log *utils.Logger) error {
	now := o.now()
	today := models.DayOf(now)
	if o.cache.Day() == today {
		return nil
	}

	keys, err := o.store.Load(ctx, today)
	if err != nil {
		o.metrics.IncStoreError("load")
		return fmt.Errorf("load sent offers for %s: %w", today, err)
	}

	firstLoad := o.cache.Day() == ""
	o.cache.Reset(today, keys)
	// Pending offers were already delivered and are stamped with today's
	// date when the store finally takes them.
	for _, l := range o.pending {
		o.cache.Add(l.Key())
	}
	o.metrics.SetCacheSize(o.cache.Len())
	o.setStatus(func(s *healthStatus) {
		s.cacheDay = today
		s.cacheKeys = o.cache.Len()
	})

	if firstLoad {
		log.Info("[orchestrator] Loaded %d sent offers for %s", len(keys), today)
		return nil
	}

	report.Rollover = true
	log.Info("[orchestrator] New day %s, %d sent offers loaded", today, len(keys))
	o.announce(ctx, dailyResetMsg)

	if models.IsWeekStart(now) {
		if err := o.store.Evict(ctx, o.cfg.RetentionDays); err != nil {
			o.metrics.IncStoreError("evict")
			log.Error("[orchestrator] Evicting records older than %d days: %v", o.cfg.RetentionDays, err)
		} else {
			log.Info("[orchestrator] Evicted records older than %s", models.CutoffDay(now, o.cfg.RetentionDays))
		}
	}
	return nil
}

// processSource delivers the new offers of one source and marks them sent.
// A failed delivery is logged and the offer is still marked.
func (o *Orchestrator) processSource(ctx context.Context, listings []models.Listing, stats *SourceStats, log *utils.Logger) error {
	stats.Fetched = len(listings)
	fresh := o.filter.Fresh(listings, o.cache)
	stats.New = len(fresh)
	if len(fresh) == 0 {
		return nil
	}

	for _, l := range fresh {
		if err := o.sink.Send(ctx, FormatListing(l)); err != nil {
			stats.DeliveryFailed++
			o.metrics.IncDeliveryError()
			log.Warn("[orchestrator] Delivering %q: %v", l.Title, err)
			continue
		}
		stats.Delivered++
		o.metrics.IncDelivered(l.Source)
	}

	return o.markSent(ctx, fresh)
}

// markSent records keys in the cache, then persists them. Listings whose
// append fails are kept and written with the next append.
func (o *Orchestrator) markSent(ctx context.Context, listings []models.Listing) error {
	for _, l := range listings {
		o.cache.Add(l.Key())
	}
	o.metrics.SetCacheSize(o.cache.Len())
	o.setStatus(func(s *healthStatus) { s.cacheKeys = o.cache.Len() })

	o.pending = append(o.pending, listings...)
	return o.flushPending(ctx)
}

func (o *Orchestrator) flushPending(ctx context.Context) error {
	if len(o.pending) == 0 {
		return nil
	}
	if err := o.store.Append(ctx, o.pending); err != nil {
		o.metrics.IncStoreError("append")
		return fmt.Errorf("persist %d sent offers: %w", len(o.pending), err)
	}
	o.pending = nil
	return nil
}

// Pending returns the number of sent offers not yet persisted.
func (o *Orchestrator) Pending() int {
	return len(o.pending)
}

func (o *Orchestrator) announce(ctx context.Context, msg string) {
	if !o.cfg.AnnounceStatus {
		return
	}
	if err := o.sink.Send(ctx, msg); err != nil {
		o.logger.Warn("[orchestrator] Status message not delivered: %v", err)
	}
}

func (o *Orchestrator) setStatus(fn func(*healthStatus)) {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()
	fn(&o.status)
}

// Health reports loop state for the monitoring endpoint. Safe to call from
// any goroutine.
func (o *Orchestrator) Health() map[string]any {
	o.statusMu.Lock()
	defer o.statusMu.Unlock()

	h := map[string]any{
		"running":    o.running.Load(),
		"cache_day":  o.status.cacheDay,
		"cache_keys": o.status.cacheKeys,
	}
	if !o.status.lastSuccess.IsZero() {
		h["last_success"] = o.status.lastSuccess.Format(time.RFC3339)
	}
	if o.status.lastErr != "" {
		h["last_error"] = o.status.lastErr
	}
	return h
}
