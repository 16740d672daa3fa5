package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"car-offers-bot/models"
	"car-offers-bot/monitoring"
	"car-offers-bot/scraper"
	"car-offers-bot/utils"
)

// ErrUnknownSource is returned for a source key with no registered adapter.
var ErrUnknownSource = errors.New("unknown source")

// DefaultWorkers is the number of sources fetched at once.
const DefaultWorkers = 4

// SourceScraper fetches listings for a set of sources.
type SourceScraper interface {
	ScrapeAll(ctx context.Context, urls map[string]string) (map[string][]models.Listing, map[string]error)
	SourceName(key string) string
}

// Executor runs the registered adapters in a bounded worker pool with a
// retry policy around each source.
type Executor struct {
	adapters map[string]scraper.Adapter
	workers  int
	retry    utils.RetryConfig
	metrics  *monitoring.Metrics
	logger   *utils.Logger
}

// NewExecutor registers adapters by source key, e.g. "otomoto".
func NewExecutor(adapters map[string]scraper.Adapter, workers int, metrics *monitoring.Metrics, logger *utils.Logger) *Executor {
	if workers < 1 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Executor{
		adapters: adapters,
		workers:  workers,
		retry: utils.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Multiplier:  2,
			Retryable:   scraper.IsRetryable,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// WithRetry overrides the per-source retry policy. Retryable is kept when
// cfg leaves it nil.
func (e *Executor) WithRetry(cfg utils.RetryConfig) *Executor {
	if cfg.Retryable == nil {
		cfg.Retryable = e.retry.Retryable
	}
	e.retry = cfg
	return e
}

// SourceName returns the display name for a source key.
func (e *Executor) SourceName(key string) string {
	if a, ok := e.adapters[key]; ok {
		return a.Name()
	}
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// ScrapeAll fetches every source in urls. A source that fails after all
// retries yields an empty slice and an entry in the error map; the other
// sources are unaffected.
func (e *Executor) ScrapeAll(ctx context.Context, urls map[string]string) (map[string][]models.Listing, map[string]error) {
	results := make(map[string][]models.Listing, len(urls))
	errs := make(map[string]error)
	var mu sync.Mutex

	keys := make([]string, 0, len(urls))
	for k := range urls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pool := utils.NewWorkerPool(e.workers, 0)
	for _, key := range keys {
		key, url := key, urls[key]
		adapter, ok := e.adapters[key]
		if !ok {
			mu.Lock()
			results[key] = []models.Listing{}
			errs[key] = fmt.Errorf("%w: %s", ErrUnknownSource, key)
			mu.Unlock()
			continue
		}

		pool.Submit(func() {
			listings, err := e.scrapeOne(ctx, adapter, url)
			mu.Lock()
			defer mu.Unlock()
			results[key] = listings
			if err != nil {
				errs[key] = err
			}
		})
	}
	pool.Wait()

	return results, errs
}

func (e *Executor) scrapeOne(ctx context.Context, adapter scraper.Adapter, url string) ([]models.Listing, error) {
	name := adapter.Name()
	start := time.Now()

	retry := e.retry
	retry.Logger = e.logger

	var found []models.Listing
	err := retry.Do(ctx, "scrape "+name, func() error {
		doc, err := fetchPage(ctx, adapter, url)
		if err != nil {
			return err
		}
		listings, err := extractListings(adapter, doc)
		if err != nil {
			return err
		}
		found = listings
		return nil
	})
	e.metrics.ObserveFetch(name, time.Since(start))

	if err != nil {
		e.metrics.IncSourceError(name)
		e.logger.Error("[executor] %s failed: %v", name, err)
		return []models.Listing{}, err
	}

	stamped := make([]models.Listing, len(found))
	for i, l := range found {
		stamped[i] = l.WithSource(name)
	}
	e.metrics.AddScraped(name, len(stamped))
	e.logger.Info("[executor] %s: %d listings", name, len(stamped))
	return stamped, nil
}

// fetchPage reports every fetch failure, panics included, as a
// *scraper.FetchError so the retry policy treats it as transient.
func fetchPage(ctx context.Context, adapter scraper.Adapter, url string) (doc *goquery.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, &scraper.FetchError{URL: url, Err: fmt.Errorf("%s fetch panicked: %v", adapter.Name(), r)}
		}
	}()
	doc, err = adapter.Fetch(ctx, url)
	if err != nil {
		var fe *scraper.FetchError
		if !errors.As(err, &fe) {
			err = &scraper.FetchError{URL: url, Err: err}
		}
		return nil, err
	}
	return doc, nil
}

// extractListings only yields a retryable error when the page structure is
// unusable (*scraper.ParseError).
func extractListings(adapter scraper.Adapter, doc *goquery.Document) (listings []models.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			listings, err = nil, fmt.Errorf("%s extract panicked: %v", adapter.Name(), r)
		}
	}()
	return adapter.Extract(doc)
}
