// Package scraper defines the contract every classifieds site adapter
// satisfies, along with the fetchers that retrieve result pages.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"car-offers-bot/models"
	"car-offers-bot/utils"
)

// Adapter turns one site's search results page into normalised listings.
type Adapter interface {
	// Name is the display name stamped on every listing from this site.
	Name() string
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
	// Extract returns listings with Source unset. A malformed item is skipped;
	// only a structurally unusable page yields a *ParseError.
	Extract(doc *goquery.Document) ([]models.Listing, error)
}

// Fetcher retrieves and parses an HTML page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Base carries what all adapters share: a display name, a fetcher and a logger.
// Adapters embed it to get Name and Fetch.
type Base struct {
	name    string
	fetcher Fetcher
	Logger  *utils.Logger
}

// NewBase creates a Base for the named site.
func NewBase(name string, fetcher Fetcher, logger *utils.Logger) Base {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return Base{name: name, fetcher: fetcher, Logger: logger}
}

func (b Base) Name() string { return b.name }

// Fetch delegates to the configured fetcher.
func (b Base) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if b.fetcher == nil {
		return nil, &FetchError{URL: url, Err: errors.New("no fetcher configured")}
	}
	b.Logger.Debug("[%s] Fetching page: %s", b.name, url)
	return b.fetcher.Fetch(ctx, url)
}

// FetchError reports a network failure, timeout or non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a page whose expected results container is missing.
type ParseError struct {
	Source string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Source, e.Reason)
}

// IsRetryable reports whether err is a fetch or structural parse failure.
func IsRetryable(err error) bool {
	var fe *FetchError
	var pe *ParseError
	return errors.As(err, &fe) || errors.As(err, &pe)
}
