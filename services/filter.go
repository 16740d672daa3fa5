package services

import (
	"strings"

	"car-offers-bot/models"
	"car-offers-bot/utils"
)

// Filter selects the offers of a batch that have not been sent yet.
type Filter struct {
	logger *utils.Logger
}

// NewFilter creates a Filter with the given logger.
func NewFilter(logger *utils.Logger) *Filter {
	return &Filter{logger: logger}
}

// Fresh returns the listings whose key is neither in cache nor repeated
// earlier in the same batch. Order is preserved.
func (f *Filter) Fresh(listings []models.Listing, cache *OfferCache) []models.Listing {
	seen := make(map[models.Key]struct{})
	result := make([]models.Listing, 0, len(listings))

	for _, l := range listings {
		if strings.TrimSpace(l.Title) == "" {
			f.logger.Warn("[filter] Dropping listing with empty title: %s", l.URL)
			continue
		}

		k := l.Key()
		if cache.Contains(k) {
			continue
		}
		if _, dup := seen[k]; dup {
			f.logger.Debug("[filter] Duplicate offer in batch skipped: %s (%s)", l.Title, l.URL)
			continue
		}
		seen[k] = struct{}{}
		result = append(result, l)
	}

	return result
}
