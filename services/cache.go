package services

import "car-offers-bot/models"

// OfferCache holds the keys already sent on one day. It belongs to a single
// Orchestrator and is not safe for concurrent use.
type OfferCache struct {
	day  string
	keys map[models.Key]struct{}
}

func NewOfferCache() *OfferCache {
	return &OfferCache{keys: make(map[models.Key]struct{})}
}

// Reset replaces the cache contents with keys for day.
func (c *OfferCache) Reset(day string, keys map[models.Key]struct{}) {
	if keys == nil {
		keys = make(map[models.Key]struct{})
	}
	c.day = day
	c.keys = keys
}

func (c *OfferCache) Contains(k models.Key) bool {
	_, ok := c.keys[k]
	return ok
}

func (c *OfferCache) Add(k models.Key) {
	c.keys[k] = struct{}{}
}

// Day is the partition the cache was loaded for, or "" before the first load.
func (c *OfferCache) Day() string { return c.day }

func (c *OfferCache) Len() int { return len(c.keys) }
