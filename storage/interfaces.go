package storage

import (
	"context"

	"car-offers-bot/models"
)

// DedupStore persists the keys of offers already sent, partitioned by day.
type DedupStore interface {
	// Load returns every key recorded for day. A day with no records yields an empty set.
	Load(ctx context.Context, day string) (map[models.Key]struct{}, error)
	// Append records listings under today's partition. Empty input is a no-op.
	Append(ctx context.Context, listings []models.Listing) error
	// Evict drops records older than today minus daysToKeep.
	Evict(ctx context.Context, daysToKeep int) error
	Close() error
}
