package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// BrandStore persists the last outcome for each brand, used by resume
type BrandStore interface {
	// CheckBrandStatus returns BrandStatusNotFound with a nil entry for unknown slugs
	CheckBrandStatus(slug string) (models.BrandStatus, *models.BrandDBEntry, error)

	UpdateBrandStatus(slug string, entry *models.BrandDBEntry) error

	// ListBrandEntries returns every stored brand entry keyed by slug
	ListBrandEntries() (map[string]models.BrandDBEntry, error)
}

// HashStore records which brand owns a content hash across runs
type HashStore interface {
	// RecordHash keeps the first owner; recording a hash owned by another slug is a no-op
	RecordHash(hash, slug string) error

	ForEachHash(fn func(hash, slug string) error) error
}

// StoreAdmin handles lifecycle and administrative operations
type StoreAdmin interface {
	// Count returns the number of keys in the store
	Count() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	Close() error
}

// StateStore combines all store interfaces
type StateStore interface {
	BrandStore
	HashStore
	StoreAdmin
}
