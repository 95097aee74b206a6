package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/log"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

const (
	brandKeyPrefix = "brand:"   // brand:<slug> -> BrandDBEntry JSON
	hashKeyPrefix  = "hash:"    // hash:<content hash> -> owning slug
	stateDBDir     = "brand_db" // Subdirectory within stateDir for Badger files
)

// BadgerStore implements StateStore using BadgerDB
type BadgerStore struct {
	db  *badger.DB
	log *logrus.Entry
}

// NewBadgerStore opens (or creates) the state database under stateDir.
// reset wipes any previous state first.
func NewBadgerStore(stateDir string, reset bool, logger *logrus.Entry) (*BadgerStore, error) {
	dbPath := filepath.Join(stateDir, stateDBDir)

	if reset {
		logger.Warnf("Reset requested. REMOVING existing state directory: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}

	store := &BadgerStore{db: db, log: logger}
	if count, err := store.Count(); err == nil {
		logger.Infof("State database ready at %s (%d keys)", dbPath, count)
	}
	return store, nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Workers finishing brands at the same time can touch the same hash keys.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// CheckBrandStatus implements BrandStore
func (s *BadgerStore) CheckBrandStatus(slug string) (models.BrandStatus, *models.BrandDBEntry, error) {
	status := models.BrandStatusNotFound
	var entry *models.BrandDBEntry
	key := []byte(brandKeyPrefix + slug)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting brand key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.BrandDBEntry
			if errJSON := json.Unmarshal(val, &decoded); errJSON != nil {
				s.log.Warnf("Failed to unmarshal BrandDBEntry for '%s': %v. Treating as 'pending'.", slug, errJSON)
				status = models.BrandStatusPending
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in CheckBrandStatus for '%s': %v", slug, errView)
		return models.BrandStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdateBrandStatus implements BrandStore
func (s *BadgerStore) UpdateBrandStatus(slug string, entry *models.BrandDBEntry) error {
	key := []byte(brandKeyPrefix + slug)

	entryBytes, errJSON := json.Marshal(entry)
	if errJSON != nil {
		return fmt.Errorf("%w: failed to marshal BrandDBEntry for '%s': %w", utils.ErrParsing, slug, errJSON)
	}

	err := s.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		s.log.WithField("brand", slug).Errorf("DB Update error in UpdateBrandStatus: %v", err)
		return fmt.Errorf("%w: failed setting status for brand '%s': %w", utils.ErrDatabase, slug, err)
	}

	s.log.Debugf("Stored status '%s' for brand '%s'", entry.Status, slug)
	return nil
}

// ListBrandEntries implements BrandStore
func (s *BadgerStore) ListBrandEntries() (map[string]models.BrandDBEntry, error) {
	out := make(map[string]models.BrandDBEntry)
	err := s.scanPrefix(brandKeyPrefix, func(key string, val []byte) error {
		var entry models.BrandDBEntry
		if errJSON := json.Unmarshal(val, &entry); errJSON != nil {
			s.log.Warnf("Skipping undecodable entry for brand '%s': %v", key, errJSON)
			return nil
		}
		out[key] = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing brands: %w", utils.ErrDatabase, err)
	}
	return out, nil
}

// RecordHash implements HashStore
func (s *BadgerStore) RecordHash(hash, slug string) error {
	if hash == "" {
		return nil
	}
	key := []byte(hashKeyPrefix + hash)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errGet == nil {
			var owner string
			if errVal := item.Value(func(val []byte) error { owner = string(val); return nil }); errVal != nil {
				return errVal
			}
			if owner != slug {
				s.log.WithFields(logrus.Fields{"hash": hash, "owner": owner, "brand": slug}).Debug("Hash already recorded for another brand")
			}
			return nil
		}
		if !errors.Is(errGet, badger.ErrKeyNotFound) {
			return errGet
		}
		return txn.SetEntry(badger.NewEntry(key, []byte(slug)))
	})
	if err != nil {
		return fmt.Errorf("%w: recording hash '%s': %w", utils.ErrDatabase, hash, err)
	}
	return nil
}

// ForEachHash implements HashStore
func (s *BadgerStore) ForEachHash(fn func(hash, slug string) error) error {
	return s.scanPrefix(hashKeyPrefix, func(key string, val []byte) error {
		return fn(key, string(val))
	})
}

// scanPrefix calls fn with the key (prefix stripped) and a copy of each value
func (s *BadgerStore) scanPrefix(prefix string, fn func(key string, val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(p):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count implements StoreAdmin
func (s *BadgerStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// RunGC runs BadgerDB's value log garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				continue
			}
			var err error
			for {
				// Rewrite while at least half of a value log file is reclaimable
				if err = s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}
		case <-ctx.Done():
			s.log.Debugf("Stopping BadgerDB garbage collection: %v", ctx.Err())
			return
		}
	}
}

// Close implements StoreAdmin
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		s.log.Errorf("Error closing state DB: %v", err)
		return err
	}
	s.log.Debug("State DB closed.")
	return nil
}
