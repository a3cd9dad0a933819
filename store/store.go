// Package store provides the record persistence layer for the insight pipeline.
package store

import (
	"context"
	"sync"

	"github.com/promptlens/promptlens/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// embedLocks serializes embedding writes per record ID so that
	// concurrent backfills never double-embed the same record.
	embedLocks sync.Map // record ID -> *sync.Mutex
}

// New creates a new Store with the given driver and profile.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		profile: profile,
		driver:  driver,
	}
}

// Migrate prepares the database schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateRecord creates a new record.
func (s *Store) CreateRecord(ctx context.Context, create *Record) (*Record, error) {
	return s.driver.CreateRecord(ctx, create)
}

// ListRecords lists records ordered by creation time ascending.
func (s *Store) ListRecords(ctx context.Context, find *FindRecord) ([]*Record, error) {
	return s.driver.ListRecords(ctx, find)
}

// UpdateRecordEmbedding persists a backfilled embedding.
func (s *Store) UpdateRecordEmbedding(ctx context.Context, update *UpdateRecordEmbedding) error {
	return s.driver.UpdateRecordEmbedding(ctx, update)
}

// recordLock returns the mutex guarding embedding writes for a record ID.
func (s *Store) recordLock(id string) *sync.Mutex {
	lock, _ := s.embedLocks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
