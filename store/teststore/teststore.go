// Package teststore provides an in-memory store driver for tests.
package teststore

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/promptlens/promptlens/store"
)

// Driver is an in-memory implementation of store.Driver.
type Driver struct {
	mu      sync.Mutex
	records []*store.Record

	// EmbeddingWrites counts UpdateRecordEmbedding calls, for asserting
	// backfill idempotency.
	EmbeddingWrites int

	// LastFind is the condition of the most recent ListRecords call.
	LastFind *store.FindRecord
}

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{}
}

// Seed adds records directly, bypassing CreateRecord.
func (d *Driver) Seed(records ...*store.Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, records...)
}

func (d *Driver) GetDB() *sql.DB { return nil }

func (d *Driver) Close() error { return nil }

func (d *Driver) IsInitialized(_ context.Context) (bool, error) { return true, nil }

func (d *Driver) Migrate(_ context.Context) error { return nil }

func (d *Driver) CreateRecord(_ context.Context, create *store.Record) (*store.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, create)
	return create, nil
}

func (d *Driver) ListRecords(_ context.Context, find *store.FindRecord) ([]*store.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.LastFind = find

	wanted := func(record *store.Record) bool {
		if find.ID != nil && record.ID != *find.ID {
			return false
		}
		if len(find.IDs) > 0 {
			found := false
			for _, id := range find.IDs {
				if record.ID == id {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		if find.OwnerID != nil && record.OwnerID != *find.OwnerID {
			return false
		}
		if find.CreatedSince != nil && record.CreatedTs < *find.CreatedSince {
			return false
		}
		if find.CreatedUntil != nil && record.CreatedTs >= *find.CreatedUntil {
			return false
		}
		return true
	}

	list := []*store.Record{}
	for _, record := range d.records {
		if wanted(record) {
			list = append(list, project(record, find))
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedTs < list[j].CreatedTs
	})
	if find.Limit > 0 && len(list) > find.Limit {
		list = list[:find.Limit]
	}
	return list, nil
}

// project applies the same column projection as the SQL drivers: with Field
// set only that text/embedding pair survives, with ExcludeContent both pairs
// are blanked. Projected results are copies so seed data stays intact.
func project(record *store.Record, find *store.FindRecord) *store.Record {
	if find.Field == nil && !find.ExcludeContent {
		return record
	}
	projected := *record
	if find.ExcludeContent || *find.Field == store.FieldResponse {
		projected.PromptText = ""
		projected.PromptEmbedding = nil
	}
	if find.ExcludeContent || (find.Field != nil && *find.Field == store.FieldPrompt) {
		projected.ResponseText = ""
		projected.ResponseEmbedding = nil
	}
	return &projected
}

func (d *Driver) UpdateRecordEmbedding(_ context.Context, update *store.UpdateRecordEmbedding) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, record := range d.records {
		if record.ID == update.ID {
			record.SetEmbedding(update.Field, update.Embedding)
			d.EmbeddingWrites++
			return nil
		}
	}
	return errors.Errorf("record %s not found", update.ID)
}
