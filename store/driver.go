package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Record model related methods.
	CreateRecord(ctx context.Context, create *Record) (*Record, error)
	ListRecords(ctx context.Context, find *FindRecord) ([]*Record, error)
	UpdateRecordEmbedding(ctx context.Context, update *UpdateRecordEmbedding) error
}
