// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/promptlens/promptlens/internal/profile"
	"github.com/promptlens/promptlens/store"
	"github.com/promptlens/promptlens/store/db/postgres"
	"github.com/promptlens/promptlens/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// PostgreSQL is the production driver: embeddings live in pgvector columns.
// SQLite is for development and testing: embeddings are stored as JSON text.
// Similarity math always runs in-process, so both drivers support the full
// pipeline.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
