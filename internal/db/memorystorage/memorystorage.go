// Package memorystorage is the fallback backend used when no database and no
// storage file are configured. Data lives for the lifetime of the process.
package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/vidlib/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewInMemory(),
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
