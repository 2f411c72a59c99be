package db

import (
	"context"
	"fmt"
	"path/filepath"
)

// Store persists whole JSON documents by name. Get returns nil, nil when the
// document does not exist yet. Put replaces the document atomically: a reader
// sees either the previous body or the new one, never a partial write.
type Store interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, body []byte) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the document store selected by backend, rooted at dataDir.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dataDir)
	case BackendSQLite:
		return OpenSQL(filepath.Join(dataDir, "bot.db"))
	}
	return nil, fmt.Errorf("unsupported storage backend: %s", backend)
}
