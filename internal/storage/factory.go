package storage

import (
	"fmt"
	"strings"
)

// NewStore builds the recording store named by kind. An empty kind
// selects the in-memory store so callers without persistence config
// still get a working pipeline. dbPath is only consulted by the
// sqlite backend.
func NewStore(kind, dbPath string) (Store, error) {
	switch strings.ToLower(kind) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(dbPath)
	default:
		return nil, fmt.Errorf("unknown recording store %q (want memory or sqlite)", kind)
	}
}

// CloseIfSupported closes stores that hold external resources. The
// memory store has nothing to release and passes through silently.
func CloseIfSupported(s Store) error {
	if closer, ok := s.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
