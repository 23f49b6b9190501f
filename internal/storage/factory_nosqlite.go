//go:build !sqlite

package storage

import "errors"

// The sqlite backend is opt-in to keep the default build free of the
// modernc driver. This stub keeps NewStore's dispatch total.
func newSQLiteStore(string) (Store, error) {
	return nil, errors.New("recording store sqlite not compiled in; rebuild with -tags sqlite")
}
