package credstore

import (
	"io"

	"github.com/pkg/errors"
)

// Drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the KV for driver at path, sealed with key when key is non-nil. The
// returned closer releases the backend and is never nil.
func Open(driver, path string, key []byte) (KV, io.Closer, error) {
	var (
		kv     KV
		closer io.Closer = nopCloser{}
	)

	switch driver {
	case DriverMemory:
		kv = NewMemoryKV()
	case DriverFile, "":
		f, err := NewFileKV(path)
		if err != nil {
			return nil, nil, err
		}
		kv = f
	case DriverSQLite:
		db, err := NewSQLiteKV(path)
		if err != nil {
			return nil, nil, err
		}
		kv, closer = db, db
	default:
		return nil, nil, errors.Errorf("[Open] unknown store driver %q", driver)
	}

	if key == nil {
		return kv, closer, nil
	}
	sealed, err := NewSealedKV(kv, key)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return sealed, closer, nil
}
