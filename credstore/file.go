package credstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// fileDocument is the on-disk layout of FileKV.
type fileDocument struct {
	Values    map[string]string `json:"values"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FileKV keeps every key in one JSON document. Writes take an exclusive lock on
// <path>.lock so that two processes sharing the file (the web shell and the CLI)
// never interleave their read-modify-write cycles.
type FileKV struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// FileKVOption defines a function type to modify a FileKV.
type FileKVOption func(*FileKV)

func WithFileLogger(logger zerolog.Logger) FileKVOption {
	return func(f *FileKV) {
		f.logger = logger
	}
}

// NewFileKV creates the parent directory of path if needed. The file itself is only
// created by the first write.
func NewFileKV(path string, options ...FileKVOption) (*FileKV, error) {
	if path == "" {
		return nil, errors.New("[NewFileKV] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileKV] create directory")
	}

	f := &FileKV{
		path:   path,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(f)
	}
	return f, nil
}

func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(key string) (string, bool, error) {
	doc, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Values[key]
	return v, ok, nil
}

func (f *FileKV) Set(key, value string) error {
	if key == "" {
		return errors.New("[FileKV.Set] key is required")
	}
	return f.update(func(values map[string]string) {
		values[key] = value
	})
}

func (f *FileKV) Delete(key string) error {
	return f.update(func(values map[string]string) {
		delete(values, key)
	})
}

// load reads the document. A missing file is an empty store, and so is a file that
// no longer parses: a damaged session must never stop the client from starting.
func (f *FileKV) load() (*fileDocument, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileDocument{Values: map[string]string{}}, nil
		}
		return nil, errors.Wrap(err, "[FileKV] read store file")
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		f.logger.Warn().Err(err).Str("path", f.path).Msg("session store unreadable, starting empty")
		return &fileDocument{Values: map[string]string{}}, nil
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return &doc, nil
}

func (f *FileKV) update(mutate func(values map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lockFile, err := os.OpenFile(f.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return errors.Wrap(err, "[FileKV] open lock file")
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return errors.Wrap(err, "[FileKV] acquire file lock")
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	doc, err := f.load()
	if err != nil {
		return err
	}
	mutate(doc.Values)
	doc.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileKV] marshal store")
	}
	return f.writeAtomic(append(data, '\n'))
}

func (f *FileKV) writeAtomic(data []byte) error {
	tmpPath := f.path + ".tmp"

	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrap(err, "[FileKV] create temp file")
	}

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return errors.Wrap(err, "[FileKV] write temp file")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrap(err, "[FileKV] fsync temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "[FileKV] close temp file")
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "[FileKV] rename temp file")
	}
	return nil
}
