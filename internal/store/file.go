package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookgo/atomicfile"
	fslock "github.com/ipfs/go-fs-lock"
)

const (
	// DefaultPrefix names record files when no keep specific prefix is given.
	DefaultPrefix = "peer"

	// FileExt is the extension of JSON record files.
	FileExt = "json"
)

// FileBackend keeps one file per record:
//
//	<dir>/local/<prefix>.<uid>.json
//	<dir>/remote/<prefix>.<uid>.json
//
// Writes go to a temporary file in the same directory which is then renamed
// over the record, so a crash never leaves a half written record. A lock file
// <dir>/<prefix>.lock keeps a second process from opening the same keep.
type FileBackend struct {
	dir    string
	prefix string
	lock   io.Closer
}

// OpenFile opens (creating if needed) a file backend rooted at dir.
func OpenFile(dir, prefix string) (*FileBackend, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if strings.ContainsAny(prefix, "./\\") {
		return nil, fmt.Errorf("invalid record prefix %q", prefix)
	}

	for _, ns := range []Namespace{Local, Remote} {
		if err := os.MkdirAll(filepath.Join(dir, string(ns)), 0700); err != nil {
			return nil, fmt.Errorf("failed to create keep directory: %w", err)
		}
	}

	lock, err := fslock.Lock(dir, prefix+".lock")
	if err != nil {
		return nil, fmt.Errorf("failed to lock keep %s: %w", dir, err)
	}

	log.Debugf("Opened file keep %s (prefix %s)", dir, prefix)
	return &FileBackend{
		dir:    dir,
		prefix: prefix,
		lock:   lock,
	}, nil
}

// Dir returns the keep directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Path returns the file a record is stored in.
func (b *FileBackend) Path(ns Namespace, uid string) string {
	return filepath.Join(b.dir, string(ns), b.prefix+"."+uid+"."+FileExt)
}

// Get reads a record.
func (b *FileBackend) Get(ns Namespace, uid string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(ns, uid))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put atomically replaces a record.
func (b *FileBackend) Put(ns Namespace, uid string, data []byte) error {
	f, err := atomicfile.New(b.Path(ns, uid), 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Abort()
		return err
	}
	return f.Close()
}

// Delete removes a record.
func (b *FileBackend) Delete(ns Namespace, uid string) error {
	err := os.Remove(b.Path(ns, uid))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List reads every record in a namespace.
func (b *FileBackend) List(ns Namespace) (map[string][]byte, error) {
	entries, err := os.ReadDir(filepath.Join(b.dir, string(ns)))
	if err != nil {
		return nil, err
	}

	head, tail := b.prefix+".", "."+FileExt
	out := make(map[string][]byte)
	for _, e := range entries {
		name := e.Name()
		// Temporary files from an interrupted write do not end in the extension.
		if e.IsDir() || !strings.HasPrefix(name, head) || !strings.HasSuffix(name, tail) {
			continue
		}
		uid := strings.TrimSuffix(strings.TrimPrefix(name, head), tail)
		if uid == "" {
			continue
		}
		data, err := b.Get(ns, uid)
		if errors.Is(err, ErrNotFound) {
			continue // removed since ReadDir
		}
		if err != nil {
			return nil, err
		}
		out[uid] = data
	}
	return out, nil
}

// Close releases the directory lock.
func (b *FileBackend) Close() error {
	if b.lock == nil {
		return nil
	}
	err := b.lock.Close()
	b.lock = nil
	return err
}

var _ Backend = (*FileBackend)(nil)
