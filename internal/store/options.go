package store

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Backend kinds accepted by Open.
const (
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
)

// SQLiteFile is the database shared by every keep of a stack.
const SQLiteFile = "keep.db"

// Options selects and locates a backend.
type Options struct {
	// Backend is one of BackendFile, BackendSQLite or BackendLevelDB.
	// Empty means BackendFile.
	Backend string

	// Dir is the base directory; records live under <Dir>/keep/<Stack>.
	Dir string

	// Stack names the logical stack the records belong to.
	Stack string

	// Prefix tells the records of different keeps apart within a stack.
	Prefix string
}

// Root returns the directory holding the stack's records.
func (o Options) Root() string {
	return filepath.Join(o.Dir, "keep", o.Stack)
}

// ValidStack checks that a stack name is usable as a single path element.
func ValidStack(stack string) error {
	if stack == "" || stack == "." || stack == ".." || strings.ContainsAny(stack, "/\\\x00") {
		return fmt.Errorf("invalid stack name %q", stack)
	}
	return nil
}

// Open opens the backend described by opts.
func Open(opts Options) (Backend, error) {
	if err := ValidStack(opts.Stack); err != nil {
		return nil, err
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}

	root := opts.Root()
	switch opts.Backend {
	case "", BackendFile:
		return OpenFile(root, opts.Prefix)
	case BackendSQLite:
		return OpenSQLite(filepath.Join(root, SQLiteFile), opts.Stack, opts.Prefix)
	case BackendLevelDB:
		return OpenLevelDB(filepath.Join(root, opts.Prefix+".leveldb"), opts.Stack, opts.Prefix)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
