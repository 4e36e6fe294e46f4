// Package store persists keep records keyed by peer uid.
//
// A Backend is a byte-level key-value facade with two namespaces: Local holds
// the single record describing this node, Remote holds one record per peer.
// RecordStore layers typed JSON records on top of any Backend. Backends are
// interchangeable: a flat directory of files, a SQLite table, or a go-datastore
// (LevelDB) keyspace.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"
)

var log = logging.Logger("sdn-store")

// Namespace separates the local record from remote records.
type Namespace string

const (
	Local  Namespace = "local"
	Remote Namespace = "remote"
)

// Errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidUID    = errors.New("invalid uid")
	ErrMultipleLocal = errors.New("more than one local record")
)

// Backend stores opaque records. Get returns ErrNotFound when no record
// exists. Put fully replaces the record for uid and must be atomic: a reader
// sees either the old or the new record, never a partial one. Delete of a
// missing record is not an error.
type Backend interface {
	Get(ns Namespace, uid string) ([]byte, error)
	Put(ns Namespace, uid string, data []byte) error
	Delete(ns Namespace, uid string) error
	List(ns Namespace) (map[string][]byte, error)
	Close() error
}

// PersistenceError wraps any I/O or decoding failure. It is never returned
// for a record that simply does not exist.
type PersistenceError struct {
	Op        string
	Namespace Namespace
	UID       string
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("store: %s %s: %v", e.Op, e.Namespace, e.Err)
	}
	return fmt.Sprintf("store: %s %s/%s: %v", e.Op, e.Namespace, e.UID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ValidUID checks that uid can be used as a record key in every backend.
func ValidUID(uid string) error {
	switch {
	case uid == "", uid == ".", uid == "..":
		return fmt.Errorf("%w: %q", ErrInvalidUID, uid)
	case strings.ContainsAny(uid, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidUID, uid)
	}
	return nil
}

// RecordStore maps typed local (L) and remote (R) records onto a Backend.
type RecordStore[L, R any] struct {
	backend Backend
}

// New creates a RecordStore over backend.
func New[L, R any](backend Backend) *RecordStore[L, R] {
	return &RecordStore[L, R]{backend: backend}
}

// Backend returns the underlying backend.
func (s *RecordStore[L, R]) Backend() Backend {
	return s.backend
}

// LoadLocal returns the local record, or nil if none has been dumped.
func (s *RecordStore[L, R]) LoadLocal() (*L, error) {
	all, err := s.backend.List(Local)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Namespace: Local, Err: err}
	}

	switch len(all) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, &PersistenceError{Op: "load", Namespace: Local, Err: ErrMultipleLocal}
	}

	for uid, data := range all {
		var rec L
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, &PersistenceError{Op: "decode", Namespace: Local, UID: uid, Err: err}
		}
		return &rec, nil
	}
	return nil, nil
}

// DumpLocal replaces the local record. Any local record stored under a
// different uid is removed so that exactly one remains.
func (s *RecordStore[L, R]) DumpLocal(rec L, uid string) error {
	if err := s.put(Local, uid, rec); err != nil {
		return err
	}

	all, err := s.backend.List(Local)
	if err != nil {
		return &PersistenceError{Op: "list", Namespace: Local, Err: err}
	}
	for stale := range all {
		if stale == uid {
			continue
		}
		if err := s.backend.Delete(Local, stale); err != nil {
			return &PersistenceError{Op: "delete", Namespace: Local, UID: stale, Err: err}
		}
		log.Debugf("Removed stale local record %s", stale)
	}
	return nil
}

// LoadRemote returns the remote record for uid, or nil if there is none.
func (s *RecordStore[L, R]) LoadRemote(uid string) (*R, error) {
	if err := ValidUID(uid); err != nil {
		return nil, err
	}

	data, err := s.backend.Get(Remote, uid)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load", Namespace: Remote, UID: uid, Err: err}
	}

	var rec R
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &PersistenceError{Op: "decode", Namespace: Remote, UID: uid, Err: err}
	}
	return &rec, nil
}

// DumpRemote replaces the remote record for uid.
func (s *RecordStore[L, R]) DumpRemote(rec R, uid string) error {
	return s.put(Remote, uid, rec)
}

// LoadAllRemote returns every remote record keyed by uid.
func (s *RecordStore[L, R]) LoadAllRemote() (map[string]R, error) {
	all, err := s.backend.List(Remote)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Namespace: Remote, Err: err}
	}

	out := make(map[string]R, len(all))
	for uid, data := range all {
		var rec R
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, &PersistenceError{Op: "decode", Namespace: Remote, UID: uid, Err: err}
		}
		out[uid] = rec
	}
	return out, nil
}

// ClearLocal removes the local record.
func (s *RecordStore[L, R]) ClearLocal() error {
	return s.clear(Local)
}

// ClearRemote removes the remote record for uid.
func (s *RecordStore[L, R]) ClearRemote(uid string) error {
	if err := ValidUID(uid); err != nil {
		return err
	}
	if err := s.backend.Delete(Remote, uid); err != nil {
		return &PersistenceError{Op: "delete", Namespace: Remote, UID: uid, Err: err}
	}
	return nil
}

// ClearAllRemote removes every remote record.
func (s *RecordStore[L, R]) ClearAllRemote() error {
	return s.clear(Remote)
}

// Close closes the backend.
func (s *RecordStore[L, R]) Close() error {
	return s.backend.Close()
}

func (s *RecordStore[L, R]) put(ns Namespace, uid string, rec any) error {
	if err := ValidUID(uid); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return &PersistenceError{Op: "encode", Namespace: ns, UID: uid, Err: err}
	}
	if err := s.backend.Put(ns, uid, data); err != nil {
		return &PersistenceError{Op: "dump", Namespace: ns, UID: uid, Err: err}
	}
	return nil
}

func (s *RecordStore[L, R]) clear(ns Namespace) error {
	all, err := s.backend.List(ns)
	if err != nil {
		return &PersistenceError{Op: "list", Namespace: ns, Err: err}
	}

	var errs error
	for uid := range all {
		if err := s.backend.Delete(ns, uid); err != nil {
			errs = multierr.Append(errs, &PersistenceError{Op: "delete", Namespace: ns, UID: uid, Err: err})
		}
	}
	if errs == nil {
		log.Debugf("Cleared %d %s records", len(all), ns)
	}
	return errs
}
