package store

import (
	"context"
	"errors"
	"fmt"

	datastore "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	leveldb "github.com/ipfs/go-ds-leveldb"
)

// DatastoreBackend stores records in a go-datastore under
// /<stack>/<prefix>/<namespace>/<uid>.
type DatastoreBackend struct {
	ds   datastore.Datastore
	root datastore.Key
	own  bool
}

// NewDatastore wraps an existing datastore. The caller keeps ownership: Close
// does not close d.
func NewDatastore(d datastore.Datastore, stack, prefix string) *DatastoreBackend {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &DatastoreBackend{
		ds:   d,
		root: datastore.NewKey(stack).ChildString(prefix),
	}
}

// OpenLevelDB opens (creating if needed) a LevelDB datastore at path.
func OpenLevelDB(path, stack, prefix string) (*DatastoreBackend, error) {
	d, err := leveldb.NewDatastore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb keep %s: %w", path, err)
	}
	b := NewDatastore(d, stack, prefix)
	b.own = true
	log.Debugf("Opened leveldb keep %s (stack %s, prefix %s)", path, stack, prefix)
	return b, nil
}

func (b *DatastoreBackend) nsKey(ns Namespace) datastore.Key {
	return b.root.ChildString(string(ns))
}

func (b *DatastoreBackend) key(ns Namespace, uid string) datastore.Key {
	return b.nsKey(ns).ChildString(uid)
}

// Get reads a record.
func (b *DatastoreBackend) Get(ns Namespace, uid string) ([]byte, error) {
	data, err := b.ds.Get(context.Background(), b.key(ns, uid))
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put replaces a record and syncs it to disk.
func (b *DatastoreBackend) Put(ns Namespace, uid string, data []byte) error {
	ctx := context.Background()
	k := b.key(ns, uid)
	if err := b.ds.Put(ctx, k, data); err != nil {
		return err
	}
	return b.ds.Sync(ctx, k)
}

// Delete removes a record.
func (b *DatastoreBackend) Delete(ns Namespace, uid string) error {
	ctx := context.Background()
	k := b.key(ns, uid)
	if err := b.ds.Delete(ctx, k); err != nil && !errors.Is(err, datastore.ErrNotFound) {
		return err
	}
	return b.ds.Sync(ctx, k)
}

// List reads every record in a namespace.
func (b *DatastoreBackend) List(ns Namespace) (map[string][]byte, error) {
	parent := b.nsKey(ns)
	res, err := b.ds.Query(context.Background(), query.Query{Prefix: parent.String()})
	if err != nil {
		return nil, err
	}
	entries, err := res.Rest()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		k := datastore.RawKey(e.Key)
		if !k.Parent().Equal(parent) {
			continue
		}
		out[k.BaseNamespace()] = e.Value
	}
	return out, nil
}

// Close closes the datastore if this backend opened it.
func (b *DatastoreBackend) Close() error {
	if !b.own {
		return nil
	}
	return b.ds.Close()
}

var _ Backend = (*DatastoreBackend)(nil)
