package keep

import (
	"errors"

	"github.com/spacedatanetwork/sdn-keep/internal/store"
)

// RoadPrefix names RoadKeep records within a stack.
const RoadPrefix = "road"

// RoadKeep stores the routing facts of this node and of remote peers.
type RoadKeep struct {
	records *store.RecordStore[RoadLocalRecord, RoadRemoteRecord]
}

// NewRoadKeep creates a RoadKeep over backend.
func NewRoadKeep(backend store.Backend) *RoadKeep {
	return &RoadKeep{
		records: store.New[RoadLocalRecord, RoadRemoteRecord](backend),
	}
}

// OpenRoadKeep opens the backend described by opts and creates a RoadKeep
// over it. The record prefix is always RoadPrefix.
func OpenRoadKeep(opts store.Options) (*RoadKeep, error) {
	opts.Prefix = RoadPrefix
	backend, err := store.Open(opts)
	if err != nil {
		return nil, err
	}
	return NewRoadKeep(backend), nil
}

// DumpLocal persists this node's routing facts.
func (k *RoadKeep) DumpLocal(local *Local) error {
	if local == nil {
		return errors.New("nil local")
	}
	return k.records.DumpLocal(RoadLocalRecord{
		UID:            local.UID,
		Name:           local.Name,
		IsRelay:        local.IsRelay,
		Host:           local.Host,
		Port:           local.Port,
		LocalSessionID: local.LocalSessionID,
	}, local.UID)
}

// LoadLocal returns the persisted local record, or nil if there is none.
func (k *RoadKeep) LoadLocal() (*RoadLocalRecord, error) {
	return k.records.LoadLocal()
}

// RestoreLocal copies the persisted routing facts into local. It reports
// false if there is no local record.
func (k *RoadKeep) RestoreLocal(local *Local) (bool, error) {
	rec, err := k.records.LoadLocal()
	if err != nil || rec == nil {
		return false, err
	}
	local.UID = rec.UID
	local.Name = rec.Name
	local.IsRelay = rec.IsRelay
	local.Host = rec.Host
	local.Port = rec.Port
	local.LocalSessionID = rec.LocalSessionID
	return true, nil
}

// DumpRemote persists a peer's routing facts.
func (k *RoadKeep) DumpRemote(peer *Remote) error {
	if peer == nil {
		return errors.New("nil peer")
	}
	return k.records.DumpRemote(RoadRemoteRecord{
		UID:             peer.UID,
		Name:            peer.Name,
		Host:            peer.Host,
		Port:            peer.Port,
		LocalSessionID:  peer.LocalSessionID,
		RemoteSessionID: peer.RemoteSessionID,
	}, peer.UID)
}

// LoadRemote returns the persisted record for uid, or nil if there is none.
func (k *RoadKeep) LoadRemote(uid string) (*RoadRemoteRecord, error) {
	return k.records.LoadRemote(uid)
}

// RestoreRemote copies the persisted routing facts into peer. It reports
// false if peer has no record.
func (k *RoadKeep) RestoreRemote(peer *Remote) (bool, error) {
	rec, err := k.records.LoadRemote(peer.UID)
	if err != nil || rec == nil {
		return false, err
	}
	peer.Name = rec.Name
	peer.Host = rec.Host
	peer.Port = rec.Port
	peer.LocalSessionID = rec.LocalSessionID
	peer.RemoteSessionID = rec.RemoteSessionID
	return true, nil
}

// LoadAllRemote returns every persisted remote record keyed by uid.
func (k *RoadKeep) LoadAllRemote() (map[string]RoadRemoteRecord, error) {
	return k.records.LoadAllRemote()
}

// ClearLocal removes the local record.
func (k *RoadKeep) ClearLocal() error {
	return k.records.ClearLocal()
}

// ClearRemote removes the record of one peer.
func (k *RoadKeep) ClearRemote(uid string) error {
	return k.records.ClearRemote(uid)
}

// ClearAllRemote removes every remote record.
func (k *RoadKeep) ClearAllRemote() error {
	return k.records.ClearAllRemote()
}

// Close closes the backend.
func (k *RoadKeep) Close() error {
	return k.records.Close()
}
