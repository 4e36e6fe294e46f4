package keep

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spacedatanetwork/sdn-keep/internal/keys"
	"github.com/spacedatanetwork/sdn-keep/internal/store"
)

// SafePrefix names SafeKeep records within a stack.
const SafePrefix = "safe"

// Cause says which operation produced an AcceptanceEvent.
type Cause string

const (
	CauseEvaluate Cause = "evaluate"
	CauseOverride Cause = "override"
	CauseDump     Cause = "dump"
	CauseClear    Cause = "clear"
	CauseConfig   Cause = "config"
)

// AcceptanceEvent describes a change to persisted trust state.
type AcceptanceEvent struct {
	Cause        Cause
	UID          string
	Role         Role
	Prior        Acceptance
	Result       Acceptance
	VerifyKeyHex string
	PublicKeyHex string
	AutoAccept   bool
}

// Auditor records acceptance events.
type Auditor interface {
	LogAcceptance(ev AcceptanceEvent) error
}

// Option configures a SafeKeep.
type Option func(*SafeKeep)

// WithIntegrityCheck runs check on every remote record before it is written.
func WithIntegrityCheck(check IntegrityCheck) Option {
	return func(k *SafeKeep) {
		k.check = check
	}
}

// WithAuditor reports every acceptance change to a.
func WithAuditor(a Auditor) Option {
	return func(k *SafeKeep) {
		k.auditor = a
	}
}

// SafeKeep stores key material and acceptance per peer and decides whether
// a peer's presented keys are trusted.
//
// Every read-modify-write of a remote record holds that uid's lock, so
// concurrent evaluations of one peer are serialized. ClearAllRemote excludes
// all of them.
type SafeKeep struct {
	records    *store.RecordStore[SafeLocalRecord, SafeRemoteRecord]
	autoAccept bool
	check      IntegrityCheck
	auditor    Auditor

	uids  lockTable
	clear sync.RWMutex
	local sync.Mutex
}

// NewSafeKeep creates a SafeKeep over backend. With autoAccept, Acceptor
// evaluations that would leave a peer Pending accept it instead. A Rejected
// outcome stays Rejected: auto-accept never trusts a changed key on an
// Accepted peer or the same keys presented again by a Rejected one.
func NewSafeKeep(backend store.Backend, autoAccept bool, opts ...Option) *SafeKeep {
	k := &SafeKeep{
		records:    store.New[SafeLocalRecord, SafeRemoteRecord](backend),
		autoAccept: autoAccept,
	}
	for _, opt := range opts {
		opt(k)
	}

	if autoAccept {
		log.Warn("Auto-accept is enabled: new peers are accepted without review")
	}
	return k
}

// RecordConfig reports the keep's auto-accept setting to the auditor.
// Long-running owners call it once at startup.
func (k *SafeKeep) RecordConfig() {
	k.audit(AcceptanceEvent{Cause: CauseConfig, AutoAccept: k.autoAccept})
}

// OpenSafeKeep opens the backend described by opts and creates a SafeKeep
// over it. The record prefix is always SafePrefix.
func OpenSafeKeep(opts store.Options, autoAccept bool, kopts ...Option) (*SafeKeep, error) {
	opts.Prefix = SafePrefix
	backend, err := store.Open(opts)
	if err != nil {
		return nil, err
	}
	return NewSafeKeep(backend, autoAccept, kopts...), nil
}

// AutoAccept reports whether auto-accept is enabled.
func (k *SafeKeep) AutoAccept() bool {
	return k.autoAccept
}

// StatusRemote evaluates the keys a peer presents and returns its new
// acceptance. Keys are presented as a pair: one empty and one non-empty key
// fails with a *keys.MalformedKeyError wrapping keys.ErrEmptyKey. Two empty
// strings mean nothing was presented and the keys on record (or held by
// peer) are evaluated instead; with neither, ErrNoKeys is returned.
//
// The result is persisted before peer is updated. On any error the
// persisted record and peer are left unchanged and Absent is returned.
func (k *SafeKeep) StatusRemote(peer *Remote, verifyHex, publicHex string, role Role) (Acceptance, error) {
	if peer == nil {
		return Absent, errors.New("nil peer")
	}
	if err := store.ValidUID(peer.UID); err != nil {
		return Absent, err
	}
	if role != Acceptor && role != Initiator {
		return Absent, fmt.Errorf("%w: %d", ErrInvalidRole, int(role))
	}

	if verifyHex == "" && publicHex != "" {
		return Absent, &keys.MalformedKeyError{Kind: keys.KindVerify, Err: keys.ErrEmptyKey}
	}
	if publicHex == "" && verifyHex != "" {
		return Absent, &keys.MalformedKeyError{Kind: keys.KindPublic, Err: keys.ErrEmptyKey}
	}

	var (
		verifier *keys.Verifier
		publican *keys.Publican
		err      error
	)
	presented := verifyHex != ""
	if presented {
		if verifier, err = keys.NewVerifier(verifyHex); err != nil {
			return Absent, err
		}
		if publican, err = keys.NewPublican(publicHex); err != nil {
			return Absent, err
		}
	}

	k.clear.RLock()
	defer k.clear.RUnlock()
	unlock := k.uids.lock(peer.UID)
	defer unlock()

	rec, err := k.records.LoadRemote(peer.UID)
	if err != nil {
		return Absent, err
	}

	prior := Absent
	if rec != nil {
		prior = rec.Acceptance
	}

	var verifyKey, publicKey string
	switch {
	case presented:
		verifyKey, publicKey = verifier.Hex(), publican.Hex()
	case rec != nil:
		verifyKey, publicKey = keys.NormalizeHex(rec.VerifyKeyHex), keys.NormalizeHex(rec.PublicKeyHex)
	default:
		verifyKey, publicKey = peer.VerifyKeyHex(), peer.PublicKeyHex()
		if verifyKey == "" || publicKey == "" {
			return Absent, fmt.Errorf("%w: peer %s", ErrNoKeys, peer.UID)
		}
	}
	sameKeys := rec != nil &&
		verifyKey == keys.NormalizeHex(rec.VerifyKeyHex) &&
		publicKey == keys.NormalizeHex(rec.PublicKeyHex)

	var result Acceptance
	if role == Acceptor {
		result = acceptorStatus(prior, sameKeys, k.autoAccept)
	} else {
		result = initiatorStatus(prior, sameKeys)
	}

	name := peer.Name
	if name == "" && rec != nil {
		name = rec.Name
	}
	next := SafeRemoteRecord{
		UID:          peer.UID,
		Name:         name,
		Acceptance:   result,
		VerifyKeyHex: verifyKey,
		PublicKeyHex: publicKey,
	}
	if err := k.dumpRemote(next); err != nil {
		return Absent, err
	}

	// Keys of a rejected attempt stay on record only.
	if result != Rejected && presented {
		peer.setKeys(verifier, publican)
	}
	peer.setAcceptance(result)

	if result == Rejected {
		log.Warnf("Rejected peer %s (%s, was %s, verify key %s)", peer.UID, role, prior, shortKey(verifyKey))
	} else if result != prior {
		log.Infof("Peer %s is %s (%s, was %s)", peer.UID, result, role, prior)
	} else {
		log.Debugf("Peer %s remains %s (%s)", peer.UID, result, role)
	}
	k.audit(AcceptanceEvent{
		Cause:        CauseEvaluate,
		UID:          peer.UID,
		Role:         role,
		Prior:        prior,
		Result:       result,
		VerifyKeyHex: verifyKey,
		PublicKeyHex: publicKey,
		AutoAccept:   k.autoAccept,
	})
	return result, nil
}

// acceptorStatus is the gatekeeper posture: first contact waits for review
// and a key change on a trusted peer is refused.
func acceptorStatus(prior Acceptance, sameKeys, autoAccept bool) Acceptance {
	var result Acceptance
	switch prior {
	case Accepted:
		if sameKeys {
			result = Accepted
		} else {
			result = Rejected
		}
	case Rejected:
		if sameKeys {
			result = Rejected
		} else {
			result = Pending
		}
	default:
		result = Pending
	}

	if autoAccept && result == Pending {
		return Accepted
	}
	return result
}

// initiatorStatus is the permissive posture: trust on first contact, and a
// rejected peer recovers once it presents different keys.
func initiatorStatus(prior Acceptance, sameKeys bool) Acceptance {
	switch prior {
	case Accepted:
		if sameKeys {
			return Accepted
		}
		return Rejected
	case Rejected:
		if sameKeys {
			return Rejected
		}
		return Accepted
	default:
		return Accepted
	}
}

// AcceptRemote marks a known peer Accepted.
func (k *SafeKeep) AcceptRemote(peer *Remote) error {
	return k.override(peer, Accepted)
}

// RejectRemote marks a known peer Rejected.
func (k *SafeKeep) RejectRemote(peer *Remote) error {
	return k.override(peer, Rejected)
}

// PendRemote marks a known peer Pending.
func (k *SafeKeep) PendRemote(peer *Remote) error {
	return k.override(peer, Pending)
}

// override sets the acceptance of the persisted record, keeping its keys.
// Unless the new acceptance is Rejected, peer adopts the keys on record.
func (k *SafeKeep) override(peer *Remote, a Acceptance) error {
	if peer == nil {
		return errors.New("nil peer")
	}
	if err := store.ValidUID(peer.UID); err != nil {
		return err
	}

	k.clear.RLock()
	defer k.clear.RUnlock()
	unlock := k.uids.lock(peer.UID)
	defer unlock()

	rec, err := k.records.LoadRemote(peer.UID)
	if err != nil {
		return err
	}
	if rec == nil {
		return &UnknownPeerError{UID: peer.UID}
	}

	var (
		verifier *keys.Verifier
		publican *keys.Publican
	)
	if a != Rejected && rec.VerifyKeyHex != "" && rec.PublicKeyHex != "" {
		if verifier, err = keys.NewVerifier(rec.VerifyKeyHex); err != nil {
			return err
		}
		if publican, err = keys.NewPublican(rec.PublicKeyHex); err != nil {
			return err
		}
	}

	prior := rec.Acceptance
	next := *rec
	next.Acceptance = a
	if peer.Name != "" {
		next.Name = peer.Name
	}
	if err := k.dumpRemote(next); err != nil {
		return err
	}

	if verifier != nil {
		peer.setKeys(verifier, publican)
	}
	peer.setAcceptance(a)

	log.Infof("Peer %s set to %s (was %s)", peer.UID, a, prior)
	k.audit(AcceptanceEvent{
		Cause:        CauseOverride,
		UID:          peer.UID,
		Prior:        prior,
		Result:       a,
		VerifyKeyHex: next.VerifyKeyHex,
		PublicKeyHex: next.PublicKeyHex,
	})
	return nil
}

// DumpRemote persists peer's current acceptance and keys.
func (k *SafeKeep) DumpRemote(peer *Remote) error {
	if peer == nil {
		return errors.New("nil peer")
	}
	if err := store.ValidUID(peer.UID); err != nil {
		return err
	}

	k.clear.RLock()
	defer k.clear.RUnlock()
	unlock := k.uids.lock(peer.UID)
	defer unlock()

	next := SafeRemoteRecord{
		UID:          peer.UID,
		Name:         peer.Name,
		Acceptance:   peer.Acceptance(),
		VerifyKeyHex: peer.VerifyKeyHex(),
		PublicKeyHex: peer.PublicKeyHex(),
	}
	if err := k.dumpRemote(next); err != nil {
		return err
	}

	log.Debugf("Dumped peer %s (%s)", peer.UID, next.Acceptance)
	k.audit(AcceptanceEvent{
		Cause:        CauseDump,
		UID:          peer.UID,
		Result:       next.Acceptance,
		VerifyKeyHex: next.VerifyKeyHex,
		PublicKeyHex: next.PublicKeyHex,
	})
	return nil
}

func (k *SafeKeep) dumpRemote(rec SafeRemoteRecord) error {
	if k.check != nil {
		if err := k.check(rec); err != nil {
			log.Warnf("Refusing to write peer %s: %v", rec.UID, err)
			return err
		}
	}
	return k.records.DumpRemote(rec, rec.UID)
}

// LoadRemote returns the persisted record for uid, or nil if there is none.
func (k *SafeKeep) LoadRemote(uid string) (*SafeRemoteRecord, error) {
	return k.records.LoadRemote(uid)
}

// LoadAllRemote returns every persisted remote record keyed by uid.
func (k *SafeKeep) LoadAllRemote() (map[string]SafeRemoteRecord, error) {
	return k.records.LoadAllRemote()
}

// ListRemotes returns the remote records with the given acceptance, sorted
// by uid. Absent lists every record.
func (k *SafeKeep) ListRemotes(a Acceptance) ([]SafeRemoteRecord, error) {
	all, err := k.records.LoadAllRemote()
	if err != nil {
		return nil, err
	}

	out := make([]SafeRemoteRecord, 0, len(all))
	for _, rec := range all {
		if a == Absent || rec.Acceptance == a {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UID < out[j].UID
	})
	return out, nil
}

// RemotePeer rebuilds a peer from its persisted record.
func (k *SafeKeep) RemotePeer(uid string) (*Remote, error) {
	rec, err := k.records.LoadRemote(uid)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &UnknownPeerError{UID: uid}
	}
	return remoteFromRecord(*rec)
}

// DumpLocal persists this node's identity and private keys.
func (k *SafeKeep) DumpLocal(local *Local) error {
	if local == nil || local.Signer == nil || local.Privateer == nil {
		return ErrKeyNotFound
	}

	k.local.Lock()
	defer k.local.Unlock()

	rec := SafeLocalRecord{
		UID:           local.UID,
		Name:          local.Name,
		SignKeyHex:    local.Signer.Hex(),
		PrivateKeyHex: local.Privateer.Hex(),
	}
	if err := k.records.DumpLocal(rec, local.UID); err != nil {
		return err
	}
	log.Infof("Saved local identity %s (verify key %s)", local.UID, local.Verifier().Fingerprint())
	return nil
}

// LoadLocal returns the persisted local record, or nil if there is none.
func (k *SafeKeep) LoadLocal() (*SafeLocalRecord, error) {
	k.local.Lock()
	defer k.local.Unlock()
	return k.records.LoadLocal()
}

// LocalPeer rebuilds this node's identity and keys from the local record.
func (k *SafeKeep) LocalPeer() (*Local, error) {
	rec, err := k.LoadLocal()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrKeyNotFound
	}

	signer, err := keys.NewSigner(rec.SignKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	privateer, err := keys.NewPrivateer(rec.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to load encryption key: %w", err)
	}
	return &Local{
		UID:       rec.UID,
		Name:      rec.Name,
		Signer:    signer,
		Privateer: privateer,
	}, nil
}

// ClearLocal removes the local record.
func (k *SafeKeep) ClearLocal() error {
	k.local.Lock()
	defer k.local.Unlock()

	if err := k.records.ClearLocal(); err != nil {
		return err
	}
	log.Info("Cleared local identity")
	return nil
}

// ClearRemote removes the record of one peer.
func (k *SafeKeep) ClearRemote(uid string) error {
	if err := store.ValidUID(uid); err != nil {
		return err
	}

	k.clear.RLock()
	defer k.clear.RUnlock()
	unlock := k.uids.lock(uid)
	defer unlock()

	if err := k.records.ClearRemote(uid); err != nil {
		return err
	}
	log.Infof("Forgot peer %s", uid)
	k.audit(AcceptanceEvent{Cause: CauseClear, UID: uid})
	return nil
}

// ClearAllRemote removes every remote record. It waits for running
// evaluations to finish and blocks new ones until done.
func (k *SafeKeep) ClearAllRemote() error {
	k.clear.Lock()
	defer k.clear.Unlock()

	if err := k.records.ClearAllRemote(); err != nil {
		return err
	}
	log.Info("Cleared all remote peers")
	k.audit(AcceptanceEvent{Cause: CauseClear})
	return nil
}

// Close closes the backend.
func (k *SafeKeep) Close() error {
	return k.records.Close()
}

// audit reports ev. Audit failures are logged; the trust change they
// describe has already been persisted.
func (k *SafeKeep) audit(ev AcceptanceEvent) {
	if k.auditor == nil {
		return
	}
	if err := k.auditor.LogAcceptance(ev); err != nil {
		log.Errorf("Failed to audit %s of %q: %v", ev.Cause, ev.UID, err)
	}
}

func shortKey(keyHex string) string {
	if len(keyHex) > 16 {
		return keyHex[:16] + "..."
	}
	return keyHex
}
