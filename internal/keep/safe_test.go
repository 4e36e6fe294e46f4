package keep

import (
	"errors"
	"sync"
	"testing"

	datastore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacedatanetwork/sdn-keep/internal/keys"
	"github.com/spacedatanetwork/sdn-keep/internal/store"
)

func newMemBackend() store.Backend {
	return store.NewDatastore(dssync.MutexWrap(datastore.NewMapDatastore()), "test", SafePrefix)
}

func newSafeKeep(t *testing.T, autoAccept bool, opts ...Option) *SafeKeep {
	t.Helper()
	k := NewSafeKeep(newMemBackend(), autoAccept, opts...)
	t.Cleanup(func() { k.Close() })
	return k
}

// seed writes a remote record directly, bypassing evaluation.
func seed(t *testing.T, k *SafeKeep, uid string, a Acceptance, verifyHex, publicHex string) {
	t.Helper()
	require.NoError(t, k.records.DumpRemote(SafeRemoteRecord{
		UID:          uid,
		Acceptance:   a,
		VerifyKeyHex: verifyHex,
		PublicKeyHex: publicHex,
	}, uid))
}

func loadRecord(t *testing.T, k *SafeKeep, uid string) *SafeRemoteRecord {
	t.Helper()
	rec, err := k.LoadRemote(uid)
	require.NoError(t, err)
	return rec
}

func TestAcceptorUnknownPeerIsPending(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("peer1", "one")

	got, err := k.StatusRemote(peer, "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Pending, got)
	assert.Equal(t, Pending, peer.Acceptance())
	assert.Equal(t, "ab12", peer.VerifyKeyHex(), "pending peer adopts presented keys")
	assert.Equal(t, "cd34", peer.PublicKeyHex())

	rec := loadRecord(t, k, "peer1")
	require.NotNil(t, rec)
	assert.Equal(t, SafeRemoteRecord{
		UID:          "peer1",
		Name:         "one",
		Acceptance:   Pending,
		VerifyKeyHex: "ab12",
		PublicKeyHex: "cd34",
	}, *rec)
}

func TestAcceptorAutoAcceptUnknownPeer(t *testing.T) {
	k := newSafeKeep(t, true)
	assert.True(t, k.AutoAccept())

	got, err := k.StatusRemote(NewRemote("peer1", ""), "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
}

func TestAutoAcceptDoesNotOverrideRejection(t *testing.T) {
	k := newSafeKeep(t, true)
	seed(t, k, "peer1", Accepted, "ab12", "cd34")

	got, err := k.StatusRemote(NewRemote("peer1", ""), "ffff", "0000", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Rejected, got)

	got, err = k.StatusRemote(NewRemote("peer1", ""), "ffff", "0000", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Rejected, got)

	got, err = k.StatusRemote(NewRemote("peer1", ""), "1111", "2222", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got, "a re-key that would be pending is auto-accepted")
}

func TestAcceptorAcceptedSameKeys(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("peer1", "")

	_, err := k.StatusRemote(peer, "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	require.NoError(t, k.AcceptRemote(peer))

	got, err := k.StatusRemote(peer, "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
}

func TestAcceptorAcceptedKeyChangeIsRejected(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("peer1", "")

	_, err := k.StatusRemote(peer, "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	require.NoError(t, k.AcceptRemote(peer))

	got, err := k.StatusRemote(peer, "ffff", "0000", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Rejected, got)
	assert.Equal(t, Rejected, peer.Acceptance())

	// The peer keeps its trusted keys, the record keeps the rejected attempt.
	assert.Equal(t, "ab12", peer.VerifyKeyHex())
	assert.Equal(t, "cd34", peer.PublicKeyHex())
	rec := loadRecord(t, k, "peer1")
	assert.Equal(t, "ffff", rec.VerifyKeyHex)
	assert.Equal(t, "0000", rec.PublicKeyHex)
}

func TestAcceptorRejectedPeer(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("peer1", "")

	_, err := k.StatusRemote(peer, "ffff", "0000", Acceptor)
	require.NoError(t, err)
	require.NoError(t, k.RejectRemote(peer))

	got, err := k.StatusRemote(peer, "ffff", "0000", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Rejected, got, "same rejected keys stay rejected")

	got, err = k.StatusRemote(peer, "1111", "2222", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Pending, got, "new keys get a fresh review")
	assert.Equal(t, "1111", peer.VerifyKeyHex())
}

func TestAcceptorPendingStaysPending(t *testing.T) {
	k := newSafeKeep(t, false)
	seed(t, k, "peer1", Pending, "ab12", "cd34")

	for _, keys := range [][2]string{{"ab12", "cd34"}, {"1111", "2222"}} {
		got, err := k.StatusRemote(NewRemote("peer1", ""), keys[0], keys[1], Acceptor)
		require.NoError(t, err)
		assert.Equal(t, Pending, got)
	}
}

func TestInitiatorUnknownPeerIsAccepted(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("peer1", "")

	got, err := k.StatusRemote(peer, "1111", "2222", Initiator)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
	assert.Equal(t, "1111", peer.VerifyKeyHex())
	assert.Equal(t, "2222", peer.PublicKeyHex())
}

func TestInitiatorTransitions(t *testing.T) {
	tests := []struct {
		name      string
		prior     Acceptance
		presented [2]string
		want      Acceptance
	}{
		{"pending collapses", Pending, [2]string{"ab12", "cd34"}, Accepted},
		{"pending with new keys", Pending, [2]string{"1111", "2222"}, Accepted},
		{"accepted same keys", Accepted, [2]string{"ab12", "cd34"}, Accepted},
		{"accepted new keys", Accepted, [2]string{"1111", "2222"}, Rejected},
		{"rejected same keys", Rejected, [2]string{"ab12", "cd34"}, Rejected},
		{"rejected new keys", Rejected, [2]string{"1111", "2222"}, Accepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newSafeKeep(t, false)
			seed(t, k, "peer1", tt.prior, "ab12", "cd34")

			got, err := k.StatusRemote(NewRemote("peer1", ""), tt.presented[0], tt.presented[1], Initiator)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, loadRecord(t, k, "peer1").Acceptance)
		})
	}
}

func TestAcceptorStatus(t *testing.T) {
	tests := []struct {
		prior      Acceptance
		sameKeys   bool
		autoAccept bool
		want       Acceptance
	}{
		{Absent, false, false, Pending},
		{Absent, false, true, Accepted},
		{Pending, true, false, Pending},
		{Pending, false, false, Pending},
		{Pending, true, true, Accepted},
		{Accepted, true, false, Accepted},
		{Accepted, false, false, Rejected},
		{Accepted, false, true, Rejected},
		{Rejected, true, false, Rejected},
		{Rejected, true, true, Rejected},
		{Rejected, false, false, Pending},
		{Rejected, false, true, Accepted},
	}

	for _, tt := range tests {
		got := acceptorStatus(tt.prior, tt.sameKeys, tt.autoAccept)
		assert.Equal(t, tt.want, got, "prior=%s same=%v auto=%v", tt.prior, tt.sameKeys, tt.autoAccept)
	}
}

func TestStatusRemoteNeverAbsent(t *testing.T) {
	for _, role := range []Role{Acceptor, Initiator} {
		for _, prior := range []Acceptance{Absent, Pending, Accepted, Rejected} {
			for _, auto := range []bool{false, true} {
				k := newSafeKeep(t, auto)
				if prior != Absent {
					seed(t, k, "peer1", prior, "ab12", "cd34")
				}
				pairs := [][2]string{{"ab12", "cd34"}, {"ffff", "0000"}}
				if prior != Absent {
					pairs = append(pairs, [2]string{"", ""})
				}
				for _, presented := range pairs {
					got, err := k.StatusRemote(NewRemote("peer1", ""), presented[0], presented[1], role)
					require.NoError(t, err)
					assert.NotEqual(t, Absent, got, "role=%s prior=%s auto=%v", role, prior, auto)
				}
			}
		}
	}
}

func TestStatusRemoteIdempotent(t *testing.T) {
	for _, role := range []Role{Acceptor, Initiator} {
		for _, prior := range []Acceptance{Absent, Pending, Accepted, Rejected} {
			for _, presented := range [][2]string{{"ab12", "cd34"}, {"ffff", "0000"}} {
				k := newSafeKeep(t, false)
				if prior != Absent {
					seed(t, k, "peer1", prior, "ab12", "cd34")
				}
				peer := NewRemote("peer1", "")

				first, err := k.StatusRemote(peer, presented[0], presented[1], role)
				require.NoError(t, err)

				// Every result reached in one step is a fixed point.
				second, err := k.StatusRemote(peer, presented[0], presented[1], role)
				require.NoError(t, err)
				assert.Equal(t, first, second, "role=%s prior=%s keys=%v", role, prior, presented)
			}
		}
	}
}

func TestStatusRemoteNormalizesHex(t *testing.T) {
	k := newSafeKeep(t, false)
	seed(t, k, "peer1", Accepted, "ab12", "cd34")

	got, err := k.StatusRemote(NewRemote("peer1", ""), "AB12", "CD34", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
}

func TestStatusRemoteWithoutPresentedKeys(t *testing.T) {
	k := newSafeKeep(t, false)
	seed(t, k, "peer1", Accepted, "ab12", "cd34")

	got, err := k.StatusRemote(NewRemote("peer1", ""), "", "", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got, "no presented keys evaluates the keys on record")

	rec := loadRecord(t, k, "peer1")
	assert.Equal(t, "ab12", rec.VerifyKeyHex)

	// Unknown peer with keys held in memory.
	peer, err := NewRemoteWithKeys("peer2", "", "1111", "2222")
	require.NoError(t, err)
	got, err = k.StatusRemote(peer, "", "", Initiator)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
	assert.Equal(t, "1111", loadRecord(t, k, "peer2").VerifyKeyHex)

	// Unknown peer with no keys anywhere.
	for _, role := range []Role{Acceptor, Initiator} {
		peer := NewRemote("peer3", "")
		got, err = k.StatusRemote(peer, "", "", role)
		require.ErrorIs(t, err, ErrNoKeys)
		assert.Equal(t, Absent, got)
		assert.Equal(t, Absent, peer.Acceptance())
		assert.Nil(t, loadRecord(t, k, "peer3"), "no record without keys")
	}
}

func TestStatusRemoteHalfPresentedKeys(t *testing.T) {
	tests := []struct {
		verifyHex string
		publicHex string
		kind      string
	}{
		{"ffff", "", keys.KindPublic},
		{"", "0000", keys.KindVerify},
		{"ab12", "", keys.KindPublic},
		{"", "cd34", keys.KindVerify},
		{"zz", "", keys.KindPublic},
	}

	for _, role := range []Role{Acceptor, Initiator} {
		for _, prior := range []Acceptance{Absent, Pending, Accepted, Rejected} {
			for _, tt := range tests {
				k := newSafeKeep(t, true)
				if prior != Absent {
					seed(t, k, "peer1", prior, "ab12", "cd34")
				}
				peer := NewRemote("peer1", "")

				got, err := k.StatusRemote(peer, tt.verifyHex, tt.publicHex, role)
				desc := []interface{}{"role=%s prior=%s keys=%q/%q", role, prior, tt.verifyHex, tt.publicHex}
				assert.Equal(t, Absent, got, desc...)
				var mke *keys.MalformedKeyError
				require.ErrorAs(t, err, &mke, desc...)
				assert.Equal(t, tt.kind, mke.Kind, desc...)
				assert.ErrorIs(t, err, keys.ErrEmptyKey, desc...)
				assert.Equal(t, Absent, peer.Acceptance(), desc...)
				assert.Nil(t, peer.Verifier(), desc...)

				rec := loadRecord(t, k, "peer1")
				if prior == Absent {
					assert.Nil(t, rec, desc...)
				} else {
					require.NotNil(t, rec, desc...)
					assert.Equal(t, prior, rec.Acceptance, desc...)
					assert.Equal(t, "ab12", rec.VerifyKeyHex, desc...)
					assert.Equal(t, "cd34", rec.PublicKeyHex, desc...)
				}
			}
		}
	}
}

func TestAcceptedPeerChangingOneKeyIsRejected(t *testing.T) {
	k := newSafeKeep(t, false)
	seed(t, k, "peer1", Accepted, "ab12", "cd34")

	got, err := k.StatusRemote(NewRemote("peer1", ""), "ffff", "cd34", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Rejected, got)

	seed(t, k, "peer1", Accepted, "ab12", "cd34")
	got, err = k.StatusRemote(NewRemote("peer1", ""), "ab12", "0000", Initiator)
	require.NoError(t, err)
	assert.Equal(t, Rejected, got)
}

func TestStatusRemoteMalformedKey(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("peer1", "")

	got, err := k.StatusRemote(peer, "zz", "cd34", Acceptor)
	assert.Equal(t, Absent, got)
	var mke *keys.MalformedKeyError
	require.ErrorAs(t, err, &mke)
	assert.Equal(t, keys.KindVerify, mke.Kind)

	_, err = k.StatusRemote(peer, "ab12", "xyz", Initiator)
	require.ErrorAs(t, err, &mke)
	assert.Equal(t, keys.KindPublic, mke.Kind)

	assert.Nil(t, loadRecord(t, k, "peer1"), "malformed keys leave no record")
	assert.Equal(t, Absent, peer.Acceptance())
}

func TestStatusRemoteInvalidInput(t *testing.T) {
	k := newSafeKeep(t, false)

	_, err := k.StatusRemote(nil, "ab12", "cd34", Acceptor)
	assert.Error(t, err)

	_, err = k.StatusRemote(NewRemote("../etc", ""), "ab12", "cd34", Acceptor)
	assert.ErrorIs(t, err, store.ErrInvalidUID)

	_, err = k.StatusRemote(NewRemote("peer1", ""), "ab12", "cd34", Role(5))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

type failingPut struct {
	store.Backend
}

var errDiskFull = errors.New("disk full")

func (failingPut) Put(store.Namespace, string, []byte) error { return errDiskFull }

func TestStatusRemotePersistenceFailure(t *testing.T) {
	k := NewSafeKeep(failingPut{newMemBackend()}, false)
	peer := NewRemote("peer1", "")

	got, err := k.StatusRemote(peer, "ab12", "cd34", Initiator)
	assert.Equal(t, Absent, got)
	assert.ErrorIs(t, err, errDiskFull)
	var perr *store.PersistenceError
	assert.ErrorAs(t, err, &perr)

	assert.Equal(t, Absent, peer.Acceptance(), "peer is untouched when the write fails")
	assert.Nil(t, peer.Verifier())
}

func TestStatusRemoteIntegrityCheck(t *testing.T) {
	k := newSafeKeep(t, false, WithIntegrityCheck(StrictKeyLengths))
	peer := NewRemote("peer1", "")

	_, err := k.StatusRemote(peer, "ab12", "cd34", Acceptor)
	assert.ErrorIs(t, err, ErrIntegrity)
	var ierr *IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "peer1", ierr.UID)
	assert.Nil(t, loadRecord(t, k, "peer1"))

	signer, err := keys.GenerateSigner()
	require.NoError(t, err)
	privateer, err := keys.GeneratePrivateer()
	require.NoError(t, err)

	got, err := k.StatusRemote(peer, signer.Verifier().Hex(), privateer.Publican().Hex(), Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Pending, got)
}

func TestOverrides(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("peer1", "")

	got, err := k.StatusRemote(peer, "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	require.Equal(t, Pending, got)

	require.NoError(t, k.AcceptRemote(peer))
	assert.Equal(t, Accepted, peer.Acceptance())
	assert.Equal(t, Accepted, loadRecord(t, k, "peer1").Acceptance)

	require.NoError(t, k.PendRemote(peer))
	assert.Equal(t, Pending, loadRecord(t, k, "peer1").Acceptance)

	require.NoError(t, k.RejectRemote(peer))
	rec := loadRecord(t, k, "peer1")
	assert.Equal(t, Rejected, rec.Acceptance)
	assert.Equal(t, "ab12", rec.VerifyKeyHex, "overrides keep the keys on record")
	assert.Equal(t, "cd34", rec.PublicKeyHex)
}

func TestAcceptOverridesEvaluation(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("peer1", "")

	_, err := k.StatusRemote(peer, "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	require.NoError(t, k.AcceptRemote(peer))
	_, err = k.StatusRemote(peer, "ffff", "0000", Acceptor)
	require.NoError(t, err)
	require.Equal(t, Rejected, peer.Acceptance())

	// The operator approves the new keys.
	require.NoError(t, k.AcceptRemote(peer))
	assert.Equal(t, Accepted, peer.Acceptance())
	assert.Equal(t, "ffff", peer.VerifyKeyHex(), "accepted peer adopts the keys on record")

	got, err := k.StatusRemote(peer, "ffff", "0000", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Accepted, got)
}

func TestOverrideUnknownPeer(t *testing.T) {
	k := newSafeKeep(t, false)
	peer := NewRemote("ghost", "")

	for _, override := range []func(*Remote) error{k.AcceptRemote, k.RejectRemote, k.PendRemote} {
		err := override(peer)
		assert.ErrorIs(t, err, ErrUnknownPeer)
		var uerr *UnknownPeerError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "ghost", uerr.UID)
	}
	assert.Nil(t, loadRecord(t, k, "ghost"))
}

func TestDumpRemoteRoundTrip(t *testing.T) {
	k := newSafeKeep(t, false)
	peer, err := NewRemoteWithKeys("peer1", "Relay One", "AB12", "cd34")
	require.NoError(t, err)
	peer.setAcceptance(Accepted)

	require.NoError(t, k.DumpRemote(peer))

	rec := loadRecord(t, k, "peer1")
	require.NotNil(t, rec)
	assert.Equal(t, SafeRemoteRecord{
		UID:          "peer1",
		Name:         "Relay One",
		Acceptance:   Accepted,
		VerifyKeyHex: "ab12",
		PublicKeyHex: "cd34",
	}, *rec)

	restored, err := k.RemotePeer("peer1")
	require.NoError(t, err)
	assert.Equal(t, peer.UID, restored.UID)
	assert.Equal(t, peer.Name, restored.Name)
	assert.Equal(t, Accepted, restored.Acceptance())
	assert.True(t, peer.Verifier().Equal(restored.Verifier()))
	assert.True(t, peer.Publican().Equal(restored.Publican()))
}

func TestRemotePeerUnknown(t *testing.T) {
	k := newSafeKeep(t, false)
	_, err := k.RemotePeer("ghost")
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestListRemotes(t *testing.T) {
	k := newSafeKeep(t, false)
	seed(t, k, "c", Pending, "ab12", "cd34")
	seed(t, k, "a", Pending, "ab12", "cd34")
	seed(t, k, "b", Accepted, "ab12", "cd34")
	seed(t, k, "d", Rejected, "ab12", "cd34")

	pending, err := k.ListRemotes(Pending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].UID)
	assert.Equal(t, "c", pending[1].UID)

	all, err := k.ListRemotes(Absent)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	m, err := k.LoadAllRemote()
	require.NoError(t, err)
	assert.Equal(t, Rejected, m["d"].Acceptance)
}

func TestConcurrentStatusRemote(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		prior Acceptance
		keys  [2]string
		want  Acceptance
	}{
		{"acceptor first contact", Acceptor, Absent, [2]string{"ab12", "cd34"}, Pending},
		{"initiator first contact", Initiator, Absent, [2]string{"ab12", "cd34"}, Accepted},
		{"acceptor key change", Acceptor, Accepted, [2]string{"ffff", "0000"}, Rejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newSafeKeep(t, false)
			if tt.prior != Absent {
				seed(t, k, "peer1", tt.prior, "ab12", "cd34")
			}
			peer := NewRemote("peer1", "")

			const n = 32
			results := make([]Acceptance, n)
			errs := make([]error, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					results[i], errs[i] = k.StatusRemote(peer, tt.keys[0], tt.keys[1], tt.role)
				}(i)
			}
			wg.Wait()

			for i := 0; i < n; i++ {
				require.NoError(t, errs[i])
				assert.Equal(t, tt.want, results[i])
			}

			all, err := k.LoadAllRemote()
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, SafeRemoteRecord{
				UID:          "peer1",
				Acceptance:   tt.want,
				VerifyKeyHex: tt.keys[0],
				PublicKeyHex: tt.keys[1],
			}, all["peer1"])
			assert.Equal(t, tt.want, peer.Acceptance())
			assert.Zero(t, k.uids.size(), "lock table drains")
		})
	}
}

func TestClearRemote(t *testing.T) {
	k := newSafeKeep(t, false)
	seed(t, k, "peer1", Accepted, "ab12", "cd34")
	seed(t, k, "peer2", Pending, "ab12", "cd34")

	require.NoError(t, k.ClearRemote("peer1"))
	assert.Nil(t, loadRecord(t, k, "peer1"))
	assert.NotNil(t, loadRecord(t, k, "peer2"))

	got, err := k.StatusRemote(NewRemote("peer1", ""), "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	assert.Equal(t, Pending, got, "a forgotten peer starts over")

	require.NoError(t, k.ClearAllRemote())
	all, err := k.LoadAllRemote()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLocalIdentity(t *testing.T) {
	k := newSafeKeep(t, false)

	_, err := k.LocalPeer()
	assert.ErrorIs(t, err, ErrKeyNotFound)

	local, err := NewLocal("me", "Local Node")
	require.NoError(t, err)
	require.NoError(t, k.DumpLocal(local))

	rec, err := k.LoadLocal()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "me", rec.UID)
	assert.Equal(t, local.Signer.Hex(), rec.SignKeyHex)
	assert.Equal(t, local.Privateer.Hex(), rec.PrivateKeyHex)

	restored, err := k.LocalPeer()
	require.NoError(t, err)
	assert.Equal(t, "Local Node", restored.Name)
	assert.True(t, local.Verifier().Equal(restored.Verifier()))
	assert.True(t, local.Publican().Equal(restored.Publican()))

	// Private keys never reach the remote namespace.
	all, err := k.LoadAllRemote()
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, k.ClearLocal())
	rec, err = k.LoadLocal()
	require.NoError(t, err)
	assert.Nil(t, rec)

	assert.ErrorIs(t, k.DumpLocal(&Local{UID: "me"}), ErrKeyNotFound)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []AcceptanceEvent
}

func (r *recordingAuditor) LogAcceptance(ev AcceptanceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func TestAuditor(t *testing.T) {
	auditor := &recordingAuditor{}
	k := newSafeKeep(t, true, WithAuditor(auditor))
	assert.Empty(t, auditor.events, "opening a keep is not audited")
	k.RecordConfig()
	peer := NewRemote("peer1", "")

	_, err := k.StatusRemote(peer, "ab12", "cd34", Acceptor)
	require.NoError(t, err)
	require.NoError(t, k.RejectRemote(peer))
	require.NoError(t, k.ClearAllRemote())

	require.Len(t, auditor.events, 4)
	assert.Equal(t, AcceptanceEvent{Cause: CauseConfig, AutoAccept: true}, auditor.events[0])

	ev := auditor.events[1]
	assert.Equal(t, CauseEvaluate, ev.Cause)
	assert.Equal(t, "peer1", ev.UID)
	assert.Equal(t, Absent, ev.Prior)
	assert.Equal(t, Accepted, ev.Result)
	assert.True(t, ev.AutoAccept)

	assert.Equal(t, CauseOverride, auditor.events[2].Cause)
	assert.Equal(t, Accepted, auditor.events[2].Prior)
	assert.Equal(t, Rejected, auditor.events[2].Result)
	assert.Equal(t, CauseClear, auditor.events[3].Cause)
}

func TestOpenSafeKeepSharesStack(t *testing.T) {
	opts := store.Options{Dir: t.TempDir(), Stack: "main"}

	safe, err := OpenSafeKeep(opts, false)
	require.NoError(t, err)
	defer safe.Close()
	road, err := OpenRoadKeep(opts)
	require.NoError(t, err)
	defer road.Close()

	peer := NewRemote("peer1", "")
	peer.Host, peer.Port = "10.0.0.1", 7530
	_, err = safe.StatusRemote(peer, "ab12", "cd34", Initiator)
	require.NoError(t, err)
	require.NoError(t, road.DumpRemote(peer))

	safeRecs, err := safe.LoadAllRemote()
	require.NoError(t, err)
	assert.Len(t, safeRecs, 1)
	roadRecs, err := road.LoadAllRemote()
	require.NoError(t, err)
	assert.Len(t, roadRecs, 1)
	assert.Equal(t, uint16(7530), roadRecs["peer1"].Port)
}
