// Package gater admits libp2p connections according to persisted keep
// acceptance. The uid of a libp2p peer is its peer ID string.
package gater

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/connmgr"
	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/spacedatanetwork/sdn-keep/internal/keep"
)

var log = logging.Logger("sdn-gater")

// RecordSource looks up persisted trust records. *keep.SafeKeep satisfies it.
type RecordSource interface {
	LoadRemote(uid string) (*keep.SafeRemoteRecord, error)
}

// AcceptanceGater implements ConnectionGater on top of a SafeKeep.
//
// Rejected peers are always refused. In strict mode only Accepted peers are
// admitted; otherwise unknown and Pending peers pass so that the transport
// can run its own evaluation. A lookup failure refuses the peer.
type AcceptanceGater struct {
	records RecordSource
	strict  bool

	// Callback for connection events
	onBlocked func(peerID peer.ID, reason string)
}

// NewAcceptanceGater creates a new connection gater.
func NewAcceptanceGater(records RecordSource, strict bool) *AcceptanceGater {
	return &AcceptanceGater{
		records: records,
		strict:  strict,
	}
}

// SetBlockedCallback sets a callback for when connections are blocked.
func (g *AcceptanceGater) SetBlockedCallback(cb func(peerID peer.ID, reason string)) {
	g.onBlocked = cb
}

// Allowed reports whether p may connect and, if not, why.
func (g *AcceptanceGater) Allowed(p peer.ID) (bool, string) {
	rec, err := g.records.LoadRemote(p.String())
	if err != nil {
		log.Errorf("Failed to look up peer %s: %v", p.ShortString(), err)
		return false, "lookup failed"
	}

	acceptance := keep.Absent
	if rec != nil {
		acceptance = rec.Acceptance
	}

	switch {
	case acceptance == keep.Rejected:
		return false, "rejected"
	case g.strict && acceptance != keep.Accepted:
		return false, acceptance.String() + " (strict mode)"
	default:
		return true, ""
	}
}

func (g *AcceptanceGater) check(what string, p peer.ID) bool {
	ok, reason := g.Allowed(p)
	if !ok {
		log.Debugf("Blocked %s peer %s: %s", what, p.ShortString(), reason)
		if g.onBlocked != nil {
			g.onBlocked(p, reason)
		}
	}
	return ok
}

// InterceptPeerDial is called before dialing a peer.
func (g *AcceptanceGater) InterceptPeerDial(p peer.ID) bool {
	return g.check("dial to", p)
}

// InterceptAddrDial is called before dialing a specific address.
func (g *AcceptanceGater) InterceptAddrDial(p peer.ID, addr multiaddr.Multiaddr) bool {
	return g.InterceptPeerDial(p)
}

// InterceptAccept is called when accepting a connection from a multiaddr.
func (g *AcceptanceGater) InterceptAccept(addrs network.ConnMultiaddrs) bool {
	// The peer ID is unknown until the handshake; InterceptSecured decides.
	return true
}

// InterceptSecured is called after the security handshake is complete.
func (g *AcceptanceGater) InterceptSecured(dir network.Direction, p peer.ID, addrs network.ConnMultiaddrs) bool {
	return g.check("secured connection from", p)
}

// InterceptUpgraded is called after the connection is fully upgraded.
func (g *AcceptanceGater) InterceptUpgraded(conn network.Conn) (bool, control.DisconnectReason) {
	log.Debugf("Connection upgraded with peer %s", conn.RemotePeer().ShortString())
	return true, 0
}

// Ensure AcceptanceGater implements the ConnectionGater interface.
var _ connmgr.ConnectionGater = (*AcceptanceGater)(nil)
