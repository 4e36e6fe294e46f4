// Package keep decides and remembers which remote peers are trusted.
//
// SafeKeep stores each peer's public keys together with its Acceptance and
// runs the trust evaluation whenever a peer presents keys. The evaluation
// depends on the Role of this node in the exchange:
//
//   - Acceptor: this node admits the peer (for example a relay). First contact
//     is Pending until an operator accepts it, a key change on an Accepted peer
//     is Rejected, and a Rejected peer presenting new keys returns to Pending.
//   - Initiator: this node reached out to the peer. First contact is Accepted,
//     a key change on an Accepted peer is Rejected, and a Rejected peer
//     presenting new keys is Accepted again.
//
// RoadKeep stores the non-secret routing facts of the same peers (host, port,
// session ids). Both keeps persist through a store.RecordStore and can share
// one stack directory.
package keep

import logging "github.com/ipfs/go-log/v2"

var log = logging.Logger("sdn-keep")
