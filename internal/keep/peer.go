package keep

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/spacedatanetwork/sdn-keep/internal/keys"
)

// Remote is the in-memory view of a remote peer. Routing facts are plain
// fields. Acceptance and key material can be read at any time but only
// SafeKeep changes them.
type Remote struct {
	// UID is the stable, unique identifier of the peer
	UID string

	// Name is an optional human-readable name
	Name string

	// Host and Port are where the peer was last reached
	Host string
	Port uint16

	// LocalSessionID and RemoteSessionID identify the current session
	LocalSessionID  uint32
	RemoteSessionID uint32

	mu         sync.RWMutex
	acceptance Acceptance
	verifier   *keys.Verifier
	publican   *keys.Publican
}

// NewRemote creates a peer with no keys and Absent acceptance.
func NewRemote(uid, name string) *Remote {
	return &Remote{UID: uid, Name: name}
}

// NewRemoteWithKeys creates a peer holding the given public keys.
func NewRemoteWithKeys(uid, name, verifyHex, publicHex string) (*Remote, error) {
	v, err := keys.NewVerifier(verifyHex)
	if err != nil {
		return nil, err
	}
	p, err := keys.NewPublican(publicHex)
	if err != nil {
		return nil, err
	}
	r := NewRemote(uid, name)
	r.verifier, r.publican = v, p
	return r, nil
}

// remoteFromRecord rebuilds a peer from its persisted trust record.
func remoteFromRecord(rec SafeRemoteRecord) (*Remote, error) {
	r := NewRemote(rec.UID, rec.Name)
	r.acceptance = rec.Acceptance
	if rec.VerifyKeyHex != "" {
		v, err := keys.NewVerifier(rec.VerifyKeyHex)
		if err != nil {
			return nil, err
		}
		r.verifier = v
	}
	if rec.PublicKeyHex != "" {
		p, err := keys.NewPublican(rec.PublicKeyHex)
		if err != nil {
			return nil, err
		}
		r.publican = p
	}
	return r, nil
}

// Acceptance returns the peer's current acceptance.
func (r *Remote) Acceptance() Acceptance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.acceptance
}

// Verifier returns the peer's signature verification key, or nil.
func (r *Remote) Verifier() *keys.Verifier {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.verifier
}

// Publican returns the peer's encryption key, or nil.
func (r *Remote) Publican() *keys.Publican {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.publican
}

// VerifyKeyHex returns the hex verification key, or "".
func (r *Remote) VerifyKeyHex() string {
	return r.Verifier().Hex()
}

// PublicKeyHex returns the hex encryption key, or "".
func (r *Remote) PublicKeyHex() string {
	return r.Publican().Hex()
}

func (r *Remote) setAcceptance(a Acceptance) {
	r.mu.Lock()
	r.acceptance = a
	r.mu.Unlock()
}

func (r *Remote) setKeys(v *keys.Verifier, p *keys.Publican) {
	r.mu.Lock()
	r.verifier, r.publican = v, p
	r.mu.Unlock()
}

// Multiaddr returns the peer's UDP address as a multiaddr.
func (r *Remote) Multiaddr() (multiaddr.Multiaddr, error) {
	return hostMultiaddr(r.Host, r.Port)
}

func hostMultiaddr(host string, port uint16) (multiaddr.Multiaddr, error) {
	if host == "" {
		return nil, errors.New("no host")
	}
	if ip := net.ParseIP(host); ip != nil {
		return manet.FromNetAddr(&net.UDPAddr{IP: ip, Port: int(port)})
	}
	return multiaddr.NewMultiaddr(fmt.Sprintf("/dns/%s/udp/%d", host, port))
}

// Local is this node: its routing facts and private keys.
type Local struct {
	UID            string
	Name           string
	IsRelay        bool
	Host           string
	Port           uint16
	LocalSessionID uint32

	Signer    *keys.Signer
	Privateer *keys.Privateer
}

// NewLocal creates a local identity with freshly generated keys.
func NewLocal(uid, name string) (*Local, error) {
	signer, err := keys.GenerateSigner()
	if err != nil {
		return nil, err
	}
	privateer, err := keys.GeneratePrivateer()
	if err != nil {
		return nil, err
	}
	return &Local{
		UID:       uid,
		Name:      name,
		Signer:    signer,
		Privateer: privateer,
	}, nil
}

// Verifier returns the public half of the signing key.
func (l *Local) Verifier() *keys.Verifier {
	if l.Signer == nil {
		return nil
	}
	return l.Signer.Verifier()
}

// Publican returns the public half of the encryption key.
func (l *Local) Publican() *keys.Publican {
	if l.Privateer == nil {
		return nil
	}
	return l.Privateer.Publican()
}

// Multiaddr returns the node's UDP address as a multiaddr.
func (l *Local) Multiaddr() (multiaddr.Multiaddr, error) {
	return hostMultiaddr(l.Host, l.Port)
}
