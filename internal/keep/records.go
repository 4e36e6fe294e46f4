package keep

// SafeLocalRecord is the persisted identity of this node. It is the only
// record that carries private key material.
type SafeLocalRecord struct {
	UID           string `json:"uid"`
	Name          string `json:"name"`
	SignKeyHex    string `json:"sign_key_hex"`
	PrivateKeyHex string `json:"private_key_hex"`
}

// SafeRemoteRecord is the persisted trust state of a remote peer.
type SafeRemoteRecord struct {
	UID          string     `json:"uid"`
	Name         string     `json:"name"`
	Acceptance   Acceptance `json:"acceptance"`
	VerifyKeyHex string     `json:"verify_key_hex"`
	PublicKeyHex string     `json:"public_key_hex"`
}

// RoadLocalRecord holds this node's routing facts.
type RoadLocalRecord struct {
	UID            string `json:"uid"`
	Name           string `json:"name"`
	IsRelay        bool   `json:"is_relay"`
	Host           string `json:"host"`
	Port           uint16 `json:"port"`
	LocalSessionID uint32 `json:"local_session_id"`
}

// RoadRemoteRecord holds the routing facts of a remote peer.
type RoadRemoteRecord struct {
	UID             string `json:"uid"`
	Name            string `json:"name"`
	Host            string `json:"host"`
	Port            uint16 `json:"port"`
	LocalSessionID  uint32 `json:"local_session_id"`
	RemoteSessionID uint32 `json:"remote_session_id"`
}
