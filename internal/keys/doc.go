// Package keys provides the key objects a node uses to authenticate and
// encrypt traffic with its peers.
//
// # Overview
//
// Every node owns two private keys:
//
// 1. Signer (Ed25519): signs outgoing packets. Its public half, the Verifier,
//    is what a remote peer presents as verify_key_hex.
//
// 2. Privateer (X25519): opens and seals NaCl boxes. Its public half, the
//    Publican, is what a remote peer presents as public_key_hex.
//
// Remote peers are only ever known by their public halves. NewVerifier and
// NewPublican build them from hex and fail with a *MalformedKeyError when the
// hex does not decode. Key length is checked when the key is used, so a
// Verifier built from a short key never verifies anything.
//
// # Usage
//
// Generate a local identity:
//
//	signer, _ := keys.GenerateSigner()
//	privateer, _ := keys.GeneratePrivateer()
//
// Adopt a remote peer's presented keys:
//
//	verifier, err := keys.NewVerifier(verifyHex)
//	publican, err := keys.NewPublican(publicHex)
//
// Seal a message for that peer:
//
//	sealed, _ := privateer.Seal(msg, publican)
package keys
