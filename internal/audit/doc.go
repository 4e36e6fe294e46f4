// Package audit provides a tamper-evident record of trust decisions.
//
// # Hash Chain
//
// Each entry stores the SHA-256 hash of the previous entry (GenesisHash for
// the first) and the hash of its own fields plus that previous hash. Editing
// or deleting a historical row breaks the chain, which VerifyChain reports as
// ErrLogTampered.
//
// # Event Types
//
//   - keep.evaluate: a peer presented keys and was evaluated
//   - keep.override: an operator accepted, rejected or pended a peer
//   - keep.dump: a peer record was written directly
//   - keep.clear: one or all peer records were removed
//   - keep.config: a long-running keep owner started; records whether auto-accept is on
//
// Rejections and auto-accept mode are logged with warning severity.
//
// # Usage
//
//	logger, err := audit.NewLogger(dir)
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//
//	safe := keep.NewSafeKeep(backend, false, keep.WithAuditor(logger))
package audit
