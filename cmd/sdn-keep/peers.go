package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spacedatanetwork/sdn-keep/internal/keep"
	"github.com/spacedatanetwork/sdn-keep/internal/keys"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List remote peers",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <uid>",
	Short: "Show a remote peer",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var acceptCmd = &cobra.Command{
	Use:   "accept <uid>",
	Short: "Accept the keys on record for a peer",
	Args:  cobra.ExactArgs(1),
	RunE:  overrideCommand(keep.Accepted),
}

var rejectCmd = &cobra.Command{
	Use:   "reject <uid>",
	Short: "Reject a peer",
	Args:  cobra.ExactArgs(1),
	RunE:  overrideCommand(keep.Rejected),
}

var pendCmd = &cobra.Command{
	Use:   "pend <uid>",
	Short: "Return a peer to pending review",
	Args:  cobra.ExactArgs(1),
	RunE:  overrideCommand(keep.Pending),
}

var forgetCmd = &cobra.Command{
	Use:   "forget <uid>",
	Short: "Remove a peer's records",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all remote peer records",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <uid> <verify-key-hex> <public-key-hex>",
	Short: "Evaluate keys presented by a peer",
	Long: `Run the trust evaluation as the transport would when a peer presents its
keys, and print the resulting acceptance.

Without --role, a relay evaluates as acceptor and any other node as
initiator. With no local identity the acceptor posture is used.`,
	Args: cobra.ExactArgs(3),
	RunE: runEvaluate,
}

var (
	listAcceptance string
	clearLocal     bool
	evaluateRole   string
)

func init() {
	listCmd.Flags().StringVarP(&listAcceptance, "acceptance", "a", "", "only list peers with this acceptance")
	clearCmd.Flags().BoolVar(&clearLocal, "local", false, "also remove the local identity")
	evaluateCmd.Flags().StringVarP(&evaluateRole, "role", "r", "", "acceptor or initiator (default from the local is_relay)")

	rootCmd.AddCommand(listCmd, showCmd, acceptCmd, rejectCmd, pendCmd, forgetCmd, clearCmd, evaluateCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	filter := keep.Absent
	if listAcceptance != "" {
		a, err := keep.ParseAcceptance(listAcceptance)
		if err != nil {
			return err
		}
		filter = a
	}

	return withKeeps(func(k *keeps) error {
		recs, err := k.safe.ListRemotes(filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UID\tNAME\tACCEPTANCE\tVERIFY KEY")
		for _, rec := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.UID, rec.Name, rec.Acceptance, short(rec.VerifyKeyHex))
		}
		return w.Flush()
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	uid := args[0]
	return withKeeps(func(k *keeps) error {
		peer, err := k.safe.RemotePeer(uid)
		if err != nil {
			return err
		}
		if _, err := k.road.RestoreRemote(peer); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "UID:          %s\n", peer.UID)
		fmt.Fprintf(out, "Name:         %s\n", peer.Name)
		fmt.Fprintf(out, "Acceptance:   %s\n", peer.Acceptance())
		fmt.Fprintf(out, "Verify key:   %s (%s)\n", peer.VerifyKeyHex(), peer.Verifier().Fingerprint())
		fmt.Fprintf(out, "Public key:   %s (%s)\n", peer.PublicKeyHex(), peer.Publican().Fingerprint())
		if ma, err := peer.Multiaddr(); err == nil {
			fmt.Fprintf(out, "Address:      %s\n", ma)
			fmt.Fprintf(out, "Sessions:     local %d, remote %d\n", peer.LocalSessionID, peer.RemoteSessionID)
		}
		return nil
	})
}

func overrideCommand(a keep.Acceptance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		uid := args[0]
		return withKeeps(func(k *keeps) error {
			peer, err := k.safe.RemotePeer(uid)
			if err != nil {
				return err
			}

			switch a {
			case keep.Accepted:
				err = k.safe.AcceptRemote(peer)
			case keep.Rejected:
				err = k.safe.RejectRemote(peer)
			default:
				err = k.safe.PendRemote(peer)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", uid, peer.Acceptance())
			return nil
		})
	}
}

func runForget(cmd *cobra.Command, args []string) error {
	uid := args[0]
	return withKeeps(func(k *keeps) error {
		if err := k.safe.ClearRemote(uid); err != nil {
			return err
		}
		if err := k.road.ClearRemote(uid); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", uid)
		return nil
	})
}

func runClear(cmd *cobra.Command, args []string) error {
	return withKeeps(func(k *keeps) error {
		if err := k.safe.ClearAllRemote(); err != nil {
			return err
		}
		if err := k.road.ClearAllRemote(); err != nil {
			return err
		}
		if clearLocal {
			if err := k.safe.ClearLocal(); err != nil {
				return err
			}
			if err := k.road.ClearLocal(); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Cleared")
		return nil
	})
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	uid, verifyHex, publicHex := args[0], args[1], args[2]
	return withKeeps(func(k *keeps) error {
		role, err := evaluationRole(k)
		if err != nil {
			return err
		}

		peer, err := k.safe.RemotePeer(uid)
		if errors.Is(err, keep.ErrUnknownPeer) {
			peer = keep.NewRemote(uid, "")
		} else if err != nil {
			return err
		}

		result, err := k.safe.StatusRemote(peer, verifyHex, publicHex, role)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", uid, result)
		return nil
	})
}

// evaluationRole returns the --role flag, or the posture implied by the
// local routing record.
func evaluationRole(k *keeps) (keep.Role, error) {
	if evaluateRole != "" {
		return keep.ParseRole(evaluateRole)
	}
	local, err := k.road.LoadLocal()
	if err != nil {
		return keep.Acceptor, err
	}
	if local != nil && !local.IsRelay {
		return keep.Initiator, nil
	}
	return keep.Acceptor, nil
}

func short(keyHex string) string {
	keyHex = keys.NormalizeHex(keyHex)
	if len(keyHex) > 16 {
		return keyHex[:16] + "..."
	}
	return keyHex
}
