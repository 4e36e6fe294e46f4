package main

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/spf13/cobra"

	"github.com/spacedatanetwork/sdn-keep/internal/gater"
)

var gateCmd = &cobra.Command{
	Use:   "gate <peer-id>",
	Short: "Check whether the connection gater admits a libp2p peer",
	Args:  cobra.ExactArgs(1),
	RunE:  runGate,
}

var gateStrict bool

func init() {
	gateCmd.Flags().BoolVar(&gateStrict, "strict", false, "only admit accepted peers (default from config)")
	rootCmd.AddCommand(gateCmd)
}

func runGate(cmd *cobra.Command, args []string) error {
	id, err := peer.Decode(args[0])
	if err != nil {
		return fmt.Errorf("invalid peer ID: %w", err)
	}

	return withKeeps(func(k *keeps) error {
		g := gater.NewAcceptanceGater(k.safe, gateStrict || k.cfg.Gater.Strict)
		ok, reason := g.Allowed(id)
		if ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: allowed\n", id)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: blocked (%s)\n", id, reason)
		}
		return nil
	})
}
