package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spacedatanetwork/sdn-keep/internal/config"
	"github.com/spacedatanetwork/sdn-keep/internal/keep"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the local identity",
	Long: `Generate this node's signing and encryption keys and store them with its
routing facts. The config file is written if it does not exist yet.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Show the local identity",
	Args:  cobra.NoArgs,
	RunE:  runID,
}

var (
	initUID   string
	initName  string
	initRelay bool
	initHost  string
	initPort  uint16
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initUID, "uid", "", "local uid (default from config)")
	initCmd.Flags().StringVar(&initName, "name", "", "local name (default from config)")
	initCmd.Flags().BoolVar(&initRelay, "relay", false, "this node is a relay")
	initCmd.Flags().StringVar(&initHost, "host", "", "advertised host")
	initCmd.Flags().Uint16Var(&initPort, "port", 0, "advertised UDP port")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "replace an existing identity")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(idCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path, config.Default()); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote config %s\n", path)
	}

	return withKeeps(func(k *keeps) error {
		existing, err := k.safe.LoadLocal()
		if err != nil {
			return err
		}
		if existing != nil && !initForce {
			return fmt.Errorf("local identity %s already exists (use --force to replace it)", existing.UID)
		}

		uid := firstNonEmpty(initUID, k.cfg.Local.UID)
		if uid == "" {
			return fmt.Errorf("no local uid: pass --uid or set local.uid in the config")
		}

		local, err := keep.NewLocal(uid, firstNonEmpty(initName, k.cfg.Local.Name))
		if err != nil {
			return err
		}
		local.IsRelay = initRelay || k.cfg.Local.IsRelay
		local.Host = firstNonEmpty(initHost, k.cfg.Local.Host)
		local.Port = k.cfg.Local.Port
		if initPort != 0 {
			local.Port = initPort
		}

		if err := k.safe.DumpLocal(local); err != nil {
			return err
		}
		if err := k.road.DumpLocal(local); err != nil {
			return err
		}
		k.safe.RecordConfig()

		printLocal(cmd, local)
		return nil
	})
}

func runID(cmd *cobra.Command, args []string) error {
	return withKeeps(func(k *keeps) error {
		local, err := k.safe.LocalPeer()
		if err != nil {
			return err
		}
		if _, err := k.road.RestoreLocal(local); err != nil {
			return err
		}
		printLocal(cmd, local)
		return nil
	})
}

func printLocal(cmd *cobra.Command, local *keep.Local) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "UID:         %s\n", local.UID)
	fmt.Fprintf(out, "Name:        %s\n", local.Name)
	fmt.Fprintf(out, "Relay:       %v\n", local.IsRelay)
	if ma, err := local.Multiaddr(); err == nil {
		fmt.Fprintf(out, "Address:     %s\n", ma)
	}
	fmt.Fprintf(out, "Verify key:  %s\n", local.Verifier().Hex())
	fmt.Fprintf(out, "Public key:  %s\n", local.Publican().Hex())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
