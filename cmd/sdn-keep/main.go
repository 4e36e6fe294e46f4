// Package main provides the sdn-keep command, which administers the peer
// key-trust store of a Space Data Network node.
package main

import (
	"fmt"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/spacedatanetwork/sdn-keep/internal/audit"
	"github.com/spacedatanetwork/sdn-keep/internal/config"
	"github.com/spacedatanetwork/sdn-keep/internal/keep"
)

var log = logging.Logger("sdn-keep-cli")

var rootCmd = &cobra.Command{
	Use:   "sdn-keep",
	Short: "Peer key-trust store for Space Data Network nodes",
	Long: `sdn-keep manages the keys and acceptance status of remote peers.

New peers presenting keys to a relay start out pending; an operator accepts
or rejects them here or through the admin API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logging.SetAllLoggers(logging.LevelDebug)
		} else {
			logging.SetAllLoggers(logging.LevelInfo)
		}
	},
}

var (
	configPath string
	debug      bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// keeps bundles everything a command may need from the keep directory.
type keeps struct {
	cfg   *config.Config
	safe  *keep.SafeKeep
	road  *keep.RoadKeep
	audit *audit.Logger
}

func openKeeps() (*keeps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	k := &keeps{cfg: cfg}
	var opts []keep.Option
	if cfg.Keep.StrictKeys {
		opts = append(opts, keep.WithIntegrityCheck(keep.StrictKeyLengths))
	}
	if cfg.Audit.Enabled {
		k.audit, err = audit.NewLogger(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		opts = append(opts, keep.WithAuditor(k.audit))
	}

	k.safe, err = keep.OpenSafeKeep(cfg.StoreOptions(), cfg.Keep.AutoAccept, opts...)
	if err != nil {
		k.Close()
		return nil, fmt.Errorf("failed to open safe keep: %w", err)
	}
	k.road, err = keep.OpenRoadKeep(cfg.StoreOptions())
	if err != nil {
		k.Close()
		return nil, fmt.Errorf("failed to open road keep: %w", err)
	}
	return k, nil
}

func (k *keeps) Close() error {
	var err error
	if k.road != nil {
		err = multierr.Append(err, k.road.Close())
	}
	if k.safe != nil {
		err = multierr.Append(err, k.safe.Close())
	}
	if k.audit != nil {
		err = multierr.Append(err, k.audit.Close())
	}
	return err
}

// withKeeps runs fn with opened keeps and closes them afterwards.
func withKeeps(fn func(k *keeps) error) error {
	k, err := openKeeps()
	if err != nil {
		return err
	}
	return multierr.Append(fn(k), k.Close())
}
