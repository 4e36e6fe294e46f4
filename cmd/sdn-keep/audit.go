package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/spacedatanetwork/sdn-keep/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the acceptance audit log",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log hash chain",
	Args:  cobra.NoArgs,
	RunE:  runAuditVerify,
}

var auditLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent audit entries",
	Args:  cobra.NoArgs,
	RunE:  runAuditLog,
}

var (
	auditPeer  string
	auditLimit int
)

func init() {
	auditLogCmd.Flags().StringVarP(&auditPeer, "peer", "p", "", "only show entries for this uid")
	auditLogCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "maximum number of entries")

	auditCmd.AddCommand(auditVerifyCmd, auditLogCmd)
	rootCmd.AddCommand(auditCmd)
}

func withAudit(fn func(k *keeps) error) error {
	return withKeeps(func(k *keeps) error {
		if k.audit == nil {
			return fmt.Errorf("audit log is disabled in the config")
		}
		return fn(k)
	})
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	return withAudit(func(k *keeps) error {
		n, err := k.audit.VerifyChain()
		if err != nil {
			return fmt.Errorf("audit chain broken after %d entries: %w", n, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Audit chain intact (%d entries)\n", n)
		return nil
	})
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	return withAudit(func(k *keeps) error {
		entries, err := k.audit.Query(audit.QueryOptions{TargetID: auditPeer, Limit: auditLimit})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tEVENT\tSEVERITY\tPEER\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Format(time.RFC3339), e.EventType, e.Severity, e.TargetID, e.Description)
		}
		return w.Flush()
	})
}
