package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var identityFlag string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the audit trail of a profile (sqlite and postgres stores)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity, err := parseIdentity(identityFlag)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.AuditLog == nil {
				return fmt.Errorf("store %q keeps no audit table", a.Config.Store)
			}
			events, err := a.AuditLog.ListByIdentity(ctx, identity)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tCREDENTIAL\tREQUEST")
			for _, e := range events {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Format(time.RFC3339), e.Action, e.CredentialID, e.RequestID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&identityFlag, "identity", "", "identity to inspect")
	return cmd
}
