package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"eventpass/internal/registration/service"
)

func newShowCmd() *cobra.Command {
	var identityFlag string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a profile as JSON",
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

			// Find rather than Load: inspecting must not create a profile.
			p, err := a.Repo.Find(ctx, identity)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(service.NewView(p, time.Now()))
		},
	}
	cmd.Flags().StringVar(&identityFlag, "identity", "", "identity to show")
	return cmd
}
