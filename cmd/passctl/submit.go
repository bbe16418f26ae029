package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var identityFlag string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a completed draft on the registrant's behalf",
		Long: `submit shows the registrant-facing warning and locks the profile only
after an explicit "yes" on stdin. Locking is permanent.`,
		Args: cobra.NoArgs,
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

			confirmer := stdinConfirmer{in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			locked, err := a.Service.Submit(ctx, identity, confirmer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "locked %s as %s\n", identity, locked.CredentialID())
			return nil
		},
	}
	cmd.Flags().StringVar(&identityFlag, "identity", "", "identity to submit")
	return cmd
}

// stdinConfirmer prints the warning and accepts "y" or "yes".
type stdinConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (c stdinConfirmer) Confirm(ctx context.Context, warning string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(c.out, "%s\nSubmit now? [y/N]: ", warning)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
