package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"eventpass/internal/registration/models"
	"eventpass/internal/registration/render"
	id "eventpass/pkg/domain"
)

type renderOptions struct {
	identities  []string
	all         bool
	out         string
	concurrency int
}

// lockedLister enumerates profiles that have a pass.
type lockedLister interface {
	ListLocked(ctx context.Context) ([]*models.Locked, error)
}

// passRenderer is the part of render.Renderer the batch needs.
type passRenderer interface {
	Render(ctx context.Context, identity id.IdentityID) (render.Artifact, error)
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render PDF passes for locked profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.all == (len(opts.identities) > 0) {
				return fmt.Errorf("pass either --all or at least one --identity")
			}
			ctx := cmd.Context()
			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			targets, err := renderTargets(ctx, a.Repo, opts)
			if err != nil {
				return err
			}
			n, err := renderAll(ctx, a.Renderer, targets, opts.out, opts.concurrency)
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %d of %d passes into %s\n", n, len(targets), opts.out)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&opts.identities, "identity", nil, "identity to render (repeatable)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "render every locked profile")
	cmd.Flags().StringVar(&opts.out, "out", ".", "output directory")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "passes rendered in parallel")
	return cmd
}

func renderTargets(ctx context.Context, repo lockedLister, opts renderOptions) ([]id.IdentityID, error) {
	if !opts.all {
		targets := make([]id.IdentityID, 0, len(opts.identities))
		for _, raw := range opts.identities {
			identity, err := parseIdentity(raw)
			if err != nil {
				return nil, err
			}
			targets = append(targets, identity)
		}
		return targets, nil
	}

	locked, err := repo.ListLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list locked profiles: %w", err)
	}
	targets := make([]id.IdentityID, 0, len(locked))
	for _, l := range locked {
		targets = append(targets, l.IdentityID())
	}
	return targets, nil
}

// renderAll writes one PDF per identity into out. The first failure cancels
// the remaining renders; it returns how many files were written.
func renderAll(ctx context.Context, r passRenderer, targets []id.IdentityID, out string, concurrency int) (int, error) {
	if err := os.MkdirAll(out, 0o750); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var written atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, identity := range targets {
		g.Go(func() error {
			artifact, err := r.Render(ctx, identity)
			if err != nil {
				return fmt.Errorf("render %s: %w", identity, err)
			}
			path := filepath.Join(out, artifact.Filename)
			if err := os.WriteFile(path, artifact.Data, 0o640); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			written.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(written.Load()), err
}
