//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"eventpass/pkg/testutil/containers"
)

func TestPostgresRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, &RepositorySuite{newRepo: func(t *testing.T) repository {
		pg := containers.GetManager().GetPostgres(t)
		if err := pg.TruncateTables(context.Background(), "profiles"); err != nil {
			t.Fatalf("truncate profiles: %v", err)
		}
		return NewPostgres(pg.DB)
	}})
}
