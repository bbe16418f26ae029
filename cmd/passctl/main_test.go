package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpass/internal/registration/asset"
	"eventpass/internal/registration/models"
	"eventpass/internal/registration/render"
	"eventpass/internal/registration/store"
	id "eventpass/pkg/domain"
)

func TestStdinConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"yes\n", true},
		{"Y\n", true},
		{"  yes  ", true},
		{"no\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			c := stdinConfirmer{in: strings.NewReader(tt.input), out: &out}
			got, err := c.Confirm(context.Background(), "You cannot edit the form once submitted!!")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "You cannot edit the form once submitted!!")
		})
	}
}

type countingRenderer struct {
	mu      sync.Mutex
	calls   int
	failFor id.IdentityID
}

func (r *countingRenderer) Render(ctx context.Context, identity id.IdentityID) (render.Artifact, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if identity == r.failFor {
		return render.Artifact{}, errors.New("chrome crashed")
	}
	if err := ctx.Err(); err != nil {
		return render.Artifact{}, err
	}
	return render.Artifact{Filename: render.Filename("ID-" + identity.String()), Data: []byte("%PDF")}, nil
}

func TestRenderAllWritesOneFilePerIdentity(t *testing.T) {
	out := filepath.Join(t.TempDir(), "passes")
	targets := []id.IdentityID{id.NewIdentityID(), id.NewIdentityID(), id.NewIdentityID()}

	n, err := renderAll(context.Background(), &countingRenderer{}, targets, out, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRenderAllReportsFailure(t *testing.T) {
	bad := id.NewIdentityID()
	r := &countingRenderer{failFor: bad}

	_, err := renderAll(context.Background(), r, []id.IdentityID{bad}, t.TempDir(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad.String())
}

func TestRenderTargets(t *testing.T) {
	ctx := context.Background()
	repo := store.NewInMemory()
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	lockedID := id.NewIdentityID()
	d := models.NewDraft(lockedID, now)
	d.AttachPhoto(asset.Ref(lockedID.String()+"/1.png"), now)
	_, err := repo.SaveDraft(ctx, d)
	require.NoError(t, err)
	_, err = repo.Lock(ctx, d, "AP-JLN20250001", 1, now)
	require.NoError(t, err)

	draftID := id.NewIdentityID()
	_, err = repo.GetOrInit(ctx, draftID)
	require.NoError(t, err)

	all, err := renderTargets(ctx, repo, renderOptions{all: true})
	require.NoError(t, err)
	assert.Equal(t, []id.IdentityID{lockedID}, all)

	explicit, err := renderTargets(ctx, repo, renderOptions{identities: []string{draftID.String()}})
	require.NoError(t, err)
	assert.Equal(t, []id.IdentityID{draftID}, explicit)

	_, err = renderTargets(ctx, repo, renderOptions{identities: []string{"not-a-uuid"}})
	assert.Error(t, err)
}

func TestRenderRequiresExactlyOneSelector(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"render", "--all", "--identity", id.NewIdentityID().String()})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either --all or")
}

func TestMigrateMemoryStore(t *testing.T) {
	t.Setenv("EVENTPASS_STORE", "memory")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema")
}

func TestMigrateSQLite(t *testing.T) {
	t.Setenv("EVENTPASS_STORE", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "eventpass.db"))
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"migrate"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "sqlite schema is up to date")
}
