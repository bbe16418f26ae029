package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpass/internal/audit"
	"eventpass/internal/platform/config"
	"eventpass/internal/registration/asset"
	"eventpass/internal/registration/models"
	"eventpass/internal/registration/service"
	id "eventpass/pkg/domain"
	"eventpass/pkg/requestcontext"
	"eventpass/pkg/testutil"
)

type nullExporter struct{}

func (nullExporter) Export(context.Context, []byte) ([]byte, error) { return []byte("%PDF"), nil }

func testConfig(t *testing.T, store string) config.Server {
	t.Helper()
	dir := t.TempDir()
	return config.Server{
		Store:      store,
		SQLitePath: filepath.Join(dir, "eventpass.db"),
		Assets:     config.AssetConfig{Root: filepath.Join(dir, "assets"), SigningKey: "asset-key", SignedURLTTL: time.Hour},
		Identity:   config.IdentityConfig{SigningKey: "identity-key", Issuer: "idp", Audience: "eventpass"},
		PublicURL:  "http://localhost:8080",
		Audit:      config.AuditConfig{Topic: "eventpass.audit", Buffer: 16},
		RequestTTL: 5 * time.Second,
	}
}

func build(t *testing.T, store string) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Build(context.Background(), testConfig(t, store), logger, WithExporter(nullExporter{}))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })
	return a
}

func TestRouterHealthAndMetrics(t *testing.T) {
	a := build(t, config.StoreMemory)
	r := a.Router()

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "go_goroutines")

	rr = testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/registration"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestSQLiteBackendSubmits(t *testing.T) {
	a := build(t, config.StoreSQLite)
	ctx := requestcontext.WithTime(context.Background(), time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC))
	identity := id.NewIdentityID()

	_, err := a.Service.SaveFields(ctx, identity, models.Fields{
		Name:          "Ravi Kumar",
		ContactNumber: "9123456780",
		DateOfBirth:   "1999-01-15",
		Gender:        models.GenderMale,
		Category:      models.CategoryOpen,
		District:      "Pune",
		Qualification: "B.E.",
	})
	require.NoError(t, err)
	_, err = a.Service.UploadPhoto(ctx, identity, pngFile())
	require.NoError(t, err)

	locked, err := a.Service.Submit(ctx, identity, service.ConfirmFunc(func(context.Context, string) (bool, error) {
		return true, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "RK-JLN20250001", locked.CredentialID())

	all, err := a.Repo.ListLocked(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	artifact, err := a.Renderer.Render(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "RK-JLN20250001_Event_Pass.pdf", artifact.Filename)
}

func TestAuditTrailIsPersisted(t *testing.T) {
	a := build(t, config.StoreSQLite)
	ctx := context.Background()
	identity := id.NewIdentityID()

	testutil.Given(t, "a sqlite-backed app", func(t *testing.T) {
		testutil.When(t, "a draft is saved", func(t *testing.T) {
			_, err := a.Service.SaveFields(ctx, identity, models.Fields{Name: "Ravi Kumar"})
			require.NoError(t, err)

			testutil.Then(t, "the event reaches the audit table", func(t *testing.T) {
				require.Eventually(t, func() bool {
					events, err := a.AuditLog.ListByIdentity(ctx, identity)
					return err == nil && len(events) == 1
				}, 2*time.Second, 10*time.Millisecond)
			})
			testutil.And(t, "it records the draft action for that identity", func(t *testing.T) {
				events, err := a.AuditLog.ListByIdentity(ctx, identity)
				require.NoError(t, err)
				require.Len(t, events, 1)
				assert.Equal(t, audit.ActionDraftSaved, events[0].Action)
				assert.Equal(t, identity, events[0].IdentityID)
			})
		})
	})
}

func pngFile() asset.File {
	data := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 256)...)
	return asset.File{Filename: "me.png", ContentType: "image/png", Size: int64(len(data)), Body: bytes.NewReader(data)}
}
