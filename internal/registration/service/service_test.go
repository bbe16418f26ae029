package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"eventpass/internal/audit"
	"eventpass/internal/registration/asset"
	"eventpass/internal/registration/models"
	"eventpass/internal/registration/sequence"
	"eventpass/internal/registration/service/mocks"
	"eventpass/internal/registration/store"
	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/sentinel"
	"eventpass/pkg/requestcontext"
)

var (
	discard   = slog.New(slog.NewTextHandler(io.Discard, nil))
	submitted = time.Date(2025, 8, 10, 11, 0, 0, 0, time.UTC)
)

func completeFields() models.Fields {
	return models.Fields{
		Name:          "Asha Patil",
		ContactNumber: "9876543210",
		DateOfBirth:   "2000-08-24",
		Gender:        models.GenderFemale,
		Category:      models.CategoryOBC,
		District:      models.District("Jalna"),
		Qualification: "B.Sc",
	}
}

func pngFile(size int) asset.File {
	data := make([]byte, size)
	copy(data, "\x89PNG\r\n\x1a\n")
	return asset.File{Filename: "me.png", ContentType: "image/png", Size: int64(size), Body: bytes.NewReader(data)}
}

// fakeAssets is an in-memory AssetStore.
type fakeAssets struct {
	objects map[asset.Ref][]byte
	n       int
}

func newFakeAssets() *fakeAssets { return &fakeAssets{objects: make(map[asset.Ref][]byte)} }

func (f *fakeAssets) Upload(_ context.Context, identity id.IdentityID, file asset.File) (asset.Ref, error) {
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return "", err
	}
	f.n++
	ref := asset.Ref(fmt.Sprintf("%s/%d%s", identity, f.n, asset.Extension(file.ContentType)))
	f.objects[ref] = data
	return ref, nil
}

func (f *fakeAssets) SignedURL(_ context.Context, ref asset.Ref) (string, error) {
	if _, ok := f.objects[ref]; !ok {
		return "", sentinel.ErrNotFound
	}
	return "https://assets.test/signed/" + ref.String(), nil
}

// WorkflowSuite drives the state machine over real in-memory backends.
type WorkflowSuite struct {
	suite.Suite
	ctx      context.Context
	repo     *store.InMemory
	assets   *fakeAssets
	sink     *audit.MemorySink
	svc      *Service
	identity id.IdentityID
}

func TestWorkflowSuite(t *testing.T) {
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), submitted)
	s.repo = store.NewInMemory()
	s.assets = newFakeAssets()
	s.sink = audit.NewMemorySink()
	s.svc = New(s.repo, sequence.NewMemory(6), s.assets,
		WithLogger(discard),
		WithAuditor(audit.NewPublisher(s.sink, audit.WithLogger(discard))),
	)
	s.identity = id.NewIdentityID()
}

func (s *WorkflowSuite) fillDraft() {
	_, err := s.svc.SaveFields(s.ctx, s.identity, completeFields())
	s.Require().NoError(err)
	_, err = s.svc.UploadPhoto(s.ctx, s.identity, pngFile(900<<10))
	s.Require().NoError(err)
}

var confirmYes = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

func (s *WorkflowSuite) TestLoadCreatesUnregisteredProfile() {
	v, err := s.svc.Load(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Equal(models.StateUnregistered, v.State)
	s.False(v.Completeness.Complete)
	s.Contains(v.Completeness.Missing, "photo")
	s.Nil(v.Age)
}

func (s *WorkflowSuite) TestSaveFieldsNormalisesAndDerivesAge() {
	f := completeFields()
	f.Name = "  <b>Asha</b> Patil "
	v, err := s.svc.SaveFields(s.ctx, s.identity, f)
	s.Require().NoError(err)

	s.Equal(models.StateDraft, v.State)
	s.Equal("Asha Patil", v.Fields.Name)
	s.Require().NotNil(v.Age)
	s.Equal(24, *v.Age, "birthday on Aug 24 has not happened by Aug 10")
	s.Equal([]string{"photo"}, v.Completeness.Missing)
}

func (s *WorkflowSuite) TestSaveFieldsRejectsInvalid() {
	f := completeFields()
	f.ContactNumber = "98765-43210"
	_, err := s.svc.SaveFields(s.ctx, s.identity, f)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	v, err := s.svc.Load(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Equal(models.StateUnregistered, v.State)
}

func (s *WorkflowSuite) TestUploadPhotoValidation() {
	_, err := s.svc.UploadPhoto(s.ctx, s.identity, asset.File{ContentType: "image/jpeg", Size: 2 << 20, Body: bytes.NewReader(nil)})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.UploadPhoto(s.ctx, s.identity, asset.File{
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Size:        1024,
		Body:        bytes.NewReader(make([]byte, 1024)),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.assets.objects, "rejected files never reach the store")
}

func (s *WorkflowSuite) TestPhotoURLIsFresh() {
	s.fillDraft()
	url, err := s.svc.PhotoURL(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Contains(url, "https://assets.test/signed/")
}

func (s *WorkflowSuite) TestPhotoURLWithoutPhoto() {
	_, err := s.svc.PhotoURL(s.ctx, s.identity)
	s.True(dErrors.HasCode(err, dErrors.CodeAssetNotFound))
}

func (s *WorkflowSuite) TestSubmitLocksAndIssuesCredential() {
	s.fillDraft()

	var warned string
	locked, err := s.svc.Submit(s.ctx, s.identity, ConfirmFunc(func(_ context.Context, warning string) (bool, error) {
		warned = warning
		return true, nil
	}))
	s.Require().NoError(err)

	s.Equal(ConfirmationWarning, warned)
	s.Equal("AP-JLN20250007", locked.CredentialID())
	s.Equal(int64(7), locked.SequenceNumber())
	s.True(locked.LockedAt().Equal(submitted))

	v, err := s.svc.Load(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Equal(models.StateLocked, v.State)
	s.Equal("AP-JLN20250007", v.CredentialID)

	s.Equal([]audit.Action{audit.ActionDraftSaved, audit.ActionPhotoUploaded, audit.ActionProfileLocked},
		s.sink.Actions(s.identity))
}

func (s *WorkflowSuite) TestSecondSubmitFails() {
	s.fillDraft()
	_, err := s.svc.Submit(s.ctx, s.identity, confirmYes)
	s.Require().NoError(err)

	_, err = s.svc.Submit(s.ctx, s.identity, confirmYes)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyLocked))

	v, err := s.svc.Load(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Equal("AP-JLN20250007", v.CredentialID)
}

func (s *WorkflowSuite) TestEditingLockedProfileFails() {
	s.fillDraft()
	_, err := s.svc.Submit(s.ctx, s.identity, confirmYes)
	s.Require().NoError(err)

	_, err = s.svc.SaveFields(s.ctx, s.identity, completeFields())
	s.True(dErrors.HasCode(err, dErrors.CodeLockedProfile))

	_, err = s.svc.UploadPhoto(s.ctx, s.identity, pngFile(128))
	s.True(dErrors.HasCode(err, dErrors.CodeLockedProfile))
}

func (s *WorkflowSuite) TestMissingDistrictNeverLocks() {
	f := completeFields()
	f.District = ""
	_, err := s.svc.SaveFields(s.ctx, s.identity, f)
	s.Require().NoError(err)
	_, err = s.svc.UploadPhoto(s.ctx, s.identity, pngFile(128))
	s.Require().NoError(err)

	asked := false
	_, err = s.svc.Submit(s.ctx, s.identity, ConfirmFunc(func(context.Context, string) (bool, error) {
		asked = true
		return true, nil
	}))
	s.True(dErrors.HasCode(err, dErrors.CodeIncompleteProfile))
	s.Contains(dErrors.MessageOf(err), "district")
	s.False(asked, "incomplete drafts are never offered for confirmation")

	v, err := s.svc.Load(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Equal(models.StateDraft, v.State)
}

func (s *WorkflowSuite) TestDeclinedConfirmationChangesNothing() {
	s.fillDraft()
	before, err := s.repo.Find(s.ctx, s.identity)
	s.Require().NoError(err)

	_, err = s.svc.Submit(s.ctx, s.identity, ConfirmFunc(func(context.Context, string) (bool, error) {
		return false, nil
	}))
	s.True(dErrors.HasCode(err, dErrors.CodeNotConfirmed))

	after, err := s.repo.Find(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Equal(before.Record(), after.Record())

	locked, err := s.svc.Submit(s.ctx, s.identity, confirmYes)
	s.Require().NoError(err)
	s.Equal(int64(7), locked.SequenceNumber(), "a declined submission does not consume a number")
}

func (s *WorkflowSuite) TestEditDuringConfirmationIsCheckedAgain() {
	s.fillDraft()

	_, err := s.svc.Submit(s.ctx, s.identity, ConfirmFunc(func(ctx context.Context, _ string) (bool, error) {
		f := completeFields()
		f.Name = "Zed Quinn"
		f.District = ""
		_, err := s.svc.SaveFields(ctx, s.identity, f)
		s.Require().NoError(err)
		return true, nil
	}))
	s.True(dErrors.HasCode(err, dErrors.CodeIncompleteProfile))
	s.Contains(dErrors.MessageOf(err), "district")

	v, err := s.svc.Load(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Equal(models.StateDraft, v.State)
	s.Empty(v.CredentialID)

	locked, err := s.svc.Submit(s.ctx, s.identity, ConfirmFunc(func(ctx context.Context, _ string) (bool, error) {
		_, err := s.svc.SaveFields(ctx, s.identity, completeFields())
		s.Require().NoError(err)
		return true, nil
	}))
	s.Require().NoError(err)
	s.Equal(int64(7), locked.SequenceNumber(), "the rejected attempt does not consume a number")
}

func (s *WorkflowSuite) TestCredentialUsesNameStoredAtLock() {
	s.fillDraft()

	locked, err := s.svc.Submit(s.ctx, s.identity, ConfirmFunc(func(ctx context.Context, _ string) (bool, error) {
		f := completeFields()
		f.Name = "Zed Quinn"
		_, err := s.svc.SaveFields(ctx, s.identity, f)
		s.Require().NoError(err)
		return true, nil
	}))
	s.Require().NoError(err)
	s.Equal("ZQ-JLN20250007", locked.CredentialID())
	s.Equal("Zed Quinn", locked.Fields().Name)

	stored, err := s.repo.Find(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Equal("Zed Quinn", stored.Fields().Name)
}

func (s *WorkflowSuite) TestVerifyCredential() {
	s.fillDraft()
	_, err := s.svc.Submit(s.ctx, s.identity, confirmYes)
	s.Require().NoError(err)

	v, err := s.svc.VerifyCredential(s.ctx, "AP-JLN20250007")
	s.Require().NoError(err)
	s.Equal("Asha Patil", v.Name)

	_, err = s.svc.VerifyCredential(s.ctx, "AP-JLN20250008")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.VerifyCredential(s.ctx, "garbage")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// FailureSuite covers collaborator failures with gomock.
type FailureSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	repo      *mocks.MockRepository
	allocator *mocks.MockAllocator
	assets    *mocks.MockAssetStore
	confirmer *mocks.MockConfirmer
	svc       *Service
	identity  id.IdentityID
}

func TestFailureSuite(t *testing.T) {
	suite.Run(t, new(FailureSuite))
}

func (s *FailureSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), submitted)
	s.ctrl = gomock.NewController(s.T())
	s.repo = mocks.NewMockRepository(s.ctrl)
	s.allocator = mocks.NewMockAllocator(s.ctrl)
	s.assets = mocks.NewMockAssetStore(s.ctrl)
	s.confirmer = mocks.NewMockConfirmer(s.ctrl)
	s.svc = New(s.repo, s.allocator, s.assets, WithLogger(discard))
	s.identity = id.NewIdentityID()
}

func (s *FailureSuite) completeDraft() *models.Draft {
	d := models.NewDraft(s.identity, submitted)
	d.Apply(completeFields(), submitted)
	d.AttachPhoto(asset.Ref(s.identity.String()+"/1.png"), submitted)
	return d
}

func (s *FailureSuite) TestOversizedUploadMakesNoCalls() {
	_, err := s.svc.UploadPhoto(s.ctx, s.identity, asset.File{ContentType: "image/jpeg", Size: 2 << 20})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *FailureSuite) TestUploadFailureKeepsPreviousPhoto() {
	d := s.completeDraft()
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(d, nil)
	s.assets.EXPECT().Upload(gomock.Any(), s.identity, gomock.Any()).
		Return(asset.Ref(""), errors.Join(sentinel.ErrUnavailable, errors.New("disk full")))

	_, err := s.svc.UploadPhoto(s.ctx, s.identity, pngFile(128))
	s.True(dErrors.HasCode(err, dErrors.CodeStoreUnavailable))
	s.Equal(asset.Ref(s.identity.String()+"/1.png"), d.PhotoRef())
}

func (s *FailureSuite) TestRepositoryUnavailableOnLoad() {
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(nil, errors.Join(sentinel.ErrUnavailable, errors.New("conn refused")))

	_, err := s.svc.Load(s.ctx, s.identity)
	s.True(dErrors.HasCode(err, dErrors.CodeRepositoryUnavailable))
}

func (s *FailureSuite) TestStaleLockConflictFromStore() {
	d := models.NewDraft(s.identity, submitted)
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(d, nil)
	s.repo.EXPECT().SaveDraft(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrInvalidState)

	_, err := s.svc.SaveFields(s.ctx, s.identity, completeFields())
	s.True(dErrors.HasCode(err, dErrors.CodeLockedProfile))
}

func (s *FailureSuite) TestDeclineSkipsAllocation() {
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(s.completeDraft(), nil)
	s.confirmer.EXPECT().Confirm(gomock.Any(), ConfirmationWarning).Return(false, nil)

	_, err := s.svc.Submit(s.ctx, s.identity, s.confirmer)
	s.True(dErrors.HasCode(err, dErrors.CodeNotConfirmed))
}

func (s *FailureSuite) TestConfirmerErrorSkipsAllocation() {
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(s.completeDraft(), nil)
	s.confirmer.EXPECT().Confirm(gomock.Any(), ConfirmationWarning).Return(false, errors.New("stdin closed"))

	_, err := s.svc.Submit(s.ctx, s.identity, s.confirmer)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *FailureSuite) TestLockFailureAfterAllocationLeavesDraft() {
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(s.completeDraft(), nil).Times(2)
	s.confirmer.EXPECT().Confirm(gomock.Any(), ConfirmationWarning).Return(true, nil)
	gomock.InOrder(
		s.allocator.EXPECT().Next(gomock.Any()).Return(int64(7), nil),
		s.repo.EXPECT().Lock(gomock.Any(), gomock.Any(), "AP-JLN20250007", int64(7), submitted).
			Return(nil, errors.Join(sentinel.ErrUnavailable, errors.New("connection reset"))),
	)

	locked, err := s.svc.Submit(s.ctx, s.identity, s.confirmer)
	s.Nil(locked)
	s.True(dErrors.HasCode(err, dErrors.CodeRepositoryUnavailable))
}

func (s *FailureSuite) TestConcurrentLockSurfacesAlreadyLocked() {
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(s.completeDraft(), nil).Times(2)
	s.confirmer.EXPECT().Confirm(gomock.Any(), ConfirmationWarning).Return(true, nil)
	s.allocator.EXPECT().Next(gomock.Any()).Return(int64(8), nil)
	s.repo.EXPECT().Lock(gomock.Any(), gomock.Any(), "AP-JLN20250008", int64(8), submitted).
		Return(nil, sentinel.ErrAlreadyUsed)

	_, err := s.svc.Submit(s.ctx, s.identity, s.confirmer)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyLocked))
}

func (s *FailureSuite) TestChangedRowAtLockIsConflict() {
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(s.completeDraft(), nil).Times(2)
	s.confirmer.EXPECT().Confirm(gomock.Any(), ConfirmationWarning).Return(true, nil)
	s.allocator.EXPECT().Next(gomock.Any()).Return(int64(9), nil)
	s.repo.EXPECT().Lock(gomock.Any(), gomock.Any(), "AP-JLN20250009", int64(9), submitted).
		Return(nil, sentinel.ErrConflict)

	_, err := s.svc.Submit(s.ctx, s.identity, s.confirmer)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

// failingRunner fails the way a database does when BEGIN or COMMIT breaks.
type failingRunner struct{ err error }

func (r failingRunner) RunInTx(context.Context, func(context.Context) error) error { return r.err }

func (s *FailureSuite) TestTransactionFailureIsRepositoryUnavailable() {
	svc := New(s.repo, s.allocator, s.assets,
		WithLogger(discard),
		WithTxRunner(failingRunner{err: errors.New("sql: database is closed")}),
	)
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(s.completeDraft(), nil)
	s.confirmer.EXPECT().Confirm(gomock.Any(), ConfirmationWarning).Return(true, nil)

	_, err := svc.Submit(s.ctx, s.identity, s.confirmer)
	s.True(dErrors.HasCode(err, dErrors.CodeRepositoryUnavailable))
}

func (s *FailureSuite) TestAllocatorFailureNeverLocks() {
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(s.completeDraft(), nil).Times(2)
	s.confirmer.EXPECT().Confirm(gomock.Any(), ConfirmationWarning).Return(true, nil)
	s.allocator.EXPECT().Next(gomock.Any()).Return(int64(0), errors.Join(sentinel.ErrUnavailable, errors.New("redis down")))

	_, err := s.svc.Submit(s.ctx, s.identity, s.confirmer)
	s.True(dErrors.HasCode(err, dErrors.CodeRepositoryUnavailable))
}

func (s *FailureSuite) TestStaleAssetReference() {
	s.repo.EXPECT().GetOrInit(gomock.Any(), s.identity).Return(s.completeDraft(), nil)
	s.assets.EXPECT().SignedURL(gomock.Any(), gomock.Any()).Return("", sentinel.ErrNotFound)

	_, err := s.svc.PhotoURL(s.ctx, s.identity)
	s.True(dErrors.HasCode(err, dErrors.CodeAssetNotFound))
}

func (s *FailureSuite) TestNilIdentityRejected() {
	_, err := s.svc.Load(s.ctx, id.IdentityID{})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
