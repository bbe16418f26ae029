package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/sentinel"
)

// SignedPath is the route prefix signed asset URLs are served under.
const SignedPath = "/assets/signed/"

// Object is an opened stored asset.
type Object struct {
	Key         string
	ContentType string
	ModTime     time.Time
	Body        io.ReadSeekCloser
}

// LocalStore is a filesystem-backed object store. Objects are written once
// under {root}/{identity}/{unixNano}{ext} and never overwritten.
type LocalStore struct {
	root    string
	baseURL string
	signer  *Signer
	clock   func() time.Time
}

// Option configures a LocalStore.
type Option func(*LocalStore)

// WithClock overrides the time source used for object keys.
func WithClock(clock func() time.Time) Option {
	return func(s *LocalStore) {
		s.clock = clock
	}
}

func NewLocalStore(root, publicBaseURL string, signer *Signer, opts ...Option) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create asset root: %w", err)
	}
	s := &LocalStore{
		root:    root,
		baseURL: strings.TrimSuffix(publicBaseURL, "/"),
		signer:  signer,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Upload validates f and writes it under a fresh key for identity.
func (s *LocalStore) Upload(ctx context.Context, identity id.IdentityID, f File) (Ref, error) {
	if err := Validate(f); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("upload aborted: %w", errors.Join(sentinel.ErrUnavailable, err))
	}

	key := path.Join(identity.String(), strconv.FormatInt(s.clock().UnixNano(), 10)+Extension(f.ContentType))
	dst, err := s.pathFor(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", fmt.Errorf("create owner dir: %w", errors.Join(sentinel.ErrUnavailable, err))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp object: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(f.Body, MaxSize+1))
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("write object: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	if closeErr != nil {
		return "", fmt.Errorf("close object: %w", errors.Join(sentinel.ErrUnavailable, closeErr))
	}
	if n > MaxSize {
		return "", dErrors.New(dErrors.CodeValidation, "file size exceeds 1MB, please choose a smaller file")
	}
	if n == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "file is empty")
	}

	// Link fails when dst exists, so an object is never replaced.
	if err := os.Link(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("publish object: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return Ref(key), nil
}

// SignedURL returns a fresh link for ref. Nothing is cached.
func (s *LocalStore) SignedURL(ctx context.Context, ref Ref) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty asset reference: %w", sentinel.ErrNotFound)
	}
	p, err := s.pathFor(string(ref))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("asset %s: %w", ref, sentinel.ErrNotFound)
		}
		return "", fmt.Errorf("stat asset: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	token, _, err := s.signer.Sign(string(ref))
	if err != nil {
		return "", err
	}
	return s.baseURL + SignedPath + token, nil
}

// Open verifies a signed token and opens the object it points at.
func (s *LocalStore) Open(ctx context.Context, token string) (*Object, error) {
	key, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	p, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("asset %s: %w", key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("open asset: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat asset: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return &Object{
		Key:         key,
		ContentType: ContentTypeOf(path.Ext(key)),
		ModTime:     info.ModTime(),
		Body:        f,
	}, nil
}

func (s *LocalStore) pathFor(key string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("asset key %q escapes store root: %w", key, sentinel.ErrNotFound)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
