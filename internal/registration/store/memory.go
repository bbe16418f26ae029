// Package store persists registration profiles. Every backend offers the
// same three operations: lazy creation, last-write-wins draft saves, and a
// one-shot conditional lock.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventpass/internal/registration/models"
	id "eventpass/pkg/domain"
	"eventpass/pkg/platform/sentinel"
)

// InMemory keeps profiles in a mutex-guarded map. Each call is atomic on
// its own; there are no multi-call transactions.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.IdentityID]models.Record
	clock   func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.IdentityID]models.Record), clock: time.Now}
}

func (s *InMemory) GetOrInit(_ context.Context, identity id.IdentityID) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identity]
	if !ok {
		rec = models.NewDraft(identity, s.clock()).Record()
		s.records[identity] = rec
	}
	return models.FromRecord(rec)
}

// Find returns the stored profile without creating one.
func (s *InMemory) Find(_ context.Context, identity id.IdentityID) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[identity]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", identity, sentinel.ErrNotFound)
	}
	return models.FromRecord(rec)
}

// FindByCredentialID looks a locked profile up by its credential ID.
func (s *InMemory) FindByCredentialID(_ context.Context, credentialID string) (*models.Locked, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.Locked && rec.CredentialID == credentialID {
			return lockedFrom(rec)
		}
	}
	return nil, fmt.Errorf("credential %s: %w", credentialID, sentinel.ErrNotFound)
}

func (s *InMemory) SaveDraft(_ context.Context, d *models.Draft) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[d.IdentityID()]; ok && existing.Locked {
		return nil, fmt.Errorf("save draft %s: %w", d.IdentityID(), sentinel.ErrInvalidState)
	}
	rec := d.Record()
	if existing, ok := s.records[d.IdentityID()]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	s.records[d.IdentityID()] = rec
	return models.FromRecord(rec)
}

func (s *InMemory) Lock(_ context.Context, d *models.Draft, credentialID string, sequence int64, lockedAt time.Time) (*models.Locked, error) {
	if err := checkLockArgs(credentialID, sequence); err != nil {
		return nil, err
	}
	identity := d.IdentityID()
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identity]
	if !ok {
		return nil, fmt.Errorf("lock %s: %w", identity, sentinel.ErrNotFound)
	}
	if rec.Locked {
		return nil, fmt.Errorf("lock %s: %w", identity, sentinel.ErrAlreadyUsed)
	}
	if !sameContent(rec, d.Record()) {
		return nil, fmt.Errorf("lock %s: %w", identity, sentinel.ErrConflict)
	}
	rec.Locked = true
	rec.CredentialID = credentialID
	rec.SequenceNumber = sequence
	rec.LockedAt = lockedAt
	rec.UpdatedAt = lockedAt

	locked, err := lockedFrom(rec)
	if err != nil {
		return nil, err
	}
	s.records[identity] = rec
	return locked, nil
}

// ListLocked returns every locked profile, oldest lock first.
func (s *InMemory) ListLocked(_ context.Context) ([]*models.Locked, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Locked, 0, len(s.records))
	for _, rec := range s.records {
		if !rec.Locked {
			continue
		}
		l, err := lockedFrom(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	sortLocked(out)
	return out, nil
}

func lockedFrom(rec models.Record) (*models.Locked, error) {
	p, err := models.FromRecord(rec)
	if err != nil {
		return nil, err
	}
	l, ok := p.(*models.Locked)
	if !ok {
		return nil, fmt.Errorf("profile %s is not locked: %w", rec.IdentityID, sentinel.ErrInvalidState)
	}
	return l, nil
}

// sameContent reports whether two records hold the same form fields and photo.
func sameContent(a, b models.Record) bool {
	return a.Name == b.Name &&
		a.ContactNumber == b.ContactNumber &&
		a.DateOfBirth == b.DateOfBirth &&
		a.Gender == b.Gender &&
		a.Category == b.Category &&
		a.District == b.District &&
		a.Qualification == b.Qualification &&
		a.PhotoRef == b.PhotoRef
}
