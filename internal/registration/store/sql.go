package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"eventpass/internal/registration/models"
	id "eventpass/pkg/domain"
	dErrors "eventpass/pkg/domain-errors"
	"eventpass/pkg/platform/sentinel"
	"eventpass/pkg/platform/tx"
)

// SQLStore persists profiles in Postgres or SQLite. Statements run on the
// transaction carried in ctx when there is one.
type SQLStore struct {
	db         *sql.DB
	rebind     func(string) string
	encodeTime func(time.Time) any
	clock      func() time.Time
}

// NewPostgres returns a store over a pgx-backed *sql.DB.
func NewPostgres(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:         db,
		rebind:     func(q string) string { return q },
		encodeTime: func(t time.Time) any { return t.UTC() },
		clock:      time.Now,
	}
}

// NewSQLite returns a store over a modernc sqlite *sql.DB. Times are kept
// as RFC 3339 text and $N placeholders become SQLite's ?N.
func NewSQLite(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:         db,
		rebind:     func(q string) string { return strings.ReplaceAll(q, "$", "?") },
		encodeTime: func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
		clock:      time.Now,
	}
}

const profileColumns = `identity_id, name, contact_number, date_of_birth, gender, category, district,
	qualification, photo_ref, sequence_number, credential_id, locked, created_at, updated_at, locked_at`

func (s *SQLStore) GetOrInit(ctx context.Context, identity id.IdentityID) (models.Profile, error) {
	now := s.encodeTime(s.clock())
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, s.rebind(`
		INSERT INTO profiles (identity_id, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (identity_id) DO NOTHING`), identity.String(), now)
	if err != nil {
		return nil, unavailable("init profile", err)
	}
	return s.Find(ctx, identity)
}

// Find returns the stored profile without creating one.
func (s *SQLStore) Find(ctx context.Context, identity id.IdentityID) (models.Profile, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx, s.rebind(`
		SELECT `+profileColumns+` FROM profiles WHERE identity_id = $1`), identity.String())
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", identity, sentinel.ErrNotFound)
		}
		return nil, unavailable("find profile", err)
	}
	return models.FromRecord(rec)
}

// FindByCredentialID looks a locked profile up by its credential ID.
func (s *SQLStore) FindByCredentialID(ctx context.Context, credentialID string) (*models.Locked, error) {
	row := tx.Pick(ctx, s.db).QueryRowContext(ctx, s.rebind(`
		SELECT `+profileColumns+` FROM profiles WHERE credential_id = $1 AND locked = TRUE`), credentialID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("credential %s: %w", credentialID, sentinel.ErrNotFound)
		}
		return nil, unavailable("find credential", err)
	}
	return lockedFrom(rec)
}

// SaveDraft upserts every field. The conflict branch only fires for
// unlocked rows, so zero affected rows means the profile is locked.
func (s *SQLStore) SaveDraft(ctx context.Context, d *models.Draft) (models.Profile, error) {
	rec := d.Record()
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, s.rebind(`
		INSERT INTO profiles (identity_id, name, contact_number, date_of_birth, gender, category,
			district, qualification, photo_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (identity_id) DO UPDATE SET
			name = EXCLUDED.name,
			contact_number = EXCLUDED.contact_number,
			date_of_birth = EXCLUDED.date_of_birth,
			gender = EXCLUDED.gender,
			category = EXCLUDED.category,
			district = EXCLUDED.district,
			qualification = EXCLUDED.qualification,
			photo_ref = EXCLUDED.photo_ref,
			updated_at = EXCLUDED.updated_at
		WHERE profiles.locked = FALSE`),
		rec.IdentityID.String(), rec.Name, rec.ContactNumber, rec.DateOfBirth, rec.Gender, rec.Category,
		rec.District, rec.Qualification, rec.PhotoRef, s.encodeTime(rec.CreatedAt), s.encodeTime(rec.UpdatedAt))
	if err != nil {
		return nil, unavailable("save draft", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("save draft", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("save draft %s: %w", rec.IdentityID, sentinel.ErrInvalidState)
	}
	return s.Find(ctx, rec.IdentityID)
}

// Lock performs the one-way transition with a conditional update that
// also matches every field of d, so the identifiers are stamped onto the
// state the caller validated. A second call leaves the stored identifiers
// untouched.
func (s *SQLStore) Lock(ctx context.Context, d *models.Draft, credentialID string, sequence int64, lockedAt time.Time) (*models.Locked, error) {
	if err := checkLockArgs(credentialID, sequence); err != nil {
		return nil, err
	}
	rec := d.Record()
	at := s.encodeTime(lockedAt)
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, s.rebind(`
		UPDATE profiles
		SET locked = TRUE, credential_id = $2, sequence_number = $3, locked_at = $4, updated_at = $4
		WHERE identity_id = $1 AND locked = FALSE
			AND name = $5 AND contact_number = $6 AND date_of_birth = $7 AND gender = $8
			AND category = $9 AND district = $10 AND qualification = $11 AND photo_ref = $12`),
		rec.IdentityID.String(), credentialID, sequence, at,
		rec.Name, rec.ContactNumber, rec.DateOfBirth, rec.Gender,
		rec.Category, rec.District, rec.Qualification, rec.PhotoRef)
	if err != nil {
		return nil, unavailable("lock profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, unavailable("lock profile", err)
	}

	current, err := s.Find(ctx, rec.IdentityID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if current.State() == models.StateLocked {
			return nil, fmt.Errorf("lock %s: %w", rec.IdentityID, sentinel.ErrAlreadyUsed)
		}
		return nil, fmt.Errorf("lock %s: %w", rec.IdentityID, sentinel.ErrConflict)
	}
	return lockedFrom(current.Record())
}

// ListLocked returns every locked profile ordered by sequence number.
func (s *SQLStore) ListLocked(ctx context.Context) ([]*models.Locked, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+profileColumns+` FROM profiles WHERE locked = TRUE ORDER BY sequence_number`))
	if err != nil {
		return nil, unavailable("list locked", err)
	}
	defer rows.Close()

	var out []*models.Locked
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable("scan locked", err)
		}
		l, err := lockedFrom(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list locked", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (models.Record, error) {
	var (
		rec                          models.Record
		identity                     string
		sequence                     sql.NullInt64
		credentialID                 sql.NullString
		createdAt, updatedAt, lockAt any
	)
	err := row.Scan(&identity, &rec.Name, &rec.ContactNumber, &rec.DateOfBirth, &rec.Gender, &rec.Category,
		&rec.District, &rec.Qualification, &rec.PhotoRef, &sequence, &credentialID, &rec.Locked,
		&createdAt, &updatedAt, &lockAt)
	if err != nil {
		return models.Record{}, err
	}
	if rec.IdentityID, err = id.ParseIdentityID(identity); err != nil {
		return models.Record{}, fmt.Errorf("stored identity %q: %w", identity, err)
	}
	rec.SequenceNumber = sequence.Int64
	rec.CredentialID = credentialID.String
	if rec.CreatedAt, err = decodeTime(createdAt); err != nil {
		return models.Record{}, err
	}
	if rec.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return models.Record{}, err
	}
	if rec.LockedAt, err = decodeTime(lockAt); err != nil {
		return models.Record{}, err
	}
	return rec, nil
}

// decodeTime accepts native timestamps (pgx) and RFC 3339 text (sqlite).
func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func checkLockArgs(credentialID string, sequence int64) error {
	if credentialID == "" || sequence <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential id and sequence number are required to lock")
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(sentinel.ErrUnavailable, err))
}

func sortLocked(out []*models.Locked) {
	slices.SortFunc(out, func(a, b *models.Locked) int {
		return cmp.Compare(a.SequenceNumber(), b.SequenceNumber())
	})
}
