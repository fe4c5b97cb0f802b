package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Repository persists attendance data in Postgres and implements Store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// EnsureSchema creates the tables and the uniqueness constraint the
// check-in service depends on. Idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS units (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS participants (
			id TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL REFERENCES units(id),
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			unit_id TEXT NOT NULL REFERENCES units(id),
			starts_at TIMESTAMPTZ NOT NULL,
			ends_at TIMESTAMPTZ NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'scheduled',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS participation_records (
			id TEXT PRIMARY KEY,
			activity_id TEXT NOT NULL REFERENCES activities(id),
			participant_id TEXT NOT NULL REFERENCES participants(id),
			status TEXT NOT NULL,
			checked_in_at TIMESTAMPTZ,
			recorded_by TEXT NOT NULL DEFAULT 'self',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT participation_records_activity_participant_key
				UNIQUE (activity_id, participant_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_activity ON participation_records (activity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_unit_start ON activities (unit_id, starts_at)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, subject, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (token, subject, expires_at)
		VALUES ($1, $2, $3)
	`, token, subject, expiresAt)
	return err
}

// RevokeRefreshToken marks a token revoked.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, token)
	return err
}

// GetActivity returns a single activity by id.
func (r *Repository) GetActivity(ctx context.Context, activityID string) (ScheduledActivity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, unit_id, starts_at, ends_at, location, status, created_at
		FROM activities WHERE id = $1
	`, activityID)
	var act ScheduledActivity
	if err := row.Scan(&act.ID, &act.UnitID, &act.StartsAt, &act.EndsAt, &act.Location, &act.Status, &act.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScheduledActivity{}, fmt.Errorf("activity %s: %w", activityID, ErrNotFound)
		}
		return ScheduledActivity{}, err
	}
	return act, nil
}

// FindRecord returns the record for the pair, nil when none exists.
func (r *Repository) FindRecord(ctx context.Context, activityID, participantID string) (*ParticipationRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, activity_id, participant_id, status, checked_in_at, recorded_by, notes, created_at
		FROM participation_records
		WHERE activity_id = $1 AND participant_id = $2
	`, activityID, participantID)
	var rec ParticipationRecord
	if err := row.Scan(&rec.ID, &rec.ActivityID, &rec.ParticipantID, &rec.Status, &rec.CheckedInAt, &rec.RecordedBy, &rec.Notes, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertRecord writes a new record. A unique violation on the
// (activity_id, participant_id) constraint comes back as ErrConflict.
func (r *Repository) InsertRecord(ctx context.Context, rec ParticipationRecord) (ParticipationRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO participation_records (id, activity_id, participant_id, status, checked_in_at, recorded_by, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, rec.ID, rec.ActivityID, rec.ParticipantID, rec.Status, rec.CheckedInAt, rec.RecordedBy, rec.Notes)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ParticipationRecord{}, ErrConflict
		}
		return ParticipationRecord{}, err
	}
	return rec, nil
}

// UpdateRecord applies a reviewer override to status and notes.
func (r *Repository) UpdateRecord(ctx context.Context, recordID string, status Status, notes string) (ParticipationRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE participation_records
		SET status = $2, notes = $3, recorded_by = 'reviewer'
		WHERE id = $1
		RETURNING id, activity_id, participant_id, status, checked_in_at, recorded_by, notes, created_at
	`, recordID, status, notes)
	var rec ParticipationRecord
	if err := row.Scan(&rec.ID, &rec.ActivityID, &rec.ParticipantID, &rec.Status, &rec.CheckedInAt, &rec.RecordedBy, &rec.Notes, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ParticipationRecord{}, fmt.Errorf("record %s: %w", recordID, ErrNotFound)
		}
		return ParticipationRecord{}, err
	}
	return rec, nil
}

// BulkFetchRecords returns every record for the given activities in one
// query. Feeds the aggregator; never called inside a per-entity loop.
func (r *Repository) BulkFetchRecords(ctx context.Context, activityIDs []string) ([]ParticipationRecord, error) {
	if len(activityIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, activity_id, participant_id, status, checked_in_at, recorded_by, notes, created_at
		FROM participation_records
		WHERE activity_id = ANY($1)
	`, pq.Array(activityIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ParticipationRecord
	for rows.Next() {
		var rec ParticipationRecord
		if err := rows.Scan(&rec.ID, &rec.ActivityID, &rec.ParticipantID, &rec.Status, &rec.CheckedInAt, &rec.RecordedBy, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ListActivities returns non-cancelled activities starting within the
// range. Empty unitIDs means all units.
func (r *Repository) ListActivities(ctx context.Context, unitIDs []string, from, to time.Time) ([]ScheduledActivity, error) {
	query := `
		SELECT id, unit_id, starts_at, ends_at, location, status, created_at
		FROM activities
		WHERE status <> 'cancelled' AND starts_at >= $1 AND starts_at <= $2`
	args := []any{from, to}
	if len(unitIDs) > 0 {
		query += ` AND unit_id = ANY($3)`
		args = append(args, pq.Array(unitIDs))
	}
	query += ` ORDER BY starts_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ScheduledActivity
	for rows.Next() {
		var act ScheduledActivity
		if err := rows.Scan(&act.ID, &act.UnitID, &act.StartsAt, &act.EndsAt, &act.Location, &act.Status, &act.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, act)
	}
	return res, rows.Err()
}

// ListParticipants returns participants of the units ordered by name.
// Empty unitIDs means all units.
func (r *Repository) ListParticipants(ctx context.Context, unitIDs []string) ([]Participant, error) {
	query := `SELECT id, unit_id, name FROM participants`
	args := []any{}
	if len(unitIDs) > 0 {
		query += ` WHERE unit_id = ANY($1)`
		args = append(args, pq.Array(unitIDs))
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ID, &p.UnitID, &p.Name); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// GetParticipant returns a single participant by id.
func (r *Repository) GetParticipant(ctx context.Context, participantID string) (Participant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, unit_id, name FROM participants WHERE id = $1`, participantID)
	var p Participant
	if err := row.Scan(&p.ID, &p.UnitID, &p.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Participant{}, fmt.Errorf("participant %s: %w", participantID, ErrNotFound)
		}
		return Participant{}, err
	}
	return p, nil
}

// ListUnits returns all units ordered by name.
func (r *Repository) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM units ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UpsertUnit creates or renames a unit.
func (r *Repository) UpsertUnit(ctx context.Context, u Unit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO units (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, u.ID, u.Name)
	return err
}

// UpsertParticipant creates or updates a participant.
func (r *Repository) UpsertParticipant(ctx context.Context, p Participant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO participants (id, unit_id, name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET unit_id = EXCLUDED.unit_id, name = EXCLUDED.name
	`, p.ID, p.UnitID, p.Name)
	return err
}
