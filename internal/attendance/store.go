package attendance

import (
	"context"
	"time"
)

// Store is the persistence contract for the check-in service and the
// report aggregator. Implementations must enforce a uniqueness constraint
// on (activity_id, participant_id): InsertRecord returns ErrConflict when
// a concurrent insert for the same pair already won.
type Store interface {
	// GetActivity returns the activity or ErrNotFound.
	GetActivity(ctx context.Context, activityID string) (ScheduledActivity, error)

	// FindRecord returns the record for the pair, or nil when none exists.
	FindRecord(ctx context.Context, activityID, participantID string) (*ParticipationRecord, error)

	// InsertRecord persists a new record. ErrConflict signals a uniqueness
	// violation, distinct from other storage failures.
	InsertRecord(ctx context.Context, rec ParticipationRecord) (ParticipationRecord, error)

	// UpdateRecord applies a reviewer override (status and notes) to an
	// existing record, or returns ErrNotFound.
	UpdateRecord(ctx context.Context, recordID string, status Status, notes string) (ParticipationRecord, error)

	// BulkFetchRecords returns every record for the given activities in one
	// pass. The aggregator's only record read; never called per entity.
	BulkFetchRecords(ctx context.Context, activityIDs []string) ([]ParticipationRecord, error)

	// ListActivities returns non-cancelled activities of the units starting
	// within [from, to]. Empty unitIDs means all units.
	ListActivities(ctx context.Context, unitIDs []string, from, to time.Time) ([]ScheduledActivity, error)

	// ListParticipants returns the participants of the units, ordered by
	// name. Empty unitIDs means all units.
	ListParticipants(ctx context.Context, unitIDs []string) ([]Participant, error)

	// GetParticipant returns a participant or ErrNotFound.
	GetParticipant(ctx context.Context, participantID string) (Participant, error)

	// ListUnits returns all units ordered by name.
	ListUnits(ctx context.Context) ([]Unit, error)
}
