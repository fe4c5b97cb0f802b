package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for dev and tests, mirroring the
// Postgres repository's semantics including the uniqueness conflict.
type MemStore struct {
	mu           sync.Mutex
	units        map[string]Unit
	participants map[string]Participant
	activities   map[string]ScheduledActivity
	records      map[string]ParticipationRecord
	byPair       map[string]string // activityID|participantID -> record id
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		units:        make(map[string]Unit),
		participants: make(map[string]Participant),
		activities:   make(map[string]ScheduledActivity),
		records:      make(map[string]ParticipationRecord),
		byPair:       make(map[string]string),
	}
}

func pairKey(activityID, participantID string) string {
	return activityID + "|" + participantID
}

// AddUnit seeds a unit.
func (m *MemStore) AddUnit(u Unit) {
	m.mu.Lock()
	m.units[u.ID] = u
	m.mu.Unlock()
}

// AddParticipant seeds a participant.
func (m *MemStore) AddParticipant(p Participant) {
	m.mu.Lock()
	m.participants[p.ID] = p
	m.mu.Unlock()
}

// AddActivity seeds an activity.
func (m *MemStore) AddActivity(a ScheduledActivity) {
	m.mu.Lock()
	m.activities[a.ID] = a
	m.mu.Unlock()
}

// GetActivity implements Store.
func (m *MemStore) GetActivity(ctx context.Context, activityID string) (ScheduledActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	act, ok := m.activities[activityID]
	if !ok {
		return ScheduledActivity{}, fmt.Errorf("activity %s: %w", activityID, ErrNotFound)
	}
	return act, nil
}

// FindRecord implements Store.
func (m *MemStore) FindRecord(ctx context.Context, activityID, participantID string) (*ParticipationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPair[pairKey(activityID, participantID)]
	if !ok {
		return nil, nil
	}
	rec := m.records[id]
	return &rec, nil
}

// InsertRecord implements Store; second insert for a pair conflicts.
func (m *MemStore) InsertRecord(ctx context.Context, rec ParticipationRecord) (ParticipationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(rec.ActivityID, rec.ParticipantID)
	if _, exists := m.byPair[key]; exists {
		return ParticipationRecord{}, ErrConflict
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.records[rec.ID] = rec
	m.byPair[key] = rec.ID
	return rec, nil
}

// UpdateRecord implements Store.
func (m *MemStore) UpdateRecord(ctx context.Context, recordID string, status Status, notes string) (ParticipationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordID]
	if !ok {
		return ParticipationRecord{}, fmt.Errorf("record %s: %w", recordID, ErrNotFound)
	}
	rec.Status = status
	rec.Notes = notes
	rec.RecordedBy = RecordedByReviewer
	m.records[recordID] = rec
	return rec, nil
}

// BulkFetchRecords implements Store.
func (m *MemStore) BulkFetchRecords(ctx context.Context, activityIDs []string) ([]ParticipationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(activityIDs))
	for _, id := range activityIDs {
		want[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []ParticipationRecord
	for _, rec := range m.records {
		if want[rec.ActivityID] {
			res = append(res, rec)
		}
	}
	return res, nil
}

// ListActivities implements Store.
func (m *MemStore) ListActivities(ctx context.Context, unitIDs []string, from, to time.Time) ([]ScheduledActivity, error) {
	allowed := make(map[string]bool, len(unitIDs))
	for _, id := range unitIDs {
		allowed[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []ScheduledActivity
	for _, act := range m.activities {
		if act.Status == ActivityCancelled {
			continue
		}
		if len(unitIDs) > 0 && !allowed[act.UnitID] {
			continue
		}
		if act.StartsAt.Before(from) || act.StartsAt.After(to) {
			continue
		}
		res = append(res, act)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].StartsAt.Before(res[j].StartsAt) })
	return res, nil
}

// ListParticipants implements Store.
func (m *MemStore) ListParticipants(ctx context.Context, unitIDs []string) ([]Participant, error) {
	allowed := make(map[string]bool, len(unitIDs))
	for _, id := range unitIDs {
		allowed[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Participant
	for _, p := range m.participants {
		if len(unitIDs) > 0 && !allowed[p.UnitID] {
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// GetParticipant implements Store.
func (m *MemStore) GetParticipant(ctx context.Context, participantID string) (Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[participantID]
	if !ok {
		return Participant{}, fmt.Errorf("participant %s: %w", participantID, ErrNotFound)
	}
	return p, nil
}

// ListUnits implements Store.
func (m *MemStore) ListUnits(ctx context.Context) ([]Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Unit
	for _, u := range m.units {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}
