package localstore

import (
	"encoding/json"

	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

const (
	recordVersion = 1

	activeSessionKey = "active_session"
	pendingSyncKey   = "pending_sync"
)

// KV is the host-provided durable key-value store the engine writes through
// to. Implementations must make Put durable before returning.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// SessionRecord is the single durable representation of the active session:
// the session row, its exercise slots, every set log, the progress pointers
// and the timer snapshot. The version field guards against legacy or foreign
// payloads; records that fail validation are treated as absent.
type SessionRecord struct {
	Version              int                   `json:"version"`
	Session              models.Session        `json:"session"`
	Slots                []models.ExerciseSlot `json:"slots"`
	Logs                 [][]models.SetLog     `json:"logs"`
	CurrentExerciseIndex int                   `json:"current_exercise_index"`
	CurrentSetIndex      int                   `json:"current_set_index"`
	Timer                models.TimerSnapshot  `json:"timer"`
}

type Store struct {
	kv KV
}

func New(kv KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) SaveActive(record *SessionRecord) error {
	record.Version = recordVersion
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.kv.Put(activeSessionKey, payload)
}

// LoadActive returns the active-session record, or nil when the slot is empty.
// Malformed and legacy records fail closed: they are reported as absent rather
// than half-decoded into the engine.
func (s *Store) LoadActive() (*SessionRecord, error) {
	payload, found, err := s.kv.Get(activeSessionKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var record SessionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, nil
	}
	if !record.valid() {
		return nil, nil
	}
	return &record, nil
}

func (s *Store) ClearActive() error {
	return s.kv.Delete(activeSessionKey)
}

func (s *Store) EnqueuePendingSync(entry models.PendingSyncEntry) error {
	entries, err := s.ListPendingSync()
	if err != nil {
		return err
	}
	for _, existing := range entries {
		if existing.Session.ID == entry.Session.ID {
			return nil
		}
	}
	entries = append(entries, entry)
	return s.writePendingSync(entries)
}

func (s *Store) ListPendingSync() ([]models.PendingSyncEntry, error) {
	payload, found, err := s.kv.Get(pendingSyncKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var entries []models.PendingSyncEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

func (s *Store) ClearPendingSync(sessionID string) error {
	entries, err := s.ListPendingSync()
	if err != nil {
		return err
	}
	remaining := entries[:0]
	for _, entry := range entries {
		if entry.Session.ID != sessionID {
			remaining = append(remaining, entry)
		}
	}
	if len(remaining) == 0 {
		return s.kv.Delete(pendingSyncKey)
	}
	return s.writePendingSync(remaining)
}

func (s *Store) writePendingSync(entries []models.PendingSyncEntry) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.kv.Put(pendingSyncKey, payload)
}

func (r *SessionRecord) valid() bool {
	if r.Version != recordVersion {
		return false
	}
	if r.Session.ID == "" || r.Session.WorkoutID == "" {
		return false
	}
	if len(r.Slots) == 0 || len(r.Logs) != len(r.Slots) {
		return false
	}
	if r.CurrentExerciseIndex < 0 || r.CurrentExerciseIndex >= len(r.Slots) {
		return false
	}
	if r.CurrentSetIndex < 0 || r.CurrentSetIndex >= len(r.Logs[r.CurrentExerciseIndex]) {
		return false
	}
	return true
}
