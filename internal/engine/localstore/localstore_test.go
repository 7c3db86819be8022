package localstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

func sampleRecord() *SessionRecord {
	reps := 8
	completedAt := time.Date(2026, 3, 1, 18, 5, 0, 0, time.UTC)
	return &SessionRecord{
		Session: models.Session{
			ID:        "sess-1",
			WorkoutID: "workout-1",
			UserID:    "user-1",
			Status:    models.StatusInProgress,
			StartedAt: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC),
		},
		Slots: []models.ExerciseSlot{
			{ExerciseID: "ex-squat", Name: "Squat", SetsPlanned: 2, RestAfterSec: 90},
		},
		Logs: [][]models.SetLog{
			{
				{SetIndex: 0, RepsCompleted: &reps, Completed: true, CompletedAt: &completedAt},
				{SetIndex: 1},
			},
		},
		CurrentExerciseIndex: 0,
		CurrentSetIndex:      1,
		Timer: models.TimerSnapshot{
			Running:          true,
			IsResting:        true,
			RemainingSeconds: 45,
			TotalSeconds:     90,
			ExpiresAtEpochMs: 1772388345000,
		},
	}
}

func TestActiveRecordRoundTrip(t *testing.T) {
	store := New(NewMemoryKV())

	if err := store.SaveActive(sampleRecord()); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}

	loaded, err := store.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected record, got nil")
	}
	if loaded.Session.ID != "sess-1" || loaded.Session.WorkoutID != "workout-1" {
		t.Fatalf("unexpected session: %+v", loaded.Session)
	}
	if loaded.CurrentSetIndex != 1 {
		t.Fatalf("expected set pointer 1, got %d", loaded.CurrentSetIndex)
	}
	if !loaded.Logs[0][0].Completed || loaded.Logs[0][0].RepsCompleted == nil {
		t.Fatalf("expected completed first set, got %+v", loaded.Logs[0][0])
	}
	if loaded.Timer.RemainingSeconds != 45 || !loaded.Timer.IsResting {
		t.Fatalf("unexpected timer snapshot: %+v", loaded.Timer)
	}
}

func TestLoadActiveReturnsNilWhenEmpty(t *testing.T) {
	store := New(NewMemoryKV())

	record, err := store.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %+v", record)
	}
}

func TestLoadActiveFailsClosedOnMalformedPayload(t *testing.T) {
	kv := NewMemoryKV()
	store := New(kv)

	if err := kv.Put("active_session", []byte(`{"version":1,"session"`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	record, err := store.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if record != nil {
		t.Fatalf("expected malformed record to read as absent, got %+v", record)
	}
}

func TestLoadActiveFailsClosedOnLegacyVersion(t *testing.T) {
	kv := NewMemoryKV()
	store := New(kv)

	record := sampleRecord()
	if err := store.SaveActive(record); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}
	payload, _, err := kv.Get("active_session")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := kv.Put("active_session", append([]byte(`{"version":99,`), payload[13:]...)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	loaded, err := store.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected legacy record to read as absent, got %+v", loaded)
	}
}

func TestLoadActiveFailsClosedOnBadPointers(t *testing.T) {
	store := New(NewMemoryKV())

	record := sampleRecord()
	record.CurrentExerciseIndex = 7
	if err := store.SaveActive(record); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}

	loaded, err := store.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected invalid pointers to read as absent, got %+v", loaded)
	}
}

func TestClearActiveEmptiesSlot(t *testing.T) {
	store := New(NewMemoryKV())

	if err := store.SaveActive(sampleRecord()); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}
	if err := store.ClearActive(); err != nil {
		t.Fatalf("ClearActive: %v", err)
	}
	record, err := store.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if record != nil {
		t.Fatalf("expected empty slot, got %+v", record)
	}
}

func TestPendingSyncQueueLifecycle(t *testing.T) {
	store := New(NewMemoryKV())

	first := models.PendingSyncEntry{
		Session:  models.Session{ID: "sess-1", WorkoutID: "workout-1", UserID: "user-1"},
		QueuedAt: time.Now().UTC(),
	}
	second := models.PendingSyncEntry{
		Session:  models.Session{ID: "sess-2", WorkoutID: "workout-1", UserID: "user-1"},
		QueuedAt: time.Now().UTC(),
	}

	if err := store.EnqueuePendingSync(first); err != nil {
		t.Fatalf("EnqueuePendingSync: %v", err)
	}
	if err := store.EnqueuePendingSync(first); err != nil {
		t.Fatalf("EnqueuePendingSync repeat: %v", err)
	}
	if err := store.EnqueuePendingSync(second); err != nil {
		t.Fatalf("EnqueuePendingSync: %v", err)
	}

	entries, err := store.ListPendingSync()
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected duplicate enqueue to collapse to 2 entries, got %d", len(entries))
	}

	if err := store.ClearPendingSync("sess-1"); err != nil {
		t.Fatalf("ClearPendingSync: %v", err)
	}
	entries, err = store.ListPendingSync()
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(entries) != 1 || entries[0].Session.ID != "sess-2" {
		t.Fatalf("unexpected queue after clear: %+v", entries)
	}

	if err := store.ClearPendingSync("sess-2"); err != nil {
		t.Fatalf("ClearPendingSync: %v", err)
	}
	entries, err = store.ListPendingSync()
	if err != nil {
		t.Fatalf("ListPendingSync: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty queue, got %+v", entries)
	}
}

func TestSQLiteKVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	defer kv.Close()

	if _, found, err := kv.Get("missing"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	if err := kv.Put("k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := kv.Put("k", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	value, found, err := kv.Get("k")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if string(value) != "v2" {
		t.Fatalf("expected v2, got %q", value)
	}

	if err := kv.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := kv.Get("k"); found {
		t.Fatalf("expected key deleted")
	}
}

func TestSQLiteBackedStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")
	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	defer kv.Close()

	store := New(kv)
	if err := store.SaveActive(sampleRecord()); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}
	loaded, err := store.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if loaded == nil || loaded.Session.ID != "sess-1" {
		t.Fatalf("unexpected record: %+v", loaded)
	}
}
