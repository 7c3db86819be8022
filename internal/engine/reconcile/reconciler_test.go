package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/localstore"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/remote"
	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

type stubRemote struct {
	listResult    []models.Session
	listErr       error
	setLogs       []models.SetLogInput
	setLogsErr    error
	createErr     error
	upsertErr     error
	abandonedIDs  []string
	upsertedIDs   []string
	createdIDs    []string
	lastCreated   models.Session
}

func (s *stubRemote) CreateSession(_ context.Context, session models.Session) (*models.Session, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.createdIDs = append(s.createdIDs, session.ID)
	s.lastCreated = session
	return &session, nil
}

func (s *stubRemote) UpsertSession(_ context.Context, session models.Session) error {
	s.upsertedIDs = append(s.upsertedIDs, session.ID)
	return s.upsertErr
}

func (s *stubRemote) LogSet(_ context.Context, _ string, _ models.SetLogInput) error {
	return nil
}

func (s *stubRemote) CompleteSession(_ context.Context, _ string, _ remote.CompletionRequest) (*models.Session, error) {
	return nil, nil
}

func (s *stubRemote) AbandonSession(_ context.Context, sessionID string) error {
	s.abandonedIDs = append(s.abandonedIDs, sessionID)
	return nil
}

func (s *stubRemote) PauseSession(_ context.Context, _ string) error { return nil }

func (s *stubRemote) ResumeSession(_ context.Context, _ string) error { return nil }

func (s *stubRemote) ListInProgressSessions(_ context.Context, _, _ string) ([]models.Session, error) {
	return s.listResult, s.listErr
}

func (s *stubRemote) ListSetLogs(_ context.Context, _ string) ([]models.SetLogInput, error) {
	return s.setLogs, s.setLogsErr
}

func (s *stubRemote) SyncOfflineSessions(_ context.Context, _ []models.PendingSyncEntry) error {
	return nil
}

func testSlots() []models.ExerciseSlot {
	return []models.ExerciseSlot{
		{ExerciseID: "ex-squat", Name: "Squat", SetsPlanned: 3, RestAfterSec: 90},
		{ExerciseID: "ex-bench", Name: "Bench Press", SetsPlanned: 3, RestAfterSec: 60},
	}
}

func intPtr(v int) *int { return &v }

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC) }
}

func TestDuplicateCollapseKeepsMostRecentlyStarted(t *testing.T) {
	older := models.Session{
		ID:        "sess-old",
		WorkoutID: "workout-1",
		UserID:    "user-1",
		Status:    models.StatusInProgress,
		StartedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	newer := older
	newer.ID = "sess-new"
	newer.StartedAt = older.StartedAt.Add(time.Hour)

	remoteStub := &stubRemote{listResult: []models.Session{older, newer}}
	local := localstore.New(localstore.NewMemoryKV())
	reconciler := New(remoteStub, local, WithClock(fixedClock()))

	result, err := reconciler.Run(context.Background(), "user-1", "workout-1", testSlots())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Session.ID != "sess-new" {
		t.Fatalf("expected sess-new to survive, got %s", result.Session.ID)
	}
	if result.Source != SourceRemote {
		t.Fatalf("expected remote source, got %s", result.Source)
	}
	if len(remoteStub.abandonedIDs) != 1 || remoteStub.abandonedIDs[0] != "sess-old" {
		t.Fatalf("expected sess-old abandoned, got %v", remoteStub.abandonedIDs)
	}
}

func TestResumeRemoteFoldsSetLogsAndDerivesPosition(t *testing.T) {
	session := models.Session{
		ID:        "sess-1",
		WorkoutID: "workout-1",
		UserID:    "user-1",
		Status:    models.StatusInProgress,
		StartedAt: time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC),
	}
	remoteStub := &stubRemote{
		listResult: []models.Session{session},
		setLogs: []models.SetLogInput{
			{ExerciseID: "ex-squat", SetNumber: 1, RepsCompleted: intPtr(8)},
			{ExerciseID: "ex-squat", SetNumber: 2, RepsCompleted: intPtr(8)},
		},
	}
	local := localstore.New(localstore.NewMemoryKV())
	reconciler := New(remoteStub, local)

	result, err := reconciler.Run(context.Background(), "user-1", "workout-1", testSlots())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Store.CurrentExerciseIndex() != 0 || result.Store.CurrentSetIndex() != 2 {
		t.Fatalf(
			"expected position 0/2, got %d/%d",
			result.Store.CurrentExerciseIndex(),
			result.Store.CurrentSetIndex(),
		)
	}
	if result.Timer.IsResting {
		t.Fatalf("expected idle timer on remote resume")
	}

	record, err := local.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if record == nil || record.Session.ID != "sess-1" {
		t.Fatalf("expected resumed session persisted locally, got %+v", record)
	}
}

func TestLocalRecoveryUpsertsRemoteAndKeepsTimer(t *testing.T) {
	local := localstore.New(localstore.NewMemoryKV())
	record := &localstore.SessionRecord{
		Session: models.Session{
			ID:        "sess-local",
			WorkoutID: "workout-1",
			UserID:    "user-1",
			Status:    models.StatusInProgress,
			StartedAt: time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC),
		},
		Slots: testSlots(),
		Logs: [][]models.SetLog{
			{{SetIndex: 0, Completed: true}, {SetIndex: 1}, {SetIndex: 2}},
			{{SetIndex: 0}, {SetIndex: 1}, {SetIndex: 2}},
		},
		CurrentExerciseIndex: 0,
		CurrentSetIndex:      1,
		Timer: models.TimerSnapshot{
			Running:          true,
			IsResting:        true,
			RemainingSeconds: 30,
			TotalSeconds:     90,
			Paused:           true,
		},
	}
	if err := local.SaveActive(record); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}

	remoteStub := &stubRemote{}
	reconciler := New(remoteStub, local)

	result, err := reconciler.Run(context.Background(), "user-1", "workout-1", testSlots())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Source != SourceLocal {
		t.Fatalf("expected local source, got %s", result.Source)
	}
	if result.Session.ID != "sess-local" {
		t.Fatalf("expected sess-local, got %s", result.Session.ID)
	}
	if !result.Timer.IsResting || result.Timer.RemainingSeconds != 30 || !result.Timer.Paused {
		t.Fatalf("expected timer snapshot carried over, got %+v", result.Timer)
	}
	if len(remoteStub.upsertedIDs) != 1 || remoteStub.upsertedIDs[0] != "sess-local" {
		t.Fatalf("expected recovered session upserted remotely, got %v", remoteStub.upsertedIDs)
	}
}

func TestLocalRecordForOtherWorkoutIsIgnored(t *testing.T) {
	local := localstore.New(localstore.NewMemoryKV())
	record := &localstore.SessionRecord{
		Session: models.Session{
			ID:        "sess-other",
			WorkoutID: "workout-other",
			UserID:    "user-1",
			Status:    models.StatusInProgress,
		},
		Slots:                testSlots(),
		Logs:                 [][]models.SetLog{{{}, {}, {}}, {{}, {}, {}}},
		CurrentExerciseIndex: 0,
		CurrentSetIndex:      0,
	}
	if err := local.SaveActive(record); err != nil {
		t.Fatalf("SaveActive: %v", err)
	}

	remoteStub := &stubRemote{}
	reconciler := New(
		remoteStub,
		local,
		WithClock(fixedClock()),
		WithIDGenerator(func() string { return "sess-fresh" }),
	)

	result, err := reconciler.Run(context.Background(), "user-1", "workout-1", testSlots())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Source != SourceFresh {
		t.Fatalf("expected fresh source, got %s", result.Source)
	}
	if result.Session.ID != "sess-fresh" {
		t.Fatalf("expected generated id, got %s", result.Session.ID)
	}
}

func TestFreshPathCreatesAndPersistsSession(t *testing.T) {
	remoteStub := &stubRemote{}
	local := localstore.New(localstore.NewMemoryKV())
	reconciler := New(
		remoteStub,
		local,
		WithClock(fixedClock()),
		WithIDGenerator(func() string { return "sess-fresh" }),
	)

	result, err := reconciler.Run(context.Background(), "user-1", "workout-1", testSlots())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Session.Status != models.StatusInProgress {
		t.Fatalf("expected in_progress, got %s", result.Session.Status)
	}
	if !result.Session.StartedAt.Equal(fixedClock()()) {
		t.Fatalf("unexpected started_at %v", result.Session.StartedAt)
	}
	if len(remoteStub.createdIDs) != 1 || remoteStub.createdIDs[0] != "sess-fresh" {
		t.Fatalf("expected remote create, got %v", remoteStub.createdIDs)
	}
	if remoteStub.lastCreated.UserID != "user-1" ||
		remoteStub.lastCreated.WorkoutID != "workout-1" ||
		remoteStub.lastCreated.Status != models.StatusInProgress {
		t.Fatalf("unexpected created payload: %+v", remoteStub.lastCreated)
	}
	if result.Store.UnresolvedSetCount() != 6 {
		t.Fatalf("expected 6 pending sets, got %d", result.Store.UnresolvedSetCount())
	}

	record, err := local.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if record == nil || record.Session.ID != "sess-fresh" {
		t.Fatalf("expected fresh session persisted, got %+v", record)
	}
}

func TestFreshPathSurvivesRemoteOutage(t *testing.T) {
	remoteStub := &stubRemote{
		listErr:   errors.New("remote down"),
		createErr: errors.New("remote down"),
	}
	local := localstore.New(localstore.NewMemoryKV())
	reconciler := New(remoteStub, local, WithIDGenerator(func() string { return "sess-offline" }))

	result, err := reconciler.Run(context.Background(), "user-1", "workout-1", testSlots())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Session.ID != "sess-offline" {
		t.Fatalf("expected offline session, got %s", result.Session.ID)
	}

	record, err := local.LoadActive()
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if record == nil {
		t.Fatalf("expected session persisted despite outage")
	}
}

func TestResumedNotificationFiresOncePerSession(t *testing.T) {
	session := models.Session{
		ID:        "sess-1",
		WorkoutID: "workout-1",
		UserID:    "user-1",
		Status:    models.StatusInProgress,
		StartedAt: time.Now().UTC(),
	}
	remoteStub := &stubRemote{listResult: []models.Session{session}}
	local := localstore.New(localstore.NewMemoryKV())

	var notified []string
	cache := NewNotifyCache()
	reconciler := New(remoteStub, local, WithResumedNotifier(cache, func(sessionID string) {
		notified = append(notified, sessionID)
	}))

	for i := 0; i < 3; i++ {
		if _, err := reconciler.Run(context.Background(), "user-1", "workout-1", testSlots()); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	if len(notified) != 1 || notified[0] != "sess-1" {
		t.Fatalf("expected one notification for sess-1, got %v", notified)
	}
}
