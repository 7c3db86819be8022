package controller

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/localstore"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/reconcile"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/remote"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/state"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/timer"
	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

var (
	ErrNoActiveSession  = errors.New("no active session")
	ErrSessionTerminal  = errors.New("session already completed or abandoned")
	ErrSessionNotPaused = errors.New("session is not paused")
	ErrSessionPaused    = errors.New("session is paused")
)

// LogResult reports what a logged set did to the session position.
type LogResult struct {
	WorkoutComplete  bool
	RestTimerStarted bool
}

// CompletionResult tells the caller whether the completed session reached the
// system of record or was queued for a later sync.
type CompletionResult struct {
	Session   models.Session
	Confirmed bool
}

// Controller is the façade the presentation layer drives a live session
// through. All mutation is serialized behind one mutex; local effects land
// before the corresponding remote call is fired in the background.
type Controller struct {
	mu     sync.Mutex
	local  *localstore.Store
	remote remote.Service
	rec    *reconcile.Reconciler
	now    func() time.Time

	timer       *timer.Timer
	onTimerDone func()

	session    *models.Session
	store      *state.Store
	memoryOnly bool

	remoteWG     sync.WaitGroup
	pushTimeout  time.Duration
	tickInterval time.Duration
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithTickInterval(interval time.Duration) Option {
	return func(c *Controller) { c.tickInterval = interval }
}

// WithTimerDoneHandler registers the single completion event the presentation
// layer turns into its chime or toast.
func WithTimerDoneHandler(onDone func()) Option {
	return func(c *Controller) { c.onTimerDone = onDone }
}

func New(
	local *localstore.Store,
	remoteService remote.Service,
	reconciler *reconcile.Reconciler,
	opts ...Option,
) *Controller {
	c := &Controller{
		local:        local,
		remote:       remoteService,
		rec:          reconciler,
		now:          time.Now,
		pushTimeout:  10 * time.Second,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.timer = timer.New(
		c.handleTimerDone,
		timer.WithClock(func() time.Time { return c.now() }),
		timer.WithTickInterval(c.tickInterval),
	)
	return c
}

// StartWorkout reconciles remote and local state for (user, workout) and
// leaves the controller driving the single surviving session. Any previously
// active session's timer is torn down first.
func (c *Controller) StartWorkout(
	ctx context.Context,
	userID, workoutID string,
	slots []models.ExerciseSlot,
) (*models.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer.Stop()
	c.memoryOnly = false

	result, err := c.rec.Run(ctx, userID, workoutID, slots)
	if err != nil {
		return nil, err
	}

	session := result.Session
	c.session = &session
	c.store = result.Store
	c.timer.Restore(result.Timer)

	return &session, nil
}

func (c *Controller) LogExerciseSet(
	ctx context.Context,
	exerciseIndex, setIndex int,
	input state.SetInput,
) (*LogResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireMutable(); err != nil {
		return nil, err
	}
	if c.session.Status == models.StatusPaused {
		return nil, ErrSessionPaused
	}

	now := c.now()
	if err := c.store.LogSet(exerciseIndex, setIndex, input, now); err != nil {
		return nil, err
	}
	slot := c.store.Slots()[exerciseIndex]

	result := &LogResult{}
	result.WorkoutComplete = c.store.Advance()

	if !input.Skipped && !result.WorkoutComplete && slot.RestAfterSec > 0 {
		if err := c.timer.Start(slot.RestAfterSec, true); err == nil {
			result.RestTimerStarted = true
		}
	}

	c.persistLocked()

	sessionID := c.session.ID
	c.pushRemote(func(ctx context.Context) error {
		return c.remote.LogSet(ctx, sessionID, models.SetLogInput{
			ExerciseID:    slot.ExerciseID,
			SetNumber:     setIndex + 1,
			RepsCompleted: input.Reps,
			WeightKg:      input.WeightKg,
			DurationSec:   input.DurationSec,
			WasSkipped:    input.Skipped,
		})
	})

	return result, nil
}

func (c *Controller) SkipSet(ctx context.Context, exerciseIndex, setIndex int) (*LogResult, error) {
	return c.LogExerciseSet(ctx, exerciseIndex, setIndex, state.SetInput{Skipped: true})
}

func (c *Controller) JumpToExercise(exerciseIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireMutable(); err != nil {
		return err
	}
	if err := c.store.JumpTo(exerciseIndex); err != nil {
		return err
	}
	c.persistLocked()
	return nil
}

func (c *Controller) PauseWorkout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireMutable(); err != nil {
		return err
	}
	if c.session.Status == models.StatusPaused {
		return nil
	}

	c.session.Status = models.StatusPaused
	c.timer.Pause()
	c.persistLocked()

	sessionID := c.session.ID
	c.pushRemote(func(ctx context.Context) error {
		return c.remote.PauseSession(ctx, sessionID)
	})
	return nil
}

func (c *Controller) ResumeWorkout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireMutable(); err != nil {
		return err
	}
	if c.session.Status != models.StatusPaused {
		return ErrSessionNotPaused
	}

	c.session.Status = models.StatusInProgress
	c.timer.Resume()
	c.persistLocked()

	sessionID := c.session.ID
	c.pushRemote(func(ctx context.Context) error {
		return c.remote.ResumeSession(ctx, sessionID)
	})
	return nil
}

// CompleteWorkout finalizes the session, computes its duration and flushes
// the full record to the system of record. When the flush fails the payload
// lands on the pending-sync queue instead of being lost; either way the local
// active slot is cleared so a new session can start.
func (c *Controller) CompleteWorkout(
	ctx context.Context,
	completion models.CompletionInput,
) (*CompletionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireMutable(); err != nil {
		return nil, err
	}
	if c.session.Status == models.StatusPaused {
		return nil, ErrSessionPaused
	}

	now := c.now()
	completedAt := now
	c.session.Status = models.StatusCompleted
	c.session.CompletedAt = &completedAt
	c.session.DurationMinutes = durationMinutes(c.session.StartedAt, now)
	c.session.PerceivedEffort = completion.PerceivedEffort
	c.session.MoodRating = completion.MoodRating
	c.session.Notes = completion.Notes
	c.timer.Stop()

	setLogs := c.resolvedSetLogsLocked()
	confirmed := c.flushCompletionLocked(ctx, setLogs, completion)
	if !confirmed {
		entry := models.PendingSyncEntry{
			Session:    *c.session,
			SetLogs:    setLogs,
			Completion: completion,
			QueuedAt:   now,
		}
		if err := c.local.EnqueuePendingSync(entry); err != nil {
			log.Printf("session %s: queue offline completion: %v", c.session.ID, err)
		}
	}

	if err := c.local.ClearActive(); err != nil {
		log.Printf("session %s: clear active record: %v", c.session.ID, err)
	}

	result := &CompletionResult{Session: *c.session, Confirmed: confirmed}
	c.session = nil
	c.store = nil
	return result, nil
}

func (c *Controller) AbandonWorkout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireMutable(); err != nil {
		return err
	}

	c.session.Status = models.StatusAbandoned
	c.timer.Stop()

	if err := c.local.ClearActive(); err != nil {
		log.Printf("session %s: clear active record: %v", c.session.ID, err)
	}

	sessionID := c.session.ID
	c.pushRemote(func(ctx context.Context) error {
		return c.remote.AbandonSession(ctx, sessionID)
	})

	c.session = nil
	c.store = nil
	return nil
}

// SyncPending drains the offline completion queue. Call it whenever
// connectivity is (re)detected; the server deduplicates on session id, so
// redelivery is harmless.
func (c *Controller) SyncPending(ctx context.Context) (int, error) {
	c.mu.Lock()
	entries, err := c.local.ListPendingSync()
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := c.remote.SyncOfflineSessions(ctx, entries); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range entries {
		if err := c.local.ClearPendingSync(entry.Session.ID); err != nil {
			log.Printf("session %s: clear synced entry: %v", entry.Session.ID, err)
		}
	}
	return len(entries), nil
}

func (c *Controller) PauseTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer.Pause()
	c.persistIfActiveLocked()
}

func (c *Controller) ResumeTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer.Resume()
	c.persistIfActiveLocked()
}

func (c *Controller) SkipTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer.Skip()
	c.persistIfActiveLocked()
}

// StartExerciseTimer runs the countdown for a time-based exercise using the
// current slot's planned duration.
func (c *Controller) StartExerciseTimer() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireMutable(); err != nil {
		return err
	}
	slot := c.store.CurrentSlot()
	if slot.DurationSec == nil {
		return timer.ErrInvalidDuration
	}
	if err := c.timer.Start(*slot.DurationSec, false); err != nil {
		return err
	}
	c.persistLocked()
	return nil
}

func (c *Controller) TimerSnapshot() models.TimerSnapshot {
	return c.timer.Snapshot()
}

func (c *Controller) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	session := *c.session
	return &session
}

func (c *Controller) CurrentExerciseIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return 0
	}
	return c.store.CurrentExerciseIndex()
}

func (c *Controller) CurrentSetIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return 0
	}
	return c.store.CurrentSetIndex()
}

func (c *Controller) SetLogs() [][]models.SetLog {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Logs()
}

// UnresolvedSetCount lets the caller decide whether to ask for confirmation
// before completing a workout with pending sets. Completion itself never
// blocks on it.
func (c *Controller) UnresolvedSetCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		return 0
	}
	return c.store.UnresolvedSetCount()
}

// Close tears down the timer and waits for in-flight remote pushes, for a
// clean unmount of the training view.
func (c *Controller) Close() {
	c.mu.Lock()
	c.timer.Stop()
	c.mu.Unlock()
	c.remoteWG.Wait()
}

// WaitForRemote blocks until every background push fired so far has finished.
func (c *Controller) WaitForRemote() {
	c.remoteWG.Wait()
}

func (c *Controller) requireMutable() error {
	if c.session == nil || c.store == nil {
		return ErrNoActiveSession
	}
	if c.session.IsTerminal() {
		return ErrSessionTerminal
	}
	return nil
}

// persistLocked writes the full session record through to durable storage.
// The first failed write flips the engine into memory-only mode for the rest
// of the session; the session keeps going either way.
func (c *Controller) persistLocked() {
	if c.session == nil || c.store == nil || c.memoryOnly {
		return
	}
	record := &localstore.SessionRecord{
		Session:              *c.session,
		Slots:                c.store.Slots(),
		Logs:                 c.store.Logs(),
		CurrentExerciseIndex: c.store.CurrentExerciseIndex(),
		CurrentSetIndex:      c.store.CurrentSetIndex(),
		Timer:                c.timer.Snapshot(),
	}
	if err := c.local.SaveActive(record); err != nil {
		c.memoryOnly = true
		log.Printf(
			"session %s: durable write failed, continuing in memory only: %v",
			c.session.ID,
			err,
		)
	}
}

func (c *Controller) persistIfActiveLocked() {
	if c.session != nil && c.store != nil && !c.session.IsTerminal() {
		c.persistLocked()
	}
}

func (c *Controller) flushCompletionLocked(
	ctx context.Context,
	setLogs []models.SetLogInput,
	completion models.CompletionInput,
) bool {
	sessionID := c.session.ID
	for _, entry := range setLogs {
		if err := c.remote.LogSet(ctx, sessionID, entry); err != nil {
			log.Printf("session %s: flush set log: %v", sessionID, err)
			return false
		}
	}
	_, err := c.remote.CompleteSession(ctx, sessionID, remote.CompletionRequest{
		DurationMinutes: c.session.DurationMinutes,
		PerceivedEffort: completion.PerceivedEffort,
		MoodRating:      completion.MoodRating,
		Notes:           completion.Notes,
	})
	if err != nil {
		log.Printf("session %s: remote completion: %v", sessionID, err)
		return false
	}
	return true
}

func (c *Controller) resolvedSetLogsLocked() []models.SetLogInput {
	slots := c.store.Slots()
	logs := c.store.Logs()
	var out []models.SetLogInput
	for i := range logs {
		for j := range logs[i] {
			entry := logs[i][j]
			if !entry.Resolved() {
				continue
			}
			out = append(out, models.SetLogInput{
				ExerciseID:    slots[i].ExerciseID,
				SetNumber:     j + 1,
				RepsCompleted: entry.RepsCompleted,
				WeightKg:      entry.WeightKg,
				DurationSec:   entry.DurationSec,
				WasSkipped:    entry.Skipped,
			})
		}
	}
	return out
}

// pushRemote fires a best-effort background call against the system of
// record. Failures are logged, never surfaced; durable state already moved on.
func (c *Controller) pushRemote(call func(ctx context.Context) error) {
	c.remoteWG.Add(1)
	go func() {
		defer c.remoteWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.pushTimeout)
		defer cancel()
		if err := call(ctx); err != nil {
			log.Printf("background session push: %v", err)
		}
	}()
}

// handleTimerDone runs on whichever goroutine drove the timer to zero; that
// can be a controller entry point already holding the mutex, so the work is
// handed off instead of locking inline.
func (c *Controller) handleTimerDone() {
	c.remoteWG.Add(1)
	go func() {
		defer c.remoteWG.Done()
		c.mu.Lock()
		c.persistIfActiveLocked()
		done := c.onTimerDone
		c.mu.Unlock()

		if done != nil {
			done()
		}
	}()
}

func durationMinutes(startedAt, completedAt time.Time) int {
	minutes := int(math.Round(completedAt.Sub(startedAt).Minutes()))
	if minutes < 0 {
		return 0
	}
	return minutes
}
