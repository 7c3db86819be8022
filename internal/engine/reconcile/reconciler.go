package reconcile

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/localstore"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/remote"
	"github.com/tomnasc/treino-na-mao-sub000/internal/engine/state"
	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
	SourceFresh  = "fresh"
)

// NotifyCache remembers which session ids have already produced a "session
// resumed" notification during this process lifetime. Reconciliation can be
// re-entered; the notification must not be.
type NotifyCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewNotifyCache() *NotifyCache {
	return &NotifyCache{seen: make(map[string]struct{})}
}

func (c *NotifyCache) MarkResumed(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[sessionID]; ok {
		return false
	}
	c.seen[sessionID] = struct{}{}
	return true
}

// Result is the single authoritative session the controller takes over after
// reconciliation, together with the progress store and timer snapshot to
// restore from.
type Result struct {
	Session models.Session
	Store   *state.Store
	Timer   models.TimerSnapshot
	Source  string
}

type Reconciler struct {
	remote    remote.Service
	local     *localstore.Store
	notified  *NotifyCache
	onResumed func(sessionID string)
	now       func() time.Time
	newID     func() string
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(r *Reconciler) { r.newID = newID }
}

// WithResumedNotifier registers the callback fired (at most once per session
// id) when an existing session is adopted instead of a fresh one.
func WithResumedNotifier(cache *NotifyCache, onResumed func(sessionID string)) Option {
	return func(r *Reconciler) {
		r.notified = cache
		r.onResumed = onResumed
	}
}

func New(remoteService remote.Service, local *localstore.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		remote:   remoteService,
		local:    local,
		notified: NewNotifyCache(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run resolves remote duplicates, then picks the session to drive: the
// authoritative remote in-progress session, the locally recovered one, or a
// fresh one. It leaves the local active-session slot holding exactly the
// session it returns.
func (r *Reconciler) Run(
	ctx context.Context,
	userID, workoutID string,
	slots []models.ExerciseSlot,
) (*Result, error) {
	authoritative := r.collapseRemoteDuplicates(ctx, userID, workoutID)

	if authoritative != nil {
		return r.resumeRemote(ctx, *authoritative, slots)
	}

	if result := r.recoverLocal(ctx, userID, workoutID); result != nil {
		return result, nil
	}

	return r.startFresh(ctx, userID, workoutID, slots)
}

// collapseRemoteDuplicates restores the at-most-one-in-progress invariant for
// (user, workout) and returns the surviving session, if any. The most
// recently started session wins; the rest are abandoned.
func (r *Reconciler) collapseRemoteDuplicates(
	ctx context.Context,
	userID, workoutID string,
) *models.Session {
	sessions, err := r.remote.ListInProgressSessions(ctx, userID, workoutID)
	if err != nil {
		log.Printf("reconcile: list in-progress sessions: %v", err)
		return nil
	}
	if len(sessions) == 0 {
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	for _, duplicate := range sessions[1:] {
		if err := r.remote.AbandonSession(ctx, duplicate.ID); err != nil {
			log.Printf("reconcile: abandon duplicate session %s: %v", duplicate.ID, err)
		}
	}
	return &sessions[0]
}

func (r *Reconciler) resumeRemote(
	ctx context.Context,
	session models.Session,
	slots []models.ExerciseSlot,
) (*Result, error) {
	store, err := state.NewStore(slots)
	if err != nil {
		return nil, err
	}

	logs, err := r.remote.ListSetLogs(ctx, session.ID)
	if err != nil {
		log.Printf("reconcile: pull set logs for %s: %v", session.ID, err)
	}
	store.ApplyRemoteLogs(logs)

	result := &Result{Session: session, Store: store, Source: SourceRemote}
	r.persistActive(result)
	r.notifyResumed(session.ID)
	return result, nil
}

func (r *Reconciler) recoverLocal(ctx context.Context, userID, workoutID string) *Result {
	record, err := r.local.LoadActive()
	if err != nil {
		log.Printf("reconcile: load local active session: %v", err)
		return nil
	}
	if record == nil || record.Session.WorkoutID != workoutID || record.Session.UserID != userID {
		return nil
	}
	if record.Session.IsTerminal() {
		return nil
	}

	store, err := state.Restore(
		record.Slots,
		record.Logs,
		record.CurrentExerciseIndex,
		record.CurrentSetIndex,
	)
	if err != nil {
		log.Printf("reconcile: local record for %s unusable: %v", record.Session.ID, err)
		return nil
	}

	if err := r.remote.UpsertSession(ctx, record.Session); err != nil {
		log.Printf("reconcile: re-upsert recovered session %s: %v", record.Session.ID, err)
	}

	r.notifyResumed(record.Session.ID)
	return &Result{
		Session: record.Session,
		Store:   store,
		Timer:   record.Timer,
		Source:  SourceLocal,
	}
}

func (r *Reconciler) startFresh(
	ctx context.Context,
	userID, workoutID string,
	slots []models.ExerciseSlot,
) (*Result, error) {
	store, err := state.NewStore(slots)
	if err != nil {
		return nil, err
	}

	now := r.now()
	session := models.Session{
		ID:        r.newID(),
		WorkoutID: workoutID,
		UserID:    userID,
		Status:    models.StatusInProgress,
		StartedAt: now,
	}

	result := &Result{Session: session, Store: store, Source: SourceFresh}
	r.persistActive(result)

	if created, err := r.remote.CreateSession(ctx, session); err != nil {
		log.Printf("reconcile: create remote session: %v", err)
	} else if created != nil {
		result.Session = *created
	}
	return result, nil
}

func (r *Reconciler) persistActive(result *Result) {
	record := &localstore.SessionRecord{
		Session:              result.Session,
		Slots:                result.Store.Slots(),
		Logs:                 result.Store.Logs(),
		CurrentExerciseIndex: result.Store.CurrentExerciseIndex(),
		CurrentSetIndex:      result.Store.CurrentSetIndex(),
		Timer:                result.Timer,
	}
	if err := r.local.SaveActive(record); err != nil {
		log.Printf("reconcile: persist active session %s: %v", result.Session.ID, err)
	}
}

func (r *Reconciler) notifyResumed(sessionID string) {
	if r.onResumed == nil || !r.notified.MarkResumed(sessionID) {
		return
	}
	r.onResumed(sessionID)
}
