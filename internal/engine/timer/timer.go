package timer

import (
	"errors"
	"sync"
	"time"

	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

var ErrInvalidDuration = errors.New("timer duration must be greater than 0")

// Timer counts down toward an absolute expiry instant. Remaining time is
// recomputed from the wall clock on every tick, so the countdown stays correct
// even when the process is suspended between ticks.
type Timer struct {
	mu       sync.Mutex
	now      func() time.Time
	interval time.Duration
	onDone   func()

	running   bool
	paused    bool
	resting   bool
	total     int
	remaining int
	expiresAt time.Time

	gen      uint64
	stopTick chan struct{}
}

type Option func(*Timer)

func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

func WithTickInterval(interval time.Duration) Option {
	return func(t *Timer) { t.interval = interval }
}

func New(onDone func(), opts ...Option) *Timer {
	t := &Timer{
		now:      time.Now,
		interval: time.Second,
		onDone:   onDone,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Timer) Start(durationSeconds int, resting bool) error {
	if durationSeconds <= 0 {
		return ErrInvalidDuration
	}

	t.mu.Lock()
	now := t.now()
	t.stopTickLocked()
	t.running = true
	t.paused = false
	t.resting = resting
	t.total = durationSeconds
	t.remaining = durationSeconds
	t.expiresAt = now.Add(time.Duration(durationSeconds) * time.Second)
	t.startTickLocked()
	t.mu.Unlock()
	return nil
}

func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return
	}
	now := t.now()
	t.remaining = remainingUntil(t.expiresAt, now)
	t.paused = true
	t.expiresAt = time.Time{}
	t.stopTickLocked()
}

func (t *Timer) Resume() {
	t.mu.Lock()
	if !t.running || !t.paused {
		t.mu.Unlock()
		return
	}
	now := t.now()
	t.paused = false
	t.expiresAt = now.Add(time.Duration(t.remaining) * time.Second)
	t.startTickLocked()
	t.mu.Unlock()
	t.Tick()
}

func (t *Timer) Skip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// Stop tears the timer down without signaling completion.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked()
}

// Tick recomputes remaining time from the wall clock and fires the completion
// callback when the expiry instant has passed. The periodic ticker calls this
// once per interval; callers may also invoke it directly after a resume.
func (t *Timer) Tick() {
	t.mu.Lock()
	if !t.running || t.paused {
		t.mu.Unlock()
		return
	}
	now := t.now()
	t.remaining = remainingUntil(t.expiresAt, now)
	var done func()
	if t.remaining <= 0 {
		t.resetLocked()
		done = t.onDone
	}
	t.mu.Unlock()

	if done != nil {
		done()
	}
}

func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	if t.paused {
		return t.remaining
	}
	return remainingUntil(t.expiresAt, t.now())
}

func (t *Timer) IsResting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && t.resting
}

func (t *Timer) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running && t.paused
}

func (t *Timer) Snapshot() models.TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := models.TimerSnapshot{
		Running:      t.running,
		IsResting:    t.running && t.resting,
		TotalSeconds: t.total,
		Paused:       t.paused,
	}
	if !t.running {
		return snap
	}
	if t.paused {
		snap.RemainingSeconds = t.remaining
		return snap
	}
	now := t.now()
	snap.RemainingSeconds = remainingUntil(t.expiresAt, now)
	snap.ExpiresAtEpochMs = t.expiresAt.UnixMilli()
	return snap
}

// Restore rebuilds the countdown from a persisted snapshot. A paused snapshot
// resumes paused with its frozen remainder; a running snapshot has the elapsed
// wall-clock time deducted and completes immediately when the expiry already
// passed.
func (t *Timer) Restore(snap models.TimerSnapshot) {
	t.mu.Lock()
	if !snap.Running || snap.TotalSeconds <= 0 {
		t.resetLocked()
		t.mu.Unlock()
		return
	}
	now := t.now()
	t.stopTickLocked()
	t.running = true
	t.resting = snap.IsResting
	t.total = snap.TotalSeconds

	if snap.Paused {
		t.paused = true
		t.remaining = clampSeconds(snap.RemainingSeconds)
		t.expiresAt = time.Time{}
		t.mu.Unlock()
		return
	}

	expiresAt := time.UnixMilli(snap.ExpiresAtEpochMs)
	if snap.ExpiresAtEpochMs == 0 {
		expiresAt = now.Add(time.Duration(clampSeconds(snap.RemainingSeconds)) * time.Second)
	}
	remaining := remainingUntil(expiresAt, now)
	if remaining <= 0 {
		t.resetLocked()
		done := t.onDone
		t.mu.Unlock()
		if done != nil {
			done()
		}
		return
	}
	t.paused = false
	t.remaining = remaining
	t.expiresAt = expiresAt
	t.startTickLocked()
	t.mu.Unlock()
}

func (t *Timer) resetLocked() {
	t.stopTickLocked()
	t.running = false
	t.paused = false
	t.resting = false
	t.total = 0
	t.remaining = 0
	t.expiresAt = time.Time{}
}

func (t *Timer) startTickLocked() {
	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stopTick = stop

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				stale := t.gen != gen
				t.mu.Unlock()
				if stale {
					return
				}
				t.Tick()
			}
		}
	}()
}

func (t *Timer) stopTickLocked() {
	t.gen++
	if t.stopTick != nil {
		close(t.stopTick)
		t.stopTick = nil
	}
}

func remainingUntil(expiresAt, now time.Time) int {
	remaining := int(expiresAt.Sub(now).Round(time.Second) / time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func clampSeconds(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
