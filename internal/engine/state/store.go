package state

import (
	"errors"
	"time"

	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

var (
	ErrNoExercises      = errors.New("workout has no exercises")
	ErrIndexOutOfRange  = errors.New("exercise or set index out of range")
	ErrSetAlreadyLogged = errors.New("set already completed or skipped")
)

type SetInput struct {
	Reps        *int
	WeightKg    *float64
	DurationSec *int
	Skipped     bool
}

// Store holds one session's mutable progress: the ordered exercise slots, one
// set log per planned set, and the current exercise/set pointers. It performs
// no I/O; persistence and remote pushes happen above it.
type Store struct {
	slots           []models.ExerciseSlot
	logs            [][]models.SetLog
	currentExercise int
	currentSet      int
}

func NewStore(slots []models.ExerciseSlot) (*Store, error) {
	if len(slots) == 0 {
		return nil, ErrNoExercises
	}
	logs := make([][]models.SetLog, len(slots))
	for i, slot := range slots {
		planned := slot.SetsPlanned
		if planned < 1 {
			planned = 1
		}
		entries := make([]models.SetLog, planned)
		for j := range entries {
			entries[j] = models.SetLog{SetIndex: j}
		}
		logs[i] = entries
	}
	return &Store{slots: slots, logs: logs}, nil
}

// Restore rebuilds a store from persisted progress. Indices and log shapes are
// validated so a corrupt record cannot produce an out-of-range store.
func Restore(
	slots []models.ExerciseSlot,
	logs [][]models.SetLog,
	currentExercise int,
	currentSet int,
) (*Store, error) {
	store, err := NewStore(slots)
	if err != nil {
		return nil, err
	}
	if len(logs) != len(store.logs) {
		return nil, ErrIndexOutOfRange
	}
	for i := range logs {
		if len(logs[i]) != len(store.logs[i]) {
			return nil, ErrIndexOutOfRange
		}
		copy(store.logs[i], logs[i])
	}
	if currentExercise < 0 || currentExercise >= len(store.slots) {
		return nil, ErrIndexOutOfRange
	}
	if currentSet < 0 || currentSet >= len(store.logs[currentExercise]) {
		return nil, ErrIndexOutOfRange
	}
	store.currentExercise = currentExercise
	store.currentSet = currentSet
	return store, nil
}

func (s *Store) LogSet(exerciseIndex, setIndex int, input SetInput, at time.Time) error {
	if exerciseIndex < 0 || exerciseIndex >= len(s.logs) {
		return ErrIndexOutOfRange
	}
	if setIndex < 0 || setIndex >= len(s.logs[exerciseIndex]) {
		return ErrIndexOutOfRange
	}
	entry := &s.logs[exerciseIndex][setIndex]
	if entry.Resolved() {
		return ErrSetAlreadyLogged
	}

	completedAt := at
	entry.RepsCompleted = input.Reps
	entry.WeightKg = input.WeightKg
	entry.DurationSec = input.DurationSec
	entry.Completed = !input.Skipped
	entry.Skipped = input.Skipped
	entry.CompletedAt = &completedAt
	return nil
}

// Advance moves the pointers one planned set forward. It reports true when the
// current position is already the last set of the last exercise; the pointers
// are left unchanged in that case.
func (s *Store) Advance() bool {
	if s.currentSet < len(s.logs[s.currentExercise])-1 {
		s.currentSet++
		return false
	}
	if s.currentExercise < len(s.slots)-1 {
		s.currentExercise++
		s.currentSet = 0
		return false
	}
	return true
}

// JumpTo relocates the exercise pointer. The set pointer lands on the first
// unresolved set of the target exercise, or 0 when every set is resolved.
func (s *Store) JumpTo(exerciseIndex int) error {
	if exerciseIndex < 0 || exerciseIndex >= len(s.slots) {
		return ErrIndexOutOfRange
	}
	s.currentExercise = exerciseIndex
	s.currentSet = s.firstUnresolvedSet(exerciseIndex)
	return nil
}

// ApplyRemoteLogs folds set logs pulled from the system of record into the
// freshly initialized log arrays, then repositions the pointers immediately
// after the furthest resolved set. Entries that do not match a known exercise
// or planned set are dropped.
func (s *Store) ApplyRemoteLogs(entries []models.SetLogInput) {
	indexByExercise := make(map[string]int, len(s.slots))
	for i, slot := range s.slots {
		indexByExercise[slot.ExerciseID] = i
	}

	for _, entry := range entries {
		exerciseIndex, ok := indexByExercise[entry.ExerciseID]
		if !ok {
			continue
		}
		setIndex := entry.SetNumber - 1
		if setIndex < 0 || setIndex >= len(s.logs[exerciseIndex]) {
			continue
		}
		log := &s.logs[exerciseIndex][setIndex]
		log.RepsCompleted = entry.RepsCompleted
		log.WeightKg = entry.WeightKg
		log.DurationSec = entry.DurationSec
		log.Completed = !entry.WasSkipped
		log.Skipped = entry.WasSkipped
	}

	s.currentExercise = 0
	s.currentSet = 0
	lastExercise, lastSet := -1, -1
	for i := range s.logs {
		for j := range s.logs[i] {
			if s.logs[i][j].Resolved() {
				lastExercise, lastSet = i, j
			}
		}
	}
	if lastExercise < 0 {
		return
	}
	s.currentExercise = lastExercise
	s.currentSet = lastSet
	s.Advance()
}

func (s *Store) firstUnresolvedSet(exerciseIndex int) int {
	for j := range s.logs[exerciseIndex] {
		if !s.logs[exerciseIndex][j].Resolved() {
			return j
		}
	}
	return 0
}

func (s *Store) CurrentExerciseIndex() int { return s.currentExercise }

func (s *Store) CurrentSetIndex() int { return s.currentSet }

func (s *Store) Slots() []models.ExerciseSlot { return s.slots }

func (s *Store) CurrentSlot() models.ExerciseSlot { return s.slots[s.currentExercise] }

func (s *Store) Logs() [][]models.SetLog {
	out := make([][]models.SetLog, len(s.logs))
	for i := range s.logs {
		out[i] = append([]models.SetLog(nil), s.logs[i]...)
	}
	return out
}

func (s *Store) UnresolvedSetCount() int {
	count := 0
	for i := range s.logs {
		for j := range s.logs[i] {
			if !s.logs[i][j].Resolved() {
				count++
			}
		}
	}
	return count
}
