package dialog

import (
	"sync"
	"time"

	"github.com/timoshinoleg-eng/habit/internal/domain"
)

type Step string

const (
	StepName         Step = "name"
	StepDescription  Step = "description"
	StepEmoji        Step = "emoji"
	StepFrequency    Step = "frequency"
	StepReminderTime Step = "reminder_time"
)

// stepOrder is the fixed forward order of the add-habit dialogue.
var stepOrder = []Step{StepName, StepDescription, StepEmoji, StepFrequency, StepReminderTime}

// Draft accumulates the habit fields collected so far. Optional members
// stay nil until their step stores a value.
type Draft struct {
	Name         string
	Description  *string
	Emoji        string
	Frequency    domain.Frequency
	CustomDays   *int
	ReminderTime *string
}

// MaxHistory caps the back-stack depth.
const MaxHistory = 10

type Snapshot struct {
	Step  Step
	Draft Draft
	At    time.Time
}

// History is the bounded stack of dialogue snapshots behind the "back"
// button. The entry on top mirrors the current step, so going back needs
// at least two entries.
type History struct {
	entries []Snapshot
}

func (h *History) Push(s Snapshot) {
	h.entries = append(h.entries, s)
	if len(h.entries) > MaxHistory {
		h.entries = h.entries[len(h.entries)-MaxHistory:]
	}
}

// Pop discards the current snapshot and returns the previous one.
// Returns false when there is nothing to go back to.
func (h *History) Pop() (Snapshot, bool) {
	if len(h.entries) < 2 {
		return Snapshot{}, false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], true
}

func (h *History) Len() int { return len(h.entries) }

// Session is the per-user dialogue state. A session is only ever touched
// by the dispatch goroutine holding that user's lock, so it carries no
// mutex of its own.
type Session struct {
	UserID       int64
	Step         Step
	Draft        Draft
	History      History
	LastActivity time.Time
}

// Store keeps at most one session per user. Cross-user access is guarded;
// last write wins.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]*Session)}
}

func (s *Store) Get(userID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Create replaces any existing session for the user.
func (s *Store) Create(userID int64, now time.Time) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		UserID:       userID,
		Step:         StepName,
		LastActivity: now,
	}
	sess.History.Push(Snapshot{Step: StepName, At: now})
	s.sessions[userID] = sess
	return sess
}

func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
