// Package flow drives the availability create/edit dialog: one session per
// screen, an explicit step marker, and the conflict handling that returns the
// user to an editable state without losing entered data.
package flow

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"medsched/internal/dates"
	"medsched/internal/schedule"
	"medsched/internal/selection"
	"medsched/internal/slots"
)

// Step marks which screen step a session is on.
type Step string

const (
	// StepRange is the editable range/time/duration step.
	StepRange Step = "range"
	// StepPreview shows the generated slot preview before submit.
	StepPreview Step = "preview"
	// StepDone means the schedule was persisted and the session is spent.
	StepDone Step = "done"
)

// Session is the working copy of one schedule create or edit. All selection
// state lives here as explicit values; the create and edit paths share the
// same engine functions through it.
type Session struct {
	ID         string
	DoctorID   string
	ScheduleID string // set in edit mode
	Step       Step

	Selector   *selection.Selector
	Start      slots.TimeOfDay
	End        slots.TimeOfDay
	HasTimes   bool
	DurationID int64
	Fee        *float64

	// Notice is the user-visible message for the current step, set by the
	// conflict handler or validation.
	Notice string

	saving    bool
	StartedAt time.Time
	UpdatedAt time.Time
	mu        sync.Mutex
}

// NewSession starts a fresh create-mode session for a doctor.
func NewSession(doctorID string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		DoctorID:  doctorID,
		Step:      StepRange,
		Selector:  selection.New(),
		StartedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) touch() { s.UpdatedAt = time.Now() }

// IsExpired reports whether the session has been idle past timeout.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// beginSave marks a submission in flight; a second submit while one is
// pending is refused.
func (s *Session) beginSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return false
	}
	s.saving = true
	return true
}

func (s *Session) endSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
}

// Snapshot is the serializable form of a session, used for draft autosave and
// as the consistent read other packages render from. Phase and ActiveCount are
// derived from the selection and ignored on restore.
type Snapshot struct {
	ID          string    `json:"id"`
	DoctorID    string    `json:"doctorId"`
	ScheduleID  string    `json:"scheduleId,omitempty"`
	Step        Step      `json:"step"`
	Phase       string    `json:"phase,omitempty"`
	RangeStart  string    `json:"rangeStart,omitempty"`
	RangeEnd    string    `json:"rangeEnd,omitempty"`
	Excluded    []string  `json:"excluded,omitempty"`
	ActiveCount int       `json:"activeCount,omitempty"`
	StartTime   string    `json:"startTime,omitempty"`
	EndTime     string    `json:"endTime,omitempty"`
	DurationID  int64     `json:"durationId,omitempty"`
	Fee         *float64  `json:"fee,omitempty"`
	Notice      string    `json:"notice,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Snapshot captures the session for persistence.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.ID,
		DoctorID:    s.DoctorID,
		ScheduleID:  s.ScheduleID,
		Step:        s.Step,
		Phase:       string(s.Selector.Phase()),
		ActiveCount: s.Selector.ActiveCount(),
		DurationID:  s.DurationID,
		Fee:         s.Fee,
		Notice:      s.Notice,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.HasTimes {
		snap.StartTime = s.Start.String()
		snap.EndTime = s.End.String()
	}
	if s.Selector.Phase() != selection.PhaseIdle {
		start, end := s.Selector.Bounds()
		snap.RangeStart = start.String()
		if s.Selector.Phase() == selection.PhaseRangeClosed {
			snap.RangeEnd = end.String()
		}
		for _, d := range s.Selector.ExcludedDates() {
			snap.Excluded = append(snap.Excluded, d.String())
		}
	}
	return snap
}

// RestoreSession rebuilds a session from a snapshot. Malformed date strings
// make the snapshot unusable and are reported, not guessed around.
func RestoreSession(snap Snapshot) (*Session, bool) {
	s := &Session{
		ID:         snap.ID,
		DoctorID:   snap.DoctorID,
		ScheduleID: snap.ScheduleID,
		Step:       snap.Step,
		Selector:   selection.New(),
		DurationID: snap.DurationID,
		Fee:        snap.Fee,
		Notice:     snap.Notice,
		StartedAt:  snap.UpdatedAt,
		UpdatedAt:  snap.UpdatedAt,
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Step == "" {
		s.Step = StepRange
	}

	if snap.RangeStart != "" {
		start, ok := dates.Parse(snap.RangeStart)
		if !ok {
			return nil, false
		}
		if snap.RangeEnd != "" {
			end, ok := dates.Parse(snap.RangeEnd)
			if !ok {
				return nil, false
			}
			excluded := make([]dates.Date, 0, len(snap.Excluded))
			for _, e := range snap.Excluded {
				d, ok := dates.Parse(e)
				if !ok {
					return nil, false
				}
				excluded = append(excluded, d)
			}
			s.Selector = selection.Restore(start, end, excluded)
		} else {
			s.Selector.Click(start)
		}
	}

	if snap.StartTime != "" && snap.EndTime != "" {
		start, err := slots.ParseTimeOfDay(snap.StartTime)
		if err != nil {
			return nil, false
		}
		end, err := slots.ParseTimeOfDay(snap.EndTime)
		if err != nil {
			return nil, false
		}
		s.Start, s.End, s.HasTimes = start, end, true
	}

	return s, true
}

// FromHydrated builds an edit-mode session from a persisted schedule's
// rehydrated state.
func FromHydrated(doctorID, scheduleID string, state schedule.HydratedState) *Session {
	s := NewSession(doctorID)
	s.ScheduleID = scheduleID
	s.Selector = state.Selector
	s.Start = state.Start
	s.End = state.End
	s.HasTimes = true
	s.DurationID = state.DurationID
	s.Fee = state.Fee
	return s
}

// SessionStore keeps live sessions keyed by session id.
type SessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a store with the given idle timeout.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
	}
}

// Get returns a live session or nil.
func (ss *SessionStore) Get(id string) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s, ok := ss.sessions[id]
	if !ok || s.IsExpired(ss.timeout) {
		return nil
	}
	return s
}

// Put registers a session.
func (ss *SessionStore) Put(s *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[s.ID] = s
}

// Delete removes a session.
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
}

// Cleanup drops expired sessions and returns how many were removed.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, s := range ss.sessions {
		if s.IsExpired(ss.timeout) {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}
