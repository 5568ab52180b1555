package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"medsched/internal/dates"
	"medsched/internal/metrics"
	"medsched/internal/schedule"
	"medsched/internal/slots"
	"medsched/internal/storeapi"
)

// Store is the slice of the schedule store the flow needs.
type Store interface {
	ListDurationOptions(ctx context.Context) ([]schedule.DurationOption, error)
	CreateSchedule(ctx context.Context, payload schedule.CreatePayload) (*schedule.Persisted, error)
	UpdateSchedule(ctx context.Context, id string, payload schedule.CreatePayload) (*schedule.Persisted, error)
	ListSchedules(ctx context.Context, doctorID string, filter storeapi.ScheduleFilter) ([]schedule.Persisted, error)
}

// DraftStore persists working copies between visits. Optional.
type DraftStore interface {
	SaveDraft(ctx context.Context, snap Snapshot) error
	DeleteDraft(ctx context.Context, doctorID string) error
}

// ErrSaveInFlight is returned when a submit arrives while a previous one for
// the same session is still pending.
var ErrSaveInFlight = errors.New("a save for this schedule is already in progress")

// ErrScheduleNotFound is returned by BeginEdit when the schedule id is not
// among the doctor's persisted schedules.
var ErrScheduleNotFound = errors.New("schedule not found")

// ConflictNotice is the specific, user-visible message for an overlap
// rejection; generic failures never reuse it.
const ConflictNotice = "This doctor already has a schedule overlapping the chosen dates. Adjust the range and try again."

// Controller wires the engine to the store for the create and edit flows.
type Controller struct {
	store    Store
	drafts   DraftStore
	sessions *SessionStore
	logger   *zerolog.Logger

	// durations is reloaded on demand while session handlers read it.
	mu        sync.RWMutex
	durations map[int64]schedule.DurationOption
}

// NewController builds a controller. drafts may be nil to disable autosave.
func NewController(store Store, drafts DraftStore, sessions *SessionStore, logger *zerolog.Logger) *Controller {
	return &Controller{
		store:     store,
		drafts:    drafts,
		sessions:  sessions,
		durations: make(map[int64]schedule.DurationOption),
		logger:    logger,
	}
}

// LoadDurations fetches the duration lookup once per screen lifetime.
func (c *Controller) LoadDurations(ctx context.Context) ([]schedule.DurationOption, error) {
	opts, err := c.store.ListDurationOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load duration options: %w", err)
	}

	lookup := make(map[int64]schedule.DurationOption, len(opts))
	for _, opt := range opts {
		lookup[opt.ID] = opt
	}

	// Publish the fully built map; readers never see a partial fill.
	c.mu.Lock()
	c.durations = lookup
	c.mu.Unlock()
	return opts, nil
}

func (c *Controller) duration(id int64) (schedule.DurationOption, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.durations[id]
	return d, ok
}

// Session returns a live session by id, or nil when unknown or expired.
func (c *Controller) Session(id string) *Session {
	return c.sessions.Get(id)
}

// StartCreate opens a fresh create-mode session.
func (c *Controller) StartCreate(doctorID string) *Session {
	s := NewSession(doctorID)
	c.sessions.Put(s)
	return s
}

// BeginEdit loads a persisted schedule and opens an edit-mode session with
// the selection, times, duration and fee rehydrated.
func (c *Controller) BeginEdit(ctx context.Context, doctorID, scheduleID string) (*Session, error) {
	list, err := c.store.ListSchedules(ctx, doctorID, storeapi.ScheduleFilter{})
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}

	for _, p := range list {
		if p.ID != scheduleID {
			continue
		}
		state, err := schedule.Hydrate(p)
		if err != nil {
			return nil, fmt.Errorf("hydrate schedule %s: %w", scheduleID, err)
		}
		s := FromHydrated(doctorID, scheduleID, state)
		c.sessions.Put(s)
		return s, nil
	}
	return nil, ErrScheduleNotFound
}

// Click forwards one calendar click to the session's selector.
func (c *Controller) Click(ctx context.Context, s *Session, d dates.Date) {
	s.mu.Lock()
	s.Selector.Click(d)
	s.Notice = ""
	s.touch()
	s.mu.Unlock()
	c.autosave(ctx, s)
}

// SetTimes records the daily window.
func (c *Controller) SetTimes(ctx context.Context, s *Session, start, end slots.TimeOfDay) {
	s.mu.Lock()
	s.Start, s.End, s.HasTimes = start, end, true
	s.touch()
	s.mu.Unlock()
	c.autosave(ctx, s)
}

// SetDuration selects a duration by lookup id.
func (c *Controller) SetDuration(ctx context.Context, s *Session, durationID int64) error {
	if _, ok := c.duration(durationID); !ok {
		return fmt.Errorf("unknown duration id %d", durationID)
	}
	s.mu.Lock()
	s.DurationID = durationID
	s.touch()
	s.mu.Unlock()
	c.autosave(ctx, s)
	return nil
}

// SetFee records an optional flat fee. Passing nil clears it.
func (c *Controller) SetFee(ctx context.Context, s *Session, fee *float64) {
	s.mu.Lock()
	s.Fee = fee
	s.touch()
	s.mu.Unlock()
	c.autosave(ctx, s)
}

// Preview regenerates the slot preview for the session's current state and
// moves the session to the preview step. Validation failures keep it on the
// range step.
func (c *Controller) Preview(s *Session) ([]slots.DayGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration, ok := c.duration(s.DurationID)
	if !ok {
		return nil, schedule.ErrNoDuration
	}
	if !s.HasTimes || !s.Start.Before(s.End) {
		return nil, schedule.ErrInvalidWindow
	}
	active := s.Selector.ActiveDates()
	if len(active) == 0 {
		return nil, schedule.ErrNoActiveDates
	}

	groups := slots.Generate(active, s.Start, s.End, duration.Minutes)
	s.Step = StepPreview
	s.touch()
	metrics.IncPreview()
	return groups, nil
}

// BackToRange returns the session to the editable step, keeping all data.
func (c *Controller) BackToRange(s *Session) {
	s.mu.Lock()
	s.Step = StepRange
	s.touch()
	s.mu.Unlock()
}

// Submit validates, serializes and persists the session. The session's data
// survives every failure mode:
//
//   - validation errors are reported before any network call;
//   - an overlap rejection returns the session to the range step with a
//     specific notice;
//   - any other store failure leaves the session untouched with a generic
//     notice, to be retried by a fresh user action.
func (c *Controller) Submit(ctx context.Context, s *Session) (*schedule.Persisted, error) {
	if !s.beginSave() {
		return nil, ErrSaveInFlight
	}
	defer s.endSave()

	s.mu.Lock()
	duration, ok := c.duration(s.DurationID)
	var durationPtr *schedule.DurationOption
	if ok {
		durationPtr = &duration
	}
	payload, err := schedule.Serialize(s.DoctorID, s.Selector, s.Start, s.End, durationPtr, s.Fee)
	if err != nil {
		s.Notice = err.Error()
		s.mu.Unlock()
		metrics.IncSubmission("validation_error")
		return nil, err
	}
	scheduleID := s.ScheduleID
	s.mu.Unlock()

	var persisted *schedule.Persisted
	if scheduleID != "" {
		persisted, err = c.store.UpdateSchedule(ctx, scheduleID, payload)
	} else {
		persisted, err = c.store.CreateSchedule(ctx, payload)
	}

	if err != nil {
		if errors.Is(err, storeapi.ErrScheduleConflict) {
			c.handleConflict(s)
			return nil, err
		}
		s.mu.Lock()
		s.Notice = "Saving failed. Please try again."
		s.mu.Unlock()
		metrics.IncSubmission("error")
		c.logger.Error().Err(err).Str("doctor_id", s.DoctorID).Msg("schedule save failed")
		return nil, err
	}

	s.mu.Lock()
	s.Step = StepDone
	s.Notice = ""
	s.touch()
	s.mu.Unlock()

	if scheduleID != "" {
		metrics.IncSubmission("updated")
	} else {
		metrics.IncSubmission("created")
	}

	if c.drafts != nil {
		if err := c.drafts.DeleteDraft(ctx, s.DoctorID); err != nil {
			c.logger.Warn().Err(err).Str("doctor_id", s.DoctorID).Msg("draft cleanup failed")
		}
	}
	return persisted, nil
}

// handleConflict returns the session to the editable range step without
// discarding the entered range, times, duration or fee.
func (c *Controller) handleConflict(s *Session) {
	s.mu.Lock()
	s.Step = StepRange
	s.Notice = ConflictNotice
	s.touch()
	s.mu.Unlock()
	metrics.IncSubmission("conflict")
	c.logger.Info().Str("doctor_id", s.DoctorID).Msg("schedule rejected: overlapping range")
}

func (c *Controller) autosave(ctx context.Context, s *Session) {
	if c.drafts == nil {
		return
	}
	if err := c.drafts.SaveDraft(ctx, s.Snapshot()); err != nil {
		c.logger.Warn().Err(err).Str("doctor_id", s.DoctorID).Msg("draft autosave failed")
	}
}
