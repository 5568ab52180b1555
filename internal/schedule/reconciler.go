package schedule

import (
	"errors"
	"fmt"

	"medsched/internal/dates"
	"medsched/internal/selection"
	"medsched/internal/slots"
)

// Validation errors caught before any network call. The save action is a
// no-op while any of these hold.
var (
	ErrNoActiveDates = errors.New("schedule has no active dates")
	ErrNoDuration    = errors.New("no appointment duration selected")
	ErrNegativeFee   = errors.New("fee must not be negative")
	ErrInvalidWindow = errors.New("start time must be before end time")
)

// ErrMalformedWireDate marks a persisted schedule whose date fields cannot be
// decoded. Callers must treat the schedule as unknown rather than guess.
var ErrMalformedWireDate = errors.New("malformed wire date")

// HydratedState is the screen state rebuilt from a persisted schedule for the
// edit path.
type HydratedState struct {
	Selector   *selection.Selector
	Start      slots.TimeOfDay
	End        slots.TimeOfDay
	DurationID int64
	Fee        *float64
}

// Hydrate rebuilds editable screen state from the store's wire shape: the
// full inclusive date list becomes the selection, each unavailable date joins
// the exception set, and the chosen duration comes from the persisted lookup.
func Hydrate(p Persisted) (HydratedState, error) {
	from, ok := dates.FromWire(p.FromDate)
	if !ok {
		return HydratedState{}, fmt.Errorf("%w: fromDate %v", ErrMalformedWireDate, p.FromDate)
	}
	to, ok := dates.FromWire(p.ToDate)
	if !ok {
		return HydratedState{}, fmt.Errorf("%w: toDate %v", ErrMalformedWireDate, p.ToDate)
	}

	excluded := make([]dates.Date, 0, len(p.UnavailableDates))
	for _, tuple := range p.UnavailableDates {
		d, ok := dates.FromWire(tuple)
		if !ok {
			return HydratedState{}, fmt.Errorf("%w: unavailable date %v", ErrMalformedWireDate, tuple)
		}
		excluded = append(excluded, d)
	}

	start, err := slots.ParseTimeOfDay(p.StartTime)
	if err != nil {
		return HydratedState{}, fmt.Errorf("start time: %w", err)
	}
	end, err := slots.ParseTimeOfDay(p.EndTime)
	if err != nil {
		return HydratedState{}, fmt.Errorf("end time: %w", err)
	}

	return HydratedState{
		Selector:   selection.Restore(from, to, excluded),
		Start:      start,
		End:        end,
		DurationID: p.Duration.ID,
		Fee:        p.Fee,
	}, nil
}

// Serialize converts screen state into the store's create/update payload.
//
// The declared fromDate/toDate are the selection bounds, not the first and
// last active date: exceptions thin the day list but never redefine the
// declared range. The fee is omitted entirely when absent, not zeroed.
func Serialize(doctorID string, sel *selection.Selector, start, end slots.TimeOfDay, duration *DurationOption, fee *float64) (CreatePayload, error) {
	if duration == nil || duration.ID == 0 {
		return CreatePayload{}, ErrNoDuration
	}
	if !start.Before(end) {
		return CreatePayload{}, ErrInvalidWindow
	}
	if fee != nil && *fee < 0 {
		return CreatePayload{}, ErrNegativeFee
	}

	active := sel.ActiveDates()
	if len(active) == 0 {
		return CreatePayload{}, ErrNoActiveDates
	}

	from, to := sel.Bounds()

	excluded := sel.ExcludedDates()
	unavailable := make([]string, 0, len(excluded))
	for _, d := range excluded {
		unavailable = append(unavailable, d.String())
	}

	groups := slots.Generate(active, start, end, duration.Minutes)
	daySlots := make([]DaySlots, 0, len(groups))
	for _, g := range groups {
		times := make([]string, 0, len(g.Slots))
		for _, t := range g.Slots {
			times = append(times, t.String())
		}
		daySlots = append(daySlots, DaySlots{Date: g.Date.String(), Slots: times})
	}

	return CreatePayload{
		DoctorID:         doctorID,
		FromDate:         from.String(),
		ToDate:           to.String(),
		StartTime:        start.String(),
		EndTime:          end.String(),
		DurationID:       duration.ID,
		UnavailableDates: unavailable,
		DaySlots:         daySlots,
		Fee:              fee,
	}, nil
}

// IsValidationError reports whether err is one of the pre-submit validation
// failures.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoActiveDates) ||
		errors.Is(err, ErrNoDuration) ||
		errors.Is(err, ErrNegativeFee) ||
		errors.Is(err, ErrInvalidWindow)
}
