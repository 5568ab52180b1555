// Package schedule holds the availability schedule model and the conversions
// between screen state and the store's wire format.
package schedule

import (
	"medsched/internal/dates"
	"medsched/internal/slots"
)

// DurationOption is a reference-data appointment duration fetched from the
// store. Immutable for the lifetime of a screen.
type DurationOption struct {
	ID          int64  `json:"id"`
	Minutes     int    `json:"durationMinutes"`
	DisplayName string `json:"displayName"`
}

// Definition is the in-memory working copy of an availability schedule while
// it is being created or edited. From/To are the declared selection bounds;
// Unavailable thins the day list without narrowing the declared range.
type Definition struct {
	DoctorID    string
	From        dates.Date
	To          dates.Date
	Start       slots.TimeOfDay
	End         slots.TimeOfDay
	Duration    DurationOption
	Unavailable []dates.Date
	Fee         *float64
}

// ActiveDates returns the declared range minus the unavailable dates,
// ascending.
func (d Definition) ActiveDates() []dates.Date {
	skip := make(map[dates.Date]bool, len(d.Unavailable))
	for _, u := range d.Unavailable {
		skip[u] = true
	}
	var out []dates.Date
	for _, day := range dates.Range(d.From, d.To) {
		if !skip[day] {
			out = append(out, day)
		}
	}
	return out
}

// Persisted is the wire shape the store returns. Dates arrive as
// [year, month, day] tuples with a 1-indexed month; request bodies use
// "YYYY-MM-DD" strings instead (see CreatePayload). The asymmetry is the
// store's contract, decoded only through the dates package.
type Persisted struct {
	ID               string         `json:"id"`
	DoctorID         string         `json:"doctorId"`
	FromDate         []int          `json:"fromDate"`
	ToDate           []int          `json:"toDate"`
	StartTime        string         `json:"startTime"`
	EndTime          string         `json:"endTime"`
	Duration         DurationOption `json:"appointmentDuration"`
	UnavailableDates [][]int        `json:"unavailableDates"`
	Fee              *float64       `json:"fee,omitempty"`
	CreatedAt        string         `json:"createdAt"`
}

// DaySlots is one active day's generated slots in wire form.
type DaySlots struct {
	Date  string   `json:"date"`  // "YYYY-MM-DD"
	Slots []string `json:"slots"` // "HH:MM", chronological
}

// CreatePayload is the request body for schedule create and update calls.
type CreatePayload struct {
	DoctorID         string     `json:"doctorId"`
	FromDate         string     `json:"fromDate"`
	ToDate           string     `json:"toDate"`
	StartTime        string     `json:"startTime"`
	EndTime          string     `json:"endTime"`
	DurationID       int64      `json:"appointmentDurationId"`
	UnavailableDates []string   `json:"unavailableDates"`
	DaySlots         []DaySlots `json:"daySlots"`
	Fee              *float64   `json:"fee,omitempty"`
}
