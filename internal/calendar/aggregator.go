// Package calendar projects schedule-derived events onto month and day views.
// Views are recomputed from the underlying events on every navigation; nothing
// here caches prior grids.
package calendar

import (
	"sort"
	"time"

	"medsched/internal/dates"
	"medsched/internal/schedule"
	"medsched/internal/slots"
)

// Event is one bookable slot positioned on the calendar.
type Event struct {
	ID         string
	Date       dates.Date
	Start      slots.TimeOfDay
	End        slots.TimeOfDay
	Color      string
	DoctorID   string
	ScheduleID string
}

// DayAggregate collapses every event of one calendar day into a single badge:
// the member list sorted chronologically, the earliest member's color and the
// member count.
type DayAggregate struct {
	Date   dates.Date
	Count  int
	Color  string
	Events []Event
}

// MonthCell is one cell of the month grid. Day is 0 for the blank cells
// padding the first and last week.
type MonthCell struct {
	Day       int
	Aggregate *DayAggregate
}

// MonthGrid is a Monday-first month layout, one row per week.
type MonthGrid struct {
	Year  int
	Month int
	Weeks [][7]MonthCell
}

// MonthView groups events by civil date and lays the aggregates out on a
// Monday-first grid for the given month. Events outside the month are ignored.
func MonthView(events []Event, year, month int) MonthGrid {
	byDay := make(map[int][]Event)
	for _, ev := range events {
		if ev.Date.Year != year || ev.Date.Month != month {
			continue
		}
		byDay[ev.Date.Day] = append(byDay[ev.Date.Day], ev)
	}

	aggregates := make(map[int]*DayAggregate, len(byDay))
	for day, evs := range byDay {
		sortEvents(evs)
		aggregates[day] = &DayAggregate{
			Date:   dates.New(year, month, day),
			Count:  len(evs),
			Color:  evs[0].Color,
			Events: evs,
		}
	}

	grid := MonthGrid{Year: year, Month: month}

	firstDay := dates.New(year, month, 1)
	offset := int(firstDay.Weekday()) // Sunday = 0
	if offset == 0 {
		offset = 7 // Monday-first grid
	}
	offset-- // leading blanks before day 1

	total := daysIn(time.Month(month), year)
	day := 1
	for day <= total {
		var week [7]MonthCell
		for col := 0; col < 7; col++ {
			if len(grid.Weeks) == 0 && col < offset {
				continue
			}
			if day > total {
				break
			}
			week[col] = MonthCell{Day: day, Aggregate: aggregates[day]}
			day++
		}
		grid.Weeks = append(grid.Weeks, week)
	}
	return grid
}

// DayCell is one fixed grid step of the day view. An empty Events list is a
// neutral placeholder, never an error.
type DayCell struct {
	Time   slots.TimeOfDay
	Events []Event
}

// DayView flattens the given date's events onto a fixed time grid running
// from gridStart up to gridEnd in stepMinutes increments. An event lands in
// the cell its start time falls into; cells stay chronological.
func DayView(events []Event, date dates.Date, gridStart, gridEnd slots.TimeOfDay, stepMinutes int) []DayCell {
	if stepMinutes <= 0 || !gridStart.Before(gridEnd) {
		return nil
	}

	var dayEvents []Event
	for _, ev := range events {
		if ev.Date == date {
			dayEvents = append(dayEvents, ev)
		}
	}
	sortEvents(dayEvents)

	startMin := gridStart.Minutes()
	endMin := gridEnd.Minutes()

	cells := make([]DayCell, 0, (endMin-startMin)/stepMinutes+1)
	for cursor := startMin; cursor < endMin; cursor += stepMinutes {
		cell := DayCell{Time: slots.FromMinutes(cursor)}
		for _, ev := range dayEvents {
			m := ev.Start.Minutes()
			if m >= cursor && m < cursor+stepMinutes {
				cell.Events = append(cell.Events, ev)
			}
		}
		cells = append(cells, cell)
	}
	return cells
}

// FromPersisted expands a persisted schedule into one calendar event per
// generated slot. A schedule whose wire dates cannot be decoded is skipped
// entirely rather than rendered on a guessed day.
func FromPersisted(p schedule.Persisted, color string) ([]Event, error) {
	state, err := schedule.Hydrate(p)
	if err != nil {
		return nil, err
	}

	minutes := p.Duration.Minutes
	groups := slots.Generate(state.Selector.ActiveDates(), state.Start, state.End, minutes)

	var events []Event
	for _, g := range groups {
		for _, s := range g.Slots {
			events = append(events, Event{
				ID:         p.ID + "/" + g.Date.String() + "T" + s.String(),
				Date:       g.Date,
				Start:      s,
				End:        slots.FromMinutes(s.Minutes() + minutes),
				Color:      color,
				DoctorID:   p.DoctorID,
				ScheduleID: p.ID,
			})
		}
	}
	return events, nil
}

func sortEvents(evs []Event) {
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].Date != evs[j].Date {
			return evs[i].Date.Before(evs[j].Date)
		}
		if evs[i].Start != evs[j].Start {
			return evs[i].Start.Before(evs[j].Start)
		}
		return evs[i].ID < evs[j].ID
	})
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
