package slots

import (
	"reflect"
	"testing"
	"time"

	"medsched/internal/dates"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tod
}

func TestGenerateSlotCounts(t *testing.T) {
	day := []dates.Date{dates.New(2025, 1, 6)}

	tests := []struct {
		name     string
		start    string
		end      string
		duration int
		count    int
		first    string
		last     string
	}{
		{"30 minute slots", "09:00", "17:00", 30, 16, "09:00", "16:30"},
		// 45 does not divide the 8h window; the 11th slot starts 15:45 and
		// runs to 16:30, and no clipped 12th slot appears.
		{"45 minute slots", "09:00", "17:00", 45, 11, "09:00", "15:45"},
		{"60 minute slots", "09:00", "12:00", 60, 3, "09:00", "11:00"},
		{"duration longer than window", "09:00", "09:30", 60, 1, "09:00", "09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := Generate(day, mustTime(t, tt.start), mustTime(t, tt.end), tt.duration)
			if len(groups) != 1 {
				t.Fatalf("expected 1 group, got %d", len(groups))
			}
			got := groups[0].Slots
			if len(got) != tt.count {
				t.Fatalf("expected %d slots, got %d (%v)", tt.count, len(got), got)
			}
			if got[0].String() != tt.first {
				t.Errorf("first slot: expected %s, got %s", tt.first, got[0])
			}
			if got[len(got)-1].String() != tt.last {
				t.Errorf("last slot: expected %s, got %s", tt.last, got[len(got)-1])
			}
		})
	}
}

func TestGenerateOneGroupPerActiveDate(t *testing.T) {
	active := []dates.Date{
		dates.New(2025, 1, 6), // Monday
		dates.New(2025, 1, 7),
		dates.New(2025, 1, 9), // Jan 8 excluded upstream
	}

	groups := Generate(active, mustTime(t, "10:00"), mustTime(t, "12:00"), 30)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}

	wantDays := []time.Weekday{time.Monday, time.Tuesday, time.Thursday}
	for i, g := range groups {
		if g.Date != active[i] {
			t.Errorf("group %d: expected date %v, got %v", i, active[i], g.Date)
		}
		if g.DayOfWeek != wantDays[i] {
			t.Errorf("group %d: expected %s, got %s", i, wantDays[i], g.DayOfWeek)
		}
		if len(g.Slots) != 4 {
			t.Errorf("group %d: expected 4 slots, got %d", i, len(g.Slots))
		}
	}

	if SlotCount(groups) != 12 {
		t.Errorf("expected 12 total slots, got %d", SlotCount(groups))
	}
}

func TestGenerateIdempotent(t *testing.T) {
	active := dates.Range(dates.New(2025, 2, 1), dates.New(2025, 2, 7))
	start, end := mustTime(t, "08:30"), mustTime(t, "16:15")

	first := Generate(active, start, end, 45)
	second := Generate(active, start, end, 45)

	if !reflect.DeepEqual(first, second) {
		t.Error("regeneration with identical inputs produced different output")
	}
}

func TestGenerateDegenerateInputs(t *testing.T) {
	day := []dates.Date{dates.New(2025, 1, 6)}

	tests := []struct {
		name     string
		start    string
		end      string
		duration int
	}{
		{"zero duration", "09:00", "17:00", 0},
		{"negative duration", "09:00", "17:00", -15},
		{"start equals end", "09:00", "09:00", 30},
		{"start after end", "17:00", "09:00", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := Generate(day, mustTime(t, tt.start), mustTime(t, tt.end), tt.duration)
			if groups != nil {
				t.Errorf("expected no groups, got %v", groups)
			}
		})
	}
}

func TestGenerateNoActiveDates(t *testing.T) {
	groups := Generate(nil, mustTime(t, "09:00"), mustTime(t, "17:00"), 30)
	if len(groups) != 0 {
		t.Errorf("expected empty output, got %d groups", len(groups))
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{"09:00", TimeOfDay{9, 0}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{"0:05", TimeOfDay{0, 5}, false},
		{"24:00", TimeOfDay{}, true},
		{"09:60", TimeOfDay{}, true},
		{"-1:00", TimeOfDay{}, true},
		{"0900", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
		{"aa:bb", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestTimeOfDayRoundTrip(t *testing.T) {
	for _, s := range []string{"00:00", "09:05", "12:30", "23:45"} {
		tod := mustTime(t, s)
		if tod.String() != s {
			t.Errorf("round trip %q: got %q", s, tod.String())
		}
		if FromMinutes(tod.Minutes()) != tod {
			t.Errorf("minutes round trip failed for %q", s)
		}
	}
}
