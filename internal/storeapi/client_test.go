package storeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"medsched/internal/schedule"
)

func TestListDurationOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/appointment-durations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "secret" {
			t.Errorf("missing api key header, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"durations": []schedule.DurationOption{
				{ID: 1, Minutes: 15, DisplayName: "15 minutes"},
				{ID: 2, Minutes: 30, DisplayName: "30 minutes"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	opts, err := c.ListDurationOptions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opts) != 2 || opts[1].Minutes != 30 {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestCreateScheduleDecodesWireTuples(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload schedule.CreatePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		// Request dates are strings; response dates are 1-indexed tuples.
		if payload.FromDate != "2025-01-01" {
			t.Errorf("request fromDate: %s", payload.FromDate)
		}
		_ = json.NewEncoder(w).Encode(schedule.Persisted{
			ID:        "sched-9",
			DoctorID:  payload.DoctorID,
			FromDate:  []int{2025, 1, 1},
			ToDate:    []int{2025, 1, 10},
			StartTime: payload.StartTime,
			EndTime:   payload.EndTime,
			Duration:  schedule.DurationOption{ID: payload.DurationID, Minutes: 30},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	persisted, err := c.CreateSchedule(context.Background(), schedule.CreatePayload{
		DoctorID:   "doc-7",
		FromDate:   "2025-01-01",
		ToDate:     "2025-01-10",
		StartTime:  "09:00",
		EndTime:    "17:00",
		DurationID: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if persisted.ID != "sched-9" {
		t.Errorf("unexpected id %s", persisted.ID)
	}
	if len(persisted.FromDate) != 3 || persisted.FromDate[1] != 1 {
		t.Errorf("wire tuple lost: %v", persisted.FromDate)
	}
}

func TestCreateScheduleConflict(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"409 with message", http.StatusConflict, `{"error":"doctor already has a schedule in this range"}`},
		{"409 empty body", http.StatusConflict, ``},
		{"400 with overlap message", http.StatusBadRequest, `{"error":"schedule overlaps existing range"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "")
			_, err := c.CreateSchedule(context.Background(), schedule.CreatePayload{})
			if !errors.Is(err, ErrScheduleConflict) {
				t.Errorf("expected ErrScheduleConflict, got %v", err)
			}
		})
	}
}

func TestGenericErrorIsNotConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database unavailable"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.CreateSchedule(context.Background(), schedule.CreatePayload{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrScheduleConflict) {
		t.Error("generic failure must not be classified as conflict")
	}
}

func TestListSchedulesFilters(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/api/v1/doctors/doc-7/schedules" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"schedules": []schedule.Persisted{{ID: "s1"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")

	t.Run("no filter", func(t *testing.T) {
		list, err := c.ListSchedules(context.Background(), "doc-7", ScheduleFilter{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(list) != 1 || gotQuery != "" {
			t.Errorf("list=%v query=%q", list, gotQuery)
		}
	})

	t.Run("single date", func(t *testing.T) {
		_, err := c.ListSchedules(context.Background(), "doc-7", ScheduleFilter{Date: "2025-03-01"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotQuery != "date=2025-03-01" {
			t.Errorf("query=%q", gotQuery)
		}
	})

	t.Run("date range", func(t *testing.T) {
		_, err := c.ListSchedules(context.Background(), "doc-7", ScheduleFilter{From: "2025-03-01", To: "2025-03-31"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotQuery != "from=2025-03-01&to=2025-03-31" {
			t.Errorf("query=%q", gotQuery)
		}
	})
}

func TestDeleteSchedule(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.DeleteSchedule(context.Background(), "sched-3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/v1/schedules/sched-3" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}
