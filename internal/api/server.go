// Package api exposes the scheduling flow over HTTP for the front end.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"medsched/internal/calendar"
	"medsched/internal/dates"
	"medsched/internal/export"
	"medsched/internal/flow"
	"medsched/internal/metrics"
	"medsched/internal/schedule"
	"medsched/internal/slots"
	"medsched/internal/storeapi"
)

// DayGridConfig positions the fixed time grid of the day view.
type DayGridConfig struct {
	StartHour   int
	EndHour     int
	StepMinutes int
}

// DefaultDayGrid shows half-hour rows across the working day.
var DefaultDayGrid = DayGridConfig{StartHour: 7, EndHour: 21, StepMinutes: 30}

// scheduleColors is the palette cycled over a doctor's schedules so each one
// keeps a stable color within a response.
var scheduleColors = []string{"#2e7dd1", "#2ea44f", "#d97706", "#9333ea", "#dc2626"}

// HTTPServer serves the scheduling API.
type HTTPServer struct {
	ctrl    *flow.Controller
	store   flow.Store
	dayGrid DayGridConfig
	logger  *zerolog.Logger
}

// NewHTTPServer builds the API server. A zero dayGrid falls back to
// DefaultDayGrid.
func NewHTTPServer(ctrl *flow.Controller, store flow.Store, dayGrid DayGridConfig, logger *zerolog.Logger) *HTTPServer {
	if dayGrid.StepMinutes <= 0 {
		dayGrid = DefaultDayGrid
	}
	return &HTTPServer{ctrl: ctrl, store: store, dayGrid: dayGrid, logger: logger}
}

// Routes returns the API mux.
func (s *HTTPServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/durations", s.handleDurations)
	mux.HandleFunc("POST /api/v1/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/click", s.handleClick)
	mux.HandleFunc("POST /api/v1/sessions/{id}/times", s.handleTimes)
	mux.HandleFunc("POST /api/v1/sessions/{id}/duration", s.handleDuration)
	mux.HandleFunc("POST /api/v1/sessions/{id}/fee", s.handleFee)
	mux.HandleFunc("POST /api/v1/sessions/{id}/preview", s.handlePreview)
	mux.HandleFunc("POST /api/v1/sessions/{id}/back", s.handleBack)
	mux.HandleFunc("POST /api/v1/sessions/{id}/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/v1/doctors/{id}/calendar/month", s.handleMonthView)
	mux.HandleFunc("GET /api/v1/doctors/{id}/calendar/day", s.handleDayView)
	mux.HandleFunc("GET /api/v1/doctors/{id}/roster.xlsx", s.handleRoster)
	return mux
}

// SessionResponse is the session state returned to the front end after every
// mutation, mirroring what the screen renders.
type SessionResponse struct {
	ID          string    `json:"id"`
	DoctorID    string    `json:"doctorId"`
	ScheduleID  string    `json:"scheduleId,omitempty"`
	Step        flow.Step `json:"step"`
	Phase       string    `json:"phase"`
	RangeStart  string    `json:"rangeStart,omitempty"`
	RangeEnd    string    `json:"rangeEnd,omitempty"`
	Excluded    []string  `json:"excluded,omitempty"`
	ActiveCount int       `json:"activeCount"`
	StartTime   string    `json:"startTime,omitempty"`
	EndTime     string    `json:"endTime,omitempty"`
	DurationID  int64     `json:"durationId,omitempty"`
	Fee         *float64  `json:"fee,omitempty"`
	Notice      string    `json:"notice,omitempty"`
}

// sessionResponse renders from a snapshot, the session's consistent read; the
// API layer never touches session fields directly.
func sessionResponse(s *flow.Session) SessionResponse {
	snap := s.Snapshot()
	return SessionResponse{
		ID:          snap.ID,
		DoctorID:    snap.DoctorID,
		ScheduleID:  snap.ScheduleID,
		Step:        snap.Step,
		Phase:       snap.Phase,
		RangeStart:  snap.RangeStart,
		RangeEnd:    snap.RangeEnd,
		Excluded:    snap.Excluded,
		ActiveCount: snap.ActiveCount,
		StartTime:   snap.StartTime,
		EndTime:     snap.EndTime,
		DurationID:  snap.DurationID,
		Fee:         snap.Fee,
		Notice:      snap.Notice,
	}
}

func (s *HTTPServer) handleDurations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("durations")

	opts, err := s.ctrl.LoadDurations(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "duration options unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"durations": opts})
}

// CreateSessionRequest opens a create-mode session, or an edit-mode session
// when schedule_id is set.
type CreateSessionRequest struct {
	DoctorID   string `json:"doctor_id"`
	ScheduleID string `json:"schedule_id,omitempty"`
}

func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_create")

	var req CreateSessionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DoctorID == "" {
		writeError(w, http.StatusBadRequest, "doctor_id is required")
		return
	}

	var session *flow.Session
	if req.ScheduleID != "" {
		var err error
		session, err = s.ctrl.BeginEdit(r.Context(), req.DoctorID, req.ScheduleID)
		if errors.Is(err, flow.ErrScheduleNotFound) {
			writeError(w, http.StatusNotFound, "schedule not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "schedule could not be loaded")
			return
		}
	} else {
		session = s.ctrl.StartCreate(req.DoctorID)
	}

	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

func (s *HTTPServer) session(w http.ResponseWriter, r *http.Request) *flow.Session {
	session := s.ctrl.Session(r.PathValue("id"))
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found or expired")
	}
	return session
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_get")
	if session := s.session(w, r); session != nil {
		writeJSON(w, http.StatusOK, sessionResponse(session))
	}
}

func (s *HTTPServer) handleClick(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_click")
	session := s.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	d, ok := dates.Parse(req.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	s.ctrl.Click(r.Context(), session, d)
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *HTTPServer) handleTimes(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_times")
	session := s.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, err := slots.ParseTimeOfDay(req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time; expected HH:MM")
		return
	}
	end, err := slots.ParseTimeOfDay(req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time; expected HH:MM")
		return
	}

	s.ctrl.SetTimes(r.Context(), session, start, end)
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *HTTPServer) handleDuration(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_duration")
	session := s.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		DurationID int64 `json:"duration_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.ctrl.SetDuration(r.Context(), session, req.DurationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *HTTPServer) handleFee(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_fee")
	session := s.session(w, r)
	if session == nil {
		return
	}

	var req struct {
		Fee *float64 `json:"fee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.ctrl.SetFee(r.Context(), session, req.Fee)
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// PreviewResponse carries the generated slot groups for the preview step.
type PreviewResponse struct {
	Session SessionResponse `json:"session"`
	Days    []PreviewDay    `json:"days"`
}

// PreviewDay is one active day of the preview.
type PreviewDay struct {
	Date      string   `json:"date"`
	DayOfWeek string   `json:"dayOfWeek"`
	Slots     []string `json:"slots"`
}

func previewDays(groups []slots.DayGroup) []PreviewDay {
	days := make([]PreviewDay, 0, len(groups))
	for _, g := range groups {
		day := PreviewDay{
			Date:      g.Date.String(),
			DayOfWeek: g.DayOfWeek.String(),
			Slots:     make([]string, 0, len(g.Slots)),
		}
		for _, t := range g.Slots {
			day.Slots = append(day.Slots, t.String())
		}
		days = append(days, day)
	}
	return days
}

func (s *HTTPServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_preview")
	session := s.session(w, r)
	if session == nil {
		return
	}

	groups, err := s.ctrl.Preview(session)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		Session: sessionResponse(session),
		Days:    previewDays(groups),
	})
}

func (s *HTTPServer) handleBack(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_back")
	session := s.session(w, r)
	if session == nil {
		return
	}
	s.ctrl.BackToRange(session)
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

// SubmitResponse reports the submit outcome. On conflict the session is back
// on the range step and its notice names the overlap.
type SubmitResponse struct {
	Saved    bool                `json:"saved"`
	Conflict bool                `json:"conflict,omitempty"`
	Schedule *schedule.Persisted `json:"schedule,omitempty"`
	Session  SessionResponse     `json:"session"`
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("session_submit")
	session := s.session(w, r)
	if session == nil {
		return
	}

	persisted, err := s.ctrl.Submit(r.Context(), session)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, SubmitResponse{
			Saved:    true,
			Schedule: persisted,
			Session:  sessionResponse(session),
		})
	case errors.Is(err, flow.ErrSaveInFlight):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case schedule.IsValidationError(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storeapi.ErrScheduleConflict):
		writeJSON(w, http.StatusConflict, SubmitResponse{
			Conflict: true,
			Session:  sessionResponse(session),
		})
	default:
		writeJSON(w, http.StatusBadGateway, SubmitResponse{
			Session: sessionResponse(session),
		})
	}
}

// doctorEvents expands a doctor's persisted schedules into calendar events.
// Schedules with undecodable wire dates are skipped, never rendered on a
// guessed day.
func (s *HTTPServer) doctorEvents(r *http.Request, doctorID string, filter storeapi.ScheduleFilter) ([]calendar.Event, error) {
	list, err := s.store.ListSchedules(r.Context(), doctorID, filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	var events []calendar.Event
	for i, p := range list {
		color := scheduleColors[i%len(scheduleColors)]
		evs, err := calendar.FromPersisted(p, color)
		if err != nil {
			s.logger.Warn().Err(err).Str("schedule_id", p.ID).Msg("skipping undecodable schedule")
			continue
		}
		events = append(events, evs...)
	}
	return events, nil
}

func (s *HTTPServer) handleMonthView(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_month")

	year, err1 := strconv.Atoi(r.URL.Query().Get("year"))
	month, err2 := strconv.Atoi(r.URL.Query().Get("month"))
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "year and month query params are required")
		return
	}

	first := dates.New(year, month, 1)
	last := dates.New(year, month+1, 1).AddDays(-1)
	events, err := s.doctorEvents(r, r.PathValue("id"), storeapi.ScheduleFilter{
		From: first.String(),
		To:   last.String(),
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "schedules unavailable")
		return
	}

	writeJSON(w, http.StatusOK, calendar.MonthView(events, year, month))
}

func (s *HTTPServer) handleDayView(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("calendar_day")

	d, ok := dates.Parse(r.URL.Query().Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	events, err := s.doctorEvents(r, r.PathValue("id"), storeapi.ScheduleFilter{Date: d.String()})
	if err != nil {
		writeError(w, http.StatusBadGateway, "schedules unavailable")
		return
	}

	cells := calendar.DayView(events, d,
		slots.TimeOfDay{Hour: s.dayGrid.StartHour},
		slots.TimeOfDay{Hour: s.dayGrid.EndHour},
		s.dayGrid.StepMinutes)
	writeJSON(w, http.StatusOK, map[string]any{"date": d.String(), "cells": cells})
}

// handleRoster renders one persisted schedule as an Excel roster, one sheet
// per month.
func (s *HTTPServer) handleRoster(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("roster_export")

	scheduleID := r.URL.Query().Get("scheduleId")
	if scheduleID == "" {
		writeError(w, http.StatusBadRequest, "scheduleId query param is required")
		return
	}

	list, err := s.store.ListSchedules(r.Context(), r.PathValue("id"), storeapi.ScheduleFilter{})
	if err != nil {
		writeError(w, http.StatusBadGateway, "schedules unavailable")
		return
	}

	for _, p := range list {
		if p.ID != scheduleID {
			continue
		}
		state, err := schedule.Hydrate(p)
		if err != nil {
			writeError(w, http.StatusBadGateway, "schedule has undecodable dates")
			return
		}

		groups := slots.Generate(state.Selector.ActiveDates(), state.Start, state.End, p.Duration.Minutes)
		writer := export.NewRosterWriter()
		defer writer.Close()
		if err := writer.WriteRoster(groups, p.Duration.Minutes); err != nil {
			writeError(w, http.StatusInternalServerError, "roster export failed")
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=roster-%s.xlsx", scheduleID))
		if _, err := writer.WriteTo(w); err != nil {
			s.logger.Error().Err(err).Str("schedule_id", scheduleID).Msg("roster write failed")
		}
		return
	}

	writeError(w, http.StatusNotFound, "schedule not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
