package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/streak"
	"github.com/julianstephens/habitline/internal/utils"
	"github.com/julianstephens/habitline/internal/validation"
)

type habitRequest struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Color       *string              `json:"color"`
	Frequency   *constants.Frequency `json:"frequency"`
	StartDate   *string              `json:"startDate"`
	Order       *int                 `json:"order"`
	// UserID is accepted from older clients and ignored; habits always
	// belong to the caller.
	UserID *string `json:"userId"`
}

// apply copies the present fields onto h and validates the result
func (req habitRequest) apply(h *models.Habit) error {
	if req.Name != nil {
		h.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		h.Description = strings.TrimSpace(*req.Description)
	}
	if req.Color != nil {
		h.Color = *req.Color
	}
	if req.Frequency != nil {
		h.Frequency = *req.Frequency
	}
	if h.Frequency == "" {
		h.Frequency = constants.FrequencyDaily
	}
	if req.StartDate != nil {
		if *req.StartDate == "" {
			h.StartDate = nil
		} else {
			day := *req.StartDate
			h.StartDate = &day
		}
	}
	if req.Order != nil {
		order := *req.Order
		h.Order = &order
	}

	return validation.First(
		validation.ValidateHabitName(h.Name),
		validation.ValidateDescription(h.Description),
		validation.ValidateColor(h.Color),
		validation.ValidateFrequency(h.Frequency),
		validation.ValidateStartDate(h.StartDate),
		validation.ValidateOrder(h.Order),
	)
}

type completeRequest struct {
	Complete *bool `json:"complete"`
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

type historyResponse struct {
	HabitID string   `json:"habitId"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Days    []string `json:"days"`
}

func habitID(r *http.Request) (string, error) {
	id := mux.Vars(r)["id"]
	if err := validation.ValidateID("habit id", id); err != nil {
		return "", err
	}
	return id, nil
}

// decorate fills the derived fields of habits as seen on today
func (s *Server) decorate(ctx context.Context, userID, today string, habits []models.Habit) error {
	done, err := s.store.GetCompletedHabitIDs(ctx, userID, today)
	if err != nil {
		return err
	}
	for i := range habits {
		habits[i].CompletedToday = done[habits[i].ID]
		habits[i].CurrentStreak = streak.Effective(habits[i], today).CurrentStreak
	}
	return nil
}

// loadHabit fetches the caller's habit named by the path and decorates it
func (s *Server) loadHabit(r *http.Request) (models.Habit, error) {
	id, err := habitID(r)
	if err != nil {
		return models.Habit{}, err
	}
	userID := callerID(r)
	h, err := s.store.GetHabit(r.Context(), id, userID)
	if err != nil {
		return models.Habit{}, err
	}
	today, err := s.today(r.Context(), userID)
	if err != nil {
		return models.Habit{}, err
	}
	habits := []models.Habit{h}
	if err := s.decorate(r.Context(), userID, today, habits); err != nil {
		return models.Habit{}, err
	}
	return habits[0], nil
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	includeArchived := false
	if v := r.URL.Query().Get("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.fail(w, r, errors.Validationf("archived must be true or false"))
			return
		}
		includeArchived = b
	}

	habits, err := s.store.GetAllHabits(r.Context(), userID, includeArchived)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	today, err := s.today(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.decorate(r.Context(), userID, today, habits); err != nil {
		s.fail(w, r, err)
		return
	}
	if habits == nil {
		habits = []models.Habit{}
	}
	s.respond(w, http.StatusOK, "Habits retrieved", habits)
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Name == nil {
		s.fail(w, r, errors.Validationf("name is required"))
		return
	}

	userID := callerID(r)
	now := time.Now().UTC().Truncate(time.Second)
	habit := models.Habit{
		ID:        uuid.New().String(),
		UserID:    userID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := req.apply(&habit); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.AddHabit(r.Context(), habit); err != nil {
		s.fail(w, r, err)
		return
	}

	s.bus.Publish(events.Event{Type: events.HabitCreated, UserID: userID, HabitID: habit.ID, Data: habit})
	s.respond(w, http.StatusCreated, "Habit created", habit)
}

func (s *Server) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	habit, err := s.loadHabit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "Habit retrieved", habit)
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	id, err := habitID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req habitRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	userID := callerID(r)
	habit, err := s.store.GetHabit(r.Context(), id, userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := req.apply(&habit); err != nil {
		s.fail(w, r, err)
		return
	}
	habit.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	if err := s.store.UpdateHabit(r.Context(), habit); err != nil {
		s.fail(w, r, err)
		return
	}

	s.bus.Publish(events.Event{Type: events.HabitUpdated, UserID: userID, HabitID: id, Data: habit})
	habit, err = s.loadHabit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "Habit updated", habit)
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	id, err := habitID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	userID := callerID(r)
	if err := s.store.DeleteHabit(r.Context(), id, userID); err != nil {
		s.fail(w, r, err)
		return
	}

	s.bus.Publish(events.Event{Type: events.HabitDeleted, UserID: userID, HabitID: id})
	s.respond(w, http.StatusOK, "Habit deleted", nil)
}

func (s *Server) handleArchiveHabit(w http.ResponseWriter, r *http.Request) {
	id, err := habitID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req archiveRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Archived == nil {
		s.fail(w, r, errors.Validationf("archived is required"))
		return
	}

	userID := callerID(r)
	eventType := events.HabitArchived
	if *req.Archived {
		err = s.store.ArchiveHabit(r.Context(), id, userID)
	} else {
		eventType = events.HabitUnarchived
		err = s.store.UnarchiveHabit(r.Context(), id, userID)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	habit, err := s.loadHabit(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.bus.Publish(events.Event{Type: eventType, UserID: userID, HabitID: id, Data: habit})

	message := "Habit archived"
	if !*req.Archived {
		message = "Habit unarchived"
	}
	s.respond(w, http.StatusOK, message, habit)
}

func (s *Server) handleCompleteHabit(w http.ResponseWriter, r *http.Request) {
	id, err := habitID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req completeRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Complete == nil {
		s.fail(w, r, errors.Validationf("complete is required"))
		return
	}

	userID := callerID(r)
	today, err := s.today(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	habit, err := s.engine.Toggle(r.Context(), id, userID, *req.Complete, today)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	message := "Habit marked as complete"
	if !*req.Complete {
		message = "Habit marked as incomplete"
	}
	s.respond(w, http.StatusOK, message, habit)
}

func (s *Server) handleGetStreak(w http.ResponseWriter, r *http.Request) {
	id, err := habitID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	userID := callerID(r)
	today, err := s.today(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.Streak(r.Context(), id, userID, today)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st.HabitID = ""
	s.respond(w, http.StatusOK, "Streak retrieved", st)
}

func (s *Server) handleListStreaks(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	today, err := s.today(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	streaks, err := s.engine.Streaks(r.Context(), userID, today)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "Streaks retrieved", streaks)
}

func (s *Server) handleCountHabits(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.CountHabits(r.Context(), callerID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "Habit count retrieved", map[string]int{"count": n})
}

func (s *Server) handleCompletionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := habitID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	days := constants.DefaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 || days > constants.MaxHistoryDays {
			s.fail(w, r, errors.Validationf("days must be an integer between 1 and %d", constants.MaxHistoryDays))
			return
		}
	}

	userID := callerID(r)
	if _, err := s.store.GetHabit(r.Context(), id, userID); err != nil {
		s.fail(w, r, err)
		return
	}
	today, err := s.today(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	from, err := utils.AddDays(today, -(days - 1))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	completions, err := s.store.GetCompletionsInRange(r.Context(), userID, id, from, today)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := historyResponse{HabitID: id, From: from, To: today, Days: make([]string, 0, len(completions))}
	for _, c := range completions {
		out.Days = append(out.Days, c.Day)
	}
	s.respond(w, http.StatusOK, "Completion history retrieved", out)
}
