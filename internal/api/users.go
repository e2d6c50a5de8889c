package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/julianstephens/habitline/internal/auth"
	"github.com/julianstephens/habitline/internal/constants"
	"github.com/julianstephens/habitline/internal/errors"
	"github.com/julianstephens/habitline/internal/events"
	"github.com/julianstephens/habitline/internal/models"
	"github.com/julianstephens/habitline/internal/validation"
)

type createUserRequest struct {
	Email       string               `json:"email"`
	Password    string               `json:"password"`
	DisplayName string               `json:"displayName"`
	AvatarURL   string               `json:"avatarUrl"`
	Timezone    string               `json:"timezone"`
	Settings    *models.UserSettings `json:"settings"`
}

type updateUserRequest struct {
	Email       *string              `json:"email"`
	Password    *string              `json:"password"`
	DisplayName *string              `json:"displayName"`
	AvatarURL   *string              `json:"avatarUrl"`
	Timezone    *string              `json:"timezone"`
	Settings    *models.UserSettings `json:"settings"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User   models.User    `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

func defaultSettings() models.UserSettings {
	return models.UserSettings{
		WeekStart:                 constants.DefaultWeekStart,
		Locale:                    constants.DefaultLocale,
		NotificationsEmailEnabled: constants.DefaultNotificationsEmailEnabled,
	}
}

func validateSettings(s models.UserSettings) error {
	if err := validation.ValidateWeekStart(s.WeekStart); err != nil {
		return err
	}
	if strings.TrimSpace(s.Locale) == "" {
		return errors.Validationf("locale is required")
	}
	return nil
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Timezone == "" {
		req.Timezone = constants.DefaultTimezone
	}
	settings := defaultSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	if err := validation.First(
		validation.ValidateEmail(req.Email),
		validation.ValidatePassword(req.Password),
		validation.ValidateDisplayName(req.DisplayName),
		validation.ValidateTimezone(req.Timezone),
		validateSettings(settings),
	); err != nil {
		s.fail(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	now := time.Now().UTC().Truncate(time.Second)
	user := models.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		AvatarURL:    req.AvatarURL,
		Timezone:     req.Timezone,
		Settings:     settings,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.AddUser(r.Context(), user); err != nil {
		s.fail(w, r, err)
		return
	}

	tokens, err := s.issuer.IssuePair(user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.bus.Publish(events.Event{Type: events.UserCreated, UserID: user.ID, Data: user})
	s.respond(w, http.StatusCreated, "User created", sessionResponse{User: user, Tokens: tokens})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		s.fail(w, r, errors.Validationf("email and password are required"))
		return
	}

	// unknown emails and wrong passwords are indistinguishable to the caller
	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, errors.ErrNotFound) {
		s.fail(w, r, errors.Unauthorizedf("invalid email or password"))
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.fail(w, r, err)
		return
	}

	tokens, err := s.issuer.IssuePair(user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "Logged in", sessionResponse{User: user, Tokens: tokens})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		s.fail(w, r, errors.Validationf("refresh token is required"))
		return
	}

	userID, err := s.issuer.Verify(req.RefreshToken, auth.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.requireUser(r.Context(), userID); err != nil {
		s.fail(w, r, err)
		return
	}

	tokens, err := s.issuer.IssuePair(userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "Token refreshed", tokens)
}

// selfID returns the {id} path variable when it names the caller. Other
// users' records are reported as missing.
func (s *Server) selfID(r *http.Request) (string, error) {
	id := mux.Vars(r)["id"]
	if err := validation.ValidateID("user id", id); err != nil {
		return "", err
	}
	if id != callerID(r) {
		return "", errors.NotFoundf("user %s", id)
	}
	return id, nil
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := s.selfID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "User retrieved", user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := s.selfID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req updateUserRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var errs []error
	if req.Email != nil {
		errs = append(errs, validation.ValidateEmail(*req.Email))
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.DisplayName != nil {
		errs = append(errs, validation.ValidateDisplayName(*req.DisplayName))
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.Timezone != nil {
		errs = append(errs, validation.ValidateTimezone(*req.Timezone))
		user.Timezone = *req.Timezone
	}
	if req.Settings != nil {
		errs = append(errs, validateSettings(*req.Settings))
		user.Settings = *req.Settings
	}
	if req.Password != nil {
		errs = append(errs, validation.ValidatePassword(*req.Password))
	}
	if err := validation.First(errs...); err != nil {
		s.fail(w, r, err)
		return
	}

	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		user.PasswordHash = hash
	}

	user.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		s.fail(w, r, err)
		return
	}

	s.bus.Publish(events.Event{Type: events.UserUpdated, UserID: user.ID, Data: user})
	s.respond(w, http.StatusOK, "User updated", user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := s.selfID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}

	s.bus.Publish(events.Event{Type: events.UserDeleted, UserID: id})
	s.respond(w, http.StatusOK, "User deleted", nil)
}

func (s *Server) handleCountUsers(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.CountUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, "User count retrieved", map[string]int{"count": n})
}
