package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/expense-tracker/internal/apperror"
	"github.com/sakif/expense-tracker/internal/auth"
	"github.com/sakif/expense-tracker/internal/model"
	"github.com/sakif/expense-tracker/internal/service"
)

// AccountHandler exposes registration, login, identity management and the
// rider directory.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
}

type authResponse struct {
	Message  string `json:"message"`
	RiderID  string `json:"rider_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Token    string `json:"token,omitempty"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/register/
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), req.Email, req.Password, req.ConfirmPassword, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, authResponse{
		Message:  "Registration successful",
		RiderID:  res.Account.RiderID,
		UserID:   res.Account.ID,
		Username: res.Account.Username,
		Email:    res.Account.Email,
		Token:    res.Token,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin authenticates by email and password.
//
// HTTP: POST /api/login/
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, authResponse{
		Message:  "Login successful",
		RiderID:  res.Account.RiderID,
		UserID:   res.Account.ID,
		Username: res.Account.Username,
		Token:    res.Token,
	})
}

// setSessionCookie mirrors the token into an HttpOnly cookie so browser
// clients don't have to manage the bearer header. No-op when token is empty
// (JWT disabled).
func setSessionCookie(w http.ResponseWriter, token string) {
	if token == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    token,
		Path:     "/",
		MaxAge:   int((15 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type userInfoResponse struct {
	RiderID    string     `json:"rider_id"`
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	DateJoined time.Time  `json:"date_joined"`
	LastLogin  *time.Time `json:"last_login"`
}

func userInfo(acc *model.Account) userInfoResponse {
	return userInfoResponse{
		RiderID:    acc.RiderID,
		UserID:     acc.ID,
		Username:   acc.Username,
		Email:      acc.Email,
		FirstName:  acc.FirstName,
		LastName:   acc.LastName,
		DateJoined: acc.DateJoined,
		LastLogin:  acc.LastLogin,
	}
}

// HandleMe returns the profile of the token-authenticated account.
//
// HTTP: GET /api/me (behind RequireAuth)
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	acc, err := h.accounts.GetByID(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userInfo(acc))
}

// HandleUserInfo returns the full identity payload for a rider.
//
// HTTP: GET /api/user-info/?rider_id=
func (h *AccountHandler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.Resolve(r.Context(), queryRiderID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userInfo(acc))
}

type riderIDRequest struct {
	RiderID string `json:"rider_id" validate:"required"`
}

type personalInfoResponse struct {
	Message   string `json:"message,omitempty"`
	RiderID   string `json:"rider_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}

func personalInfo(acc *model.Account, message string) personalInfoResponse {
	return personalInfoResponse{
		Message:   message,
		RiderID:   acc.RiderID,
		FirstName: acc.FirstName,
		LastName:  acc.LastName,
		Username:  acc.Username,
		Email:     acc.Email,
	}
}

// HandlePersonalInfo returns name and identity fields for a rider.
//
// HTTP: POST /api/personal-info/
func (h *AccountHandler) HandlePersonalInfo(w http.ResponseWriter, r *http.Request) {
	var req riderIDRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	acc, err := h.accounts.Resolve(r.Context(), req.RiderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personalInfo(acc, ""))
}

type personalInfoUpdateRequest struct {
	RiderID   string  `json:"rider_id" validate:"required"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// HandlePersonalInfoUpdate partially updates first/last name.
//
// HTTP: POST /api/personal-info/update/
func (h *AccountHandler) HandlePersonalInfoUpdate(w http.ResponseWriter, r *http.Request) {
	var req personalInfoUpdateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	acc, err := h.accounts.UpdatePersonalInfo(r.Context(), req.RiderID, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personalInfo(acc, "Personal information updated successfully"))
}

type profileResponse struct {
	Message   string `json:"message,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Location  string `json:"location"`
	Avatar    string `json:"avatar"`
	RiderID   string `json:"rider_id"`
}

func profileView(acc *model.Account, profile *model.Profile, message string) profileResponse {
	return profileResponse{
		Message:   message,
		Username:  acc.Username,
		Email:     acc.Email,
		FirstName: acc.FirstName,
		LastName:  acc.LastName,
		Location:  profile.Location,
		Avatar:    profile.Avatar,
		RiderID:   acc.RiderID,
	}
}

// HandleProfileGet returns the profile view.
//
// HTTP: GET /api/profile/?rider_id=
func (h *AccountHandler) HandleProfileGet(w http.ResponseWriter, r *http.Request) {
	acc, profile, err := h.accounts.Profile(r.Context(), queryRiderID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(acc, profile, ""))
}

type profileUpdateRequest struct {
	RiderID  string  `json:"rider_id" validate:"required"`
	Location *string `json:"location"`
	Avatar   *string `json:"avatar"`
}

// HandleProfileUpdate partially updates location/avatar.
//
// HTTP: POST /api/profile/
func (h *AccountHandler) HandleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	var req profileUpdateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	acc, profile, err := h.accounts.UpdateProfile(r.Context(), req.RiderID, req.Location, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(acc, profile, "Profile updated successfully"))
}

type changeEmailRequest struct {
	RiderID         string `json:"rider_id" validate:"required"`
	NewEmail        string `json:"new_email" validate:"required,email"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

// HandleChangeEmail changes the account email after a password check.
//
// HTTP: POST /api/profile/change-email/
func (h *AccountHandler) HandleChangeEmail(w http.ResponseWriter, r *http.Request) {
	var req changeEmailRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	email, err := h.accounts.ChangeEmail(r.Context(), req.RiderID, req.NewEmail, req.CurrentPassword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Email updated successfully",
		"email":   email,
	})
}

type changePasswordRequest struct {
	RiderID            string `json:"rider_id" validate:"required"`
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	ConfirmNewPassword string `json:"confirm_new_password" validate:"required"`
}

// HandleChangePassword replaces the password after verifying the old one.
//
// HTTP: PUT /api/profile/change-password/
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), req.RiderID, req.OldPassword, req.NewPassword, req.ConfirmNewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

type deleteAccountRequest struct {
	RiderID  string `json:"rider_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// HandleDeleteAccount deletes the account and everything it owns.
//
// HTTP: DELETE /api/profile/delete-account/
func (h *AccountHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), req.RiderID, req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ridersResponse struct {
	TotalRiders  int                  `json:"total_riders"`
	ActiveRiders int                  `json:"active_riders"`
	Riders       []model.RiderSummary `json:"riders"`
}

// HandleRiders lists every registered rider.
//
// HTTP: GET /api/riders/all/
func (h *AccountHandler) HandleRiders(w http.ResponseWriter, r *http.Request) {
	riders, err := h.accounts.ListRiders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	active := 0
	for _, rd := range riders {
		if rd.IsActive {
			active++
		}
	}
	writeJSON(w, http.StatusOK, ridersResponse{
		TotalRiders:  len(riders),
		ActiveRiders: active,
		Riders:       riders,
	})
}

// HandleRiderByEmail looks a rider up by email.
//
// HTTP: GET /api/riders/by-email/?email=
func (h *AccountHandler) HandleRiderByEmail(w http.ResponseWriter, r *http.Request) {
	rider, err := h.accounts.RiderByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rider)
}

type verifyRequest struct {
	RiderID string `json:"rider_id" validate:"required"`
	Email   string `json:"email" validate:"required"`
}

// HandleVerifyRider confirms a rider_id/email pair matches. The failure
// body deviates from the standard error shape: clients branch on the
// "verified" flag.
//
// HTTP: POST /api/riders/verify/
func (h *AccountHandler) HandleVerifyRider(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	rider, err := h.accounts.VerifyRider(r.Context(), req.RiderID, req.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			var appErr *apperror.AppError
			msg := "Rider ID and email do not match"
			if errors.As(err, &appErr) {
				msg = appErr.Message
			}
			writeJSON(w, http.StatusNotFound, map[string]any{
				"verified": false,
				"error":    msg,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"verified": true,
		"rider_id": rider.RiderID,
		"email":    rider.Email,
		"username": rider.Username,
		"user_id":  rider.UserID,
	})
}

// HandleHealth is the liveness probe.
//
// HTTP: GET /api/health
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
