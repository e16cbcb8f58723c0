// Package handler exposes login and user administration over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"registrar/internal/auth"
	"registrar/internal/directory/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	mwauth "registrar/pkg/platform/middleware/auth"
	"registrar/pkg/requestcontext"
)

// Service is the authentication and user administration surface.
type Service interface {
	Login(ctx context.Context, username, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	RegisterUser(ctx context.Context, username, password string, role models.Role) (*models.User, error)
	CreateStudentProfile(ctx context.Context, student *models.Student) error
	CreateTeacherProfile(ctx context.Context, teacher *models.Teacher) error
	UpdatePassword(ctx context.Context, userID int64, newPassword string) error
	DeleteUser(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Handler handles the auth and admin user endpoints.
type Handler struct {
	service   Service
	logger    *slog.Logger
	validator mwauth.TokenValidator
	sessions  mwauth.SessionChecker
}

func New(service Service, validator mwauth.TokenValidator, sessions mwauth.SessionChecker, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger, validator: validator, sessions: sessions}
}

// Register mounts the auth routes: a public login endpoint, authenticated
// self-service routes, and an admin-only user administration surface.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(mwauth.RequireAuth(h.validator, h.sessions, h.logger))
		r.Post("/auth/logout", h.handleLogout)
		r.Put("/auth/password", h.handleChangeOwnPassword)
	})

	r.Route("/admin/users", func(r chi.Router) {
		r.Use(mwauth.RequireAuth(h.validator, h.sessions, h.logger))
		r.Use(mwauth.RequireRole(h.logger, string(models.RoleAdmin)))
		r.Get("/", h.handleListUsers)
		r.Post("/", h.handleRegisterUser)
		r.Post("/students", h.handleCreateStudentProfile)
		r.Post("/teachers", h.handleCreateTeacherProfile)
		r.Put("/{userID}/password", h.handleResetPassword)
		r.Delete("/{userID}", h.handleDeleteUser)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[loginRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{Token: result.Token, User: *result.User})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The session ID travels inside the verified token, not the body.
	claims, err := h.validator.Validate(bearerToken(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.Logout(ctx, claims.SessionID); err != nil {
		h.logger.ErrorContext(ctx, "logout",
			"error", err,
			"request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) handleChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[changePasswordRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Re-authenticate before accepting the change.
	if _, err := h.service.Authenticate(ctx, requestcontext.Username(ctx), req.CurrentPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.UpdatePassword(ctx, requestcontext.UserID(ctx), req.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type registerUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[registerUserRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.service.RegisterUser(ctx, req.Username, req.Password, role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleCreateStudentProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	student, err := httputil.DecodeJSON[models.Student](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.CreateStudentProfile(ctx, &student); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, student)
}

func (h *Handler) handleCreateTeacherProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teacher, err := httputil.DecodeJSON[models.Teacher](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.CreateTeacherProfile(ctx, &teacher); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, teacher)
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := pathID(r, "userID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[resetPasswordRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.UpdatePassword(ctx, userID, req.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := pathID(r, "userID")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.DeleteUser(ctx, userID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid id")
	}
	return id, nil
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) {
		return header[len(prefix):]
	}
	return ""
}
