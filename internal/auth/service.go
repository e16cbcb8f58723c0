// Package auth implements login, session management, and user
// administration on top of the credential store.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"registrar/internal/auth/credential"
	"registrar/internal/auth/metrics"
	authmodels "registrar/internal/auth/models"
	"registrar/internal/directory/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/audit"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/platform/tx"
	"registrar/pkg/requestcontext"
)

// Directory is the account and profile surface the auth service writes to.
type Directory interface {
	CreateUser(ctx context.Context, user *models.User) error
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	DeleteUser(ctx context.Context, userID int64) error

	CreateStudent(ctx context.Context, student *models.Student) error
	CreateTeacher(ctx context.Context, teacher *models.Teacher) error
	DepartmentByID(ctx context.Context, id int64) (*models.Department, error)
}

// SessionStore persists login sessions.
type SessionStore interface {
	Create(ctx context.Context, session *authmodels.Session) error
	Revoke(ctx context.Context, sessionID string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) error
}

// TokenIssuer signs access tokens for authenticated sessions.
type TokenIssuer interface {
	Generate(ctx context.Context, userID int64, username, role, sessionID string, ttl time.Duration) (string, error)
}

type auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LoginResult is a successful login: the signed token plus the account.
type LoginResult struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	SessionID string       `json:"-"`
}

// Service wires credentials, sessions, and tokens together.
type Service struct {
	directory Directory
	sessions  SessionStore
	tokens    TokenIssuer
	runner    tx.Runner

	sessionTTL time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	auditor    auditor
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(a auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

func NewService(directory Directory, sessions SessionStore, tokens TokenIssuer, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		directory:  directory,
		sessions:   sessions,
		tokens:     tokens,
		runner:     runner,
		sessionTTL: 12 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errBadCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid username or password")

// timingPad is a throwaway stored form verified on the unknown-user path so
// that branch costs a digest check too; response timing must not reveal
// whether a username exists.
var timingPad, _ = credential.Hash("timing-pad")

// Authenticate verifies a username/password pair. Unknown users and wrong
// passwords are indistinguishable to the caller, in message and in timing.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.directory.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			credential.Verify(timingPad, password)
			s.recordAuthFailure(ctx, username)
			return nil, errBadCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}

	if !credential.Verify(user.PasswordHash, password) {
		s.recordAuthFailure(ctx, username)
		return nil, errBadCredentials
	}
	return user, nil
}

// Login authenticates and opens a session, returning a signed access token.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		s.metrics.IncrementLogin("failure")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	session := &authmodels.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create session")
	}

	signed, err := s.tokens.Generate(ctx, user.ID, user.Username, string(user.Role), session.ID, s.sessionTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}

	s.metrics.IncrementLogin("success")
	s.metrics.IncrementSessions()
	s.emit(ctx, audit.Event{
		UserID:  user.ID,
		Subject: user.Username,
		Action:  audit.ActionSessionCreated,
	})
	s.logger.Info("login", "user_id", user.ID, "role", user.Role)

	return &LoginResult{Token: signed, User: user, SessionID: session.ID}, nil
}

// Logout revokes the session behind the presented token.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Revoke(ctx, sessionID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Already gone; logout is idempotent.
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke session")
	}
	s.emit(ctx, audit.Event{
		UserID: requestcontext.UserID(ctx),
		Action: audit.ActionSessionRevoked,
	})
	return nil
}

// RegisterUser creates an account. The username uniqueness pre-check lives in
// the store; its unique index is the backstop under concurrency.
func (s *Service) RegisterUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	if username == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "username is required")
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, err
	}

	hash, err := credential.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, PasswordHash: hash, Role: role}
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.directory.CreateUser(ctx, user); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "username already taken")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		UserID:  user.ID,
		Subject: user.Username,
		Action:  audit.ActionUserCreated,
	})
	s.logger.Info("user registered", "user_id", user.ID, "role", role)

	user.PasswordHash = ""
	return user, nil
}

// CreateStudentProfile attaches a student profile to an existing account.
func (s *Service) CreateStudentProfile(ctx context.Context, student *models.Student) error {
	if err := student.Validate(); err != nil {
		return err
	}
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.directory.UserByID(ctx, student.UserID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "user not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load user")
		}
		if user.Role != models.RoleStudent {
			return dErrors.New(dErrors.CodeInvalidInput, "user account is not a student")
		}
		if _, err := s.directory.DepartmentByID(ctx, student.DepartmentID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeInvalidInput, "department not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load department")
		}
		if err := s.directory.CreateStudent(ctx, student); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "user already has a student profile")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create student")
		}
		return nil
	})
}

// CreateTeacherProfile attaches a teacher profile to an existing account.
func (s *Service) CreateTeacherProfile(ctx context.Context, teacher *models.Teacher) error {
	if err := teacher.Validate(); err != nil {
		return err
	}
	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.directory.UserByID(ctx, teacher.UserID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "user not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load user")
		}
		if user.Role != models.RoleTeacher {
			return dErrors.New(dErrors.CodeInvalidInput, "user account is not a teacher")
		}
		if _, err := s.directory.DepartmentByID(ctx, teacher.DepartmentID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeInvalidInput, "department not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load department")
		}
		if err := s.directory.CreateTeacher(ctx, teacher); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "user already has a teacher profile")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create teacher")
		}
		return nil
	})
}

// UpdatePassword re-hashes with the current scheme and revokes the user's
// other sessions.
func (s *Service) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	hash, err := credential.Hash(newPassword)
	if err != nil {
		return err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.directory.UpdatePassword(ctx, userID, hash); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "user not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "update password")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.sessions.RevokeAllForUser(ctx, userID, requestcontext.Now(ctx)); err != nil {
		s.logger.Error("revoke sessions after password change", "user_id", userID, "error", err)
	}
	s.emit(ctx, audit.Event{UserID: userID, Action: audit.ActionPasswordChanged})
	return nil
}

// DeleteUser removes an account. Blocked while a role profile references it.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	var username string
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.directory.UserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "user not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "load user")
		}
		username = user.Username

		if err := s.directory.DeleteUser(ctx, userID); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return dErrors.New(dErrors.CodeNotFound, "user not found")
			case errors.Is(err, sentinel.ErrConflict):
				return dErrors.New(dErrors.CodeConflict, "user still has a student or teacher profile")
			default:
				return dErrors.Wrap(err, dErrors.CodeInternal, "delete user")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.sessions.RevokeAllForUser(ctx, userID, requestcontext.Now(ctx)); err != nil {
		s.logger.Error("revoke sessions after user delete", "user_id", userID, "error", err)
	}
	s.emit(ctx, audit.Event{UserID: userID, Subject: username, Action: audit.ActionUserDeleted})
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

// ListUsers returns all accounts without credential material.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.directory.ListUsers(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list users")
	}
	return users, nil
}

func (s *Service) recordAuthFailure(ctx context.Context, username string) {
	s.emit(ctx, audit.Event{
		Subject:  username,
		Action:   audit.ActionAuthFailed,
		Decision: "denied",
	})
	s.logger.Warn("authentication failed", "username", username)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if event.ActorID == 0 {
		event.ActorID = requestcontext.UserID(ctx)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.Error("emit audit event", "action", event.Action, "error", err)
	}
}
