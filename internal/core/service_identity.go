package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"abattoircore/pkg/domain"
)

// SessionTTL bounds how long a login session stays valid.
const SessionTTL = 24 * time.Hour

// MinPasswordLength is the minimum accepted password size.
const MinPasswordLength = 6

// ErrInvalidCredentials is returned for unknown emails or wrong passwords.
// Both cases share one error so callers cannot probe for registered accounts.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrEmailTaken is returned when signing up with an email already registered.
var ErrEmailTaken = errors.New("email already registered")

// Signup registers a new user account. Passwords are stored in the dedicated
// password bucket to keep the persisted shape compatible with existing data.
func (s *Service) Signup(ctx context.Context, email, fullName string, role UserRole, password string) (User, Result, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, Result{}, ValidationError{Field: "email"}
	}
	if len(password) < MinPasswordLength {
		return User{}, Result{}, fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if _, ok := domain.RolePermissions[role]; !ok {
		return User{}, Result{}, ValidationError{Field: "role"}
	}
	var created User
	var res Result
	err := s.run(ctx, "signup", &created.ID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			if _, exists := tx.Snapshot().FindUserByEmail(email); exists {
				return ErrEmailTaken
			}
			var txErr error
			created, txErr = tx.CreateUser(User{Email: email, FullName: fullName, Role: role})
			if txErr != nil {
				return txErr
			}
			return tx.SetPassword(created.ID, password)
		})
		return err
	})
	return created, res, err
}

// Login authenticates by email and password and opens the active session.
func (s *Service) Login(ctx context.Context, email, password string) (AuthSession, Result, error) {
	var session AuthSession
	var res Result
	err := s.run(ctx, "login", nil, func(ctx context.Context) error {
		now := s.nowFn()
		token, err := newSessionToken()
		if err != nil {
			return err
		}
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			user, ok := tx.Snapshot().FindUserByEmail(email)
			if !ok {
				return ErrInvalidCredentials
			}
			stored, ok := tx.Password(user.ID)
			if !ok || stored != password {
				return ErrInvalidCredentials
			}
			updated, txErr := tx.UpdateUser(user.ID, func(u *User) error {
				u.LastLogin = now
				return nil
			})
			if txErr != nil {
				return txErr
			}
			session = AuthSession{User: updated, Token: token, ExpiresAt: now.Add(SessionTTL)}
			tx.SetSession(session)
			return nil
		})
		return err
	})
	return session, res, err
}

func newSessionToken() (string, error) {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Logout clears the active session. A missing session is not an error.
func (s *Service) Logout(ctx context.Context) (Result, error) {
	var res Result
	err := s.run(ctx, "logout", nil, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
			tx.ClearSession()
			return nil
		})
		return err
	})
	return res, err
}

// CurrentSession returns the active session when present and unexpired.
func (s *Service) CurrentSession() (AuthSession, bool) {
	session, ok := s.store.Session()
	if !ok || session.Expired(s.nowFn()) {
		return AuthSession{}, false
	}
	return session, true
}

// HasPermission reports whether a role may access a resource.
func (s *Service) HasPermission(role UserRole, resource string) bool {
	return domain.HasPermission(role, resource)
}

// ListUsers returns all registered accounts.
func (s *Service) ListUsers() []User {
	return s.store.ListUsers()
}
