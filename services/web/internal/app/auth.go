package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"quoteshare/internal/util"
	"quoteshare/pkg/auth"
	"quoteshare/pkg/domain"
	"quoteshare/pkg/store"
)

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// equalizes login timing between unknown users and wrong passwords
func burnPasswordCheck(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = auth.HashPassword("not-a-real-password")
	})
	_ = auth.CheckPassword(password, dummyHash)
}

// Register creates a new active user. Username is trimmed; email is trimmed
// and lower-cased.
func (a *App) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	in := registerInput{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
	if err := checkInput(in, "All fields are required."); err != nil {
		return domain.User{}, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordEmpty) {
			return domain.User{}, ErrInvalidInput.WithMessage("All fields are required.")
		}
		return domain.User{}, ErrInvalidInput.WithMessage("Password must be at most 72 bytes.")
	}
	if err := a.checkUserUnique(ctx, in.Username, in.Email); err != nil {
		return domain.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := a.store.CreateUser(ctx, domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    a.now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		// lost a race with a concurrent registration
		if err := a.checkUserUnique(ctx, in.Username, in.Email); err != nil {
			return domain.User{}, err
		}
		return domain.User{}, ErrUserExists
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (a *App) checkUserUnique(ctx context.Context, username, email string) error {
	taken, err := a.store.HasUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return ErrUserExists
	}
	taken, err = a.store.HasUserEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return ErrEmailExists
	}
	return nil
}

// Authenticate matches identifier against username or lower-cased email,
// verifies the password and opens a session.
func (a *App) Authenticate(ctx context.Context, identifier, password string) (domain.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return domain.User{}, "", ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByLogin(ctx, identifier)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		burnPasswordCheck(password)
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) || !user.IsActive {
		return domain.User{}, "", ErrInvalidCredentials
	}
	now := a.now().UTC()
	if err := a.store.SetLastLogin(ctx, user.ID, now); err != nil {
		return domain.User{}, "", fmt.Errorf("record login: %w", err)
	}
	user.LastLoginAt = &now
	token, err := a.sessions.NewSession(ctx, user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Logout drops the server-side session. Unknown tokens are not an error.
func (a *App) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := a.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentUser resolves a session token to an active user. Lookup failures
// are logged and treated as signed out.
func (a *App) CurrentUser(ctx context.Context, token string) (domain.User, bool) {
	if token == "" {
		return domain.User{}, false
	}
	logger := util.LoggerFromContext(ctx)
	userID, ok, err := a.sessions.GetUserIDByToken(ctx, token)
	if err != nil {
		logger.Error("session lookup failed", "err", err)
		return domain.User{}, false
	}
	if !ok {
		return domain.User{}, false
	}
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		logger.Error("user lookup failed", "err", err, "user_id", userID)
		return domain.User{}, false
	}
	if !ok || !user.IsActive {
		return domain.User{}, false
	}
	return user, true
}

// RequireUser is CurrentUser that fails with ErrUnauthorized.
func (a *App) RequireUser(ctx context.Context, token string) (domain.User, error) {
	user, ok := a.CurrentUser(ctx, token)
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	return user, nil
}

// DeleteAccount removes the user with their quotes and reactions, then
// ends the current session.
func (a *App) DeleteAccount(ctx context.Context, user domain.User, token string) error {
	if err := a.store.DeleteUser(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return a.Logout(ctx, token)
}
