package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/charadev96/ratewise/internal/cache"
	server "github.com/charadev96/ratewise/internal/server/domain"
	"github.com/charadev96/ratewise/internal/session"
	shared "github.com/charadev96/ratewise/internal/shared/domain"
	"github.com/charadev96/ratewise/internal/shared/log"
)

type AuthService struct {
	Users     server.UserRepository
	UserCache *cache.Loader[server.User]
	Sessions  *session.Registry
	TXRunner  shared.TransactionRunner
	Logger    *zerolog.Logger
	// HashCost is the bcrypt cost, zero means bcrypt.DefaultCost.
	HashCost int
}

type SignUpInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInInput struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// SignUp registers an active account with the user role and signs it in
// on sess.
func (s *AuthService) SignUp(ctx context.Context, sess *session.Session, in SignUpInput) (server.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateSignUp(in); err != nil {
		return server.User{}, err
	}
	hash, err := hashPassword(in.Password, s.HashCost)
	if err != nil {
		return server.User{}, err
	}

	var usr server.User
	err = s.TXRunner.Exec(ctx, func(ctx context.Context) error {
		if err := s.ensureFree(ctx, in.Name, in.Email); err != nil {
			return err
		}
		usr, err = s.Users.Create(ctx, server.User{
			Name:         in.Name,
			Email:        in.Email,
			PasswordHash: hash,
			Roles:        []server.Role{server.RoleUser},
			Status:       server.StatusActive,
		})
		return err
	})
	if err != nil {
		return server.User{}, err
	}

	if err := s.Sessions.Create(ctx, sess, usr.ID); err != nil {
		return server.User{}, err
	}
	s.logger().Info().
		Str("user", usr.ID.String()).
		Msg("signed up")
	return usr, nil
}

func (s *AuthService) ensureFree(ctx context.Context, name, email string) error {
	if _, err := s.Users.GetByName(ctx, name); err == nil {
		return fmt.Errorf("name '%s': %w", name, shared.ErrAlreadyExists)
	} else if !errors.Is(err, shared.ErrNotExist) {
		return err
	}
	if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("email '%s': %w", email, shared.ErrAlreadyExists)
	} else if !errors.Is(err, shared.ErrNotExist) {
		return err
	}
	return nil
}

// SignIn checks the credentials and binds sess to the account under a new
// session id.
func (s *AuthService) SignIn(ctx context.Context, sess *session.Session, in SignInInput) (server.User, error) {
	if err := validateSignIn(in); err != nil {
		return server.User{}, err
	}

	usr, err := s.Users.GetByName(ctx, in.Name)
	if errors.Is(err, shared.ErrNotExist) {
		_, _ = verifyPassword(string(dummyHash), in.Password)
		return server.User{}, fmt.Errorf("invalid credentials: %w", shared.ErrUnauthenticated)
	}
	if err != nil {
		return server.User{}, err
	}

	ok, err := verifyPassword(usr.PasswordHash, in.Password)
	if err != nil {
		return server.User{}, err
	}
	if !ok {
		return server.User{}, fmt.Errorf("invalid credentials: %w", shared.ErrUnauthenticated)
	}
	if usr.Status != server.StatusActive {
		return server.User{}, fmt.Errorf("account is %s: %w", usr.Status, shared.ErrForbidden)
	}

	if err := s.Sessions.Create(ctx, sess, usr.ID); err != nil {
		return server.User{}, err
	}
	s.logger().Info().
		Str("user", usr.ID.String()).
		Msg("signed in")
	return usr, nil
}

// Resume returns the session id refers to, or a blank session carrying id
// when there is no such record. The result is meant to be passed to SignIn
// or SignUp, which replace its id.
func (s *AuthService) Resume(ctx context.Context, id string) *session.Session {
	if id == "" {
		return &session.Session{}
	}
	sess, err := s.Sessions.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotExist) {
			s.logger().Warn().Err(err).Msg("failed to resume session")
		}
		return &session.Session{ID: id}
	}
	return sess
}

// SignOut removes every trace of sess. It never fails.
func (s *AuthService) SignOut(ctx context.Context, sess *session.Session) {
	s.Sessions.TrySessionCleanup(ctx, sess)
}

// SignOutAll ends every session of the owner of sess, sess included.
func (s *AuthService) SignOutAll(ctx context.Context, sess *session.Session) (int, error) {
	if !sess.Authenticated() {
		return 0, shared.ErrUnauthenticated
	}
	n, err := s.Sessions.DestroyAll(ctx, sess.UserID)
	if err != nil {
		return 0, err
	}
	*sess = session.Session{}
	return n, nil
}

// Authenticate resolves a session id to its session and account. Dangling
// sessions are cleaned up and rejected.
func (s *AuthService) Authenticate(ctx context.Context, id string) (*session.Session, server.User, error) {
	sess, err := s.Sessions.Load(ctx, id)
	if errors.Is(err, shared.ErrNotExist) {
		return nil, server.User{}, shared.ErrUnauthenticated
	}
	if err != nil {
		return nil, server.User{}, err
	}
	if !sess.Authenticated() {
		s.Sessions.TrySessionCleanup(ctx, sess)
		return nil, server.User{}, shared.ErrUnauthenticated
	}

	dangling, err := s.Sessions.IsDangling(ctx, sess.UserID, sess.ID)
	if err != nil {
		return nil, server.User{}, fmt.Errorf("failed to check session: %w", err)
	}
	if dangling {
		s.logger().Warn().
			Str("user", sess.UserID.String()).
			Str("session", sess.ID).
			Msg("dangling session")
		s.Sessions.TrySessionCleanup(ctx, sess)
		return nil, server.User{}, shared.ErrUnauthenticated
	}

	usr, err := s.UserCache.Get(ctx, sess.UserID)
	if errors.Is(err, shared.ErrNotExist) {
		s.Sessions.TrySessionCleanup(ctx, sess)
		return nil, server.User{}, shared.ErrUnauthenticated
	}
	if err != nil {
		return nil, server.User{}, err
	}
	if usr.Status != server.StatusActive {
		return nil, server.User{}, fmt.Errorf("account is %s: %w", usr.Status, shared.ErrForbidden)
	}
	return sess, usr, nil
}

// SetAccountStatus changes the status of userID. Leaving the active status
// ends every session of the account; the count of ended sessions is
// returned.
func (s *AuthService) SetAccountStatus(ctx context.Context, userID uuid.UUID, status server.AccountStatus) (int, error) {
	switch status {
	case server.StatusPending, server.StatusActive, server.StatusSuspended:
	default:
		return 0, fmt.Errorf("unknown account status '%s': %w", status, shared.ErrInvalidInput)
	}
	if err := s.Users.UpdateStatus(ctx, userID, status); err != nil {
		return 0, err
	}
	if err := s.UserCache.Invalidate(ctx, userID); err != nil {
		s.logger().Warn().
			Err(err).
			Str("user", userID.String()).
			Msg("failed to invalidate cached user")
	}
	if status == server.StatusActive {
		return 0, nil
	}
	return s.Sessions.DestroyAll(ctx, userID)
}

// CountSessions reports the number of indexed sessions of userID.
func (s *AuthService) CountSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.Sessions.Count(ctx, userID)
}

// RevokeSessions ends every session of userID.
func (s *AuthService) RevokeSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.Sessions.DestroyAll(ctx, userID)
}

func (s *AuthService) logger() *zerolog.Logger {
	return log.OrNop(s.Logger)
}
