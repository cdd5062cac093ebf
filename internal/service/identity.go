package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dtsarev/minichat/internal/models"
	"github.com/dtsarev/minichat/internal/repository"
)

// IdentityService resolves accounts from the external login provider and
// owns user profile mutations.
type IdentityService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewIdentityService(users repository.UserRepository, logger *zap.Logger) *IdentityService {
	return &IdentityService{users: users, logger: logger}
}

// FindOrCreate looks an account up by provider id and creates it on first
// login. Duplicate prevention lives in the storage uniqueness constraint,
// not in-process locking: handlers are stateless across requests, so two
// concurrent first logins can both miss the lookup. The loser's insert
// hits the constraint, which proves the row exists, so we re-read once
// and return the winner's row.
func (s *IdentityService) FindOrCreate(ctx context.Context, googleID, email string) (*models.User, error) {
	user, err := s.users.GetByGoogleID(ctx, googleID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		return user, nil
	}

	user, err = s.users.Create(ctx, googleID, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrDuplicateUser) {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("lost first-login race, re-reading user",
		zap.String("google_id", googleID))
	user, err = s.users.GetByGoogleID(ctx, googleID)
	if err != nil {
		return nil, fmt.Errorf("re-read user after conflict: %w", err)
	}
	if user == nil {
		// The conflict said the row exists; its absence now means the
		// email constraint fired instead (same email, different provider
		// id). Surface it as a conflict on the account, not a crash.
		return nil, errUnknownUser()
	}
	return user, nil
}

// CurrentUser returns the full account record for an authenticated user.
func (s *IdentityService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	if user == nil {
		return nil, errUserNotFound()
	}
	return user, nil
}

// SetNickname updates the display nickname and returns the fresh record.
func (s *IdentityService) SetNickname(ctx context.Context, userID uuid.UUID, nickname string) (*models.User, error) {
	if nickname == "" {
		return nil, errFieldRequired("nickname")
	}
	user, err := s.users.UpdateNickname(ctx, userID, nickname)
	if err != nil {
		return nil, fmt.Errorf("set nickname: %w", err)
	}
	if user == nil {
		return nil, errUserNotFound()
	}
	return user, nil
}

// SearchByNickname returns id+nickname pairs ranked by relevance. The
// current user is not filtered out; finding yourself is allowed.
func (s *IdentityService) SearchByNickname(ctx context.Context, query string) ([]models.UserSummary, error) {
	if query == "" {
		return nil, errFieldRequired("nickname")
	}
	users, err := s.users.SearchByNickname(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search by nickname: %w", err)
	}
	return users, nil
}
