//go:generate go run go.uber.org/mock/mockgen -source=user_service.go -destination=../mocks/mock_user_service.go -package=mocks
package services

import (
	"github.com/samber/lo"

	"you-chat/domain"
	"you-chat/repositories"
)

type IUserService interface {
	ListOthers(userID string) ([]domain.Profile, error)
}

// UserService exposes the user directory with password hashes and tokens
// stripped: callers only ever see public profiles.
type UserService struct {
	userRepository repositories.IUserRepository
}

func NewUserService(repo repositories.IUserRepository) *UserService {
	return &UserService{userRepository: repo}
}

func (s *UserService) ListOthers(userID string) ([]domain.Profile, error) {
	users, err := s.userRepository.ListOthers(userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u domain.User, _ int) domain.Profile {
		return u.Profile()
	}), nil
}
