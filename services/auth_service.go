//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"you-chat/auth"
	"you-chat/domain"
	"you-chat/errors"
	"you-chat/repositories"
)

type IAuthService interface {
	Register(fullName, email, password string) (domain.User, error)
	Login(email, password string) (domain.User, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenManager
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(fullName, email, password string) (domain.User, error) {
	valReq := auth.RegisterRequest{
		FullName: fullName,
		Email:    email,
		Password: password,
	}

	// 1. Validate business rules (email format, password complexity)
	// We check this before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return domain.User{}, err
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	user, err := s.userRepository.CreateUser(fullName, email, hashedPassword)
	if err != nil {
		return domain.User{}, err // Will propagate ErrUserAlreadyExists if email is taken
	}

	// 4. Generate and persist the initial session token
	return s.issueToken(user)
}

func (s *AuthService) Login(email, password string) (domain.User, error) {
	// 1. Retrieve user by email from storage
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return domain.User{}, errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return domain.User{}, errors.ErrInvalidCredentials
	}

	// 3. Issue a fresh JWT token for the session
	return s.issueToken(user)
}

func (s *AuthService) issueToken(user domain.User) (domain.User, error) {
	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return domain.User{}, errors.ErrTokenGeneration
	}
	if err := s.userRepository.UpdateToken(user.ID, token); err != nil {
		return domain.User{}, err
	}
	user.Token = token
	return user, nil
}
