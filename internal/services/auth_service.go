package services

import (
	"errors"
	"fmt"

	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/repositories"
	"stall_pos_backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// AuthService authenticates staff accounts for the dashboard and reporting
// endpoints.
type AuthService interface {
	Login(username, password string) (token string, user *models.StaffUser, err error)
	Register(username, password, fullName, role string) (*models.StaffUser, error)
}

type authService struct {
	staffRepo repositories.StaffRepository
	tx        repositories.TxRunner
	jwt       *utils.JWTManager
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(sr repositories.StaffRepository, tx repositories.TxRunner, jwt *utils.JWTManager) AuthService {
	return &authService{staffRepo: sr, tx: tx, jwt: jwt}
}

func (s *authService) Login(username, password string) (string, *models.StaffUser, error) {
	user, err := s.staffRepo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", nil, ErrBadCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrBadCredentials
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("generating access token: %w", err)
	}
	return token, user, nil
}

func (s *authService) Register(username, password, fullName, role string) (*models.StaffUser, error) {
	if username == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: username required and password must be at least 8 characters", ErrValidation)
	}
	if role == "" {
		role = "staff"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.StaffUser{
		Username:     username,
		PasswordHash: string(hash),
		FullName:     fullName,
		Role:         role,
	}
	err = s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		_, err := s.staffRepo.CreateUser(ex, user)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}
	return user, nil
}
