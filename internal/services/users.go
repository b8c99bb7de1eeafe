package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strings"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/chachabrian/shupool-backend/internal/repository"
	"github.com/chachabrian/shupool-backend/pkg/utils"
)

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"fullName" binding:"required"`
	Phone    string `json:"phone"`
	UserType string `json:"userType" binding:"required,oneof=passenger driver"`
}

type ProfileUpdate struct {
	FullName      *string `json:"fullName"`
	Phone         *string `json:"phone"`
	Bio           *string `json:"bio"`
	VehicleModel  *string `json:"vehicleModel"`
	VehicleNumber *string `json:"vehicleNumber"`
}

// PublicProfile is what other users may see of an account.
type PublicProfile struct {
	ID            string          `json:"id"`
	FullName      string          `json:"fullName"`
	Bio           string          `json:"bio"`
	ProfilePicURL string          `json:"profilePicUrl"`
	VehicleModel  string          `json:"vehicleModel,omitempty"`
	UserType      models.UserType `json:"userType"`
}

// UserService handles accounts and issues access tokens.
type UserService struct {
	users     repository.UserRepository
	storage   *Storage
	jwtSecret string
	tokenTTL  time.Duration
}

func NewUserService(users repository.UserRepository, storage *Storage, jwtSecret string, tokenTTL time.Duration) *UserService {
	return &UserService{users: users, storage: storage, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Register creates an account and returns it with a fresh token.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	user := &models.User{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: in.Password,
		FullName: strings.TrimSpace(in.FullName),
		Phone:    in.Phone,
		UserType: models.UserType(in.UserType),
	}
	if user.UserType != models.UserTypePassenger && user.UserType != models.UserTypeDriver {
		return nil, "", fmt.Errorf("%w: unknown user type %q", models.ErrInvalidInput, in.UserType)
	}
	if err := user.HashPassword(); err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", models.ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := utils.GenerateToken(user, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	log.Printf("[users] registered %s user %s", user.UserType, user.ID)
	return user, token, nil
}

// Login checks the password and returns the user with a fresh token. An
// unknown email and a wrong password fail the same way.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", models.ErrInvalidCredential
		}
		return nil, "", err
	}
	if err := user.CheckPassword(password); err != nil {
		return nil, "", models.ErrInvalidCredential
	}

	token, err := utils.GenerateToken(user, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.ErrUserNotFound
	}
	return user, err
}

func (s *UserService) PublicProfile(ctx context.Context, userID string) (*PublicProfile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{
		ID:            user.ID,
		FullName:      user.FullName,
		Bio:           user.Bio,
		ProfilePicURL: user.ProfilePicURL,
		VehicleModel:  user.VehicleModel,
		UserType:      user.UserType,
	}, nil
}

// UpdateProfile applies the non-nil fields of upd.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if upd.FullName != nil {
		name := strings.TrimSpace(*upd.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: full name cannot be empty", models.ErrInvalidInput)
		}
		user.FullName = name
	}
	if upd.Phone != nil {
		user.Phone = *upd.Phone
	}
	if upd.Bio != nil {
		user.Bio = *upd.Bio
	}
	if upd.VehicleModel != nil {
		user.VehicleModel = *upd.VehicleModel
	}
	if upd.VehicleNumber != nil {
		user.VehicleNumber = *upd.VehicleNumber
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user %s: %w", userID, err)
	}
	return user, nil
}

// SetProfilePicture uploads file and points the profile at it. The previous
// picture is removed once the new one is saved.
func (s *UserService) SetProfilePicture(ctx context.Context, userID string, file *multipart.FileHeader) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	url, err := s.storage.UploadImage(file, "profiles")
	if err != nil {
		return nil, err
	}

	previous := user.ProfilePicURL
	user.ProfilePicURL = url
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user %s: %w", userID, err)
	}
	if previous != "" {
		if err := s.storage.DeleteImage(previous); err != nil {
			log.Printf("[users] failed to delete old picture of %s: %v", userID, err)
		}
	}
	return user, nil
}
