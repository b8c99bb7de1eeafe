package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserType string

const (
	UserTypePassenger UserType = "passenger"
	UserTypeDriver    UserType = "driver"
	UserTypeAdmin     UserType = "admin"
)

type User struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email         string    `json:"email" gorm:"column:email;uniqueIndex;not null"`
	Password      string    `json:"-" gorm:"-"` // plain text, only held until HashPassword
	PasswordHash  string    `json:"-" gorm:"column:password_hash;not null"`
	FullName      string    `json:"fullName" gorm:"column:full_name"`
	Phone         string    `json:"phone" gorm:"column:phone"`
	Bio           string    `json:"bio" gorm:"column:bio"`
	ProfilePicURL string    `json:"profilePicUrl" gorm:"column:profile_pic_url"`
	VehicleModel  string    `json:"vehicleModel" gorm:"column:vehicle_model"`
	VehicleNumber string    `json:"vehicleNumber" gorm:"column:vehicle_number"`
	UserType      UserType  `json:"userType" gorm:"column:user_type;type:varchar(16);not null"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// IsDriver reports whether the user may offer rides.
func (u *User) IsDriver() bool {
	return u.UserType == UserTypeDriver || u.UserType == UserTypeAdmin
}

func (u *User) HashPassword() error {
	if u.Password == "" {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	u.Password = ""
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}
