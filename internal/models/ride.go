package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RideStatus string

const (
	RideStatusOpen      RideStatus = "OPEN"
	RideStatusFull      RideStatus = "FULL"
	RideStatusCancelled RideStatus = "CANCELLED"
	RideStatusCompleted RideStatus = "COMPLETED"
)

// ParseRideStatus accepts a status name in any case.
func ParseRideStatus(s string) (RideStatus, bool) {
	switch st := RideStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case RideStatusOpen, RideStatusFull, RideStatusCancelled, RideStatusCompleted:
		return st, true
	}
	return "", false
}

type Ride struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	DriverID       string     `json:"driverId" gorm:"type:varchar(36);index;not null"`
	Origin         string     `json:"origin" gorm:"not null"`
	Destination    string     `json:"destination" gorm:"not null"`
	DepartureTime  time.Time  `json:"departureTime" gorm:"not null"`
	SeatsOffered   int        `json:"seatsOffered" gorm:"not null"`
	SeatsAvailable int        `json:"seatsAvailable" gorm:"not null"`
	PricePerSeat   float64    `json:"pricePerSeat" gorm:"not null"`
	Status         RideStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'OPEN'"`
	// Version is bumped by every inventory write and guards conditional saves.
	Version   int64     `json:"-" gorm:"not null;default:1"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Ride) TableName() string {
	return "rides"
}

// BeforeCreate assigns the opaque id when the caller left it empty
func (r *Ride) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal reports whether the ride is CANCELLED or COMPLETED.
func (r *Ride) IsTerminal() bool {
	return r.Status == RideStatusCancelled || r.Status == RideStatusCompleted
}

// DerivedStatus is the status implied by the seat counter. Terminal states
// override the derivation.
func (r *Ride) DerivedStatus() RideStatus {
	if r.IsTerminal() {
		return r.Status
	}
	if r.SeatsAvailable == 0 {
		return RideStatusFull
	}
	return RideStatusOpen
}
