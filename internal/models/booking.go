package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking is one passenger's reservation against a ride. SeatsBooked never
// changes after creation; cancellation only flips Status.
type Booking struct {
	ID          string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RideID      string        `json:"rideId" gorm:"type:varchar(36);index;not null"`
	PassengerID string        `json:"passengerId" gorm:"type:varchar(36);index;not null"`
	SeatsBooked int           `json:"seatsBooked" gorm:"not null"`
	Status      BookingStatus `json:"status" gorm:"type:varchar(16);index;not null;default:'CONFIRMED'"`
	BookingTime time.Time     `json:"bookingTime" gorm:"not null"`
	CancelledAt *time.Time    `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
