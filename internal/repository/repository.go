// Package repository is the persistent store behind the ride and booking
// services. Records are keyed by opaque string ids; rides carry a version
// tag so that inventory writes can be conditioned on the version that was
// read.
package repository

import (
	"context"
	"errors"

	"github.com/chachabrian/shupool-backend/internal/models"
)

// ErrNotFound is returned when an id does not resolve to a record.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned by conditional writes when the stored
// record no longer matches the expected version or status.
var ErrVersionConflict = errors.New("version conflict")

// ErrDuplicate is returned when a unique column would be violated.
var ErrDuplicate = errors.New("duplicate record")

type RideRepository interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id string) (*models.Ride, error)
	// SaveInventory writes SeatsAvailable and Status only if the stored
	// version equals expectedVersion. On success ride.Version is advanced.
	SaveInventory(ctx context.Context, ride *models.Ride, expectedVersion int64) error
	ListByStatus(ctx context.Context, status models.RideStatus) ([]models.Ride, error)
	Search(ctx context.Context, origin, destination string, status models.RideStatus) ([]models.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]models.Ride, error)
}

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// TransitionStatus flips a booking from one status to another. It
	// returns ErrVersionConflict if the booking is not currently in from.
	TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus) (*models.Booking, error)
	ListByPassenger(ctx context.Context, passengerID string) ([]models.Booking, error)
	ListByRide(ctx context.Context, rideID string, status models.BookingStatus) ([]models.Booking, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// Store bundles the three repositories for wiring.
type Store struct {
	Rides    RideRepository
	Bookings BookingRepository
	Users    UserRepository
}
