package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/google/uuid"
)

// NewMemoryStore returns repositories that keep records in process memory.
// It is used by tests and by STORE_DRIVER=memory for local runs. Every
// read and write copies the record so callers never share state with the
// store.
func NewMemoryStore() *Store {
	return &Store{
		Rides:    &MemoryRideRepo{rides: make(map[string]models.Ride)},
		Bookings: &MemoryBookingRepo{bookings: make(map[string]models.Booking)},
		Users:    &MemoryUserRepo{users: make(map[string]models.User)},
	}
}

type MemoryRideRepo struct {
	mu    sync.RWMutex
	rides map[string]models.Ride
}

func (r *MemoryRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ride.ID == "" {
		ride.ID = uuid.NewString()
	}
	if _, ok := r.rides[ride.ID]; ok {
		return ErrDuplicate
	}
	if ride.Version == 0 {
		ride.Version = 1
	}
	now := time.Now()
	ride.CreatedAt, ride.UpdatedAt = now, now
	r.rides[ride.ID] = *ride
	return nil
}

func (r *MemoryRideRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ride, ok := r.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ride, nil
}

func (r *MemoryRideRepo) SaveInventory(ctx context.Context, ride *models.Ride, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rides[ride.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	stored.SeatsAvailable = ride.SeatsAvailable
	stored.Status = ride.Status
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = time.Now()
	r.rides[ride.ID] = stored
	ride.Version = stored.Version
	ride.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRideRepo) ListByStatus(ctx context.Context, status models.RideStatus) ([]models.Ride, error) {
	return r.filter(func(ride models.Ride) bool { return ride.Status == status }, false), nil
}

func (r *MemoryRideRepo) Search(ctx context.Context, origin, destination string, status models.RideStatus) ([]models.Ride, error) {
	origin, destination = strings.ToLower(origin), strings.ToLower(destination)
	return r.filter(func(ride models.Ride) bool {
		return ride.Status == status &&
			strings.Contains(strings.ToLower(ride.Origin), origin) &&
			strings.Contains(strings.ToLower(ride.Destination), destination)
	}, false), nil
}

func (r *MemoryRideRepo) ListByDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	return r.filter(func(ride models.Ride) bool { return ride.DriverID == driverID }, true), nil
}

func (r *MemoryRideRepo) filter(keep func(models.Ride) bool, newestFirst bool) []models.Ride {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Ride, 0)
	for _, ride := range r.rides {
		if keep(ride) {
			out = append(out, ride)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].DepartureTime.After(out[j].DepartureTime)
		}
		return out[i].DepartureTime.Before(out[j].DepartureTime)
	})
	return out
}

type MemoryBookingRepo struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
}

func (r *MemoryBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if _, ok := r.bookings[booking.ID]; ok {
		return ErrDuplicate
	}
	now := time.Now()
	booking.CreatedAt, booking.UpdatedAt = now, now
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *MemoryBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &booking, nil
}

func (r *MemoryBookingRepo) TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	booking, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if booking.Status != from {
		return &booking, ErrVersionConflict
	}
	now := time.Now()
	booking.Status = to
	booking.UpdatedAt = now
	if to == models.BookingStatusCancelled {
		booking.CancelledAt = &now
	} else {
		booking.CancelledAt = nil
	}
	r.bookings[id] = booking
	return &booking, nil
}

func (r *MemoryBookingRepo) ListByPassenger(ctx context.Context, passengerID string) ([]models.Booking, error) {
	return r.filter(func(b models.Booking) bool { return b.PassengerID == passengerID }, true), nil
}

func (r *MemoryBookingRepo) ListByRide(ctx context.Context, rideID string, status models.BookingStatus) ([]models.Booking, error) {
	return r.filter(func(b models.Booking) bool {
		return b.RideID == rideID && (status == "" || b.Status == status)
	}, false), nil
}

func (r *MemoryBookingRepo) filter(keep func(models.Booking) bool, newestFirst bool) []models.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Booking, 0)
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].BookingTime.After(out[j].BookingTime)
		}
		return out[i].BookingTime.Before(out[j].BookingTime)
	})
	return out
}

type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func (r *MemoryUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepo) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}
