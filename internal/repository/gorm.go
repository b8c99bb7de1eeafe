package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"gorm.io/gorm"
)

// NewGormStore returns repositories backed by db.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Rides:    &GormRideRepo{db: db},
		Bookings: &GormBookingRepo{db: db},
		Users:    &GormUserRepo{db: db},
	}
}

type GormRideRepo struct {
	db *gorm.DB
}

func (r *GormRideRepo) Create(ctx context.Context, ride *models.Ride) error {
	if ride.Version == 0 {
		ride.Version = 1
	}
	return r.db.WithContext(ctx).Create(ride).Error
}

func (r *GormRideRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	var ride models.Ride
	if err := r.db.WithContext(ctx).First(&ride, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ride, nil
}

func (r *GormRideRepo) SaveInventory(ctx context.Context, ride *models.Ride, expectedVersion int64) error {
	res := r.db.WithContext(ctx).Model(&models.Ride{}).
		Where("id = ? AND version = ?", ride.ID, expectedVersion).
		Updates(map[string]interface{}{
			"seats_available": ride.SeatsAvailable,
			"status":          ride.Status,
			"version":         expectedVersion + 1,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the row is gone or somebody else won the race.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Ride{}).Where("id = ?", ride.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	ride.Version = expectedVersion + 1
	return nil
}

func (r *GormRideRepo) ListByStatus(ctx context.Context, status models.RideStatus) ([]models.Ride, error) {
	var rides []models.Ride
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("departure_time ASC").
		Find(&rides).Error
	return rides, err
}

func (r *GormRideRepo) Search(ctx context.Context, origin, destination string, status models.RideStatus) ([]models.Ride, error) {
	var rides []models.Ride
	query := r.db.WithContext(ctx).Where("status = ?", status)
	if origin != "" {
		query = query.Where("LOWER(origin) LIKE ?", "%"+strings.ToLower(origin)+"%")
	}
	if destination != "" {
		query = query.Where("LOWER(destination) LIKE ?", "%"+strings.ToLower(destination)+"%")
	}
	err := query.Order("departure_time ASC").Find(&rides).Error
	return rides, err
}

func (r *GormRideRepo) ListByDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	var rides []models.Ride
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("departure_time DESC").
		Find(&rides).Error
	return rides, err
}

type GormBookingRepo struct {
	db *gorm.DB
}

func (r *GormBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepo) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *GormBookingRepo) TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus) (*models.Booking, error) {
	updates := map[string]interface{}{"status": to}
	if to == models.BookingStatusCancelled {
		updates["cancelled_at"] = time.Now()
	} else {
		updates["cancelled_at"] = nil
	}
	res := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	booking, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return booking, ErrVersionConflict
	}
	return booking, nil
}

func (r *GormBookingRepo) ListByPassenger(ctx context.Context, passengerID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("passenger_id = ?", passengerID).
		Order("booking_time DESC").
		Find(&bookings).Error
	return bookings, err
}

func (r *GormBookingRepo) ListByRide(ctx context.Context, rideID string, status models.BookingStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	query := r.db.WithContext(ctx).Where("ride_id = ?", rideID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("booking_time ASC").Find(&bookings).Error
	return bookings, err
}

type GormUserRepo struct {
	db *gorm.DB
}

func (r *GormUserRepo) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *GormUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Update persists all profile fields, including empty strings.
func (r *GormUserRepo) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}
