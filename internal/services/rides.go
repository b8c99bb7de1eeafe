package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/chachabrian/shupool-backend/internal/repository"
)

type CreateRideInput struct {
	Origin        string    `json:"origin" binding:"required"`
	Destination   string    `json:"destination" binding:"required"`
	DepartureTime time.Time `json:"departureTime" binding:"required"`
	SeatsOffered  int       `json:"seatsOffered" binding:"required"`
	PricePerSeat  float64   `json:"pricePerSeat"`
}

// RideService owns the ride lifecycle. Status changes go through the
// inventory controller so that status and seat counter are written together.
type RideService struct {
	store     *repository.Store
	inventory *InventoryController
	bookings  *BookingService
	events    EventPublisher
	now       func() time.Time
}

func NewRideService(store *repository.Store, inventory *InventoryController, bookings *BookingService, events EventPublisher) *RideService {
	if events == nil {
		events = NopPublisher{}
	}
	return &RideService{
		store:     store,
		inventory: inventory,
		bookings:  bookings,
		events:    events,
		now:       time.Now,
	}
}

// CreateRide publishes a new OPEN ride with every seat available.
func (s *RideService) CreateRide(ctx context.Context, driverID string, in CreateRideInput) (*models.Ride, error) {
	driver, err := s.store.Users.GetByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("load driver %s: %w", driverID, err)
	}
	if !driver.IsDriver() {
		return nil, fmt.Errorf("%w: only drivers can offer rides", models.ErrNotAuthorized)
	}

	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	switch {
	case in.Origin == "" || in.Destination == "":
		return nil, fmt.Errorf("%w: origin and destination are required", models.ErrInvalidInput)
	case in.SeatsOffered <= 0:
		return nil, models.ErrInvalidSeatCount
	case in.PricePerSeat < 0:
		return nil, fmt.Errorf("%w: price per seat cannot be negative", models.ErrInvalidInput)
	case !in.DepartureTime.After(s.now()):
		return nil, fmt.Errorf("%w: departure time must be in the future", models.ErrInvalidInput)
	}

	ride := &models.Ride{
		DriverID:       driverID,
		Origin:         in.Origin,
		Destination:    in.Destination,
		DepartureTime:  in.DepartureTime.UTC(),
		SeatsOffered:   in.SeatsOffered,
		SeatsAvailable: in.SeatsOffered,
		PricePerSeat:   in.PricePerSeat,
		Status:         models.RideStatusOpen,
	}
	if err := s.store.Rides.Create(ctx, ride); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}
	log.Printf("[rides] driver %s offered ride %s with %d seats", driverID, ride.ID, ride.SeatsOffered)
	return ride, nil
}

// SetStatus moves a ride to status on behalf of its driver. Cancelling
// returns every seat in the same write and then cancels the ride's
// confirmed bookings; asking to cancel an already cancelled ride re-runs
// that second step.
func (s *RideService) SetStatus(ctx context.Context, rideID, requesterID string, status models.RideStatus) (*models.Ride, error) {
	ride, err := s.store.Rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrRideNotFound
		}
		return nil, fmt.Errorf("load ride %s: %w", rideID, err)
	}
	if ride.DriverID != requesterID {
		return nil, models.ErrNotAuthorized
	}

	var changed bool
	updated, err := s.inventory.Transition(ctx, rideID, func(r *models.Ride) error {
		changed = false
		if err := applyStatus(r, status, s.now()); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == models.RideStatusCancelled {
		n, err := s.bookings.CancelAllForRide(ctx, rideID)
		if err != nil {
			log.Printf("[rides] ride %s cancelled, %d bookings cancelled, some failed: %v", rideID, n, err)
			return nil, fmt.Errorf("cancel bookings of ride %s: %w", rideID, err)
		}
		if n > 0 {
			log.Printf("[rides] ride %s cancelled, %d bookings cancelled", rideID, n)
		}
	}
	if changed {
		s.publish(ctx, rideEvent(EventRideStatusChanged, updated))
	}
	return updated, nil
}

// applyStatus is the ride state machine. OPEN and FULL are derived from the
// seat counter, so a driver may only ask for the one that already holds.
func applyStatus(r *models.Ride, to models.RideStatus, now time.Time) error {
	if r.Status == models.RideStatusCancelled && to == models.RideStatusCancelled {
		return errNoChange
	}
	if r.IsTerminal() {
		return fmt.Errorf("%w: ride is %s", models.ErrInvalidTransition, r.Status)
	}

	switch to {
	case models.RideStatusOpen, models.RideStatusFull:
		if to != r.DerivedStatus() {
			return fmt.Errorf("%w: ride has %d seats available, cannot be %s", models.ErrInvalidTransition, r.SeatsAvailable, to)
		}
		if r.Status == to {
			return errNoChange
		}
		r.Status = to
	case models.RideStatusCancelled:
		r.Status = models.RideStatusCancelled
		r.SeatsAvailable = r.SeatsOffered
	case models.RideStatusCompleted:
		if now.Before(r.DepartureTime) {
			return models.ErrRideNotDeparted
		}
		r.Status = models.RideStatusCompleted
	default:
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidTransition, to)
	}
	return nil
}

func (s *RideService) Get(ctx context.Context, rideID string) (*models.Ride, error) {
	ride, err := s.store.Rides.GetByID(ctx, rideID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.ErrRideNotFound
	}
	return ride, err
}

func (s *RideService) ListOpen(ctx context.Context) ([]models.Ride, error) {
	return s.store.Rides.ListByStatus(ctx, models.RideStatusOpen)
}

// Search matches open rides whose origin and destination contain the given
// text, ignoring case. Empty terms match everything.
func (s *RideService) Search(ctx context.Context, origin, destination string) ([]models.Ride, error) {
	return s.store.Rides.Search(ctx, strings.TrimSpace(origin), strings.TrimSpace(destination), models.RideStatusOpen)
}

func (s *RideService) ListForDriver(ctx context.Context, driverID string) ([]models.Ride, error) {
	return s.store.Rides.ListByDriver(ctx, driverID)
}

func (s *RideService) publish(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("[rides] failed to publish %s for ride %s: %v", event.Type, event.RideID, err)
	}
}
