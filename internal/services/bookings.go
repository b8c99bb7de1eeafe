package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/chachabrian/shupool-backend/internal/repository"
)

type BookingOptions struct {
	// CompensationAttempts bounds how often an undo step is retried.
	CompensationAttempts int
	Backoff              time.Duration
}

// BookingService runs the booking sagas: seats are reserved on the ride
// first and the booking is written second, with the reserve undone if the
// write fails.
type BookingService struct {
	store     *repository.Store
	inventory *InventoryController
	idem      IdempotencyStore
	events    EventPublisher
	opts      BookingOptions
	now       func() time.Time
}

func NewBookingService(store *repository.Store, inventory *InventoryController, idem IdempotencyStore, events EventPublisher, opts BookingOptions) *BookingService {
	if opts.CompensationAttempts < 1 {
		opts.CompensationAttempts = 1
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &BookingService{
		store:     store,
		inventory: inventory,
		idem:      idem,
		events:    events,
		opts:      opts,
		now:       time.Now,
	}
}

// CreateBooking reserves seats on rideID for passengerID and records a
// CONFIRMED booking. When idemKey is set, a repeated call with the same key
// returns the booking created by the first one.
func (s *BookingService) CreateBooking(ctx context.Context, rideID, passengerID string, seats int, idemKey string) (*models.Booking, error) {
	if seats <= 0 {
		return nil, models.ErrInvalidSeatCount
	}
	if idemKey == "" || s.idem == nil {
		return s.createBooking(ctx, rideID, passengerID, seats)
	}

	key := fmt.Sprintf("idem:booking:%s:%s", passengerID, idemKey)
	previous, done, err := s.idem.Begin(ctx, key)
	if err != nil {
		return nil, err
	}
	if done {
		booking, err := s.store.Bookings.GetByID(ctx, previous)
		if err != nil {
			return nil, fmt.Errorf("load replayed booking %s: %w", previous, err)
		}
		if booking.RideID != rideID || booking.SeatsBooked != seats {
			return nil, fmt.Errorf("%w: key %s booked %d seats on ride %s", models.ErrIdempotencyReused, idemKey, booking.SeatsBooked, booking.RideID)
		}
		log.Printf("[bookings] replayed booking %s for key %s", booking.ID, idemKey)
		return booking, nil
	}

	booking, err := s.createBooking(ctx, rideID, passengerID, seats)
	if err != nil {
		if abortErr := s.idem.Abort(context.WithoutCancel(ctx), key); abortErr != nil {
			log.Printf("[bookings] failed to release idempotency key %s: %v", key, abortErr)
		}
		return nil, err
	}
	if err := s.idem.Complete(context.WithoutCancel(ctx), key, booking.ID); err != nil {
		log.Printf("[bookings] failed to store idempotency key %s: %v", key, err)
	}
	return booking, nil
}

func (s *BookingService) createBooking(ctx context.Context, rideID, passengerID string, seats int) (*models.Booking, error) {
	ride, err := s.store.Rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrRideNotFound
		}
		return nil, fmt.Errorf("load ride %s: %w", rideID, err)
	}
	if ride.DriverID == passengerID {
		return nil, fmt.Errorf("%w: drivers cannot book their own ride", models.ErrNotAuthorized)
	}

	ride, err = s.inventory.Reserve(ctx, rideID, seats)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		RideID:      rideID,
		PassengerID: passengerID,
		SeatsBooked: seats,
		Status:      models.BookingStatusConfirmed,
		BookingTime: s.now().UTC(),
	}
	if err := s.store.Bookings.Create(ctx, booking); err != nil {
		log.Printf("[bookings] booking write failed for ride %s, releasing %d seats: %v", rideID, seats, err)
		if compErr := s.releaseSeats(context.WithoutCancel(ctx), rideID, seats); compErr != nil {
			log.Printf("[bookings] CRITICAL: %d seats stranded on ride %s: %v", seats, rideID, compErr)
			return nil, fmt.Errorf("%w: %d seats on ride %s: %v", models.ErrCompensationFailed, seats, rideID, compErr)
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	// A ride cancelled between the reserve and the booking write may have
	// listed its bookings before this one existed.
	if err := s.checkRideStillLive(context.WithoutCancel(ctx), booking); err != nil {
		return nil, err
	}

	s.publish(ctx, bookingEvent(EventBookingConfirmed, booking, ride))
	return booking, nil
}

// CancelBooking cancels the requester's booking and returns its seats.
// The booking is claimed with a conditional status flip before any seats
// move, so of several concurrent cancels exactly one releases. Cancelling
// twice returns models.ErrAlreadyCancelled together with the booking.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, requesterID string) (*models.Booking, error) {
	booking, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrBookingNotFound
		}
		return nil, fmt.Errorf("load booking %s: %w", bookingID, err)
	}
	if booking.PassengerID != requesterID {
		return nil, models.ErrNotAuthorized
	}
	if booking.Status == models.BookingStatusCancelled {
		return booking, models.ErrAlreadyCancelled
	}

	claimed, err := s.store.Bookings.TransitionStatus(ctx, bookingID, models.BookingStatusConfirmed, models.BookingStatusCancelled)
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return claimed, models.ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}

	ride, err := s.inventory.Release(ctx, claimed.RideID, claimed.SeatsBooked)
	if err == nil {
		s.publish(ctx, bookingEvent(EventBookingCancelled, claimed, ride))
		return claimed, nil
	}

	if errors.Is(err, models.ErrRideClosed) {
		current, getErr := s.store.Rides.GetByID(ctx, claimed.RideID)
		if getErr == nil && current.Status == models.RideStatusCancelled {
			// The ride cancellation already returned every seat.
			s.publish(ctx, bookingEvent(EventBookingCancelled, claimed, current))
			return claimed, nil
		}
	}

	log.Printf("[bookings] release failed for booking %s, restoring it: %v", bookingID, err)
	if revertErr := s.restoreBooking(context.WithoutCancel(ctx), bookingID); revertErr != nil {
		log.Printf("[bookings] CRITICAL: booking %s cancelled but %d seats not returned to ride %s: %v",
			bookingID, claimed.SeatsBooked, claimed.RideID, revertErr)
		return nil, fmt.Errorf("%w: booking %s: %v", models.ErrCompensationFailed, bookingID, revertErr)
	}
	return nil, err
}

// CancelAllForRide cancels every confirmed booking of a ride that has been
// cancelled. Seats are not touched: the ride cancellation already reset the
// counter. Bookings cancelled concurrently by their passenger are skipped.
func (s *BookingService) CancelAllForRide(ctx context.Context, rideID string) (int, error) {
	bookings, err := s.store.Bookings.ListByRide(ctx, rideID, models.BookingStatusConfirmed)
	if err != nil {
		return 0, fmt.Errorf("list bookings of ride %s: %w", rideID, err)
	}

	var errs []error
	cancelled := 0
	for _, b := range bookings {
		updated, err := s.store.Bookings.TransitionStatus(ctx, b.ID, models.BookingStatusConfirmed, models.BookingStatusCancelled)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("booking %s: %w", b.ID, err))
			continue
		}
		cancelled++
		s.publish(ctx, bookingEvent(EventBookingCancelled, updated, nil))
	}
	if len(errs) > 0 {
		log.Printf("[bookings] %d bookings of ride %s could not be cancelled", len(errs), rideID)
	}
	return cancelled, errors.Join(errs...)
}

func (s *BookingService) ListForPassenger(ctx context.Context, passengerID string) ([]models.Booking, error) {
	return s.store.Bookings.ListByPassenger(ctx, passengerID)
}

// ListForRide returns all bookings of a ride. Only its driver may see them.
func (s *BookingService) ListForRide(ctx context.Context, rideID, requesterID string) ([]models.Booking, error) {
	ride, err := s.store.Rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrRideNotFound
		}
		return nil, err
	}
	if ride.DriverID != requesterID {
		return nil, models.ErrNotAuthorized
	}
	return s.store.Bookings.ListByRide(ctx, rideID, "")
}

// GetForParticipant returns a booking to its passenger or to the driver of
// the booked ride.
func (s *BookingService) GetForParticipant(ctx context.Context, bookingID, requesterID string) (*models.Booking, error) {
	booking, err := s.store.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrBookingNotFound
		}
		return nil, err
	}
	if booking.PassengerID == requesterID {
		return booking, nil
	}
	ride, err := s.store.Rides.GetByID(ctx, booking.RideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrNotAuthorized
		}
		return nil, err
	}
	if ride.DriverID != requesterID {
		return nil, models.ErrNotAuthorized
	}
	return booking, nil
}

// checkRideStillLive re-reads the booked ride once the booking is written.
// If the ride was cancelled meanwhile the booking is cancelled too and
// ErrRideClosed is returned. If the ride cannot be read the booking is
// undone, since nothing else would cancel it later.
func (s *BookingService) checkRideStillLive(ctx context.Context, booking *models.Booking) error {
	var current *models.Ride
	readErr := s.retry(ctx, func() error {
		ride, err := s.store.Rides.GetByID(ctx, booking.RideID)
		if err != nil {
			return err
		}
		current = ride
		return nil
	})
	if readErr == nil && current.Status != models.RideStatusCancelled {
		return nil
	}

	if err := s.cancelOwnBooking(ctx, booking.ID); err != nil {
		log.Printf("[bookings] CRITICAL: booking %s left confirmed on ride %s: %v", booking.ID, booking.RideID, err)
		return fmt.Errorf("%w: booking %s: %v", models.ErrCompensationFailed, booking.ID, err)
	}
	if readErr == nil {
		return fmt.Errorf("%w: ride %s was cancelled", models.ErrRideClosed, booking.RideID)
	}

	log.Printf("[bookings] could not re-read ride %s, undoing booking %s: %v", booking.RideID, booking.ID, readErr)
	if err := s.releaseSeats(ctx, booking.RideID, booking.SeatsBooked); err != nil {
		log.Printf("[bookings] CRITICAL: %d seats stranded on ride %s: %v", booking.SeatsBooked, booking.RideID, err)
		return fmt.Errorf("%w: %d seats on ride %s: %v", models.ErrCompensationFailed, booking.SeatsBooked, booking.RideID, err)
	}
	return fmt.Errorf("load ride %s: %w", booking.RideID, readErr)
}

// cancelOwnBooking flips a booking this saga wrote to CANCELLED. A booking
// already cancelled by the ride cascade counts as done.
func (s *BookingService) cancelOwnBooking(ctx context.Context, bookingID string) error {
	return s.retry(ctx, func() error {
		_, err := s.store.Bookings.TransitionStatus(ctx, bookingID, models.BookingStatusConfirmed, models.BookingStatusCancelled)
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil
		}
		return err
	})
}

// releaseSeats undoes a reserve. A ride that closed in the meantime needs
// nothing back.
func (s *BookingService) releaseSeats(ctx context.Context, rideID string, seats int) error {
	return s.retry(ctx, func() error {
		_, err := s.inventory.Release(ctx, rideID, seats)
		if errors.Is(err, models.ErrRideClosed) {
			return nil
		}
		return err
	})
}

// restoreBooking undoes a cancel flip whose release did not go through.
func (s *BookingService) restoreBooking(ctx context.Context, bookingID string) error {
	return s.retry(ctx, func() error {
		_, err := s.store.Bookings.TransitionStatus(ctx, bookingID, models.BookingStatusCancelled, models.BookingStatusConfirmed)
		return err
	})
}

func (s *BookingService) retry(ctx context.Context, step func() error) error {
	var err error
	for attempt := 1; attempt <= s.opts.CompensationAttempts; attempt++ {
		err = step()
		if err == nil || permanent(err) {
			return err
		}
		if attempt < s.opts.CompensationAttempts {
			_ = sleepCtx(ctx, jitter(s.opts.Backoff*time.Duration(attempt)))
		}
	}
	return err
}

// permanent errors will not go away on retry.
func permanent(err error) bool {
	return errors.Is(err, models.ErrInventoryCorruption) ||
		errors.Is(err, models.ErrRideNotFound) ||
		errors.Is(err, models.ErrInvalidSeatCount) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrVersionConflict)
}

func (s *BookingService) publish(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("[bookings] failed to publish %s for ride %s: %v", event.Type, event.RideID, err)
	}
}
