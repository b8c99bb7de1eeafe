package services

import (
	"context"
	"errors"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
)

// Event types published after a successful state change.
const (
	EventBookingConfirmed  = "booking.confirmed"
	EventBookingCancelled  = "booking.cancelled"
	EventRideStatusChanged = "ride.status_changed"
)

// publishTimeout bounds a single publish after the state change is durable.
const publishTimeout = 5 * time.Second

// Event is the payload shared by every publisher.
type Event struct {
	Type           string            `json:"type"`
	RideID         string            `json:"rideId"`
	BookingID      string            `json:"bookingId,omitempty"`
	UserID         string            `json:"userId,omitempty"`
	Seats          int               `json:"seats,omitempty"`
	SeatsAvailable int               `json:"seatsAvailable"`
	RideStatus     models.RideStatus `json:"rideStatus,omitempty"`
	OccurredAt     time.Time         `json:"occurredAt"`
}

// EventPublisher delivers events to downstream consumers. Publishing is
// best effort: callers log failures and never undo the state change.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MultiPublisher fans an event out to every publisher and joins the errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func rideEvent(eventType string, ride *models.Ride) Event {
	return Event{
		Type:           eventType,
		RideID:         ride.ID,
		UserID:         ride.DriverID,
		SeatsAvailable: ride.SeatsAvailable,
		RideStatus:     ride.Status,
		OccurredAt:     time.Now().UTC(),
	}
}

func bookingEvent(eventType string, booking *models.Booking, ride *models.Ride) Event {
	ev := Event{
		Type:       eventType,
		RideID:     booking.RideID,
		BookingID:  booking.ID,
		UserID:     booking.PassengerID,
		Seats:      booking.SeatsBooked,
		OccurredAt: time.Now().UTC(),
	}
	if ride != nil {
		ev.SeatsAvailable = ride.SeatsAvailable
		ev.RideStatus = ride.Status
	}
	return ev
}
