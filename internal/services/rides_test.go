package services

import (
	"context"
	"testing"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addUser(t *testing.T, env *testEnv, id string, userType models.UserType) {
	t.Helper()
	require.NoError(t, env.store.Users.Create(context.Background(), &models.User{
		ID:       id,
		Email:    id + "@example.com",
		FullName: id,
		UserType: userType,
	}))
}

func TestCreateRide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	addUser(t, env, "driver", models.UserTypeDriver)
	addUser(t, env, "alice", models.UserTypePassenger)

	in := CreateRideInput{
		Origin:        " Nairobi ",
		Destination:   "Mombasa",
		DepartureTime: time.Now().Add(time.Hour),
		SeatsOffered:  3,
		PricePerSeat:  1200,
	}
	ride, err := env.rides.CreateRide(ctx, "driver", in)
	require.NoError(t, err)
	assert.NotEmpty(t, ride.ID)
	assert.Equal(t, "Nairobi", ride.Origin)
	assert.Equal(t, 3, ride.SeatsAvailable)
	assert.Equal(t, models.RideStatusOpen, ride.Status)

	_, err = env.rides.CreateRide(ctx, "alice", in)
	assert.ErrorIs(t, err, models.ErrNotAuthorized)

	_, err = env.rides.CreateRide(ctx, "ghost", in)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	bad := in
	bad.SeatsOffered = 0
	_, err = env.rides.CreateRide(ctx, "driver", bad)
	assert.ErrorIs(t, err, models.ErrInvalidSeatCount)

	bad = in
	bad.DepartureTime = time.Now().Add(-time.Hour)
	_, err = env.rides.CreateRide(ctx, "driver", bad)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	bad = in
	bad.Destination = "  "
	_, err = env.rides.CreateRide(ctx, "driver", bad)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSetStatusRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.newRide(t, "driver", 3)

	_, err := env.rides.SetStatus(ctx, ride.ID, "mallory", models.RideStatusCancelled)
	assert.ErrorIs(t, err, models.ErrNotAuthorized)

	// Past departure so only ownership stands in the way of completing.
	env.rides.now = func() time.Time { return ride.DepartureTime.Add(time.Hour) }
	_, err = env.rides.SetStatus(ctx, ride.ID, "mallory", models.RideStatusCompleted)
	assert.ErrorIs(t, err, models.ErrNotAuthorized)

	got := env.ride(t, ride.ID)
	assert.Equal(t, models.RideStatusOpen, got.Status)
	assert.Equal(t, 3, got.SeatsAvailable)
	assert.Equal(t, ride.Version, got.Version)
	assert.Empty(t, env.events.types())

	done, err := env.rides.SetStatus(ctx, ride.ID, "driver", models.RideStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCompleted, done.Status)

	_, err = env.rides.SetStatus(ctx, "missing", "driver", models.RideStatusCancelled)
	assert.ErrorIs(t, err, models.ErrRideNotFound)
}

func TestApplyStatus(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	now := time.Now()

	tests := []struct {
		name      string
		ride      models.Ride
		to        models.RideStatus
		wantErr   error
		want      models.RideStatus
		wantSeats int
	}{
		{"open stays open", models.Ride{SeatsOffered: 3, SeatsAvailable: 2, Status: models.RideStatusOpen}, models.RideStatusOpen, errNoChange, models.RideStatusOpen, 2},
		{"open with seats cannot be full", models.Ride{SeatsOffered: 3, SeatsAvailable: 2, Status: models.RideStatusOpen}, models.RideStatusFull, models.ErrInvalidTransition, models.RideStatusOpen, 2},
		{"full with no seats cannot open", models.Ride{SeatsOffered: 3, SeatsAvailable: 0, Status: models.RideStatusFull}, models.RideStatusOpen, models.ErrInvalidTransition, models.RideStatusFull, 0},
		{"drifted status is corrected", models.Ride{SeatsOffered: 3, SeatsAvailable: 0, Status: models.RideStatusOpen}, models.RideStatusFull, nil, models.RideStatusFull, 0},
		{"cancel restores seats", models.Ride{SeatsOffered: 3, SeatsAvailable: 1, Status: models.RideStatusOpen}, models.RideStatusCancelled, nil, models.RideStatusCancelled, 3},
		{"cancel full ride", models.Ride{SeatsOffered: 3, SeatsAvailable: 0, Status: models.RideStatusFull}, models.RideStatusCancelled, nil, models.RideStatusCancelled, 3},
		{"cancel again is a no-op", models.Ride{SeatsOffered: 3, SeatsAvailable: 3, Status: models.RideStatusCancelled}, models.RideStatusCancelled, errNoChange, models.RideStatusCancelled, 3},
		{"complete after departure", models.Ride{SeatsOffered: 3, SeatsAvailable: 1, Status: models.RideStatusOpen, DepartureTime: past}, models.RideStatusCompleted, nil, models.RideStatusCompleted, 1},
		{"complete before departure", models.Ride{SeatsOffered: 3, SeatsAvailable: 1, Status: models.RideStatusOpen, DepartureTime: future}, models.RideStatusCompleted, models.ErrRideNotDeparted, models.RideStatusOpen, 1},
		{"cancelled cannot reopen", models.Ride{SeatsOffered: 3, SeatsAvailable: 3, Status: models.RideStatusCancelled}, models.RideStatusOpen, models.ErrInvalidTransition, models.RideStatusCancelled, 3},
		{"completed cannot be cancelled", models.Ride{SeatsOffered: 3, SeatsAvailable: 1, Status: models.RideStatusCompleted}, models.RideStatusCancelled, models.ErrInvalidTransition, models.RideStatusCompleted, 1},
		{"unknown status", models.Ride{SeatsOffered: 3, SeatsAvailable: 1, Status: models.RideStatusOpen}, models.RideStatus("PAUSED"), models.ErrInvalidTransition, models.RideStatusOpen, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ride := tt.ride
			err := applyStatus(&ride, tt.to, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, ride.Status)
			assert.Equal(t, tt.wantSeats, ride.SeatsAvailable)
		})
	}
}

func TestCancelRideCascadesToBookings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.newRide(t, "driver", 4)

	a, err := env.bookings.CreateBooking(ctx, ride.ID, "alice", 2, "")
	require.NoError(t, err)
	b, err := env.bookings.CreateBooking(ctx, ride.ID, "bob", 1, "")
	require.NoError(t, err)
	c, err := env.bookings.CreateBooking(ctx, ride.ID, "carol", 1, "")
	require.NoError(t, err)
	_, err = env.bookings.CancelBooking(ctx, c.ID, "carol")
	require.NoError(t, err)

	updated, err := env.rides.SetStatus(ctx, ride.ID, "driver", models.RideStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCancelled, updated.Status)
	assert.Equal(t, 4, updated.SeatsAvailable)

	for _, id := range []string{a.ID, b.ID, c.ID} {
		assert.Equal(t, models.BookingStatusCancelled, env.booking(t, id).Status)
	}

	// Cancelling a booking afterwards neither fails nor credits seats.
	_, err = env.bookings.CancelBooking(ctx, a.ID, "alice")
	assert.ErrorIs(t, err, models.ErrAlreadyCancelled)
	assert.Equal(t, 4, env.ride(t, ride.ID).SeatsAvailable)

	_, err = env.bookings.CreateBooking(ctx, ride.ID, "dave", 1, "")
	assert.ErrorIs(t, err, models.ErrRideNotOpen)
}

func TestCancelRideAgainRerunsCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.newRide(t, "driver", 3)
	booking, err := env.bookings.CreateBooking(ctx, ride.ID, "alice", 1, "")
	require.NoError(t, err)

	// Simulate a cancellation whose cascade never ran.
	_, err = env.inventory.Transition(ctx, ride.ID, func(r *models.Ride) error {
		return applyStatus(r, models.RideStatusCancelled, time.Now())
	})
	require.NoError(t, err)
	require.Equal(t, models.BookingStatusConfirmed, env.booking(t, booking.ID).Status)

	before := env.ride(t, ride.ID).Version
	_, err = env.rides.SetStatus(ctx, ride.ID, "driver", models.RideStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, env.booking(t, booking.ID).Status)
	assert.Equal(t, before, env.ride(t, ride.ID).Version)
}

func TestCompleteRide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ride := env.newRide(t, "driver", 2)

	_, err := env.rides.SetStatus(ctx, ride.ID, "driver", models.RideStatusCompleted)
	assert.ErrorIs(t, err, models.ErrRideNotDeparted)

	env.rides.now = func() time.Time { return ride.DepartureTime.Add(time.Minute) }
	done, err := env.rides.SetStatus(ctx, ride.ID, "driver", models.RideStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.RideStatusCompleted, done.Status)
	assert.Contains(t, env.events.types(), EventRideStatusChanged)

	_, err = env.rides.SetStatus(ctx, ride.ID, "driver", models.RideStatusCancelled)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestListAndSearchRides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	open := env.newRide(t, "driver", 2)
	full := env.newRide(t, "driver", 1)
	_, err := env.bookings.CreateBooking(ctx, full.ID, "alice", 1, "")
	require.NoError(t, err)

	list, err := env.rides.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, open.ID, list[0].ID)

	found, err := env.rides.Search(ctx, "nairobi", "NAK")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, open.ID, found[0].ID)

	none, err := env.rides.Search(ctx, "Kisumu", "")
	require.NoError(t, err)
	assert.Empty(t, none)

	mine, err := env.rides.ListForDriver(ctx, "driver")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	_, err = env.rides.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrRideNotFound)
}
