package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/chachabrian/shupool-backend/internal/repository"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	store     *repository.Store
	inventory *InventoryController
	bookings  *BookingService
	rides     *RideService
	events    *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, repository.NewMemoryStore())
}

func newTestEnvWith(t *testing.T, store *repository.Store) *testEnv {
	t.Helper()
	events := &recordingPublisher{}
	inventory := NewInventoryController(store.Rides, 5, time.Millisecond)
	bookings := NewBookingService(store, inventory, NewMemoryIdempotencyStore(time.Hour), events, BookingOptions{
		CompensationAttempts: 3,
		Backoff:              time.Millisecond,
	})
	return &testEnv{
		store:     store,
		inventory: inventory,
		bookings:  bookings,
		rides:     NewRideService(store, inventory, bookings, events),
		events:    events,
	}
}

// newRide stores an OPEN ride offered by driverID.
func (e *testEnv) newRide(t *testing.T, driverID string, seats int) *models.Ride {
	t.Helper()
	ride := &models.Ride{
		DriverID:       driverID,
		Origin:         "Nairobi",
		Destination:    "Nakuru",
		DepartureTime:  time.Now().Add(24 * time.Hour),
		SeatsOffered:   seats,
		SeatsAvailable: seats,
		PricePerSeat:   500,
		Status:         models.RideStatusOpen,
	}
	require.NoError(t, e.store.Rides.Create(context.Background(), ride))
	return ride
}

func (e *testEnv) ride(t *testing.T, id string) *models.Ride {
	t.Helper()
	ride, err := e.store.Rides.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ride
}

func (e *testEnv) booking(t *testing.T, id string) *models.Booking {
	t.Helper()
	booking, err := e.store.Bookings.GetByID(context.Background(), id)
	require.NoError(t, err)
	return booking
}

// requireConsistent checks the counter bounds and the FULL <=> 0 rule.
func requireConsistent(t *testing.T, ride *models.Ride) {
	t.Helper()
	require.GreaterOrEqual(t, ride.SeatsAvailable, 0)
	require.LessOrEqual(t, ride.SeatsAvailable, ride.SeatsOffered)
	if !ride.IsTerminal() {
		require.Equal(t, ride.SeatsAvailable == 0, ride.Status == models.RideStatusFull,
			"status %s with %d seats", ride.Status, ride.SeatsAvailable)
	}
}
