package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/chachabrian/shupool-backend/internal/repository"
)

// errNoChange lets a RideMutation report that the ride is already in the
// requested state, so nothing is written.
var errNoChange = errors.New("no change")

// RideMutation edits a freshly loaded ride in place. It runs inside the
// atomic step and may be called more than once if a concurrent writer wins.
type RideMutation func(ride *models.Ride) error

// InventoryController is the only writer of a ride's seat counter and
// status. Callers in this process are serialised per ride by a keyed lock;
// every write is also conditioned on the version that was read, which keeps
// replicas sharing one database linearizable per ride.
type InventoryController struct {
	rides       repository.RideRepository
	locks       *keyedMutex
	maxAttempts int
	backoff     time.Duration
}

func NewInventoryController(rides repository.RideRepository, maxAttempts int, backoff time.Duration) *InventoryController {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &InventoryController{
		rides:       rides,
		locks:       newKeyedMutex(),
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

// Reserve takes seats from the ride. A cancelled or completed ride is
// refused with ErrRideNotOpen. Otherwise the counter decides: a FULL ride or
// one with fewer than seats left yields ErrInsufficientSeats, and a ride
// reaching zero becomes FULL in the same write.
func (c *InventoryController) Reserve(ctx context.Context, rideID string, seats int) (*models.Ride, error) {
	return c.Transition(ctx, rideID, func(ride *models.Ride) error {
		if seats <= 0 {
			return models.ErrInvalidSeatCount
		}
		if ride.IsTerminal() {
			return fmt.Errorf("%w: ride %s is %s", models.ErrRideNotOpen, ride.ID, ride.Status)
		}
		if ride.SeatsAvailable < seats {
			return fmt.Errorf("%w: requested %d, %d left", models.ErrInsufficientSeats, seats, ride.SeatsAvailable)
		}
		ride.SeatsAvailable -= seats
		ride.Status = ride.DerivedStatus()
		return nil
	})
}

// Release gives seats back to the ride. A FULL ride becomes OPEN again.
// Releasing past SeatsOffered means seats were credited twice somewhere;
// that is reported as ErrInventoryCorruption and nothing is written.
func (c *InventoryController) Release(ctx context.Context, rideID string, seats int) (*models.Ride, error) {
	return c.Transition(ctx, rideID, func(ride *models.Ride) error {
		if seats <= 0 {
			return models.ErrInvalidSeatCount
		}
		if ride.IsTerminal() {
			return fmt.Errorf("%w: ride %s is %s", models.ErrRideClosed, ride.ID, ride.Status)
		}
		next := ride.SeatsAvailable + seats
		if next > ride.SeatsOffered {
			log.Printf("[inventory] CORRUPTION: releasing %d seats on ride %s would give %d of %d", seats, ride.ID, next, ride.SeatsOffered)
			return fmt.Errorf("%w: ride %s would hold %d of %d seats", models.ErrInventoryCorruption, ride.ID, next, ride.SeatsOffered)
		}
		ride.SeatsAvailable = next
		ride.Status = ride.DerivedStatus()
		return nil
	})
}

// Transition runs mutate as one read-check-write step against rideID and
// returns the ride as written. On a version conflict the ride is re-read and
// mutate is applied again, up to maxAttempts times.
func (c *InventoryController) Transition(ctx context.Context, rideID string, mutate RideMutation) (*models.Ride, error) {
	unlock := c.locks.Lock(rideID)
	defer unlock()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		ride, err := c.rides.GetByID(ctx, rideID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, models.ErrRideNotFound
			}
			return nil, fmt.Errorf("load ride %s: %w", rideID, err)
		}

		expected := ride.Version
		if err := mutate(ride); err != nil {
			if errors.Is(err, errNoChange) {
				return ride, nil
			}
			return nil, err
		}
		if err := checkInventory(ride); err != nil {
			log.Printf("[inventory] refusing write on ride %s: %v", rideID, err)
			return nil, err
		}

		err = c.rides.SaveInventory(ctx, ride, expected)
		switch {
		case err == nil:
			return ride, nil
		case errors.Is(err, repository.ErrVersionConflict):
			log.Printf("[inventory] version conflict on ride %s (attempt %d/%d)", rideID, attempt, c.maxAttempts)
			if attempt < c.maxAttempts {
				if err := c.wait(ctx, attempt); err != nil {
					return nil, err
				}
			}
		case errors.Is(err, repository.ErrNotFound):
			return nil, models.ErrRideNotFound
		default:
			return nil, fmt.Errorf("save ride %s: %w", rideID, err)
		}
	}
	return nil, models.ErrConcurrentUpdateExceeded
}

// checkInventory holds the counter bounds and the FULL <=> 0 rule for
// non-terminal rides.
func checkInventory(ride *models.Ride) error {
	if ride.SeatsAvailable < 0 || ride.SeatsAvailable > ride.SeatsOffered {
		return fmt.Errorf("%w: ride %s has %d of %d seats", models.ErrInventoryCorruption, ride.ID, ride.SeatsAvailable, ride.SeatsOffered)
	}
	if ride.Status != ride.DerivedStatus() {
		return fmt.Errorf("%w: ride %s status %s with %d seats left", models.ErrInventoryCorruption, ride.ID, ride.Status, ride.SeatsAvailable)
	}
	return nil
}

func (c *InventoryController) wait(ctx context.Context, attempt int) error {
	return sleepCtx(ctx, jitter(c.backoff*time.Duration(attempt)))
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int63n(int64(d)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
