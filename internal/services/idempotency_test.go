package services

import (
	"context"
	"testing"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryIdempotencyStore(time.Minute)
	s.now = func() time.Time { return now }

	_, done, err := s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.False(t, done)

	_, _, err = s.Begin(ctx, "k")
	assert.ErrorIs(t, err, models.ErrRequestInProgress)

	require.NoError(t, s.Complete(ctx, "k", "booking-1"))
	result, done, err := s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "booking-1", result)

	now = now.Add(2 * time.Minute)
	_, done, err = s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.False(t, done, "expired keys are claimable again")

	require.NoError(t, s.Abort(ctx, "k"))
	_, done, err = s.Begin(ctx, "k")
	require.NoError(t, err)
	assert.False(t, done)
}

func TestMemoryIdempotencyStoreSweepsExpiredKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	s := NewMemoryIdempotencyStore(time.Minute)
	s.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		_, _, err := s.Begin(ctx, key)
		require.NoError(t, err)
	}
	require.NoError(t, s.Complete(ctx, "b", "booking-b"))
	assert.Len(t, s.entries, 3)

	now = now.Add(2 * time.Minute)
	_, done, err := s.Begin(ctx, "d")
	require.NoError(t, err)
	assert.False(t, done)
	assert.Len(t, s.entries, 1)
	assert.Contains(t, s.entries, "d")
}

func TestMultiPublisherJoinsErrors(t *testing.T) {
	rec := &recordingPublisher{}
	m := MultiPublisher{rec, failingPublisher{}, NopPublisher{}}

	err := m.Publish(context.Background(), Event{Type: EventBookingConfirmed})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []string{EventBookingConfirmed}, rec.types())
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errStoreDown }
