package models

import "errors"

// Lookup failures.
var (
	ErrRideNotFound    = errors.New("ride not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")
)

// Validation failures the caller can correct.
var (
	ErrInvalidSeatCount  = errors.New("seat count must be positive")
	ErrInsufficientSeats = errors.New("not enough seats available")
	ErrRideNotOpen       = errors.New("ride is not open for booking")
	ErrRideClosed        = errors.New("ride is cancelled or completed")
	ErrInvalidTransition = errors.New("invalid ride status transition")
	ErrRideNotDeparted   = errors.New("ride has not departed yet")
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmailTaken        = errors.New("email already registered")
	ErrIdempotencyReused = errors.New("idempotency key already used for a different request")
)

// Authorization and identity.
var (
	ErrNotAuthorized     = errors.New("not authorized")
	ErrInvalidCredential = errors.New("invalid credential")
)

// ErrAlreadyCancelled is benign: the booking is already in the state the
// caller asked for.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// Transient failures, safe to retry the whole request.
var (
	ErrConcurrentUpdateExceeded = errors.New("too many concurrent updates, retry later")
	ErrRequestInProgress        = errors.New("request with this idempotency key is in progress")
)

// Fatal failures. They indicate a logic defect or a stranded saga step and
// are never repaired silently.
var (
	ErrInventoryCorruption = errors.New("seat inventory corruption")
	ErrCompensationFailed  = errors.New("compensation failed")
)
