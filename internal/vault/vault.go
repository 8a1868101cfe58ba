// Package vault defines the store that holds encrypted backup codes per
// account, plus its memory, Mongo and Redis backends. The store never
// interprets envelope contents; it only guards who gets which envelope,
// in what order, and how often.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultCooldown is the minimum time between two successful retrievals
// for the same account.
const DefaultCooldown = 5 * time.Minute

const minUsernameLen = 3

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("username already exists")
	ErrExhausted     = errors.New("no backup codes remaining")
	ErrInvalidInput  = errors.New("invalid input")
)

// RateLimitedError is returned by RetrieveNext while the cooldown from the
// previous successful retrieval is still running.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

// WaitMinutes is the remaining wait rounded up to whole minutes, the
// granularity reported to clients.
func (e *RateLimitedError) WaitMinutes() int {
	m := int(e.RetryAfter / time.Minute)
	if e.RetryAfter%time.Minute != 0 {
		m++
	}
	return m
}

type (
	// Retrieval is the result of a successful RetrieveNext: one envelope,
	// plus the remaining count after this redemption.
	Retrieval struct {
		Envelope  string
		Remaining int
		Total     int
	}

	// Store is the vault state machine. All three operations are atomic
	// per account: concurrent calls for the same username serialize, so
	// no two retrievals can hand out the same envelope or both slip past
	// the cooldown check.
	Store interface {
		Register(ctx context.Context, username string, envelopes []string) error
		RetrieveNext(ctx context.Context, username string) (*Retrieval, error)
		Reset(ctx context.Context, username string) error
		Count(ctx context.Context) (int64, error)
	}
)

// validateRegistration enforces the structural invariants every backend
// shares. The configurable per-deployment code-count bounds are checked at
// the service boundary; the store only rejects what can never be valid.
func validateRegistration(username string, envelopes []string) error {
	if len(username) < minUsernameLen {
		return fmt.Errorf("%w: username must be at least %d characters", ErrInvalidInput, minUsernameLen)
	}
	if len(envelopes) == 0 {
		return fmt.Errorf("%w: at least one envelope required", ErrInvalidInput)
	}
	for _, e := range envelopes {
		if e == "" {
			return fmt.Errorf("%w: empty envelope", ErrInvalidInput)
		}
	}
	return nil
}

// cooldownRemaining returns how much of the cooldown window is left, or 0
// if the account may retrieve again.
func cooldownRemaining(last *time.Time, now time.Time, cooldown time.Duration) time.Duration {
	if last == nil {
		return 0
	}
	elapsed := now.Sub(*last)
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}
