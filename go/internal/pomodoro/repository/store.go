// Package repository persists timer records.
//
// Every mutation goes through Update, which serializes read-modify-write per
// record. Different records never contend.
package repository

import (
	"context"
	"errors"

	"github.com/mcdev12/studybuddy/go/internal/models"
)

// ErrTimerNotFound is returned by Get when no record exists for a key.
var ErrTimerNotFound = errors.New("timer not found")

// InitFunc builds the record stored on first access to a key.
type InitFunc func() *models.Timer

// MutateFunc changes a record in place. Returning an error aborts the
// update and nothing is persisted.
type MutateFunc func(t *models.Timer) error

// Store is the timer persistence boundary.
type Store interface {
	// Get returns the record for key or ErrTimerNotFound.
	Get(ctx context.Context, key models.TimerKey) (*models.Timer, error)

	// GetOrCreate returns the record for key, storing init() first if absent.
	GetOrCreate(ctx context.Context, key models.TimerKey, init InitFunc) (*models.Timer, error)

	// Update loads (or lazily creates) the record for key, applies fn while
	// holding the record's lock, and persists the result.
	Update(ctx context.Context, key models.TimerKey, init InitFunc, fn MutateFunc) (*models.Timer, error)

	// RunningGroupTimers returns the shared timers of groupIDs that are
	// currently in the running state.
	RunningGroupTimers(ctx context.Context, groupIDs []int64) ([]*models.Timer, error)
}
