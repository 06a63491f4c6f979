// Package store holds job records for their retention window.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/genqueue/pkg/models"
)

// ErrNotFound is returned for unknown and expired job ids alike.
var ErrNotFound = errors.New("job not found")

// Store is the job record interface. All status reads and writes go through here.
// Implementations must be safe for concurrent use and must return copies, never
// the stored record itself.
type Store interface {
	Ping(ctx context.Context) error
	// Put stores a new record. Its retention window starts at job.CreatedAt.
	Put(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	// Update applies fn to the current record as one atomic step and returns the
	// result. An error from fn leaves the record unchanged. The record keeps its
	// original expiry.
	Update(ctx context.Context, id uuid.UUID, fn func(*models.Job) error) (*models.Job, error)
	// Delete removes a record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}
