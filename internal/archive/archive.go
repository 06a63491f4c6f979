// Package archive keeps an audit trail of finished generation jobs. It is
// write-behind only: nothing is ever read back into the queue or the job store.
package archive

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/genqueue/pkg/models"
)

// ErrDisabled is returned by reads when no archive database is configured.
var ErrDisabled = errors.New("job archive disabled")

// Archive records terminal jobs and lists the most recent ones.
type Archive interface {
	Ping(ctx context.Context) error
	Record(ctx context.Context, job *models.Job) error
	Recent(ctx context.Context, limit int) ([]*models.Job, error)
}

// Noop is used when DATABASE_URL is unset. Writes are dropped.
type Noop struct{}

func (Noop) Ping(_ context.Context) error                  { return nil }
func (Noop) Record(_ context.Context, _ *models.Job) error { return nil }
func (Noop) Recent(_ context.Context, _ int) ([]*models.Job, error) {
	return nil, ErrDisabled
}

var _ Archive = Noop{}
