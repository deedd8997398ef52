package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/repo"
)

// Recorder appends one CheckRecord per probe.
type Recorder struct {
	store repo.CheckStore
}

func NewRecorder(store repo.CheckStore) *Recorder {
	return &Recorder{store: store}
}

// Record writes the probe outcome. Errors wrap domain.ErrPersistence.
func (r *Recorder) Record(ctx context.Context, id domain.EndpointID, status domain.Status, at time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("%w: invalid status %q for %s", domain.ErrPersistence, status, id)
	}
	rec := domain.CheckRecord{EndpointID: id, Status: status, CheckedAt: at.UTC()}
	if err := r.store.AppendCheck(ctx, rec); err != nil {
		return fmt.Errorf("%w: append check %s: %v", domain.ErrPersistence, id, err)
	}
	return nil
}
