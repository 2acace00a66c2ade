package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

const defaultExpiryBatchSize = 200

type expiryLedger interface {
	ExpireDue(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// ExpiryJobParams configure the hold expiry sweep.
type ExpiryJobParams struct {
	Logger    *logger.Logger
	Ledger    expiryLedger
	BatchSize int
}

// NewExpiryJob builds the job that releases lapsed holds back to stock.
func NewExpiryJob(params ExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &expiryJob{
		logg:   params.Logger,
		ledger: params.Ledger,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type expiryJob struct {
	logg   *logger.Logger
	ledger expiryLedger
	batch  int
	now    func() time.Time
}

func (j *expiryJob) Name() string { return "hold-expiry" }

// Run sweeps in batches until the backlog is drained. Each hold is released
// in its own transaction, so a mid-sweep crash loses no work and a
// concurrent sweeper double-releases nothing.
func (j *expiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := j.ledger.ExpireDue(ctx, cutoff, j.batch)
		total += expired
		if err != nil {
			return fmt.Errorf("hold expiry sweep: %w", err)
		}
		if expired < j.batch {
			break
		}
	}
	if total > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"cutoff":  cutoff,
			"expired": total,
		})
		j.logg.Info(logCtx, "expired holds released")
	}
	return nil
}
