package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stockroomhq/stockroom-backend/pkg/logger"
)

type fakeLedger struct {
	backlog int
	calls   int
	err     error
}

func (f *fakeLedger) ExpireDue(_ context.Context, _ time.Time, limit int) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	expired := f.backlog
	if expired > limit {
		expired = limit
	}
	f.backlog -= expired
	return expired, nil
}

func TestExpiryJobDrainsBacklogInBatches(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "reaper-test"})
	ledger := &fakeLedger{backlog: 450}
	job, err := NewExpiryJob(ExpiryJobParams{
		Logger:    logg,
		Ledger:    ledger,
		BatchSize: 200,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ledger.backlog != 0 {
		t.Fatalf("expected backlog drained, %d left", ledger.backlog)
	}
	// 200 + 200 + 50: the short batch ends the sweep.
	if ledger.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", ledger.calls)
	}
}

func TestExpiryJobPropagatesLedgerErrors(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "reaper-test"})
	ledger := &fakeLedger{err: errors.New("db down")}
	job, err := NewExpiryJob(ExpiryJobParams{Logger: logg, Ledger: ledger})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from ledger")
	}
}

func TestExpiryJobStopsOnCanceledContext(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "reaper-test"})
	ledger := &fakeLedger{backlog: 1000}
	job, err := NewExpiryJob(ExpiryJobParams{Logger: logg, Ledger: ledger, BatchSize: 10})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ledger.calls != 0 {
		t.Fatalf("expected no sweeps after cancellation, got %d", ledger.calls)
	}
}
