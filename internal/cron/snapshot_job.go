package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/profitlens/internal/snapshots"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// MonthlySnapshotJobParams configure the monthly snapshot job.
type MonthlySnapshotJobParams struct {
	Logger    *logger.Logger
	Snapshots monthlySnapshotTaker
}

type monthlySnapshotTaker interface {
	TakeMonthly(ctx context.Context) (snapshots.Snapshot, bool, error)
}

type monthlySnapshotJob struct {
	logg      *logger.Logger
	snapshots monthlySnapshotTaker
}

// NewMonthlySnapshotJob builds the job that captures one snapshot per
// calendar month. Runs after the month's first capture are no-ops.
func NewMonthlySnapshotJob(params MonthlySnapshotJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Snapshots == nil {
		return nil, fmt.Errorf("snapshots service required")
	}
	return &monthlySnapshotJob{logg: params.Logger, snapshots: params.Snapshots}, nil
}

func (j *monthlySnapshotJob) Name() string { return "monthly-snapshot" }

func (j *monthlySnapshotJob) Run(ctx context.Context) error {
	snap, taken, err := j.snapshots.TakeMonthly(ctx)
	if err != nil {
		return fmt.Errorf("take monthly snapshot: %w", err)
	}
	if !taken {
		j.logg.Info(ctx, "snapshot for current month already exists")
		return nil
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"snapshot_id": snap.ID,
		"month":       snap.Month,
		"skus":        len(snap.SKUResults),
	}), "monthly snapshot captured")
	return nil
}
