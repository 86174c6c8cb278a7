package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/profitlens/internal/sheetsync"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// SheetsPushJobParams configure the spreadsheet backup job.
type SheetsPushJobParams struct {
	Logger *logger.Logger
	Sync   sheetsPusher
}

type sheetsPusher interface {
	Push(ctx context.Context) (sheetsync.Summary, error)
}

type sheetsPushJob struct {
	logg *logger.Logger
	sync sheetsPusher
}

// NewSheetsPushJob builds the job that mirrors the database to the
// spreadsheet on every cycle.
func NewSheetsPushJob(params SheetsPushJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sync == nil {
		return nil, fmt.Errorf("sheets sync service required")
	}
	return &sheetsPushJob{logg: params.Logger, sync: params.Sync}, nil
}

func (j *sheetsPushJob) Name() string { return "sheets-push" }

func (j *sheetsPushJob) Run(ctx context.Context) error {
	if _, err := j.sync.Push(ctx); err != nil {
		return fmt.Errorf("push to sheets: %w", err)
	}
	return nil
}
