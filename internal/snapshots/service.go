package snapshots

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/profitlens/internal/workspace"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// Service takes, lists and compares monthly snapshots.
type Service interface {
	Take(ctx context.Context) (Snapshot, error)
	TakeMonthly(ctx context.Context) (Snapshot, bool, error)
	List(ctx context.Context) ([]Snapshot, error)
	Get(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error
	Compare(ctx context.Context) (Comparison, error)
	ReplaceAll(ctx context.Context, snapshots []Snapshot) error
}

// Exporter ships a captured snapshot to an external store.
type Exporter interface {
	Export(ctx context.Context, snapshot Snapshot) error
}

// Remover is implemented by exporters whose copies follow snapshot deletes.
type Remover interface {
	Remove(ctx context.Context, snapshot Snapshot) error
}

type inputsLoader interface {
	Load(ctx context.Context) (workspace.Inputs, error)
}

type store interface {
	List(ctx context.Context, limit int) ([]models.Snapshot, error)
	FindByID(ctx context.Context, id string) (*models.Snapshot, error)
	ExistsForMonth(ctx context.Context, month string) (bool, error)
	Create(ctx context.Context, rows ...models.Snapshot) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx store) error) error
}

// ServiceParams wires the snapshot service.
type ServiceParams struct {
	Repo     store
	Tx       txRunner
	Inputs   inputsLoader
	Exporter Exporter
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     store
	tx       txRunner
	inputs   inputsLoader
	exporter Exporter
	logg     *logger.Logger
	now      func() time.Time
}

// NewService constructs the snapshot service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("snapshot repository required")
	}
	if params.Inputs == nil {
		return nil, fmt.Errorf("workspace loader required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		inputs:   params.Inputs,
		exporter: params.Exporter,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Take captures the current results and stores them as the newest snapshot.
func (s *service) Take(ctx context.Context) (Snapshot, error) {
	in, err := s.inputs.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	now := s.now().UTC()
	snap := Capture(in.Products, in.Platforms, in.GlobalAdsPercent(), now, strconv.FormatInt(now.UnixMilli(), 10))
	if err := s.repo.Create(ctx, toModel(snap)); err != nil {
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store snapshot")
	}

	if s.exporter != nil {
		if err := s.exporter.Export(ctx, snap); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithSnapshotID(ctx, snap.ID), "export snapshot failed", err)
		}
	}
	return snap, nil
}

// TakeMonthly takes a snapshot unless one already exists for the current
// month. taken reports whether a new snapshot was stored.
func (s *service) TakeMonthly(ctx context.Context) (Snapshot, bool, error) {
	month := s.now().UTC().Format(MonthLayout)
	exists, err := s.repo.ExistsForMonth(ctx, month)
	if err != nil {
		return Snapshot{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check monthly snapshot")
	}
	if exists {
		return Snapshot{}, false, nil
	}
	snap, err := s.Take(ctx)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *service) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.repo.List(ctx, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list snapshots")
	}
	return toDomainList(rows), nil
}

func (s *service) Get(ctx context.Context, id string) (Snapshot, error) {
	if strings.TrimSpace(id) == "" {
		return Snapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "snapshot id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "snapshot not found")
		}
		return Snapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load snapshot")
	}
	return toDomain(*row), nil
}

// Delete removes a snapshot and, best effort, its exported copies.
func (s *service) Delete(ctx context.Context, id string) error {
	snap, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "snapshot not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete snapshot")
	}

	if r, ok := s.exporter.(Remover); ok {
		if err := r.Remove(ctx, snap); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithSnapshotID(ctx, id), "remove exported snapshot failed", err)
		}
	}
	return nil
}

// Compare diffs the two most recent snapshots.
func (s *service) Compare(ctx context.Context) (Comparison, error) {
	rows, err := s.repo.List(ctx, 2)
	if err != nil {
		return Comparison{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list snapshots")
	}
	cmp, ok := Compare(toDomainList(rows))
	if !ok {
		return Comparison{}, pkgerrors.New(pkgerrors.CodeNotFound, "at least two snapshots are required to compare")
	}
	return cmp, nil
}

// ReplaceAll swaps every stored snapshot for snapshots.
func (s *service) ReplaceAll(ctx context.Context, snapshots []Snapshot) error {
	rows := make([]models.Snapshot, 0, len(snapshots))
	for i, snap := range snapshots {
		if strings.TrimSpace(snap.ID) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "snapshot id is required").
				WithDetails(map[string]any{"index": i})
		}
		if snap.Month == "" && !snap.Date.IsZero() {
			snap.Month = snap.Date.UTC().Format(MonthLayout)
		}
		rows = append(rows, toModel(snap))
	}

	replace := func(repo store) error {
		if err := repo.DeleteAll(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear snapshots")
		}
		if err := repo.Create(ctx, rows...); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store snapshots")
		}
		return nil
	}
	if s.tx == nil {
		return replace(s.repo)
	}
	return s.tx.WithTx(ctx, replace)
}
