package snapshots

import (
	"context"

	"github.com/angelmondragon/profitlens/internal/repo"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	dbtypes "github.com/angelmondragon/profitlens/pkg/db/types"
	"gorm.io/gorm"
)

// Repository persists snapshots.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// List returns snapshots newest first. A zero limit returns all of them.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Snapshot, error) {
	q := r.DB(ctx).Order("taken_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Snapshot
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID returns gorm.ErrRecordNotFound when the snapshot is missing.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Snapshot, error) {
	var row models.Snapshot
	if err := r.Base.FindByID(ctx, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ExistsForMonth reports whether any snapshot was taken in month (YYYY-MM).
func (r *Repository) ExistsForMonth(ctx context.Context, month string) (bool, error) {
	var n int64
	if err := r.DB(ctx).Model(&models.Snapshot{}).Where("month = ?", month).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts rows.
func (r *Repository) Create(ctx context.Context, rows ...models.Snapshot) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&rows).Error
}

// Delete removes a snapshot, reporting gorm.ErrRecordNotFound when absent.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.DeleteByID(ctx, &models.Snapshot{}, id)
}

// DeleteAll removes every snapshot.
func (r *Repository) DeleteAll(ctx context.Context) error {
	return r.Base.DeleteAll(ctx, &models.Snapshot{})
}

func isNotFound(err error) bool {
	return repo.IsNotFound(err)
}

// NewTxRunner runs snapshot rewrites inside a database transaction.
func NewTxRunner(client *db.Client) *repo.TxRunner[store] {
	return repo.NewTxRunner(client, func(tx *gorm.DB) store { return NewRepository(tx) })
}

func toModel(s Snapshot) models.Snapshot {
	platformData := s.PlatformData
	if platformData == nil {
		platformData = map[string]PlatformConfig{}
	}
	results := s.SKUResults
	if results == nil {
		results = []SKUResult{}
	}
	return models.Snapshot{
		ID:               s.ID,
		Month:            s.Month,
		TakenAt:          s.Date.UTC(),
		GlobalAdsPercent: s.GlobalAdsPercent,
		PlatformData:     dbtypes.NewJSONValue(platformData),
		SKUResults:       dbtypes.NewJSONValue(results),
	}
}

func toDomain(row models.Snapshot) Snapshot {
	return Snapshot{
		ID:               row.ID,
		Month:            row.Month,
		Date:             row.TakenAt.UTC(),
		GlobalAdsPercent: row.GlobalAdsPercent,
		PlatformData:     row.PlatformData.Data,
		SKUResults:       row.SKUResults.Data,
	}
}

func toDomainList(rows []models.Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomain(row))
	}
	return out
}
