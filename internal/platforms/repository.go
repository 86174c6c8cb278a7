package platforms

import (
	"context"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/repo"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists marketplace configurations.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// List returns platforms in display order.
func (r *Repository) List(ctx context.Context) ([]models.Platform, error) {
	var rows []models.Platform
	if err := r.DB(ctx).Order("position ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of stored platforms.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB(ctx).Model(&models.Platform{}).Count(&n).Error
	return n, err
}

// NextPosition returns the position after the current last platform.
func (r *Repository) NextPosition(ctx context.Context) (int, error) {
	var last int
	row := r.DB(ctx).Model(&models.Platform{}).Select("COALESCE(MAX(position), -1)").Row()
	if err := row.Scan(&last); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// FindByID returns gorm.ErrRecordNotFound when the platform is missing.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Platform, error) {
	var row models.Platform
	if err := r.Base.FindByID(ctx, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts a platform.
func (r *Repository) Create(ctx context.Context, row *models.Platform) error {
	return r.DB(ctx).Create(row).Error
}

// Update saves every column of row. Nil pointers are written as NULL.
func (r *Repository) Update(ctx context.Context, row *models.Platform) error {
	return r.DB(ctx).Save(row).Error
}

// Delete removes a platform, reporting gorm.ErrRecordNotFound when absent.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.DeleteByID(ctx, &models.Platform{}, id)
}

// Upsert inserts rows or overwrites existing ones with the same id.
func (r *Repository) Upsert(ctx context.Context, rows []models.Platform) error {
	if len(rows) == 0 {
		return nil
	}
	return r.UpsertByID(ctx, &rows)
}

// DeleteAll removes every platform.
func (r *Repository) DeleteAll(ctx context.Context) error {
	return r.Base.DeleteAll(ctx, &models.Platform{})
}

func isNotFound(err error) bool {
	return repo.IsNotFound(err)
}

// NewTxRunner runs platform writes inside a database transaction. changes
// binds the fee change log to the same transaction and may be nil.
func NewTxRunner(client *db.Client, changes func(tx *gorm.DB) ChangeRecorder) *repo.TxRunner[txScope] {
	return repo.NewTxRunner(client, func(tx *gorm.DB) txScope {
		scope := txScope{repo: NewRepository(tx)}
		if changes != nil {
			scope.changes = changes(tx)
		}
		return scope
	})
}

func toDomain(row models.Platform) calc.Platform {
	return calc.Platform{
		ID:                row.ID,
		Name:              row.Name,
		Type:              row.Type,
		CommissionPercent: copyFloat(row.CommissionPercent),
		AdsPercent:        row.AdsPercent,
		FeesExclTax:       copyBool(row.FeesExclTax),
	}
}

func toDomainList(rows []models.Platform) []calc.Platform {
	out := make([]calc.Platform, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomain(row))
	}
	return out
}

func toModel(p calc.Platform, position int) models.Platform {
	return models.Platform{
		ID:                p.ID,
		Name:              p.Name,
		Type:              p.Type,
		CommissionPercent: copyFloat(p.CommissionPercent),
		AdsPercent:        p.AdsPercent,
		FeesExclTax:       copyBool(p.FeesExclTax),
		Position:          position,
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
