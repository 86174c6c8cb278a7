package products

import (
	"context"
	"strings"

	"github.com/angelmondragon/profitlens/internal/repo"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists products.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// List returns products in display order, optionally filtered by a
// case-insensitive name/SKU substring.
func (r *Repository) List(ctx context.Context, query string) ([]models.Product, error) {
	q := r.DB(ctx).Model(&models.Product{})
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}

	var rows []models.Product
	if err := q.Order("position ASC").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// NextPosition returns the position after the current last product.
func (r *Repository) NextPosition(ctx context.Context) (int, error) {
	var last int
	row := r.DB(ctx).Model(&models.Product{}).Select("COALESCE(MAX(position), -1)").Row()
	if err := row.Scan(&last); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// FindByID returns gorm.ErrRecordNotFound when the product is missing.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	var row models.Product
	if err := r.Base.FindByID(ctx, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Create inserts a new product.
func (r *Repository) Create(ctx context.Context, row *models.Product) error {
	return r.DB(ctx).Create(row).Error
}

// Update saves every column of row.
func (r *Repository) Update(ctx context.Context, row *models.Product) error {
	return r.DB(ctx).Save(row).Error
}

// Delete removes a product, reporting gorm.ErrRecordNotFound when absent.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.DeleteByID(ctx, &models.Product{}, id)
}

// Upsert inserts rows or overwrites existing ones with the same id.
func (r *Repository) Upsert(ctx context.Context, rows []models.Product) error {
	if len(rows) == 0 {
		return nil
	}
	return r.UpsertByID(ctx, &rows)
}

// DeleteAll removes every product.
func (r *Repository) DeleteAll(ctx context.Context) error {
	return r.Base.DeleteAll(ctx, &models.Product{})
}

func isNotFound(err error) bool {
	return repo.IsNotFound(err)
}

// NewTxRunner runs catalogue rewrites inside a database transaction.
func NewTxRunner(client *db.Client) *repo.TxRunner[store] {
	return repo.NewTxRunner(client, func(tx *gorm.DB) store { return NewRepository(tx) })
}
