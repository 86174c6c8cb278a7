package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
)

// Service exposes SKU management operations.
type Service interface {
	List(ctx context.Context, query string) ([]calc.Product, error)
	Get(ctx context.Context, id string) (calc.Product, error)
	Create(ctx context.Context, input ProductInput) (calc.Product, error)
	Update(ctx context.Context, id string, input UpdateProductInput) (calc.Product, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, items []calc.Product) (int, error)
	ReplaceAll(ctx context.Context, items []calc.Product) error
}

// ProductInput holds the validated payload to create a product.
type ProductInput struct {
	Name            string
	SKU             string
	CostPrice       float64
	GSTPercent      float64
	Weight          float64
	MRP             float64
	SellingPrice    float64
	Notes           string
	PlatformPricing map[string]calc.PlatformPricing
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name            *string
	SKU             *string
	CostPrice       *float64
	GSTPercent      *float64
	Weight          *float64
	MRP             *float64
	SellingPrice    *float64
	Notes           *string
	PlatformPricing *map[string]calc.PlatformPricing
}

type store interface {
	List(ctx context.Context, query string) ([]models.Product, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	NextPosition(ctx context.Context) (int, error)
	Create(ctx context.Context, row *models.Product) error
	Update(ctx context.Context, row *models.Product) error
	Delete(ctx context.Context, id string) error
	Upsert(ctx context.Context, rows []models.Product) error
	DeleteAll(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx store) error) error
}

type service struct {
	repo store
	tx   txRunner
}

// NewService constructs a product service. tx may be nil, in which case
// ReplaceAll runs without a surrounding transaction.
func NewService(repo store, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, query string) ([]calc.Product, error) {
	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return toDomainList(rows), nil
}

func (s *service) Get(ctx context.Context, id string) (calc.Product, error) {
	row, err := s.find(ctx, id)
	if err != nil {
		return calc.Product{}, err
	}
	return toDomain(*row), nil
}

func (s *service) Create(ctx context.Context, input ProductInput) (calc.Product, error) {
	product := calc.Product{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(input.Name),
		SKU:             strings.TrimSpace(input.SKU),
		CostPrice:       input.CostPrice,
		GSTPercent:      input.GSTPercent,
		Weight:          input.Weight,
		MRP:             input.MRP,
		SellingPrice:    input.SellingPrice,
		Notes:           input.Notes,
		PlatformPricing: input.PlatformPricing,
	}
	if err := validateProduct(product); err != nil {
		return calc.Product{}, err
	}

	position, err := s.repo.NextPosition(ctx)
	if err != nil {
		return calc.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next product position")
	}

	row := toModel(product)
	row.Position = position
	if err := s.repo.Create(ctx, &row); err != nil {
		return calc.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return toDomain(row), nil
}

func (s *service) Update(ctx context.Context, id string, input UpdateProductInput) (calc.Product, error) {
	row, err := s.find(ctx, id)
	if err != nil {
		return calc.Product{}, err
	}

	product := applyUpdate(toDomain(*row), input)
	if err := validateProduct(product); err != nil {
		return calc.Product{}, err
	}

	updated := toModel(product)
	updated.Position = row.Position
	updated.CreatedAt = row.CreatedAt
	if err := s.repo.Update(ctx, &updated); err != nil {
		return calc.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return toDomain(updated), nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

// Import appends products after the current last one. Items without an id
// are assigned one; items whose id already exists are overwritten in place.
func (s *service) Import(ctx context.Context, items []calc.Product) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	start, err := s.repo.NextPosition(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next product position")
	}
	rows, err := buildRows(items, start)
	if err != nil {
		return 0, err
	}
	if err := s.repo.Upsert(ctx, rows); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "import products")
	}
	return len(rows), nil
}

// ReplaceAll swaps the whole catalogue for items, preserving their order.
func (s *service) ReplaceAll(ctx context.Context, items []calc.Product) error {
	rows, err := buildRows(items, 0)
	if err != nil {
		return err
	}

	replace := func(repo store) error {
		if err := repo.DeleteAll(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear products")
		}
		if err := repo.Upsert(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store products")
		}
		return nil
	}
	if s.tx == nil {
		return replace(s.repo)
	}
	return s.tx.WithTx(ctx, replace)
}

func (s *service) find(ctx context.Context, id string) (*models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return row, nil
}

func buildRows(items []calc.Product, start int) ([]models.Product, error) {
	rows := make([]models.Product, 0, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			item.ID = uuid.NewString()
		}
		if err := validateProduct(item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("product %d", i+1)).
				WithDetails(map[string]any{"index": i, "sku": item.SKU})
		}
		row := toModel(item)
		row.Position = start + i
		rows = append(rows, row)
	}
	return rows, nil
}

func applyUpdate(p calc.Product, input UpdateProductInput) calc.Product {
	if input.Name != nil {
		p.Name = strings.TrimSpace(*input.Name)
	}
	if input.SKU != nil {
		p.SKU = strings.TrimSpace(*input.SKU)
	}
	if input.CostPrice != nil {
		p.CostPrice = *input.CostPrice
	}
	if input.GSTPercent != nil {
		p.GSTPercent = *input.GSTPercent
	}
	if input.Weight != nil {
		p.Weight = *input.Weight
	}
	if input.MRP != nil {
		p.MRP = *input.MRP
	}
	if input.SellingPrice != nil {
		p.SellingPrice = *input.SellingPrice
	}
	if input.Notes != nil {
		p.Notes = *input.Notes
	}
	if input.PlatformPricing != nil {
		p.PlatformPricing = *input.PlatformPricing
	}
	return p
}

func validateProduct(p calc.Product) error {
	switch {
	case p.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case p.SKU == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	case p.CostPrice < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "cost price cannot be negative")
	case p.GSTPercent < 0 || p.GSTPercent > 100:
		return pkgerrors.New(pkgerrors.CodeValidation, "gst percent must be between 0 and 100")
	case p.MRP < 0 || p.SellingPrice < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "prices cannot be negative")
	}
	for id, pp := range p.PlatformPricing {
		if pp.MRP < 0 || pp.SellingPrice < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "platform prices cannot be negative").
				WithDetails(map[string]any{"platform_id": id})
		}
		if pp.ReturnPercent < 0 || pp.ReturnPercent > 100 {
			return pkgerrors.New(pkgerrors.CodeValidation, "return percent must be between 0 and 100").
				WithDetails(map[string]any{"platform_id": id})
		}
		if pp.MonthlyVolume < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "monthly volume cannot be negative").
				WithDetails(map[string]any{"platform_id": id})
		}
	}
	return nil
}
