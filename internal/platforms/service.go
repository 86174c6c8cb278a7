package platforms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/changelog"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	"github.com/angelmondragon/profitlens/pkg/enums"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// Service manages marketplace fee configurations.
type Service interface {
	List(ctx context.Context) ([]calc.Platform, error)
	Get(ctx context.Context, id string) (calc.Platform, error)
	Create(ctx context.Context, input CreatePlatformInput) (calc.Platform, error)
	Update(ctx context.Context, id string, input UpdatePlatformInput) (calc.Platform, error)
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context) ([]calc.Platform, error)
	ReplaceAll(ctx context.Context, platforms []calc.Platform) error
}

// CreatePlatformInput describes a custom marketplace. ID is derived from
// Name when empty.
type CreatePlatformInput struct {
	ID                string
	Name              string
	Type              enums.PlatformType
	CommissionPercent *float64
	AdsPercent        float64
	FeesExclTax       *bool
}

// UpdatePlatformInput holds optional mutation values for a platform.
type UpdatePlatformInput struct {
	Name              *string
	Type              *enums.PlatformType
	CommissionPercent *float64
	AdsPercent        *float64
	FeesExclTax       *bool
}

// ChangeRecorder stores fee change entries.
type ChangeRecorder interface {
	Record(ctx context.Context, entries []changelog.Entry) error
}

type store interface {
	List(ctx context.Context) ([]models.Platform, error)
	Count(ctx context.Context) (int64, error)
	NextPosition(ctx context.Context) (int, error)
	FindByID(ctx context.Context, id string) (*models.Platform, error)
	Create(ctx context.Context, row *models.Platform) error
	Update(ctx context.Context, row *models.Platform) error
	Delete(ctx context.Context, id string) error
	Upsert(ctx context.Context, rows []models.Platform) error
	DeleteAll(ctx context.Context) error
}

// txScope is everything a platform transaction writes to.
type txScope struct {
	repo    store
	changes ChangeRecorder
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx txScope) error) error
}

// ServiceParams wires the platform service.
type ServiceParams struct {
	Repo     store
	Tx       txRunner
	Changes  ChangeRecorder
	Logger   *logger.Logger
	Clock    func() time.Time
	Defaults func() []calc.Platform
}

type service struct {
	repo     store
	tx       txRunner
	changes  ChangeRecorder
	logg     *logger.Logger
	now      func() time.Time
	defaults func() []calc.Platform
}

// NewService constructs the platform service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("platform repository required")
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	defaults := params.Defaults
	if defaults == nil {
		defaults = calc.DefaultPlatforms
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		changes:  params.Changes,
		logg:     params.Logger,
		now:      now,
		defaults: defaults,
	}, nil
}

// List returns the stored platforms, seeding the built-in set when none exist.
func (s *service) List(ctx context.Context) ([]calc.Platform, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list platforms")
	}
	if len(rows) > 0 {
		return toDomainList(rows), nil
	}

	defaults := s.defaults()
	if err := s.repo.Upsert(ctx, buildRows(defaults)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed default platforms")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "count", len(defaults)), "seeded default platforms")
	}
	return defaults, nil
}

func (s *service) Get(ctx context.Context, id string) (calc.Platform, error) {
	row, err := s.find(ctx, id)
	if err != nil {
		return calc.Platform{}, err
	}
	return toDomain(*row), nil
}

func (s *service) Create(ctx context.Context, input CreatePlatformInput) (calc.Platform, error) {
	name := strings.TrimSpace(input.Name)
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = platformID(name)
	}
	platform := calc.Platform{
		ID:                id,
		Name:              name,
		Type:              input.Type,
		CommissionPercent: copyFloat(input.CommissionPercent),
		AdsPercent:        input.AdsPercent,
		FeesExclTax:       copyBool(input.FeesExclTax),
	}
	if err := validatePlatform(platform); err != nil {
		return calc.Platform{}, err
	}

	// make sure the default set exists before the first custom platform lands
	if _, err := s.List(ctx); err != nil {
		return calc.Platform{}, err
	}

	if _, err := s.repo.FindByID(ctx, id); err == nil {
		return calc.Platform{}, pkgerrors.New(pkgerrors.CodeConflict, "platform already exists").
			WithDetails(map[string]any{"platform_id": id})
	} else if !isNotFound(err) {
		return calc.Platform{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load platform")
	}

	position, err := s.repo.NextPosition(ctx)
	if err != nil {
		return calc.Platform{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next platform position")
	}
	row := toModel(platform, position)
	if err := s.repo.Create(ctx, &row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return calc.Platform{}, pkgerrors.New(pkgerrors.CodeConflict, "platform already exists").
				WithDetails(map[string]any{"platform_id": id})
		}
		return calc.Platform{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create platform")
	}
	return toDomain(row), nil
}

// Update applies input and records a change log entry for every numeric
// fee field whose value changed. Both writes share one transaction, so a
// failed log write leaves the platform untouched.
func (s *service) Update(ctx context.Context, id string, input UpdatePlatformInput) (calc.Platform, error) {
	row, err := s.find(ctx, id)
	if err != nil {
		return calc.Platform{}, err
	}

	before := toDomain(*row)
	after := applyUpdate(before, input)
	if err := validatePlatform(after); err != nil {
		return calc.Platform{}, err
	}

	updated := toModel(after, row.Position)
	updated.CreatedAt = row.CreatedAt
	entries := changelog.Diff(before, after, s.now())

	err = s.withTx(ctx, func(tx txScope) error {
		if err := tx.repo.Update(ctx, &updated); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update platform")
		}
		if len(entries) == 0 || tx.changes == nil {
			return nil
		}
		return tx.changes.Record(ctx, entries)
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithPlatformID(ctx, id), "platform update rolled back", err)
		}
		return calc.Platform{}, err
	}
	return toDomain(updated), nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "platform not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete platform")
	}
	return nil
}

// Reset restores the built-in platform set, dropping custom platforms.
func (s *service) Reset(ctx context.Context) ([]calc.Platform, error) {
	defaults := s.defaults()
	if err := s.ReplaceAll(ctx, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

// ReplaceAll swaps every stored platform for platforms, preserving order.
func (s *service) ReplaceAll(ctx context.Context, platforms []calc.Platform) error {
	for i, p := range platforms {
		if err := validatePlatform(p); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("platform %d", i+1)).
				WithDetails(map[string]any{"index": i, "platform_id": p.ID})
		}
	}
	rows := buildRows(platforms)

	return s.withTx(ctx, func(tx txScope) error {
		if err := tx.repo.DeleteAll(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear platforms")
		}
		if err := tx.repo.Upsert(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store platforms")
		}
		return nil
	})
}

// withTx runs fn in a transaction. Without a runner fn gets the plain
// repository and recorder.
func (s *service) withTx(ctx context.Context, fn func(tx txScope) error) error {
	if s.tx == nil {
		return fn(txScope{repo: s.repo, changes: s.changes})
	}
	return s.tx.WithTx(ctx, fn)
}

func (s *service) find(ctx context.Context, id string) (*models.Platform, error) {
	if strings.TrimSpace(id) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "platform not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load platform")
	}
	return row, nil
}

func buildRows(platforms []calc.Platform) []models.Platform {
	rows := make([]models.Platform, 0, len(platforms))
	for i, p := range platforms {
		rows = append(rows, toModel(p, i))
	}
	return rows
}

// platformID derives an identifier in the style of the built-in ids.
func platformID(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "_")
}

func applyUpdate(p calc.Platform, input UpdatePlatformInput) calc.Platform {
	if input.Name != nil {
		p.Name = strings.TrimSpace(*input.Name)
	}
	if input.Type != nil {
		p.Type = *input.Type
	}
	if input.CommissionPercent != nil {
		p.CommissionPercent = copyFloat(input.CommissionPercent)
	}
	if input.AdsPercent != nil {
		p.AdsPercent = *input.AdsPercent
	}
	if input.FeesExclTax != nil {
		p.FeesExclTax = copyBool(input.FeesExclTax)
	}
	return p
}

func validatePlatform(p calc.Platform) error {
	switch {
	case p.ID == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "platform id is required")
	case p.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "platform name is required")
	case !p.Type.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid platform type").
			WithDetails(map[string]any{"type": p.Type})
	case p.AdsPercent < 0 || p.AdsPercent > 100:
		return pkgerrors.New(pkgerrors.CodeValidation, "ads percent must be between 0 and 100")
	case p.CommissionPercent != nil && (*p.CommissionPercent < 0 || *p.CommissionPercent > 100):
		return pkgerrors.New(pkgerrors.CodeValidation, "commission percent must be between 0 and 100")
	}
	return nil
}
