// Package settings stores the user's alert threshold, display preference
// and the global ad spend rate.
package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/repo"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"gorm.io/gorm"
)

// Settings is the persisted preference record.
type Settings struct {
	MinMarginAlert   float64 `json:"minMarginAlert"`
	DarkMode         bool    `json:"darkMode"`
	GlobalAdsPercent float64 `json:"globalAdsPercent"`
}

// Calc returns the subset the profit engine consumes.
func (s Settings) Calc() calc.Settings {
	return calc.Settings{MinMarginAlert: s.MinMarginAlert, DarkMode: s.DarkMode}
}

// UpdateInput holds optional mutation values.
type UpdateInput struct {
	MinMarginAlert   *float64
	DarkMode         *bool
	GlobalAdsPercent *float64
}

// Service reads and writes the settings record.
type Service interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, input UpdateInput) (Settings, error)
	Replace(ctx context.Context, s Settings) (Settings, error)
}

// Repository persists the single settings row.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Find returns gorm.ErrRecordNotFound until settings are first saved.
func (r *Repository) Find(ctx context.Context) (*models.AppSetting, error) {
	var row models.AppSetting
	if err := r.DB(ctx).Where("id = ?", models.AppSettingsID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Save writes row as the settings record.
func (r *Repository) Save(ctx context.Context, row *models.AppSetting) error {
	row.ID = models.AppSettingsID
	return r.DB(ctx).Save(row).Error
}

type store interface {
	Find(ctx context.Context) (*models.AppSetting, error)
	Save(ctx context.Context, row *models.AppSetting) error
}

type service struct {
	repo     store
	defaults Settings
}

// NewService constructs the settings service. defaults is returned until the
// user saves settings for the first time.
func NewService(repo store, defaults Settings) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo, defaults: defaults}, nil
}

// Defaults builds the initial settings from configured values.
func Defaults(minMarginAlert, globalAdsPercent float64) Settings {
	if minMarginAlert == 0 {
		minMarginAlert = calc.DefaultMinMarginAlert
	}
	return Settings{MinMarginAlert: minMarginAlert, GlobalAdsPercent: globalAdsPercent}
}

func (s *service) Get(ctx context.Context) (Settings, error) {
	row, err := s.repo.Find(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaults, nil
		}
		return Settings{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	return Settings{
		MinMarginAlert:   row.MinMarginAlert,
		DarkMode:         row.DarkMode,
		GlobalAdsPercent: row.GlobalAdsPercent,
	}, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	if input.MinMarginAlert != nil {
		current.MinMarginAlert = *input.MinMarginAlert
	}
	if input.DarkMode != nil {
		current.DarkMode = *input.DarkMode
	}
	if input.GlobalAdsPercent != nil {
		current.GlobalAdsPercent = *input.GlobalAdsPercent
	}
	return s.Replace(ctx, current)
}

func (s *service) Replace(ctx context.Context, settings Settings) (Settings, error) {
	if err := validate(settings); err != nil {
		return Settings{}, err
	}
	row := models.AppSetting{
		MinMarginAlert:   settings.MinMarginAlert,
		DarkMode:         settings.DarkMode,
		GlobalAdsPercent: settings.GlobalAdsPercent,
	}
	if err := s.repo.Save(ctx, &row); err != nil {
		return Settings{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save settings")
	}
	return settings, nil
}

func validate(s Settings) error {
	switch {
	case s.MinMarginAlert < -100 || s.MinMarginAlert > 100:
		return pkgerrors.New(pkgerrors.CodeValidation, "min margin alert must be between -100 and 100")
	case s.GlobalAdsPercent < 0 || s.GlobalAdsPercent > 100:
		return pkgerrors.New(pkgerrors.CodeValidation, "global ads percent must be between 0 and 100")
	}
	return nil
}
