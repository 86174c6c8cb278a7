// Package workspace gathers the catalogue, platform set and settings that
// every calculation reads, so callers load them once per request.
package workspace

import (
	"context"
	"fmt"

	"github.com/angelmondragon/profitlens/internal/calc"
	"github.com/angelmondragon/profitlens/internal/settings"
)

// Inputs is a consistent view of everything the profit engine consumes.
type Inputs struct {
	Products  []calc.Product
	Platforms []calc.Platform
	Settings  settings.Settings
}

// GlobalAdsPercent is the ad spend applied to platforms without their own rate.
func (i Inputs) GlobalAdsPercent() float64 {
	return i.Settings.GlobalAdsPercent
}

// Product returns the product with id.
func (i Inputs) Product(id string) (calc.Product, bool) {
	for _, p := range i.Products {
		if p.ID == id {
			return p, true
		}
	}
	return calc.Product{}, false
}

// Platform returns the platform with id.
func (i Inputs) Platform(id string) (calc.Platform, bool) {
	for _, p := range i.Platforms {
		if p.ID == id {
			return p, true
		}
	}
	return calc.Platform{}, false
}

type productLister interface {
	List(ctx context.Context, query string) ([]calc.Product, error)
}

type platformLister interface {
	List(ctx context.Context) ([]calc.Platform, error)
}

type settingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Loader reads Inputs from the owning services.
type Loader struct {
	products  productLister
	platforms platformLister
	settings  settingsReader
}

// NewLoader wires a Loader.
func NewLoader(products productLister, platforms platformLister, settings settingsReader) (*Loader, error) {
	if products == nil || platforms == nil || settings == nil {
		return nil, fmt.Errorf("products, platforms and settings services are required")
	}
	return &Loader{products: products, platforms: platforms, settings: settings}, nil
}

// Load returns the current inputs. Errors from the services are returned
// unchanged so their codes reach the caller.
func (l *Loader) Load(ctx context.Context) (Inputs, error) {
	products, err := l.products.List(ctx, "")
	if err != nil {
		return Inputs{}, err
	}
	platforms, err := l.platforms.List(ctx)
	if err != nil {
		return Inputs{}, err
	}
	s, err := l.settings.Get(ctx)
	if err != nil {
		return Inputs{}, err
	}
	return Inputs{Products: products, Platforms: platforms, Settings: s}, nil
}
