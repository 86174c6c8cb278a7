package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/profitlens/api/responses"
	"github.com/angelmondragon/profitlens/api/validators"
	platformsvc "github.com/angelmondragon/profitlens/internal/platforms"
	"github.com/angelmondragon/profitlens/pkg/enums"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

type createPlatformRequest struct {
	ID                string   `json:"id,omitempty" validate:"omitempty,max=64"`
	Name              string   `json:"name" validate:"required,max=100"`
	Type              string   `json:"type" validate:"required"`
	CommissionPercent *float64 `json:"commission_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	AdsPercent        float64  `json:"ads_percent" validate:"gte=0,lte=100"`
	FeesExclTax       *bool    `json:"fees_excl_tax,omitempty"`
}

func (r createPlatformRequest) toInput() (platformsvc.CreatePlatformInput, error) {
	platformType, err := parsePlatformType(r.Type)
	if err != nil {
		return platformsvc.CreatePlatformInput{}, err
	}
	return platformsvc.CreatePlatformInput{
		ID:                validators.SanitizeString(r.ID, 64),
		Name:              validators.SanitizeString(r.Name, 100),
		Type:              platformType,
		CommissionPercent: r.CommissionPercent,
		AdsPercent:        r.AdsPercent,
		FeesExclTax:       r.FeesExclTax,
	}, nil
}

type updatePlatformRequest struct {
	Name              *string  `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Type              *string  `json:"type,omitempty"`
	CommissionPercent *float64 `json:"commission_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	AdsPercent        *float64 `json:"ads_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
	FeesExclTax       *bool    `json:"fees_excl_tax,omitempty"`
}

func (r updatePlatformRequest) toInput() (platformsvc.UpdatePlatformInput, error) {
	input := platformsvc.UpdatePlatformInput{
		Name:              r.Name,
		CommissionPercent: r.CommissionPercent,
		AdsPercent:        r.AdsPercent,
		FeesExclTax:       r.FeesExclTax,
	}
	if r.Type != nil {
		platformType, err := parsePlatformType(*r.Type)
		if err != nil {
			return platformsvc.UpdatePlatformInput{}, err
		}
		input.Type = &platformType
	}
	return input, nil
}

func parsePlatformType(raw string) (enums.PlatformType, error) {
	platformType, err := enums.ParsePlatformType(strings.TrimSpace(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid platform type").
			WithDetails(map[string]any{"field": "type"})
	}
	return platformType, nil
}

func ListPlatforms(svc platformsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func GetPlatform(svc platformsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, err := svc.Get(r.Context(), chi.URLParam(r, "platformId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, platform)
	}
}

func CreatePlatform(svc platformsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createPlatformRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		platform, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, platform)
	}
}

// UpdatePlatform applies a partial fee edit. Numeric fee changes are
// written to the change log by the service.
func UpdatePlatform(svc platformsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updatePlatformRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id := chi.URLParam(r, "platformId")
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPlatformID(ctx, id)
		}
		platform, err := svc.Update(ctx, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, platform)
	}
}

func DeletePlatform(svc platformsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "platformId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ResetPlatforms(svc platformsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.Reset(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
