package controllers

import (
	"net/http"

	"github.com/angelmondragon/profitlens/api/responses"
	"github.com/angelmondragon/profitlens/api/validators"
	settingssvc "github.com/angelmondragon/profitlens/internal/settings"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

type updateSettingsRequest struct {
	MinMarginAlert   *float64 `json:"min_margin_alert,omitempty" validate:"omitempty,gte=-100,lte=100"`
	DarkMode         *bool    `json:"dark_mode,omitempty"`
	GlobalAdsPercent *float64 `json:"global_ads_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

func GetSettings(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := svc.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, current)
	}
}

func UpdateSettings(svc settingssvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload updateSettingsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), settingssvc.UpdateInput{
			MinMarginAlert:   payload.MinMarginAlert,
			DarkMode:         payload.DarkMode,
			GlobalAdsPercent: payload.GlobalAdsPercent,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
