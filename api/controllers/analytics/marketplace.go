package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/profitlens/api/responses"
	"github.com/angelmondragon/profitlens/api/validators"
	"github.com/angelmondragon/profitlens/internal/analytics"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// Marketplace rolls every product up on one platform, optionally filtered by
// a name or SKU search.
func Marketplace(service analytics.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		platformID := chi.URLParam(r, "platformId")
		if logg != nil {
			ctx = logg.WithPlatformID(ctx, platformID)
		}

		result, err := service.Marketplace(ctx, platformID, validators.QueryString(r, "q", maxQueryLen))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
