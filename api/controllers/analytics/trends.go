package analytics

import (
	"net/http"

	"github.com/angelmondragon/profitlens/api/responses"
	"github.com/angelmondragon/profitlens/api/validators"
	"github.com/angelmondragon/profitlens/internal/analytics/query"
	"github.com/angelmondragon/profitlens/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// Trends reports month over month profit from warehouse snapshot exports.
func Trends(service query.TrendService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if service == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "warehouse analytics is not configured"))
			return
		}
		top, err := validators.ParseQueryInt(r, "top", 0, 0, 1000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		report, err := service.Trends(ctx, types.TrendRequest{
			PlatformID: platformFilter(r),
			From:       validators.QueryString(r, "from", maxQueryLen),
			To:         validators.QueryString(r, "to", maxQueryLen),
			TopN:       top,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
