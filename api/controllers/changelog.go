package controllers

import (
	"net/http"

	"github.com/angelmondragon/profitlens/api/responses"
	"github.com/angelmondragon/profitlens/api/validators"
	changelogsvc "github.com/angelmondragon/profitlens/internal/changelog"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/pagination"
)

func ListChangeLog(svc changelogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := changelogsvc.Filter{
			PlatformID: allAsEmpty(validators.QueryString(r, "platform", maxSearchLen)),
			Field:      allAsEmpty(validators.QueryString(r, "field", maxSearchLen)),
			Params: pagination.Params{
				Limit:  limit,
				Cursor: validators.QueryString(r, "cursor", 512),
			},
		}
		page, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func ClearChangeLog(svc changelogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Clear(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Warn(r.Context(), "fee change log cleared")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func allAsEmpty(v string) string {
	if v == "all" {
		return ""
	}
	return v
}
