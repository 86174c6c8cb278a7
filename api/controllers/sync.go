package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/profitlens/api/responses"
	"github.com/angelmondragon/profitlens/internal/sheetsync"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

// SyncPull replaces local data with the spreadsheet contents.
func SyncPull(svc sheetsync.Service, logg *logger.Logger) http.HandlerFunc {
	return syncHandler(svc, logg, func(ctx context.Context) (sheetsync.Summary, error) {
		return svc.Pull(ctx)
	})
}

// SyncPush overwrites the spreadsheet with local data.
func SyncPush(svc sheetsync.Service, logg *logger.Logger) http.HandlerFunc {
	return syncHandler(svc, logg, func(ctx context.Context) (sheetsync.Summary, error) {
		return svc.Push(ctx)
	})
}

func syncHandler(svc sheetsync.Service, logg *logger.Logger, run func(context.Context) (sheetsync.Summary, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "spreadsheet sync is not configured"))
			return
		}
		summary, err := run(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
