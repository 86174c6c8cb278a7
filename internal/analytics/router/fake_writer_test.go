package router

import (
	"context"

	"github.com/angelmondragon/profitlens/internal/analytics/types"
)

type fakeWriter struct {
	inserted []types.FeeChangeRow
	err      error
}

func (f *fakeWriter) InsertFeeChange(_ context.Context, row types.FeeChangeRow) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, row)
	return nil
}
