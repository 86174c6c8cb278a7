package changelog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/profitlens/pkg/db/models"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
	"github.com/angelmondragon/profitlens/pkg/pagination"
)

// Service manages the fee change log.
type Service interface {
	Record(ctx context.Context, entries []Entry) error
	List(ctx context.Context, filter Filter) (Page, error)
	All(ctx context.Context) ([]Entry, error)
	Clear(ctx context.Context) error
	ReplaceAll(ctx context.Context, entries []Entry) error
}

// Filter holds the listing inputs accepted from controllers.
type Filter struct {
	PlatformID string
	Field      string
	Params     pagination.Params
}

// Page is one page of entries plus the cursor for the next one.
type Page struct {
	Entries    []Entry `json:"entries"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

type store interface {
	Create(ctx context.Context, rows []models.FeeChangeLog) error
	List(ctx context.Context, q Query) ([]models.FeeChangeLog, error)
	Trim(ctx context.Context, keep int) (int64, error)
	Enqueue(ctx context.Context, entries []Entry) error
	DeleteAll(ctx context.Context) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx store) error) error
}

// ServiceParams wires the change log service.
type ServiceParams struct {
	Repo   store
	Tx     txRunner
	Logger *logger.Logger
	Limit  int
}

type service struct {
	repo  store
	tx    txRunner
	logg  *logger.Logger
	limit int
}

// NewService constructs the change log service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("changelog repository required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &service{
		repo:  params.Repo,
		tx:    params.Tx,
		logg:  params.Logger,
		limit: limit,
	}, nil
}

// Bind returns a change log whose writes join tx instead of opening their
// own transaction. events may be nil.
func Bind(tx *gorm.DB, events EventQueue, limit int, logg *logger.Logger) Service {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &service{repo: NewRepository(tx, events), logg: logg, limit: limit}
}

// Record stores entries ahead of the existing log and queues a fee change
// event for each in the same transaction. Entries sharing a timestamp are
// spaced a microsecond apart so the last one sorts first.
func (s *service) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]models.FeeChangeLog, 0, len(entries))
	stamped := make([]Entry, 0, len(entries))
	var prev time.Time
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Date.IsZero() {
			e.Date = time.Now().UTC()
		}
		e.Date = e.Date.UTC().Truncate(time.Microsecond)
		if !prev.IsZero() && !e.Date.After(prev) {
			e.Date = prev.Add(time.Microsecond)
		}
		prev = e.Date
		stamped = append(stamped, e)
		rows = append(rows, toModel(e))
	}

	write := func(repo store) error {
		if err := repo.Create(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record fee changes")
		}
		if _, err := repo.Trim(ctx, s.limit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "trim fee change log")
		}
		if err := repo.Enqueue(ctx, stamped); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue fee change events")
		}
		return nil
	}
	var err error
	if s.tx == nil {
		err = write(s.repo)
	} else {
		err = s.tx.WithTx(ctx, write)
	}
	if err != nil {
		return err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "entries", len(stamped)), "fee changes recorded")
	}
	return nil
}

func (s *service) List(ctx context.Context, filter Filter) (Page, error) {
	cursor, err := pagination.ParseCursor(filter.Params.Cursor)
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(filter.Params.Limit)

	rows, err := s.repo.List(ctx, Query{
		PlatformID: strings.TrimSpace(filter.PlatformID),
		Field:      strings.TrimSpace(filter.Field),
		Cursor:     cursor,
		Limit:      limit + 1,
	})
	if err != nil {
		return Page{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fee changes")
	}

	page := Page{Entries: make([]Entry, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{At: last.ChangedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		page.Entries = append(page.Entries, toEntry(row))
	}
	return page, nil
}

func (s *service) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.repo.List(ctx, Query{Limit: s.limit})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fee changes")
	}
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEntry(row))
	}
	return out, nil
}

func (s *service) Clear(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear fee change log")
	}
	return nil
}

// ReplaceAll swaps the stored log for entries, given newest first.
func (s *service) ReplaceAll(ctx context.Context, entries []Entry) error {
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	rows := make([]models.FeeChangeLog, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		rows = append(rows, toModel(e))
	}

	replace := func(repo store) error {
		if err := repo.DeleteAll(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear fee change log")
		}
		if err := repo.Create(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store fee change log")
		}
		return nil
	}
	if s.tx == nil {
		return replace(s.repo)
	}
	return s.tx.WithTx(ctx, replace)
}
