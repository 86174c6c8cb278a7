package changelog

import (
	"context"

	"github.com/angelmondragon/profitlens/internal/repo"
	"github.com/angelmondragon/profitlens/pkg/db"
	"github.com/angelmondragon/profitlens/pkg/db/models"
	"github.com/angelmondragon/profitlens/pkg/enums"
	"github.com/angelmondragon/profitlens/pkg/outbox"
	"github.com/angelmondragon/profitlens/pkg/outbox/payloads"
	"github.com/angelmondragon/profitlens/pkg/pagination"
	"gorm.io/gorm"
)

// Query narrows a change log listing.
type Query struct {
	PlatformID string
	Field      string
	Cursor     *pagination.Cursor
	Limit      int
}

// EventQueue stores outbox events on the caller's transaction.
type EventQueue interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Repository persists fee change entries. With an event queue attached it
// also queues a fee change event per entry.
type Repository struct {
	repo.Base
	events EventQueue
}

// NewRepository builds a repository tied to the provided GORM DB. events may
// be nil.
func NewRepository(db *gorm.DB, events EventQueue) *Repository {
	return &Repository{Base: repo.NewBase(db), events: events}
}

// Create inserts rows in a single batch.
func (r *Repository) Create(ctx context.Context, rows []models.FeeChangeLog) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB(ctx).Create(&rows).Error
}

// List returns rows newest first. A zero limit returns every matching row.
func (r *Repository) List(ctx context.Context, q Query) ([]models.FeeChangeLog, error) {
	tx := r.DB(ctx).Model(&models.FeeChangeLog{})
	if q.PlatformID != "" {
		tx = tx.Where("platform_id = ?", q.PlatformID)
	}
	if q.Field != "" {
		tx = tx.Where("field = ?", q.Field)
	}
	if q.Cursor != nil {
		tx = tx.Where("(changed_at < ?) OR (changed_at = ? AND id < ?)", q.Cursor.At, q.Cursor.At, q.Cursor.ID)
	}
	tx = tx.Order("changed_at DESC").Order("id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []models.FeeChangeLog
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Trim deletes everything but the newest keep rows.
func (r *Repository) Trim(ctx context.Context, keep int) (int64, error) {
	newest := r.DB(ctx).Model(&models.FeeChangeLog{}).
		Select("id").
		Order("changed_at DESC").Order("id DESC").
		Limit(keep)
	res := r.DB(ctx).Where("id NOT IN (?)", newest).Delete(&models.FeeChangeLog{})
	return res.RowsAffected, res.Error
}

// DeleteAll clears the log.
func (r *Repository) DeleteAll(ctx context.Context) error {
	return r.DB(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.FeeChangeLog{}).Error
}

// Enqueue queues one fee change event per entry, keyed by the entry id.
func (r *Repository) Enqueue(ctx context.Context, entries []Entry) error {
	if r.events == nil {
		return nil
	}
	for _, e := range entries {
		err := r.events.Emit(ctx, r.DB(ctx), outbox.DomainEvent{
			EventID:       e.ID,
			EventType:     enums.EventFeeChanged,
			AggregateType: enums.AggregatePlatform,
			AggregateID:   e.PlatformID,
			Data: payloads.FeeChangedEvent{
				ID:           e.ID,
				PlatformID:   e.PlatformID,
				PlatformName: e.PlatformName,
				Field:        e.Field,
				OldValue:     e.OldValue,
				NewValue:     e.NewValue,
				Date:         e.Date,
			},
			Version:    1,
			OccurredAt: e.Date,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// NewTxRunner runs log rewrites inside a database transaction. events may
// be nil.
func NewTxRunner(client *db.Client, events EventQueue) *repo.TxRunner[store] {
	return repo.NewTxRunner(client, func(tx *gorm.DB) store { return NewRepository(tx, events) })
}

func toModel(e Entry) models.FeeChangeLog {
	return models.FeeChangeLog{
		ID:           e.ID,
		PlatformID:   e.PlatformID,
		PlatformName: e.PlatformName,
		Field:        e.Field,
		OldValue:     e.OldValue,
		NewValue:     e.NewValue,
		ChangedAt:    e.Date.UTC(),
	}
}

func toEntry(row models.FeeChangeLog) Entry {
	return Entry{
		ID:           row.ID,
		PlatformID:   row.PlatformID,
		PlatformName: row.PlatformName,
		Field:        row.Field,
		OldValue:     row.OldValue,
		NewValue:     row.NewValue,
		Date:         row.ChangedAt.UTC(),
	}
}
