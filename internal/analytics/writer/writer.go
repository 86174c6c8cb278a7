package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/profitlens/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/profitlens/pkg/bigquery"
)

const defaultBatchSize = 1

// Config controls the fee change writer.
type Config struct {
	FeeChangeTable string
	BatchSize      int
	RetryPolicy    RetryPolicy
}

// RetryPolicy bounds how often an insert is retried. Zero fields take
// defaults of 3 attempts backing off from 250ms to 2s.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

// TableInserter is the streaming insert surface of pkg/bigquery.Client.
type TableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// KeyedRow attaches a BigQuery insert ID to row so a retried insert is
// deduplicated by the streaming API.
func KeyedRow(row any, insertID string) *cbigquery.StructSaver {
	return &cbigquery.StructSaver{Struct: row, InsertID: insertID}
}

// RetryingInserter retries transient insert failures. When BigQuery rejects
// only some rows of a request, only those rows are sent again.
type RetryingInserter struct {
	client TableInserter
	policy RetryPolicy
}

// NewRetryingInserter wraps client.
func NewRetryingInserter(client TableInserter, policy RetryPolicy) *RetryingInserter {
	return &RetryingInserter{client: client, policy: policy.normalized()}
}

func (r *RetryingInserter) InsertRows(ctx context.Context, table string, rows []any) error {
	backoff := r.policy.InitialBackoff
	for attempt := 1; len(rows) > 0; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}
		if attempt >= r.policy.MaxAttempts || !retryable(err) {
			return fmt.Errorf("insert %d rows into %s: %w", len(rows), table, err)
		}
		rows = failedRows(rows, err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, r.policy.MaximumBackoff)
	}
	return nil
}

// failedRows narrows rows to the ones a PutMultiError names. Any other
// error means the whole request failed.
func failedRows(rows []any, err error) []any {
	var pme cbigquery.PutMultiError
	if !errors.As(err, &pme) || len(pme) == 0 {
		return rows
	}
	out := make([]any, 0, len(pme))
	for _, rowErr := range pme {
		if rowErr.RowIndex < 0 || rowErr.RowIndex >= len(rows) {
			return rows
		}
		out = append(out, rows[rowErr.RowIndex])
	}
	return out
}

// retryable reports whether every failure inside err is transient.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	var pme cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if len(pme) == 0 {
			return false
		}
		for _, rowErr := range pme {
			if !retryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !retryable(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var grpcErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &grpcErr) {
		switch grpcErr.GRPCStatus().Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

// BigQueryWriter buffers fee change rows and inserts them keyed by event ID.
// It is safe for concurrent Pub/Sub receive callbacks.
type BigQueryWriter struct {
	inserter  *RetryingInserter
	table     string
	batchSize int

	mu     sync.Mutex
	buffer []types.FeeChangeRow
}

// New creates a writer backed by a shared client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.FeeChangeTable)
	if table == "" {
		return nil, errors.New("fee change table is required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BigQueryWriter{
		inserter:  NewRetryingInserter(client, cfg.RetryPolicy),
		table:     table,
		batchSize: batchSize,
	}, nil
}

// InsertFeeChange buffers row and flushes once the batch is full.
func (w *BigQueryWriter) InsertFeeChange(ctx context.Context, row types.FeeChangeRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buffer = append(w.buffer, row)
	if len(w.buffer) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

// Flush writes any buffered rows immediately.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.buffer))
	for i := range w.buffer {
		rows[i] = KeyedRow(&w.buffer[i], w.buffer[i].EventID)
	}
	if err := w.inserter.InsertRows(ctx, w.table, rows); err != nil {
		return err
	}
	w.buffer = w.buffer[:0]
	return nil
}

// EncodeJSON renders payload for a BigQuery JSON column. Empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
