package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/profitlens/api/responses"
	pkgerrors "github.com/angelmondragon/profitlens/pkg/errors"
	"github.com/angelmondragon/profitlens/pkg/logger"
	pkgredis "github.com/angelmondragon/profitlens/pkg/redis"
)

const (
	idempotencyHeader     = "Idempotency-Key"
	replayedHeader        = "Idempotent-Replayed"
	defaultIdempotencyTTL = 24 * time.Hour
	importIdempotencyTTL  = 7 * 24 * time.Hour
	inFlightTTL           = 2 * time.Minute
	reserveAttempts       = 3
)

type idempotentRoute struct {
	method string
	path   string
	prefix bool
	ttl    time.Duration
}

func (r idempotentRoute) matches(method, path string) bool {
	if r.method != method {
		return false
	}
	if r.prefix {
		return strings.HasPrefix(path, r.path)
	}
	return path == r.path
}

// Creation, import and sync endpoints. Matching uses the request path since
// the middleware runs before chi has resolved the full route pattern.
var idempotentRoutes = []idempotentRoute{
	{method: http.MethodPost, path: "/api/v1/snapshots", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, path: "/api/v1/products", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, path: "/api/v1/platforms", ttl: defaultIdempotencyTTL},
	{method: http.MethodPost, path: "/api/v1/products/import", ttl: importIdempotencyTTL},
	{method: http.MethodPost, path: "/api/v1/sync/", prefix: true, ttl: defaultIdempotencyTTL},
}

func idempotencyTTL(method, path string) (time.Duration, bool) {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.matches(method, path) {
			return route.ttl, true
		}
	}
	return 0, false
}

// storedResponse is kept under the key. A record without a status is a
// reservation held by a request that has not finished yet; Token tells the
// holder's reservation apart from any later one.
type storedResponse struct {
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        string `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
	Token       string `json:"token,omitempty"`
}

func (s storedResponse) pending() bool { return s.Status == 0 }

// Idempotency makes the routes in idempotentRoutes safe to retry with an
// Idempotency-Key header. The first request reserves the key, later ones
// replay its response, and a concurrent duplicate gets a conflict. The
// reservation is swapped for the response in place, so the key is never
// free while a response is being stored. Server errors release the key so
// the client can retry.
func Idempotency(store pkgredis.ResponseStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := idempotencyTTL(r.Method, r.URL.Path)
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if !ok || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashBody(body)
			key := store.IdempotencyKey(strings.Join([]string{clientIP(r), r.Method, r.URL.Path}, "|"), clientKey)

			claim, existing, err := reserve(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if existing != nil {
				replayOrReject(ctx, logg, w, *existing, hash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.status >= http.StatusInternalServerError {
				if _, err := store.DeleteIfValue(ctx, key, claim); err != nil {
					logError(ctx, logg, "release idempotency key", err)
				}
				return
			}
			done, err := json.Marshal(storedResponse{
				Status:      capture.statusOrOK(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				RequestHash: hash,
			})
			if err != nil {
				logError(ctx, logg, "encode idempotency record", err)
				return
			}
			replaced, err := store.ReplaceIfValue(ctx, key, claim, string(done), ttl)
			switch {
			case err != nil:
				logError(ctx, logg, "persist idempotency record", err)
			case !replaced && logg != nil:
				logg.Warn(ctx, "idempotency reservation expired before the response was stored")
			}
		})
	}
}

// reserve claims key for this request. When another request owns it the
// stored record comes back instead. A key that disappears between the
// SETNX and the GET is claimed again, a bounded number of times.
func reserve(ctx context.Context, store pkgredis.ResponseStore, key, hash string) (string, *storedResponse, error) {
	payload, err := json.Marshal(storedResponse{RequestHash: hash, Token: uuid.NewString()})
	if err != nil {
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency reservation")
	}
	claim := string(payload)

	for attempt := 0; attempt < reserveAttempts; attempt++ {
		reserved, err := store.SetNX(ctx, key, claim, inFlightTTL)
		if err != nil {
			return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
		}
		if reserved {
			return claim, nil, nil
		}
		raw, err := store.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
		}
		var record storedResponse
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
		}
		return "", &record, nil
	}
	return "", nil, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress")
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, record storedResponse, hash string) {
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key reused with different request body"))
	case record.pending():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is still in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		if decoded, err := base64.StdEncoding.DecodeString(record.Body); err == nil {
			_, _ = w.Write(decoded)
		}
	}
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
