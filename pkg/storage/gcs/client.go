package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

const (
	defaultEndpoint = "https://storage.googleapis.com"
	requestTimeout  = 10 * time.Second
	pingTimeout     = 5 * time.Second
	uploadAttempts  = 3
	uploadBackoff   = 500 * time.Millisecond
	errorBodyLimit  = 2048
)

var errNotInitialized = errors.New("gcs client not initialized")

// Client is a minimal Cloud Storage JSON API client: media uploads, deletes
// and a bucket listing used as a health check.
type Client struct {
	httpClient *http.Client
	tokens     tokenProvider
	bucket     string
	endpoint   string
	backoff    time.Duration
}

// NewClient resolves credentials (inline JSON, then a credentials file, then
// the metadata server) and verifies the archive bucket can be listed.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	bucket := strings.TrimSpace(cfg.BucketName)
	if bucket == "" {
		return nil, errors.New("gcs bucket name is required")
	}
	httpClient := &http.Client{Timeout: requestTimeout}
	tokens, err := credentialsFor(httpClient, gcp)
	if err != nil {
		return nil, err
	}

	client := &Client{
		httpClient: httpClient,
		tokens:     tokens,
		bucket:     bucket,
		endpoint:   defaultEndpoint,
		backoff:    uploadBackoff,
	}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", bucket), "gcs client initialized")
	}
	return client, nil
}

// Close exists for symmetry with the other clients; nothing is pooled.
func (c *Client) Close() error { return nil }

// BucketHandle binds a bucket. Blank selects the configured one.
func (c *Client) BucketHandle(name string) *Bucket {
	if c == nil {
		return nil
	}
	if name == "" {
		name = c.bucket
	}
	return &Bucket{name: name, client: c}
}

// Ping lists at most one object from the configured bucket.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokens == nil {
		return errNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := c.objectsURL(c.bucket, false) + "?maxResults=1"
	return c.call(ctx, "list objects", http.MethodGet, u, "", nil, http.StatusOK)
}

// Upload writes data to bucket/object, overwriting any existing object.
// Throttling and server errors are retried a few times.
func (c *Client) Upload(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if c == nil || c.tokens == nil {
		return errNotInitialized
	}
	bucket = c.bucketOr(bucket)
	if bucket == "" || strings.TrimSpace(object) == "" {
		return errors.New("bucket and object are required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	u := c.objectsURL(bucket, true) + "?" + url.Values{"uploadType": {"media"}, "name": {object}}.Encode()

	var err error
	for attempt := 1; attempt <= uploadAttempts; attempt++ {
		err = c.call(ctx, "upload "+object, http.MethodPost, u, contentType, data, http.StatusOK)
		var se *StatusError
		if err == nil || !errors.As(err, &se) || !se.Temporary() || attempt == uploadAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return err
}

// DeleteObject removes bucket/object. Deleting a missing object succeeds.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	if c == nil || c.tokens == nil {
		return errNotInitialized
	}
	u := c.objectsURL(c.bucketOr(bucket), false) + "/" + url.PathEscape(object)
	return c.call(ctx, "delete "+object, http.MethodDelete, u, "", nil,
		http.StatusOK, http.StatusNoContent, http.StatusNotFound)
}

func (c *Client) bucketOr(bucket string) string {
	if bucket == "" {
		return c.bucket
	}
	return bucket
}

func (c *Client) objectsURL(bucket string, upload bool) string {
	base := strings.TrimRight(c.endpoint, "/")
	if base == "" {
		base = defaultEndpoint
	}
	if upload {
		base += "/upload"
	}
	return base + "/storage/v1/b/" + url.PathEscape(bucket) + "/o"
}

// call sends one authorised request and fails unless the response status is
// one of accept.
func (c *Client) call(ctx context.Context, op, method, u, contentType string, body []byte, accept ...int) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("gcs %s: %w", op, err)
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gcs %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if slices.Contains(accept, resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &StatusError{Op: op, Code: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
}

// StatusError is an unexpected response from the storage API.
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("gcs %s: %d %s", e.Op, e.Code, http.StatusText(e.Code))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Temporary reports throttling and server side failures.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Bucket binds uploads and deletes to one bucket.
type Bucket struct {
	name   string
	client *Client
}

// Upload stores data under object in this bucket.
func (b *Bucket) Upload(ctx context.Context, object, contentType string, data []byte) error {
	return b.client.Upload(ctx, b.name, object, contentType, data)
}

// Delete removes object from this bucket.
func (b *Bucket) Delete(ctx context.Context, object string) error {
	return b.client.DeleteObject(ctx, b.name, object)
}
