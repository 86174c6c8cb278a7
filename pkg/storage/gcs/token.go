package gcs

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/profitlens/pkg/config"
)

const (
	defaultTokenURI  = "https://oauth2.googleapis.com/token"
	metadataTokenURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
	storageScope     = "https://www.googleapis.com/auth/devstorage.read_write"
	assertionTTL     = time.Hour
	refreshMargin    = time.Minute
)

type tokenProvider interface {
	Token(ctx context.Context) (string, error)
}

type fetchFunc func(ctx context.Context) (token string, expiry time.Time, err error)

// cachedToken refreshes through fetch once the current token is within
// refreshMargin of expiring.
type cachedToken struct {
	fetch fetchFunc
	now   func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func newCachedToken(fetch fetchFunc) *cachedToken {
	return &cachedToken{fetch: fetch, now: time.Now}
}

func (t *cachedToken) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.expiry.Sub(t.now()) > refreshMargin {
		return t.token, nil
	}
	token, expiry, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.token, t.expiry = token, expiry
	return token, nil
}

func credentialsFor(httpClient *http.Client, gcp config.GCPConfig) (tokenProvider, error) {
	raw := []byte(gcp.CredentialsJSON)
	if len(raw) == 0 && gcp.ApplicationCredentials != "" {
		var err error
		if raw, err = os.ReadFile(gcp.ApplicationCredentials); err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
	}
	if len(raw) == 0 {
		return newCachedToken(func(ctx context.Context) (string, time.Time, error) {
			return metadataToken(ctx, httpClient)
		}), nil
	}
	return serviceAccountTokens(httpClient, raw)
}

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`

	key *rsa.PrivateKey
}

func serviceAccountTokens(httpClient *http.Client, raw []byte) (*cachedToken, error) {
	var sa serviceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account credentials need client_email and private_key")
	}
	if sa.TokenURI == "" {
		sa.TokenURI = defaultTokenURI
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parsing service account key: %w", err)
	}
	sa.key = key

	return newCachedToken(func(ctx context.Context) (string, time.Time, error) {
		assertion, err := sa.assertion(time.Now())
		if err != nil {
			return "", time.Time{}, fmt.Errorf("sign token assertion: %w", err)
		}
		form := url.Values{
			"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
			"assertion":  {assertion},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sa.TokenURI, strings.NewReader(form.Encode()))
		if err != nil {
			return "", time.Time{}, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return exchange(httpClient, req)
	}), nil
}

// assertion is the RS256 JWT bearer grant for the storage scope.
func (sa serviceAccount) assertion(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    sa.ClientEmail,
		Audience:  jwt.ClaimStrings{sa.TokenURI},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, scopedClaims{RegisteredClaims: claims, Scope: storageScope}).SignedString(sa.key)
}

type scopedClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

func metadataToken(ctx context.Context, httpClient *http.Client) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataTokenURL, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Metadata-Flavor", "Google")
	return exchange(httpClient, req)
}

// exchange sends a token request and decodes the OAuth access token reply.
func exchange(httpClient *http.Client, req *http.Request) (string, time.Time, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return "", time.Time{}, fmt.Errorf("token request to %s returned %d: %s", req.URL.Host, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	var reply struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token reply: %w", err)
	}
	if reply.AccessToken == "" {
		return "", time.Time{}, errors.New("token reply missing access_token")
	}
	return reply.AccessToken, time.Now().Add(time.Duration(reply.ExpiresIn) * time.Second), nil
}
