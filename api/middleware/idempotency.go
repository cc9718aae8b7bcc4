package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ecomstore/storefront-backend/api/responses"
	pkgerrors "github.com/ecomstore/storefront-backend/pkg/errors"
	"github.com/ecomstore/storefront-backend/pkg/logger"
	pkgredis "github.com/ecomstore/storefront-backend/pkg/redis"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	idempotencyReplayHeader = "Idempotent-Replayed"
	criticalIdempotencyTTL  = 7 * 24 * time.Hour
	inFlightTTL             = 2 * time.Minute
	maxIdempotencyKeyLen    = 255
)

// Money-moving routes keep records for a week.
var idempotentRoutes = []struct {
	method string
	path   string
	prefix bool
	ttl    time.Duration
}{
	{method: http.MethodPost, path: "/api/v1/orders", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, path: "/api/v1/checkout", ttl: criticalIdempotencyTTL},
	{method: http.MethodPost, path: "/api/v1/payments/", prefix: true, ttl: criticalIdempotencyTTL},
}

var (
	errKeyInProgress = pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is already in progress")
	errKeyReused     = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
)

// storedResponse is what a finished request leaves under its key. A pending
// entry only carries the request fingerprint.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

type idempotencyGate struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// the routes above. Requests without the header run normally. Reusing a key
// with another body, or while the first request runs, answers 409. Server
// errors are not recorded so the client may retry.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	gate := idempotencyGate{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := trimmedHeader(r, idempotencyHeader)
			ttl, tracked := routeTTL(r.Method, routePattern(r))
			if !tracked || store == nil || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := gate.serve(w, r, next, clientKey, ttl); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

// serve returns an error only when nothing has been written yet.
func (g idempotencyGate) serve(w http.ResponseWriter, r *http.Request, next http.Handler, clientKey string, ttl time.Duration) error {
	ctx := r.Context()
	if len(clientKey) > maxIdempotencyKeyLen {
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key too long")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	sum := sha256.Sum256(body)
	fingerprint := hex.EncodeToString(sum[:])
	key := g.store.IdempotencyKey(idempotencyScope(r), clientKey)

	prior, err := g.lookup(ctx, key)
	if err != nil {
		return err
	}
	if prior != nil {
		switch {
		case prior.Fingerprint != fingerprint:
			return errKeyReused
		case prior.Pending:
			return errKeyInProgress
		}
		prior.replay(w)
		return nil
	}

	pending, _ := json.Marshal(storedResponse{Pending: true, Fingerprint: fingerprint})
	reserved, err := g.store.SetNX(ctx, key, string(pending), inFlightTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	if !reserved {
		return errKeyInProgress
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	g.record(context.WithoutCancel(ctx), key, fingerprint, capture, ttl)
	return nil
}

func (g idempotencyGate) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil) || (err == nil && raw == ""):
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &stored, nil
}

// record swaps the pending entry for the final response. Failures are logged
// because the client already has its answer.
func (g idempotencyGate) record(ctx context.Context, key, fingerprint string, capture *responseCapture, ttl time.Duration) {
	if err := g.store.Del(ctx, key); err != nil {
		g.logFailure(ctx, "clear idempotency reservation", err)
		return
	}
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		return
	}
	payload, err := json.Marshal(storedResponse{
		Fingerprint: fingerprint,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err != nil {
		g.logFailure(ctx, "marshal idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(ctx, key, string(payload), ttl); err != nil {
		g.logFailure(ctx, "persist idempotency record", err)
	}
}

func (g idempotencyGate) logFailure(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(idempotencyReplayHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// idempotencyScope keeps keys private to one shopper and one endpoint.
func idempotencyScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

// routePattern prefers the matched chi pattern. Inside a mounted group the
// pattern is still a wildcard when middleware runs, so the raw path is used.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	for _, route := range idempotentRoutes {
		if route.method != method {
			continue
		}
		if pattern == route.path || (route.prefix && strings.HasPrefix(pattern, route.path)) {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
