package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ReplayHeader is set on responses served from the idempotency store.
const ReplayHeader = "Idempotent-Replay"

// Idem provides an Idempotency-Key middleware backed by Redis. The first
// completed response for a key is stored and replayed for later requests
// carrying the same key, so a retried create returns the original id.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

var pendingMarker = []byte(`{"status":0}`)

func hashKey(method, path, key string) string {
	sum := sha256.Sum256([]byte(method + " " + path + " " + key))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency semantics for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if header == "" || i.R == nil || !isWrite(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := hashKey(r.Method, r.URL.Path, header)

		existing, err := i.R.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			replay(w, existing)
			return
		case !errors.Is(err, redis.Nil):
			commonJSONError(w, err)
			return
		}

		ok, err := i.R.SetNX(ctx, key, pendingMarker, i.ttl()).Result()
		if err != nil {
			commonJSONError(w, err)
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request in progress", nil)
			return
		}

		capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			// a panicking or failing handler must not pin the key
			if rec := recover(); rec != nil {
				_ = i.R.Del(context.Background(), key).Err()
				panic(rec)
			}
			if capture.status >= http.StatusInternalServerError {
				_ = i.R.Del(context.Background(), key).Err()
				return
			}
			stored, err := json.Marshal(storedResponse{
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err != nil {
				_ = i.R.Del(context.Background(), key).Err()
				return
			}
			if err := i.R.Set(context.Background(), key, stored, i.ttl()).Err(); err != nil {
				// a pending marker left behind would answer 409 until it expires
				delErr := i.R.Del(context.Background(), key).Err()
				zerolog.Ctx(ctx).Error().Err(err).AnErr("release_error", delErr).
					Str("path", r.URL.Path).Msg("idempotency: store response")
			}
		}()
		next.ServeHTTP(capture, r)
	})
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

func replay(w http.ResponseWriter, data []byte) {
	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil || stored.Status == 0 {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request in progress", nil)
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(ReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

func commonJSONError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
}
