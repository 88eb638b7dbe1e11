package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	apperrors "github.com/rideon/dispatch/internal/errors"
	"github.com/rideon/dispatch/pkg/utils"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	idempotencyPrefix = "idempotency:"
)

// Idempotency replays the cached response for a repeated write carrying the
// same Idempotency-Key, and rejects reuse of a key with a different body.
// Keys are held in Redis for 24 hours.
type Idempotency struct {
	redis *redis.Client
}

type storedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	BodyHash    string `json:"body_hash"`
}

func NewIdempotency(redisClient *redis.Client) *Idempotency {
	return &Idempotency{redis: redisClient}
}

type captureWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.statusCode = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.body.Write(b)
	return cw.ResponseWriter.Write(b)
}

func (m *Idempotency) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(IdempotencyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			utils.BadRequest(w, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		sum := sha256.Sum256(bodyBytes)
		bodyHash := hex.EncodeToString(sum[:])
		cacheKey := idempotencyPrefix + key
		ctx := r.Context()

		if stored, err := m.lookup(ctx, cacheKey); err == nil {
			if stored.BodyHash != bodyHash {
				utils.Error(w, apperrors.Conflict("idempotency key already used with a different request"))
				return
			}
			if stored.ContentType != "" {
				w.Header().Set("Content-Type", stored.ContentType)
			}
			w.WriteHeader(stored.StatusCode)
			w.Write(stored.Body)
			return
		}

		// In-flight duplicates are rejected rather than queued.
		lockKey := cacheKey + ":lock"
		locked, err := m.redis.SetNX(ctx, lockKey, "1", 30*time.Second).Result()
		if err != nil || !locked {
			utils.Error(w, apperrors.Conflict("a request with this idempotency key is already in progress"))
			return
		}
		defer m.redis.Del(ctx, lockKey)

		cw := &captureWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(cw, r)

		if cw.statusCode >= 200 && cw.statusCode < 300 {
			stored := storedResponse{
				StatusCode:  cw.statusCode,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.body.Bytes(),
				BodyHash:    bodyHash,
			}
			if data, err := json.Marshal(stored); err == nil {
				m.redis.Set(ctx, cacheKey, data, idempotencyTTL)
			}
		}
	})
}

func (m *Idempotency) lookup(ctx context.Context, key string) (*storedResponse, error) {
	data, err := m.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
