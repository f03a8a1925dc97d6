package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// headerIdempotencyKey позволяет клиенту безопасно повторять POST /orders:
// повтор с тем же ключом вернёт сохранённый ответ вместо второго заказа.
const headerIdempotencyKey = "Idempotency-Key"

// IdempotencyMiddleware обрабатывает заголовок Idempotency-Key.
// Запросы без заголовка проходят насквозь.
func IdempotencyMiddleware(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "idempotency-middleware")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
			if key == "" || repo == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, Error("failed to read request body"))
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := sha256.Sum256(body)
			requestHash := hex.EncodeToString(hash[:])

			var ttlAt time.Time
			if ttl > 0 {
				ttlAt = time.Now().UTC().Add(ttl)
			}

			record, err := repo.CreateProcessing(key, requestHash, ttlAt)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrIdempotencyHashMismatch):
					w.WriteHeader(http.StatusConflict)
					render.JSON(w, r, Error("idempotency key was already used with a different request body"))
				case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
					replayStoredResponse(w, r, record)
				default:
					logger.WithError(err).WithField("idempotency_key", key).Warn("failed to register idempotency key")
					w.WriteHeader(http.StatusInternalServerError)
					render.JSON(w, r, Error("internal error"))
				}
				return
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			markErr := error(nil)
			if rec.status >= http.StatusOK && rec.status < http.StatusMultipleChoices {
				markErr = repo.MarkDone(key, rec.body.Bytes(), rec.status)
			} else {
				markErr = repo.MarkFailed(key, rec.body.Bytes(), rec.status)
			}
			if markErr != nil {
				logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotency result")
			}
		})
	}
}

func replayStoredResponse(w http.ResponseWriter, r *http.Request, record domain.IdempotencyRecord) {
	if record.Status == domain.IdempotencyStatusProcessing {
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, Error("request with this idempotency key is still being processed"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	status := record.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

// responseRecorder дублирует тело и статус ответа для сохранения в хранилище ключей.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
