// Package httpapi exposes the withdrawal command and the outbox operational
// endpoints over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/velmie/withdrawal-service/bank"
	"github.com/velmie/withdrawal-service/outbox"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler serves the withdrawal API. Operational reads and the requeue
// action go straight to the outbox store; only withdrawals run through the
// command pipeline.
type Handler struct {
	service *bank.Service
	store   outbox.Store
	logger  zerolog.Logger
}

// NewHandler builds the HTTP routing table.
func NewHandler(service *bank.Service, store outbox.Store, logger zerolog.Logger) http.Handler {
	if service == nil {
		panic("httpapi: nil service")
	}
	if store == nil {
		panic("httpapi: nil store")
	}

	h := &Handler{service: service, store: store, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /withdrawals", h.withdraw)
	mux.HandleFunc("GET /outbox/stats", h.outboxStats)
	mux.HandleFunc("GET /outbox/failed", h.outboxFailed)
	mux.HandleFunc("GET /outbox/processed", h.outboxProcessed)
	mux.HandleFunc("POST /outbox/records/{id}/requeue", h.outboxRequeue)
	mux.HandleFunc("GET /healthz", h.healthz)

	return accessLog(logger)(mux)
}

type withdrawRequest struct {
	AccountID uuid.UUID       `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
}

type errorResponse struct {
	Code        string       `json:"code"`
	Description string       `json:"description,omitempty"`
	Errors      []fieldError `json:"errors,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:        bank.CodeValidationFailed,
			Description: "malformed request body",
		})

		return
	}

	result, err := h.service.Withdraw(r.Context(), &bank.WithdrawCommand{
		AccountID: req.AccountID,
		Amount:    req.Amount,
	})
	if err != nil {
		h.writeWithdrawError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeWithdrawError(w http.ResponseWriter, r *http.Request, err error) {
	if validationErr, ok := bank.AsValidationError(err); ok {
		fieldErrs := make([]fieldError, 0, len(validationErr.Errors))
		for _, fe := range validationErr.Errors {
			fieldErrs = append(fieldErrs, fieldError{Field: fe.Field, Message: fe.Message})
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:   bank.CodeValidationFailed,
			Errors: fieldErrs,
		})

		return
	}

	if domainErr, ok := bank.AsError(err); ok {
		status := http.StatusUnprocessableEntity
		if domainErr.Code == bank.CodeAccountNotFound {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{
			Code:        domainErr.Code,
			Description: domainErr.Description,
		})

		return
	}

	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("withdrawal failed")
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:        "Internal.Error",
		Description: "internal error",
	})
}

type statsResponse struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

func (h *Handler) outboxStats(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.CountPending(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}
	failed, err := h.store.CountFailed(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, statsResponse{Pending: pending, Failed: failed})
}

type recordResponse struct {
	ID          uuid.UUID       `json:"id"`
	EventType   string          `json:"eventType"`
	Payload     json.RawMessage `json:"payload"`
	Status      outbox.Status   `json:"status"`
	OccurredAt  time.Time       `json:"occurredAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	LastError   *string         `json:"lastError,omitempty"`
}

func toRecordResponses(records []outbox.Record) []recordResponse {
	out := make([]recordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, recordResponse{
			ID:          record.ID,
			EventType:   record.EventType,
			Payload:     record.Payload,
			Status:      record.Status(),
			OccurredAt:  record.OccurredAt,
			ProcessedAt: record.ProcessedAt,
			LastError:   record.LastError,
		})
	}

	return out
}

func (h *Handler) outboxFailed(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	records, err := h.store.FetchFailed(r.Context(), limit)
	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, toRecordResponses(records))
}

func (h *Handler) outboxProcessed(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Code:        bank.CodeValidationFailed,
				Description: "since must be RFC 3339",
			})

			return
		}
		since = &parsed
	}

	records, err := h.store.FetchProcessed(r.Context(), since, limit)
	if err != nil {
		h.writeStoreError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, toRecordResponses(records))
}

func (h *Handler) outboxRequeue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:        bank.CodeValidationFailed,
			Description: "record id must be a UUID",
		})

		return
	}

	switch err := h.store.Requeue(r.Context(), id); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, outbox.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Code:        "Outbox.RecordNotFound",
			Description: "no outbox record with the given id",
		})
	case errors.Is(err, outbox.ErrRecordNotFailed):
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:        "Outbox.RecordNotFailed",
			Description: "only failed records can be requeued",
		})
	default:
		h.writeStoreError(w, r, err)
	}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("outbox store error")
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:        "Internal.Error",
		Description: "internal error",
	})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > maxListLimit {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:        bank.CodeValidationFailed,
			Description: "limit must be between 1 and " + strconv.Itoa(maxListLimit),
		})

		return 0, false
	}

	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
