package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/iwvelando/loan-support/internal/assistant"
	"github.com/iwvelando/loan-support/internal/calculator"
	"github.com/iwvelando/loan-support/internal/storage"
	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/iwvelando/loan-support/pkg/eligibility"
	"go.uber.org/zap"
)

var errEmptyBody = errors.New("empty request body")

type ingestRequest struct {
	Path string `json:"path"`
}

type historyResponse struct {
	Calculations []storage.CalculationRecord `json:"calculations"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleIngest"

	var req ingestRequest
	if err := h.decodeJSON(w, r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		h.respondDecodeError(w, r, err, op)
		return
	}

	result, err := h.ingester.Ingest(r.Context(), req.Path)
	if err != nil {
		h.respondErrorWithCause(w, r, http.StatusInternalServerError, "Failed to ingest documents", err, op)
		return
	}

	h.logger.Info("documents ingested",
		zap.String("op", op),
		zap.String("requestID", calculator.RequestID(r.Context())),
		zap.Int("pages", result.Ingested.Pages),
		zap.Int("chunks", result.Ingested.Chunks),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAsk"

	var q assistant.Question
	if err := h.decodeJSON(w, r, &q); err != nil && !errors.Is(err, errEmptyBody) {
		h.respondDecodeError(w, r, err, op)
		return
	}

	answer, err := h.assistant.Ask(r.Context(), q)
	if err != nil {
		if errors.Is(err, assistant.ErrEmptyQuery) {
			h.respondError(w, r, http.StatusBadRequest, "Query is required", op)
			return
		}
		h.respondErrorWithCause(w, r, http.StatusInternalServerError, "Failed to process question", err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, answer)
}

func (h *handler) handleEligibility(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEligibility"

	var payload map[string]interface{}
	if err := h.decodeJSON(w, r, &payload); err != nil && !errors.Is(err, errEmptyBody) {
		h.respondDecodeError(w, r, err, op)
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	in, err := calculator.ParseRequest(payload)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, err.Error(), op)
		return
	}

	result, err := h.calculator.Calculate(r.Context(), in)
	if err != nil {
		var validationErr *calculator.ValidationError
		if errors.As(err, &validationErr) || errors.Is(err, eligibility.ErrInvalidInput) {
			h.respondError(w, r, http.StatusBadRequest, err.Error(), op)
			return
		}
		h.respondErrorWithCause(w, r, http.StatusInternalServerError, "Failed to calculate eligibility", err, op)
		return
	}

	h.metrics.ObserveEligibility(result)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleHistory"

	limit := constants.DefaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.respondError(w, r, http.StatusBadRequest, "limit must be a positive integer", op)
			return
		}
		limit = parsed
	}
	if limit > constants.MaxHistoryLimit {
		limit = constants.MaxHistoryLimit
	}

	records, err := h.calculator.History(r.Context(), limit)
	if err != nil {
		h.respondErrorWithCause(w, r, http.StatusInternalServerError, "Failed to load calculation history", err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, historyResponse{Calculations: records})
}

func (h *handler) handleDocs(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, constants.DocsRedirectURL, http.StatusFound)
}

func (h *handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, openAPIDocument(h.version))
}

// decodeJSON reads a size-limited JSON body into dst. Numbers are kept as
// json.Number so string and numeric fields can be validated alike. An empty
// body yields errEmptyBody and leaves dst untouched.
func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func (h *handler) respondDecodeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.respondError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds limit of %d bytes", h.maxRequestSize), op)
		return
	}
	h.respondErrorWithCause(w, r, http.StatusBadRequest, "invalid JSON body", err, op)
}
