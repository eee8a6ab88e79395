package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/iwvelando/loan-support/internal/assistant"
	"github.com/iwvelando/loan-support/internal/calculator"
	"github.com/iwvelando/loan-support/internal/ingest"
	"github.com/iwvelando/loan-support/internal/simulate"
	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Options wires the handler's collaborators. Nil services are replaced by mocks
// without simulated latency.
type Options struct {
	Logger         *zap.Logger
	Version        string
	MaxRequestSize int64
	AllowedOrigins []string
	JWTSecret      string
	RateLimiter    *RateLimiter
	Metrics        *Metrics
	Calculator     *calculator.Service
	Ingester       ingest.Ingester
	Assistant      assistant.Answerer
}

type handler struct {
	logger         *zap.Logger
	maxRequestSize int64
	version        string
	jwtSecret      []byte
	metrics        *Metrics
	calculator     *calculator.Service
	ingester       ingest.Ingester
	assistant      assistant.Answerer
}

// NewHandler constructs the HTTP handler that serves the versioned API and the
// Prometheus endpoint.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxRequestSize := opts.MaxRequestSize
	if maxRequestSize <= 0 {
		maxRequestSize = constants.DefaultMaxRequestSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:         logger,
		maxRequestSize: maxRequestSize,
		version:        trimmedVersion,
		metrics:        opts.Metrics,
		calculator:     opts.Calculator,
		ingester:       opts.Ingester,
		assistant:      opts.Assistant,
	}
	if opts.JWTSecret != "" {
		h.jwtSecret = []byte(opts.JWTSecret)
	}
	if h.metrics == nil {
		h.metrics = NewMetrics()
	}
	if h.calculator == nil {
		h.calculator = calculator.NewService(logger, calculator.Options{})
	}
	if h.ingester == nil {
		h.ingester = ingest.NewMockIngester(logger, nil, simulate.Delay{}, "")
	}
	if h.assistant == nil {
		h.assistant = assistant.NewMockAssistant(logger, nil, simulate.Delay{})
	}

	limited := func(next http.HandlerFunc) http.Handler {
		if opts.RateLimiter == nil {
			return next
		}
		return opts.RateLimiter.Middleware(next)
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(h.handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(h.handleMethodNotAllowed)
	router.Use(h.metrics.Middleware)

	router.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix(constants.APIPrefix).Subrouter()
	api.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/version", h.handleVersion).Methods(http.MethodGet)
	api.Handle("/ingest", limited(h.handleIngest)).Methods(http.MethodPost)
	api.Handle("/chat/ask", limited(h.handleAsk)).Methods(http.MethodPost)
	api.Handle("/eligibility/calculate", limited(h.handleEligibility)).Methods(http.MethodPost)
	api.HandleFunc("/eligibility/history", h.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/docs", h.handleDocs).Methods(http.MethodGet)
	api.HandleFunc("/openapi.json", h.handleOpenAPI).Methods(http.MethodGet)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})

	return c.Handler(h.instrument(router))
}

func (h *handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, errorResponse{Message: http.StatusText(http.StatusNotFound)})
}

func (h *handler) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Message: http.StatusText(http.StatusMethodNotAllowed)})
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, status int, msg string, op string) {
	h.respondErrorWithCause(w, r, status, msg, nil, op)
}

// respondErrorWithCause writes {"message": msg, "error": cause} and logs the
// failure with the request ID.
func (h *handler) respondErrorWithCause(w http.ResponseWriter, r *http.Request, status int, msg string, cause error, op string) {
	body := errorResponse{Message: msg}
	fields := []zap.Field{
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("requestID", calculator.RequestID(r.Context())),
		zap.String("message", msg),
	}
	if cause != nil {
		body.Error = cause.Error()
		fields = append(fields, zap.Error(cause))
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", fields...)
	} else {
		h.logger.Warn("request rejected", fields...)
	}

	h.writeJSON(w, status, body)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
