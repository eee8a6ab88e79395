package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/iwvelando/loan-support/internal/calculator"
	"go.uber.org/zap"
)

const (
	requestIDHeader    = "X-Request-ID"
	maxRequestIDLength = 64
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) statusCode() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

// instrument assigns every request an ID, notes the bearer subject when one can
// be verified, and logs the completed request. It never rejects a request.
func (h *handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := calculator.WithRequestID(r.Context(), id)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		fields := []zap.Field{
			zap.String("op", "server.instrument"),
			zap.String("requestID", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.statusCode()),
			zap.Duration("duration", time.Since(start)),
		}
		if subject := h.bearerSubject(r); subject != "" {
			fields = append(fields, zap.String("subject", subject))
		}
		h.logger.Debug("request served", fields...)
	})
}

// bearerSubject returns the subject of an HS256 bearer token signed with the
// configured secret. Missing, malformed or unverifiable tokens yield "".
func (h *handler) bearerSubject(r *http.Request) string {
	if len(h.jwtSecret) == 0 {
		return ""
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return ""
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		h.logger.Debug("ignoring unverifiable bearer token",
			zap.String("op", "server.bearerSubject"),
			zap.Error(err),
		)
		return ""
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return ""
	}
	return subject
}
