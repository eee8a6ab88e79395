// Package ingest triggers document ingestion. The only implementation today is
// a placeholder that reports randomized page and chunk counts after a delay;
// a real pipeline (PDF parsing, chunking, embedding, indexing) is expected to
// satisfy the same Ingester interface.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/iwvelando/loan-support/internal/simulate"
	"github.com/iwvelando/loan-support/pkg/constants"
	"go.uber.org/zap"
)

// StatusOK is reported for a completed ingestion run.
const StatusOK = "ok"

// Counts summarizes what an ingestion run processed.
type Counts struct {
	Pages  int `json:"pages"`
	Chunks int `json:"chunks"`
}

// Result is the outcome of one ingestion run.
type Result struct {
	Status   string `json:"status"`
	Ingested Counts `json:"ingested"`
}

// Ingester processes the documents found under a path.
type Ingester interface {
	Ingest(ctx context.Context, path string) (Result, error)
}

// MockIngester fabricates ingestion results.
type MockIngester struct {
	logger      *zap.Logger
	rnd         *simulate.Rand
	delay       simulate.Delay
	defaultPath string
}

// NewMockIngester creates a MockIngester. An empty defaultPath falls back to
// constants.DefaultDocumentsPath.
func NewMockIngester(logger *zap.Logger, rnd *simulate.Rand, delay simulate.Delay, defaultPath string) *MockIngester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rnd == nil {
		rnd = simulate.NewRand(0)
	}
	if strings.TrimSpace(defaultPath) == "" {
		defaultPath = constants.DefaultDocumentsPath
	}
	return &MockIngester{logger: logger, rnd: rnd, delay: delay, defaultPath: defaultPath}
}

// Ingest waits for the configured delay and reports 50-249 pages split into
// 500-2499 chunks.
func (m *MockIngester) Ingest(ctx context.Context, path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		path = m.defaultPath
	}
	jobID := uuid.NewString()

	m.logger.Debug("ingestion started",
		zap.String("op", "ingest.Ingest"),
		zap.String("job", jobID),
		zap.String("path", path),
	)

	if err := m.delay.Wait(ctx, m.rnd); err != nil {
		return Result{}, fmt.Errorf("ingestion of %s interrupted: %w", path, err)
	}

	result := Result{
		Status: StatusOK,
		Ingested: Counts{
			Pages:  m.rnd.Between(50, 200),
			Chunks: m.rnd.Between(500, 2000),
		},
	}

	m.logger.Info("ingestion finished",
		zap.String("op", "ingest.Ingest"),
		zap.String("job", jobID),
		zap.String("path", path),
		zap.Int("pages", result.Ingested.Pages),
		zap.Int("chunks", result.Ingested.Chunks),
	)
	return result, nil
}
