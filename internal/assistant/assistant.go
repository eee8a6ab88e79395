// Package assistant answers loan questions. MockAssistant returns one of a fixed
// set of answers; a retrieval pipeline can replace it behind Answerer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/loan-support/internal/simulate"
	"github.com/iwvelando/loan-support/pkg/constants"
	"go.uber.org/zap"
)

// ErrEmptyQuery is returned for a question without text.
var ErrEmptyQuery = errors.New("query is required")

// Question is a user query plus the number of passages to retrieve.
type Question struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// Answer is the assistant's reply.
type Answer struct {
	Answer string `json:"answer"`
}

// Answerer answers questions.
type Answerer interface {
	Ask(ctx context.Context, q Question) (Answer, error)
}

// MockAssistant picks a canned answer at random after a delay.
type MockAssistant struct {
	logger  *zap.Logger
	rnd     *simulate.Rand
	delay   simulate.Delay
	answers []string
}

// NewMockAssistant creates a MockAssistant over the built-in answers.
func NewMockAssistant(logger *zap.Logger, rnd *simulate.Rand, delay simulate.Delay) *MockAssistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rnd == nil {
		rnd = simulate.NewRand(0)
	}
	return &MockAssistant{logger: logger, rnd: rnd, delay: delay, answers: cannedAnswers}
}

// Ask validates the question, waits and returns a canned answer. A TopK of zero
// or less is replaced by constants.DefaultTopK.
func (m *MockAssistant) Ask(ctx context.Context, q Question) (Answer, error) {
	if strings.TrimSpace(q.Query) == "" {
		return Answer{}, ErrEmptyQuery
	}
	if q.TopK <= 0 {
		q.TopK = constants.DefaultTopK
	}

	if err := m.delay.Wait(ctx, m.rnd); err != nil {
		return Answer{}, fmt.Errorf("question interrupted: %w", err)
	}

	idx := m.rnd.IntN(len(m.answers))
	m.logger.Debug("answered question",
		zap.String("op", "assistant.Ask"),
		zap.Int("topK", q.TopK),
		zap.Int("queryLength", len(q.Query)),
		zap.Int("answer", idx),
	)
	return Answer{Answer: m.answers[idx]}, nil
}
