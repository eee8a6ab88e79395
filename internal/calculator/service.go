package calculator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/loan-support/internal/simulate"
	"github.com/iwvelando/loan-support/internal/storage"
	"github.com/iwvelando/loan-support/pkg/eligibility"
	"go.uber.org/zap"
)

// Options configure a Service. Zero values disable the optional collaborators.
type Options struct {
	Cache    storage.Cache
	CacheTTL time.Duration
	Audit    storage.CalculationRepository
	Delay    simulate.Delay
	Rand     *simulate.Rand
}

// Service runs eligibility calculations.
type Service struct {
	logger   *zap.Logger
	cache    storage.Cache
	cacheTTL time.Duration
	audit    storage.CalculationRepository
	delay    simulate.Delay
	rnd      *simulate.Rand
}

// NewService creates a Service.
func NewService(logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = storage.NopCache{}
	}
	if opts.Audit == nil {
		opts.Audit = storage.NopRepository{}
	}
	if opts.Rand == nil {
		opts.Rand = simulate.NewRand(0)
	}
	return &Service{
		logger:   logger,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		audit:    opts.Audit,
		delay:    opts.Delay,
		rnd:      opts.Rand,
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that is recorded in the audit log.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored by WithRequestID, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Calculate computes the eligibility result for in. Cache and audit failures
// are logged and never fail the calculation.
func (s *Service) Calculate(ctx context.Context, in eligibility.Input) (eligibility.Result, error) {
	if err := s.delay.Wait(ctx, s.rnd); err != nil {
		return eligibility.Result{}, fmt.Errorf("calculation interrupted: %w", err)
	}

	key := cacheKey(in)
	if cached, ok := s.lookup(ctx, key); ok {
		s.record(ctx, in, cached)
		return cached, nil
	}

	result, err := eligibility.Compute(in)
	if err != nil {
		return eligibility.Result{}, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, key, string(encoded), s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache eligibility result",
				zap.String("op", "calculator.Calculate"),
				zap.Error(err),
			)
		}
	}

	s.record(ctx, in, result)
	return result, nil
}

// History returns the most recent audited calculations.
func (s *Service) History(ctx context.Context, limit int) ([]storage.CalculationRecord, error) {
	records, err := s.audit.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load calculation history: %w", err)
	}
	if records == nil {
		records = []storage.CalculationRecord{}
	}
	return records, nil
}

func (s *Service) lookup(ctx context.Context, key string) (eligibility.Result, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read eligibility cache",
			zap.String("op", "calculator.Calculate"),
			zap.Error(err),
		)
		return eligibility.Result{}, false
	}
	if !ok {
		return eligibility.Result{}, false
	}

	var result eligibility.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		s.logger.Warn("discarding malformed cache entry",
			zap.String("op", "calculator.Calculate"),
			zap.String("key", key),
			zap.Error(err),
		)
		return eligibility.Result{}, false
	}
	s.logger.Debug("eligibility cache hit",
		zap.String("op", "calculator.Calculate"),
		zap.String("key", key),
	)
	return result, true
}

func (s *Service) record(ctx context.Context, in eligibility.Input, result eligibility.Result) {
	rec := &storage.CalculationRecord{
		RequestID:          RequestID(ctx),
		MonthlyIncome:      in.MonthlyIncome,
		MonthlyObligations: in.MonthlyObligations,
		ROI:                in.AnnualRatePercent,
		TenureMonths:       in.TenureMonths,
		LoanAmount:         in.LoanAmount,
		EMI:                result.EMI,
		FOIR:               result.FOIR,
		EligibleLoanAmount: result.EligibleLoanAmount,
	}
	if err := s.audit.Save(ctx, rec); err != nil {
		s.logger.Warn("failed to audit eligibility calculation",
			zap.String("op", "calculator.Calculate"),
			zap.Error(err),
		)
	}
}

// cacheKey is a canonical, exact encoding of the input.
func cacheKey(in eligibility.Input) string {
	parts := []string{
		"eligibility:v1",
		strconv.FormatFloat(in.MonthlyIncome, 'g', -1, 64),
		strconv.FormatFloat(in.MonthlyObligations, 'g', -1, 64),
		strconv.FormatFloat(in.AnnualRatePercent, 'g', -1, 64),
		strconv.Itoa(in.TenureMonths),
	}
	if in.LoanAmount != nil {
		parts = append(parts, strconv.FormatFloat(*in.LoanAmount, 'g', -1, 64))
	} else {
		parts = append(parts, "-")
	}
	return strings.Join(parts, ":")
}
