package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CalculationRecord is one audited eligibility calculation.
type CalculationRecord struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	RequestID          string    `gorm:"size:64;index" json:"request_id,omitempty"`
	MonthlyIncome      float64   `json:"monthly_income"`
	MonthlyObligations float64   `json:"monthly_obligations"`
	ROI                float64   `json:"roi"`
	TenureMonths       int       `json:"tenure_months"`
	LoanAmount         *float64  `json:"loan_amount,omitempty"`
	EMI                int64     `json:"emi"`
	FOIR               float64   `json:"foir"`
	EligibleLoanAmount int64     `json:"eligible_loan_amount"`
	CreatedAt          time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name independent of struct naming.
func (CalculationRecord) TableName() string {
	return "eligibility_calculations"
}

// CalculationRepository stores audited calculations.
type CalculationRepository interface {
	Save(ctx context.Context, rec *CalculationRecord) error
	Recent(ctx context.Context, limit int) ([]CalculationRecord, error)
}

// NopRepository discards records.
type NopRepository struct{}

// Save discards rec.
func (NopRepository) Save(context.Context, *CalculationRecord) error { return nil }

// Recent always returns an empty list.
func (NopRepository) Recent(context.Context, int) ([]CalculationRecord, error) { return nil, nil }

// MemoryRepository keeps the most recent records in memory.
type MemoryRepository struct {
	mu       sync.Mutex
	records  []CalculationRecord
	capacity int
	nextID   uint
	now      func() time.Time
}

// NewMemoryRepository keeps at most capacity records; capacity <= 0 means 1000.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryRepository{capacity: capacity, now: time.Now}
}

// Save appends rec, assigning ID and CreatedAt, and drops the oldest record
// once capacity is reached.
func (m *MemoryRepository) Save(_ context.Context, rec *CalculationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	rec.ID = m.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	m.records = append(m.records, *rec)
	if len(m.records) > m.capacity {
		m.records = m.records[len(m.records)-m.capacity:]
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (m *MemoryRepository) Recent(_ context.Context, limit int) ([]CalculationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]CalculationRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// GormRepository stores records in a SQL database through GORM.
type GormRepository struct {
	db *gorm.DB
}

// OpenPostgres connects to PostgreSQL and migrates the audit table.
func OpenPostgres(dsn string) (*GormRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewGormRepository(db)
}

// NewGormRepository wraps db and migrates the audit table.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&CalculationRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", CalculationRecord{}.TableName(), err)
	}
	return &GormRepository{db: db}, nil
}

// Save inserts rec.
func (g *GormRepository) Save(ctx context.Context, rec *CalculationRecord) error {
	return g.db.WithContext(ctx).Create(rec).Error
}

// Recent returns up to limit records, newest first.
func (g *GormRepository) Recent(ctx context.Context, limit int) ([]CalculationRecord, error) {
	var records []CalculationRecord
	q := g.db.WithContext(ctx).Order("created_at desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the underlying connection pool.
func (g *GormRepository) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
