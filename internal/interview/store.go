package interview

import (
	"context"
	"time"

	"github.com/pitabwire/frame/data"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/rs/xid"
	"gorm.io/gorm"
)

// ExchangeRecord is a persisted question and answer.
type ExchangeRecord struct {
	data.BaseModel

	SessionID  string    `gorm:"type:varchar(50);not null;index:idx_ex_session" json:"session_id"`
	Profile    string    `gorm:"type:varchar(255)"                              json:"profile"`
	Turn       int64     `gorm:"not null"                                       json:"turn"`
	Question   string    `gorm:"type:text"                                      json:"question"`
	Answer     string    `gorm:"type:text;not null"                             json:"answer"`
	AnsweredAt time.Time `gorm:"not null"                                       json:"answered_at"`
}

func (ExchangeRecord) TableName() string { return "interview_exchanges" }

// ExchangeStore persists interview exchanges.
type ExchangeStore interface {
	SaveExchange(ctx context.Context, sessionID, profile string, ex Exchange) error
	ListExchanges(ctx context.Context, sessionID string) ([]Exchange, error)
}

// Store is the gorm repository of exchanges.
type Store struct {
	pool pool.Pool
}

// NewStore creates a store on the service's datastore pool.
func NewStore(p pool.Pool) *Store {
	return &Store{pool: p}
}

func (s *Store) db(ctx context.Context, readOnly bool) *gorm.DB {
	return s.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the exchange table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db(ctx, false).AutoMigrate(&ExchangeRecord{})
}

// SaveExchange persists one exchange.
func (s *Store) SaveExchange(ctx context.Context, sessionID, profile string, ex Exchange) error {
	rec := &ExchangeRecord{
		SessionID:  sessionID,
		Profile:    profile,
		Turn:       ex.Turn,
		Question:   ex.Question,
		Answer:     ex.Answer,
		AnsweredAt: ex.At,
	}
	rec.ID = xid.New().String()
	return s.db(ctx, false).Create(rec).Error
}

// ListExchanges returns a session's exchanges in turn order.
func (s *Store) ListExchanges(ctx context.Context, sessionID string) ([]Exchange, error) {
	var records []ExchangeRecord
	err := s.db(ctx, true).
		Where("session_id = ?", sessionID).
		Order("turn ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]Exchange, 0, len(records))
	for _, r := range records {
		out = append(out, Exchange{Turn: r.Turn, Question: r.Question, Answer: r.Answer, At: r.AnsweredAt})
	}
	return out, nil
}
