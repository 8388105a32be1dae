package webhook

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pitabwire/frame/datastore/pool"
	"github.com/rs/xid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when an endpoint or dead letter does not exist.
var ErrNotFound = errors.New("webhook: not found")

// Recorder persists delivery outcomes.
type Recorder interface {
	RecordDelivery(ctx context.Context, d *Delivery) error
	CreateDeadLetter(ctx context.Context, dl *DeadLetter) error
	RecordHealth(ctx context.Context, webhookID string, failed bool) error
}

// Repository stores endpoints, deliveries and dead letters through the
// frame datastore pool.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a new webhook repository.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the webhook tables.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db(ctx, false).AutoMigrate(&Endpoint{}, &Delivery{}, &DeadLetter{})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) CreateEndpoint(ctx context.Context, e *Endpoint) error {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	return r.db(ctx, false).Create(e).Error
}

func (r *Repository) GetEndpoint(ctx context.Context, id string) (*Endpoint, error) {
	var e Endpoint
	if err := r.db(ctx, true).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *Repository) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	var out []Endpoint
	err := r.db(ctx, true).Order("created_at ASC").Find(&out).Error
	return out, err
}

// ListActive returns the active endpoints. Event type filtering happens in
// the caller so any SQL dialect works.
func (r *Repository) ListActive(ctx context.Context) ([]Endpoint, error) {
	var out []Endpoint
	err := r.db(ctx, true).Where("active = ?", true).Find(&out).Error
	return out, err
}

func (r *Repository) UpdateEndpoint(ctx context.Context, e *Endpoint) error {
	return r.db(ctx, false).Save(e).Error
}

func (r *Repository) DeleteEndpoint(ctx context.Context, id string) error {
	res := r.db(ctx, false).Where("id = ?", id).Delete(&Endpoint{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordHealth resets the failure count on success and bumps it on failure.
func (r *Repository) RecordHealth(ctx context.Context, webhookID string, failed bool) error {
	q := r.db(ctx, false).Model(&Endpoint{}).Where("id = ?", webhookID)
	if !failed {
		return q.Update("failure_count", 0).Error
	}
	return q.Updates(map[string]any{
		"failure_count":   gorm.Expr("failure_count + 1"),
		"last_failure_at": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}).Error
}

func (r *Repository) RecordDelivery(ctx context.Context, d *Delivery) error {
	if d.ID == "" {
		d.ID = xid.New().String()
	}
	return r.db(ctx, false).Create(d).Error
}

// ListDeliveries returns the newest attempts for an endpoint first.
func (r *Repository) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error) {
	var out []Delivery
	q := r.db(ctx, true).Where("webhook_id = ?", webhookID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *Repository) CreateDeadLetter(ctx context.Context, dl *DeadLetter) error {
	if dl.ID == "" {
		dl.ID = xid.New().String()
	}
	return r.db(ctx, false).Create(dl).Error
}

// ListDeadLetters returns the replayable dead letters of an endpoint.
func (r *Repository) ListDeadLetters(ctx context.Context, webhookID string) ([]DeadLetter, error) {
	var out []DeadLetter
	err := r.db(ctx, true).
		Where("webhook_id = ? AND replayable = ?", webhookID, true).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

func (r *Repository) GetDeadLetter(ctx context.Context, webhookID, id string) (*DeadLetter, error) {
	var dl DeadLetter
	err := r.db(ctx, true).Where("id = ? AND webhook_id = ?", id, webhookID).First(&dl).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &dl, nil
}

// MarkDeadLetterReplayed marks a dead letter as no longer replayable.
func (r *Repository) MarkDeadLetterReplayed(ctx context.Context, id string) error {
	return r.db(ctx, false).Model(&DeadLetter{}).Where("id = ?", id).Update("replayable", false).Error
}
