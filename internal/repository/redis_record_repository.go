package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/askew/internal/domain"
	"github.com/spec-kit/askew/internal/persistence"
)

// Key layout, all under <namespace>:<collection>:
//
//	doc:<id>         JSON document
//	order            sorted set of ids scored by creation sequence
//	seq              creation sequence counter
//	unique:<field>   hash of claimed value -> id
type redisRecordRepository struct {
	schema    domain.Schema
	redis     *persistence.Redis
	prefix    string
	logger    *zap.Logger
	now       func() time.Time
	newID     func() (string, error)
	connected atomic.Bool
}

type redisDocument struct {
	ID        string            `json:"id"`
	Fields    map[string]string `json:"fields"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NewRedisRecordRepository returns a repository keeping documents in Redis.
func NewRedisRecordRepository(schema domain.Schema, namespace string, client *persistence.Redis, logger *zap.Logger) RecordRepository {
	return &redisRecordRepository{
		schema: schema,
		redis:  client,
		prefix: namespace + ":" + schema.Collection + ":",
		logger: logger.With(zap.String("collection", schema.Collection)),
		now:    time.Now,
		newID:  newDocumentID,
	}
}

func newDocumentID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (r *redisRecordRepository) docKey(id string) string {
	return r.prefix + "doc:" + id
}

func (r *redisRecordRepository) orderKey() string {
	return r.prefix + "order"
}

func (r *redisRecordRepository) seqKey() string {
	return r.prefix + "seq"
}

func (r *redisRecordRepository) uniqueKey(field string) string {
	return r.prefix + "unique:" + field
}

func (r *redisRecordRepository) Connect(ctx context.Context) error {
	if err := r.redis.Connect(ctx); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	r.connected.Store(true)
	return nil
}

func (r *redisRecordRepository) Ping(ctx context.Context) error {
	if !r.connected.Load() {
		return ErrStoreUnavailable
	}
	return r.redis.Ping(ctx)
}

func (r *redisRecordRepository) List(ctx context.Context, limit int) ([]domain.Document, error) {
	if !r.connected.Load() {
		return nil, ErrStoreUnavailable
	}

	client := r.redis.Client
	ids, err := client.ZRevRange(ctx, r.orderKey(), 0, int64(normalizeLimit(limit)-1)).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			r.logger.Warn("indexed document missing", zap.String("id", ids[i]))
			continue
		}
		var stored redisDocument
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", ids[i], err)
		}
		docs = append(docs, domain.Document{
			ID:        stored.ID,
			Fields:    stored.Fields,
			CreatedAt: stored.CreatedAt,
			UpdatedAt: stored.UpdatedAt,
		})
	}
	return docs, nil
}

func (r *redisRecordRepository) Insert(ctx context.Context, fields map[string]string) (domain.Document, error) {
	if !r.connected.Load() {
		return domain.Document{}, ErrStoreUnavailable
	}

	id, err := r.newID()
	if err != nil {
		return domain.Document{}, err
	}

	claimed, err := r.claimUnique(ctx, id, fields)
	if err != nil {
		return domain.Document{}, err
	}

	doc, err := r.write(ctx, id, fields)
	if err != nil {
		r.release(claimed, fields)
		return domain.Document{}, err
	}
	return doc, nil
}

// claimUnique reserves every unique value for id. On failure the claims made
// so far are released.
func (r *redisRecordRepository) claimUnique(ctx context.Context, id string, fields map[string]string) ([]string, error) {
	var claimed []string
	for _, field := range r.schema.UniqueFields() {
		value, ok := fields[field]
		if !ok {
			continue
		}
		won, err := r.redis.Client.HSetNX(ctx, r.uniqueKey(field), value, id).Result()
		if err != nil {
			r.release(claimed, fields)
			return nil, err
		}
		if !won {
			r.release(claimed, fields)
			return nil, &ConstraintError{Field: field}
		}
		claimed = append(claimed, field)
	}
	return claimed, nil
}

func (r *redisRecordRepository) write(ctx context.Context, id string, fields map[string]string) (domain.Document, error) {
	client := r.redis.Client
	seq, err := client.Incr(ctx, r.seqKey()).Result()
	if err != nil {
		return domain.Document{}, err
	}

	now := domain.StoreTime(r.now())
	stored := redisDocument{ID: id, Fields: fields, CreatedAt: now, UpdatedAt: now}
	payload, err := json.Marshal(stored)
	if err != nil {
		return domain.Document{}, err
	}

	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.docKey(id), payload, 0)
		pipe.ZAdd(ctx, r.orderKey(), redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	return domain.Document{ID: id, Fields: fields, CreatedAt: now, UpdatedAt: now}, nil
}

func (r *redisRecordRepository) release(claimed []string, fields map[string]string) {
	if len(claimed) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, field := range claimed {
		if err := r.redis.Client.HDel(ctx, r.uniqueKey(field), fields[field]).Err(); err != nil {
			r.logger.Error("release unique claim", zap.String("field", field), zap.Error(err))
		}
	}
}

func (r *redisRecordRepository) Close() {
	r.redis.Close()
}
