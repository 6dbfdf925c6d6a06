package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vogtb/go-gridcalc/packages/config"
	"github.com/vogtb/go-gridcalc/packages/spreadsheet"
	"go.uber.org/zap"
)

// IndexKey is the sorted set of workbook ids scored by save time
const IndexKey = "workbooks"

// RedisStore keeps each workbook under workbook:<id> with an optional TTL
type RedisStore struct {
	rdb    redis.Cmdable
	client *redis.Client
	cfg    config.Redis
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects using cfg and pings the server
func NewRedisStore(ctx context.Context, cfg config.Redis, logger *zap.Logger) (*RedisStore, error) {
	client, err := newRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RedisStore{rdb: client, client: client, cfg: cfg, logger: logger}, nil
}

func newRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.InvalidArgument, "invalid redis url", err)
	}

	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.DialTimeout = cfg.DialTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to reach redis", err)
	}
	return client, nil
}

func (s *RedisStore) workbookKey(id string) string {
	return fmt.Sprintf("workbook:%s", id)
}

func (s *RedisStore) Save(ctx context.Context, snap spreadsheet.WorkbookSnapshot) error {
	snap, err := prepare(snap)
	if err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	key := s.workbookKey(snap.ID)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, s.cfg.TTL)
		pipe.ZAdd(ctx, IndexKey, redis.Z{Score: float64(snap.LastSaved.Unix()), Member: snap.ID})
		return nil
	})
	if err != nil {
		s.logger.Error("failed to save workbook", zap.String("key", key), zap.Error(err))
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to save workbook", err)
	}
	s.logger.Debug("workbook saved", zap.String("key", key), zap.Duration("ttl", s.cfg.TTL))
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (spreadsheet.WorkbookSnapshot, error) {
	if err := validateID(id); err != nil {
		return spreadsheet.WorkbookSnapshot{}, err
	}
	key := s.workbookKey(id)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return spreadsheet.WorkbookSnapshot{}, notFound(id)
	}
	if err != nil {
		s.logger.Error("failed to load workbook", zap.String("key", key), zap.Error(err))
		return spreadsheet.WorkbookSnapshot{}, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to load workbook", err)
	}
	return decode(data)
}

// List reads the index and drops members whose key has expired
func (s *RedisStore) List(ctx context.Context) ([]Summary, error) {
	ids, err := s.rdb.ZRevRange(ctx, IndexKey, 0, -1).Result()
	if err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to list workbooks", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.workbookKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to list workbooks", err)
	}

	var (
		summaries []Summary
		stale     []any
	)
	for i, value := range values {
		payload, ok := value.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		snap, err := decode([]byte(payload))
		if err != nil {
			s.logger.Warn("skipping corrupt workbook", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		summaries = append(summaries, summarize(snap))
	}

	if len(stale) > 0 {
		if err := s.rdb.ZRem(ctx, IndexKey, stale...).Err(); err != nil {
			s.logger.Warn("failed to prune expired workbooks", zap.Error(err))
		}
	}
	return sortSummaries(summaries), nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	key := s.workbookKey(id)

	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, key)
		pipe.ZRem(ctx, IndexKey, id)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to delete workbook", zap.String("key", key), zap.Error(err))
		return spreadsheet.WrapApplicationError(spreadsheet.Unavailable, "failed to delete workbook", err)
	}
	if del.Val() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
