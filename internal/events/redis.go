package events

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	xerrors "Creator-SDK/internal/errors"
)

// RedisConfig 描述 Redis list 事件总线的连接参数。
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	List      string
	BlockWait time.Duration
}

// RedisBus 使用 Redis list 投递 JSON 事件，LPUSH 写入，BRPOP 读取。
type RedisBus struct {
	client *redis.Client
	list   string
	wait   time.Duration
}

// NewRedisBus 创建 Redis 事件总线并检查连通性。
func NewRedisBus(ctx context.Context, cfg RedisConfig) (*RedisBus, error) {
	if cfg.Address == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodePublishFailure, err, "连接 Redis 失败")
	}
	return newRedisBus(client, cfg), nil
}

func newRedisBus(client *redis.Client, cfg RedisConfig) *RedisBus {
	list := cfg.List
	if list == "" {
		list = "creator:events"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisBus{client: client, list: list, wait: wait}
}

// Publish 将事件写入 Redis list。
func (b *RedisBus) Publish(ctx context.Context, event Event) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}
	if err := b.client.LPush(ctx, b.list, payload).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodePublishFailure, err, "Redis 发布事件失败", xerrors.WithRetryable(true))
	}
	return nil
}

// Subscribe 通过 BRPOP 循环读取事件，无法解析的消息会被跳过。
func (b *RedisBus) Subscribe(ctx context.Context, handler Handler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, err := b.client.BRPop(ctx, b.wait, b.list).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return xerrors.Wrap(xerrors.CodePublishFailure, err, "Redis 读取事件失败")
		}
		if len(values) != 2 {
			continue
		}
		event, err := decode([]byte(values[1]))
		if err != nil {
			continue
		}
		_ = handler(ctx, event)
	}
}

// Close 关闭 Redis 连接。
func (b *RedisBus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
