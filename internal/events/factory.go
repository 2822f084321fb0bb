package events

import (
	"context"
	"fmt"

	"Creator-SDK/internal/config"
)

// FromConfig 根据配置构造事件发布器。none 返回丢弃所有事件的实现。
func FromConfig(ctx context.Context, cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryBus(0), nil
	case "none":
		return Discard{}, nil
	case "redis":
		bus, err := NewRedisBus(ctx, RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			List:     cfg.Redis.List,
		})
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "rabbitmq":
		bus, err := NewRabbitMQBus(RabbitMQConfig{
			URL:     cfg.RabbitMQ.URL,
			Queue:   cfg.RabbitMQ.Queue,
			Durable: cfg.RabbitMQ.Durable,
		})
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("未知的事件驱动: %s", cfg.Driver)
	}
}
