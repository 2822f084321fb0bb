package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	xerrors "Creator-SDK/internal/errors"
)

// Type 标识事件种类。
type Type string

const (
	TypeTokenCreated     Type = "token.created"
	TypeFeesClaimed      Type = "fees.claimed"
	TypeFundsDistributed Type = "funds.distributed"
)

// Event 描述一次对外操作的结果，供下游系统订阅。
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Ledger     string    `json:"ledger,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	Signatures []string  `json:"signatures,omitempty"`
	Amount     float64   `json:"amount"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent 生成带 ID 与时间戳的事件。
func NewEvent(typ Type, success bool) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Success:    success,
		OccurredAt: time.Now().UTC(),
	}
}

// Handler 处理订阅到的事件。
type Handler func(ctx context.Context, event Event) error

// Publisher 负责投递事件。
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Subscriber 负责消费事件，阻塞直到 ctx 取消或出现不可恢复的错误。
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// Bus 同时具备发布与订阅能力。
type Bus interface {
	Publisher
	Subscriber
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodePublishFailure, err, "序列化事件失败")
	}
	return payload, nil
}

func decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, xerrors.Wrap(xerrors.CodePublishFailure, err, "解析事件失败")
	}
	return event, nil
}

// Discard 丢弃所有事件。
type Discard struct{}

// Publish 不做任何事情。
func (Discard) Publish(context.Context, Event) error { return nil }

// Close 不做任何事情。
func (Discard) Close() error { return nil }
