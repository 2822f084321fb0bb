package alerting

import (
	"context"
	"log/slog"

	"Creator-SDK/internal/events"
	"Creator-SDK/pkg/logger"
)

// Publisher 在转发事件的同时，为失败事件触发告警。
type Publisher struct {
	next       events.Publisher
	dispatcher Dispatcher
	log        *slog.Logger
}

// NewPublisher 包装下游发布器。next 为空时只发送告警。
func NewPublisher(next events.Publisher, dispatcher Dispatcher) *Publisher {
	if next == nil {
		next = events.Discard{}
	}
	return &Publisher{next: next, dispatcher: dispatcher, log: logger.Named("alerting")}
}

// Publish 先投递告警再转发事件。告警失败只记录日志，不影响事件投递。
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	if alert, ok := FromEvent(event); ok && p.dispatcher != nil {
		if err := p.dispatcher.Notify(ctx, alert); err != nil {
			p.log.Warn("发送告警失败",
				slog.String("event_id", event.ID),
				slog.String("type", string(event.Type)),
				slog.Any("error", err),
			)
		}
	}
	return p.next.Publish(ctx, event)
}

// Close 关闭下游发布器。
func (p *Publisher) Close() error {
	return p.next.Close()
}

var _ events.Publisher = (*Publisher)(nil)
