package alerting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/events"
	"Creator-SDK/pkg/logger"
)

// Channel 表示通知渠道。
type Channel string

// 支持的通知渠道
const (
	ChannelDingTalk Channel = "dingtalk"
	ChannelSlack    Channel = "slack"
)

// Alert 描述一次需要告警的操作失败。
type Alert struct {
	Severity   xerrors.Severity
	Operation  events.Type
	Ledger     string
	Reference  string
	Message    string
	Completed  int
	Amount     float64
	OccurredAt time.Time
}

// Summary 返回适合聊天机器人展示的单行文本。
func (a Alert) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s failed", a.Severity, a.Operation)
	if a.Ledger != "" {
		fmt.Fprintf(&b, " on %s", a.Ledger)
	}
	if a.Reference != "" {
		fmt.Fprintf(&b, " (%s)", a.Reference)
	}
	if a.Completed > 0 {
		fmt.Fprintf(&b, " after %d confirmed transfers totalling %g", a.Completed, a.Amount)
	}
	if a.Message != "" {
		b.WriteString(": ")
		b.WriteString(a.Message)
	}
	return b.String()
}

// FromEvent 将失败事件转换为告警。成功事件返回 false。
// 已有转账成功的分发失败会被标记为 critical，需要人工核对。
func FromEvent(ev events.Event) (Alert, bool) {
	if ev.Success {
		return Alert{}, false
	}
	alert := Alert{
		Severity:   xerrors.SeverityWarning,
		Operation:  ev.Type,
		Ledger:     ev.Ledger,
		Reference:  ev.Reference,
		Message:    ev.Error,
		Completed:  len(ev.Signatures),
		Amount:     ev.Amount,
		OccurredAt: ev.OccurredAt,
	}
	if ev.Type == events.TypeFundsDistributed && len(ev.Signatures) > 0 {
		alert.Severity = xerrors.SeverityCritical
	}
	return alert, true
}

// Notifier 负责将告警发送到指定渠道。
type Notifier interface {
	Channel() Channel
	Notify(ctx context.Context, alert Alert) error
}

// Dispatcher 将告警广播给多个通知器。
type Dispatcher interface {
	Notify(ctx context.Context, alert Alert) error
}

// FanoutDispatcher 实现将告警投递到多个通知器的逻辑。
type FanoutDispatcher struct {
	notifiers map[Channel]Notifier
}

// NewFanout 创建一个新的 FanoutDispatcher，同一渠道只保留最后一个通知器。
func NewFanout(notifiers ...Notifier) *FanoutDispatcher {
	set := make(map[Channel]Notifier, len(notifiers))
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		set[n.Channel()] = n
	}
	return &FanoutDispatcher{notifiers: set}
}

// Len 返回已注册的渠道数量。
func (d *FanoutDispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.notifiers)
}

// Notify 将告警广播至所有注册渠道。
func (d *FanoutDispatcher) Notify(ctx context.Context, alert Alert) error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", notifier.Channel(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// DingTalkSender 负责向钉钉机器人发送消息。
type DingTalkSender interface {
	Send(ctx context.Context, content string) error
}

// DingTalkNotifier 通过钉钉机器人发送告警。
type DingTalkNotifier struct {
	Sender DingTalkSender
}

// Channel 返回钉钉渠道。
func (n *DingTalkNotifier) Channel() Channel { return ChannelDingTalk }

// Notify 发送钉钉消息。
func (n *DingTalkNotifier) Notify(ctx context.Context, alert Alert) error {
	if n == nil || n.Sender == nil {
		logger.L().Warn("DingTalkNotifier 未正确配置，跳过发送", slog.String("operation", string(alert.Operation)))
		return nil
	}
	payload := fmt.Sprintf("%s\n时间: %s", alert.Summary(), alert.OccurredAt.Format(time.RFC3339))
	return n.Sender.Send(ctx, payload)
}

// SlackSender 负责向 Slack 渠道发送消息。
type SlackSender interface {
	Send(ctx context.Context, channel, content string) error
}

// SlackNotifier 通过 Slack 发送告警。
type SlackNotifier struct {
	Sender    SlackSender
	ChannelID string
}

// Channel 返回 Slack 渠道。
func (n *SlackNotifier) Channel() Channel { return ChannelSlack }

// Notify 发送 Slack 消息。ChannelID 为空时使用 webhook 的默认频道。
func (n *SlackNotifier) Notify(ctx context.Context, alert Alert) error {
	if n == nil || n.Sender == nil {
		logger.L().Warn("SlackNotifier 未正确配置，跳过发送", slog.String("operation", string(alert.Operation)))
		return nil
	}
	return n.Sender.Send(ctx, n.ChannelID, "*"+alert.Summary()+"*")
}
