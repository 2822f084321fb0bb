package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookSender 通过 HTTP webhook 投递消息，同时实现 SlackSender 与 DingTalkSender。
type WebhookSender struct {
	URL    string
	Client *http.Client
	format func(channel, content string) any
}

// NewSlackWebhook 构造 Slack incoming webhook 发送器。
func NewSlackWebhook(url string, client *http.Client) *WebhookSender {
	return &WebhookSender{URL: url, Client: client, format: func(channel, content string) any {
		body := map[string]string{"text": content}
		if channel != "" {
			body["channel"] = channel
		}
		return body
	}}
}

// NewDingTalkWebhook 构造钉钉自定义机器人发送器。
func NewDingTalkWebhook(url string, client *http.Client) *WebhookSender {
	return &WebhookSender{URL: url, Client: client, format: func(_, content string) any {
		return map[string]any{
			"msgtype": "text",
			"text":    map[string]string{"content": content},
		}
	}}
}

// Send 满足 SlackSender。
func (s *WebhookSender) Send(ctx context.Context, channel, content string) error {
	return s.post(ctx, s.format(channel, content))
}

// dingTalkAdapter 将双参数的 Send 适配为 DingTalkSender。
type dingTalkAdapter struct{ *WebhookSender }

func (a dingTalkAdapter) Send(ctx context.Context, content string) error {
	return a.post(ctx, a.format("", content))
}

// AsDingTalk 返回满足 DingTalkSender 的视图。
func (s *WebhookSender) AsDingTalk() DingTalkSender {
	return dingTalkAdapter{s}
}

func (s *WebhookSender) post(ctx context.Context, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return nil
}

// FromConfig 根据 webhook 地址构造广播器，未配置任何渠道时返回 nil。
func FromConfig(slackURL, slackChannel, dingTalkURL string, client *http.Client) *FanoutDispatcher {
	var notifiers []Notifier
	if slackURL != "" {
		notifiers = append(notifiers, &SlackNotifier{Sender: NewSlackWebhook(slackURL, client), ChannelID: slackChannel})
	}
	if dingTalkURL != "" {
		notifiers = append(notifiers, &DingTalkNotifier{Sender: NewDingTalkWebhook(dingTalkURL, client).AsDingTalk()})
	}
	if len(notifiers) == 0 {
		return nil
	}
	return NewFanout(notifiers...)
}
