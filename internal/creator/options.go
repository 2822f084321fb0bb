package creator

import (
	"log/slog"
	"time"

	"Creator-SDK/internal/events"
	"Creator-SDK/internal/ledger"
	"Creator-SDK/internal/storage/mysql"
)

// Option 定义 SDK 的可选配置。
type Option func(*SDK)

// WithSigner 直接注入已加载的签名者。
func WithSigner(signer ledger.Signer) Option {
	return func(s *SDK) {
		s.signer = signer
	}
}

// WithPrivateKey 在构造时通过账本解析私钥，格式无效时仅记录警告。
func WithPrivateKey(secret string) Option {
	return func(s *SDK) {
		s.secret = secret
	}
}

// WithActivityRepository 设置活动记录仓库。
func WithActivityRepository(repo mysql.ActivityRepository) Option {
	return func(s *SDK) {
		s.activity = repo
	}
}

// WithPublisher 设置事件发布器。
func WithPublisher(pub events.Publisher) Option {
	return func(s *SDK) {
		s.publisher = pub
	}
}

// WithMetrics 设置指标记录器。若同时实现了转账观察接口，也会挂到分发器上。
func WithMetrics(m MetricsRecorder) Option {
	return func(s *SDK) {
		s.metrics = m
	}
}

// WithLogger 覆盖默认日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *SDK) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAuditLogger 覆盖分发器使用的审计日志。
func WithAuditLogger(l *slog.Logger) Option {
	return func(s *SDK) {
		s.audit = l
	}
}

// WithClock 替换时间来源。
func WithClock(now func() time.Time) Option {
	return func(s *SDK) {
		if now != nil {
			s.now = now
		}
	}
}
