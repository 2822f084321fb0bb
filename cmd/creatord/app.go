package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"Creator-SDK/internal/auth"
	"Creator-SDK/internal/config"
	"Creator-SDK/internal/creator"
	"Creator-SDK/internal/events"
	"Creator-SDK/internal/ledger/provider"
	"Creator-SDK/internal/observability/alerting"
	"Creator-SDK/internal/observability/metrics"
	"Creator-SDK/internal/pumpfun"
	"Creator-SDK/internal/storage/mysql"
	"Creator-SDK/pkg/logger"
)

// app 持有一次命令执行所需的全部依赖。
type app struct {
	cfg       *config.Config
	sdk       *creator.SDK
	metrics   *metrics.Recorder
	publisher events.Publisher
	log       *slog.Logger
	closers   []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.Outputs,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.Audit.Enabled,
			Path:       cfg.Log.Audit.Path,
			MaxSizeMB:  cfg.Log.Audit.MaxSizeMB,
			MaxBackups: cfg.Log.Audit.MaxBackups,
			MaxAgeDays: cfg.Log.Audit.MaxAgeDays,
		},
	}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	a := &app{cfg: cfg, log: logger.Named("creatord")}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	registry, err := provider.NewRegistry(ctx, cfg.Ledger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, registry.Close)

	l, err := registry.Default()
	if err != nil {
		a.Close()
		return nil, err
	}

	client, err := pumpfun.NewClient(pumpfun.Config{
		APIKey:      cfg.PumpFun.APIKey,
		BaseURL:     cfg.PumpFun.BaseURL,
		PriorityFee: cfg.PumpFun.PriorityFee,
	}, &http.Client{Timeout: cfg.PumpFun.Timeout()})
	if err != nil {
		a.Close()
		return nil, err
	}

	repo, err := openActivityRepository(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = repo.Close() })

	publisher, err := events.FromConfig(ctx, cfg.Events)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.publisher = publisher
	a.closers = append(a.closers, func() {
		if err := publisher.Close(); err != nil {
			a.log.Warn("关闭事件发布器失败", "error", err)
		}
	})

	// 告警包装只作用于 SDK 发布路径，a.publisher 保留原始驱动以便订阅。
	var sdkPublisher events.Publisher = publisher
	if dispatcher := alerting.FromConfig(cfg.Alerts.SlackWebhook, cfg.Alerts.SlackChannel, cfg.Alerts.DingTalkWebhook, nil); dispatcher != nil {
		sdkPublisher = alerting.NewPublisher(publisher, dispatcher)
		a.log.Info("已启用失败告警", "channels", dispatcher.Len())
	}

	a.metrics = metrics.New()
	a.sdk = creator.New(client, l,
		creator.WithPrivateKey(cfg.Ledger.PrivateKey),
		creator.WithActivityRepository(repo),
		creator.WithPublisher(sdkPublisher),
		creator.WithMetrics(a.metrics),
	)

	a.log.Info("creatord 已加载配置",
		"ledger", l.Name(),
		"ledgers", registry.Names(),
		"activity_driver", cfg.Storage.Activity.Driver,
		"events_driver", cfg.Events.Driver,
		"wallet", a.sdk.WalletAddress(),
	)
	return a, nil
}

func openActivityRepository(ctx context.Context, cfg *config.Config) (mysql.ActivityRepository, error) {
	store := cfg.Storage.Activity
	switch store.Driver {
	case "", "memory":
		repo, err := mysql.NewMemoryActivityRepository(cfg.Runtime.DataDir)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "mysql":
		repo, err := mysql.NewSQLActivityRepository(ctx, mysql.Config{
			DSN:             store.DSN,
			MaxOpenConns:    store.MaxOpenConns,
			MaxIdleConns:    store.MaxIdleConns,
			ConnMaxLifetime: time.Duration(store.ConnMaxLifetimeSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("未知的活动存储驱动: %s", store.Driver)
	}
}

// newAuthService 将配置中的令牌转换为认证服务，admin_token 拥有全部权限。
func newAuthService(cfg config.AuthConfig) (*auth.Service, error) {
	authCfg := auth.Config{Mode: auth.Mode(cfg.Mode)}
	if cfg.AdminToken != "" {
		authCfg.Tokens = append(authCfg.Tokens, auth.Token{
			Name:        "admin",
			Secret:      cfg.AdminToken,
			Permissions: []string{auth.PermissionAll},
		})
	}
	for _, tok := range cfg.Tokens {
		authCfg.Tokens = append(authCfg.Tokens, auth.Token{
			Name:        tok.Name,
			Secret:      tok.Token,
			Permissions: tok.Permissions,
		})
	}
	return auth.NewService(authCfg)
}

// Close 按与创建相反的顺序释放资源。
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
