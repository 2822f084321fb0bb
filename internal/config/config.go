package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config 描述了 Creator SDK 在启动阶段需要加载的全部配置。
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	PumpFun PumpFunConfig `json:"pumpfun" yaml:"pumpfun"`
	Ledger  LedgerConfig  `json:"ledger" yaml:"ledger"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Events  EventsConfig  `json:"events" yaml:"events"`
	Auth    AuthConfig    `json:"auth" yaml:"auth"`
	Alerts  AlertsConfig  `json:"alerts" yaml:"alerts"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址。
type ServerConfig struct {
	Address string `json:"address" yaml:"address" env:"CREATOR_SERVER_ADDRESS"`
}

// PumpFunConfig 描述访问 PumpPortal 交易接口所需的信息。
type PumpFunConfig struct {
	APIKey         string  `json:"api_key" yaml:"api_key" env:"PUMPFUN_API_KEY"`
	BaseURL        string  `json:"base_url" yaml:"base_url" env:"PUMPFUN_BASE_URL"`
	PriorityFee    float64 `json:"priority_fee" yaml:"priority_fee"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout 返回 HTTP 请求超时时间。
func (c PumpFunConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LedgerConfig 包含访问链上账本所需的参数。
type LedgerConfig struct {
	// Default 指定默认使用的账本名称，对应定义文件中的键。
	Default string `json:"default" yaml:"default" env:"CREATOR_LEDGER"`
	// Definitions 指向 ledgers.yaml，可为空。
	Definitions string `json:"definitions" yaml:"definitions"`
	// Type 与 RPCURL 在未提供定义文件时描述单一账本。
	Type       string `json:"type" yaml:"type"`
	RPCURL     string `json:"rpc_url" yaml:"rpc_url" env:"SOLANA_RPC_URL"`
	Commitment string `json:"commitment" yaml:"commitment"`
	// PrivateKey 为空时 SDK 不具备分发资金的能力。
	PrivateKey string `json:"private_key" yaml:"private_key" env:"SOLANA_PRIVATE_KEY"`
}

// StorageConfig 描述活动记录的存储后端。
type StorageConfig struct {
	Activity ActivityStoreConfig `json:"activity" yaml:"activity"`
}

// ActivityStoreConfig 支持 memory 与 mysql 两种驱动。
type ActivityStoreConfig struct {
	Driver                 string `json:"driver" yaml:"driver"`
	DSN                    string `json:"dsn" yaml:"dsn" env:"CREATOR_MYSQL_DSN"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds"`
}

// EventsConfig 描述操作结果通知的投递方式。
type EventsConfig struct {
	Driver   string         `json:"driver" yaml:"driver"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`
}

// RedisConfig 对应 Redis list 发布器。
type RedisConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	List     string `json:"list" yaml:"list"`
}

// RabbitMQConfig 对应 RabbitMQ 发布器。
type RabbitMQConfig struct {
	URL     string `json:"url" yaml:"url"`
	Queue   string `json:"queue" yaml:"queue"`
	Durable bool   `json:"durable" yaml:"durable"`
}

// AuthConfig 控制 REST 接口的访问令牌校验。
type AuthConfig struct {
	// Mode 取值 disabled 或 token。
	Mode string `json:"mode" yaml:"mode" env:"CREATOR_AUTH_MODE"`
	// AdminToken 拥有全部权限，便于通过环境变量注入。
	AdminToken string           `json:"admin_token" yaml:"admin_token" env:"CREATOR_API_TOKEN"`
	Tokens     []APITokenConfig `json:"tokens" yaml:"tokens"`
}

// APITokenConfig 描述一个静态访问令牌及其权限。
type APITokenConfig struct {
	Name        string   `json:"name" yaml:"name"`
	Token       string   `json:"token" yaml:"token"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// AlertsConfig 配置操作失败时的告警 webhook，均为空时不发送告警。
type AlertsConfig struct {
	SlackWebhook    string `json:"slack_webhook" yaml:"slack_webhook" env:"CREATOR_SLACK_WEBHOOK"`
	SlackChannel    string `json:"slack_channel" yaml:"slack_channel"`
	DingTalkWebhook string `json:"dingtalk_webhook" yaml:"dingtalk_webhook" env:"CREATOR_DINGTALK_WEBHOOK"`
}

// LogConfig 对应 pkg/logger 的配置。
type LogConfig struct {
	Level   string      `json:"level" yaml:"level" env:"CREATOR_LOG_LEVEL"`
	Format  string      `json:"format" yaml:"format"`
	Outputs []string    `json:"outputs" yaml:"outputs"`
	Audit   AuditConfig `json:"audit" yaml:"audit"`
}

// AuditConfig 控制资金流向审计日志。
type AuditConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Load 解析指定路径的配置文件（.yaml/.yml 使用 YAML，其余按 JSON 处理），
// 随后补齐默认值并用环境变量覆盖。path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	var cfg Config
	baseDir := "."

	if strings.TrimSpace(path) != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			err = yaml.Unmarshal(content, &cfg)
		default:
			err = json.Unmarshal(content, &cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
		baseDir = filepath.Dir(path)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回仅包含默认值的配置。
func Default() *Config {
	var cfg Config
	cfg.applyDefaults(".")
	return &cfg
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = "127.0.0.1:8080"
	}

	if c.PumpFun.BaseURL == "" {
		c.PumpFun.BaseURL = "https://pumpportal.fun/api"
	}
	if c.PumpFun.PriorityFee <= 0 {
		c.PumpFun.PriorityFee = 0.000001
	}
	if c.PumpFun.TimeoutSeconds <= 0 {
		c.PumpFun.TimeoutSeconds = 30
	}

	if c.Ledger.Type == "" {
		c.Ledger.Type = "solana"
	}
	if c.Ledger.RPCURL == "" && c.Ledger.Definitions == "" {
		c.Ledger.RPCURL = "https://api.mainnet-beta.solana.com"
	}
	if c.Ledger.Commitment == "" {
		c.Ledger.Commitment = "confirmed"
	}
	if c.Ledger.Definitions != "" && !filepath.IsAbs(c.Ledger.Definitions) {
		c.Ledger.Definitions = filepath.Join(baseDir, c.Ledger.Definitions)
	}

	if c.Storage.Activity.Driver == "" {
		c.Storage.Activity.Driver = "memory"
	}
	if c.Events.Driver == "" {
		c.Events.Driver = "memory"
	}

	if c.Auth.Mode == "" {
		if c.Auth.AdminToken != "" || len(c.Auth.Tokens) > 0 {
			c.Auth.Mode = "token"
		} else {
			c.Auth.Mode = "disabled"
		}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}
	if c.Log.Audit.Enabled && c.Log.Audit.Path == "" {
		c.Log.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	}
}

// Validate 检查互相依赖的字段。
func (c *Config) Validate() error {
	switch c.Storage.Activity.Driver {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Storage.Activity.DSN) == "" {
			return errors.New("mysql 活动存储需要配置 dsn")
		}
	default:
		return fmt.Errorf("未知的活动存储驱动: %s", c.Storage.Activity.Driver)
	}

	switch c.Events.Driver {
	case "memory", "none":
	case "redis":
		if strings.TrimSpace(c.Events.Redis.Address) == "" {
			return errors.New("redis 事件发布需要配置 address")
		}
	case "rabbitmq":
		if strings.TrimSpace(c.Events.RabbitMQ.URL) == "" {
			return errors.New("rabbitmq 事件发布需要配置 url")
		}
	default:
		return fmt.Errorf("未知的事件驱动: %s", c.Events.Driver)
	}

	switch c.Auth.Mode {
	case "disabled":
	case "token":
		if c.Auth.AdminToken == "" && len(c.Auth.Tokens) == 0 {
			return errors.New("token 认证模式至少需要一个访问令牌")
		}
		for _, tok := range c.Auth.Tokens {
			if strings.TrimSpace(tok.Token) == "" {
				return fmt.Errorf("访问令牌 %q 不能为空", tok.Name)
			}
		}
	default:
		return fmt.Errorf("未知的认证模式: %s", c.Auth.Mode)
	}
	return nil
}

// CheckExposure 拒绝在配置了转账私钥且未启用认证时监听非回环地址。
func (c *Config) CheckExposure(addr string) error {
	if c.Ledger.PrivateKey == "" || c.Auth.Mode != "disabled" || isLoopback(addr) {
		return nil
	}
	return fmt.Errorf("已配置转账私钥但未启用认证，拒绝监听非回环地址 %s；请配置 auth.tokens 或 CREATOR_API_TOKEN", addr)
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
