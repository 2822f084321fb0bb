package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"Creator-SDK/pkg/logger"
)

// Service 负责校验 REST 请求携带的静态访问令牌。
type Service struct {
	mode   Mode
	tokens []tokenEntry
	audit  *slog.Logger
}

// tokenEntry 只保存令牌摘要，比较时使用常量时间。
type tokenEntry struct {
	digest  [sha256.Size]byte
	subject Subject
}

// NewService 构造身份认证服务实例。
func NewService(cfg Config) (*Service, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(string(cfg.Mode))))
	if mode == "" {
		mode = ModeDisabled
	}
	svc := &Service{mode: mode, audit: logger.Audit()}

	switch mode {
	case ModeDisabled:
		return svc, nil
	case ModeToken:
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}

	for _, tok := range cfg.Tokens {
		secret := strings.TrimSpace(tok.Secret)
		if secret == "" {
			return nil, fmt.Errorf("token %q has an empty secret", tok.Name)
		}
		perms := tok.Permissions
		if len(perms) == 0 {
			perms = []string{PermissionRead}
		}
		svc.tokens = append(svc.tokens, tokenEntry{
			digest:  sha256.Sum256([]byte(secret)),
			subject: Subject{Name: tok.Name, Permissions: append([]string(nil), perms...)},
		})
	}
	if len(svc.tokens) == 0 {
		return nil, errors.New("token mode requires at least one token")
	}
	return svc, nil
}

// Mode 返回当前身份认证服务的工作模式。
func (s *Service) Mode() Mode {
	if s == nil {
		return ModeDisabled
	}
	return s.mode
}

// WithAuditLogger 替换审计日志输出，主要用于测试。
func (s *Service) WithAuditLogger(l *slog.Logger) *Service {
	if s != nil && l != nil {
		s.audit = l
	}
	return s
}

// AuthenticateRequest 验证 Authorization 头，并返回令牌对应的调用方。
func (s *Service) AuthenticateRequest(authorization string) (*Subject, error) {
	if s == nil || s.mode == ModeDisabled {
		return nil, ErrDisabled
	}
	parts := strings.SplitN(strings.TrimSpace(authorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, ErrMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return nil, ErrMissingToken
	}

	digest := sha256.Sum256([]byte(token))
	var matched *tokenEntry
	for i := range s.tokens {
		if subtle.ConstantTimeCompare(digest[:], s.tokens[i].digest[:]) == 1 {
			matched = &s.tokens[i]
		}
	}
	if matched == nil {
		return nil, ErrInvalidToken
	}
	subject := &Subject{
		Name:        matched.subject.Name,
		Permissions: append([]string(nil), matched.subject.Permissions...),
	}
	subject.normalise()
	return subject, nil
}
