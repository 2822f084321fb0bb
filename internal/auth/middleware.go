package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	loggerpkg "Creator-SDK/pkg/logger"
)

// MiddlewareConfig 配置认证中间件的行为。
type MiddlewareConfig struct {
	// RequiredPermissions 按 HTTP 方法列出所需权限，"*" 作为兜底。
	RequiredPermissions map[string][]string
	// AuditEvent 指定审计日志中的事件名称，为空时使用请求路径。
	AuditEvent string
}

// DefaultPermissions 读请求需要 creator.read，其余方法需要 creator.write。
func DefaultPermissions() map[string][]string {
	return map[string][]string{
		http.MethodGet:  {PermissionRead},
		http.MethodHead: {PermissionRead},
		"*":             {PermissionWrite},
	}
}

func (c MiddlewareConfig) permissionsFor(method string) []string {
	if perms := c.RequiredPermissions[method]; len(perms) > 0 {
		return perms
	}
	return c.RequiredPermissions["*"]
}

// Middleware 返回一个 HTTP 中间件，用于处理身份认证和授权。
// 禁用模式下请求直接透传。
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s == nil || s.mode == ModeDisabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := s.AuthenticateRequest(r.Header.Get("Authorization"))
			if err == nil {
				err = subject.Authorize(cfg.permissionsFor(r.Method)...)
			}
			if err != nil {
				s.deny(w, r, subject, err)
				return
			}

			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r.WithContext(WithSubject(r.Context(), subject)))

			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			s.auditLogger().Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"caller", subject.Name,
			)
		})
	}
}

func (s *Service) deny(w http.ResponseWriter, r *http.Request, subject *Subject, err error) {
	status := http.StatusUnauthorized
	event := "access_denied"
	if errors.Is(err, ErrPermissionDenied) {
		status = http.StatusForbidden
		event = "permission_denied"
	}
	http.Error(w, http.StatusText(status), status)

	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
	}
	if subject != nil {
		attrs = append(attrs, "caller", subject.Name)
	}
	s.auditLogger().Warn(event, attrs...)
}

func (s *Service) auditLogger() *slog.Logger {
	if s.audit != nil {
		return s.audit
	}
	return loggerpkg.Audit()
}

// auditWriter 捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
