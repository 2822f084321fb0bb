package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Creator-SDK/internal/auth"
	"Creator-SDK/internal/creator"
	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/observability/metrics"
	"Creator-SDK/internal/pumpfun"
)

// Server 负责暴露 REST 接口，供外部驱动 Creator SDK。
type Server struct {
	addr    string
	sdk     *creator.SDK
	metrics *metrics.Recorder
	auth    *auth.Service
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithMetrics 注册请求指标并暴露 /metrics。
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *Server) {
		s.metrics = r
	}
}

// WithAuth 要求 /api/v1 下的请求携带访问令牌。
func WithAuth(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, sdk *creator.SDK, opts ...Option) *Server {
	s := &Server{addr: addr, sdk: sdk}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回注册了全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "/api/v1/chat", "chat", s.handleChat)
	s.route(mux, "/api/v1/chat/history", "chat_history", s.handleChatHistory)
	s.route(mux, "/api/v1/tokens", "tokens", s.handleCreateToken)
	s.route(mux, "/api/v1/fees/claim", "fees_claim", s.handleClaimFees)
	s.route(mux, "/api/v1/distributions", "distributions", s.handleDistribute)
	s.route(mux, "/api/v1/stats", "stats", s.handleStats)
	s.route(mux, "/api/v1/activity", "activity", s.handleActivity)
	s.route(mux, "/api/v1/wallet", "wallet", s.handleWallet)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	var handler http.Handler = h
	if s.auth != nil {
		handler = s.auth.Middleware(auth.MiddlewareConfig{
			RequiredPermissions: auth.DefaultPermissions(),
			AuditEvent:          name,
		})(handler)
	}
	if s.metrics != nil {
		handler = s.metrics.Middleware(name, handler)
	}
	mux.Handle(pattern, handler)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message 不能为空", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.sdk.Chat(r.Context(), req.Message))
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.sdk.ChatHistory())
	case http.MethodDelete:
		s.sdk.ClearChat()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "仅支持 GET/DELETE", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req pumpfun.TokenCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Symbol) == "" {
		http.Error(w, "name 与 symbol 不能为空", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.sdk.CreateToken(r.Context(), req))
}

func (s *Server) handleClaimFees(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req pumpfun.FeeClaimRequest
	// 空请求体表示使用默认参数。
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.sdk.ClaimFees(r.Context(), req))
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	var req creator.DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if !s.sdk.ValidateRecipients(req.Recipients) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "recipient list contains an invalid address or amount",
		})
		return
	}
	// 分发开始后不随客户端断开而中止。
	writeJSON(w, http.StatusOK, s.sdk.DistributeFunds(context.WithoutCancel(r.Context()), req))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.sdk.Stats())
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	records, err := s.sdk.Activity(r.Context(), limit)
	if err != nil {
		http.Error(w, xerrors.UserMessage(err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	balance, err := s.sdk.Balance(r.Context())
	if err != nil {
		status := http.StatusBadGateway
		if xerrors.CodeOf(err) == xerrors.CodeNotConfigured {
			status = http.StatusNotFound
		}
		http.Error(w, xerrors.UserMessage(err), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger":  s.sdk.LedgerName(),
		"address": s.sdk.WalletAddress(),
		"balance": balance,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
