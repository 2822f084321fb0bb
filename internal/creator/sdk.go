package creator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"Creator-SDK/internal/chat"
	"Creator-SDK/internal/distributor"
	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/events"
	"Creator-SDK/internal/ledger"
	"Creator-SDK/internal/pumpfun"
	"Creator-SDK/internal/storage/mysql"
	"Creator-SDK/pkg/logger"
)

// TokenLauncher 抽象代币发行平台的接口，由 pumpfun.Client 实现。
type TokenLauncher interface {
	CreateToken(ctx context.Context, req pumpfun.TokenCreateRequest) (pumpfun.TokenCreateResponse, error)
	ClaimCreatorFees(ctx context.Context, req pumpfun.FeeClaimRequest) (pumpfun.FeeClaimResponse, error)
	LocalTransaction(ctx context.Context, req pumpfun.LocalTradeRequest, publicKey string) ([]byte, error)
}

// MetricsRecorder 接收每次外部操作的结果。
type MetricsRecorder interface {
	ObserveTokenCreated(success bool)
	ObserveFeeClaim(amount float64, success bool)
	ObserveDistribution(success bool)
}

// Stats 汇总当前实例的创作者数据。
type Stats struct {
	TokensCreated    int      `json:"tokensCreated"`
	TotalFeesEarned  float64  `json:"totalFeesEarned"`
	TotalDistributed float64  `json:"totalDistributed"`
	ActiveTokens     []string `json:"activeTokens"`
}

// DistributeRequest 是一次资金分发的输入。
type DistributeRequest struct {
	Recipients []distributor.Recipient `json:"recipients"`
}

// SDK 把对话、发币、领取手续费与资金分发组合在一起。
// 统计数据只通过 SDK 自身的方法修改，并由互斥锁保护。
type SDK struct {
	launcher    TokenLauncher
	ledger      ledger.Ledger
	distributor *distributor.Distributor
	chat        *chat.Manager

	signer    ledger.Signer
	secret    string
	activity  mysql.ActivityRepository
	publisher events.Publisher
	metrics   MetricsRecorder
	log       *slog.Logger
	audit     *slog.Logger
	now       func() time.Time

	turnMu sync.Mutex
	mu     sync.Mutex
	stats  Stats
}

// New 构造 SDK。launcher 或 l 为空时相应操作返回失败结果。
func New(launcher TokenLauncher, l ledger.Ledger, opts ...Option) *SDK {
	s := &SDK{
		launcher: launcher,
		ledger:   l,
		chat:     chat.NewManager(),
		log:      logger.Named("creator"),
		now:      time.Now,
		stats:    Stats{ActiveTokens: []string{}},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.signer == nil && strings.TrimSpace(s.secret) != "" && l != nil {
		signer, err := l.LoadSigner(s.secret)
		if err != nil {
			s.log.Warn("私钥格式无效，资金分发不可用", "error", err)
		} else {
			s.signer = signer
		}
	}
	s.secret = ""

	distOpts := []distributor.Option{}
	if observer, ok := s.metrics.(distributor.TransferObserver); ok {
		distOpts = append(distOpts, distributor.WithObserver(observer))
	}
	if s.audit != nil {
		distOpts = append(distOpts, distributor.WithAuditLogger(s.audit))
	}
	s.distributor = distributor.New(l, distOpts...)
	return s
}

// Initialize 检查账本连通性，配置了钱包时同时输出余额。
func (s *SDK) Initialize(ctx context.Context) error {
	s.log.Info("Creator SDK 初始化中")
	if s.ledger == nil {
		return xerrors.New(xerrors.CodeNotConfigured, "Failed to initialize: ledger is not configured")
	}

	snap, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeLedgerFailure, err, "Failed to initialize")
	}
	s.log.Info("已连接账本", "ledger", snap.Ledger, "network", snap.Network, "version", snap.Version, "height", snap.Height)

	if s.signer != nil {
		balance, err := s.ledger.Balance(ctx, s.signer.Address())
		if err != nil {
			return xerrors.Wrap(xerrors.CodeLedgerFailure, err, "Failed to initialize")
		}
		s.log.Info("钱包余额", "address", s.signer.Address(), "balance", balance)
	}

	s.log.Info("Creator SDK 已就绪")
	return nil
}

// Chat 处理一条用户消息并依次执行回复中的动作。
// 任何失败都会以文本形式拼接到回复中，本方法不会 panic 也不返回错误。
func (s *SDK) Chat(ctx context.Context, text string) chat.Response {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	resp := s.chat.Process(ctx, text)
	for _, action := range resp.Actions {
		resp.Message = s.runAction(ctx, action, resp)
	}
	return resp
}

func (s *SDK) runAction(ctx context.Context, action chat.Action, resp chat.Response) (message string) {
	message = resp.Message
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("执行对话动作失败", "action", string(action), "panic", r)
			message = resp.Message + fmt.Sprintf("\n\n❌ Action failed: %v", r)
		}
	}()

	switch action {
	case chat.ActionCreateToken:
		if resp.Token == nil {
			return message
		}
		result := s.CreateToken(ctx, pumpfun.TokenCreateRequest{Name: resp.Token.Name, Symbol: resp.Token.Symbol})
		if result.Success {
			return message + fmt.Sprintf("\n\n✅ Token created successfully!\nMint: %s\nTransaction: %s", result.Mint, result.Signature)
		}
		return message + "\n\n❌ Token creation failed: " + result.Error

	case chat.ActionClaimFees:
		// 对话入口不转发识别出的 pool，始终使用默认参数。
		result := s.ClaimFees(ctx, pumpfun.FeeClaimRequest{})
		if result.Success {
			return message + fmt.Sprintf("\n\n✅ Claimed %s SOL in creator fees!\nTransaction: %s", formatAmount(result.ClaimedAmount), result.Signature)
		}
		return message + "\n\n❌ Fee claim failed: " + result.Error

	case chat.ActionCheckStatus:
		stats := s.Stats()
		return fmt.Sprintf("📊 **Your Creator Stats:**\n\n🪙 Tokens Created: %d\n💰 Fees Earned: %s SOL\n📤 Total Distributed: %s SOL\n🔥 Active Tokens: %d",
			stats.TokensCreated,
			formatAmount(stats.TotalFeesEarned),
			formatAmount(stats.TotalDistributed),
			len(stats.ActiveTokens),
		)

	case chat.ActionDistributeFunds:
		// 对话入口只确认计划，实际转账需调用 DistributeFunds 并给出地址列表。
		if resp.Distribution != nil {
			return message + "\n\n📤 Fund distribution initiated..."
		}
	}
	return message
}

// CreateToken 调用发币接口，成功时更新统计。错误会转换为失败结果。
func (s *SDK) CreateToken(ctx context.Context, req pumpfun.TokenCreateRequest) pumpfun.TokenCreateResponse {
	if s.launcher == nil {
		return pumpfun.TokenCreateResponse{Error: "token launch client is not configured"}
	}

	result, err := s.launcher.CreateToken(ctx, req)
	if err != nil {
		result = pumpfun.TokenCreateResponse{Success: false, Error: xerrors.UserMessage(err)}
	}

	if result.Success {
		s.mu.Lock()
		s.stats.TokensCreated++
		if result.Mint != "" {
			s.stats.ActiveTokens = append(s.stats.ActiveTokens, result.Mint)
		}
		s.mu.Unlock()
		s.log.Info("代币创建成功", "name", req.Name, "symbol", req.Symbol, "mint", result.Mint, "signature", result.Signature)
	} else {
		s.log.Warn("代币创建失败", "name", req.Name, "symbol", req.Symbol, "error", result.Error)
	}

	if s.metrics != nil {
		s.metrics.ObserveTokenCreated(result.Success)
	}
	s.record(ctx, outcome{
		kind:       mysql.KindTokenCreated,
		event:      events.TypeTokenCreated,
		reference:  result.Mint,
		signatures: nonEmpty(result.Signature),
		success:    result.Success,
		err:        result.Error,
	})
	return result
}

// ClaimFees 领取创作者手续费，成功时累加领取金额。错误会转换为失败结果。
func (s *SDK) ClaimFees(ctx context.Context, req pumpfun.FeeClaimRequest) pumpfun.FeeClaimResponse {
	if s.launcher == nil {
		return pumpfun.FeeClaimResponse{Error: "token launch client is not configured"}
	}

	result, err := s.launcher.ClaimCreatorFees(ctx, req)
	if err != nil {
		result = pumpfun.FeeClaimResponse{Success: false, Error: xerrors.UserMessage(err)}
	}

	if result.Success {
		if result.ClaimedAmount > 0 {
			s.mu.Lock()
			s.stats.TotalFeesEarned += result.ClaimedAmount
			s.mu.Unlock()
		}
		s.log.Info("手续费领取成功", "pool", string(req.Pool), "amount", result.ClaimedAmount, "signature", result.Signature)
	} else {
		s.log.Warn("手续费领取失败", "pool", string(req.Pool), "error", result.Error)
	}

	if s.metrics != nil {
		s.metrics.ObserveFeeClaim(result.ClaimedAmount, result.Success)
	}
	s.record(ctx, outcome{
		kind:       mysql.KindFeesClaimed,
		event:      events.TypeFeesClaimed,
		reference:  req.Mint,
		signatures: nonEmpty(result.Signature),
		amount:     result.ClaimedAmount,
		success:    result.Success,
		err:        result.Error,
	})
	return result
}

// DistributeFunds 使用配置的钱包分发资金。未配置钱包时立即失败，不访问账本。
// 批次中途失败时，结果保留已确认的签名与金额。
func (s *SDK) DistributeFunds(ctx context.Context, req DistributeRequest) distributor.Result {
	if s.signer == nil {
		return distributor.Result{Success: false, Error: "No private key configured for fund distribution"}
	}

	result := s.distributor.Distribute(ctx, s.signer, req.Recipients)
	if result.Success && result.TotalDistributed > 0 {
		s.mu.Lock()
		s.stats.TotalDistributed += result.TotalDistributed
		s.mu.Unlock()
	}

	if s.metrics != nil {
		s.metrics.ObserveDistribution(result.Success)
	}
	s.record(ctx, outcome{
		kind:       mysql.KindFundsDistributed,
		event:      events.TypeFundsDistributed,
		signatures: result.Signatures,
		amount:     result.TotalDistributed,
		success:    result.Success,
		err:        result.Error,
	})
	return result
}

// ValidateRecipients 检查地址与金额是否合法。
func (s *SDK) ValidateRecipients(recipients []distributor.Recipient) bool {
	return s.distributor.ValidateRecipients(recipients)
}

// Stats 返回统计数据的副本。
func (s *SDK) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.ActiveTokens = make([]string, len(s.stats.ActiveTokens))
	copy(out.ActiveTokens, s.stats.ActiveTokens)
	return out
}

// ChatHistory 返回对话历史。
func (s *SDK) ChatHistory() []chat.Message {
	return s.chat.Messages()
}

// ClearChat 清空对话历史。
func (s *SDK) ClearChat() {
	s.chat.Clear()
}

// Balance 查询钱包余额。
func (s *SDK) Balance(ctx context.Context) (float64, error) {
	if s.signer == nil || s.ledger == nil {
		return 0, xerrors.New(xerrors.CodeNotConfigured, "No wallet configured")
	}
	return s.ledger.Balance(ctx, s.signer.Address())
}

// WalletAddress 返回钱包地址，未配置时返回空字符串。
func (s *SDK) WalletAddress() string {
	if s.signer == nil {
		return ""
	}
	return s.signer.Address()
}

// LocalTransaction 为当前钱包获取待签名的交易。
func (s *SDK) LocalTransaction(ctx context.Context, req pumpfun.LocalTradeRequest) ([]byte, error) {
	if s.signer == nil {
		return nil, xerrors.New(xerrors.CodeNotConfigured, "No wallet configured")
	}
	if s.launcher == nil {
		return nil, xerrors.New(xerrors.CodeNotConfigured, "token launch client is not configured")
	}
	return s.launcher.LocalTransaction(ctx, req, s.signer.Address())
}

// Activity 返回最近的活动记录，未配置仓库时为空。
func (s *SDK) Activity(ctx context.Context, limit int) ([]mysql.ActivityRecord, error) {
	if s.activity == nil {
		return []mysql.ActivityRecord{}, nil
	}
	return s.activity.ListLatest(ctx, limit)
}

// LedgerName 返回当前账本名称。
func (s *SDK) LedgerName() string {
	if s.ledger == nil {
		return ""
	}
	return s.ledger.Name()
}

type outcome struct {
	kind       string
	event      events.Type
	reference  string
	signatures []string
	amount     float64
	success    bool
	err        string
}

// record 写入活动记录并发布事件，失败只记录日志。
func (s *SDK) record(ctx context.Context, o outcome) {
	ctx = context.WithoutCancel(ctx)
	ledgerName := s.LedgerName()

	if s.activity != nil {
		rec := &mysql.ActivityRecord{
			Kind:       o.kind,
			Ledger:     ledgerName,
			Reference:  o.reference,
			Signatures: o.signatures,
			Amount:     o.amount,
			Success:    o.success,
			Error:      o.err,
			CreatedAt:  s.now().Unix(),
		}
		if err := s.activity.Save(ctx, rec); err != nil {
			s.log.Warn("记录活动失败", "kind", o.kind, "error", err)
		}
	}

	if s.publisher != nil {
		ev := events.NewEvent(o.event, o.success)
		ev.Ledger = ledgerName
		ev.Reference = o.reference
		ev.Signatures = o.signatures
		ev.Amount = o.amount
		ev.Error = o.err
		ev.OccurredAt = s.now().UTC()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Warn("发布事件失败", "type", string(o.event), "error", err)
		}
	}
}

func nonEmpty(sig string) []string {
	if sig == "" {
		return nil
	}
	return []string{sig}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
