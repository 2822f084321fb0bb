package distributor

import (
	"context"
	"log/slog"
	"math"
	"time"

	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/ledger"
	"Creator-SDK/pkg/logger"
)

// Recipient 是一笔分发的目标地址与金额。
type Recipient struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// Result 汇总一次批量分发的结果。失败时 Signatures 与 TotalDistributed
// 仍包含失败之前已确认的转账。
type Result struct {
	Success          bool     `json:"success"`
	Signatures       []string `json:"signatures,omitempty"`
	TotalDistributed float64  `json:"totalDistributed"`
	Error            string   `json:"error,omitempty"`
}

// TransferObserver 接收每一笔转账的结果，通常由指标模块实现。
type TransferObserver interface {
	ObserveTransfer(ledger string, amount float64, duration time.Duration, err error)
}

// Distributor 按调用方给定的顺序逐笔发起转账。
type Distributor struct {
	ledger   ledger.Ledger
	log      *slog.Logger
	audit    *slog.Logger
	observer TransferObserver
}

// Option 定义 Distributor 的可选配置。
type Option func(*Distributor)

// WithLogger 替换应用日志。
func WithLogger(l *slog.Logger) Option {
	return func(d *Distributor) {
		if l != nil {
			d.log = l
		}
	}
}

// WithAuditLogger 替换资金审计日志。
func WithAuditLogger(l *slog.Logger) Option {
	return func(d *Distributor) {
		if l != nil {
			d.audit = l
		}
	}
}

// WithObserver 注册转账观察者。
func WithObserver(o TransferObserver) Option {
	return func(d *Distributor) {
		d.observer = o
	}
}

// New 创建基于指定账本的分发器。
func New(l ledger.Ledger, opts ...Option) *Distributor {
	d := &Distributor{
		ledger: l,
		log:    logger.Named("distributor"),
		audit:  logger.Audit(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Distribute 依次向每个接收方转账，每笔等待账本确认后再进行下一笔。
// 遇到第一笔失败立即停止，已完成的转账不会回滚。
func (d *Distributor) Distribute(ctx context.Context, signer ledger.Signer, recipients []Recipient) Result {
	if len(recipients) == 0 {
		return failed(nil, 0, xerrors.New(xerrors.CodeInvalidArgument, "recipient list is empty"))
	}
	if d.ledger == nil {
		return failed(nil, 0, xerrors.New(xerrors.CodeNotConfigured, "ledger is not configured"))
	}

	from := ""
	if signer != nil {
		from = signer.Address()
	}

	signatures := make([]string, 0, len(recipients))
	total := 0.0
	for i, r := range recipients {
		if err := ctx.Err(); err != nil {
			return failed(signatures, total, xerrors.Wrap(xerrors.CodeTimeout, err, "distribution cancelled"))
		}

		start := time.Now()
		sig, err := d.ledger.Transfer(ctx, signer, r.Address, r.Amount)
		d.observe(r.Amount, time.Since(start), err)
		if err != nil {
			d.audit.Warn("transfer failed",
				"ledger", d.ledger.Name(),
				"from", from,
				"recipient", r.Address,
				"amount", r.Amount,
				"index", i,
				"error", err.Error(),
				"severity", xerrors.SeverityOf(err),
				"retryable", xerrors.RetryableError(err),
				// 确认超时的交易可能仍会上链。
				"pending_signature", xerrors.MetadataValue(err, "signature"),
			)
			d.log.Error("分发中止", "index", i, "completed", len(signatures), "error", err)
			return failed(signatures, total, err)
		}

		d.audit.Info("transfer confirmed",
			"ledger", d.ledger.Name(),
			"from", from,
			"recipient", r.Address,
			"amount", r.Amount,
			"index", i,
			"signature", sig,
		)
		signatures = append(signatures, sig)
		total += r.Amount
	}

	d.log.Info("分发完成", "recipients", len(recipients), "total", total)
	return Result{Success: true, Signatures: signatures, TotalDistributed: total}
}

// ValidateRecipients 当且仅当每个地址在账本上合法且每个金额为正时返回 true。
func (d *Distributor) ValidateRecipients(recipients []Recipient) bool {
	for _, r := range recipients {
		if r.Address == "" || d.ledger == nil || d.ledger.ValidateAddress(r.Address) != nil {
			return false
		}
		if !(r.Amount > 0) || math.IsInf(r.Amount, 0) {
			return false
		}
	}
	return true
}

// CalculateTotal 返回金额之和，不做校验。
func CalculateTotal(recipients []Recipient) float64 {
	total := 0.0
	for _, r := range recipients {
		total += r.Amount
	}
	return total
}

func (d *Distributor) observe(amount float64, took time.Duration, err error) {
	if d.observer == nil {
		return
	}
	d.observer.ObserveTransfer(d.ledger.Name(), amount, took, err)
}

func failed(signatures []string, total float64, err error) Result {
	res := Result{
		Success:          false,
		TotalDistributed: total,
		Error:            "Distribution failed: " + xerrors.UserMessage(err),
	}
	if len(signatures) > 0 {
		res.Signatures = signatures
	}
	return res
}
