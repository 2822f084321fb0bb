package solana

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/ledger"

	solgo "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
)

// Config describes how to reach a Solana cluster.
type Config struct {
	Name           string
	RPCURL         string
	Commitment     string
	Notes          string
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
}

// rpcAPI is the subset of the solana-go RPC client the ledger relies on.
type rpcAPI interface {
	GetVersion(ctx context.Context) (*rpc.GetVersionResult, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetBalance(ctx context.Context, account solgo.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solgo.Transaction, opts rpc.TransactionOpts) (solgo.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solgo.Signature) (*rpc.GetSignatureStatusesResult, error)
	Close() error
}

// Ledger implements ledger.Ledger on top of a Solana JSON-RPC endpoint.
type Ledger struct {
	name           string
	cluster        string
	notes          string
	client         rpcAPI
	commitment     rpc.CommitmentType
	pollInterval   time.Duration
	confirmTimeout time.Duration

	closeOnce sync.Once
}

// New dials nothing up front; the first RPC call opens the connection.
func New(cfg Config) (*Ledger, error) {
	endpoint := strings.TrimSpace(cfg.RPCURL)
	if endpoint == "" {
		return nil, xerrors.New(xerrors.CodeNotConfigured, "solana rpc url is not configured")
	}
	cfg.RPCURL = endpoint
	return newLedger(cfg, rpc.New(endpoint)), nil
}

func newLedger(cfg Config, client rpcAPI) *Ledger {
	name := cfg.Name
	if name == "" {
		name = "solana"
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Ledger{
		name:           name,
		cluster:        clusterOf(cfg.RPCURL),
		notes:          cfg.Notes,
		client:         client,
		commitment:     parseCommitment(cfg.Commitment),
		pollInterval:   poll,
		confirmTimeout: timeout,
	}
}

// Name returns the configured ledger name.
func (l *Ledger) Name() string { return l.name }

// ValidateAddress checks that address is a base58 encoded public key.
func (l *Ledger) ValidateAddress(address string) error {
	if _, err := solgo.PublicKeyFromBase58(strings.TrimSpace(address)); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("invalid solana address %q", address))
	}
	return nil
}

// LoadSigner parses a secret key in base58, base64 or keygen JSON form.
func (l *Ledger) LoadSigner(secret string) (ledger.Signer, error) {
	key, err := ParsePrivateKey(secret)
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

// Transfer sends a system-program transfer and waits for confirmation.
func (l *Ledger) Transfer(ctx context.Context, signer ledger.Signer, to string, amount float64) (string, error) {
	s, ok := signer.(*Signer)
	if !ok || s == nil {
		return "", ledger.ErrForeignSigner
	}
	recipient, err := solgo.PublicKeyFromBase58(strings.TrimSpace(to))
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("invalid solana address %q", to))
	}
	lamports, err := ToLamports(amount)
	if err != nil {
		return "", err
	}

	latest, err := l.client.GetLatestBlockhash(ctx, l.commitment)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeLedgerFailure, err, "fetch latest blockhash")
	}
	if latest == nil || latest.Value == nil {
		return "", xerrors.New(xerrors.CodeLedgerFailure, "rpc returned no blockhash")
	}

	from := s.key.PublicKey()
	tx, err := solgo.NewTransaction(
		[]solgo.Instruction{system.NewTransferInstruction(lamports, from, recipient).Build()},
		latest.Value.Blockhash,
		solgo.TransactionPayer(from),
	)
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeLedgerFailure, err, "build transfer transaction")
	}
	if _, err := tx.Sign(func(key solgo.PublicKey) *solgo.PrivateKey {
		if key.Equals(from) {
			return &s.key
		}
		return nil
	}); err != nil {
		return "", xerrors.Wrap(xerrors.CodeLedgerFailure, err, "sign transfer transaction")
	}

	sig, err := l.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{PreflightCommitment: l.commitment})
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeLedgerFailure, err, "send transaction")
	}
	if err := l.awaitConfirmation(ctx, sig); err != nil {
		return "", err
	}
	return sig.String(), nil
}

func (l *Ledger) awaitConfirmation(ctx context.Context, sig solgo.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, l.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		out, err := l.client.GetSignatureStatuses(ctx, false, sig)
		switch {
		case err != nil:
			lastErr = err
		case out != nil && len(out.Value) > 0 && out.Value[0] != nil:
			status := out.Value[0]
			if status.Err != nil {
				return xerrors.New(xerrors.CodeLedgerFailure,
					fmt.Sprintf("transaction %s failed: %v", sig, status.Err),
					xerrors.WithMetadata("signature", sig.String()),
					xerrors.WithRetryable(false))
			}
			if reached(status.ConfirmationStatus, l.commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			cause := ctx.Err()
			if lastErr != nil {
				cause = fmt.Errorf("%w (last rpc error: %v)", cause, lastErr)
			}
			return xerrors.Wrap(xerrors.CodeTimeout, cause,
				fmt.Sprintf("transaction %s was not confirmed", sig),
				xerrors.WithMetadata("signature", sig.String()))
		case <-ticker.C:
		}
	}
}

// Balance returns the SOL balance of address.
func (l *Ledger) Balance(ctx context.Context, address string) (float64, error) {
	pk, err := solgo.PublicKeyFromBase58(strings.TrimSpace(address))
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeInvalidArgument, err, fmt.Sprintf("invalid solana address %q", address))
	}
	out, err := l.client.GetBalance(ctx, pk, l.commitment)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "query balance")
	}
	if out == nil {
		return 0, nil
	}
	return FromLamports(out.Value), nil
}

// Snapshot reports the node version and current slot.
func (l *Ledger) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	version, err := l.client.GetVersion(ctx)
	if err != nil {
		return ledger.Snapshot{}, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "query node version")
	}
	slot, err := l.client.GetSlot(ctx, l.commitment)
	if err != nil {
		return ledger.Snapshot{}, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "query current slot")
	}
	snap := ledger.Snapshot{
		Ledger:  l.name,
		Network: "solana-" + l.cluster,
		Height:  slot,
		Notes:   l.notes,
	}
	if version != nil {
		snap.Version = version.SolanaCore
	}
	return snap, nil
}

// Close releases the RPC client.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		if l.client != nil {
			_ = l.client.Close()
		}
	})
}

// ToLamports converts SOL to lamports, rounding to the nearest lamport.
func ToLamports(amount float64) (uint64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid transfer amount %v", amount))
	}
	lamports := math.Round(amount * float64(solgo.LAMPORTS_PER_SOL))
	if lamports < 1 {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("amount %v is below one lamport", amount))
	}
	if lamports >= math.MaxUint64 {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("amount %v overflows lamports", amount))
	}
	return uint64(lamports), nil
}

// FromLamports converts lamports to SOL.
func FromLamports(lamports uint64) float64 {
	return float64(lamports) / float64(solgo.LAMPORTS_PER_SOL)
}

func parseCommitment(value string) rpc.CommitmentType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

func rank(level string) int {
	switch level {
	case "processed":
		return 1
	case "confirmed":
		return 2
	case "finalized":
		return 3
	default:
		return 0
	}
}

func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	got := rank(string(status))
	return got > 0 && got >= rank(string(want))
}

func clusterOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "custom"
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "devnet"):
		return "devnet"
	case strings.Contains(host, "testnet"):
		return "testnet"
	case host == "localhost" || host == "127.0.0.1":
		return "localnet"
	case strings.Contains(host, "mainnet"):
		return "mainnet-beta"
	default:
		return "custom"
	}
}

var _ ledger.Ledger = (*Ledger)(nil)
