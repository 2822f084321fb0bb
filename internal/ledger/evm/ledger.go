package evm

import (
	"context"
	"crypto/ecdsa"
	stdErrors "errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/ledger"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

const (
	transferGas = 21_000
	weiDigits   = 18
)

// Config describes how to construct an EVM ledger.
type Config struct {
	Name           string
	RPCURL         string
	Notes          string
	PollInterval   time.Duration
	ConfirmTimeout time.Duration
}

// backend mirrors the subset of ethclient methods used for value transfers.
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*coretypes.Receipt, error)
}

// Ledger implements ledger.Ledger for native value transfers on EVM chains.
type Ledger struct {
	name           string
	notes          string
	backend        backend
	afterSend      func()
	closer         func()
	pollInterval   time.Duration
	confirmTimeout time.Duration

	mu        sync.Mutex
	chainID   *big.Int
	closeOnce sync.Once
}

// New dials the configured RPC endpoint.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, xerrors.New(xerrors.CodeNotConfigured, "evm rpc url is not configured")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "dial evm node")
	}
	l := newLedger(cfg, client)
	l.closer = client.Close
	return l, nil
}

// NewSimulated wraps a go-ethereum simulated backend. Every sent transaction
// is mined immediately.
func NewSimulated(name string, sim *simulated.Backend) *Ledger {
	l := newLedger(Config{Name: name, Notes: "simulated backend", PollInterval: 10 * time.Millisecond}, sim.Client())
	l.afterSend = func() { sim.Commit() }
	l.closer = func() { _ = sim.Close() }
	return l
}

func newLedger(cfg Config, b backend) *Ledger {
	name := cfg.Name
	if name == "" {
		name = "evm"
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Ledger{
		name:           name,
		notes:          cfg.Notes,
		backend:        b,
		pollInterval:   poll,
		confirmTimeout: timeout,
	}
}

// Signer holds an secp256k1 key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// Address returns the checksummed hex address.
func (s *Signer) Address() string { return s.address.Hex() }

// Name returns the configured ledger name.
func (l *Ledger) Name() string { return l.name }

// ValidateAddress checks the 20-byte hex form.
func (l *Ledger) ValidateAddress(address string) error {
	if !common.IsHexAddress(strings.TrimSpace(address)) {
		return xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid evm address %q", address))
	}
	return nil
}

// LoadSigner parses a hex encoded private key, with or without 0x prefix.
func (l *Ledger) LoadSigner(secret string) (ledger.Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(secret), "0x"))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid private key format")
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Transfer sends an EIP-1559 value transfer and waits for a successful receipt.
func (l *Ledger) Transfer(ctx context.Context, signer ledger.Signer, to string, amount float64) (string, error) {
	s, ok := signer.(*Signer)
	if !ok || s == nil {
		return "", ledger.ErrForeignSigner
	}
	if err := l.ValidateAddress(to); err != nil {
		return "", err
	}
	value, err := ToWei(amount)
	if err != nil {
		return "", err
	}
	recipient := common.HexToAddress(strings.TrimSpace(to))

	signed, err := l.send(ctx, s, recipient, value)
	if err != nil {
		return "", err
	}
	if err := l.waitReceipt(ctx, signed.Hash()); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}

// send serialises nonce allocation so concurrent transfers from one signer
// do not collide.
func (l *Ledger) send(ctx context.Context, s *Signer, to common.Address, value *big.Int) (*coretypes.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chainID, err := l.chainIDLocked(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := l.backend.PendingNonceAt(ctx, s.address)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "query pending nonce")
	}
	tip, err := l.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "suggest gas tip")
	}
	head, err := l.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "fetch latest header")
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       transferGas,
		To:        &to,
		Value:     value,
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "sign transaction")
	}
	if err := l.backend.SendTransaction(ctx, signed); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "send transaction")
	}
	if l.afterSend != nil {
		l.afterSend()
	}
	return signed, nil
}

func (l *Ledger) waitReceipt(ctx context.Context, hash common.Hash) error {
	ctx, cancel := context.WithTimeout(ctx, l.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != coretypes.ReceiptStatusSuccessful {
				return xerrors.New(xerrors.CodeLedgerFailure,
					fmt.Sprintf("transaction %s reverted", hash.Hex()),
					xerrors.WithMetadata("signature", hash.Hex()),
					xerrors.WithRetryable(false))
			}
			return nil
		}
		if err != nil && !stdErrors.Is(err, gethcore.NotFound) {
			return xerrors.Wrap(xerrors.CodeLedgerFailure, err, "fetch receipt")
		}

		select {
		case <-ctx.Done():
			return xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(),
				fmt.Sprintf("transaction %s was not mined", hash.Hex()),
				xerrors.WithMetadata("signature", hash.Hex()))
		case <-ticker.C:
		}
	}
}

func (l *Ledger) chainIDLocked(ctx context.Context) (*big.Int, error) {
	if l.chainID != nil {
		return l.chainID, nil
	}
	id, err := l.backend.ChainID(ctx)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "query chain id")
	}
	l.chainID = id
	return id, nil
}

// Balance returns the native balance in ether units.
func (l *Ledger) Balance(ctx context.Context, address string) (float64, error) {
	if err := l.ValidateAddress(address); err != nil {
		return 0, err
	}
	wei, err := l.backend.BalanceAt(ctx, common.HexToAddress(strings.TrimSpace(address)), nil)
	if err != nil {
		return 0, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "query balance")
	}
	return FromWei(wei), nil
}

// Snapshot reports the chain id and latest block number.
func (l *Ledger) Snapshot(ctx context.Context) (ledger.Snapshot, error) {
	l.mu.Lock()
	chainID, err := l.chainIDLocked(ctx)
	l.mu.Unlock()
	if err != nil {
		return ledger.Snapshot{}, err
	}
	height, err := l.backend.BlockNumber(ctx)
	if err != nil {
		return ledger.Snapshot{}, xerrors.Wrap(xerrors.CodeLedgerFailure, err, "query block number")
	}
	return ledger.Snapshot{
		Ledger:  l.name,
		Network: "evm-" + chainID.String(),
		Height:  height,
		Notes:   l.notes,
	}, nil
}

// Close releases the underlying connection.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		if l.closer != nil {
			l.closer()
		}
	})
}

// ToWei converts an ether amount to wei using its shortest decimal form.
func ToWei(amount float64) (*big.Int, error) {
	if amount <= 0 || amount != amount {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid transfer amount %v", amount))
	}
	text := strconv.FormatFloat(amount, 'f', -1, 64)
	whole, frac, _ := strings.Cut(text, ".")
	if len(frac) > weiDigits {
		frac = frac[:weiDigits]
	}
	frac += strings.Repeat("0", weiDigits-len(frac))
	wei, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok || wei.Sign() <= 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("invalid transfer amount %v", amount))
	}
	return wei, nil
}

// FromWei converts wei to ether.
func FromWei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return f
}

var _ ledger.Ledger = (*Ledger)(nil)
