package solana

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/ledger"

	solgo "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type fakeRPC struct {
	mu       sync.Mutex
	sent     []*solgo.Transaction
	statuses []rpc.ConfirmationStatusType
	txErr    any
	sendErr  error
	balance  uint64
	polls    int
	closed   int
}

func (f *fakeRPC) GetVersion(context.Context) (*rpc.GetVersionResult, error) {
	return &rpc.GetVersionResult{SolanaCore: "1.18.22"}, nil
}

func (f *fakeRPC) GetSlot(context.Context, rpc.CommitmentType) (uint64, error) {
	return 4242, nil
}

func (f *fakeRPC) GetBalance(context.Context, solgo.PublicKey, rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: f.balance}, nil
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{Blockhash: solgo.Hash{7}, LastValidBlockHeight: 100}}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *solgo.Transaction, _ rpc.TransactionOpts) (solgo.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return solgo.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(context.Context, bool, ...solgo.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.polls
	f.polls++
	if idx >= len(f.statuses) {
		idx = len(f.statuses) - 1
	}
	if idx < 0 {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{{
		Slot:               1,
		Err:                f.txErr,
		ConfirmationStatus: f.statuses[idx],
	}}}, nil
}

func (f *fakeRPC) Close() error {
	f.closed++
	return nil
}

func newTestLedger(t *testing.T, client *fakeRPC) *Ledger {
	t.Helper()
	return newLedger(Config{
		Name:           "solana-test",
		RPCURL:         "https://api.devnet.solana.com",
		PollInterval:   time.Millisecond,
		ConfirmTimeout: 200 * time.Millisecond,
	}, client)
}

func TestTransferBuildsSignedSystemTransfer(t *testing.T) {
	client := &fakeRPC{statuses: []rpc.ConfirmationStatusType{rpc.ConfirmationStatusProcessed, rpc.ConfirmationStatusConfirmed}}
	l := newTestLedger(t, client)

	key := solgo.NewWallet().PrivateKey
	signer, err := l.LoadSigner(key.String())
	if err != nil {
		t.Fatalf("load signer: %v", err)
	}
	recipient := solgo.NewWallet().PublicKey()

	sig, err := l.Transfer(context.Background(), signer, recipient.String(), 0.25)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if len(client.sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(client.sent))
	}
	tx := client.sent[0]
	if sig != tx.Signatures[0].String() {
		t.Fatalf("unexpected signature %s", sig)
	}
	if err := tx.VerifySignatures(); err != nil {
		t.Fatalf("verify signatures: %v", err)
	}
	if !tx.Message.AccountKeys[0].Equals(key.PublicKey()) {
		t.Fatalf("fee payer should be the signer")
	}
	if len(tx.Message.Instructions) != 1 {
		t.Fatalf("expected one instruction, got %d", len(tx.Message.Instructions))
	}
	data := tx.Message.Instructions[0].Data
	if len(data) != 12 {
		t.Fatalf("unexpected instruction data length %d", len(data))
	}
	if lamports := binary.LittleEndian.Uint64(data[4:]); lamports != 250_000_000 {
		t.Fatalf("expected 250000000 lamports, got %d", lamports)
	}
	if client.polls < 2 {
		t.Fatalf("expected polling until confirmed, got %d polls", client.polls)
	}
}

func TestTransferFailsOnTransactionError(t *testing.T) {
	client := &fakeRPC{
		statuses: []rpc.ConfirmationStatusType{rpc.ConfirmationStatusConfirmed},
		txErr:    map[string]any{"InstructionError": []any{0, "Custom"}},
	}
	l := newTestLedger(t, client)
	signer := NewSigner(solgo.NewWallet().PrivateKey)

	_, err := l.Transfer(context.Background(), signer, solgo.NewWallet().PublicKey().String(), 1)
	if err == nil {
		t.Fatal("expected transaction error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeLedgerFailure {
		t.Fatalf("unexpected code %s", xerrors.CodeOf(err))
	}
}

func TestTransferTimesOutWithoutConfirmation(t *testing.T) {
	client := &fakeRPC{statuses: []rpc.ConfirmationStatusType{rpc.ConfirmationStatusProcessed}}
	l := newTestLedger(t, client)
	signer := NewSigner(solgo.NewWallet().PrivateKey)

	_, err := l.Transfer(context.Background(), signer, solgo.NewWallet().PublicKey().String(), 1)
	if xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestTransferRejectsBadInput(t *testing.T) {
	client := &fakeRPC{statuses: []rpc.ConfirmationStatusType{rpc.ConfirmationStatusConfirmed}}
	l := newTestLedger(t, client)
	signer := NewSigner(solgo.NewWallet().PrivateKey)

	if _, err := l.Transfer(context.Background(), signer, "not-an-address", 1); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid address error, got %v", err)
	}
	if _, err := l.Transfer(context.Background(), signer, solgo.NewWallet().PublicKey().String(), 0); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid amount error, got %v", err)
	}
	if _, err := l.Transfer(context.Background(), foreignSigner{}, solgo.NewWallet().PublicKey().String(), 1); !errors.Is(err, ledger.ErrForeignSigner) {
		t.Fatalf("expected foreign signer error, got %v", err)
	}
	if len(client.sent) != 0 {
		t.Fatalf("no transaction should be sent, got %d", len(client.sent))
	}
}

type foreignSigner struct{}

func (foreignSigner) Address() string { return "0xabc" }

func TestParsePrivateKeyEncodings(t *testing.T) {
	key := solgo.NewWallet().PrivateKey

	raw := make([]int, len(key))
	for i, b := range key {
		raw[i] = int(b)
	}
	arr, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	inputs := map[string]string{
		"base58": key.String(),
		"base64": base64.StdEncoding.EncodeToString(key),
		"json":   string(arr),
	}
	for name, input := range inputs {
		got, err := ParsePrivateKey(input)
		if err != nil {
			t.Fatalf("%s: parse: %v", name, err)
		}
		if !got.PublicKey().Equals(key.PublicKey()) {
			t.Fatalf("%s: public key mismatch", name)
		}
	}

	for _, bad := range []string{"", "abc", base64.StdEncoding.EncodeToString([]byte("short")), "[1,2,3]"} {
		if _, err := ParsePrivateKey(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBalanceAndSnapshot(t *testing.T) {
	client := &fakeRPC{balance: 1_500_000_000}
	l := newTestLedger(t, client)

	bal, err := l.Balance(context.Background(), solgo.NewWallet().PublicKey().String())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal != 1.5 {
		t.Fatalf("expected 1.5 SOL, got %v", bal)
	}

	snap, err := l.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Version != "1.18.22" || snap.Height != 4242 || !strings.HasSuffix(snap.Network, "devnet") {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	l.Close()
	l.Close()
	if client.closed != 1 {
		t.Fatalf("expected single close, got %d", client.closed)
	}
}

func TestToLamports(t *testing.T) {
	cases := map[float64]uint64{
		1:           1_000_000_000,
		0.1:         100_000_000,
		0.000000001: 1,
		0.3:         300_000_000,
	}
	for in, want := range cases {
		got, err := ToLamports(in)
		if err != nil {
			t.Fatalf("ToLamports(%v): %v", in, err)
		}
		if got != want {
			t.Fatalf("ToLamports(%v) = %d, want %d", in, got, want)
		}
	}
	if _, err := ToLamports(-1); err == nil {
		t.Fatal("expected error for negative amount")
	}
}
