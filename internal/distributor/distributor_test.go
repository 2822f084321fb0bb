package distributor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	xerrors "Creator-SDK/internal/errors"
	"Creator-SDK/internal/ledger"
)

type fakeSigner string

func (s fakeSigner) Address() string { return string(s) }

// fakeLedger 记录调用顺序，并可在指定序号上失败。
type fakeLedger struct {
	calls  []string
	failAt int
	err    error
}

func (f *fakeLedger) Name() string { return "fake" }

func (f *fakeLedger) ValidateAddress(address string) error {
	if !strings.HasPrefix(address, "addr-") {
		return errors.New("bad address")
	}
	return nil
}

func (f *fakeLedger) LoadSigner(secret string) (ledger.Signer, error) {
	return fakeSigner(secret), nil
}

func (f *fakeLedger) Transfer(_ context.Context, _ ledger.Signer, to string, _ float64) (string, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, to)
	if f.failAt >= 0 && idx == f.failAt {
		return "", f.err
	}
	return fmt.Sprintf("sig-%d", idx), nil
}

func (f *fakeLedger) Balance(context.Context, string) (float64, error) { return 0, nil }

func (f *fakeLedger) Snapshot(context.Context) (ledger.Snapshot, error) {
	return ledger.Snapshot{Ledger: "fake"}, nil
}

func (f *fakeLedger) Close() {}

type recordingObserver struct {
	ok, failed int
}

func (r *recordingObserver) ObserveTransfer(_ string, _ float64, _ time.Duration, err error) {
	if err != nil {
		r.failed++
		return
	}
	r.ok++
}

func recipients(n int) []Recipient {
	out := make([]Recipient, n)
	for i := range out {
		out[i] = Recipient{Address: fmt.Sprintf("addr-%d", i), Amount: 0.1 * float64(i+1)}
	}
	return out
}

func newTestDistributor(l ledger.Ledger, opts ...Option) (*Distributor, *bytes.Buffer) {
	var audit bytes.Buffer
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		WithAuditLogger(slog.New(slog.NewJSONHandler(&audit, nil))),
	}
	return New(l, append(base, opts...)...), &audit
}

func TestDistributeAllSucceed(t *testing.T) {
	l := &fakeLedger{failAt: -1}
	obs := &recordingObserver{}
	d, audit := newTestDistributor(l, WithObserver(obs))

	list := recipients(4)
	res := d.Distribute(context.Background(), fakeSigner("payer"), list)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if want := []string{"sig-0", "sig-1", "sig-2", "sig-3"}; !reflect.DeepEqual(res.Signatures, want) {
		t.Fatalf("unexpected signatures %v", res.Signatures)
	}
	if res.TotalDistributed != CalculateTotal(list) {
		t.Fatalf("total %v does not match %v", res.TotalDistributed, CalculateTotal(list))
	}
	if want := []string{"addr-0", "addr-1", "addr-2", "addr-3"}; !reflect.DeepEqual(l.calls, want) {
		t.Fatalf("transfers out of order: %v", l.calls)
	}
	if obs.ok != 4 || obs.failed != 0 {
		t.Fatalf("unexpected observer counts %+v", obs)
	}
	if n := strings.Count(audit.String(), "transfer confirmed"); n != 4 {
		t.Fatalf("expected 4 audit records, got %d", n)
	}
}

func TestDistributeStopsAtFirstFailure(t *testing.T) {
	l := &fakeLedger{failAt: 2, err: errors.New("insufficient funds")}
	obs := &recordingObserver{}
	d, audit := newTestDistributor(l, WithObserver(obs))

	res := d.Distribute(context.Background(), fakeSigner("payer"), recipients(5))
	if res.Success {
		t.Fatal("expected failure")
	}
	if len(l.calls) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(l.calls))
	}
	if want := []string{"sig-0", "sig-1"}; !reflect.DeepEqual(res.Signatures, want) {
		t.Fatalf("expected partial signatures, got %v", res.Signatures)
	}
	if diff := res.TotalDistributed - 0.3; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected partial total 0.3, got %v", res.TotalDistributed)
	}
	if res.Error != "Distribution failed: insufficient funds" {
		t.Fatalf("unexpected error %q", res.Error)
	}
	if obs.ok != 2 || obs.failed != 1 {
		t.Fatalf("unexpected observer counts %+v", obs)
	}
	if !strings.Contains(audit.String(), "transfer failed") {
		t.Fatal("expected failed transfer in audit log")
	}
}

func TestFailedTransferAuditCarriesPendingSignature(t *testing.T) {
	timeout := xerrors.New(xerrors.CodeTimeout, "confirmation timed out", xerrors.WithMetadata("signature", "sig-pending"))
	l := &fakeLedger{failAt: 1, err: timeout}
	d, audit := newTestDistributor(l)

	res := d.Distribute(context.Background(), fakeSigner("payer"), recipients(3))
	if res.Success || len(res.Signatures) != 1 {
		t.Fatalf("expected one confirmed transfer before failure, got %+v", res)
	}

	var record map[string]any
	for _, line := range strings.Split(strings.TrimSpace(audit.String()), "\n") {
		if strings.Contains(line, "transfer failed") {
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				t.Fatalf("decode audit record: %v", err)
			}
		}
	}
	if record == nil {
		t.Fatal("expected failed transfer in audit log")
	}
	if record["pending_signature"] != "sig-pending" {
		t.Fatalf("expected pending signature, got %v", record["pending_signature"])
	}
	if record["severity"] != string(xerrors.SeverityWarning) || record["retryable"] != true {
		t.Fatalf("unexpected severity/retryable %v/%v", record["severity"], record["retryable"])
	}
	if record["recipient"] != "addr-1" {
		t.Fatalf("unexpected recipient %v", record["recipient"])
	}
}

func TestDistributeEmptyList(t *testing.T) {
	l := &fakeLedger{failAt: -1}
	d, _ := newTestDistributor(l)

	res := d.Distribute(context.Background(), fakeSigner("payer"), nil)
	if res.Success || len(l.calls) != 0 {
		t.Fatalf("expected failure without ledger calls, got %+v (calls %d)", res, len(l.calls))
	}
	if !strings.HasPrefix(res.Error, "Distribution failed: ") {
		t.Fatalf("unexpected error %q", res.Error)
	}
}

func TestDistributeCancelledContext(t *testing.T) {
	l := &fakeLedger{failAt: -1}
	d, _ := newTestDistributor(l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := d.Distribute(ctx, fakeSigner("payer"), recipients(2))
	if res.Success || len(l.calls) != 0 {
		t.Fatalf("expected no transfers after cancel, got %+v", res)
	}
}

func TestValidateRecipients(t *testing.T) {
	d, _ := newTestDistributor(&fakeLedger{failAt: -1})

	cases := []struct {
		name string
		list []Recipient
		want bool
	}{
		{"all valid", recipients(3), true},
		{"zero amount", []Recipient{{Address: "addr-1", Amount: 0}}, false},
		{"negative amount", []Recipient{{Address: "addr-1", Amount: 1}, {Address: "addr-2", Amount: -0.5}}, false},
		{"empty address", []Recipient{{Address: "", Amount: 1}}, false},
		{"malformed address", []Recipient{{Address: "addr-1", Amount: 1}, {Address: "oops", Amount: 1}}, false},
	}
	for _, tc := range cases {
		if got := d.ValidateRecipients(tc.list); got != tc.want {
			t.Fatalf("%s: ValidateRecipients = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCalculateTotal(t *testing.T) {
	list := []Recipient{{Amount: 1}, {Amount: 2.5}, {Amount: -0.5}}
	if got := CalculateTotal(list); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	if got := CalculateTotal(nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}
