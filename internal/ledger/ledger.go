package ledger

import (
	"context"
	stdErrors "errors"
)

// Snapshot summarises the network a ledger is connected to.
type Snapshot struct {
	Ledger  string `json:"ledger"`
	Network string `json:"network"`
	Version string `json:"version,omitempty"`
	Height  uint64 `json:"height"`
	Notes   string `json:"notes,omitempty"`
}

// Signer is a loaded key able to authorise transfers on one ledger.
// Implementations are ledger specific; a signer from one backend is
// rejected by another.
type Signer interface {
	Address() string
}

// Ledger is the external value ledger used to move native funds.
// Transfer blocks until the transaction reaches the ledger's configured
// confirmation level and returns its signature.
type Ledger interface {
	Name() string
	ValidateAddress(address string) error
	LoadSigner(secret string) (Signer, error)
	Transfer(ctx context.Context, signer Signer, to string, amount float64) (string, error)
	Balance(ctx context.Context, address string) (float64, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	Close()
}

// ErrForeignSigner is returned when a signer produced by another backend is
// passed to Transfer.
var ErrForeignSigner = stdErrors.New("signer does not belong to this ledger")
