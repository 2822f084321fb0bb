package solana

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	xerrors "Creator-SDK/internal/errors"

	solgo "github.com/gagliardetto/solana-go"
)

const secretKeySize = 64

// Signer holds an ed25519 keypair for the Solana ledger.
type Signer struct {
	key solgo.PrivateKey
}

// NewSigner wraps an existing private key.
func NewSigner(key solgo.PrivateKey) *Signer {
	return &Signer{key: key}
}

// Address returns the base58 public key.
func (s *Signer) Address() string { return s.key.PublicKey().String() }

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() solgo.PublicKey { return s.key.PublicKey() }

// ParsePrivateKey accepts the three common encodings of a 64-byte secret
// key: base58 (wallet export), base64 and a solana-keygen JSON byte array.
func ParsePrivateKey(secret string) (solgo.PrivateKey, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "private key is empty")
	}

	if strings.HasPrefix(secret, "[") {
		var raw []int
		if err := json.Unmarshal([]byte(secret), &raw); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid private key format")
		}
		key := make([]byte, len(raw))
		for i, v := range raw {
			if v < 0 || v > 255 {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "invalid private key format")
			}
			key[i] = byte(v)
		}
		return checkSize(key)
	}

	if key, err := solgo.PrivateKeyFromBase58(secret); err == nil && len(key) == secretKeySize {
		return key, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid private key format")
	}
	return checkSize(decoded)
}

func checkSize(key []byte) (solgo.PrivateKey, error) {
	if len(key) != secretKeySize {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "invalid private key format")
	}
	return solgo.PrivateKey(key), nil
}
