// Package keys loads the deployer's signing key.
package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zalando/go-keyring"
)

// Key sources.
const (
	SourceHex     = "hex"
	SourceKeyring = "keyring"
)

var (
	ErrNoKey         = errors.New("no deployer key configured")
	ErrInvalidKey    = errors.New("invalid private key")
	ErrUnknownSource = errors.New("unknown key source")
)

// Options selects where the key comes from.
type Options struct {
	Source         string // "hex" (default) or "keyring"
	PrivateKey     string // hex key, used when Source is "hex"
	KeyringService string
	KeyringUser    string
}

// Load returns the private key described by opts.
func Load(opts Options) (*ecdsa.PrivateKey, error) {
	switch opts.Source {
	case "", SourceHex:
		if opts.PrivateKey == "" {
			return nil, ErrNoKey
		}
		return ParsePrivateKey(opts.PrivateKey)
	case SourceKeyring:
		secret, err := keyring.Get(opts.KeyringService, opts.KeyringUser)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, fmt.Errorf("%w: keyring %s/%s is empty", ErrNoKey, opts.KeyringService, opts.KeyringUser)
			}
			return nil, fmt.Errorf("read keyring %s/%s: %w", opts.KeyringService, opts.KeyringUser, err)
		}
		return ParsePrivateKey(secret)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, opts.Source)
	}
}

// ParsePrivateKey parses a hex secp256k1 key, with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// Store validates hexKey and saves it in the OS keyring.
func Store(service, user, hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	normalized := fmt.Sprintf("%x", crypto.FromECDSA(key))
	if err := keyring.Set(service, user, normalized); err != nil {
		return nil, fmt.Errorf("write keyring %s/%s: %w", service, user, err)
	}
	return key, nil
}

// Address returns the account address of key.
func Address(key *ecdsa.PrivateKey) string {
	return crypto.PubkeyToAddress(key.PublicKey).Hex()
}
