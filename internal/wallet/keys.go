// internal/wallet/keys.go
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/storage"
)

// ErrWalletNotFound возвращается, если у пользователя нет сохранённого ключа.
var ErrWalletNotFound = errors.New("wallet not found")

// KeyProvider resolves the signing key of a user.
type KeyProvider interface {
	ResolveSigningKey(ctx context.Context, userID string) (*Wallet, error)
}

// Repository is the persistence a Store needs.
type Repository interface {
	SaveWallet(ctx context.Context, userID, encryptedKey string) error
	GetWallet(ctx context.Context, userID string) (string, error)
}

// Store keeps base58 private keys encrypted with a Fernet key. The token
// format matches what the Telegram front-end writes to the same table.
type Store struct {
	repo   Repository
	key    *fernet.Key
	logger *zap.Logger
}

// NewStore builds a Store. encryptionKey is a url-safe base64 Fernet key.
func NewStore(repo Repository, encryptionKey string, logger *zap.Logger) (*Store, error) {
	k, err := fernet.DecodeKey(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet encryption key: %w", err)
	}
	return &Store{repo: repo, key: k, logger: logger.Named("wallet-store")}, nil
}

// Import validates and stores a base58 private key for the user and returns its public key.
func (s *Store) Import(ctx context.Context, userID, privateKeyBase58 string) (solana.PublicKey, error) {
	w, err := NewWallet(privateKeyBase58)
	if err != nil {
		return solana.PublicKey{}, err
	}
	token, err := fernet.EncryptAndSign([]byte(privateKeyBase58), s.key)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to encrypt key: %w", err)
	}
	if err := s.repo.SaveWallet(ctx, userID, string(token)); err != nil {
		return solana.PublicKey{}, err
	}
	s.logger.Info("Wallet imported",
		zap.String("user_id", userID),
		zap.String("pubkey", w.PublicKey.String()))
	return w.PublicKey, nil
}

// ResolveSigningKey decrypts the user's key.
func (s *Store) ResolveSigningKey(ctx context.Context, userID string) (*Wallet, error) {
	token, err := s.repo.GetWallet(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %s", ErrWalletNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	// Negative TTL: stored tokens never expire.
	plain := fernet.VerifyAndDecrypt([]byte(token), -1, []*fernet.Key{s.key})
	if plain == nil {
		return nil, fmt.Errorf("failed to decrypt key for user %s", userID)
	}
	return NewWallet(string(plain))
}

var _ KeyProvider = (*Store)(nil)
