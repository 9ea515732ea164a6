package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/sniper-agent/internal/storage"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string]string
}

func (m *memRepo) SaveWallet(_ context.Context, userID, encryptedKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[userID] = encryptedKey
	return nil
}

func (m *memRepo) GetWallet(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[userID]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

func newTestStore(t *testing.T) (*Store, *memRepo) {
	t.Helper()
	var k fernet.Key
	require.NoError(t, k.Generate())
	repo := &memRepo{rows: map[string]string{}}
	s, err := NewStore(repo, k.Encode(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s, repo
}

func TestStoreImportResolve(t *testing.T) {
	ctx := context.Background()
	s, repo := newTestStore(t)

	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	pub, err := s.Import(ctx, "100", priv.String())
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey(), pub)
	assert.NotContains(t, repo.rows["100"], priv.String())

	w, err := s.ResolveSigningKey(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey(), w.PublicKey)
}

func TestStoreMissingWallet(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.ResolveSigningKey(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestStoreRejectsBadKey(t *testing.T) {
	s, repo := newTestStore(t)
	_, err := s.Import(context.Background(), "1", "not-a-key")
	assert.Error(t, err)
	assert.Empty(t, repo.rows)
}

func TestNewStoreInvalidEncryptionKey(t *testing.T) {
	_, err := NewStore(&memRepo{}, "short", zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestWalletATACached(t *testing.T) {
	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w := FromPrivateKey(priv)

	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	a1, err := w.GetATA(mint)
	require.NoError(t, err)
	a2, err := w.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	expected, _, err := solana.FindAssociatedTokenAddress(priv.PublicKey(), mint)
	require.NoError(t, err)
	assert.Equal(t, expected, a1)
}
