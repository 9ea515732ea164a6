// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/sniper-agent/internal/storage/models"
)

// ErrNotFound возвращается, когда запись отсутствует.
var ErrNotFound = errors.New("record not found")

// Storage определяет интерфейс для работы с хранилищем
type Storage interface {
	// Кошельки (ключи хранятся уже зашифрованными)
	SaveWallet(ctx context.Context, userID, encryptedKey string) error
	GetWallet(ctx context.Context, userID string) (string, error)

	// Подписки и лицензии
	SetSubscription(ctx context.Context, userID string, expiresAt time.Time) error
	GetSubscription(ctx context.Context, userID string) (time.Time, error)
	SetLicenseKey(ctx context.Context, userID, key string) error
	GetLicenseKey(ctx context.Context, userID string) (string, error)

	// Журнал позиций и сделок
	SavePosition(ctx context.Context, p *models.Position) error
	ListOpenPositions(ctx context.Context, userID string) ([]*models.Position, error)
	SaveTrade(ctx context.Context, t *models.Trade) error
	ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error)

	Close() error
}
