// internal/storage/sqlite/sqlite.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/rovshanmuradov/sniper-agent/internal/storage"
	"github.com/rovshanmuradov/sniper-agent/internal/storage/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
	user_id TEXT PRIMARY KEY,
	encrypted_key TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
	user_id TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL,
	license_key TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS positions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	token TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	token_amount INTEGER NOT NULL,
	notional TEXT NOT NULL,
	status TEXT NOT NULL,
	entry_signature TEXT NOT NULL DEFAULT '',
	exit_signature TEXT NOT NULL DEFAULT '',
	exit_reason TEXT NOT NULL DEFAULT '',
	opened_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_user_status ON positions(user_id, status);

CREATE TABLE IF NOT EXISTS trades (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	token TEXT NOT NULL,
	side TEXT NOT NULL,
	notional TEXT NOT NULL,
	token_amount INTEGER NOT NULL,
	fee TEXT NOT NULL,
	signature TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	failure TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id, created_at);
`

// Store – реализация storage.Storage поверх SQLite (modernc, без cgo).
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open открывает (или создаёт) базу и применяет схему. WAL и busy_timeout
// позволяют монитору и циклу писать журнал конкурентно.
func Open(path string, logger *zap.Logger) (*Store, error) {
	dsn := path
	if !strings.Contains(path, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Named("sqlite").Info("Database initialized", zap.String("path", path))
	return &Store{db: db, logger: logger.Named("sqlite")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveWallet(ctx context.Context, userID, encryptedKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, encrypted_key, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET encrypted_key = excluded.encrypted_key, updated_at = excluded.updated_at`,
		userID, encryptedKey, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

func (s *Store) GetWallet(ctx context.Context, userID string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT encrypted_key FROM wallets WHERE user_id = ?`, userID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load wallet: %w", err)
	}
	return key, nil
}

func (s *Store) SetSubscription(ctx context.Context, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, expires_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET expires_at = excluded.expires_at`,
		userID, expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, userID string) (time.Time, error) {
	var expires int64
	err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM subscriptions WHERE user_id = ?`, userID).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, storage.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	return time.Unix(expires, 0), nil
}

func (s *Store) SetLicenseKey(ctx context.Context, userID, key string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, expires_at, license_key) VALUES (?, 0, ?)
		ON CONFLICT(user_id) DO UPDATE SET license_key = excluded.license_key`,
		userID, key)
	if err != nil {
		return fmt.Errorf("failed to save license key: %w", err)
	}
	return nil
}

func (s *Store) GetLicenseKey(ctx context.Context, userID string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT license_key FROM subscriptions WHERE user_id = ?`, userID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && key == "") {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load license key: %w", err)
	}
	return key, nil
}

func (s *Store) SavePosition(ctx context.Context, p *models.Position) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (id, user_id, token, entry_price, token_amount, notional, status,
			entry_signature, exit_signature, exit_reason, opened_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			exit_signature = excluded.exit_signature,
			exit_reason = excluded.exit_reason,
			updated_at = excluded.updated_at`,
		p.ID, p.UserID, p.Token, p.EntryPrice.String(), int64(p.TokenAmount), p.Notional.String(), p.Status,
		p.EntrySignature, p.ExitSignature, p.ExitReason, p.OpenedAt.Unix(), p.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save position %s: %w", p.ID, err)
	}
	return nil
}

// ListOpenPositions возвращает незакрытые позиции пользователя; пустой userID – всех пользователей.
func (s *Store) ListOpenPositions(ctx context.Context, userID string) ([]*models.Position, error) {
	query := `SELECT id, user_id, token, entry_price, token_amount, notional, status,
		entry_signature, exit_signature, exit_reason, opened_at, updated_at
		FROM positions WHERE status != 'closed'`
	var args []any
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY opened_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var out []*models.Position
	for rows.Next() {
		var (
			p                 models.Position
			entry, notional   string
			amount            int64
			opened, updatedAt int64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Token, &entry, &amount, &notional, &p.Status,
			&p.EntrySignature, &p.ExitSignature, &p.ExitReason, &opened, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.EntryPrice, _ = decimal.NewFromString(entry)
		p.Notional, _ = decimal.NewFromString(notional)
		p.TokenAmount = uint64(amount)
		p.OpenedAt = time.Unix(opened, 0)
		p.UpdatedAt = time.Unix(updatedAt, 0)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *Store) SaveTrade(ctx context.Context, t *models.Trade) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, user_id, token, side, notional, token_amount, fee, signature, success, failure, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Token, t.Side, t.Notional.String(), int64(t.TokenAmount), t.Fee.String(),
		t.Signature, t.Success, t.Failure, t.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save trade %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) ListTrades(ctx context.Context, userID string, limit int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, token, side, notional, token_amount, fee, signature, success, failure, created_at
		FROM trades WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var out []*models.Trade
	for rows.Next() {
		var (
			t             models.Trade
			notional, fee string
			amount, at    int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.Side, &notional, &amount, &fee,
			&t.Signature, &t.Success, &t.Failure, &at); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Notional, _ = decimal.NewFromString(notional)
		t.Fee, _ = decimal.NewFromString(fee)
		t.TokenAmount = uint64(amount)
		t.CreatedAt = time.UnixMilli(at)
		out = append(out, &t)
	}
	return out, rows.Err()
}

var _ storage.Storage = (*Store)(nil)
