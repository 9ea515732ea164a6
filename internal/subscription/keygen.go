// internal/subscription/keygen.go
package subscription

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/keygen-sh/keygen-go/v3"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/storage"
)

var (
	ErrLicenseExpired = errors.New("license has expired")
	ErrLicenseInvalid = errors.New("license is not valid")
)

// keygen-go keeps its settings in package globals, so every call that
// touches them is serialized.
var keygenMu sync.Mutex

// LicenseStore reads the license key registered for a user.
type LicenseStore interface {
	GetLicenseKey(ctx context.Context, userID string) (string, error)
}

// KeygenConfig holds keygen.sh account settings.
type KeygenConfig struct {
	AccountID    string
	ProductID    string
	ProductToken string
	CacheTTL     time.Duration
}

// validateFunc checks one license key for this machine.
type validateFunc func(ctx context.Context, licenseKey, fingerprint string) error

// KeygenGate проверяет лицензию пользователя через Keygen.sh. Успешные
// проверки кешируются на CacheTTL.
type KeygenGate struct {
	cfg         KeygenConfig
	licenses    LicenseStore
	validate    validateFunc
	fingerprint string
	logger      *zap.Logger

	mu    sync.Mutex
	cache map[string]time.Time
	now   func() time.Time
}

// NewKeygenGate creates a gate backed by the keygen.sh API.
func NewKeygenGate(cfg KeygenConfig, licenses LicenseStore, logger *zap.Logger) (*KeygenGate, error) {
	fp, err := machineFingerprint()
	if err != nil {
		return nil, fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}
	g := newKeygenGate(cfg, licenses, fp, logger)
	g.validate = g.validateWithKeygen
	return g, nil
}

func newKeygenGate(cfg KeygenConfig, licenses LicenseStore, fingerprint string, logger *zap.Logger) *KeygenGate {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &KeygenGate{
		cfg:         cfg,
		licenses:    licenses,
		fingerprint: fingerprint,
		logger:      logger.Named("keygen"),
		cache:       make(map[string]time.Time),
		now:         time.Now,
	}
}

// IsEntitled reports false for users without a license key or with an
// expired one. Transport errors are returned.
func (g *KeygenGate) IsEntitled(ctx context.Context, userID string) (bool, error) {
	if g.cached(userID) {
		return true, nil
	}

	key, err := g.licenses.GetLicenseKey(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && key == "") {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read license key: %w", err)
	}

	err = g.validate(ctx, key, g.fingerprint)
	switch {
	case errors.Is(err, ErrLicenseExpired), errors.Is(err, ErrLicenseInvalid):
		g.logger.Info("License rejected", zap.String("user_id", userID), zap.Error(err))
		return false, nil
	case err != nil:
		return false, err
	}

	g.mu.Lock()
	g.cache[userID] = g.now().Add(g.cfg.CacheTTL)
	g.mu.Unlock()
	return true, nil
}

func (g *KeygenGate) cached(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.cache[userID]
	if !ok {
		return false
	}
	if g.now().After(until) {
		delete(g.cache, userID)
		return false
	}
	return true
}

func (g *KeygenGate) validateWithKeygen(ctx context.Context, licenseKey, fingerprint string) error {
	keygenMu.Lock()
	defer keygenMu.Unlock()

	keygen.Account = g.cfg.AccountID
	keygen.Product = g.cfg.ProductID
	keygen.Token = g.cfg.ProductToken
	keygen.LicenseKey = licenseKey

	g.logger.Debug("Validating license", zap.String("key", maskKey(licenseKey)))

	license, err := keygen.Validate(ctx, fingerprint)
	switch {
	case errors.Is(err, keygen.ErrLicenseNotActivated):
		g.logger.Info("License not activated, attempting activation")
		machine, activateErr := license.Activate(ctx, fingerprint)
		if activateErr != nil {
			return fmt.Errorf("failed to activate license: %w", activateErr)
		}
		g.logger.Info("License activated", zap.String("machine_id", machine.ID))
	case errors.Is(err, keygen.ErrLicenseExpired):
		return ErrLicenseExpired
	case err != nil:
		return fmt.Errorf("%w: %v", ErrLicenseInvalid, err)
	}
	if license == nil {
		return ErrLicenseInvalid
	}
	return nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "..."
}

// machineFingerprint hashes the hostname, first active MAC and OS.
func machineFingerprint() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	mac := ""
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 && len(iface.HardwareAddr) > 0 {
			mac = iface.HardwareAddr.String()
			break
		}
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%s", hostname, mac, runtime.GOOS)))
	return fmt.Sprintf("%x", sum), nil
}
