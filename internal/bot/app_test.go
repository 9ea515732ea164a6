package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/sniper-agent/internal/config"
	"github.com/rovshanmuradov/sniper-agent/internal/roster"
	"github.com/rovshanmuradov/sniper-agent/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	var k fernet.Key
	require.NoError(t, k.Generate())

	t.Setenv("SNIPER_RPC_URL", "http://127.0.0.1:1")
	t.Setenv("SNIPER_FEE_RECIPIENT", "CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	t.Setenv("SNIPER_PUMPFUN_API_URL", "http://127.0.0.1:1")
	t.Setenv("SNIPER_DATABASE_PATH", filepath.Join(t.TempDir(), "sniper.db"))
	t.Setenv("SNIPER_WALLET_ENCRYPTION_KEY", k.Encode())
	t.Setenv("SNIPER_SUBSCRIPTION_GATE", config.GateStore)
	t.Setenv("SNIPER_METRICS_ADDR", "")

	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNewRequiresEncryptionKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.WalletEncryptionKey = ""

	_, err := New(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestAutostartRespectsEntitlement(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	for _, user := range []string{"1", "2"} {
		key := solana.NewWallet().PrivateKey.String()
		_, err := app.Keys.Import(ctx, user, key)
		require.NoError(t, err)
	}
	require.NoError(t, app.Store.SetSubscription(ctx, "1", time.Now().Add(time.Hour)))

	app.Autostart(ctx, &roster.Roster{Users: []roster.Entry{
		{UserID: "1", Autostart: true},
		{UserID: "2", Autostart: true},
		{UserID: "3", Autostart: false},
	}})

	assert.Equal(t, session.StateRunning, app.Supervisor.Status("1").State)
	assert.Equal(t, session.StateIdle, app.Supervisor.Status("2").State)
	assert.Equal(t, session.StateIdle, app.Supervisor.Status("3").State)

	require.NoError(t, app.Close())
	assert.Equal(t, session.StateStopped, app.Supervisor.Status("1").State)
	// second close is a no-op
	assert.NoError(t, app.Close())
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, nil) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStreamSessionsSubscribePerUser(t *testing.T) {
	t.Setenv("SNIPER_DISCOVERY_SOURCE", config.DiscoveryStream)
	cfg := testConfig(t)
	app, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	for _, user := range []string{"1", "2"} {
		_, err := app.Keys.Import(ctx, user, solana.NewWallet().PrivateKey.String())
		require.NoError(t, err)
		require.NoError(t, app.Store.SetSubscription(ctx, user, time.Now().Add(time.Hour)))
	}

	app.Autostart(ctx, &roster.Roster{Users: []roster.Entry{
		{UserID: "1", Autostart: true},
		{UserID: "2", Autostart: true},
	}})
	require.NotNil(t, app.stream)
	assert.Equal(t, 2, app.stream.Subscribers())

	require.NoError(t, app.Close())
	assert.Equal(t, 0, app.stream.Subscribers())
}
