// internal/bot/app.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/sniper-agent/internal/blockchain/solbc"
	"github.com/rovshanmuradov/sniper-agent/internal/config"
	"github.com/rovshanmuradov/sniper-agent/internal/eventlistener"
	"github.com/rovshanmuradov/sniper-agent/internal/events"
	"github.com/rovshanmuradov/sniper-agent/internal/execution"
	"github.com/rovshanmuradov/sniper-agent/internal/marketdata"
	"github.com/rovshanmuradov/sniper-agent/internal/metrics"
	"github.com/rovshanmuradov/sniper-agent/internal/notify"
	"github.com/rovshanmuradov/sniper-agent/internal/roster"
	"github.com/rovshanmuradov/sniper-agent/internal/session"
	"github.com/rovshanmuradov/sniper-agent/internal/sniper"
	"github.com/rovshanmuradov/sniper-agent/internal/storage/sqlite"
	"github.com/rovshanmuradov/sniper-agent/internal/subscription"
	"github.com/rovshanmuradov/sniper-agent/internal/wallet"
)

// App wires every component of the agent.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	Store      *sqlite.Store
	Bus        *events.Bus
	Keys       *wallet.Store
	Supervisor *session.Supervisor
	Metrics    *metrics.Collector

	listener *eventlistener.Listener
	stream   *marketdata.StreamDiscovery
	metricsS *http.Server
	shutdown *ShutdownHandler
}

// New builds the application. On error everything opened so far is closed.
func New(cfg *config.Config, logger *zap.Logger) (app *App, err error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		shutdown: NewShutdownHandler(logger, cfg.StopTimeout+5*time.Second),
	}
	defer func() {
		if err != nil {
			_ = a.shutdown.Shutdown(context.Background())
		}
	}()

	a.Store, err = sqlite.Open(cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.shutdown.Add("store", a.Store)

	// registered before the bus so the bus drains into it on shutdown
	sink := notify.NewAsync(a.notifySink(), 10*time.Second, 32, logger)
	a.shutdown.Add("notifications", sink)

	a.Bus = events.NewBus(logger, 4096)
	a.shutdown.AddFunc("event-bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.Bus.Close(ctx)
	})

	a.Metrics = metrics.NewCollector()
	a.Metrics.Attach(a.Bus)
	notify.NewBridge(sink).Attach(a.Bus)

	if cfg.WalletEncryptionKey == "" {
		return nil, errors.New("wallet_encryption_key is required")
	}
	a.Keys, err = wallet.NewStore(a.Store, cfg.WalletEncryptionKey, logger)
	if err != nil {
		return nil, err
	}

	chain := solbc.NewClient(cfg.RPCURL, logger)

	market, err := a.marketData(chain)
	if err != nil {
		return nil, err
	}

	execCfg, err := cfg.ExecutionConfig()
	if err != nil {
		return nil, err
	}
	gateway, err := execution.NewGateway(chain, execCfg, logger)
	if err != nil {
		return nil, err
	}

	loopCfg, err := cfg.LoopConfig()
	if err != nil {
		return nil, err
	}

	gate, err := a.gate()
	if err != nil {
		return nil, err
	}

	deps := sniper.Deps{
		Market:    market,
		Executor:  execution.NewSerialized(gateway),
		Positions: a.Store,
		Trades:    a.Store,
		Bus:       a.Bus,
	}
	a.Supervisor = session.NewSupervisor(session.Config{
		Gate: gate,
		Keys: a.Keys,
		Factory: func(userID string, key *wallet.Wallet, opts session.Options) session.Runner {
			lc := loopCfg
			if opts.TradeAmount.IsPositive() {
				lc.TradeAmount = opts.TradeAmount
			}
			view, release := market.ForUser(userID)
			d := deps
			d.Market = view
			return &userLoop{Loop: sniper.NewLoop(userID, key, lc, d, logger), release: release}
		},
		Bus:         a.Bus,
		StopTimeout: cfg.StopTimeout,
	}, logger)
	a.shutdown.AddFunc("supervisor", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StopTimeout+time.Second)
		defer cancel()
		return a.Supervisor.Shutdown(ctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.Metrics.Handler())
		a.metricsS = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		a.shutdown.AddFunc("metrics-server", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.metricsS.Shutdown(ctx)
		})
	}

	return a, nil
}

// userLoop drops the user's market data subscription once the loop exits.
type userLoop struct {
	*sniper.Loop
	release func()
}

func (u *userLoop) Run(ctx context.Context) error {
	defer u.release()
	return u.Loop.Run(ctx)
}

func (a *App) notifySink() notify.Sink {
	sinks := notify.Multi{notify.NewLogSink(a.logger)}
	if a.cfg.TelegramToken != "" {
		sinks = append(sinks, notify.NewTelegram(notify.DefaultTelegramAPI, a.cfg.TelegramToken, a.cfg.HTTPTimeout))
	}
	return sinks
}

func (a *App) marketData(chain *solbc.Client) (*marketdata.Service, error) {
	cfg := a.cfg
	var discovery marketdata.Discovery
	switch cfg.DiscoverySource {
	case config.DiscoveryStream:
		stream := marketdata.NewStreamDiscovery(cfg.StreamBuffer)
		a.listener = eventlistener.NewListener(cfg.PumpPortalURL, func(e eventlistener.NewTokenEvent) {
			stream.Push(e.Mint)
		}, a.logger)
		a.stream = stream
		discovery = stream
	default:
		discovery = marketdata.NewHTTPDiscovery(cfg.PumpFunAPIURL, cfg.APIRateLimit, cfg.HTTPTimeout, a.logger)
	}

	return marketdata.NewService(marketdata.Config{
		Discovery: discovery,
		Pairs:     marketdata.NewDexScreener(cfg.DexScreenerURL, cfg.APIRateLimit, cfg.HTTPTimeout, a.logger),
		Holders:   marketdata.NewRPCHolders(chain, execution.BondingCurveVault),
		Candles:   marketdata.NewGeckoTerminal(cfg.GeckoTerminalURL, cfg.APIRateLimit, cfg.HTTPTimeout, a.logger),
		Window:    cfg.CandleWindow,
	}, a.logger)
}

func (a *App) gate() (session.Gate, error) {
	storeGate := subscription.NewStoreGate(a.Store, a.logger)
	keygenGate := func() (*subscription.KeygenGate, error) {
		return subscription.NewKeygenGate(subscription.KeygenConfig{
			AccountID:    a.cfg.Keygen.AccountID,
			ProductID:    a.cfg.Keygen.ProductID,
			ProductToken: a.cfg.Keygen.ProductToken,
		}, a.Store, a.logger)
	}

	switch a.cfg.SubscriptionGate {
	case config.GateNone:
		a.logger.Warn("Subscription gate disabled, every user is entitled")
		return subscription.Open{}, nil
	case config.GateKeygen:
		return keygenGate()
	case config.GateBoth:
		kg, err := keygenGate()
		if err != nil {
			return nil, err
		}
		return subscription.AllOf{storeGate, kg}, nil
	default:
		return storeGate, nil
	}
}

// Run starts the background services and the roster's autostart sessions,
// then blocks until ctx is cancelled and shuts everything down.
func (a *App) Run(ctx context.Context, r *roster.Roster) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.listener != nil {
		g.Go(func() error {
			return a.listener.Run(gctx)
		})
	}
	if a.metricsS != nil {
		g.Go(func() error {
			a.logger.Info("Metrics server started", zap.String("addr", a.metricsS.Addr))
			if err := a.metricsS.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	a.Autostart(gctx, r)

	g.Go(func() error {
		<-gctx.Done()
		return a.Close()
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Autostart starts every roster session flagged for it. Failures are
// logged and do not stop the others.
func (a *App) Autostart(ctx context.Context, r *roster.Roster) {
	if r == nil {
		return
	}
	for _, entry := range r.Autostart() {
		opts, err := entry.Options()
		if err != nil {
			a.logger.Error("Invalid roster entry", zap.String("user_id", entry.UserID), zap.Error(err))
			continue
		}
		if err := a.Supervisor.Start(ctx, entry.UserID, opts); err != nil {
			a.logger.Error("Failed to start session", zap.String("user_id", entry.UserID), zap.Error(err))
		}
	}
}

// Close shuts every service down. It is safe to call more than once.
func (a *App) Close() error {
	return a.shutdown.Shutdown(context.Background())
}
