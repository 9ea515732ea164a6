// cmd/sniper/run.go
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/sniper-agent/internal/bot"
	"github.com/rovshanmuradov/sniper-agent/internal/config"
	"github.com/rovshanmuradov/sniper-agent/internal/logger"
	"github.com/rovshanmuradov/sniper-agent/internal/roster"
	"github.com/rovshanmuradov/sniper-agent/internal/ui"
)

func runCmd() *cobra.Command {
	var (
		useTUI     bool
		rosterPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if rosterPath == "" {
				rosterPath = cfg.RosterFile
			}
			r, err := roster.Load(rosterPath)
			if err != nil {
				return err
			}

			logCfg := cfg.LoggerConfig()
			var logs *logger.LogBuffer
			if useTUI {
				// the console encoder would tear the alt screen
				logCfg.Console = false
				logs = logger.NewLogBuffer(500)
			}
			log, err := logger.New(logCfg, logs)
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer logger.Sync(log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := bot.New(cfg, log)
			if err != nil {
				log.Error("Failed to initialize agent", zap.Error(err))
				return err
			}

			log.Info("Starting sniper agent",
				zap.String("discovery", cfg.DiscoverySource),
				zap.String("gate", cfg.SubscriptionGate),
				zap.Int("roster_users", len(r.Users)))

			if !useTUI {
				return app.Run(ctx, r)
			}
			return runTUI(ctx, stop, app, r, logs, log)
		},
	}

	cmd.Flags().BoolVarP(&useTUI, "tui", "t", false, "Show the interactive dashboard")
	cmd.Flags().StringVar(&rosterPath, "roster", "", "Path to the user roster (overrides roster_file)")
	return cmd
}

// runTUI runs the agent in the background and the dashboard in the foreground.
// Quitting the dashboard stops the agent.
func runTUI(ctx context.Context, stop context.CancelFunc, app *bot.App, r *roster.Roster, logs *logger.LogBuffer, log *zap.Logger) error {
	updates := ui.NewUpdateSender(256, log)
	sub := updates.Attach(app.Bus)

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx, r) }()

	p := tea.NewProgram(ui.NewDashboard(app.Supervisor, updates, logs), tea.WithAltScreen(), tea.WithContext(ctx))
	_, uiErr := p.Run()

	stop()
	sub.Unsubscribe()
	err := <-done
	_ = updates.Close()

	if uiErr != nil && ctx.Err() == nil {
		return uiErr
	}
	return err
}
