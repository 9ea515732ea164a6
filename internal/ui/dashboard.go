package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/sniper-agent/internal/events"
	"github.com/rovshanmuradov/sniper-agent/internal/logger"
	"github.com/rovshanmuradov/sniper-agent/internal/session"
	"github.com/rovshanmuradov/sniper-agent/internal/ui/style"
)

const (
	feedSize      = 12
	logLines      = 10
	refreshPeriod = time.Second
)

// Controller is the part of the session supervisor the dashboard drives.
type Controller interface {
	Sessions() []session.Session
	Start(ctx context.Context, userID string, opts session.Options) error
	Stop(userID string)
}

// Dashboard is the operator view: sessions, the positions of the selected
// session, live activity and recent logs.
type Dashboard struct {
	ctl     Controller
	updates *UpdateSender
	logs    *logger.LogBuffer

	keys     KeyMap
	help     help.Model
	sessions table.Model
	rows     []session.Session

	feed     []string
	showLogs bool
	status   string
	width    int
}

// NewDashboard builds the model. logs may be nil.
func NewDashboard(ctl Controller, updates *UpdateSender, logs *logger.LogBuffer) *Dashboard {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "User", Width: 14},
			{Title: "State", Width: 10},
			{Title: "Positions", Width: 10},
			{Title: "Uptime", Width: 12},
		}),
		table.WithFocused(true),
		table.WithHeight(6),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(style.Cyan).Bold(true)
	s.Selected = s.Selected.Foreground(style.Base2).Background(style.Magenta)
	t.SetStyles(s)

	d := &Dashboard{
		ctl:      ctl,
		updates:  updates,
		logs:     logs,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		sessions: t,
		showLogs: logs != nil,
	}
	d.refresh()
	return d
}

func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.waitForEvent(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshPeriod, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (d *Dashboard) waitForEvent() tea.Cmd {
	if d.updates == nil {
		return nil
	}
	return d.updates.Wait()
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.help.Width = msg.Width
		return d, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, d.keys.Quit):
			return d, tea.Quit
		case key.Matches(msg, d.keys.Help):
			d.help.ShowAll = !d.help.ShowAll
			return d, nil
		case key.Matches(msg, d.keys.ToggleLogs):
			d.showLogs = !d.showLogs
			return d, nil
		case key.Matches(msg, d.keys.Stop):
			return d, d.act("stop")
		case key.Matches(msg, d.keys.Start):
			return d, d.act("start")
		}
		var cmd tea.Cmd
		d.sessions, cmd = d.sessions.Update(msg)
		return d, cmd

	case EventMsg:
		if line := describe(msg.Event); line != "" {
			d.push(line)
		}
		d.refresh()
		return d, d.waitForEvent()

	case refreshMsg:
		d.refresh()
		return d, tick()

	case actionResultMsg:
		if msg.Err != nil {
			d.status = style.LossStyle.Render(fmt.Sprintf("%s %s failed: %v", msg.Action, msg.UserID, msg.Err))
		} else {
			d.status = style.ProfitStyle.Render(fmt.Sprintf("%s %s ok", msg.Action, msg.UserID))
		}
		d.refresh()
		return d, nil
	}
	return d, nil
}

// act runs a supervisor call off the UI goroutine.
func (d *Dashboard) act(action string) tea.Cmd {
	userID := d.selectedUser()
	if userID == "" {
		return nil
	}
	d.status = style.MutedStyle.Render(fmt.Sprintf("%s %s...", action, userID))
	ctl := d.ctl
	return func() tea.Msg {
		var err error
		if action == "stop" {
			ctl.Stop(userID)
		} else {
			err = ctl.Start(context.Background(), userID, session.Options{})
		}
		return actionResultMsg{UserID: userID, Action: action, Err: err}
	}
}

func (d *Dashboard) refresh() {
	d.rows = d.ctl.Sessions()
	rows := make([]table.Row, len(d.rows))
	for i, s := range d.rows {
		uptime := "-"
		if s.State == session.StateRunning && !s.StartedAt.IsZero() {
			uptime = time.Since(s.StartedAt).Truncate(time.Second).String()
		}
		rows[i] = table.Row{s.UserID, string(s.State), fmt.Sprint(len(s.PositionIDs)), uptime}
	}
	d.sessions.SetRows(rows)
}

func (d *Dashboard) selectedUser() string {
	row := d.sessions.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

func (d *Dashboard) push(line string) {
	d.feed = append(d.feed, line)
	if len(d.feed) > feedSize {
		d.feed = d.feed[len(d.feed)-feedSize:]
	}
}

func (d *Dashboard) View() string {
	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("pump.fun sniper"))
	b.WriteString("\n")

	b.WriteString(style.ActivePanelStyle.Render(d.sessions.View()))
	b.WriteString("\n")
	b.WriteString(style.PanelStyle.Render(d.positionsView()))
	b.WriteString("\n")
	b.WriteString(style.PanelStyle.Render(d.feedView()))
	b.WriteString("\n")
	if d.showLogs && d.logs != nil {
		b.WriteString(style.PanelStyle.Render(d.logsView()))
		b.WriteString("\n")
	}
	if d.status != "" {
		b.WriteString(d.status)
		b.WriteString("\n")
	}
	b.WriteString(d.help.View(d.keys))
	return b.String()
}

func (d *Dashboard) positionsView() string {
	header := style.AccentStyle.Render("Positions")
	userID := d.selectedUser()
	for _, s := range d.rows {
		if s.UserID != userID {
			continue
		}
		if len(s.Positions) == 0 {
			break
		}
		lines := []string{header}
		for _, p := range s.Positions {
			lines = append(lines, fmt.Sprintf("%-12s %-8s entry %s  %s SOL  %s",
				logger.ShortenAddress(p.Token), p.Status, p.EntryPrice.StringFixed(10),
				p.Notional.StringFixed(3), time.Since(p.EntryTime).Truncate(time.Second)))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}
	return header + "\n" + style.MutedStyle.Render("no open positions")
}

func (d *Dashboard) feedView() string {
	lines := []string{style.AccentStyle.Render("Activity")}
	if len(d.feed) == 0 {
		lines = append(lines, style.MutedStyle.Render("waiting for events"))
	}
	lines = append(lines, d.feed...)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (d *Dashboard) logsView() string {
	lines := []string{style.AccentStyle.Render("Logs")}
	for _, e := range d.logs.Recent(logLines) {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			style.MutedStyle.Render(e.Timestamp.Format("15:04:05")),
			style.LevelStyle(e.Level).Render(fmt.Sprintf("%-5s", e.Level)),
			e.Message))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// describe renders one feed line, or "" for events not shown.
func describe(event events.Event) string {
	ts := style.MutedStyle.Render(event.Timestamp().Format("15:04:05"))
	switch e := event.(type) {
	case events.SessionEvent:
		return fmt.Sprintf("%s %s %s", ts, e.UserID, style.InfoStyle.Render(string(e.Type())))
	case events.TradeSubmittedEvent:
		result := style.ProfitStyle.Render("ok")
		if !e.Success {
			result = style.LossStyle.Render("failed: " + e.Reason)
		}
		return fmt.Sprintf("%s %s %s %s %s SOL %s", ts, e.UserID, strings.ToUpper(e.Side),
			logger.ShortenAddress(e.Token), e.Notional.StringFixed(3), result)
	case events.PositionEvent:
		switch e.Type() {
		case events.PositionClosed:
			change := style.ChangeStyle(e.Change.IsNegative()).Render(e.Change.Shift(2).StringFixed(1) + "%")
			return fmt.Sprintf("%s %s closed %s %s %s", ts, e.UserID, logger.ShortenAddress(e.Token), e.ExitReason, change)
		case events.PositionSellFailed:
			return fmt.Sprintf("%s %s %s %s", ts, e.UserID, logger.ShortenAddress(e.Token),
				style.WarningStyle.Render("sell failed: "+e.Reason))
		}
	case events.CycleCompletedEvent:
		if e.Err != nil {
			return fmt.Sprintf("%s %s %s", ts, e.UserID, style.LossStyle.Render("cycle failed: "+e.Err.Error()))
		}
	}
	return ""
}
