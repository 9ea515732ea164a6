// internal/roster/roster.go
package roster

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/sniper-agent/internal/session"
)

// Entry describes one operator-managed user.
type Entry struct {
	UserID      string `yaml:"user_id"`
	TradeAmount string `yaml:"trade_amount,omitempty"`
	Autostart   bool   `yaml:"autostart"`
}

// Roster lists the users whose sessions the process starts on boot.
type Roster struct {
	Users []Entry `yaml:"users"`
}

// Load reads a roster file. A missing path yields an empty roster.
func Load(path string) (*Roster, error) {
	if path == "" {
		return &Roster{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Roster) validate() error {
	seen := make(map[string]bool, len(r.Users))
	for i, u := range r.Users {
		if u.UserID == "" {
			return fmt.Errorf("roster entry %d: user_id is required", i)
		}
		if seen[u.UserID] {
			return fmt.Errorf("roster entry %d: duplicate user_id %s", i, u.UserID)
		}
		seen[u.UserID] = true
		if _, err := u.Options(); err != nil {
			return fmt.Errorf("roster entry %d: %w", i, err)
		}
	}
	return nil
}

// Autostart returns the entries flagged for start on boot.
func (r *Roster) Autostart() []Entry {
	var out []Entry
	for _, u := range r.Users {
		if u.Autostart {
			out = append(out, u)
		}
	}
	return out
}

// Options converts the entry into session start options.
func (e Entry) Options() (session.Options, error) {
	if e.TradeAmount == "" {
		return session.Options{}, nil
	}
	amount, err := decimal.NewFromString(e.TradeAmount)
	if err != nil {
		return session.Options{}, fmt.Errorf("invalid trade_amount %q: %w", e.TradeAmount, err)
	}
	if !amount.IsPositive() {
		return session.Options{}, errors.New("trade_amount must be positive")
	}
	return session.Options{TradeAmount: amount}, nil
}

// Save writes the roster back as YAML.
func (r *Roster) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
