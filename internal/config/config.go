// Package config loads the server tuning file. Every gameplay constant lives
// here so balancing changes never require a rebuild; Defaults() is the
// canonical rule set and the YAML file overrides only what it names.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Shared action cooldown for move/harvest/build, in milliseconds.
	ActionCooldownMs int `yaml:"action_cooldown_ms"`

	// Periodic full-state save and inactive-player cleanup, in seconds.
	SaveIntervalSec    int `yaml:"save_interval_sec"`
	CleanupIntervalSec int `yaml:"cleanup_interval_sec"`

	// Inactive player records retained before oldest-first eviction.
	MaxInactivePlayers int `yaml:"max_inactive_players"`

	// Manhattan range for trade invites/accepts.
	TradeMaxDistance int `yaml:"trade_max_distance"`

	Costs   Costs   `yaml:"costs"`
	XP      XP      `yaml:"xp"`
	Net     Net     `yaml:"net"`
	Backups Backups `yaml:"backups"`
}

// Costs are build material costs. A wall takes WallWood wood OR WallStone
// stone (wood preferred); a workbench takes both of its costs.
type Costs struct {
	WallWood       int `yaml:"wall_wood"`
	WallStone      int `yaml:"wall_stone"`
	WorkbenchWood  int `yaml:"workbench_wood"`
	WorkbenchStone int `yaml:"workbench_stone"`
}

// XP awards per action.
type XP struct {
	HarvestWood    int `yaml:"harvest_wood"`
	HarvestStone   int `yaml:"harvest_stone"`
	HarvestGold    int `yaml:"harvest_gold"`
	HarvestDiamond int `yaml:"harvest_diamond"`
	Build          int `yaml:"build"`
}

// Net tunes the transport: per-connection inbound rate limiting and the
// outbound queue a slow client is allowed to back up.
type Net struct {
	MsgPerSec float64 `yaml:"msg_per_sec"`
	MsgBurst  int     `yaml:"msg_burst"`
	OutQueue  int     `yaml:"out_queue"`
}

// Backups tunes the compressed state-file backup rotation.
type Backups struct {
	IntervalSec int `yaml:"interval_sec"`
	Keep        int `yaml:"keep"`
}

func Defaults() Config {
	return Config{
		ActionCooldownMs:   950,
		SaveIntervalSec:    300,
		CleanupIntervalSec: 300,
		MaxInactivePlayers: 5,
		TradeMaxDistance:   3,
		Costs: Costs{
			WallWood:       4,
			WallStone:      4,
			WorkbenchWood:  10,
			WorkbenchStone: 5,
		},
		XP: XP{
			HarvestWood:    10,
			HarvestStone:   12,
			HarvestGold:    20,
			HarvestDiamond: 35,
			Build:          15,
		},
		Net: Net{
			MsgPerSec: 10,
			MsgBurst:  20,
			OutQueue:  64,
		},
		Backups: Backups{
			IntervalSec: 3600,
			Keep:        24,
		},
	}
}

// Load reads path over Defaults(). A missing file is not an error; a file
// that exists but does not parse is.
func Load(path string) (Config, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.sanitized(), nil
}

func (c Config) sanitized() Config {
	d := Defaults()
	if c.ActionCooldownMs < 0 {
		c.ActionCooldownMs = d.ActionCooldownMs
	}
	if c.SaveIntervalSec <= 0 {
		c.SaveIntervalSec = d.SaveIntervalSec
	}
	if c.CleanupIntervalSec <= 0 {
		c.CleanupIntervalSec = d.CleanupIntervalSec
	}
	if c.MaxInactivePlayers < 0 {
		c.MaxInactivePlayers = d.MaxInactivePlayers
	}
	if c.TradeMaxDistance <= 0 {
		c.TradeMaxDistance = d.TradeMaxDistance
	}
	if c.Net.MsgPerSec <= 0 {
		c.Net.MsgPerSec = d.Net.MsgPerSec
	}
	if c.Net.MsgBurst <= 0 {
		c.Net.MsgBurst = d.Net.MsgBurst
	}
	if c.Net.OutQueue <= 0 {
		c.Net.OutQueue = d.Net.OutQueue
	}
	if c.Backups.IntervalSec <= 0 {
		c.Backups.IntervalSec = d.Backups.IntervalSec
	}
	if c.Backups.Keep <= 0 {
		c.Backups.Keep = d.Backups.Keep
	}
	return c
}
