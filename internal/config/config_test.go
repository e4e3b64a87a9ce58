package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoad_OverridesAndSanitizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilecraft.yaml")
	body := `
action_cooldown_ms: 500
max_inactive_players: 10
trade_max_distance: -3
costs:
  wall_wood: 2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ActionCooldownMs != 500 {
		t.Fatalf("cooldown = %d, want 500", cfg.ActionCooldownMs)
	}
	if cfg.MaxInactivePlayers != 10 {
		t.Fatalf("max inactive = %d, want 10", cfg.MaxInactivePlayers)
	}
	if cfg.Costs.WallWood != 2 {
		t.Fatalf("wall wood = %d, want 2", cfg.Costs.WallWood)
	}
	if cfg.TradeMaxDistance != Defaults().TradeMaxDistance {
		t.Fatalf("negative trade distance should fall back to default, got %d", cfg.TradeMaxDistance)
	}
	if cfg.Costs.WorkbenchWood != Defaults().Costs.WorkbenchWood {
		t.Fatalf("unset cost should keep default, got %d", cfg.Costs.WorkbenchWood)
	}
}

func TestLoad_BadYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilecraft.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
