package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"tilecraft.gg/internal/protocol"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	state := Sanitize(nil)
	state.MapSeed = 1337
	state.Players["1"] = &protocol.Player{ID: 1, Name: "Player 1", X: 12, Y: 12, HP: 100}
	state.NextPlayerID = 2
	state.Blocks = append(state.Blocks, protocol.Block{X: 3, Y: 4, Type: "wall", Material: "wood"})
	state.Harvested = append(state.Harvested, protocol.Cell{X: 5, Y: 6})
	state.Spawned = append(state.Spawned, protocol.Spawn{X: 7, Y: 8, Type: "gold"})

	if err := Write(path, state); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.MapSeed != 1337 || got.NextPlayerID != 2 {
		t.Fatalf("seed/next = %d/%d, want 1337/2", got.MapSeed, got.NextPlayerID)
	}
	if len(got.Blocks) != 1 || got.Blocks[0].Material != "wood" {
		t.Fatalf("blocks did not round-trip: %+v", got.Blocks)
	}
	if got.Players["1"] == nil || got.Players["1"].Name != "Player 1" {
		t.Fatalf("players did not round-trip: %+v", got.Players)
	}
}

func TestRead_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSanitize_NilYieldsFreshWorld(t *testing.T) {
	s := Sanitize(nil)
	if s.Players == nil || len(s.Players) != 0 {
		t.Fatalf("players = %+v, want empty map", s.Players)
	}
	if s.NextPlayerID != 1 {
		t.Fatalf("nextPlayerId = %d, want 1", s.NextPlayerID)
	}
	if s.MapSeed == 0 {
		t.Fatalf("seed must be nonzero")
	}
}

func TestSanitize_CanonicalizesPlayerKeys(t *testing.T) {
	s := Sanitize(&protocol.GameState{
		Players: map[string]*protocol.Player{
			"01": {ID: 1, Name: "Padded"},
			"2":  {ID: 2, Name: "Plain"},
		},
	})

	if len(s.Players) != 2 {
		t.Fatalf("players = %d, want 2", len(s.Players))
	}
	if _, ok := s.Players["01"]; ok {
		t.Fatalf("padded key survived: %+v", s.Players)
	}
	if p := s.Players["1"]; p == nil || p.ID != 1 {
		t.Fatalf("player 1 not re-keyed: %+v", s.Players)
	}
	if p := s.Players["2"]; p == nil || p.ID != 2 {
		t.Fatalf("player 2 missing: %+v", s.Players)
	}
}

func TestSanitize_RepairsLoadedState(t *testing.T) {
	s := &protocol.GameState{
		Players: map[string]*protocol.Player{
			"2": {ID: 99, X: -4, Y: 40, Active: true, HP: 250,
				Inventory: protocol.Inventory{Wood: -3, Gold: 7},
				Items:     make([]string, 12)},
			"junk": {ID: 5},
			"7":    nil,
		},
		NextPlayerID: 1,
		Blocks: []protocol.Block{
			{X: 30, Y: -1, Type: ""},
			{X: 23, Y: 0, Type: "wall"}, // same cell after clamping: dropped
			{X: 2, Y: 2, Type: "workbench"},
		},
		Harvested: []protocol.Cell{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 50, Y: 1}},
		Spawned: []protocol.Spawn{
			{X: 3, Y: 3, Type: "gold"},
			{X: 3, Y: 3, Type: "wood"}, // duplicate cell: dropped
			{X: 4, Y: 4, Type: "open"}, // open is not a spawnable override
			{X: 5, Y: 5, Type: "lava"}, // unknown type
		},
	}
	s = Sanitize(s)

	if len(s.Players) != 1 {
		t.Fatalf("players = %d, want 1 (junk keys and nil records dropped)", len(s.Players))
	}
	p := s.Players["2"]
	if p.ID != 2 {
		t.Fatalf("id forced from key: got %d", p.ID)
	}
	if p.Active {
		t.Fatalf("loaded players must be inactive")
	}
	if p.X != 0 || p.Y != 23 {
		t.Fatalf("coords not clamped: (%d,%d)", p.X, p.Y)
	}
	if p.HP != 100 {
		t.Fatalf("hp = %d, want clamped 100", p.HP)
	}
	if p.Inventory.Wood != 0 || p.Inventory.Gold != 7 {
		t.Fatalf("inventory not coerced: %+v", p.Inventory)
	}
	if len(p.Items) != 9 {
		t.Fatalf("items = %d, want capped 9", len(p.Items))
	}
	if p.Skills.Mining.Level != 1 {
		t.Fatalf("skill level defaulted to %d, want 1", p.Skills.Mining.Level)
	}
	if p.Tools.Pickaxe != "wood" || p.Tools.Axe != "wood" {
		t.Fatalf("tools not defaulted: %+v", p.Tools)
	}
	if s.NextPlayerID != 3 {
		t.Fatalf("nextPlayerId = %d, want 3", s.NextPlayerID)
	}

	if len(s.Blocks) != 2 {
		t.Fatalf("blocks = %+v, want 2 (duplicate cell dropped)", s.Blocks)
	}
	if s.Blocks[0].X != 23 || s.Blocks[0].Y != 0 || s.Blocks[0].Type != "wall" {
		t.Fatalf("first block not repaired: %+v", s.Blocks[0])
	}

	if len(s.Harvested) != 2 {
		t.Fatalf("harvested = %+v, want 2 entries", s.Harvested)
	}
	if len(s.Spawned) != 1 || s.Spawned[0].Type != "gold" {
		t.Fatalf("spawned = %+v, want single gold entry", s.Spawned)
	}
	if s.MapSeed == 0 {
		t.Fatalf("seed must be nonzero")
	}
}
