// Package snapshot persists the whole world as one flat JSON document and
// repairs whatever it reads back. Anything on disk is untrusted: a corrupt or
// hand-edited file must never crash the process, it just degrades to defaults.
package snapshot

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"tilecraft.gg/internal/mapgen"
	"tilecraft.gg/internal/protocol"
)

// Write atomically replaces path with the serialized state (tmp + rename).
func Write(path string, state *protocol.GameState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteBytes is Write for a pre-serialized document.
func WriteBytes(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Read parses the state file. Callers pass the result (or nil on error)
// through Sanitize before use.
func Read(path string) (*protocol.GameState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s protocol.GameState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &s, nil
}

// Sanitize repairs a loaded state in place and returns it. A nil input yields
// a fresh default world. Guarantees on return:
//   - players keyed by their decimal id, all inactive, fields in range
//   - nextPlayerId strictly above every existing id
//   - at most one block per cell, all coordinates in bounds
//   - harvested/spawned lists deduplicated and in bounds
//   - a nonzero map seed
func Sanitize(s *protocol.GameState) *protocol.GameState {
	if s == nil {
		s = &protocol.GameState{}
	}
	if s.Players == nil {
		s.Players = map[string]*protocol.Player{}
	}

	players := make(map[string]*protocol.Player, len(s.Players))
	maxID := 0
	for key, p := range s.Players {
		id, err := strconv.Atoi(key)
		if err != nil || id < 1 || p == nil {
			continue
		}
		p.ID = id
		if p.Name == "" {
			p.Name = fmt.Sprintf("Player %d", id)
		}
		p.X = clampCoord(p.X)
		p.Y = clampCoord(p.Y)
		// Live connections cannot survive a restart.
		p.Active = false
		if p.HP < 0 {
			p.HP = 0
		}
		if p.HP > 100 {
			p.HP = 100
		}
		p.Inventory = clampInventory(p.Inventory)
		p.Tools = sanitizeTools(p.Tools)
		if len(p.Items) > 9 {
			p.Items = p.Items[:9]
		}
		p.Skills = sanitizeSkills(p.Skills)
		// Re-key canonically: disk keys like "01" must not survive as a
		// second entry for the same id.
		players[strconv.Itoa(id)] = p
		if id > maxID {
			maxID = id
		}
	}
	s.Players = players
	if s.NextPlayerID < maxID+1 {
		s.NextPlayerID = maxID + 1
	}
	if s.NextPlayerID < 1 {
		s.NextPlayerID = 1
	}

	// Blocks: clamp, first occurrence per cell wins.
	seen := map[protocol.Cell]bool{}
	blocks := s.Blocks[:0]
	for _, b := range s.Blocks {
		b.X = clampCoord(b.X)
		b.Y = clampCoord(b.Y)
		c := protocol.Cell{X: b.X, Y: b.Y}
		if seen[c] {
			continue
		}
		seen[c] = true
		if b.Type == "" {
			b.Type = "wall"
		}
		blocks = append(blocks, b)
	}
	s.Blocks = blocks

	seenCell := map[protocol.Cell]bool{}
	harvested := s.Harvested[:0]
	for _, c := range s.Harvested {
		c.X = clampCoord(c.X)
		c.Y = clampCoord(c.Y)
		if seenCell[c] {
			continue
		}
		seenCell[c] = true
		harvested = append(harvested, c)
	}
	s.Harvested = harvested

	seenSpawn := map[protocol.Cell]bool{}
	spawned := s.Spawned[:0]
	for _, sp := range s.Spawned {
		sp.X = clampCoord(sp.X)
		sp.Y = clampCoord(sp.Y)
		c := protocol.Cell{X: sp.X, Y: sp.Y}
		r := mapgen.Resource(sp.Type)
		if seenSpawn[c] || !r.Valid() || r == mapgen.Open {
			continue
		}
		seenSpawn[c] = true
		spawned = append(spawned, sp)
	}
	s.Spawned = spawned

	for s.MapSeed == 0 {
		s.MapSeed = rand.Uint32()
	}
	return s
}

func clampCoord(v int) int {
	if v < 0 {
		return 0
	}
	if v >= mapgen.GridSize {
		return mapgen.GridSize - 1
	}
	return v
}

func clampInventory(inv protocol.Inventory) protocol.Inventory {
	z := func(v int) int {
		if v < 0 {
			return 0
		}
		return v
	}
	return protocol.Inventory{
		Wood:    z(inv.Wood),
		Stone:   z(inv.Stone),
		Gold:    z(inv.Gold),
		Diamond: z(inv.Diamond),
	}
}

func sanitizeTools(t protocol.Tools) protocol.Tools {
	if t.Pickaxe == "" {
		t.Pickaxe = "wood"
	}
	if t.Axe == "" {
		t.Axe = "wood"
	}
	return t
}

func sanitizeSkills(sk protocol.Skills) protocol.Skills {
	fix := func(s protocol.Skill) protocol.Skill {
		if s.Level < 1 {
			s.Level = 1
		}
		if s.XP < 0 {
			s.XP = 0
		}
		return s
	}
	return protocol.Skills{
		Mining:      fix(sk.Mining),
		Woodcutting: fix(sk.Woodcutting),
		Building:    fix(sk.Building),
	}
}
