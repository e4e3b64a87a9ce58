package world

import (
	"time"

	"tilecraft.gg/internal/mapgen"
	"tilecraft.gg/internal/protocol"
)

// Block types.
const (
	BlockWall      = "wall"
	BlockWorkbench = "workbench"
)

// Tool kinds.
const (
	ToolAxe     = "axe"
	ToolPickaxe = "pickaxe"
)

// toolTierRank orders tool tiers for gating checks. Unknown tiers rank
// lowest.
var toolTierRank = map[string]int{
	"wood":    0,
	"stone":   1,
	"iron":    2,
	"diamond": 3,
}

// playerColors is the palette new players draw from.
var playerColors = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4",
	"#FFEAA7", "#DDA0DD", "#98D8C8", "#F7DC6F",
}

// Player is a participant. The embedded wire record is the persisted truth;
// the rest is runtime-only.
type Player struct {
	protocol.Player

	// lastAction gates the shared move/harvest/build cooldown.
	lastAction time.Time
}

// Alive reports whether the player can act.
func (p *Player) Alive() bool { return p.Active && p.HP > 0 }

// addXP applies the level-up loop: each level-up consumes level*100 xp.
// Levels are uncapped.
func addXP(s *protocol.Skill, amount int) bool {
	s.XP += amount
	leveled := false
	for s.XP >= s.Level*100 {
		s.XP -= s.Level * 100
		s.Level++
		leveled = true
	}
	return leveled
}

func cellOf(x, y int) protocol.Cell { return protocol.Cell{X: x, Y: y} }

func manhattan(x1, y1, x2, y2 int) int {
	return abs(x1-x2) + abs(y1-y2)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
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

// inventoryResource maps a resource to its inventory field.
func addResource(inv *protocol.Inventory, r mapgen.Resource, n int) {
	switch r {
	case mapgen.Wood:
		inv.Wood += n
	case mapgen.Stone:
		inv.Stone += n
	case mapgen.Gold:
		inv.Gold += n
	case mapgen.Diamond:
		inv.Diamond += n
	}
}
