package world

import (
	"tilecraft.gg/internal/mapgen"
	"tilecraft.gg/internal/protocol"
)

func (w *World) handleHarvest(p *Player, req protocol.HarvestReq) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypeHarvest, req.X, req.Y, false, protocol.ReasonInactive)
		return
	}
	if w.onCooldown(p) {
		w.auditIntent(p, protocol.TypeHarvest, req.X, req.Y, false, protocol.ReasonCooldown)
		return
	}

	x, y := req.X, req.Y
	if x < 0 || x >= mapgen.GridSize || y < 0 || y >= mapgen.GridSize {
		w.auditIntent(p, protocol.TypeHarvest, x, y, false, protocol.ReasonOutOfBounds)
		return
	}
	if manhattan(p.X, p.Y, x, y) != 1 {
		w.auditIntent(p, protocol.TypeHarvest, x, y, false, protocol.ReasonNotAdjacent)
		return
	}

	res := w.effectiveResource(x, y)
	if res == mapgen.Open {
		w.auditIntent(p, protocol.TypeHarvest, x, y, false, protocol.ReasonNothingThere)
		return
	}
	if w.occupant(x, y, 0) != nil {
		w.auditIntent(p, protocol.TypeHarvest, x, y, false, protocol.ReasonOccupied)
		return
	}
	if reason, ok := w.checkTool(p, req.Tool, res); !ok {
		w.auditIntent(p, protocol.TypeHarvest, x, y, false, reason)
		return
	}

	skill := harvestSkill(p, res)
	yield := harvestYield(skill.Level, res)
	addResource(&p.Inventory, res, yield)
	if addXP(skill, w.harvestXP(res)) {
		w.log.Info("level up", "player", p.ID, "skill", skillName(res), "level", skill.Level)
	}

	c := cellOf(x, y)
	delete(w.spawned, c)
	w.harvested[c] = true

	w.stampAction(p)

	w.broadcast(protocol.EvCellHarvested, protocol.CellHarvestedEvent{
		PlayerID:  p.ID,
		X:         x,
		Y:         y,
		Resource:  string(res),
		Inventory: p.Inventory,
		Skills:    p.Skills,
	})

	if spawn, ok := w.respawnResource(res, c); ok {
		w.broadcast(protocol.EvResourceSpawned, protocol.ResourceSpawnedEvent{
			X: spawn.X, Y: spawn.Y, Type: string(res),
		})
	}

	w.auditIntent(p, protocol.TypeHarvest, x, y, true, "")
	w.requestSave("harvest")
}

// checkTool enforces the tool requirement for a resource. Wood must be cut
// with an axe, minerals mined with a pickaxe, and gold additionally needs at
// least a stone-tier pickaxe.
func (w *World) checkTool(p *Player, tool string, res mapgen.Resource) (string, bool) {
	switch res {
	case mapgen.Wood:
		if tool != "axe" || p.Tools.Axe == "" {
			return protocol.ReasonWrongTool, false
		}
	case mapgen.Stone, mapgen.Gold, mapgen.Diamond:
		if tool != "pickaxe" || p.Tools.Pickaxe == "" {
			return protocol.ReasonWrongTool, false
		}
		if res == mapgen.Gold && toolTierRank[p.Tools.Pickaxe] < toolTierRank["stone"] {
			return protocol.ReasonToolTier, false
		}
	}
	return "", true
}

func harvestSkill(p *Player, res mapgen.Resource) *protocol.Skill {
	if res == mapgen.Wood {
		return &p.Skills.Woodcutting
	}
	return &p.Skills.Mining
}

func skillName(res mapgen.Resource) string {
	if res == mapgen.Wood {
		return "woodcutting"
	}
	return "mining"
}

// harvestYield is 1 plus a level bonus of floor(level/5), with the bonus
// capped at 1 for the scarce resources.
func harvestYield(level int, res mapgen.Resource) int {
	bonus := level / 5
	if res == mapgen.Gold || res == mapgen.Diamond {
		if bonus > 1 {
			bonus = 1
		}
	}
	return 1 + bonus
}

func (w *World) harvestXP(res mapgen.Resource) int {
	switch res {
	case mapgen.Wood:
		return w.cfg.XP.HarvestWood
	case mapgen.Stone:
		return w.cfg.XP.HarvestStone
	case mapgen.Gold:
		return w.cfg.XP.HarvestGold
	case mapgen.Diamond:
		return w.cfg.XP.HarvestDiamond
	}
	return 0
}

// respawnResource places a fresh node of the same type on a uniformly random
// effectively-open cell that is free of players and blocks, excluding the
// cell that was just harvested. Returns false when no candidate exists.
func (w *World) respawnResource(res mapgen.Resource, exclude protocol.Cell) (protocol.Cell, bool) {
	var candidates []protocol.Cell
	for y := 0; y < mapgen.GridSize; y++ {
		for x := 0; x < mapgen.GridSize; x++ {
			c := cellOf(x, y)
			if c == exclude {
				continue
			}
			if w.effectiveResource(x, y) != mapgen.Open {
				continue
			}
			if w.occupant(x, y, 0) != nil {
				continue
			}
			if _, blocked := w.blocks[c]; blocked {
				continue
			}
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return protocol.Cell{}, false
	}
	c := candidates[w.randInt(len(candidates))]
	w.spawned[c] = res
	return c, true
}
