package world

import "tilecraft.gg/internal/protocol"

// handlePlaceBlock toggles a block at the target cell: an existing block is
// removed, an empty cell gets a new one, with cost and terrain checks.
func (w *World) handlePlaceBlock(p *Player, req protocol.PlaceBlockReq) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypePlaceBlock, req.X, req.Y, false, protocol.ReasonInactive)
		return
	}
	if w.onCooldown(p) {
		w.auditIntent(p, protocol.TypePlaceBlock, req.X, req.Y, false, protocol.ReasonCooldown)
		return
	}

	x, y := clampCoord(req.X), clampCoord(req.Y)

	if _, exists := w.blockAt(x, y); exists {
		w.removeBlock(p, x, y)
		return
	}

	blockType := req.Type
	if blockType == "" {
		blockType = BlockWall
	}
	w.placeBlock(p, x, y, blockType)
}

// removeBlock is the toggle-remove path: only legal while no active player
// stands on the cell. No materials are refunded.
func (w *World) removeBlock(p *Player, x, y int) {
	if w.occupant(x, y, 0) != nil {
		w.auditIntent(p, protocol.TypePlaceBlock, x, y, false, protocol.ReasonOccupied)
		return
	}
	delete(w.blocks, cellOf(x, y))
	w.stampAction(p)
	w.broadcast(protocol.EvBlockRemoved, protocol.BlockRemovedEvent{X: x, Y: y})
	w.auditIntent(p, protocol.TypePlaceBlock, x, y, true, "")
	w.requestSave("block_removed")
}

func (w *World) placeBlock(p *Player, x, y int, blockType string) {
	if w.occupant(x, y, 0) != nil {
		w.auditIntent(p, protocol.TypePlaceBlock, x, y, false, protocol.ReasonOccupied)
		return
	}
	// Building is only allowed on effectively-open ground; a live resource
	// (base or spawned) must be harvested first.
	if !w.isOpen(x, y) {
		w.auditIntent(p, protocol.TypePlaceBlock, x, y, false, protocol.ReasonNotOpen)
		return
	}

	material, ok := w.consumeBuildCost(p, blockType)
	if !ok {
		w.auditIntent(p, protocol.TypePlaceBlock, x, y, false, protocol.ReasonInsufficient)
		return
	}

	b := protocol.Block{X: x, Y: y, Type: blockType, Material: material}
	w.blocks[cellOf(x, y)] = b
	w.stampAction(p)

	w.broadcast(protocol.EvBlockAdded, protocol.BlockAddedEvent{Block: b})
	w.unicast(p.ID, protocol.EvInventoryUpdated, protocol.InventoryEvent{PlayerID: p.ID, Inventory: p.Inventory})
	if addXP(&p.Skills.Building, w.cfg.XP.Build) {
		w.log.Info("level up", "player", p.ID, "skill", "building", "level", p.Skills.Building.Level)
	}
	w.broadcast(protocol.EvSkillsUpdated, protocol.SkillsEvent{PlayerID: p.ID, Skills: p.Skills})

	w.auditIntent(p, protocol.TypePlaceBlock, x, y, true, "")
	w.requestSave("block_placed")
}

// consumeBuildCost deducts the material cost for blockType, returning the
// chosen material. A wall costs wood or stone (wood preferred); a workbench
// costs both. Returns false without mutating on insufficient resources.
func (w *World) consumeBuildCost(p *Player, blockType string) (string, bool) {
	switch blockType {
	case BlockWall:
		if p.Inventory.Wood >= w.cfg.Costs.WallWood {
			p.Inventory.Wood -= w.cfg.Costs.WallWood
			return "wood", true
		}
		if p.Inventory.Stone >= w.cfg.Costs.WallStone {
			p.Inventory.Stone -= w.cfg.Costs.WallStone
			return "stone", true
		}
		return "", false
	case BlockWorkbench:
		if p.Inventory.Wood >= w.cfg.Costs.WorkbenchWood && p.Inventory.Stone >= w.cfg.Costs.WorkbenchStone {
			p.Inventory.Wood -= w.cfg.Costs.WorkbenchWood
			p.Inventory.Stone -= w.cfg.Costs.WorkbenchStone
			return "", true
		}
		return "", false
	default:
		return "", false
	}
}
