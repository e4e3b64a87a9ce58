package world

import (
	"math/rand/v2"
	"sort"

	"tilecraft.gg/internal/mapgen"
	"tilecraft.gg/internal/protocol"
)

// handleRespawn revives the player at the nearest free cell to the center.
// Always allowed, even for dead or cooling-down players: it is the recovery
// path, not a gameplay action.
func (w *World) handleRespawn(p *Player) {
	p.Active = true
	p.HP = 100
	p.X, p.Y = w.spawnCell()

	w.broadcast(protocol.EvPlayerRespawned, protocol.PlayerRespawnedEvent{
		PlayerID: p.ID, X: p.X, Y: p.Y, HP: p.HP,
	})
	w.auditIntent(p, protocol.TypeRespawn, p.X, p.Y, true, "")
	w.requestSave("respawn")
}

// handleSetMapSeed regenerates the base layout. Harvest and spawn overrides
// refer to the old layout, so they are cleared, and players left standing on
// a now-solid cell are relocated.
func (w *World) handleSetMapSeed(p *Player, req protocol.SetMapSeedReq) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypeSetMapSeed, 0, 0, false, protocol.ReasonInactive)
		return
	}

	w.seed = req.Seed
	if w.seed == 0 {
		w.seed = mapgen.DefaultSeed
	}
	w.gen = mapgen.Generate(w.seed)
	w.harvested = map[protocol.Cell]bool{}
	w.spawned = map[protocol.Cell]mapgen.Resource{}

	w.broadcast(protocol.EvMapSeedChanged, protocol.MapSeedEvent{Seed: w.seed})
	w.relocateStranded()

	w.auditIntent(p, protocol.TypeSetMapSeed, 0, 0, true, "")
	w.requestSave("seed_changed")
}

// relocateStranded moves active players off cells that became non-walkable
// under the new layout.
func (w *World) relocateStranded() {
	for _, id := range w.sortedPlayerIDs() {
		p := w.players[id]
		if !p.Active {
			continue
		}
		if w.isOpen(p.X, p.Y) && !w.hasBlock(p.X, p.Y) {
			continue
		}
		p.X, p.Y = w.spawnCell()
		w.broadcast(protocol.EvPlayerMoved, protocol.PlayerMovedEvent{PlayerID: p.ID, X: p.X, Y: p.Y})
	}
}

func (w *World) handleResetBlocks(p *Player) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypeResetBlocks, 0, 0, false, protocol.ReasonInactive)
		return
	}
	w.blocks = map[protocol.Cell]protocol.Block{}
	w.broadcast(protocol.EvBlocksReset, nil)
	w.auditIntent(p, protocol.TypeResetBlocks, 0, 0, true, "")
	w.requestSave("blocks_reset")
}

func (w *World) handleResetLevels(p *Player) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypeResetLevels, 0, 0, false, protocol.ReasonInactive)
		return
	}
	for _, pl := range w.players {
		pl.Skills = protocol.Skills{
			Mining:      protocol.Skill{Level: 1},
			Woodcutting: protocol.Skill{Level: 1},
			Building:    protocol.Skill{Level: 1},
		}
	}
	w.broadcast(protocol.EvLevelsReset, nil)
	w.auditIntent(p, protocol.TypeResetLevels, 0, 0, true, "")
	w.requestSave("levels_reset")
}

// resetAll wipes the world to a fresh document and re-seats every connected
// client in a blank slot under its existing player id. The id must survive
// the wipe: each transport read loop keeps the (playerID, connID) pair it
// captured at join time, and a renumbered slot would orphan the connection.
func (w *World) resetAll() {
	for pk := range w.trades {
		w.cancelSession(pk, protocol.ReasonSessionTerminated)
	}
	w.invites = map[pairKey]int{}

	w.players = map[int]*Player{}
	w.nextID = 1
	w.blocks = map[protocol.Cell]protocol.Block{}
	w.harvested = map[protocol.Cell]bool{}
	w.spawned = map[protocol.Cell]mapgen.Resource{}
	w.seed = rand.Uint32()
	if w.seed == 0 {
		w.seed = mapgen.DefaultSeed
	}
	w.gen = mapgen.Generate(w.seed)

	ids := make([]int, 0, len(w.clients))
	for id := range w.clients {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		w.players[id] = w.newPlayer(id)
		if id >= w.nextID {
			w.nextID = id + 1
		}
	}
	for _, id := range ids {
		w.unicast(id, protocol.EvWelcome, protocol.WelcomeEvent{
			GameState: w.exportState(),
			PlayerID:  id,
		})
	}

	w.log.Info("world reset", "seed", w.seed, "reseated", len(ids))
	w.requestSave("reset")
}
