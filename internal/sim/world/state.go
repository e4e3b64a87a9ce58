package world

import (
	"sort"
	"strconv"

	"tilecraft.gg/internal/mapgen"
	"tilecraft.gg/internal/protocol"
)

// importState loads a sanitized document into the live maps.
func (w *World) importState(s *protocol.GameState) {
	for key, rec := range s.Players {
		id, err := strconv.Atoi(key)
		if err != nil || rec == nil {
			continue
		}
		p := &Player{Player: *rec}
		p.ID = id
		p.Items = append([]string(nil), rec.Items...)
		w.players[id] = p
	}
	w.nextID = s.NextPlayerID
	for _, b := range s.Blocks {
		w.blocks[cellOf(b.X, b.Y)] = b
	}
	for _, c := range s.Harvested {
		w.harvested[c] = true
	}
	for _, sp := range s.Spawned {
		w.spawned[cellOf(sp.X, sp.Y)] = mapgen.Resource(sp.Type)
	}
	w.seed = s.MapSeed
	w.gen = mapgen.Generate(w.seed)
}

// exportState builds a deep-copied document of the current state, suitable
// for the welcome payload and for off-thread persistence. Slices come out in
// a deterministic order.
func (w *World) exportState() *protocol.GameState {
	s := &protocol.GameState{
		Players:      make(map[string]*protocol.Player, len(w.players)),
		NextPlayerID: w.nextID,
		MapSeed:      w.seed,
		Blocks:       make([]protocol.Block, 0, len(w.blocks)),
		Harvested:    make([]protocol.Cell, 0, len(w.harvested)),
		Spawned:      make([]protocol.Spawn, 0, len(w.spawned)),
	}
	for id, p := range w.players {
		s.Players[strconv.Itoa(id)] = w.wirePlayer(p)
	}
	for _, b := range w.blocks {
		s.Blocks = append(s.Blocks, b)
	}
	sortCellsBlocks(s.Blocks)
	for c := range w.harvested {
		s.Harvested = append(s.Harvested, c)
	}
	sort.Slice(s.Harvested, func(i, j int) bool {
		a, b := s.Harvested[i], s.Harvested[j]
		return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
	})
	for c, r := range w.spawned {
		s.Spawned = append(s.Spawned, protocol.Spawn{X: c.X, Y: c.Y, Type: string(r)})
	}
	sort.Slice(s.Spawned, func(i, j int) bool {
		a, b := s.Spawned[i], s.Spawned[j]
		return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
	})
	return s
}

func sortCellsBlocks(blocks []protocol.Block) {
	sort.Slice(blocks, func(i, j int) bool {
		a, b := blocks[i], blocks[j]
		return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
	})
}

// wirePlayer copies a player into its wire form.
func (w *World) wirePlayer(p *Player) *protocol.Player {
	rec := p.Player
	rec.Items = append([]string(nil), p.Items...)
	return &rec
}

// effectiveResource is the single cell-override lookup: a spawned resource
// wins, a harvested cell reads open, otherwise the seeded base layout
// decides.
func (w *World) effectiveResource(x, y int) mapgen.Resource {
	c := cellOf(x, y)
	if r, ok := w.spawned[c]; ok {
		return r
	}
	if w.harvested[c] {
		return mapgen.Open
	}
	return w.gen.At(x, y)
}

// occupant returns the active player standing on (x, y), excluding exceptID.
func (w *World) occupant(x, y, exceptID int) *Player {
	for _, p := range w.players {
		if p.ID != exceptID && p.Active && p.X == x && p.Y == y {
			return p
		}
	}
	return nil
}

func (w *World) blockAt(x, y int) (protocol.Block, bool) {
	b, ok := w.blocks[cellOf(x, y)]
	return b, ok
}

func (w *World) hasBlock(x, y int) bool {
	_, ok := w.blocks[cellOf(x, y)]
	return ok
}

func (w *World) isOpen(x, y int) bool {
	return w.effectiveResource(x, y) == mapgen.Open
}

// walkable reports whether an active player may stand on (x, y).
func (w *World) walkable(x, y, exceptID int) bool {
	if x < 0 || x >= mapgen.GridSize || y < 0 || y >= mapgen.GridSize {
		return false
	}
	if w.occupant(x, y, exceptID) != nil {
		return false
	}
	if _, ok := w.blockAt(x, y); ok {
		return false
	}
	return w.effectiveResource(x, y) == mapgen.Open
}

// spawnCell finds the nearest available cell to the map center, scanning by
// growing Manhattan distance in a fixed order so spawn choice is
// deterministic for a given occupancy picture.
func (w *World) spawnCell() (int, int) {
	const cx, cy = mapgen.GridSize / 2, mapgen.GridSize / 2
	for dist := 0; dist < 2*mapgen.GridSize; dist++ {
		for dy := -dist; dy <= dist; dy++ {
			dx := dist - abs(dy)
			for _, sx := range []int{-dx, dx} {
				x, y := cx+sx, cy+dy
				if w.walkable(x, y, 0) {
					return x, y
				}
				if dx == 0 {
					break
				}
			}
		}
	}
	// Fully packed map: fall back to the center.
	return cx, cy
}

// Stats is the health-endpoint view. Safe to call only via StatsRequest
// plumbing or in tests; see cmd/server for the channel-based accessor.
type Stats struct {
	TotalPlayers      int `json:"totalPlayers"`
	ActivePlayers     int `json:"activePlayers"`
	InactivePlayers   int `json:"inactivePlayers"`
	ActiveConnections int `json:"activeConnections"`
}

func (w *World) stats() Stats {
	st := Stats{TotalPlayers: len(w.players), ActiveConnections: len(w.clients)}
	for _, p := range w.players {
		if p.Active {
			st.ActivePlayers++
		} else {
			st.InactivePlayers++
		}
	}
	return st
}
