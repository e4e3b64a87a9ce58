package world

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"tilecraft.gg/internal/config"
	"tilecraft.gg/internal/mapgen"
	"tilecraft.gg/internal/persistence/snapshot"
	"tilecraft.gg/internal/protocol"
)

// newTestWorld builds a world with a fixed seed, a stubbed clock and a
// deterministic randInt. The returned time pointer advances the clock.
func newTestWorld(t *testing.T) (*World, *time.Time) {
	t.Helper()
	st := snapshot.Sanitize(&protocol.GameState{MapSeed: 7})
	w := New(config.Defaults(), log.New(io.Discard), st)
	now := time.Unix(1_700_000_000, 0)
	w.now = func() time.Time { return now }
	w.randInt = func(n int) int { return 0 }
	return w, &now
}

func joinConn(t *testing.T, w *World, connID string) (int, chan []byte) {
	t.Helper()
	out := make(chan []byte, 256)
	resp := make(chan JoinResponse, 1)
	w.handleJoin(JoinRequest{ConnID: connID, Out: out, Resp: resp})
	select {
	case jr := <-resp:
		if len(jr.Welcome) == 0 {
			t.Fatalf("empty welcome for conn %s", connID)
		}
		return jr.PlayerID, out
	default:
		t.Fatalf("no join response for conn %s", connID)
		return 0, nil
	}
}

// drainEvents empties a client's out channel into decoded envelopes.
func drainEvents(t *testing.T, out chan []byte) []protocol.Envelope {
	t.Helper()
	var evs []protocol.Envelope
	for {
		select {
		case b := <-out:
			e, err := protocol.DecodeEnvelope(b)
			if err != nil {
				t.Fatalf("decode event: %v", err)
			}
			evs = append(evs, e)
		default:
			return evs
		}
	}
}

func findEvent(evs []protocol.Envelope, typ string) (protocol.Envelope, bool) {
	for _, e := range evs {
		if e.Type == typ {
			return e, true
		}
	}
	return protocol.Envelope{}, false
}

func mustEvent(t *testing.T, evs []protocol.Envelope, typ string) protocol.Envelope {
	t.Helper()
	e, ok := findEvent(evs, typ)
	if !ok {
		t.Fatalf("expected %s event, got %d events", typ, len(evs))
	}
	return e
}

// forceOpen makes a cell effectively open regardless of the base layout.
func forceOpen(w *World, x, y int) {
	delete(w.spawned, cellOf(x, y))
	w.harvested[cellOf(x, y)] = true
}

func advance(now *time.Time, d time.Duration) { *now = now.Add(d) }

func TestJoinAssignsMonotonicIDs(t *testing.T) {
	w, _ := newTestWorld(t)
	id1, _ := joinConn(t, w, "c1")
	id2, _ := joinConn(t, w, "c2")
	if id1 != 1 || id2 != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", id1, id2)
	}
	p := w.players[id1]
	if !p.Active || p.HP != 100 || p.Tools.Pickaxe != "wood" || p.Tools.Axe != "wood" {
		t.Fatalf("bad new player: %+v", p.Player)
	}
	if p.Skills.Mining.Level != 1 || p.Skills.Building.Level != 1 {
		t.Fatalf("skills not initialized: %+v", p.Skills)
	}
}

func TestJoinReusesOldestInactiveSlot(t *testing.T) {
	w, _ := newTestWorld(t)
	id1, _ := joinConn(t, w, "c1")
	id2, _ := joinConn(t, w, "c2")

	w.players[id1].Inventory.Wood = 9
	w.handleLeave(LeaveRequest{PlayerID: id1, ConnID: "c1"})
	w.handleLeave(LeaveRequest{PlayerID: id2, ConnID: "c2"})

	// Lowest id is the oldest slot; it gets reused first.
	reused, out := joinConn(t, w, "c3")
	if reused != id1 {
		t.Fatalf("reused id = %d, want %d", reused, id1)
	}
	p := w.players[reused]
	if !p.Active || p.HP != 100 {
		t.Fatalf("slot not reactivated: %+v", p.Player)
	}
	if p.Inventory.Wood != 9 {
		t.Fatalf("reactivation lost inventory: %+v", p.Inventory)
	}
	drainEvents(t, out)
}

func TestLeaveIgnoresStaleConnID(t *testing.T) {
	w, _ := newTestWorld(t)
	id, _ := joinConn(t, w, "c1")

	// The slot reconnects under a new connection before the old one's
	// disconnect lands.
	w.handleLeave(LeaveRequest{PlayerID: id, ConnID: "c1"})
	reused, _ := joinConn(t, w, "c2")
	if reused != id {
		t.Fatalf("reused id = %d, want %d", reused, id)
	}
	w.handleLeave(LeaveRequest{PlayerID: id, ConnID: "c1"}) // stale
	if !w.players[id].Active {
		t.Fatal("stale disconnect deactivated a reconnected player")
	}
}

func TestCleanupEvictsOldestInactiveBeyondCap(t *testing.T) {
	w, _ := newTestWorld(t)
	w.cfg.MaxInactivePlayers = 2

	var ids []int
	for i := 0; i < 4; i++ {
		id, _ := joinConn(t, w, "c")
		ids = append(ids, id)
	}
	for _, id := range ids {
		w.handleLeave(LeaveRequest{PlayerID: id, ConnID: "c"})
	}

	w.cleanupInactive()

	if len(w.players) != 2 {
		t.Fatalf("players after cleanup = %d, want 2", len(w.players))
	}
	// The two oldest (lowest-id) records go first.
	for _, id := range ids[:2] {
		if _, ok := w.players[id]; ok {
			t.Fatalf("player %d survived cleanup", id)
		}
	}
	for _, id := range ids[2:] {
		if _, ok := w.players[id]; !ok {
			t.Fatalf("player %d evicted too early", id)
		}
	}
	if w.nextID != 5 {
		t.Fatalf("nextID = %d, want 5 (ids are never reassigned)", w.nextID)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	w, _ := newTestWorld(t)
	id, _ := joinConn(t, w, "c1")
	p := w.players[id]
	p.Inventory = protocol.Inventory{Wood: 3, Gold: 1}
	p.Items = []string{"torch"}
	w.blocks[cellOf(4, 5)] = protocol.Block{X: 4, Y: 5, Type: BlockWall, Material: "wood"}
	w.harvested[cellOf(1, 2)] = true
	w.spawned[cellOf(6, 7)] = mapgen.Diamond

	st := w.exportState()

	// The export must not alias live state.
	st.Players["1"].Inventory.Wood = 99
	st.Players["1"].Items[0] = "mutated"
	if p.Inventory.Wood != 3 || p.Items[0] != "torch" {
		t.Fatal("export aliases live state")
	}

	w2 := New(w.cfg, log.New(io.Discard), w.exportState())
	p2 := w2.players[id]
	if p2 == nil || p2.Inventory != p.Inventory || p2.Name != p.Name {
		t.Fatalf("player did not survive round trip: %+v", p2)
	}
	if b, ok := w2.blocks[cellOf(4, 5)]; !ok || b.Material != "wood" {
		t.Fatalf("block did not survive round trip: %+v", b)
	}
	if !w2.harvested[cellOf(1, 2)] {
		t.Fatal("harvested cell lost")
	}
	if w2.spawned[cellOf(6, 7)] != mapgen.Diamond {
		t.Fatal("spawned resource lost")
	}
	if w2.seed != w.seed || w2.nextID != w.nextID {
		t.Fatalf("seed/nextID mismatch: %d/%d vs %d/%d", w2.seed, w2.nextID, w.seed, w.nextID)
	}
}

func TestWelcomeCarriesStateAndPlayerID(t *testing.T) {
	w, _ := newTestWorld(t)
	out := make(chan []byte, 16)
	resp := make(chan JoinResponse, 1)
	w.handleJoin(JoinRequest{ConnID: "c1", Out: out, Resp: resp})
	jr := <-resp

	env, err := protocol.DecodeEnvelope(jr.Welcome)
	if err != nil || env.Type != protocol.EvWelcome {
		t.Fatalf("welcome envelope = %+v, err %v", env, err)
	}
	var ev protocol.WelcomeEvent
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("welcome payload: %v", err)
	}
	if ev.PlayerID != jr.PlayerID {
		t.Fatalf("welcome playerId = %d, want %d", ev.PlayerID, jr.PlayerID)
	}
	if ev.GameState == nil || ev.GameState.MapSeed != w.seed {
		t.Fatalf("welcome state = %+v", ev.GameState)
	}
	if _, ok := ev.GameState.Players["1"]; !ok {
		t.Fatal("welcome state missing the joining player")
	}
}

func TestEffectiveResourceOverrideOrder(t *testing.T) {
	w, _ := newTestWorld(t)

	// Find a base resource cell.
	var rx, ry int
	found := false
	for y := 0; y < mapgen.GridSize && !found; y++ {
		for x := 0; x < mapgen.GridSize && !found; x++ {
			if w.gen.At(x, y) != mapgen.Open {
				rx, ry = x, y
				found = true
			}
		}
	}
	if !found {
		t.Fatal("no resource cells in base layout")
	}

	base := w.gen.At(rx, ry)
	if got := w.effectiveResource(rx, ry); got != base {
		t.Fatalf("base cell reads %q, want %q", got, base)
	}
	w.harvested[cellOf(rx, ry)] = true
	if got := w.effectiveResource(rx, ry); got != mapgen.Open {
		t.Fatalf("harvested cell reads %q, want open", got)
	}
	w.spawned[cellOf(rx, ry)] = mapgen.Diamond
	if got := w.effectiveResource(rx, ry); got != mapgen.Diamond {
		t.Fatalf("spawned override reads %q, want diamond", got)
	}
}

type captureSaver struct {
	reasons []string
	last    *protocol.GameState
}

func (c *captureSaver) Save(reason string, state *protocol.GameState) {
	c.reasons = append(c.reasons, reason)
	c.last = state
}

func TestSaveReasonsFlowToSaver(t *testing.T) {
	w, now := newTestWorld(t)
	sv := &captureSaver{}
	w.SetSaver(sv)

	id, out := joinConn(t, w, "c1")
	p := w.players[id]
	p.X, p.Y = 10, 10
	forceOpen(w, 11, 10)
	w.spawned[cellOf(11, 10)] = mapgen.Wood
	advance(now, time.Second)
	w.handleHarvest(p, protocol.HarvestReq{X: 11, Y: 10, Tool: "axe"})

	if len(sv.reasons) == 0 || sv.reasons[len(sv.reasons)-1] != "harvest" {
		t.Fatalf("save reasons = %v, want trailing harvest", sv.reasons)
	}
	if sv.last == nil || sv.last.Players["1"].Inventory.Wood == 0 {
		t.Fatal("saved state missing harvest result")
	}
	drainEvents(t, out)
}
