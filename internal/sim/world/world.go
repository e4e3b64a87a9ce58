// Package world is the single-threaded authoritative simulation. All mutable
// state is owned by the Run goroutine; transports talk to it exclusively
// through the Join/Leave/Inbox channels, so a validation check and its write
// can never interleave with another mutation.
package world

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"tilecraft.gg/internal/config"
	"tilecraft.gg/internal/mapgen"
	persistlog "tilecraft.gg/internal/persistence/log"
	"tilecraft.gg/internal/protocol"
)

// JoinRequest binds a new connection to a player slot.
type JoinRequest struct {
	ConnID string
	Out    chan []byte
	Resp   chan JoinResponse
}

// JoinResponse carries the assigned player id and the pre-encoded welcome
// frame. The transport writes the welcome before pumping Out, so the client
// always initializes from the full state before seeing incremental events.
type JoinResponse struct {
	PlayerID int
	Welcome  []byte
}

// LeaveRequest detaches a connection. ConnID guards against a stale
// disconnect racing the slot's reactivation by a newer connection.
type LeaveRequest struct {
	PlayerID int
	ConnID   string
}

// Intent is one validated client frame awaiting application.
type Intent struct {
	PlayerID int
	ConnID   string
	Frame    protocol.Envelope
}

// Saver receives consistent state snapshots for durable storage. Exported
// snapshots share no memory with live state, so writing may happen
// off-thread.
type Saver interface {
	Save(reason string, state *protocol.GameState)
}

// AuditLogger records decided intents. May be nil.
type AuditLogger interface {
	WriteAudit(persistlog.Entry) error
}

type client struct {
	connID string
	out    chan []byte
}

// World owns all game state. Only the Run goroutine touches its fields.
type World struct {
	cfg config.Config
	log *log.Logger

	players   map[int]*Player
	nextID    int
	blocks    map[protocol.Cell]protocol.Block
	seed      uint32
	harvested map[protocol.Cell]bool
	spawned   map[protocol.Cell]mapgen.Resource

	gen *mapgen.Map // cached layout for the current seed

	clients map[int]*client
	trades  map[pairKey]*tradeSession
	invites map[pairKey]int

	join  chan JoinRequest
	leave chan LeaveRequest
	inbox chan Intent

	statsReq chan chan Stats
	resetReq chan chan struct{}

	saver Saver
	audit AuditLogger

	// Test seams.
	now     func() time.Time
	randInt func(n int) int
}

// New builds a world from a sanitized state document.
func New(cfg config.Config, logger *log.Logger, state *protocol.GameState) *World {
	w := &World{
		cfg:       cfg,
		log:       logger,
		players:   map[int]*Player{},
		blocks:    map[protocol.Cell]protocol.Block{},
		harvested: map[protocol.Cell]bool{},
		spawned:   map[protocol.Cell]mapgen.Resource{},
		clients:   map[int]*client{},
		trades:    map[pairKey]*tradeSession{},
		invites:   map[pairKey]int{},
		join:      make(chan JoinRequest, 16),
		leave:     make(chan LeaveRequest, 16),
		inbox:     make(chan Intent, 256),
		statsReq:  make(chan chan Stats, 4),
		resetReq:  make(chan chan struct{}, 1),
		now:       time.Now,
		randInt:   rand.IntN,
	}
	w.importState(state)
	return w
}

func (w *World) SetSaver(s Saver)       { w.saver = s }
func (w *World) SetAudit(a AuditLogger) { w.audit = a }

func (w *World) Join() chan<- JoinRequest   { return w.join }
func (w *World) Leave() chan<- LeaveRequest { return w.leave }
func (w *World) Inbox() chan<- Intent       { return w.inbox }

// Run processes messages to completion, one at a time, until ctx is
// cancelled. A final save is requested on the way out.
func (w *World) Run(ctx context.Context) error {
	saveTick := time.NewTicker(time.Duration(w.cfg.SaveIntervalSec) * time.Second)
	defer saveTick.Stop()
	cleanupTick := time.NewTicker(time.Duration(w.cfg.CleanupIntervalSec) * time.Second)
	defer cleanupTick.Stop()

	for {
		select {
		case <-ctx.Done():
			w.requestSave("shutdown")
			return ctx.Err()
		case req := <-w.join:
			w.handleJoin(req)
		case req := <-w.leave:
			w.handleLeave(req)
		case in := <-w.inbox:
			w.handleIntent(in)
		case <-saveTick.C:
			w.requestSave("interval")
		case <-cleanupTick.C:
			w.cleanupInactive()
		case resp := <-w.statsReq:
			resp <- w.stats()
		case resp := <-w.resetReq:
			w.resetAll()
			resp <- struct{}{}
		}
	}
}

// StatsSnapshot asks the loop for current counts. Used by the health
// endpoint; never reads state directly.
func (w *World) StatsSnapshot(ctx context.Context) (Stats, error) {
	resp := make(chan Stats, 1)
	select {
	case w.statsReq <- resp:
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
	select {
	case st := <-resp:
		return st, nil
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

// Reset wipes the world back to a fresh state. Connected clients get new
// player slots and a new welcome, as if they had just connected.
func (w *World) Reset(ctx context.Context) error {
	resp := make(chan struct{}, 1)
	select {
	case w.resetReq <- resp:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleJoin reactivates a stale slot when one exists, otherwise allocates a
// fresh player. The welcome goes back on the response channel; everyone else
// hears about it via broadcast.
func (w *World) handleJoin(req JoinRequest) {
	var p *Player
	reactivated := false

	// Reuse the lowest-id inactive slot. Ids are monotonic, so this is the
	// oldest record, matching the cleanup policy's eviction order.
	for _, id := range w.sortedPlayerIDs() {
		if cand := w.players[id]; !cand.Active {
			p = cand
			reactivated = true
			break
		}
	}

	if p != nil {
		p.Active = true
		p.HP = 100
		p.X, p.Y = w.spawnCell()
		if p.Color == "" {
			p.Color = playerColors[w.randInt(len(playerColors))]
		}
	} else {
		p = w.newPlayer(w.nextID)
		w.nextID++
		w.players[p.ID] = p
	}

	if req.Out != nil {
		w.clients[p.ID] = &client{connID: req.ConnID, out: req.Out}
	}

	welcome, err := protocol.Encode(protocol.EvWelcome, protocol.WelcomeEvent{
		GameState: w.exportState(),
		PlayerID:  p.ID,
	})
	if err != nil {
		w.log.Error("encode welcome", "err", err)
	}

	ev := protocol.EvPlayerJoined
	if reactivated {
		ev = protocol.EvPlayerReactivated
	}
	w.broadcastExcept(p.ID, ev, protocol.PlayerEvent{Player: w.wirePlayer(p)})
	w.log.Info("player connected", "id", p.ID, "name", p.Name, "reactivated", reactivated)

	if req.Resp != nil {
		req.Resp <- JoinResponse{PlayerID: p.ID, Welcome: welcome}
	}
}

// newPlayer builds a fresh slot with starting tools and skills, placed at
// the spawn cell. The caller owns id bookkeeping.
func (w *World) newPlayer(id int) *Player {
	p := &Player{Player: protocol.Player{
		ID:     id,
		Name:   fmt.Sprintf("Player %d", id),
		Color:  playerColors[w.randInt(len(playerColors))],
		Active: true,
		HP:     100,
		Tools:  protocol.Tools{Pickaxe: "wood", Axe: "wood"},
		Skills: protocol.Skills{
			Mining:      protocol.Skill{Level: 1},
			Woodcutting: protocol.Skill{Level: 1},
			Building:    protocol.Skill{Level: 1},
		},
	}}
	p.X, p.Y = w.spawnCell()
	return p
}

func (w *World) handleLeave(req LeaveRequest) {
	c := w.clients[req.PlayerID]
	if c == nil || c.connID != req.ConnID {
		return // slot already reclaimed by a newer connection
	}
	delete(w.clients, req.PlayerID)

	p := w.players[req.PlayerID]
	if p == nil {
		return
	}
	p.Active = false

	// Trade sessions must not survive a participant's disconnect.
	w.cancelTradesFor(p.ID, protocol.ReasonPartnerLeft)

	w.broadcast(protocol.EvPlayerLeft, protocol.PlayerLeftEvent{PlayerID: p.ID})
	w.log.Info("player disconnected", "id", p.ID, "name", p.Name)
}

// cleanupInactive deletes the oldest inactive players beyond the retention
// cap. Their ids are never reassigned: nextID only grows.
func (w *World) cleanupInactive() {
	var inactive []int
	for _, id := range w.sortedPlayerIDs() {
		if !w.players[id].Active {
			inactive = append(inactive, id)
		}
	}
	excess := len(inactive) - w.cfg.MaxInactivePlayers
	if excess <= 0 {
		return
	}
	for _, id := range inactive[:excess] {
		delete(w.players, id)
	}
	w.log.Info("cleaned up inactive players", "removed", excess)
	w.requestSave("cleanup")
}

func (w *World) sortedPlayerIDs() []int {
	ids := make([]int, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// broadcast sends one event to every connected client. A client whose queue
// is full loses the event rather than stalling the loop.
func (w *World) broadcast(typ string, data any) {
	w.broadcastExcept(0, typ, data)
}

func (w *World) broadcastExcept(exceptID int, typ string, data any) {
	b, err := protocol.Encode(typ, data)
	if err != nil {
		w.log.Error("encode event", "event", typ, "err", err)
		return
	}
	for id, c := range w.clients {
		if id == exceptID {
			continue
		}
		select {
		case c.out <- b:
		default:
			w.log.Warn("client backlogged, dropping event", "player", id, "event", typ)
		}
	}
}

func (w *World) unicast(playerID int, typ string, data any) {
	c := w.clients[playerID]
	if c == nil {
		return
	}
	b, err := protocol.Encode(typ, data)
	if err != nil {
		w.log.Error("encode event", "event", typ, "err", err)
		return
	}
	select {
	case c.out <- b:
	default:
		w.log.Warn("client backlogged, dropping event", "player", playerID, "event", typ)
	}
}

// requestSave hands a consistent snapshot to the saver. The export shares no
// memory with live state, so the write side is free to serialize at leisure.
func (w *World) requestSave(reason string) {
	if w.saver == nil {
		return
	}
	w.saver.Save(reason, w.exportState())
}

func (w *World) auditIntent(p *Player, action string, x, y int, accepted bool, reason string) {
	if w.audit == nil {
		return
	}
	if err := w.audit.WriteAudit(persistlog.Entry{
		TimeMs:   w.now().UnixMilli(),
		PlayerID: p.ID,
		Action:   action,
		X:        x,
		Y:        y,
		Accepted: accepted,
		Reason:   reason,
	}); err != nil {
		w.log.Warn("audit write failed", "err", err)
	}
}
