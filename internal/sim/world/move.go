package world

import "tilecraft.gg/internal/protocol"

// handleMove applies a movement intent. Every rejection unicasts the true
// position so an optimistic client snaps back.
func (w *World) handleMove(p *Player, req protocol.MoveReq) {
	if !p.Alive() {
		w.correctPosition(p)
		w.auditIntent(p, protocol.TypeMove, req.X, req.Y, false, protocol.ReasonInactive)
		return
	}
	if w.onCooldown(p) {
		w.correctPosition(p)
		w.auditIntent(p, protocol.TypeMove, req.X, req.Y, false, protocol.ReasonCooldown)
		return
	}

	x, y := clampCoord(req.X), clampCoord(req.Y)
	if x == p.X && y == p.Y {
		w.correctPosition(p)
		return
	}

	switch {
	case w.occupant(x, y, p.ID) != nil:
		w.correctPosition(p)
		w.auditIntent(p, protocol.TypeMove, x, y, false, protocol.ReasonOccupied)
		return
	case w.hasBlock(x, y):
		w.correctPosition(p)
		w.auditIntent(p, protocol.TypeMove, x, y, false, protocol.ReasonBlocked)
		return
	case !w.isOpen(x, y):
		w.correctPosition(p)
		w.auditIntent(p, protocol.TypeMove, x, y, false, protocol.ReasonNotOpen)
		return
	}

	p.X, p.Y = x, y
	w.stampAction(p)
	w.broadcast(protocol.EvPlayerMoved, protocol.PlayerMovedEvent{PlayerID: p.ID, X: x, Y: y})
	w.correctPosition(p)
	w.auditIntent(p, protocol.TypeMove, x, y, true, "")
}
