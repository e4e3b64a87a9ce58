package world

import "tilecraft.gg/internal/protocol"

// pairKey identifies an unordered player pair. At most one invite and one
// session can exist per pair, and a player can participate in at most one
// open session at a time.
type pairKey struct{ lo, hi int }

func pairOf(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

func (k pairKey) other(id int) int {
	if id == k.lo {
		return k.hi
	}
	return k.lo
}

// tradeSession is one open negotiation. Offers, ready flags and confirm
// flags are keyed by player id; any offer change resets both sides' ready
// and confirm flags so nobody settles against terms they never saw.
type tradeSession struct {
	key       pairKey
	offers    map[int]protocol.Inventory
	ready     map[int]bool
	confirmed map[int]bool
}

func newTradeSession(key pairKey) *tradeSession {
	return &tradeSession{
		key:       key,
		offers:    map[int]protocol.Inventory{key.lo: {}, key.hi: {}},
		ready:     map[int]bool{},
		confirmed: map[int]bool{},
	}
}

func (s *tradeSession) resetReady() {
	s.ready = map[int]bool{}
	s.confirmed = map[int]bool{}
}

func (s *tradeSession) bothReady() bool     { return s.ready[s.key.lo] && s.ready[s.key.hi] }
func (s *tradeSession) bothConfirmed() bool { return s.confirmed[s.key.lo] && s.confirmed[s.key.hi] }

// sessionFor returns the open session a player holds with partnerID, if any.
func (w *World) sessionFor(id, partnerID int) *tradeSession {
	return w.trades[pairOf(id, partnerID)]
}

// inSession reports whether id participates in any open session.
func (w *World) inSession(id int) bool {
	for k := range w.trades {
		if k.lo == id || k.hi == id {
			return true
		}
	}
	return false
}

func (w *World) handleTradeRequest(p *Player, req protocol.TradeRequestReq) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypeTradeRequest, 0, 0, false, protocol.ReasonInactive)
		return
	}
	target := w.players[req.TargetID]
	if target == nil || !target.Active || w.clients[req.TargetID] == nil || req.TargetID == p.ID {
		w.auditIntent(p, protocol.TypeTradeRequest, 0, 0, false, protocol.ReasonNotFound)
		return
	}
	if w.inSession(p.ID) || w.inSession(target.ID) {
		w.auditIntent(p, protocol.TypeTradeRequest, 0, 0, false, protocol.ReasonBusy)
		return
	}
	if manhattan(p.X, p.Y, target.X, target.Y) > w.cfg.TradeMaxDistance {
		w.auditIntent(p, protocol.TypeTradeRequest, 0, 0, false, protocol.ReasonTooFar)
		return
	}

	w.invites[pairOf(p.ID, target.ID)] = p.ID
	w.unicast(target.ID, protocol.EvTradeInvite, protocol.TradeInviteEvent{
		FromID: p.ID, FromName: p.Name,
	})
	w.auditIntent(p, protocol.TypeTradeRequest, 0, 0, true, "")
}

func (w *World) handleTradeDecline(p *Player, req protocol.TradeAnswerReq) {
	k := pairOf(p.ID, req.FromID)
	if inviter, ok := w.invites[k]; !ok || inviter != req.FromID {
		return
	}
	delete(w.invites, k)
	w.unicast(req.FromID, protocol.EvTradeDeclined, protocol.TradeDeclinedEvent{PlayerID: p.ID})
	w.auditIntent(p, protocol.TypeTradeDecline, 0, 0, true, "")
}

// handleTradeAccept converts a pending invite into an open session. The
// invite's conditions are re-checked: either side may have moved away,
// disconnected, or gotten busy since the invite was sent.
func (w *World) handleTradeAccept(p *Player, req protocol.TradeAnswerReq) {
	k := pairOf(p.ID, req.FromID)
	inviter, ok := w.invites[k]
	if !ok || inviter != req.FromID {
		w.auditIntent(p, protocol.TypeTradeAccept, 0, 0, false, protocol.ReasonNotFound)
		return
	}
	delete(w.invites, k)

	from := w.players[req.FromID]
	if !p.Alive() || from == nil || !from.Active || w.clients[req.FromID] == nil {
		w.auditIntent(p, protocol.TypeTradeAccept, 0, 0, false, protocol.ReasonNotFound)
		return
	}
	if w.inSession(p.ID) || w.inSession(from.ID) {
		w.auditIntent(p, protocol.TypeTradeAccept, 0, 0, false, protocol.ReasonBusy)
		return
	}
	if manhattan(p.X, p.Y, from.X, from.Y) > w.cfg.TradeMaxDistance {
		w.unicast(req.FromID, protocol.EvTradeDeclined, protocol.TradeDeclinedEvent{PlayerID: p.ID})
		w.auditIntent(p, protocol.TypeTradeAccept, 0, 0, false, protocol.ReasonTooFar)
		return
	}

	s := newTradeSession(k)
	w.trades[k] = s
	w.sendTradeState(s, protocol.EvTradeOpen)
	w.auditIntent(p, protocol.TypeTradeAccept, 0, 0, true, "")
}

func (w *World) handleTradeOffer(p *Player, req protocol.TradeOfferReq) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypeTradeOffer, 0, 0, false, protocol.ReasonInactive)
		return
	}
	s := w.sessionFor(p.ID, req.PartnerID)
	if s == nil {
		return
	}
	// Offers never exceed what the player holds right now; harvesting or
	// building mid-trade can still invalidate them, which settlement
	// re-checks.
	s.offers[p.ID] = p.Inventory.Clamp(req.Offer)
	s.resetReady()
	w.sendTradeState(s, protocol.EvTradeUpdate)
	w.auditIntent(p, protocol.TypeTradeOffer, 0, 0, true, "")
}

func (w *World) handleTradeReady(p *Player, req protocol.TradeReadyReq) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypeTradeReady, 0, 0, false, protocol.ReasonInactive)
		return
	}
	s := w.sessionFor(p.ID, req.PartnerID)
	if s == nil {
		return
	}
	s.ready[p.ID] = req.Ready
	// Toggling readiness invalidates any confirmation taken since.
	s.confirmed = map[int]bool{}
	w.sendTradeState(s, protocol.EvTradeUpdate)
}

func (w *World) handleTradeConfirm(p *Player, req protocol.TradePartnerReq) {
	if !p.Alive() {
		w.auditIntent(p, protocol.TypeTradeConfirm, 0, 0, false, protocol.ReasonInactive)
		return
	}
	s := w.sessionFor(p.ID, req.PartnerID)
	if s == nil {
		return
	}
	if !s.bothReady() {
		w.auditIntent(p, protocol.TypeTradeConfirm, 0, 0, false, protocol.ReasonNotReady)
		return
	}
	s.confirmed[p.ID] = true
	if !s.bothConfirmed() {
		w.sendTradeState(s, protocol.EvTradeUpdate)
		return
	}
	w.settleTrade(s)
	w.auditIntent(p, protocol.TypeTradeConfirm, 0, 0, true, "")
}

func (w *World) handleTradeCancel(p *Player, req protocol.TradePartnerReq) {
	k := pairOf(p.ID, req.PartnerID)
	if _, ok := w.invites[k]; ok {
		delete(w.invites, k)
		w.unicast(req.PartnerID, protocol.EvTradeCancelled, protocol.TradeCancelledEvent{
			PartnerID: p.ID, Reason: protocol.ReasonCancelled,
		})
		return
	}
	if _, ok := w.trades[k]; ok {
		w.cancelSession(k, protocol.ReasonCancelled)
		w.auditIntent(p, protocol.TypeTradeCancel, 0, 0, true, "")
	}
}

// settleTrade swaps the confirmed offers atomically. Both inventories are
// re-validated against the live state first: if either side can no longer
// cover its offer, the whole session cancels and nothing moves.
func (w *World) settleTrade(s *tradeSession) {
	a, b := w.players[s.key.lo], w.players[s.key.hi]
	if a == nil || b == nil {
		w.cancelSession(s.key, protocol.ReasonSessionTerminated)
		return
	}
	offerA, offerB := s.offers[a.ID], s.offers[b.ID]
	if !a.Inventory.Covers(offerA) || !b.Inventory.Covers(offerB) {
		w.cancelSession(s.key, protocol.ReasonOfferNotCovered)
		return
	}

	a.Inventory = a.Inventory.Sub(offerA).Add(offerB)
	b.Inventory = b.Inventory.Sub(offerB).Add(offerA)
	delete(w.trades, s.key)

	w.broadcast(protocol.EvInventoryUpdated, protocol.InventoryEvent{PlayerID: a.ID, Inventory: a.Inventory})
	w.broadcast(protocol.EvInventoryUpdated, protocol.InventoryEvent{PlayerID: b.ID, Inventory: b.Inventory})
	w.unicast(a.ID, protocol.EvTradeComplete, protocol.TradeCompleteEvent{PartnerID: b.ID})
	w.unicast(b.ID, protocol.EvTradeComplete, protocol.TradeCompleteEvent{PartnerID: a.ID})

	w.log.Info("trade settled", "a", a.ID, "b", b.ID)
	w.requestSave("trade_settled")
}

// cancelSession tears down an open session and notifies both reachable
// participants.
func (w *World) cancelSession(k pairKey, reason string) {
	if _, ok := w.trades[k]; !ok {
		return
	}
	delete(w.trades, k)
	w.unicast(k.lo, protocol.EvTradeCancelled, protocol.TradeCancelledEvent{PartnerID: k.hi, Reason: reason})
	w.unicast(k.hi, protocol.EvTradeCancelled, protocol.TradeCancelledEvent{PartnerID: k.lo, Reason: reason})
}

// cancelTradesFor removes every invite and session involving id, used when a
// player disconnects or the world resets a slot.
func (w *World) cancelTradesFor(id int, reason string) {
	for k := range w.invites {
		if k.lo == id || k.hi == id {
			delete(w.invites, k)
			w.unicast(k.other(id), protocol.EvTradeCancelled, protocol.TradeCancelledEvent{
				PartnerID: id, Reason: reason,
			})
		}
	}
	for k := range w.trades {
		if k.lo == id || k.hi == id {
			w.cancelSession(k, reason)
		}
	}
}

// sendTradeState unicasts the identical full session view to both
// participants. Participants are ordered by id so the two payloads match
// byte for byte.
func (w *World) sendTradeState(s *tradeSession, event string) {
	side := func(id int) protocol.TradeSide {
		name := ""
		if p := w.players[id]; p != nil {
			name = p.Name
		}
		return protocol.TradeSide{
			PlayerID:  id,
			Name:      name,
			Offer:     s.offers[id],
			Ready:     s.ready[id],
			Confirmed: s.confirmed[id],
		}
	}
	ev := protocol.TradeStateEvent{Participants: [2]protocol.TradeSide{side(s.key.lo), side(s.key.hi)}}
	w.unicast(s.key.lo, event, ev)
	w.unicast(s.key.hi, event, ev)
}
