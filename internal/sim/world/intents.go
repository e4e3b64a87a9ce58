package world

import (
	"encoding/json"
	"time"

	"tilecraft.gg/internal/protocol"
)

// handleIntent routes one client frame. Payloads were schema-checked at the
// transport boundary; a decode failure here still just drops the intent.
func (w *World) handleIntent(in Intent) {
	p := w.players[in.PlayerID]
	c := w.clients[in.PlayerID]
	if p == nil || c == nil || c.connID != in.ConnID {
		return
	}

	switch in.Frame.Type {
	case protocol.TypeMove:
		var req protocol.MoveReq
		if decode(w, in, &req) {
			w.handleMove(p, req)
		}
	case protocol.TypePlaceBlock:
		var req protocol.PlaceBlockReq
		if decode(w, in, &req) {
			w.handlePlaceBlock(p, req)
		}
	case protocol.TypeHarvest:
		var req protocol.HarvestReq
		if decode(w, in, &req) {
			w.handleHarvest(p, req)
		}
	case protocol.TypeRespawn:
		w.handleRespawn(p)
	case protocol.TypeSetMapSeed:
		var req protocol.SetMapSeedReq
		if decode(w, in, &req) {
			w.handleSetMapSeed(p, req)
		}
	case protocol.TypeResetBlocks:
		w.handleResetBlocks(p)
	case protocol.TypeResetLevels:
		w.handleResetLevels(p)
	case protocol.TypeTradeRequest:
		var req protocol.TradeRequestReq
		if decode(w, in, &req) {
			w.handleTradeRequest(p, req)
		}
	case protocol.TypeTradeAccept:
		var req protocol.TradeAnswerReq
		if decode(w, in, &req) {
			w.handleTradeAccept(p, req)
		}
	case protocol.TypeTradeDecline:
		var req protocol.TradeAnswerReq
		if decode(w, in, &req) {
			w.handleTradeDecline(p, req)
		}
	case protocol.TypeTradeOffer:
		var req protocol.TradeOfferReq
		if decode(w, in, &req) {
			w.handleTradeOffer(p, req)
		}
	case protocol.TypeTradeReady:
		var req protocol.TradeReadyReq
		if decode(w, in, &req) {
			w.handleTradeReady(p, req)
		}
	case protocol.TypeTradeConfirm:
		var req protocol.TradePartnerReq
		if decode(w, in, &req) {
			w.handleTradeConfirm(p, req)
		}
	case protocol.TypeTradeCancel:
		var req protocol.TradePartnerReq
		if decode(w, in, &req) {
			w.handleTradeCancel(p, req)
		}
	}
}

func decode(w *World, in Intent, v any) bool {
	if err := json.Unmarshal(in.Frame.Data, v); err != nil {
		w.log.Debug("bad intent payload", "player", in.PlayerID, "type", in.Frame.Type, "err", err)
		return false
	}
	return true
}

// onCooldown is the shared rate gate for move/harvest/build.
func (w *World) onCooldown(p *Player) bool {
	return w.now().Sub(p.lastAction) < time.Duration(w.cfg.ActionCooldownMs)*time.Millisecond
}

func (w *World) stampAction(p *Player) {
	p.lastAction = w.now()
}

// correctPosition re-asserts the player's true position after a rejected or
// no-op move so the client's prediction converges.
func (w *World) correctPosition(p *Player) {
	w.unicast(p.ID, protocol.EvPlayerPosition, protocol.PositionEvent{X: p.X, Y: p.Y})
}
