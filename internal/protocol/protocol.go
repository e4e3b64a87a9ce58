package protocol

import "encoding/json"

// Client -> server intent types.
const (
	TypeMove         = "player_move"
	TypePlaceBlock   = "place_block"
	TypeHarvest      = "harvest"
	TypeResetBlocks  = "reset_blocks"
	TypeSetMapSeed   = "set_map_seed"
	TypeResetLevels  = "reset_levels"
	TypeRespawn      = "player_respawn"
	TypeTradeRequest = "trade_request"
	TypeTradeAccept  = "trade_accept"
	TypeTradeDecline = "trade_decline"
	TypeTradeOffer   = "trade_offer"
	TypeTradeReady   = "trade_ready"
	TypeTradeConfirm = "trade_confirm"
	TypeTradeCancel  = "trade_cancel"
)

// Server -> client event types.
const (
	EvWelcome           = "welcome"
	EvPlayerJoined      = "player_joined"
	EvPlayerReactivated = "player_reactivated"
	EvPlayerLeft        = "player_left"
	EvPlayerMoved       = "player_moved"
	EvPlayerPosition    = "player_position"
	EvPlayerDied        = "player_died"
	EvPlayerRespawned   = "player_respawned"
	EvBlockAdded        = "block_added"
	EvBlockRemoved      = "block_removed"
	EvBlocksReset       = "blocks_reset"
	EvMapSeedChanged    = "map_seed_changed"
	EvCellHarvested     = "cell_harvested"
	EvResourceSpawned   = "resource_spawned"
	EvInventoryUpdated  = "inventory_updated"
	EvSkillsUpdated     = "skills_updated"
	EvLevelsReset       = "levels_reset"
	EvTradeInvite       = "trade_invite"
	EvTradeDeclined     = "trade_declined"
	EvTradeOpen         = "trade_open"
	EvTradeUpdate       = "trade_update"
	EvTradeComplete     = "trade_complete"
	EvTradeCancelled    = "trade_cancelled"
)

// Envelope is the wire frame for every message in both directions: a type tag
// plus a type-specific payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope routes an unknown JSON frame by its type tag.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}

// Encode frames a payload for the wire.
func Encode(typ string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}
