package protocol

// Rejection and cancellation reasons. Rejected intents are mostly silent on
// the wire (the client reconciles against the next authoritative event), so
// these mainly feed logs, the audit journal, and trade cancellations where
// the reason is user-visible.
const (
	ReasonCooldown     = "cooldown"
	ReasonOutOfBounds  = "out_of_bounds"
	ReasonOccupied     = "occupied"
	ReasonBlocked      = "blocked"
	ReasonNotOpen      = "not_open"
	ReasonNotAdjacent  = "not_adjacent"
	ReasonWrongTool    = "wrong_tool"
	ReasonToolTier     = "tool_tier"
	ReasonNothingThere = "nothing_there"
	ReasonInsufficient = "insufficient_resources"
	ReasonInactive     = "inactive"
	ReasonDead         = "dead"
	ReasonNotFound     = "not_found"
	ReasonTooFar       = "too_far"
	ReasonBusy         = "session_exists"
	ReasonNotReady     = "not_ready"

	ReasonDeclined          = "declined"
	ReasonCancelled         = "cancelled"
	ReasonPartnerLeft       = "partner_disconnected"
	ReasonOfferNotCovered   = "offer_no_longer_covered"
	ReasonSessionTerminated = "session_terminated"
)
