package protocol

// Shared wire shapes. The persisted state file uses the same layout as the
// welcome payload, so these types double as the snapshot document.

// Inventory counts one stack per resource. All fields are non-negative.
type Inventory struct {
	Wood    int `json:"wood"`
	Stone   int `json:"stone"`
	Gold    int `json:"gold"`
	Diamond int `json:"diamond"`
}

// Add returns a+b field-wise.
func (a Inventory) Add(b Inventory) Inventory {
	return Inventory{
		Wood:    a.Wood + b.Wood,
		Stone:   a.Stone + b.Stone,
		Gold:    a.Gold + b.Gold,
		Diamond: a.Diamond + b.Diamond,
	}
}

// Sub returns a-b field-wise. Callers check Covers first.
func (a Inventory) Sub(b Inventory) Inventory {
	return Inventory{
		Wood:    a.Wood - b.Wood,
		Stone:   a.Stone - b.Stone,
		Gold:    a.Gold - b.Gold,
		Diamond: a.Diamond - b.Diamond,
	}
}

// Covers reports whether a has at least b of every resource.
func (a Inventory) Covers(b Inventory) bool {
	return a.Wood >= b.Wood && a.Stone >= b.Stone && a.Gold >= b.Gold && a.Diamond >= b.Diamond
}

// Clamp caps every field of b at the corresponding field of a, flooring
// negatives at zero.
func (a Inventory) Clamp(b Inventory) Inventory {
	c := func(want, have int) int {
		if want < 0 {
			return 0
		}
		if want > have {
			return have
		}
		return want
	}
	return Inventory{
		Wood:    c(b.Wood, a.Wood),
		Stone:   c(b.Stone, a.Stone),
		Gold:    c(b.Gold, a.Gold),
		Diamond: c(b.Diamond, a.Diamond),
	}
}

// IsZero reports whether every field is zero.
func (a Inventory) IsZero() bool { return a == Inventory{} }

// Tools holds the tier per tool kind ("wood", "stone", ...).
type Tools struct {
	Pickaxe string `json:"pickaxe"`
	Axe     string `json:"axe"`
}

// Skill is one progression track.
type Skill struct {
	Level int `json:"level"`
	XP    int `json:"xp"`
}

type Skills struct {
	Mining      Skill `json:"mining"`
	Woodcutting Skill `json:"woodcutting"`
	Building    Skill `json:"building"`
}

// Player is the wire and persisted form of a participant.
type Player struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Color     string    `json:"color"`
	Active    bool      `json:"isActive"`
	HP        int       `json:"hp"`
	Inventory Inventory `json:"inventory"`
	Tools     Tools     `json:"tools"`
	Items     []string  `json:"items"`
	Skills    Skills    `json:"skills"`
}

// Block is a placed obstruction. At most one per cell.
type Block struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Type     string `json:"type"`
	Material string `json:"material,omitempty"`
}

// Cell addresses one grid position.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Spawn is a dynamically placed resource overriding the base layout.
type Spawn struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

// GameState is the full world document: the welcome payload and the persisted
// state file share this shape. Player map keys are decimal ids.
type GameState struct {
	Players      map[string]*Player `json:"players"`
	NextPlayerID int                `json:"nextPlayerId"`
	Blocks       []Block            `json:"blocks"`
	MapSeed      uint32             `json:"mapSeed"`
	Harvested    []Cell             `json:"harvested"`
	Spawned      []Spawn            `json:"spawnedResources"`
}

// Client -> server payloads.

type MoveReq struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type PlaceBlockReq struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type,omitempty"`
}

type HarvestReq struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Tool string `json:"tool"`
}

type SetMapSeedReq struct {
	Seed uint32 `json:"seed"`
}

type TradeRequestReq struct {
	TargetID int `json:"targetId"`
}

type TradeAnswerReq struct {
	FromID int `json:"fromId"`
}

type TradeOfferReq struct {
	PartnerID int       `json:"partnerId"`
	Offer     Inventory `json:"offer"`
}

type TradeReadyReq struct {
	PartnerID int  `json:"partnerId"`
	Ready     bool `json:"ready"`
}

type TradePartnerReq struct {
	PartnerID int `json:"partnerId"`
}

// Server -> client payloads.

type WelcomeEvent struct {
	GameState *GameState `json:"gameState"`
	PlayerID  int        `json:"playerId"`
}

// PlayerEvent carries a full player record (joined, reactivated).
type PlayerEvent struct {
	Player *Player `json:"player"`
}

type PlayerLeftEvent struct {
	PlayerID int `json:"playerId"`
}

type PlayerMovedEvent struct {
	PlayerID int `json:"playerId"`
	X        int `json:"x"`
	Y        int `json:"y"`
}

// PositionEvent is the authoritative correction unicast to a client whose
// intent was rejected or was a no-op.
type PositionEvent struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type PlayerDiedEvent struct {
	PlayerID int `json:"playerId"`
}

type PlayerRespawnedEvent struct {
	PlayerID int `json:"playerId"`
	X        int `json:"x"`
	Y        int `json:"y"`
	HP       int `json:"hp"`
}

type BlockAddedEvent struct {
	Block Block `json:"block"`
}

type BlockRemovedEvent struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type MapSeedEvent struct {
	Seed uint32 `json:"seed"`
}

type CellHarvestedEvent struct {
	PlayerID  int       `json:"playerId"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Resource  string    `json:"resourceType"`
	Inventory Inventory `json:"inventory"`
	Skills    Skills    `json:"skills"`
}

type ResourceSpawnedEvent struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

type InventoryEvent struct {
	PlayerID  int       `json:"playerId"`
	Inventory Inventory `json:"inventory"`
}

type SkillsEvent struct {
	PlayerID int    `json:"playerId"`
	Skills   Skills `json:"skills"`
}

type TradeInviteEvent struct {
	FromID   int    `json:"fromId"`
	FromName string `json:"fromName"`
}

type TradeDeclinedEvent struct {
	PlayerID int `json:"playerId"`
}

// TradeSide is one participant's view inside an open session. Both sides are
// sent to both participants; each client tells "mine" from "theirs" by id.
type TradeSide struct {
	PlayerID  int       `json:"playerId"`
	Name      string    `json:"name"`
	Offer     Inventory `json:"offer"`
	Ready     bool      `json:"ready"`
	Confirmed bool      `json:"confirmed"`
}

type TradeStateEvent struct {
	Participants [2]TradeSide `json:"participants"`
}

type TradeCompleteEvent struct {
	PartnerID int `json:"partnerId"`
}

type TradeCancelledEvent struct {
	PartnerID int    `json:"partnerId"`
	Reason    string `json:"reason"`
}
