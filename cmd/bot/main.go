// Bot is a headless client for load and smoke testing: it connects like a
// browser, wanders the grid, and harvests whatever it bumps into.
package main

import (
	"encoding/json"
	"flag"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"tilecraft.gg/internal/mapgen"
	"tilecraft.gg/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:3000/ws", "ws url")
		interval = flag.Duration("interval", time.Second, "pause between intents (keep above the server cooldown)")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "bot"})

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", "err", err)
	}
	defer conn.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var (
		playerID int
		x, y     int
	)

	// Reader: track our own position from authoritative events.
	pos := make(chan [2]int, 16)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(pos)
				return
			}
			env, err := protocol.DecodeEnvelope(msg)
			if err != nil {
				continue
			}
			switch env.Type {
			case protocol.EvWelcome:
				var ev protocol.WelcomeEvent
				if json.Unmarshal(env.Data, &ev) != nil || ev.GameState == nil {
					continue
				}
				playerID = ev.PlayerID
				if p, ok := ev.GameState.Players[strconv.Itoa(ev.PlayerID)]; ok {
					pos <- [2]int{p.X, p.Y}
				}
				logger.Info("joined", "player", ev.PlayerID, "seed", ev.GameState.MapSeed)
			case protocol.EvPlayerPosition:
				var ev protocol.PositionEvent
				if json.Unmarshal(env.Data, &ev) == nil {
					pos <- [2]int{ev.X, ev.Y}
				}
			case protocol.EvPlayerMoved:
				var ev protocol.PlayerMovedEvent
				if json.Unmarshal(env.Data, &ev) == nil && ev.PlayerID == playerID {
					pos <- [2]int{ev.X, ev.Y}
				}
			}
		}
	}()

	tick := time.NewTicker(*interval)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case p, ok := <-pos:
			if !ok {
				logger.Info("connection closed")
				return
			}
			x, y = p[0], p[1]
		case <-tick.C:
			if err := act(conn, x, y); err != nil {
				logger.Error("send", "err", err)
				return
			}
		}
	}
}

// act picks an adjacent cell and either harvests it or walks onto it.
func act(conn *websocket.Conn, x, y int) error {
	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	d := dirs[rand.IntN(len(dirs))]
	tx, ty := clamp(x+d[0]), clamp(y+d[1])

	var frame []byte
	var err error
	if rand.IntN(4) == 0 {
		tool := "axe"
		if rand.IntN(2) == 0 {
			tool = "pickaxe"
		}
		frame, err = protocol.Encode(protocol.TypeHarvest, protocol.HarvestReq{X: tx, Y: ty, Tool: tool})
	} else {
		frame, err = protocol.Encode(protocol.TypeMove, protocol.MoveReq{X: tx, Y: ty})
	}
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v >= mapgen.GridSize {
		return mapgen.GridSize - 1
	}
	return v
}
