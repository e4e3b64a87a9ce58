// Package ws bridges browser WebSocket connections to the world loop.
// Frames are schema-checked here so malformed payloads never cross into the
// simulation; a client that floods past its rate budget just has the excess
// dropped.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"tilecraft.gg/internal/config"
	"tilecraft.gg/internal/protocol"
	"tilecraft.gg/internal/sim/world"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	joinTimeout  = 5 * time.Second
)

type Server struct {
	world *world.World
	cfg   config.Net
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, cfg config.Net, logger *log.Logger) *Server {
	return &Server{
		world: w,
		cfg:   cfg,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		connID := uuid.NewString()
		out := make(chan []byte, s.cfg.OutQueue)

		playerID, welcome, ok := s.join(r.Context(), connID, out)
		if !ok {
			return
		}

		// The welcome goes out before the pump starts, so the client always
		// sees the full state before any incremental event.
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, welcome); err != nil {
			s.world.Leave() <- world.LeaveRequest{PlayerID: playerID, ConnID: connID}
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		s.readLoop(conn, playerID, connID)
		cancel()
		s.world.Leave() <- world.LeaveRequest{PlayerID: playerID, ConnID: connID}
	}
}

// join runs the world handshake and returns the assigned slot plus the
// pre-encoded welcome frame.
func (s *Server) join(ctx context.Context, connID string, out chan []byte) (int, []byte, bool) {
	resp := make(chan world.JoinResponse, 1)
	req := world.JoinRequest{ConnID: connID, Out: out, Resp: resp}

	t := time.NewTimer(joinTimeout)
	defer t.Stop()

	select {
	case s.world.Join() <- req:
	case <-ctx.Done():
		return 0, nil, false
	case <-t.C:
		s.log.Warn("join queue stalled", "conn", connID)
		return 0, nil, false
	}
	select {
	case jr := <-resp:
		return jr.PlayerID, jr.Welcome, true
	case <-t.C:
		s.log.Warn("join response stalled", "conn", connID)
		return 0, nil, false
	}
}

func (s *Server) readLoop(conn *websocket.Conn, playerID int, connID string) {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.MsgPerSec), s.cfg.MsgBurst)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !limiter.Allow() {
			continue
		}
		if err := protocol.ValidateIntent(msg); err != nil {
			s.log.Debug("rejected frame", "player", playerID, "err", err)
			continue
		}
		env, err := protocol.DecodeEnvelope(msg)
		if err != nil {
			continue
		}
		s.world.Inbox() <- world.Intent{PlayerID: playerID, ConnID: connID, Frame: env}
	}
}
