package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"tilecraft.gg/internal/config"
	"tilecraft.gg/internal/persistence/indexdb"
	persistlog "tilecraft.gg/internal/persistence/log"
	"tilecraft.gg/internal/persistence/snapshot"
	"tilecraft.gg/internal/sim/world"
	"tilecraft.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":3000", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		configPath = flag.String("config", "./configs/tilecraft.yaml", "tuning file path")
		seed       = flag.Uint("seed", 0, "override the map seed on startup (0 keeps the saved seed)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite save index")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "server",
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", "err", err)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal("create data dir", "err", err)
	}
	statePath := filepath.Join(*dataDir, "state.json")

	state, err := snapshot.Read(statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("state file unreadable, starting fresh", "path", statePath, "err", err)
		}
		state = nil
	}
	state = snapshot.Sanitize(state)
	if *seed != 0 {
		state.MapSeed = uint32(*seed)
	}
	logger.Info("world loaded", "players", len(state.Players), "blocks", len(state.Blocks), "seed", state.MapSeed)

	w := world.New(cfg, logger.WithPrefix("world"), state)

	var idx *indexdb.Index
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatal("open save index", "err", err)
		}
		defer idx.Close()
	}

	audit := persistlog.NewAuditLogger(filepath.Join(*dataDir, "audit"))
	defer audit.Close()
	w.SetAudit(audit)

	ctx, cancel := signalContext()
	defer cancel()

	saver := newPersister(ctx, persisterConfig{
		StatePath:      statePath,
		BackupDir:      filepath.Join(*dataDir, "backups"),
		BackupInterval: time.Duration(cfg.Backups.IntervalSec) * time.Second,
		BackupKeep:     cfg.Backups.Keep,
	}, idx, logger.WithPrefix("persist"))
	w.SetSaver(saver)

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("world stopped", "err", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", healthHandler(w))
	r.Post("/reset", resetHandler(w, logger))
	r.Get("/ws", ws.NewServer(w, cfg.Net, logger.WithPrefix("ws")).Handler())
	r.Handle("/*", http.FileServer(http.Dir("./public")))

	srv := &http.Server{Addr: *addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logger.Info("listening", "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server", "err", err)
	}

	// The world issues its shutdown save on the way out; wait for it, then
	// let the persister flush.
	<-worldDone
	saver.Drain(5 * time.Second)
	logger.Info("shutdown complete")
}

type healthResponse struct {
	Message           string `json:"message"`
	TotalPlayers      int    `json:"totalPlayers"`
	ActivePlayers     int    `json:"activePlayers"`
	InactivePlayers   int    `json:"inactivePlayers"`
	ActiveConnections int    `json:"activeConnections"`
}

func healthHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		st, err := w.StatsSnapshot(ctx)
		if err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(rw, r, map[string]string{"message": "world loop unresponsive"})
			return
		}
		render.JSON(rw, r, healthResponse{
			Message:           "Server is running",
			TotalPlayers:      st.TotalPlayers,
			ActivePlayers:     st.ActivePlayers,
			InactivePlayers:   st.InactivePlayers,
			ActiveConnections: st.ActiveConnections,
		})
	}
}

func resetHandler(w *world.World, logger *log.Logger) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := w.Reset(ctx); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(rw, r, map[string]string{"message": "reset timed out"})
			return
		}
		logger.Info("world reset via http")
		render.JSON(rw, r, map[string]string{"message": "Game state reset"})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
