package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"tilecraft.gg/internal/persistence/archive"
	"tilecraft.gg/internal/persistence/indexdb"
	"tilecraft.gg/internal/persistence/snapshot"
	"tilecraft.gg/internal/protocol"
)

type persisterConfig struct {
	StatePath      string
	BackupDir      string
	BackupInterval time.Duration
	BackupKeep     int
}

type saveJob struct {
	reason string
	state  *protocol.GameState
}

// persister moves state writes off the world goroutine. Saves coalesce: the
// queue holds one pending job and a newer save replaces it, so the world
// never blocks on disk and the last write always wins.
type persister struct {
	cfg persisterConfig
	idx *indexdb.Index
	log *log.Logger

	jobs chan saveJob
	done chan struct{}

	rot *archive.Rotator
}

func newPersister(ctx context.Context, cfg persisterConfig, idx *indexdb.Index, logger *log.Logger) *persister {
	p := &persister{
		cfg:  cfg,
		idx:  idx,
		log:  logger,
		jobs: make(chan saveJob, 1),
		done: make(chan struct{}),
		rot:  archive.NewRotator(cfg.BackupDir, cfg.BackupInterval, cfg.BackupKeep),
	}
	go p.run(ctx)
	return p
}

// Save implements world.Saver. The state is already a private copy.
func (p *persister) Save(reason string, state *protocol.GameState) {
	job := saveJob{reason: reason, state: state}
	for {
		select {
		case p.jobs <- job:
			return
		default:
		}
		select {
		case <-p.jobs: // displace the stale pending job
		default:
		}
	}
}

func (p *persister) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case job := <-p.jobs:
			p.write(job)
		case <-ctx.Done():
			// Flush whatever made it into the queue before the cancel,
			// including the world's shutdown save.
			for {
				select {
				case job := <-p.jobs:
					p.write(job)
				case <-time.After(100 * time.Millisecond):
					return
				}
			}
		}
	}
}

// Drain blocks until the flush loop exits or the timeout passes.
func (p *persister) Drain(timeout time.Duration) {
	select {
	case <-p.done:
	case <-time.After(timeout):
		p.log.Warn("persister drain timed out")
	}
}

func (p *persister) write(job saveJob) {
	b, err := json.MarshalIndent(job.state, "", "  ")
	if err != nil {
		p.log.Error("marshal state", "err", err)
		return
	}
	if err := snapshot.WriteBytes(p.cfg.StatePath, b); err != nil {
		p.log.Error("write state", "reason", job.reason, "err", err)
		return
	}
	p.log.Debug("state saved", "reason", job.reason, "bytes", len(b))

	if path, err := p.rot.Offer(b, time.Now()); err != nil {
		p.log.Warn("backup write failed", "err", err)
	} else if path != "" {
		p.log.Info("backup written", "path", path)
	}

	if p.idx == nil {
		return
	}
	active := 0
	for _, pl := range job.state.Players {
		if pl.Active {
			active++
		}
	}
	p.idx.RecordSave(indexdb.SaveRecord{
		Time:          time.Now(),
		Reason:        job.reason,
		Players:       len(job.state.Players),
		ActivePlayers: active,
		Blocks:        len(job.state.Blocks),
		Harvested:     len(job.state.Harvested),
		Spawned:       len(job.state.Spawned),
		Seed:          job.state.MapSeed,
		Bytes:         len(b),
	})
}
