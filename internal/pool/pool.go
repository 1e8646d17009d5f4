// Package pool materializes one player per configured Mopidy instance and
// signals readiness once all of them are constructed. Readiness is about
// instantiation, not connectivity: an instance may still be dialing when the
// pool reports ready.
package pool

import (
	"context"
	"log/slog"
	"sync"

	"multiroom-ws/internal/mopidy"
	"multiroom-ws/internal/player"
)

// Pool owns the ordered collection of players.
type Pool struct {
	mu      sync.RWMutex
	players []*player.Player
	ready   bool
	readyCh chan struct{}
}

func New() *Pool {
	return &Pool{readyCh: make(chan struct{})}
}

// Initialize fetches the settings document and constructs one player per
// instance entry. The players' connection and event loops are bound to ctx.
// Readiness flips true exactly once, after every entry is constructed; an
// empty instance list yields an immediately-ready pool. A fetch error is
// returned and leaves the pool not ready.
func (p *Pool) Initialize(ctx context.Context, src Source) error {
	settings, err := src.Fetch(ctx)
	if err != nil {
		return err
	}

	players := make([]*player.Player, 0, len(settings.Instances))
	for _, inst := range settings.Instances {
		url := mopidy.BuildURL(inst.Host, inst.Port, inst.Index, settings.UseProxy)
		client := mopidy.NewClient(url)
		pl := player.New(inst.ID, client)
		go client.Run(ctx)
		go pl.Run(ctx)
		players = append(players, pl)
		slog.Info("instance registered", "id", inst.ID, "url", url)
	}

	p.mu.Lock()
	p.players = players
	if !p.ready {
		p.ready = true
		close(p.readyCh)
	}
	p.mu.Unlock()

	slog.Info("pool ready", "instances", len(players))
	return nil
}

// Ready is closed once the pool has been populated.
func (p *Pool) Ready() <-chan struct{} { return p.readyCh }

// IsReady reports whether initialization has completed.
func (p *Pool) IsReady() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// Lookup returns the player with the given id. Linear scan, first match
// wins.
func (p *Pool) Lookup(id string) (*player.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pl := range p.players {
		if pl.ID() == id {
			return pl, true
		}
	}
	return nil, false
}

// AllConnected reports whether every player is online at the moment of the
// call. A point-in-time poll; it can be stale one event later.
func (p *Pool) AllConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, pl := range p.players {
		if !pl.Online() {
			return false
		}
	}
	return true
}

// Players returns a snapshot copy of the pool's players.
func (p *Pool) Players() []*player.Player {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*player.Player, len(p.players))
	copy(out, p.players)
	return out
}
