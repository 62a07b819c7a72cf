package bus

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"turtlerace/internal/protocol"
	"turtlerace/internal/race"
)

// Config bundles the per-session tuning read from the enumerated
// configuration table (§6).
type Config struct {
	PhysicsHz           int
	BroadcastHz         int
	PerSessionQueueSize int
	WriteTimeoutMs      int
	AllowedOrigins      []string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Bus is the Connection Bus (C6): the set of attached sessions plus the
// last snapshot, so late joiners can sync immediately. Attach and Sweep
// are serialized by mu; Broadcast iterates a copy of the session list so
// a slow WriteMessage never blocks attach/sweep.
type Bus struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session

	lastMu   sync.RWMutex
	lastTick int64
	lastRaw  []byte
	lastSnap *race.Snapshot

	attachLimiter *rate.Limiter
}

// New builds an empty Bus with no attached sessions.
func New(cfg Config) *Bus {
	return &Bus{
		cfg:           cfg,
		sessions:      make(map[string]*Session),
		lastTick:      -1,
		attachLimiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

// ServeWS upgrades an HTTP request to a WebSocket, attaches a new session,
// and blocks for the session's lifetime. handler wires client commands
// back to the orchestrator; origin checking uses cfg.AllowedOrigins.
func (b *Bus) ServeWS(w http.ResponseWriter, r *http.Request, handler CommandHandler, perConnLimiter *rate.Limiter) {
	if !b.attachLimiter.Allow() {
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	upgrader.CheckOrigin = func(r *http.Request) bool {
		return b.isAllowedOrigin(r.Header.Get("Origin"))
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bus: upgrade failed: %v", err)
		return
	}

	writeTimeout := time.Duration(b.cfg.WriteTimeoutMs) * time.Millisecond
	session := NewSession(uuid.NewString(), clientIP(r), conn, handler, b.cfg.PerSessionQueueSize, writeTimeout)

	b.attach(session)
	defer b.remove(session.ID())

	session.Run(r.Context(), perConnLimiter)
}

func (b *Bus) isAllowedOrigin(origin string) bool {
	if len(b.cfg.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range b.cfg.AllowedOrigins {
		prefix := strings.TrimSuffix(allowed, "*")
		if strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// attach adds a session and, per §4.6, immediately sends a sync message:
// the latest snapshot if a race is running, or snapshot=null otherwise.
func (b *Bus) attach(s *Session) {
	b.mu.Lock()
	b.sessions[s.ID()] = s
	b.mu.Unlock()

	b.lastMu.RLock()
	tick := b.lastTick
	snap := b.lastSnap
	b.lastMu.RUnlock()

	sync := protocol.SyncMessage{
		Type:        protocol.TypeSync,
		PhysicsHz:   b.cfg.PhysicsHz,
		BroadcastHz: b.cfg.BroadcastHz,
		CurrentTick: tick,
	}
	if snap != nil {
		sync.Snapshot = snap
		sync.TrackLength = snap.TrackLength
	}
	if err := s.SendSync(sync); err != nil {
		s.markUnhealthy()
	}
}

func (b *Bus) remove(id string) {
	b.mu.Lock()
	delete(b.sessions, id)
	b.mu.Unlock()
}

// Broadcast fans a snapshot out to every healthy session. It copies the
// session list before iterating so attach/sweep never block on a slow
// write, and enqueues onto each session's own bounded latest-wins queue
// so one slow client cannot delay delivery to the others.
func (b *Bus) Broadcast(snap race.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		log.Printf("bus: failed to marshal snapshot: %v", err)
		return
	}

	snapCopy := snap
	b.lastMu.Lock()
	b.lastTick = snap.Tick
	b.lastRaw = raw
	b.lastSnap = &snapCopy
	b.lastMu.Unlock()

	for _, s := range b.snapshotSessions() {
		if s.Healthy() {
			s.Enqueue(raw)
		}
	}
}

// ClearSnapshot resets the bus's remembered last snapshot, used on a
// lifecycle edge into IDLE or RUNNING so the next late joiner gets
// snapshot=null instead of stale data from a previous race.
func (b *Bus) ClearSnapshot() {
	b.lastMu.Lock()
	b.lastTick = -1
	b.lastRaw = nil
	b.lastSnap = nil
	b.lastMu.Unlock()
}

// Sweep removes unhealthy sessions, releasing their resources. It should
// be called periodically by a supervisor goroutine distinct from the
// orchestrator's driver loop.
func (b *Bus) Sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, s := range b.sessions {
		if !s.Healthy() {
			delete(b.sessions, id)
		}
	}
}

// Count reports the number of currently attached sessions.
func (b *Bus) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *Bus) snapshotSessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	return out
}

// RunSweeper runs Sweep on a fixed interval until ctx is cancelled - the
// supervisor task described in §5.
func (b *Bus) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Sweep()
		}
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}
