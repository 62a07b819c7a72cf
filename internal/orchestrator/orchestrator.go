// Package orchestrator drives the race engine at a fixed step, decoupled
// from wall-clock time by an accumulator, and owns the IDLE/RUNNING/
// FINISHED lifecycle. It is the single task in the scheduling model that
// mutates the active race engine; every other task communicates with it
// through commands or reads its immutable snapshots.
package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"turtlerace/internal/config"
	"turtlerace/internal/race"
	"turtlerace/internal/terrain"
)

// State is a lifecycle stage of the orchestrator's state machine.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "idle"
	}
}

// AllowedSpeeds enumerates the only valid speed_multiplier values.
var AllowedSpeeds = map[int]bool{1: true, 2: true, 4: true}

// FinishGracePeriod is how long the orchestrator lingers in FINISHED
// before returning to IDLE, giving attached clients time to render the
// final snapshot before the bus is cleared.
const FinishGracePeriod = 2 * time.Second

// Broadcaster is the Connection Bus as seen by the orchestrator: it only
// needs to push snapshots out and clear them on reset, never to know about
// individual sessions.
type Broadcaster interface {
	Broadcast(snap race.Snapshot)
	ClearSnapshot()
}

// RosterProvider supplies the turtle roster for a new race. Called exactly
// once per IDLE -> RUNNING transition.
type RosterProvider interface {
	LoadRoster(ctx context.Context) ([]race.TurtleSpec, error)
}

// ResultSink persists the outcome of a finished race. Called exactly once
// per RUNNING -> FINISHED transition; failures are logged and reported,
// never revert the lifecycle.
type ResultSink interface {
	RecordRaceResult(ctx context.Context, raceID string, finishOrder []string, elapsedMs int64) error
}

// ErrorReporter receives global, non-session-scoped error taxonomy events
// (clock_lag, persistence, fatal). The server binary records them in the
// bounded diagnostic event log and counts clock_lag events as a metric;
// they are not attached to snapshots.
type ErrorReporter interface {
	ReportError(kind, message string)
}

type command struct {
	kind  string // "start", "stop", "speed"
	speed int
	reply chan error
}

// Orchestrator owns at most one active race engine and drives it at
// physics_hz, broadcasting at broadcast_hz. All mutation happens on the
// single goroutine running Run; every other method only enqueues a
// command, serializing concurrent requests the way a command queue would.
type Orchestrator struct {
	cfg       config.PhysicsConfig
	transport config.TransportConfig

	roster RosterProvider
	sink   ResultSink
	bus    Broadcaster
	errs   ErrorReporter

	commands chan command

	mu             sync.RWMutex
	state          State
	speedMul       int
	accumulated    time.Duration
	engine         *race.Engine
	track          *terrain.Track
	raceID         string
	startedAt      time.Time
	lastClockLagAt time.Time
}

// New builds an idle Orchestrator. Call Run in its own goroutine to start
// the driver loop.
func New(cfg config.PhysicsConfig, transport config.TransportConfig, roster RosterProvider, sink ResultSink, bus Broadcaster, errs ErrorReporter) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		transport: transport,
		roster:    roster,
		sink:      sink,
		bus:       bus,
		errs:      errs,
		commands:  make(chan command, 8),
		state:     StateIdle,
		speedMul:  1,
	}
}

// State reports the current lifecycle stage. Safe for concurrent use.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Start requests an IDLE -> RUNNING transition. Idempotent while already
// RUNNING: per the chosen resolution of the duplicate-start question, a
// second start is a no-op reported as a non-fatal "state" error rather
// than a restart.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.send(ctx, command{kind: "start"})
}

// Stop requests a transition to IDLE from any state.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.send(ctx, command{kind: "stop"})
}

// SetSpeed requests a new speed_multiplier. Invalid values are rejected
// with a bad_request-flavored error without affecting the current race.
func (o *Orchestrator) SetSpeed(ctx context.Context, speed int) error {
	return o.send(ctx, command{kind: "speed", speed: speed})
}

func (o *Orchestrator) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case o.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the driver loop: one cooperative task that owns the engine. It
// blocks until ctx is cancelled. Ticks are produced by a real-time
// accumulator so that speed_multiplier only changes the wall-clock-to-tick
// conversion, never the determinism of the ticks themselves.
func (o *Orchestrator) Run(ctx context.Context) {
	tickInterval := time.Second / time.Duration(o.cfg.PhysicsHz)
	ticksPerBroadcast := int64(o.cfg.PhysicsHz / o.cfg.BroadcastHz)
	if ticksPerBroadcast <= 0 {
		ticksPerBroadcast = 1
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastLoop := time.Now()

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-o.commands:
			cmd.reply <- o.handleCommand(ctx, cmd)

		case now := <-ticker.C:
			elapsed := now.Sub(lastLoop)
			lastLoop = now

			o.mu.Lock()
			if o.state != StateRunning {
				o.mu.Unlock()
				continue
			}
			o.accumulated += time.Duration(int64(elapsed) * int64(o.speedMul))

			ticksThisLoop := 0
			for o.accumulated >= tickInterval {
				o.engine.Step()
				o.accumulated -= tickInterval
				ticksThisLoop++

				if ticksThisLoop > o.transport.MaxCatchupTicks {
					dropped := o.accumulated
					o.accumulated = 0
					o.reportClockLag(dropped)
					break
				}
			}

			if ticksThisLoop > 0 {
				if o.engine.Tick()%ticksPerBroadcast == 0 || o.engine.Finished() {
					o.publishLocked()
				}
				if o.engine.Finished() {
					o.finishLocked(ctx)
				}
			}
			o.mu.Unlock()
		}
	}
}

func (o *Orchestrator) handleCommand(ctx context.Context, cmd command) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch cmd.kind {
	case "start":
		return o.startLocked(ctx)
	case "stop":
		return o.stopLocked()
	case "speed":
		return o.setSpeedLocked(cmd.speed)
	case "settle":
		return o.settleLocked()
	default:
		return nil
	}
}

// settleLocked performs the FINISHED -> IDLE edge after the grace period.
// A stop or a new start may have already moved the orchestrator out of
// FINISHED by the time this fires, in which case it is a no-op.
func (o *Orchestrator) settleLocked() error {
	if o.state != StateFinished {
		return nil
	}
	o.state = StateIdle
	o.engine = nil
	o.bus.ClearSnapshot()
	return nil
}

func (o *Orchestrator) startLocked(ctx context.Context) error {
	if o.state == StateRunning {
		return newTaxonomyError("state", "race already running")
	}

	specs, err := o.roster.LoadRoster(ctx)
	if err != nil {
		if o.errs != nil {
			o.errs.ReportError("persistence", "roster_unavailable: "+err.Error())
		}
		return newTaxonomyError("persistence", "roster unavailable")
	}

	track := terrain.Generate(terrain.GenerateOptions{
		Length: o.cfg.TrackLength,
		Types:  []terrain.Type{terrain.Grass, terrain.Water, terrain.Rock, terrain.Sand, terrain.Mud, terrain.Boost},
		Seed:   time.Now().UnixNano(),
	})

	if o.engine == nil {
		o.engine = race.NewEngine(o.cfg.ResumeThreshold, o.cfg.MaxTicks, o.cfg.PhysicsHz)
	}
	o.engine.Reset(specs, track)
	o.track = track
	o.raceID = uuid.NewString()
	o.startedAt = time.Now()
	o.speedMul = 1
	o.accumulated = 0
	o.state = StateRunning
	o.bus.ClearSnapshot()
	return nil
}

func (o *Orchestrator) stopLocked() error {
	if o.state == StateIdle {
		return newTaxonomyError("state", "race already idle")
	}
	o.state = StateIdle
	o.engine = nil
	o.bus.ClearSnapshot()
	return nil
}

func (o *Orchestrator) setSpeedLocked(speed int) error {
	if !AllowedSpeeds[speed] {
		return newTaxonomyError("bad_request", "speed must be 1, 2, or 4")
	}
	o.speedMul = speed
	return nil
}

// publishLocked must be called with mu held.
func (o *Orchestrator) publishLocked() {
	snap := o.engine.Snapshot()
	o.bus.Broadcast(snap)
}

// finishLocked must be called with mu held. It performs the
// RUNNING -> FINISHED edge: the final snapshot has already been broadcast
// by the caller. The result is persisted asynchronously and, after
// FinishGracePeriod, an internal command drives the FINISHED -> IDLE edge
// back through the command queue so it stays serialized with user
// commands.
func (o *Orchestrator) finishLocked(ctx context.Context) {
	o.state = StateFinished

	ids := o.engine.FinishOrder()
	elapsed := time.Since(o.startedAt).Milliseconds()
	raceID := o.raceID

	go func() {
		sinkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := o.sink.RecordRaceResult(sinkCtx, raceID, ids, elapsed); err != nil {
			if o.errs != nil {
				o.errs.ReportError("persistence", "result sink failed: "+err.Error())
			}
			log.Printf("orchestrator: result sink failed for race %s: %v", raceID, err)
		}
	}()

	go func() {
		timer := time.NewTimer(FinishGracePeriod)
		defer timer.Stop()
		select {
		case <-timer.C:
			select {
			case o.commands <- command{kind: "settle", reply: make(chan error, 1)}:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}()
}

func (o *Orchestrator) reportClockLag(dropped time.Duration) {
	if o.errs != nil {
		o.errs.ReportError("clock_lag", "dropped surplus accumulator time: "+dropped.String())
	}
	log.Printf("orchestrator: clock_lag, dropped %s of accumulated time", dropped)
	o.lastClockLagAt = time.Now()
}

// TaxonomyError is a typed error carrying one of the error-taxonomy kinds
// from the control protocol (bad_request, state, persistence, ...).
type TaxonomyError struct {
	Kind    string
	Message string
}

func (e *TaxonomyError) Error() string { return e.Kind + ": " + e.Message }

// TaxonomyKind implements the taxonomyKind interface the Connection Bus
// uses to map an orchestrator error onto a protocol error-message kind.
func (e *TaxonomyError) TaxonomyKind() string { return e.Kind }

func newTaxonomyError(kind, message string) error {
	return &TaxonomyError{Kind: kind, Message: message}
}
