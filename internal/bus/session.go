// Package bus implements the Connection Bus: a set of attached WebSocket
// sessions, each with its own bounded "latest-wins" outbound queue, fed by
// the orchestrator's broadcasts and drained by a dedicated writer per
// session so a slow client can never delay another.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"turtlerace/internal/protocol"
)

const (
	pingInterval = 20 * time.Second
	pongWait     = 4 * pingInterval / 3
)

// serverStart anchors pong timestamps to the monotonic clock.
var serverStart = time.Now()

// CommandHandler is how a session's reader loop reaches the orchestrator.
// Implementations must be safe for concurrent use across sessions.
type CommandHandler interface {
	HandleStart(ctx context.Context) error
	HandleStop(ctx context.Context) error
	HandleSpeed(ctx context.Context, value int) error
}

// controlFrame is a pre-encoded message destined for the connection: a
// pong reply, an error frame, or a ping. It always jumps ahead of the
// latest-wins outbound queue and is not discarded by that queue's
// backpressure; see enqueueControl for when it is discarded.
type controlFrame struct {
	messageType int
	body        []byte
}

// Session wraps one attached WebSocket connection. Outbound is a bounded,
// latest-wins mailbox: Enqueue never blocks the broadcaster, and on
// overflow discards the oldest queued frame in favor of the newest.
//
// gorilla/websocket allows only one concurrent writer per connection, so
// every write - broadcast frames, pings, pongs, error replies - is funneled
// through the single writeLoop goroutine via outbound/control. Nothing else
// may call conn.WriteMessage directly.
type Session struct {
	id      string
	ip      string
	conn    *websocket.Conn
	handler CommandHandler

	outbound     chan []byte
	control      chan controlFrame
	writeTimeout time.Duration

	healthy atomic.Bool
}

// NewSession wraps an upgraded connection. The caller must then call Run,
// which blocks for the session's lifetime (Bus.ServeWS does so after
// attaching the session).
func NewSession(id, ip string, conn *websocket.Conn, handler CommandHandler, queueSize int, writeTimeout time.Duration) *Session {
	if queueSize <= 0 {
		queueSize = 4
	}
	s := &Session{
		id:           id,
		ip:           ip,
		conn:         conn,
		handler:      handler,
		outbound:     make(chan []byte, queueSize),
		control:      make(chan controlFrame, 8),
		writeTimeout: writeTimeout,
	}
	s.healthy.Store(true)
	return s
}

// ID returns the session's opaque handle.
func (s *Session) ID() string { return s.id }

// Healthy reports whether the session is still eligible for broadcast.
func (s *Session) Healthy() bool { return s.healthy.Load() }

// markUnhealthy flags the session for removal by the next sweep.
func (s *Session) markUnhealthy() { s.healthy.Store(false) }

// Enqueue queues a pre-encoded frame for delivery, never blocking the
// caller. If the outbound queue is full, the oldest queued frame is
// dropped so the newest one fits - "latest-wins".
func (s *Session) Enqueue(frame []byte) {
	for {
		select {
		case s.outbound <- frame:
			return
		default:
			select {
			case <-s.outbound:
			default:
			}
		}
	}
}

// SendSync delivers a sync message directly, bypassing the outbound
// queue: it must reach the client before any broadcast frame. It is only
// safe to call before Run starts the session's writer goroutine (as the
// bus does on attach); once Run is running, sends must go through
// enqueueControl so writes stay single-threaded.
func (s *Session) SendSync(sync protocol.SyncMessage) error {
	return s.writeJSON(sync)
}

func (s *Session) writeJSON(v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, body)
}

// enqueueControl hands a control frame to writeLoop, the sole goroutine
// permitted to write to conn once Run is underway. Control frames (pongs,
// errors, pings) are not subject to the outbound queue's latest-wins
// discipline: if the control channel is full it waits up to writeTimeout
// for room, and discards the frame only if none frees up in that time.
func (s *Session) enqueueControl(messageType int, body []byte) {
	select {
	case s.control <- controlFrame{messageType: messageType, body: body}:
	case <-time.After(s.writeTimeout):
	}
}

func (s *Session) enqueueControlJSON(v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.enqueueControl(websocket.TextMessage, body)
}

// Run drives the session's three cooperative loops - reader, writer,
// pinger - until one of them errors or ctx is cancelled, then tears the
// connection down. It blocks until the session is finished.
func (s *Session) Run(ctx context.Context, limiter *rate.Limiter) {
	defer func() {
		s.markUnhealthy()
		s.conn.Close()
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	group.Go(func() error { return s.readLoop(groupCtx, limiter) })
	group.Go(func() error { return s.writeLoop(groupCtx) })
	group.Go(func() error { return s.pingLoop(groupCtx) })

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("bus: session %s closed: %v", s.id, err)
	}
}

func (s *Session) readLoop(ctx context.Context, limiter *rate.Limiter) error {
	for {
		_, body, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if limiter != nil && !limiter.Allow() {
			continue
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			s.enqueueControlJSON(protocol.NewErrorMessage(protocol.KindParse, "malformed command payload"))
			continue
		}
		s.dispatch(ctx, msg)
	}
}

func (s *Session) dispatch(ctx context.Context, msg protocol.ClientMessage) {
	switch msg.Action {
	case protocol.ActionStart:
		if err := s.handler.HandleStart(ctx); err != nil {
			s.enqueueControlJSON(protocol.NewErrorMessage(errKind(err), err.Error()))
		}
	case protocol.ActionStop:
		if err := s.handler.HandleStop(ctx); err != nil {
			s.enqueueControlJSON(protocol.NewErrorMessage(errKind(err), err.Error()))
		}
	case protocol.ActionSpeed:
		if msg.Value == nil {
			s.enqueueControlJSON(protocol.NewErrorMessage(protocol.KindBadRequest, "speed requires a value"))
			return
		}
		if err := s.handler.HandleSpeed(ctx, *msg.Value); err != nil {
			s.enqueueControlJSON(protocol.NewErrorMessage(errKind(err), err.Error()))
		}
	case protocol.ActionPing:
		s.enqueueControlJSON(protocol.NewPongMessage(time.Since(serverStart).Milliseconds()))
	default:
		s.enqueueControlJSON(protocol.NewErrorMessage(protocol.KindBadRequest, fmt.Sprintf("unknown action %q", msg.Action)))
	}
}

// writeLoop is the only goroutine that ever calls conn.WriteMessage: every
// other loop hands it frames over outbound (broadcast data, latest-wins)
// or control (pongs, errors, pings, not latest-wins). Control frames are
// drained with priority so a backlog of broadcast frames never delays a
// pong past pongWait.
func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cf := <-s.control:
			if err := s.writeFrame(cf.messageType, cf.body); err != nil {
				return err
			}
		default:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cf := <-s.control:
				if err := s.writeFrame(cf.messageType, cf.body); err != nil {
					return err
				}
			case frame, ok := <-s.outbound:
				if !ok {
					return nil
				}
				if err := s.writeFrame(websocket.TextMessage, frame); err != nil {
					return err
				}
			}
		}
	}
}

func (s *Session) writeFrame(messageType int, body []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(messageType, body)
}

func (s *Session) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.enqueueControl(websocket.PingMessage, nil)
		}
	}
}

// taxonomyKind is implemented by errors that carry a known error-taxonomy
// kind (see internal/orchestrator.TaxonomyError). Errors that don't
// implement it are reported as "state" by default.
type taxonomyKind interface {
	TaxonomyKind() string
}

func errKind(err error) string {
	var tk taxonomyKind
	if errors.As(err, &tk) {
		return tk.TaxonomyKind()
	}
	return protocol.KindState
}
