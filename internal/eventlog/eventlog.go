// Package eventlog provides a bounded, rate-limited diagnostic log for
// global error-taxonomy events (clock_lag, persistence, fatal). It is not
// a replay mechanism: entries are for operator visibility only and carry
// no guarantee of completeness under sustained load - the oldest entries
// are dropped once the ring is full.
package eventlog

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BufferSize bounds how many recent events are kept in memory.
const BufferSize = 256

// MaxEventsPerSec caps how many events are accepted, so a fault storm
// cannot turn diagnostic logging itself into a DoS vector.
const MaxEventsPerSec = 50

// Event is one diagnostic entry: a taxonomy kind, a human message, and
// the tick it occurred on (0 if not tick-scoped).
type Event struct {
	Sequence  uint64    `json:"sequence"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Tick      int64     `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is a bounded, file-backed diagnostic log guarded by a single mutex.
// Event volume here is low (faults, not per-tick telemetry) so a simple
// mutex-protected ring is sufficient; no lock-free structure is needed.
type Log struct {
	mu      sync.Mutex
	buf     []Event
	next    int
	filled  bool
	seq     uint64
	limiter *rate.Limiter

	file   *os.File
	fileMu sync.Mutex

	dropped uint64
}

// New opens a bounded event log backed by filePath. An empty filePath
// disables file persistence; events are still kept in the in-memory ring
// for Recent.
func New(filePath string) (*Log, error) {
	l := &Log{
		buf:     make([]Event, BufferSize),
		limiter: rate.NewLimiter(rate.Limit(MaxEventsPerSec), MaxEventsPerSec),
	}
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.file = f
	}
	return l, nil
}

// Emit records a diagnostic event. Returns false if the event was dropped
// by rate limiting (the event itself is still lost - this is intentional
// backpressure, matching the bounded-queue philosophy used elsewhere).
func (l *Log) Emit(kind, message string, tick int64) bool {
	if !l.limiter.Allow() {
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
		return false
	}

	l.mu.Lock()
	l.seq++
	ev := Event{Sequence: l.seq, Kind: kind, Message: message, Tick: tick, Timestamp: time.Now()}
	l.buf[l.next] = ev
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.filled = true
	}
	l.mu.Unlock()

	l.appendToFile(ev)
	return true
}

func (l *Log) appendToFile(ev Event) {
	if l.file == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	l.file.Write(body)
	l.file.Write([]byte("\n"))
}

// Recent returns the buffered events in chronological order, oldest
// first.
func (l *Log) Recent() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.filled {
		out := make([]Event, l.next)
		copy(out, l.buf[:l.next])
		return out
	}

	out := make([]Event, len(l.buf))
	copy(out, l.buf[l.next:])
	copy(out[len(l.buf)-l.next:], l.buf[:l.next])
	return out
}

// Stats reports how many events have been accepted and dropped.
func (l *Log) Stats() (total, dropped uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq, l.dropped
}

// Close flushes and closes the backing file, if any.
func (l *Log) Close() error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ReportError implements orchestrator.ErrorReporter.
func (l *Log) ReportError(kind, message string) {
	l.Emit(kind, message, 0)
}
