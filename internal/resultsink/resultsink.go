// Package resultsink provides the default ResultSink implementations.
// Spec non-goals exclude persistent roster/history storage, so the
// default sink only logs; a JSONL sink is provided for deployments that
// want a durable (but still non-authoritative) record of past results.
package resultsink

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Result is one finished race's outcome, as handed to a sink.
type Result struct {
	RaceID      string    `json:"race_id"`
	FinishOrder []string  `json:"finish_order"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Logging is a ResultSink that only writes to the standard logger. It
// never fails, matching the spec's guidance that sink failures must stay
// non-fatal - there is simply nothing here that can fail.
type Logging struct{}

// RecordRaceResult logs the result and returns nil.
func (Logging) RecordRaceResult(ctx context.Context, raceID string, finishOrder []string, elapsedMs int64) error {
	log.Printf("race %s finished in %dms, order=%v", raceID, elapsedMs, finishOrder)
	return nil
}

// JSONL is a ResultSink that appends one JSON line per finished race to a
// file. Writes retry with bounded exponential backoff per §7; a
// persistent failure is logged and returned so the orchestrator can
// surface it as error kind persistence, without reverting the lifecycle.
type JSONL struct {
	mu   sync.Mutex
	path string
}

// NewJSONL returns a sink that appends to the result file at path. The
// file is opened (and created if missing) on each write, not here.
func NewJSONL(path string) *JSONL {
	return &JSONL{path: path}
}

const (
	maxAttempts  = 4
	initialDelay = 50 * time.Millisecond
)

// RecordRaceResult appends the result, retrying transient write failures
// with exponential backoff up to maxAttempts.
func (j *JSONL) RecordRaceResult(ctx context.Context, raceID string, finishOrder []string, elapsedMs int64) error {
	body, err := json.Marshal(Result{
		RaceID:      raceID,
		FinishOrder: finishOrder,
		ElapsedMs:   elapsedMs,
		RecordedAt:  time.Now(),
	})
	if err != nil {
		return err
	}
	body = append(body, '\n')

	delay := initialDelay
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err := j.writeOnce(body); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (j *JSONL) writeOnce(body []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "open result file %s", j.path)
	}
	defer f.Close()

	if _, err := f.Write(body); err != nil {
		return errors.Wrapf(err, "write result file %s", j.path)
	}
	return nil
}
