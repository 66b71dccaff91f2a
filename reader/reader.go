// Package reader runs the background task that continuously pulls bytes
// off the link manager, frames them into sentences, and hands each one to
// the sensor aggregator and the UDP fan-out.
package reader

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blue-robotics/nmea-bridge/sentence"
)

const recentBufferCapacity = 100

// noDataLogInterval bounds how often the "no data" spurious-error class is
// logged; the device's idle read timeout fires constantly and is not
// itself noteworthy.
const noDataLogInterval = 30 * time.Second

// Sink receives every framed sentence regardless of classification.
type Sink interface {
	Apply(s sentence.Sentence, now time.Time)
}

// FanOut receives every framed sentence for UDP republishing.
type FanOut interface {
	Publish(s sentence.Sentence)
}

// Source is the mutex-guarded read primitive exposed by the link manager.
type Source interface {
	ReadChunk(buf []byte) (int, error)
}

// Reader is the background sentence-reading task.
type Reader struct {
	source Source
	sink   Sink
	fanout FanOut
	logger *log.Logger
	now    func() time.Time

	health *Health
	recent *RecentBuffer

	rawMu  sync.Mutex
	rawLog io.Writer

	selectedMu sync.Mutex
	selected   map[string]struct{}

	noDataMu      sync.Mutex
	lastNoDataLog time.Time

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// stopJoinTimeout bounds how long Stop waits for Run to exit before giving
// up and logging a warning instead of blocking the caller indefinitely.
const stopJoinTimeout = time.Second

// Start launches Run in a background goroutine, owning its own cancelable
// context. Calling Start while already running is a no-op.
func (r *Reader) Start() {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	go func() {
		r.Run(ctx)
		close(done)
	}()
}

// Stop cancels the background Run loop started by Start and waits up to
// stopJoinTimeout for it to exit. Calling Stop when not running is a no-op.
func (r *Reader) Stop() {
	r.lifecycleMu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.lifecycleMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		r.logger.Printf("reader: stop did not join within %s", stopJoinTimeout)
	}
}

// New returns a Reader. sink and fanout may be nil to run headless (used
// in tests exercising health/selected-type bookkeeping alone).
func New(source Source, sink Sink, fanout FanOut, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.Default()
	}
	return &Reader{
		source:   source,
		sink:     sink,
		fanout:   fanout,
		logger:   logger,
		now:      time.Now,
		health:   &Health{},
		recent:   NewRecentBuffer(recentBufferCapacity),
		selected: make(map[string]struct{}),
	}
}

// Health returns the reader's diagnostic counters.
func (r *Reader) Health() HealthSnapshot { return r.health.Snapshot() }

// Recent returns the most recent sentences, newest first.
func (r *Reader) Recent() []sentence.Sentence { return r.recent.Items() }

// SetRawLog attaches (or, with nil, detaches) a writer that receives every
// framed sentence's raw text, one per line, alongside normal processing.
// It mirrors the original implementation's append-only nmea_messages.log.
func (r *Reader) SetRawLog(w io.Writer) {
	r.rawMu.Lock()
	defer r.rawMu.Unlock()
	r.rawLog = w
}

// SelectedTypes returns every wire type observed so far, sorted.
func (r *Reader) SelectedTypes() []string {
	r.selectedMu.Lock()
	defer r.selectedMu.Unlock()
	out := make([]string, 0, len(r.selected))
	for t := range r.selected {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Run reads until ctx is canceled. It never returns an error: read
// failures are folded into Health and the loop keeps going, since a
// transient serial hiccup should not bring the bridge down.
func (r *Reader) Run(ctx context.Context) {
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := r.now()
		r.health.recordAttempt(now)
		n, err := r.source.ReadChunk(buf)
		if err != nil {
			r.handleReadError(err)
			sleepOrDone(ctx, 20*time.Millisecond)
			continue
		}
		if n == 0 {
			r.health.recordEmptyRead()
			sleepOrDone(ctx, 10*time.Millisecond)
			continue
		}

		now = r.now()
		r.health.recordRawLen(n)
		for _, s := range sentence.Frame(string(buf[:n]), now) {
			r.ingest(s, now)
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (r *Reader) ingest(s sentence.Sentence, now time.Time) {
	switch s.Checksum {
	case sentence.ChecksumMismatch:
		r.health.recordChecksumMismatch()
	case sentence.ChecksumMissing:
		r.health.recordChecksumMissing()
	}

	if ids := sentence.ClassifySpecIDs(s); len(ids) > 0 {
		r.health.recordGoodNMEA(now)
	} else {
		r.health.recordUnmapped(s.Type)
	}
	r.noteSelected(s.Type)
	r.writeRawLog(s)

	r.recent.Push(s)
	if r.sink != nil {
		r.sink.Apply(s, now)
	}
	if r.fanout != nil {
		r.fanout.Publish(s)
	}
}

func (r *Reader) noteSelected(wireType string) {
	if wireType == "" {
		return
	}
	r.selectedMu.Lock()
	defer r.selectedMu.Unlock()
	r.selected[wireType] = struct{}{}
}

func (r *Reader) writeRawLog(s sentence.Sentence) {
	r.rawMu.Lock()
	w := r.rawLog
	r.rawMu.Unlock()
	if w == nil {
		return
	}
	if _, err := io.WriteString(w, s.Raw+"\n"); err != nil {
		r.logger.Printf("reader: raw log write failed: %v", err)
	}
}

func (r *Reader) handleReadError(err error) {
	switch {
	case isReadTimeoutError(err):
		r.health.recordReadTimeout()
		r.logThrottled(err)
	case isNoDataError(err):
		r.health.recordNoData()
		r.logThrottled(err)
	default:
		r.health.recordOtherError()
		r.logger.Printf("reader: read error: %v", err)
	}
}

// isReadTimeoutError recognizes a genuine read-timeout condition, reported
// either as context.DeadlineExceeded or with "timeout" somewhere in the
// platform's error text.
func isReadTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// isNoDataError recognizes the remaining "nothing arrived" errors that
// aren't timeouts; this class is expected continuously while the device is
// idle and is not worth logging at full volume.
func isNoDataError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource temporarily unavailable") ||
		strings.Contains(msg, "no data")
}

func (r *Reader) logThrottled(err error) {
	now := r.now()
	r.noDataMu.Lock()
	defer r.noDataMu.Unlock()
	if !r.lastNoDataLog.IsZero() && now.Sub(r.lastNoDataLog) < noDataLogInterval {
		return
	}
	r.lastNoDataLog = now
	r.logger.Printf("reader: no data from device (throttled to 1/%s): %v", noDataLogInterval, err)
}
