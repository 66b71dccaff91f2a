// Package link owns the single serial handle to the weather station and
// the baud negotiation, sentence configuration and disconnect operations
// that talk to it. Every access to the handle -- the background reader's
// polling reads as well as these synchronous control operations -- is
// serialized through one mutex, so only one goroutine ever touches the
// wire at a time.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/blue-robotics/nmea-bridge/dialect"
	"github.com/blue-robotics/nmea-bridge/internal/utils"
	"github.com/blue-robotics/nmea-bridge/sentence"
	"github.com/tarm/serial"
)

// Status is the Manager's current connection lifecycle state.
type Status string

const (
	StatusDisconnected      Status = "disconnected"
	StatusNegotiating       Status = "negotiating"
	StatusSwitchingBaud     Status = "switching_baud"
	StatusEnablingSentences Status = "enabling_sentences"
	StatusConnected         Status = "connected"
	StatusFailed            Status = "failed"
)

// candidateBauds is the device's two supported rates, tried in this order
// unless a persisted preference reorders it.
var candidateBauds = []int{4800, 38400}

const (
	negotiationWindow    = 3 * time.Second
	maxNegotiationTries  = 6
	requiredLinesAt4800  = 5
	requiredLinesAt38400 = 1

	// wakeSettle is how long the device is given to start emitting after
	// an opening $PAMTX,1 wake write, before the negotiation window
	// starts listening for valid lines.
	wakeSettle = 300 * time.Millisecond

	// oldBaudQuietWatchdog bounds how long trySwitchTo38400 keeps draining
	// the still-open old-baud handle after issuing the switch-baud
	// command: it resets on every complete read and gives up once the
	// device goes quiet (applying the switch) or starts emitting garbage
	// (already talking at the new rate to an old-rate reader).
	oldBaudQuietWatchdog = 2500 * time.Millisecond

	// upgradeConfirmWindow is the read window used to confirm traffic at
	// 38400 after reopening; distinct from oldBaudQuietWatchdog, which
	// bounds the drain loop on the old handle before that reopen.
	upgradeConfirmWindow = 5 * time.Second
)

// ErrNotConnected is returned by control operations when no serial handle
// is open.
var ErrNotConnected = errors.New("link: not connected")

// port is the subset of tarm/serial.Port this package depends on, factored
// out so tests can substitute a mock ReadWriteCloser.
type port interface {
	io.ReadWriteCloser
}

type openFunc func(path string, baud int) (port, error)

func openTarmSerial(path string, baud int) (port, error) {
	return serial.OpenPort(&serial.Config{
		Name:        path,
		Baud:        baud,
		ReadTimeout: 250 * time.Millisecond,
		Size:        8,
	})
}

// Manager is the bridge's sole owner of the serial connection.
type Manager struct {
	mu   sync.Mutex
	open openFunc

	path   string
	baud   int
	handle port
	status Status

	logger *log.Logger
}

// New returns a disconnected Manager. A nil logger falls back to the
// standard logger.
func New(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{open: openTarmSerial, status: StatusDisconnected, logger: logger}
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Path returns the currently selected device path, or "" if none.
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Baud returns the currently negotiated baud rate, or 0 if disconnected.
func (m *Manager) Baud() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baud
}

// ReadChunk performs one Read against the serial handle, holding the lock
// only for the syscall itself so control operations are never starved for
// long. This is the primitive the background reader polls.
func (m *Manager) ReadChunk(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return 0, io.EOF
	}
	return m.handle.Read(buf)
}

func (m *Manager) writeLocked(s string) error {
	if m.handle == nil {
		return ErrNotConnected
	}
	m.logger.Printf("link: write %s", utils.FormatSpaces([]byte(s)))
	_, err := m.handle.Write([]byte(s))
	return err
}

// Write sends a raw dialect command while holding the lock for the
// duration of the syscall.
func (m *Manager) Write(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeLocked(s)
}

func orderedCandidates(preferred int) []int {
	if preferred != 4800 && preferred != 38400 {
		return append([]int(nil), candidateBauds...)
	}
	order := []int{preferred}
	for _, b := range candidateBauds {
		if b != preferred {
			order = append(order, b)
		}
	}
	return order
}

var requiredSet = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, id := range sentence.RequiredIDs() {
		m[id] = struct{}{}
	}
	return m
}()

// Connect negotiates the device's current baud rate, upgrading to 38400
// whenever it starts at 4800, then force-enables the required sentences and
// replays any persisted per-sentence configuration. negotiate never returns
// success at 4800: an unconfirmed upgrade consumes one of its own attempts
// and retries the next candidate, so a successful Connect always leaves the
// link at 38400.
func (m *Manager) Connect(ctx context.Context, path string, preferredBaud int, persisted map[string]sentence.SentenceConfig) error {
	m.mu.Lock()
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
	m.path = path
	m.status = StatusNegotiating
	m.mu.Unlock()

	baud, err := m.negotiate(ctx, path, orderedCandidates(preferredBaud))
	if err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.baud = baud
	m.status = StatusEnablingSentences
	m.mu.Unlock()

	if err := m.enableRequiredAndPersisted(persisted); err != nil {
		m.logger.Printf("link: enabling sentences after connect: %v", err)
	}

	m.mu.Lock()
	m.status = StatusConnected
	m.mu.Unlock()
	return nil
}

// negotiate round-robins the candidate bauds, waking the device with
// $PAMTX,1 and listening negotiationWindow at each, until one produces
// enough checksum-valid lines or the attempt budget is exhausted. A
// confirmed 4800 session is immediately offered the 38400 upgrade; if that
// upgrade cannot be confirmed, the 4800 handle is discarded and the attempt
// falls through to the next candidate in the outer loop rather than
// settling for a connected session at 4800.
func (m *Manager) negotiate(ctx context.Context, path string, order []int) (int, error) {
	for attempt := 0; attempt < maxNegotiationTries; attempt++ {
		baud := order[attempt%len(order)]
		required := requiredLinesAt4800
		if baud == 38400 {
			required = requiredLinesAt38400
		}

		h, err := m.open(path, baud)
		if err != nil {
			m.logger.Printf("link: open %s at %d baud: %v", path, baud, err)
			continue
		}

		m.wake(h)
		time.Sleep(wakeSettle)

		valid := countValidLines(ctx, h, negotiationWindow)
		h.Close()

		if valid < required {
			continue
		}

		confirmed, err := m.open(path, baud)
		if err != nil {
			return 0, fmt.Errorf("link: reopen %s at %d baud: %w", path, baud, err)
		}
		m.mu.Lock()
		m.handle = confirmed
		m.baud = baud
		m.mu.Unlock()

		if baud == 38400 {
			return baud, nil
		}

		m.mu.Lock()
		m.status = StatusSwitchingBaud
		m.mu.Unlock()

		if upgraded, ok := m.trySwitchTo38400(ctx, path); ok {
			return upgraded, nil
		}

		m.logger.Printf("link: baud switch to 38400 unconfirmed, retrying negotiation")
		m.mu.Lock()
		if m.handle != nil {
			m.handle.Close()
			m.handle = nil
		}
		m.baud = 0
		m.mu.Unlock()
	}
	return 0, fmt.Errorf("link: no confirmed NMEA link to %s after %d attempts", path, maxNegotiationTries)
}

// wake writes the resume-transmission command directly to a handle that
// isn't yet the Manager's confirmed handle, so negotiate can prompt a
// freshly opened port to start emitting before it starts listening.
func (m *Manager) wake(h port) {
	cmd := dialect.ResumeTransmission()
	m.logger.Printf("link: write %s", utils.FormatSpaces([]byte(cmd)))
	if _, err := h.Write([]byte(cmd)); err != nil {
		m.logger.Printf("link: wake write: %v", err)
	}
}

func countValidLines(ctx context.Context, h port, window time.Duration) int {
	deadline := time.Now().Add(window)
	buf := make([]byte, 1024)
	valid := 0
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return valid
		default:
		}
		n, err := h.Read(buf)
		if n > 0 {
			for _, s := range sentence.Frame(string(buf[:n]), time.Now()) {
				if s.Checksum == sentence.ChecksumOK {
					valid++
				}
			}
		}
		if err != nil && n == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	return valid
}

// trySwitchTo38400 runs the device's documented upgrade dance: ensure
// emission, ask for the new baud, drain the still-open old-baud handle
// until it goes quiet or starts emitting garbage, reopen the port locally
// at the new rate, resume transmission, then watch for confirming traffic
// before committing. Any failure reverts to 4800 rather than leaving the
// link in an unconfirmed state.
func (m *Manager) trySwitchTo38400(ctx context.Context, path string) (int, bool) {
	if err := m.Write(dialect.ResumeTransmission()); err != nil {
		m.logger.Printf("link: ensure emission before baud switch: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if err := m.Write(dialect.SwitchBaud(38400)); err != nil {
		m.logger.Printf("link: send switch-baud command: %v", err)
		return m.reopenFallback(path, 4800)
	}

	m.mu.Lock()
	oldHandle := m.handle
	m.mu.Unlock()
	if oldHandle != nil {
		drainUntilQuietOrGarbled(oldHandle, oldBaudQuietWatchdog)
	}

	m.mu.Lock()
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
	m.mu.Unlock()

	newHandle, err := m.open(path, 38400)
	if err != nil {
		m.logger.Printf("link: reopen at 38400 after switch: %v", err)
		return m.reopenFallback(path, 4800)
	}
	time.Sleep(500 * time.Millisecond)

	m.mu.Lock()
	m.handle = newHandle
	m.mu.Unlock()

	if err := m.Write(dialect.ResumeTransmission()); err != nil {
		m.logger.Printf("link: resume transmission after baud switch: %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	if countValidLines(ctx, newHandle, upgradeConfirmWindow) < requiredLinesAt38400 {
		m.logger.Printf("link: baud switch to 38400 unconfirmed, reverting to 4800")
		m.mu.Lock()
		m.handle = nil
		m.mu.Unlock()
		newHandle.Close()
		return m.reopenFallback(path, 4800)
	}
	return 38400, true
}

// drainUntilQuietOrGarbled keeps reading h, resetting watchdog on every
// complete read, until either watchdog elapses with no further reads (the
// device has gone quiet, applying the switch) or a read's content doesn't
// start with "$" (the device is now emitting at the new rate and the bytes
// read at the old rate are garbage). It never closes h.
func drainUntilQuietOrGarbled(h port, watchdog time.Duration) {
	buf := make([]byte, 1024)
	deadline := time.Now().Add(watchdog)
	for time.Now().Before(deadline) {
		n, err := h.Read(buf)
		if n > 0 {
			chunk := strings.TrimSpace(string(buf[:n]))
			if chunk != "" && chunk[0] != '$' {
				return
			}
			deadline = time.Now().Add(watchdog)
			continue
		}
		if err != nil {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (m *Manager) reopenFallback(path string, baud int) (int, bool) {
	h, err := m.open(path, baud)
	if err != nil {
		m.logger.Printf("link: reopen fallback at %d baud: %v", baud, err)
		return 0, false
	}
	m.mu.Lock()
	m.handle = h
	m.mu.Unlock()
	return baud, false
}

// interWriteDelay is the pause between consecutive dialect writes the
// device needs to keep up with back-to-back $PAMTC commands.
const interWriteDelay = 200 * time.Millisecond

func (m *Manager) enableRequiredAndPersisted(persisted map[string]sentence.SentenceConfig) error {
	for _, id := range sentence.RequiredIDs() {
		cfg := sentence.SentenceConfig{Enabled: true, IntervalTenths: 10}.Clamp()
		if p, ok := persisted[id]; ok {
			cfg = p
			cfg.Enabled = true
			cfg = cfg.Clamp()
		}
		if err := m.Write(dialect.ConfigureSentence(id, cfg.Enabled, cfg.IntervalTenths)); err != nil {
			return fmt.Errorf("link: enabling required sentence %s: %w", id, err)
		}
		time.Sleep(interWriteDelay)
	}
	for id, cfg := range persisted {
		if _, required := requiredSet[id]; required {
			continue
		}
		cfg = cfg.Clamp()
		if err := m.Write(dialect.ConfigureSentence(id, cfg.Enabled, cfg.IntervalTenths)); err != nil {
			return fmt.Errorf("link: restoring sentence %s: %w", id, err)
		}
		time.Sleep(interWriteDelay)
	}
	return nil
}

// Disconnect closes the serial handle, if any, and returns to the
// disconnected state.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = StatusDisconnected
	m.baud = 0
	if m.handle == nil {
		return nil
	}
	err := m.handle.Close()
	m.handle = nil
	return err
}

// ConfigureSentence sets one sentence's enabled flag and cadence.
func (m *Manager) ConfigureSentence(id string, cfg sentence.SentenceConfig) error {
	cfg = cfg.Clamp()
	return m.Write(dialect.ConfigureSentence(id, cfg.Enabled, cfg.IntervalTenths))
}

// ConfigureBatch applies several sentence configurations as one held lock,
// so neither the background reader nor a query can interleave and observe
// a mid-batch state.
func (m *Manager) ConfigureBatch(cfgs map[string]sentence.SentenceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	first := true
	for id, cfg := range cfgs {
		if !first {
			time.Sleep(batchWriteDelay)
		}
		first = false
		cfg = cfg.Clamp()
		if err := m.writeLocked(dialect.ConfigureSentence(id, cfg.Enabled, cfg.IntervalTenths)); err != nil {
			return fmt.Errorf("link: configuring %s: %w", id, err)
		}
	}
	return nil
}

// batchWriteDelay is the pause between writes within one ConfigureBatch
// call, per the device's documented 0.15-0.2s inter-write requirement.
const batchWriteDelay = 180 * time.Millisecond

// SaveToEEPROM persists the device's current sentence configuration.
func (m *Manager) SaveToEEPROM() error { return m.Write(dialect.SaveToEEPROM()) }

// LoadDefaults loads the device's factory sentence configuration into RAM.
func (m *Manager) LoadDefaults() error { return m.Write(dialect.LoadDefaults()) }

// Query asks the device for its current sentence configuration and
// collects the $PAMTR,EN,... reply burst for window, holding the lock the
// whole time so the background reader does not race the replies.
func (m *Manager) Query(ctx context.Context, window time.Duration) (map[string]sentence.SentenceConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return nil, ErrNotConnected
	}
	if err := m.writeLocked(dialect.Query()); err != nil {
		return nil, err
	}

	result := make(map[string]sentence.SentenceConfig)
	deadline := time.Now().Add(window)
	buf := make([]byte, 1024)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		n, err := m.handle.Read(buf)
		if n > 0 {
			for _, s := range sentence.Frame(string(buf[:n]), time.Now()) {
				if id, cfg, ok := dialect.ParseResponse(s); ok {
					result[id] = cfg
				}
			}
		}
		if err != nil && n == 0 {
			time.Sleep(10 * time.Millisecond)
		}
	}
	return result, nil
}

// ChangeBaud is the operator-triggered equivalent of the post-negotiation
// upgrade step: it can be invoked at any time while connected to move
// between 4800 and 38400.
func (m *Manager) ChangeBaud(ctx context.Context, newBaud int) error {
	m.mu.Lock()
	path := m.path
	connected := m.handle != nil
	m.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}

	if newBaud == 38400 {
		if _, ok := m.trySwitchTo38400(ctx, path); !ok {
			return fmt.Errorf("link: baud switch to 38400 unconfirmed")
		}
		m.mu.Lock()
		m.baud = 38400
		m.mu.Unlock()
		return nil
	}

	m.mu.Lock()
	if err := m.writeLocked(dialect.SwitchBaud(newBaud)); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.handle != nil {
		m.handle.Close()
		m.handle = nil
	}
	m.mu.Unlock()

	time.Sleep(1 * time.Second)
	h, err := m.open(path, newBaud)
	if err != nil {
		return fmt.Errorf("link: reopen at %d baud: %w", newBaud, err)
	}
	m.mu.Lock()
	m.handle = h
	m.baud = newBaud
	m.mu.Unlock()
	return nil
}
