// Package udpfanout republishes raw sentences to a fixed UDP listener so an
// external dashboard can tail the feed without going through the HTTP
// control surface.
package udpfanout

import (
	"log"
	"net"
	"sync"

	"github.com/blue-robotics/nmea-bridge/sentence"
)

// defaultAddress is the host-side listener the bridge's container talks to.
const defaultAddress = "host.docker.internal:27000"

func dialUDP(address string) (net.Conn, error) {
	return net.Dial("udp", address)
}

// FanOut is a best-effort UDP republisher. It owns one outbound socket,
// recreated whenever a write fails, and only republishes while streaming
// is turned on.
type FanOut struct {
	mu      sync.Mutex
	address string
	conn    net.Conn
	dial    func(address string) (net.Conn, error)
	logger  *log.Logger

	streaming        bool
	streamedMessages uint64

	selectedMu sync.Mutex
	selected   map[string]struct{} // nil means "every type"
}

// New returns a stopped FanOut pointed at the default listener address.
func New(logger *log.Logger) *FanOut {
	if logger == nil {
		logger = log.Default()
	}
	return &FanOut{address: defaultAddress, dial: dialUDP, logger: logger}
}

// SetAddress overrides the destination, mainly for tests.
func (f *FanOut) SetAddress(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.address = address
}

// Start turns on streaming. The streamed-message counter only resets on
// the not-streaming-to-streaming transition, so calling Start while
// already streaming is a no-op.
func (f *FanOut) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streaming {
		return
	}
	f.streaming = true
	f.streamedMessages = 0
}

// Stop turns off streaming. Publish becomes a no-op until Start again.
func (f *FanOut) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streaming = false
}

// Streaming reports whether Publish is currently forwarding sentences.
func (f *FanOut) Streaming() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streaming
}

// StreamedMessages returns the count since the last Start transition.
func (f *FanOut) StreamedMessages() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamedMessages
}

// SetSelectedTypes restricts fan-out to the given wire types. A nil slice
// clears the filter and forwards every type.
func (f *FanOut) SetSelectedTypes(types []string) {
	f.selectedMu.Lock()
	defer f.selectedMu.Unlock()
	if types == nil {
		f.selected = nil
		return
	}
	m := make(map[string]struct{}, len(types))
	for _, t := range types {
		m[t] = struct{}{}
	}
	f.selected = m
}

func (f *FanOut) isSelected(wireType string) bool {
	f.selectedMu.Lock()
	defer f.selectedMu.Unlock()
	if f.selected == nil {
		return true
	}
	_, ok := f.selected[wireType]
	return ok
}

// Publish sends s.Raw plus a trailing newline to the configured listener,
// if streaming is on and the type passes the selected-types filter. A
// write failure closes and recreates the socket for the next call, but the
// failing datagram itself is dropped, not retried.
func (f *FanOut) Publish(s sentence.Sentence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.streaming || !f.isSelected(s.Type) {
		return
	}

	payload := []byte(s.Raw + "\n")
	if f.conn == nil {
		conn, err := f.dial(f.address)
		if err != nil {
			f.logger.Printf("udpfanout: dial %s: %v", f.address, err)
			return
		}
		f.conn = conn
	}

	if _, err := f.conn.Write(payload); err != nil {
		f.logger.Printf("udpfanout: write failed, dropping datagram and recreating socket: %v", err)
		f.conn.Close()
		f.conn = nil

		conn, dialErr := f.dial(f.address)
		if dialErr != nil {
			f.logger.Printf("udpfanout: redial %s: %v", f.address, dialErr)
			return
		}
		f.conn = conn
		return
	}
	f.streamedMessages++
}

// Close releases the outbound socket, if any.
func (f *FanOut) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}
