package reader

import (
	"sync"
	"time"
)

// Health is the reader's self-reported diagnostic counters, exposed to the
// HTTP control surface so an operator can see whether the link is actually
// producing usable data.
type Health struct {
	mu sync.Mutex

	lastGoodNMEA         time.Time
	lastReadAttempt      time.Time
	lastRawLen           int
	lastInWaiting        int
	readTimeouts         uint64
	emptyReads           uint64
	noDataExceptions     uint64
	otherReadExceptions  uint64
	checksumMismatch     uint64
	checksumMissing      uint64
	unmappedMessages     uint64
	lastUnmappedType     string
}

// HealthSnapshot is a consistent point-in-time copy of Health.
type HealthSnapshot struct {
	LastGoodNMEA        time.Time
	LastReadAttempt     time.Time
	LastRawLen          int
	LastInWaiting       int
	ReadTimeouts        uint64
	EmptyReads          uint64
	NoDataExceptions    uint64
	OtherReadExceptions uint64
	ChecksumMismatch    uint64
	ChecksumMissing     uint64
	UnmappedMessages    uint64
	LastUnmappedType    string
}

func (h *Health) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		LastGoodNMEA:        h.lastGoodNMEA,
		LastReadAttempt:     h.lastReadAttempt,
		LastRawLen:          h.lastRawLen,
		LastInWaiting:       h.lastInWaiting,
		ReadTimeouts:        h.readTimeouts,
		EmptyReads:          h.emptyReads,
		NoDataExceptions:    h.noDataExceptions,
		OtherReadExceptions: h.otherReadExceptions,
		ChecksumMismatch:    h.checksumMismatch,
		ChecksumMissing:     h.checksumMissing,
		UnmappedMessages:    h.unmappedMessages,
		LastUnmappedType:    h.lastUnmappedType,
	}
}

func (h *Health) recordAttempt(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastReadAttempt = now
}

func (h *Health) recordRawLen(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRawLen = n
	h.lastInWaiting = n
}

func (h *Health) recordEmptyRead() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emptyReads++
}

func (h *Health) recordReadTimeout() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readTimeouts++
}

func (h *Health) recordNoData() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.noDataExceptions++
}

func (h *Health) recordOtherError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.otherReadExceptions++
}

func (h *Health) recordChecksumMismatch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checksumMismatch++
}

func (h *Health) recordChecksumMissing() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checksumMissing++
}

func (h *Health) recordGoodNMEA(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastGoodNMEA = now
}

func (h *Health) recordUnmapped(wireType string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unmappedMessages++
	h.lastUnmappedType = wireType
}
