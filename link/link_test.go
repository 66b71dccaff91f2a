package link

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/blue-robotics/nmea-bridge/sentence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort is a minimal in-memory ReadWriteCloser standing in for the
// serial device: Read replays canned chunks at a steady drip so
// time-windowed negotiation logic has something to observe, Write records
// what was sent.
type fakePort struct {
	mu      sync.Mutex
	chunks  [][]byte
	idx     int
	writes  []string
	closed  bool
	onWrite func(s string)
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.chunks) {
		time.Sleep(5 * time.Millisecond)
		return 0, nil
	}
	n := copy(p, f.chunks[f.idx])
	f.idx++
	time.Sleep(5 * time.Millisecond)
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, string(p))
	if f.onWrite != nil {
		f.onWrite(string(p))
	}
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func validChunk(n int) []byte {
	var b []byte
	for i := 0; i < n; i++ {
		b = append(b, []byte("$GPZDA,120000,01,08,2026,00,00*44\r\n")...)
	}
	return b
}

func TestOrderedCandidates(t *testing.T) {
	assert.Equal(t, []int{4800, 38400}, orderedCandidates(0))
	assert.Equal(t, []int{38400, 4800}, orderedCandidates(38400))
	assert.Equal(t, []int{4800, 38400}, orderedCandidates(4800))
}

func TestManagerConnectUpgradesTo38400WhenConfirmed(t *testing.T) {
	m := New(nil)
	opens := 0
	m.open = func(path string, baud int) (port, error) {
		opens++
		p := &fakePort{}
		if baud == 4800 {
			p.chunks = [][]byte{validChunk(6)}
		} else {
			p.chunks = [][]byte{validChunk(1)}
		}
		return p, nil
	}

	err := m.Connect(context.Background(), "/dev/ttyUSB0", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, m.Status())
	assert.Equal(t, 38400, m.Baud())
}

func TestManagerConnectRetriesWhenUpgradeUnconfirmed(t *testing.T) {
	m := New(nil)
	m.open = func(path string, baud int) (port, error) {
		p := &fakePort{}
		if baud == 4800 {
			p.chunks = [][]byte{validChunk(6)}
		}
		return p, nil
	}

	// 4800 always negotiates successfully but the fake port never
	// confirms the 38400 upgrade, so every attempt must fall back into
	// the outer negotiation loop instead of settling for a connected
	// session at 4800; once the attempt budget is exhausted, Connect
	// fails outright.
	err := m.Connect(context.Background(), "/dev/ttyUSB0", 0, nil)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, m.Status())
	assert.Equal(t, 0, m.Baud())
}

func TestManagerConnectFailsAfterExhaustingAttempts(t *testing.T) {
	m := New(nil)
	m.open = func(path string, baud int) (port, error) {
		return &fakePort{}, nil // never produces valid lines
	}

	err := m.Connect(context.Background(), "/dev/ttyUSB0", 0, nil)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, m.Status())
}

func TestManagerConfigureSentenceWritesDialectCommand(t *testing.T) {
	m := New(nil)
	fp := &fakePort{}
	m.open = func(path string, baud int) (port, error) { return fp, nil }
	m.handle = fp
	m.status = StatusConnected

	err := m.ConfigureSentence("ZDA", sentence.SentenceConfig{Enabled: true, IntervalTenths: 10})
	require.NoError(t, err)
	require.Len(t, fp.writes, 1)
	assert.Equal(t, "$PAMTC,EN,ZDA,1,10\r\n", fp.writes[0])
}

func TestManagerConfigureSentenceWithoutConnectionFails(t *testing.T) {
	m := New(nil)
	err := m.ConfigureSentence("ZDA", sentence.SentenceConfig{Enabled: true, IntervalTenths: 10})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestManagerQueryParsesReplyBurst(t *testing.T) {
	m := New(nil)
	fp := &fakePort{
		chunks: [][]byte{[]byte("$PAMTR,EN,ZDA,1,10*00\r\n$PAMTR,EN,GGA,0,50*00\r\n")},
	}
	m.handle = fp
	m.status = StatusConnected

	cfgs, err := m.Query(context.Background(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, sentence.SentenceConfig{Enabled: true, IntervalTenths: 10}, cfgs["ZDA"])
	assert.Equal(t, sentence.SentenceConfig{Enabled: false, IntervalTenths: 50}, cfgs["GGA"])
	require.Len(t, fp.writes, 1)
	assert.Equal(t, "$PAMTC,EN,Q\r\n", fp.writes[0])
}

func TestManagerDisconnectClosesHandle(t *testing.T) {
	m := New(nil)
	fp := &fakePort{}
	m.handle = fp
	m.status = StatusConnected

	require.NoError(t, m.Disconnect())
	assert.True(t, fp.closed)
	assert.Equal(t, StatusDisconnected, m.Status())
	assert.Equal(t, 0, m.Baud())
}

func TestManagerReadChunkWithoutConnectionReturnsEOF(t *testing.T) {
	m := New(nil)
	_, err := m.ReadChunk(make([]byte, 16))
	assert.ErrorIs(t, err, io.EOF)
}

func TestManagerConfigureBatchAppliesAll(t *testing.T) {
	m := New(nil)
	fp := &fakePort{}
	m.handle = fp
	m.status = StatusConnected

	err := m.ConfigureBatch(map[string]sentence.SentenceConfig{
		"ZDA": {Enabled: true, IntervalTenths: 10},
		"GGA": {Enabled: false, IntervalTenths: 20},
	})
	require.NoError(t, err)
	assert.Len(t, fp.writes, 2)
}
