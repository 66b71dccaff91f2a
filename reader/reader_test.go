package reader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blue-robotics/nmea-bridge/sentence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed sequence of ReadChunk results, then blocks
// (returning 0, nil repeatedly) until the test cancels the context.
type scriptedSource struct {
	mu    sync.Mutex
	steps []func(buf []byte) (int, error)
	idx   int
}

func (s *scriptedSource) ReadChunk(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.steps) {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	step := s.steps[s.idx]
	s.idx++
	return step(buf)
}

func chunk(data string) func([]byte) (int, error) {
	return func(buf []byte) (int, error) { return copy(buf, data), nil }
}

func readErr(err error) func([]byte) (int, error) {
	return func(buf []byte) (int, error) { return 0, err }
}

type recordingSink struct {
	mu   sync.Mutex
	seen []sentence.Sentence
}

func (r *recordingSink) Apply(s sentence.Sentence, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, s)
}

type recordingFanOut struct {
	mu   sync.Mutex
	seen []sentence.Sentence
}

func (f *recordingFanOut) Publish(s sentence.Sentence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, s)
}

func runUntilSeen(t *testing.T, src *scriptedSource, want int) (*recordingSink, *recordingFanOut, *Reader) {
	t.Helper()
	sink := &recordingSink{}
	fanout := &recordingFanOut{}
	r := New(src, sink, fanout, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(900 * time.Millisecond)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		n := len(sink.seen)
		sink.mu.Unlock()
		if n >= want {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
	return sink, fanout, r
}

func TestReaderFeedsSinkAndFanOut(t *testing.T) {
	src := &scriptedSource{steps: []func([]byte) (int, error){
		chunk("$GPZDA,120000,01,08,2026,00,00*63\r\n"),
	}}
	sink, fanout, r := runUntilSeen(t, src, 1)

	sink.mu.Lock()
	require.Len(t, sink.seen, 1)
	assert.Equal(t, "GPZDA", sink.seen[0].Type)
	sink.mu.Unlock()

	fanout.mu.Lock()
	require.Len(t, fanout.seen, 1)
	fanout.mu.Unlock()

	assert.Contains(t, r.SelectedTypes(), "GPZDA")
}

func TestReaderHealthCountsChecksumOutcomes(t *testing.T) {
	src := &scriptedSource{steps: []func([]byte) (int, error){
		chunk("$GPZDA,120000,01,08,2026,00,00*FF\r\n"),
	}}
	_, _, r := runUntilSeen(t, src, 1)

	h := r.Health()
	assert.Equal(t, uint64(1), h.ChecksumMismatch)
}

func TestReaderCountsUnmappedSentence(t *testing.T) {
	src := &scriptedSource{steps: []func([]byte) (int, error){
		chunk("$ZZFOO,1,2,3*00\r\n"),
	}}
	_, _, r := runUntilSeen(t, src, 1)

	h := r.Health()
	assert.Equal(t, uint64(1), h.UnmappedMessages)
	assert.Equal(t, "ZZFOO", h.LastUnmappedType)
}

func TestReaderClassifiesNoDataErrorSeparatelyFromOtherErrors(t *testing.T) {
	assert.True(t, isNoDataError(errors.New("resource temporarily unavailable")))
	assert.False(t, isNoDataError(errors.New("i/o timeout")))
	assert.False(t, isNoDataError(errors.New("device disconnected")))
}

func TestReaderClassifiesTimeoutErrorSeparatelyFromNoData(t *testing.T) {
	assert.True(t, isReadTimeoutError(errors.New("i/o timeout")))
	assert.True(t, isReadTimeoutError(context.DeadlineExceeded))
	assert.False(t, isReadTimeoutError(errors.New("resource temporarily unavailable")))
}

func TestReaderCountsReadTimeoutsSeparately(t *testing.T) {
	src := &scriptedSource{steps: []func([]byte) (int, error){
		readErr(errors.New("i/o timeout")),
		chunk("$GPZDA,120000,01,08,2026,00,00*63\r\n"),
	}}
	_, _, r := runUntilSeen(t, src, 1)

	h := r.Health()
	assert.Equal(t, uint64(1), h.ReadTimeouts)
}

func TestReaderStartStopJoinsWithinTimeout(t *testing.T) {
	src := &scriptedSource{steps: []func([]byte) (int, error){
		chunk("$GPZDA,120000,01,08,2026,00,00*63\r\n"),
	}}
	sink := &recordingSink{}
	r := New(src, sink, nil, nil)

	r.Start()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		n := len(sink.seen)
		sink.mu.Unlock()
		if n >= 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	start := time.Now()
	r.Stop()
	assert.Less(t, time.Since(start), time.Second)

	sink.mu.Lock()
	seenAtStop := len(sink.seen)
	sink.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, seenAtStop, len(sink.seen))
}

func TestReaderRecentBufferIsMostRecentFirst(t *testing.T) {
	b := NewRecentBuffer(2)
	b.Push(sentence.Sentence{Type: "A"})
	b.Push(sentence.Sentence{Type: "B"})
	b.Push(sentence.Sentence{Type: "C"})

	items := b.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "C", items[0].Type)
	assert.Equal(t, "B", items[1].Type)
}

func TestReaderSurvivesOtherReadErrors(t *testing.T) {
	src := &scriptedSource{steps: []func([]byte) (int, error){
		readErr(errors.New("device disconnected")),
		chunk("$GPZDA,120000,01,08,2026,00,00*63\r\n"),
	}}
	_, _, r := runUntilSeen(t, src, 1)

	h := r.Health()
	assert.Equal(t, uint64(1), h.OtherReadExceptions)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func TestReaderTeesRawSentencesToAttachedLog(t *testing.T) {
	src := &scriptedSource{steps: []func([]byte) (int, error){
		chunk("$GPZDA,120000,01,08,2026,00,00*63\r\n"),
	}}
	sink := &recordingSink{}
	r := New(src, sink, nil, nil)
	var log lockedBuffer
	r.SetRawLog(&log)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { r.Run(ctx); close(done) }()
	<-done

	assert.Contains(t, log.String(), "$GPZDA,120000,01,08,2026,00,00*63")
}
