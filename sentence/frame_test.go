package sentence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSplitsMultipleSentencesInOneChunk(t *testing.T) {
	now := time.Unix(1767225600, 0).UTC()
	got := Frame("$GPZDA,1*XX\r\n$PAMTX,1\r\n", now)
	require.Len(t, got, 2)
	assert.Equal(t, "GPZDA", got[0].Type)
	assert.Equal(t, []string{"GPZDA", "1"}, got[0].Fields)
	assert.Equal(t, "PAMTX", got[1].Field(0))
}

func TestFrameSkipsGarbageBeforeFirstDollar(t *testing.T) {
	got := Frame("garbage$A,1*XX", time.Now())
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Type)
}

func TestFrameTruncatedPrefixKeepsOnlyWireTypeLetters(t *testing.T) {
	// a dropped leading byte or two still yields a usable wire type,
	// since WireType only reads the leading letter run.
	got := Frame("$HCHDG31.0,M*00", time.Now())
	require.Len(t, got, 1)
	assert.Equal(t, "HCHDG", got[0].Type)
}

func TestFrameDropsFragmentsWithoutComma(t *testing.T) {
	got := Frame("$noise\r\n$GPZDA,1*XX", time.Now())
	require.Len(t, got, 1)
	assert.Equal(t, "GPZDA", got[0].Type)
}

func TestFrameChecksumOutcomes(t *testing.T) {
	payload := "GPZDA,120000,01,08,2026"
	valid := "$" + payload + "*" + xorChecksum(payload)

	got := Frame(valid, time.Now())
	require.Len(t, got, 1)
	assert.Equal(t, ChecksumOK, got[0].Checksum)

	mismatched := Frame("$"+payload+"*FF", time.Now())
	require.Len(t, mismatched, 1)
	assert.Equal(t, ChecksumMismatch, mismatched[0].Checksum)

	missing := Frame("$"+payload, time.Now())
	require.Len(t, missing, 1)
	assert.Equal(t, ChecksumMissing, missing[0].Checksum)
}

func TestFrameHandlesBareCROnly(t *testing.T) {
	got := Frame("$A,1*XX\r$B,2*YY\r", time.Now())
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Type)
	assert.Equal(t, "B", got[1].Type)
}

func TestWireType(t *testing.T) {
	assert.Equal(t, "GPZDA", WireType("$GPZDA"))
	assert.Equal(t, "HCHDG", WireType("HCHDG31.0"))
	assert.Equal(t, "", WireType("123"))
}
