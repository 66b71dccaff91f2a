package sentence

import (
	"fmt"
	"strings"
	"time"
)

// lineEndingReplacer collapses every CR/LF variant onto a single separator before
// a chunk is split into candidate lines. A device's USB-serial driver is
// free to hand back CRLF, bare LF, or (rarely observed) bare CR.
var lineEndingReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Frame splits a raw chunk read from the serial port into candidate NMEA
// lines and verifies each one's checksum. It must tolerate three
// pathologies seen in the field: sentences concatenated with no
// terminator, sentences separated by CR/LF, and truncated prefixes or
// suffixes with no terminator at all. See spec §4.1.
//
// Every candidate line becomes a Sentence regardless of checksum outcome;
// callers that only want verified data filter on Checksum themselves.
func Frame(chunk string, now time.Time) []Sentence {
	normalized := lineEndingReplacer.Replace(chunk)
	fragments := strings.Split(normalized, "$")

	sentences := make([]Sentence, 0, len(fragments))
	for _, frag := range fragments {
		candidate := strings.TrimRight(frag, "\n")
		if candidate == "" || !strings.Contains(candidate, ",") {
			continue
		}
		typeField := candidate
		if idx := strings.IndexByte(candidate, ','); idx >= 0 {
			typeField = candidate[:idx]
		} else if idx := strings.IndexByte(candidate, '*'); idx >= 0 {
			typeField = candidate[:idx]
		}
		if WireType(typeField) == "" {
			continue
		}
		sentences = append(sentences, parseCandidate(candidate, now))
	}
	return sentences
}

func parseCandidate(body string, now time.Time) Sentence {
	line := "$" + body

	payload := body
	outcome := ChecksumMissing
	if starIdx := strings.IndexByte(body, '*'); starIdx >= 0 {
		payload = body[:starIdx]
		suffix := body[starIdx+1:]
		if declared, ok := firstTwoHex(suffix); ok {
			if strings.EqualFold(declared, xorChecksum(payload)) {
				outcome = ChecksumOK
			} else {
				outcome = ChecksumMismatch
			}
		} else {
			outcome = ChecksumMismatch
		}
	}

	fields := strings.Split(payload, ",")
	return Sentence{
		Raw:      line,
		Type:     WireType(fields[0]),
		Fields:   fields,
		Received: now,
		Checksum: outcome,
	}
}

// WireType extracts the talker+type code from a sentence's first field
// (already stripped of its leading `$`, if any): the leading run of
// uppercase ASCII letters. This rule tolerates a truncated prior line
// leaving a fragment like "HCHDG31.0" whose type is still "HCHDG".
func WireType(firstField string) string {
	s := strings.TrimPrefix(firstField, "$")
	end := 0
	for end < len(s) && s[end] >= 'A' && s[end] <= 'Z' {
		end++
	}
	return s[:end]
}

func firstTwoHex(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	for _, c := range s[:2] {
		if !isHexDigit(c) {
			return "", false
		}
	}
	return s[:2], true
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

// xorChecksum computes the NMEA checksum: XOR of every byte's 8-bit ASCII
// value between the leading `$` (exclusive) and the `*` (exclusive).
func xorChecksum(payload string) string {
	var c byte
	for i := 0; i < len(payload); i++ {
		c ^= payload[i]
	}
	return fmt.Sprintf("%02X", c)
}
