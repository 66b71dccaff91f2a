// Package sentence implements the NMEA 0183 data model shared by the rest
// of the bridge: a verified Sentence, the framer/checksum algorithm that
// produces one from a raw serial chunk, and the static registry of sentence
// ids the Airmar WX-series device understands.
package sentence

import "time"

// ChecksumOutcome classifies the result of verifying a candidate line's
// trailing `*hh` checksum.
type ChecksumOutcome uint8

const (
	// ChecksumOK means the declared checksum matched the computed XOR.
	ChecksumOK ChecksumOutcome = iota
	// ChecksumMismatch means a checksum was present but did not match.
	ChecksumMismatch
	// ChecksumMissing means the candidate line carried no `*hh` suffix.
	ChecksumMissing
)

func (o ChecksumOutcome) String() string {
	switch o {
	case ChecksumOK:
		return "ok"
	case ChecksumMismatch:
		return "mismatch"
	case ChecksumMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Sentence is a framed NMEA 0183 line. It exists whether or not its
// checksum verified: callers inspect Checksum to decide what to trust.
type Sentence struct {
	// Raw is the full line as framed, including the leading `$` and any
	// trailing `*hh` checksum, without a line terminator.
	Raw string
	// Type is the wire talker+type code, e.g. "HCHDG", "WIMWV", "YXXDR".
	Type string
	// Fields are the comma-split fields of the line, Fields[0] being the
	// talker+type (without the leading `$`).
	Fields []string
	// Received is the monotonic receive timestamp assigned by the reader.
	Received time.Time
	// Checksum is the verification outcome for this line.
	Checksum ChecksumOutcome
}

// Field returns Fields[i], or "" if i is out of range. NMEA lines regularly
// omit trailing fields, so parsers index defensively through this helper.
func (s Sentence) Field(i int) string {
	if i < 0 || i >= len(s.Fields) {
		return ""
	}
	return s.Fields[i]
}
