package aggregate

import (
	"time"

	"github.com/blue-robotics/nmea-bridge/sentence"
)

// Aggregator is the single owner of a Snapshot and its History, fed one
// classified Sentence at a time by the reader.
type Aggregator struct {
	Snapshot *Snapshot
	History  *History
}

// New returns an Aggregator with empty state.
func New() *Aggregator {
	return &Aggregator{Snapshot: NewSnapshot(), History: NewHistory()}
}

// Apply parses s and folds it into the Snapshot and History if its wire
// type is one of the known sensor sentences. Parse failures of individual
// fields are swallowed; the sub-record simply keeps its previous value for
// that field. Unrecognized wire types are a no-op here; the reader tracks
// them separately as unmapped.
func (a *Aggregator) Apply(s sentence.Sentence, now time.Time) {
	switch s.Type {
	case "WIMWV":
		a.parseWIMWV(s, now)
	case "WIMWD":
		a.parseWIMWD(s, now)
	case "WIMDA":
		a.parseWIMDA(s, now)
	case "HCHDT":
		a.parseHCHDT(s, now)
	case "HCHDG", "CHDG":
		a.parseHCHDG(s, now)
	case "YXXDR":
		a.parseYXXDR(s, now)
	case "TIROT":
		a.parseTIROT(s, now)
	case "GPGGA":
		a.parseGPGGA(s, now)
	case "GPVTG":
		a.parseGPVTG(s, now)
	case "GPZDA":
		a.parseGPZDA(s, now)
	}
}
