// Package dialect encodes and decodes the Airmar device's proprietary
// PAMT command family: $PAMTX toggles periodic sentence emission, $PAMTC
// is a command sent to the device, and $PAMTR is the device's reply.
package dialect

import (
	"fmt"
	"strconv"

	"github.com/blue-robotics/nmea-bridge/sentence"
)

const terminator = "\r\n"

// StopTransmission stops all periodic sentence transmission.
func StopTransmission() string { return "$PAMTX" + terminator }

// ResumeTransmission resumes periodic sentence transmission.
func ResumeTransmission() string { return "$PAMTX,1" + terminator }

// SwitchBaud instructs the device to switch its link speed. The device
// keeps emitting at the old rate for an unspecified short interval before
// it actually switches.
func SwitchBaud(rate int) string {
	return fmt.Sprintf("$PAMTC,BAUD,%d%s", rate, terminator)
}

// ConfigureSentence enables or disables one sentence id and sets its
// cadence in tenths of a second.
func ConfigureSentence(id string, enabled bool, intervalTenths int) string {
	e := 0
	if enabled {
		e = 1
	}
	return fmt.Sprintf("$PAMTC,EN,%s,%d,%d%s", id, e, intervalTenths, terminator)
}

// Query asks the device to reply with its current sentence configuration
// as a burst of $PAMTR,EN,... lines.
func Query() string { return "$PAMTC,EN,Q" + terminator }

// SaveToEEPROM persists the device's current sentence configuration.
func SaveToEEPROM() string { return "$PAMTC,EN,S" + terminator }

// LoadDefaults loads the device's factory defaults into RAM.
func LoadDefaults() string { return "$PAMTC,EN,LD" + terminator }

// ParseResponse decodes one $PAMTR,EN,... line. Two field layouts are in
// the wild: "<id>,<enabled>,<interval>" and
// "<total>,<index>,<id>,<enabled>,<interval>". The layout is picked by
// probing for a known SentenceSpec id at the candidate position; unknown
// ids are reported as not ok.
func ParseResponse(s sentence.Sentence) (id string, cfg sentence.SentenceConfig, ok bool) {
	if s.Type != "PAMTR" || len(s.Fields) < 2 || s.Fields[1] != "EN" {
		return "", sentence.SentenceConfig{}, false
	}
	rest := s.Fields[2:]

	if len(rest) >= 3 {
		if _, known := sentence.Lookup(rest[0]); known {
			return decodeTail(rest[0], rest[1], rest[2])
		}
	}
	if len(rest) >= 5 {
		if _, known := sentence.Lookup(rest[2]); known {
			return decodeTail(rest[2], rest[3], rest[4])
		}
	}
	return "", sentence.SentenceConfig{}, false
}

func decodeTail(id, enabledField, intervalField string) (string, sentence.SentenceConfig, bool) {
	interval, err := strconv.Atoi(intervalField)
	if err != nil {
		return "", sentence.SentenceConfig{}, false
	}
	return id, sentence.SentenceConfig{Enabled: enabledField == "1", IntervalTenths: interval}, true
}
