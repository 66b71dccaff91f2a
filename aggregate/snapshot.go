// Package aggregate applies the per-sentence parsers that turn classified
// NMEA sentences into a rolling SensorSnapshot plus short-term History,
// exclusively owning both per spec §3.
package aggregate

import (
	"sync"
	"time"
)

// WindApparent is the vessel-relative wind sub-record.
type WindApparent struct {
	AngleDeg  float64
	SpeedKts  float64
	Source    string
	Timestamp time.Time
}

// WindTrue is the (vessel- and north-relative) true wind sub-record.
type WindTrue struct {
	AngleDeg          float64
	DirectionTrue     float64
	DirectionMagnetic float64
	SpeedKts          float64
	Source            string
	Timestamp         time.Time
}

// Atmosphere is the barometric/meteorological sub-record.
type Atmosphere struct {
	PressureBar float64
	AirTempC    float64
	HumidityPct float64
	DewPointC   float64
	Source      string
	Timestamp   time.Time
}

// Attitude is the vessel-orientation sub-record.
type Attitude struct {
	HeadingTrue     float64
	HeadingMagnetic float64
	Pitch           float64
	Roll            float64
	RateOfTurn      float64
	Source          string
	Timestamp       time.Time
}

// GPS is the position-fix sub-record.
type GPS struct {
	FixQuality string
	Satellites int
	Altitude   float64
	Latitude   float64
	Longitude  float64
	CourseTrue float64
	SpeedKts   float64
	Source     string
	Timestamp  time.Time
}

// TimeInfo is the device-reported UTC time sub-record.
type TimeInfo struct {
	UTC       time.Time
	Source    string
	Timestamp time.Time
}

// attitudeSourcePriority ranks which sentence is allowed to claim
// Attitude.Source: a lower-priority sentence may still update its own
// fields but never demotes the recorded source.
var attitudeSourcePriority = map[string]int{
	"HCHDT": 4,
	"YXXDR": 3,
	"HCHDG": 2,
	"CHDG":  2,
	"TIROT": 1,
}

var gpsSourcePriority = map[string]int{
	"GPGGA": 2,
	"GPVTG": 1,
}

// Snapshot is the dashboard's current-value view, one coarse lock guarding
// all six sub-records per the design notes (spec §9): readers need a
// consistent view of a sub-record, not across sub-records.
type Snapshot struct {
	mu sync.RWMutex

	windApparent WindApparent
	windTrue     WindTrue
	atmosphere   Atmosphere
	attitude     Attitude
	gps          GPS
	timeInfo     TimeInfo
}

// NewSnapshot returns an empty Snapshot.
func NewSnapshot() *Snapshot { return &Snapshot{} }

// View is a consistent, lock-free copy of every sub-record, returned to
// callers such as the HTTP control surface.
type View struct {
	WindApparent WindApparent
	WindTrue     WindTrue
	Atmosphere   Atmosphere
	Attitude     Attitude
	GPS          GPS
	Time         TimeInfo
}

// View copies out all six sub-records under a single read lock.
func (s *Snapshot) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		WindApparent: s.windApparent,
		WindTrue:     s.windTrue,
		Atmosphere:   s.atmosphere,
		Attitude:     s.attitude,
		GPS:          s.gps,
		Time:         s.timeInfo,
	}
}

// Clear resets every sub-record to its zero value, used on Disconnect.
func (s *Snapshot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windApparent = WindApparent{}
	s.windTrue = WindTrue{}
	s.atmosphere = Atmosphere{}
	s.attitude = Attitude{}
	s.gps = GPS{}
	s.timeInfo = TimeInfo{}
}

func (s *Snapshot) updateWindApparent(angle, speed float64, source string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windApparent.AngleDeg = angle
	s.windApparent.SpeedKts = speed
	s.windApparent.Source = source
	s.windApparent.Timestamp = now
}

func (s *Snapshot) updateWindTrueFromMWV(angle, speed float64, source string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windTrue.AngleDeg = angle
	s.windTrue.SpeedKts = speed
	s.windTrue.Source = source
	s.windTrue.Timestamp = now
}

func (s *Snapshot) updateWindTrueFromMWD(dirTrue, dirMag, speed float64, source string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windTrue.DirectionTrue = dirTrue
	s.windTrue.DirectionMagnetic = dirMag
	s.windTrue.SpeedKts = speed
	s.windTrue.Source = source
	s.windTrue.Timestamp = now
}

func (s *Snapshot) updateAtmosphere(update func(*Atmosphere), source string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.atmosphere)
	s.atmosphere.Source = source
	s.atmosphere.Timestamp = now
}

// applyAttitude lets a parser write its own fields unconditionally while
// gating the shared Source label on priority (spec §4.6).
func (s *Snapshot) applyAttitude(update func(*Attitude), source string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.attitude)
	if attitudeSourcePriority[source] >= attitudeSourcePriority[s.attitude.Source] {
		s.attitude.Source = source
	}
	s.attitude.Timestamp = now
}

func (s *Snapshot) applyGPS(update func(*GPS), source string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.gps)
	if gpsSourcePriority[source] >= gpsSourcePriority[s.gps.Source] {
		s.gps.Source = source
	}
	s.gps.Timestamp = now
}

func (s *Snapshot) updateTime(utc time.Time, source string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeInfo.UTC = utc
	s.timeInfo.Source = source
	s.timeInfo.Timestamp = now
}
