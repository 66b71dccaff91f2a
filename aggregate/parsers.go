package aggregate

import (
	"strconv"
	"time"

	"github.com/blue-robotics/nmea-bridge/sentence"
)

// fixQualityNames maps GPGGA's field 6 into the dashboard's human labels.
var fixQualityNames = map[int]string{
	0: "Invalid",
	1: "GPS Fix",
	2: "DGPS",
	4: "RTK Fixed",
	5: "RTK Float",
}

func parseFloatField(s sentence.Sentence, i int) (float64, bool) {
	f := s.Field(i)
	if f == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseIntField(s sentence.Sentence, i int) (int, bool) {
	f := s.Field(i)
	if f == "" {
		return 0, false
	}
	v, err := strconv.Atoi(f)
	if err != nil {
		return 0, false
	}
	return v, true
}

func decodeLatLon(s sentence.Sentence, valueIdx, hemiIdx int) (float64, bool) {
	raw, hemi := s.Field(valueIdx), s.Field(hemiIdx)
	if raw == "" || hemi == "" {
		return 0, false
	}
	v, err := sentence.DecodeCoordinate(raw, hemi)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseWIMWV handles $WIMWV,<angle>,<R|T>,<speed>,<N>,<A|V>*hh. Only status
// "A" (data valid) readings are applied.
func (a *Aggregator) parseWIMWV(s sentence.Sentence, now time.Time) {
	if s.Field(5) != "A" {
		return
	}
	angle, ok := parseFloatField(s, 1)
	if !ok {
		return
	}
	speed, ok := parseFloatField(s, 3)
	if !ok || s.Field(4) != "N" {
		return
	}
	switch s.Field(2) {
	case "R":
		a.Snapshot.updateWindApparent(angle, speed, "WIMWV", now)
		a.History.Append(SeriesWindApparentAngle, now, angle)
		a.History.Append(SeriesWindApparentSpeed, now, speed)
	case "T":
		a.Snapshot.updateWindTrueFromMWV(angle, speed, "WIMWV", now)
		a.History.Append(SeriesWindTrueSpeed, now, speed)
	}
}

// parseWIMWD handles $WIMWD,<true>,T,<mag>,M,<speedKts>,N,<speedMs>,M*hh.
func (a *Aggregator) parseWIMWD(s sentence.Sentence, now time.Time) {
	dirTrue, ok1 := parseFloatField(s, 1)
	dirMag, ok2 := parseFloatField(s, 3)
	speed, ok3 := parseFloatField(s, 5)
	if !ok1 || !ok2 || !ok3 {
		return
	}
	a.Snapshot.updateWindTrueFromMWD(dirTrue, dirMag, speed, "WIMWD", now)
	a.History.Append(SeriesWindTrueDirection, now, dirTrue)
	a.History.Append(SeriesWindTrueSpeed, now, speed)
}

// parseWIMDA handles $WIMDA,...; pressure (bar) is field 3, air temperature
// (C) field 5, relative humidity (%) field 9, dew point (C) field 11. Any
// subset that parses is applied; the rest retain their previous value.
func (a *Aggregator) parseWIMDA(s sentence.Sentence, now time.Time) {
	pressure, okP := parseFloatField(s, 3)
	temp, okT := parseFloatField(s, 5)
	humidity, okH := parseFloatField(s, 9)
	dewPoint, okD := parseFloatField(s, 11)
	if !okP && !okT && !okH && !okD {
		return
	}
	a.Snapshot.updateAtmosphere(func(at *Atmosphere) {
		if okP {
			at.PressureBar = pressure
		}
		if okT {
			at.AirTempC = temp
		}
		if okH {
			at.HumidityPct = humidity
		}
		if okD {
			at.DewPointC = dewPoint
		}
	}, "WIMDA", now)
	if okT {
		a.History.Append(SeriesTemperature, now, temp)
	}
	if okH {
		a.History.Append(SeriesHumidity, now, humidity)
	}
	if okP {
		a.History.Append(SeriesPressure, now, pressure)
	}
}

// parseHCHDT handles $HCHDT,<heading>,T*hh.
func (a *Aggregator) parseHCHDT(s sentence.Sentence, now time.Time) {
	heading, ok := parseFloatField(s, 1)
	if !ok {
		return
	}
	a.Snapshot.applyAttitude(func(at *Attitude) { at.HeadingTrue = heading }, "HCHDT", now)
	a.History.Append(SeriesHeading, now, heading)
}

// parseHCHDG handles $HCHDG,<heading>,...*hh (also seen as talker-less
// $CHDG,...).
func (a *Aggregator) parseHCHDG(s sentence.Sentence, now time.Time) {
	heading, ok := parseFloatField(s, 1)
	if !ok {
		return
	}
	a.Snapshot.applyAttitude(func(at *Attitude) { at.HeadingMagnetic = heading }, s.Type, now)
	a.History.Append(SeriesHeading, now, heading)
}

// parseYXXDR walks $YXXDR's repeating (type, value, unit, name) groups,
// applying the ones the dialect documents (pitch and roll).
func (a *Aggregator) parseYXXDR(s sentence.Sentence, now time.Time) {
	fields := s.Fields
	for i := 1; i+3 < len(fields); i += 4 {
		value, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			continue
		}
		switch fields[i+3] {
		case "PTCH":
			a.Snapshot.applyAttitude(func(at *Attitude) { at.Pitch = value }, "YXXDR", now)
			a.History.Append(SeriesPitch, now, value)
		case "ROLL":
			a.Snapshot.applyAttitude(func(at *Attitude) { at.Roll = value }, "YXXDR", now)
			a.History.Append(SeriesRoll, now, value)
		}
	}
}

// parseTIROT handles $TIROT,<rate>,<A|V>*hh. Only status "A" readings are
// applied.
func (a *Aggregator) parseTIROT(s sentence.Sentence, now time.Time) {
	if s.Field(2) != "A" {
		return
	}
	rot, ok := parseFloatField(s, 1)
	if !ok {
		return
	}
	a.Snapshot.applyAttitude(func(at *Attitude) { at.RateOfTurn = rot }, "TIROT", now)
	a.History.Append(SeriesRateOfTurn, now, rot)
}

// parseGPGGA handles $GPGGA fix data: field 6 fix quality, field 7
// satellite count, field 9 altitude, fields 2-5 position.
func (a *Aggregator) parseGPGGA(s sentence.Sentence, now time.Time) {
	qualityCode, ok := parseIntField(s, 6)
	if !ok {
		return
	}
	quality, known := fixQualityNames[qualityCode]
	if !known {
		quality = "Unknown"
	}
	satellites, okSat := parseIntField(s, 7)
	altitude, okAlt := parseFloatField(s, 9)
	lat, okLat := decodeLatLon(s, 2, 3)
	lon, okLon := decodeLatLon(s, 4, 5)

	a.Snapshot.applyGPS(func(g *GPS) {
		g.FixQuality = quality
		if okSat {
			g.Satellites = satellites
		}
		if okAlt {
			g.Altitude = altitude
		}
		if okLat {
			g.Latitude = lat
		}
		if okLon {
			g.Longitude = lon
		}
	}, "GPGGA", now)
	if okSat {
		a.History.Append(SeriesSatellites, now, float64(satellites))
	}
}

// parseGPVTG handles $GPVTG course/speed over ground: field 1 true course,
// field 5 speed in knots.
func (a *Aggregator) parseGPVTG(s sentence.Sentence, now time.Time) {
	course, okCourse := parseFloatField(s, 1)
	speed, okSpeed := parseFloatField(s, 5)
	if !okCourse && !okSpeed {
		return
	}
	a.Snapshot.applyGPS(func(g *GPS) {
		if okCourse {
			g.CourseTrue = course
		}
		if okSpeed {
			g.SpeedKts = speed
		}
	}, "GPVTG", now)
	if okSpeed {
		a.History.Append(SeriesGPSSpeed, now, speed)
	}
	if okCourse {
		a.History.Append(SeriesGPSCourse, now, course)
	}
}

// parseGPZDA handles $GPZDA,<hhmmss[.ss]>,<day>,<month>,<year>,...*hh.
func (a *Aggregator) parseGPZDA(s sentence.Sentence, now time.Time) {
	t, ok := parseZDATime(s.Field(1), s.Field(2), s.Field(3), s.Field(4))
	if !ok {
		return
	}
	a.Snapshot.updateTime(t, "GPZDA", now)
}

func parseZDATime(hhmmss, day, month, year string) (time.Time, bool) {
	if len(hhmmss) < 6 {
		return time.Time{}, false
	}
	hh, err1 := strconv.Atoi(hhmmss[0:2])
	mm, err2 := strconv.Atoi(hhmmss[2:4])
	ss, err3 := strconv.Atoi(hhmmss[4:6])
	d, err4 := strconv.Atoi(day)
	mo, err5 := strconv.Atoi(month)
	y, err6 := strconv.Atoi(year)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(mo), d, hh, mm, ss, 0, time.UTC), true
}
