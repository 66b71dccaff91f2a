package sentence

// SentenceSpec is an immutable registry entry describing one sentence the
// Airmar WX-series device can be told to emit. ID is the 3-letter spec
// code the device's $PAMTC dialect addresses it by (e.g. "MWV" variants
// are disambiguated as "MWVR"/"MWVT", "XDR" variants as "XDRA".."XDRW").
type SentenceSpec struct {
	ID                    string
	HumanName             string
	Description           string
	DefaultEnabled        bool
	DefaultIntervalTenths int
	// Required sentences are force-enabled immediately after a successful
	// baud negotiation so the dashboard is always populated.
	Required bool
}

// SentenceConfig is the mutable, persisted cadence for one SentenceSpec.
type SentenceConfig struct {
	Enabled        bool
	IntervalTenths int
}

// Clamp normalizes IntervalTenths into the device's valid [1, 50] range.
func (c SentenceConfig) Clamp() SentenceConfig {
	if c.IntervalTenths < 1 {
		c.IntervalTenths = 1
	}
	if c.IntervalTenths > 50 {
		c.IntervalTenths = 50
	}
	return c
}

// Registry is the static table of the ~27 sentence ids the device
// supports. Interval is uniformly 10 tenths (1 Hz) in the reference
// configuration.
var Registry = []SentenceSpec{
	{ID: "MWVR", HumanName: "Apparent Wind", Description: "Relative wind speed and angle", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "MWVT", HumanName: "True Wind (vessel-relative)", Description: "Wind speed and angle referenced to the vessel's heading", DefaultEnabled: true, DefaultIntervalTenths: 10, Required: true},
	{ID: "MWD", HumanName: "True Wind (north-relative)", Description: "Wind speed and direction referenced to true/magnetic north", DefaultEnabled: true, DefaultIntervalTenths: 10, Required: true},
	{ID: "MDA", HumanName: "Meteorological Composite", Description: "Barometric pressure, air temperature, humidity and dew point", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "HDT", HumanName: "True Heading", Description: "Heading referenced to true north", DefaultEnabled: true, DefaultIntervalTenths: 10, Required: true},
	{ID: "HDG", HumanName: "Magnetic Heading", Description: "Heading, deviation and variation referenced to magnetic north", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "HDM", HumanName: "Magnetic Heading (legacy)", Description: "Heading referenced to magnetic north", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "ROT", HumanName: "Rate of Turn", Description: "Rate of turn and validity flag", DefaultEnabled: true, DefaultIntervalTenths: 10, Required: true},
	{ID: "ZDA", HumanName: "Time and Date", Description: "UTC time and date with local zone offset", DefaultEnabled: true, DefaultIntervalTenths: 10, Required: true},
	{ID: "GGA", HumanName: "GPS Fix Data", Description: "Fix quality, position, satellites and altitude", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "GLL", HumanName: "Geographic Position", Description: "Latitude and longitude with UTC fix time", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "GSA", HumanName: "GPS DOP and Active Satellites", Description: "2D/3D fix mode and dilution of precision", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "GSV", HumanName: "Satellites in View", Description: "Satellite count, elevation, azimuth and SNR", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "RMC", HumanName: "Recommended Minimum Navigation", Description: "Position, speed and course, minimum GPS data set", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "VTG", HumanName: "Track Made Good and Ground Speed", Description: "Course over ground and speed over ground", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "VHW", HumanName: "Water Speed and Heading", Description: "Speed through water and heading", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "VWR", HumanName: "Relative Wind Speed and Angle (legacy)", Description: "Legacy relative wind sentence", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "VWT", HumanName: "True Wind Speed and Angle (legacy)", Description: "Legacy true wind sentence", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "DPT", HumanName: "Depth", Description: "Depth below transducer with offset", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "DBT", HumanName: "Depth Below Transducer", Description: "Depth in feet, meters and fathoms", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "MTW", HumanName: "Water Temperature", Description: "Water temperature in degrees Celsius", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "GST", HumanName: "GPS Pseudorange Noise Statistics", Description: "Position error estimates", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "XDRA", HumanName: "Transducer Channel A", Description: "Generic transducer measurement, channel A (air temperature)", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "XDRB", HumanName: "Transducer Channel B", Description: "Generic transducer measurement, channel B (pitch/roll)", DefaultEnabled: true, DefaultIntervalTenths: 10},
	{ID: "XDRC", HumanName: "Transducer Channel C", Description: "Generic transducer measurement, channel C", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "XDRD", HumanName: "Transducer Channel D", Description: "Generic transducer measurement, channel D", DefaultEnabled: false, DefaultIntervalTenths: 10},
	{ID: "XDRW", HumanName: "Transducer Channel W", Description: "Generic transducer measurement, channel W", DefaultEnabled: false, DefaultIntervalTenths: 10},
}

var byID = func() map[string]SentenceSpec {
	m := make(map[string]SentenceSpec, len(Registry))
	for _, s := range Registry {
		m[s.ID] = s
	}
	return m
}()

// Lookup returns the SentenceSpec for id, if known.
func Lookup(id string) (SentenceSpec, bool) {
	s, ok := byID[id]
	return s, ok
}

// RequiredIDs returns the spec ids force-enabled after baud negotiation.
func RequiredIDs() []string {
	ids := make([]string, 0, 5)
	for _, s := range Registry {
		if s.Required {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// SpecCodeFromWireType derives the 3-letter spec code that is the trailing
// three letters of a wire type's leading letter run (e.g. "HCHDG" -> "HDG",
// "WIMWV" -> "MWV", "GPGGA" -> "GGA").
func SpecCodeFromWireType(wireType string) string {
	if len(wireType) < 3 {
		return wireType
	}
	return wireType[len(wireType)-3:]
}

// xdrNameToSpecID maps a YXXDR group's "name" field to its registry id.
// Only the mapping the device dialect actually documents (pitch/roll) is
// known; other group names are counted as unmapped rather than guessed.
var xdrNameToSpecID = map[string]string{
	"PTCH": "XDRB",
	"ROLL": "XDRB",
}

// ClassifySpecIDs returns the registry ids a classified Sentence maps to.
// Most wire types map to exactly one id via SpecCodeFromWireType; WIMWV
// disambiguates on its reference field (R/T), and YXXDR can produce
// several ids, one per recognized group. An empty result means the
// sentence is unmapped.
func ClassifySpecIDs(s Sentence) []string {
	switch s.Type {
	case "WIMWV":
		switch s.Field(2) {
		case "R":
			return []string{"MWVR"}
		case "T":
			return []string{"MWVT"}
		}
		return nil
	case "YXXDR":
		return xdrSpecIDs(s.Fields)
	default:
		code := SpecCodeFromWireType(s.Type)
		if _, ok := byID[code]; ok {
			return []string{code}
		}
		return nil
	}
}

// xdrSpecIDs walks YXXDR's repeating groups of four starting at field 1:
// (type, value, unit, name).
func xdrSpecIDs(fields []string) []string {
	var ids []string
	for i := 1; i+3 < len(fields); i += 4 {
		name := fields[i+3]
		if id, ok := xdrNameToSpecID[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
