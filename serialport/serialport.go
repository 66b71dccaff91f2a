// Package serialport enumerates candidate serial devices for the bridge
// to connect to and annotates them with a stable by-id display name and
// their physical USB-port position where that can be determined.
package serialport

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Device is one candidate serial port.
type Device struct {
	// Path is the raw device node, e.g. "/dev/ttyUSB0".
	Path string
	// DisplayName is a cleaned-up by-id name, or the base path if none
	// was found under /dev/serial/by-id.
	DisplayName string
	// Position is a physical-port hint such as "top-left" or
	// "Via hub, port 2", or "" if it could not be determined.
	Position string
	ViaHub   bool
	HubPort  string
}

// Enumerate returns the union of the fixed device-node candidates, any
// device discovered by globbing the usual Linux tty families, and the
// richer by-id/by-path annotations where the host exposes them.
func Enumerate() ([]Device, error) {
	seen := make(map[string]*Device)
	var order []string

	add := func(path string) *Device {
		if d, ok := seen[path]; ok {
			return d
		}
		d := &Device{Path: path, DisplayName: filepath.Base(path)}
		seen[path] = d
		order = append(order, path)
		return d
	}

	for _, p := range fixedCandidates() {
		if _, err := os.Stat(p); err == nil {
			add(p)
		}
	}

	// No cross-platform serial-port enumeration library is part of this
	// module's dependency set (see DESIGN.md); the usual Linux tty device
	// families are globbed directly as the "platform enumeration" source.
	for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyAMA*"} {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			add(m)
		}
	}

	for target, link := range resolveSymlinkDir("/dev/serial/by-id") {
		d := seen[target]
		if d == nil {
			d = add(target)
		}
		d.DisplayName = cleanDisplayName(filepath.Base(link))
	}
	for target, link := range resolveSymlinkDir("/dev/serial/by-path") {
		d := seen[target]
		if d == nil {
			d = add(target)
		}
		annotatePosition(d, filepath.Base(link))
	}

	result := make([]Device, 0, len(order))
	for _, p := range order {
		result = append(result, *seen[p])
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func fixedCandidates() []string {
	paths := make([]string, 0, 6)
	for i := 0; i < 4; i++ {
		paths = append(paths, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for i := 0; i < 2; i++ {
		paths = append(paths, fmt.Sprintf("/dev/ttyAMA%d", i))
	}
	return paths
}

func resolveSymlinkDir(dir string) map[string]string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		link := filepath.Join(dir, e.Name())
		target, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		out[target] = e.Name()
	}
	return out
}

// cleanDisplayName strips the noisy udev-generated prefix/suffix from a
// by-id link name and replaces underscores with spaces so it reads as a
// human label, e.g. "usb-Airmar_WX220_00001-if00-port0" -> "Airmar WX220
// 00001".
func cleanDisplayName(name string) string {
	name = strings.TrimPrefix(name, "usb-")
	name = strings.ReplaceAll(name, "-if00-port0", "")
	name = strings.ReplaceAll(name, "_", " ")
	return name
}

// positionTable maps a by-path link's physical-topology substring to one
// of the four quadrant labels. It is specific to the USB controller
// layouts of Raspberry Pi 3, 4 and 5 boards, which route external USB
// ports through distinct bus/port addresses depending on model. Matching
// is longest-prefix-first so a more specific entry (behind a hub) never
// loses to a shorter one.
var positionTable = map[string]string{
	"platform-3f980000.usb-usb-0:1.1":                                 "top-left",
	"platform-3f980000.usb-usb-0:1.2":                                 "bottom-left",
	"platform-3f980000.usb-usb-0:1.3":                                 "top-right",
	"platform-3f980000.usb-usb-0:1.4":                                 "bottom-right",
	"platform-fd500000.pcie-pci-0000:01:00.0-usb-0:1.1":               "top-left",
	"platform-fd500000.pcie-pci-0000:01:00.0-usb-0:1.2":               "bottom-left",
	"platform-fd500000.pcie-pci-0000:01:00.0-usb-0:1.3":               "top-right",
	"platform-fd500000.pcie-pci-0000:01:00.0-usb-0:1.4":               "bottom-right",
	"platform-1000480000.pcie-pci-0000:01:00.0-usb-0:1.1":             "top-left",
	"platform-1000480000.pcie-pci-0000:01:00.0-usb-0:1.2":             "bottom-left",
	"platform-1000480000.pcie-pci-0000:01:00.0-usb-0:1.3":             "top-right",
	"platform-1000480000.pcie-pci-0000:01:00.0-usb-0:1.4":             "bottom-right",
}

func positionFor(name string) string {
	best, bestLen := "", -1
	for prefix, pos := range positionTable {
		if strings.HasPrefix(name, prefix) && len(prefix) > bestLen {
			best, bestLen = pos, len(prefix)
		}
	}
	return best
}

// hubPort detects a "usb-0:X.Y.Z:..." style path, which indicates the
// device hangs off an external hub rather than directly off the board's
// root USB controller, and returns the trailing port component Z.
func hubPort(name string) (path string, port string, ok bool) {
	idx := strings.Index(name, "usb-0:")
	if idx < 0 {
		return "", "", false
	}
	rest := name[idx+len("usb-0:"):]
	colonIdx := strings.IndexByte(rest, ':')
	if colonIdx < 0 {
		return "", "", false
	}
	path = rest[:colonIdx]
	parts := strings.Split(path, ".")
	if len(parts) < 3 {
		return "", "", false // direct port addresses are only two parts deep
	}
	return path, parts[len(parts)-1], true
}

func annotatePosition(d *Device, linkBase string) {
	if _, port, ok := hubPort(linkBase); ok {
		d.ViaHub = true
		d.HubPort = port
		d.Position = fmt.Sprintf("Via hub, port %s", port)
		return
	}
	if pos := positionFor(linkBase); pos != "" {
		d.Position = pos
	}
}
