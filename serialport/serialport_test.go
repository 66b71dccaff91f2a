package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDisplayName(t *testing.T) {
	assert.Equal(t, "Airmar WX220 00001", cleanDisplayName("usb-Airmar_WX220_00001-if00-port0"))
	assert.Equal(t, "FTDI FT232R USB UART A12345", cleanDisplayName("usb-FTDI_FT232R_USB_UART_A12345-if00-port0"))
}

func TestHubPort(t *testing.T) {
	path, port, ok := hubPort("platform-3f980000.usb-usb-0:1.2.3:1.0")
	assert.True(t, ok)
	assert.Equal(t, "1.2.3", path)
	assert.Equal(t, "3", port)

	_, _, ok = hubPort("platform-3f980000.usb-usb-0:1.2:1.0")
	assert.False(t, ok, "direct two-part port addresses are not behind a hub")

	_, _, ok = hubPort("no-usb-marker-here")
	assert.False(t, ok)
}

func TestPositionFor(t *testing.T) {
	assert.Equal(t, "top-left", positionFor("platform-3f980000.usb-usb-0:1.1:1.0"))
	assert.Equal(t, "bottom-right", positionFor("platform-3f980000.usb-usb-0:1.4:1.0"))
	assert.Equal(t, "", positionFor("platform-unknown-usb-usb-0:9.9:1.0"))
}

func TestAnnotatePositionPrefersHubOverQuadrant(t *testing.T) {
	d := &Device{}
	annotatePosition(d, "platform-3f980000.usb-usb-0:1.2.3:1.0")
	assert.True(t, d.ViaHub)
	assert.Equal(t, "3", d.HubPort)
	assert.Equal(t, "Via hub, port 3", d.Position)
}

func TestAnnotatePositionQuadrant(t *testing.T) {
	d := &Device{}
	annotatePosition(d, "platform-3f980000.usb-usb-0:1.3:1.0")
	assert.False(t, d.ViaHub)
	assert.Equal(t, "top-right", d.Position)
}

func TestFixedCandidatesCount(t *testing.T) {
	assert.Len(t, fixedCandidates(), 6)
}
