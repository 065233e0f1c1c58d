// Package midiserial provides non-blocking byte sources suitable for
// orchestrator.Core.AddSource, backed by a real UART
// (github.com/pkg/term, grounded on the teacher's serial_port.go) or,
// in dev mode off-target, a PTY (github.com/creack/pty) standing in
// for hardware.
package midiserial

import (
	"fmt"
	"os"

	"github.com/creack/pty"
	"github.com/pkg/term"
)

// UARTReader owns a raw-mode serial port and exposes a non-blocking
// Read suitable for an orchestrator.Source.
type UARTReader struct {
	t *term.Term
}

// OpenUART opens device at baud, matching serial_port_open's supported
// speed set; an unsupported baud falls back to 4800 the same way.
func OpenUART(device string, baud int) (*UARTReader, error) {
	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("midiserial: open %s: %w", device, err)
	}

	switch baud {
	case 0:
	case 1200, 2400, 4800, 9600, 19200, 31250, 38400, 57600, 115200:
		_ = t.SetSpeed(baud)
	default:
		_ = t.SetSpeed(4800)
	}

	return &UARTReader{t: t}, nil
}

// Read satisfies the orchestrator.Source.Read shape: it returns
// whatever is immediately available, 0 on a would-block timeout.
func (u *UARTReader) Read(buf []byte) int {
	n, err := u.t.Read(buf)
	if err != nil || n < 0 {
		return 0
	}

	return n
}

// Close releases the underlying port.
func (u *UARTReader) Close() error {
	return u.t.Close()
}

// DevPTY opens a PTY pair and returns a Read function bound to the
// master side plus the slave device path a developer can feed test
// MIDI bytes into (e.g. with a second process or `cat >`).
type DevPTY struct {
	master *os.File
	slave  *os.File
}

// OpenDevPTY opens a fresh PTY pair for off-target development.
func OpenDevPTY() (*DevPTY, error) {
	m, s, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("midiserial: open pty: %w", err)
	}

	return &DevPTY{master: m, slave: s}, nil
}

// SlavePath is the device path to feed bytes into for testing.
func (d *DevPTY) SlavePath() string { return d.slave.Name() }

// Read satisfies orchestrator.Source.Read over the PTY master side.
func (d *DevPTY) Read(buf []byte) int {
	n, err := d.master.Read(buf)
	if err != nil || n < 0 {
		return 0
	}

	return n
}

// Close releases both ends of the PTY.
func (d *DevPTY) Close() error {
	_ = d.master.Close()
	return d.slave.Close()
}
