// Package gpio provides digital I/O port access with hardware abstraction.
// The real implementations use the Linux GPIO character device (go-gpiocdev)
// or periph.io. The fake implementation simulates a key matrix for tests.
package gpio

import "fmt"

// Pin identifies one electrical line by port and line index within the port.
// On Linux a port is a gpiochip and the line is its offset.
type Pin struct {
	Port uint8
	Line uint8
}

// Mask returns the bit for this pin within its port's input bitmask.
func (p Pin) Mask() uint32 {
	return 1 << p.Line
}

func (p Pin) String() string {
	return fmt.Sprintf("P%d.%d", p.Port, p.Line)
}

// MaxLine is the highest line index a port bitmask can hold.
const MaxLine = 31

// IO is the digital I/O capability the matrix scanner drives.
// Configuration and level changes cannot fail from the caller's point of
// view; backends that talk to real hardware latch failures and report them
// through their own Err method.
type IO interface {
	// ConfigureInput makes the pin an input with pull-down enabled and its
	// output latch low.
	ConfigureInput(p Pin)

	// ConfigureOutput makes the pin an output driven low.
	ConfigureOutput(p Pin)

	// Set drives an output pin high.
	Set(p Pin)

	// Clear drives an output pin low.
	Clear(p Pin)

	// ReadPort returns the input levels of every line on the port as a
	// bitmask (bit n = line n).
	ReadPort(port uint8) uint32

	// Close releases GPIO resources.
	Close() error
}

// Device is an IO backend that latches the first hardware failure.
// IO methods cannot fail individually; callers poll Err once per scan.
type Device interface {
	IO
	Err() error
}

// Default chip naming for the Linux character device backend.
const (
	DefaultChipPrefix = "gpiochip"
	Consumer          = "keymatrix"
)
