//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// ChipIO is not available on non-Linux platforms.
type ChipIO struct{}

// NewChipIO returns an error on non-Linux platforms.
func NewChipIO(ports []uint8) (*ChipIO, error) {
	return nil, errUnsupported
}

func (c *ChipIO) Err() error                 { return errUnsupported }
func (c *ChipIO) ConfigureInput(p Pin)       {}
func (c *ChipIO) ConfigureOutput(p Pin)      {}
func (c *ChipIO) Set(p Pin)                  {}
func (c *ChipIO) Clear(p Pin)                {}
func (c *ChipIO) ReadPort(port uint8) uint32 { return 0 }
func (c *ChipIO) Close() error               { return nil }

// PeriphIO is not available on non-Linux platforms.
type PeriphIO struct{}

// NewPeriphIO returns an error on non-Linux platforms.
func NewPeriphIO() (*PeriphIO, error) {
	return nil, errUnsupported
}

func (p *PeriphIO) Err() error                 { return errUnsupported }
func (p *PeriphIO) ConfigureInput(pin Pin)     {}
func (p *PeriphIO) ConfigureOutput(pin Pin)    {}
func (p *PeriphIO) Set(pin Pin)                {}
func (p *PeriphIO) Clear(pin Pin)              {}
func (p *PeriphIO) ReadPort(port uint8) uint32 { return 0 }
func (p *PeriphIO) Close() error               { return nil }
