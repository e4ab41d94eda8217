//go:build linux

package gpio

import (
	"fmt"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphIO drives matrix lines through periph.io's pin registry.
// Pins are addressed by BCM number: port N covers GPIO N*32 .. N*32+31.
type PeriphIO struct {
	pins   map[Pin]pgpio.PinIO
	inputs map[uint8][]Pin
	err    error
}

// NewPeriphIO initialises the periph host drivers.
func NewPeriphIO() (*PeriphIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	return &PeriphIO{
		pins:   make(map[Pin]pgpio.PinIO),
		inputs: make(map[uint8][]Pin),
	}, nil
}

// Err returns the first hardware failure seen since the PeriphIO was created.
func (p *PeriphIO) Err() error {
	return p.err
}

func (p *PeriphIO) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

// BCMName returns the periph registry name for a pin.
func BCMName(pin Pin) string {
	return fmt.Sprintf("GPIO%d", int(pin.Port)*32+int(pin.Line))
}

func (p *PeriphIO) lookup(pin Pin) pgpio.PinIO {
	if io, ok := p.pins[pin]; ok {
		return io
	}
	io := gpioreg.ByName(BCMName(pin))
	if io == nil {
		p.fail(fmt.Errorf("no gpio named %s for %s", BCMName(pin), pin))
		return nil
	}
	p.pins[pin] = io
	return io
}

// ConfigureInput sets the pin as an input with pull-down and no edge detection.
func (p *PeriphIO) ConfigureInput(pin Pin) {
	io := p.lookup(pin)
	if io == nil {
		return
	}
	if err := io.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
		p.fail(fmt.Errorf("configure %s as input: %w", pin, err))
		return
	}
	for _, in := range p.inputs[pin.Port] {
		if in == pin {
			return
		}
	}
	p.inputs[pin.Port] = append(p.inputs[pin.Port], pin)
}

// ConfigureOutput sets the pin as an output driven low.
func (p *PeriphIO) ConfigureOutput(pin Pin) {
	p.out(pin, pgpio.Low)
	ins := p.inputs[pin.Port][:0]
	for _, in := range p.inputs[pin.Port] {
		if in != pin {
			ins = append(ins, in)
		}
	}
	p.inputs[pin.Port] = ins
}

// Set drives the pin high.
func (p *PeriphIO) Set(pin Pin) {
	p.out(pin, pgpio.High)
}

// Clear drives the pin low.
func (p *PeriphIO) Clear(pin Pin) {
	p.out(pin, pgpio.Low)
}

func (p *PeriphIO) out(pin Pin, l pgpio.Level) {
	io := p.lookup(pin)
	if io == nil {
		return
	}
	if err := io.Out(l); err != nil {
		p.fail(fmt.Errorf("set %s=%v: %w", pin, l, err))
	}
}

// ReadPort samples every input pin configured on the port.
func (p *PeriphIO) ReadPort(port uint8) uint32 {
	var bits uint32
	for _, pin := range p.inputs[port] {
		if p.pins[pin].Read() == pgpio.High {
			bits |= pin.Mask()
		}
	}
	return bits
}

// Close returns every touched pin to input with pull-down.
func (p *PeriphIO) Close() error {
	var errs []error
	for pin, io := range p.pins {
		if err := io.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", pin, err))
		}
	}
	p.pins = map[Pin]pgpio.PinIO{}
	p.inputs = map[uint8][]Pin{}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
