//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// ChipIO drives matrix lines through the Linux GPIO character device.
// Port N maps to /dev/gpiochipN and a pin's line is its offset on that chip.
type ChipIO struct {
	chips  map[uint8]*gpiocdev.Chip
	lines  map[Pin]*gpiocdev.Line
	inputs map[uint8][]Pin
	err    error
}

// NewChipIO opens the gpiochip for every port the matrix uses.
func NewChipIO(ports []uint8) (*ChipIO, error) {
	c := &ChipIO{
		chips:  make(map[uint8]*gpiocdev.Chip),
		lines:  make(map[Pin]*gpiocdev.Line),
		inputs: make(map[uint8][]Pin),
	}
	for _, port := range ports {
		if _, ok := c.chips[port]; ok {
			continue
		}
		name := fmt.Sprintf("%s%d", DefaultChipPrefix, port)
		chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(Consumer))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
		}
		c.chips[port] = chip
	}
	return c, nil
}

// Err returns the first hardware failure seen since the ChipIO was opened.
func (c *ChipIO) Err() error {
	return c.err
}

func (c *ChipIO) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// ConfigureInput requests the line as an input with pull-down, matching the
// idle-low level the scanner expects on rows.
func (c *ChipIO) ConfigureInput(p Pin) {
	if !c.configure(p, gpiocdev.AsInput, gpiocdev.WithPullDown) {
		return
	}
	for _, in := range c.inputs[p.Port] {
		if in == p {
			return
		}
	}
	c.inputs[p.Port] = append(c.inputs[p.Port], p)
}

// ConfigureOutput requests the line as an output driven low.
func (c *ChipIO) ConfigureOutput(p Pin) {
	if !c.configure(p, gpiocdev.AsOutput(0)) {
		return
	}
	ins := c.inputs[p.Port][:0]
	for _, in := range c.inputs[p.Port] {
		if in != p {
			ins = append(ins, in)
		}
	}
	c.inputs[p.Port] = ins
}

func (c *ChipIO) configure(p Pin, opts ...gpiocdev.LineReqOption) bool {
	l, ok := c.lines[p]
	if !ok {
		return c.request(p, opts...) != nil
	}
	cfg := make([]gpiocdev.LineConfigOption, 0, len(opts))
	for _, o := range opts {
		if lo, ok := o.(gpiocdev.LineConfigOption); ok {
			cfg = append(cfg, lo)
		}
	}
	if err := l.Reconfigure(cfg...); err != nil {
		c.fail(fmt.Errorf("reconfigure %s: %w", p, err))
		return false
	}
	return true
}

func (c *ChipIO) request(p Pin, opts ...gpiocdev.LineReqOption) *gpiocdev.Line {
	chip, ok := c.chips[p.Port]
	if !ok {
		c.fail(fmt.Errorf("request %s: port not opened", p))
		return nil
	}
	l, err := chip.RequestLine(int(p.Line), opts...)
	if err != nil {
		c.fail(fmt.Errorf("request %s: %w", p, err))
		return nil
	}
	c.lines[p] = l
	return l
}

// Set drives the line high.
func (c *ChipIO) Set(p Pin) {
	c.setValue(p, 1)
}

// Clear drives the line low.
func (c *ChipIO) Clear(p Pin) {
	c.setValue(p, 0)
}

func (c *ChipIO) setValue(p Pin, v int) {
	l, ok := c.lines[p]
	if !ok {
		return
	}
	if err := l.SetValue(v); err != nil {
		c.fail(fmt.Errorf("set %s=%d: %w", p, v, err))
	}
}

// ReadPort samples every input line requested on the port.
func (c *ChipIO) ReadPort(port uint8) uint32 {
	var bits uint32
	for _, p := range c.inputs[port] {
		v, err := c.lines[p].Value()
		if err != nil {
			c.fail(fmt.Errorf("read %s: %w", p, err))
			continue
		}
		if v != 0 {
			bits |= p.Mask()
		}
	}
	return bits
}

// Close releases GPIO resources.
// Every line is returned to input with pull-down before it is released so
// that column drivers do not hold the matrix high across a reboot.
func (c *ChipIO) Close() error {
	var errs []error

	for p, l := range c.lines {
		if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", p, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p, err))
		}
	}
	c.lines = map[Pin]*gpiocdev.Line{}
	c.inputs = map[uint8][]Pin{}

	for port, chip := range c.chips {
		if err := chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip %d: %w", port, err))
		}
	}
	c.chips = map[uint8]*gpiocdev.Chip{}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
