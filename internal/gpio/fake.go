package gpio

// OpKind names a recorded FakeMatrix call.
type OpKind string

const (
	OpInput  OpKind = "input"
	OpOutput OpKind = "output"
	OpSet    OpKind = "set"
	OpClear  OpKind = "clear"
	OpRead   OpKind = "read"
)

// Op is one recorded call against a FakeMatrix.
// For OpRead only Pin.Port is meaningful.
type Op struct {
	Kind OpKind
	Pin  Pin
}

// FakeMatrix is a test double that simulates a diode-isolated key matrix.
// A row input reads high while its key's column output is driven high.
type FakeMatrix struct {
	// RowPins and ColPins wire logical indices to pins.
	RowPins []Pin
	ColPins []Pin

	// Stray holds bits forced high on a port regardless of the matrix,
	// simulating unrelated inputs sharing the port.
	Stray map[uint8]uint32

	// Ops records every call in order.
	Ops []Op

	// Closed tracks if Close was called
	Closed bool

	// Fault, if set, is returned by Err, simulating a latched backend failure.
	Fault error

	pressed map[[2]int]bool
	inputs  map[Pin]bool
	outputs map[Pin]bool
	high    map[Pin]bool
}

// NewFakeMatrix creates a FakeMatrix with no keys pressed.
func NewFakeMatrix(rows, cols []Pin) *FakeMatrix {
	return &FakeMatrix{
		RowPins: rows,
		ColPins: cols,
		Stray:   map[uint8]uint32{},
		pressed: map[[2]int]bool{},
		inputs:  map[Pin]bool{},
		outputs: map[Pin]bool{},
		high:    map[Pin]bool{},
	}
}

// Press closes the switch at row, col.
func (f *FakeMatrix) Press(row, col int) {
	f.pressed[[2]int{row, col}] = true
}

// Release opens the switch at row, col.
func (f *FakeMatrix) Release(row, col int) {
	delete(f.pressed, [2]int{row, col})
}

// SetRows replaces the whole key state; bit c of rows[r] closes switch r,c.
func (f *FakeMatrix) SetRows(rows ...uint32) {
	f.pressed = map[[2]int]bool{}
	for r, bits := range rows {
		for c := 0; c < 32; c++ {
			if bits&(1<<c) != 0 {
				f.pressed[[2]int{r, c}] = true
			}
		}
	}
}

// IsInput reports whether the pin is currently configured as an input.
func (f *FakeMatrix) IsInput(p Pin) bool {
	return f.inputs[p]
}

// IsOutput reports whether the pin is currently configured as an output.
func (f *FakeMatrix) IsOutput(p Pin) bool {
	return f.outputs[p]
}

// IsHigh reports the driven level of an output pin.
func (f *FakeMatrix) IsHigh(p Pin) bool {
	return f.high[p]
}

// ConfigureInput records the pin as an input.
func (f *FakeMatrix) ConfigureInput(p Pin) {
	f.Ops = append(f.Ops, Op{Kind: OpInput, Pin: p})
	f.inputs[p] = true
	delete(f.outputs, p)
	delete(f.high, p)
}

// ConfigureOutput records the pin as an output driven low.
func (f *FakeMatrix) ConfigureOutput(p Pin) {
	f.Ops = append(f.Ops, Op{Kind: OpOutput, Pin: p})
	f.outputs[p] = true
	delete(f.inputs, p)
	delete(f.high, p)
}

// Set drives the pin high.
func (f *FakeMatrix) Set(p Pin) {
	f.Ops = append(f.Ops, Op{Kind: OpSet, Pin: p})
	f.high[p] = true
}

// Clear drives the pin low.
func (f *FakeMatrix) Clear(p Pin) {
	f.Ops = append(f.Ops, Op{Kind: OpClear, Pin: p})
	delete(f.high, p)
}

// ReadPort returns the simulated input levels for the port.
func (f *FakeMatrix) ReadPort(port uint8) uint32 {
	f.Ops = append(f.Ops, Op{Kind: OpRead, Pin: Pin{Port: port}})

	bits := f.Stray[port]
	for key := range f.pressed {
		r, c := key[0], key[1]
		if r >= len(f.RowPins) || c >= len(f.ColPins) {
			continue
		}
		row, col := f.RowPins[r], f.ColPins[c]
		if row.Port != port || !f.inputs[row] {
			continue
		}
		if f.outputs[col] && f.high[col] {
			bits |= row.Mask()
		}
	}
	return bits
}

// Close marks the matrix as closed.
func (f *FakeMatrix) Close() error {
	f.Closed = true
	return nil
}

// Err returns Fault.
func (f *FakeMatrix) Err() error {
	return f.Fault
}

// ResetOps clears the recorded call log.
func (f *FakeMatrix) ResetOps() {
	f.Ops = nil
}
