package board

import (
	"fmt"

	"github.com/sweeney/keymatrix/internal/gpio"
	"github.com/sweeney/keymatrix/internal/matrix"
)

// Validate checks board correctness.
// It performs declarative validation only and does not mutate the board.
// A board that passes can be scanned; wiring mistakes beyond these rules
// show up as wrong key state.
func Validate(b *Board) error {
	if len(b.Rows) == 0 {
		return fmt.Errorf("board %q: no rows defined", b.Name)
	}
	if len(b.Cols) == 0 {
		return fmt.Errorf("board %q: no cols defined", b.Name)
	}
	if len(b.Cols) > matrix.MaxCols {
		return fmt.Errorf("board %q: %d cols exceeds maximum of %d", b.Name, len(b.Cols), matrix.MaxCols)
	}
	if b.DebounceMs < 0 {
		return fmt.Errorf("board %q: debounce_ms must not be negative", b.Name)
	}
	if b.SettleUs < 0 {
		return fmt.Errorf("board %q: settle_us must not be negative", b.Name)
	}

	// key = port.pin -> first user
	owner := make(map[PinConfig]string)

	check := func(kind string, list []PinConfig) error {
		for i, p := range list {
			use := fmt.Sprintf("%s %d", kind, i)
			if p.Pin > gpio.MaxLine {
				return fmt.Errorf("board %q: %s pin %d exceeds maximum line %d", b.Name, use, p.Pin, gpio.MaxLine)
			}
			if prev, exists := owner[p]; exists {
				return fmt.Errorf(
					"board %q: pin collision: port=%d pin=%d used by %s and %s",
					b.Name, p.Port, p.Pin, prev, use,
				)
			}
			owner[p] = use
		}
		return nil
	}

	if err := check("row", b.Rows); err != nil {
		return err
	}
	return check("col", b.Cols)
}

// Normalize applies defaults for unset timing.
// It MUST be called only after Validate.
func Normalize(b *Board) {
	if b == nil {
		return
	}
	if b.DebounceMs == 0 {
		b.DebounceMs = DefaultDebounceMs
	}
	if b.SettleUs == 0 {
		b.SettleUs = DefaultSettleUs
	}
}
