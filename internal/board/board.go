// Package board loads the static pin table and timing of a keyboard matrix.
package board

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/keymatrix/internal/gpio"
	"github.com/sweeney/keymatrix/internal/matrix"
)

// Board is the YAML description of one keyboard's matrix wiring.
type Board struct {
	Name       string      `yaml:"name"`
	Rows       []PinConfig `yaml:"rows"`
	Cols       []PinConfig `yaml:"cols"`
	DebounceMs int         `yaml:"debounce_ms"`
	SettleUs   int         `yaml:"settle_us"`
}

// PinConfig is one (port, pin) pair. On Linux the port is the gpiochip
// number and the pin is the line offset.
type PinConfig struct {
	Port uint8 `yaml:"port"`
	Pin  uint8 `yaml:"pin"`
}

// Defaults applied by Normalize.
const (
	DefaultDebounceMs = 5
	DefaultSettleUs   = 1
)

// Load reads and parses a board file. The result is validated and normalized.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board %s: %w", path, err)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("board %s: %w", path, err)
	}
	return b, nil
}

// Parse decodes YAML, validates it and applies defaults.
func Parse(data []byte) (*Board, error) {
	var b Board
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(&b); err != nil {
		return nil, err
	}
	Normalize(&b)
	return &b, nil
}

// Default returns an 8x13 board: rows on gpiochip0 lines 0-7 and columns
// on gpiochip0 lines 8-20.
func Default() *Board {
	b := &Board{
		Name:       "default-8x13",
		DebounceMs: DefaultDebounceMs,
		SettleUs:   DefaultSettleUs,
	}
	for i := 0; i < 8; i++ {
		b.Rows = append(b.Rows, PinConfig{Port: 0, Pin: uint8(i)})
	}
	for i := 0; i < 13; i++ {
		b.Cols = append(b.Cols, PinConfig{Port: 0, Pin: uint8(8 + i)})
	}
	return b
}

// MatrixConfig converts the board into scanner wiring.
func (b *Board) MatrixConfig() matrix.Config {
	cfg := matrix.Config{
		Debounce: time.Duration(b.DebounceMs) * time.Millisecond,
		Settle:   time.Duration(b.SettleUs) * time.Microsecond,
	}
	for _, p := range b.Rows {
		cfg.Rows = append(cfg.Rows, gpio.Pin{Port: p.Port, Line: p.Pin})
	}
	for _, p := range b.Cols {
		cfg.Cols = append(cfg.Cols, gpio.Pin{Port: p.Port, Line: p.Pin})
	}
	return cfg
}

// Ports returns every distinct port the board uses, in first-use order.
func (b *Board) Ports() []uint8 {
	seen := map[uint8]bool{}
	var out []uint8
	for _, list := range [][]PinConfig{b.Rows, b.Cols} {
		for _, p := range list {
			if !seen[p.Port] {
				seen[p.Port] = true
				out = append(out, p.Port)
			}
		}
	}
	return out
}
