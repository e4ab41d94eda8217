package matrix

import (
	"io"
	"strings"
)

// Dump renders the debounced state as a grid: a header of column digits,
// then one line per row with its 1-based index and X for a pressed key.
//
//	R C123
//	1  X.X
//	2  .X.
func (s *Scanner) Dump() string {
	return FormatGrid(s.debounced, s.Cols())
}

// FormatGrid renders rows the way Dump does, for state copied out of a
// Scanner.
func FormatGrid(rows []Row, cols int) string {
	var b strings.Builder
	b.Grow((cols + 8) * (len(rows) + 1))

	b.WriteString("R C")
	for c := 1; c <= cols; c++ {
		b.WriteByte(byte('0' + c%10))
	}
	b.WriteString("\r\n")

	for r := 1; r <= len(rows); r++ {
		row := rows[r-1]
		if r < 10 {
			b.WriteByte(byte('0' + r))
			b.WriteString("  ")
		} else {
			b.WriteByte(byte('0' + r/10%10))
			b.WriteByte(byte('0' + r%10))
			b.WriteByte(' ')
		}
		for c := 0; c < cols; c++ {
			if row&(1<<c) != 0 {
				b.WriteByte('X')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("\r\n")
	}
	return b.String()
}

// Print writes Dump to w.
func (s *Scanner) Print(w io.Writer) error {
	_, err := io.WriteString(w, s.Dump())
	return err
}
