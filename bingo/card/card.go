// Package card generates bingo cards and evaluates winning lines.
package card

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
)

const (
	// Size is the number of cells on a card (5x5).
	Size = 25
	// Center is the index of the FREE cell.
	Center = 12
	// MaxNumber is the highest ball in the 75-ball domain.
	MaxNumber = 75

	columnSpan = 15
	freeLabel  = "FREE"
)

// Cell is a single card value. Free (zero) is the center marker.
type Cell int

// Free is the literal FREE marker.
const Free Cell = 0

func (c Cell) IsFree() bool { return c == Free }

func (c Cell) String() string {
	if c.IsFree() {
		return freeLabel
	}
	return strconv.Itoa(int(c))
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.IsFree() {
		return []byte(`"` + freeLabel + `"`), nil
	}
	return []byte(strconv.Itoa(int(c))), nil
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	cell, err := ParseCell(b)
	if err != nil {
		return err
	}
	*c = cell
	return nil
}

var errBadCell = errors.New("cell must be a number between 1 and 75 or \"FREE\"")

// ParseCell decodes a JSON number or the "FREE" string.
func ParseCell(raw json.RawMessage) (Cell, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == freeLabel {
			return Free, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errBadCell
		}
		return numberCell(n)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, errBadCell
	}
	return numberCell(n)
}

func numberCell(n int) (Cell, error) {
	if n < 1 || n > MaxNumber {
		return 0, errBadCell
	}
	return Cell(n), nil
}

// Card is a row-major 5x5 grid. Column i%5 holds the B, I, N, G, O ranges.
type Card [Size]Cell

// ColumnRange returns the inclusive range of numbers allowed in column col.
func ColumnRange(col int) (lo, hi int) {
	lo = col*columnSpan + 1
	return lo, lo + columnSpan - 1
}

// Generate builds a fresh card: five distinct numbers per column drawn from
// the column's range, FREE at the center.
func Generate(rng *rand.Rand) Card {
	var c Card
	for col := 0; col < 5; col++ {
		lo, _ := ColumnRange(col)
		picks := rng.Perm(columnSpan)[:5]
		for row := 0; row < 5; row++ {
			c[row*5+col] = Cell(lo + picks[row])
		}
	}
	c[Center] = Free
	return c
}

// Validate checks the structural invariants of a card.
func Validate(c Card) error {
	seen := make(map[Cell]bool, Size)
	for i, cell := range c {
		if i == Center {
			if !cell.IsFree() {
				return fmt.Errorf("center cell is %s, want FREE", cell)
			}
			continue
		}
		if cell.IsFree() {
			return fmt.Errorf("FREE at index %d", i)
		}
		lo, hi := ColumnRange(i % 5)
		if int(cell) < lo || int(cell) > hi {
			return fmt.Errorf("cell %d at index %d outside column range %d-%d", cell, i, lo, hi)
		}
		if seen[cell] {
			return fmt.Errorf("duplicate cell %d", cell)
		}
		seen[cell] = true
	}
	return nil
}

// Contains reports whether the value appears on the card.
func (c Card) Contains(v Cell) bool {
	for _, cell := range c {
		if cell == v {
			return true
		}
	}
	return false
}
