package card

// Lines holds the twelve winning patterns: 5 rows, 5 columns, 2 diagonals.
var Lines = buildLines()

func buildLines() [12][5]int {
	var lines [12][5]int
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			lines[i][j] = i*5 + j
			lines[5+i][j] = j*5 + i
		}
		lines[10][i] = i * 6
		lines[11][i] = (i + 1) * 4
	}
	return lines
}

// WinningLines returns every pattern fully covered by FREE or marked cells.
func WinningLines(c Card, marked func(Cell) bool) [][5]int {
	var out [][5]int
	for _, line := range Lines {
		complete := true
		for _, idx := range line {
			cell := c[idx]
			if !cell.IsFree() && !marked(cell) {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, line)
		}
	}
	return out
}

// HasBingo reports whether any line is covered by the marked values that were
// also called. Marks outside called are ignored.
func HasBingo(c Card, marked []Cell, called []int) bool {
	calledSet := make(map[Cell]bool, len(called))
	for _, n := range called {
		calledSet[Cell(n)] = true
	}
	markedSet := make(map[Cell]bool, len(marked))
	for _, m := range marked {
		markedSet[m] = true
	}
	return len(WinningLines(c, func(v Cell) bool {
		return markedSet[v] && calledSet[v]
	})) > 0
}
