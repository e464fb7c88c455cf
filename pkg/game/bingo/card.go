package bingo

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/partyhub/pkg/game/constants"
	"github.com/cbodonnell/partyhub/pkg/random"
)

// Cell is a number or the free center marker. It is persisted as a bare number or "FREE".
type Cell struct {
	Number int
	Free   bool
}

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Free {
		return json.Marshal(constants.BingoFree)
	}
	return json.Marshal(c.Number)
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != constants.BingoFree {
			return fmt.Errorf("invalid bingo cell %q", s)
		}
		*c = Cell{Free: true}
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid bingo cell %s", b)
	}
	*c = Cell{Number: int(n)}
	return nil
}

// Card is indexed [row][column].
type Card [constants.BingoGridSize][constants.BingoGridSize]Cell

// GenerateCard builds a card whose column c holds 5 distinct numbers from c*15+1..c*15+15.
func GenerateCard(src random.Source) Card {
	var card Card
	for col := 0; col < constants.BingoGridSize; col++ {
		lo := col*constants.BingoColumnRange + 1
		numbers := random.Shuffle(src, random.Range(lo, lo+constants.BingoColumnRange-1))
		for row := 0; row < constants.BingoGridSize; row++ {
			card[row][col] = Cell{Number: numbers[row]}
		}
	}
	center := constants.BingoGridSize / 2
	card[center][center] = Cell{Free: true}
	return card
}

// HasBingo reports whether any row, column or diagonal is fully covered by drawn numbers.
func HasBingo(card Card, drawn []int) bool {
	seen := make(map[int]bool, len(drawn))
	for _, n := range drawn {
		seen[n] = true
	}
	covered := func(row, col int) bool {
		c := card[row][col]
		return c.Free || seen[c.Number]
	}

	size := constants.BingoGridSize
	lines := make([][][2]int, 0, 2*size+2)
	diag, anti := [][2]int{}, [][2]int{}
	for i := 0; i < size; i++ {
		row, col := [][2]int{}, [][2]int{}
		for j := 0; j < size; j++ {
			row = append(row, [2]int{i, j})
			col = append(col, [2]int{j, i})
		}
		lines = append(lines, row, col)
		diag = append(diag, [2]int{i, i})
		anti = append(anti, [2]int{i, size - 1 - i})
	}
	lines = append(lines, diag, anti)

	for _, line := range lines {
		full := true
		for _, cell := range line {
			if !covered(cell[0], cell[1]) {
				full = false
				break
			}
		}
		if full {
			return true
		}
	}
	return false
}

// Remaining returns the numbers not yet drawn, ascending.
func Remaining(drawn []int) []int {
	seen := make(map[int]bool, len(drawn))
	for _, n := range drawn {
		seen[n] = true
	}
	remaining := []int{}
	for n := 1; n <= constants.BingoMaxNumber; n++ {
		if !seen[n] {
			remaining = append(remaining, n)
		}
	}
	return remaining
}
