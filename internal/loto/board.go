package loto

import (
	"fmt"
	"math/rand"

	"github.com/vietparty/room-server/pkg/models"
)

// Board shape: always 9 rows. The 90-number variant uses 9 columns with 5
// numbers per row; the 60-number variant uses 6 columns with 4 per row.
// Column caps keep any single column from being fully populated.
const boardRows = 9

type boardSpec struct {
	cols         int
	numsPerRow   int
	maxPerColumn int
}

func specFor(maxNumber int) boardSpec {
	if maxNumber == 60 {
		return boardSpec{cols: 6, numsPerRow: 4, maxPerColumn: 7}
	}
	return boardSpec{cols: 9, numsPerRow: 5, maxPerColumn: 6}
}

// columnRange gives the inclusive numeric range owned by a column. Ranges are
// disjoint and cover [1, maxNumber].
func columnRange(maxNumber, col int) (int, int) {
	if maxNumber == 90 {
		switch col {
		case 0:
			return 1, 9
		case 8:
			return 80, 90
		default:
			return col * 10, col*10 + 9
		}
	}
	return col*10 + 1, col*10 + 10
}

// GenerateBoard builds a valid random board, retrying layout placement until
// the row and column constraints are all satisfiable.
func GenerateBoard(maxNumber int) (models.Board, error) {
	spec := specFor(maxNumber)
	total := spec.numsPerRow * boardRows

	capacities := make([]int, spec.cols)
	for c := 0; c < spec.cols; c++ {
		start, end := columnRange(maxNumber, c)
		capacities[c] = end - start + 1
	}

	for attempt := 0; attempt < 400; attempt++ {
		colCounts, err := distributeColumnCounts(spec.cols, total, capacities, spec.maxPerColumn)
		if err != nil {
			continue
		}
		layout, err := buildLayout(spec.cols, spec.numsPerRow, colCounts)
		if err != nil {
			continue
		}

		board := make(models.Board, boardRows)
		for r := range board {
			board[r] = make([]int, spec.cols)
		}
		for c := 0; c < spec.cols; c++ {
			if colCounts[c] == 0 {
				continue
			}
			start, end := columnRange(maxNumber, c)
			pool := make([]int, 0, end-start+1)
			for n := start; n <= end; n++ {
				pool = append(pool, n)
			}
			rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

			idx := 0
			for r := 0; r < boardRows; r++ {
				if layout[r][c] {
					board[r][c] = pool[idx]
					idx++
				}
			}
		}
		return board, nil
	}

	return nil, fmt.Errorf("loto: cannot generate a valid board for max %d", maxNumber)
}

// distributeColumnCounts spreads the total cell count over columns, always
// topping up a least-filled column so no column ends up over-dense.
func distributeColumnCounts(cols, total int, capacities []int, maxPerColumn int) ([]int, error) {
	counts := make([]int, cols)
	for remaining := total; remaining > 0; remaining-- {
		minCount := -1
		for c := 0; c < cols; c++ {
			if counts[c] >= capacities[c] || counts[c] >= maxPerColumn {
				continue
			}
			if minCount == -1 || counts[c] < minCount {
				minCount = counts[c]
			}
		}
		if minCount == -1 {
			return nil, fmt.Errorf("loto: cannot distribute column counts")
		}

		candidates := make([]int, 0, cols)
		for c := 0; c < cols; c++ {
			if counts[c] >= capacities[c] || counts[c] >= maxPerColumn {
				continue
			}
			if counts[c] <= minCount+1 {
				candidates = append(candidates, c)
			}
		}
		counts[candidates[rand.Intn(len(candidates))]]++
	}
	return counts, nil
}

// buildLayout decides which cells hold numbers, filling the densest columns
// first against per-row quotas.
func buildLayout(cols, numsPerRow int, colCounts []int) ([][]bool, error) {
	rowQuota := make([]int, boardRows)
	for r := range rowQuota {
		rowQuota[r] = numsPerRow
	}
	layout := make([][]bool, boardRows)
	for r := range layout {
		layout[r] = make([]bool, cols)
	}

	order := make([]int, cols)
	for c := range order {
		order[c] = c
	}
	for i := 0; i < cols; i++ {
		for j := i + 1; j < cols; j++ {
			if colCounts[order[j]] > colCounts[order[i]] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	for _, c := range order {
		need := colCounts[c]
		if need == 0 {
			continue
		}

		candidates := make([]int, 0, boardRows)
		for r := 0; r < boardRows; r++ {
			if rowQuota[r] > 0 {
				candidates = append(candidates, r)
			}
		}
		if len(candidates) < need {
			return nil, fmt.Errorf("loto: cannot place column values")
		}

		// Prefer rows with the most quota left, with random tie-breaking.
		rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
		for i := 0; i < len(candidates); i++ {
			for j := i + 1; j < len(candidates); j++ {
				if rowQuota[candidates[j]] > rowQuota[candidates[i]] {
					candidates[i], candidates[j] = candidates[j], candidates[i]
				}
			}
		}

		for _, r := range candidates[:need] {
			layout[r][c] = true
			rowQuota[r]--
		}
	}

	for _, q := range rowQuota {
		if q != 0 {
			return nil, fmt.Errorf("loto: row quota not satisfied")
		}
	}
	return layout, nil
}

// ValidateBoard checks a member-submitted board against the same shape,
// range, balance and uniqueness rules the generator guarantees.
func ValidateBoard(board models.Board, maxNumber int) error {
	spec := specFor(maxNumber)
	if len(board) != boardRows {
		return fmt.Errorf("loto: board must have %d rows", boardRows)
	}

	seen := make(map[int]bool)
	colCounts := make([]int, spec.cols)
	for r, row := range board {
		if len(row) != spec.cols {
			return fmt.Errorf("loto: row %d must have %d columns", r, spec.cols)
		}
		filled := 0
		for c, cell := range row {
			if cell == 0 {
				continue
			}
			filled++
			colCounts[c]++
			start, end := columnRange(maxNumber, c)
			if cell < start || cell > end {
				return fmt.Errorf("loto: cell %d out of range for column %d", cell, c)
			}
			if seen[cell] {
				return fmt.Errorf("loto: duplicate cell value %d", cell)
			}
			seen[cell] = true
		}
		if filled != spec.numsPerRow {
			return fmt.Errorf("loto: row %d must have %d numbers", r, spec.numsPerRow)
		}
	}
	for c, count := range colCounts {
		if count > spec.maxPerColumn {
			return fmt.Errorf("loto: column %d holds %d numbers, max %d", c, count, spec.maxPerColumn)
		}
	}
	return nil
}
