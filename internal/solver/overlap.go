package solver

import "github.com/sis-scheduler/scheduler-core/internal/domain"

// overlapMatrix reports, for dense pattern ids i != j, whether patterns
// i and j share a day with intersecting times (spec.md §3).
type overlapMatrix struct {
	n    int
	rows [][]bool
}

func buildOverlapMatrix(patterns []domain.MeetingPattern) overlapMatrix {
	n := len(patterns)
	rows := make([][]bool, n)
	for i := range rows {
		rows[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if patterns[i].Overlaps(patterns[j]) {
				rows[i][j] = true
				rows[j][i] = true
			}
		}
	}
	return overlapMatrix{n: n, rows: rows}
}

func (o overlapMatrix) overlaps(i, j int) bool {
	if i == j {
		return false
	}
	return o.rows[i][j]
}

// pairs returns every unordered pair (i, j), i < j, that overlaps.
func (o overlapMatrix) pairs() [][2]int {
	var out [][2]int
	for i := 0; i < o.n; i++ {
		for j := i + 1; j < o.n; j++ {
			if o.rows[i][j] {
				out = append(out, [2]int{i, j})
			}
		}
	}
	return out
}
