package game

// Neighbors returns the 4-connected von-Neumann neighbors of (r, c) within
// [0, n)^2, in a fixed up/down/left/right order so callers (and tests) get a
// reproducible sequence. Ported from get_valid_neighbors in the original
// implementation, generalized from a hardcoded 5x5 board to N x N.
func Neighbors(r, c, n int) [][2]int {
	candidates := [][2]int{
		{r - 1, c}, // up
		{r + 1, c}, // down
		{r, c - 1}, // left
		{r, c + 1}, // right
	}

	out := make([][2]int, 0, 4)
	for _, p := range candidates {
		if p[0] >= 0 && p[0] < n && p[1] >= 0 && p[1] < n {
			out = append(out, p)
		}
	}
	return out
}

// CriticalCells returns the coordinates of every cell whose count is at
// least 4. The returned order is implementation-defined (map iteration);
// callers must treat it as a set, never relying on order within one wave.
func CriticalCells(b Board) [][2]int {
	var out [][2]int
	for r, row := range b {
		for c, cell := range row {
			if cell.Count >= 4 {
				out = append(out, [2]int{r, c})
			}
		}
	}
	return out
}

// Explode applies one explosion at (r, c) in place: the cell loses 4 (and is
// removed if that leaves it at or below zero), and every valid neighbor
// either becomes a new {attacker, 1} cell or gains +1 and is captured by
// attacker. Mutating in place (rather than returning a new Board) matches
// the original's bum(), and lets the Move Orchestrator apply a whole wave's
// worth of explosions as a single in-memory pass before committing.
//
// Explode is commutative-with-accumulation across a set of critical cells
// exploded in the same wave: every explosion in the set sets the same
// attacker and contributes independent per-cell deltas, so the final board
// after applying the whole set does not depend on the order the set is
// walked in (P3).
func Explode(b Board, r, c int, attacker PlayerID, n int) {
	cell, ok := b.Get(r, c)
	if !ok {
		return
	}

	cell.Count -= 4
	if cell.Count <= 0 {
		b.Remove(r, c)
	} else {
		b.Set(r, c, cell)
	}

	for _, nb := range Neighbors(r, c, n) {
		nr, nc := nb[0], nb[1]
		neighbor, exists := b.Get(nr, nc)
		if !exists {
			b.Set(nr, nc, Cell{Owner: attacker, Count: 1})
			continue
		}
		neighbor.Count++
		neighbor.Owner = attacker
		b.Set(nr, nc, neighbor)
	}
}

// CountPieces returns the number of cells on the board owned by player.
func CountPieces(b Board, player PlayerID) int {
	count := 0
	for _, row := range b {
		for _, cell := range row {
			if cell.Owner == player {
				count++
			}
		}
	}
	return count
}

// SafetyWaveCap bounds the number of wave iterations the Move Orchestrator
// will run for a board of size n before giving up with
// ErrExplosionLimitExceeded (P4's termination bound, 8*n^2).
func SafetyWaveCap(n int) int {
	return 8 * n * n
}
