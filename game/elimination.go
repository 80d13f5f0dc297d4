package game

// DetectEliminated returns the set of players with zero cells on the board,
// but only once moveCount >= len(players) — i.e. once every player has had
// at least one initial placement. Before that threshold it returns an empty
// set, so a player who simply hasn't moved yet on the very first rotation
// isn't mistaken for an eliminated one.
func DetectEliminated(b Board, players []PlayerID, moveCount int) map[PlayerID]bool {
	out := make(map[PlayerID]bool)
	if moveCount < len(players) {
		return out
	}

	for _, p := range players {
		if CountPieces(b, p) == 0 {
			out[p] = true
		}
	}
	return out
}

// Winner reports whether the game is over and, if so, who won. It applies
// the same moveCount >= len(players) gate as DetectEliminated: a game can't
// end before every player has had their first placement, or the first
// mover in a 3+ player game would be declared the winner just for having
// the only cells on the board so far. If the board has exactly one
// remaining owner, that owner wins. If the board is completely empty (the
// mover just captured and detonated the last enemy cell, clearing it),
// fallback — the player who just moved — wins. Ties (more than one distinct
// owner remaining) mean the game continues.
func Winner(b Board, players []PlayerID, moveCount int, fallback PlayerID) (finished bool, winner *PlayerID) {
	if len(players) <= 1 {
		return false, nil
	}
	if moveCount < len(players) {
		return false, nil
	}

	owners := make(map[PlayerID]bool)
	for _, row := range b {
		for _, cell := range row {
			owners[cell.Owner] = true
		}
	}

	if len(owners) > 1 {
		return false, nil
	}

	if len(owners) == 0 {
		w := fallback
		return true, &w
	}

	for owner := range owners {
		w := owner
		return true, &w
	}
	return false, nil
}
