package game

import "testing"

func TestDetectEliminatedBeforeThreshold(t *testing.T) {
	b := Board{}
	b.Set(0, 0, Cell{Owner: "A", Count: 3})

	got := DetectEliminated(b, []PlayerID{"A", "B"}, 1)
	if len(got) != 0 {
		t.Errorf("DetectEliminated before moveCount reaches player count = %v, want empty", got)
	}
}

// TestDetectEliminatedScenario4 reproduces spec.md scenario 4.
func TestDetectEliminatedScenario4(t *testing.T) {
	b := Board{}
	b.Set(4, 3, Cell{Owner: "B", Count: 3})
	// A has been fully captured/removed by B's explosion.

	got := DetectEliminated(b, []PlayerID{"A", "B"}, 2)
	if !got["A"] {
		t.Errorf("DetectEliminated = %v, want A eliminated", got)
	}
	if got["B"] {
		t.Errorf("DetectEliminated = %v, B should not be eliminated", got)
	}
}

func TestWinnerContinuesWithMultipleOwners(t *testing.T) {
	b := Board{}
	b.Set(0, 0, Cell{Owner: "A", Count: 1})
	b.Set(1, 1, Cell{Owner: "B", Count: 1})

	finished, winner := Winner(b, []PlayerID{"A", "B"}, 2, "A")
	if finished || winner != nil {
		t.Errorf("Winner = (%v, %v), want (false, nil)", finished, winner)
	}
}

func TestWinnerBeforeThresholdNeverFinishes(t *testing.T) {
	b := Board{}
	b.Set(0, 0, Cell{Owner: "A", Count: 3})

	finished, winner := Winner(b, []PlayerID{"A", "B", "C"}, 1, "A")
	if finished || winner != nil {
		t.Errorf("Winner before moveCount reaches player count = (%v, %v), want (false, nil)", finished, winner)
	}
}

func TestWinnerSingleOwnerWins(t *testing.T) {
	b := Board{}
	b.Set(4, 4, Cell{Owner: "B", Count: 3})

	finished, winner := Winner(b, []PlayerID{"A", "B"}, 2, "B")
	if !finished || winner == nil || *winner != "B" {
		t.Errorf("Winner = (%v, %v), want (true, B)", finished, winner)
	}
}

func TestWinnerEmptyBoardFallsBackToMover(t *testing.T) {
	b := Board{}

	finished, winner := Winner(b, []PlayerID{"A", "B"}, 2, "A")
	if !finished || winner == nil || *winner != "A" {
		t.Errorf("Winner = (%v, %v), want (true, A)", finished, winner)
	}
}

func TestWinnerSinglePlayerNeverFinishes(t *testing.T) {
	b := Board{}
	finished, winner := Winner(b, []PlayerID{"A"}, 0, "A")
	if finished || winner != nil {
		t.Errorf("Winner with one player = (%v, %v), want (false, nil)", finished, winner)
	}
}
