package game

import "testing"

func TestNeighborsOrderAndBounds(t *testing.T) {
	got := Neighbors(0, 0, 5)
	want := [][2]int{{1, 0}, {0, 1}}
	if len(got) != len(want) {
		t.Fatalf("Neighbors(0,0,5) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Neighbors(0,0,5)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNeighborsCenterIsUpDownLeftRight(t *testing.T) {
	got := Neighbors(2, 2, 5)
	want := [][2]int{{1, 2}, {3, 2}, {2, 1}, {2, 3}}
	if len(got) != 4 {
		t.Fatalf("Neighbors(2,2,5) = %v, want 4 entries", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Neighbors(2,2,5)[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCriticalCells(t *testing.T) {
	b := Board{}
	b.Set(0, 0, Cell{Owner: "a", Count: 4})
	b.Set(0, 1, Cell{Owner: "a", Count: 3})

	crit := CriticalCells(b)
	if len(crit) != 1 || crit[0] != [2]int{0, 0} {
		t.Errorf("CriticalCells = %v, want [[0 0]]", crit)
	}
}

// TestExplodeScenario2 reproduces spec.md scenario 2 (single chain reaction).
func TestExplodeScenario2(t *testing.T) {
	b := Board{}
	b.Set(0, 0, Cell{Owner: "A", Count: 4})
	b.Set(0, 1, Cell{Owner: "A", Count: 3})

	Explode(b, 0, 0, "A", 5)

	if _, ok := b.Get(0, 0); ok {
		t.Errorf("(0,0) should be empty after exploding, got present")
	}
	if cell, ok := b.Get(1, 0); !ok || cell.Count != 1 || cell.Owner != "A" {
		t.Errorf("(1,0) = %+v, ok=%v, want {A 1}", cell, ok)
	}
	if cell, ok := b.Get(0, 1); !ok || cell.Count != 4 || cell.Owner != "A" {
		t.Errorf("(0,1) = %+v, ok=%v, want {A 4}", cell, ok)
	}

	// Wave 2: (0,1) is now critical.
	Explode(b, 0, 1, "A", 5)

	if _, ok := b.Get(0, 1); ok {
		t.Errorf("(0,1) should be empty after exploding, got present")
	}
	for _, want := range []struct {
		r, c  int
		count int
	}{{0, 0, 1}, {0, 2, 1}, {1, 1, 1}} {
		cell, ok := b.Get(want.r, want.c)
		if !ok || cell.Count != want.count || cell.Owner != "A" {
			t.Errorf("(%d,%d) = %+v, ok=%v, want {A %d}", want.r, want.c, cell, ok, want.count)
		}
	}

	if crit := CriticalCells(b); len(crit) != 0 {
		t.Errorf("expected no more critical cells, got %v", crit)
	}
}

// TestExplodeCapture reproduces spec.md scenario 3: a critical cell's
// explosion captures an enemy-owned neighbor.
func TestExplodeCapture(t *testing.T) {
	b := Board{}
	b.Set(0, 0, Cell{Owner: "A", Count: 4})
	b.Set(0, 1, Cell{Owner: "B", Count: 2})

	Explode(b, 0, 0, "A", 5)

	cell, ok := b.Get(0, 1)
	if !ok || cell.Owner != "A" || cell.Count != 3 {
		t.Errorf("captured cell (0,1) = %+v, ok=%v, want {A 3}", cell, ok)
	}
}

// TestExplodeCommutative checks P3: exploding a set of critical cells in
// either order yields the same final board.
func TestExplodeCommutative(t *testing.T) {
	build := func() Board {
		b := Board{}
		b.Set(2, 2, Cell{Owner: "A", Count: 4})
		b.Set(2, 3, Cell{Owner: "A", Count: 4})
		return b
	}

	order1 := build()
	Explode(order1, 2, 2, "A", 5)
	Explode(order1, 2, 3, "A", 5)

	order2 := build()
	Explode(order2, 2, 3, "A", 5)
	Explode(order2, 2, 2, "A", 5)

	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			a, aok := order1.Get(r, c)
			bb, bok := order2.Get(r, c)
			if aok != bok || a != bb {
				t.Errorf("cell (%d,%d) differs by order: %v/%v vs %v/%v", r, c, a, aok, bb, bok)
			}
		}
	}
}

func TestCountPieces(t *testing.T) {
	b := Board{}
	b.Set(0, 0, Cell{Owner: "A", Count: 3})
	b.Set(1, 1, Cell{Owner: "A", Count: 2})
	b.Set(2, 2, Cell{Owner: "B", Count: 1})

	if got := CountPieces(b, "A"); got != 2 {
		t.Errorf("CountPieces(A) = %d, want 2", got)
	}
	if got := CountPieces(b, "B"); got != 1 {
		t.Errorf("CountPieces(B) = %d, want 1", got)
	}
	if got := CountPieces(b, "C"); got != 0 {
		t.Errorf("CountPieces(C) = %d, want 0", got)
	}
}

func TestBoardSizeForPlayers(t *testing.T) {
	cases := map[int]int{2: 5, 3: 6, 4: 7, 5: 7, 7: 7}
	for players, want := range cases {
		if got := BoardSizeForPlayers(players); got != want {
			t.Errorf("BoardSizeForPlayers(%d) = %d, want %d", players, got, want)
		}
	}
}
