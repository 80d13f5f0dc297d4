package game

import (
	"encoding/json"
	"strconv"
)

// cellWire is the JSON shape of a Cell on the wire: {"owner": "...", "count": N}.
type cellWire struct {
	Owner PlayerID `json:"owner"`
	Count int      `json:"count"`
}

// MarshalJSON renders the board as the sparse, string-keyed nested object
// spec.md §6 specifies: {"0":{"3":{"owner":"alice","count":2}}, ...}. Both
// the WebSocket frame encoder and the Postgres JSONB column use this.
func (b Board) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[string]cellWire, len(b))
	for r, row := range b {
		wireRow := make(map[string]cellWire, len(row))
		for c, cell := range row {
			wireRow[strconv.Itoa(c)] = cellWire{Owner: cell.Owner, Count: cell.Count}
		}
		out[strconv.Itoa(r)] = wireRow
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the sparse string-keyed board format back into a
// Board keyed by int.
func (b *Board) UnmarshalJSON(data []byte) error {
	var in map[string]map[string]cellWire
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	out := make(Board, len(in))
	for rawR, row := range in {
		r, err := strconv.Atoi(rawR)
		if err != nil {
			continue
		}
		outRow := make(map[int]Cell, len(row))
		for rawC, cell := range row {
			c, err := strconv.Atoi(rawC)
			if err != nil {
				continue
			}
			outRow[c] = Cell{Owner: cell.Owner, Count: cell.Count}
		}
		out[r] = outRow
	}
	*b = out
	return nil
}
