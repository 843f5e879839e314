package models

import "fmt"

// LineupSize is the number of batters in a batting order.
const LineupSize = 9

// Roster represents a team's game roster: nine batters in batting order,
// a designated starting pitcher and an optional bullpen.
type Roster struct {
	TeamID          string   `json:"team_id"`
	TeamName        string   `json:"team_name"`
	Lineup          []Player `json:"lineup"` // batting order, exactly nine
	StartingPitcher Player   `json:"starting_pitcher"`
	Bullpen         []Player `json:"bullpen,omitempty"`
}

// requiredPositions must all be covered by the batting order. Outfield slots
// are counted generically.
var requiredPositions = []string{"C", "1B", "2B", "3B", "SS"}

func isOutfield(pos string) bool {
	switch pos {
	case "LF", "CF", "RF", "OF":
		return true
	}
	return false
}

// Validate checks the roster invariants: exactly nine batters, infield and
// catcher positions covered with at least three outfielders, and a starting
// pitcher distinct from the lineup unless explicitly two-way.
func (r *Roster) Validate() error {
	if len(r.Lineup) != LineupSize {
		return fmt.Errorf("lineup has %d batters, want %d", len(r.Lineup), LineupSize)
	}

	covered := make(map[string]bool)
	outfielders := 0
	for i := range r.Lineup {
		p := &r.Lineup[i]
		if isOutfield(p.Position) {
			outfielders++
			continue
		}
		covered[p.Position] = true
	}
	for _, pos := range requiredPositions {
		if !covered[pos] {
			return fmt.Errorf("lineup missing position %s", pos)
		}
	}
	if outfielders < 3 {
		return fmt.Errorf("lineup has %d outfielders, want at least 3", outfielders)
	}

	if r.StartingPitcher.ID == "" {
		return fmt.Errorf("roster has no starting pitcher")
	}
	if r.StartingPitcher.Role != RoleTwoWay {
		for i := range r.Lineup {
			if r.Lineup[i].ID == r.StartingPitcher.ID {
				return fmt.Errorf("starting pitcher %s also appears in the lineup", r.StartingPitcher.ID)
			}
		}
	}

	for i := range r.Lineup {
		if err := r.Lineup[i].Batting.Validate(); err != nil {
			return fmt.Errorf("batter %s: %w", r.Lineup[i].ID, err)
		}
	}

	return nil
}
