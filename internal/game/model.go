package game

// Values holds the numeric quantities of one participant, e.g. "hp" or "banked".
type Values map[string]float64

// Snapshot is the state of a match at one point in time.
type Snapshot struct {
	Players map[string]Values `json:"players,omitempty"`
	// Cells maps a board cell ("row,col") to its occupant. Unset cells are absent.
	Cells map[string]string `json:"cells,omitempty"`
}

// Value returns the quantity for participant, zero when unknown.
func (s Snapshot) Value(participant, quantity string) float64 {
	if s.Players == nil {
		return 0
	}
	return s.Players[participant][quantity]
}

// Event is one turn, move or roll of a match. Before and After are nil when the
// payload did not carry that snapshot.
type Event struct {
	Index    int                 `json:"index"`
	Actors   []string            `json:"actors"`
	Before   *Snapshot           `json:"before,omitempty"`
	After    *Snapshot           `json:"after,omitempty"`
	Actions  map[string]string   `json:"actions,omitempty"`
	Outcome  map[string]string   `json:"outcome,omitempty"`
	Feedback map[string][]string `json:"feedback,omitempty"`
}

// Match is one pairing or game instance within a feedback payload.
type Match struct {
	Participants []string          `json:"participants"`
	Events       []Event           `json:"events"`
	Winner       string            `json:"winner,omitempty"`
	Final        *Snapshot         `json:"final,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// Has reports whether name takes part in the match.
func (m Match) Has(name string) bool {
	for _, p := range m.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// Cursor is a position inside a match: Event ranges over [0, len(Events)] and
// Complete is set once the terminal position is reached.
type Cursor struct {
	Event    int  `json:"event"`
	Complete bool `json:"complete"`
}

// PlayerSnapshot builds a snapshot with a single quantity per participant.
func PlayerSnapshot(quantity string, values map[string]float64) *Snapshot {
	if len(values) == 0 {
		return nil
	}
	players := make(map[string]Values, len(values))
	for name, v := range values {
		players[name] = Values{quantity: v}
	}
	return &Snapshot{Players: players}
}
