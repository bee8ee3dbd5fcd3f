// Package stats derives values that are not stored verbatim in a match
// result: bar scaling, values at a navigator position, win rates and rankings.
package stats

import (
	"fmt"
	"sort"
	"strings"

	"agentgames/internal/game"
	"agentgames/internal/jsonx"
	"agentgames/internal/result"
)

// MaxObserved scans every before and after snapshot of m for the participant's
// quantity and returns the largest value seen. When nothing positive was
// observed, floor is returned instead.
func MaxObserved(m game.Match, participant, quantity string, floor float64) float64 {
	max := 0.0
	observe := func(s *game.Snapshot) {
		if s == nil {
			return
		}
		if v := jsonx.Finite(s.Value(participant, quantity)); v > max {
			max = v
		}
	}
	for _, ev := range m.Events {
		observe(ev.Before)
		observe(ev.After)
	}
	observe(m.Final)
	if max <= 0 {
		return floor
	}
	return max
}

// EffectiveSnapshot resolves the state to display at cur:
// the terminal position shows the match's final snapshot or the last event's
// after state; otherwise the current event's after, then its before; then the
// first event's before; and finally zero values for every participant.
func EffectiveSnapshot(m game.Match, cur game.Cursor) game.Snapshot {
	n := len(m.Events)
	if cur.Complete || cur.Event >= n {
		if m.Final != nil {
			return *m.Final
		}
		if n > 0 {
			last := m.Events[n-1]
			if last.After != nil {
				return *last.After
			}
			if last.Before != nil {
				return *last.Before
			}
		}
	} else if cur.Event >= 0 {
		ev := m.Events[cur.Event]
		if ev.After != nil {
			return *ev.After
		}
		if ev.Before != nil {
			return *ev.Before
		}
	}
	if n > 0 && m.Events[0].Before != nil {
		return *m.Events[0].Before
	}
	return zeroSnapshot(m.Participants)
}

func zeroSnapshot(participants []string) game.Snapshot {
	players := make(map[string]game.Values, len(participants))
	for _, p := range participants {
		players[p] = game.Values{}
	}
	return game.Snapshot{Players: players}
}

// ValueAt returns the participant's quantity as displayed at cur.
func ValueAt(m game.Match, cur game.Cursor, participant, quantity string) float64 {
	return jsonx.Finite(EffectiveSnapshot(m, cur).Value(participant, quantity))
}

// WinRate formats wins/total as a percentage with one decimal place.
// A zero or malformed total yields "0.0".
func WinRate(wins, total float64) string {
	wins, total = jsonx.Finite(wins), jsonx.Finite(total)
	if total <= 0 {
		return "0.0"
	}
	return fmt.Sprintf("%.1f", wins/total*100)
}

// Standing is one ranked participant.
type Standing struct {
	Rank   int     `json:"rank"`
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// Rank orders participants by points, highest first. Ties keep the order in
// which the participants appear in scores.
func Rank(scores result.Scores) []Standing {
	out := make([]Standing, len(scores))
	for i, s := range scores {
		out[i] = Standing{Name: s.Key, Points: jsonx.Finite(s.Value.Float())}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// ProjectColumns drops the consumed statistics from table so that columns
// already shown by a dedicated display are not repeated. Names compare
// case-insensitively.
func ProjectColumns(table result.Table, consumed ...string) result.Table {
	skip := make(map[string]bool, len(consumed))
	for _, c := range consumed {
		skip[strings.ToLower(c)] = true
	}
	out := make(result.Table, 0, len(table))
	for _, col := range table {
		if skip[strings.ToLower(col.Key)] {
			continue
		}
		out = append(out, col)
	}
	return out
}
