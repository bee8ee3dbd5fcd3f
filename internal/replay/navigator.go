// Package replay implements the step navigator: a pure state machine over the
// matches of an opened replay.
package replay

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"agentgames/internal/game"
)

var (
	ErrMatchOutOfRange = errors.New("match index out of range")
	ErrUnknownIntent   = errors.New("unknown intent")
)

// FilterAll shows every match.
const FilterAll = "all"

// Navigator tracks the active match and the position inside it. It is a value
// type: every transition returns a new Navigator and leaves the receiver alone.
// The matches slice is shared and must not be mutated.
type Navigator struct {
	matches  []game.Match
	visible  []int
	filter   string
	selected int
	event    int
}

// New positions a navigator at event 0 of the first match.
func New(matches []game.Match) Navigator {
	n := Navigator{matches: matches}
	return n.SetParticipantFilter(FilterAll)
}

// Next advances one event. It is a no-op at the terminal position.
func (n Navigator) Next() Navigator {
	if n.event < n.total() {
		n.event++
	}
	return n
}

// Previous steps back one event, leaving the terminal position if needed.
// It is a no-op at event 0.
func (n Navigator) Previous() Navigator {
	if n.event > 0 {
		n.event--
	}
	return n
}

// JumpToMatch activates the i-th match of the filtered list at event 0.
func (n Navigator) JumpToMatch(i int) (Navigator, error) {
	if i < 0 || i >= len(n.visible) {
		return n, fmt.Errorf("%w: %d of %d", ErrMatchOutOfRange, i, len(n.visible))
	}
	n.selected = i
	n.event = 0
	return n, nil
}

// SetParticipantFilter restricts the match list to matches the participant
// plays in ("all" or empty for every match) and resets to the first of them.
func (n Navigator) SetParticipantFilter(filter string) Navigator {
	if filter == "" {
		filter = FilterAll
	}
	n.filter = filter
	n.visible = lo.FilterMap(n.matches, func(m game.Match, i int) (int, bool) {
		return i, filter == FilterAll || m.Has(filter)
	})
	n.selected = 0
	n.event = 0
	return n
}

// Active returns the active match and its index in the unfiltered list.
func (n Navigator) Active() (game.Match, int, bool) {
	if n.selected >= len(n.visible) {
		return game.Match{}, -1, false
	}
	idx := n.visible[n.selected]
	return n.matches[idx], idx, true
}

// Cursor is the position inside the active match.
func (n Navigator) Cursor() game.Cursor {
	return game.Cursor{Event: n.event, Complete: n.Complete()}
}

// Complete reports whether the terminal position of the active match is shown.
func (n Navigator) Complete() bool {
	return n.event == n.total()
}

// Participants lists every participant across all matches, in first-seen order.
func (n Navigator) Participants() []string {
	return lo.Uniq(lo.FlatMap(n.matches, func(m game.Match, _ int) []string {
		return m.Participants
	}))
}

func (n Navigator) total() int {
	m, _, ok := n.Active()
	if !ok {
		return 0
	}
	return len(m.Events)
}

// State is the serializable view of a navigator.
type State struct {
	SelectedMatch     int      `json:"selectedMatchIndex"`
	CurrentEvent      int      `json:"currentEventIndex"`
	ParticipantFilter string   `json:"participantFilter"`
	Complete          bool     `json:"complete"`
	TotalEvents       int      `json:"totalEvents"`
	MatchCount        int      `json:"matchCount"`
	MatchIndex        int      `json:"matchIndex"`
	Participants      []string `json:"participants,omitempty"`
}

// State reports the navigator position.
func (n Navigator) State() State {
	_, idx, _ := n.Active()
	return State{
		SelectedMatch:     n.selected,
		CurrentEvent:      n.event,
		ParticipantFilter: n.filter,
		Complete:          n.Complete(),
		TotalEvents:       n.total(),
		MatchCount:        len(n.visible),
		MatchIndex:        idx,
		Participants:      n.Participants(),
	}
}
