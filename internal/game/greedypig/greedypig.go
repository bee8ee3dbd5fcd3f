// Package greedypig replays the Greedy Pig dice game: each round is a match
// and every roll of the die is one event.
package greedypig

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"agentgames/internal/game"
	"agentgames/internal/jsonx"
	"agentgames/internal/stats"
)

const (
	Name = "greedy_pig"

	qtyUnbanked = "unbanked"
	qtyBanked   = "banked"
)

// GreedyPig implements game.Adapter.
type GreedyPig struct{}

func (GreedyPig) Info() game.Info {
	return game.Info{Name: Name, Title: "Greedy Pig", Kind: game.KindDice, Signature: "rounds"}
}

type payload struct {
	Rounds []round `json:"rounds"`
}

type round struct {
	Number      int                        `json:"number"`
	Rolls       []roll                     `json:"rolls"`
	FinalScores jsonx.Object[jsonx.Number] `json:"final_scores"`
}

type roll struct {
	RollNumber   int                       `json:"roll_number"`
	Value        int                       `json:"value"`
	PlayerStates jsonx.Object[playerState] `json:"player_states"`
}

type playerState struct {
	Unbanked jsonx.Number `json:"unbanked_money"`
	Banked   jsonx.Number `json:"banked_money"`
	Action   string       `json:"action"`
}

func (GreedyPig) Open(raw json.RawMessage) (game.Replay, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode greedy pig feedback: %w", err)
	}
	r := &replay{rounds: p.Rounds}
	for _, rd := range p.Rounds {
		r.matches = append(r.matches, normalize(rd))
	}
	return r, nil
}

// isBust reports whether the participant lost their unbanked money on this roll.
func isBust(value int, action string) bool {
	switch action {
	case "lost_all", "bust", "busted":
		return true
	case "continue":
		return value == 1
	}
	return false
}

func normalize(rd round) game.Match {
	m := game.Match{Meta: map[string]string{"round": fmt.Sprint(rd.Number)}}
	seen := map[string]bool{}
	for i, rl := range rd.Rolls {
		ev := game.Event{
			Index:   i,
			Actions: map[string]string{},
			Outcome: map[string]string{"roll": fmt.Sprint(rl.Value)},
		}
		after := &game.Snapshot{Players: map[string]game.Values{}}
		for _, ps := range rl.PlayerStates {
			name, st := ps.Key, ps.Value
			if !seen[name] {
				seen[name] = true
				m.Participants = append(m.Participants, name)
			}
			ev.Actors = append(ev.Actors, name)
			ev.Actions[name] = st.Action
			unbanked := st.Unbanked.Float()
			if isBust(rl.Value, st.Action) {
				unbanked = 0
			}
			after.Players[name] = game.Values{qtyUnbanked: unbanked, qtyBanked: st.Banked.Float()}
		}
		ev.After = after
		if i > 0 {
			ev.Before = m.Events[i-1].After
		}
		m.Events = append(m.Events, ev)
	}
	if ranked := stats.Rank(rd.FinalScores); len(ranked) > 0 {
		if len(ranked) == 1 || ranked[0].Points > ranked[1].Points {
			m.Winner = ranked[0].Name
		}
	}
	return m
}

type replay struct {
	rounds  []round
	matches []game.Match
}

func (r *replay) Kind() game.Kind       { return game.KindDice }
func (r *replay) Matches() []game.Match { return r.matches }

func (r *replay) Describe(match, event int) []string {
	if match < 0 || match >= len(r.rounds) {
		return nil
	}
	rd := r.rounds[match]
	if event < 0 || event >= len(rd.Rolls) {
		return nil
	}
	rl := rd.Rolls[event]
	lines := []string{fmt.Sprintf("Roll %d: rolled %s", rollNumber(rl, event), face(rl.Value))}
	for _, ps := range rl.PlayerStates {
		name, st := ps.Key, ps.Value
		switch {
		case isBust(rl.Value, st.Action):
			lines = append(lines, fmt.Sprintf("%s busted and lost %s unbanked", name, humanize.Commaf(st.Unbanked.Float())))
		case st.Action == "bank":
			lines = append(lines, fmt.Sprintf("%s banked, total %s", name, humanize.Commaf(st.Banked.Float())))
		case st.Action == "continue":
			lines = append(lines, fmt.Sprintf("%s kept rolling with %s unbanked", name, humanize.Commaf(st.Unbanked.Float())))
		case st.Action != "":
			lines = append(lines, fmt.Sprintf("%s: %s", name, st.Action))
		}
	}
	return lines
}

func rollNumber(rl roll, index int) int {
	if rl.RollNumber > 0 {
		return rl.RollNumber
	}
	return index + 1
}

func (r *replay) Visualize(match int, cur game.Cursor) game.Frame {
	if match < 0 || match >= len(r.matches) {
		return game.NoData(game.KindDice, Name)
	}
	m, rd := r.matches[match], r.rounds[match]
	f := game.Frame{
		Kind:     game.KindDice,
		Game:     Name,
		Title:    fmt.Sprintf("Round %d", rd.Number),
		Match:    match,
		Event:    cur.Event,
		Events:   len(m.Events),
		Complete: cur.Complete,
		Meta:     m.Meta,
	}
	if len(m.Events) == 0 {
		f.Notice = game.NoticeNoData
		return f
	}

	snap := stats.EffectiveSnapshot(m, cur)
	var ev *game.Event
	if !cur.Complete && cur.Event < len(m.Events) {
		ev = &m.Events[cur.Event]
		rl := rd.Rolls[cur.Event]
		f.Dice = &game.DiceView{Roll: rl.Value, Face: face(rl.Value), Bust: rl.Value == 1}
		f.Summary = r.Describe(match, cur.Event)
	}

	for _, name := range m.Participants {
		pv := game.PlayerView{
			Name: name,
			Stats: []game.StatView{
				{Label: "Unbanked", Value: snap.Value(name, qtyUnbanked)},
				{Label: "Banked", Value: snap.Value(name, qtyBanked)},
			},
		}
		if ev != nil {
			action := ev.Actions[name]
			pv.Action = actionView(action, f.Dice.Roll)
			pv.Bust = isBust(f.Dice.Roll, action)
		}
		f.Players = append(f.Players, pv)
	}

	if cur.Complete {
		f.Winner = m.Winner
		f.Summary = []string{fmt.Sprintf("Round %d complete", rd.Number)}
		for _, s := range stats.Rank(rd.FinalScores) {
			f.Scores = append(f.Scores, game.ScoreView{Rank: s.Rank, Name: s.Name, Score: s.Points})
		}
		if len(f.Scores) == 0 {
			f.Scores = bankedScores(m.Participants, snap)
		}
	}
	return f
}

func bankedScores(participants []string, snap game.Snapshot) []game.ScoreView {
	out := make([]game.ScoreView, 0, len(participants))
	for _, name := range participants {
		out = append(out, game.ScoreView{Name: name, Score: snap.Value(name, qtyBanked)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

var faces = [...]string{"⚀", "⚁", "⚂", "⚃", "⚄", "⚅"}

func face(value int) string {
	if value < 1 || value > 6 {
		return "?"
	}
	return faces[value-1]
}

func actionView(action string, value int) *game.ActionView {
	switch {
	case isBust(value, action):
		return &game.ActionView{ID: action, Label: "Bust", Category: game.ActionBust, Icon: "💥", Color: "red"}
	case action == "bank":
		return &game.ActionView{ID: action, Label: "Bank", Category: game.ActionBank, Icon: "💰", Color: "green"}
	case action == "continue":
		return &game.ActionView{ID: action, Label: "Continue", Category: game.ActionRoll, Icon: "🎲", Color: "blue"}
	case action == "":
		return nil
	}
	return &game.ActionView{ID: action, Label: action, Category: game.ActionUnknown, Icon: "❔", Color: "gray"}
}
