// Package prisoners replays iterated prisoner's dilemma tournaments. Every
// pairing is a match and every round of the pairing is an event.
package prisoners

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"agentgames/internal/game"
	"agentgames/internal/jsonx"
	"agentgames/internal/stats"
)

const (
	Name = "prisoners_dilemma"

	qtyScore = "score"
)

// Row tones for the joint action of a round.
const (
	ToneCooperate = "mutual-cooperate"
	ToneDefect    = "mutual-defect"
	ToneMixed     = "mixed"
)

// Prisoners implements game.Adapter.
type Prisoners struct{}

func (Prisoners) Info() game.Info {
	return game.Info{Name: Name, Title: "Prisoner's Dilemma", Kind: game.KindRoundRobin, Signature: "pairings"}
}

type payload struct {
	GameInfo    gameInfo                   `json:"game_info"`
	Pairings    []pairing                  `json:"pairings"`
	FinalScores jsonx.Object[jsonx.Number] `json:"final_scores"`
}

type gameInfo struct {
	Players jsonx.Strings `json:"players"`
}

type pairing struct {
	Player1 string  `json:"player1"`
	Player2 string  `json:"player2"`
	Rounds  []round `json:"rounds"`
}

type round struct {
	RoundNumber int                        `json:"round_number"`
	Actions     jsonx.Object[string]       `json:"actions"`
	Scores      jsonx.Object[jsonx.Number] `json:"scores"`
}

func (Prisoners) Open(raw json.RawMessage) (game.Replay, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode prisoners feedback: %w", err)
	}
	r := &replay{payload: p}
	for _, pr := range p.Pairings {
		r.matches = append(r.matches, normalize(pr))
	}
	r.scores = r.finalScores()
	return r, nil
}

func normalize(pr pairing) game.Match {
	m := game.Match{
		Participants: []string{pr.Player1, pr.Player2},
		Meta:         map[string]string{"rounds": fmt.Sprint(len(pr.Rounds))},
	}
	total := map[string]float64{pr.Player1: 0, pr.Player2: 0}
	var prev *game.Snapshot
	for i, rd := range pr.Rounds {
		ev := game.Event{
			Index:   i,
			Actors:  m.Participants,
			Before:  prev,
			Actions: map[string]string{},
			Outcome: map[string]string{"tone": tone(rd, pr)},
		}
		for _, name := range m.Participants {
			action, _ := rd.Actions.Get(name)
			ev.Actions[name] = action
			score, _ := rd.Scores.Get(name)
			total[name] += jsonx.Finite(score.Float())
		}
		ev.After = game.PlayerSnapshot(qtyScore, copyTotals(total))
		m.Events = append(m.Events, ev)
		prev = ev.After
	}
	switch a, b := total[pr.Player1], total[pr.Player2]; {
	case len(pr.Rounds) == 0:
	case a > b:
		m.Winner = pr.Player1
	case b > a:
		m.Winner = pr.Player2
	}
	return m
}

func copyTotals(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// normalizeAction maps "cooperate", "C", "defect", "D" and their case
// variants to "C" or "D". Anything else is returned lower-cased.
func normalizeAction(action string) string {
	switch a := strings.ToLower(strings.TrimSpace(action)); a {
	case "c", "cooperate", "cooperated", "cooperation":
		return "C"
	case "d", "defect", "defected", "defection":
		return "D"
	default:
		return a
	}
}

func tone(rd round, pr pairing) string {
	a, _ := rd.Actions.Get(pr.Player1)
	b, _ := rd.Actions.Get(pr.Player2)
	switch x, y := normalizeAction(a), normalizeAction(b); {
	case x == "C" && y == "C":
		return ToneCooperate
	case x == "D" && y == "D":
		return ToneDefect
	default:
		return ToneMixed
	}
}

type replay struct {
	payload payload
	matches []game.Match
	scores  []game.ScoreView
}

func (r *replay) Kind() game.Kind       { return game.KindRoundRobin }
func (r *replay) Matches() []game.Match { return r.matches }

// finalScores ranks the tournament totals. Without final_scores in the
// payload the pairing totals are summed per player instead.
func (r *replay) finalScores() []game.ScoreView {
	totals := r.payload.FinalScores
	if len(totals) == 0 {
		sum := map[string]float64{}
		var order []string
		for _, name := range r.payload.GameInfo.Players {
			if _, ok := sum[name]; !ok {
				order = append(order, name)
				sum[name] = 0
			}
		}
		for _, m := range r.matches {
			final := stats.EffectiveSnapshot(m, game.Cursor{Event: len(m.Events), Complete: true})
			for _, name := range m.Participants {
				if _, ok := sum[name]; !ok {
					order = append(order, name)
				}
				sum[name] += final.Value(name, qtyScore)
			}
		}
		for _, name := range order {
			totals = append(totals, jsonx.Field[jsonx.Number]{Key: name, Value: jsonx.Number(sum[name])})
		}
	}
	out := make([]game.ScoreView, 0, len(totals))
	for _, s := range stats.Rank(totals) {
		out = append(out, game.ScoreView{Rank: s.Rank, Name: s.Name, Score: s.Points})
	}
	return out
}

func (r *replay) Describe(match, event int) []string {
	if match < 0 || match >= len(r.payload.Pairings) {
		return nil
	}
	pr := r.payload.Pairings[match]
	if event < 0 || event >= len(pr.Rounds) {
		return nil
	}
	rv := roundView(pr, event)
	return []string{fmt.Sprintf("Round %d: %s %s, %s %s (%s to %s)",
		rv.Number,
		pr.Player1, displayAction(rv.Actions[0]),
		pr.Player2, displayAction(rv.Actions[1]),
		humanize.Commaf(rv.Scores[0]), humanize.Commaf(rv.Scores[1]),
	)}
}

func displayAction(action string) string {
	switch normalizeAction(action) {
	case "C":
		return "cooperated"
	case "D":
		return "defected"
	case "":
		return "did nothing"
	}
	return action
}

func roundView(pr pairing, i int) game.RoundView {
	rd := pr.Rounds[i]
	number := rd.RoundNumber
	if number <= 0 {
		number = i + 1
	}
	rv := game.RoundView{Number: number, Tone: tone(rd, pr)}
	for j, name := range []string{pr.Player1, pr.Player2} {
		rv.Actions[j], _ = rd.Actions.Get(name)
		score, _ := rd.Scores.Get(name)
		rv.Scores[j] = jsonx.Finite(score.Float())
	}
	return rv
}

func (r *replay) Visualize(match int, cur game.Cursor) game.Frame {
	if match < 0 || match >= len(r.matches) {
		f := game.NoData(game.KindRoundRobin, Name)
		f.Scores = r.scores
		return f
	}
	m, pr := r.matches[match], r.payload.Pairings[match]
	f := game.Frame{
		Kind:     game.KindRoundRobin,
		Game:     Name,
		Title:    fmt.Sprintf("%s vs %s", pr.Player1, pr.Player2),
		Match:    match,
		Event:    cur.Event,
		Events:   len(m.Events),
		Complete: cur.Complete,
		Meta:     m.Meta,
		Scores:   r.scores,
	}
	if len(m.Events) == 0 {
		f.Notice = game.NoticeNoData
		return f
	}

	shown := len(pr.Rounds)
	if !cur.Complete && cur.Event < len(pr.Rounds) {
		shown = cur.Event + 1
		f.Summary = r.Describe(match, cur.Event)
	}
	for i := 0; i < shown; i++ {
		f.Rounds = append(f.Rounds, roundView(pr, i))
	}
	for _, name := range m.Participants {
		f.Players = append(f.Players, game.PlayerView{
			Name:  name,
			Stats: []game.StatView{{Label: "Score", Value: stats.ValueAt(m, cur, name, qtyScore)}},
		})
	}
	if cur.Complete {
		f.Winner = m.Winner
		if m.Winner == "" {
			f.Summary = []string{"Pairing tied"}
		} else {
			f.Summary = []string{m.Winner + " wins the pairing"}
		}
	}
	return f
}
