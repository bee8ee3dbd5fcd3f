// Package arena replays turn-based battles between two champions. Each battle
// is a match and each attack is an event with an attacker and a defender.
package arena

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"agentgames/internal/game"
	"agentgames/internal/jsonx"
	"agentgames/internal/stats"
)

const (
	Name = "arena_champions"

	// DefaultHPFloor is the smallest bar scale used when no health was observed.
	DefaultHPFloor = 100

	qtyHP = "hp"

	defaultMatchType = "standard"
)

// Arena implements game.Adapter.
type Arena struct {
	floor float64
}

// New returns the adapter with the given HP bar floor; non-positive values
// use DefaultHPFloor.
func New(hpFloor float64) Arena {
	if hpFloor <= 0 {
		hpFloor = DefaultHPFloor
	}
	return Arena{floor: hpFloor}
}

func (a Arena) Info() game.Info {
	return game.Info{Name: Name, Title: "Arena Champions", Kind: game.KindBattle, Signature: "battles"}
}

type payload struct {
	Battles []battle `json:"battles"`
}

type battle struct {
	Player1   string                        `json:"player1"`
	Player2   string                        `json:"player2"`
	Turns     []turn                        `json:"turns"`
	Winner    string                        `json:"winner"`
	MatchInfo jsonx.Object[json.RawMessage] `json:"match_info"`
}

type turn struct {
	Turn         int                           `json:"turn"`
	Attacker     string                        `json:"attacker"`
	Defender     string                        `json:"defender"`
	AttackAction string                        `json:"attack_action"`
	DefendAction string                        `json:"defend_action"`
	HealthBefore jsonx.Object[jsonx.Number]    `json:"health_before"`
	HealthAfter  jsonx.Object[jsonx.Number]    `json:"health_after"`
	Effects      jsonx.Object[json.RawMessage] `json:"effects"`
	Feedback     json.RawMessage               `json:"feedback"`
}

func (a Arena) Open(raw json.RawMessage) (game.Replay, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode arena feedback: %w", err)
	}
	r := &replay{floor: a.floor, battles: p.Battles}
	for _, b := range p.Battles {
		r.matches = append(r.matches, normalize(b))
	}
	return r, nil
}

func health(o jsonx.Object[jsonx.Number]) *game.Snapshot {
	values := make(map[string]float64, len(o))
	for _, f := range o {
		values[f.Key] = jsonx.Finite(f.Value.Float())
	}
	return game.PlayerSnapshot(qtyHP, values)
}

func normalize(b battle) game.Match {
	m := game.Match{
		Winner: b.Winner,
		Meta:   matchMeta(b.MatchInfo),
	}
	add := func(name string) {
		if name != "" && !m.Has(name) {
			m.Participants = append(m.Participants, name)
		}
	}
	add(b.Player1)
	add(b.Player2)

	for i, t := range b.Turns {
		add(t.Attacker)
		add(t.Defender)
		ev := game.Event{
			Index:    i,
			Actors:   []string{t.Attacker, t.Defender},
			Before:   health(t.HealthBefore),
			After:    health(t.HealthAfter),
			Actions:  map[string]string{t.Attacker: t.AttackAction, t.Defender: t.DefendAction},
			Outcome:  map[string]string{},
			Feedback: playerFeedback(t.Feedback),
		}
		for _, e := range t.Effects {
			ev.Outcome[e.Key] = jsonx.Text(e.Value)
		}
		if ev.Before == nil && i > 0 {
			ev.Before = m.Events[i-1].After
		}
		m.Events = append(m.Events, ev)
	}
	// A turn without health_after ends where the next turn starts.
	for i := 0; i+1 < len(m.Events); i++ {
		if m.Events[i].After == nil {
			m.Events[i].After = m.Events[i+1].Before
		}
	}
	return m
}

func matchMeta(info jsonx.Object[json.RawMessage]) map[string]string {
	meta := map[string]string{"match_type": defaultMatchType}
	for _, f := range info {
		if v := jsonx.Text(f.Value); v != "" {
			meta[f.Key] = v
		}
	}
	return meta
}

// playerFeedback reads per-player feedback notes. Feedback that is not keyed
// by player is kept under the empty name.
func playerFeedback(raw json.RawMessage) map[string][]string {
	switch jsonx.ShapeOf(raw) {
	case jsonx.ShapeObject:
		var byPlayer jsonx.Object[jsonx.Strings]
		if err := json.Unmarshal(raw, &byPlayer); err != nil {
			return nil
		}
		out := make(map[string][]string, len(byPlayer))
		for _, f := range byPlayer {
			if len(f.Value) > 0 {
				out[f.Key] = f.Value
			}
		}
		return out
	case jsonx.ShapeString, jsonx.ShapeArray:
		var notes jsonx.Strings
		if err := json.Unmarshal(raw, &notes); err != nil || len(notes) == 0 {
			return nil
		}
		return map[string][]string{"": notes}
	}
	return nil
}

type replay struct {
	floor   float64
	battles []battle
	matches []game.Match
}

func (r *replay) Kind() game.Kind       { return game.KindBattle }
func (r *replay) Matches() []game.Match { return r.matches }

func (r *replay) Describe(match, event int) []string {
	if match < 0 || match >= len(r.battles) {
		return nil
	}
	turns := r.battles[match].Turns
	if event < 0 || event >= len(turns) {
		return nil
	}
	t := turns[event]
	number := t.Turn
	if number <= 0 {
		number = event + 1
	}
	lines := []string{fmt.Sprintf("Turn %d: %s used %s, %s responded with %s",
		number, t.Attacker, label(t.AttackAction), t.Defender, label(t.DefendAction))}
	for _, e := range t.Effects {
		lines = append(lines, effectLine(t, e.Key, e.Value))
	}
	if notes := playerFeedback(t.Feedback)[""]; len(notes) > 0 {
		lines = append(lines, notes...)
	}
	return lines
}

func effectLine(t turn, key string, raw json.RawMessage) string {
	amount := humanize.Commaf(jsonx.ParseNumber(raw))
	switch key {
	case "damage_dealt", "damage":
		return fmt.Sprintf("%s: Dealt %s damage", t.Attacker, amount)
	case "damage_blocked", "blocked":
		return fmt.Sprintf("%s: Blocked %s damage", t.Defender, amount)
	case "damage_taken":
		return fmt.Sprintf("%s: Took %s damage", t.Defender, amount)
	case "healing", "healed":
		return fmt.Sprintf("%s: Healed %s", t.Attacker, amount)
	}
	return fmt.Sprintf("%s: %s", label(key), jsonx.Text(raw))
}

func (r *replay) Visualize(match int, cur game.Cursor) game.Frame {
	if match < 0 || match >= len(r.matches) {
		return game.NoData(game.KindBattle, Name)
	}
	m := r.matches[match]
	f := game.Frame{
		Kind:     game.KindBattle,
		Game:     Name,
		Title:    strings.Join(m.Participants, " vs "),
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

	var ev *game.Event
	if !cur.Complete && cur.Event < len(m.Events) {
		ev = &m.Events[cur.Event]
		f.Summary = r.Describe(match, cur.Event)
	}
	for _, name := range m.Participants {
		hp := stats.ValueAt(m, cur, name, qtyHP)
		pv := game.PlayerView{
			Name:  name,
			Bar:   game.NewBar(hp, stats.MaxObserved(m, name, qtyHP, r.floor)),
			Stats: []game.StatView{{Label: "HP", Value: hp}},
		}
		if ev != nil {
			if action, ok := ev.Actions[name]; ok {
				v := Categorize(action)
				pv.Action = &v
			}
			pv.Notes = ev.Feedback[name]
		}
		f.Players = append(f.Players, pv)
	}
	if cur.Complete {
		f.Winner = m.Winner
		if m.Winner != "" {
			f.Summary = []string{m.Winner + " wins"}
		} else {
			f.Summary = []string{"No winner"}
		}
	}
	return f
}

var (
	attackWords = []string{"attack", "strike", "hit", "slash", "punch", "kick", "stab", "smash", "shoot", "blast", "fireball", "bite"}
	defendWords = []string{"defend", "block", "shield", "guard", "parry", "brace", "counter"}
	evadeWords  = []string{"dodge", "evade", "evasion", "roll", "dash", "sidestep", "retreat", "jump", "flee"}
	waitWords   = []string{"wait", "rest", "idle", "pass", "skip", "charge", "focus"}
)

func containsAny(action string, words []string) bool {
	for _, w := range words {
		if strings.Contains(action, w) {
			return true
		}
	}
	return false
}

// Categorize maps an action identifier onto the battle icon taxonomy.
// Unrecognized identifiers get the neutral unknown style.
func Categorize(action string) game.ActionView {
	id := strings.ToLower(strings.TrimSpace(action))
	v := game.ActionView{ID: action, Label: label(action)}
	switch {
	case id == "":
		v.Category, v.Icon, v.Color, v.Label = game.ActionUnknown, "❓", "gray", "Unknown action"
	case containsAny(id, attackWords):
		v.Category, v.Icon, v.Color = game.ActionAttack, "⚔️", "red"
	case containsAny(id, defendWords):
		v.Category, v.Icon, v.Color = game.ActionDefend, "🛡️", "blue"
	case containsAny(id, evadeWords):
		v.Category, v.Icon, v.Color = game.ActionEvade, "💨", "green"
	case containsAny(id, waitWords):
		v.Category, v.Icon, v.Color = game.ActionWait, "⏳", "amber"
	default:
		v.Category, v.Icon, v.Color = game.ActionUnknown, "❓", "gray"
	}
	return v
}

// label turns an identifier like "heavy_attack" into "Heavy attack".
func label(id string) string {
	s := strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(id))
	if s == "" {
		return "nothing"
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
