package arena

import (
	"encoding/json"
	"testing"

	"agentgames/internal/game"
)

const battles = `{
	"battles": [
		{
			"player1": "A",
			"player2": "B",
			"turns": [
				{
					"turn": 1, "attacker": "A", "defender": "B",
					"attack_action": "heavy_attack", "defend_action": "block",
					"health_before": {"A": 50, "B": 42},
					"health_after": {"A": 50, "B": 30},
					"effects": {"damage_dealt": 12, "defense_result": "partial"},
					"feedback": {"A": ["Good opening"], "B": "Blocked too late"}
				},
				{
					"turn": 2, "attacker": "B", "defender": "A",
					"attack_action": "moonwalk", "defend_action": "dodge",
					"health_before": {"A": 50, "B": 30},
					"health_after": {"A": 58, "B": 30}
				}
			],
			"winner": "A"
		},
		{"player1": "C", "player2": "D", "turns": [], "match_info": {"match_type": "ranked"}}
	]
}`

func open(t *testing.T) game.Replay {
	t.Helper()
	rp, err := New(0).Open(json.RawMessage(battles))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return rp
}

func player(f game.Frame, name string) game.PlayerView {
	for _, p := range f.Players {
		if p.Name == name {
			return p
		}
	}
	return game.PlayerView{}
}

func TestAttackerAndDefenderCategories(t *testing.T) {
	f := open(t).Visualize(0, game.Cursor{Event: 0})

	a, b := player(f, "A"), player(f, "B")
	if a.Action == nil || a.Action.Category != game.ActionAttack || a.Action.Icon != "⚔️" {
		t.Fatalf("expected attack for A, got %+v", a.Action)
	}
	if b.Action == nil || b.Action.Category != game.ActionDefend || b.Action.Icon != "🛡️" {
		t.Fatalf("expected defend for B, got %+v", b.Action)
	}

	found := false
	for _, line := range f.Summary {
		if line == "A: Dealt 12 damage" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected damage line for A, got %v", f.Summary)
	}
	if len(a.Notes) != 1 || a.Notes[0] != "Good opening" || b.Notes[0] != "Blocked too late" {
		t.Fatalf("unexpected notes A=%v B=%v", a.Notes, b.Notes)
	}
}

func TestHPBarsScaleToMaxObserved(t *testing.T) {
	rp := open(t)
	f := rp.Visualize(0, game.Cursor{Event: 0})
	if a := player(f, "A"); a.Bar.Max != 58 || a.Bar.Value != 50 {
		t.Fatalf("expected A 50 of observed 58, got %+v", a.Bar)
	}
	if b := player(f, "B"); b.Bar.Max != 42 || b.Bar.Value != 30 {
		t.Fatalf("expected B 30 of 42, got %+v", b.Bar)
	}
	f = rp.Visualize(0, game.Cursor{Event: 1})
	if a := player(f, "A"); a.Bar.Percent != 100 {
		t.Fatalf("expected full bar at max, got %+v", a.Bar)
	}
}

func TestHPFloorWithoutHealth(t *testing.T) {
	raw := json.RawMessage(`{"battles": [{"player1": "E", "player2": "F", "turns": [
		{"turn": 1, "attacker": "E", "defender": "F", "attack_action": "strike", "defend_action": "wait"}
	]}]}`)
	for _, tc := range []struct {
		floor, want float64
	}{{0, DefaultHPFloor}, {250, 250}} {
		rp, err := New(tc.floor).Open(raw)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		f := rp.Visualize(0, game.Cursor{})
		if e := player(f, "E"); e.Bar.Max != tc.want || e.Bar.Value != 0 {
			t.Fatalf("floor %v: expected empty bar of %v, got %+v", tc.floor, tc.want, e.Bar)
		}
	}
}

func TestUnknownActionIsNeutral(t *testing.T) {
	f := open(t).Visualize(0, game.Cursor{Event: 1})
	b := player(f, "B")
	if b.Action.Category != game.ActionUnknown || b.Action.Color != "gray" || b.Action.Icon != "❓" {
		t.Fatalf("expected unknown style, got %+v", b.Action)
	}
	if a := player(f, "A"); a.Action.Category != game.ActionEvade {
		t.Fatalf("expected evade for A, got %+v", a.Action)
	}
	if len(b.Notes) != 0 {
		t.Fatal("turn without feedback should have no notes")
	}
}

func TestCompleteAndMatchType(t *testing.T) {
	rp := open(t)
	f := rp.Visualize(0, game.Cursor{Event: 2, Complete: true})
	if f.Winner != "A" || f.Meta["match_type"] != "standard" {
		t.Fatalf("unexpected terminal frame %+v", f)
	}
	if player(f, "A").Action != nil {
		t.Fatal("terminal frame has no current actions")
	}
	if rp.Matches()[1].Meta["match_type"] != "ranked" {
		t.Fatal("match_info should override the default match type")
	}
	if f := rp.Visualize(1, game.Cursor{Complete: true}); f.Notice != game.NoticeNoData {
		t.Fatalf("expected no data for empty battle, got %+v", f)
	}
}

func TestCategorize(t *testing.T) {
	cases := []struct {
		action string
		want   game.ActionCategory
	}{
		{"Slash", game.ActionAttack},
		{"shield_wall", game.ActionDefend},
		{"sidestep", game.ActionEvade},
		{"wait", game.ActionWait},
		{"", game.ActionUnknown},
		{"dance", game.ActionUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			if got := Categorize(tc.action).Category; got != tc.want {
				t.Fatalf("Categorize(%q) = %s, want %s", tc.action, got, tc.want)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"heavy_attack": "Heavy attack",
		"éclair-dash":  "Éclair dash",
		"  ":           "nothing",
	}
	for in, want := range cases {
		if got := label(in); got != want {
			t.Fatalf("label(%q) = %q, want %q", in, got, want)
		}
	}
}
