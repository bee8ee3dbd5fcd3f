package game

import (
	"encoding/json"
	"errors"
	"testing"
)

// stubAdapter is a minimal Adapter implementation for testing the registry.
type stubAdapter struct {
	name string
	kind Kind
	sig  string
	err  error
}

func (s stubAdapter) Info() Info {
	return Info{Name: s.name, Title: s.name, Kind: s.kind, Signature: s.sig}
}

func (s stubAdapter) Open(raw json.RawMessage) (Replay, error) {
	if s.err != nil {
		return nil, s.err
	}
	return staticReplay{kind: s.kind, frame: Frame{Kind: s.kind, Game: s.name}}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{name: "connect4", kind: KindBoard})

	got, ok := r.Get("connect4")
	if !ok {
		t.Fatal("expected to find registered game")
	}
	if got.Info().Name != "connect4" {
		t.Fatalf("expected name connect4, got %s", got.Info().Name)
	}

	if _, ok := r.Get("nonexistent"); ok {
		t.Fatal("expected not found for unregistered game")
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{name: "prisoners_dilemma", kind: KindRoundRobin})
	r.Register(stubAdapter{name: "arena_champions", kind: KindBattle})

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 games, got %d", len(infos))
	}
	if infos[0].Name != "arena_champions" || infos[1].Name != "prisoners_dilemma" {
		t.Fatalf("expected sorted names, got %v", infos)
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{name: "connect4"})

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register(stubAdapter{name: "connect4"})
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(stubAdapter{name: "connect4", kind: KindBoard, sig: "matches"})
	r.Register(stubAdapter{name: "greedy_pig", kind: KindDice, sig: "rounds"})
	r.Register(stubAdapter{name: "lineup4", kind: KindBoard, sig: "matches"})
	return r
}

func TestSelectPriority(t *testing.T) {
	r := newTestRegistry()
	cases := []struct {
		name string
		hint string
		raw  string
		want Kind
		game string
	}{
		{"payload game tag", "", `{"game": "connect4", "matches": []}`, KindBoard, "connect4"},
		{"envelope hint", "greedy_pig", `{"rounds": []}`, KindDice, "greedy_pig"},
		{"payload tag beats hint", "greedy_pig", `{"game": "connect4"}`, KindBoard, "connect4"},
		{"unknown game falls back to structured", "", `{"game": "tron", "x": 1}`, KindStructured, "tron"},
		{"object without game", "", `{"score": 3}`, KindStructured, ""},
		{"untagged dice payload", "", `{"rounds": [{"number": 1}]}`, KindDice, "greedy_pig"},
		{"signature ties go to the first name", "", `{"matches": []}`, KindBoard, "connect4"},
		{"unknown hint still detected", "hex", `{"rounds": []}`, KindDice, "greedy_pig"},
		{"signature must hold an array", "", `{"rounds": 3}`, KindStructured, ""},
		{"hint needs its signature key", "greedy_pig", `{"summary": "banked early", "score": 42}`, KindStructured, "greedy_pig"},
		{"hint with malformed signature still selects", "greedy_pig", `{"rounds": "nope"}`, KindDice, "greedy_pig"},
		{"hint without signature detects another game", "greedy_pig", `{"matches": []}`, KindBoard, "connect4"},
		{"explicit unknown tag is not detected", "", `{"game": "tron", "rounds": []}`, KindStructured, "tron"},
		{"narrative string", "", `"you won"`, KindNarrative, ""},
		{"array", "", `[1, 2]`, KindUnsupported, ""},
		{"null", "", `null`, KindUnsupported, ""},
		{"number", "", `12`, KindUnsupported, ""},
		{"empty", "", ``, KindUnsupported, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel := r.Select(tc.hint, json.RawMessage(tc.raw))
			if sel.Kind != tc.want {
				t.Fatalf("expected kind %s, got %s", tc.want, sel.Kind)
			}
			if sel.Game != tc.game {
				t.Fatalf("expected game %q, got %q", tc.game, sel.Game)
			}
		})
	}
}

func TestOpenGenericObjectNeverUnsupported(t *testing.T) {
	r := newTestRegistry()
	rp, sel := r.Open("", json.RawMessage(`{"summary": "ok", "stats": {"moves": 4}}`))
	if sel.Kind != KindStructured || rp.Kind() != KindStructured {
		t.Fatalf("expected structured strategy, got %s", sel.Kind)
	}
	f := rp.Visualize(0, Cursor{})
	if f.Notice != "" {
		t.Fatalf("expected no notice, got %q", f.Notice)
	}
	if len(f.Fields) != 2 || f.Fields[0].Key != "summary" || f.Fields[0].Value != "ok" {
		t.Fatalf("unexpected fields %+v", f.Fields)
	}
}

func TestOpenHintedGenericObjectKeepsFields(t *testing.T) {
	r := newTestRegistry()
	rp, sel := r.Open("greedy_pig", json.RawMessage(`{"summary": "Your agent banked too early", "score": 42}`))
	if sel.Kind != KindStructured || sel.Adapter != nil {
		t.Fatalf("expected structured strategy, got %+v", sel)
	}
	f := rp.Visualize(0, Cursor{})
	if f.Notice != "" {
		t.Fatalf("expected no notice, got %q", f.Notice)
	}
	if len(f.Fields) != 2 || f.Fields[0].Key != "summary" || f.Fields[1].Value != "42" {
		t.Fatalf("unexpected fields %+v", f.Fields)
	}
}

func TestOpenFallsBackWhenAdapterFails(t *testing.T) {
	r := NewRegistry()
	r.Register(stubAdapter{name: "connect4", kind: KindBoard, err: errors.New("bad moves")})

	rp, sel := r.Open("", json.RawMessage(`{"game": "connect4", "matches": "oops"}`))
	if sel.Fallback == nil {
		t.Fatal("expected fallback error to be recorded")
	}
	if rp.Kind() != KindStructured {
		t.Fatalf("expected structured fallback, got %s", rp.Kind())
	}
}

func TestOpenUnsupportedRendersDiagnostic(t *testing.T) {
	r := newTestRegistry()
	rp, _ := r.Open("", json.RawMessage(`[1, 2, 3]`))
	f := rp.Visualize(0, Cursor{})
	if f.Kind != KindUnsupported || f.Notice != NoticeUnsupported {
		t.Fatalf("expected unsupported diagnostic, got %+v", f)
	}
	if len(rp.Matches()) != 0 {
		t.Fatal("unsupported replay should have no matches")
	}
}

func TestOpenNarrative(t *testing.T) {
	r := newTestRegistry()
	rp, _ := r.Open("", json.RawMessage(`"Your agent banked early."`))
	f := rp.Visualize(0, Cursor{})
	if f.Narrative != "Your agent banked early." {
		t.Fatalf("unexpected narrative %q", f.Narrative)
	}
}

func TestNewBarClamps(t *testing.T) {
	if b := NewBar(150, 100); b.Percent != 100 {
		t.Fatalf("expected 100%%, got %v", b.Percent)
	}
	if b := NewBar(-5, 100); b.Percent != 0 {
		t.Fatalf("expected 0%%, got %v", b.Percent)
	}
	if b := NewBar(10, 0); b.Percent != 0 {
		t.Fatalf("expected 0%% for zero max, got %v", b.Percent)
	}
}
