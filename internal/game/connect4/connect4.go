// Package connect4 replays four-in-a-row board games. The same adapter serves
// every registered board geometry.
package connect4

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"agentgames/internal/game"
	"agentgames/internal/jsonx"
	"agentgames/internal/stats"
)

const (
	Name        = "connect4"
	LineupName  = "lineup4"
	DefaultRows = 6
	DefaultCols = 7
)

// Board implements game.Adapter for one game name and grid geometry.
type Board struct {
	name  string
	title string
	rows  int
	cols  int
}

// New returns a board adapter. Non-positive dimensions use the 6×7 default.
func New(name, title string, rows, cols int) Board {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	return Board{name: name, title: title, rows: rows, cols: cols}
}

// Connect4 is the classic game.
func Connect4() Board { return New(Name, "Connect 4", DefaultRows, DefaultCols) }

// Lineup4 is the league variant of the same game.
func Lineup4() Board { return New(LineupName, "Lineup 4", DefaultRows, DefaultCols) }

func (b Board) Info() game.Info {
	return game.Info{Name: b.name, Title: b.title, Kind: game.KindBoard, Signature: "matches"}
}

type payload struct {
	Matches []match `json:"matches"`
}

type match struct {
	Player1    string `json:"player1"`
	Player2    string `json:"player2"`
	Moves      []move `json:"moves"`
	Winner     string `json:"winner"`
	FinalBoard cells  `json:"final_board"`
}

type move struct {
	Player     string          `json:"player"`
	Symbol     string          `json:"symbol"`
	Position   json.RawMessage `json:"position"`
	BoardState cells           `json:"board_state"`
}

// cells is a board keyed by game.CellKey. It decodes either a row-major
// array of rows or an object keyed "row,col". Empty markers are left out.
type cells map[string]string

func (c *cells) UnmarshalJSON(data []byte) error {
	out := cells{}
	switch jsonx.ShapeOf(data) {
	case jsonx.ShapeArray:
		var rows []json.RawMessage
		if err := json.Unmarshal(data, &rows); err != nil {
			return fmt.Errorf("decode board rows: %w", err)
		}
		for r, raw := range rows {
			var row []json.RawMessage
			if err := json.Unmarshal(raw, &row); err != nil {
				continue
			}
			for col, v := range row {
				if m := marker(v); m != "" {
					out[game.CellKey(r, col)] = m
				}
			}
		}
	case jsonx.ShapeObject:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("decode board cells: %w", err)
		}
		for key, v := range obj {
			r, col, ok := parseCellKey(key)
			if !ok {
				continue
			}
			if m := marker(v); m != "" {
				out[game.CellKey(r, col)] = m
			}
		}
	default:
		*c = nil
		return nil
	}
	*c = out
	return nil
}

func marker(raw json.RawMessage) string {
	m := strings.TrimSpace(jsonx.Text(raw))
	switch m {
	case "", ".", "-", "_", "0":
		return ""
	}
	return m
}

func parseCellKey(key string) (int, int, bool) {
	rs, cs, ok := strings.Cut(key, ",")
	if !ok {
		return 0, 0, false
	}
	r, err := strconv.Atoi(strings.TrimSpace(rs))
	if err != nil {
		return 0, 0, false
	}
	c, err := strconv.Atoi(strings.TrimSpace(cs))
	if err != nil {
		return 0, 0, false
	}
	return r, c, true
}

func (b Board) Open(raw json.RawMessage) (game.Replay, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode %s feedback: %w", b.name, err)
	}
	r := &replay{board: b, raw: p.Matches}
	for _, m := range p.Matches {
		r.matches = append(r.matches, b.normalize(m))
	}
	return r, nil
}

func isDraw(winner string) bool {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "", "draw", "tie", "none":
		return true
	}
	return false
}

func (b Board) normalize(m match) game.Match {
	out := game.Match{Meta: map[string]string{}}
	add := func(name string) {
		if name != "" && !out.Has(name) {
			out.Participants = append(out.Participants, name)
		}
	}
	add(m.Player1)
	add(m.Player2)

	var prev *game.Snapshot
	for i, mv := range m.Moves {
		add(mv.Player)
		pos := position(mv.Position)
		ev := game.Event{
			Index:   i,
			Actors:  []string{mv.Player},
			Before:  prev,
			Actions: map[string]string{mv.Player: pos},
			Outcome: map[string]string{"symbol": mv.Symbol, "position": pos},
		}
		switch {
		case mv.BoardState != nil:
			ev.After = &game.Snapshot{Cells: mv.BoardState}
		default:
			ev.After = b.drop(prev, mv)
		}
		out.Events = append(out.Events, ev)
		prev = ev.After
	}
	if m.FinalBoard != nil {
		out.Final = &game.Snapshot{Cells: m.FinalBoard}
	}
	if len(m.Moves) > 0 {
		out.Meta["first_mover"] = m.Moves[0].Player
	}
	if isDraw(m.Winner) {
		out.Meta["result"] = "draw"
	} else {
		out.Winner = m.Winner
		out.Meta["result"] = "win"
	}
	return out
}

// drop derives the board after a move that carried no board state by letting
// the piece fall to the lowest free row of its column.
func (b Board) drop(prev *game.Snapshot, mv move) *game.Snapshot {
	next := cells{}
	if prev != nil {
		for k, v := range prev.Cells {
			next[k] = v
		}
	}
	col, err := strconv.Atoi(position(mv.Position))
	piece := mv.Symbol
	if piece == "" {
		piece = mv.Player
	}
	if err == nil && col >= 0 && col < b.cols && piece != "" {
		for r := b.rows - 1; r >= 0; r-- {
			if _, taken := next[game.CellKey(r, col)]; !taken {
				next[game.CellKey(r, col)] = piece
				break
			}
		}
	}
	return &game.Snapshot{Cells: next}
}

func position(raw json.RawMessage) string {
	return jsonx.Text(raw)
}

type replay struct {
	board   Board
	raw     []match
	matches []game.Match
}

func (r *replay) Kind() game.Kind       { return game.KindBoard }
func (r *replay) Matches() []game.Match { return r.matches }

func (r *replay) Describe(match, event int) []string {
	if match < 0 || match >= len(r.raw) {
		return nil
	}
	moves := r.raw[match].Moves
	if event < 0 || event >= len(moves) {
		return nil
	}
	mv := moves[event]
	who := mv.Player
	if mv.Symbol != "" {
		who = fmt.Sprintf("%s (%s)", mv.Player, mv.Symbol)
	}
	pos := position(mv.Position)
	if jsonx.ShapeOf(mv.Position) == jsonx.ShapeNumber {
		return []string{fmt.Sprintf("%s played column %s", who, pos)}
	}
	if pos == "" {
		return []string{fmt.Sprintf("%s moved", who)}
	}
	return []string{fmt.Sprintf("%s played %s", who, pos)}
}

func (r *replay) Visualize(match int, cur game.Cursor) game.Frame {
	if match < 0 || match >= len(r.matches) {
		return game.NoData(game.KindBoard, r.board.name)
	}
	m, raw := r.matches[match], r.raw[match]
	f := game.Frame{
		Kind:     game.KindBoard,
		Game:     r.board.name,
		Title:    strings.Join(m.Participants, " vs "),
		Match:    match,
		Event:    cur.Event,
		Events:   len(m.Events),
		Complete: cur.Complete,
		Meta:     m.Meta,
	}
	if len(m.Events) == 0 && m.Final == nil {
		f.Notice = game.NoticeNoData
		return f
	}

	snap := stats.EffectiveSnapshot(m, cur)
	f.Board = game.NewBoardView(r.board.rows, r.board.cols, snap.Cells)

	played := cur.Event
	if !cur.Complete && cur.Event < len(m.Events) {
		played = cur.Event + 1
		f.Summary = r.Describe(match, cur.Event)
	}
	symbols := map[string]string{}
	counts := map[string]float64{}
	for i, mv := range raw.Moves {
		if mv.Symbol != "" && symbols[mv.Player] == "" {
			symbols[mv.Player] = mv.Symbol
		}
		if i < played {
			counts[mv.Player]++
		}
	}
	for _, name := range m.Participants {
		pv := game.PlayerView{
			Name:  name,
			Stats: []game.StatView{{Label: "Moves", Value: counts[name]}},
		}
		if s := symbols[name]; s != "" {
			pv.Notes = append(pv.Notes, "Plays "+s)
		}
		if m.Meta["first_mover"] == name {
			pv.Notes = append(pv.Notes, "Moved first")
		}
		f.Players = append(f.Players, pv)
	}

	if cur.Complete {
		f.Winner = m.Winner
		if m.Winner != "" {
			f.Summary = []string{m.Winner + " wins"}
		} else {
			f.Summary = []string{"Draw"}
		}
	}
	return f
}
