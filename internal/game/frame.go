package game

import "fmt"

// Placeholder messages shown instead of a normal view.
const (
	NoticeNoData      = "No data available"
	NoticeUnsupported = "Unsupported feedback format"
)

// Frame is the renderable view of a replay at one navigator position.
type Frame struct {
	Kind      Kind              `json:"kind"`
	Game      string            `json:"game,omitempty"`
	Title     string            `json:"title,omitempty"`
	Match     int               `json:"match"`
	Event     int               `json:"event"`
	Events    int               `json:"events"`
	Complete  bool              `json:"complete"`
	Winner    string            `json:"winner,omitempty"`
	Notice    string            `json:"notice,omitempty"`
	Summary   []string          `json:"summary,omitempty"`
	Players   []PlayerView      `json:"players,omitempty"`
	Board     *BoardView        `json:"board,omitempty"`
	Dice      *DiceView         `json:"dice,omitempty"`
	Rounds    []RoundView       `json:"rounds,omitempty"`
	Scores    []ScoreView       `json:"scores,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	Narrative string            `json:"narrative,omitempty"`
	Fields    []FieldView       `json:"fields,omitempty"`
}

// PlayerView is one participant's panel.
type PlayerView struct {
	Name   string      `json:"name"`
	Bar    *Bar        `json:"bar,omitempty"`
	Stats  []StatView  `json:"stats,omitempty"`
	Action *ActionView `json:"action,omitempty"`
	Bust   bool        `json:"bust,omitempty"`
	Notes  []string    `json:"notes,omitempty"`
}

// Bar is a progress bar scaled against Max.
type Bar struct {
	Value   float64 `json:"value"`
	Max     float64 `json:"max"`
	Percent float64 `json:"percent"`
}

// NewBar clamps value into [0, max] and computes the fill percentage.
func NewBar(value, max float64) *Bar {
	pct := 0.0
	if max > 0 {
		pct = value / max * 100
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return &Bar{Value: value, Max: max, Percent: pct}
}

// StatView is a labelled number.
type StatView struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ActionCategory groups action identifiers for icon and color selection.
type ActionCategory string

const (
	ActionAttack  ActionCategory = "attack"
	ActionDefend  ActionCategory = "defend"
	ActionEvade   ActionCategory = "evade"
	ActionWait    ActionCategory = "wait"
	ActionBank    ActionCategory = "bank"
	ActionRoll    ActionCategory = "roll"
	ActionBust    ActionCategory = "bust"
	ActionUnknown ActionCategory = "unknown"
)

// ActionView is an action rendered with its category styling.
type ActionView struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Category ActionCategory `json:"category"`
	Icon     string         `json:"icon"`
	Color    string         `json:"color"`
}

// BoardView is a fixed-geometry grid. Empty strings are unset cells.
type BoardView struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Cells [][]string `json:"cells"`
}

// CellKey is the snapshot key for a board cell.
func CellKey(row, col int) string {
	return fmt.Sprintf("%d,%d", row, col)
}

// NewBoardView lays out cells on a rows×cols grid, ignoring cells outside it.
func NewBoardView(rows, cols int, cells map[string]string) *BoardView {
	grid := make([][]string, rows)
	for r := range grid {
		grid[r] = make([]string, cols)
		for c := range grid[r] {
			grid[r][c] = cells[CellKey(r, c)]
		}
	}
	return &BoardView{Rows: rows, Cols: cols, Cells: grid}
}

// DiceView is the outcome of one roll.
type DiceView struct {
	Roll int    `json:"roll"`
	Face string `json:"face"`
	Bust bool   `json:"bust"`
}

// RoundView is one row of a round-robin log.
type RoundView struct {
	Number  int        `json:"number"`
	Actions [2]string  `json:"actions"`
	Scores  [2]float64 `json:"scores"`
	Tone    string     `json:"tone"`
}

// ScoreView is a ranked score line.
type ScoreView struct {
	Rank  int     `json:"rank"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// FieldView is one key/value of generic structured feedback.
type FieldView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NoData is the placeholder frame for a missing match or empty payload.
func NoData(kind Kind, name string) Frame {
	return Frame{Kind: kind, Game: name, Match: -1, Notice: NoticeNoData}
}
