package game

import "encoding/json"

// Kind is the rendering strategy chosen for a feedback payload.
type Kind string

const (
	KindDice        Kind = "dice"
	KindBoard       Kind = "board"
	KindRoundRobin  Kind = "round_robin"
	KindBattle      Kind = "battle"
	KindStructured  Kind = "structured"
	KindNarrative   Kind = "narrative"
	KindUnsupported Kind = "unsupported"
)

// Info describes a registered game adapter. Signature is the top-level array
// key that identifies the adapter's payload when it carries no "game" field.
type Info struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Kind      Kind   `json:"kind"`
	Signature string `json:"signature,omitempty"`
}

// Adapter turns one game's feedback payload into a Replay.
type Adapter interface {
	Info() Info
	Open(raw json.RawMessage) (Replay, error)
}

// Replay is an opened feedback payload. Matches feeds the navigator, Describe
// yields the text log of one event and Visualize draws a match at a cursor.
// Visualize must tolerate out-of-range match indexes by returning NoData.
type Replay interface {
	Kind() Kind
	Matches() []Match
	Describe(match, event int) []string
	Visualize(match int, cur Cursor) Frame
}
