package game

import (
	"encoding/json"
	"strings"

	"agentgames/internal/jsonx"
)

// staticReplay backs the generic strategies: there is nothing to step
// through, so every cursor yields the same frame.
type staticReplay struct {
	kind  Kind
	frame Frame
}

func (s staticReplay) Kind() Kind                 { return s.kind }
func (s staticReplay) Matches() []Match           { return nil }
func (s staticReplay) Describe(int, int) []string { return nil }

func (s staticReplay) Visualize(int, Cursor) Frame {
	f := s.frame
	f.Match = -1
	f.Complete = true
	return f
}

// NewNarrative renders a plain feedback string.
func NewNarrative(raw json.RawMessage) Replay {
	var text string
	_ = json.Unmarshal(raw, &text)
	f := Frame{Kind: KindNarrative, Title: "Feedback", Narrative: text}
	if strings.TrimSpace(text) == "" {
		f.Notice = NoticeNoData
	}
	return staticReplay{kind: KindNarrative, frame: f}
}

// NewStructured renders an object as a key/value list in document order.
func NewStructured(name string, raw json.RawMessage) Replay {
	f := Frame{Kind: KindStructured, Game: name, Title: "Feedback"}
	var obj jsonx.Object[json.RawMessage]
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) == 0 {
		f.Notice = NoticeNoData
		return staticReplay{kind: KindStructured, frame: f}
	}
	for _, field := range obj {
		f.Fields = append(f.Fields, FieldView{Key: field.Key, Value: structuredValue(field.Value)})
	}
	return staticReplay{kind: KindStructured, frame: f}
}

func structuredValue(raw json.RawMessage) string {
	switch jsonx.ShapeOf(raw) {
	case jsonx.ShapeObject, jsonx.ShapeArray:
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				return string(pretty)
			}
		}
	}
	return jsonx.Text(raw)
}

// NewUnsupported renders the diagnostic for a payload no strategy can read.
func NewUnsupported(name string, raw json.RawMessage) Replay {
	f := Frame{Kind: KindUnsupported, Game: name, Title: "Feedback", Notice: NoticeUnsupported}
	f.Summary = []string{"Expected a feedback object or text, got " + shapeName(jsonx.ShapeOf(raw)) + "."}
	return staticReplay{kind: KindUnsupported, frame: f}
}

func shapeName(s jsonx.Shape) string {
	switch s {
	case jsonx.ShapeArray:
		return "an array"
	case jsonx.ShapeNull:
		return "null"
	case jsonx.ShapeNumber:
		return "a number"
	case jsonx.ShapeBool:
		return "a boolean"
	case jsonx.ShapeInvalid:
		return "nothing"
	}
	return "an unknown value"
}
