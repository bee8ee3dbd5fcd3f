package result

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"agentgames/internal/jsonx"
)

// Scores maps participant names to a number, in document order.
type Scores = jsonx.Object[jsonx.Number]

// Table maps statistic names to per-participant values, in document order.
type Table = jsonx.Object[Scores]

// MatchResult is one aggregated simulation outcome for a league's game.
type MatchResult struct {
	ID             string          `json:"id,omitempty"`
	Game           string          `json:"game,omitempty"`
	TotalPoints    Scores          `json:"total_points"`
	Table          Table           `json:"table,omitempty"`
	NumSimulations int             `json:"num_simulations"`
	Message        string          `json:"message,omitempty"`
	Feedback       json.RawMessage `json:"feedback,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type envelope struct {
	ID             string          `json:"id"`
	Game           string          `json:"game"`
	TotalPoints    Scores          `json:"total_points"`
	Table          Table           `json:"table"`
	NumSimulations jsonx.Number    `json:"num_simulations"`
	Message        string          `json:"message"`
	Feedback       json.RawMessage `json:"feedback"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (r *MatchResult) UnmarshalJSON(data []byte) error {
	if jsonx.ShapeOf(data) != jsonx.ShapeObject {
		return fmt.Errorf("match result must be a JSON object")
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*r = MatchResult{
		ID:             env.ID,
		Game:           env.Game,
		TotalPoints:    env.TotalPoints,
		Table:          env.Table,
		NumSimulations: int(env.NumSimulations),
		Message:        env.Message,
		Feedback:       env.Feedback,
		CreatedAt:      env.CreatedAt,
	}
	if jsonx.ShapeOf(r.Feedback) == jsonx.ShapeNull {
		r.Feedback = nil
	}
	return nil
}

// Parse decodes a MatchResult from raw JSON.
func Parse(data []byte) (*MatchResult, error) {
	var r MatchResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode match result: %w", err)
	}
	return &r, nil
}

// Decode reads a MatchResult from r.
func Decode(r io.Reader) (*MatchResult, error) {
	var res MatchResult
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode match result: %w", err)
	}
	return &res, nil
}

// HasFeedback reports whether a feedback payload was supplied.
func (r *MatchResult) HasFeedback() bool {
	return r != nil && len(r.Feedback) > 0
}

// Column returns the statistic named name from the table.
func (r *MatchResult) Column(name string) (Scores, bool) {
	if r == nil {
		return nil, false
	}
	return r.Table.Get(name)
}
