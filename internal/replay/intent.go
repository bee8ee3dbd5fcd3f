package replay

import "fmt"

// IntentType names a user navigation request.
type IntentType string

const (
	IntentNext        IntentType = "next"
	IntentPrevious    IntentType = "previous"
	IntentJumpToMatch IntentType = "jump_to_match"
	IntentSetFilter   IntentType = "set_filter"
)

// Intent is one navigation request from a viewer.
type Intent struct {
	Type   IntentType `json:"type"`
	Match  int        `json:"match,omitempty"`
	Filter string     `json:"filter,omitempty"`
}

// Apply returns the navigator that results from intent. On error the
// navigator is returned unchanged.
func (n Navigator) Apply(in Intent) (Navigator, error) {
	switch in.Type {
	case IntentNext:
		return n.Next(), nil
	case IntentPrevious:
		return n.Previous(), nil
	case IntentJumpToMatch:
		return n.JumpToMatch(in.Match)
	case IntentSetFilter:
		return n.SetParticipantFilter(in.Filter), nil
	default:
		return n, fmt.Errorf("%w: %q", ErrUnknownIntent, in.Type)
	}
}
