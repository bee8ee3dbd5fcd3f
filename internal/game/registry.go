package game

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"agentgames/internal/jsonx"
)

// Registry holds all registered game adapters, keyed by game identifier.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter. Panics on duplicate names.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := a.Info().Name
	if _, exists := r.adapters[name]; exists {
		panic(fmt.Sprintf("game %q already registered", name))
	}
	r.adapters[name] = a
}

// Get returns an adapter by game identifier.
func (r *Registry) Get(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	return a, ok
}

// List returns info for all registered games, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.adapters))
	for _, a := range r.adapters {
		infos = append(infos, a.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Selection is the strategy picked for a feedback payload.
type Selection struct {
	Kind    Kind
	Game    string
	Adapter Adapter
	// Fallback is set when a recognized game failed to decode and the
	// structured strategy was used instead.
	Fallback error
}

type gameTag struct {
	Game string `json:"game"`
}

// Select picks the strategy for raw. A "game" field inside the payload wins.
// Otherwise hint, the game named by the surrounding result envelope, applies
// only when raw carries that game's signature key; untagged payloads are then
// matched by signature and anything else is rendered as structured data.
func (r *Registry) Select(hint string, raw json.RawMessage) Selection {
	switch jsonx.ShapeOf(raw) {
	case jsonx.ShapeObject:
		var tag gameTag
		_ = json.Unmarshal(raw, &tag)
		if tag.Game != "" {
			if a, ok := r.Get(tag.Game); ok {
				return Selection{Kind: a.Info().Kind, Game: tag.Game, Adapter: a}
			}
			return Selection{Kind: KindStructured, Game: tag.Game}
		}
		var fields map[string]json.RawMessage
		_ = json.Unmarshal(raw, &fields)
		if a, ok := r.Get(hint); ok {
			info := a.Info()
			if _, found := fields[info.Signature]; found && info.Signature != "" {
				return Selection{Kind: info.Kind, Game: hint, Adapter: a}
			}
		}
		if a, ok := r.detect(fields); ok {
			info := a.Info()
			return Selection{Kind: info.Kind, Game: info.Name, Adapter: a}
		}
		return Selection{Kind: KindStructured, Game: hint}
	case jsonx.ShapeString:
		return Selection{Kind: KindNarrative, Game: hint}
	default:
		return Selection{Kind: KindUnsupported, Game: hint}
	}
}

// detect returns the first adapter, by name, whose signature key holds an
// array in fields.
func (r *Registry) detect(fields map[string]json.RawMessage) (Adapter, bool) {
	for _, info := range r.List() {
		if info.Signature == "" {
			continue
		}
		if v, ok := fields[info.Signature]; ok && jsonx.ShapeOf(v) == jsonx.ShapeArray {
			return r.Get(info.Name)
		}
	}
	return nil, false
}

// Open selects a strategy and opens raw with it. It never fails: payloads
// that cannot be read degrade to a generic or diagnostic replay.
func (r *Registry) Open(hint string, raw json.RawMessage) (Replay, Selection) {
	sel := r.Select(hint, raw)
	switch sel.Kind {
	case KindNarrative:
		return NewNarrative(raw), sel
	case KindStructured:
		return NewStructured(sel.Game, raw), sel
	case KindUnsupported:
		return NewUnsupported(sel.Game, raw), sel
	}
	rp, err := sel.Adapter.Open(raw)
	if err != nil {
		sel.Fallback = fmt.Errorf("open %s feedback: %w", sel.Game, err)
		sel.Kind = KindStructured
		sel.Adapter = nil
		return NewStructured(sel.Game, raw), sel
	}
	return rp, sel
}
